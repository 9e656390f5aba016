package polymarket

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestGetPriceHistoryFidelity(t *testing.T) {
	tests := []struct {
		name         string
		interval     string
		wantInterval string
		wantFidelity string
	}{
		{"one minute", "1m", "1m", "1"},
		{"one hour", "1h", "1h", "60"},
		{"six hours", "6h", "6h", "360"},
		{"one day", "1d", "1d", "60"},
		{"one week", "1w", "1w", "360"},
		{"all time", "all", "all", "1440"},
		{"unknown falls back to one day", "2y", "1d", "60"},
		{"empty falls back to one day", "", "1d", "60"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var gotQuery url.Values
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/prices-history" {
					t.Errorf("path = %s, want /prices-history", r.URL.Path)
				}
				gotQuery = r.URL.Query()
				w.Write([]byte(`{"history":[{"t":1756166400,"p":0.62}]}`))
			}))
			defer srv.Close()

			client := NewClobClient(srv.URL)
			points, err := client.GetPriceHistory(t.Context(), "tok-1", tc.interval)
			if err != nil {
				t.Fatalf("GetPriceHistory: %v", err)
			}
			if gotQuery.Get("market") != "tok-1" {
				t.Errorf("market = %q, want tok-1", gotQuery.Get("market"))
			}
			if gotQuery.Get("interval") != tc.wantInterval {
				t.Errorf("interval = %q, want %q", gotQuery.Get("interval"), tc.wantInterval)
			}
			if gotQuery.Get("fidelity") != tc.wantFidelity {
				t.Errorf("fidelity = %q, want %q", gotQuery.Get("fidelity"), tc.wantFidelity)
			}
			if len(points) != 1 || points[0].Price != 0.62 {
				t.Errorf("points = %+v, want single 0.62 sample", points)
			}
		})
	}
}

func TestGetOrderBook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/book" {
			t.Errorf("path = %s, want /book", r.URL.Path)
		}
		if got := r.URL.Query().Get("token_id"); got != "tok-1" {
			t.Errorf("token_id = %q, want tok-1", got)
		}
		w.Write([]byte(`{
			"asset_id": "tok-1",
			"bids": [{"price":"0.61","size":"10"},{"price":"0.64","size":"5"}],
			"asks": [{"price":"0.70","size":"8"},{"price":"0.66","size":"3"}]
		}`))
	}))
	defer srv.Close()

	client := NewClobClient(srv.URL)
	snap, err := client.GetOrderBook(t.Context(), "tok-1")
	if err != nil {
		t.Fatalf("GetOrderBook: %v", err)
	}
	if snap.AssetID != "tok-1" {
		t.Errorf("AssetID = %q, want tok-1", snap.AssetID)
	}
	if snap.BestBid != 0.64 || snap.BestAsk != 0.66 {
		t.Errorf("top of book = (%v, %v), want (0.64, 0.66)", snap.BestBid, snap.BestAsk)
	}
}

func TestGetLastTradePrice(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/last-trade-price" {
				t.Errorf("path = %s, want /last-trade-price", r.URL.Path)
			}
			w.Write([]byte(`{"price":"0.58"}`))
		}))
		defer srv.Close()

		client := NewClobClient(srv.URL)
		price, err := client.GetLastTradePrice(t.Context(), "tok-1")
		if err != nil {
			t.Fatalf("GetLastTradePrice: %v", err)
		}
		if price != 0.58 {
			t.Errorf("price = %v, want 0.58", price)
		}
	})

	t.Run("unparsable price", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"price":""}`))
		}))
		defer srv.Close()

		client := NewClobClient(srv.URL)
		if _, err := client.GetLastTradePrice(t.Context(), "tok-1"); err == nil {
			t.Fatal("expected error for empty price")
		}
	})
}
