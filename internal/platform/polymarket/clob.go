package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/polydeck/polydeck/internal/domain"
)

// intervalFidelity maps a requested price-history interval to the CLOB
// fidelity (sample resolution in minutes) expected by the API.
var intervalFidelity = map[string]int{
	"1m":  1,
	"1h":  60,
	"6h":  360,
	"1d":  60,
	"1w":  360,
	"all": 1440,
}

// ClobClient is the read-only REST client for the Polymarket CLOB API. It
// serves order book snapshots, last-trade prices, and price history.
type ClobClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewClobClient creates a new CLOB REST client.
//
// baseURL is the CLOB API root, e.g. "https://clob.polymarket.com".
func NewClobClient(baseURL string) *ClobClient {
	return &ClobClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetOrderBook fetches the current order book snapshot for one instrument.
func (c *ClobClient) GetOrderBook(ctx context.Context, assetID string) (domain.BookSnapshot, error) {
	params := url.Values{}
	params.Set("token_id", assetID)

	body, err := c.doGet(ctx, "/book?"+params.Encode())
	if err != nil {
		return domain.BookSnapshot{}, fmt.Errorf("polymarket/clob: get book %s: %w", assetID, err)
	}

	var book APIBook
	if err := json.Unmarshal(body, &book); err != nil {
		return domain.BookSnapshot{}, fmt.Errorf("polymarket/clob: decode book: %w", err)
	}

	snap := domain.BookSnapshot{AssetID: assetID}
	snap.BestBid, snap.BestAsk = bestLevels(book.Bids, book.Asks)
	return snap, nil
}

// GetLastTradePrice fetches the most recent trade price for one instrument.
func (c *ClobClient) GetLastTradePrice(ctx context.Context, assetID string) (float64, error) {
	params := url.Values{}
	params.Set("token_id", assetID)

	body, err := c.doGet(ctx, "/last-trade-price?"+params.Encode())
	if err != nil {
		return 0, fmt.Errorf("polymarket/clob: get last trade %s: %w", assetID, err)
	}

	var resp struct {
		Price string `json:"price"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("polymarket/clob: decode last trade: %w", err)
	}

	price, err := strconv.ParseFloat(resp.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("polymarket/clob: parse last trade price %q: %w", resp.Price, err)
	}
	return price, nil
}

// GetPriceHistory fetches the price series for one instrument over the given
// interval ("1m", "1h", "6h", "1d", "1w", "all"). Unknown intervals fall
// back to "1d".
func (c *ClobClient) GetPriceHistory(ctx context.Context, assetID, interval string) ([]PricePoint, error) {
	fidelity, ok := intervalFidelity[interval]
	if !ok {
		interval = "1d"
		fidelity = intervalFidelity[interval]
	}

	params := url.Values{}
	params.Set("market", assetID)
	params.Set("interval", interval)
	params.Set("fidelity", strconv.Itoa(fidelity))

	body, err := c.doGet(ctx, "/prices-history?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: get price history %s: %w", assetID, err)
	}

	var history APIPriceHistory
	if err := json.Unmarshal(body, &history); err != nil {
		return nil, fmt.Errorf("polymarket/clob: decode price history: %w", err)
	}

	return history.History, nil
}

// doGet sends an unauthenticated GET request to the CLOB API.
func (c *ClobClient) doGet(ctx context.Context, path string) ([]byte, error) {
	target := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("GET %s: read response: %w", target, err)
	}

	if err := checkHTTPStatus(http.MethodGet, target, resp.StatusCode, body); err != nil {
		return nil, err
	}

	return body, nil
}
