package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether a lifecycle flag is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexFloat unmarshals from a JSON number or a numeric string. The Gamma API
// sends volume/liquidity as numbers at the event level and as strings at the
// market level; both shapes are part of the upstream contract and are
// accepted permanently. Unparsable or absent values decode to 0 rather than
// erroring.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	*f = 0
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return nil
	}
	if n, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil {
		*f = flexFloat(n)
	}
	return nil
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APITag is a Gamma tag label attached to events and markets.
type APITag struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Slug  string `json:"slug"`
}

// APIEvent represents an event as returned by the Gamma API. An event groups
// one or more related markets.
type APIEvent struct {
	ID          string      `json:"id"`
	Slug        string      `json:"slug"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Volume      flexFloat   `json:"volume"`
	Volume24h   flexFloat   `json:"volume24hr"`
	Liquidity   flexFloat   `json:"liquidity"`
	Active      flexBool    `json:"active"`
	Closed      flexBool    `json:"closed"`
	Archived    flexBool    `json:"archived"`
	New         flexBool    `json:"new"`
	Featured    flexBool    `json:"featured"`
	Image       string      `json:"image"`
	Icon        string      `json:"icon"`
	StartDate   string      `json:"startDate"`
	EndDate     string      `json:"endDate"`
	Tags        []APITag    `json:"tags"`
	Markets     []APIMarket `json:"markets"`
}

// APIMarket represents a market nested under a Gamma event. The three list
// fields (outcomes, prices, token ids) arrive JSON-encoded inside strings,
// and volume/liquidity arrive string-typed while volume24hr is numeric; the
// flex types absorb the inconsistency.
type APIMarket struct {
	ID            string    `json:"id"`
	ConditionID   string    `json:"conditionId"`
	Slug          string    `json:"slug"`
	Question      string    `json:"question"`
	Description   string    `json:"description"`
	Outcomes      string    `json:"outcomes"`      // JSON-encoded: "[\"Yes\",\"No\"]"
	OutcomePrices string    `json:"outcomePrices"` // JSON-encoded: "[\"0.65\",\"0.35\"]"
	ClobTokenIDs  string    `json:"clobTokenIds"`  // JSON-encoded: "[\"123...\",\"456...\"]"
	Volume        flexFloat `json:"volume"`
	Volume24h     flexFloat `json:"volume24hr"`
	Liquidity     flexFloat `json:"liquidity"`
	Active        flexBool  `json:"active"`
	Closed        flexBool  `json:"closed"`
	Archived      flexBool  `json:"archived"`
	New           flexBool  `json:"new"`
	Featured      flexBool  `json:"featured"`
	Image         string    `json:"image"`
	Icon          string    `json:"icon"`
	StartDate     string    `json:"startDate"`
	EndDate       string    `json:"endDate"`
	Tags          []APITag  `json:"tags"`
	BestBid       flexFloat `json:"bestBid"`
	BestAsk       flexFloat `json:"bestAsk"`
	LastTrade     flexFloat `json:"lastTradePrice"`
}

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// APIPriceLevel is a single bid/ask level in CLOB order book data.
type APIPriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// APIBook is the order book snapshot returned by the CLOB REST API.
type APIBook struct {
	Market    string          `json:"market"`
	AssetID   string          `json:"asset_id"`
	Timestamp string          `json:"timestamp"`
	Bids      []APIPriceLevel `json:"bids"`
	Asks      []APIPriceLevel `json:"asks"`
}

// PricePoint is one sample in a price history series.
type PricePoint struct {
	Timestamp int64   `json:"t"`
	Price     float64 `json:"p"`
}

// APIPriceHistory is the CLOB price history response envelope.
type APIPriceHistory struct {
	History []PricePoint `json:"history"`
}

// APIPosition is one user position row from the data API.
type APIPosition struct {
	AssetID      string    `json:"asset"`
	ConditionID  string    `json:"conditionId"`
	Title        string    `json:"title"`
	Slug         string    `json:"slug"`
	Outcome      string    `json:"outcome"`
	Size         flexFloat `json:"size"`
	AvgPrice     flexFloat `json:"avgPrice"`
	CurrentPrice flexFloat `json:"curPrice"`
	CashPnL      flexFloat `json:"cashPnl"`
	PercentPnL   flexFloat `json:"percentPnl"`
	CurrentValue flexFloat `json:"currentValue"`
	Redeemable   flexBool  `json:"redeemable"`
}

// --------------------------------------------------------------------------
// Streaming feed DTOs
// --------------------------------------------------------------------------

// wsSubscribe is the single subscribe frame sent on connect.
type wsSubscribe struct {
	AssetIDs []string `json:"assets_ids"`
	Type     string   `json:"type"` // always "market"
}

// wsEnvelope carries the fields shared by every server frame.
type wsEnvelope struct {
	EventType string `json:"event_type"` // "book", "price_change", "last_trade_price"
	AssetID   string `json:"asset_id"`
	Market    string `json:"market"`
}

// wsBook is a full order book snapshot frame.
type wsBook struct {
	AssetID string          `json:"asset_id"`
	Bids    []APIPriceLevel `json:"bids"`
	Asks    []APIPriceLevel `json:"asks"`
}

// wsLastTrade is a last-trade-price frame.
type wsLastTrade struct {
	AssetID string `json:"asset_id"`
	Price   string `json:"price"`
}

// bestLevels extracts the best bid and ask from raw book levels. Levels are
// string-typed; unparsable entries are skipped.
func bestLevels(bids, asks []APIPriceLevel) (bestBid, bestAsk float64) {
	for _, lvl := range bids {
		p, err := strconv.ParseFloat(lvl.Price, 64)
		if err != nil {
			continue
		}
		if p > bestBid {
			bestBid = p
		}
	}
	for _, lvl := range asks {
		p, err := strconv.ParseFloat(lvl.Price, 64)
		if err != nil {
			continue
		}
		if bestAsk == 0 || p < bestAsk {
			bestAsk = p
		}
	}
	return bestBid, bestAsk
}
