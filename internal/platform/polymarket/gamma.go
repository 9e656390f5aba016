// Package polymarket contains the REST and streaming clients for the three
// upstream Polymarket surfaces: the Gamma event/market catalog, the CLOB
// order book and price history, and the market-data websocket feed. The
// clients perform transport and error surfacing only; all business logic
// lives in internal/market.
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

// EventQuery is the allow-list of catalog filter fields. The Gamma API
// rejects unrecognized fields with a client error, so the encoder sends only
// fields that are explicitly set: zero-valued optional fields are omitted
// rather than sent with defaults.
type EventQuery struct {
	Limit        int
	Offset       int
	Closed       *bool
	TagID        string
	ExcludeTagID string
	RelatedTags  bool
	Order        string
	Ascending    bool
	Featured     *bool
	Slug         string
	ID           string
	CYOM         *bool // "create your own market" records
	StartDateMin time.Time
	StartDateMax time.Time
	EndDateMin   time.Time
	EndDateMax   time.Time
}

// maxCatalogLimit is the upstream pagination cap.
const maxCatalogLimit = 100

// encode renders the query as URL parameters, omitting unset fields.
func (q EventQuery) encode() url.Values {
	params := url.Values{}

	limit := q.Limit
	if limit > maxCatalogLimit {
		limit = maxCatalogLimit
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}
	if q.Closed != nil {
		params.Set("closed", strconv.FormatBool(*q.Closed))
	}
	if q.TagID != "" {
		params.Set("tag_id", q.TagID)
	}
	if q.ExcludeTagID != "" {
		params.Set("exclude_tag_id", q.ExcludeTagID)
	}
	if q.RelatedTags {
		params.Set("related_tags", "true")
	}
	if q.Order != "" {
		params.Set("order", q.Order)
	}
	if q.Ascending {
		params.Set("ascending", "true")
	}
	if q.Featured != nil {
		params.Set("featured", strconv.FormatBool(*q.Featured))
	}
	if q.Slug != "" {
		params.Set("slug", q.Slug)
	}
	if q.ID != "" {
		params.Set("id", q.ID)
	}
	if q.CYOM != nil {
		params.Set("cyom", strconv.FormatBool(*q.CYOM))
	}
	if !q.StartDateMin.IsZero() {
		params.Set("start_date_min", q.StartDateMin.UTC().Format(time.RFC3339))
	}
	if !q.StartDateMax.IsZero() {
		params.Set("start_date_max", q.StartDateMax.UTC().Format(time.RFC3339))
	}
	if !q.EndDateMin.IsZero() {
		params.Set("end_date_min", q.EndDateMin.UTC().Format(time.RFC3339))
	}
	if !q.EndDateMax.IsZero() {
		params.Set("end_date_max", q.EndDateMax.UTC().Format(time.RFC3339))
	}

	return params
}

// GammaClient is the REST client for the Gamma catalog API, which provides
// event and market discovery, metadata, and search.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGammaClient creates a new Gamma API client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string) *GammaClient {
	return &GammaClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListEvents returns events matching the given catalog query.
func (g *GammaClient) ListEvents(ctx context.Context, query EventQuery) ([]APIEvent, error) {
	path := "/events"
	if params := query.encode(); len(params) > 0 {
		path += "?" + params.Encode()
	}

	body, err := g.doGet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: list events: %w", err)
	}

	var events []APIEvent
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode events: %w", err)
	}

	return events, nil
}

// GetEventBySlug returns a single event looked up by its URL slug.
func (g *GammaClient) GetEventBySlug(ctx context.Context, slug string) (APIEvent, error) {
	events, err := g.ListEvents(ctx, EventQuery{Slug: slug, Limit: 1})
	if err != nil {
		return APIEvent{}, fmt.Errorf("polymarket/gamma: get event by slug %s: %w", slug, err)
	}
	if len(events) == 0 {
		return APIEvent{}, fmt.Errorf("polymarket/gamma: %w: event slug=%s", domain.ErrNotFound, slug)
	}
	return events[0], nil
}

// GetMarketByConditionID returns a single market looked up by its on-chain
// condition id.
func (g *GammaClient) GetMarketByConditionID(ctx context.Context, conditionID string) (APIMarket, error) {
	params := url.Values{}
	params.Set("condition_ids", conditionID)

	body, err := g.doGet(ctx, "/markets?"+params.Encode())
	if err != nil {
		return APIMarket{}, fmt.Errorf("polymarket/gamma: get market by condition %s: %w", conditionID, err)
	}

	var markets []APIMarket
	if err := json.Unmarshal(body, &markets); err != nil {
		return APIMarket{}, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
	}
	if len(markets) == 0 {
		return APIMarket{}, fmt.Errorf("polymarket/gamma: %w: condition=%s", domain.ErrNotFound, conditionID)
	}
	return markets[0], nil
}

// GetMarketBySlug returns a single market looked up by its URL slug.
func (g *GammaClient) GetMarketBySlug(ctx context.Context, slug string) (APIMarket, error) {
	params := url.Values{}
	params.Set("slug", slug)

	body, err := g.doGet(ctx, "/markets?"+params.Encode())
	if err != nil {
		return APIMarket{}, fmt.Errorf("polymarket/gamma: get market by slug %s: %w", slug, err)
	}

	var markets []APIMarket
	if err := json.Unmarshal(body, &markets); err != nil {
		return APIMarket{}, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
	}
	if len(markets) == 0 {
		return APIMarket{}, fmt.Errorf("polymarket/gamma: %w: slug=%s", domain.ErrNotFound, slug)
	}
	return markets[0], nil
}

// SearchEvents returns open events whose text matches the given term.
func (g *GammaClient) SearchEvents(ctx context.Context, term string, limit int) ([]APIEvent, error) {
	if limit <= 0 || limit > maxCatalogLimit {
		limit = maxCatalogLimit
	}
	params := url.Values{}
	params.Set("q", term)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("closed", "false")

	body, err := g.doGet(ctx, "/events?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: search events %q: %w", term, err)
	}

	var events []APIEvent
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode search results: %w", err)
	}

	return events, nil
}

// doGet sends an unauthenticated GET request to the Gamma API.
func (g *GammaClient) doGet(ctx context.Context, path string) ([]byte, error) {
	target := g.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
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

// checkHTTPStatus maps non-2xx status codes to domain errors. The method,
// target URL, and response body are attached for diagnosis; callers decide
// whether a fallback fetch or a logged skip is appropriate.
func checkHTTPStatus(method, target string, statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	detail := fmt.Sprintf("%s %s: HTTP %d: %s", method, target, statusCode, body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, detail)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, detail)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, detail)
	default:
		return fmt.Errorf("%s", detail)
	}
}
