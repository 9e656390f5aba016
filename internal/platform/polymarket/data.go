package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/polydeck/polydeck/internal/domain"
)

// DataClient is the REST client for the Polymarket data API, which serves
// wallet-scoped holdings and activity.
type DataClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewDataClient creates a new data API client.
//
// baseURL is the data API root, e.g. "https://data-api.polymarket.com".
func NewDataClient(baseURL string) *DataClient {
	return &DataClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetUserPositions returns the open positions held by the given wallet.
// The address must be a valid 0x-prefixed hex address.
func (d *DataClient) GetUserPositions(ctx context.Context, address string) ([]APIPosition, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("polymarket/data: %w: %q", domain.ErrInvalidAddress, address)
	}
	checksummed := common.HexToAddress(address).Hex()

	params := url.Values{}
	params.Set("user", checksummed)

	body, err := d.doGet(ctx, "/positions?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: get positions %s: %w", checksummed, err)
	}

	var positions []APIPosition
	if err := json.Unmarshal(body, &positions); err != nil {
		return nil, fmt.Errorf("polymarket/data: decode positions: %w", err)
	}

	return positions, nil
}

// doGet sends an unauthenticated GET request to the data API.
func (d *DataClient) doGet(ctx context.Context, path string) ([]byte, error) {
	target := d.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
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
