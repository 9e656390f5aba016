package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/polydeck/polydeck/internal/domain"
	"github.com/polydeck/polydeck/internal/platform/polymarket"
)

// MarketService defines what the market handler requires from the service
// layer. It is declared locally so the handler package does not depend on
// the concrete service implementation.
type MarketService interface {
	ListMarkets(ctx context.Context, view string, limit, offset int, search string) ([]domain.Market, error)
	GetMarketDetail(ctx context.Context, idOrSlug string) (domain.Market, bool, error)
	Views() []string
}

// HistorySource fetches price history for one CLOB token.
type HistorySource interface {
	GetPriceHistory(ctx context.Context, assetID, interval string) ([]polymarket.PricePoint, error)
}

// MarketHandler serves market-related HTTP endpoints.
type MarketHandler struct {
	markets MarketService
	history HistorySource
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(markets MarketService, history HistorySource, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		history: history,
		logger:  logger,
	}
}

// listMarketsResponse wraps the list endpoint output with paging metadata.
type listMarketsResponse struct {
	Markets []domain.Market `json:"markets"`
	View    string          `json:"view"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// ListMarkets returns the markets for a view.
// GET /api/markets?view=trending&limit=20&offset=0&search=
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r)
	view := r.URL.Query().Get("view")
	search := r.URL.Query().Get("search")

	markets, err := h.markets.ListMarkets(r.Context(), view, limit, offset, search)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list markets failed",
			slog.String("view", view),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "failed to list markets")
		return
	}
	if markets == nil {
		markets = []domain.Market{}
	}

	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: markets,
		View:    view,
		Limit:   limit,
		Offset:  offset,
	})
}

// GetMarket returns a single market by canonical id or slug.
// GET /api/markets/{idOrSlug}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	idOrSlug := r.PathValue("idOrSlug")
	if idOrSlug == "" {
		writeError(w, http.StatusBadRequest, "missing market id or slug")
		return
	}

	m, found, err := h.markets.GetMarketDetail(r.Context(), idOrSlug)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: get market failed",
			slog.String("market", idOrSlug),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "failed to get market")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "market not found")
		return
	}

	writeJSON(w, http.StatusOK, m)
}

// historyResponse is one outcome's price series.
type historyResponse struct {
	Market   string                  `json:"market"`
	TokenID  string                  `json:"tokenId"`
	Outcome  string                  `json:"outcome"`
	Interval string                  `json:"interval"`
	History  []polymarket.PricePoint `json:"history"`
}

// GetHistory returns the price history for one of a market's outcome tokens.
// GET /api/markets/{idOrSlug}/history?interval=1d&outcome=Yes
func (h *MarketHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	idOrSlug := r.PathValue("idOrSlug")
	interval := r.URL.Query().Get("interval")
	if interval == "" {
		interval = "1d"
	}

	m, found, err := h.markets.GetMarketDetail(r.Context(), idOrSlug)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: history market lookup failed",
			slog.String("market", idOrSlug),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "failed to get market")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "market not found")
		return
	}

	token, ok := pickToken(m, r.URL.Query().Get("outcome"))
	if !ok {
		writeError(w, http.StatusNotFound, "no matching outcome token")
		return
	}

	points, err := h.history.GetPriceHistory(r.Context(), token.TokenID, interval)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: price history failed",
			slog.String("token_id", token.TokenID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "failed to get price history")
		return
	}
	if points == nil {
		points = []polymarket.PricePoint{}
	}

	writeJSON(w, http.StatusOK, historyResponse{
		Market:   m.ID,
		TokenID:  token.TokenID,
		Outcome:  token.Outcome,
		Interval: interval,
		History:  points,
	})
}

// ListViews returns every view name a client may request.
// GET /api/views
func (h *MarketHandler) ListViews(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"views": h.markets.Views()})
}

// pickToken selects the token matching the requested outcome, defaulting to
// the market's first token.
func pickToken(m domain.Market, outcome string) (domain.OutcomeToken, bool) {
	if len(m.Tokens) == 0 {
		return domain.OutcomeToken{}, false
	}
	if outcome != "" {
		for _, t := range m.Tokens {
			if t.Outcome == outcome {
				return t, true
			}
		}
		return domain.OutcomeToken{}, false
	}
	return m.Tokens[0], true
}
