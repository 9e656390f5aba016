package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/polydeck/polydeck/internal/domain"
	"github.com/polydeck/polydeck/internal/platform/polymarket"
)

// PositionSource fetches wallet-scoped holdings from the data API.
type PositionSource interface {
	GetUserPositions(ctx context.Context, address string) ([]polymarket.APIPosition, error)
}

// PositionHandler serves wallet position lookups.
type PositionHandler struct {
	positions PositionSource
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler.
func NewPositionHandler(positions PositionSource, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		positions: positions,
		logger:    logger,
	}
}

// GetPositions returns the open positions held by a wallet.
// GET /api/positions/{address}
func (h *PositionHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")

	positions, err := h.positions.GetUserPositions(r.Context(), address)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidAddress) {
			writeError(w, http.StatusBadRequest, "invalid wallet address")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get positions failed",
			slog.String("address", address),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "failed to get positions")
		return
	}
	if positions == nil {
		positions = []polymarket.APIPosition{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"positions": positions})
}
