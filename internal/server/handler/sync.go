package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/polydeck/polydeck/internal/domain"
)

// SyncTrigger starts a sync run on demand.
type SyncTrigger interface {
	SyncOnce(ctx context.Context) (domain.SyncLog, error)
}

// SyncHandler serves the sync trigger and run-history endpoints.
type SyncHandler struct {
	trigger SyncTrigger
	logs    domain.SyncLogStore
	logger  *slog.Logger
}

// NewSyncHandler creates a SyncHandler.
func NewSyncHandler(trigger SyncTrigger, logs domain.SyncLogStore, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{
		trigger: trigger,
		logs:    logs,
		logger:  logger,
	}
}

// TriggerSync runs a sync immediately. A run already in progress responds
// with 409.
// POST /api/sync
func (h *SyncHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	entry, err := h.trigger.SyncOnce(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrSyncInProgress) {
			writeError(w, http.StatusConflict, "sync already in progress")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: sync trigger failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "sync failed")
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

// ListRuns returns recent sync runs, newest first.
// GET /api/sync/logs?limit=20
func (h *SyncHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := parsePage(r)

	entries, err := h.logs.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list sync runs failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list sync runs")
		return
	}
	if entries == nil {
		entries = []domain.SyncLog{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"runs": entries})
}
