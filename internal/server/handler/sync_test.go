package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/polydeck/polydeck/internal/domain"
)

type fakeSyncTrigger struct {
	entry domain.SyncLog
	err   error
}

func (f *fakeSyncTrigger) SyncOnce(context.Context) (domain.SyncLog, error) {
	return f.entry, f.err
}

type fakeSyncLogStore struct {
	entries []domain.SyncLog
	err     error
}

func (f *fakeSyncLogStore) Insert(context.Context, domain.SyncLog) error { return nil }

func (f *fakeSyncLogStore) ListRecent(context.Context, int) ([]domain.SyncLog, error) {
	return f.entries, f.err
}

func newSyncHandler(trigger *fakeSyncTrigger, logs *fakeSyncLogStore) *SyncHandler {
	return NewSyncHandler(trigger, logs, slog.New(slog.DiscardHandler))
}

func TestTriggerSync(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		trigger := &fakeSyncTrigger{entry: domain.SyncLog{
			ID:     "run-1",
			Status: domain.SyncStatusSuccess,
			Count:  42,
		}}
		h := newSyncHandler(trigger, &fakeSyncLogStore{})

		req := httptest.NewRequest(http.MethodPost, "/api/sync", nil)
		rec := httptest.NewRecorder()
		h.TriggerSync(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var entry domain.SyncLog
		if err := json.Unmarshal(rec.Body.Bytes(), &entry); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if entry.ID != "run-1" || entry.Count != 42 {
			t.Errorf("entry = %+v", entry)
		}
	})

	t.Run("already running", func(t *testing.T) {
		h := newSyncHandler(&fakeSyncTrigger{err: domain.ErrSyncInProgress}, &fakeSyncLogStore{})

		req := httptest.NewRequest(http.MethodPost, "/api/sync", nil)
		rec := httptest.NewRecorder()
		h.TriggerSync(rec, req)

		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", rec.Code)
		}
	})

	t.Run("run failure", func(t *testing.T) {
		h := newSyncHandler(&fakeSyncTrigger{err: errors.New("all views failed")}, &fakeSyncLogStore{})

		req := httptest.NewRequest(http.MethodPost, "/api/sync", nil)
		rec := httptest.NewRecorder()
		h.TriggerSync(rec, req)

		if rec.Code != http.StatusBadGateway {
			t.Fatalf("status = %d, want 502", rec.Code)
		}
	})
}

func TestListRuns(t *testing.T) {
	logs := &fakeSyncLogStore{entries: []domain.SyncLog{
		{ID: "run-2"},
		{ID: "run-1"},
	}}
	h := newSyncHandler(&fakeSyncTrigger{}, logs)

	req := httptest.NewRequest(http.MethodGet, "/api/sync/logs", nil)
	rec := httptest.NewRecorder()
	h.ListRuns(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string][]domain.SyncLog
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp["runs"]) != 2 || resp["runs"][0].ID != "run-2" {
		t.Errorf("runs = %+v, want run-2 first", resp["runs"])
	}
}
