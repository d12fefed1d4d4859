package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/h4d-assistant/book-chat/internal/middleware"
	"github.com/h4d-assistant/book-chat/internal/model"
	"github.com/h4d-assistant/book-chat/pkg/logger"
)

// EventReplayer reads journaled events of an exchange.
type EventReplayer interface {
	Replay(ctx context.Context, exchangeID string, limit int) ([]model.JournalRecord, error)
}

// ReplayHandler serves journaled exchange events.
type ReplayHandler struct {
	journal EventReplayer
	logger  *logger.Logger
}

// NewReplayHandler creates a replay handler. journal may be nil when journaling is disabled.
func NewReplayHandler(journal EventReplayer, log *logger.Logger) *ReplayHandler {
	return &ReplayHandler{
		journal: journal,
		logger:  log,
	}
}

// Events handles GET /api/exchanges/{id}/events
func (h *ReplayHandler) Events(w http.ResponseWriter, r *http.Request) {
	exchangeID := chi.URLParam(r, "id")
	if err := middleware.ValidateExchangeID(exchangeID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.journal == nil {
		writeError(w, http.StatusNotFound, "event journal disabled")
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records, err := h.journal.Replay(r.Context(), exchangeID, limit)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		h.logger.Error("failed to replay exchange", zap.String("exchange_id", exchangeID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to replay events")
		return
	}
	if len(records) == 0 {
		writeError(w, http.StatusNotFound, "exchange not found")
		return
	}

	writeJSON(w, http.StatusOK, &model.ReplayResponse{
		ExchangeID: exchangeID,
		Records:    records,
	})
}
