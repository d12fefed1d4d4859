// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/h4d-assistant/book-chat/internal/events"
	"github.com/h4d-assistant/book-chat/internal/middleware"
	"github.com/h4d-assistant/book-chat/internal/model"
	"github.com/h4d-assistant/book-chat/internal/service"
	"github.com/h4d-assistant/book-chat/pkg/logger"
	"github.com/h4d-assistant/book-chat/pkg/metrics"
)

// maxRequestBody bounds the JSON body of a chat request.
const maxRequestBody = 1 << 20

// ChatHandler handles chat endpoints.
type ChatHandler struct {
	service *service.ChatService
	logger  *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(svc *service.ChatService, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		service: svc,
		logger:  log,
	}
}

// Chat handles POST /api/chat
// Invalid requests get a JSON 400; everything else is answered with an event stream.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}
	if err := h.service.Validate(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}
	if err := middleware.ValidateMessage(req.Message); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	exchangeID := service.NewExchangeID()
	log := h.logger.WithExchange(exchangeID, middleware.GetCorrelationID(ctx))

	if err := middleware.ValidateThreadID(req.ThreadID); err != nil {
		log.Debug("ignoring unusable thread id", zap.Int("length", len(req.ThreadID)))
		req.ThreadID = ""
	}

	w.Header().Set("X-Exchange-ID", exchangeID)
	sse, err := events.NewSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	out, err := h.service.Handle(ctx, exchangeID, &req, sse)
	if err != nil {
		log.Error("exchange rejected after stream opened", zap.Error(err))
		return
	}
	if ctx.Err() != nil {
		log.Info("client disconnected before exchange finished",
			zap.String("thread_id", out.ThreadID),
			zap.String("outcome", string(out.Terminal.Type)),
		)
	}
}
