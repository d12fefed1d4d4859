// Package service provides the session boundary of the chat server.
package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/h4d-assistant/book-chat/internal/events"
	"github.com/h4d-assistant/book-chat/internal/model"
	"github.com/h4d-assistant/book-chat/internal/runner"
	"github.com/h4d-assistant/book-chat/pkg/logger"
	"github.com/h4d-assistant/book-chat/pkg/metrics"
)

// ErrEmptyMessage is returned when a chat request carries no message.
var ErrEmptyMessage = errors.New("message is required")

// Runner executes one exchange against the hosted assistant.
type Runner interface {
	Run(ctx context.Context, ex runner.Exchange, sink events.Emitter) runner.Outcome
}

// Journal provides a per-exchange side emitter.
type Journal interface {
	ForExchange(exchangeID string) events.Emitter
}

// ChatService handles chat exchanges.
type ChatService struct {
	runner  Runner
	journal Journal
	logger  *logger.Logger
}

// NewChatService creates a chat service. journal may be nil.
func NewChatService(r Runner, journal Journal, log *logger.Logger) *ChatService {
	return &ChatService{
		runner:  r,
		journal: journal,
		logger:  log,
	}
}

// NewExchangeID allocates an id for a new exchange.
func NewExchangeID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Validate checks a request before any event is produced.
func (s *ChatService) Validate(req *model.ChatRequest) error {
	if req == nil || req.Message == "" {
		return ErrEmptyMessage
	}
	return nil
}

// Handle runs one exchange and relays its events to sink.
// Invalid requests are rejected before any event is emitted; otherwise
// the stream always ends with exactly one final or error event.
func (s *ChatService) Handle(ctx context.Context, exchangeID string, req *model.ChatRequest, sink events.Emitter) (runner.Outcome, error) {
	if err := s.Validate(req); err != nil {
		return runner.Outcome{}, err
	}
	if exchangeID == "" {
		exchangeID = NewExchangeID()
	}

	var out events.Emitter = sink
	if s.journal != nil {
		out = events.NewTee(sink, s.logger, s.journal.ForExchange(exchangeID))
	}

	outcome := s.runner.Run(ctx, runner.Exchange{
		ID:         exchangeID,
		ThreadHint: req.ThreadID,
		Message:    req.Message,
	}, out)

	metrics.ExchangesTotal.WithLabelValues(string(outcome.Terminal.Type)).Inc()
	s.logger.Info("exchange finished",
		zap.String("exchange_id", exchangeID),
		zap.String("thread_id", outcome.ThreadID),
		zap.Bool("thread_created", outcome.ThreadCreated),
		zap.String("run_id", outcome.RunID),
		zap.String("run_status", string(outcome.RunStatus)),
		zap.String("outcome", string(outcome.Terminal.Type)),
	)
	return outcome, nil
}
