package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/h4d-assistant/book-chat/internal/model"
	"github.com/h4d-assistant/book-chat/pkg/logger"
)

// Tee delivers every event to a primary emitter and best-effort side emitters.
// Only primary errors are returned.
type Tee struct {
	primary Emitter
	sides   []Emitter
	logger  *logger.Logger
}

// NewTee creates a tee; nil side emitters are skipped.
func NewTee(primary Emitter, log *logger.Logger, sides ...Emitter) *Tee {
	t := &Tee{primary: primary, logger: log}
	for _, s := range sides {
		if s != nil {
			t.sides = append(t.sides, s)
		}
	}
	return t
}

// Emit sends ev to the primary emitter first, then to each side emitter.
func (t *Tee) Emit(ctx context.Context, ev model.Event) error {
	err := t.primary.Emit(ctx, ev)
	for _, s := range t.sides {
		if sideErr := s.Emit(ctx, ev); sideErr != nil {
			t.logger.Warn("side emitter failed",
				zap.String("event_type", string(ev.Type)),
				zap.Error(sideErr),
			)
		}
	}
	return err
}
