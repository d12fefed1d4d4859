package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/h4d-assistant/book-chat/internal/events"
	"github.com/h4d-assistant/book-chat/internal/model"
	"github.com/h4d-assistant/book-chat/pkg/logger"
	"github.com/h4d-assistant/book-chat/pkg/metrics"
)

const (
	// StreamName is the name of the exchange journal stream.
	StreamName = "EXCHANGES"

	// SubjectPrefix is the prefix for all journal subjects.
	SubjectPrefix = "chat"

	// DefaultReplayLimit bounds the records returned by one replay.
	DefaultReplayLimit = 500

	publishTimeout = 5 * time.Second
	fetchMaxWait   = 2 * time.Second
)

// ErrInvalidExchangeID is returned for ids that cannot form a subject token.
var ErrInvalidExchangeID = errors.New("invalid exchange ID")

// Journal persists every emitted event of an exchange so it can be replayed.
type Journal struct {
	js     jetstream.JetStream
	logger *logger.Logger
	now    func() time.Time
}

// NewJournal creates a journal over a JetStream context.
func NewJournal(js jetstream.JetStream, log *logger.Logger) *Journal {
	return &Journal{
		js:     js,
		logger: log,
		now:    time.Now,
	}
}

// EnsureStream ensures the exchange stream exists with proper configuration.
func (j *Journal) EnsureStream(ctx context.Context) error {
	if _, err := j.js.Stream(ctx, StreamName); err == nil {
		return nil
	}

	_, err := j.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		MaxBytes:    1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Events emitted by chat exchanges",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// EventSubject returns the subject for an event of an exchange.
func EventSubject(exchangeID string, eventType model.EventType) string {
	return fmt.Sprintf("%s.%s.event.%s", SubjectPrefix, exchangeID, eventType)
}

// ExchangeFilter returns the filter subject for all events of an exchange.
func ExchangeFilter(exchangeID string) string {
	return fmt.Sprintf("%s.%s.event.>", SubjectPrefix, exchangeID)
}

func validateExchangeID(id string) error {
	if id == "" || strings.ContainsAny(id, ".*> \t\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidExchangeID, id)
	}
	return nil
}

// PublishEvent publishes a journal record and returns its stream sequence.
func (j *Journal) PublishEvent(ctx context.Context, rec *model.JournalRecord) (uint64, error) {
	if err := validateExchangeID(rec.ExchangeID); err != nil {
		return 0, err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	ack, err := j.js.Publish(ctx, EventSubject(rec.ExchangeID, rec.Event.Type), data)
	if err != nil {
		return 0, fmt.Errorf("failed to publish event: %w", err)
	}
	return ack.Sequence, nil
}

// ForExchange returns an emitter that journals events of one exchange.
// Publishing outlives the request context so events after a client
// disconnect are still recorded.
func (j *Journal) ForExchange(exchangeID string) events.Emitter {
	return events.EmitterFunc(func(ctx context.Context, ev model.Event) error {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()

		_, err := j.PublishEvent(pctx, &model.JournalRecord{
			ExchangeID: exchangeID,
			Event:      ev,
			CreatedAt:  j.now().UTC(),
		})
		if err != nil {
			metrics.JournalPublishErrors.Inc()
		}
		return err
	})
}

// Replay returns the journaled events of an exchange in publish order.
func (j *Journal) Replay(ctx context.Context, exchangeID string, limit int) ([]model.JournalRecord, error) {
	if err := validateExchangeID(exchangeID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > DefaultReplayLimit {
		limit = DefaultReplayLimit
	}

	consumer, err := j.js.CreateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		FilterSubject:     ExchangeFilter(exchangeID),
		AckPolicy:         jetstream.AckNonePolicy,
		DeliverPolicy:     jetstream.DeliverAllPolicy,
		InactiveThreshold: time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	pending := consumer.CachedInfo().NumPending
	if pending == 0 {
		return nil, nil
	}
	if pending < uint64(limit) {
		limit = int(pending)
	}

	batch, err := consumer.Fetch(limit, jetstream.FetchMaxWait(fetchMaxWait))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}

	records := make([]model.JournalRecord, 0, limit)
	for msg := range batch.Messages() {
		var rec model.JournalRecord
		if err := json.Unmarshal(msg.Data(), &rec); err != nil {
			j.logger.Warn("skipping malformed journal record",
				zap.String("subject", msg.Subject()),
				zap.Error(err),
			)
			continue
		}
		if meta, err := msg.Metadata(); err == nil {
			rec.Sequence = meta.Sequence.Stream
		}
		records = append(records, rec)
	}

	if err := batch.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, nats.ErrTimeout) {
		return nil, fmt.Errorf("batch error: %w", err)
	}
	return records, nil
}
