package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h4d-assistant/book-chat/internal/events"
	"github.com/h4d-assistant/book-chat/internal/model"
	"github.com/h4d-assistant/book-chat/internal/runner"
	"github.com/h4d-assistant/book-chat/pkg/logger"
)

type fakeRunner struct {
	calls []runner.Exchange
}

func (f *fakeRunner) Run(ctx context.Context, ex runner.Exchange, sink events.Emitter) runner.Outcome {
	f.calls = append(f.calls, ex)
	final := model.Final("thread_1", "done")
	_ = sink.Emit(ctx, model.Thinking("User message added. Running assistant..."))
	_ = sink.Emit(ctx, final)
	return runner.Outcome{ThreadID: "thread_1", Terminal: final}
}

type fakeJournal struct {
	byExchange map[string]*events.Recorder
	fail       bool
}

func (f *fakeJournal) ForExchange(exchangeID string) events.Emitter {
	if f.fail {
		return events.EmitterFunc(func(context.Context, model.Event) error {
			return errors.New("journal unavailable")
		})
	}
	if f.byExchange == nil {
		f.byExchange = map[string]*events.Recorder{}
	}
	rec := &events.Recorder{}
	f.byExchange[exchangeID] = rec
	return rec
}

func TestChatService_RejectsEmptyMessageBeforeEvents(t *testing.T) {
	r := &fakeRunner{}
	svc := NewChatService(r, nil, logger.NewNop())
	sink := &events.Recorder{}

	_, err := svc.Handle(context.Background(), "", &model.ChatRequest{ThreadID: "thread_1"}, sink)

	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, sink.Events())
	assert.Empty(t, r.calls)

	_, err = svc.Handle(context.Background(), "", nil, sink)
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestChatService_PassesThreadHint(t *testing.T) {
	r := &fakeRunner{}
	svc := NewChatService(r, nil, logger.NewNop())
	sink := &events.Recorder{}

	out, err := svc.Handle(context.Background(), "ex-1", &model.ChatRequest{Message: "hello", ThreadID: "thread_1"}, sink)
	require.NoError(t, err)

	require.Len(t, r.calls, 1)
	assert.Equal(t, runner.Exchange{ID: "ex-1", ThreadHint: "thread_1", Message: "hello"}, r.calls[0])
	assert.Equal(t, model.EventTypeFinal, out.Terminal.Type)
	assert.Equal(t, []model.EventType{model.EventTypeThinking, model.EventTypeFinal}, sink.Types())
}

func TestChatService_JournalsEveryEvent(t *testing.T) {
	j := &fakeJournal{}
	svc := NewChatService(&fakeRunner{}, j, logger.NewNop())
	sink := &events.Recorder{}

	_, err := svc.Handle(context.Background(), "ex-2", &model.ChatRequest{Message: "hello"}, sink)
	require.NoError(t, err)

	require.Contains(t, j.byExchange, "ex-2")
	assert.Equal(t, sink.Events(), j.byExchange["ex-2"].Events())
}

func TestChatService_JournalFailureKeepsStream(t *testing.T) {
	svc := NewChatService(&fakeRunner{}, &fakeJournal{fail: true}, logger.NewNop())
	sink := &events.Recorder{}

	_, err := svc.Handle(context.Background(), "ex-3", &model.ChatRequest{Message: "hello"}, sink)
	require.NoError(t, err)
	assert.Len(t, sink.Events(), 2)
}

func TestChatService_AllocatesExchangeID(t *testing.T) {
	r := &fakeRunner{}
	svc := NewChatService(r, nil, logger.NewNop())

	_, err := svc.Handle(context.Background(), "", &model.ChatRequest{Message: "hello"}, &events.Recorder{})
	require.NoError(t, err)

	require.Len(t, r.calls, 1)
	assert.NotEmpty(t, r.calls[0].ID)
	assert.NotEqual(t, NewExchangeID(), NewExchangeID())
}
