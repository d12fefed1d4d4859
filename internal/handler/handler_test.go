package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h4d-assistant/book-chat/internal/events"
	"github.com/h4d-assistant/book-chat/internal/middleware"
	"github.com/h4d-assistant/book-chat/internal/model"
	"github.com/h4d-assistant/book-chat/internal/runner"
	"github.com/h4d-assistant/book-chat/internal/service"
	"github.com/h4d-assistant/book-chat/pkg/logger"
)

type scriptedRunner struct {
	calls []runner.Exchange
}

func (s *scriptedRunner) Run(ctx context.Context, ex runner.Exchange, sink events.Emitter) runner.Outcome {
	s.calls = append(s.calls, ex)
	threadID := ex.ThreadHint
	if threadID == "" {
		threadID = "thread_new"
		_ = sink.Emit(ctx, model.Thinking("New thread created."))
		_ = sink.Emit(ctx, model.ThreadCreated(threadID))
	}
	_ = sink.Emit(ctx, model.Thinking("User message added. Running assistant..."))
	final := model.Final(threadID, "The book has **three** parts.")
	_ = sink.Emit(ctx, final)
	return runner.Outcome{ThreadID: threadID, Terminal: final}
}

func newChatRouter(r *scriptedRunner) http.Handler {
	log := logger.NewNop()
	h := NewChatHandler(service.NewChatService(r, nil, log), log)

	router := chi.NewRouter()
	router.Use(middleware.Logging(log))
	router.Post("/api/chat", h.Chat)
	return router
}

func decodeStream(t *testing.T, body string) []map[string]any {
	t.Helper()
	var records []map[string]any
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		require.True(t, strings.HasPrefix(line, "data: "), line)
		var record map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &record))
		records = append(records, record)
	}
	return records
}

func TestChat_RejectsMissingMessage(t *testing.T) {
	for name, body := range map[string]string{
		"empty object":  `{}`,
		"empty message": `{"message":"","thread_id":"thread_1"}`,
		"not json":      `message=hi`,
		"empty body":    ``,
	} {
		t.Run(name, func(t *testing.T) {
			r := &scriptedRunner{}
			rec := httptest.NewRecorder()
			newChatRouter(r).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body)))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.JSONEq(t, `{"error":"Message is required"}`, rec.Body.String())
			assert.Empty(t, rec.Header().Get("X-Exchange-ID"))
			assert.Empty(t, r.calls)
		})
	}
}

func TestChat_StreamsEvents(t *testing.T) {
	r := &scriptedRunner{}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"How many parts?"}`))
	req.Header.Set("Content-Type", "application/json")

	newChatRouter(r).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.NoError(t, middleware.ValidateExchangeID(rec.Header().Get("X-Exchange-ID")))
	assert.True(t, rec.Flushed)

	records := decodeStream(t, rec.Body.String())
	require.Len(t, records, 4)
	assert.Equal(t, "thread_created", records[1]["type"])
	assert.Equal(t, "thread_new", records[1]["thread_id"])

	last := records[len(records)-1]
	assert.Equal(t, "final", last["type"])
	assert.Equal(t, map[string]any{"format": "markdown", "text": "The book has **three** parts."}, last["content"])

	require.Len(t, r.calls, 1)
	assert.Equal(t, "How many parts?", r.calls[0].Message)
	assert.Equal(t, rec.Header().Get("X-Exchange-ID"), r.calls[0].ID)
}

func TestChat_PassesContinuationToken(t *testing.T) {
	r := &scriptedRunner{}
	rec := httptest.NewRecorder()
	newChatRouter(r).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"message":"And the next step?","thread_id":"thread_42"}`)))

	require.Len(t, r.calls, 1)
	assert.Equal(t, "thread_42", r.calls[0].ThreadHint)

	for _, record := range decodeStream(t, rec.Body.String()) {
		assert.NotEqual(t, "thread_created", record["type"])
	}
}

func TestChat_DropsUnusableThreadID(t *testing.T) {
	r := &scriptedRunner{}
	rec := httptest.NewRecorder()
	body := `{"message":"hi","thread_id":"` + strings.Repeat("x", 300) + `"}`
	newChatRouter(r).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, r.calls, 1)
	assert.Empty(t, r.calls[0].ThreadHint)
}

type fakeReplayer struct {
	records []model.JournalRecord
	err     error
}

func (f *fakeReplayer) Replay(ctx context.Context, exchangeID string, limit int) ([]model.JournalRecord, error) {
	return f.records, f.err
}

func serveReplay(h *ReplayHandler, path string) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	router.Get("/api/exchanges/{id}/events", h.Events)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestReplay(t *testing.T) {
	const id = "0190a6f0-0000-7000-8000-000000000001"
	log := logger.NewNop()

	t.Run("journal disabled", func(t *testing.T) {
		rec := serveReplay(NewReplayHandler(nil, log), "/api/exchanges/"+id+"/events")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		rec := serveReplay(NewReplayHandler(&fakeReplayer{}, log), "/api/exchanges/not-an-id/events")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown exchange", func(t *testing.T) {
		rec := serveReplay(NewReplayHandler(&fakeReplayer{}, log), "/api/exchanges/"+id+"/events")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("backend error", func(t *testing.T) {
		rec := serveReplay(NewReplayHandler(&fakeReplayer{err: errors.New("stream missing")}, log), "/api/exchanges/"+id+"/events")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("records", func(t *testing.T) {
		replayer := &fakeReplayer{records: []model.JournalRecord{
			{ExchangeID: id, Event: model.Thinking("User message added. Running assistant..."), Sequence: 7},
			{ExchangeID: id, Event: model.Final("thread_1", "done"), Sequence: 8},
		}}
		rec := serveReplay(NewReplayHandler(replayer, log), "/api/exchanges/"+id+"/events?limit=10")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			ExchangeID string `json:"exchange_id"`
			Records    []struct {
				Sequence uint64 `json:"sequence"`
				Event    struct {
					Type string `json:"type"`
				} `json:"event"`
			} `json:"records"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, id, resp.ExchangeID)
		require.Len(t, resp.Records, 2)
		assert.Equal(t, "final", resp.Records[1].Event.Type)
		assert.EqualValues(t, 8, resp.Records[1].Sequence)
	})
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(nil, "asst_1").Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestReady(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(nil, "asst_1").Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready","journal":"disabled"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	NewHealthHandler(nil, "").Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
