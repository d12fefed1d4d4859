package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h4d-assistant/book-chat/internal/llm"
	"github.com/h4d-assistant/book-chat/pkg/logger"
)

type countingSearcher struct {
	calls    int
	last     llm.SearchRequest
	passages []llm.Passage
	err      error
}

func (s *countingSearcher) Search(ctx context.Context, req llm.SearchRequest) ([]llm.Passage, error) {
	s.calls++
	s.last = req
	return s.passages, s.err
}

func TestClampResults(t *testing.T) {
	assert.Equal(t, 10, ClampResults(50))
	assert.Equal(t, 1, ClampResults(0))
	assert.Equal(t, 1, ClampResults(-3))
	assert.Equal(t, 7, ClampResults(7))
}

func TestRetrieve_ClampsMaxResults(t *testing.T) {
	s := &countingSearcher{passages: []llm.Passage{{Text: "a"}}}
	g := NewGateway(s, "vs_1", logger.NewNop())

	g.Retrieve(context.Background(), "anything", 50)
	assert.Equal(t, 10, s.last.MaxResults)

	g.Retrieve(context.Background(), "x", 0)
	assert.Equal(t, 1, s.last.MaxResults)
	assert.Equal(t, "vs_1", s.last.VectorStoreID)
	assert.Equal(t, 2, s.calls, "one backend request per call")
}

func TestRetrieve_UnconfiguredNeverCallsBackend(t *testing.T) {
	s := &countingSearcher{}
	g := NewGateway(s, "", logger.NewNop())

	res := g.Retrieve(context.Background(), "anything", 5)

	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, "Knowledge base not configured.", res.Message)
	assert.Zero(t, s.calls)
}

func TestRetrieve_NoData(t *testing.T) {
	g := NewGateway(&countingSearcher{}, "vs_1", logger.NewNop())

	res := g.Retrieve(context.Background(), "q", 3)

	assert.Equal(t, StatusNoData, res.Status)
	assert.Empty(t, res.Passages)
}

func TestRetrieve_BackendErrorIsCaptured(t *testing.T) {
	g := NewGateway(&countingSearcher{err: errors.New("boom")}, "vs_1", logger.NewNop())

	res := g.Retrieve(context.Background(), "q", 3)

	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, "Tool execution failed: boom", res.Message)
}

func TestRetrieve_SuccessKeepsOrderAndCitations(t *testing.T) {
	s := &countingSearcher{passages: []llm.Passage{
		{Text: "first", Citations: []llm.Citation{{FileID: "file_1"}}},
		{Text: "second"},
	}}
	g := NewGateway(s, "vs_1", logger.NewNop())

	res := g.Retrieve(context.Background(), "q", 3)

	require.Equal(t, StatusSuccess, res.Status)
	require.Len(t, res.Passages, 2)
	assert.Equal(t, "first", res.Passages[0].TextContent)
	assert.Equal(t, "file_1", res.Passages[0].Citations[0].FileID)
	assert.Equal(t, "second", res.Passages[1].TextContent)
}

func TestResultJSON(t *testing.T) {
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(Result{
		Status:   StatusSuccess,
		Passages: []Passage{{TextContent: "hi"}},
	}.JSON()), &decoded))

	assert.Equal(t, "success", decoded["status"])
	passages := decoded["retrieved_passages"].([]any)
	assert.Equal(t, "hi", passages[0].(map[string]any)["text_content"])

	assert.JSONEq(t, `{"status":"no_data","message":"No relevant text found."}`,
		Result{Status: StatusNoData, Message: "No relevant text found."}.JSON())
}
