// Package retrieval executes knowledge base lookups on behalf of the assistant.
package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/h4d-assistant/book-chat/internal/llm"
	"github.com/h4d-assistant/book-chat/pkg/logger"
	"github.com/h4d-assistant/book-chat/pkg/metrics"
)

const (
	// MinResults and MaxResults bound the number of passages requested per query.
	MinResults = 1
	MaxResults = 10
)

// Status is the normalized outcome of a retrieval.
type Status string

const (
	StatusSuccess Status = "success"
	StatusNoData  Status = "no_data"
	StatusError   Status = "error"
)

// Passage is one retrieved text segment.
type Passage struct {
	TextContent string         `json:"text_content"`
	Citations   []llm.Citation `json:"citations,omitempty"`
}

// Result is the payload handed back to the assistant as a tool output.
type Result struct {
	Status   Status    `json:"status"`
	Passages []Passage `json:"retrieved_passages,omitempty"`
	Message  string    `json:"message,omitempty"`
}

// JSON serializes the result for submission as a tool output.
func (r Result) JSON() string {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf(`{"status":"error","message":%q}`, err.Error())
	}
	return string(data)
}

// ClampResults bounds n to [MinResults, MaxResults].
func ClampResults(n int) int {
	if n < MinResults {
		return MinResults
	}
	if n > MaxResults {
		return MaxResults
	}
	return n
}

// Gateway runs single queries against the configured vector store.
type Gateway struct {
	searcher      llm.Searcher
	vectorStoreID string
	logger        *logger.Logger
}

// NewGateway creates a gateway; an empty vectorStoreID leaves the knowledge base unconfigured.
func NewGateway(searcher llm.Searcher, vectorStoreID string, log *logger.Logger) *Gateway {
	return &Gateway{
		searcher:      searcher,
		vectorStoreID: vectorStoreID,
		logger:        log,
	}
}

// Retrieve looks up passages for query. Failures are reported in the result, never returned.
func (g *Gateway) Retrieve(ctx context.Context, query string, maxResults int) Result {
	if g.vectorStoreID == "" || g.searcher == nil {
		metrics.RecordRetrieval(string(StatusError), 0)
		return Result{Status: StatusError, Message: "Knowledge base not configured."}
	}

	start := time.Now()
	n := ClampResults(maxResults)

	passages, err := g.searcher.Search(ctx, llm.SearchRequest{
		VectorStoreID: g.vectorStoreID,
		Query:         query,
		MaxResults:    n,
	})

	var res Result
	switch {
	case err != nil:
		g.logger.Warn("retrieval failed", zap.String("query", query), zap.Error(err))
		res = Result{Status: StatusError, Message: fmt.Sprintf("Tool execution failed: %v", err)}
	case len(passages) == 0:
		res = Result{Status: StatusNoData, Message: "No relevant text found."}
	default:
		res = Result{Status: StatusSuccess, Passages: make([]Passage, len(passages))}
		for i, p := range passages {
			res.Passages[i] = Passage{TextContent: p.Text, Citations: p.Citations}
		}
	}

	metrics.RecordRetrieval(string(res.Status), time.Since(start).Seconds())
	g.logger.Debug("retrieval finished",
		zap.String("status", string(res.Status)),
		zap.Int("max_results", n),
		zap.Int("passages", len(res.Passages)),
	)
	return res
}
