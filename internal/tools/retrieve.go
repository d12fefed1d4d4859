package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/h4d-assistant/book-chat/internal/retrieval"
)

// RetrieveBookInfoName is the tool name the assistant is provisioned with.
const RetrieveBookInfoName = "retrieve_book_info"

const defaultMaxResults = 10

// Retriever runs one knowledge base lookup.
type Retriever interface {
	Retrieve(ctx context.Context, query string, maxResults int) retrieval.Result
}

// RetrieveBookInfoArgs are the arguments of retrieve_book_info.
type RetrieveBookInfoArgs struct {
	Query      string `json:"query" jsonschema_description:"Search query describing the information needed from the book."`
	MaxResults *int   `json:"max_results,omitempty" jsonschema_description:"Maximum passages to return. Clamped to 1..10 and defaults to 10."`
}

// MaxResultsOrDefault returns the requested passage count or the default.
func (a RetrieveBookInfoArgs) MaxResultsOrDefault() int {
	if a.MaxResults == nil {
		return defaultMaxResults
	}
	return *a.MaxResults
}

// RetrieveBookInfo exposes the retrieval gateway to the assistant.
type RetrieveBookInfo struct {
	retriever Retriever
	schema    json.RawMessage
}

// NewRetrieveBookInfo builds the tool over retriever.
func NewRetrieveBookInfo(retriever Retriever) (*RetrieveBookInfo, error) {
	schema, err := SchemaFor(&RetrieveBookInfoArgs{})
	if err != nil {
		return nil, err
	}
	return &RetrieveBookInfo{retriever: retriever, schema: schema}, nil
}

func (t *RetrieveBookInfo) Name() string { return RetrieveBookInfoName }

func (t *RetrieveBookInfo) Description() string {
	return "Retrieve information from the book's knowledge base using a query. Use this for questions about the book's content."
}

func (t *RetrieveBookInfo) Schema() json.RawMessage { return t.schema }

// Execute decodes the arguments and returns the serialized retrieval result.
func (t *RetrieveBookInfo) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	var args RetrieveBookInfoArgs
	if err := decodeParams(params, &args); err != nil {
		return "", err
	}
	if strings.TrimSpace(args.Query) == "" {
		return "", fmt.Errorf("%w: query is required", ErrInvalidArguments)
	}
	return t.retriever.Retrieve(ctx, args.Query, args.MaxResultsOrDefault()).JSON(), nil
}

// Describe summarizes the query and passage count of a call.
func (t *RetrieveBookInfo) Describe(params json.RawMessage) string {
	maxResults := int64(defaultMaxResults)
	if mr := gjson.GetBytes(params, "max_results"); mr.Exists() {
		maxResults = mr.Int()
	}
	query := gjson.GetBytes(params, "query").String()
	return fmt.Sprintf("Assistant calling: %s | Query: '%s' | Max results: %d", t.Name(), query, maxResults)
}
