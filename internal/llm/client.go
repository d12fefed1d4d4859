// Package llm provides clients for the hosted assistant and knowledge base APIs.
package llm

import (
	"context"
	"encoding/json"

	"github.com/h4d-assistant/book-chat/internal/model"
)

// AssistantClient is the thread/run surface of the hosted assistant service.
type AssistantClient interface {
	// CreateThread creates an empty thread and returns its id.
	CreateThread(ctx context.Context) (string, error)

	// RetrieveThread resolves an existing thread id.
	RetrieveThread(ctx context.Context, threadID string) (string, error)

	// AppendMessage adds a message to a thread.
	AppendMessage(ctx context.Context, threadID string, role model.Role, content string) error

	// CreateRun starts an assistant run on a thread.
	CreateRun(ctx context.Context, threadID, assistantID string) (*model.Run, error)

	// RetrieveRun fetches the current state of a run.
	RetrieveRun(ctx context.Context, threadID, runID string) (*model.Run, error)

	// SubmitToolOutputs resolves a requires_action batch in one call.
	SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []model.ToolOutput) (*model.Run, error)

	// CancelRun asks the host to stop a run.
	CancelRun(ctx context.Context, threadID, runID string) error

	// LatestMessage returns the most recent message of a thread.
	LatestMessage(ctx context.Context, threadID string) (*model.ThreadMessage, error)
}

// AssistantSpec is the static definition an assistant is provisioned with.
type AssistantSpec struct {
	Name         string
	Model        string
	Instructions string
	Tools        []FunctionSpec
}

// FunctionSpec declares one function tool to the hosted assistant.
type FunctionSpec struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// AssistantManager provisions hosted assistants.
type AssistantManager interface {
	// FindAssistant returns the id of the assistant with the given name, or "" when absent.
	FindAssistant(ctx context.Context, name string) (string, error)

	// CreateAssistant creates an assistant and returns its id.
	CreateAssistant(ctx context.Context, spec AssistantSpec) (string, error)

	// UpdateAssistant overwrites an assistant's definition.
	UpdateAssistant(ctx context.Context, assistantID string, spec AssistantSpec) error
}

// Passage is one text segment returned by a knowledge base search.
type Passage struct {
	Text      string
	Citations []Citation
}

// Citation points back at the indexed file a passage came from.
type Citation struct {
	FileID   string `json:"file_id"`
	Filename string `json:"filename,omitempty"`
}

// SearchRequest is a single knowledge base query.
type SearchRequest struct {
	VectorStoreID string
	Query         string
	MaxResults    int
}

// Searcher runs file searches against a hosted vector store.
type Searcher interface {
	Search(ctx context.Context, req SearchRequest) ([]Passage, error)
}
