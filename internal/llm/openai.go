package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/h4d-assistant/book-chat/internal/model"
)

// assistantsBeta is the Assistants API revision the service speaks.
const assistantsBeta = "assistants=v2"

// OpenAIClient is the hosted assistant client backed by the OpenAI Assistants API.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient creates a new OpenAI Assistants client.
func NewOpenAIClient(apiKey, baseURL string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Transport: betaHeaderTransport{base: http.DefaultTransport}}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
	}, nil
}

// betaHeaderTransport pins the OpenAI-Beta header to the supported Assistants revision.
type betaHeaderTransport struct {
	base http.RoundTripper
}

func (t betaHeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("OpenAI-Beta") != "" {
		req = req.Clone(req.Context())
		req.Header.Set("OpenAI-Beta", assistantsBeta)
	}
	return t.base.RoundTrip(req)
}

// CreateThread creates an empty thread.
func (c *OpenAIClient) CreateThread(ctx context.Context) (string, error) {
	thread, err := c.client.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	return thread.ID, nil
}

// RetrieveThread resolves an existing thread.
func (c *OpenAIClient) RetrieveThread(ctx context.Context, threadID string) (string, error) {
	thread, err := c.client.RetrieveThread(ctx, threadID)
	if err != nil {
		return "", fmt.Errorf("retrieve thread: %w", err)
	}
	return thread.ID, nil
}

// AppendMessage adds a message to a thread.
func (c *OpenAIClient) AppendMessage(ctx context.Context, threadID string, role model.Role, content string) error {
	_, err := c.client.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    string(role),
		Content: content,
	})
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

// CreateRun starts a run of the assistant on the thread.
func (c *OpenAIClient) CreateRun(ctx context.Context, threadID, assistantID string) (*model.Run, error) {
	run, err := c.client.CreateRun(ctx, threadID, openai.RunRequest{
		AssistantID: assistantID,
	})
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return toRun(run), nil
}

// RetrieveRun fetches the current run state.
func (c *OpenAIClient) RetrieveRun(ctx context.Context, threadID, runID string) (*model.Run, error) {
	run, err := c.client.RetrieveRun(ctx, threadID, runID)
	if err != nil {
		return nil, fmt.Errorf("retrieve run: %w", err)
	}
	return toRun(run), nil
}

// SubmitToolOutputs resolves all pending tool calls of a run.
func (c *OpenAIClient) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []model.ToolOutput) (*model.Run, error) {
	req := openai.SubmitToolOutputsRequest{
		ToolOutputs: make([]openai.ToolOutput, len(outputs)),
	}
	for i, out := range outputs {
		req.ToolOutputs[i] = openai.ToolOutput{
			ToolCallID: out.ToolCallID,
			Output:     out.Output,
		}
	}

	run, err := c.client.SubmitToolOutputs(ctx, threadID, runID, req)
	if err != nil {
		return nil, fmt.Errorf("submit tool outputs: %w", err)
	}
	return toRun(run), nil
}

// CancelRun asks the host to stop a run.
func (c *OpenAIClient) CancelRun(ctx context.Context, threadID, runID string) error {
	if _, err := c.client.CancelRun(ctx, threadID, runID); err != nil {
		return fmt.Errorf("cancel run: %w", err)
	}
	return nil
}

// LatestMessage returns the newest message of the thread.
func (c *OpenAIClient) LatestMessage(ctx context.Context, threadID string) (*model.ThreadMessage, error) {
	limit := 1
	order := "desc"

	list, err := c.client.ListMessage(ctx, threadID, &limit, &order, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if len(list.Messages) == 0 {
		return nil, errors.New("thread has no messages")
	}

	msg := list.Messages[0]
	var parts []string
	for _, content := range msg.Content {
		if content.Text != nil {
			parts = append(parts, content.Text.Value)
		}
	}

	return &model.ThreadMessage{
		ID:   msg.ID,
		Role: model.Role(msg.Role),
		Text: strings.Join(parts, "\n\n"),
	}, nil
}

// FindAssistant scans the first page of assistants for a name match.
func (c *OpenAIClient) FindAssistant(ctx context.Context, name string) (string, error) {
	limit := 100
	list, err := c.client.ListAssistants(ctx, &limit, nil, nil, nil)
	if err != nil {
		return "", fmt.Errorf("list assistants: %w", err)
	}
	for _, a := range list.Assistants {
		if a.Name != nil && *a.Name == name {
			return a.ID, nil
		}
	}
	return "", nil
}

// CreateAssistant creates an assistant from spec.
func (c *OpenAIClient) CreateAssistant(ctx context.Context, spec AssistantSpec) (string, error) {
	a, err := c.client.CreateAssistant(ctx, toAssistantRequest(spec))
	if err != nil {
		return "", fmt.Errorf("create assistant: %w", err)
	}
	return a.ID, nil
}

// UpdateAssistant overwrites an assistant with spec.
func (c *OpenAIClient) UpdateAssistant(ctx context.Context, assistantID string, spec AssistantSpec) error {
	if _, err := c.client.ModifyAssistant(ctx, assistantID, toAssistantRequest(spec)); err != nil {
		return fmt.Errorf("modify assistant: %w", err)
	}
	return nil
}

func toAssistantRequest(spec AssistantSpec) openai.AssistantRequest {
	name := spec.Name
	instructions := spec.Instructions

	tools := make([]openai.AssistantTool, len(spec.Tools))
	for i, fn := range spec.Tools {
		tools[i] = openai.AssistantTool{
			Type: openai.AssistantToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        fn.Name,
				Description: fn.Description,
				Parameters:  json.RawMessage(fn.Parameters),
			},
		}
	}

	return openai.AssistantRequest{
		Model:        spec.Model,
		Name:         &name,
		Instructions: &instructions,
		Tools:        tools,
	}
}

func toRun(run openai.Run) *model.Run {
	out := &model.Run{
		ID:       run.ID,
		ThreadID: run.ThreadID,
		Status:   model.RunStatus(run.Status),
	}
	if run.LastError != nil {
		out.LastError = run.LastError.Message
	}
	if run.RequiredAction != nil && run.RequiredAction.SubmitToolOutputs != nil {
		for _, call := range run.RequiredAction.SubmitToolOutputs.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, model.ToolCall{
				ID:        call.ID,
				Type:      string(call.Type),
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			})
		}
	}
	return out
}
