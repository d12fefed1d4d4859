package llm

import (
	"context"
	"errors"

	openaigo "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/responses"
	"github.com/openai/openai-go/v2/shared"
)

// FileSearchClient searches a hosted vector store through the Responses API file_search tool.
type FileSearchClient struct {
	client openaigo.Client
	model  string
}

// NewFileSearchClient creates a Responses API searcher that answers with model.
func NewFileSearchClient(apiKey, baseURL, model string, opts ...option.RequestOption) (*FileSearchClient, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	if model == "" {
		model = "gpt-4.1"
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	reqOpts = append(reqOpts, opts...)

	return &FileSearchClient{
		client: openaigo.NewClient(reqOpts...),
		model:  model,
	}, nil
}

// Search issues one response request scoped to the vector store and keeps only output text.
func (c *FileSearchClient) Search(ctx context.Context, req SearchRequest) ([]Passage, error) {
	resp, err := c.client.Responses.New(ctx, responses.ResponseNewParams{
		Model: shared.ResponsesModel(c.model),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openaigo.String(req.Query),
		},
		Tools: []responses.ToolUnionParam{{
			OfFileSearch: &responses.FileSearchToolParam{
				VectorStoreIDs: []string{req.VectorStoreID},
				MaxNumResults:  openaigo.Int(int64(req.MaxResults)),
			},
		}},
	})
	if err != nil {
		return nil, err
	}

	var passages []Passage
	for _, item := range resp.Output {
		if item.Type != "message" {
			continue
		}
		for _, content := range item.Content {
			if content.Type != "output_text" {
				continue
			}
			passage := Passage{Text: content.Text}
			for _, ann := range content.Annotations {
				if ann.Type == "file_citation" && ann.FileID != "" {
					passage.Citations = append(passage.Citations, Citation{
						FileID:   ann.FileID,
						Filename: ann.Filename,
					})
				}
			}
			passages = append(passages, passage)
		}
	}
	return passages, nil
}
