// Package provision makes sure the hosted assistant exists and declares the local tools.
package provision

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/h4d-assistant/book-chat/internal/llm"
	"github.com/h4d-assistant/book-chat/internal/tools"
	"github.com/h4d-assistant/book-chat/pkg/logger"
)

// ErrAssistantNameRequired is returned when neither an id nor a name identifies the assistant.
var ErrAssistantNameRequired = errors.New("assistant name is required when no assistant ID is configured")

// Spec builds the assistant definition from the registered tools.
func Spec(name, model, instructions string, defs []tools.Definition) llm.AssistantSpec {
	spec := llm.AssistantSpec{
		Name:         name,
		Model:        model,
		Instructions: instructions,
		Tools:        make([]llm.FunctionSpec, len(defs)),
	}
	for i, def := range defs {
		spec.Tools[i] = llm.FunctionSpec{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  def.Schema,
		}
	}
	return spec
}

// EnsureAssistant returns the assistant id to run exchanges against.
// A configured id is used as is. Otherwise the assistant is looked up by
// name and updated to spec, or created when absent.
func EnsureAssistant(ctx context.Context, m llm.AssistantManager, assistantID string, spec llm.AssistantSpec, log *logger.Logger) (string, error) {
	if assistantID != "" {
		log.Info("using configured assistant", zap.String("assistant_id", assistantID))
		return assistantID, nil
	}
	if spec.Name == "" {
		return "", ErrAssistantNameRequired
	}

	id, err := m.FindAssistant(ctx, spec.Name)
	if err != nil {
		return "", fmt.Errorf("find assistant %q: %w", spec.Name, err)
	}

	if id != "" {
		if err := m.UpdateAssistant(ctx, id, spec); err != nil {
			return "", fmt.Errorf("update assistant %s: %w", id, err)
		}
		log.Info("updated assistant",
			zap.String("assistant_id", id),
			zap.String("name", spec.Name),
			zap.Int("tools", len(spec.Tools)),
		)
		return id, nil
	}

	id, err = m.CreateAssistant(ctx, spec)
	if err != nil {
		return "", fmt.Errorf("create assistant %q: %w", spec.Name, err)
	}
	log.Info("created assistant",
		zap.String("assistant_id", id),
		zap.String("name", spec.Name),
		zap.Int("tools", len(spec.Tools)),
	)
	return id, nil
}
