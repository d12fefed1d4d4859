// Package tools holds the local capabilities the assistant may call mid-run.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	ErrToolRequired          = errors.New("tool is required")
	ErrToolNameRequired      = errors.New("tool name is required")
	ErrToolAlreadyRegistered = errors.New("tool already registered")
	ErrToolNotFound          = errors.New("unknown tool")
	ErrInvalidArguments      = errors.New("invalid tool arguments")
)

// Tool is a named capability with a declared parameter schema.
type Tool interface {
	Name() string
	Description() string
	Schema() json.RawMessage
	Execute(ctx context.Context, params json.RawMessage) (string, error)
}

// Describer is implemented by tools that render their own progress line for a call.
type Describer interface {
	Describe(params json.RawMessage) string
}

// Definition is the declaration of a registered tool.
type Definition struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

// Registry stores tools by name and executes them by lookup.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry constructs a registry holding the given tools.
func NewRegistry(initial ...Tool) (*Registry, error) {
	r := &Registry{
		tools: make(map[string]Tool, len(initial)),
	}
	for _, tool := range initial {
		if err := r.Register(tool); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register inserts a tool by its canonical name.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return ErrToolRequired
	}
	name := strings.TrimSpace(tool.Name())
	if name == "" {
		return ErrToolNameRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrToolAlreadyRegistered, name)
	}
	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

// Get returns a registered tool by name.
func (r *Registry) Get(name string) (Tool, error) {
	lookup := strings.TrimSpace(name)
	if lookup == "" {
		return nil, ErrToolNameRequired
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[lookup]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, lookup)
	}
	return tool, nil
}

// Execute validates params as a JSON object and runs the named tool.
func (r *Registry) Execute(ctx context.Context, name string, params json.RawMessage) (string, error) {
	tool, err := r.Get(name)
	if err != nil {
		return "", err
	}
	if _, err := DecodeObject(params); err != nil {
		return "", err
	}
	return tool.Execute(ctx, params)
}

// Definitions lists registered tools in registration order.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		tool := r.tools[name]
		defs = append(defs, Definition{
			Name:        name,
			Description: tool.Description(),
			Schema:      tool.Schema(),
		})
	}
	return defs
}
