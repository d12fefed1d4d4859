package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTool struct {
	name string
	run  func(ctx context.Context, params json.RawMessage) (string, error)
}

func (f fakeTool) Name() string { return f.name }

func (f fakeTool) Description() string { return "fake tool" }

func (f fakeTool) Schema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }

func (f fakeTool) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	if f.run == nil {
		return "", nil
	}
	return f.run(ctx, params)
}

func TestRegistryRegisterGetAndExecute(t *testing.T) {
	t.Parallel()

	called := false
	reg, err := NewRegistry(fakeTool{
		name: "echo",
		run: func(ctx context.Context, params json.RawMessage) (string, error) {
			called = true
			return string(params), nil
		},
	})
	require.NoError(t, err)

	got, err := reg.Get("echo")
	require.NoError(t, err)
	assert.Equal(t, "echo", got.Name())

	out, err := reg.Execute(context.Background(), "echo", json.RawMessage(`{"x":"y"}`))
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, `{"x":"y"}`, out)
}

func TestRegistryRejectsDuplicateName(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry(fakeTool{name: "echo"}, fakeTool{name: "echo"})
	assert.True(t, errors.Is(err, ErrToolAlreadyRegistered))
}

func TestRegistryRejectsNilAndBlank(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry()
	require.NoError(t, err)

	assert.ErrorIs(t, reg.Register(nil), ErrToolRequired)
	assert.ErrorIs(t, reg.Register(fakeTool{name: "  "}), ErrToolNameRequired)
}

func TestRegistryUnknownTool(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(fakeTool{name: "echo"})
	require.NoError(t, err)

	_, err = reg.Execute(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestRegistryExecuteRejectsNonObjectArguments(t *testing.T) {
	t.Parallel()

	called := false
	reg, err := NewRegistry(fakeTool{
		name: "echo",
		run: func(ctx context.Context, params json.RawMessage) (string, error) {
			called = true
			return "", nil
		},
	})
	require.NoError(t, err)

	for _, raw := range []string{`[1,2]`, `"text"`, `{"query":`} {
		_, err := reg.Execute(context.Background(), "echo", json.RawMessage(raw))
		assert.ErrorIs(t, err, ErrInvalidArguments, raw)
	}
	assert.False(t, called)
}

func TestRegistryDefinitionsKeepOrder(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(fakeTool{name: "b"}, fakeTool{name: "a"})
	require.NoError(t, err)

	defs := reg.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "b", defs[0].Name)
	assert.Equal(t, "a", defs[1].Name)
	assert.JSONEq(t, `{"type":"object"}`, string(defs[0].Schema))
}
