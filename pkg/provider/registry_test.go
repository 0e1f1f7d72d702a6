package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider is a minimal Provider for registry tests.
type stubProvider struct {
	name string
}

func (s *stubProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return &ChatResponse{}, nil
}

func (s *stubProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan ChatChunk, error) {
	out := make(chan ChatChunk, 1)
	out <- ChatChunk{Done: true}
	close(out)
	return out, nil
}

func (s *stubProvider) ListModels(ctx context.Context) ([]string, error) {
	return []string{s.name + "-model"}, nil
}

func (s *stubProvider) Name() string { return s.name }

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry()

	openai := &stubProvider{name: "openai"}
	anthropic := &stubProvider{name: "anthropic"}

	require.NoError(t, r.Register("gpt", openai))
	require.NoError(t, r.Register("claude", anthropic))

	t.Run("prefix match", func(t *testing.T) {
		p, err := r.Resolve("gpt-4o-mini")
		require.NoError(t, err)
		assert.Equal(t, "openai", p.Name())

		p, err = r.Resolve("claude-sonnet-4-20250514")
		require.NoError(t, err)
		assert.Equal(t, "anthropic", p.Name())
	})

	t.Run("fallback to first registered", func(t *testing.T) {
		p, err := r.Resolve("qwen3:latest")
		require.NoError(t, err)
		assert.Equal(t, "openai", p.Name())
	})
}

func TestRegistryResolveEmpty(t *testing.T) {
	r := NewRegistry()

	_, err := r.Resolve("gpt-4o")
	assert.Error(t, err)
}

func TestRegistryRegisterValidation(t *testing.T) {
	r := NewRegistry()

	assert.Error(t, r.Register("", &stubProvider{name: "x"}))
	assert.Error(t, r.Register("gpt", nil))

	require.NoError(t, r.Register("gpt", &stubProvider{name: "openai"}))
	assert.Error(t, r.Register("gpt", &stubProvider{name: "other"}))
}

func TestRegistryPrefixesOrder(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register("claude", &stubProvider{name: "anthropic"}))
	require.NoError(t, r.Register("gpt", &stubProvider{name: "openai"}))

	assert.Equal(t, []string{"claude", "gpt"}, r.Prefixes())
}
