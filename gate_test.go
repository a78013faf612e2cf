package fncall

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errModelNotFound = errors.New("model not found")

// fakeModels answers ModelTemplate from a fixed table and lists its models in order.
type fakeModels struct {
	templates map[string]string
	models    []ModelInfo
	listErr   error
	lookups   atomic.Int32
}

func (f *fakeModels) ModelTemplate(_ context.Context, model string) (string, error) {
	f.lookups.Add(1)
	tmpl, ok := f.templates[model]
	if !ok {
		return "", errModelNotFound
	}
	return tmpl, nil
}

func (f *fakeModels) ListModels(context.Context) ([]ModelInfo, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.models, nil
}

const toolsTemplate = `{{- if .Tools }}[AVAILABLE_TOOLS] {{ json .Tools }}[/AVAILABLE_TOOLS]{{ end }}{{ .Prompt }}`

func newFakeModels() *fakeModels {
	return &fakeModels{
		templates: map[string]string{
			"llama3.1:8b": toolsTemplate,
			"mistral:7b":  toolsTemplate,
			"gemma:2b":    "{{ .Prompt }}",
			"empty:1b":    "",
			"qwen2.5:14b": toolsTemplate,
		},
		models: []ModelInfo{
			{Name: "llama3.1:8b", Size: 4_661_224_676},
			{Name: "gemma:2b", Size: 1_678_447_520},
			{Name: "mistral:7b", Size: 4_113_301_824},
			{Name: "missing:1b", Size: 1024},
			{Name: "qwen2.5:14b", Size: 8_988_124_069},
			{Name: "empty:1b", Size: 512},
		},
	}
}

func TestToolGate_CheckTools(t *testing.T) {
	g := NewToolGate(newFakeModels(), nil)
	ctx := context.Background()

	ok, err := g.CheckTools(ctx, "llama3.1:8b")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.CheckTools(ctx, "gemma:2b")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = g.CheckTools(ctx, "empty:1b")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = g.CheckTools(ctx, "missing:1b")
	require.Error(t, err)
	assert.ErrorIs(t, err, errModelNotFound)
	assert.Contains(t, err.Error(), "missing:1b")
}

func TestToolGate_SupportsToolsFailsOpenToFalse(t *testing.T) {
	var buf bytes.Buffer
	g := NewToolGate(newFakeModels(), nil, WithGateLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	assert.True(t, g.SupportsTools(context.Background(), "mistral:7b"))
	assert.False(t, g.SupportsTools(context.Background(), "missing:1b"))
	assert.Contains(t, buf.String(), "model lookup failed")
}

func TestToolGate_NoInspector(t *testing.T) {
	g := NewToolGate(nil, nil, WithGateLogger(quietLogger()))
	_, err := g.CheckTools(context.Background(), "x")
	require.Error(t, err)
	assert.False(t, g.SupportsTools(context.Background(), "x"))
}

func TestToolGate_WithMarker(t *testing.T) {
	f := newFakeModels()
	f.templates["custom"] = "<tools>{{ .Prompt }}"
	g := NewToolGate(f, nil, WithMarker("<tools>"))
	assert.True(t, g.SupportsTools(context.Background(), "custom"))
	assert.False(t, g.SupportsTools(context.Background(), "llama3.1:8b"))
}

func TestToolGate_ToolModels(t *testing.T) {
	f := newFakeModels()
	g := NewToolGate(f, f, WithGateLogger(quietLogger()), WithConcurrency(2))
	names, err := g.ToolModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3.1:8b", "mistral:7b", "qwen2.5:14b"}, names)
	assert.EqualValues(t, len(f.models), f.lookups.Load())
}

func TestToolGate_ToolModelReport(t *testing.T) {
	f := newFakeModels()
	g := NewToolGate(f, f, WithGateLogger(quietLogger()), WithConcurrency(0))
	ctx := context.Background()

	tests := []struct {
		order SortOrder
		want  []ModelSize
	}{
		{SortNone, []ModelSize{{"llama3.1:8b", "4.3 GB"}, {"mistral:7b", "3.8 GB"}, {"qwen2.5:14b", "8.4 GB"}}},
		{SortAsc, []ModelSize{{"mistral:7b", "3.8 GB"}, {"llama3.1:8b", "4.3 GB"}, {"qwen2.5:14b", "8.4 GB"}}},
		{SortDesc, []ModelSize{{"qwen2.5:14b", "8.4 GB"}, {"llama3.1:8b", "4.3 GB"}, {"mistral:7b", "3.8 GB"}}},
	}
	for _, tt := range tests {
		t.Run(string(tt.order), func(t *testing.T) {
			got, err := g.ToolModelReport(ctx, tt.order)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToolGate_ListErrors(t *testing.T) {
	f := newFakeModels()
	f.listErr = errors.New("connection refused")
	g := NewToolGate(f, f)
	_, err := g.ToolModels(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list models")

	_, err = NewToolGate(f, nil).ToolModelReport(context.Background(), SortAsc)
	require.Error(t, err)
}
