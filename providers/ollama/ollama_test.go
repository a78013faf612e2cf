package ollama

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skosovsky/fncall"
)

const toolsTemplate = `{{- if .Tools }}[AVAILABLE_TOOLS] {{ json .Tools }}[/AVAILABLE_TOOLS]{{ end }}`

// fakeServer mimics the three Ollama endpoints the client uses and keeps the
// last chat request body.
func fakeServer(t *testing.T, lastChat *map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req map[string]any
		require.NoError(t, json.Unmarshal(body, &req))
		*lastChat = req
		w.Header().Set("Content-Type", "application/json")
		// The client reads the reply as NDJSON, one object per line.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "llama3.1:8b",
			"message": map[string]any{
				"role":    "assistant",
				"content": "",
				"tool_calls": []map[string]any{
					{"function": map[string]any{"index": 0, "name": "get_current_weather", "arguments": map[string]any{"location": "Paris", "format": "celsius"}}},
					{"function": map[string]any{"index": 1, "name": "brave_search", "arguments": map[string]any{}}},
				},
			},
			"done":        true,
			"done_reason": "stop",
		})
	})
	mux.HandleFunc("/api/show", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
			Name  string `json:"name"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		switch req.Model + req.Name {
		case "llama3.1:8b":
			_ = json.NewEncoder(w).Encode(map[string]any{"template": toolsTemplate})
		case "gemma:2b":
			_ = json.NewEncoder(w).Encode(map[string]any{"template": "{{ .Prompt }}"})
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":"model not found"}`)
		}
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"models":[
			{"name":"llama3.1:8b","model":"llama3.1:8b","size":4661224676},
			{"name":"gemma:2b","model":"gemma:2b","size":1678447520}
		]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return New(api.NewClient(u, srv.Client()), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func weatherSchema(t *testing.T) fncall.ToolSchema {
	t.Helper()
	p := fncall.NewParameters()
	p.Add("location", fncall.Property{Type: fncall.TypeString, Description: "City", Required: true})
	p.Add("format", fncall.Property{Type: fncall.TypeString, Enum: []string{"celsius", "fahrenheit"}, Required: true})
	return fncall.ToolSchema{Name: "get_current_weather", Description: "Get the current weather", Parameters: p}
}

func TestClient_Chat(t *testing.T) {
	var last map[string]any
	c := newClient(t, fakeServer(t, &last))

	resp, err := c.Chat(context.Background(), fncall.ChatRequest{
		Model:    "llama3.1:8b",
		Messages: []fncall.Message{{Role: fncall.RoleUser, Content: "Weather in Paris?"}},
		Tools:    []fncall.ToolSchema{weatherSchema(t)},
	})
	require.NoError(t, err)
	assert.Equal(t, fncall.RoleAssistant, resp.Message.Role)
	require.Len(t, resp.ToolCalls, 2)
	assert.Equal(t, fncall.ToolCall{
		Name:      "get_current_weather",
		Index:     0,
		Arguments: map[string]any{"location": "Paris", "format": "celsius"},
	}, resp.ToolCalls[0])
	assert.Equal(t, 1, resp.ToolCalls[1].Index)
	assert.NotNil(t, resp.ToolCalls[1].Arguments)

	assert.Equal(t, false, last["stream"])
	tools, ok := last["tools"].([]any)
	require.True(t, ok)
	require.Len(t, tools, 1)
	fn := tools[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "get_current_weather", fn["name"])
	params := fn["parameters"].(map[string]any)
	assert.Equal(t, []any{"location", "format"}, params["required"])
}

func TestClient_ModelTemplate(t *testing.T) {
	var last map[string]any
	c := newClient(t, fakeServer(t, &last))
	tmpl, err := c.ModelTemplate(context.Background(), "llama3.1:8b")
	require.NoError(t, err)
	assert.Contains(t, tmpl, ".Tools")

	_, err = c.ModelTemplate(context.Background(), "unknown")
	require.Error(t, err)
}

func TestClient_Gate(t *testing.T) {
	var last map[string]any
	c := newClient(t, fakeServer(t, &last))
	gate := fncall.NewToolGate(c, c, fncall.WithGateLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	ctx := context.Background()

	assert.True(t, gate.SupportsTools(ctx, "llama3.1:8b"))
	assert.False(t, gate.SupportsTools(ctx, "gemma:2b"))
	assert.False(t, gate.SupportsTools(ctx, "unknown"))

	report, err := gate.ToolModelReport(ctx, fncall.SortDesc)
	require.NoError(t, err)
	assert.Equal(t, []fncall.ModelSize{{Name: "llama3.1:8b", Size: "4.3 GB"}}, report)
}

func TestClient_ListModels(t *testing.T) {
	var last map[string]any
	c := newClient(t, fakeServer(t, &last))
	models, err := c.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []fncall.ModelInfo{
		{Name: "llama3.1:8b", Size: 4661224676},
		{Name: "gemma:2b", Size: 1678447520},
	}, models)
}

func TestDial(t *testing.T) {
	c, err := Dial("", 0)
	require.NoError(t, err)
	assert.NotNil(t, c)

	_, err = Dial("://bad", 0)
	require.Error(t, err)
}

func TestConvertTools_Empty(t *testing.T) {
	tools, err := convertTools(nil)
	require.NoError(t, err)
	assert.Nil(t, tools)
}
