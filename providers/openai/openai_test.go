package openai

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skosovsky/fncall"
)

func weatherSchema() fncall.ToolSchema {
	p := fncall.NewParameters()
	p.Add("location", fncall.Property{Type: fncall.TypeString, Description: "City", Required: true})
	p.Add("format", fncall.Property{Type: fncall.TypeString, Enum: []string{"celsius", "fahrenheit"}, Required: true})
	return fncall.ToolSchema{Name: "get_current_weather", Description: "Get the current weather", Parameters: p}
}

func TestClient_Chat(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","model":"gpt-4o","choices":[{"index":0,
			"finish_reason":"tool_calls","message":{"role":"assistant","content":"","tool_calls":[
			{"id":"call_1","type":"function","function":{"name":"get_current_weather","arguments":"{\"location\":\"Paris\",\"format\":\"celsius\"}"}},
			{"id":"call_2","type":"function","function":{"name":"brave_search","arguments":""}}]}}]}`)
	}))
	defer srv.Close()

	c := New("sk-test", srv.URL+"/v1", WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	resp, err := c.Chat(context.Background(), fncall.ChatRequest{
		Model:    "gpt-4o",
		Messages: []fncall.Message{{Role: fncall.RoleUser, Content: "Weather in Paris?"}},
		Tools:    []fncall.ToolSchema{weatherSchema()},
	})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 2)
	assert.Equal(t, fncall.ToolCall{
		Name:      "get_current_weather",
		Index:     0,
		Arguments: map[string]any{"location": "Paris", "format": "celsius"},
	}, resp.ToolCalls[0])
	assert.Equal(t, 1, resp.ToolCalls[1].Index)
	assert.Equal(t, map[string]any{}, resp.ToolCalls[1].Arguments)

	tools := got["tools"].([]any)
	require.Len(t, tools, 1)
	fn := tools[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "get_current_weather", fn["name"])
	params := fn["parameters"].(map[string]any)
	assert.Equal(t, "object", params["type"])
	assert.Equal(t, []any{"location", "format"}, params["required"])
	format := params["properties"].(map[string]any)["format"].(map[string]any)
	assert.Equal(t, []any{"celsius", "fahrenheit"}, format["enum"])
}

func TestClient_ChatNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","choices":[]}`)
	}))
	defer srv.Close()
	_, err := New("k", srv.URL).Chat(context.Background(), fncall.ChatRequest{Model: "m"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestClient_ChatAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"invalid api key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()
	_, err := New("bad", srv.URL).Chat(context.Background(), fncall.ChatRequest{Model: "m"})
	require.Error(t, err)
	var apiErr *openai.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.HTTPStatusCode)
}

func TestToolCalls(t *testing.T) {
	two := 2
	calls, err := toolCalls([]openai.ToolCall{
		{Index: &two, Function: openai.FunctionCall{Name: "a", Arguments: `{"x":1}`}},
		{Function: openai.FunctionCall{Name: "b", Arguments: "null"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls[0].Index)
	assert.Equal(t, 1, calls[1].Index)
	assert.Equal(t, map[string]any{}, calls[1].Arguments)

	_, err = toolCalls([]openai.ToolCall{{Function: openai.FunctionCall{Name: "c", Arguments: "{"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode arguments of c")
}

func TestConvertTools_Empty(t *testing.T) {
	assert.Nil(t, convertTools(nil))
}
