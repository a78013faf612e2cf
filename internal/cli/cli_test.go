package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skosovsky/fncall/internal/config"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// fakeBackend serves the Ollama endpoints and the weather API from one server.
func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/show", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		switch req.Model {
		case "llama3.1":
			_, _ = io.WriteString(w, `{"template":"{{ if .Tools }}{{ .Tools }}{{ end }}"}`)
		case "gemma:2b":
			_, _ = io.WriteString(w, `{"template":"{{ .Prompt }}"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":"model not found"}`)
		}
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"models":[{"name":"gemma:2b","size":1678447520},{"name":"llama3.1","size":4661224676}]}`)
	})
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "llama3.1",
			"message": map[string]any{
				"role":    "assistant",
				"content": "",
				"tool_calls": []map[string]any{
					{"function": map[string]any{"index": 0, "name": "get_current_weather", "arguments": map[string]any{"location": "Paris", "format": "celsius"}}},
					{"function": map[string]any{"index": 1, "name": "brave_search", "arguments": map[string]any{}}},
					{"function": map[string]any{"index": 2, "name": "send_email", "arguments": map[string]any{}}},
				},
			},
			"done": true,
		})
	})
	mux.HandleFunc("/current.json", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"current":{"temp_c":21.4,"temp_f":70.5,"condition":{"text":"Sunny"}}}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	for _, k := range []string{"OLLAMA_HOST", "WEATHER_API_KEY", "BRAVE_API_KEY", "FNCALL_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := fmt.Sprintf(`provider: ollama
model: llama3.1
ollama:
  host: %s
functions:
  weather:
    api_key: test
    base_url: %s
log:
  level: error
`, srv.URL, srv.URL)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := Execute(context.Background(), args, &stdout, &stderr)
	return stdout.String(), err
}

func TestSchemaCommand(t *testing.T) {
	cfg := writeConfig(t, fakeBackend(t))
	out, err := run(t, "schema", "--config", cfg)
	require.NoError(t, err)

	var schemas []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &schemas))
	require.Len(t, schemas, 2)
	assert.Equal(t, "get_current_weather", schemas[0]["name"])

	out, err = run(t, "schema", "--config", cfg, "--format", "jsonschema")
	require.NoError(t, err)
	assert.Contains(t, out, `"brave_search"`)

	_, err = run(t, "schema", "--config", cfg, "--format", "xml")
	require.Error(t, err)
}

func TestHasToolCommand(t *testing.T) {
	cfg := writeConfig(t, fakeBackend(t))

	out, err := run(t, "hastool", "llama3.1", "--config", cfg)
	require.NoError(t, err)
	assert.Equal(t, "✓ llama3.1 supports tools\n", out)

	out, err = run(t, "hastool", "gemma:2b", "--config", cfg)
	require.NoError(t, err)
	assert.Equal(t, "✗ gemma:2b does not support tools\n", out)

	_, err = run(t, "hastool", "missing", "--config", cfg)
	require.Error(t, err)

	_, err = run(t, "hastool", "llama3.1", "--config", cfg, "--provider", "openai")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no model introspection")
}

func TestToolModelsCommand(t *testing.T) {
	cfg := writeConfig(t, fakeBackend(t))
	out, err := run(t, "toolmodels", "--config", cfg, "--sort", "desc")
	require.NoError(t, err)
	assert.Equal(t, "llama3.1  4.3 GB\n", out)

	_, err = run(t, "toolmodels", "--config", cfg, "--sort", "random")
	require.Error(t, err)
}

func TestCallCommand(t *testing.T) {
	cfg := writeConfig(t, fakeBackend(t))
	out, err := run(t, "call", "--config", cfg, "-p", "What is the weather like in Paris?")
	require.NoError(t, err)
	assert.Contains(t, out, "● get_current_weather\nCurrent weather in Paris: 21.4°C, Sunny\n")
	assert.Contains(t, out, "● brave_search rejected: invalid function input: query is required")
	assert.Contains(t, out, "? send_email is not a known function")

	_, err = run(t, "call", "--config", cfg)
	require.Error(t, err)

	_, err = run(t, "call", "--config", cfg, "--model", "gemma:2b", "-p", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not support tool calls")
}

func TestInvalidProviderFlag(t *testing.T) {
	cfg := writeConfig(t, fakeBackend(t))
	_, err := run(t, "schema", "--config", cfg, "--provider", "llamafile")
	require.Error(t, err)
}

func TestConfigInitCommand(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-secret")
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	out, err := run(t, "config", "init", "--config", path, "--provider", "openai", "--model", "gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, "✓ wrote "+path+"\n", out)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-secret")

	_, err = run(t, "config", "init", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	require.NoError(t, os.WriteFile(path, []byte("provider: [broken"), 0o600))
	_, err = run(t, "config", "init", "--config", path, "--force")
	require.NoError(t, err)
	cfg, err = config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.ProviderOllama, cfg.Provider)

	_, err = run(t, "config", "init", "--config", filepath.Join(t.TempDir(), "c.yaml"), "--provider", "llamafile")
	require.Error(t, err)
}
