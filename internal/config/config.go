// Package config loads the fncall CLI configuration from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Providers accepted in Config.Provider.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Config is the CLI configuration.
type Config struct {
	Provider  string          `yaml:"provider"`
	Model     string          `yaml:"model"`
	Ollama    OllamaConfig    `yaml:"ollama"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Functions FunctionsConfig `yaml:"functions"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Gate      GateConfig      `yaml:"gate"`
	Log       LogConfig       `yaml:"log"`
}

type OllamaConfig struct {
	Host    string        `yaml:"host"`
	Timeout time.Duration `yaml:"timeout"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

type AnthropicConfig struct {
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	MaxTokens int64  `yaml:"max_tokens"`
}

type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
}

// FunctionsConfig configures the built-in capabilities.
type FunctionsConfig struct {
	Weather WeatherConfig `yaml:"weather"`
	Brave   BraveConfig   `yaml:"brave"`
}

type WeatherConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

type BraveConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Count   int    `yaml:"count"`
}

// DispatchConfig controls how capabilities are built and invoked.
type DispatchConfig struct {
	Timeout           time.Duration `yaml:"timeout"`
	ValidateSchema    bool          `yaml:"validate_schema"`
	OptionalFields    bool          `yaml:"optional_fields"`
	Trace             bool          `yaml:"trace"`
	RecoverPanics     bool          `yaml:"recover_panics"`
	ReplaceDuplicates bool          `yaml:"replace_duplicates"`
}

// GateConfig controls the tool-support gate.
type GateConfig struct {
	Marker      string `yaml:"marker"`
	Concurrency int    `yaml:"concurrency"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Provider: ProviderOllama,
		Model:    "llama3.1",
		Ollama:   OllamaConfig{Host: "http://localhost:11434", Timeout: 2 * time.Minute},
		Anthropic: AnthropicConfig{
			MaxTokens: 1024,
		},
		Functions: FunctionsConfig{
			Weather: WeatherConfig{BaseURL: "https://api.weatherapi.com/v1"},
			Brave:   BraveConfig{BaseURL: "https://api.search.brave.com", Count: 3},
		},
		Dispatch: DispatchConfig{Timeout: 30 * time.Second, RecoverPanics: true},
		Gate:     GateConfig{Marker: ".Tools", Concurrency: 4},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// Path returns the default configuration file path: ~/.fncall/config.yaml.
func Path() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".fncall", "config.yaml")
	}
	return filepath.Join(home, ".fncall", "config.yaml")
}

// Load reads the YAML file at path (Path() when empty) over Default() and
// applies environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overrides credentials and endpoints from the environment.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	set(&c.Ollama.Host, "OLLAMA_HOST")
	set(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	set(&c.OpenAI.BaseURL, "OPENAI_BASE_URL")
	set(&c.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	set(&c.Gemini.APIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	set(&c.Functions.Weather.APIKey, "WEATHER_API_KEY")
	set(&c.Functions.Brave.APIKey, "BRAVE_API_KEY")
	set(&c.Log.Level, "FNCALL_LOG_LEVEL")
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOllama, ProviderOpenAI, ProviderAnthropic, ProviderGemini:
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// Save writes c to path as YAML, creating the directory.
func Save(c *Config, path string) error {
	if path == "" {
		path = Path()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// Logger builds a slog.Logger writing to w per the configured level and format.
func (l LogConfig) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(l.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}
