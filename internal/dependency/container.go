// Package dependency wires the fncall CLI services using go.uber.org/dig.
package dependency

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/dig"

	"github.com/skosovsky/fncall"
	"github.com/skosovsky/fncall/ext/fncallotel"
	"github.com/skosovsky/fncall/functions/bravesearch"
	"github.com/skosovsky/fncall/functions/weather"
	"github.com/skosovsky/fncall/internal/config"
	"github.com/skosovsky/fncall/providers/anthropic"
	"github.com/skosovsky/fncall/providers/gemini"
	"github.com/skosovsky/fncall/providers/ollama"
	"github.com/skosovsky/fncall/providers/openai"
)

// Container holds the resolved CLI services.
// Callers use the typed getter methods; they never need to import dig directly.
type Container struct {
	logger   *slog.Logger
	registry *fncall.Registry
	model    fncall.ChatModel
	gate     *fncall.ToolGate
	caller   *fncall.Caller
	closers  []io.Closer
}

func (c *Container) Logger() *slog.Logger       { return c.logger }
func (c *Container) Registry() *fncall.Registry { return c.registry }
func (c *Container) Model() fncall.ChatModel    { return c.model }
func (c *Container) Caller() *fncall.Caller     { return c.caller }

// Gate returns the tool-support gate, or nil when the configured provider has
// no model introspection (every provider but Ollama).
func (c *Container) Gate() *fncall.ToolGate { return c.gate }

// Close releases provider connections.
func (c *Container) Close() error {
	var first error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// LogOutput is the writer the CLI logger writes to. A named type so dig does
// not confuse it with other writers.
type LogOutput struct{ io.Writer }

// Capabilities is the list of built-in capabilities offered to the model.
type Capabilities []fncall.Capability

// New builds and wires all services from cfg.
func New(ctx context.Context, cfg *config.Config, logOut io.Writer) (*Container, error) {
	d := dig.New()

	providers := []any{
		func() *config.Config { return cfg },
		func() context.Context { return ctx },
		func() LogOutput { return LogOutput{logOut} },
		newLogger,
		newCapabilities,
		newRegistry,
		newOllama,
		newGate,
		newChatModel,
		newCaller,
	}
	for _, p := range providers {
		if err := d.Provide(p); err != nil {
			return nil, err
		}
	}

	var result *Container
	err := d.Invoke(func(
		logger *slog.Logger,
		registry *fncall.Registry,
		model chatModel,
		gate *fncall.ToolGate,
		caller *fncall.Caller,
	) {
		result = &Container{
			logger:   logger,
			registry: registry,
			model:    model.ChatModel,
			gate:     gate,
			caller:   caller,
		}
		if model.closer != nil {
			result.closers = append(result.closers, model.closer)
		}
	})
	if err != nil {
		return nil, dig.RootCause(err)
	}
	return result, nil
}

func newLogger(cfg *config.Config, out LogOutput) *slog.Logger {
	return cfg.Log.Logger(out)
}

func newCapabilities(cfg *config.Config) (Capabilities, error) {
	var opts []fncall.Option
	if cfg.Dispatch.ValidateSchema {
		opts = append(opts, fncall.WithSchemaValidation())
	}
	if cfg.Dispatch.OptionalFields {
		opts = append(opts, fncall.WithDeriveOptions(fncall.WithOptionalFields()))
	}
	client := &http.Client{Timeout: cfg.Dispatch.Timeout}

	w, err := fncall.New[weather.Request, string](
		weather.New(cfg.Functions.Weather.APIKey, cfg.Functions.Weather.BaseURL, client), opts...)
	if err != nil {
		return nil, err
	}
	s, err := fncall.New[bravesearch.Request, bravesearch.Response](bravesearch.New(cfg.Functions.Brave.APIKey,
		bravesearch.WithBaseURL(cfg.Functions.Brave.BaseURL),
		bravesearch.WithCount(cfg.Functions.Brave.Count),
		bravesearch.WithHTTPClient(client),
	), opts...)
	if err != nil {
		return nil, err
	}
	return Capabilities{w, s}, nil
}

func newRegistry(cfg *config.Config, logger *slog.Logger, caps Capabilities) (*fncall.Registry, error) {
	mws := []fncall.Middleware{fncall.WithLogging(logger)}
	if cfg.Dispatch.Trace {
		mws = append([]fncall.Middleware{fncallotel.Middleware()}, mws...)
	}
	if cfg.Dispatch.Timeout > 0 {
		mws = append(mws, fncall.WithTimeout(cfg.Dispatch.Timeout))
	}
	opts := []fncall.RegistryOption{fncall.WithMiddleware(mws...), fncall.WithRegistryLogger(logger)}
	if cfg.Dispatch.ReplaceDuplicates {
		opts = append(opts, fncall.WithReplaceDuplicates())
	}
	return fncall.NewRegistry(caps, opts...)
}

func newOllama(cfg *config.Config, logger *slog.Logger) (*ollama.Client, error) {
	return ollama.Dial(cfg.Ollama.Host, cfg.Ollama.Timeout, ollama.WithLogger(logger))
}

func newGate(cfg *config.Config, logger *slog.Logger, client *ollama.Client) *fncall.ToolGate {
	if cfg.Provider != config.ProviderOllama {
		return nil
	}
	return fncall.NewToolGate(client, client,
		fncall.WithMarker(cfg.Gate.Marker),
		fncall.WithConcurrency(cfg.Gate.Concurrency),
		fncall.WithGateLogger(logger),
	)
}

// chatModel carries the configured provider and, for providers holding a
// connection, its closer.
type chatModel struct {
	fncall.ChatModel
	closer io.Closer
}

func newChatModel(ctx context.Context, cfg *config.Config, logger *slog.Logger, ol *ollama.Client) (chatModel, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		return chatModel{ChatModel: ol}, nil
	case config.ProviderOpenAI:
		return chatModel{ChatModel: openai.New(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, openai.WithLogger(logger))}, nil
	case config.ProviderAnthropic:
		reqOpts := []option.RequestOption{option.WithAPIKey(cfg.Anthropic.APIKey)}
		if cfg.Anthropic.BaseURL != "" {
			reqOpts = append(reqOpts, option.WithBaseURL(cfg.Anthropic.BaseURL))
		}
		return chatModel{ChatModel: anthropic.New(reqOpts,
			anthropic.WithMaxTokens(cfg.Anthropic.MaxTokens), anthropic.WithLogger(logger))}, nil
	case config.ProviderGemini:
		g, err := gemini.New(ctx, cfg.Gemini.APIKey, gemini.WithLogger(logger))
		if err != nil {
			return chatModel{}, err
		}
		return chatModel{ChatModel: g, closer: g}, nil
	default:
		return chatModel{}, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func newCaller(cfg *config.Config, logger *slog.Logger, model chatModel, gate *fncall.ToolGate, registry *fncall.Registry) *fncall.Caller {
	return fncall.NewCaller(model.ChatModel, gate, registry,
		fncall.WithLogger(logger),
		fncall.WithRecoverPanics(cfg.Dispatch.RecoverPanics),
	)
}

// Schemas returns the tool schemas of the built-in capabilities without
// connecting to any provider.
func Schemas(cfg *config.Config) ([]fncall.ToolSchema, error) {
	caps, err := newCapabilities(cfg)
	if err != nil {
		return nil, err
	}
	out := make([]fncall.ToolSchema, 0, len(caps))
	for _, c := range caps {
		out = append(out, c.Schema())
	}
	return out, nil
}
