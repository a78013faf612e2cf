package fncall

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
)

// DefaultToolsMarker is the template substring of models that accept tools.
const DefaultToolsMarker = ".Tools"

const defaultGateConcurrency = 4

// ModelSize is one line of the tool-support report.
type ModelSize struct {
	Name string `json:"name"`
	Size string `json:"size"`
}

// ToolGate decides whether a model accepts tool calls by inspecting its
// prompt template for a marker substring.
type ToolGate struct {
	inspector   ModelInspector
	lister      ModelLister
	marker      string
	logger      *slog.Logger
	concurrency int
}

// NewToolGate returns a gate over inspector. lister may be nil when the
// model report is not needed.
func NewToolGate(inspector ModelInspector, lister ModelLister, opts ...GateOption) *ToolGate {
	g := &ToolGate{
		inspector:   inspector,
		lister:      lister,
		marker:      DefaultToolsMarker,
		concurrency: defaultGateConcurrency,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = loggerOrDefault(g.logger)
	return g
}

// CheckTools reports whether model's template contains the marker. Lookup
// errors, including an unknown model, are returned.
func (g *ToolGate) CheckTools(ctx context.Context, model string) (bool, error) {
	if g.inspector == nil {
		return false, errors.New("tool gate has no model inspector")
	}
	tmpl, err := g.inspector.ModelTemplate(ctx, model)
	if err != nil {
		return false, fmt.Errorf("inspect model %s: %w", model, err)
	}
	return tmpl != "" && strings.Contains(tmpl, g.marker), nil
}

// SupportsTools is CheckTools failing open to false: any lookup error,
// including an unknown model, is logged and the model treated as non-supporting.
func (g *ToolGate) SupportsTools(ctx context.Context, model string) bool {
	ok, err := g.CheckTools(ctx, model)
	if err != nil {
		g.logger.WarnContext(ctx, "model lookup failed; treating as without tool support", "model", model, "error", err)
		return false
	}
	return ok
}

// ToolModels returns the names of listed models that support tools, in listing order.
func (g *ToolGate) ToolModels(ctx context.Context) ([]string, error) {
	models, err := g.supportedModels(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.Name)
	}
	return names, nil
}

// ToolModelReport lists models that support tools with their rendered size,
// sorted by byte size according to order (SortNone keeps listing order).
func (g *ToolGate) ToolModelReport(ctx context.Context, order SortOrder) ([]ModelSize, error) {
	models, err := g.supportedModels(ctx)
	if err != nil {
		return nil, err
	}
	switch order {
	case SortAsc:
		slices.SortStableFunc(models, func(a, b ModelInfo) int { return cmp.Compare(a.Size, b.Size) })
	case SortDesc:
		slices.SortStableFunc(models, func(a, b ModelInfo) int { return cmp.Compare(b.Size, a.Size) })
	}
	out := make([]ModelSize, 0, len(models))
	for _, m := range models {
		out = append(out, ModelSize{Name: m.Name, Size: FormatSize(m.Size)})
	}
	return out, nil
}

// supportedModels lists models and keeps those passing SupportsTools. Lookups
// run concurrently up to the configured limit; listing order is preserved.
func (g *ToolGate) supportedModels(ctx context.Context) ([]ModelInfo, error) {
	if g.lister == nil {
		return nil, errors.New("tool gate has no model lister")
	}
	models, err := g.lister.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	supported := make([]bool, len(models))
	eg, egCtx := errgroup.WithContext(ctx)
	if g.concurrency > 0 {
		eg.SetLimit(g.concurrency)
	}
	for i, m := range models {
		eg.Go(func() error {
			supported[i] = g.SupportsTools(egCtx, m.Name)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	out := make([]ModelInfo, 0, len(models))
	for i, m := range models {
		if supported[i] {
			out = append(out, m)
		}
	}
	return out, nil
}
