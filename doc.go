// Package fncall describes strongly-typed Go functions to a language model and
// executes the tool calls the model decides to make.
//
// # Overview
//
// A model that supports tools needs a schema for each function (name,
// description, object schema of typed properties) and returns a list of named
// calls with argument maps. This package derives the schema from a function's
// request struct, keeps the functions in a name-keyed Registry, and runs a
// call batch through a Dispatcher that isolates failures per call.
//
// Pipeline: Function[Req, Res] → New (reflection + schema) → Capability →
// NewRegistry → model call (Caller + ChatModel) → Dispatch → Outcome.
//
// # Key concepts
//
//   - Schema from the request type: exported fields become properties; json
//     tags name them, description and enum tags describe them, Enumerator
//     types constrain them. Every property is required unless
//     WithOptionalFields is set.
//   - Per-call isolation: a rejected or failing call becomes an absent
//     Outcome; sibling calls in the batch still run.
//   - Tool-support gate: ToolGate checks a model's prompt template before a
//     batch is requested; unsupported models yield ErrUnsupportedModel.
//
// # Example
//
//	type WeatherRequest struct {
//	    Location string `json:"location" description:"City name"`
//	}
//	type Weather struct{}
//	func (Weather) Definition() fncall.Definition {
//	    return fncall.Definition{Name: "get_current_weather", Description: "Get the current weather"}
//	}
//	func (Weather) FromArguments(args map[string]any) (WeatherRequest, error) {
//	    return fncall.Decode[WeatherRequest](args)
//	}
//	func (Weather) Apply(_ context.Context, r WeatherRequest) (string, error) {
//	    return "Sunny in " + r.Location, nil
//	}
//
//	c, err := fncall.New[WeatherRequest, string](Weather{})
//	if err != nil { ... }
//	reg, err := fncall.NewRegistry([]fncall.Capability{c})
//	d := fncall.Dispatch(calls, reg)
//	report, ok := fncall.First[string](ctx, d, Weather{})
package fncall
