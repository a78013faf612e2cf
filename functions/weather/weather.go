// Package weather provides get_current_weather, a capability backed by the
// weatherapi.com current-conditions endpoint.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/skosovsky/fncall"
)

// DefaultBaseURL is the weatherapi.com v1 endpoint.
const DefaultBaseURL = "https://api.weatherapi.com/v1"

// Format is the temperature unit of a report.
type Format string

// Supported formats.
const (
	Celsius    Format = "celsius"
	Fahrenheit Format = "fahrenheit"
)

// Values lists the formats in declaration order.
func (Format) Values() []string {
	return []string{string(Celsius), string(Fahrenheit)}
}

// Request is the argument shape of get_current_weather.
type Request struct {
	Location string `json:"location" description:"The city and state e.g. San Francisco, CA"`
	Format   Format `json:"format" description:"The format to return the weather in, e.g. 'celsius' or 'fahrenheit'"`
}

// Weather looks up current conditions. The zero value describes the
// capability and can be used as a dispatch target.
type Weather struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// New returns a Weather using apiKey. baseURL defaults to DefaultBaseURL.
func New(apiKey, baseURL string, client *http.Client) Weather {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return Weather{apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Definition names the capability.
func (Weather) Definition() fncall.Definition {
	return fncall.Definition{Name: "get_current_weather", Description: "Get the current weather in a given location"}
}

// FromArguments requires a non-blank location. format is optional and
// case-insensitive; anything but fahrenheit means celsius.
func (Weather) FromArguments(args map[string]any) (Request, error) {
	location, err := fncall.RequireString(args, "location")
	if err != nil {
		return Request{}, err
	}
	format := Celsius
	f, _, err := fncall.StringArg(args, "format")
	if err != nil {
		return Request{}, err
	}
	if strings.EqualFold(f, string(Fahrenheit)) {
		format = Fahrenheit
	}
	return Request{Location: location, Format: format}, nil
}

type currentResponse struct {
	Current struct {
		TempC     float64 `json:"temp_c"`
		TempF     float64 `json:"temp_f"`
		Condition struct {
			Text string `json:"text"`
		} `json:"condition"`
	} `json:"current"`
}

// Apply fetches current conditions and renders them as
// "Current weather in <location>: <temp><unit>, <condition>".
func (w Weather) Apply(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Location) == "" {
		return "", fncall.Reject("location is required")
	}
	if w.client == nil {
		w = New(w.apiKey, w.baseURL, nil)
	}
	q := url.Values{}
	q.Set("key", w.apiKey)
	q.Set("q", req.Location)
	q.Set("aqi", "no")
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"/current.json?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Accept", "application/json")
	resp, err := w.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("fetch weather: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("fetch weather: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var data currentResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("decode weather: %w", err)
	}
	temp, unit := data.Current.TempC, "°C"
	if req.Format == Fahrenheit {
		temp, unit = data.Current.TempF, "°F"
	}
	return fmt.Sprintf("Current weather in %s: %.1f%s, %s", req.Location, temp, unit, data.Current.Condition.Text), nil
}

var _ fncall.Function[Request, string] = Weather{}
