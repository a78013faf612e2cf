// Package bravesearch provides brave_search, a web search capability backed
// by the Brave Search API.
package bravesearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/skosovsky/fncall"
)

// DefaultBaseURL is the Brave Search API root.
const DefaultBaseURL = "https://api.search.brave.com"

// DefaultCount is the number of results requested per query.
const DefaultCount = 3

// Request is the argument shape of brave_search.
type Request struct {
	Query string `json:"query" description:"The query to search for"`
}

// Result is one web result.
type Result struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Response holds the web results of a search.
type Response struct {
	Web struct {
		Results []Result `json:"results"`
	} `json:"web"`
}

// Search queries Brave. The zero value describes the capability and can be
// used as a dispatch target.
type Search struct {
	apiKey  string
	baseURL string
	count   int
	client  *http.Client
}

// Option configures a Search.
type Option func(*Search)

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(u string) Option {
	return func(s *Search) {
		s.baseURL = strings.TrimRight(u, "/")
	}
}

// WithCount sets the number of results (1..20).
func WithCount(n int) Option {
	return func(s *Search) {
		s.count = min(max(n, 1), 20)
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Search) {
		s.client = c
	}
}

// New returns a Search authenticated with apiKey.
func New(apiKey string, opts ...Option) Search {
	s := Search{apiKey: apiKey, baseURL: DefaultBaseURL, count: DefaultCount}
	for _, opt := range opts {
		opt(&s)
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: 10 * time.Second}
	}
	return s
}

// Definition names the capability.
func (Search) Definition() fncall.Definition {
	return fncall.Definition{Name: "brave_search", Description: "Search the web when data is not in training data"}
}

// FromArguments requires a non-blank query.
func (Search) FromArguments(args map[string]any) (Request, error) {
	query, err := fncall.RequireString(args, "query")
	if err != nil {
		return Request{}, err
	}
	return Request{Query: query}, nil
}

// Apply runs the search.
func (s Search) Apply(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(req.Query) == "" {
		return Response{}, fncall.Reject("query is required")
	}
	if s.client == nil {
		s = New(s.apiKey, WithBaseURL(s.baseURL))
	}
	q := url.Values{}
	q.Set("q", req.Query)
	q.Set("count", strconv.Itoa(s.count))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/res/v1/web/search?"+q.Encode(), nil)
	if err != nil {
		return Response{}, err
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Subscription-Token", s.apiKey)
	resp, err := s.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("brave search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Response{}, fmt.Errorf("brave search: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Response{}, fmt.Errorf("decode brave search: %w", err)
	}
	return out, nil
}

// String renders the results as a numbered list for a model or a terminal.
func (r Response) String() string {
	if len(r.Web.Results) == 0 {
		return "No results."
	}
	var sb strings.Builder
	for i, res := range r.Web.Results {
		fmt.Fprintf(&sb, "%d. %s\n   %s\n", i+1, res.Title, res.URL)
		if res.Description != "" {
			fmt.Fprintf(&sb, "   %s\n", res.Description)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

var _ fncall.Function[Request, Response] = Search{}
