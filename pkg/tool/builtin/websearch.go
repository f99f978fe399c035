// Copyright 2026 Quarry Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/zalando/go-keyring"

	"github.com/quarrylabs/quarry/pkg/tool"
)

// WebSearchToolName is the registry name of the web search tool.
const WebSearchToolName = "web_search"

const (
	// SearchAPIKeyEnv is the environment variable consulted for the
	// search provider credential.
	SearchAPIKeyEnv = "QUARRY_SEARCH_API_KEY"

	// keyringService and keyringUser locate the credential in the
	// system keyring when the environment variable is unset.
	keyringService = "quarry"
	keyringUser    = "search_api_key"

	// DefaultSearchEndpoint is the live provider endpoint. Override via
	// QUARRY_SEARCH_ENDPOINT.
	DefaultSearchEndpoint = "https://api.search.brave.com/res/v1/web/search"

	defaultSearchTimeout = 30 * time.Second
	mockResultCount      = 3
)

// SearchResult is one hit from a search provider.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
	Score   float64
}

// SearchProvider abstracts the live web-search backend. The concrete
// provider and its credential are external collaborators; absence of a
// credential switches the tool to deterministic mock results.
type SearchProvider interface {
	Name() string
	Search(ctx context.Context, query, apiKey string, maxResults int) ([]SearchResult, error)
}

// WebSearchTool searches the web through a provider, falling back to
// labeled mock results when no credential is configured.
type WebSearchTool struct {
	provider SearchProvider
}

// NewWebSearchTool creates a web search tool backed by the default HTTP
// provider.
func NewWebSearchTool() *WebSearchTool {
	return &WebSearchTool{provider: newHTTPSearchProvider()}
}

// NewWebSearchToolWithProvider creates a web search tool using a custom
// provider. Pass nil to force mock results regardless of credentials.
func NewWebSearchToolWithProvider(provider SearchProvider) *WebSearchTool {
	return &WebSearchTool{provider: provider}
}

// Metadata returns the tool contract.
func (t *WebSearchTool) Metadata() tool.Metadata {
	return tool.Metadata{
		Name:        WebSearchToolName,
		Description: "Search the web for current information. Falls back to deterministic mock results when no API credential is configured.",
		Parameters: tool.NewObjectSchema(
			"Parameters for web search",
			map[string]*tool.JSONSchema{
				"query":   tool.NewStringSchema("The search query (required)"),
				"api_key": tool.NewStringSchema("API key for the search provider; overrides environment and keyring"),
				"max_results": tool.NewNumberSchema("Maximum number of results to return").
					WithDefault(float64(DefaultTopK)),
			},
			[]string{"query"},
		),
		RequiredCredentials: []string{SearchAPIKeyEnv},
	}
}

// Execute runs the search. A missing credential is not a failure: the
// tool degrades to mock results labeled provider=mock.
func (t *WebSearchTool) Execute(ctx context.Context, params map[string]interface{}) (*tool.Result, error) {
	query, ok := params["query"].(string)
	if !ok || query == "" {
		return &tool.Result{
			Success: false,
			Error:   &tool.Error{Code: "invalid_params", Message: "query is required"},
		}, nil
	}

	maxResults := DefaultTopK
	if raw, ok := params["max_results"].(float64); ok && raw > 0 {
		maxResults = int(raw)
	}

	apiKey, _ := params["api_key"].(string)
	if apiKey == "" {
		apiKey = resolveSearchCredential()
	}

	if apiKey == "" || t.provider == nil {
		return &tool.Result{
			Success: true,
			Data:    mockSearchItems(query, maxResults),
		}, nil
	}

	hits, err := t.provider.Search(ctx, query, apiKey, maxResults)
	if err != nil {
		return &tool.Result{
			Success: false,
			Error: &tool.Error{
				Code:      "provider_error",
				Message:   fmt.Sprintf("search provider %s failed: %v", t.provider.Name(), err),
				Retryable: true,
			},
		}, nil
	}

	items := make([]map[string]interface{}, 0, len(hits))
	for _, hit := range hits {
		items = append(items, map[string]interface{}{
			"content": hit.Snippet,
			"score":   hit.Score,
			"metadata": map[string]interface{}{
				"provider": t.provider.Name(),
				"title":    hit.Title,
				"url":      hit.URL,
			},
		})
	}
	return &tool.Result{Success: true, Data: items}, nil
}

// resolveSearchCredential checks the environment first, then the system
// keyring. Returns empty when neither is configured.
func resolveSearchCredential() string {
	if key := os.Getenv(SearchAPIKeyEnv); key != "" {
		return key
	}
	if key, err := keyring.Get(keyringService, keyringUser); err == nil {
		return key
	}
	return ""
}

// mockSearchItems builds deterministic, clearly labeled results so the
// pipeline stays exercisable without any live provider.
func mockSearchItems(query string, maxResults int) []map[string]interface{} {
	count := mockResultCount
	if maxResults < count {
		count = maxResults
	}
	items := make([]map[string]interface{}, 0, count)
	for i := 0; i < count; i++ {
		items = append(items, map[string]interface{}{
			"content": fmt.Sprintf("Mock search result %d for %q", i+1, query),
			"score":   0.5 - float64(i)*0.1,
			"metadata": map[string]interface{}{
				"provider": "mock",
				"url":      fmt.Sprintf("https://example.com/search/%d?q=%s", i+1, url.QueryEscape(query)),
			},
		})
	}
	return items
}

// httpSearchProvider is the default live provider, speaking a
// Brave-compatible JSON API.
type httpSearchProvider struct {
	client   *http.Client
	endpoint string
}

func newHTTPSearchProvider() *httpSearchProvider {
	endpoint := DefaultSearchEndpoint
	if override := os.Getenv("QUARRY_SEARCH_ENDPOINT"); override != "" {
		endpoint = override
	}
	return &httpSearchProvider{
		client:   &http.Client{Timeout: defaultSearchTimeout},
		endpoint: endpoint,
	}
}

func (p *httpSearchProvider) Name() string {
	return "brave"
}

func (p *httpSearchProvider) Search(ctx context.Context, query, apiKey string, maxResults int) ([]SearchResult, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid search endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("count", fmt.Sprintf("%d", maxResults))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search API returned %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	hits := make([]SearchResult, 0, len(payload.Web.Results))
	for i, r := range payload.Web.Results {
		if i >= maxResults {
			break
		}
		// Providers return results best-first; derive a decaying score.
		hits = append(hits, SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Description,
			Score:   1.0 / float64(i+1),
		})
	}
	return hits, nil
}

// Ensure interface compliance.
var (
	_ tool.Tool      = (*WebSearchTool)(nil)
	_ SearchProvider = (*httpSearchProvider)(nil)
)
