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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebSearch_MockResults(t *testing.T) {
	ws := NewWebSearchToolWithProvider(nil)

	result, err := ws.Execute(context.Background(), map[string]interface{}{
		"query": "golang concurrency",
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	items := result.Items()
	require.Len(t, items, 3)

	assert.Equal(t, 0.5, items[0]["score"])
	for _, item := range items {
		content := item["content"].(string)
		assert.Contains(t, content, "golang concurrency")
		meta := item["metadata"].(map[string]interface{})
		assert.Equal(t, "mock", meta["provider"])
		assert.NotEmpty(t, meta["url"])
	}
}

func TestWebSearch_MockResults_Deterministic(t *testing.T) {
	ws := NewWebSearchToolWithProvider(nil)
	params := map[string]interface{}{"query": "stable query"}

	first, err := ws.Execute(context.Background(), params)
	require.NoError(t, err)
	second, err := ws.Execute(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, first.Data, second.Data)
}

func TestWebSearch_MockResults_MaxResults(t *testing.T) {
	ws := NewWebSearchToolWithProvider(nil)

	result, err := ws.Execute(context.Background(), map[string]interface{}{
		"query":       "anything",
		"max_results": 2.0,
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Len(t, result.Items(), 2)
}

func TestWebSearch_MissingQuery(t *testing.T) {
	ws := NewWebSearchToolWithProvider(nil)

	result, err := ws.Execute(context.Background(), map[string]interface{}{})
	require.NoError(t, err)
	require.False(t, result.Success)
	assert.Equal(t, "invalid_params", result.Error.Code)
}

type fakeProvider struct {
	lastQuery  string
	lastAPIKey string
	hits       []SearchResult
	err        error
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Search(ctx context.Context, query, apiKey string, maxResults int) ([]SearchResult, error) {
	p.lastQuery = query
	p.lastAPIKey = apiKey
	if p.err != nil {
		return nil, p.err
	}
	if len(p.hits) > maxResults {
		return p.hits[:maxResults], nil
	}
	return p.hits, nil
}

func TestWebSearch_ProviderResults(t *testing.T) {
	provider := &fakeProvider{
		hits: []SearchResult{
			{Title: "First", URL: "https://a.example", Snippet: "first snippet", Score: 1.0},
			{Title: "Second", URL: "https://b.example", Snippet: "second snippet", Score: 0.5},
		},
	}
	ws := NewWebSearchToolWithProvider(provider)

	// Explicit api_key param takes precedence over environment and keyring.
	result, err := ws.Execute(context.Background(), map[string]interface{}{
		"query":   "live query",
		"api_key": "sk-test",
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.Equal(t, "live query", provider.lastQuery)
	assert.Equal(t, "sk-test", provider.lastAPIKey)

	items := result.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "first snippet", items[0]["content"])
	meta := items[0]["metadata"].(map[string]interface{})
	assert.Equal(t, "fake", meta["provider"])
	assert.Equal(t, "First", meta["title"])
}

func TestWebSearch_ProviderError(t *testing.T) {
	ws := NewWebSearchToolWithProvider(&fakeProvider{err: errors.New("quota exceeded")})

	result, err := ws.Execute(context.Background(), map[string]interface{}{
		"query":   "live query",
		"api_key": "sk-test",
	})
	require.NoError(t, err)
	require.False(t, result.Success)
	assert.Equal(t, "provider_error", result.Error.Code)
	assert.True(t, result.Error.Retryable)
	assert.Contains(t, result.Error.Message, "quota exceeded")
}

func TestWebSearch_NoCredentialFallsBackToMock(t *testing.T) {
	t.Setenv(SearchAPIKeyEnv, "")
	provider := &fakeProvider{hits: []SearchResult{{Snippet: "live"}}}
	ws := NewWebSearchToolWithProvider(provider)

	result, err := ws.Execute(context.Background(), map[string]interface{}{
		"query": "no credential",
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	// Provider never consulted without a credential.
	assert.Empty(t, provider.lastQuery)
	items := result.Items()
	require.NotEmpty(t, items)
	meta := items[0]["metadata"].(map[string]interface{})
	assert.Equal(t, "mock", meta["provider"])
}
