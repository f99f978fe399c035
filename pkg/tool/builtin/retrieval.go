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
// Package builtin provides the reference tools shipped with quarry:
// semantic retrieval, web search, and a sandboxed calculator.
package builtin

import (
	"context"
	"fmt"

	"github.com/quarrylabs/quarry/pkg/tool"
)

// RetrievalToolName is the registry name of the semantic retrieval tool.
const RetrievalToolName = "semantic_retrieval"

// DefaultTopK bounds result counts when the caller does not specify one.
const DefaultTopK = 10

// Match is one ranked hit returned by an Index.
type Match struct {
	// Content is the matched document text.
	Content string

	// Score is the relevance score in [0, 1], higher is better.
	Score float64

	// Metadata carries index-specific context for the match.
	Metadata map[string]interface{}
}

// Index is the boundary to the semantic-index backend. The concrete
// backend (vector store, search service) lives outside this module;
// MemoryIndex is the deterministic reference implementation.
type Index interface {
	Search(ctx context.Context, query string, topK int) ([]Match, error)
}

// RetrievalTool searches an Index and returns ranked content items.
type RetrievalTool struct {
	index Index
	topK  int
}

// NewRetrievalTool creates a retrieval tool over the given index.
// topK <= 0 falls back to DefaultTopK.
func NewRetrievalTool(index Index, topK int) *RetrievalTool {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &RetrievalTool{index: index, topK: topK}
}

// Metadata returns the tool contract.
func (t *RetrievalTool) Metadata() tool.Metadata {
	return tool.Metadata{
		Name:        RetrievalToolName,
		Description: "Search the semantic index for content relevant to a query. Returns ranked items with content, score, and metadata.",
		Parameters: tool.NewObjectSchema(
			"Parameters for semantic retrieval",
			map[string]*tool.JSONSchema{
				"query": tool.NewStringSchema("The search query (required)"),
				"top_k": tool.NewNumberSchema("Maximum number of results to return").
					WithDefault(float64(DefaultTopK)),
			},
			[]string{"query"},
		),
	}
}

// Execute searches the index and returns ranked items.
func (t *RetrievalTool) Execute(ctx context.Context, params map[string]interface{}) (*tool.Result, error) {
	query, ok := params["query"].(string)
	if !ok || query == "" {
		return &tool.Result{
			Success: false,
			Error:   &tool.Error{Code: "invalid_params", Message: "query is required"},
		}, nil
	}

	topK := t.topK
	if raw, ok := params["top_k"].(float64); ok && raw > 0 {
		topK = int(raw)
	}

	matches, err := t.index.Search(ctx, query, topK)
	if err != nil {
		return &tool.Result{
			Success: false,
			Error: &tool.Error{
				Code:      "index_error",
				Message:   fmt.Sprintf("index search failed: %v", err),
				Retryable: true,
			},
		}, nil
	}

	items := make([]map[string]interface{}, 0, len(matches))
	for _, m := range matches {
		item := map[string]interface{}{
			"content": m.Content,
			"score":   m.Score,
		}
		if m.Metadata != nil {
			item["metadata"] = m.Metadata
		}
		items = append(items, item)
	}

	return &tool.Result{
		Success: true,
		Data:    items,
	}, nil
}

// Ensure RetrievalTool implements Tool.
var _ tool.Tool = (*RetrievalTool)(nil)
