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
// Package synthesis turns successful tool results into one answer
// string and a source list.
package synthesis

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/quarrylabs/quarry/pkg/tool"
)

// Fixed fallback answers. Exact strings are part of the contract.
const (
	// FallbackNoResults is returned when there were zero tool results.
	FallbackNoResults = "No information available to answer this query."

	// FallbackNoRelevant is returned when every attempted result failed
	// or no successful result produced usable content.
	FallbackNoRelevant = "No relevant information found for the query."
)

// Source describes one retrieved item backing the answer.
type Source struct {
	// Tool is the name of the tool that produced the item.
	Tool string `json:"tool"`

	// Content is the item text.
	Content string `json:"content"`

	// Score is the item's relevance score, when the tool reported one.
	Score *float64 `json:"score,omitempty"`

	// Metadata carries tool-specific context for the item.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Synthesize combines tool results into a draft answer and collects
// sources. Retrieval-style items are deduplicated by exact content and
// concatenated in descending relevance order; calculator-style results
// are rendered inline with their numeric outcome. Failed results
// contribute nothing.
func Synthesize(results []*tool.Result) (string, []Source) {
	if len(results) == 0 {
		return FallbackNoResults, nil
	}

	var (
		calcLines    []string
		items        []Source
		anySucceeded bool
	)

	for _, result := range results {
		if result == nil || !result.Success {
			continue
		}
		anySucceeded = true

		if line, ok := renderCalculation(result); ok {
			calcLines = append(calcLines, line)
			continue
		}

		for _, item := range result.Items() {
			source := Source{
				Tool:    result.ToolName,
				Content: itemContent(item),
			}
			if score, ok := itemScore(item); ok {
				source.Score = &score
			}
			if meta, ok := item["metadata"].(map[string]interface{}); ok {
				source.Metadata = meta
			}
			items = append(items, source)
		}
	}

	if !anySucceeded {
		return FallbackNoRelevant, nil
	}

	// Highest-scoring content leads the answer; ties keep call order.
	sort.SliceStable(items, func(i, j int) bool {
		return scoreOf(items[i]) > scoreOf(items[j])
	})

	var sections []string
	sections = append(sections, calcLines...)

	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if item.Content == "" || seen[item.Content] {
			continue
		}
		seen[item.Content] = true
		sections = append(sections, item.Content)
	}

	if len(sections) == 0 {
		return FallbackNoRelevant, items
	}
	return strings.Join(sections, "\n\n"), items
}

// renderCalculation formats a calculator-style payload, identified by
// its "result" and "expression" fields.
func renderCalculation(result *tool.Result) (string, bool) {
	data, ok := result.Data.(map[string]interface{})
	if !ok {
		return "", false
	}
	value, hasValue := data["result"].(float64)
	expr, hasExpr := data["expression"].(string)
	if !hasValue || !hasExpr {
		return "", false
	}
	formatted, ok := data["formatted"].(string)
	if !ok {
		formatted = strconv.FormatFloat(value, 'f', -1, 64)
	}
	return fmt.Sprintf("The result of %s is %s.", expr, formatted), true
}

func itemContent(item map[string]interface{}) string {
	if content, ok := item["content"].(string); ok {
		return content
	}
	return ""
}

func itemScore(item map[string]interface{}) (float64, bool) {
	switch v := item["score"].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func scoreOf(s Source) float64 {
	if s.Score == nil {
		return 0
	}
	return *s.Score
}
