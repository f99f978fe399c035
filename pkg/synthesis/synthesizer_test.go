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
package synthesis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry/pkg/tool"
)

func retrievalResult(toolName string, items ...map[string]interface{}) *tool.Result {
	return &tool.Result{ToolName: toolName, Success: true, Data: items}
}

func failed(toolName string) *tool.Result {
	return &tool.Result{
		ToolName: toolName,
		Success:  false,
		Error:    &tool.Error{Code: "timeout", Message: "tool timed out"},
	}
}

func TestSynthesize_NoResults(t *testing.T) {
	answer, sources := Synthesize(nil)
	assert.Equal(t, "No information available to answer this query.", answer)
	assert.Empty(t, sources)
}

func TestSynthesize_AllFailed(t *testing.T) {
	answer, sources := Synthesize([]*tool.Result{failed("a"), failed("b")})
	assert.Equal(t, "No relevant information found for the query.", answer)
	assert.Empty(t, sources)
}

func TestSynthesize_SingleResult(t *testing.T) {
	answer, sources := Synthesize([]*tool.Result{
		retrievalResult("semantic_retrieval",
			map[string]interface{}{"content": "Machine learning is a subset of AI.", "score": 0.9}),
	})

	assert.Equal(t, "Machine learning is a subset of AI.", answer)
	require.Len(t, sources, 1)
	assert.Equal(t, "semantic_retrieval", sources[0].Tool)
	require.NotNil(t, sources[0].Score)
	assert.Equal(t, 0.9, *sources[0].Score)
}

func TestSynthesize_OrdersByScore(t *testing.T) {
	answer, _ := Synthesize([]*tool.Result{
		retrievalResult("a",
			map[string]interface{}{"content": "low relevance", "score": 0.2},
			map[string]interface{}{"content": "high relevance", "score": 0.9}),
		retrievalResult("b",
			map[string]interface{}{"content": "mid relevance", "score": 0.5}),
	})

	sections := strings.Split(answer, "\n\n")
	require.Len(t, sections, 3)
	assert.Equal(t, "high relevance", sections[0])
	assert.Equal(t, "mid relevance", sections[1])
	assert.Equal(t, "low relevance", sections[2])
}

func TestSynthesize_DeduplicatesAnswerKeepsAllSources(t *testing.T) {
	shared := map[string]interface{}{"content": "Shared finding.", "score": 0.8}
	answer, sources := Synthesize([]*tool.Result{
		retrievalResult("a", shared),
		retrievalResult("b", shared),
	})

	// Duplicate content appears once in the answer.
	assert.Equal(t, 1, strings.Count(answer, "Shared finding."))
	// Source attribution keeps both tools.
	require.Len(t, sources, 2)
	assert.Equal(t, "a", sources[0].Tool)
	assert.Equal(t, "b", sources[1].Tool)
}

func TestSynthesize_FailedResultsExcluded(t *testing.T) {
	answer, sources := Synthesize([]*tool.Result{
		failed("broken"),
		retrievalResult("ok",
			map[string]interface{}{"content": "usable content", "score": 0.6}),
	})

	assert.Equal(t, "usable content", answer)
	require.Len(t, sources, 1)
	assert.Equal(t, "ok", sources[0].Tool)
}

func TestSynthesize_CalculationRenderedInline(t *testing.T) {
	answer, sources := Synthesize([]*tool.Result{
		{
			ToolName: "calculator",
			Success:  true,
			Data: map[string]interface{}{
				"expression": "6 * 7",
				"result":     42.0,
				"formatted":  "42",
			},
		},
	})

	assert.Equal(t, "The result of 6 * 7 is 42.", answer)
	// Calculations are not retrieval sources.
	assert.Empty(t, sources)
}

func TestSynthesize_CalculationLeadsMixedResults(t *testing.T) {
	answer, _ := Synthesize([]*tool.Result{
		retrievalResult("semantic_retrieval",
			map[string]interface{}{"content": "Arithmetic background.", "score": 0.9}),
		{
			ToolName: "calculator",
			Success:  true,
			Data: map[string]interface{}{
				"expression": "2 + 2",
				"result":     4.0,
				"formatted":  "4",
			},
		},
	})

	sections := strings.Split(answer, "\n\n")
	require.Len(t, sections, 2)
	assert.Equal(t, "The result of 2 + 2 is 4.", sections[0])
	assert.Equal(t, "Arithmetic background.", sections[1])
}

func TestSynthesize_SuccessfulButEmpty(t *testing.T) {
	answer, sources := Synthesize([]*tool.Result{
		retrievalResult("semantic_retrieval"),
	})

	assert.Equal(t, "No relevant information found for the query.", answer)
	assert.Empty(t, sources)
}

func TestSynthesize_MissingScoreSortsLast(t *testing.T) {
	answer, sources := Synthesize([]*tool.Result{
		retrievalResult("a",
			map[string]interface{}{"content": "unscored"},
			map[string]interface{}{"content": "scored", "score": 0.3}),
	})

	sections := strings.Split(answer, "\n\n")
	require.Len(t, sections, 2)
	assert.Equal(t, "scored", sections[0])
	assert.Equal(t, "unscored", sections[1])

	require.Len(t, sources, 2)
	var unscored *Source
	for i := range sources {
		if sources[i].Content == "unscored" {
			unscored = &sources[i]
		}
	}
	require.NotNil(t, unscored)
	assert.Nil(t, unscored.Score)
}

func TestSynthesize_MetadataCarriedThrough(t *testing.T) {
	_, sources := Synthesize([]*tool.Result{
		retrievalResult("web_search", map[string]interface{}{
			"content":  "web finding",
			"score":    0.5,
			"metadata": map[string]interface{}{"provider": "mock", "url": "https://example.com"},
		}),
	})

	require.Len(t, sources, 1)
	require.NotNil(t, sources[0].Metadata)
	assert.Equal(t, "mock", sources[0].Metadata["provider"])
}

func TestSynthesize_Deterministic(t *testing.T) {
	input := []*tool.Result{
		retrievalResult("a",
			map[string]interface{}{"content": "one", "score": 0.5},
			map[string]interface{}{"content": "two", "score": 0.5}),
	}

	firstAnswer, firstSources := Synthesize(input)
	secondAnswer, secondSources := Synthesize(input)
	assert.Equal(t, firstAnswer, secondAnswer)
	assert.Equal(t, firstSources, secondSources)
}
