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
package reflection

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry/pkg/synthesis"
)

func scoredSources(scores ...float64) []synthesis.Source {
	sources := make([]synthesis.Source, len(scores))
	for i, score := range scores {
		s := score
		sources[i] = synthesis.Source{
			Tool:    "semantic_retrieval",
			Content: fmt.Sprintf("source %d", i),
			Score:   &s,
		}
	}
	return sources
}

func TestEvaluator_Deterministic(t *testing.T) {
	e := NewEvaluator(Config{}, nil)
	sources := scoredSources(0.9, 0.7)

	first := e.Evaluate("What is machine learning?", "Machine learning is a subset of AI focused on learning from data.", sources)
	second := e.Evaluate("What is machine learning?", "Machine learning is a subset of AI focused on learning from data.", sources)

	assert.Equal(t, first, second)
}

func TestEvaluator_ScoreWithinBounds(t *testing.T) {
	e := NewEvaluator(Config{}, nil)

	cases := []struct {
		query   string
		answer  string
		sources []synthesis.Source
	}{
		{"q", "", nil},
		{"What is x?", synthesis.FallbackNoResults, nil},
		{"What is machine learning?", "A detailed answer backed by many sources.", scoredSources(1, 1, 1, 1, 1, 1, 1)},
	}
	for _, tc := range cases {
		q := e.Evaluate(tc.query, tc.answer, tc.sources)
		assert.GreaterOrEqual(t, q.Overall, 0.0)
		assert.LessOrEqual(t, q.Overall, 1.0)
		for name, component := range q.Components {
			assert.GreaterOrEqual(t, component, 0.0, "component %s", name)
			assert.LessOrEqual(t, component, 1.0, "component %s", name)
		}
	}
}

func TestEvaluator_MonotonicInSourceCount(t *testing.T) {
	e := NewEvaluator(Config{}, nil)
	query := "What is machine learning?"
	answer := "Machine learning is a subset of AI focused on learning from data."

	var previous float64
	for n := 0; n <= 5; n++ {
		scores := make([]float64, n)
		for i := range scores {
			scores[i] = 0.8
		}
		q := e.Evaluate(query, answer, scoredSources(scores...))
		assert.GreaterOrEqual(t, q.Overall, previous, "quality dropped at %d sources", n)
		previous = q.Overall
	}
}

func TestEvaluator_MonotonicInRelevance(t *testing.T) {
	e := NewEvaluator(Config{}, nil)
	query := "What is machine learning?"
	answer := "Machine learning is a subset of AI focused on learning from data."

	low := e.Evaluate(query, answer, scoredSources(0.2, 0.2))
	high := e.Evaluate(query, answer, scoredSources(0.9, 0.9))
	assert.Greater(t, high.Overall, low.Overall)
}

func TestEvaluator_FallbackAnswersScoreLow(t *testing.T) {
	e := NewEvaluator(Config{}, nil)

	q := e.Evaluate("What is machine learning?", synthesis.FallbackNoResults, nil)
	assert.Less(t, q.Overall, DefaultQualityThreshold)
	assert.Equal(t, 0.0, q.Components["directness"])

	q = e.Evaluate("What is machine learning?", synthesis.FallbackNoRelevant, nil)
	assert.Equal(t, 0.0, q.Components["directness"])
}

func TestEvaluator_CalculationAnswers(t *testing.T) {
	e := NewEvaluator(Config{}, nil)

	numeric := e.Evaluate("Calculate 6 * 7", "The result of 6 * 7 is 42.", nil)
	assert.Equal(t, 1.0, numeric.Components["directness"])

	nonNumeric := e.Evaluate("Calculate 6 * 7", "That depends on the operands.", nil)
	assert.Less(t, nonNumeric.Components["directness"], numeric.Components["directness"])
}

func TestEvaluator_UnscoredSourcesUseDefault(t *testing.T) {
	e := NewEvaluator(Config{}, nil)
	sources := []synthesis.Source{
		{Tool: "a", Content: "one"},
		{Tool: "a", Content: "two"},
	}

	q := e.Evaluate("What is x?", "An answer.", sources)
	assert.Equal(t, 0.5, q.Components["relevance"])
}

func TestEvaluator_ComponentBreakdownComplete(t *testing.T) {
	e := NewEvaluator(Config{}, nil)
	q := e.Evaluate("What is x?", "An answer.", scoredSources(0.5))

	for _, name := range []string{"coverage", "relevance", "directness", "specificity"} {
		_, ok := q.Components[name]
		require.True(t, ok, "missing component %s", name)
	}
}

func TestShouldIterate_BelowThreshold(t *testing.T) {
	e := NewEvaluator(Config{QualityThreshold: 0.7, MaxIterations: 3}, nil)

	assert.True(t, e.ShouldIterate(Quality{Overall: 0.3}, 1))
	assert.False(t, e.ShouldIterate(Quality{Overall: 0.9}, 1))
}

func TestShouldIterate_BudgetExhausted(t *testing.T) {
	e := NewEvaluator(Config{QualityThreshold: 0.99, MaxIterations: 3}, nil)

	// Low quality alone never overrides the iteration budget.
	assert.True(t, e.ShouldIterate(Quality{Overall: 0.1}, 2))
	assert.False(t, e.ShouldIterate(Quality{Overall: 0.1}, 3))
	assert.False(t, e.ShouldIterate(Quality{Overall: 0.1}, 10))
}

func TestConfig_Defaults(t *testing.T) {
	e := NewEvaluator(Config{}, nil)

	assert.Equal(t, DefaultQualityThreshold, e.cfg.QualityThreshold)
	assert.Equal(t, DefaultMaxIterations, e.cfg.MaxIterations)
}
