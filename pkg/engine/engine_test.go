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
package engine_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry/pkg/engine"
	"github.com/quarrylabs/quarry/pkg/reflection"
	"github.com/quarrylabs/quarry/pkg/tool"
	"github.com/quarrylabs/quarry/pkg/tool/builtin"
)

func newTestRegistry(t *testing.T) *tool.Registry {
	t.Helper()
	reg := tool.NewRegistry()

	index := builtin.NewMemoryIndex(
		builtin.Document{
			Content:  "Machine learning is a subset of artificial intelligence focused on learning from data.",
			Metadata: map[string]interface{}{"topic": "ml"},
		},
		builtin.Document{
			Content:  "Neural networks are a machine learning technique inspired by the brain.",
			Metadata: map[string]interface{}{"topic": "ml"},
		},
		builtin.Document{
			Content:  "Go is a statically typed language designed for building concurrent services.",
			Metadata: map[string]interface{}{"topic": "go"},
		},
	)
	require.NoError(t, reg.Register(builtin.NewRetrievalTool(index, 10)))
	require.NoError(t, reg.Register(builtin.NewWebSearchToolWithProvider(nil)))
	require.NoError(t, reg.Register(builtin.NewCalculatorTool()))
	return reg
}

func TestEngine_Query_EmptyInput(t *testing.T) {
	e := engine.New(newTestRegistry(t))

	for _, query := range []string{"", "   ", "\n\t"} {
		response, err := e.Query(context.Background(), query)
		require.Error(t, err, "query %q", query)
		assert.Nil(t, response)
		assert.ErrorIs(t, err, engine.ErrEmptyQuery)
		assert.Contains(t, err.Error(), "empty")
	}
}

func TestEngine_Query_RetrievalAnswer(t *testing.T) {
	e := engine.New(newTestRegistry(t))

	response, err := e.Query(context.Background(), "What is machine learning?")
	require.NoError(t, err)
	require.NotNil(t, response)

	assert.NotEmpty(t, response.Answer)
	assert.Contains(t, strings.ToLower(response.Answer), "machine learning")
	assert.NotEmpty(t, response.Sources)
	assert.Equal(t, builtin.RetrievalToolName, response.Sources[0].Tool)
	assert.Greater(t, response.Confidence.Overall, 0.0)
	assert.Contains(t, response.Confidence.Components, "mean_source_score")
	assert.Greater(t, response.Trace.TotalDurationMs, 0.0)
	require.NotEmpty(t, response.Trace.Steps)
	assert.Equal(t, engine.StepCompleted, response.Trace.Steps[0].Status)
}

func TestEngine_Query_CalculationAnswer(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.EnableReflection = false
	e := engine.New(newTestRegistry(t), engine.WithConfig(cfg))

	response, err := e.Query(context.Background(), "Calculate 6 * 7")
	require.NoError(t, err)

	assert.Contains(t, response.Answer, "42")
	require.Len(t, response.Trace.Steps, 1)
	assert.Equal(t, builtin.CalculatorToolName, response.Trace.Steps[0].ToolName)
	// Direct calculations carry no retrieval sources.
	assert.Empty(t, response.Sources)
}

func TestEngine_Query_ReflectionDisabled(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.EnableReflection = false
	e := engine.New(newTestRegistry(t), engine.WithConfig(cfg))

	response, err := e.Query(context.Background(), "What is machine learning?")
	require.NoError(t, err)

	assert.Equal(t, 1, response.Trace.IterationsUsed)
	assert.Nil(t, response.Quality)
}

func TestEngine_Query_ReflectionEnabledReportsQuality(t *testing.T) {
	e := engine.New(newTestRegistry(t))

	response, err := e.Query(context.Background(), "What is machine learning?")
	require.NoError(t, err)

	require.NotNil(t, response.Quality)
	assert.GreaterOrEqual(t, *response.Quality, 0.0)
	assert.LessOrEqual(t, *response.Quality, 1.0)
}

func TestEngine_Query_UnreachableThresholdStopsAtBudget(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.QualityThreshold = 0.99
	cfg.MaxIterations = 3
	// A permissive evaluator guard so the engine budget is what binds.
	evaluator := reflection.NewEvaluator(reflection.Config{
		QualityThreshold: 0.99,
		MaxIterations:    10,
	}, nil)

	e := engine.New(newTestRegistry(t),
		engine.WithConfig(cfg),
		engine.WithEvaluator(evaluator))

	response, err := e.Query(context.Background(), "What is machine learning?")
	require.NoError(t, err)

	assert.Equal(t, 3, response.Trace.IterationsUsed)
	assert.NotEmpty(t, response.Answer)
	require.NotNil(t, response.Quality)
	assert.Less(t, *response.Quality, 0.99)
}

func TestEngine_Query_EvaluatorGuardStopsRunawayConfig(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.QualityThreshold = 0.99
	cfg.MaxIterations = 100

	e := engine.New(newTestRegistry(t), engine.WithConfig(cfg))

	response, err := e.Query(context.Background(), "What is machine learning?")
	require.NoError(t, err)

	// The default evaluator budget caps iterations well below the
	// engine's misconfigured maximum.
	assert.LessOrEqual(t, response.Trace.IterationsUsed, reflection.DefaultMaxIterations+1)
}

func TestEngine_Query_BroadeningAddsWebSearch(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.QualityThreshold = 0.99
	cfg.MaxIterations = 2
	evaluator := reflection.NewEvaluator(reflection.Config{
		QualityThreshold: 0.99,
		MaxIterations:    10,
	}, nil)

	e := engine.New(newTestRegistry(t),
		engine.WithConfig(cfg),
		engine.WithEvaluator(evaluator))

	response, err := e.Query(context.Background(), "What is machine learning?")
	require.NoError(t, err)

	assert.Equal(t, 2, response.Trace.IterationsUsed)

	var sawWebSearch bool
	for _, step := range response.Trace.Steps {
		if step.ToolName == builtin.WebSearchToolName {
			sawWebSearch = true
		}
	}
	assert.True(t, sawWebSearch, "broadened plan should include web search")
}

func TestEngine_Query_StepNumbersStrictlyIncrease(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.QualityThreshold = 0.99
	evaluator := reflection.NewEvaluator(reflection.Config{
		QualityThreshold: 0.99,
		MaxIterations:    10,
	}, nil)

	e := engine.New(newTestRegistry(t),
		engine.WithConfig(cfg),
		engine.WithEvaluator(evaluator))

	response, err := e.Query(context.Background(), "What is machine learning?")
	require.NoError(t, err)
	require.Greater(t, len(response.Trace.Steps), 1)

	for i, step := range response.Trace.Steps {
		assert.Equal(t, i+1, step.StepNumber)
	}
}

func TestEngine_Query_NoMatchesFallsBack(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.EnableReflection = false
	e := engine.New(newTestRegistry(t), engine.WithConfig(cfg))

	response, err := e.Query(context.Background(), "quantum chromodynamics lattice gauge")
	require.NoError(t, err)

	assert.Equal(t, "No relevant information found for the query.", response.Answer)
	assert.Empty(t, response.Sources)
	assert.Less(t, response.Confidence.Overall, 0.5)
}

func TestEngine_Query_ComparisonPlansMultipleSteps(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.EnableReflection = false
	e := engine.New(newTestRegistry(t), engine.WithConfig(cfg))

	response, err := e.Query(context.Background(), "Compare Go vs Rust")
	require.NoError(t, err)

	require.Len(t, response.Trace.Steps, 3)
	assert.Equal(t, builtin.RetrievalToolName, response.Trace.Steps[0].ToolName)
	assert.Equal(t, builtin.RetrievalToolName, response.Trace.Steps[1].ToolName)
	assert.Equal(t, builtin.WebSearchToolName, response.Trace.Steps[2].ToolName)
}

func TestEngine_Query_ToolFailureDegradesGracefully(t *testing.T) {
	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(&tool.MockTool{
		MockMetadata: tool.Metadata{Name: builtin.RetrievalToolName},
		MockExecute: func(ctx context.Context, params map[string]interface{}) (*tool.Result, error) {
			return &tool.Result{
				Success: false,
				Error:   &tool.Error{Code: "index_error", Message: "index offline"},
			}, nil
		},
	}))

	cfg := engine.DefaultConfig()
	cfg.EnableReflection = false
	e := engine.New(reg, engine.WithConfig(cfg))

	response, err := e.Query(context.Background(), "What is machine learning?")
	require.NoError(t, err)

	assert.Equal(t, "No relevant information found for the query.", response.Answer)
	require.Len(t, response.Trace.Steps, 1)
	assert.Equal(t, engine.StepFailed, response.Trace.Steps[0].Status)
	require.NotNil(t, response.Trace.Steps[0].Result)
	assert.Contains(t, response.Trace.Steps[0].Result.Error.Message, "index offline")
}

func TestEngine_Query_ConcurrentCallsIsolated(t *testing.T) {
	e := engine.New(newTestRegistry(t))

	type outcome struct {
		response *engine.Response
		err      error
	}
	done := make(chan outcome, 4)
	queries := []string{
		"What is machine learning?",
		"Calculate 6 * 7",
		"Compare Go vs Rust",
		"What is machine learning?",
	}
	for _, query := range queries {
		go func(query string) {
			response, err := e.Query(context.Background(), query)
			done <- outcome{response: response, err: err}
		}(query)
	}

	for range queries {
		out := <-done
		require.NoError(t, out.err)
		require.NotNil(t, out.response)
		assert.NotEmpty(t, out.response.Answer)
		assert.GreaterOrEqual(t, out.response.Trace.IterationsUsed, 1)
	}
}

func TestEngine_Query_ConfigAccessor(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.TopK = 4
	e := engine.New(newTestRegistry(t), engine.WithConfig(cfg))

	assert.Equal(t, 4, e.Config().TopK)
}
