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
// Package engine implements the retrieval-orchestration core: it plans
// tool invocations for a query, executes them through the registry,
// synthesizes an answer with cited sources, and optionally iterates
// through a bounded self-evaluation loop.
package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quarrylabs/quarry/pkg/observability"
	"github.com/quarrylabs/quarry/pkg/planner"
	"github.com/quarrylabs/quarry/pkg/reflection"
	"github.com/quarrylabs/quarry/pkg/synthesis"
	"github.com/quarrylabs/quarry/pkg/tool"
)

// ErrEmptyQuery is returned by Query for empty or whitespace-only
// input. It is the only call-time error the engine raises for caller
// misuse; all tool-level failures are absorbed into the Response.
var ErrEmptyQuery = errors.New("query must not be empty")

// state tracks one call through the orchestration loop. One instance
// per call, never shared across calls.
type state string

const (
	statePlanning     state = "planning"
	stateExecuting    state = "executing"
	stateSynthesizing state = "synthesizing"
	stateReflecting   state = "reflecting"
	stateDone         state = "done"
)

// Engine is the orchestration core. Construct with New and share
// freely: the engine itself holds no per-call state.
type Engine struct {
	registry    *tool.Registry
	evaluator   *reflection.Evaluator
	cfg         Config
	plannerOpts planner.Options
	logger      *zap.Logger
	tracer      observability.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets the engine configuration.
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithTracer sets the engine tracer.
func WithTracer(tracer observability.Tracer) Option {
	return func(e *Engine) { e.tracer = tracer }
}

// WithEvaluator overrides the reflection evaluator, including its
// secondary threshold/iteration guard.
func WithEvaluator(evaluator *reflection.Evaluator) Option {
	return func(e *Engine) { e.evaluator = evaluator }
}

// WithPlannerOptions overrides planner tool names. TopK is always taken
// from the engine config.
func WithPlannerOptions(opts planner.Options) Option {
	return func(e *Engine) { e.plannerOpts = opts }
}

// New creates an engine over the given registry. The registry is an
// explicit dependency, never a hidden global.
func New(registry *tool.Registry, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		cfg:      DefaultConfig(),
		logger:   zap.NewNop(),
		tracer:   observability.NewNoOpTracer(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.evaluator == nil {
		e.evaluator = reflection.NewEvaluator(reflection.Config{}, e.logger)
	}
	e.plannerOpts.TopK = e.cfg.TopK
	return e
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Query answers one free-text query. It fails only for empty or
// whitespace-only input; every business-level failure degrades into the
// returned Response. Cancelling ctx cancels only this call's pending
// tool invocations.
func (e *Engine) Query(ctx context.Context, text string) (*Response, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrEmptyQuery
	}

	queryID := uuid.New().String()[:8]
	logger := e.logger.With(zap.String("query_id", queryID))

	ctx, span := e.tracer.StartSpan(ctx, "engine.query",
		observability.WithAttribute("query.id", queryID))
	defer e.tracer.EndSpan(span)

	// Per-call context: cancellation stops this call's in-flight
	// invocations without touching other queries on the same registry.
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	call := &queryCall{engine: e, logger: logger, query: trimmed}
	response := call.run(callCtx)
	response.Trace.TotalDurationMs = float64(time.Since(start).Nanoseconds()) / 1e6

	span.SetAttribute("trace.steps", len(response.Trace.Steps))
	span.SetAttribute("trace.iterations", response.Trace.IterationsUsed)
	e.tracer.RecordMetric("engine.query_duration_ms", response.Trace.TotalDurationMs, nil)

	logger.Info("query completed",
		zap.Int("steps", len(response.Trace.Steps)),
		zap.Int("iterations", response.Trace.IterationsUsed),
		zap.Float64("duration_ms", response.Trace.TotalDurationMs))
	return response, nil
}

// queryCall holds the per-call loop state.
type queryCall struct {
	engine *Engine
	logger *zap.Logger
	query  string

	state   state
	stepNum int
	trace   ExecutionTrace
}

func (c *queryCall) transition(next state) {
	c.logger.Debug("state transition",
		zap.String("from", string(c.state)), zap.String("to", string(next)))
	c.state = next
}

// run drives the PLANNING -> EXECUTING -> SYNTHESIZING ->
// (REFLECTING -> EXECUTING -> SYNTHESIZING)* -> DONE loop. The terminal
// state always yields a Response; there is no error terminal state for
// business-level failures.
func (c *queryCall) run(ctx context.Context) *Response {
	cfg := c.engine.cfg
	c.trace.IterationsUsed = 1

	c.transition(statePlanning)
	plan := planner.Plan(c.query, c.engine.plannerOpts)

	var (
		answer  string
		sources []synthesis.Source
		quality *float64
	)

	for {
		c.transition(stateExecuting)
		results := c.executePlan(ctx, plan)

		c.transition(stateSynthesizing)
		answer, sources = synthesis.Synthesize(results)

		if !cfg.EnableReflection {
			break
		}

		c.transition(stateReflecting)
		q := c.engine.evaluator.Evaluate(c.query, answer, sources)
		quality = &q.Overall
		c.logger.Debug("reflection pass",
			zap.Float64("quality", q.Overall),
			zap.Int("iteration", c.trace.IterationsUsed))

		if q.Overall >= cfg.QualityThreshold {
			break
		}
		if c.trace.IterationsUsed >= cfg.MaxIterations {
			break
		}
		// Secondary guard: the evaluator enforces its own budget so a
		// misconfigured engine cannot loop unboundedly.
		if !c.engine.evaluator.ShouldIterate(q, c.trace.IterationsUsed) {
			break
		}

		plan = planner.Broaden(c.query, plan, c.engine.plannerOpts)
		c.trace.IterationsUsed++
	}

	c.transition(stateDone)
	return &Response{
		Answer:     answer,
		Confidence: confidenceFrom(answer, sources),
		Sources:    sources,
		Trace:      c.trace,
		Quality:    quality,
	}
}

// executePlan runs all planned steps concurrently through the registry
// and appends one ExecutionStep per invocation. One step's failure
// never cancels its siblings.
func (c *queryCall) executePlan(ctx context.Context, plan []planner.Step) []*tool.Result {
	invocations := make([]tool.Invocation, len(plan))
	for i, step := range plan {
		invocations[i] = tool.Invocation{ToolName: step.ToolName, Params: step.Params}
	}

	results := c.engine.registry.ExecuteMultiple(ctx, invocations)

	for i, result := range results {
		c.stepNum++
		status := StepCompleted
		if result == nil || !result.Success {
			status = StepFailed
		}
		c.trace.Steps = append(c.trace.Steps, ExecutionStep{
			StepNumber:  c.stepNum,
			Description: plan[i].Description,
			ToolName:    plan[i].ToolName,
			Status:      status,
			Result:      result,
		})
	}
	return results
}

// confidenceFrom derives the response confidence from the collected
// sources: the mean reported score, scaled by how many independent
// sources back the answer. Answers with no sources (e.g. direct
// calculations) get a fixed confidence by answer kind.
func confidenceFrom(answer string, sources []synthesis.Source) ConfidenceScore {
	if len(sources) == 0 {
		overall := 0.85
		if answer == synthesis.FallbackNoResults || answer == synthesis.FallbackNoRelevant {
			overall = 0.1
		}
		return ConfidenceScore{Overall: overall}
	}

	var total float64
	for _, s := range sources {
		if s.Score != nil {
			total += clamp01(*s.Score)
		} else {
			total += 0.5
		}
	}
	mean := total / float64(len(sources))

	countFactor := float64(len(sources)) / 3.0
	if countFactor > 1 {
		countFactor = 1
	}
	return ConfidenceScore{
		Overall: clamp01(mean * (0.5 + 0.5*countFactor)),
		Components: map[string]float64{
			"mean_source_score":   mean,
			"source_count_factor": countFactor,
		},
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
