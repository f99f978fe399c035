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
package tool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/quarrylabs/quarry/pkg/observability"
)

// ErrDuplicateTool is returned by Register when a tool with the same
// name is already registered.
var ErrDuplicateTool = errors.New("tool already registered")

// Invocation names a tool and the parameters to call it with.
type Invocation struct {
	ToolName string
	Params   map[string]interface{}
}

// ToolSchema is the wire-shaped descriptor returned by Schemas.
type ToolSchema struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  *JSONSchema `json:"parameters,omitempty"`
	Version     string      `json:"version"`
}

// Registry manages tool registration, execution, and the append-only
// execution history. It is an explicitly constructed object injected
// into the engine, never a hidden singleton: tests build isolated
// registries per case without cross-test leakage.
//
// Thread-safe: all methods can be called concurrently.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	metas    map[string]Metadata
	limiters map[string]*rate.Limiter

	history *historyLog
	logger  *zap.Logger
	tracer  observability.Tracer
}

// RegistryOption configures a Registry.
type RegistryOption func(*registryConfig)

type registryConfig struct {
	logger   *zap.Logger
	tracer   observability.Tracer
	compress bool
}

// WithLogger sets the registry logger.
func WithLogger(logger *zap.Logger) RegistryOption {
	return func(c *registryConfig) {
		c.logger = logger
	}
}

// WithTracer sets the registry tracer.
func WithTracer(tracer observability.Tracer) RegistryOption {
	return func(c *registryConfig) {
		c.tracer = tracer
	}
}

// WithHistoryCompression controls whether large history payloads are
// stored compressed. Enabled by default.
func WithHistoryCompression(enabled bool) RegistryOption {
	return func(c *registryConfig) {
		c.compress = enabled
	}
}

// NewRegistry creates a new tool registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	cfg := registryConfig{
		logger:   zap.NewNop(),
		tracer:   observability.NewNoOpTracer(),
		compress: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Registry{
		tools:    make(map[string]Tool),
		metas:    make(map[string]Metadata),
		limiters: make(map[string]*rate.Limiter),
		history:  newHistoryLog(cfg.compress),
		logger:   cfg.logger,
		tracer:   cfg.tracer,
	}
}

// Register adds a tool to the registry. Registering a name twice fails
// with ErrDuplicateTool and leaves the registry unchanged.
func (r *Registry) Register(t Tool) error {
	meta := t.Metadata().withDefaults()
	if meta.Name == "" {
		return errors.New("tool name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[meta.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, meta.Name)
	}

	r.tools[meta.Name] = t
	r.metas[meta.Name] = meta
	if meta.RateLimitPerMinute > 0 {
		// Refill at rpm/60 per second; allow bursts up to the full
		// per-minute quota so steady callers are never throttled.
		r.limiters[meta.Name] = rate.NewLimiter(
			rate.Limit(float64(meta.RateLimitPerMinute)/60.0),
			meta.RateLimitPerMinute,
		)
	}

	r.logger.Debug("registered tool",
		zap.String("tool", meta.Name),
		zap.String("version", meta.Version))
	return nil
}

// Unregister removes a tool. Returns true if the tool was present.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.tools[name]
	delete(r.tools, name)
	delete(r.metas, name)
	delete(r.limiters, name)
	return exists
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns all registered tool names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Schemas returns descriptor structs for every registered tool, sorted
// by name.
func (r *Registry) Schemas() []ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]ToolSchema, 0, len(r.metas))
	for _, meta := range r.metas {
		schemas = append(schemas, ToolSchema{
			Name:        meta.Name,
			Description: meta.Description,
			Parameters:  meta.Parameters,
			Version:     meta.Version,
		})
	}
	sort.Slice(schemas, func(i, j int) bool { return schemas[i].Name < schemas[j].Name })
	return schemas
}

// Execute runs one tool by name. Business-level failures (unknown tool,
// invalid parameters, timeouts, tool errors, panics) are returned as a
// failed Result, never as a Go error: callers can always expect a
// Result back. Every outcome is appended to the execution history.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]interface{}) *Result {
	ctx, span := r.tracer.StartSpan(ctx, "tool.execute",
		observability.WithAttribute("tool.name", name))
	defer r.tracer.EndSpan(span)

	result := r.execute(ctx, name, params)
	result.normalize()
	span.SetAttribute("tool.success", result.Success)

	r.history.append(result)
	r.tracer.RecordMetric("tool.execution_time_ms", result.ExecutionTimeMs,
		map[string]string{"tool": name})
	return result
}

func (r *Registry) execute(ctx context.Context, name string, params map[string]interface{}) *Result {
	r.mu.RLock()
	t, ok := r.tools[name]
	meta := r.metas[name]
	limiter := r.limiters[name]
	r.mu.RUnlock()

	if !ok {
		r.logger.Warn("tool not found", zap.String("tool", name))
		return failedResult(name, "not_found", fmt.Sprintf("tool not found: %s", name))
	}

	// Throttle before the invocation timeout starts so queueing time is
	// not charged against the tool.
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return failedResult(name, "cancelled",
				fmt.Sprintf("invocation cancelled while rate limited: %v", err))
		}
	}

	if err := validateParams(meta.Parameters, params); err != nil {
		return failedResult(name, "invalid_params", err.Error())
	}

	execCtx, cancel := context.WithTimeout(ctx, meta.Timeout)
	defer cancel()

	start := time.Now()
	result := r.runTool(execCtx, t, name, params)
	result.ExecutionTimeMs = elapsedMs(start)
	result.ToolName = name
	return result
}

// runTool invokes the tool in its own goroutine so the metadata timeout
// holds even for tools that ignore context cancellation. A tool that
// overruns keeps its goroutine until it returns; its late result is
// discarded.
func (r *Registry) runTool(ctx context.Context, t Tool, name string, params map[string]interface{}) *Result {
	type outcome struct {
		result *Result
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("tool panicked",
					zap.String("tool", name), zap.Any("panic", rec))
				done <- outcome{result: failedResult(name, "panic",
					fmt.Sprintf("tool panicked: %v", rec))}
			}
		}()
		result, err := t.Execute(ctx, params)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return failedResult(name, "execution_failed", out.err.Error())
		}
		if out.result == nil {
			return &Result{ToolName: name, Success: true}
		}
		return out.result
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return failedResult(name, "timeout",
				fmt.Sprintf("tool %s timed out", name))
		}
		return failedResult(name, "cancelled",
			fmt.Sprintf("tool %s cancelled: %v", name, ctx.Err()))
	}
}

// ExecuteMultiple runs independent invocations concurrently and returns
// results in call order. One invocation's failure never cancels its
// siblings; history appends are serialized by the log's writer lock.
func (r *Registry) ExecuteMultiple(ctx context.Context, invocations []Invocation) []*Result {
	ctx, span := r.tracer.StartSpan(ctx, "tool.execute_multiple",
		observability.WithAttribute("invocation.count", len(invocations)))
	defer r.tracer.EndSpan(span)

	results := make([]*Result, len(invocations))
	var wg sync.WaitGroup
	for i, inv := range invocations {
		wg.Add(1)
		go func(i int, inv Invocation) {
			defer wg.Done()
			results[i] = r.Execute(ctx, inv.ToolName, inv.Params)
		}(i, inv)
	}
	wg.Wait()
	return results
}

// History returns execution log entries, optionally filtered by tool
// name (empty string returns everything).
func (r *Registry) History(toolName string) []HistoryEntry {
	return r.history.list(toolName)
}

// ClearHistory drops all execution log entries.
func (r *Registry) ClearHistory() {
	r.history.clear()
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Nanoseconds()) / 1e6
}
