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
// Package tool defines the capability contract for executable tools and the
// registry that manages them. Tools are the mechanism through which the
// orchestration engine reaches backends: each tool encapsulates a single
// capability behind a declared parameter schema.
package tool

import (
	"context"
	"time"
)

// Default metadata values applied at registration time.
const (
	DefaultVersion            = "1.0.0"
	DefaultRateLimitPerMinute = 60
	DefaultTimeout            = 30 * time.Second
)

// Tool is the interface implemented by every executable capability.
// Concrete tools are variants registered by name in a Registry, not a
// class hierarchy: dispatch happens through this interface alone.
type Tool interface {
	// Metadata returns the tool's declared contract: name, description,
	// parameter schema, and execution limits.
	Metadata() Metadata

	// Execute runs the tool with the given parameters. Business-level
	// failures are reported through Result.Success, not the error return;
	// the error return is reserved for programmer-level misuse.
	Execute(ctx context.Context, params map[string]interface{}) (*Result, error)
}

// Metadata describes a tool's contract. Immutable per tool instance:
// the registry copies it at registration and never writes it back.
type Metadata struct {
	// Name uniquely identifies the tool within a registry.
	Name string

	// Description provides human-readable context for planners.
	Description string

	// Parameters is the JSON Schema for tool arguments. The schema is
	// hand-declared by each tool rather than inferred, so it is part of
	// the tool's own contract.
	Parameters *JSONSchema

	// Version of the tool implementation. Defaults to "1.0.0".
	Version string

	// RateLimitPerMinute declares how many invocations per minute the
	// tool can absorb. Enforced by the registry, not the tool.
	// Defaults to 60. Zero or negative disables throttling.
	RateLimitPerMinute int

	// Timeout bounds a single invocation. Defaults to 30s.
	Timeout time.Duration

	// RequiredCredentials lists credential names the tool needs to reach
	// its live backend. May be empty.
	RequiredCredentials []string
}

// withDefaults returns a copy of the metadata with unset fields filled in.
func (m Metadata) withDefaults() Metadata {
	if m.Version == "" {
		m.Version = DefaultVersion
	}
	if m.RateLimitPerMinute == 0 {
		m.RateLimitPerMinute = DefaultRateLimitPerMinute
	}
	if m.Timeout == 0 {
		m.Timeout = DefaultTimeout
	}
	return m
}

// Result represents the outcome of one tool invocation. It is owned
// exclusively by the invocation that produced it.
type Result struct {
	// ToolName identifies the tool that produced this result.
	ToolName string

	// Success indicates whether the tool executed successfully.
	Success bool

	// Data contains the result payload. Retrieval-style tools return
	// []map[string]interface{} item lists; other tools return maps.
	Data interface{}

	// Error carries structured failure information when Success is false.
	Error *Error

	// ExecutionTimeMs is the wall-clock execution time in milliseconds.
	ExecutionTimeMs float64
}

// Error represents a tool execution failure with structured information.
type Error struct {
	// Code is a machine-readable error code.
	Code string

	// Message is a human-readable error message.
	Message string

	// Details provides additional error context.
	Details map[string]interface{}

	// Retryable indicates if the invocation can be retried.
	Retryable bool
}

func (e *Error) String() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// normalize enforces the result invariants: a failed result always
// carries an error with a non-empty message.
func (r *Result) normalize() {
	if r.Success {
		return
	}
	if r.Error == nil {
		r.Error = &Error{Code: "unknown", Message: "Unknown error"}
	} else if r.Error.Message == "" {
		r.Error.Message = "Unknown error"
	}
}

// failedResult builds a normalized failure result.
func failedResult(toolName, code, message string) *Result {
	r := &Result{
		ToolName: toolName,
		Success:  false,
		Error:    &Error{Code: code, Message: message},
	}
	r.normalize()
	return r
}

// Items extracts the retrieved item list from a result payload.
// Returns nil when the payload is not item-shaped (e.g. calculator output).
func (r *Result) Items() []map[string]interface{} {
	if r == nil || r.Data == nil {
		return nil
	}
	switch data := r.Data.(type) {
	case []map[string]interface{}:
		return data
	case []interface{}:
		items := make([]map[string]interface{}, 0, len(data))
		for _, raw := range data {
			if item, ok := raw.(map[string]interface{}); ok {
				items = append(items, item)
			}
		}
		return items
	default:
		return nil
	}
}
