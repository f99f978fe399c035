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
package engine

import (
	"github.com/quarrylabs/quarry/pkg/synthesis"
	"github.com/quarrylabs/quarry/pkg/tool"
)

// StepStatus is the lifecycle state of one execution step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// ExecutionStep records a single tool invocation within a trace.
type ExecutionStep struct {
	// StepNumber is 1-based and strictly increasing within one trace.
	StepNumber int `json:"step_number"`

	// Description is the planner's description of the step.
	Description string `json:"description"`

	// ToolName is the invoked tool.
	ToolName string `json:"tool_name"`

	// Status derives from the tool result's success flag.
	Status StepStatus `json:"status"`

	// Result is set once the step leaves pending.
	Result *tool.Result `json:"tool_result,omitempty"`
}

// ExecutionTrace is the ordered record of all invocations for one
// Query call. Created fresh per call and discarded with the response.
type ExecutionTrace struct {
	Steps           []ExecutionStep `json:"steps"`
	TotalDurationMs float64         `json:"total_duration_ms"`
	IterationsUsed  int             `json:"iterations_used"`
}

// ConfidenceScore summarizes how well the sources support the answer.
type ConfidenceScore struct {
	Overall    float64            `json:"overall"`
	Components map[string]float64 `json:"components,omitempty"`
}

// Response is the engine's answer to one query.
type Response struct {
	// Answer is the synthesized answer text, never empty.
	Answer string `json:"answer"`

	// Confidence is derived from the collected sources.
	Confidence ConfidenceScore `json:"confidence"`

	// Sources lists the retrieved items backing the answer.
	Sources []synthesis.Source `json:"sources"`

	// Trace is the execution record for this call.
	Trace ExecutionTrace `json:"trace"`

	// Quality is the reflection score. Nil when reflection was disabled
	// for the call.
	Quality *float64 `json:"quality,omitempty"`
}
