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
// Package planner maps query text to an ordered tool invocation plan.
// Planning is a pure function: no I/O, fully deterministic, and
// trivially unit-testable.
package planner

import (
	"regexp"
	"strings"
)

// Default tool names used when Options leaves them unset.
const (
	DefaultRetrievalTool  = "semantic_retrieval"
	DefaultWebSearchTool  = "web_search"
	DefaultCalculatorTool = "calculator"
	DefaultTopK           = 10
)

// Step is one planned tool invocation.
type Step struct {
	// Description explains the step for the execution trace.
	Description string

	// ToolName selects the tool in the registry.
	ToolName string

	// Params are the invocation arguments.
	Params map[string]interface{}
}

// Options configures planning.
type Options struct {
	// TopK is passed to retrieval steps. Defaults to DefaultTopK.
	TopK int

	// Tool name overrides. Empty fields use the defaults above.
	RetrievalTool  string
	WebSearchTool  string
	CalculatorTool string
}

func (o Options) withDefaults() Options {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.RetrievalTool == "" {
		o.RetrievalTool = DefaultRetrievalTool
	}
	if o.WebSearchTool == "" {
		o.WebSearchTool = DefaultWebSearchTool
	}
	if o.CalculatorTool == "" {
		o.CalculatorTool = DefaultCalculatorTool
	}
	return o
}

// numericExpression detects inline arithmetic like "6 * 7" or "12/4".
var numericExpression = regexp.MustCompile(`\d+(\.\d+)?\s*[-+*/%^]\s*\d+(\.\d+)?`)

// calculationPrefix strips a leading calculation verb from the query so
// the rest can be handed to the calculator verbatim.
var calculationPrefix = regexp.MustCompile(`(?i)^\s*(calculate|compute|evaluate|what\s+is)\s+`)

// Plan maps query text to an ordered invocation plan:
//
//   - comparison intent plans one retrieval call per compared entity,
//     followed by a web-search call;
//   - calculation intent plans a single calculator call;
//   - everything else plans one retrieval call with the configured TopK.
func Plan(query string, opts Options) []Step {
	opts = opts.withDefaults()
	trimmed := strings.TrimSpace(query)

	if expr, ok := calculationIntent(trimmed); ok {
		return []Step{{
			Description: "Evaluate arithmetic expression",
			ToolName:    opts.CalculatorTool,
			Params:      map[string]interface{}{"expression": expr},
		}}
	}

	if entities := comparisonEntities(trimmed); len(entities) >= 2 {
		steps := make([]Step, 0, len(entities)+1)
		for _, entity := range entities {
			steps = append(steps, Step{
				Description: "Retrieve content about " + entity,
				ToolName:    opts.RetrievalTool,
				Params: map[string]interface{}{
					"query": entity,
					"top_k": float64(opts.TopK),
				},
			})
		}
		steps = append(steps, Step{
			Description: "Search the web for comparison context",
			ToolName:    opts.WebSearchTool,
			Params:      map[string]interface{}{"query": trimmed},
		})
		return steps
	}

	return []Step{{
		Description: "Retrieve content for query",
		ToolName:    opts.RetrievalTool,
		Params: map[string]interface{}{
			"query": trimmed,
			"top_k": float64(opts.TopK),
		},
	}}
}

// Broaden extends a plan that produced a low-quality answer. It appends
// a web-search step when the plan has none yet; an already-broadened
// plan is returned unchanged.
func Broaden(query string, plan []Step, opts Options) []Step {
	opts = opts.withDefaults()
	for _, step := range plan {
		if step.ToolName == opts.WebSearchTool {
			return plan
		}
	}
	return append(plan, Step{
		Description: "Broaden search with web results",
		ToolName:    opts.WebSearchTool,
		Params:      map[string]interface{}{"query": strings.TrimSpace(query)},
	})
}

// calculationIntent reports whether the query asks for arithmetic and
// returns the expression to evaluate. A calculation verb alone is not
// enough: "evaluate the benefits of microservices" is a retrieval
// query, so the calculator is chosen only when the query contains an
// actual numeric expression.
func calculationIntent(query string) (string, bool) {
	if !numericExpression.MatchString(query) {
		return "", false
	}

	expr := calculationPrefix.ReplaceAllString(query, "")
	expr = strings.TrimRight(strings.TrimSpace(expr), "?.!")
	if expr == "" {
		return "", false
	}
	return expr, true
}

// comparisonSplitters separate compared entities, checked in order.
var comparisonSplitters = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s+vs\.?\s+`),
	regexp.MustCompile(`(?i)\s+versus\s+`),
	regexp.MustCompile(`(?i)\s+and\s+`),
}

// comparisonLead strips comparison framing from the front of the query.
var comparisonLead = regexp.MustCompile(`(?i)^\s*(compare|what\s+is\s+the\s+difference\s+between|difference\s+between)\s+`)

// comparisonEntities extracts the compared entities, or nil when the
// query has no comparison intent.
func comparisonEntities(query string) []string {
	lowered := strings.ToLower(query)
	hasIntent := strings.Contains(lowered, "compare") ||
		strings.Contains(lowered, " vs ") ||
		strings.Contains(lowered, " vs. ") ||
		strings.Contains(lowered, "versus") ||
		strings.Contains(lowered, "difference between")
	if !hasIntent {
		return nil
	}

	body := comparisonLead.ReplaceAllString(query, "")
	body = strings.TrimRight(strings.TrimSpace(body), "?.!")

	for _, splitter := range comparisonSplitters {
		parts := splitter.Split(body, -1)
		if len(parts) < 2 {
			continue
		}
		entities := make([]string, 0, len(parts))
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part != "" {
				entities = append(entities, part)
			}
		}
		if len(entities) >= 2 {
			return entities
		}
	}
	return nil
}
