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
package builtin

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/quarrylabs/quarry/pkg/tool"
)

// CalculatorToolName is the registry name of the arithmetic tool.
const CalculatorToolName = "calculator"

// wordOperators normalizes spelled-out operators before lexing.
// Longest phrases are replaced first so "divided by" wins over "by".
var wordOperators = []struct {
	pattern *regexp.Regexp
	op      string
}{
	{regexp.MustCompile(`(?i)\bto the power of\b`), "^"},
	{regexp.MustCompile(`(?i)\bmultiplied by\b`), "*"},
	{regexp.MustCompile(`(?i)\bdivided by\b`), "/"},
	{regexp.MustCompile(`(?i)\bmodulo\b`), "%"},
	{regexp.MustCompile(`(?i)\btimes\b`), "*"},
	{regexp.MustCompile(`(?i)\bplus\b`), "+"},
	{regexp.MustCompile(`(?i)\bminus\b`), "-"},
	{regexp.MustCompile(`(?i)\bmod\b`), "%"},
}

// disallowedConstructs rejects reflective and code-execution constructs
// up front with a clear message. The restricted grammar cannot express
// them anyway; this check exists for better error reporting.
var disallowedConstructs = []string{
	"__", "import", "eval", "exec", "compile", "getattr", "setattr",
	"globals", "locals", "open", "lambda", "system",
}

// attributeTraversal matches identifier.identifier access into runtime
// internals, which the grammar has no use for.
var attributeTraversal = regexp.MustCompile(`[A-Za-z_]\s*\.\s*[A-Za-z_]`)

// CalculatorTool evaluates arithmetic expressions in a sandboxed,
// structurally restricted grammar.
type CalculatorTool struct{}

// NewCalculatorTool creates a calculator tool.
func NewCalculatorTool() *CalculatorTool {
	return &CalculatorTool{}
}

// Metadata returns the tool contract.
func (t *CalculatorTool) Metadata() tool.Metadata {
	return tool.Metadata{
		Name:        CalculatorToolName,
		Description: "Evaluate an arithmetic expression. Supports + - * / % ^, parentheses, named variables, and functions sqrt, abs, min, max, pow, floor, ceil, round.",
		Parameters: tool.NewObjectSchema(
			"Parameters for expression evaluation",
			map[string]*tool.JSONSchema{
				"expression": tool.NewStringSchema("The arithmetic expression to evaluate (required)"),
				"variables":  tool.NewObjectValueSchema("Named numeric values substituted into the expression"),
			},
			[]string{"expression"},
		),
	}
}

// Execute evaluates the expression. Division by zero is a distinct
// failure, never a panic.
func (t *CalculatorTool) Execute(ctx context.Context, params map[string]interface{}) (*tool.Result, error) {
	raw, ok := params["expression"].(string)
	if !ok || strings.TrimSpace(raw) == "" {
		return &tool.Result{
			Success: false,
			Error:   &tool.Error{Code: "invalid_params", Message: "expression is required"},
		}, nil
	}

	if construct, found := findDisallowed(raw); found {
		return &tool.Result{
			Success: false,
			Error: &tool.Error{
				Code:    "disallowed_construct",
				Message: "expression contains disallowed construct: " + construct,
			},
		}, nil
	}

	expr := normalizeWordOperators(raw)

	node, err := parseExpression(expr)
	if err != nil {
		return &tool.Result{
			Success: false,
			Error:   &tool.Error{Code: "parse_error", Message: err.Error()},
		}, nil
	}

	vars, err := numericVariables(params["variables"])
	if err != nil {
		return &tool.Result{
			Success: false,
			Error:   &tool.Error{Code: "invalid_params", Message: err.Error()},
		}, nil
	}

	value, err := node.eval(vars)
	if err != nil {
		code := "evaluation_error"
		if errors.Is(err, ErrDivisionByZero) {
			code = "division_by_zero"
		}
		return &tool.Result{
			Success: false,
			Error:   &tool.Error{Code: code, Message: err.Error()},
		}, nil
	}

	return &tool.Result{
		Success: true,
		Data: map[string]interface{}{
			"expression": strings.TrimSpace(expr),
			"result":     value,
			"formatted":  strconv.FormatFloat(value, 'f', -1, 64),
		},
	}, nil
}

func normalizeWordOperators(expr string) string {
	for _, wo := range wordOperators {
		expr = wo.pattern.ReplaceAllString(expr, wo.op)
	}
	return expr
}

func findDisallowed(expr string) (string, bool) {
	lowered := strings.ToLower(expr)
	for _, construct := range disallowedConstructs {
		if strings.Contains(lowered, construct) {
			return construct, true
		}
	}
	if attributeTraversal.MatchString(expr) {
		return "attribute access", true
	}
	return "", false
}

func numericVariables(raw interface{}) (map[string]float64, error) {
	if raw == nil {
		return nil, nil
	}
	values, ok := raw.(map[string]interface{})
	if !ok {
		return nil, errors.New("variables must be an object of numeric values")
	}
	vars := make(map[string]float64, len(values))
	for name, value := range values {
		switch v := value.(type) {
		case float64:
			vars[name] = v
		case int:
			vars[name] = float64(v)
		case int64:
			vars[name] = float64(v)
		default:
			return nil, errors.New("variable " + name + " is not numeric")
		}
	}
	return vars, nil
}

// Ensure CalculatorTool implements Tool.
var _ tool.Tool = (*CalculatorTool)(nil)
