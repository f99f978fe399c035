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
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ErrDivisionByZero is reported when evaluation divides by zero. It is
// a distinct failure, never a crash.
var ErrDivisionByZero = errors.New("division by zero")

// The expression language is a restricted grammar evaluated over its
// own AST: numbers, + - * / % ^, parentheses, unary minus, named
// variables, and a whitelisted function set. Anything else fails to
// tokenize or parse, so the safety property is structural rather than
// a pattern denylist.

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func lexExpression(input string) ([]token, error) {
	var tokens []token
	runes := []rune(input)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case unicode.IsDigit(r) || r == '.':
			start := i
			seenDot := false
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				if runes[i] == '.' {
					if seenDot {
						return nil, fmt.Errorf("malformed number at position %d", start)
					}
					seenDot = true
				}
				i++
			}
			tokens = append(tokens, token{kind: tokNumber, text: string(runes[start:i]), pos: start})
		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_') {
				i++
			}
			tokens = append(tokens, token{kind: tokIdent, text: string(runes[start:i]), pos: start})
		case strings.ContainsRune("+-*/%^", r):
			tokens = append(tokens, token{kind: tokOp, text: string(r), pos: i})
			i++
		case r == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "(", pos: i})
			i++
		case r == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")", pos: i})
			i++
		case r == ',':
			tokens = append(tokens, token{kind: tokComma, text: ",", pos: i})
			i++
		default:
			return nil, fmt.Errorf("unexpected character %q at position %d", r, i)
		}
	}
	return tokens, nil
}

// exprNode is one node of the parsed expression tree.
type exprNode interface {
	eval(vars map[string]float64) (float64, error)
}

type numberNode float64

func (n numberNode) eval(map[string]float64) (float64, error) {
	return float64(n), nil
}

type varNode string

func (n varNode) eval(vars map[string]float64) (float64, error) {
	if v, ok := vars[string(n)]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("unknown variable %q", string(n))
}

type unaryNode struct {
	operand exprNode
}

func (n unaryNode) eval(vars map[string]float64) (float64, error) {
	v, err := n.operand.eval(vars)
	return -v, err
}

type binaryNode struct {
	op          string
	left, right exprNode
}

func (n binaryNode) eval(vars map[string]float64) (float64, error) {
	left, err := n.left.eval(vars)
	if err != nil {
		return 0, err
	}
	right, err := n.right.eval(vars)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case "+":
		return left + right, nil
	case "-":
		return left - right, nil
	case "*":
		return left * right, nil
	case "/":
		if right == 0 {
			return 0, ErrDivisionByZero
		}
		return left / right, nil
	case "%":
		if right == 0 {
			return 0, ErrDivisionByZero
		}
		return math.Mod(left, right), nil
	case "^":
		return math.Pow(left, right), nil
	}
	return 0, fmt.Errorf("unsupported operator %q", n.op)
}

type callNode struct {
	name string
	args []exprNode
}

// exprFunctions is the whitelist of callable functions. Calls to
// anything else are parse-time errors.
var exprFunctions = map[string]func(args []float64) (float64, error){
	"sqrt": func(args []float64) (float64, error) {
		if len(args) != 1 {
			return 0, errors.New("sqrt takes exactly one argument")
		}
		if args[0] < 0 {
			return 0, errors.New("sqrt of negative number")
		}
		return math.Sqrt(args[0]), nil
	},
	"abs":   unaryFn("abs", math.Abs),
	"floor": unaryFn("floor", math.Floor),
	"ceil":  unaryFn("ceil", math.Ceil),
	"round": unaryFn("round", math.Round),
	"pow": func(args []float64) (float64, error) {
		if len(args) != 2 {
			return 0, errors.New("pow takes exactly two arguments")
		}
		return math.Pow(args[0], args[1]), nil
	},
	"min": variadicFn("min", math.Min),
	"max": variadicFn("max", math.Max),
}

func unaryFn(name string, fn func(float64) float64) func([]float64) (float64, error) {
	return func(args []float64) (float64, error) {
		if len(args) != 1 {
			return 0, fmt.Errorf("%s takes exactly one argument", name)
		}
		return fn(args[0]), nil
	}
}

func variadicFn(name string, fn func(float64, float64) float64) func([]float64) (float64, error) {
	return func(args []float64) (float64, error) {
		if len(args) == 0 {
			return 0, fmt.Errorf("%s takes at least one argument", name)
		}
		acc := args[0]
		for _, v := range args[1:] {
			acc = fn(acc, v)
		}
		return acc, nil
	}
}

func (n callNode) eval(vars map[string]float64) (float64, error) {
	fn := exprFunctions[n.name]
	args := make([]float64, len(n.args))
	for i, arg := range n.args {
		v, err := arg.eval(vars)
		if err != nil {
			return 0, err
		}
		args[i] = v
	}
	return fn(args)
}

// parser is a recursive-descent parser over the token stream.
type parser struct {
	tokens []token
	pos    int
}

func parseExpression(input string) (exprNode, error) {
	tokens, err := lexExpression(input)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, errors.New("empty expression")
	}
	p := &parser{tokens: tokens}
	node, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.tokens) {
		return nil, fmt.Errorf("unexpected token %q at position %d",
			p.tokens[p.pos].text, p.tokens[p.pos].pos)
	}
	return node, nil
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.tokens) {
		return token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *parser) parseAdditive() (exprNode, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := p.peek()
		if !ok || tok.kind != tokOp || (tok.text != "+" && tok.text != "-") {
			return left, nil
		}
		p.pos++
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: tok.text, left: left, right: right}
	}
}

func (p *parser) parseMultiplicative() (exprNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := p.peek()
		if !ok || tok.kind != tokOp || (tok.text != "*" && tok.text != "/" && tok.text != "%") {
			return left, nil
		}
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: tok.text, left: left, right: right}
	}
}

func (p *parser) parseUnary() (exprNode, error) {
	if tok, ok := p.peek(); ok && tok.kind == tokOp && tok.text == "-" {
		p.pos++
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryNode{operand: operand}, nil
	}
	return p.parsePower()
}

func (p *parser) parsePower() (exprNode, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if tok, ok := p.peek(); ok && tok.kind == tokOp && tok.text == "^" {
		p.pos++
		// Right-associative: 2^3^2 is 2^(3^2).
		exp, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return binaryNode{op: "^", left: base, right: exp}, nil
	}
	return base, nil
}

func (p *parser) parsePrimary() (exprNode, error) {
	tok, ok := p.peek()
	if !ok {
		return nil, errors.New("unexpected end of expression")
	}

	switch tok.kind {
	case tokNumber:
		p.pos++
		v, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed number %q", tok.text)
		}
		return numberNode(v), nil

	case tokIdent:
		p.pos++
		next, hasNext := p.peek()
		if hasNext && next.kind == tokLParen {
			return p.parseCall(tok)
		}
		return varNode(tok.text), nil

	case tokLParen:
		p.pos++
		inner, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		if tok, ok := p.peek(); !ok || tok.kind != tokRParen {
			return nil, errors.New("missing closing parenthesis")
		}
		p.pos++
		return inner, nil

	default:
		return nil, fmt.Errorf("unexpected token %q at position %d", tok.text, tok.pos)
	}
}

func (p *parser) parseCall(name token) (exprNode, error) {
	if _, ok := exprFunctions[name.text]; !ok {
		return nil, fmt.Errorf("unknown function %q", name.text)
	}
	p.pos++ // consume '('

	var args []exprNode
	if tok, ok := p.peek(); ok && tok.kind == tokRParen {
		p.pos++
		return callNode{name: name.text, args: args}, nil
	}
	for {
		arg, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		tok, ok := p.peek()
		if !ok {
			return nil, errors.New("unterminated function call")
		}
		switch tok.kind {
		case tokComma:
			p.pos++
		case tokRParen:
			p.pos++
			return callNode{name: name.text, args: args}, nil
		default:
			return nil, fmt.Errorf("unexpected token %q in function call", tok.text)
		}
	}
}
