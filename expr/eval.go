/*
 * Copyright 2023 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package expr implements the ExprEval substrate (spec §4.1): a safe
// embedded expression language for rule conditions, lookup keys,
// transformations and calculations.
//
// APEX does not hand-roll a recursive-descent parser. github.com/expr-lang/expr
// already provides the grammar spec §4.1 asks for — identifiers, chained
// property/index access, arithmetic/comparison/logical operators, grouping,
// ternary, and a safelist-friendly function environment — and the teacher
// (components/transform/expr_filter_node.go, expr_switch_node.go,
// expr_assign_node.go) already leans on it for exactly this purpose. This
// package is the thin adaptation layer: DSL-level `#name` root references,
// a bounded compiled-program cache, a fixed method-call safelist, and
// translation of expr-lang failures into the apexerr taxonomy.
package expr

import (
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/apex/engine/apexerr"
)

// hashRef matches `#identifier` root/variable references used throughout
// APEX configuration (lookup keys, conditions, transformations). expr-lang
// itself has no `#` sigil, so APEX strips it before compilation — `#order`
// and `order` resolve to the same environment entry.
var hashRef = regexp.MustCompile(`#([A-Za-z_][A-Za-z0-9_]*)`)

func stripHashRefs(src string) string {
	return hashRef.ReplaceAllString(src, "$1")
}

// Evaluator compiles and evaluates APEX expressions against a variable
// environment. It is safe for concurrent use; the compiled-program cache
// is the only shared mutable state and is itself threadsafe.
type Evaluator struct {
	cache   *programCache
	options []expr.Option
}

// NewEvaluator builds an Evaluator with a bounded LRU compile cache of the
// given capacity (0 uses a sensible default).
func NewEvaluator(cacheCapacity int) *Evaluator {
	options := []expr.Option{
		expr.AllowUndefinedVariables(),
		expr.Env(map[string]any{}),
	}
	options = append(options, safelistFunctions()...)
	return &Evaluator{
		cache:   newProgramCache(cacheCapacity),
		options: options,
	}
}

// Stats returns compile-cache hit/miss counters for observability.
func (e *Evaluator) Stats() Stats { return e.cache.stats() }

// Compile parses src (or returns the cached program) and reports a
// ParseError-kind apexerr.Error on failure, with Path set to src so callers
// can report the offending subexpression. Every call/builtin reference in
// src is checked against the fixed safelist (expr/guard.go): a reference to
// anything else — including expr-lang's own builtins, which remain
// reachable through e.options regardless — fails compilation with an
// UnsafeOperation error rather than silently evaluating.
func (e *Evaluator) Compile(src string) (*vm.Program, error) {
	normalized := stripHashRefs(src)
	if p, ok := e.cache.get(normalized); ok {
		return p, nil
	}
	guard := &safelistGuard{}
	opts := make([]expr.Option, 0, len(e.options)+1)
	opts = append(opts, e.options...)
	opts = append(opts, expr.Patch(guard))

	program, err := expr.Compile(normalized, opts...)
	if err != nil {
		return nil, &apexerr.Error{Kind: apexerr.KindExpression, Path: src, Msg: "ParseError: " + err.Error(), Err: err}
	}
	if len(guard.violations) > 0 {
		return nil, &apexerr.Error{Kind: apexerr.KindExpression, Path: src, Msg: "UnsafeOperation: " + guard.error()}
	}
	e.cache.put(normalized, program)
	return program, nil
}

// Eval compiles (if needed) and runs src against env, a flat variable map
// that also backs `#name` root references and plain-identifier property
// access on the current record.
func (e *Evaluator) Eval(src string, env map[string]any) (any, error) {
	program, err := e.Compile(src)
	if err != nil {
		return nil, err
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return nil, classifyRuntimeError(src, err)
	}
	return out, nil
}

// EvalBool evaluates src and coerces the result to bool per the §4.1
// semantics: null is false in boolean contexts, and so is every other
// non-bool result (no error is reported for it).
func (e *Evaluator) EvalBool(src string, env map[string]any) (bool, error) {
	if strings.TrimSpace(src) == "" {
		return true, nil // spec §3 Enrichment: empty condition => always
	}
	out, err := e.Eval(src, env)
	if err != nil {
		return false, err
	}
	return coerceBool(out), nil
}

func coerceBool(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	default:
		return false
	}
}

// classifyRuntimeError maps expr-lang runtime failures onto the §4.1
// failure-mode taxonomy by inspecting the error text — expr-lang does not
// expose typed runtime errors, so message classification is the most
// faithful mapping available without vendoring its internals.
func classifyRuntimeError(src string, err error) error {
	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "unknown name") || strings.Contains(lower, "undefined"):
		return &apexerr.Error{Kind: apexerr.KindExpression, Path: src, Msg: "UnknownIdentifier: " + msg, Err: err}
	case strings.Contains(lower, "nil pointer") || strings.Contains(lower, "cannot fetch") || strings.Contains(lower, "cannot get"):
		return &apexerr.Error{Kind: apexerr.KindExpression, Path: src, Msg: "NullDereference: " + msg, Err: err}
	case strings.Contains(lower, "divide by zero") || strings.Contains(lower, "division by zero"):
		return &apexerr.Error{Kind: apexerr.KindExpression, Path: src, Msg: "DivideByZero: " + msg, Err: err}
	case strings.Contains(lower, "invalid operation") || strings.Contains(lower, "mismatched type") || strings.Contains(lower, "cannot convert"):
		return &apexerr.Error{Kind: apexerr.KindExpression, Path: src, Msg: "TypeMismatch: " + msg, Err: err}
	default:
		return &apexerr.Error{Kind: apexerr.KindExpression, Path: src, Msg: "UnsafeOperation: " + msg, Err: err}
	}
}

// Span returns a short diagnostic snippet ("span") for an expression source,
// used when reporting errors alongside a document path (spec §4.1: "each
// carries the offending subexpression span").
func Span(src string, max int) string {
	s := strings.TrimSpace(src)
	if max > 0 && len(s) > max {
		return s[:max] + "..."
	}
	return s
}
