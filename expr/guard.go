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

package expr

import (
	"strings"

	"github.com/expr-lang/expr/ast"
)

// allowedFunctions is the fixed set safelistFunctions registers — the only
// function/builtin names an APEX expression may call. expr.Function only
// adds entries to the evaluation environment; it never removes expr-lang's
// own builtins (all, any, map, filter, now, sum, ...), so without a
// separate enforcement pass those remain callable and §4.1's "limited to a
// fixed safelist" would only be half true.
var allowedFunctions = map[string]bool{
	"isAfter":   true,
	"plusYears": true,
	"length":    true,
	"matches":   true,
	"compareTo": true,
}

// safelistGuard is an ast.Visitor (expr-lang's expr.Patch hook) that walks
// the parsed tree before compilation and records every call to a function
// or builtin outside allowedFunctions. It never rewrites the tree — only
// expr.Patch's walk is reused, to collect violations Compile then turns
// into a compile error.
type safelistGuard struct {
	violations []string
}

func (g *safelistGuard) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.CallNode:
		if id, ok := n.Callee.(*ast.IdentifierNode); ok && !allowedFunctions[id.Value] {
			g.violations = append(g.violations, id.Value)
		}
	case *ast.BuiltinNode:
		if !allowedFunctions[n.Name] {
			g.violations = append(g.violations, n.Name)
		}
	}
}

func (g *safelistGuard) error() string {
	return "function(s) not in safelist: " + strings.Join(g.violations, ", ")
}
