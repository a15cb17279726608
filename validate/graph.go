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

package validate

import (
	"fmt"
	"sort"

	"github.com/apex/engine/loader"
)

// GraphResult is the §4.3(3) dependency analysis output: the include
// graph, any cycles found, the per-file structural/expression result, and
// the ranked root-cause list a caller should act on first.
type GraphResult struct {
	Valid                bool
	Dependencies         map[string][]string
	CircularDependencies [][]string
	RootCauses           []string
	FileResults          map[string]FileResult
}

// ValidateGraph runs structural+expression validation on every document in
// g and propagates failure along data-source-refs: a file with no
// structural/expression errors of its own is still marked invalid if any
// file it depends on — transitively — is invalid (spec §4.3(3): "a file is
// a root cause if any of its dependencies are broken or missing"; §8
// universal invariant "dependency-aware validation"). A file's own errors,
// not its dependencies' propagated invalidity, make it a root cause: the
// seed scenario where a.yaml depends on a broken b.yaml reports b.yaml in
// RootCauses and marks a.yaml invalid by propagation alone.
func ValidateGraph(g *loader.Graph, structural *StructuralValidator, expression *ExpressionValidator) *GraphResult {
	res := &GraphResult{
		Dependencies:         g.Dependencies,
		CircularDependencies: g.Cycles,
		FileResults:          map[string]FileResult{},
	}

	var paths []string
	for p := range g.Documents {
		paths = append(paths, p)
	}
	sort.Strings(paths) // deterministic iteration regardless of map order

	for _, p := range paths {
		d := g.Documents[p]
		fr := FileResult{Path: p, Valid: true}
		if d.Err != nil {
			fr.Valid = false
			fr.Errors = []string{fmt.Sprintf("parse error: %v", d.Err)}
		} else {
			errs := structural.Validate(d.Doc)
			errs = append(errs, expression.Validate(d.Doc)...)
			if len(errs) > 0 {
				fr.Valid = false
				fr.Errors = errs
			}
		}
		res.FileResults[p] = fr
	}

	// A file's own Errors are the only source of RootCauses entries —
	// propagated invalidity (below) never manufactures a new root cause,
	// it only marks dependents invalid.
	for _, p := range paths {
		for _, e := range res.FileResults[p].Errors {
			res.RootCauses = append(res.RootCauses, fmt.Sprintf("%s: %s", p, e))
		}
	}

	// Any file inside a reported cycle is invalid and carries its own
	// root-cause entry, since §8 says "no validation of files within the
	// cycle is relied upon for the root result" — a cycle is itself
	// sufficient grounds for invalidity, independent of structural checks.
	for _, cycle := range res.CircularDependencies {
		for _, p := range cycle {
			fr := res.FileResults[p]
			fr.Valid = false
			res.FileResults[p] = fr
		}
		if len(cycle) > 0 {
			res.RootCauses = append(res.RootCauses, fmt.Sprintf("%s: circular dependency: %s", cycle[0], loader.CycleString(cycle)))
		}
	}

	// Fixed-point propagation along the dependency edges (not recursive —
	// bounded by len(paths) passes, safe even if the graph itself has a
	// cycle since propagation here only ever flips Valid true -> false).
	for changed := true; changed; {
		changed = false
		for _, p := range paths {
			fr := res.FileResults[p]
			if !fr.Valid {
				continue
			}
			for _, dep := range res.Dependencies[p] {
				depResult, known := res.FileResults[dep]
				if !known || depResult.Valid {
					continue
				}
				fr.Valid = false
				res.FileResults[p] = fr
				changed = true
				break
			}
		}
	}

	res.Valid = len(res.CircularDependencies) == 0
	for _, fr := range res.FileResults {
		if !fr.Valid {
			res.Valid = false
			break
		}
	}
	return res
}
