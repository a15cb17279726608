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

// Package chain implements the RuleChainEngine (spec §4.6): the six
// composable rule-chain orchestration patterns plus shared scaffolding —
// rule construction from config, stage context, and result building.
//
// This generalizes the teacher's node-graph engine (engine/chain_engine.go,
// engine/chain.go): where the teacher threads a types.RuleMsg through an
// arbitrary component graph resolved by NodeConnection relationships, APEX
// threads a ChainedEvaluationContext through one of six named, fixed
// topologies. The atomic hot-swap of the root context
// (engine/chain_engine.go's unsafe.Pointer + atomic.StorePointer dance) is
// kept as registry.Registry's atomic.Pointer[Snapshot] swap, which
// registry.Loader drives on each successful reload.
package chain

import (
	"fmt"

	"github.com/apex/engine/model"
)

// TopoOrder computes a deterministic topological order over the stages of
// a complex-workflow chain (spec §4.6 pattern 5, §8 "topological order").
// Ties are broken by declaration order (stable), and a cycle is reported
// with its full path rather than silently truncated, per spec §9's design
// note: "iterative DFS with a visiting set... never rely on unbounded
// recursion."
func TopoOrder(stages []model.WorkflowStage) ([]string, error) {
	byID := make(map[string]model.WorkflowStage, len(stages))
	order := make([]string, 0, len(stages))
	for _, s := range stages {
		if _, dup := byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate stage id %q", s.ID)
		}
		byID[s.ID] = s
		order = append(order, s.ID)
	}
	for _, s := range stages {
		for _, dep := range s.DependsOn {
			if _, ok := byID[dep]; !ok {
				return nil, fmt.Errorf("stage %q depends-on unknown stage %q", s.ID, dep)
			}
		}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(stages))
	var result []string

	// Iterative DFS using an explicit frame stack so no stage count can
	// overflow the Go call stack, and so a cycle in the "visiting" (gray)
	// set can be reported with its concrete path.
	type frame struct {
		id      string
		depIdx  int
		path    []string
	}
	for _, start := range order {
		if color[start] != white {
			continue
		}
		stack := []*frame{{id: start, path: []string{start}}}
		color[start] = gray
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			deps := byID[top.id].DependsOn
			if top.depIdx < len(deps) {
				dep := deps[top.depIdx]
				top.depIdx++
				switch color[dep] {
				case white:
					color[dep] = gray
					stack = append(stack, &frame{id: dep, path: append(append([]string{}, top.path...), dep)})
				case gray:
					return nil, fmt.Errorf("cycle detected among stages: %v", appendCycle(top.path, dep))
				case black:
					// already finished, fine
				}
				continue
			}
			// all deps processed
			color[top.id] = black
			result = append(result, top.id)
			stack = stack[:len(stack)-1]
		}
	}
	return result, nil
}

func appendCycle(path []string, closing string) []string {
	for i, p := range path {
		if p == closing {
			return append(append([]string{}, path[i:]...), closing)
		}
	}
	return append(append([]string{}, path...), closing)
}
