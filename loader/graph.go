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

package loader

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/engine/model"
)

// Graph is the transitive include graph built by walking data-source-refs
// (spec §4.2, §4.3). Dependencies maps a file to the files its
// data-source-refs point at; Cycles lists every cycle found via iterative
// DFS with a visiting set (spec §9: "never rely on unbounded recursion").
type Graph struct {
	Root         string
	Documents    map[string]*DocumentOrErr
	Dependencies map[string][]string
	Cycles       [][]string
}

// DocumentOrErr is the per-file load outcome: either a parsed document or
// the error that prevented parsing (e.g. missing file, malformed YAML).
type DocumentOrErr struct {
	Path string
	Doc  *model.Document
	Err  error
}

// Load walks root and every file transitively reachable through
// data-source-refs, returning the full dependency graph. It never follows
// a cycle more than once; cycles are recorded, not treated as fatal to
// traversal. If root is a directory, every *.yaml/*.yml file directly and
// transitively under it is treated as a root of its own traversal (spec §6
// validate-folder/validate-project walk every document in a tree, not just
// what one file's data-source-refs happen to reach).
func Load(root string) (*Graph, error) {
	g := &Graph{
		Root:         root,
		Documents:    map[string]*DocumentOrErr{},
		Dependencies: map[string][]string{},
	}
	visiting := map[string]bool{}

	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		g.visit(root, visiting, nil)
		return g, nil
	}

	err = filepath.Walk(root, func(path string, fi os.FileInfo, err error) error {
		if err != nil || fi.IsDir() {
			return err
		}
		if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
			return nil
		}
		g.visit(path, visiting, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// visitFrame is one stack entry of the iterative DFS below: path being
// explored, its resolved dependency list, and how many of those have been
// pushed so far. The frame stack itself is the root-to-here chain used for
// cycle reporting.
type visitFrame struct {
	path    string
	depIdx  int
	deps    []string
}

// visit walks path and everything it transitively depends on via
// data-source-refs using an explicit stack rather than Go-level recursion
// (spec §9: "never rely on unbounded recursion" — a deeply nested ref
// chain must not risk a stack overflow). visiting is shared across calls
// from Load's directory walk so cross-root cycles are still caught; the
// third parameter is unused.
func (g *Graph) visit(path string, visiting map[string]bool, _ []string) {
	abs := normalizePath(path)
	if _, done := g.Documents[abs]; done {
		return
	}

	var frames []visitFrame
	frames = append(frames, visitFrame{path: abs})

	for len(frames) > 0 {
		top := &frames[len(frames)-1]

		if top.deps == nil {
			if _, done := g.Documents[top.path]; done {
				frames = frames[:len(frames)-1]
				continue
			}
			visiting[top.path] = true
			doc, err := ReadFile(top.path)
			if err != nil {
				g.Documents[top.path] = &DocumentOrErr{Path: top.path, Err: err}
				top.deps = []string{}
				continue
			}
			g.Documents[top.path] = &DocumentOrErr{Path: top.path, Doc: doc}

			dir := filepath.Dir(top.path)
			for _, ref := range doc.DataSourceRefs {
				if ref.Source == "" {
					continue
				}
				depPath := ref.Source
				if !filepath.IsAbs(depPath) {
					depPath = filepath.Join(dir, depPath)
				}
				top.deps = append(top.deps, normalizePath(depPath))
			}
			g.Dependencies[top.path] = top.deps
			if top.deps == nil {
				top.deps = []string{}
			}
			continue
		}

		if top.depIdx >= len(top.deps) {
			visiting[top.path] = false
			frames = frames[:len(frames)-1]
			continue
		}

		dep := top.deps[top.depIdx]
		top.depIdx++

		if visiting[dep] {
			chain := make([]string, 0, len(frames))
			for _, f := range frames {
				chain = append(chain, f.path)
			}
			g.Cycles = append(g.Cycles, cyclePath(chain, dep))
			continue
		}
		if _, done := g.Documents[dep]; done {
			continue
		}
		frames = append(frames, visitFrame{path: dep})
	}
}

func normalizePath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	return abs
}

func cyclePath(stack []string, closingNode string) []string {
	for i, n := range stack {
		if n == closingNode {
			cycle := append([]string{}, stack[i:]...)
			return append(cycle, closingNode)
		}
	}
	return append(append([]string{}, stack...), closingNode)
}

// CycleString renders a cycle as "a -> b -> a" for diagnostics.
func CycleString(cycle []string) string {
	out := ""
	for i, c := range cycle {
		if i > 0 {
			out += " -> "
		}
		out += filepath.Base(c)
	}
	return out
}
