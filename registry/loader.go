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

package registry

import (
	"fmt"
	"sort"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/apex/engine/apexerr"
	"github.com/apex/engine/loader"
	"github.com/apex/engine/model"
	"github.com/apex/engine/validate"
)

// Option configures a Loader, generalizing the teacher's types.Option
// functional-options pattern (types/options.go) from Config fields to
// reload-time behaviour.
type Option func(*Loader) error

// WithLogger sets the zerolog.Logger the Loader reports reload events to.
func WithLogger(l zerolog.Logger) Option {
	return func(ld *Loader) error { ld.log = l; return nil }
}

// WithSchedule starts a background cron-driven reload of root using spec,
// a standard 5-field cron expression (spec §6's scheduled-reload
// extension; Non-goal-free since automatic reload is never explicitly
// excluded).
func WithSchedule(spec string) Option {
	return func(ld *Loader) error {
		ld.schedule = spec
		return nil
	}
}

// Loader loads a document tree into a Registry snapshot and optionally
// keeps it refreshed on a cron schedule.
type Loader struct {
	Registry *Registry

	log      zerolog.Logger
	schedule string
	cron     *cron.Cron
}

func NewLoader(reg *Registry, opts ...Option) (*Loader, error) {
	ld := &Loader{Registry: reg, log: zerolog.Nop()}
	for _, opt := range opts {
		if err := opt(ld); err != nil {
			return nil, err
		}
	}
	return ld, nil
}

// LoadOnce loads root's document tree and runs the dependency-aware graph
// validation (validate.ValidateGraph, spec §4.3(3)) — only if the whole
// graph comes back valid (no file's own errors, no file invalid by
// propagation from a broken dependency, no cycle) does it build and
// install a new Snapshot (spec §9: "a document set either becomes wholly
// active or not at all").
func (ld *Loader) LoadOnce(root string) error {
	graph, err := loader.Load(root)
	if err != nil {
		return apexerr.Wrap(apexerr.KindConfiguration, root, err)
	}

	structural := validate.NewStructuralValidator()
	expression := validate.NewExpressionValidator(nil)
	result := validate.ValidateGraph(graph, structural, expression)
	if !result.Valid {
		return apexerr.New(apexerr.KindConfiguration, root, fmt.Sprintf("rootCauses=%v circularDependencies=%v", result.RootCauses, result.CircularDependencies))
	}

	prev := ld.Registry.Active()
	next := buildSnapshot(graph, prev.Generation+1)
	ld.Registry.Swap(next)
	ld.log.Info().Uint64("generation", next.Generation).Int("rules", len(next.Rules)).
		Int("rule-chains", len(next.RuleChains)).Msg("registry snapshot installed")
	return nil
}

// Start begins the cron schedule configured via WithSchedule, reloading
// root on every tick. It is a no-op if no schedule was configured.
func (ld *Loader) Start(root string) error {
	if ld.schedule == "" {
		return nil
	}
	ld.cron = cron.New()
	_, err := ld.cron.AddFunc(ld.schedule, func() {
		if err := ld.LoadOnce(root); err != nil {
			ld.log.Error().Err(err).Str("root", root).Msg("scheduled reload failed; keeping previous snapshot")
		}
	})
	if err != nil {
		return apexerr.Wrap(apexerr.KindConfiguration, root, err)
	}
	ld.cron.Start()
	return nil
}

// Stop halts the cron schedule, if running.
func (ld *Loader) Stop() {
	if ld.cron != nil {
		ld.cron.Stop()
	}
}

func buildSnapshot(graph *loader.Graph, generation uint64) *Snapshot {
	snap := &Snapshot{
		Rules: map[string]model.Rule{}, RuleGroups: map[string]model.RuleGroup{},
		Enrichments: map[string][]model.Enrichment{}, RuleChains: map[string]model.RuleChain{},
		Generation: generation,
	}
	var paths []string
	for p := range graph.Documents {
		paths = append(paths, p)
	}
	sort.Strings(paths) // deterministic iteration regardless of map order

	for _, p := range paths {
		d := graph.Documents[p]
		if d.Doc == nil {
			continue
		}
		for _, r := range d.Doc.Rules {
			snap.Rules[r.ID] = r
		}
		for _, g := range d.Doc.RuleGroups {
			snap.RuleGroups[g.ID] = g
		}
		for _, e := range d.Doc.Enrichments {
			snap.Enrichments[e.TargetType] = append(snap.Enrichments[e.TargetType], e)
		}
		for _, rc := range d.Doc.RuleChains {
			snap.RuleChains[rc.ID] = rc
		}
	}
	for target := range snap.Enrichments {
		list := snap.Enrichments[target]
		sort.SliceStable(list, func(i, j int) bool { return list[i].Priority < list[j].Priority })
		snap.Enrichments[target] = list
	}
	return snap
}
