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

// Package enrich implements the EnrichmentProcessor (spec §4.5): resolves
// lookup services or data sources, merges looked-up/calculated fields into
// a record, and applies required/default/conditional semantics.
package enrich

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fatih/structs"

	"github.com/apex/engine/apexerr"
	"github.com/apex/engine/expr"
	"github.com/apex/engine/metrics"
	"github.com/apex/engine/model"
)

// LookupService is a keyed source of rows (spec GLOSSARY "Lookup service"),
// implemented by a data source (package datasource) or an in-memory
// provider (internal/testsupport, or a bootstrap-loaded dataset).
type LookupService interface {
	Lookup(ctx context.Context, key any) (row map[string]any, found bool, err error)
}

// Registry resolves a lookup service by its configured name.
type Registry interface {
	LookupService(name string) (LookupService, bool)
}

// Processor applies an ordered list of enrichments to a record.
type Processor struct {
	Eval     *expr.Evaluator
	Registry Registry
	Metrics  *metrics.EnrichmentMetrics

	cachesMu sync.Mutex
	caches   map[string]*lookupCache
}

func NewProcessor(eval *expr.Evaluator, registry Registry) *Processor {
	return &Processor{
		Eval:     eval,
		Registry: registry,
		Metrics:  metrics.NewEnrichmentMetrics(),
		caches:   map[string]*lookupCache{},
	}
}

// FieldError is a field-level enrichment error (spec §4.5
// RequiredFieldMissing) that does not abort the whole record.
type FieldError struct {
	EnrichmentID string
	Field        string
	Msg          string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("enrichment %s: field %s: %s", e.EnrichmentID, e.Field, e.Msg)
}

// Apply runs every enabled, applicable, condition-passing enrichment in
// enrichments (sorted by priority ascending, ties by declaration order —
// spec §5 Ordering) against record, mutating it in place and returning the
// same instance (spec §4.5: "the return value must be the same object
// instance so callers may chain"). It returns field-level errors
// (non-fatal) and a single fatal error if a lookup service name can't be
// resolved (spec §7: "Lookup-service-missing is fatal to the request").
func (p *Processor) Apply(ctx context.Context, record any, enrichments []model.Enrichment, targetType string) (any, []FieldError, error) {
	view, writeBack := asMap(record)

	ordered := make([]model.Enrichment, len(enrichments))
	copy(ordered, enrichments)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority < ordered[j].Priority })

	var fieldErrs []FieldError
	for _, e := range ordered {
		if !e.Enabled {
			continue
		}
		if e.TargetType != "" && targetType != "" && e.TargetType != targetType {
			continue
		}
		pass, err := p.Eval.EvalBool(e.Condition, view)
		if err != nil {
			p.Metrics.Applied(e.ID, "condition_error")
			continue
		}
		if !pass {
			p.Metrics.Applied(e.ID, "skipped")
			continue
		}

		start := time.Now()
		var applyErrs []FieldError
		var applyErr error
		switch e.Type {
		case model.EnrichmentLookup:
			applyErrs, applyErr = p.applyLookup(ctx, e, view)
		case model.EnrichmentCalculation:
			applyErrs, applyErr = p.applyCalculation(e, view)
		}
		p.Metrics.Observe(e.ID, time.Since(start))
		if applyErr != nil {
			return record, fieldErrs, applyErr
		}
		if len(applyErrs) > 0 {
			fieldErrs = append(fieldErrs, applyErrs...)
			p.Metrics.Applied(e.ID, "partial")
		} else {
			p.Metrics.Applied(e.ID, "success")
		}
	}

	writeBack(view)
	return record, fieldErrs, nil
}

func (p *Processor) applyLookup(ctx context.Context, e model.Enrichment, view map[string]any) ([]FieldError, error) {
	cfg := e.LookupConfig
	svc, ok := p.Registry.LookupService(cfg.LookupService)
	if !ok {
		return nil, &apexerr.Error{Kind: apexerr.KindLookup, Path: cfg.LookupService, Msg: "lookup service not found"}
	}

	keyVal, err := p.Eval.Eval(cfg.LookupKey, view)
	if err != nil {
		return nil, apexerr.Wrap(apexerr.KindExpression, cfg.LookupKey, err)
	}

	var row map[string]any
	var found bool
	if cfg.Cache {
		cache := p.cacheFor(e.ID, time.Duration(cfg.CacheTTLSeconds)*time.Second)
		cacheKey := fmt.Sprintf("%v", keyVal)
		if cached, cachedFound, ok := cache.get(cacheKey); ok {
			row, found = cached, cachedFound
			p.Metrics.CacheHit(e.ID)
		} else {
			row, found, err = svc.Lookup(ctx, keyVal)
			if err != nil {
				return nil, apexerr.Wrap(apexerr.KindLookup, cfg.LookupService, err)
			}
			cache.put(cacheKey, row, found)
			p.Metrics.CacheMiss(e.ID)
		}
	} else {
		row, found, err = svc.Lookup(ctx, keyVal)
		if err != nil {
			return nil, apexerr.Wrap(apexerr.KindLookup, cfg.LookupService, err)
		}
	}

	var fieldErrs []FieldError
	for _, fm := range cfg.FieldMappings {
		var val any
		var has bool
		if found {
			val, has = row[fm.SourceField]
		}
		switch {
		case has:
			view[fm.TargetField] = val
		case fm.DefaultValue != nil:
			view[fm.TargetField] = fm.DefaultValue
		case fm.Required:
			fieldErrs = append(fieldErrs, FieldError{EnrichmentID: e.ID, Field: fm.TargetField, Msg: "RequiredFieldMissing"})
		}
	}
	return fieldErrs, nil
}

func (p *Processor) applyCalculation(e model.Enrichment, view map[string]any) ([]FieldError, error) {
	cfg := e.CalculationConfig
	val, err := p.Eval.Eval(cfg.Expression, view)
	if err != nil {
		return nil, apexerr.Wrap(apexerr.KindExpression, cfg.Expression, err)
	}
	view[cfg.ResultField] = val
	return nil, nil
}

// cacheFor returns the per-enrichment lookup cache, creating it on first
// use. Processor is shared across concurrently-running requests (spec §5:
// "parallel execution across independent requests is supported"), so
// p.caches is guarded by cachesMu; the returned *lookupCache is itself
// threadsafe (see cache.go) and safe to use after the lock is released.
func (p *Processor) cacheFor(enrichmentID string, ttl time.Duration) *lookupCache {
	p.cachesMu.Lock()
	defer p.cachesMu.Unlock()
	if c, ok := p.caches[enrichmentID]; ok {
		return c
	}
	c := newLookupCache(1000, ttl)
	p.caches[enrichmentID] = c
	return c
}

// asMap returns a map[string]any view of record plus a writeBack function
// that copies mutations back onto the original instance. For map[string]any
// records (the common case — spec §1 "arbitrary record streams (maps,
// domain objects)") the view *is* the record, so writeBack is a no-op and
// mutation-in-place falls out naturally. For struct records, fatih/structs
// is used to project/re-set exported fields by their `structs` (or field
// name) tag, keeping "same object instance" semantics for pointer-to-struct
// records.
func asMap(record any) (map[string]any, func(map[string]any)) {
	if m, ok := record.(map[string]any); ok {
		return m, func(map[string]any) {}
	}
	s := structs.New(record)
	view := s.Map()
	return view, func(updated map[string]any) {
		for _, f := range s.Fields() {
			name := f.Name()
			if tag := f.Tag("structs"); tag != "" && tag != "-" {
				name = tag
			}
			if v, ok := updated[name]; ok {
				_ = f.Set(v)
			}
		}
	}
}
