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

// Package loader ingests YAML configuration documents and binds them to the
// typed entities in package model (spec §4.2 YamlModel & Loader).
//
// YAML token-level parsing is explicitly out of scope for the core (spec
// §1) — this package reuses gopkg.in/yaml.v3 for that, exactly as the
// teacher's own indirect yaml dependency implies, and uses
// github.com/mitchellh/mapstructure to bind the generic
// map[string]interface{} sections into model structs, mirroring the
// teacher's DecodeChain (engine/parser.go) generalized from JSON struct
// tags to YAML section maps.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/apex/engine/model"
)

// decodeHook teaches mapstructure to parse RFC3339 and date-only timestamps
// for the audit fields (createdDate/modifiedDate/...), matching §3's
// requirement that dates are always present and ordered.
func decodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf(time.Time{}) {
			return data, nil
		}
		s := data.(string)
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			return ts, nil
		}
		return time.Parse("2006-01-02", s)
	}
}

func newDecoder(out any) (*mapstructure.Decoder, error) {
	return mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       decodeHook(),
		WeaklyTypedInput: true,
		Result:           out,
	})
}

// ReadFile loads and parses a single YAML document from disk without
// resolving data-source-refs. Use Load for the transitive,
// dependency-aware variant.
func ReadFile(path string) (*model.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(path, raw)
}

// Parse decodes raw YAML bytes into a model.Document. It does not validate
// grammar — that is validate.StructuralValidator's job — but it does fail
// if the top level isn't a mapping, since nothing downstream can proceed
// without a metadata section to key off of.
func Parse(path string, raw []byte) (*model.Document, error) {
	var top map[string]any
	if err := yaml.Unmarshal(raw, &top); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if top == nil {
		top = map[string]any{}
	}
	if ext := filepath.Ext(path); ext != ".yaml" && ext != ".yml" {
		// spec §6: unrecognized extension is a warning only, never fatal.
	}

	doc := &model.Document{Path: path, Sections: top}

	if metaRaw, ok := top["metadata"]; ok {
		if err := decodeInto(metaRaw, &doc.Metadata); err != nil {
			return nil, fmt.Errorf("%s: metadata: %w", path, err)
		}
	}

	if err := bindSections(path, top, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func decodeInto(raw any, out any) error {
	dec, err := newDecoder(out)
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

func bindSections(path string, top map[string]any, doc *model.Document) error {
	if rulesRaw, ok := top["rules"]; ok {
		list, err := asList(rulesRaw, "rules")
		if err != nil {
			return wrapPath(path, err)
		}
		for i, item := range list {
			var r model.Rule
			if err := decodeInto(item, &r); err != nil {
				return wrapPath(path, fmt.Errorf("rules[%d]: %w", i, err))
			}
			r.Normalize()
			doc.Rules = append(doc.Rules, r)
		}
	}

	if groupsRaw, ok := top["rule-groups"]; ok {
		list, err := asList(groupsRaw, "rule-groups")
		if err != nil {
			return wrapPath(path, err)
		}
		for i, item := range list {
			var g model.RuleGroup
			if err := decodeInto(item, &g); err != nil {
				return wrapPath(path, fmt.Errorf("rule-groups[%d]: %w", i, err))
			}
			doc.RuleGroups = append(doc.RuleGroups, g)
		}
	}

	if enrichRaw, ok := top["enrichments"]; ok {
		list, err := asList(enrichRaw, "enrichments")
		if err != nil {
			return wrapPath(path, err)
		}
		for i, item := range list {
			var e model.Enrichment
			if err := decodeInto(item, &e); err != nil {
				return wrapPath(path, fmt.Errorf("enrichments[%d]: %w", i, err))
			}
			doc.Enrichments = append(doc.Enrichments, e)
		}
	}

	if chainsRaw, ok := top["rule-chains"]; ok {
		list, err := asList(chainsRaw, "rule-chains")
		if err != nil {
			return wrapPath(path, err)
		}
		for i, item := range list {
			rc, err := DecodeRuleChain(item)
			if err != nil {
				return wrapPath(path, fmt.Errorf("rule-chains[%d]: %w", i, err))
			}
			doc.RuleChains = append(doc.RuleChains, *rc)
		}
	}

	if dsRaw, ok := top["data-sources"]; ok {
		list, err := asList(dsRaw, "data-sources")
		if err != nil {
			return wrapPath(path, err)
		}
		for i, item := range list {
			var d model.DataSourceConfig
			if err := decodeInto(item, &d); err != nil {
				return wrapPath(path, fmt.Errorf("data-sources[%d]: %w", i, err))
			}
			doc.DataSources = append(doc.DataSources, d)
		}
	}

	if sinkRaw, ok := top["data-sinks"]; ok {
		list, err := asList(sinkRaw, "data-sinks")
		if err != nil {
			return wrapPath(path, err)
		}
		for i, item := range list {
			var d model.DataSinkConfig
			if err := decodeInto(item, &d); err != nil {
				return wrapPath(path, fmt.Errorf("data-sinks[%d]: %w", i, err))
			}
			doc.DataSinks = append(doc.DataSinks, d)
		}
	}

	if refRaw, ok := top["data-source-refs"]; ok {
		list, err := asList(refRaw, "data-source-refs")
		if err != nil {
			return wrapPath(path, err)
		}
		for i, item := range list {
			var r model.DataSourceRef
			if err := decodeInto(item, &r); err != nil {
				return wrapPath(path, fmt.Errorf("data-source-refs[%d]: %w", i, err))
			}
			doc.DataSourceRefs = append(doc.DataSourceRefs, r)
		}
	}

	if pipeRaw, ok := top["pipeline"]; ok {
		list, err := asList(pipeRaw, "pipeline")
		if err != nil {
			return wrapPath(path, err)
		}
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				doc.Pipeline = append(doc.Pipeline, m)
			}
		}
	}

	return nil
}

// DecodeRuleChain binds a single rule-chain map, then — once the pattern
// tag is known — decodes the pattern-specific `configuration` sub-tree into
// the matching typed struct. This two-step bind is what lets one `rule-
// chains` list entry carry six structurally different configuration
// shapes behind a single `pattern` discriminator (spec §3 RuleChain).
func DecodeRuleChain(raw any) (*model.RuleChain, error) {
	var rc model.RuleChain
	if err := decodeInto(raw, &rc); err != nil {
		return nil, err
	}
	if rc.Raw == nil {
		return &rc, nil
	}
	var err error
	switch rc.Pattern {
	case model.PatternConditional:
		rc.Conditional = &model.ConditionalConfig{}
		err = decodeInto(rc.Raw, rc.Conditional)
	case model.PatternSequentialDependency:
		rc.Sequential = &model.SequentialConfig{}
		err = decodeInto(rc.Raw, rc.Sequential)
	case model.PatternResultBasedRouting:
		rc.Routing = &model.RoutingConfig{}
		err = decodeInto(rc.Raw, rc.Routing)
	case model.PatternAccumulative:
		rc.Accumulative = &model.AccumulativeConfig{}
		err = decodeInto(rc.Raw, rc.Accumulative)
	case model.PatternComplexWorkflow:
		rc.Workflow = &model.WorkflowConfig{}
		err = decodeInto(rc.Raw, rc.Workflow)
	case model.PatternFluentBuilder:
		rc.Fluent = &model.FluentConfig{}
		err = decodeInto(rc.Raw, rc.Fluent)
	default:
		return nil, fmt.Errorf("rule-chain %q: unknown pattern %q", rc.ID, rc.Pattern)
	}
	if err != nil {
		return nil, fmt.Errorf("rule-chain %q: configuration: %w", rc.ID, err)
	}
	return &rc, nil
}

func asList(raw any, section string) ([]any, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%s must be a list", section)
	}
	for i, item := range list {
		if _, ok := item.(map[string]any); !ok {
			return nil, fmt.Errorf("%s[%d] must be a map", section, i)
		}
	}
	return list, nil
}

func wrapPath(path string, err error) error {
	if err == nil {
		return nil
	}
	if strings.HasPrefix(err.Error(), path+":") {
		return err
	}
	return fmt.Errorf("%s: %w", path, err)
}
