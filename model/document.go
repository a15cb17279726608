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

package model

// Document is the root of every configuration file (spec §3): a required
// metadata section plus whichever type-specific content sections are
// present.
type Document struct {
	Path     string
	Metadata Metadata

	Rules          []Rule
	RuleGroups     []RuleGroup
	Enrichments    []Enrichment
	RuleChains     []RuleChain
	DataSources    []DataSourceConfig
	DataSinks      []DataSinkConfig
	DataSourceRefs []DataSourceRef
	Pipeline       []map[string]any

	// Sections is the raw top-level map as decoded from YAML, keyed by
	// section name, before typed binding. The validator consults this to
	// detect unrecognized sections without needing reflection (§9).
	Sections map[string]any
}

// SectionSchema is a compile-time registered description of the section
// names a document type recognizes and which of them are required. This
// replaces the original's annotation/reflection-based section discovery
// (spec §9 design note): each entity declares its recognized sections once,
// in the registry below, and the validator consults the registry instead of
// inspecting struct tags at runtime.
type SectionSchema struct {
	// Recognized is the full set of section names legal for this document
	// type, beyond "metadata" which is always required and always legal.
	Recognized map[string]bool
	// RequiredAnyOf lists sets of section names where at least one member
	// of each set must be present (spec §4.3: e.g. rule-config needs at
	// least one of {rules, enrichments}).
	RequiredAnyOf [][]string
}

// SectionRegistry is the static, compile-time schema registry for every
// known document type.
var SectionRegistry = map[DocumentType]SectionSchema{
	TypeRuleConfig: {
		Recognized:    setOf("rules", "rule-groups", "enrichments", "data-source-refs"),
		RequiredAnyOf: [][]string{{"rules", "enrichments"}},
	},
	TypeEnrichment: {
		Recognized:    setOf("enrichments", "data-source-refs"),
		RequiredAnyOf: [][]string{{"enrichments"}},
	},
	TypeDataset: {
		Recognized: setOf("data", "schema"),
	},
	TypeScenario: {
		Recognized: setOf("rule-chains", "rules", "enrichments", "data-source-refs"),
	},
	TypeScenarioRegistry: {
		Recognized: setOf("scenarios"),
	},
	TypeBootstrap: {
		Recognized: setOf("data-sources", "data-sinks", "rule-chains"),
	},
	TypeRuleChain: {
		Recognized:    setOf("rule-chains", "data-source-refs"),
		RequiredAnyOf: [][]string{{"rule-chains"}},
	},
	TypeExternalDataConfig: {
		Recognized:    setOf("data-sources", "data-sinks"),
		RequiredAnyOf: [][]string{{"data-sources", "data-sinks"}},
	},
	TypePipelineConfig: {
		Recognized:    setOf("pipeline", "data-sources", "data-sinks"),
		RequiredAnyOf: [][]string{{"pipeline", "data-sources", "data-sinks"}},
	},
}

func setOf(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}
