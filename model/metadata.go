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

// Package model defines the typed YAML document entities spec §3 describes:
// metadata, rules, rule groups, rule chains, enrichments, data-source and
// data-sink configuration, and the per-invocation evaluation context.
//
// Entities bind from the generic map produced by a YAML unmarshal via
// github.com/mitchellh/mapstructure, the same binding approach the teacher
// uses informally (engine/parser.go decodes into types.Chain); APEX makes
// the section registry explicit and static rather than reflective, per the
// §9 design note that replaces annotation-reflective discovery.
package model

import (
	"fmt"
	"regexp"
	"time"
)

// DocumentType enumerates the `metadata.type` values spec §3 recognizes.
type DocumentType string

const (
	TypeRuleConfig          DocumentType = "rule-config"
	TypeEnrichment          DocumentType = "enrichment"
	TypeDataset             DocumentType = "dataset"
	TypeScenario            DocumentType = "scenario"
	TypeScenarioRegistry    DocumentType = "scenario-registry"
	TypeBootstrap           DocumentType = "bootstrap"
	TypeRuleChain           DocumentType = "rule-chain"
	TypeExternalDataConfig  DocumentType = "external-data-config"
	TypePipelineConfig      DocumentType = "pipeline-config"
)

// KnownDocumentTypes is the closed set of legal metadata.type values.
var KnownDocumentTypes = map[DocumentType]bool{
	TypeRuleConfig: true, TypeEnrichment: true, TypeDataset: true,
	TypeScenario: true, TypeScenarioRegistry: true, TypeBootstrap: true,
	TypeRuleChain: true, TypeExternalDataConfig: true, TypePipelineConfig: true,
}

var versionPattern = regexp.MustCompile(`^\d+\.\d+(\.\d+)?$`)

// Metadata is the required root section of every configuration document.
type Metadata struct {
	ID          string       `mapstructure:"id" yaml:"id"`
	Name        string       `mapstructure:"name" yaml:"name"`
	Version     string       `mapstructure:"version" yaml:"version"`
	Description string       `mapstructure:"description" yaml:"description"`
	Type        DocumentType `mapstructure:"type" yaml:"type"`

	// Type-specific required fields (§3). Present only for the types that
	// require them; validated by validate.StructuralValidator.
	Author        string `mapstructure:"author,omitempty" yaml:"author,omitempty"`
	BusinessDomain string `mapstructure:"business-domain,omitempty" yaml:"business-domain,omitempty"`
	Owner         string `mapstructure:"owner,omitempty" yaml:"owner,omitempty"`
	CreatedBy     string `mapstructure:"created-by,omitempty" yaml:"created-by,omitempty"`
	Source        string `mapstructure:"source,omitempty" yaml:"source,omitempty"`
}

// RequiredFieldsFor returns the names of metadata fields that must be
// non-empty for the given document type, beyond the universal fields
// (id, name, version, description, type).
func RequiredFieldsFor(t DocumentType) []string {
	switch t {
	case TypeRuleConfig, TypeEnrichment, TypeRuleChain:
		return []string{"author"}
	case TypeScenario:
		return []string{"business-domain", "owner"}
	case TypeScenarioRegistry:
		return []string{"created-by"}
	case TypeDataset:
		return []string{"source"}
	default:
		return nil
	}
}

// Validate checks the universal metadata invariants: non-empty required
// fields, a legal type, and a semver-like version string.
func (m Metadata) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("metadata.id is required")
	}
	if m.Name == "" {
		return fmt.Errorf("metadata.name is required")
	}
	if m.Description == "" {
		return fmt.Errorf("metadata.description is required")
	}
	if !versionPattern.MatchString(m.Version) {
		return fmt.Errorf("metadata.version %q does not match \\d+.\\d+(.\\d+)?", m.Version)
	}
	if !KnownDocumentTypes[m.Type] {
		return fmt.Errorf("metadata.type %q is not a recognized document type", m.Type)
	}
	for _, field := range RequiredFieldsFor(m.Type) {
		if fieldValue(m, field) == "" {
			return fmt.Errorf("missing required field for type '%s': %s", m.Type, field)
		}
	}
	return nil
}

func fieldValue(m Metadata, field string) string {
	switch field {
	case "author":
		return m.Author
	case "business-domain":
		return m.BusinessDomain
	case "owner":
		return m.Owner
	case "created-by":
		return m.CreatedBy
	case "source":
		return m.Source
	default:
		return ""
	}
}

// auditWindow bounds createdDate <= modifiedDate <= now, per §3 invariants.
func auditWindow(created, modified, now time.Time) error {
	if created.After(modified) {
		return fmt.Errorf("createdDate %s is after modifiedDate %s", created, modified)
	}
	if modified.After(now) {
		return fmt.Errorf("modifiedDate %s is after now %s", modified, now)
	}
	return nil
}
