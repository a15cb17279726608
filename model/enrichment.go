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

import "fmt"

// EnrichmentType distinguishes lookup-based from calculation-based
// enrichments (spec §3 Enrichment).
type EnrichmentType string

const (
	EnrichmentLookup      EnrichmentType = "lookup-enrichment"
	EnrichmentCalculation EnrichmentType = "calculation-enrichment"
)

// FieldMapping copies (or defaults) one field from a looked-up row into the
// target record.
type FieldMapping struct {
	SourceField  string `mapstructure:"sourceField" yaml:"sourceField"`
	TargetField  string `mapstructure:"targetField" yaml:"targetField"`
	Required     bool   `mapstructure:"required" yaml:"required"`
	DefaultValue any    `mapstructure:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
}

// LookupConfig configures the lookup-enrichment variant.
type LookupConfig struct {
	LookupService   string          `mapstructure:"lookupService" yaml:"lookupService"`
	LookupKey       string          `mapstructure:"lookupKey" yaml:"lookupKey"`
	Cache           bool            `mapstructure:"cache" yaml:"cache"`
	CacheTTLSeconds int             `mapstructure:"cacheTtlSeconds" yaml:"cacheTtlSeconds"`
	FieldMappings   []FieldMapping  `mapstructure:"fieldMappings" yaml:"fieldMappings"`
}

// CalculationConfig configures the calculation-enrichment variant.
type CalculationConfig struct {
	Expression  string `mapstructure:"expression" yaml:"expression"`
	ResultField string `mapstructure:"resultField" yaml:"resultField"`
}

// Enrichment is a declarative field-level transformation (spec §3
// Enrichment).
type Enrichment struct {
	ID                string             `mapstructure:"id" yaml:"id"`
	Type              EnrichmentType     `mapstructure:"type" yaml:"type"`
	TargetType        string             `mapstructure:"targetType,omitempty" yaml:"targetType,omitempty"`
	Enabled           bool               `mapstructure:"enabled" yaml:"enabled"`
	Priority          int                `mapstructure:"priority" yaml:"priority"`
	Condition         string             `mapstructure:"condition,omitempty" yaml:"condition,omitempty"`
	LookupConfig      *LookupConfig      `mapstructure:"lookupConfig,omitempty" yaml:"lookupConfig,omitempty"`
	CalculationConfig *CalculationConfig `mapstructure:"calculationConfig,omitempty" yaml:"calculationConfig,omitempty"`
}

func (e Enrichment) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("enrichment.id is required")
	}
	switch e.Type {
	case EnrichmentLookup:
		if e.LookupConfig == nil {
			return fmt.Errorf("enrichment %q: type lookup-enrichment requires lookupConfig", e.ID)
		}
		if e.LookupConfig.LookupService == "" {
			return fmt.Errorf("enrichment %q: lookupConfig.lookupService is required", e.ID)
		}
		if e.LookupConfig.LookupKey == "" {
			return fmt.Errorf("enrichment %q: lookupConfig.lookupKey is required", e.ID)
		}
	case EnrichmentCalculation:
		if e.CalculationConfig == nil {
			return fmt.Errorf("enrichment %q: type calculation-enrichment requires calculationConfig", e.ID)
		}
		if e.CalculationConfig.Expression == "" {
			return fmt.Errorf("enrichment %q: calculationConfig.expression is required", e.ID)
		}
		if e.CalculationConfig.ResultField == "" {
			return fmt.Errorf("enrichment %q: calculationConfig.resultField is required", e.ID)
		}
	default:
		return fmt.Errorf("enrichment %q: unknown type %q", e.ID, e.Type)
	}
	return nil
}
