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

import (
	"fmt"
	"time"
)

// Operator is the combinator a RuleGroup applies across its member rules.
type Operator string

const (
	OperatorAnd Operator = "AND"
	OperatorOr  Operator = "OR"
)

// Rule is a named condition with an associated message and audit metadata
// (spec §3 Rule).
type Rule struct {
	ID          string   `mapstructure:"id" yaml:"id"`
	Name        string   `mapstructure:"name" yaml:"name"`
	Condition   string   `mapstructure:"condition" yaml:"condition"`
	Message     string   `mapstructure:"message" yaml:"message"`
	Description string   `mapstructure:"description,omitempty" yaml:"description,omitempty"`
	Priority    int      `mapstructure:"priority" yaml:"priority"`
	Categories  []string `mapstructure:"categories,omitempty" yaml:"categories,omitempty"`

	CreatedDate    time.Time `mapstructure:"createdDate" yaml:"createdDate"`
	ModifiedDate   time.Time `mapstructure:"modifiedDate" yaml:"modifiedDate"`
	CreatedByUser  string    `mapstructure:"createdByUser" yaml:"createdByUser"`
	BusinessDomain string    `mapstructure:"businessDomain,omitempty" yaml:"businessDomain,omitempty"`
	BusinessOwner  string    `mapstructure:"businessOwner,omitempty" yaml:"businessOwner,omitempty"`
	SourceSystem   string    `mapstructure:"sourceSystem,omitempty" yaml:"sourceSystem,omitempty"`
	EffectiveDate  time.Time `mapstructure:"effectiveDate,omitempty" yaml:"effectiveDate,omitempty"`
	ExpirationDate time.Time `mapstructure:"expirationDate,omitempty" yaml:"expirationDate,omitempty"`
}

// DefaultPriority is applied when a rule's config omits `priority`.
const DefaultPriority = 100

// Normalize fills in defaults (priority 100, categories {"default"}) the way
// a freshly-decoded rule from YAML would need before it participates in
// priority-ordered evaluation.
func (r *Rule) Normalize() {
	if r.Priority == 0 {
		r.Priority = DefaultPriority
	}
	if len(r.Categories) == 0 {
		r.Categories = []string{"default"}
	}
}

// Validate enforces the Rule invariants from §3: non-empty id/name/
// condition/message, and createdDate <= modifiedDate <= now.
func (r Rule) Validate(now time.Time) error {
	if r.ID == "" {
		return fmt.Errorf("rule.id is required")
	}
	if r.Name == "" {
		return fmt.Errorf("rule %q: name is required", r.ID)
	}
	if r.Condition == "" {
		return fmt.Errorf("rule %q: condition is required", r.ID)
	}
	if r.Message == "" {
		return fmt.Errorf("rule %q: message is required", r.ID)
	}
	if r.CreatedDate.IsZero() || r.ModifiedDate.IsZero() {
		return fmt.Errorf("rule %q: createdDate and modifiedDate are both required", r.ID)
	}
	return auditWindow(r.CreatedDate, r.ModifiedDate, now)
}

// RuleGroup is a container over rules with an AND/OR operator, evaluated in
// priority order (spec §3 RuleGroup).
type RuleGroup struct {
	ID       string   `mapstructure:"id" yaml:"id"`
	Operator Operator `mapstructure:"operator" yaml:"operator"`
	RuleIDs  []string `mapstructure:"rules" yaml:"rules"`
}

func (g RuleGroup) Validate() error {
	if g.Operator != OperatorAnd && g.Operator != OperatorOr {
		return fmt.Errorf("rule-group %q: operator must be AND or OR, got %q", g.ID, g.Operator)
	}
	if len(g.RuleIDs) == 0 {
		return fmt.Errorf("rule-group %q: must reference at least one rule", g.ID)
	}
	return nil
}
