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

// Package validate implements the GrammarValidator (spec §4.3): per-
// document structural checks, expression-field awareness, and cross-file
// dependency analysis with cycle detection and root-cause ranking.
package validate

import (
	"fmt"
	"time"

	"github.com/apex/engine/chain"
	"github.com/apex/engine/expr"
	"github.com/apex/engine/model"
)

// FileResult is the validation outcome for a single file.
type FileResult struct {
	Path   string
	Valid  bool
	Errors []string
}

// StructuralValidator performs the per-document checks of spec §4.3(1):
// metadata completeness, type legality, section recognizability, per-type
// required sections, and list/map shape checks.
type StructuralValidator struct {
	Now func() time.Time
}

func NewStructuralValidator() *StructuralValidator {
	return &StructuralValidator{Now: time.Now}
}

// Validate checks one document and returns every structural error found
// (not just the first), so a report can show a user all problems at once.
func (v *StructuralValidator) Validate(doc *model.Document) []string {
	var errs []string

	if err := doc.Metadata.Validate(); err != nil {
		errs = append(errs, err.Error())
	}

	schema, known := model.SectionRegistry[doc.Metadata.Type]
	if !known {
		// Metadata.Validate() already reported the illegal type; section
		// recognizability can't be checked against an unknown schema.
		return errs
	}

	for section := range doc.Sections {
		if section == "metadata" {
			continue
		}
		if !schema.Recognized[section] {
			errs = append(errs, fmt.Sprintf("unrecognized section %q for document type %q", section, doc.Metadata.Type))
		}
	}

	for _, anyOf := range schema.RequiredAnyOf {
		if !hasAny(doc.Sections, anyOf) {
			errs = append(errs, fmt.Sprintf("document type %q requires at least one of %v", doc.Metadata.Type, anyOf))
		}
	}

	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	for _, r := range doc.Rules {
		if err := r.Validate(now()); err != nil {
			errs = append(errs, err.Error())
		}
	}
	for _, g := range doc.RuleGroups {
		if err := g.Validate(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	for _, e := range doc.Enrichments {
		if err := e.Validate(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	errs = append(errs, validateUniqueIDs(doc)...)
	errs = append(errs, validateRuleChains(doc.RuleChains)...)

	return errs
}

func hasAny(sections map[string]any, names []string) bool {
	for _, n := range names {
		if _, ok := sections[n]; ok {
			return true
		}
	}
	return false
}

func validateUniqueIDs(doc *model.Document) []string {
	var errs []string
	seen := map[string]bool{}
	for _, r := range doc.Rules {
		if seen[r.ID] {
			errs = append(errs, fmt.Sprintf("duplicate rule id %q", r.ID))
		}
		seen[r.ID] = true
	}
	return errs
}

// validateRuleChains checks every rule-chain's pattern-specific
// configuration (required sub-fields, dangling stage references, DAG
// cycles, fluent-tree depth) via the chain package's dedicated validators
// (spec §4.6 Validation), tagging each failure with the chain id.
func validateRuleChains(chains []model.RuleChain) []string {
	var errs []string
	seen := map[string]bool{}
	for _, rc := range chains {
		if seen[rc.ID] {
			errs = append(errs, fmt.Sprintf("duplicate rule-chain id %q", rc.ID))
		}
		seen[rc.ID] = true
		if err := chain.ValidateConfig(rc); err != nil {
			errs = append(errs, fmt.Sprintf("rule-chains[%s]: %v", rc.ID, err))
		}
	}
	return errs
}

// expressionFields is the closed set of field names that are expressions,
// per spec §4.3(2): a field is an expression only when its path ends in
// one of these names; other string fields (message, description, name,
// id, author, ...) are plain text even if they contain '#'.
var expressionFields = map[string]bool{
	"condition": true, "lookup-key": true, "lookupKey": true,
	"transformation": true, "expression": true, "calculation": true,
	"filter": true, "where-clause": true, "score-expression": true,
}

// IsExpressionField reports whether fieldName denotes an expression-bearing
// field per the closed set above.
func IsExpressionField(fieldName string) bool { return expressionFields[fieldName] }

// ExpressionValidator parse-checks every expression-bearing field in a
// document and reports failures with their field path (spec §4.3(2)).
type ExpressionValidator struct {
	Eval *expr.Evaluator
}

func NewExpressionValidator(eval *expr.Evaluator) *ExpressionValidator {
	if eval == nil {
		eval = expr.NewEvaluator(0)
	}
	return &ExpressionValidator{Eval: eval}
}

// Validate compiles every rule condition, enrichment condition/lookupKey/
// expression, and rule-chain sub-expression in doc, returning a path-
// tagged error per failure.
func (v *ExpressionValidator) Validate(doc *model.Document) []string {
	var errs []string
	check := func(path, src string) {
		if src == "" {
			return
		}
		if _, err := v.Eval.Compile(src); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", path, err))
		}
	}
	for _, r := range doc.Rules {
		check(fmt.Sprintf("rules[%s].condition", r.ID), r.Condition)
	}
	for _, e := range doc.Enrichments {
		check(fmt.Sprintf("enrichments[%s].condition", e.ID), e.Condition)
		if e.LookupConfig != nil {
			check(fmt.Sprintf("enrichments[%s].lookupConfig.lookupKey", e.ID), e.LookupConfig.LookupKey)
		}
		if e.CalculationConfig != nil {
			check(fmt.Sprintf("enrichments[%s].calculationConfig.expression", e.ID), e.CalculationConfig.Expression)
		}
	}
	for _, rc := range doc.RuleChains {
		checkChainExpressions(rc, check)
	}
	return errs
}

func checkChainExpressions(rc model.RuleChain, check func(path, src string)) {
	prefix := fmt.Sprintf("rule-chains[%s]", rc.ID)
	checkRule := func(label string, r model.Rule) { check(prefix+"."+label+".condition", r.Condition) }
	switch rc.Pattern {
	case model.PatternConditional:
		if rc.Conditional != nil {
			checkRule("trigger-rule", rc.Conditional.TriggerRule)
			for i, r := range rc.Conditional.OnTrigger {
				checkRule(fmt.Sprintf("on-trigger[%d]", i), r)
			}
			for i, r := range rc.Conditional.OnNoTrigger {
				checkRule(fmt.Sprintf("on-no-trigger[%d]", i), r)
			}
		}
	case model.PatternSequentialDependency:
		if rc.Sequential != nil {
			for i, s := range rc.Sequential.Stages {
				checkRule(fmt.Sprintf("stages[%d]", i), s.Rule)
			}
		}
	case model.PatternResultBasedRouting:
		if rc.Routing != nil {
			checkRule("router-rule", rc.Routing.RouterRule)
			for name, rules := range rc.Routing.Routes {
				for i, r := range rules {
					checkRule(fmt.Sprintf("routes[%s][%d]", name, i), r)
				}
			}
		}
	case model.PatternAccumulative:
		if rc.Accumulative != nil {
			for i, sr := range rc.Accumulative.Rules {
				checkRule(fmt.Sprintf("rules[%d]", i), sr.Rule)
				check(fmt.Sprintf("%s.rules[%d].score-expression", prefix, i), sr.ScoreExpression)
			}
		}
	case model.PatternComplexWorkflow:
		if rc.Workflow != nil {
			for _, s := range rc.Workflow.Stages {
				if s.ConditionalExecution != nil {
					check(fmt.Sprintf("%s.stages[%s].conditional-execution.condition", prefix, s.ID), s.ConditionalExecution.Condition)
				}
				for i, r := range s.Rules {
					checkRule(fmt.Sprintf("stages[%s].rules[%d]", s.ID, i), r)
				}
			}
		}
	case model.PatternFluentBuilder:
		if rc.Fluent != nil {
			walkFluent(rc.Fluent.Root, func(path string, r model.Rule) { checkRule(path, r) })
		}
	}
}

func walkFluent(n *model.FluentNode, visit func(path string, r model.Rule)) {
	if n == nil {
		return
	}
	visit("fluent", n.Rule)
	walkFluent(n.OnSuccess, visit)
	walkFluent(n.OnFailure, visit)
}
