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

// Pattern is one of the six rule-chain orchestration patterns (spec §4.6).
type Pattern string

const (
	PatternConditional         Pattern = "conditional-chaining"
	PatternSequentialDependency Pattern = "sequential-dependency"
	PatternResultBasedRouting  Pattern = "result-based-routing"
	PatternAccumulative        Pattern = "accumulative-chaining"
	PatternComplexWorkflow     Pattern = "complex-workflow"
	PatternFluentBuilder       Pattern = "fluent-builder"
)

// FailureAction governs what a sequential-dependency or complex-workflow
// stage does when its rule fails (spec §4.6 patterns 2, 5).
type FailureAction string

const (
	FailureTerminate FailureAction = "terminate"
	FailureContinue  FailureAction = "continue"
)

func (a FailureAction) Validate() error {
	if a != FailureTerminate && a != FailureContinue && a != "" {
		return fmt.Errorf("failure-action must be 'terminate' or 'continue', got %q", a)
	}
	return nil
}

// RuleChain is a named composition of rules under one of the six patterns
// (spec §3 RuleChain).
type RuleChain struct {
	ID      string  `mapstructure:"id" yaml:"id"`
	Name    string  `mapstructure:"name" yaml:"name"`
	Pattern Pattern `mapstructure:"pattern" yaml:"pattern"`

	Conditional *ConditionalConfig `mapstructure:"-" yaml:"-"`
	Sequential  *SequentialConfig  `mapstructure:"-" yaml:"-"`
	Routing     *RoutingConfig     `mapstructure:"-" yaml:"-"`
	Accumulative *AccumulativeConfig `mapstructure:"-" yaml:"-"`
	Workflow    *WorkflowConfig    `mapstructure:"-" yaml:"-"`
	Fluent      *FluentConfig      `mapstructure:"-" yaml:"-"`

	// Raw holds the pattern-specific `configuration` sub-tree prior to
	// pattern-specific decoding, so the loader can bind it lazily once the
	// pattern tag is known.
	Raw map[string]any `mapstructure:"configuration" yaml:"configuration"`
}

// --- Pattern 1: conditional chaining ---

type ConditionalConfig struct {
	TriggerRule  Rule   `mapstructure:"trigger-rule" yaml:"trigger-rule"`
	OnTrigger    []Rule `mapstructure:"on-trigger" yaml:"on-trigger"`
	OnNoTrigger  []Rule `mapstructure:"on-no-trigger" yaml:"on-no-trigger"`
}

// --- Pattern 2: sequential dependency ---

type SequentialStage struct {
	Rule           Rule          `mapstructure:"rule" yaml:"rule"`
	OutputVariable string        `mapstructure:"output-variable" yaml:"output-variable"`
	FailureAction  FailureAction `mapstructure:"failure-action" yaml:"failure-action"`
}

type SequentialConfig struct {
	Stages []SequentialStage `mapstructure:"stages" yaml:"stages"`
}

// --- Pattern 3: result-based routing ---

type RoutingConfig struct {
	RouterRule    Rule            `mapstructure:"router-rule" yaml:"router-rule"`
	Routes        map[string][]Rule `mapstructure:"routes" yaml:"routes"`
	DefaultRoute  []Rule          `mapstructure:"default-route,omitempty" yaml:"default-route,omitempty"`
}

// --- Pattern 4: accumulative chaining ---

type ScoredRule struct {
	Rule            Rule   `mapstructure:"rule" yaml:"rule"`
	ScoreExpression string `mapstructure:"score-expression" yaml:"score-expression"`
}

type ScoreRange struct {
	Min     float64 `mapstructure:"min" yaml:"min"`
	Max     float64 `mapstructure:"max" yaml:"max"`
	Outcome string  `mapstructure:"outcome" yaml:"outcome"`
}

type AccumulativeConfig struct {
	Rules  []ScoredRule `mapstructure:"rules" yaml:"rules"`
	Ranges []ScoreRange `mapstructure:"score-ranges" yaml:"score-ranges"`
}

// --- Pattern 5: complex workflow (DAG of stages) ---

type ConditionalExecution struct {
	Condition string `mapstructure:"condition" yaml:"condition"`
	OnTrue    []Rule `mapstructure:"on-true" yaml:"on-true"`
	OnFalse   []Rule `mapstructure:"on-false" yaml:"on-false"`
}

type WorkflowStage struct {
	ID                   string                `mapstructure:"id" yaml:"id"`
	DependsOn            []string              `mapstructure:"depends-on,omitempty" yaml:"depends-on,omitempty"`
	ConditionalExecution *ConditionalExecution `mapstructure:"conditional-execution,omitempty" yaml:"conditional-execution,omitempty"`
	Rules                []Rule                `mapstructure:"rules,omitempty" yaml:"rules,omitempty"`
	OutputVariable       string                `mapstructure:"output-variable,omitempty" yaml:"output-variable,omitempty"`
	FailureAction        FailureAction         `mapstructure:"failure-action" yaml:"failure-action"`
}

type WorkflowConfig struct {
	Stages []WorkflowStage `mapstructure:"stages" yaml:"stages"`
}

// --- Pattern 6: fluent builder tree ---

// FluentNode is a binary tree node: on trigger follow OnSuccess, else
// OnFailure. A nil branch is a leaf producing SUCCESS/FAILURE directly.
type FluentNode struct {
	Rule      Rule        `mapstructure:"rule" yaml:"rule"`
	OnSuccess *FluentNode `mapstructure:"on-success,omitempty" yaml:"on-success,omitempty"`
	OnFailure *FluentNode `mapstructure:"on-failure,omitempty" yaml:"on-failure,omitempty"`
}

type FluentConfig struct {
	Root *FluentNode `mapstructure:"root-rule" yaml:"root-rule"`
}

// MaxFluentDepth bounds the fluent-builder tree (spec §4.6 pattern 6).
const MaxFluentDepth = 20

// ChainedEvaluationContext is the per-invocation mutable context threaded
// through a rule-chain execution (spec §3).
type ChainedEvaluationContext struct {
	Variables     map[string]any
	StageResults  map[string]any
	CurrentStage  string
	ChainID       string
	ChainName     string
	Pattern       Pattern
	InvocationID  string
}

// NewChainedEvaluationContext seeds the context from the input record,
// copying it so evaluation never mutates the caller's record fields that
// back `#name` root references independently of enrichment merges.
func NewChainedEvaluationContext(chainID, chainName string, pattern Pattern, record map[string]any, invocationID string) *ChainedEvaluationContext {
	vars := make(map[string]any, len(record))
	for k, v := range record {
		vars[k] = v
	}
	return &ChainedEvaluationContext{
		Variables:    vars,
		StageResults: make(map[string]any),
		ChainID:      chainID,
		ChainName:    chainName,
		Pattern:      pattern,
		InvocationID: invocationID,
	}
}

// Bind writes name=value into the variable environment so later
// expressions can reference it; it does not touch StageResults. An empty
// name is ignored.
func (c *ChainedEvaluationContext) Bind(name string, value any) {
	if name == "" {
		return
	}
	c.Variables[name] = value
}
