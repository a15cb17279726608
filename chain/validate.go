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

package chain

import (
	"fmt"

	"github.com/apex/engine/model"
)

// ValidateConfig dispatches to the pattern-specific configuration validator
// (spec §4.6 Validation: "Each pattern has a dedicated configuration
// validator").
func ValidateConfig(rc model.RuleChain) error {
	switch rc.Pattern {
	case model.PatternConditional:
		return validateConditional(rc.Conditional)
	case model.PatternSequentialDependency:
		return validateSequential(rc.Sequential)
	case model.PatternResultBasedRouting:
		return validateRouting(rc.Routing)
	case model.PatternAccumulative:
		return validateAccumulative(rc.Accumulative)
	case model.PatternComplexWorkflow:
		return validateWorkflow(rc.Workflow)
	case model.PatternFluentBuilder:
		return validateFluent(rc.Fluent)
	default:
		return fmt.Errorf("unknown pattern %q", rc.Pattern)
	}
}

func validateConditional(c *model.ConditionalConfig) error {
	if c == nil {
		return fmt.Errorf("conditional-chaining requires a configuration")
	}
	if c.TriggerRule.Condition == "" {
		return fmt.Errorf("conditional-chaining: trigger-rule.condition is required")
	}
	return nil
}

func validateSequential(c *model.SequentialConfig) error {
	if c == nil || len(c.Stages) == 0 {
		return fmt.Errorf("sequential-dependency requires at least one stage")
	}
	for i, s := range c.Stages {
		if err := s.FailureAction.Validate(); err != nil {
			return fmt.Errorf("stages[%d]: %w", i, err)
		}
		if s.Rule.Condition == "" {
			return fmt.Errorf("stages[%d]: rule.condition is required", i)
		}
	}
	return nil
}

func validateRouting(c *model.RoutingConfig) error {
	if c == nil {
		return fmt.Errorf("result-based-routing requires a configuration")
	}
	if c.RouterRule.Condition == "" && c.RouterRule.Name == "" {
		return fmt.Errorf("result-based-routing: router-rule is required")
	}
	if len(c.Routes) == 0 {
		return fmt.Errorf("result-based-routing: at least one route is required")
	}
	return nil
}

func validateAccumulative(c *model.AccumulativeConfig) error {
	if c == nil || len(c.Rules) == 0 {
		return fmt.Errorf("accumulative-chaining requires at least one scored rule")
	}
	if len(c.Ranges) == 0 {
		return fmt.Errorf("accumulative-chaining requires at least one score range")
	}
	for i, r := range c.Ranges {
		if r.Min > r.Max {
			return fmt.Errorf("score-ranges[%d]: min %v > max %v", i, r.Min, r.Max)
		}
	}
	return nil
}

func validateWorkflow(c *model.WorkflowConfig) error {
	if c == nil || len(c.Stages) == 0 {
		return fmt.Errorf("complex-workflow requires at least one stage")
	}
	seen := map[string]bool{}
	for _, s := range c.Stages {
		if s.ID == "" {
			return fmt.Errorf("complex-workflow: stage id is required")
		}
		if seen[s.ID] {
			return fmt.Errorf("complex-workflow: duplicate stage id %q", s.ID)
		}
		seen[s.ID] = true
		if err := s.FailureAction.Validate(); err != nil {
			return fmt.Errorf("stage %q: %w", s.ID, err)
		}
		if s.ConditionalExecution == nil && len(s.Rules) == 0 {
			return fmt.Errorf("stage %q: requires rules or conditional-execution", s.ID)
		}
	}
	if _, err := TopoOrder(c.Stages); err != nil {
		return err
	}
	return nil
}

func validateFluent(c *model.FluentConfig) error {
	if c == nil || c.Root == nil {
		return fmt.Errorf("fluent-builder requires a root-rule")
	}
	depth := fluentDepth(c.Root, 1)
	if depth > model.MaxFluentDepth {
		return fmt.Errorf("fluent-builder: tree depth %d exceeds maximum %d", depth, model.MaxFluentDepth)
	}
	return nil
}

func fluentDepth(n *model.FluentNode, depth int) int {
	if n == nil {
		return depth - 1
	}
	onSuccess := fluentDepth(n.OnSuccess, depth+1)
	onFailure := fluentDepth(n.OnFailure, depth+1)
	if onSuccess > onFailure {
		return onSuccess
	}
	return onFailure
}
