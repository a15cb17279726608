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
	"context"
	"fmt"
	"strconv"

	"github.com/apex/engine/expr"
	"github.com/apex/engine/model"
	"github.com/apex/engine/rules"
)

// runConditional implements pattern 1 (spec §4.6): trigger-rule decides
// between on-trigger and on-no-trigger rule lists.
func runConditional(ctx context.Context, eval *expr.Evaluator, rc model.RuleChain, ec *model.ChainedEvaluationContext) *Result {
	c := rc.Conditional
	res := &Result{RuleChainID: rc.ID, RuleChainName: rc.Name, Pattern: rc.Pattern, StageResults: NewStageResults(), Record: ec.Variables}

	trigger := rules.Evaluate(eval, c.TriggerRule, ec.Variables)
	if trigger.Err != nil {
		res.Successful = false
		res.FinalOutcome = OutcomeFailure
		res.ErrorMessage = trigger.Err.Error()
		return res
	}

	var list []model.Rule
	if trigger.Triggered {
		res.FinalOutcome = OutcomeTriggered
		list = c.OnTrigger
	} else {
		res.FinalOutcome = OutcomeNotTriggered
		list = c.OnNoTrigger
	}

	for _, r := range rules.ByPriority(list) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return cancelled(rc, res)
		}
		o := rules.Evaluate(eval, r, ec.Variables)
		res.StageResults.Set("rule_"+r.ID+"_result", triggeredLabel(o))
	}
	res.Successful = true
	return res
}

// runSequential implements pattern 2: ordered stages whose rule result
// binds an output-variable for later stages; a failing stage with
// failure-action=terminate stops the chain (spec §4.6).
func runSequential(ctx context.Context, eval *expr.Evaluator, rc model.RuleChain, ec *model.ChainedEvaluationContext) *Result {
	c := rc.Sequential
	res := &Result{RuleChainID: rc.ID, RuleChainName: rc.Name, Pattern: rc.Pattern, StageResults: NewStageResults(), Record: ec.Variables}

	terminated := false
	for _, stage := range c.Stages {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return cancelled(rc, res)
		}
		o := rules.Evaluate(eval, stage.Rule, ec.Variables)
		res.StageResults.Set("rule_"+stage.Rule.ID+"_result", triggeredLabel(o))
		if stage.OutputVariable != "" {
			ec.Bind(stage.OutputVariable, o.Triggered)
		}
		if o.Err != nil || !o.Triggered {
			if stage.FailureAction == model.FailureTerminate {
				terminated = true
				break
			}
		}
	}
	if terminated {
		res.FinalOutcome = OutcomeFailure
		res.Successful = false
	} else {
		res.FinalOutcome = OutcomeSuccess
		res.Successful = true
	}
	return res
}

// runRouting implements pattern 3: router-rule's stringified result
// selects one of several named routes; unmatched falls to default-route or
// NO_MATCHING_ROUTE (spec §4.6).
func runRouting(ctx context.Context, eval *expr.Evaluator, rc model.RuleChain, ec *model.ChainedEvaluationContext) *Result {
	c := rc.Routing
	res := &Result{RuleChainID: rc.ID, RuleChainName: rc.Name, Pattern: rc.Pattern, StageResults: NewStageResults(), Record: ec.Variables}

	out, err := eval.Eval(c.RouterRule.Condition, ec.Variables)
	if err != nil {
		res.FinalOutcome = OutcomeFailure
		res.ErrorMessage = err.Error()
		return res
	}
	key := stringify(out)
	res.StageResults.Set("router_result", key)

	route, ok := c.Routes[key]
	if !ok {
		if c.DefaultRoute != nil {
			route = c.DefaultRoute
			ok = true
		}
	}
	if !ok {
		res.FinalOutcome = OutcomeNoMatchingRoute
		res.Successful = false
		return res
	}
	for _, r := range rules.ByPriority(route) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return cancelled(rc, res)
		}
		o := rules.Evaluate(eval, r, ec.Variables)
		res.StageResults.Set("rule_"+r.ID+"_result", triggeredLabel(o))
	}
	res.FinalOutcome = key
	res.Successful = true
	return res
}

// runAccumulative implements pattern 4: each rule contributes a numeric
// score; the accumulator is compared against ranges for a final outcome
// label (spec §4.6).
func runAccumulative(ctx context.Context, eval *expr.Evaluator, rc model.RuleChain, ec *model.ChainedEvaluationContext) *Result {
	c := rc.Accumulative
	res := &Result{RuleChainID: rc.ID, RuleChainName: rc.Name, Pattern: rc.Pattern, StageResults: NewStageResults(), Record: ec.Variables}

	var score float64
	for _, sr := range c.Rules {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return cancelled(rc, res)
		}
		o := rules.Evaluate(eval, sr.Rule, ec.Variables)
		res.StageResults.Set("rule_"+sr.Rule.ID+"_result", triggeredLabel(o))
		if o.Err != nil || !o.Triggered {
			continue
		}
		contribution, err := eval.Eval(sr.ScoreExpression, ec.Variables)
		if err != nil {
			res.FinalOutcome = OutcomeFailure
			res.ErrorMessage = err.Error()
			return res
		}
		score += toFloat(contribution)
	}
	ec.Bind("accumulatedScore", score)
	res.StageResults.Set("accumulatedScore", score)

	for _, rng := range c.Ranges {
		if score >= rng.Min && score <= rng.Max {
			res.FinalOutcome = rng.Outcome
			res.Successful = true
			return res
		}
	}
	res.FinalOutcome = OutcomeFailure
	res.Successful = false
	res.ErrorMessage = fmt.Sprintf("score %v matched no range", score)
	return res
}

// runFluent implements pattern 6: a depth-bounded binary tree of rules
// walked by trigger/no-trigger to a SUCCESS/FAILURE leaf (spec §4.6).
func runFluent(ctx context.Context, eval *expr.Evaluator, rc model.RuleChain, ec *model.ChainedEvaluationContext) *Result {
	c := rc.Fluent
	res := &Result{RuleChainID: rc.ID, RuleChainName: rc.Name, Pattern: rc.Pattern, StageResults: NewStageResults(), Record: ec.Variables}

	node := c.Root
	for depth := 0; node != nil; depth++ {
		if depth >= model.MaxFluentDepth {
			res.FinalOutcome = OutcomeFailure
			res.ErrorMessage = "fluent-builder tree exceeded maximum depth"
			return res
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return cancelled(rc, res)
		}
		o := rules.Evaluate(eval, node.Rule, ec.Variables)
		res.StageResults.Set("fluent_rule_"+node.Rule.Name+"_result", triggeredLabel(o))
		if o.Err != nil {
			res.FinalOutcome = OutcomeFailure
			res.ErrorMessage = o.Err.Error()
			return res
		}
		var next *model.FluentNode
		if o.Triggered {
			next = node.OnSuccess
		} else {
			next = node.OnFailure
		}
		if next == nil {
			if o.Triggered {
				res.FinalOutcome = OutcomeSuccess
				res.Successful = true
			} else {
				res.FinalOutcome = OutcomeFailure
				res.Successful = false
			}
			return res
		}
		node = next
	}
	res.FinalOutcome = OutcomeFailure
	res.ErrorMessage = "fluent-builder: empty tree"
	return res
}

func cancelled(rc model.RuleChain, res *Result) *Result {
	res.FinalOutcome = OutcomeCancelled
	res.Successful = false
	res.ErrorMessage = "cancelled"
	return res
}

func triggeredLabel(o rules.Outcome) string {
	if o.Err != nil {
		return "ERROR"
	}
	if o.Triggered {
		return "TRIGGERED"
	}
	return "NOT_TRIGGERED"
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case float64:
		return t
	default:
		return 0
	}
}
