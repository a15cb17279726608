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

	"github.com/apex/engine/expr"
	"github.com/apex/engine/model"
	"github.com/apex/engine/rules"
)

// runWorkflow implements pattern 5 (spec §4.6): a DAG of named stages,
// executed in topological order (computed by TopoOrder, which detects
// cycles as a configuration error rather than infinite-looping). A stage
// with conditional-execution picks on-true/on-false rules by an
// expression; otherwise it runs its rules directly. Stage outputs bind an
// output-variable and appear in stageResults as stage_<id>_result.
func runWorkflow(ctx context.Context, eval *expr.Evaluator, rc model.RuleChain, ec *model.ChainedEvaluationContext) *Result {
	c := rc.Workflow
	res := &Result{RuleChainID: rc.ID, RuleChainName: rc.Name, Pattern: rc.Pattern, StageResults: NewStageResults(), Record: ec.Variables}

	order, err := TopoOrder(c.Stages)
	if err != nil {
		res.FinalOutcome = OutcomeFailure
		res.ErrorMessage = err.Error()
		return res
	}
	byID := make(map[string]model.WorkflowStage, len(c.Stages))
	for _, s := range c.Stages {
		byID[s.ID] = s
	}

	terminated := false
	for _, id := range order {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return cancelled(rc, res)
		}
		stage := byID[id]
		ec.CurrentStage = id

		var ruleList []model.Rule
		if stage.ConditionalExecution != nil {
			branchTrue, err := eval.EvalBool(stage.ConditionalExecution.Condition, ec.Variables)
			if err != nil {
				res.FinalOutcome = OutcomeFailure
				res.ErrorMessage = err.Error()
				return res
			}
			if branchTrue {
				ruleList = stage.ConditionalExecution.OnTrue
			} else {
				ruleList = stage.ConditionalExecution.OnFalse
			}
		} else {
			ruleList = stage.Rules
		}

		stageOK := true
		for _, r := range rules.ByPriority(ruleList) {
			o := rules.Evaluate(eval, r, ec.Variables)
			res.StageResults.Set("rule_"+r.ID+"_result", triggeredLabel(o))
			if o.Err != nil || !o.Triggered {
				stageOK = false
			}
		}

		stageOutcome := "SUCCESS"
		if !stageOK {
			stageOutcome = "PARTIAL_SUCCESS"
		}
		res.StageResults.Set(fmt.Sprintf("stage_%s_result", id), stageOutcome)
		if stage.OutputVariable != "" {
			ec.Bind(stage.OutputVariable, stageOutcome)
		}

		if !stageOK && stage.FailureAction == model.FailureTerminate {
			terminated = true
			break
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
