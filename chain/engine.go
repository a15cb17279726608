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
	"time"

	"github.com/apex/engine/apexerr"
	"github.com/apex/engine/expr"
	"github.com/apex/engine/metrics"
	"github.com/apex/engine/model"
)

// Engine executes rule chains against records. A single Engine instance is
// shared across concurrent requests; each invocation gets its own
// ChainedEvaluationContext (spec §5: "per-request and not shared").
type Engine struct {
	Eval    *expr.Evaluator
	Metrics *metrics.ChainMetrics
}

func NewEngine(eval *expr.Evaluator) *Engine {
	if eval == nil {
		eval = expr.NewEvaluator(0)
	}
	return &Engine{Eval: eval, Metrics: metrics.NewChainMetrics()}
}

// Execute runs rc against record and returns its Result. Within one
// invocation, execution is single-threaded and deterministic (spec §5);
// ctx cancellation is observed between rules/stages, since expression
// evaluation itself never blocks.
func (e *Engine) Execute(ctx context.Context, rc model.RuleChain, record map[string]any, invocationID string) (*Result, error) {
	if err := ValidateConfig(rc); err != nil {
		return nil, &apexerr.Error{Kind: apexerr.KindConfiguration, Path: rc.ID, Msg: err.Error()}
	}

	start := time.Now()
	ec := model.NewChainedEvaluationContext(rc.ID, rc.Name, rc.Pattern, record, invocationID)

	var res *Result
	switch rc.Pattern {
	case model.PatternConditional:
		res = runConditional(ctx, e.Eval, rc, ec)
	case model.PatternSequentialDependency:
		res = runSequential(ctx, e.Eval, rc, ec)
	case model.PatternResultBasedRouting:
		res = runRouting(ctx, e.Eval, rc, ec)
	case model.PatternAccumulative:
		res = runAccumulative(ctx, e.Eval, rc, ec)
	case model.PatternComplexWorkflow:
		res = runWorkflow(ctx, e.Eval, rc, ec)
	case model.PatternFluentBuilder:
		res = runFluent(ctx, e.Eval, rc, ec)
	default:
		res = fail(rc, "unknown pattern "+string(rc.Pattern))
	}

	res.Record = ec.Variables
	e.Metrics.Observe(string(rc.Pattern), res.FinalOutcome, time.Since(start))
	return res, nil
}
