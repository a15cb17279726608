// Package rules builds executable rules from configuration and evaluates
// them against a variable environment (spec §4.6 shared scaffolding:
// "from a rule-config map, build a Rule... Evaluate a rule by feeding its
// condition to ExprEval against the current context").
package rules

import (
	"sort"

	"github.com/apex/engine/apexerr"
	"github.com/apex/engine/expr"
	"github.com/apex/engine/model"
)

// Outcome is the per-rule evaluation result.
type Outcome struct {
	Rule      model.Rule
	Triggered bool
	Err       error
}

// Evaluate feeds rule.Condition to eval against env and reports whether
// the rule "triggers" (condition evaluates true). An expression error
// counts the rule as non-triggered and is returned alongside (spec §7:
// "a rule that errors counts as non-triggered").
func Evaluate(eval *expr.Evaluator, rule model.Rule, env map[string]any) Outcome {
	triggered, err := eval.EvalBool(rule.Condition, env)
	if err != nil {
		return Outcome{Rule: rule, Triggered: false, Err: err}
	}
	return Outcome{Rule: rule, Triggered: triggered}
}

// ByPriority sorts rules ascending by priority (lower runs first), tie-
// broken by the stable input order (spec §3 Rule, §5 Ordering).
func ByPriority(in []model.Rule) []model.Rule {
	out := make([]model.Rule, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// EvaluateGroup evaluates a RuleGroup's member rules (resolved from ruleset
// by id) in priority order, short-circuiting AND on first false and OR on
// first true (spec §3 RuleGroup).
func EvaluateGroup(eval *expr.Evaluator, group model.RuleGroup, ruleset map[string]model.Rule, env map[string]any) (bool, []Outcome, error) {
	var members []model.Rule
	for _, id := range group.RuleIDs {
		r, ok := ruleset[id]
		if !ok {
			return false, nil, &apexerr.Error{Kind: apexerr.KindConfiguration, Path: group.ID, Msg: "rule-group references unknown rule " + id}
		}
		members = append(members, r)
	}
	members = ByPriority(members)

	var outcomes []Outcome
	switch group.Operator {
	case model.OperatorAnd:
		result := true
		for _, r := range members {
			o := Evaluate(eval, r, env)
			outcomes = append(outcomes, o)
			if o.Err != nil || !o.Triggered {
				result = false
				break
			}
		}
		return result, outcomes, nil
	case model.OperatorOr:
		result := false
		for _, r := range members {
			o := Evaluate(eval, r, env)
			outcomes = append(outcomes, o)
			if o.Err == nil && o.Triggered {
				result = true
				break
			}
		}
		return result, outcomes, nil
	default:
		return false, nil, &apexerr.Error{Kind: apexerr.KindConfiguration, Path: group.ID, Msg: "unknown operator " + string(group.Operator)}
	}
}
