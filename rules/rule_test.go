package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apex/engine/expr"
	"github.com/apex/engine/model"
)

func TestEvaluateTriggeredAndNonTriggered(t *testing.T) {
	eval := expr.NewEvaluator(16)

	triggered := Evaluate(eval, model.Rule{ID: "r1", Condition: "amount > 100"}, map[string]any{"amount": 150})
	assert.True(t, triggered.Triggered)
	assert.NoError(t, triggered.Err)

	notTriggered := Evaluate(eval, model.Rule{ID: "r2", Condition: "amount > 100"}, map[string]any{"amount": 50})
	assert.False(t, notTriggered.Triggered)
}

func TestEvaluateExpressionErrorCountsAsNonTriggered(t *testing.T) {
	eval := expr.NewEvaluator(16)
	out := Evaluate(eval, model.Rule{ID: "r3", Condition: "amount >"}, map[string]any{"amount": 50})
	assert.False(t, out.Triggered)
	assert.Error(t, out.Err)
}

func TestByPriorityOrdersAscendingStable(t *testing.T) {
	in := []model.Rule{
		{ID: "b", Priority: 5},
		{ID: "a", Priority: 1},
		{ID: "c", Priority: 5},
	}
	out := ByPriority(in)
	require.Len(t, out, 3)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "b", out[1].ID) // equal priority: original order preserved
	assert.Equal(t, "c", out[2].ID)
}

func TestEvaluateGroupAndShortCircuits(t *testing.T) {
	eval := expr.NewEvaluator(16)
	ruleset := map[string]model.Rule{
		"r1": {ID: "r1", Condition: "false", Priority: 1},
		"r2": {ID: "r2", Condition: "true", Priority: 2},
	}
	group := model.RuleGroup{ID: "g1", Operator: model.OperatorAnd, RuleIDs: []string{"r1", "r2"}}

	ok, outcomes, err := EvaluateGroup(eval, group, ruleset, map[string]any{})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, outcomes, 1, "AND must stop at the first false without evaluating r2")
}

func TestEvaluateGroupOrShortCircuits(t *testing.T) {
	eval := expr.NewEvaluator(16)
	ruleset := map[string]model.Rule{
		"r1": {ID: "r1", Condition: "true", Priority: 1},
		"r2": {ID: "r2", Condition: "true", Priority: 2},
	}
	group := model.RuleGroup{ID: "g1", Operator: model.OperatorOr, RuleIDs: []string{"r1", "r2"}}

	ok, outcomes, err := EvaluateGroup(eval, group, ruleset, map[string]any{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, outcomes, 1, "OR must stop at the first true without evaluating r2")
}

func TestEvaluateGroupUnknownRuleIDIsConfigurationError(t *testing.T) {
	eval := expr.NewEvaluator(16)
	group := model.RuleGroup{ID: "g1", Operator: model.OperatorAnd, RuleIDs: []string{"missing"}}

	_, _, err := EvaluateGroup(eval, group, map[string]model.Rule{}, map[string]any{})
	assert.Error(t, err)
}
