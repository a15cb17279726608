package chain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apex/engine/expr"
	"github.com/apex/engine/model"
)

func TestEngineExecuteConditionalChainTriggered(t *testing.T) {
	engine := NewEngine(expr.NewEvaluator(16))
	rc := model.RuleChain{
		ID: "c1", Name: "conditional", Pattern: model.PatternConditional,
		Conditional: &model.ConditionalConfig{
			TriggerRule: model.Rule{ID: "t", Condition: "amount > 100", Priority: 1},
			OnTrigger:   []model.Rule{{ID: "flag", Condition: "true", Priority: 1}},
		},
	}

	res, err := engine.Execute(context.Background(), rc, map[string]any{"amount": 500}, NewInvocationID())
	require.NoError(t, err)
	assert.True(t, res.Successful)
	assert.Equal(t, OutcomeTriggered, res.FinalOutcome)
}

func TestEngineExecuteRejectsInvalidChainConfig(t *testing.T) {
	engine := NewEngine(expr.NewEvaluator(16))
	rc := model.RuleChain{ID: "c2", Pattern: model.PatternConditional} // Conditional is nil

	_, err := engine.Execute(context.Background(), rc, map[string]any{}, NewInvocationID())
	assert.Error(t, err)
}

func TestNewInvocationIDIsUniquePerCall(t *testing.T) {
	a := NewInvocationID()
	b := NewInvocationID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
