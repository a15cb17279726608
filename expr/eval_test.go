package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalArithmeticAndComparison(t *testing.T) {
	e := NewEvaluator(16)
	out, err := e.Eval("price * qty > 100", map[string]any{"price": 50.0, "qty": 3.0})
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestEvalSafelistedFunctionIsCallable(t *testing.T) {
	e := NewEvaluator(16)
	out, err := e.Eval(`length("hello")`, map[string]any{})
	require.NoError(t, err)
	assert.EqualValues(t, 5, out)
}

func TestEvalHashRefResolvesToEnvEntry(t *testing.T) {
	e := NewEvaluator(16)
	out, err := e.Eval("#order.total > 10", map[string]any{"order": map[string]any{"total": 20.0}})
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestCompileRejectsNonSafelistedBuiltin(t *testing.T) {
	e := NewEvaluator(16)
	_, err := e.Compile(`all(1..3, {# > 0})`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UnsafeOperation")
}

func TestCompileRejectsNonSafelistedFunctionCall(t *testing.T) {
	e := NewEvaluator(16)
	_, err := e.Compile(`now()`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UnsafeOperation")
}

func TestCompileCachesProgramsAfterSuccessfulGuardCheck(t *testing.T) {
	e := NewEvaluator(16)
	before := e.Stats()
	_, err := e.Compile("1 + 1")
	require.NoError(t, err)
	_, err = e.Compile("1 + 1")
	require.NoError(t, err)
	after := e.Stats()
	assert.Greater(t, after.Hits, before.Hits)
}
