package validate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apex/engine/expr"
	"github.com/apex/engine/loader"
)

func writeYAML(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const validRuleConfig = `
metadata:
  id: "doc"
  name: "doc"
  version: "1.0"
  description: "test doc"
  type: rule-config
  author: tester
rules: []
`

// brokenRuleConfig omits metadata.author, required for type rule-config.
const brokenRuleConfig = `
metadata:
  id: "doc"
  name: "doc"
  version: "1.0"
  description: "test doc"
  type: rule-config
rules: []
`

func newValidators() (*StructuralValidator, *ExpressionValidator) {
	return NewStructuralValidator(), NewExpressionValidator(expr.NewEvaluator(16))
}

func TestValidateGraphHappyPath(t *testing.T) {
	dir := t.TempDir()
	writeYAML(t, dir, "b.yaml", validRuleConfig[1:])
	aBody := validRuleConfig[1:] + "data-source-refs:\n  - name: b\n    source: b.yaml\n    enabled: true\n"
	a := writeYAML(t, dir, "a.yaml", aBody)

	g, err := loader.Load(a)
	require.NoError(t, err)

	structural, expression := newValidators()
	result := ValidateGraph(g, structural, expression)

	assert.True(t, result.Valid)
	assert.Empty(t, result.RootCauses)
	assert.Empty(t, result.CircularDependencies)
}

func TestValidateGraphPropagatesRootCauseToDependent(t *testing.T) {
	dir := t.TempDir()
	writeYAML(t, dir, "b.yaml", brokenRuleConfig[1:])
	aBody := validRuleConfig[1:] + "data-source-refs:\n  - name: b\n    source: b.yaml\n    enabled: true\n"
	a := writeYAML(t, dir, "a.yaml", aBody)
	bPath := filepath.Join(dir, "b.yaml")

	g, err := loader.Load(a)
	require.NoError(t, err)

	structural, expression := newValidators()
	result := ValidateGraph(g, structural, expression)

	require.False(t, result.Valid)

	// b.yaml owns the structural error and must appear in RootCauses.
	foundRootCause := false
	for _, rc := range result.RootCauses {
		if rc == bPath+": metadata: missing required field for type 'rule-config': author" ||
			(len(rc) > len(bPath) && rc[:len(bPath)] == bPath) {
			foundRootCause = true
		}
	}
	assert.True(t, foundRootCause, "expected a rootCause referencing %s, got: %v", bPath, result.RootCauses)

	// a.yaml has no structural error of its own, but must be marked
	// invalid purely by propagation from its broken dependency.
	aResult := result.FileResults[a]
	require.NotNil(t, aResult)
	assert.False(t, aResult.Valid)
	assert.Empty(t, aResult.Errors, "a.yaml must be invalid by propagation, not its own errors")
}

func TestValidateGraphDetectsCycleAndInvalidatesBothFiles(t *testing.T) {
	dir := t.TempDir()
	aBody := validRuleConfig[1:] + "data-source-refs:\n  - name: b\n    source: b.yaml\n    enabled: true\n"
	bBody := validRuleConfig[1:] + "data-source-refs:\n  - name: a\n    source: a.yaml\n    enabled: true\n"
	a := writeYAML(t, dir, "a.yaml", aBody)
	writeYAML(t, dir, "b.yaml", bBody)

	g, err := loader.Load(a)
	require.NoError(t, err)

	structural, expression := newValidators()
	result := ValidateGraph(g, structural, expression)

	require.False(t, result.Valid)
	assert.NotEmpty(t, result.CircularDependencies)
	for _, fr := range result.FileResults {
		assert.False(t, fr.Valid, "every file inside a reported cycle must be marked invalid")
	}
}
