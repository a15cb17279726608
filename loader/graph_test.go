package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const minimalMeta = `
metadata:
  id: "doc"
  name: "doc"
  version: "1.0"
  description: "test doc"
  type: rule-config
  author: tester
`

func TestLoadSingleFileWithNoRefs(t *testing.T) {
	dir := t.TempDir()
	path := writeYAML(t, dir, "a.yaml", minimalMeta[1:]+"data-source-refs: []\n")

	g, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, g.Documents, 1)
	assert.Empty(t, g.Cycles)
}

func TestLoadFollowsDataSourceRefsTransitively(t *testing.T) {
	dir := t.TempDir()
	writeYAML(t, dir, "b.yaml", minimalMeta[1:])
	aBody := minimalMeta[1:] + "data-source-refs:\n  - name: b\n    source: b.yaml\n    enabled: true\n"
	a := writeYAML(t, dir, "a.yaml", aBody)

	g, err := Load(a)
	require.NoError(t, err)
	assert.Len(t, g.Documents, 2)
	assert.Empty(t, g.Cycles)
}

func TestLoadDetectsCycleAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	aBody := minimalMeta[1:] + "data-source-refs:\n  - name: b\n    source: b.yaml\n    enabled: true\n"
	bBody := minimalMeta[1:] + "data-source-refs:\n  - name: a\n    source: a.yaml\n    enabled: true\n"
	a := writeYAML(t, dir, "a.yaml", aBody)
	writeYAML(t, dir, "b.yaml", bBody)

	g, err := Load(a)
	require.NoError(t, err)
	assert.NotEmpty(t, g.Cycles)
}

func TestLoadWalksWholeDirectoryTree(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	writeYAML(t, dir, "a.yaml", minimalMeta[1:])
	writeYAML(t, sub, "b.yaml", minimalMeta[1:])
	// b.yaml and a.yaml have no data-source-refs connecting them; a
	// directory Load must still discover both as independent roots.

	g, err := Load(dir)
	require.NoError(t, err)
	assert.Len(t, g.Documents, 2)
}
