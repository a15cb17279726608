package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apex/engine/model"
)

func TestTopoOrderLinearChain(t *testing.T) {
	stages := []model.WorkflowStage{
		{ID: "c", DependsOn: []string{"b"}},
		{ID: "a"},
		{ID: "b", DependsOn: []string{"a"}},
	}
	order, err := TopoOrder(stages)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestTopoOrderDiamond(t *testing.T) {
	stages := []model.WorkflowStage{
		{ID: "a"},
		{ID: "b", DependsOn: []string{"a"}},
		{ID: "c", DependsOn: []string{"a"}},
		{ID: "d", DependsOn: []string{"b", "c"}},
	}
	order, err := TopoOrder(stages)
	require.NoError(t, err)
	require.Len(t, order, 4)
	assert.Equal(t, "a", order[0])
	assert.Equal(t, "d", order[3])
}

func TestTopoOrderDetectsCycle(t *testing.T) {
	stages := []model.WorkflowStage{
		{ID: "a", DependsOn: []string{"b"}},
		{ID: "b", DependsOn: []string{"a"}},
	}
	_, err := TopoOrder(stages)
	assert.Error(t, err)
}

func TestTopoOrderRejectsUnknownDependency(t *testing.T) {
	stages := []model.WorkflowStage{
		{ID: "a", DependsOn: []string{"ghost"}},
	}
	_, err := TopoOrder(stages)
	assert.Error(t, err)
}

func TestTopoOrderRejectsDuplicateStageID(t *testing.T) {
	stages := []model.WorkflowStage{
		{ID: "a"},
		{ID: "a"},
	}
	_, err := TopoOrder(stages)
	assert.Error(t, err)
}
