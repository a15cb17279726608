package enrich

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apex/engine/expr"
	"github.com/apex/engine/internal/testsupport"
	"github.com/apex/engine/model"
)

func TestApplyLookupEnrichmentFillsMappedFields(t *testing.T) {
	reg := testsupport.NewRegistry()
	reg.Services["accounts"] = testsupport.NewMapLookupService(map[string]map[string]any{
		"42": {"tier": "gold", "region": "us-east"},
	})
	p := NewProcessor(expr.NewEvaluator(16), reg)

	record := map[string]any{"accountId": 42}
	enrichments := []model.Enrichment{{
		ID: "e1", Type: model.EnrichmentLookup, Enabled: true, Condition: "true",
		LookupConfig: &model.LookupConfig{
			LookupService: "accounts",
			LookupKey:     "accountId",
			FieldMappings: []model.FieldMapping{
				{SourceField: "tier", TargetField: "accountTier", Required: true},
				{SourceField: "region", TargetField: "accountRegion"},
			},
		},
	}}

	out, fieldErrs, err := p.Apply(context.Background(), record, enrichments, "")
	require.NoError(t, err)
	assert.Empty(t, fieldErrs)
	m := out.(map[string]any)
	assert.Equal(t, "gold", m["accountTier"])
	assert.Equal(t, "us-east", m["accountRegion"])
	assert.Equal(t, "gold", record["accountTier"], "the original map argument must observe the same mutation")
}

func TestApplyLookupEnrichmentRequiredFieldMissingIsFieldError(t *testing.T) {
	reg := testsupport.NewRegistry()
	reg.Services["accounts"] = testsupport.NewMapLookupService(map[string]map[string]any{})
	p := NewProcessor(expr.NewEvaluator(16), reg)

	record := map[string]any{"accountId": "missing"}
	enrichments := []model.Enrichment{{
		ID: "e1", Type: model.EnrichmentLookup, Enabled: true, Condition: "true",
		LookupConfig: &model.LookupConfig{
			LookupService: "accounts",
			LookupKey:     "accountId",
			FieldMappings: []model.FieldMapping{
				{SourceField: "tier", TargetField: "accountTier", Required: true},
			},
		},
	}}

	_, fieldErrs, err := p.Apply(context.Background(), record, enrichments, "")
	require.NoError(t, err)
	require.Len(t, fieldErrs, 1)
	assert.Equal(t, "accountTier", fieldErrs[0].Field)
}

func TestApplyUnknownLookupServiceIsFatal(t *testing.T) {
	reg := testsupport.NewRegistry()
	p := NewProcessor(expr.NewEvaluator(16), reg)

	record := map[string]any{"accountId": 1}
	enrichments := []model.Enrichment{{
		ID: "e1", Type: model.EnrichmentLookup, Enabled: true, Condition: "true",
		LookupConfig: &model.LookupConfig{LookupService: "ghost", LookupKey: "accountId"},
	}}

	_, _, err := p.Apply(context.Background(), record, enrichments, "")
	assert.Error(t, err)
}

func TestApplyCalculationEnrichmentWritesResultField(t *testing.T) {
	reg := testsupport.NewRegistry()
	p := NewProcessor(expr.NewEvaluator(16), reg)

	record := map[string]any{"price": 100.0, "qty": 3.0}
	enrichments := []model.Enrichment{{
		ID: "e2", Type: model.EnrichmentCalculation, Enabled: true, Condition: "true",
		CalculationConfig: &model.CalculationConfig{Expression: "price * qty", ResultField: "total"},
	}}

	out, fieldErrs, err := p.Apply(context.Background(), record, enrichments, "")
	require.NoError(t, err)
	assert.Empty(t, fieldErrs)
	assert.EqualValues(t, 300.0, out.(map[string]any)["total"])
}

func TestApplySkipsDisabledAndMismatchedTargetType(t *testing.T) {
	reg := testsupport.NewRegistry()
	p := NewProcessor(expr.NewEvaluator(16), reg)

	record := map[string]any{"x": 1.0}
	enrichments := []model.Enrichment{
		{ID: "disabled", Type: model.EnrichmentCalculation, Enabled: false, Condition: "true",
			CalculationConfig: &model.CalculationConfig{Expression: "x + 1", ResultField: "y"}},
		{ID: "wrongTarget", Type: model.EnrichmentCalculation, Enabled: true, TargetType: "other", Condition: "true",
			CalculationConfig: &model.CalculationConfig{Expression: "x + 1", ResultField: "z"}},
	}

	out, _, err := p.Apply(context.Background(), record, enrichments, "account")
	require.NoError(t, err)
	m := out.(map[string]any)
	_, hasY := m["y"]
	_, hasZ := m["z"]
	assert.False(t, hasY)
	assert.False(t, hasZ)
}

// TestApplyConcurrentCachedLookupsDoNotRace exercises cacheFor's lazy
// per-enrichment cache creation from many goroutines sharing one Processor
// (spec §5: "parallel execution across independent requests is
// supported"). Run with -race to catch an unguarded p.caches write.
func TestApplyConcurrentCachedLookupsDoNotRace(t *testing.T) {
	reg := testsupport.NewRegistry()
	reg.Services["accounts"] = testsupport.NewMapLookupService(map[string]map[string]any{
		"42": {"tier": "gold"},
	})
	p := NewProcessor(expr.NewEvaluator(16), reg)
	enrichments := []model.Enrichment{{
		ID: "e1", Type: model.EnrichmentLookup, Enabled: true, Condition: "true",
		LookupConfig: &model.LookupConfig{
			LookupService: "accounts",
			LookupKey:     "accountId",
			Cache:         true,
			FieldMappings: []model.FieldMapping{{SourceField: "tier", TargetField: "accountTier"}},
		},
	}}

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record := map[string]any{"accountId": 42}
			_, _, err := p.Apply(context.Background(), record, enrichments, "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestApplyOrdersByPriority(t *testing.T) {
	reg := testsupport.NewRegistry()
	p := NewProcessor(expr.NewEvaluator(16), reg)

	record := map[string]any{"base": 1.0}
	enrichments := []model.Enrichment{
		{ID: "second", Type: model.EnrichmentCalculation, Enabled: true, Priority: 2, Condition: "true",
			CalculationConfig: &model.CalculationConfig{Expression: "base + 10", ResultField: "base"}},
		{ID: "first", Type: model.EnrichmentCalculation, Enabled: true, Priority: 1, Condition: "true",
			CalculationConfig: &model.CalculationConfig{Expression: "base + 1", ResultField: "base"}},
	}

	out, _, err := p.Apply(context.Background(), record, enrichments, "")
	require.NoError(t, err)
	// first runs before second: base starts at 1 -> +1 = 2 -> +10 = 12
	assert.EqualValues(t, 12.0, out.(map[string]any)["base"])
}
