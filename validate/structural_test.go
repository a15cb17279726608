package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apex/engine/model"
)

func validMetadata() model.Metadata {
	return model.Metadata{
		ID: "doc1", Name: "doc", Version: "1.0", Description: "test",
		Type: model.TypeRuleConfig, Author: "tester",
	}
}

func TestStructuralValidatorAcceptsMinimalValidDocument(t *testing.T) {
	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	doc := &model.Document{
		Metadata: validMetadata(),
		Sections: map[string]any{"rules": nil},
	}
	v := &StructuralValidator{Now: func() time.Time { return now }}
	errs := v.Validate(doc)
	assert.Empty(t, errs)
}

func TestStructuralValidatorFlagsMissingMetadataFields(t *testing.T) {
	doc := &model.Document{
		Metadata: model.Metadata{Type: model.TypeRuleConfig},
		Sections: map[string]any{},
	}
	v := NewStructuralValidator()
	errs := v.Validate(doc)
	assert.NotEmpty(t, errs)
}

func TestStructuralValidatorFlagsDuplicateRuleIDs(t *testing.T) {
	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	created := now.Add(-time.Hour)
	rule := model.Rule{
		ID: "r1", Name: "r1", Condition: "true", Message: "m",
		CreatedDate: created, ModifiedDate: created,
	}
	doc := &model.Document{
		Metadata: validMetadata(),
		Rules:    []model.Rule{rule, rule},
		Sections: map[string]any{"rules": nil},
	}
	v := &StructuralValidator{Now: func() time.Time { return now }}
	errs := v.Validate(doc)
	require.NotEmpty(t, errs)
	found := false
	for _, e := range errs {
		if e == `duplicate rule id "r1"` {
			found = true
		}
	}
	assert.True(t, found, "expected a duplicate rule id error, got: %v", errs)
}

func TestStructuralValidatorFlagsUnrecognizedSection(t *testing.T) {
	doc := &model.Document{
		Metadata: validMetadata(),
		Sections: map[string]any{"not-a-real-section": nil},
	}
	v := NewStructuralValidator()
	errs := v.Validate(doc)
	assert.NotEmpty(t, errs)
}
