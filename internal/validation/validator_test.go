package validation

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/solarmon/go-dess/internal/jsontree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestValidator(level ValidationLevel) *Validator {
	return NewValidator(level, zerolog.Nop())
}

func TestValidDocumentPasses(t *testing.T) {
	v := newTestValidator(ValidationLevelStandard)
	doc := jsontree.MustParse([]byte(`{"pars": [
		{"id": "bt_battery_voltage", "val": "54.2"},
		{"par": "Output priority", "val": "SBU"}
	]}`))

	result := v.ValidateDocument(doc)
	assert.True(t, result.Valid)
	assert.False(t, result.HasWarnings())
	assert.Equal(t, 1.0, result.Confidence)
	assert.Contains(t, result.Summary(), "Valid")
}

func TestNullDocumentIsCritical(t *testing.T) {
	v := newTestValidator(ValidationLevelBasic)

	result := v.ValidateDocument(jsontree.Null())
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "critical", result.Errors[0].Severity)
	assert.InDelta(t, 0.1, result.Confidence, 0.001)
}

func TestScalarDocumentIsError(t *testing.T) {
	v := newTestValidator(ValidationLevelBasic)

	result := v.ValidateDocument(jsontree.String("oops"))
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "error", result.Errors[0].Severity)
	assert.InDelta(t, 0.5, result.Confidence, 0.001)
}

func TestOrphanValEntriesWarn(t *testing.T) {
	v := newTestValidator(ValidationLevelStandard)
	doc := jsontree.MustParse([]byte(`{"pars": [
		{"val": "54.2"},
		{"val": "1.5"},
		{"id": "ok", "val": "1"}
	]}`))

	result := v.ValidateDocument(doc)
	assert.True(t, result.Valid, "warnings do not invalidate the document")
	require.True(t, result.HasWarnings())
	assert.Contains(t, result.Warnings[0].Message, "2 telemetry entries")
	assert.Contains(t, result.Summary(), "warnings")
}

func TestStandardRulesSkippedAtBasicLevel(t *testing.T) {
	v := newTestValidator(ValidationLevelBasic)
	doc := jsontree.MustParse([]byte(`{"pars": [{"val": "54.2"}]}`))

	result := v.ValidateDocument(doc)
	assert.True(t, result.Valid)
	assert.False(t, result.HasWarnings())
}

func TestDocumentSizeRuleStrictOnly(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(`[`)
	for i := 0; i < 11000; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("1")
	}
	sb.WriteString(`]`)
	big := jsontree.MustParse([]byte(sb.String()))

	standard := newTestValidator(ValidationLevelStandard)
	assert.False(t, standard.ValidateDocument(big).HasWarnings())

	strict := newTestValidator(ValidationLevelStrict)
	result := strict.ValidateDocument(big)
	require.True(t, result.HasWarnings())
	assert.Contains(t, result.Warnings[0].Message, "unusually large")
}

func TestAddRule(t *testing.T) {
	v := newTestValidator(ValidationLevelStandard)
	v.AddRule(&DocumentRule{
		Name:  "must_have_pars",
		Level: ValidationLevelBasic,
		Check: func(doc jsontree.Value) *ValidationError {
			if _, ok := doc.Get("pars"); !ok {
				return &ValidationError{Type: "shape", Severity: "error", Message: "no pars", Field: "pars"}
			}
			return nil
		},
	})

	result := v.ValidateDocument(jsontree.MustParse([]byte(`{"other": 1}`)))
	assert.False(t, result.Valid)
}

func TestStatisticsAndLevelChange(t *testing.T) {
	v := newTestValidator(ValidationLevelBasic)
	v.ValidateDocument(jsontree.Null())
	v.ValidateDocument(jsontree.MustParse([]byte(`{}`)))

	stats := v.GetStatistics()
	assert.Equal(t, int64(2), stats["validations_performed"])
	assert.Equal(t, int64(1), stats["errors_found"])
	assert.Equal(t, "basic", stats["validation_level"])

	v.SetValidationLevel(ValidationLevelStrict)
	stats = v.GetStatistics()
	assert.Equal(t, "strict", stats["validation_level"])
}

func TestValidationErrorString(t *testing.T) {
	err := &ValidationError{Type: "shape", Severity: "error", Message: "bad", Field: "dat"}
	assert.Equal(t, "error validation error in dat: bad", err.Error())
}
