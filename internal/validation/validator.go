// Package validation provides data validation and integrity checks for
// documents fetched from the vendor cloud before they are resolved.
package validation

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/solarmon/go-dess/internal/jsontree"
)

// ValidationLevel defines the strictness of validation rules.
type ValidationLevel int

const (
	ValidationLevelBasic ValidationLevel = iota
	ValidationLevelStandard
	ValidationLevelStrict
)

// String returns the string representation of the validation level.
func (vl ValidationLevel) String() string {
	switch vl {
	case ValidationLevelBasic:
		return "basic"
	case ValidationLevelStandard:
		return "standard"
	case ValidationLevelStrict:
		return "strict"
	default:
		return "unknown"
	}
}

// ValidationError represents a validation error with severity and context.
type ValidationError struct {
	Type     string
	Severity string
	Message  string
	Field    string
}

// Error implements the error interface.
func (ve *ValidationError) Error() string {
	return fmt.Sprintf("%s validation error in %s: %s", ve.Severity, ve.Field, ve.Message)
}

// ValidationResult contains the result of a validation check.
type ValidationResult struct {
	Valid      bool
	Errors     []*ValidationError
	Warnings   []*ValidationError
	Confidence float64 // 0.0-1.0 confidence in data integrity
}

// HasWarnings returns true if there are any validation warnings.
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// Summary returns a summary of the validation result.
func (vr *ValidationResult) Summary() string {
	if vr.Valid && !vr.HasWarnings() {
		return fmt.Sprintf("Valid (confidence: %.2f)", vr.Confidence)
	}

	var parts []string
	if !vr.Valid {
		parts = append(parts, fmt.Sprintf("%d errors", len(vr.Errors)))
	}
	if vr.HasWarnings() {
		parts = append(parts, fmt.Sprintf("%d warnings", len(vr.Warnings)))
	}

	return fmt.Sprintf("%s (confidence: %.2f)", strings.Join(parts, ", "), vr.Confidence)
}

// DocumentRule defines a validation rule applied to a fetched document.
type DocumentRule struct {
	Name        string
	Description string
	Level       ValidationLevel
	Check       func(doc jsontree.Value) *ValidationError
}

// Validator checks the shape of vendor documents before resolution.
type Validator struct {
	level  ValidationLevel
	rules  []*DocumentRule
	logger zerolog.Logger

	// Statistics
	validationsPerformed int64
	errorsFound          int64
	warningsFound        int64
}

// NewValidator creates a validator with the default document rules.
func NewValidator(level ValidationLevel, logger zerolog.Logger) *Validator {
	v := &Validator{
		level:  level,
		logger: logger.With().Str("component", "validator").Logger(),
	}
	v.registerDefaultRules()
	return v
}

// ValidateDocument runs every active rule against a fetched document.
func (v *Validator) ValidateDocument(doc jsontree.Value) *ValidationResult {
	v.validationsPerformed++

	result := &ValidationResult{
		Valid:      true,
		Errors:     make([]*ValidationError, 0),
		Warnings:   make([]*ValidationError, 0),
		Confidence: 1.0,
	}

	for _, rule := range v.rules {
		if rule.Level <= v.level {
			if err := rule.Check(doc); err != nil {
				v.addValidationError(result, err)
			}
		}
	}

	v.logger.Debug().
		Int("errors", len(result.Errors)).
		Int("warnings", len(result.Warnings)).
		Float64("confidence", result.Confidence).
		Msg("Document validation completed")

	return result
}

// addValidationError adds a validation error to the result and updates metrics.
func (v *Validator) addValidationError(result *ValidationResult, err *ValidationError) {
	if err.Severity == "warning" {
		result.Warnings = append(result.Warnings, err)
		v.warningsFound++
		result.Confidence *= 0.95
	} else {
		result.Errors = append(result.Errors, err)
		v.errorsFound++
		result.Valid = false

		switch err.Severity {
		case "critical":
			result.Confidence *= 0.1
		case "error":
			result.Confidence *= 0.5
		}
	}
}

// registerDefaultRules registers the default document rules.
func (v *Validator) registerDefaultRules() {
	v.rules = []*DocumentRule{
		{
			Name:        "document_present",
			Description: "Document payload must exist",
			Level:       ValidationLevelBasic,
			Check: func(doc jsontree.Value) *ValidationError {
				if doc.IsNull() {
					return &ValidationError{
						Type:     "shape",
						Severity: "critical",
						Message:  "document payload is null",
						Field:    "dat",
					}
				}
				return nil
			},
		},
		{
			Name:        "document_kind",
			Description: "Document payload must be an object or array",
			Level:       ValidationLevelBasic,
			Check: func(doc jsontree.Value) *ValidationError {
				switch doc.Kind() {
				case jsontree.KindObject, jsontree.KindArray, jsontree.KindNull:
					return nil
				}
				return &ValidationError{
					Type:     "shape",
					Severity: "error",
					Message:  fmt.Sprintf("document payload is a scalar %s", doc.Kind()),
					Field:    "dat",
				}
			},
		},
		{
			Name:        "telemetry_entry_shape",
			Description: "Telemetry entries must carry an id or a par with a val",
			Level:       ValidationLevelStandard,
			Check: func(doc jsontree.Value) *ValidationError {
				// Entries with a val but neither id nor par can never be
				// resolved and usually indicate a firmware quirk.
				orphans := 0
				for _, node := range collectObjects(doc) {
					_, hasVal := node.Get("val")
					_, hasID := node.Get("id")
					_, hasPar := node.Get("par")
					if hasVal && !hasID && !hasPar {
						orphans++
					}
				}
				if orphans > 0 {
					return &ValidationError{
						Type:     "shape",
						Severity: "warning",
						Message:  fmt.Sprintf("%d telemetry entries carry a val with no id or par", orphans),
						Field:    "pars",
					}
				}
				return nil
			},
		},
		{
			Name:        "document_size",
			Description: "Document should be within reasonable bounds",
			Level:       ValidationLevelStrict,
			Check: func(doc jsontree.Value) *ValidationError {
				if n := countNodes(doc); n > 10000 {
					return &ValidationError{
						Type:     "shape",
						Severity: "warning",
						Message:  fmt.Sprintf("unusually large document: %d nodes", n),
						Field:    "dat",
					}
				}
				return nil
			},
		},
	}
}

func collectObjects(doc jsontree.Value) []jsontree.Value {
	var out []jsontree.Value
	var walk func(v jsontree.Value)
	walk = func(v jsontree.Value) {
		switch v.Kind() {
		case jsontree.KindObject:
			out = append(out, v)
			for _, m := range v.Members() {
				walk(m.Value)
			}
		case jsontree.KindArray:
			for _, el := range v.Elems() {
				walk(el)
			}
		}
	}
	walk(doc)
	return out
}

func countNodes(doc jsontree.Value) int {
	n := 1
	switch doc.Kind() {
	case jsontree.KindObject:
		for _, m := range doc.Members() {
			n += countNodes(m.Value)
		}
	case jsontree.KindArray:
		for _, el := range doc.Elems() {
			n += countNodes(el)
		}
	}
	return n
}

// GetStatistics returns validation statistics.
func (v *Validator) GetStatistics() map[string]interface{} {
	return map[string]interface{}{
		"validations_performed": v.validationsPerformed,
		"errors_found":          v.errorsFound,
		"warnings_found":        v.warningsFound,
		"validation_level":      v.level.String(),
		"document_rules":        len(v.rules),
	}
}

// SetValidationLevel changes the validation level.
func (v *Validator) SetValidationLevel(level ValidationLevel) {
	v.level = level
	v.logger.Info().
		Str("new_level", level.String()).
		Msg("Validation level changed")
}

// AddRule adds a custom document validation rule.
func (v *Validator) AddRule(rule *DocumentRule) {
	v.rules = append(v.rules, rule)

	v.logger.Debug().
		Str("rule", rule.Name).
		Msg("Added custom document rule")
}
