package core

// validation.go checks MINERD records before they reach the store.
//
// Validation happens in three layers, applied in order and stopping at the
// first failure:
//  1. Format: required text fields are present, counts are storable non-negative numbers
//  2. Range: enrollment and score policy, known school type
//  3. Consistency: the MINERD code was not already accepted earlier in the run
//
// Only a Validator can build a ValidatedRecord, so anything that reaches the
// write path has been through all three layers.

import (
	"fmt"
	"math"
	"strings"
)

// DefaultMinStudents is the smallest enrollment admitted to the directory.
const DefaultMinStudents = 15

// Layer identifies which validation layer rejected a record.
type Layer int

const (
	LayerFormat Layer = iota + 1
	LayerRange
	LayerConsistency
)

func (l Layer) String() string {
	switch l {
	case LayerFormat:
		return "format"
	case LayerRange:
		return "range"
	case LayerConsistency:
		return "consistency"
	default:
		return fmt.Sprintf("layer(%d)", int(l))
	}
}

// ValidationError describes why a record was rejected.
type ValidationError struct {
	Layer   Layer
	Field   string // Field name
	Value   string // The invalid value
	Message string // Human-readable error message
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// Unwrap returns the sentinel for the failing layer.
func (e *ValidationError) Unwrap() error {
	switch e.Layer {
	case LayerFormat:
		return ErrFormat
	case LayerRange:
		return ErrRange
	case LayerConsistency:
		return ErrDuplicateCode
	default:
		return nil
	}
}

// ValidationPolicy holds the tunable layer-2 thresholds.
type ValidationPolicy struct {
	MinStudents int
}

// DefaultValidationPolicy returns the directory's inclusion policy.
func DefaultValidationPolicy() ValidationPolicy {
	return ValidationPolicy{MinStudents: DefaultMinStudents}
}

var requiredTextFields = []string{FieldMinerdCode, FieldName, FieldProvince, FieldType}

// Validator runs the three layers. It remembers every MINERD code accepted
// during the run, so use a fresh Validator per run. Not safe for concurrent use.
type Validator struct {
	policy   ValidationPolicy
	accepted map[string]struct{}
}

// NewValidator creates a validator for one run.
func NewValidator(policy ValidationPolicy) *Validator {
	if policy.MinStudents <= 0 {
		policy.MinStudents = DefaultMinStudents
	}
	return &Validator{
		policy:   policy,
		accepted: make(map[string]struct{}),
	}
}

// Validate checks rec against all layers and returns the typed record.
// The returned error is always a *ValidationError.
func (v *Validator) Validate(rec RawRecord) (ValidatedRecord, error) {
	out, err := validateFormat(rec)
	if err != nil {
		return ValidatedRecord{}, err
	}
	if err := v.validateRange(&out); err != nil {
		return ValidatedRecord{}, err
	}
	if _, seen := v.accepted[out.minerdCode]; seen {
		return ValidatedRecord{}, &ValidationError{
			Layer:   LayerConsistency,
			Field:   FieldMinerdCode,
			Value:   out.minerdCode,
			Message: "already imported earlier in this run",
		}
	}
	return out, nil
}

// Accept records a MINERD code as imported so later records with the same
// code fail layer 3.
func (v *Validator) Accept(rec ValidatedRecord) {
	v.accepted[rec.minerdCode] = struct{}{}
}

// Accepted returns how many codes have been accepted so far.
func (v *Validator) Accepted() int {
	return len(v.accepted)
}

func validateFormat(rec RawRecord) (ValidatedRecord, error) {
	text := make(map[string]string, len(requiredTextFields))
	for _, field := range requiredTextFields {
		raw, present := rec[field]
		s, ok := raw.(string)
		if !present || !ok || s == "" {
			return ValidatedRecord{}, &ValidationError{
				Layer:   LayerFormat,
				Field:   field,
				Value:   describe(raw),
				Message: "required field must be a non-empty string",
			}
		}
		text[field] = s
	}

	students, err := nonNegativeNumber(rec, FieldStudentsCount)
	if err != nil {
		return ValidatedRecord{}, err
	}
	// students_count is an integer column; larger values cannot be stored.
	if students > math.MaxInt32 {
		return ValidatedRecord{}, &ValidationError{
			Layer:   LayerFormat,
			Field:   FieldStudentsCount,
			Value:   describe(rec[FieldStudentsCount]),
			Message: "exceeds the largest storable count",
		}
	}
	prueba, err := nonNegativeNumber(rec, FieldPruebaNacional)
	if err != nil {
		return ValidatedRecord{}, err
	}

	address, _ := rec[FieldAddress].(string)

	return ValidatedRecord{
		minerdCode:     text[FieldMinerdCode],
		name:           text[FieldName],
		province:       text[FieldProvince],
		schoolType:     SchoolType(text[FieldType]),
		studentsCount:  int(students),
		pruebaNacional: prueba,
		address:        address,
	}, nil
}

func nonNegativeNumber(rec RawRecord, field string) (float64, error) {
	raw := rec[field]
	n, ok := toNumber(raw)
	if !ok {
		return 0, &ValidationError{
			Layer:   LayerFormat,
			Field:   field,
			Value:   describe(raw),
			Message: "invalid number",
		}
	}
	if n < 0 {
		return 0, &ValidationError{
			Layer:   LayerFormat,
			Field:   field,
			Value:   describe(raw),
			Message: "must not be negative",
		}
	}
	return n, nil
}

// validateRange applies the inclusion policy and normalises the school type.
// Comparing the truncated count against an integer minimum is exact.
func (v *Validator) validateRange(out *ValidatedRecord) error {
	if out.studentsCount < v.policy.MinStudents {
		return &ValidationError{
			Layer:   LayerRange,
			Field:   FieldStudentsCount,
			Value:   fmt.Sprint(out.studentsCount),
			Message: fmt.Sprintf("enrollment below minimum of %d", v.policy.MinStudents),
		}
	}
	if out.pruebaNacional <= 0 {
		return &ValidationError{
			Layer:   LayerRange,
			Field:   FieldPruebaNacional,
			Value:   fmt.Sprint(out.pruebaNacional),
			Message: "score must be greater than zero",
		}
	}

	switch t := SchoolType(strings.ToLower(string(out.schoolType))); t {
	case SchoolPublic, SchoolPrivate:
		out.schoolType = t
	default:
		return &ValidationError{
			Layer:   LayerRange,
			Field:   FieldType,
			Value:   string(out.schoolType),
			Message: "type must be public or private",
		}
	}
	return nil
}

func describe(v any) string {
	if v == nil {
		return "<missing>"
	}
	return fmt.Sprint(v)
}
