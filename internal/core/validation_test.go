package core

import (
	"errors"
	"testing"
)

func validRecord() RawRecord {
	return RawRecord{
		FieldMinerdCode:     "10234",
		FieldName:           "Liceo Juan Pablo Duarte",
		FieldProvince:       "Santo Domingo",
		FieldType:           "Public",
		FieldStudentsCount:  450.0,
		FieldPruebaNacional: 72.5,
		FieldAddress:        "Av. Independencia 12",
	}
}

func with(rec RawRecord, field string, value any) RawRecord {
	out := make(RawRecord, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	if value == nil {
		delete(out, field)
	} else {
		out[field] = value
	}
	return out
}

// ============================================================================
// Validate Tests
// ============================================================================

func TestValidator_Validate(t *testing.T) {
	tests := []struct {
		name      string
		record    RawRecord
		wantErr   error
		wantField string
	}{
		{name: "valid record", record: validRecord()},

		// Layer 1
		{name: "missing code", record: with(validRecord(), FieldMinerdCode, nil), wantErr: ErrFormat, wantField: FieldMinerdCode},
		{name: "empty name", record: with(validRecord(), FieldName, ""), wantErr: ErrFormat, wantField: FieldName},
		{name: "numeric province", record: with(validRecord(), FieldProvince, 12.0), wantErr: ErrFormat, wantField: FieldProvince},
		{name: "missing type", record: with(validRecord(), FieldType, nil), wantErr: ErrFormat, wantField: FieldType},
		{name: "students as text", record: with(validRecord(), FieldStudentsCount, "many"), wantErr: ErrFormat, wantField: FieldStudentsCount},
		{name: "negative students", record: with(validRecord(), FieldStudentsCount, -1.0), wantErr: ErrFormat, wantField: FieldStudentsCount},
		{name: "missing prueba", record: with(validRecord(), FieldPruebaNacional, nil), wantErr: ErrFormat, wantField: FieldPruebaNacional},
		{name: "negative prueba", record: with(validRecord(), FieldPruebaNacional, -0.5), wantErr: ErrFormat, wantField: FieldPruebaNacional},
		{name: "students beyond int range", record: with(validRecord(), FieldStudentsCount, 1e19), wantErr: ErrFormat, wantField: FieldStudentsCount},
		{name: "students above int32", record: with(validRecord(), FieldStudentsCount, 2147483648.0), wantErr: ErrFormat, wantField: FieldStudentsCount},

		// Layer 2
		{name: "14 students", record: with(validRecord(), FieldStudentsCount, 14.0), wantErr: ErrRange, wantField: FieldStudentsCount},
		{name: "15 students", record: with(validRecord(), FieldStudentsCount, 15.0)},
		{name: "14.9 students", record: with(validRecord(), FieldStudentsCount, 14.9), wantErr: ErrRange, wantField: FieldStudentsCount},
		{name: "zero students", record: with(validRecord(), FieldStudentsCount, 0.0), wantErr: ErrRange, wantField: FieldStudentsCount},
		{name: "prueba zero", record: with(validRecord(), FieldPruebaNacional, 0.0), wantErr: ErrRange, wantField: FieldPruebaNacional},
		{name: "prueba 0.01", record: with(validRecord(), FieldPruebaNacional, 0.01)},
		{name: "unknown type", record: with(validRecord(), FieldType, "charter"), wantErr: ErrRange, wantField: FieldType},
		{name: "upper-case private", record: with(validRecord(), FieldType, "PRIVATE")},
		{name: "largest storable students", record: with(validRecord(), FieldStudentsCount, 2147483647.0)},

		// Layer 1 runs before layer 2
		{name: "format beats range", record: with(with(validRecord(), FieldName, ""), FieldStudentsCount, 3.0), wantErr: ErrFormat, wantField: FieldName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewValidator(DefaultValidationPolicy()).Validate(tt.record)

			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if ve.Field != tt.wantField {
				t.Errorf("field = %q, want %q", ve.Field, tt.wantField)
			}
		})
	}
}

func TestValidator_NormalisesRecord(t *testing.T) {
	rec := with(validRecord(), FieldStudentsCount, 450.7)
	rec = with(rec, FieldAddress, nil)

	v, err := NewValidator(DefaultValidationPolicy()).Validate(rec)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if v.Type() != SchoolPublic {
		t.Errorf("type = %q, want %q", v.Type(), SchoolPublic)
	}
	if v.StudentsCount() != 450 {
		t.Errorf("students = %d, want truncated 450", v.StudentsCount())
	}
	if v.Address() != "" {
		t.Errorf("address = %q, want empty", v.Address())
	}
	if v.MinerdCode() != "10234" || v.Province() != "Santo Domingo" || v.PruebaNacional() != 72.5 {
		t.Errorf("unexpected record %+v", v)
	}
}

func TestValidator_RepeatedCodeInRun(t *testing.T) {
	val := NewValidator(DefaultValidationPolicy())

	first, err := val.Validate(validRecord())
	if err != nil {
		t.Fatalf("first: %v", err)
	}

	// Not accepted yet: a record that failed to write does not block the code.
	if _, err := val.Validate(validRecord()); err != nil {
		t.Fatalf("second before accept: %v", err)
	}

	val.Accept(first)
	_, err = val.Validate(with(validRecord(), FieldName, "Otro Nombre"))
	if !errors.Is(err, ErrDuplicateCode) {
		t.Fatalf("err = %v, want ErrDuplicateCode", err)
	}
	if errors.Is(err, ErrFormat) || errors.Is(err, ErrRange) {
		t.Error("layer 3 error must be distinct from layer 1/2")
	}
	if val.Accepted() != 1 {
		t.Errorf("accepted = %d, want 1", val.Accepted())
	}
}

func TestValidator_CustomPolicy(t *testing.T) {
	val := NewValidator(ValidationPolicy{MinStudents: 100})
	if _, err := val.Validate(with(validRecord(), FieldStudentsCount, 99.0)); !errors.Is(err, ErrRange) {
		t.Errorf("err = %v, want ErrRange", err)
	}

	// Non-positive minimum falls back to the default.
	val = NewValidator(ValidationPolicy{})
	if _, err := val.Validate(with(validRecord(), FieldStudentsCount, 14.0)); !errors.Is(err, ErrRange) {
		t.Errorf("err = %v, want ErrRange", err)
	}
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{Layer: LayerRange, Field: "students_count", Message: "too small"}
	if got := err.Error(); got != "students_count: too small" {
		t.Errorf("Error() = %q", got)
	}
	err = &ValidationError{Layer: LayerFormat, Message: "bad"}
	if got := err.Error(); got != "bad" {
		t.Errorf("Error() = %q", got)
	}
}

func TestLayer_String(t *testing.T) {
	if LayerConsistency.String() != "consistency" {
		t.Errorf("got %q", LayerConsistency.String())
	}
	if Layer(9).String() != "layer(9)" {
		t.Errorf("got %q", Layer(9).String())
	}
}
