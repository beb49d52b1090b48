package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "format validation error",
			err:         &ValidationError{Layer: LayerFormat, Field: "name", Message: "required field must be a non-empty string"},
			wantCode:    "IMP001",
			wantMessage: "Record has missing or malformed fields",
		},
		{
			name:     "range validation error",
			err:      &ValidationError{Layer: LayerRange, Field: "students_count", Message: "enrollment below minimum of 15"},
			wantCode: "IMP002",
		},
		{
			name:     "repeated code",
			err:      &ValidationError{Layer: LayerConsistency, Field: "minerd_code", Message: "already imported earlier in this run"},
			wantCode: "IMP003",
		},
		{
			name:     "province not found",
			err:      fmt.Errorf("%w: %q", ErrProvinceNotFound, "Atlantis"),
			wantCode: "IMP004",
		},
		{
			name:     "busy importer",
			err:      ErrImportRunning,
			wantCode: "IMP005",
		},
		{
			name:     "empty import log",
			err:      ErrNoImports,
			wantCode: "IMP006",
		},
		{
			name:        "duplicate key maps correctly",
			err:         errors.New("ERROR: duplicate key value violates unique constraint \"schools_slug_key\" (SQLSTATE 23505)"),
			wantCode:    "DB001",
			wantMessage: "A school with this key already exists",
		},
		{
			name:     "unique constraint maps correctly",
			err:      errors.New("ERROR: unique constraint violated"),
			wantCode: "DB002",
		},
		{
			name:     "foreign key maps correctly",
			err:      errors.New("insert or update on table \"schools\" violates foreign key constraint"),
			wantCode: "DB003",
		},
		{
			name:        "connection refused maps correctly",
			err:         errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"),
			wantCode:    "DB004",
			wantMessage: "Unable to connect to database",
		},
		{
			name:     "deadline exceeded maps to timeout",
			err:      fmt.Errorf("%w: %w", ErrWrite, errors.New("context deadline exceeded")),
			wantCode: "DB006",
		},
		{
			name:     "deadlock maps correctly",
			err:      errors.New("ERROR: deadlock detected (SQLSTATE 40P01)"),
			wantCode: "DB007",
		},
		{
			name:        "unknown error gets default",
			err:         errors.New("something completely unexpected"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if tt.wantMessage != "" && got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestMapError_CaseInsensitive(t *testing.T) {
	if got := MapError(errors.New("DUPLICATE KEY")); got.Code != "DB001" {
		t.Errorf("expected DB001 for uppercase pattern, got %s", got.Code)
	}
}

func TestMapError_DriverErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"unique violation by sqlstate", &pgconn.PgError{Code: "23505", Message: "duplicate key value"}, "DB001"},
		{"check violation", &pgconn.PgError{Code: "23514", Message: "new row violates check constraint"}, "DB002"},
		{"not null violation", fmt.Errorf("%w: %w", ErrWrite, &pgconn.PgError{Code: "23502"}), "DB002"},
		{"foreign key by sqlstate", &pgconn.PgError{Code: "23503"}, "DB003"},
		{"connection failure class", &pgconn.PgError{Code: "08006"}, "DB004"},
		{"statement timeout", &pgconn.PgError{Code: "57014", Message: "canceling statement due to statement timeout"}, "DB006"},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, "DB007"},
		{"deadlock by sqlstate", &pgconn.PgError{Code: "40P01"}, "DB007"},
		{"context deadline", fmt.Errorf("select schools: %w", context.DeadlineExceeded), "DB006"},
		{"unmapped sqlstate falls through to text", &pgconn.PgError{Code: "42P01", Message: "relation does not exist"}, "ERR000"},
		{"sentinel beats driver error", fmt.Errorf("%w: %w", ErrProvinceNotFound, &pgconn.PgError{Code: "08006"}), "IMP004"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapError(tt.err).Code; got != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestMapError_EveryCodeHasAction(t *testing.T) {
	msgs := []UserMessage{defaultMessage}
	for _, sm := range sentinelMessages {
		msgs = append(msgs, sm.msg)
	}
	for _, tp := range textPatterns {
		msgs = append(msgs, tp.msg)
	}
	for _, m := range msgs {
		if m.Code == "" || m.Message == "" || m.Action == "" {
			t.Errorf("incomplete message: %+v", m)
		}
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{&ValidationError{Layer: LayerFormat}, KindFormat},
		{&ValidationError{Layer: LayerRange}, KindRange},
		{&ValidationError{Layer: LayerConsistency}, KindRepeated},
		{fmt.Errorf("%w: x", ErrProvinceNotFound), KindProvince},
		{fmt.Errorf("%w: x", ErrWriteConflict), KindWrite},
		{errors.New("x"), KindUnknown},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
	if !errors.Is(ErrWriteConflict, ErrWrite) {
		t.Error("ErrWriteConflict must wrap ErrWrite")
	}
}
