package store

import (
	"testing"
)

// ============================================================================
// WhereBuilder Tests
// ============================================================================

func TestNewWhereBuilder(t *testing.T) {
	wb := NewWhereBuilder()

	if wb == nil {
		t.Fatal("NewWhereBuilder returned nil")
	}
	if wb.argIndex != 1 {
		t.Errorf("expected argIndex to be 1, got %d", wb.argIndex)
	}
	if len(wb.conditions) != 0 {
		t.Errorf("expected empty conditions, got %d", len(wb.conditions))
	}
}

func TestWhereBuilder_Build_Empty(t *testing.T) {
	whereClause, args := NewWhereBuilder().Build()

	if whereClause != "" {
		t.Errorf("expected empty string for no conditions, got %q", whereClause)
	}
	if args != nil {
		t.Errorf("expected nil args for no conditions, got %v", args)
	}
}

func TestWhereBuilder_Add_MultipleConditions(t *testing.T) {
	wb := NewWhereBuilder()
	wb.Add(Eq("type", "public"))
	wb.Add(EqualFold("name", "Santo Domingo"))

	whereClause, args := wb.Build()

	expectedClause := ` WHERE "type" = $1 AND "name" ILIKE $2`
	if whereClause != expectedClause {
		t.Errorf("expected %q, got %q", expectedClause, whereClause)
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(args))
	}
	if args[0] != "public" || args[1] != "Santo Domingo" {
		t.Errorf("unexpected args %v", args)
	}
}

func TestWhereBuilder_StartIndex(t *testing.T) {
	wb := NewWhereBuilderAt(3)
	wb.Add(Eq("id", 7))

	whereClause, _ := wb.Build()
	if whereClause != ` WHERE "id" = $3` {
		t.Errorf("got %q", whereClause)
	}
}

func TestWhereBuilder_UnknownOperatorIgnored(t *testing.T) {
	wb := NewWhereBuilder()
	wb.Add(Filter{Column: "x", Operator: "bogus", Value: 1})

	whereClause, args := wb.Build()
	if whereClause != "" || args != nil {
		t.Errorf("expected unknown operator to be ignored, got %q %v", whereClause, args)
	}
}

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Santo Domingo", "Santo Domingo"},
		{"100%", `100\%`},
		{"a_b", `a\_b`},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		if got := escapeLike(tt.in); got != tt.want {
			t.Errorf("escapeLike(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestQuoteIdentifier(t *testing.T) {
	if got := quoteIdentifier(`minerd_code`); got != `"minerd_code"` {
		t.Errorf("got %s", got)
	}
	if got := quoteIdentifier(`bad"name`); got != `"bad""name"` {
		t.Errorf("got %s", got)
	}
}

func TestInsertParts_Deterministic(t *testing.T) {
	cols, placeholders, args := insertParts(Row{"name": "A", "minerd_code": "001", "address": ""})

	wantCols := []string{"address", "minerd_code", "name"}
	for i, c := range wantCols {
		if cols[i] != c {
			t.Fatalf("cols = %v, want %v", cols, wantCols)
		}
	}
	if placeholders[2] != "$3" {
		t.Errorf("placeholders = %v", placeholders)
	}
	if args[1] != "001" {
		t.Errorf("args = %v", args)
	}
}
