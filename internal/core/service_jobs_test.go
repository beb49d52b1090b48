package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/JonMunkholm/colegiosrd/internal/store"
)

// ============================================================================
// RecalculateRatings Tests
// ============================================================================

func TestRecalculateRatings(t *testing.T) {
	st := store.NewMemory()
	st.Seed(store.TableSchools,
		store.Row{"id": 3, "name": "Liceo C"},
		store.Row{"id": 1, "name": "Liceo A"},
		store.Row{"id": 2, "name": "Liceo B"},
	)

	var seen []any
	st.RegisterFunc(RatingFunction, func(_ *store.Memory, args map[string]any) (any, error) {
		seen = append(seen, args["school_id"])
		if args["school_id"] == 2 {
			return nil, errors.New("division by zero")
		}
		return nil, nil
	})

	job, err := NewService(st, nil, Options{}).RecalculateRatings(context.Background())
	if err != nil {
		t.Fatalf("RecalculateRatings: %v", err)
	}

	if fmt.Sprint(seen) != "[1 2 3]" {
		t.Errorf("schools rated in order %v, want [1 2 3]", seen)
	}
	if job.Processed != 3 || job.Updated != 2 || job.Failed != 1 {
		t.Errorf("processed/updated/failed = %d/%d/%d, want 3/2/1", job.Processed, job.Updated, job.Failed)
	}
	if len(job.Errors) != 1 || job.Errors[0].School != "Liceo B" || job.Errors[0].Kind != KindRatings {
		t.Errorf("errors = %+v", job.Errors)
	}
}

func TestRecalculateRatings_ListFailure(t *testing.T) {
	st := store.NewMemory()
	st.SetFailFunc(func(op, table string, record store.Row) error {
		if op == store.OpSelect {
			return errors.New("connection refused")
		}
		return nil
	})

	if _, err := NewService(st, nil, Options{}).RecalculateRatings(context.Background()); err == nil {
		t.Fatal("expected error when schools cannot be listed")
	}
}

// ============================================================================
// UpdateTopPublic Tests
// ============================================================================

func seedPublicSchools(st *store.Memory, province int, n int, topFlagged map[int]bool) {
	for i := 1; i <= n; i++ {
		id := province*100 + i
		st.Seed(store.TableSchools, store.Row{
			"id":              id,
			"name":            fmt.Sprintf("Escuela %d", id),
			"type":            "public",
			"province_id":     province,
			"prueba_nacional": float64(i),
			"is_top_public":   topFlagged[id],
		})
	}
}

func topIDs(st *store.Memory) map[any]bool {
	out := make(map[any]bool)
	for _, r := range st.Rows(store.TableSchools) {
		if r["is_top_public"] == true {
			out[r["id"]] = true
		}
	}
	return out
}

func TestUpdateTopPublic(t *testing.T) {
	st := store.NewMemory()
	// Province 1: 5 schools, 105 is the best. 101 was wrongly flagged.
	seedPublicSchools(st, 1, 5, map[int]bool{101: true, 105: true})
	// Province 2: 2 schools, fewer than N.
	seedPublicSchools(st, 2, 2, nil)
	// Private schools are never ranked.
	st.Seed(store.TableSchools, store.Row{
		"id": 900, "name": "Colegio Privado", "type": "private",
		"province_id": 1, "prueba_nacional": 99.0, "is_top_public": false,
	})
	// Missing score ranks last.
	st.Seed(store.TableSchools, store.Row{
		"id": 106, "name": "Escuela Sin Nota", "type": "public",
		"province_id": 1, "prueba_nacional": nil, "is_top_public": true,
	})

	job, err := NewService(st, nil, Options{TopN: 3}).UpdateTopPublic(context.Background())
	if err != nil {
		t.Fatalf("UpdateTopPublic: %v", err)
	}

	want := map[any]bool{105: true, 104: true, 103: true, 201: true, 202: true}
	got := topIDs(st)
	if len(got) != len(want) {
		t.Fatalf("top schools = %v, want %v", got, want)
	}
	for id := range want {
		if !got[id] {
			t.Errorf("school %v should be flagged", id)
		}
	}

	// Changed: 104, 103, 201, 202 set; 101, 106 cleared. 105 unchanged.
	if job.Updated != 6 {
		t.Errorf("updated = %d, want 6", job.Updated)
	}
	if job.Groups != 2 || job.Processed != 8 {
		t.Errorf("groups/processed = %d/%d, want 2/8", job.Groups, job.Processed)
	}
}

func TestUpdateTopPublic_UpdateFailureContinues(t *testing.T) {
	st := store.NewMemory()
	seedPublicSchools(st, 1, 2, nil)
	st.SetFailFunc(func(op, table string, record store.Row) error {
		if op == store.OpUpdate {
			return errors.New("deadlock detected")
		}
		return nil
	})

	job, err := NewService(st, nil, Options{}).UpdateTopPublic(context.Background())
	if err != nil {
		t.Fatalf("UpdateTopPublic: %v", err)
	}
	if job.Failed != 2 || job.Updated != 0 {
		t.Errorf("failed/updated = %d/%d, want 2/0", job.Failed, job.Updated)
	}
	if job.Errors[0].Code != "DB007" || job.Errors[0].Action != "mark as top" {
		t.Errorf("error = %+v", job.Errors[0])
	}
}

func TestJobSummary_WriteReport(t *testing.T) {
	job := &JobSummary{
		Job:       JobTopPublic,
		Processed: 12,
		Groups:    2,
		Updated:   3,
		Failed:    1,
		Errors: []JobError{
			{School: "Escuela 101", Action: "mark as non-top", Code: "DB007", Message: "deadlock detected"},
		},
	}

	var buf bytes.Buffer
	if err := job.WriteReport(&buf); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	for _, want := range []string{
		"=== Top Public Update Summary ===",
		"Provinces: 2",
		"Total records updated: 3",
		"[DB007] Escuela 101 (mark as non-top): deadlock detected",
	} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("report missing %q:\n%s", want, buf.String())
		}
	}
}
