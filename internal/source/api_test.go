package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/JonMunkholm/colegiosrd/internal/core"
)

const datastoreBody = `{
  "success": true,
  "result": {
    "records": [
      {"minerd_code": "10234", "name": "Liceo Juan Pablo Duarte", "province": "Santo Domingo",
       "type": "public", "students_count": 450, "prueba_nacional": "72.5"},
      {"minerd_code": "10235", "name": "Escuela Los Prados", "province": "Santiago",
       "type": "private", "students_count": "sin dato", "prueba_nacional": 68.25}
    ]
  }
}`

func newDatastore(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// ============================================================================
// API Tests
// ============================================================================

func TestAPI_FetchRecords(t *testing.T) {
	srv := newDatastore(t, http.StatusOK, datastoreBody)

	records, err := NewAPI(srv.URL, time.Second).FetchRecords(context.Background())
	if err != nil {
		t.Fatalf("FetchRecords: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0][core.FieldStudentsCount] != 450.0 {
		t.Errorf("students_count = %v (%T), want float64", records[0][core.FieldStudentsCount], records[0][core.FieldStudentsCount])
	}
	if records[0][core.FieldPruebaNacional] != 72.5 {
		t.Errorf("quoted score = %v, want 72.5", records[0][core.FieldPruebaNacional])
	}
	if records[1][core.FieldStudentsCount] != "sin dato" {
		t.Errorf("non-numeric text should pass through, got %v", records[1][core.FieldStudentsCount])
	}
}

func TestAPI_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusServiceUnavailable, body: `{}`},
		{name: "malformed json", status: http.StatusOK, body: `{"result": [`},
		{name: "missing result", status: http.StatusOK, body: `{"success": true}`},
		{name: "reported failure", status: http.StatusOK, body: `{"success": false, "result": {"records": []}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newDatastore(t, tt.status, tt.body)
			if _, err := NewAPI(srv.URL, time.Second).FetchRecords(context.Background()); err == nil {
				t.Error("expected error")
			}
		})
	}
}

// ============================================================================
// Fallback Tests
// ============================================================================

func TestFallback_PrefersFile(t *testing.T) {
	hit := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
	}))
	defer srv.Close()

	path := writeFile(t, []byte("minerd_code,name\n1,Liceo\n"))
	records, err := NewFallback(NewFile(path), NewAPI(srv.URL, time.Second)).FetchRecords(context.Background())
	if err != nil {
		t.Fatalf("FetchRecords: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("got %d records, want 1", len(records))
	}
	if hit {
		t.Error("API must not be called when the file exists")
	}
}

func TestFallback_UsesAPIWhenFileMissing(t *testing.T) {
	srv := newDatastore(t, http.StatusOK, datastoreBody)
	missing := NewFile(filepath.Join(t.TempDir(), "missing.csv"))

	records, err := NewFallback(missing, NewAPI(srv.URL, time.Second)).FetchRecords(context.Background())
	if err != nil {
		t.Fatalf("FetchRecords: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("got %d records, want 2", len(records))
	}
}

func TestFallback_NeverFails(t *testing.T) {
	failing := newDatastore(t, http.StatusInternalServerError, `oops`)
	missing := NewFile(filepath.Join(t.TempDir(), "missing.csv"))

	unreadable := filepath.Join(t.TempDir(), "empty.csv")
	if err := os.WriteFile(unreadable, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		src  *Fallback
	}{
		{name: "api failure", src: NewFallback(missing, NewAPI(failing.URL, time.Second))},
		{name: "unreachable api", src: NewFallback(missing, NewAPI("http://127.0.0.1:1", 100*time.Millisecond))},
		{name: "empty file", src: NewFallback(NewFile(unreadable), nil)},
		{name: "nothing configured", src: NewFallback(nil, nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := tt.src.FetchRecords(context.Background())
			if err != nil {
				t.Fatalf("err = %v, want nil", err)
			}
			if records == nil || len(records) != 0 {
				t.Errorf("records = %v, want empty non-nil slice", records)
			}
		})
	}
}
