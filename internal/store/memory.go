package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Operation names passed to a Memory FailFunc.
const (
	OpSelect = "select"
	OpUpsert = "upsert"
	OpInsert = "insert"
	OpLookup = "lookup"
	OpUpdate = "update"
	OpCall   = "call"
)

// FailFunc lets callers inject failures into a Memory store.
// A non-nil return makes the operation fail with that error.
type FailFunc func(op, table string, record Row) error

// StoredFunc implements a stored function for Memory.Call.
type StoredFunc func(m *Memory, args map[string]any) (any, error)

// Memory is an in-process Store. Rows get an integer "id" when inserted
// without one. Safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	tables map[string][]Row
	nextID map[string]int64
	funcs  map[string]StoredFunc
	fail   FailFunc
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		tables: make(map[string][]Row),
		nextID: make(map[string]int64),
		funcs:  make(map[string]StoredFunc),
	}
}

// Seed appends rows to table as-is, assigning ids where missing.
func (m *Memory) Seed(table string, rows ...Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		m.appendLocked(table, copyRow(r))
	}
}

// Rows returns a copy of every row currently in table.
func (m *Memory) Rows(table string) []Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Row, len(m.tables[table]))
	for i, r := range m.tables[table] {
		out[i] = copyRow(r)
	}
	return out
}

// SetFailFunc installs (or clears, with nil) a failure injector.
func (m *Memory) SetFailFunc(fn FailFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fn
}

// RegisterFunc makes fn callable through Call. The function runs without
// the store lock held so it may use the store itself.
func (m *Memory) RegisterFunc(name string, fn StoredFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funcs[name] = fn
}

func (m *Memory) SelectAll(ctx context.Context, table string, fields []string) ([]Row, error) {
	return m.Select(ctx, Query{Table: table, Fields: fields})
}

func (m *Memory) Select(ctx context.Context, q Query) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(OpSelect, q.Table, nil); err != nil {
		return nil, fmt.Errorf("select %s: %w", q.Table, err)
	}

	// Order on full rows; OrderBy may name columns outside Fields.
	var matched []Row
	for _, r := range m.tables[q.Table] {
		if matchAll(r, q.Filters) {
			matched = append(matched, r)
		}
	}

	if len(q.OrderBy) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			for _, o := range q.OrderBy {
				a, b := matched[i][o.Column], matched[j][o.Column]
				c := compareValues(a, b)
				if c == 0 {
					continue
				}
				// NULLS LAST in both directions, matching Postgres.Select.
				if a == nil || b == nil {
					return b == nil
				}
				if o.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	out := make([]Row, 0, len(matched))
	for _, r := range matched {
		out = append(out, project(r, q.Fields))
	}
	return out, nil
}

func (m *Memory) Upsert(ctx context.Context, table string, record Row, conflictKey string) (Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, ok := record[conflictKey]
	if !ok {
		return nil, fmt.Errorf("upsert %s: record has no conflict key %q", table, conflictKey)
	}
	if err := m.check(OpUpsert, table, record); err != nil {
		return nil, fmt.Errorf("upsert %s: %w", table, err)
	}

	for _, r := range m.tables[table] {
		if equalValues(r[conflictKey], key) {
			for k, v := range record {
				r[k] = v
			}
			return copyRow(r), nil
		}
	}
	return copyRow(m.appendLocked(table, copyRow(record))), nil
}

func (m *Memory) Insert(ctx context.Context, table string, record Row) (Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(OpInsert, table, record); err != nil {
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}
	return copyRow(m.appendLocked(table, copyRow(record))), nil
}

func (m *Memory) LookupOne(ctx context.Context, table string, filters ...Filter) (Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(OpLookup, table, nil); err != nil {
		return nil, fmt.Errorf("lookup %s: %w", table, err)
	}

	var found Row
	for _, r := range m.tables[table] {
		if !matchAll(r, filters) {
			continue
		}
		if found != nil {
			return nil, ErrMultipleRows
		}
		found = r
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return copyRow(found), nil
}

func (m *Memory) Update(ctx context.Context, table string, values Row, filters ...Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(OpUpdate, table, values); err != nil {
		return 0, fmt.Errorf("update %s: %w", table, err)
	}

	var n int64
	for _, r := range m.tables[table] {
		if !matchAll(r, filters) {
			continue
		}
		for k, v := range values {
			r[k] = v
		}
		n++
	}
	return n, nil
}

func (m *Memory) Call(ctx context.Context, fn string, args map[string]any) (any, error) {
	m.mu.Lock()
	f, ok := m.funcs[fn]
	err := m.check(OpCall, fn, Row(args))
	m.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("call %s: %w", fn, err)
	}
	if !ok {
		return nil, fmt.Errorf("call %s: function does not exist", fn)
	}
	return f(m, args)
}

func (m *Memory) check(op, table string, record Row) error {
	if m.fail == nil {
		return nil
	}
	return m.fail(op, table, record)
}

func (m *Memory) appendLocked(table string, r Row) Row {
	if _, ok := r["id"]; !ok {
		m.nextID[table]++
		r["id"] = m.nextID[table]
	} else if id, ok := toFloat(r["id"]); ok && int64(id) > m.nextID[table] {
		m.nextID[table] = int64(id)
	}
	m.tables[table] = append(m.tables[table], r)
	return r
}

func matchAll(r Row, filters []Filter) bool {
	for _, f := range filters {
		v := r[f.Column]
		switch f.Operator {
		case OpEquals:
			if !equalValues(v, f.Value) {
				return false
			}
		case OpEqualFold:
			if v == nil || !strings.EqualFold(fmt.Sprint(v), fmt.Sprint(f.Value)) {
				return false
			}
		case OpGreaterEq:
			if v == nil || compareValues(v, f.Value) < 0 {
				return false
			}
		case OpLessEq:
			if v == nil || compareValues(v, f.Value) > 0 {
				return false
			}
		}
	}
	return true
}

func project(r Row, fields []string) Row {
	if len(fields) == 0 {
		return copyRow(r)
	}
	out := make(Row, len(fields))
	for _, f := range fields {
		out[f] = r[f]
	}
	return out
}

func copyRow(r Row) Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// compareValues orders numbers numerically, everything else by its string
// form. nil sorts after every non-nil value.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
