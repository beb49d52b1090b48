// Package store defines the row-store boundary the import pipeline writes
// through, with a PostgreSQL implementation backed by pgx and an in-memory
// implementation used by tests and dry runs.
//
// The pipeline never issues raw SQL. Everything goes through four shapes:
// select-all, upsert-by-key, insert and lookup-one. The maintenance jobs
// additionally use filtered selects, updates and stored-function calls.
package store

import (
	"context"
	"errors"
)

// Table names used by the directory.
const (
	TableSchools     = "schools"
	TableProvinces   = "provinces"
	TableDataImports = "data_imports"
)

var (
	// ErrNotFound is returned by LookupOne when no row matches.
	ErrNotFound = errors.New("row not found")

	// ErrMultipleRows is returned by LookupOne when more than one row matches.
	ErrMultipleRows = errors.New("multiple rows matched")
)

// Row is a single record keyed by column name.
type Row map[string]any

// Operator is a comparison used in a Filter.
type Operator string

const (
	OpEquals    Operator = "eq"
	OpEqualFold Operator = "ieq" // case-insensitive equality (ILIKE without wildcards)
	OpGreaterEq Operator = "gte"
	OpLessEq    Operator = "lte"
)

// Filter is a single condition on a column. Filters are combined with AND.
type Filter struct {
	Column   string
	Operator Operator
	Value    any
}

// Eq returns an equality filter.
func Eq(column string, value any) Filter {
	return Filter{Column: column, Operator: OpEquals, Value: value}
}

// EqualFold returns a case-insensitive equality filter for text columns.
func EqualFold(column, value string) Filter {
	return Filter{Column: column, Operator: OpEqualFold, Value: value}
}

// Order is a sort instruction for Select.
type Order struct {
	Column string
	Desc   bool
}

// Query describes a filtered, ordered select.
type Query struct {
	Table   string
	Fields  []string // empty selects every column
	Filters []Filter
	OrderBy []Order
}

// RowStore is the boundary consumed by the import pipeline.
type RowStore interface {
	SelectAll(ctx context.Context, table string, fields []string) ([]Row, error)
	Upsert(ctx context.Context, table string, record Row, conflictKey string) (Row, error)
	Insert(ctx context.Context, table string, record Row) (Row, error)
	LookupOne(ctx context.Context, table string, filters ...Filter) (Row, error)
}

// Querier runs filtered selects.
type Querier interface {
	Select(ctx context.Context, q Query) ([]Row, error)
}

// Updater updates every row matching the filters and reports how many changed.
type Updater interface {
	Update(ctx context.Context, table string, values Row, filters ...Filter) (int64, error)
}

// Caller invokes a stored function with named arguments.
type Caller interface {
	Call(ctx context.Context, fn string, args map[string]any) (any, error)
}

// Store is everything the directory services need from persistence.
// Satisfied by both *Postgres and *Memory.
type Store interface {
	RowStore
	Querier
	Updater
	Caller
}
