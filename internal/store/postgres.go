package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Postgres is a Store backed by a PostgreSQL connection (or pool, or tx).
type Postgres struct {
	db DBTX
}

// NewPostgres wraps a pgx pool, connection or transaction.
func NewPostgres(db DBTX) *Postgres {
	return &Postgres{db: db}
}

// SelectAll returns every row of table, projected to fields.
func (p *Postgres) SelectAll(ctx context.Context, table string, fields []string) ([]Row, error) {
	return p.Select(ctx, Query{Table: table, Fields: fields})
}

// Select runs a filtered, ordered select.
func (p *Postgres) Select(ctx context.Context, q Query) ([]Row, error) {
	cols := "*"
	if len(q.Fields) > 0 {
		cols = strings.Join(quoteColumns(q.Fields), ", ")
	}

	wb := NewWhereBuilder()
	for _, f := range q.Filters {
		wb.Add(f)
	}
	where, args := wb.Build()

	query := fmt.Sprintf("SELECT %s FROM %s%s", cols, quoteIdentifier(q.Table), where)
	if len(q.OrderBy) > 0 {
		parts := make([]string, len(q.OrderBy))
		for i, o := range q.OrderBy {
			dir := "ASC"
			if o.Desc {
				dir = "DESC NULLS LAST"
			}
			parts[i] = quoteIdentifier(o.Column) + " " + dir
		}
		query += " ORDER BY " + strings.Join(parts, ", ")
	}

	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", q.Table, err)
	}
	result, err := collectRows(rows)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", q.Table, err)
	}
	return result, nil
}

// Upsert inserts record or, when conflictKey already exists, overwrites the
// other columns with the new values. Returns the stored row.
func (p *Postgres) Upsert(ctx context.Context, table string, record Row, conflictKey string) (Row, error) {
	if _, ok := record[conflictKey]; !ok {
		return nil, fmt.Errorf("upsert %s: record has no conflict key %q", table, conflictKey)
	}

	cols, placeholders, args := insertParts(record)

	updates := make([]string, 0, len(cols))
	for _, c := range cols {
		if c == conflictKey {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", quoteIdentifier(c), quoteIdentifier(c)))
	}
	if len(updates) == 0 {
		// RETURNING needs the row to be touched even when only the key is sent.
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", quoteIdentifier(conflictKey), quoteIdentifier(conflictKey)))
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s RETURNING *",
		quoteIdentifier(table),
		strings.Join(quoteColumns(cols), ", "),
		strings.Join(placeholders, ", "),
		quoteIdentifier(conflictKey),
		strings.Join(updates, ", "),
	)

	row, err := p.queryOne(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("upsert %s: %w", table, err)
	}
	return row, nil
}

// Insert adds a new row and returns it as stored.
func (p *Postgres) Insert(ctx context.Context, table string, record Row) (Row, error) {
	if len(record) == 0 {
		return nil, fmt.Errorf("insert %s: empty record", table)
	}

	cols, placeholders, args := insertParts(record)
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		quoteIdentifier(table),
		strings.Join(quoteColumns(cols), ", "),
		strings.Join(placeholders, ", "),
	)

	row, err := p.queryOne(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}
	return row, nil
}

// LookupOne returns the single row matching filters.
// Returns ErrNotFound for zero matches and ErrMultipleRows for more than one.
func (p *Postgres) LookupOne(ctx context.Context, table string, filters ...Filter) (Row, error) {
	wb := NewWhereBuilder()
	for _, f := range filters {
		wb.Add(f)
	}
	where, args := wb.Build()

	query := fmt.Sprintf("SELECT * FROM %s%s LIMIT 2", quoteIdentifier(table), where)
	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", table, err)
	}
	result, err := collectRows(rows)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", table, err)
	}

	switch len(result) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return result[0], nil
	default:
		return nil, ErrMultipleRows
	}
}

// Update sets values on every row matching filters.
func (p *Postgres) Update(ctx context.Context, table string, values Row, filters ...Filter) (int64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("update %s: no values", table)
	}

	cols := sortedColumns(values)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+len(filters))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", quoteIdentifier(c), i+1)
		args = append(args, values[c])
	}

	wb := NewWhereBuilderAt(len(cols) + 1)
	for _, f := range filters {
		wb.Add(f)
	}
	where, whereArgs := wb.Build()
	args = append(args, whereArgs...)

	query := fmt.Sprintf("UPDATE %s SET %s%s", quoteIdentifier(table), strings.Join(sets, ", "), where)
	tag, err := p.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

// Call invokes a stored function using named-argument notation and returns
// its scalar result.
func (p *Postgres) Call(ctx context.Context, fn string, args map[string]any) (any, error) {
	names := sortedColumns(args)
	params := make([]string, len(names))
	values := make([]any, len(names))
	for i, n := range names {
		params[i] = fmt.Sprintf("%s => $%d", quoteIdentifier(n), i+1)
		values[i] = args[n]
	}

	query := fmt.Sprintf("SELECT %s(%s)", quoteIdentifier(fn), strings.Join(params, ", "))
	var result any
	if err := p.db.QueryRow(ctx, query, values...).Scan(&result); err != nil {
		return nil, fmt.Errorf("call %s: %w", fn, err)
	}
	return result, nil
}

func (p *Postgres) queryOne(ctx context.Context, query string, args []any) (Row, error) {
	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	m, err := pgx.CollectOneRow(rows, pgx.RowToMap)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return normalizeRow(m), nil
}

func insertParts(record Row) (cols, placeholders []string, args []any) {
	cols = sortedColumns(record)
	placeholders = make([]string, len(cols))
	args = make([]any, len(cols))
	for i, c := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = record[c]
	}
	return cols, placeholders, args
}

func collectRows(rows pgx.Rows) ([]Row, error) {
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, err
	}
	result := make([]Row, len(maps))
	for i, m := range maps {
		result[i] = normalizeRow(m)
	}
	return result, nil
}

// normalizeRow converts driver values callers cannot compare directly.
// NUMERIC columns (scores, ratings) arrive as pgtype.Numeric.
func normalizeRow(m map[string]any) Row {
	for k, v := range m {
		n, ok := v.(pgtype.Numeric)
		if !ok {
			continue
		}
		if !n.Valid {
			m[k] = nil
			continue
		}
		if f, err := n.Float64Value(); err == nil && f.Valid {
			m[k] = f.Float64
		}
	}
	return Row(m)
}

// IsConstraintViolation reports whether err is a PostgreSQL integrity
// constraint violation (SQLSTATE class 23: unique, foreign key, not null, check).
func IsConstraintViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "23")
	}
	return false
}
