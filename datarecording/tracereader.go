package datarecording

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/sarchlab/flowsim/sim/simerr"
)

// Page selects a window of rows from a trace table.
type Page struct {
	// Filter is an SQL condition with ? placeholders, for example
	// "Event = ? AND Time >= ?".
	Filter string
	Args   []any

	// OrderBy lists the sort columns, for example "Time DESC".
	OrderBy string

	// Limit caps the number of rows returned. Zero returns all rows.
	Limit  int
	Offset int
}

// TraceReader reads back the tables written by a DataRecorder.
type TraceReader interface {
	// Register binds a table to the struct type its rows are decoded into.
	// The flowsim tables are registered when the reader is created.
	Register(tableName string, sampleEntry any)

	// Tables returns the registered table names, sorted.
	Tables() []string

	// Read returns pointers to the decoded rows of a page and the number of
	// rows that match the filter regardless of the window.
	Read(ctx context.Context, tableName string, page Page) (
		rows []any,
		total int,
		err error,
	)

	Close() error
}

// OpenTrace opens a trace file written by NewDataRecorder.
func OpenTrace(filename string) (TraceReader, error) {
	if _, err := os.Stat(filename); err != nil {
		return nil, simerr.Argument("cannot open trace %s: %v", filename, err)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, err
	}

	return NewTraceReader(db), nil
}

// NewTraceReader reads the trace stored in an open database.
func NewTraceReader(db *sql.DB) TraceReader {
	r := &traceReader{db: db, entryTypes: make(map[string]reflect.Type)}

	r.Register(EventTableName, EventEntry{})
	r.Register(RunTableName, RunEntry{})
	r.Register(PacerTableName, PacerEntry{})
	r.Register(execTableName, execInfo{})

	return r
}

type traceReader struct {
	db         *sql.DB
	entryTypes map[string]reflect.Type
}

func (r *traceReader) Register(tableName string, sampleEntry any) {
	r.entryTypes[tableName] = reflect.TypeOf(sampleEntry)
}

func (r *traceReader) Tables() []string {
	names := make([]string, 0, len(r.entryTypes))
	for name := range r.entryTypes {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func (r *traceReader) Read(
	ctx context.Context,
	tableName string,
	page Page,
) ([]any, int, error) {
	entryType, ok := r.entryTypes[tableName]
	if !ok {
		return nil, 0, simerr.Argument("table %s is not registered", tableName)
	}

	if page.Limit < 0 || page.Offset < 0 {
		return nil, 0, simerr.Argument("negative page window")
	}

	where := ""
	if page.Filter != "" {
		where = " WHERE " + page.Filter
	}

	var total int

	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+tableName+where, page.Args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", tableName, err)
	}

	var q strings.Builder
	q.WriteString("SELECT * FROM " + tableName + where)

	if page.OrderBy != "" {
		q.WriteString(" ORDER BY " + page.OrderBy)
	}

	if page.Limit > 0 {
		fmt.Fprintf(&q, " LIMIT %d OFFSET %d", page.Limit, page.Offset)
	}

	rows, err := r.db.QueryContext(ctx, q.String(), page.Args...)
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", tableName, err)
	}
	defer rows.Close()

	entries, err := decodeRows(rows, entryType)
	if err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", tableName, err)
	}

	return entries, total, nil
}

func (r *traceReader) Close() error {
	return r.db.Close()
}

// decodeRows matches columns to struct fields by name. Columns the struct
// does not have are discarded.
func decodeRows(rows *sql.Rows, entryType reflect.Type) ([]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	fieldOf := make([]int, len(columns))
	for i, col := range columns {
		fieldOf[i] = -1
		if f, ok := entryType.FieldByName(col); ok && len(f.Index) == 1 {
			fieldOf[i] = f.Index[0]
		}
	}

	var (
		entries []any
		discard any
	)

	targets := make([]any, len(columns))

	for rows.Next() {
		entry := reflect.New(entryType)

		for i, field := range fieldOf {
			if field < 0 {
				targets[i] = &discard
				continue
			}

			targets[i] = entry.Elem().Field(field).Addr().Interface()
		}

		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}

		entries = append(entries, entry.Interface())
	}

	return entries, rows.Err()
}
