package dbx

import (
	"fmt"
	"reflect"

	"github.com/goccy/go-json"
	"github.com/marcodd23/go-txscope/pkg/errorx"
)

// Row represents a database row returned as a result.
type Row []any

// Result is the materialized outcome of a statement: the returned rows, if any, and the command tag.
//
// Results are fully read before the statement returns, so the underlying connection is free for the next
// statement as soon as Query returns.
type Result struct {
	Columns      []string
	Rows         []Row
	RowsAffected int64
	CommandTag   string
}

// Len returns the number of rows.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}

	return len(r.Rows)
}

// GetRow - get row by index.
func (r *Result) GetRow(rowIdx int) (Row, error) {
	if r == nil || rowIdx < 0 || rowIdx >= len(r.Rows) {
		return Row{}, errorx.NewDatabaseError("Error retrieving Result row, index out of range: %d", rowIdx)
	}

	return r.Rows[rowIdx], nil
}

// Scan copies the values of the row at rowIdx into dest, converting them when possible.
func (r *Result) Scan(rowIdx int, dest ...any) error {
	row, err := r.GetRow(rowIdx)
	if err != nil {
		return err
	}

	return row.Scan(dest...)
}

// Maps returns every row keyed by column name.
func (r *Result) Maps() []map[string]any {
	if r == nil {
		return nil
	}

	out := make([]map[string]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		out = append(out, r.rowMap(row))
	}

	return out
}

// First returns the first row keyed by column name, nil when the result is empty.
func (r *Result) First() map[string]any {
	if r.Len() == 0 {
		return nil
	}

	return r.rowMap(r.Rows[0])
}

// JSON encodes the rows as a JSON array of objects.
func (r *Result) JSON() ([]byte, error) {
	return json.Marshal(r.Maps())
}

func (r *Result) rowMap(row Row) map[string]any {
	m := make(map[string]any, len(r.Columns))
	for i, col := range r.Columns {
		if i < len(row) {
			m[col] = row[i]
		}
	}

	return m
}

// Scan copies the row values into dest.
// Each dest must be a pointer; nil values zero the destination, pointer destinations are allocated,
// and map values (JSONB) can be scanned into []byte.
func (row Row) Scan(dest ...any) error {
	if len(dest) != len(row) {
		return fmt.Errorf("expected %d destination arguments in Scan, not %d", len(row), len(dest))
	}

	for i, v := range row {
		destValue := reflect.ValueOf(dest[i])
		if destValue.Kind() != reflect.Ptr {
			return errorx.NewDatabaseError("destination not a pointer")
		}

		destElem := destValue.Elem()

		if v == nil {
			destElem.Set(reflect.Zero(destElem.Type()))
			continue
		}

		val := reflect.ValueOf(v)

		// JSONB into []byte
		if destElem.Kind() == reflect.Slice && destElem.Type().Elem().Kind() == reflect.Uint8 {
			if m, ok := v.(map[string]any); ok {
				jsonBytes, err := json.Marshal(m)
				if err != nil {
					return errorx.NewDatabaseErrorWrapper(err, "failed to marshal jsonb data")
				}
				destElem.Set(reflect.ValueOf(jsonBytes))
				continue
			}
		}

		switch {
		case destElem.Kind() == reflect.Ptr:
			newElem := reflect.New(destElem.Type().Elem())
			if !val.Type().ConvertibleTo(newElem.Elem().Type()) {
				return errorx.NewDatabaseError("cannot convert %v to %v", val.Type(), newElem.Elem().Type())
			}
			newElem.Elem().Set(val.Convert(newElem.Elem().Type()))
			destElem.Set(newElem)
		case destElem.Kind() == reflect.Interface:
			destElem.Set(val)
		case val.Type().ConvertibleTo(destElem.Type()):
			destElem.Set(val.Convert(destElem.Type()))
		default:
			return errorx.NewDatabaseError("cannot convert %v to %v", val.Type(), destElem.Type())
		}
	}

	return nil
}
