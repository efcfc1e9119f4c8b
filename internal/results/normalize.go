/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent - Result Normalization
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package results turns loosely typed query output into ordered rows with
// consistent column names.
package results

import (
	"fmt"
	"math"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

// Table is structured executor output: column names as reported by the
// driver and one value slice per row.
type Table struct {
	Columns []string
	Tuples  [][]any
}

// Normalized is the outcome of Normalize. Warning is set when the input
// could not be interpreted and Rows is empty as a result.
type Normalized struct {
	Rows    []Row
	Warning string
}

// Normalize converts raw executor output into rows. raw may be nil, a
// Table, a [][]any of tuples, a []map[string]any, a []Row, or a printed
// result string. sql is the statement that produced raw and is used to
// name columns the driver did not name. Normalize never panics on
// malformed input; it returns no rows and a warning instead.
func Normalize(raw any, sql string) (out Normalized) {
	defer func() {
		if r := recover(); r != nil {
			out = Normalized{Rows: []Row{}, Warning: fmt.Sprintf("result normalization failed: %v", r)}
		}
	}()

	switch v := raw.(type) {
	case nil:
		return Normalized{Rows: []Row{}}
	case Table:
		return Normalized{Rows: fromTuples(v.Tuples, columnsFor(v.Columns, sql, width(v.Tuples)))}
	case *Table:
		if v == nil {
			return Normalized{Rows: []Row{}}
		}
		return Normalize(*v, sql)
	case [][]any:
		return Normalized{Rows: fromTuples(v, columnsFor(nil, sql, width(v)))}
	case []map[string]any:
		return Normalized{Rows: fromMaps(v, ColumnNames(sql))}
	case []Row:
		if v == nil {
			return Normalized{Rows: []Row{}}
		}
		return Normalized{Rows: v}
	case []any:
		return fromMixed(v, sql)
	case string:
		return fromText(v, sql)
	default:
		return Normalized{Rows: []Row{}, Warning: fmt.Sprintf("unsupported result type %T", raw)}
	}
}

// fromText is the compatibility path for executors that return a printed
// result instead of structured rows.
func fromText(text, sql string) Normalized {
	switch strings.TrimSpace(text) {
	case "", "[]", "()":
		return Normalized{Rows: []Row{}}
	}
	parsed, err := ParseLiteral(text)
	if err != nil {
		return Normalized{Rows: []Row{}, Warning: fmt.Sprintf("failed to parse result text: %v", err)}
	}
	if _, isText := parsed.(string); isText {
		return Normalized{Rows: []Row{}, Warning: "result text is a bare string"}
	}
	return Normalize(parsed, sql)
}

// fromMixed handles a list whose elements are tuples, mappings or rows, as
// produced by ParseLiteral. Scalars are skipped.
func fromMixed(items []any, sql string) Normalized {
	names := ColumnNames(sql)
	if isStar(names) {
		names = nil
	}
	rows := make([]Row, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case []any:
			rows = append(rows, tupleRow(v, names))
		case Row:
			rows = append(rows, v)
		case map[string]any:
			rows = append(rows, mapRow(v, names))
		}
	}
	return Normalized{Rows: rows}
}

func fromTuples(tuples [][]any, names []string) []Row {
	rows := make([]Row, 0, len(tuples))
	for _, tuple := range tuples {
		rows = append(rows, tupleRow(tuple, names))
	}
	return rows
}

// tupleRow names each value by position. A repeated column name gets a
// numeric suffix (id, id_1, id_2) so no value is lost.
func tupleRow(tuple []any, names []string) Row {
	row := make(Row, 0, len(tuple))
	for i, v := range tuple {
		key := keyAt(names, i)
		for n := 1; ; n++ {
			if _, taken := row.Get(key); !taken {
				break
			}
			key = fmt.Sprintf("%s_%d", keyAt(names, i), n)
		}
		row = append(row, Field{Name: key, Value: Coerce(v)})
	}
	return row
}

func fromMaps(maps []map[string]any, names []string) []Row {
	rows := make([]Row, 0, len(maps))
	for _, m := range maps {
		rows = append(rows, mapRow(m, names))
	}
	return rows
}

// mapRow orders a mapping by the inferred column names first and any
// remaining keys alphabetically. Values are passed through unchanged.
func mapRow(m map[string]any, names []string) Row {
	row := make(Row, 0, len(m))
	for _, name := range names {
		if v, ok := m[name]; ok {
			row = row.set(name, v)
		}
	}
	rest := make([]string, 0, len(m))
	for k := range m {
		if _, seen := row.Get(k); !seen {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		row = row.set(k, m[k])
	}
	return row
}

// columnsFor prefers driver-supplied names and falls back to names parsed
// from sql. A star projection carries no usable names.
func columnsFor(driver []string, sql string, n int) []string {
	if len(driver) > 0 && len(driver) >= n {
		return driver
	}
	names := ColumnNames(sql)
	if isStar(names) {
		return nil
	}
	return names
}

func isStar(names []string) bool {
	return len(names) == 1 && names[0] == "*"
}

func keyAt(names []string, i int) string {
	if i < len(names) && names[i] != "" {
		return names[i]
	}
	return placeholder(i)
}

func width(tuples [][]any) int {
	if len(tuples) == 0 {
		return 0
	}
	return len(tuples[0])
}

// Coerce converts arbitrary-precision decimal values to float64 and
// renders driver-typed UUIDs as text. Other values are returned unchanged.
func Coerce(v any) any {
	switch val := v.(type) {
	case pgtype.Numeric:
		return numericFloat(val)
	case *pgtype.Numeric:
		if val == nil {
			return nil
		}
		return numericFloat(*val)
	case *big.Float:
		if val == nil {
			return nil
		}
		f, _ := val.Float64()
		return f
	case *big.Rat:
		if val == nil {
			return nil
		}
		f, _ := val.Float64()
		return f
	case *big.Int:
		if val == nil {
			return nil
		}
		if val.IsInt64() {
			return val.Int64()
		}
		f, _ := new(big.Float).SetInt(val).Float64()
		return f
	case [16]byte:
		return formatUUID(val)
	case []byte:
		// SQL Server drivers return DECIMAL and MONEY columns as text bytes.
		if f, err := strconv.ParseFloat(string(val), 64); err == nil {
			return f
		}
		return string(val)
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil
		}
		return val
	}
	return v
}

func numericFloat(n pgtype.Numeric) any {
	if !n.Valid {
		return nil
	}
	f, err := n.Float64Value()
	if err != nil || !f.Valid || math.IsNaN(f.Float64) || math.IsInf(f.Float64, 0) {
		return nil
	}
	return f.Float64
}

func formatUUID(v [16]byte) string {
	return fmt.Sprintf("%x-%x-%x-%x-%x", v[0:4], v[4:6], v[6:8], v[8:10], v[10:16])
}
