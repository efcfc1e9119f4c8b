/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package results

import (
	"encoding/json"
	"math/big"
	"reflect"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
)

func TestNormalizeEmpty(t *testing.T) {
	inputs := map[string]any{
		"nil":            nil,
		"empty table":    Table{},
		"empty list":     [][]any{},
		"empty text":     "",
		"empty brackets": "[]",
		"empty parens":   " () ",
	}
	for name, raw := range inputs {
		t.Run(name, func(t *testing.T) {
			got := Normalize(raw, "SELECT name FROM users")
			if got.Rows == nil || len(got.Rows) != 0 {
				t.Errorf("Normalize(%#v).Rows = %#v, want empty non-nil slice", raw, got.Rows)
			}
			if got.Warning != "" {
				t.Errorf("Normalize(%#v).Warning = %q, want none", raw, got.Warning)
			}
		})
	}
}

func TestNormalizeTuples(t *testing.T) {
	t.Run("names from sql", func(t *testing.T) {
		raw := [][]any{{"USA", int64(100)}, {"Canada", int64(50)}}
		got := Normalize(raw, "SELECT country, count FROM customers").Rows

		if len(got) != 2 {
			t.Fatalf("len(rows) = %d, want 2", len(got))
		}
		if v, _ := got[0].Get("country"); v != "USA" {
			t.Errorf("rows[0][country] = %v, want USA", v)
		}
		if v, _ := got[0].Get("count"); v != int64(100) {
			t.Errorf("rows[0][count] = %v, want 100", v)
		}
	})

	t.Run("single aliased column", func(t *testing.T) {
		got := Normalize([][]any{{int64(100)}}, "SELECT COUNT(*) AS total FROM users").Rows
		if v, _ := got[0].Get("total"); v != int64(100) {
			t.Errorf("rows[0][total] = %v, want 100", v)
		}
	})

	t.Run("positional fallback past inferred names", func(t *testing.T) {
		got := Normalize([][]any{{"a", "b", "c"}}, "SELECT x FROM t").Rows
		want := []string{"x", "col_1", "col_2"}
		if keys := got[0].Keys(); !reflect.DeepEqual(keys, want) {
			t.Errorf("keys = %v, want %v", keys, want)
		}
	})

	t.Run("star uses positional names", func(t *testing.T) {
		got := Normalize([][]any{{1, 2}}, "SELECT * FROM t").Rows
		want := []string{"col_0", "col_1"}
		if keys := got[0].Keys(); !reflect.DeepEqual(keys, want) {
			t.Errorf("keys = %v, want %v", keys, want)
		}
	})

	t.Run("driver columns win", func(t *testing.T) {
		raw := Table{Columns: []string{"month", "revenue"}, Tuples: [][]any{{"2024-01", 10.5}}}
		got := Normalize(raw, "SELECT * FROM monthly").Rows
		if keys := got[0].Keys(); !reflect.DeepEqual(keys, []string{"month", "revenue"}) {
			t.Errorf("keys = %v", keys)
		}
	})

	t.Run("round trip keeps values", func(t *testing.T) {
		tuples := [][]any{{"Ann", int64(3), true, nil}, {"Bob", int64(0), false, "x"}}
		rows := Normalize(tuples, "SELECT name, orders, active, note FROM c").Rows
		for i, tuple := range tuples {
			for j, want := range tuple {
				if got := rows[i].Value(j); got != want {
					t.Errorf("rows[%d][%d] = %#v, want %#v", i, j, got, want)
				}
			}
		}
	})
}

func TestNormalizeDecimalCoercion(t *testing.T) {
	var num pgtype.Numeric
	if err := num.Scan("436689.06"); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	raw := [][]any{{
		num,
		big.NewRat(5, 2),
		new(big.Float).SetFloat64(1.25),
		[]byte("19.99"),
		pgtype.Numeric{},
	}}
	row := Normalize(raw, "SELECT a, b, c, d, e FROM t").Rows[0]

	want := []any{436689.06, 2.5, 1.25, 19.99, nil}
	for i, w := range want {
		if got := row.Value(i); got != w {
			t.Errorf("value %d = %#v (%T), want %#v", i, got, got, w)
		}
	}
}

func TestNormalizeRepeatedColumns(t *testing.T) {
	table := &Table{Columns: []string{"id", "id", "name", "id"}, Tuples: [][]any{
		{int64(1), int64(2), "a", int64(3)},
		{int64(4), int64(5), "b", int64(6)},
	}}
	rows := Normalize(table, "SELECT c.id, o.id, c.name, p.id FROM c JOIN o ON true JOIN p ON true").Rows

	for _, row := range rows {
		if keys := row.Keys(); !reflect.DeepEqual(keys, []string{"id", "id_1", "name", "id_2"}) {
			t.Errorf("keys = %v", keys)
		}
	}
	if v, _ := rows[0].Get("id_1"); v != int64(2) {
		t.Errorf("id_1 = %v, want 2", v)
	}
}

func TestCoerceBytes(t *testing.T) {
	id := [16]byte{0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0, 0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0}
	if got := Coerce(id); got != "12345678-9abc-def0-1234-56789abcdef0" {
		t.Errorf("Coerce([16]byte) = %v", got)
	}

	blob := []byte("sixteen byte val")
	if got := Coerce(blob); got != "sixteen byte val" {
		t.Errorf("Coerce(16-byte slice) = %#v, want raw text", got)
	}
}

func TestNormalizeMaps(t *testing.T) {
	raw := []map[string]any{{"revenue": 10.0, "month": "2024-01", "extra": 1}}
	row := Normalize(raw, "SELECT month, revenue FROM m").Rows[0]
	if keys := row.Keys(); !reflect.DeepEqual(keys, []string{"month", "revenue", "extra"}) {
		t.Errorf("keys = %v", keys)
	}
	if v, _ := row.Get("revenue"); v != 10.0 {
		t.Errorf("revenue = %v", v)
	}
}

func TestNormalizeText(t *testing.T) {
	t.Run("printed tuples with decimals", func(t *testing.T) {
		raw := "[('2025-10', Decimal('436689.06')), ('2025-11', Decimal('12.50'))]"
		got := Normalize(raw, "SELECT TO_CHAR(OrderDate, 'YYYY-MM') AS month, SUM(Amount) AS revenue FROM Orders GROUP BY 1")

		if got.Warning != "" {
			t.Fatalf("Warning = %q", got.Warning)
		}
		if len(got.Rows) != 2 {
			t.Fatalf("len(rows) = %d, want 2", len(got.Rows))
		}
		if v, _ := got.Rows[0].Get("month"); v != "2025-10" {
			t.Errorf("month = %v", v)
		}
		if v, _ := got.Rows[0].Get("revenue"); v != 436689.06 {
			t.Errorf("revenue = %#v", v)
		}
	})

	t.Run("single count", func(t *testing.T) {
		got := Normalize("[(42,)]", "SELECT COUNT(*) AS total FROM customers")
		if len(got.Rows) != 1 {
			t.Fatalf("len(rows) = %d, want 1", len(got.Rows))
		}
		if v, _ := got.Rows[0].Get("total"); v != int64(42) {
			t.Errorf("total = %#v", v)
		}
	})

	t.Run("malformed text degrades", func(t *testing.T) {
		inputs := []string{
			"[(datetime.date(2024, 1, 1), 3)]",
			"[('unterminated",
			"not a result",
			"'just text'",
			"[(1, 2) (3, 4)]",
		}
		for _, in := range inputs {
			got := Normalize(in, "SELECT a, b FROM t")
			if len(got.Rows) != 0 {
				t.Errorf("Normalize(%q) rows = %v, want none", in, got.Rows)
			}
			if got.Warning == "" {
				t.Errorf("Normalize(%q) produced no warning", in)
			}
		}
	})
}

func TestNormalizeUnsupportedType(t *testing.T) {
	got := Normalize(42, "SELECT 1")
	if len(got.Rows) != 0 || got.Warning == "" {
		t.Errorf("Normalize(42) = %#v, want empty rows with warning", got)
	}
}

func TestRowJSON(t *testing.T) {
	row := Row{{Name: "month", Value: "2024-01"}, {Name: "revenue", Value: 100.5}, {Name: "count", Value: int64(3)}}

	data, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if want := `{"month":"2024-01","revenue":100.5,"count":3}`; string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}

	var decoded Row
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !reflect.DeepEqual(decoded.Keys(), row.Keys()) {
		t.Errorf("decoded keys = %v", decoded.Keys())
	}
	if v, _ := decoded.Get("count"); v != int64(3) {
		t.Errorf("decoded count = %#v", v)
	}
}
