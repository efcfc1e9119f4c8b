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
	"reflect"
	"testing"
)

func TestColumnNames(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{"simple columns", "SELECT name, email FROM users", []string{"name", "email"}},
		{"aliased aggregate", "SELECT COUNT(*) AS total FROM users", []string{"total"}},
		{"mixed", "SELECT country, COUNT(*) AS customer_count FROM customers GROUP BY country", []string{"country", "customer_count"}},
		{"star", "SELECT * FROM users", []string{"*"}},
		{"qualified columns", "SELECT c.Name, c.Email FROM Customers c", []string{"Name", "Email"}},
		{"bracketed qualified column", "SELECT c.[Name] FROM Customers c", []string{"Name"}},
		{"quoted alias", `SELECT SUM(o.Amount) AS "TotalRevenue" FROM Orders o`, []string{"TotalRevenue"}},
		{"single quoted alias", "SELECT SUM(Amount) AS 'revenue' FROM Orders", []string{"revenue"}},
		{"lower case as", "select sum(amount) as revenue from orders", []string{"revenue"}},
		{"function without alias", "SELECT MAX(o.Amount) FROM Orders o", []string{"Amount"}},
		{"implicit alias", "SELECT Amount * 2 doubled FROM Orders", []string{"doubled"}},
		{"commas inside function", "SELECT TO_CHAR(OrderDate, 'YYYY-MM') AS month, SUM(Amount) AS revenue FROM Orders GROUP BY 1", []string{"month", "revenue"}},
		{"top n", "SELECT TOP 5 Name, Amount FROM Orders", []string{"Name", "Amount"}},
		{"distinct", "SELECT DISTINCT Country FROM Customers", []string{"Country"}},
		{"multiline", "SELECT\n  Name,\n  Email\nFROM Customers", []string{"Name", "Email"}},
		{
			"cte uses outer select",
			"WITH monthly AS (SELECT TO_CHAR(OrderDate, 'YYYY-MM') AS ym, SUM(Amount) AS total FROM Orders GROUP BY 1) SELECT ym AS month, total FROM monthly",
			[]string{"month", "total"},
		},
		{
			"cte named like select",
			"WITH selected AS (SELECT a AS x FROM t) SELECT x AS y FROM selected",
			[]string{"y"},
		},
		{"no from clause", "SELECT 1", nil},
		{"not a select", "EXPLAIN orders", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ColumnNames(tt.sql)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ColumnNames(%q) = %#v, want %#v", tt.sql, got, tt.want)
			}
		})
	}
}

func TestSplitTopLevel(t *testing.T) {
	got := splitTopLevel("a, COALESCE(b, c), ROUND(SUM(d), 2) AS e")
	want := []string{"a", "COALESCE(b, c)", "ROUND(SUM(d), 2) AS e"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitTopLevel() = %#v, want %#v", got, want)
	}
}
