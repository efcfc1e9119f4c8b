/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package presentation

import (
	"testing"

	"pgedge-nla/internal/results"
)

func row(kv ...any) results.Row {
	r := results.Row{}
	for i := 0; i+1 < len(kv); i += 2 {
		r = append(r, results.Field{Name: kv[i].(string), Value: kv[i+1]})
	}
	return r
}

func monthlyRevenue() []results.Row {
	return []results.Row{
		row("month", "2024-01", "revenue", 100),
		row("month", "2024-02", "revenue", 150),
	}
}

func TestChartForTrend(t *testing.T) {
	chart := ChartFor("show revenue trend by month", monthlyRevenue())
	if chart == nil {
		t.Fatal("ChartFor() = nil, want line chart")
	}
	if chart.Type != KindLine || chart.XKey != "month" || chart.YKey != "revenue" {
		t.Errorf("chart = %+v", chart)
	}
	if chart.Title != "Trend Over Time" || chart.XLabel != "Month" || chart.YLabel != "Revenue" {
		t.Errorf("chart labels = %+v", chart)
	}
}

func TestChartForNeverChartsSmallResults(t *testing.T) {
	questions := []string{"show revenue trend by month", "top customers", "anything"}
	shapes := map[string][]results.Row{
		"no rows":      {},
		"single row":   {row("month", "2024-01", "revenue", 100)},
		"single field": {row("revenue", 100), row("revenue", 150)},
	}
	for name, rows := range shapes {
		for _, q := range questions {
			if chart := ChartFor(q, rows); chart != nil {
				t.Errorf("%s / %q: chart = %+v, want nil", name, q, chart)
			}
		}
	}
}

func TestChartRules(t *testing.T) {
	tests := []struct {
		question string
		rows     []results.Row
		rule     string
		kind     Kind
		title    string
		xLabel   string
		yLabel   string
	}{
		{"monthly revenue", monthlyRevenue(), "trend", KindLine, "Trend Over Time", "Month", "Revenue"},
		{"top 5 countries by revenue", monthlyRevenue(), "ranking", KindBar, "Comparison", "Month", "Revenue"},
		{"revenue breakdown by status", monthlyRevenue(), "distribution", KindPie, "Distribution", "", ""},
		{"total sales per country", monthlyRevenue(), "revenue", KindBar, "Revenue Analysis", "Month", "Revenue"},
		{"number of orders per status", monthlyRevenue(), "count", KindBar, "Count Analysis", "Month", "Count"},
		{"orders per status", monthlyRevenue(), "default", KindBar, "Query Results", "Month", "Revenue"},
	}

	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			chart, rule := Explain(tt.question, tt.rows)
			if rule != tt.rule {
				t.Fatalf("Explain(%q) rule = %q, want %q", tt.question, rule, tt.rule)
			}
			if chart.Type != tt.kind || chart.Title != tt.title {
				t.Errorf("chart = %+v", chart)
			}
			if chart.XLabel != tt.xLabel || chart.YLabel != tt.yLabel {
				t.Errorf("labels = %q/%q, want %q/%q", chart.XLabel, chart.YLabel, tt.xLabel, tt.yLabel)
			}
		})
	}
}

func TestChartRulePriority(t *testing.T) {
	// "trend" outranks "top" and "revenue" when all appear.
	chart, rule := Explain("top revenue trend", monthlyRevenue())
	if rule != "trend" || chart.Type != KindLine {
		t.Errorf("rule = %q, chart = %+v", rule, chart)
	}
}

func TestChartGates(t *testing.T) {
	tests := []struct {
		name     string
		question string
		rows     []results.Row
		gate     string
	}{
		{
			name:     "listing without aggregate",
			question: "List customers and their order count",
			rows: []results.Row{
				row("country", "US", "orders", 3),
				row("country", "CA", "orders", 2),
			},
			gate: "listing without aggregate",
		},
		{
			name:     "entity detail listing",
			question: "customers with revenue",
			rows: []results.Row{
				row("name", "Ann", "email", "a@x", "revenue", 10),
				row("name", "Bob", "email", "b@x", "revenue", 20),
			},
			gate: "entity detail listing",
		},
		{
			name:     "non-numeric measure",
			question: "customers by country",
			rows: []results.Row{
				row("id", 1, "country", "US"),
				row("id", 2, "country", "CA"),
			},
			gate: "non-numeric measure",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chart, reason := Explain(tt.question, tt.rows)
			if chart != nil {
				t.Errorf("chart = %+v, want nil", chart)
			}
			if reason != tt.gate {
				t.Errorf("reason = %q, want %q", reason, tt.gate)
			}
		})
	}
}

func TestListingWithAggregateIsCharted(t *testing.T) {
	rows := []results.Row{
		row("country", "US", "total_revenue", 300.5),
		row("country", "CA", "total_revenue", 120.0),
	}
	chart := ChartFor("show me revenue by country", rows)
	if chart == nil {
		t.Fatal("ChartFor() = nil, want chart for aggregated listing")
	}
	if chart.YLabel != "Total Revenue" {
		t.Errorf("YLabel = %q, want %q", chart.YLabel, "Total Revenue")
	}
}

func TestLabel(t *testing.T) {
	tests := map[string]string{
		"month":          "Month",
		"total_revenue":  "Total Revenue",
		"customer_count": "Customer Count",
	}
	for in, want := range tests {
		if got := Label(in); got != want {
			t.Errorf("Label(%q) = %q, want %q", in, got, want)
		}
	}
}
