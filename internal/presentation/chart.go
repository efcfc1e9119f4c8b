/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent - Chart Recommendation
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package presentation decides how a query result is described to the
// user: a short summary and, when the data suits it, a chart hint.
package presentation

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"pgedge-nla/internal/results"
)

// Kind is a chart type understood by the client.
type Kind string

const (
	KindBar  Kind = "bar"
	KindLine Kind = "line"
	KindPie  Kind = "pie"
)

// ChartConfig is a declarative hint for client-side rendering.
type ChartConfig struct {
	Type   Kind   `json:"type"`
	XKey   string `json:"x_key"`
	YKey   string `json:"y_key"`
	Title  string `json:"title"`
	XLabel string `json:"x_label,omitempty"`
	YLabel string `json:"y_label,omitempty"`
}

// Gate suppresses a chart when its condition holds. Gates run in order
// before any chart rule.
type Gate struct {
	Name    string
	Applies func(question string, rows []results.Row) bool
}

// LabelStyle controls how axis labels are filled in.
type LabelStyle int

const (
	// LabelsFromFields titles both axes after their field names.
	LabelsFromFields LabelStyle = iota
	// LabelsNone leaves both axes unlabelled.
	LabelsNone
	// LabelsCount titles the x axis after its field and the y axis "Count".
	LabelsCount
)

// Rule picks a chart when any keyword occurs in the question and the
// result has at least MinRows rows.
type Rule struct {
	Name     string
	Keywords []string
	MinRows  int
	Kind     Kind
	Title    string
	Labels   LabelStyle
}

var listPhrases = []string{"list", "show me", "who are", "which customers", "all customers", "all orders"}

var aggregateHints = []string{"sum", "count", "avg", "total", "amount", "revenue"}

var detailHints = []string{"name", "email", "address", "phone", "country", "status", "date"}

// Gates is the ordered list of chart suppressions.
var Gates = []Gate{
	{
		Name: "too few rows or fields",
		Applies: func(_ string, rows []results.Row) bool {
			return len(rows) < 2 || len(rows[0]) < 2
		},
	},
	{
		Name: "listing without aggregate",
		Applies: func(question string, rows []results.Row) bool {
			return containsAny(question, listPhrases) && !hasNumericAggregate(rows[0])
		},
	},
	{
		Name: "entity detail listing",
		Applies: func(_ string, rows []results.Row) bool {
			if len(rows[0]) <= 2 {
				return false
			}
			details := 0
			for _, key := range rows[0].Keys() {
				if containsAny(key, detailHints) {
					details++
				}
			}
			return details >= 2
		},
	},
	{
		Name: "non-numeric measure",
		Applies: func(_ string, rows []results.Row) bool {
			return !results.IsNumeric(rows[0].Value(1))
		},
	},
}

// Rules is the ordered chart rule table; the first match wins and the last
// rule always matches.
var Rules = []Rule{
	{Name: "trend", Keywords: []string{"trend", "over time", "monthly", "daily", "yearly", "growth"}, Kind: KindLine, Title: "Trend Over Time"},
	{Name: "ranking", Keywords: []string{"top", "most", "highest", "best", "ranking", "compare"}, Kind: KindBar, Title: "Comparison"},
	{Name: "distribution", Keywords: []string{"distribution", "breakdown", "percentage", "share"}, Kind: KindPie, Title: "Distribution", Labels: LabelsNone},
	{Name: "revenue", Keywords: []string{"revenue", "sales", "amount", "total"}, Kind: KindBar, Title: "Revenue Analysis"},
	{Name: "count", Keywords: []string{"count", "number", "how many"}, MinRows: 2, Kind: KindBar, Title: "Count Analysis", Labels: LabelsCount},
	{Name: "default", Kind: KindBar, Title: "Query Results"},
}

// ChartFor recommends a chart for rows answering question, or nil when the
// data should be shown as a table only.
func ChartFor(question string, rows []results.Row) *ChartConfig {
	chart, _ := Explain(question, rows)
	return chart
}

// Explain is ChartFor that also names the gate or rule that decided the
// outcome.
func Explain(question string, rows []results.Row) (*ChartConfig, string) {
	q := strings.ToLower(question)
	for _, gate := range Gates {
		if gate.Applies(q, rows) {
			return nil, gate.Name
		}
	}

	keys := rows[0].Keys()
	x, y := keys[0], keys[1]
	for _, rule := range Rules {
		if !rule.matches(q, len(rows)) {
			continue
		}
		chart := &ChartConfig{Type: rule.Kind, XKey: x, YKey: y, Title: rule.Title}
		switch rule.Labels {
		case LabelsFromFields:
			chart.XLabel, chart.YLabel = Label(x), Label(y)
		case LabelsCount:
			chart.XLabel, chart.YLabel = Label(x), "Count"
		}
		return chart, rule.Name
	}
	return nil, "no rule"
}

func (r Rule) matches(question string, rowCount int) bool {
	if rowCount < r.MinRows {
		return false
	}
	return len(r.Keywords) == 0 || containsAny(question, r.Keywords)
}

// Label turns a field name into an axis label: underscores become spaces
// and words are title-cased.
func Label(field string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(field, "_", " "))
}

func hasNumericAggregate(row results.Row) bool {
	for _, f := range row {
		if results.IsNumeric(f.Value) && containsAny(strings.ToLower(f.Name), aggregateHints) {
			return true
		}
	}
	return false
}

func containsAny(s string, needles []string) bool {
	s = strings.ToLower(s)
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
