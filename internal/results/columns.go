/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent - Column Name Inference
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package results

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	selectClause   = regexp.MustCompile(`(?is)SELECT\s+(.*?)\s+FROM`)
	selectModifier = regexp.MustCompile(`(?i)^(TOP\s+\d+\s+|DISTINCT\s+)+`)
	aliasPattern   = regexp.MustCompile(`(?i)\s+AS\s+["']?(\w+)["']?\s*$`)
	bracketSpace   = regexp.MustCompile(`[\s\[\]]+`)
	functionWrap   = regexp.MustCompile(`(?s)^\w+\((.*)\)$`)
)

// ColumnNames infers the result column names of a SELECT statement from
// its projection list. It is best effort: it returns nil when no SELECT ...
// FROM clause can be found, and ["*"] for a bare star projection.
func ColumnNames(sql string) []string {
	clause := selectClause.FindStringSubmatch(outerSelect(sql))
	if clause == nil {
		return nil
	}

	projection := strings.TrimSpace(clause[1])
	projection = selectModifier.ReplaceAllString(projection, "")

	exprs := splitTopLevel(projection)
	names := make([]string, 0, len(exprs))
	for _, expr := range exprs {
		names = append(names, exprName(strings.TrimSpace(expr), len(names)))
	}
	return names
}

// outerSelect returns sql starting at the SELECT that follows a WITH
// clause's CTE bodies. Non-CTE statements are returned unchanged.
func outerSelect(sql string) string {
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(sql)), "WITH") {
		return sql
	}

	depth := 0
	for i := 0; i < len(sql); i++ {
		switch sql[i] {
		case '(':
			depth++
		case ')':
			depth--
		default:
			if depth == 0 && i > 0 && i+6 <= len(sql) && strings.EqualFold(sql[i:i+6], "SELECT") &&
				!isWordByte(sql[i-1]) && (i+6 == len(sql) || !isWordByte(sql[i+6])) {
				return sql[i:]
			}
		}
	}
	return sql
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// splitTopLevel splits a projection list on commas that are not nested
// inside parentheses.
func splitTopLevel(projection string) []string {
	var (
		parts   []string
		current strings.Builder
		depth   int
	)
	for _, ch := range projection {
		switch {
		case ch == '(':
			depth++
		case ch == ')':
			depth--
		case ch == ',' && depth == 0:
			parts = append(parts, strings.TrimSpace(current.String()))
			current.Reset()
			continue
		}
		current.WriteRune(ch)
	}
	if rest := strings.TrimSpace(current.String()); rest != "" {
		parts = append(parts, rest)
	}
	return parts
}

// exprName derives the output name of one projected expression.
func exprName(expr string, position int) string {
	if m := aliasPattern.FindStringSubmatch(expr); m != nil {
		return m[1]
	}

	if strings.Contains(expr, ".") && !strings.Contains(expr, "(") {
		segments := strings.Split(expr, ".")
		if name := bracketSpace.ReplaceAllString(segments[len(segments)-1], ""); name != "" {
			return name
		}
		return placeholder(position)
	}

	unwrapped := functionWrap.ReplaceAllString(expr, "$1")
	words := strings.Fields(unwrapped)
	if len(words) == 0 {
		return placeholder(position)
	}
	last := words[len(words)-1]
	if i := strings.LastIndex(last, "."); i >= 0 {
		last = last[i+1:]
	}
	if last == "" {
		return placeholder(position)
	}
	return last
}

func placeholder(position int) string {
	return fmt.Sprintf("col_%d", position)
}
