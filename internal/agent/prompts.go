/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent - Prompt Templates
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package agent

import (
	"fmt"
	"strings"
)

// Dialect selects the SQL flavour the model is asked to write.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectTSQL     Dialect = "tsql"
)

const relevancePrompt = `You are a classifier that determines if a user question is related to database queries.

Our database contains:
- Customers table: customer profiles with Name, Email, Country, CreatedAt
- Orders table: purchase orders with OrderDate, Amount, Status (PAID/PENDING/CANCELLED)

Respond with ONLY "YES" or "NO":
- YES: if the question is about customers, orders, sales, revenue, data analysis, or anything that could be answered with a database query
- NO: if the question is about general knowledge, coding help, personal advice, weather, news, or anything unrelated to our database`

const postgresPrompt = `You are a PostgreSQL expert.
Return ONLY the SQL query, no explanations.
CRITICAL PostgreSQL RULES:
- READ ONLY: Only SELECT or WITH statements
- LIMIT RULES:
  - Use LIMIT only when the user asks for 'top N', 'first N', 'best N', or similar
  - Do NOT add LIMIT for aggregation queries (COUNT, SUM, AVG) or when user wants all results
- STRICT GROUP BY: In PostgreSQL, EVERY column in SELECT must either be:
  1. Inside an aggregate function (SUM, COUNT, AVG, MAX, MIN), OR
  2. Listed in the GROUP BY clause
- Example: SELECT country, SUM(amount) FROM orders GROUP BY country -- country must be in GROUP BY
- Use TO_CHAR(date, 'YYYY-MM') for year-month grouping
- Use CURRENT_DATE for current date, date - INTERVAL 'N days' for date math
- PREFER SIMPLE QUERIES: Use basic JOINs and single-level aggregations. Avoid complex multi-CTE queries.
- Output only valid, executable PostgreSQL
`

const tsqlPrompt = `You are a Microsoft SQL Server (T-SQL) expert.
Return ONLY the SQL query, no explanations.
CRITICAL T-SQL RULES:
- READ ONLY: Only SELECT or WITH statements
- Use SELECT TOP N instead of LIMIT
- All non-aggregated columns in SELECT must be in GROUP BY
- Use FORMAT(date, 'yyyy-MM') for year-month grouping
- Use GETDATE() for current date, DATEADD() for date math
- For monthly aggregations: GROUP BY FORMAT(DateColumn, 'yyyy-MM')
- Output only valid, executable T-SQL
`

// OutOfDomainSummary is returned for questions the classifier rejects.
const OutOfDomainSummary = "I can only answer questions about the database. " +
	"Try asking about customers, orders, sales, or revenue. " +
	"For example: 'How many customers do we have?' or 'Show monthly revenue for the last 6 months'."

// SystemPrompt returns the SQL generation instructions for d.
func (d Dialect) SystemPrompt() string {
	if d == DialectTSQL {
		return tsqlPrompt
	}
	return postgresPrompt
}

// ParseDialect maps a configuration value to a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "postgres", "postgresql", "pg":
		return DialectPostgres, nil
	case "tsql", "t-sql", "mssql", "sqlserver":
		return DialectTSQL, nil
	}
	return "", fmt.Errorf("unknown SQL dialect %q", name)
}

// RenderHistory formats the most recent window messages as
// "User: ..." / "Assistant: ..." lines.
func RenderHistory(history []Message, window int) string {
	if window > 0 && len(history) > window {
		history = history[len(history)-window:]
	}
	lines := make([]string, 0, len(history))
	for _, msg := range history {
		role := "Assistant"
		if msg.Role == RoleUser {
			role = "User"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", role, msg.Content))
	}
	return strings.Join(lines, "\n")
}

// generationPrompt is the user turn of the SQL generation request.
func generationPrompt(schema, history, question string) string {
	if history != "" {
		return fmt.Sprintf("Schema:\n%s\n\nPrevious conversation:\n%s\n\nCurrent question: %s", schema, history, question)
	}
	return fmt.Sprintf("Schema:\n%s\n\nQuestion: %s", schema, question)
}
