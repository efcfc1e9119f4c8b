/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent - SQL Extraction
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package sqlguard

import (
	"regexp"
	"strings"
)

var (
	fencedBlock  = regexp.MustCompile("(?is)```sql\\s*(.*?)```")
	openingFence = regexp.MustCompile("(?i)^```(?:sql)?\\s*")
	closingFence = regexp.MustCompile("\\s*```$")
)

// Extract pulls the SQL statement out of a model reply. A fenced ```sql
// block wins when present; otherwise the trimmed reply is used as-is and
// left for Check to judge.
func Extract(reply string) string {
	if m := fencedBlock.FindStringSubmatch(reply); m != nil {
		return StripFences(m[1])
	}
	return StripFences(reply)
}

// StripFences removes a leading ``` or ```sql marker and a trailing ```
// marker from sql.
func StripFences(sql string) string {
	s := strings.TrimSpace(sql)
	if s == "" {
		return ""
	}
	s = openingFence.ReplaceAllString(s, "")
	s = closingFence.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
