/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent - SQL Safety Guard
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package sqlguard decides whether generated SQL may be executed.
//
// The guard is a denylist rather than a parser: generated statements are
// expected to be a single SELECT or WITH query, and anything that could
// mutate data, change privileges or reach stored procedures is refused.
package sqlguard

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnsafe is wrapped by the error returned from Check when a statement
// is rejected.
var ErrUnsafe = errors.New("unsafe SQL rejected")

// Reason identifies why a statement was rejected.
type Reason string

const (
	ReasonEmpty           Reason = "empty statement"
	ReasonMultiStatement  Reason = "multiple statements"
	ReasonNotSelect       Reason = "statement is not SELECT or WITH"
	ReasonForbiddenToken  Reason = "forbidden keyword"
	ReasonProcedurePrefix Reason = "stored procedure reference"
)

// Verdict is the outcome of classifying a candidate statement.
type Verdict struct {
	Safe   bool
	Reason Reason
	// Token is the offending token for keyword and prefix rejections.
	Token string
}

// Err returns nil for a safe verdict and an error wrapping ErrUnsafe
// otherwise.
func (v Verdict) Err() error {
	if v.Safe {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnsafe, v.Describe())
}

// Describe renders the rejection reason and offending token, if any.
func (v Verdict) Describe() string {
	if v.Token != "" {
		return fmt.Sprintf("%s %q", v.Reason, v.Token)
	}
	return string(v.Reason)
}

var (
	wordPattern = regexp.MustCompile(`[A-Za-z_]+`)
	dollarTag   = regexp.MustCompile(`^\$([A-Za-z_][A-Za-z0-9_]*)?\$`)
)

// forbidden holds keywords that mutate data or administer the server.
var forbidden = map[string]struct{}{
	"insert":   {},
	"update":   {},
	"delete":   {},
	"drop":     {},
	"truncate": {},
	"alter":    {},
	"create":   {},
	"grant":    {},
	"revoke":   {},
	"merge":    {},
	"exec":     {},
	"execute":  {},
	"backup":   {},
	"restore":  {},
	"dbcc":     {},
	"shutdown": {},
	"kill":     {},
}

// procedurePrefixes reach extended and system stored procedures on SQL
// Server.
var procedurePrefixes = []string{"xp_", "sp_"}

// StripComments removes block and line comments from sql. Quoted
// literals and identifiers ('...', E'...', "...", [...] and $tag$...$tag$)
// are copied through unchanged, so comment markers inside them are kept.
func StripComments(sql string) string {
	var b strings.Builder
	b.Grow(len(sql))

	for i := 0; i < len(sql); {
		c := sql[i]
		switch {
		case c == '-' && strings.HasPrefix(sql[i:], "--"):
			end := strings.IndexByte(sql[i:], '\n')
			if end < 0 {
				end = len(sql) - i
			}
			b.WriteByte(' ')
			i += end
		case c == '/' && strings.HasPrefix(sql[i:], "/*"):
			end := strings.Index(sql[i+2:], "*/")
			b.WriteByte(' ')
			if end < 0 {
				return b.String()
			}
			i += end + 4
		case c == '\'':
			end := quotedEnd(sql, i, '\'', escapeString(sql, i))
			b.WriteString(sql[i:end])
			i = end
		case c == '"':
			end := quotedEnd(sql, i, '"', false)
			b.WriteString(sql[i:end])
			i = end
		case c == '[':
			end := quotedEnd(sql, i, ']', false)
			b.WriteString(sql[i:end])
			i = end
		case c == '$':
			end := dollarEnd(sql, i)
			b.WriteString(sql[i:end])
			i = end
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

// quotedEnd returns the index just past the literal opened at start. A
// doubled closing character is an escaped one. An unterminated literal
// runs to the end of sql.
func quotedEnd(sql string, start int, closer byte, backslash bool) int {
	for i := start + 1; i < len(sql); i++ {
		switch sql[i] {
		case '\\':
			if backslash {
				i++
			}
		case closer:
			if i+1 < len(sql) && sql[i+1] == closer {
				i++
				continue
			}
			return i + 1
		}
	}
	return len(sql)
}

// escapeString reports whether the quote at i opens a PostgreSQL E'...'
// string, where backslash escapes the next character.
func escapeString(sql string, i int) bool {
	if i == 0 || (sql[i-1] != 'E' && sql[i-1] != 'e') {
		return false
	}
	return i == 1 || !isIdentByte(sql[i-2])
}

// dollarEnd returns the index just past a $tag$...$tag$ literal opened at
// start, or start+1 when the dollar sign does not open one.
func dollarEnd(sql string, start int) int {
	if start > 0 && isIdentByte(sql[start-1]) {
		return start + 1
	}
	tag := dollarTag.FindString(sql[start:])
	if tag == "" {
		return start + 1
	}
	body := start + len(tag)
	end := strings.Index(sql[body:], tag)
	if end < 0 {
		return len(sql)
	}
	return body + end + len(tag)
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// Check classifies sql and reports why it was rejected, if it was.
func Check(sql string) Verdict {
	if strings.TrimSpace(sql) == "" {
		return Verdict{Reason: ReasonEmpty}
	}

	cleaned := strings.TrimSpace(StripComments(sql))

	// A single trailing semicolon is allowed; any other one chains
	// statements.
	cleaned = strings.TrimSpace(strings.TrimSuffix(cleaned, ";"))
	if strings.Contains(cleaned, ";") {
		return Verdict{Reason: ReasonMultiStatement}
	}

	lowered := strings.ToLower(cleaned)
	if lowered == "" {
		return Verdict{Reason: ReasonEmpty}
	}
	if !strings.HasPrefix(lowered, "select") && !strings.HasPrefix(lowered, "with") {
		return Verdict{Reason: ReasonNotSelect}
	}

	// Tokens are checked in the comment-stripped text and in the raw
	// text, so a lexing difference between dialects cannot hide one.
	if v := scanTokens(lowered); !v.Safe {
		return v
	}
	return scanTokens(strings.ToLower(sql))
}

func scanTokens(lowered string) Verdict {
	for _, token := range wordPattern.FindAllString(lowered, -1) {
		if _, bad := forbidden[token]; bad {
			return Verdict{Reason: ReasonForbiddenToken, Token: token}
		}
		for _, prefix := range procedurePrefixes {
			if strings.HasPrefix(token, prefix) {
				return Verdict{Reason: ReasonProcedurePrefix, Token: token}
			}
		}
	}
	return Verdict{Safe: true}
}

// IsSafeReadOnly reports whether sql is a single read-only statement.
func IsSafeReadOnly(sql string) bool {
	return Check(sql).Safe
}
