// Package sqlguard is the static safety gate for model-generated SQL. It
// never executes anything: validation is a pure function of the query text,
// applied before the read-only database connection ever sees the statement.
package sqlguard

import (
	"fmt"
	"regexp"
	"strings"
)

// Reason is a machine-readable rejection reason. The chat engine forwards it
// to the model as a failed tool result so the model can self-correct.
type Reason string

const (
	ReasonEmpty              Reason = "empty_query"
	ReasonNotSelect          Reason = "not_select"
	ReasonMultipleStatements Reason = "multiple_statements"
	ReasonBlockedKeyword     Reason = "blocked_keyword"
	ReasonComment            Reason = "comment_injection"
)

// ValidationError reports why a query was rejected.
type ValidationError struct {
	Reason Reason
	Detail string
}

func (e *ValidationError) Error() string {
	return e.Detail
}

// Write/DDL keywords that must never appear in a query, including inside
// subqueries. Matched with word boundaries to avoid false positives on
// column names. The database connection is read-only at the driver level;
// this scan is an independent layer on top of that.
var blockedKeywords = []string{
	"INSERT",
	"UPDATE",
	"DELETE",
	"DROP",
	"ALTER",
	"CREATE",
	"TRUNCATE",
	"REPLACE",
	"ATTACH",
	"DETACH",
	"PRAGMA",
	"VACUUM",
}

var blockedPattern = regexp.MustCompile(`(?i)\b(` + strings.Join(blockedKeywords, "|") + `)\b`)

// Normalize trims surrounding whitespace and strips a single trailing
// semicolon. Models routinely terminate statements with one; it is harmless
// on its own and stripping it keeps the stacking check meaningful.
func Normalize(query string) string {
	normalized := strings.TrimSpace(query)
	if strings.HasSuffix(normalized, ";") {
		normalized = strings.TrimRight(strings.TrimSuffix(normalized, ";"), " \t\r\n")
	}
	return normalized
}

// Validate runs the full validation pipeline over a normalized query,
// short-circuiting on the first failure. A nil return means the query is
// safe to hand to the executor.
func Validate(query string) error {
	stripped := strings.TrimSpace(query)

	// 1. Non-empty
	if stripped == "" {
		return &ValidationError{
			Reason: ReasonEmpty,
			Detail: "query must not be empty or whitespace-only",
		}
	}

	// 2. SELECT-only
	if !strings.HasPrefix(strings.ToUpper(stripped), "SELECT") {
		return &ValidationError{
			Reason: ReasonNotSelect,
			Detail: fmt.Sprintf("only SELECT queries are allowed, got statement starting with %q", strings.Fields(stripped)[0]),
		}
	}

	// 3. No statement stacking
	if strings.Contains(stripped, ";") {
		return &ValidationError{
			Reason: ReasonMultipleStatements,
			Detail: "query must not contain semicolons; multiple statements are not allowed",
		}
	}

	// 4. Blocked write/DDL keywords, anywhere in the text
	if match := blockedPattern.FindString(stripped); match != "" {
		return &ValidationError{
			Reason: ReasonBlockedKeyword,
			Detail: fmt.Sprintf("query contains blocked keyword %q; only read-only SELECT queries are permitted", strings.ToUpper(match)),
		}
	}

	// 5. No comments. A commented-out keyword or a payload hidden behind a
	// comment would evade the keyword scan.
	if strings.Contains(stripped, "--") || strings.Contains(stripped, "/*") {
		return &ValidationError{
			Reason: ReasonComment,
			Detail: "query must not contain SQL comments (-- or /*)",
		}
	}

	return nil
}
