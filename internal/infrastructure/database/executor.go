package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lumohq/ops-assistant/internal/infrastructure/metrics"
)

// QueryResult is the outcome of a successfully executed query. Rows are
// ordered as returned by the database; values are driver scalars.
type QueryResult struct {
	Columns   []string
	Rows      [][]any
	Duration  time.Duration
	Truncated bool
}

// Executor runs validator-approved SQL with a statement timeout and a row
// ceiling. It assumes the text has already passed sqlguard validation; the
// read-only connection underneath catches anything the heuristics missed.
type Executor struct {
	db      *sql.DB
	timeout time.Duration
	maxRows int
}

func NewExecutor(db *sql.DB, timeout time.Duration, maxRows int) *Executor {
	return &Executor{db: db, timeout: timeout, maxRows: maxRows}
}

// Execute runs the query, capping the result at the configured row ceiling
// to bound response size and token cost. Database-level failures (unknown
// column, malformed SQL the validator's heuristics missed) come back as a
// plain error carrying the driver's message.
func (e *Executor) Execute(ctx context.Context, query string) (*QueryResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		metrics.RecordQuery("error", time.Since(start).Seconds())
		return nil, fmt.Errorf("query execution failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}

	result := &QueryResult{Columns: columns}
	for rows.Next() {
		if len(result.Rows) >= e.maxRows {
			result.Truncated = true
			break
		}
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("query execution failed: %w", err)
		}
		for i, v := range values {
			// Normalize []byte so results serialize as text, not base64.
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}

	result.Duration = time.Since(start)
	metrics.RecordQuery("ok", result.Duration.Seconds())
	return result, nil
}
