// Package database provides the read-only connection to the
// location-tracking dataset and the bounded query executor that runs
// validator-approved SQL against it.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// OpenReadOnly opens the dataset in read-only URI mode. The driver rejects
// all writes regardless of statement text, which is an independent safety
// layer underneath the application-level query validation.
func OpenReadOnly(path string) (*sql.DB, error) {
	resolved, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve database path %q: %w", path, err)
	}
	if _, err := os.Stat(resolved); err != nil {
		return nil, fmt.Errorf("dataset database %q: %w", resolved, err)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", resolved))
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", resolved, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database %q: %w", resolved, err)
	}
	return db, nil
}
