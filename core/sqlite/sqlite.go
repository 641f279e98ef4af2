// Package sqlite opens SQLite databases through one of two drivers:
//
//   - Default (CGO_ENABLED=0): pure Go modernc.org/sqlite
//   - CGO mode (CGO_ENABLED=1 -tags cgo_sqlite): mattn/go-sqlite3
//
// Use Open instead of sql.Open so the registered driver and its pragma
// syntax always match.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DriverName returns the database/sql driver name.
func DriverName() string {
	return driverName
}

// Package names the Go module implementing the driver.
func Package() string {
	return driverPackage
}

// IsDSN reports whether s is passed to the driver unchanged rather than
// treated as a file path.
func IsDSN(s string) bool {
	return s == ":memory:" || strings.HasPrefix(s, "file:")
}

// Open opens the database at path with a busy timeout and WAL journal so
// concurrent conversions can share one cache file. The directory holding
// path is created when missing. A DSN is passed through.
func Open(path string) (*sql.DB, error) {
	if IsDSN(path) {
		return sql.Open(driverName, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("sqlite: create %s: %w", filepath.Dir(path), err)
	}
	return sql.Open(driverName, pragmaDSN(path))
}
