//go:build !cgo_sqlite

package sqlite

import (
	_ "modernc.org/sqlite" // pure Go driver
)

const (
	driverName    = "sqlite"
	driverPackage = "modernc.org/sqlite"
)

func pragmaDSN(path string) string {
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}
