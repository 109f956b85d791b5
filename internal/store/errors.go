package store

import "strings"

// isBusy reports a SQLITE_BUSY error, raised when the database is locked
// by another connection.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "SQLITE_BUSY")
}

// isLocked reports a "database is locked" error.
func isLocked(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "database is locked")
}

// isConflict reports either SQLite concurrency error. These are transient
// and warrant a retry.
func isConflict(err error) bool {
	return isBusy(err) || isLocked(err)
}
