package errors

import (
	stderrs "errors"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// sqliteErrorCode maps a modernc sqlite error (extended result code) to an ErrorCode
func sqliteErrorCode(err error) (ErrorCode, bool) {
	var se *sqlite.Error
	if !stderrs.As(err, &se) {
		return ErrorCodeUnknown, false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return ErrorCodeDuplicateKey, true
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return ErrorCodeInvalidArgument, true
	case sqlite3.SQLITE_CONSTRAINT_NOTNULL, sqlite3.SQLITE_CONSTRAINT_CHECK:
		return ErrorCodeValidation, true
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return ErrorCodeUnavailable, true
	case sqlite3.SQLITE_READONLY, sqlite3.SQLITE_CANTOPEN:
		return ErrorCodeUnavailable, true
	}
	return ErrorCodeDB, true
}

// isRetryableSQLite reports busy/locked database errors
func isRetryableSQLite(err error) bool {
	var se *sqlite.Error
	if !stderrs.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}
