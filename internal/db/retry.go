package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mescon/beepwatch/internal/logger"
)

// MaxRetries is the number of times to retry a database operation on SQLITE_BUSY
const MaxRetries = 5

// RetryDelay is the base delay between retries (increases exponentially)
const RetryDelay = 100 * time.Millisecond

// isBusyError reports whether err means another connection holds the lock.
func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff { // primary result code
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}
	// Errors that crossed a string boundary (wrapped by callers, other drivers)
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// retryValue calls fn until it returns a non-busy result, backing off
// RetryDelay, 2*RetryDelay, ... for at most MaxRetries attempts.
func retryValue[T any](op string, fn func() (T, error)) (T, error) {
	var (
		v   T
		err error
	)
	delay := RetryDelay
	for attempt := 1; ; attempt++ {
		v, err = fn()
		if !isBusyError(err) {
			return v, err
		}
		if attempt == MaxRetries {
			var zero T
			return zero, fmt.Errorf("%s: still busy after %d attempts: %w", op, MaxRetries, err)
		}
		logger.Debugf("Journal busy on %s, attempt %d/%d, waiting %v", op, attempt, MaxRetries, delay)
		time.Sleep(delay)
		delay *= 2
	}
}

func withRetry(op string, fn func() error) error {
	_, err := retryValue(op, func() (struct{}, error) { return struct{}{}, fn() })
	return err
}

// ExecWithRetry is db.Exec retried while the database is busy.
func ExecWithRetry(db *sql.DB, query string, args ...interface{}) (sql.Result, error) {
	return retryValue("exec", func() (sql.Result, error) { return db.Exec(query, args...) })
}

// QueryWithRetry is db.Query retried while the database is busy.
func QueryWithRetry(db *sql.DB, query string, args ...interface{}) (*sql.Rows, error) {
	return retryValue("query", func() (*sql.Rows, error) { return db.Query(query, args...) })
}
