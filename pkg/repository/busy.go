package repository

import (
	"context"
	"errors"
	"strings"
	"time"
)

const (
	sqliteBusy   = 5
	sqliteLocked = 6

	busyMaxRetries = 5
	busyBaseDelay  = 10 * time.Millisecond
)

// IsBusy reports whether err is an SQLite busy or locked error.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := sqliteCode(err); ok {
		primary := code & 0xff
		return primary == sqliteBusy || primary == sqliteLocked
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// RetryOnBusy runs fn, retrying with exponential backoff while it fails with
// an SQLite busy error. Other errors and PostgreSQL dialects return on the first attempt.
func RetryOnBusy[T any](ctx context.Context, d Dialect, fn func() (T, error)) (T, error) {
	result, err := fn()
	if d != SQLite {
		return result, err
	}

	delay := busyBaseDelay
	for attempt := 0; attempt < busyMaxRetries && IsBusy(err); attempt++ {
		select {
		case <-ctx.Done():
			var zero T
			return zero, errors.Join(err, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
		result, err = fn()
	}

	return result, err
}
