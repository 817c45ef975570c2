package store

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// retryConfig controls retry behavior for transient SQLite errors.
type retryConfig struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

var defaultRetryConfig = retryConfig{
	maxRetries: 3,
	baseDelay:  50 * time.Millisecond,
	maxDelay:   500 * time.Millisecond,
}

// transientCodes are primary result codes that a retry can resolve.
var transientCodes = map[int]bool{
	sqlite3.SQLITE_BUSY:   true,
	sqlite3.SQLITE_LOCKED: true,
}

// isTransientSQLiteErr reports whether err is a lock or WAL contention error.
// Driver errors are matched by result code; anything else falls back to the
// message text, which is how wrapped errors from database/sql surface.
func isTransientSQLiteErr(err error) bool {
	if err == nil {
		return false
	}
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		code := serr.Code()
		if transientCodes[code&0xff] || code == sqlite3.SQLITE_IOERR_SHORT_READ {
			return true
		}
	}
	msg := err.Error()
	for _, pattern := range []string{
		"SQLITE_BUSY",
		"SQLITE_LOCKED",
		"IOERR_SHORT_READ",
		"database is locked",
		"database table is locked",
		"(5)",
		"(6)",
		"(522)",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// retryOp runs fn until it succeeds, fails permanently, exhausts
// cfg.maxRetries or ctx is done. Sleeps use exponential backoff plus jitter.
func retryOp(ctx context.Context, cfg retryConfig, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isTransientSQLiteErr(lastErr) {
			return lastErr
		}
		if attempt == cfg.maxRetries {
			break
		}
		t := time.NewTimer(backoffDelay(cfg, attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Join(lastErr, ctx.Err())
		case <-t.C:
		}
	}
	return lastErr
}

// backoffDelay is baseDelay * 2^attempt capped at maxDelay, plus a jitter
// in [0, baseDelay).
func backoffDelay(cfg retryConfig, attempt int) time.Duration {
	delay := cfg.baseDelay << uint(attempt)
	if delay > cfg.maxDelay || delay <= 0 {
		delay = cfg.maxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(cfg.baseDelay)))
	return delay + jitter
}
