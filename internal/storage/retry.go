package storage

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE codes treated as transient.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

func isRetriable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return true
	}
	return false
}

// WithRetry runs fn, retrying up to attempts extra times on transient
// Postgres errors with jittered exponential backoff from baseDelay.
// Version conflicts are not transient and are returned immediately.
func WithRetry(ctx context.Context, attempts int, baseDelay time.Duration, fn func() error) error {
	delay := baseDelay
	for i := 0; ; i++ {
		err := fn()
		if err == nil || i == attempts || !isRetriable(err) {
			return err
		}
		jitter := time.Duration(rand.Int64N(int64(delay) + 1)) //nolint:gosec // jitter doesn't need crypto-strength randomness
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay + jitter):
		}
		delay *= 2
	}
}
