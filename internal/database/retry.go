package database

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bookingcore/internal/domain"
)

const DefaultAttempts = 3

// Postgres SQLSTATE codes treated as a lost race rather than a failure.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeUniqueViolation      = "23505"
)

var baseBackoff = 15 * time.Millisecond

// WithRetry runs fn until it succeeds, fails with a non-retryable error, or
// attempts run out. Exhaustion is reported as domain.ErrContention.
func WithRetry(ctx context.Context, attempts int, fn func(ctx context.Context) error) error {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil || !IsRetryable(lastErr) {
			return lastErr
		}

		logrus.WithFields(logrus.Fields{
			"attempt": attempt,
			"error":   lastErr.Error(),
		}).Debug("retrying after write conflict")

		if attempt < attempts {
			if err := sleep(ctx, backoff(attempt)); err != nil {
				return err
			}
		}
	}

	return fmt.Errorf("%w: %v", domain.ErrContention, lastErr)
}

// IsRetryable classifies driver and domain errors that mean "someone else
// won this round".
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrWriteConflict) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return true
		}
		return false
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "sqlite_busy")
}

func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeUniqueViolation
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint") || strings.Contains(msg, "unique failed")
}

func backoff(attempt int) time.Duration {
	d := baseBackoff * time.Duration(attempt)
	return d + time.Duration(rand.Int64N(int64(baseBackoff)))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
