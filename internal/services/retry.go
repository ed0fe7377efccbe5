package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sharpline/sharpline-go/internal/utils"
)

// withRetry runs a persistence operation with bounded retries and linear
// backoff. After exhaustion it surfaces a PersistenceError carrying the
// offending key so the caller can replay just that unit.
func withRetry(ctx context.Context, logger *logrus.Logger, key string, attempts int, backoff time.Duration, op func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return utils.NewPersistenceError(key, attempt-1, err)
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}

		logger.WithError(lastErr).WithFields(logrus.Fields{
			"key":     key,
			"attempt": attempt,
		}).Warn("Write failed, retrying")

		if attempt < attempts {
			select {
			case <-ctx.Done():
				return utils.NewPersistenceError(key, attempt, ctx.Err())
			case <-time.After(backoff * time.Duration(attempt)):
			}
		}
	}

	return utils.NewPersistenceError(key, attempts, lastErr)
}
