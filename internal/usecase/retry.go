package usecase

import (
	"context"
	"math/rand"
	"time"

	"stay-booking/internal/data/repository"
	apperrors "stay-booking/internal/errors"
	"stay-booking/pkg/database"

	"go.uber.org/zap"
)

// retryPolicy retries lock and commit conflicts with exponential backoff and
// ±20% jitter. Anything else is returned on the first failure.
type retryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	log         *zap.Logger
}

func isConflict(err error) bool {
	if _, ok := apperrors.IsConcurrentModificationError(err); ok {
		return true
	}
	// a colliding booking code is fixed by generating a new one
	return database.IsRetryable(err) || database.IsUniqueViolation(err, repository.ConstraintBookingCode)
}

func (p retryPolicy) backoff(attempt int) time.Duration {
	d := p.baseDelay << (attempt - 1)
	jitter := time.Duration((rand.Float64()*0.4 - 0.2) * float64(d))
	return d + jitter
}

func (p retryPolicy) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := p.maxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil || !isConflict(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		delay := p.backoff(attempt)
		p.log.Warn("Conflict detected, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}

	return apperrors.NewTransientError("too much contention, retry later", err)
}
