package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"stay-booking/internal/data/repository"
	apperrors "stay-booking/internal/errors"
	"stay-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRetryPolicy_BackoffJitter(t *testing.T) {
	p := retryPolicy{maxAttempts: 5, baseDelay: 100 * time.Millisecond, log: zap.NewNop()}

	for attempt := 1; attempt <= 4; attempt++ {
		base := p.baseDelay << (attempt - 1)
		for i := 0; i < 50; i++ {
			d := p.backoff(attempt)
			assert.GreaterOrEqual(t, d, base*8/10, "attempt %d", attempt)
			assert.LessOrEqual(t, d, base*12/10, "attempt %d", attempt)
		}
	}
}

func TestRetryPolicy_IsConflict(t *testing.T) {
	assert.True(t, isConflict(apperrors.NewConcurrentModificationError(nil)))
	assert.True(t, isConflict(fmt.Errorf("commit: %w", database.ErrConflict)))
	assert.True(t, isConflict(&pgconn.PgError{Code: "40P01"}))
	assert.True(t, isConflict(&pgconn.PgError{Code: "23505", ConstraintName: repository.ConstraintBookingCode}))

	assert.False(t, isConflict(&pgconn.PgError{Code: "23505", ConstraintName: repository.ConstraintBookingIdempotencyKey}))
	assert.False(t, isConflict(apperrors.NewCapacityExceededError(uuid.New(), time.Now(), 2, 1)))
	assert.False(t, isConflict(errors.New("boom")))
}

func TestRetryPolicy_Do(t *testing.T) {
	p := retryPolicy{maxAttempts: 3, baseDelay: time.Millisecond, log: zap.NewNop()}

	t.Run("non-conflict fails fast", func(t *testing.T) {
		calls := 0
		boom := errors.New("boom")
		err := p.do(context.Background(), "test", func(ctx context.Context) error {
			calls++
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})

	t.Run("conflict then success", func(t *testing.T) {
		calls := 0
		err := p.do(context.Background(), "test", func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return apperrors.NewConcurrentModificationError(nil)
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("cancelled context stops waiting", func(t *testing.T) {
		slow := retryPolicy{maxAttempts: 3, baseDelay: time.Hour, log: zap.NewNop()}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		calls := 0
		err := slow.do(ctx, "test", func(ctx context.Context) error {
			calls++
			return apperrors.NewConcurrentModificationError(nil)
		})
		_, ok := apperrors.IsConcurrentModificationError(err)
		assert.True(t, ok)
		assert.Equal(t, 1, calls)
	})
}
