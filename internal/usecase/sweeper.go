package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"stay-booking/internal/dto/response"

	"go.uber.org/zap"
)

// Sweeper periodically expires unpaid bookings and completes finished ones.
// Passes never overlap.
type Sweeper struct {
	lifecycle LifecycleService
	interval  time.Duration
	now       func() time.Time
	log       *zap.Logger

	mu sync.Mutex
	wg sync.WaitGroup
}

func NewSweeper(lifecycle LifecycleService, interval time.Duration, clock func() time.Time, log *zap.Logger) *Sweeper {
	if clock == nil {
		clock = time.Now
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		lifecycle: lifecycle,
		interval:  interval,
		now:       clock,
		log:       log.With(zap.String("component", "sweeper")),
	}
}

// RunOnce runs a single expire and complete pass. A failing booking does not
// stop the pass; its error is joined into the result.
func (s *Sweeper) RunOnce(ctx context.Context) (*response.SweepResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	expired, expErr := s.lifecycle.SweepExpired(ctx, now)
	completed, compErr := s.lifecycle.CompleteFinished(ctx, now)

	if expired > 0 || completed > 0 {
		s.log.Info("Sweep finished", zap.Int("expired", expired), zap.Int("completed", completed))
	}
	return &response.SweepResponse{Expired: expired, Completed: completed}, errors.Join(expErr, compErr)
}

// Start runs passes every interval until ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.log.Info("Sweeper started", zap.Duration("interval", s.interval))
		for {
			select {
			case <-ctx.Done():
				s.log.Info("Sweeper stopped")
				return
			case <-ticker.C:
				if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
					s.log.Error("Sweep pass failed", zap.Error(err))
				}
			}
		}
	}()
}

// Wait blocks until the goroutine started by Start returns.
func (s *Sweeper) Wait() {
	s.wg.Wait()
}
