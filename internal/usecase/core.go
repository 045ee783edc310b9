package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"stay-booking/internal/data/entity"
	"stay-booking/internal/data/repository"
	"stay-booking/internal/dto/event"
	"stay-booking/internal/dto/response"
	apperrors "stay-booking/internal/errors"
	"stay-booking/internal/gateway"
	"stay-booking/internal/ledger"
	"stay-booking/pkg/database"
	"stay-booking/pkg/utils"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("stay-booking/usecase")

// EventPublisher sends booking lifecycle events. Delivery is best effort.
type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

type Dependencies struct {
	Repo      *repository.Repository
	Ledger    ledger.Ledger
	Gateway   gateway.Gateway
	Publisher EventPublisher
	Config    *utils.Config
	Log       *zap.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// core is what the booking and lifecycle services share. Only core writes
// booking status.
type core struct {
	repo      *repository.Repository
	ledger    ledger.Ledger
	gateway   gateway.Gateway
	publisher EventPublisher
	booking   utils.BookingConfig
	payment   utils.PaymentConfig
	retry     retryPolicy
	log       *zap.Logger
	now       func() time.Time
}

func newCore(deps Dependencies, name string) core {
	log := deps.Log.With(zap.String("service", name))
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return core{
		repo:      deps.Repo,
		ledger:    deps.Ledger,
		gateway:   deps.Gateway,
		publisher: deps.Publisher,
		booking:   deps.Config.Booking,
		payment:   deps.Config.Payment,
		retry: retryPolicy{
			maxAttempts: deps.Config.Booking.MaxRetryAttempts,
			baseDelay:   deps.Config.Booking.RetryBaseDelay,
			log:         log,
		},
		log: log,
		now: now,
	}
}

// transition moves a booking locked by the caller's transaction to next and
// releases its capacity when next no longer holds any.
func (c *core) transition(ctx context.Context, b *entity.Booking, next entity.BookingStatus) error {
	ctx, span := tracer.Start(ctx, "booking.Transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.id", b.ID.String()),
		attribute.String("booking.from", string(b.Status)),
		attribute.String("booking.to", string(next)),
	)

	if !b.Status.CanTransitionTo(next) {
		return apperrors.NewInvalidStateTransitionError(b.ID, string(b.Status), string(next))
	}

	if err := c.repo.Booking.UpdateStatus(ctx, b.ID, next); err != nil {
		return err
	}
	from := b.Status
	b.Status = next
	b.UpdatedAt = c.now()

	if !next.HoldsCapacity() && b.ReservationID != nil {
		// a ledger outside the transaction releases only once the status
		// change has committed
		release := c.releaseFunc(b.ID, *b.ReservationID, from, next)
		if ledger.JoinsTransaction(c.ledger) {
			if err := release(ctx); err != nil {
				return err
			}
		} else if err := database.AfterCommit(ctx, release); err != nil {
			return err
		}
	}

	c.log.Info("Booking status changed",
		zap.String("booking_id", b.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(next)),
	)
	return nil
}

// releaseFunc frees the capacity held by a booking that left a holding state.
func (c *core) releaseFunc(bookingID, reservationID uuid.UUID, from, to entity.BookingStatus) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		err := c.ledger.Release(ctx, reservationID)
		if err == nil {
			return nil
		}
		if isConflict(err) {
			return err
		}
		c.log.Error("Capacity release failed after status change",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
			zap.String("reservation_id", reservationID.String()),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
		if _, ok := apperrors.IsInconsistencyError(err); ok {
			return err
		}
		return apperrors.NewInconsistencyError(
			fmt.Sprintf("release reservation %s of booking %s", reservationID, bookingID), err)
	}
}

// completeIfFinished marks a confirmed booking completed once its check-out
// day is over. It reports whether it changed anything.
func (c *core) completeIfFinished(ctx context.Context, bookingID uuid.UUID, now time.Time) (*entity.Booking, bool, error) {
	var (
		booking *entity.Booking
		changed bool
	)
	err := c.retry.do(ctx, "complete booking", func(ctx context.Context) error {
		changed = false
		return c.repo.Tx.WithinTx(ctx, func(ctx context.Context) error {
			b, err := c.repo.Booking.FindByIDForUpdate(ctx, bookingID)
			if err != nil {
				return err
			}
			booking = b
			if b == nil || b.Status != entity.BookingStatusConfirmed || !b.StayEnded(now) {
				return nil
			}
			if err := c.transition(ctx, b, entity.BookingStatusCompleted); err != nil {
				return err
			}
			changed = true
			return nil
		})
	})
	if err != nil {
		return nil, false, err
	}

	if changed {
		c.publish(ctx, event.RKBookingCompleted, booking)
	}
	return booking, changed, nil
}

// requestIntent asks the gateway for a payment intent and stores it on the
// payment. The previous transaction id, if any, is replaced.
func (c *core) requestIntent(ctx context.Context, b *entity.Booking, p *entity.Payment) (*entity.Payment, error) {
	if c.payment.IntentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.payment.IntentTimeout)
		defer cancel()
	}

	intent, err := c.gateway.CreateIntent(ctx, gateway.IntentRequest{
		BookingID: b.ID,
		Amount:    p.Amount,
		Currency:  p.Currency,
		Method:    p.Method,
	})
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	var paymentURL *string
	if intent.PaymentURL != "" {
		paymentURL = &intent.PaymentURL
	}
	if err := c.repo.Payment.SetIntent(ctx, p.ID, intent.ProviderTransactionID, paymentURL); err != nil {
		return nil, err
	}

	updated := *p
	updated.ProviderTransactionID = &intent.ProviderTransactionID
	updated.PaymentURL = paymentURL
	return &updated, nil
}

func (c *core) publish(ctx context.Context, key string, b *entity.Booking) {
	if c.publisher == nil || b == nil {
		return
	}

	ev := event.BookingEvent{
		Event:      key,
		Version:    1,
		OccurredAt: c.now().UTC(),
		BookingID:  b.ID.String(),
		Code:       b.Code,
		CustomerID: b.CustomerID.String(),
		Status:     string(b.Status),
		TotalPrice: b.TotalPrice,
		Currency:   b.Currency,
		CheckIn:    b.CheckIn.Format(time.DateOnly),
		CheckOut:   b.CheckOut.Format(time.DateOnly),
	}
	if err := c.publisher.PublishJSON(context.WithoutCancel(ctx), key, ev); err != nil {
		c.log.Warn("Failed to publish booking event",
			zap.Error(err),
			zap.String("event", key),
			zap.String("booking_id", b.ID.String()),
		)
	}
}

// bookingResponse loads items and payment for b.
func (c *core) bookingResponse(ctx context.Context, b *entity.Booking) (*response.BookingResponse, error) {
	items, err := c.repo.LineItem.FindByBookingID(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("load booking items: %w", err)
	}
	b.Items = items

	payment, err := c.repo.Payment.FindByBookingID(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("load booking payment: %w", err)
	}

	return response.BookingToResponse(b, payment), nil
}

func (c *core) findAccessible(ctx context.Context, actor utils.Actor, bookingID string, forUpdate bool) (*entity.Booking, error) {
	id, err := uuid.Parse(bookingID)
	if err != nil {
		return nil, apperrors.NewFieldValidationError("id", "must be a valid UUID")
	}

	find := c.repo.Booking.FindByID
	if forUpdate {
		find = c.repo.Booking.FindByIDForUpdate
	}
	booking, err := find(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("booking %s not found", bookingID))
	}
	if !actor.CanAccess(booking.CustomerID) {
		return nil, apperrors.NewForbiddenError("booking belongs to another customer")
	}
	return booking, nil
}

func validationFromMap(errs map[string]string) *apperrors.ValidationError {
	fields := make([]string, 0, len(errs))
	for field := range errs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	details := make([]apperrors.ValidationDetail, 0, len(fields))
	for _, field := range fields {
		details = append(details, apperrors.ValidationDetail{Field: field, Message: errs[field]})
	}
	return apperrors.NewValidationError("validation failed: "+utils.FormatValidationErrors(errs), details...)
}
