package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stay-booking/internal/data/entity"
	"stay-booking/internal/dto/event"
	"stay-booking/internal/dto/request"
	"stay-booking/internal/dto/response"
	apperrors "stay-booking/internal/errors"
	"stay-booking/pkg/utils"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Payment callback outcomes, recorded with every payment event.
const (
	OutcomeConfirmed      = "confirmed"
	OutcomeDuplicate      = "duplicate"
	OutcomePaymentFailed  = "payment_failed"
	OutcomeIgnored        = "ignored"
	OutcomeRefundRequired = "refund_required"
	OutcomeMismatch       = "mismatch"
	OutcomeRejected       = "rejected"
)

// LifecycleService drives bookings through their states after creation.
type LifecycleService interface {
	HandlePaymentCallback(ctx context.Context, source string, req *request.PaymentCallbackRequest) (*response.PaymentCallbackResponse, error)
	CancelBooking(ctx context.Context, actor utils.Actor, bookingID string) (*response.BookingResponse, error)
	RequestPaymentIntent(ctx context.Context, actor utils.Actor, bookingID string) (*response.PaymentResponse, error)

	// Sweeper passes
	SweepExpired(ctx context.Context, now time.Time) (int, error)
	CompleteFinished(ctx context.Context, now time.Time) (int, error)
}

type lifecycleService struct {
	core
}

func NewLifecycleService(deps Dependencies) LifecycleService {
	return &lifecycleService{core: newCore(deps, "lifecycle")}
}

func (s *lifecycleService) HandlePaymentCallback(ctx context.Context, source string, req *request.PaymentCallbackRequest) (*response.PaymentCallbackResponse, error) {
	ctx, span := tracer.Start(ctx, "booking.PaymentCallback")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.transaction_id", req.ProviderTransactionID),
		attribute.String("payment.status", req.Status),
		attribute.String("payment.source", source),
	)

	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Payment callback validation failed", zap.Any("errors", errs), zap.String("source", source))
		return nil, validationFromMap(errs)
	}

	var (
		result    response.PaymentCallbackResponse
		confirmed *entity.Booking
	)
	err := s.retry.do(ctx, "payment callback", func(ctx context.Context) error {
		confirmed = nil
		return s.repo.Tx.WithinTx(ctx, func(ctx context.Context) error {
			payment, err := s.repo.Payment.FindByProviderTransactionID(ctx, req.ProviderTransactionID)
			if err != nil {
				return err
			}
			if payment == nil {
				return apperrors.NewPaymentMismatchError("unknown provider transaction", req.ProviderTransactionID, 0, req.Amount)
			}
			if req.BookingID != "" && req.BookingID != payment.BookingID.String() {
				return apperrors.NewPaymentMismatchError("booking does not match the transaction",
					req.ProviderTransactionID, payment.Amount, req.Amount)
			}

			// lock order: booking, then payment
			booking, err := s.repo.Booking.FindByIDForUpdate(ctx, payment.BookingID)
			if err != nil {
				return err
			}
			if booking == nil {
				return apperrors.NewInconsistencyError(fmt.Sprintf("payment %s has no booking", payment.ID), nil)
			}
			payment, err = s.repo.Payment.FindByBookingIDForUpdate(ctx, booking.ID)
			if err != nil {
				return err
			}
			// a re-requested intent replaces the transaction while we waited
			if payment == nil || payment.ProviderTransactionID == nil || *payment.ProviderTransactionID != req.ProviderTransactionID {
				return apperrors.NewPaymentMismatchError("transaction is no longer current for the booking",
					req.ProviderTransactionID, 0, req.Amount)
			}

			result = response.PaymentCallbackResponse{BookingID: booking.ID.String()}

			switch req.Status {
			case request.PaymentCallbackPaid:
				if payment.Status == entity.PaymentStatusPaid {
					result.Outcome = OutcomeDuplicate
					break
				}
				if req.Amount != payment.Amount {
					return apperrors.NewPaymentMismatchError("amount does not match payment",
						req.ProviderTransactionID, payment.Amount, req.Amount)
				}

				now := s.now()
				if err := s.repo.Payment.MarkPaid(ctx, payment.ID, now); err != nil {
					return err
				}
				payment.Status = entity.PaymentStatusPaid
				payment.PaidAt = &now

				switch {
				case booking.Status == entity.BookingStatusPendingPayment:
					if err := s.transition(ctx, booking, entity.BookingStatusConfirmed); err != nil {
						return err
					}
					confirmed = booking
					result.Outcome = OutcomeConfirmed
				case booking.Status.IsTerminal():
					s.log.Warn("Payment received for closed booking, refund required",
						zap.String("booking_id", booking.ID.String()),
						zap.String("status", string(booking.Status)),
						zap.String("provider_transaction_id", req.ProviderTransactionID),
						zap.Int64("amount", req.Amount),
					)
					result.Outcome = OutcomeRefundRequired
				default:
					result.Outcome = OutcomeDuplicate
				}

			case request.PaymentCallbackFailed:
				switch payment.Status {
				case entity.PaymentStatusPaid:
					result.Outcome = OutcomeIgnored
				case entity.PaymentStatusFailed:
					result.Outcome = OutcomeDuplicate
				default:
					if err := s.repo.Payment.MarkFailed(ctx, payment.ID); err != nil {
						return err
					}
					payment.Status = entity.PaymentStatusFailed
					result.Outcome = OutcomePaymentFailed
				}
			}

			result.BookingStatus = booking.Status
			result.PaymentStatus = payment.Status
			return nil
		})
	})

	s.recordPaymentEvent(ctx, source, req, &result, err)

	if err != nil {
		if mismatch, ok := apperrors.IsPaymentMismatchError(err); ok {
			s.log.Warn("Payment mismatch, manual reconciliation required",
				zap.String("provider_transaction_id", req.ProviderTransactionID),
				zap.String("reason", mismatch.Message),
				zap.Int64("expected", mismatch.Expected),
				zap.Int64("received", mismatch.Received),
				zap.String("source", source),
			)
		}
		return nil, err
	}

	s.log.Info("Payment callback applied",
		zap.String("booking_id", result.BookingID),
		zap.String("outcome", result.Outcome),
		zap.String("source", source),
	)
	if confirmed != nil {
		s.publish(ctx, event.RKBookingConfirmed, confirmed)
	}
	return &result, nil
}

// recordPaymentEvent keeps every callback for reconciliation. It never fails
// the callback itself.
func (s *lifecycleService) recordPaymentEvent(ctx context.Context, source string, req *request.PaymentCallbackRequest, result *response.PaymentCallbackResponse, cbErr error) {
	ev := &entity.PaymentEvent{
		BaseSimple:            entity.BaseSimple{ID: uuid.New(), CreatedAt: s.now()},
		ProviderTransactionID: req.ProviderTransactionID,
		Status:                req.Status,
		Amount:                req.Amount,
		Source:                source,
		Outcome:               result.Outcome,
	}

	bookingID := result.BookingID
	if bookingID == "" {
		bookingID = req.BookingID
	}
	if id, err := uuid.Parse(bookingID); err == nil {
		ev.BookingID = &id
	}

	if cbErr != nil {
		ev.Outcome = OutcomeRejected
		if _, ok := apperrors.IsPaymentMismatchError(cbErr); ok {
			ev.Outcome = OutcomeMismatch
		}
		ev.Detail = cbErr.Error()
	}

	if err := s.repo.PaymentEvent.Record(context.WithoutCancel(ctx), ev); err != nil {
		s.log.Warn("Failed to record payment event", zap.Error(err), zap.String("provider_transaction_id", req.ProviderTransactionID))
	}
}

func (s *lifecycleService) CancelBooking(ctx context.Context, actor utils.Actor, bookingID string) (*response.BookingResponse, error) {
	ctx, span := tracer.Start(ctx, "booking.Cancel")
	defer span.End()

	var cancelled *entity.Booking
	err := s.retry.do(ctx, "cancel booking", func(ctx context.Context) error {
		return s.repo.Tx.WithinTx(ctx, func(ctx context.Context) error {
			booking, err := s.findAccessible(ctx, actor, bookingID, true)
			if err != nil {
				return err
			}
			if err := s.transition(ctx, booking, entity.BookingStatusCancelled); err != nil {
				return err
			}
			cancelled = booking
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Booking cancelled",
		zap.String("booking_id", cancelled.ID.String()),
		zap.String("actor_id", actor.ID.String()),
		zap.String("actor_role", actor.Role),
	)
	s.publish(ctx, event.RKBookingCancelled, cancelled)
	return s.bookingResponse(ctx, cancelled)
}

func (s *lifecycleService) RequestPaymentIntent(ctx context.Context, actor utils.Actor, bookingID string) (*response.PaymentResponse, error) {
	booking, err := s.findAccessible(ctx, actor, bookingID, false)
	if err != nil {
		return nil, err
	}
	if booking.Status != entity.BookingStatusPendingPayment {
		return nil, apperrors.NewInvalidStateTransitionError(booking.ID, string(booking.Status), string(entity.BookingStatusConfirmed))
	}

	payment, err := s.repo.Payment.FindByBookingID(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, apperrors.NewInconsistencyError(fmt.Sprintf("booking %s has no payment", booking.ID), nil)
	}
	if payment.Status == entity.PaymentStatusPaid {
		return nil, apperrors.NewInvalidStateTransitionError(booking.ID, string(booking.Status), string(entity.BookingStatusConfirmed))
	}

	updated, err := s.requestIntent(ctx, booking, payment)
	if err != nil {
		s.log.Warn("Payment intent request failed", zap.Error(err), zap.String("booking_id", booking.ID.String()))
		return nil, apperrors.NewTransientError("payment provider unavailable", err)
	}
	return response.PaymentToResponse(updated), nil
}

func (s *lifecycleService) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	ctx, span := tracer.Start(ctx, "booking.SweepExpired")
	defer span.End()

	cutoff := now.Add(-s.booking.PaymentTTL)
	count, err := s.drain(ctx,
		func(ctx context.Context, limit int) ([]uuid.UUID, error) {
			return s.repo.Booking.ListExpirable(ctx, cutoff, limit)
		},
		func(ctx context.Context, id uuid.UUID) (bool, error) {
			booking, expired, err := s.expireOne(ctx, id, cutoff)
			if err != nil {
				s.log.Error("Failed to expire booking", zap.Error(err), zap.String("booking_id", id.String()))
				return false, err
			}
			if expired {
				s.publish(ctx, event.RKBookingExpired, booking)
			}
			return expired, nil
		})

	span.SetAttributes(attribute.Int("sweep.expired", count))
	return count, err
}

// drain handles listed bookings batch by batch until a batch comes back
// short or holds nothing new. Bookings that failed or were skipped are
// listed again by later batches and handled only once per pass.
func (s *lifecycleService) drain(
	ctx context.Context,
	list func(ctx context.Context, limit int) ([]uuid.UUID, error),
	handle func(ctx context.Context, id uuid.UUID) (bool, error),
) (int, error) {
	limit := s.batchSize()
	seen := make(map[uuid.UUID]struct{})

	var (
		count int
		errs  []error
	)
	for {
		if err := ctx.Err(); err != nil {
			return count, errors.Join(append(errs, err)...)
		}

		ids, err := list(ctx, limit)
		if err != nil {
			return count, errors.Join(append(errs, err)...)
		}

		fresh := 0
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			fresh++

			changed, err := handle(ctx, id)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if changed {
				count++
			}
		}

		if len(ids) < limit || fresh == 0 {
			return count, errors.Join(errs...)
		}
	}
}

// expireOne re-checks the booking under lock: a payment may have landed
// since it was listed, and a repeated pass must be a no-op.
func (s *lifecycleService) expireOne(ctx context.Context, bookingID uuid.UUID, cutoff time.Time) (*entity.Booking, bool, error) {
	var (
		booking *entity.Booking
		expired bool
	)
	err := s.retry.do(ctx, "expire booking", func(ctx context.Context) error {
		expired = false
		return s.repo.Tx.WithinTx(ctx, func(ctx context.Context) error {
			b, err := s.repo.Booking.FindByIDForUpdate(ctx, bookingID)
			if err != nil {
				return err
			}
			if b == nil || b.Status != entity.BookingStatusPendingPayment || !b.CreatedAt.Before(cutoff) {
				return nil
			}

			payment, err := s.repo.Payment.FindByBookingIDForUpdate(ctx, b.ID)
			if err != nil {
				return err
			}
			if payment != nil && payment.Status == entity.PaymentStatusPaid {
				return nil
			}

			if err := s.transition(ctx, b, entity.BookingStatusExpired); err != nil {
				return err
			}
			booking = b
			expired = true
			return nil
		})
	})
	return booking, expired, err
}

func (s *lifecycleService) CompleteFinished(ctx context.Context, now time.Time) (int, error) {
	checkOutBy := entity.CheckOutOnOrBefore(now)
	return s.drain(ctx,
		func(ctx context.Context, limit int) ([]uuid.UUID, error) {
			return s.repo.Booking.ListCompletable(ctx, checkOutBy, limit)
		},
		func(ctx context.Context, id uuid.UUID) (bool, error) {
			_, changed, err := s.completeIfFinished(ctx, id, now)
			if err != nil {
				s.log.Error("Failed to complete booking", zap.Error(err), zap.String("booking_id", id.String()))
			}
			return changed, err
		})
}

func (s *lifecycleService) batchSize() int {
	if s.booking.SweepBatchSize > 0 {
		return s.booking.SweepBatchSize
	}
	return 100
}
