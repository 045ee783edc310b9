package consumer

import (
	"context"
	"errors"

	"stay-booking/internal/dto/event"
	"stay-booking/internal/dto/request"
	"stay-booking/internal/dto/response"
	apperrors "stay-booking/internal/errors"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const sourceQueue = "queue"

// CallbackHandler applies a payment notification to its booking.
type CallbackHandler interface {
	HandlePaymentCallback(ctx context.Context, source string, req *request.PaymentCallbackRequest) (*response.PaymentCallbackResponse, error)
}

// DeliverySource yields broker deliveries until ctx is done.
type DeliverySource interface {
	Deliveries(ctx context.Context) (<-chan amqp.Delivery, error)
}

// PaymentConsumer feeds payment.paid and payment.failed messages from the
// payment service into the booking lifecycle.
type PaymentConsumer struct {
	handler CallbackHandler
	source  DeliverySource
	log     *zap.Logger
	done    chan struct{}
}

func NewPaymentConsumer(handler CallbackHandler, source DeliverySource, log *zap.Logger) *PaymentConsumer {
	return &PaymentConsumer{
		handler: handler,
		source:  source,
		log:     log.With(zap.String("consumer", "payment")),
		done:    make(chan struct{}),
	}
}

func (pc *PaymentConsumer) Run(ctx context.Context) error {
	msgs, err := pc.source.Deliveries(ctx)
	if err != nil {
		return err
	}
	go func() {
		defer close(pc.done)
		for d := range msgs {
			pc.handle(ctx, d)
		}
		pc.log.Info("Payment consumer stopped")
	}()
	return nil
}

// Done is closed once the delivery channel is drained after shutdown.
func (pc *PaymentConsumer) Done() <-chan struct{} {
	return pc.done
}

// handle acks messages that can never succeed and requeues the rest.
func (pc *PaymentConsumer) handle(ctx context.Context, d amqp.Delivery) {
	var status string
	switch d.RoutingKey {
	case event.RKPaymentPaid:
		status = request.PaymentCallbackPaid
	case event.RKPaymentFailed:
		status = request.PaymentCallbackFailed
	default:
		// ignore others
		_ = d.Ack(false)
		return
	}

	msg, err := event.Unmarshal[event.PaymentMessage](d.Body)
	if err != nil {
		pc.log.Warn("Unreadable payment message", zap.Error(err), zap.String("routing_key", d.RoutingKey))
		_ = d.Nack(false, false)
		return
	}
	if msg.Data.PaymentID == "" {
		pc.log.Warn("Payment message without transaction id", zap.String("routing_key", d.RoutingKey))
		_ = d.Ack(false)
		return
	}

	_, err = pc.handler.HandlePaymentCallback(ctx, sourceQueue, &request.PaymentCallbackRequest{
		ProviderTransactionID: msg.Data.PaymentID,
		BookingID:             msg.Data.BookingID,
		Status:                status,
		Amount:                msg.Data.Amount,
	})
	if err != nil && retryable(err) {
		pc.log.Warn("Payment message will be redelivered", zap.Error(err), zap.String("payment_id", msg.Data.PaymentID))
		_ = d.Nack(false, true)
		return
	}
	if err != nil {
		// recorded for reconciliation by the lifecycle service
		pc.log.Info("Payment message rejected", zap.Error(err), zap.String("payment_id", msg.Data.PaymentID))
	}
	_ = d.Ack(false)
}

func retryable(err error) bool {
	if _, ok := apperrors.IsTransientError(err); ok {
		return true
	}
	if _, ok := apperrors.IsInconsistencyError(err); ok {
		return false
	}
	var (
		validation *apperrors.ValidationError
		mismatch   *apperrors.PaymentMismatchError
		transition *apperrors.InvalidStateTransitionError
		notFound   *apperrors.NotFoundError
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &mismatch), errors.As(err, &transition), errors.As(err, &notFound):
		return false
	}
	// infrastructure failures such as a lost database connection
	return true
}
