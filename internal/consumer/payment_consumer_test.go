package consumer

import (
	"context"
	"errors"
	"testing"
	"time"

	"stay-booking/internal/dto/event"
	"stay-booking/internal/dto/request"
	"stay-booking/internal/dto/response"
	apperrors "stay-booking/internal/errors"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type ackRecorder struct {
	acked    bool
	nacked   bool
	requeued bool
}

func (a *ackRecorder) Ack(tag uint64, multiple bool) error {
	a.acked = true
	return nil
}

func (a *ackRecorder) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked = true
	a.requeued = requeue
	return nil
}

func (a *ackRecorder) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

type mockHandler struct {
	HandleFunc func(ctx context.Context, source string, req *request.PaymentCallbackRequest) (*response.PaymentCallbackResponse, error)
}

func (m *mockHandler) HandlePaymentCallback(ctx context.Context, source string, req *request.PaymentCallbackRequest) (*response.PaymentCallbackResponse, error) {
	return m.HandleFunc(ctx, source, req)
}

func delivery(ack amqp.Acknowledger, key, body string) amqp.Delivery {
	return amqp.Delivery{Acknowledger: ack, RoutingKey: key, Body: []byte(body), DeliveryTag: 1}
}

const paidBody = `{"event":"payment.paid","version":1,"data":{"payment_id":"PAY-1","booking_id":"8a6e0804-2bd0-4672-b79d-d97027f9071a","amount":1000,"currency":"THB"}}`

func TestHandle_MapsMessageToCallback(t *testing.T) {
	var got *request.PaymentCallbackRequest
	h := &mockHandler{HandleFunc: func(ctx context.Context, source string, req *request.PaymentCallbackRequest) (*response.PaymentCallbackResponse, error) {
		assert.Equal(t, sourceQueue, source)
		got = req
		return &response.PaymentCallbackResponse{}, nil
	}}
	pc := NewPaymentConsumer(h, nil, zap.NewNop())

	ack := &ackRecorder{}
	pc.handle(context.Background(), delivery(ack, event.RKPaymentPaid, paidBody))

	require.NotNil(t, got)
	assert.Equal(t, "PAY-1", got.ProviderTransactionID)
	assert.Equal(t, "8a6e0804-2bd0-4672-b79d-d97027f9071a", got.BookingID)
	assert.Equal(t, request.PaymentCallbackPaid, got.Status)
	assert.Equal(t, int64(1000), got.Amount)
	assert.True(t, ack.acked)

	ack = &ackRecorder{}
	pc.handle(context.Background(), delivery(ack, event.RKPaymentFailed, paidBody))
	assert.Equal(t, request.PaymentCallbackFailed, got.Status)
	assert.True(t, ack.acked)
}

func TestHandle_AckAndNackPolicy(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		body     string
		err      error
		acked    bool
		requeued bool
	}{
		{name: "unknown routing key", key: "payment.refunded", body: paidBody, acked: true},
		{name: "unreadable body", key: event.RKPaymentPaid, body: "{", acked: false},
		{name: "missing transaction", key: event.RKPaymentPaid, body: `{"data":{}}`, acked: true},
		{name: "mismatch is final", key: event.RKPaymentPaid, body: paidBody,
			err: apperrors.NewPaymentMismatchError("amount", "PAY-1", 1000, 999), acked: true},
		{name: "transient is requeued", key: event.RKPaymentPaid, body: paidBody,
			err: apperrors.NewTransientError("busy", nil), requeued: true},
		{name: "infrastructure error is requeued", key: event.RKPaymentPaid, body: paidBody,
			err: errors.New("connection reset"), requeued: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &mockHandler{HandleFunc: func(ctx context.Context, source string, req *request.PaymentCallbackRequest) (*response.PaymentCallbackResponse, error) {
				return nil, tt.err
			}}
			pc := NewPaymentConsumer(h, nil, zap.NewNop())

			ack := &ackRecorder{}
			pc.handle(context.Background(), delivery(ack, tt.key, tt.body))

			assert.Equal(t, tt.acked, ack.acked)
			assert.Equal(t, !tt.acked, ack.nacked)
			assert.Equal(t, tt.requeued, ack.requeued)
		})
	}
}

type chanSource struct{ ch chan amqp.Delivery }

func (s chanSource) Deliveries(ctx context.Context) (<-chan amqp.Delivery, error) {
	return s.ch, nil
}

func TestRun_DrainsUntilChannelCloses(t *testing.T) {
	calls := make(chan struct{}, 1)
	h := &mockHandler{HandleFunc: func(ctx context.Context, source string, req *request.PaymentCallbackRequest) (*response.PaymentCallbackResponse, error) {
		calls <- struct{}{}
		return &response.PaymentCallbackResponse{}, nil
	}}
	src := chanSource{ch: make(chan amqp.Delivery, 1)}
	pc := NewPaymentConsumer(h, src, zap.NewNop())
	require.NoError(t, pc.Run(context.Background()))

	src.ch <- delivery(&ackRecorder{}, event.RKPaymentPaid, paidBody)
	close(src.ch)

	select {
	case <-pc.Done():
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
	assert.Len(t, calls, 1)
}
