// Package gateway requests payment intents from the payment provider and
// normalizes what the provider reports back.
package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type IntentRequest struct {
	BookingID uuid.UUID
	Amount    int64
	Currency  string
	Method    string
}

// Intent is what the customer needs to pay: the provider's transaction id,
// which later callbacks refer to, and where to pay.
type Intent struct {
	ProviderTransactionID string
	PaymentURL            string
}

// Notification is a provider callback reduced to what the booking core needs.
type Notification struct {
	ProviderTransactionID string
	BookingID             string
	Status                string
	Amount                int64
}

const (
	StatusPaid   = "paid"
	StatusFailed = "failed"
)

type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
}

// Stub hands out local transaction ids. Payment confirmation then arrives
// through the generic webhook.
type Stub struct {
	baseURL string
	log     *zap.Logger
}

func NewStub(baseURL string, log *zap.Logger) *Stub {
	if baseURL == "" {
		baseURL = "http://localhost:8080/pay"
	}
	return &Stub{baseURL: baseURL, log: log.With(zap.String("gateway", "stub"))}
}

func (s *Stub) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if req.Amount < 0 {
		return nil, fmt.Errorf("invalid amount %d", req.Amount)
	}

	txID := fmt.Sprintf("PAY-%d-%s", time.Now().UnixNano(), req.BookingID.String()[:8])
	s.log.Debug("Payment intent created",
		zap.String("booking_id", req.BookingID.String()),
		zap.String("provider_transaction_id", txID),
		zap.Int64("amount", req.Amount),
	)

	return &Intent{
		ProviderTransactionID: txID,
		PaymentURL:            fmt.Sprintf("%s/%s", s.baseURL, txID),
	}, nil
}
