package entity

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// Payment is one-to-one with a booking and created with it.
type Payment struct {
	BaseNoDelete
	BookingID             uuid.UUID     `db:"booking_id"`
	Method                string        `db:"method"`
	Status                PaymentStatus `db:"status"`
	Amount                int64         `db:"amount"`
	Currency              string        `db:"currency"`
	ProviderTransactionID *string       `db:"provider_transaction_id"`
	PaymentURL            *string       `db:"payment_url"`
	PaidAt                *time.Time    `db:"paid_at"`
}

// PaymentEvent records every inbound payment notification and what was done
// with it, for reconciliation.
type PaymentEvent struct {
	BaseSimple
	ProviderTransactionID string     `db:"provider_transaction_id"`
	BookingID             *uuid.UUID `db:"booking_id"`
	Status                string     `db:"status"`
	Amount                int64      `db:"amount"`
	Source                string     `db:"source"`
	Outcome               string     `db:"outcome"`
	Detail                string     `db:"detail"`
}
