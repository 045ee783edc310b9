// Package event holds the message bodies exchanged over RabbitMQ.
package event

import (
	"encoding/json"
	"time"
)

// Routing keys
const (
	RKBookingCreated   = "booking.created"
	RKBookingConfirmed = "booking.confirmed"
	RKBookingCancelled = "booking.cancelled"
	RKBookingExpired   = "booking.expired"
	RKBookingCompleted = "booking.completed"

	RKPaymentPaid   = "payment.paid"
	RKPaymentFailed = "payment.failed"
)

// BookingEvent is published after a booking lifecycle change commits.
type BookingEvent struct {
	Event      string    `json:"event"`
	Version    int       `json:"version"`
	OccurredAt time.Time `json:"occurred_at"`
	BookingID  string    `json:"booking_id"`
	Code       string    `json:"code"`
	CustomerID string    `json:"customer_id"`
	Status     string    `json:"status"`
	TotalPrice int64     `json:"total_price"`
	Currency   string    `json:"currency"`
	CheckIn    string    `json:"check_in"`
	CheckOut   string    `json:"check_out"`
}

// PaymentMessage is what the payment service publishes on payment.paid and
// payment.failed.
type PaymentMessage struct {
	Event      string `json:"event"`
	Version    int    `json:"version"`
	OccurredAt string `json:"occurred_at"`
	Data       struct {
		PaymentID string `json:"payment_id"`
		BookingID string `json:"booking_id"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
		Method    string `json:"method,omitempty"`
		Reason    string `json:"reason,omitempty"`
	} `json:"data"`
}

func Unmarshal[T any](b []byte) (T, error) {
	var v T
	err := json.Unmarshal(b, &v)
	return v, err
}
