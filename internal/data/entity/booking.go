package entity

import (
	"time"

	"github.com/google/uuid"
)

type Booking struct {
	BaseNoDelete
	Code           string        `db:"code"`
	CustomerID     uuid.UUID     `db:"customer_id"`
	CheckIn        time.Time     `db:"check_in"`
	CheckOut       time.Time     `db:"check_out"`
	TotalPrice     int64         `db:"total_price"`
	Currency       string        `db:"currency"`
	Status         BookingStatus `db:"status"`
	Note           string        `db:"note"`
	ReservationID  *uuid.UUID    `db:"reservation_id"`
	IdempotencyKey *string       `db:"idempotency_key"`

	Items []LineItem
}

// StayPeriod returns the min check-in and max check-out over items.
func StayPeriod(items []LineItem) (checkIn, checkOut time.Time) {
	for i, item := range items {
		if i == 0 || item.CheckIn.Before(checkIn) {
			checkIn = item.CheckIn
		}
		if i == 0 || item.CheckOut.After(checkOut) {
			checkOut = item.CheckOut
		}
	}
	return checkIn, checkOut
}

// StayEnded reports whether the whole check-out day is over at now. Dates are
// calendar days in UTC.
func (b *Booking) StayEnded(now time.Time) bool {
	return !now.Before(b.CheckOut.AddDate(0, 0, 1))
}

// CheckOutOnOrBefore is the latest check-out whose stay has ended at now.
func CheckOutOnOrBefore(now time.Time) time.Time {
	return now.AddDate(0, 0, -1)
}
