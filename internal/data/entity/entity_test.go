package entity

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestBookingStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to BookingStatus
		want     bool
	}{
		{BookingStatusDraft, BookingStatusPendingPayment, true},
		{BookingStatusPendingPayment, BookingStatusConfirmed, true},
		{BookingStatusPendingPayment, BookingStatusExpired, true},
		{BookingStatusPendingPayment, BookingStatusCancelled, true},
		{BookingStatusPendingPayment, BookingStatusCompleted, false},
		{BookingStatusConfirmed, BookingStatusCompleted, true},
		{BookingStatusConfirmed, BookingStatusCancelled, true},
		{BookingStatusConfirmed, BookingStatusExpired, false},
		{BookingStatusConfirmed, BookingStatusConfirmed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestBookingStatus_TerminalHasNoExit(t *testing.T) {
	all := []BookingStatus{
		BookingStatusDraft, BookingStatusPendingPayment, BookingStatusConfirmed,
		BookingStatusCancelled, BookingStatusExpired, BookingStatusCompleted,
	}

	for _, from := range all {
		if !from.IsTerminal() {
			continue
		}
		for _, to := range all {
			assert.False(t, from.CanTransitionTo(to), "%s must not move to %s", from, to)
		}
	}
	assert.False(t, BookingStatus("bogus").IsValid())
}

func TestLineItem_Validate(t *testing.T) {
	base := LineItem{ResourceID: uuid.New(), Quantity: 1}

	svc := base
	svc.Kind = LineItemService
	assert.Error(t, svc.Validate())
	svc.Stay = &StayDetail{PartySize: 2}
	assert.NoError(t, svc.Validate())

	combo := base
	combo.Kind = LineItemCombo
	combo.Combo = &ComboDetail{}
	assert.NoError(t, combo.Validate())
	combo.Stay = &StayDetail{}
	assert.Error(t, combo.Validate())

	eq := base
	eq.Kind = LineItemEquipment
	assert.NoError(t, eq.Validate())
	eq.Quantity = 0
	assert.Error(t, eq.Validate())

	unknown := base
	unknown.Kind = "voucher"
	assert.Error(t, unknown.Validate())
}

func TestStayPeriod(t *testing.T) {
	d := func(day int) time.Time { return time.Date(2025, 8, day, 0, 0, 0, 0, time.UTC) }
	items := []LineItem{
		{CheckIn: d(21), CheckOut: d(23)},
		{CheckIn: d(20), CheckOut: d(22)},
		{CheckIn: d(22), CheckOut: d(25)},
	}

	in, out := StayPeriod(items)
	assert.Equal(t, d(20), in)
	assert.Equal(t, d(25), out)
}

func TestDaysBetween(t *testing.T) {
	in := time.Date(2025, 8, 21, 15, 0, 0, 0, time.UTC)
	out := time.Date(2025, 8, 24, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, 3, DaysBetween(in, out))
}

func TestService_MaxPartySize(t *testing.T) {
	s := &Service{MaxCapacity: 4, MaxExtraPeople: 2}
	assert.Equal(t, 4, s.MaxPartySize())
	s.AllowExtraPeople = true
	assert.Equal(t, 6, s.MaxPartySize())
}

func TestBooking_StayEnded(t *testing.T) {
	b := &Booking{CheckOut: time.Date(2025, 6, 13, 0, 0, 0, 0, time.UTC)}

	assert.False(t, b.StayEnded(time.Date(2025, 6, 13, 0, 0, 0, 0, time.UTC)))
	assert.False(t, b.StayEnded(time.Date(2025, 6, 13, 23, 59, 59, 0, time.UTC)))
	assert.True(t, b.StayEnded(time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)))

	cutoff := CheckOutOnOrBefore(time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC))
	assert.False(t, b.CheckOut.After(cutoff))
}
