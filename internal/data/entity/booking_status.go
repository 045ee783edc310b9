package entity

type BookingStatus string

const (
	BookingStatusDraft          BookingStatus = "draft"
	BookingStatusPendingPayment BookingStatus = "pending_payment"
	BookingStatusConfirmed      BookingStatus = "confirmed"
	BookingStatusCancelled      BookingStatus = "cancelled"
	BookingStatusExpired        BookingStatus = "expired"
	BookingStatusCompleted      BookingStatus = "completed"
)

var validTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusDraft:          {BookingStatusPendingPayment},
	BookingStatusPendingPayment: {BookingStatusConfirmed, BookingStatusCancelled, BookingStatusExpired},
	BookingStatusConfirmed:      {BookingStatusCompleted, BookingStatusCancelled},
	BookingStatusCancelled:      {},
	BookingStatusExpired:        {},
	BookingStatusCompleted:      {},
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	switch s {
	case BookingStatusCancelled, BookingStatusExpired, BookingStatusCompleted:
		return true
	}
	return false
}

// HoldsCapacity reports whether a booking in this status still owns its
// ledger reservation.
func (s BookingStatus) HoldsCapacity() bool {
	return s == BookingStatusPendingPayment || s == BookingStatusConfirmed || s == BookingStatusCompleted
}

func (s BookingStatus) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}
