package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type LineItemKind string

const (
	LineItemService   LineItemKind = "service"
	LineItemCombo     LineItemKind = "combo"
	LineItemEquipment LineItemKind = "equipment"
)

// StayDetail is the payload of a service line.
type StayDetail struct {
	PartySize   int   `json:"party_size"`
	ExtraPeople int   `json:"extra_people"`
	ExtraFee    int64 `json:"extra_fee"`
}

// ComboDetail is the payload of a combo line. Constituents drive capacity
// only; the combo itself is priced once.
type ComboDetail struct {
	PartySize    int                `json:"party_size,omitempty"`
	Constituents []ComboConstituent `json:"constituents"`
}

// LineItem is a tagged variant. Exactly the payload matching Kind is set;
// equipment carries none.
type LineItem struct {
	BaseSimple
	BookingID  uuid.UUID    `db:"booking_id"`
	Position   int          `db:"position"`
	Kind       LineItemKind `db:"kind"`
	ResourceID uuid.UUID    `db:"resource_id"`
	Name       string       `db:"name"`
	Quantity   int          `db:"quantity"`
	UnitPrice  int64        `db:"unit_price"`
	Subtotal   int64        `db:"subtotal"`
	CheckIn    time.Time    `db:"check_in"`
	CheckOut   time.Time    `db:"check_out"`

	Stay  *StayDetail  `json:"stay,omitempty"`
	Combo *ComboDetail `json:"combo,omitempty"`
}

// Nights returns the number of calendar days in [CheckIn, CheckOut).
func (li *LineItem) Nights() int {
	return DaysBetween(li.CheckIn, li.CheckOut)
}

func (li *LineItem) Validate() error {
	switch li.Kind {
	case LineItemService:
		if li.Stay == nil || li.Combo != nil {
			return fmt.Errorf("service line %s must carry only a stay payload", li.ResourceID)
		}
	case LineItemCombo:
		if li.Combo == nil || li.Stay != nil {
			return fmt.Errorf("combo line %s must carry only a combo payload", li.ResourceID)
		}
	case LineItemEquipment:
		if li.Stay != nil || li.Combo != nil {
			return fmt.Errorf("equipment line %s must not carry a payload", li.ResourceID)
		}
	default:
		return fmt.Errorf("unknown line item kind %q", li.Kind)
	}
	if li.Quantity <= 0 {
		return fmt.Errorf("line %s quantity must be positive", li.ResourceID)
	}
	return nil
}

// DaysBetween counts calendar days from a to b, ignoring time of day.
func DaysBetween(a, b time.Time) int {
	a = DateOf(a)
	b = DateOf(b)
	return int(b.Sub(a).Hours() / 24)
}

// DateOf truncates t to midnight UTC of its calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
