// Package ledger owns per-(resource, date) capacity counters. It is the only
// writer of capacity state.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"stay-booking/internal/data/entity"
	apperrors "stay-booking/internal/errors"

	"github.com/google/uuid"
)

// Demand asks for Count units of ResourceID on one calendar Date.
type Demand struct {
	ResourceID uuid.UUID `json:"resource_id"`
	Date       time.Time `json:"date"`
	Count      int       `json:"count"`
}

// Handle identifies exactly what one successful Reserve incremented.
type Handle struct {
	ID    uuid.UUID
	Lines []Demand
}

type Ledger interface {
	// Reserve increments every demanded counter or none of them. On conflict it
	// returns *errors.CapacityExceededError for the first conflicting key in
	// canonical order.
	Reserve(ctx context.Context, demands []Demand) (*Handle, error)
	// Release undoes a reservation. Unknown or already released handles are a no-op.
	Release(ctx context.Context, handleID uuid.UUID) error
	AvailableOn(ctx context.Context, resourceID uuid.UUID, date time.Time) (int, error)
}

// TxBound is implemented by ledgers whose writes join the database
// transaction carried by ctx and therefore roll back with it.
type TxBound interface {
	JoinsTransaction() bool
}

// JoinsTransaction reports whether l commits and rolls back with the caller's
// transaction. Other ledgers apply changes immediately.
func JoinsTransaction(l Ledger) bool {
	tb, ok := l.(TxBound)
	return ok && tb.JoinsTransaction()
}

// CapacitySource provides the total capacity for a slot created lazily.
type CapacitySource interface {
	DefaultCapacity(ctx context.Context, resourceID uuid.UUID) (int, error)
}

// CapacityFunc adapts a function to CapacitySource.
type CapacityFunc func(ctx context.Context, resourceID uuid.UUID) (int, error)

func (f CapacityFunc) DefaultCapacity(ctx context.Context, resourceID uuid.UUID) (int, error) {
	return f(ctx, resourceID)
}

type slotKey struct {
	resource uuid.UUID
	date     time.Time
}

func keyOf(d Demand) slotKey {
	return slotKey{resource: d.ResourceID, date: d.Date}
}

// less is the canonical lock order: resource id, then date.
func less(a, b Demand) bool {
	if c := compareUUID(a.ResourceID, b.ResourceID); c != 0 {
		return c < 0
	}
	return a.Date.Before(b.Date)
}

func compareUUID(a, b uuid.UUID) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Normalize truncates dates, merges duplicate keys and sorts the batch in
// canonical order.
func Normalize(demands []Demand) ([]Demand, error) {
	if len(demands) == 0 {
		return nil, apperrors.NewValidationError("reservation batch is empty")
	}

	merged := make(map[slotKey]int, len(demands))
	for _, d := range demands {
		if d.ResourceID == uuid.Nil {
			return nil, apperrors.NewFieldValidationError("resource_id", "is required")
		}
		if d.Count <= 0 {
			return nil, apperrors.NewFieldValidationError("count",
				fmt.Sprintf("must be positive for resource %s", d.ResourceID))
		}
		d.Date = entity.DateOf(d.Date)
		merged[keyOf(d)] += d.Count
	}

	out := make([]Demand, 0, len(merged))
	for k, count := range merged {
		out = append(out, Demand{ResourceID: k.resource, Date: k.date, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out, nil
}

// ExpandNights turns a stay into one demand per night in [checkIn, checkOut).
func ExpandNights(resourceID uuid.UUID, checkIn, checkOut time.Time, count int) []Demand {
	start := entity.DateOf(checkIn)
	nights := entity.DaysBetween(checkIn, checkOut)
	out := make([]Demand, 0, nights)
	for i := 0; i < nights; i++ {
		out = append(out, Demand{ResourceID: resourceID, Date: start.AddDate(0, 0, i), Count: count})
	}
	return out
}

func available(total, reserved int) int {
	if total-reserved < 0 {
		return 0
	}
	return total - reserved
}
