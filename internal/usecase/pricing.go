package usecase

import (
	"fmt"

	"stay-booking/internal/data/entity"
	apperrors "stay-booking/internal/errors"

	"github.com/google/uuid"
)

// ExtraPeoplePolicy carries the service fields that govern the extra person fee.
type ExtraPeoplePolicy struct {
	MaxCapacity       int
	AllowExtraPeople  bool
	MaxExtraPeople    int
	ExtraFeePerPerson int64
}

func policyOf(s *entity.Service) *ExtraPeoplePolicy {
	return &ExtraPeoplePolicy{
		MaxCapacity:       s.MaxCapacity,
		AllowExtraPeople:  s.AllowExtraPeople,
		MaxExtraPeople:    s.MaxExtraPeople,
		ExtraFeePerPerson: s.ExtraFeePerPerson,
	}
}

type PriceLine struct {
	Kind       entity.LineItemKind
	ResourceID uuid.UUID
	Name       string
	UnitPrice  int64
	Quantity   int
	// PartySize and Policy only matter for service lines.
	PartySize int
	Policy    *ExtraPeoplePolicy
}

type PricedLine struct {
	PriceLine
	ExtraPeople int
	ExtraFee    int64
	Subtotal    int64
}

type Quote struct {
	Lines []PricedLine
	Total int64
}

// QuotePrice computes subtotals and the total for lines. It has no side
// effects and returns the same quote for the same input.
func QuotePrice(lines []PriceLine) (*Quote, error) {
	quote := &Quote{Lines: make([]PricedLine, 0, len(lines))}

	for i, line := range lines {
		field := fmt.Sprintf("lines[%d]", i)
		if line.Quantity <= 0 {
			return nil, apperrors.NewFieldValidationError(field+".quantity", "must be positive")
		}
		if line.UnitPrice < 0 {
			return nil, apperrors.NewFieldValidationError(field+".unit_price", "must not be negative")
		}

		priced := PricedLine{
			PriceLine: line,
			Subtotal:  line.UnitPrice * int64(line.Quantity),
		}

		if line.Kind == entity.LineItemService && line.Policy != nil && line.PartySize > line.Policy.MaxCapacity {
			extra := line.PartySize - line.Policy.MaxCapacity
			if !line.Policy.AllowExtraPeople {
				return nil, apperrors.NewFieldValidationError(field+".party_size",
					fmt.Sprintf("party of %d exceeds capacity %d of %s", line.PartySize, line.Policy.MaxCapacity, line.ResourceID))
			}
			if extra > line.Policy.MaxExtraPeople {
				return nil, apperrors.NewFieldValidationError(field+".party_size",
					fmt.Sprintf("%d extra people exceed the allowed %d for %s", extra, line.Policy.MaxExtraPeople, line.ResourceID))
			}
			priced.ExtraPeople = extra
			priced.ExtraFee = int64(extra) * line.Policy.ExtraFeePerPerson
			priced.Subtotal += priced.ExtraFee
		}

		quote.Lines = append(quote.Lines, priced)
		quote.Total += priced.Subtotal
	}

	return quote, nil
}
