package entity

import (
	"github.com/google/uuid"
)

// Service is a bookable stay with per-day capacity.
type Service struct {
	BaseNoDelete
	Name              string `db:"name"`
	Price             int64  `db:"price"`
	MinDays           int    `db:"min_days"`
	MaxDays           int    `db:"max_days"`
	MinCapacity       int    `db:"min_capacity"`
	MaxCapacity       int    `db:"max_capacity"`
	AllowExtraPeople  bool   `db:"allow_extra_people"`
	MaxExtraPeople    int    `db:"max_extra_people"`
	ExtraFeePerPerson int64  `db:"extra_fee_per_person"`
	DailyCapacity     int    `db:"daily_capacity"`
	IsActive          bool   `db:"is_active"`
}

// MaxPartySize is the largest party the service accepts, extras included.
func (s *Service) MaxPartySize() int {
	if s.AllowExtraPeople {
		return s.MaxCapacity + s.MaxExtraPeople
	}
	return s.MaxCapacity
}

type ComboConstituent struct {
	ServiceID uuid.UUID `db:"service_id" json:"service_id"`
	Quantity  int       `db:"quantity" json:"quantity"`
}

// Combo is priced as one line but consumes capacity of each constituent.
type Combo struct {
	BaseNoDelete
	Name         string `db:"name"`
	Price        int64  `db:"price"`
	IsActive     bool   `db:"is_active"`
	Constituents []ComboConstituent
}

// Equipment is a flat stock pool, not partitioned by date.
type Equipment struct {
	BaseNoDelete
	Name     string `db:"name"`
	Price    int64  `db:"price"`
	Stock    int    `db:"stock"`
	IsActive bool   `db:"is_active"`
}

// Catalog is a read snapshot used for the duration of one aggregation call.
type Catalog struct {
	Services  map[uuid.UUID]*Service
	Combos    map[uuid.UUID]*Combo
	Equipment map[uuid.UUID]*Equipment
}

func NewCatalog() *Catalog {
	return &Catalog{
		Services:  make(map[uuid.UUID]*Service),
		Combos:    make(map[uuid.UUID]*Combo),
		Equipment: make(map[uuid.UUID]*Equipment),
	}
}
