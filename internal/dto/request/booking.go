package request

type ServiceItemRequest struct {
	ServiceID string `json:"service_id" validate:"required,uuid"`
	CheckIn   string `json:"check_in" validate:"required,datetime=2006-01-02"`
	CheckOut  string `json:"check_out" validate:"required,datetime=2006-01-02"`
	PartySize int    `json:"party_size" validate:"required,min=1"`
	Quantity  int    `json:"quantity,omitempty" validate:"omitempty,min=1,max=50"`
}

// ComboItemRequest inherits the booking-level dates unless it declares its own.
type ComboItemRequest struct {
	ComboID   string `json:"combo_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=50"`
	CheckIn   string `json:"check_in,omitempty" validate:"omitempty,datetime=2006-01-02"`
	CheckOut  string `json:"check_out,omitempty" validate:"omitempty,datetime=2006-01-02"`
	PartySize int    `json:"party_size,omitempty" validate:"omitempty,min=1"`
}

type EquipmentItemRequest struct {
	EquipmentID string `json:"equipment_id" validate:"required,uuid"`
	Quantity    int    `json:"quantity" validate:"required,min=1"`
	CheckIn     string `json:"check_in,omitempty" validate:"omitempty,datetime=2006-01-02"`
	CheckOut    string `json:"check_out,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

type CreateBookingRequest struct {
	// CustomerID is honoured for staff only; customers always book for themselves.
	CustomerID     string                 `json:"customer_id,omitempty" validate:"omitempty,uuid"`
	CheckIn        string                 `json:"check_in,omitempty" validate:"omitempty,datetime=2006-01-02"`
	CheckOut       string                 `json:"check_out,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Services       []ServiceItemRequest   `json:"services,omitempty" validate:"required_without_all=Combos Equipment,dive"`
	Combos         []ComboItemRequest     `json:"combos,omitempty" validate:"dive"`
	Equipment      []EquipmentItemRequest `json:"equipment,omitempty" validate:"dive"`
	Note           string                 `json:"note,omitempty" validate:"max=500"`
	PaymentMethod  string                 `json:"payment_method,omitempty" validate:"omitempty,max=50"`
	IdempotencyKey string                 `json:"idempotency_key,omitempty" validate:"omitempty,max=64"`
}

// ItemCount is the number of requested lines of every kind.
func (r *CreateBookingRequest) ItemCount() int {
	return len(r.Services) + len(r.Combos) + len(r.Equipment)
}

type AvailabilityRequest struct {
	From string `json:"from" validate:"required,datetime=2006-01-02"`
	To   string `json:"to" validate:"required,datetime=2006-01-02"`
}
