package response

import (
	"time"

	"stay-booking/internal/data/entity"
)

type LineItemResponse struct {
	ID         string              `json:"id"`
	Position   int                 `json:"position"`
	Kind       entity.LineItemKind `json:"kind"`
	ResourceID string              `json:"resource_id"`
	Name       string              `json:"name"`
	Quantity   int                 `json:"quantity"`
	UnitPrice  int64               `json:"unit_price"`
	Subtotal   int64               `json:"subtotal"`
	CheckIn    string              `json:"check_in"`
	CheckOut   string              `json:"check_out"`
	Stay       *entity.StayDetail  `json:"stay,omitempty"`
	Combo      *entity.ComboDetail `json:"combo,omitempty"`
}

type PaymentResponse struct {
	ID                    string               `json:"id"`
	BookingID             string               `json:"booking_id"`
	Method                string               `json:"method"`
	Status                entity.PaymentStatus `json:"status"`
	Amount                int64                `json:"amount"`
	Currency              string               `json:"currency"`
	ProviderTransactionID *string              `json:"provider_transaction_id,omitempty"`
	PaymentURL            *string              `json:"payment_url,omitempty"`
	PaidAt                *time.Time           `json:"paid_at,omitempty"`
	CreatedAt             time.Time            `json:"created_at"`
}

type BookingResponse struct {
	ID            string               `json:"id"`
	Code          string               `json:"code"`
	CustomerID    string               `json:"customer_id"`
	CheckIn       string               `json:"check_in"`
	CheckOut      string               `json:"check_out"`
	TotalPrice    int64                `json:"total_price"`
	Currency      string               `json:"currency"`
	Status        entity.BookingStatus `json:"status"`
	Note          string               `json:"note,omitempty"`
	ReservationID *string              `json:"reservation_id,omitempty"`
	Items         []LineItemResponse   `json:"items,omitempty"`
	Payment       *PaymentResponse     `json:"payment,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

type QuoteLineResponse struct {
	Kind        entity.LineItemKind `json:"kind"`
	ResourceID  string              `json:"resource_id"`
	Name        string              `json:"name"`
	Quantity    int                 `json:"quantity"`
	UnitPrice   int64               `json:"unit_price"`
	ExtraPeople int                 `json:"extra_people,omitempty"`
	ExtraFee    int64               `json:"extra_fee,omitempty"`
	Subtotal    int64               `json:"subtotal"`
}

type QuoteResponse struct {
	Lines    []QuoteLineResponse `json:"lines"`
	Total    int64               `json:"total"`
	Currency string              `json:"currency"`
}

type AvailabilityDay struct {
	Date      string `json:"date"`
	Available int    `json:"available"`
}

type AvailabilityResponse struct {
	ResourceID string            `json:"resource_id"`
	Days       []AvailabilityDay `json:"days"`
}

type PaymentCallbackResponse struct {
	BookingID     string               `json:"booking_id"`
	BookingStatus entity.BookingStatus `json:"booking_status"`
	PaymentStatus entity.PaymentStatus `json:"payment_status"`
	Outcome       string               `json:"outcome"`
}

type SweepResponse struct {
	Expired   int `json:"expired"`
	Completed int `json:"completed"`
}

// Helper converters
func LineItemToResponse(item *entity.LineItem) LineItemResponse {
	return LineItemResponse{
		ID:         item.ID.String(),
		Position:   item.Position,
		Kind:       item.Kind,
		ResourceID: item.ResourceID.String(),
		Name:       item.Name,
		Quantity:   item.Quantity,
		UnitPrice:  item.UnitPrice,
		Subtotal:   item.Subtotal,
		CheckIn:    item.CheckIn.Format(time.DateOnly),
		CheckOut:   item.CheckOut.Format(time.DateOnly),
		Stay:       item.Stay,
		Combo:      item.Combo,
	}
}

func PaymentToResponse(payment *entity.Payment) *PaymentResponse {
	if payment == nil {
		return nil
	}
	return &PaymentResponse{
		ID:                    payment.ID.String(),
		BookingID:             payment.BookingID.String(),
		Method:                payment.Method,
		Status:                payment.Status,
		Amount:                payment.Amount,
		Currency:              payment.Currency,
		ProviderTransactionID: payment.ProviderTransactionID,
		PaymentURL:            payment.PaymentURL,
		PaidAt:                payment.PaidAt,
		CreatedAt:             payment.CreatedAt,
	}
}

func BookingToResponse(booking *entity.Booking, payment *entity.Payment) *BookingResponse {
	resp := &BookingResponse{
		ID:         booking.ID.String(),
		Code:       booking.Code,
		CustomerID: booking.CustomerID.String(),
		CheckIn:    booking.CheckIn.Format(time.DateOnly),
		CheckOut:   booking.CheckOut.Format(time.DateOnly),
		TotalPrice: booking.TotalPrice,
		Currency:   booking.Currency,
		Status:     booking.Status,
		Note:       booking.Note,
		Payment:    PaymentToResponse(payment),
		CreatedAt:  booking.CreatedAt,
		UpdatedAt:  booking.UpdatedAt,
	}
	if booking.ReservationID != nil {
		id := booking.ReservationID.String()
		resp.ReservationID = &id
	}
	for i := range booking.Items {
		resp.Items = append(resp.Items, LineItemToResponse(&booking.Items[i]))
	}
	return resp
}
