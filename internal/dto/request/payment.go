package request

const (
	PaymentCallbackPaid   = "paid"
	PaymentCallbackFailed = "failed"
)

// PaymentCallbackRequest is the provider-neutral shape of a payment
// notification, whichever channel delivered it.
type PaymentCallbackRequest struct {
	ProviderTransactionID string `json:"provider_transaction_id" validate:"required,max=100"`
	BookingID             string `json:"booking_id,omitempty" validate:"omitempty,uuid"`
	Status                string `json:"status" validate:"required,oneof=paid failed"`
	Amount                int64  `json:"amount" validate:"min=0"`
}
