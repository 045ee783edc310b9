package adaptor

import (
	"stay-booking/internal/usecase"

	"go.uber.org/zap"
)

type Handler struct {
	Booking *BookingHandler
	Payment *PaymentHandler
	Admin   *AdminHandler
}

// NewHandler builds every handler. resolver may be nil.
func NewHandler(service *usecase.Service, resolver EventResolver, log *zap.Logger) *Handler {
	return &Handler{
		Booking: NewBookingHandler(service.Booking, service.Lifecycle, log),
		Payment: NewPaymentHandler(service.Lifecycle, resolver, log),
		Admin:   NewAdminHandler(service.Sweeper, log),
	}
}
