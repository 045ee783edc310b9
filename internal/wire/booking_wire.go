package wire

import (
	"stay-booking/internal/adaptor"
	"stay-booking/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireBooking(r chi.Router, bookingHandler *adaptor.BookingHandler, log *zap.Logger) {
	// ==================== PUBLIC ROUTES ====================
	r.Get("/api/availability/{resourceId}", bookingHandler.GetAvailability)

	// ==================== ACTOR ROUTES ====================
	r.Group(func(r chi.Router) {
		r.Use(middleware.Actor(log))

		r.Post("/api/bookings", bookingHandler.CreateBooking)
		r.Post("/api/bookings/quote", bookingHandler.QuoteBooking)
		r.Get("/api/bookings/{id}", bookingHandler.GetBookingByID)
		r.Get("/api/user/bookings", bookingHandler.GetUserBookings)

		// owner or staff; checked in the service
		r.Post("/api/bookings/{id}/cancel", bookingHandler.CancelBooking)
		r.Post("/api/bookings/{id}/payment-intent", bookingHandler.RequestPaymentIntent)
	})
}
