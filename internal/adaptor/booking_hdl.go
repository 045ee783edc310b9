package adaptor

import (
	"encoding/json"
	"net/http"

	"stay-booking/internal/dto/request"
	"stay-booking/internal/usecase"
	"stay-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type BookingHandler struct {
	service   usecase.BookingService
	lifecycle usecase.LifecycleService
	log       *zap.Logger
}

func NewBookingHandler(service usecase.BookingService, lifecycle usecase.LifecycleService, log *zap.Logger) *BookingHandler {
	return &BookingHandler{
		service:   service,
		lifecycle: lifecycle,
		log:       log.With(zap.String("handler", "booking")),
	}
}

// CreateBooking handles POST /api/bookings
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}

	var req request.CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}
	if key := r.Header.Get("Idempotency-Key"); key != "" && req.IdempotencyKey == "" {
		req.IdempotencyKey = key
	}

	booking, err := h.service.CreateBooking(r.Context(), actor, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "create booking")
		return
	}

	utils.ResponseCreated(w, "Booking created, awaiting payment", booking)
}

// QuoteBooking handles POST /api/bookings/quote
func (h *BookingHandler) QuoteBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}

	var req request.CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	quote, err := h.service.QuoteBooking(r.Context(), actor, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "quote booking")
		return
	}

	utils.ResponseSuccess(w, "success", quote)
}

// GetUserBookings handles GET /api/user/bookings
func (h *BookingHandler) GetUserBookings(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	req := &request.PaginatedRequest{
		Page:    utils.ParseInt(query.Get("page"), 1),
		PerPage: utils.ParseInt(query.Get("per_page"), 10),
	}

	bookings, err := h.service.GetUserBookings(r.Context(), actor, req)
	if err != nil {
		writeServiceError(w, h.log, err, "get user bookings")
		return
	}

	utils.ResponseSuccess(w, "success", bookings)
}

// GetBookingByID handles GET /api/bookings/{id}
func (h *BookingHandler) GetBookingByID(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}

	booking, err := h.service.GetBookingByID(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.log, err, "get booking by ID")
		return
	}

	utils.ResponseSuccess(w, "success", booking)
}

// CancelBooking handles POST /api/bookings/{id}/cancel
func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}

	booking, err := h.lifecycle.CancelBooking(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.log, err, "cancel booking")
		return
	}

	utils.ResponseSuccess(w, "Booking cancelled", booking)
}

// RequestPaymentIntent handles POST /api/bookings/{id}/payment-intent
func (h *BookingHandler) RequestPaymentIntent(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}

	payment, err := h.lifecycle.RequestPaymentIntent(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.log, err, "request payment intent")
		return
	}

	utils.ResponseSuccess(w, "success", payment)
}

// GetAvailability handles GET /api/availability/{resourceId}?from=&to= (public)
func (h *BookingHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := &request.AvailabilityRequest{
		From: query.Get("from"),
		To:   query.Get("to"),
	}

	availability, err := h.service.GetAvailability(r.Context(), chi.URLParam(r, "resourceId"), req)
	if err != nil {
		writeServiceError(w, h.log, err, "get availability")
		return
	}

	utils.ResponseSuccess(w, "success", availability)
}
