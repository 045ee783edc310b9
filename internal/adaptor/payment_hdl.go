package adaptor

import (
	"context"
	"encoding/json"
	"net/http"

	"stay-booking/internal/dto/request"
	"stay-booking/internal/gateway"
	"stay-booking/internal/usecase"
	"stay-booking/pkg/utils"

	"go.uber.org/zap"
)

const (
	sourceWebhook = "webhook"
	sourceOmise   = "omise"
)

// EventResolver turns a provider event id into a trusted notification.
type EventResolver interface {
	ResolveEvent(ctx context.Context, eventID string) (*gateway.Notification, error)
}

type PaymentHandler struct {
	lifecycle usecase.LifecycleService
	// resolver is nil unless the Omise gateway is configured.
	resolver EventResolver
	log      *zap.Logger
}

func NewPaymentHandler(lifecycle usecase.LifecycleService, resolver EventResolver, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		lifecycle: lifecycle,
		resolver:  resolver,
		log:       log.With(zap.String("handler", "payment")),
	}
}

// Webhook handles POST /api/webhooks/payment with a provider-neutral body.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	var req request.PaymentCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.lifecycle.HandlePaymentCallback(r.Context(), sourceWebhook, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "handle payment callback")
		return
	}

	utils.ResponseSuccess(w, "Payment callback processed", result)
}

type omiseEvent struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// OmiseWebhook handles POST /api/webhooks/omise. Only the event id is
// taken from the body; the event itself is fetched back from Omise.
func (h *PaymentHandler) OmiseWebhook(w http.ResponseWriter, r *http.Request) {
	if h.resolver == nil {
		utils.ResponseNotFound(w, "Omise webhook is not enabled")
		return
	}

	var ev omiseEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil || ev.ID == "" {
		utils.ResponseBadRequest(w, "Invalid event payload", nil)
		return
	}

	n, err := h.resolver.ResolveEvent(r.Context(), ev.ID)
	if err != nil {
		h.log.Warn("Failed to resolve omise event", zap.Error(err), zap.String("event_id", ev.ID))
		utils.ResponseServiceUnavailable(w, "Could not verify event, retry later")
		return
	}
	if n == nil {
		utils.ResponseSuccess(w, "Event ignored", nil)
		return
	}

	result, err := h.lifecycle.HandlePaymentCallback(r.Context(), sourceOmise, &request.PaymentCallbackRequest{
		ProviderTransactionID: n.ProviderTransactionID,
		BookingID:             n.BookingID,
		Status:                n.Status,
		Amount:                n.Amount,
	})
	if err != nil {
		writeServiceError(w, h.log, err, "handle omise event")
		return
	}

	utils.ResponseSuccess(w, "Payment callback processed", result)
}
