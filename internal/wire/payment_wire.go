package wire

import (
	"stay-booking/internal/adaptor"
	"stay-booking/pkg/middleware"
	"stay-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const webhookTokenHeader = "X-Webhook-Token"

func wirePayment(r chi.Router, paymentHandler *adaptor.PaymentHandler, config *utils.Config, log *zap.Logger) {
	r.Route("/api/webhooks", func(r chi.Router) {
		r.With(middleware.SharedSecret(webhookTokenHeader, config.Payment.WebhookSecret, log)).
			Post("/payment", paymentHandler.Webhook)

		// authenticity comes from re-fetching the event from Omise
		r.Post("/omise", paymentHandler.OmiseWebhook)
	})
}
