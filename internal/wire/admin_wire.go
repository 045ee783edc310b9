package wire

import (
	"stay-booking/internal/adaptor"
	"stay-booking/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireAdmin(r chi.Router, adminHandler *adaptor.AdminHandler, log *zap.Logger) {
	r.Get("/health", adminHandler.Health)

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Actor(log))
		r.Use(middleware.Staff(log))

		r.Post("/sweep", adminHandler.RunSweep)
	})
}
