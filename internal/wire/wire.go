package wire

import (
	"stay-booking/internal/adaptor"
	"stay-booking/internal/usecase"
	"stay-booking/pkg/middleware"
	"stay-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type App struct {
	Router *chi.Mux
}

// Wiring builds the handlers and mounts every route. resolver is nil unless
// the Omise gateway is active.
func Wiring(service *usecase.Service, resolver adaptor.EventResolver, config *utils.Config, logger *zap.Logger) *App {
	handler := adaptor.NewHandler(service, resolver, logger)

	return &App{
		Router: setupRouter(handler, config, logger),
	}
}

func setupRouter(handler *adaptor.Handler, config *utils.Config, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Recover sits inside Logger so panics are logged with the request id
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))

	wireBooking(r, handler.Booking, logger)
	wirePayment(r, handler.Payment, config, logger)
	wireAdmin(r, handler.Admin, logger)

	return r
}
