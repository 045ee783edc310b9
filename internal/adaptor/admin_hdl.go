package adaptor

import (
	"context"
	"net/http"

	"stay-booking/internal/dto/response"
	"stay-booking/pkg/utils"

	"go.uber.org/zap"
)

// SweepRunner runs one expiry and completion pass.
type SweepRunner interface {
	RunOnce(ctx context.Context) (*response.SweepResponse, error)
}

type AdminHandler struct {
	sweeper SweepRunner
	log     *zap.Logger
}

func NewAdminHandler(sweeper SweepRunner, log *zap.Logger) *AdminHandler {
	return &AdminHandler{
		sweeper: sweeper,
		log:     log.With(zap.String("handler", "admin")),
	}
}

// RunSweep handles POST /api/admin/sweep (staff only)
func (h *AdminHandler) RunSweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.sweeper.RunOnce(r.Context())
	if err != nil {
		// partial passes still report what they did
		h.log.Error("Sweep finished with errors", zap.Error(err))
		utils.ResponseJSON(w, http.StatusInternalServerError, false, "Sweep finished with errors", result, nil)
		return
	}

	utils.ResponseSuccess(w, "Sweep finished", result)
}

// Health handles GET /health
func (h *AdminHandler) Health(w http.ResponseWriter, r *http.Request) {
	utils.ResponseSuccess(w, "ok", nil)
}
