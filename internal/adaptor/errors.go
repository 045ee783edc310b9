package adaptor

import (
	"errors"
	"net/http"

	apperrors "stay-booking/internal/errors"
	"stay-booking/pkg/utils"

	"go.uber.org/zap"
)

// writeServiceError maps the error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error, operation string) {
	var (
		validation   *apperrors.ValidationError
		notFound     *apperrors.NotFoundError
		forbidden    *apperrors.ForbiddenError
		capacity     *apperrors.CapacityExceededError
		transition   *apperrors.InvalidStateTransitionError
		mismatch     *apperrors.PaymentMismatchError
		transient    *apperrors.TransientError
		inconsistent *apperrors.InconsistencyError
	)

	switch {
	case errors.As(err, &validation):
		log.Warn(operation+" validation failed", zap.Error(err), zap.String("operation", operation))
		utils.ResponseBadRequest(w, validation.Message, validation.Details)

	case errors.As(err, &notFound):
		log.Warn(operation+" failed - not found", zap.Error(err), zap.String("operation", operation))
		utils.ResponseNotFound(w, notFound.Message)

	case errors.As(err, &forbidden):
		log.Warn(operation+" failed - forbidden", zap.Error(err), zap.String("operation", operation))
		utils.ResponseForbidden(w, forbidden.Message)

	case errors.As(err, &capacity):
		log.Info(operation+" failed - capacity exceeded", zap.Error(err), zap.String("operation", operation))
		utils.ResponseConflict(w, capacity.Error(), map[string]any{
			"resource_id": capacity.ResourceID.String(),
			"date":        capacity.Date.Format(utils.DateLayout),
			"requested":   capacity.Requested,
			"available":   capacity.Available,
		})

	case errors.As(err, &transition):
		log.Warn(operation+" failed - invalid state", zap.Error(err), zap.String("operation", operation))
		utils.ResponseConflict(w, transition.Error(), map[string]any{
			"from": transition.From,
			"to":   transition.To,
		})

	case errors.As(err, &mismatch):
		log.Warn(operation+" failed - payment mismatch", zap.Error(err), zap.String("operation", operation))
		utils.ResponseUnprocessable(w, mismatch.Error(), map[string]any{
			"provider_transaction_id": mismatch.ProviderTransactionID,
			"expected":                mismatch.Expected,
			"received":                mismatch.Received,
		})

	case errors.As(err, &transient):
		log.Warn(operation+" failed - transient", zap.Error(err), zap.String("operation", operation))
		utils.ResponseServiceUnavailable(w, transient.Message)

	case errors.As(err, &inconsistent):
		log.Error(operation+" left inconsistent state", zap.Error(err), zap.String("operation", operation))
		utils.ResponseInternalError(w, "Internal server error")

	default:
		log.Error("Failed to "+operation, zap.Error(err), zap.String("operation", operation))
		utils.ResponseInternalError(w, "Internal server error")
	}
}

func actorOrReject(w http.ResponseWriter, r *http.Request) (utils.Actor, bool) {
	actor, ok := utils.GetActorFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
	}
	return actor, ok
}
