package middleware

import (
	"crypto/subtle"
	"net/http"

	"stay-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Identity headers set by the upstream identity provider after login.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

// Actor reads the caller identity forwarded by the gateway and stores it in
// the request context. Requests without a valid identity are rejected.
func Actor(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawID := r.Header.Get(HeaderActorID)
			if rawID == "" {
				utils.ResponseUnauthorized(w, "Missing actor identity")
				return
			}

			id, err := uuid.Parse(rawID)
			if err != nil || id == uuid.Nil {
				logger.Warn("Invalid actor id", zap.String("actor_id", rawID), zap.String("path", r.URL.Path))
				utils.ResponseUnauthorized(w, "Invalid actor identity")
				return
			}

			role := r.Header.Get(HeaderActorRole)
			switch role {
			case "":
				role = utils.RoleCustomer
			case utils.RoleCustomer, utils.RoleStaff:
			default:
				logger.Warn("Unknown actor role", zap.String("role", role), zap.String("actor_id", rawID))
				utils.ResponseUnauthorized(w, "Invalid actor role")
				return
			}

			ctx := utils.SetActorContext(r.Context(), utils.Actor{ID: id, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Staff only lets staff actors through. It must run after Actor.
func Staff(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := utils.GetActorFromContext(r.Context())
			if !ok {
				utils.ResponseUnauthorized(w, "Authentication required")
				return
			}

			if !actor.IsStaff() {
				logger.Warn("Staff check: non-staff access attempt",
					zap.String("actor_id", actor.ID.String()),
					zap.String("path", r.URL.Path))
				utils.ResponseForbidden(w, "Staff access required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SharedSecret guards machine-to-machine endpoints such as payment webhooks.
// An empty secret disables the check.
func SharedSecret(header, secret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(header)
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				logger.Warn("Rejected request with bad shared secret", zap.String("path", r.URL.Path), zap.String("ip", r.RemoteAddr))
				utils.ResponseUnauthorized(w, "Invalid webhook credentials")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
