package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/clausewise-backend/api/responses"
	pkgerrors "github.com/angelmondragon/clausewise-backend/pkg/errors"
	"github.com/angelmondragon/clausewise-backend/pkg/logger"
)

type featureGate interface {
	CheckFeatureAllowed(ctx context.Context, userID uuid.UUID, feature string) error
}

// RequireFeature rejects callers whose plan does not include feature. It must
// run after Auth.
func RequireFeature(gate featureGate, feature string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeAuthRequired, "authentication required"))
				return
			}
			if gate == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "entitlement gate unavailable"))
				return
			}
			if err := gate.CheckFeatureAllowed(r.Context(), userID, feature); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
