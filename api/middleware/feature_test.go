package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/clausewise-backend/pkg/errors"
)

type stubFeatureGate struct {
	err     error
	feature string
	userID  uuid.UUID
}

func (s *stubFeatureGate) CheckFeatureAllowed(ctx context.Context, userID uuid.UUID, feature string) error {
	s.userID = userID
	s.feature = feature
	return s.err
}

func TestRequireFeature(t *testing.T) {
	userID := uuid.New()
	cases := []struct {
		name     string
		authed   bool
		gateErr  error
		wantCode int
	}{
		{name: "allowed", authed: true, wantCode: http.StatusOK},
		{name: "denied", authed: true, gateErr: pkgerrors.New(pkgerrors.CodeFeatureUnavailable, "batchAnalysis not available"), wantCode: http.StatusForbidden},
		{name: "anonymous", authed: false, wantCode: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gate := &stubFeatureGate{err: tc.gateErr}
			handler := RequireFeature(gate, "batchAnalysis", nil)(okHandler())
			req := httptest.NewRequest(http.MethodPost, "/api/v1/contracts/batch", nil)
			if tc.authed {
				req = req.WithContext(WithUserID(req.Context(), userID))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.wantCode {
				t.Fatalf("expected %d got %d", tc.wantCode, rec.Code)
			}
			if tc.authed && (gate.feature != "batchAnalysis" || gate.userID != userID) {
				t.Fatalf("gate called with %q/%s", gate.feature, gate.userID)
			}
		})
	}
}
