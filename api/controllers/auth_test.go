package controllers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/clausewise-backend/internal/auth"
	"github.com/angelmondragon/clausewise-backend/internal/users"
	pkgerrors "github.com/angelmondragon/clausewise-backend/pkg/errors"
)

func TestAuthRegisterReturnsCreated(t *testing.T) {
	svc := &stubAuthService{session: &auth.SessionResponse{TokenPair: auth.TokenPair{AccessToken: "a", RefreshToken: "r"}}}
	body := `{"email":"ada@example.com","password":"correct-horse","name":"Ada"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	AuthRegister(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestAuthRegisterRejectsInvalidBody(t *testing.T) {
	svc := &stubAuthService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(`{"email":"nope","password":"x"}`))
	rec := httptest.NewRecorder()
	AuthRegister(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != string(pkgerrors.CodeValidation) {
		t.Fatalf("expected validation code got %s", code)
	}
}

func TestAuthLoginInvalidCredentials(t *testing.T) {
	svc := &stubAuthService{err: pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid email or password")}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"ada@example.com","password":"wrong-pass"}`))
	rec := httptest.NewRecorder()
	AuthLogin(svc, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestAuthRefreshPassesBothTokens(t *testing.T) {
	svc := &stubAuthService{pair: &auth.TokenPair{AccessToken: "new", RefreshToken: "rotated"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", strings.NewReader(`{"refreshToken":"old-refresh"}`))
	req.Header.Set("Authorization", "Bearer old-access")
	rec := httptest.NewRecorder()
	AuthRefresh(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.gotAccess != "old-access" || svc.gotRefresh != "old-refresh" {
		t.Fatalf("unexpected tokens access=%q refresh=%q", svc.gotAccess, svc.gotRefresh)
	}
}

func TestAuthRefreshRequiresAccessToken(t *testing.T) {
	svc := &stubAuthService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", strings.NewReader(`{"refreshToken":"old-refresh"}`))
	rec := httptest.NewRecorder()
	AuthRefresh(svc, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestAuthLogout(t *testing.T) {
	svc := &stubAuthService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer access-1")
	rec := httptest.NewRecorder()
	AuthLogout(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.gotAccess != "access-1" {
		t.Fatalf("expected access token forwarded, got %q", svc.gotAccess)
	}
}

func TestMeReturnsUser(t *testing.T) {
	userID := uuid.New()
	svc := &stubAuthService{user: &users.UserDTO{ID: userID, Email: "ada@example.com"}}
	req := asUser(httptest.NewRequest(http.MethodGet, "/api/v1/me", nil), userID)
	rec := httptest.NewRecorder()
	Me(svc, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ada@example.com") {
		t.Fatalf("expected email in body, got %s", rec.Body.String())
	}
}
