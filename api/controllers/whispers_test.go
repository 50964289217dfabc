package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/clausewise-backend/internal/whispers"
	pkgerrors "github.com/angelmondragon/clausewise-backend/pkg/errors"
)

func withURLParam(req *http.Request, key, value string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestWhispersListPassesQuery(t *testing.T) {
	svc := &stubWhispersService{}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/whispers?theme=%20%20legal%20%20&limit=7&cursor=c1", nil)
	rec := httptest.NewRecorder()
	WhispersList(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.query.Limit != 7 || svc.query.Cursor != "c1" {
		t.Fatalf("unexpected query %+v", svc.query)
	}
	if svc.query.Theme != "legal" {
		t.Fatalf("expected trimmed theme, got %q", svc.query.Theme)
	}
}

func TestWhisperGetAnonymousHasNoViewer(t *testing.T) {
	svc := &stubWhispersService{dto: &whispers.WhisperDTO{ID: uuid.New()}}
	id := uuid.New()
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/whispers/"+id.String(), nil), "id", id.String())
	rec := httptest.NewRecorder()
	WhisperGet(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.viewer != nil {
		t.Fatalf("expected no viewer, got %v", *svc.viewer)
	}
}

func TestWhisperGetAuthenticatedPassesViewer(t *testing.T) {
	svc := &stubWhispersService{dto: &whispers.WhisperDTO{ID: uuid.New()}}
	userID := uuid.New()
	id := uuid.New()
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/whispers/"+id.String(), nil), "id", id.String())
	req = asUser(req, userID)
	rec := httptest.NewRecorder()
	WhisperGet(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.viewer == nil || *svc.viewer != userID {
		t.Fatalf("expected viewer %s, got %v", userID, svc.viewer)
	}
}

func TestWhisperGetNotFound(t *testing.T) {
	svc := &stubWhispersService{err: pkgerrors.New(pkgerrors.CodeNotFound, "whisper not found")}
	id := uuid.New()
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", id.String())
	rec := httptest.NewRecorder()
	WhisperGet(svc, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}

func TestWhisperCreate(t *testing.T) {
	svc := &stubWhispersService{dto: &whispers.WhisperDTO{ID: uuid.New()}}
	body := `{"text":"the indemnity clause was uncapped","theme":"legal"}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/whispers", strings.NewReader(body))
	rec := httptest.NewRecorder()
	WhisperCreate(svc, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without user got %d", rec.Code)
	}

	req = asUser(httptest.NewRequest(http.MethodPost, "/api/v1/whispers", strings.NewReader(body)), uuid.New())
	rec = httptest.NewRecorder()
	WhisperCreate(svc, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestWhisperReportValidatesReason(t *testing.T) {
	svc := &stubWhispersService{}
	id := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"boring"}`))
	req = asUser(withURLParam(req, "id", id.String()), uuid.New())
	rec := httptest.NewRecorder()
	WhisperReport(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"spam"}`))
	req = asUser(withURLParam(req, "id", id.String()), uuid.New())
	rec = httptest.NewRecorder()
	WhisperReport(svc, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d (%s)", rec.Code, rec.Body.String())
	}
}
