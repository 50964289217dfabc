package controllers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/clausewise-backend/api/middleware"
	"github.com/angelmondragon/clausewise-backend/internal/contracts"
	pkgerrors "github.com/angelmondragon/clausewise-backend/pkg/errors"
)

type testFile struct {
	field string
	name  string
	body  string
}

func multipartRequest(t *testing.T, url string, files ...testFile) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write([]byte(f.body)); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, url, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func asUser(req *http.Request, userID uuid.UUID) *http.Request {
	return req.WithContext(middleware.WithUserID(req.Context(), userID))
}

func TestContractsUploadPassesFileToService(t *testing.T) {
	userID := uuid.New()
	svc := &stubContractsService{dto: &contracts.ContractDTO{ID: uuid.New(), FileName: "nda.pdf"}}
	handler := ContractsUpload(svc, 1<<20, nil)

	req := asUser(multipartRequest(t, "/api/v1/contracts/upload", testFile{field: "contract", name: "nda.pdf", body: "%PDF-1.4 body"}), userID)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d (%s)", rec.Code, rec.Body.String())
	}
	if len(svc.uploads) != 1 {
		t.Fatalf("expected one upload, got %d", len(svc.uploads))
	}
	got := svc.uploads[0]
	if got.userID != userID || got.name != "nda.pdf" || got.size != int64(len("%PDF-1.4 body")) || got.body != "%PDF-1.4 body" {
		t.Fatalf("unexpected upload %+v", got)
	}
}

func TestContractsUploadRequiresFileField(t *testing.T) {
	svc := &stubContractsService{}
	handler := ContractsUpload(svc, 1<<20, nil)

	req := asUser(multipartRequest(t, "/api/v1/contracts/upload", testFile{field: "document", name: "x.pdf", body: "x"}), uuid.New())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if len(svc.uploads) != 0 {
		t.Fatal("service should not be called")
	}
}

func TestContractsUploadRequiresAuth(t *testing.T) {
	handler := ContractsUpload(&stubContractsService{}, 1<<20, nil)
	req := multipartRequest(t, "/api/v1/contracts/upload", testFile{field: "contract", name: "x.pdf", body: "x"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != string(pkgerrors.CodeAuthRequired) {
		t.Fatalf("expected AUTH_REQUIRED got %s", code)
	}
}

func TestContractsUploadRejectsOversizedBody(t *testing.T) {
	svc := &stubContractsService{}
	handler := ContractsUpload(svc, 16, nil)

	big := bytes.Repeat([]byte("a"), 2<<20)
	req := asUser(multipartRequest(t, "/api/v1/contracts/upload", testFile{field: "contract", name: "big.pdf", body: string(big)}), uuid.New())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 got %d", rec.Code)
	}
	if len(svc.uploads) != 0 {
		t.Fatal("service should not be called")
	}
}

func TestContractsUploadDeniesExpiredBeforeReadingBody(t *testing.T) {
	svc := &stubContractsService{precheckErr: pkgerrors.New(pkgerrors.CodeSubscriptionExpired, "subscription expired")}
	handler := ContractsUpload(svc, 16, nil)

	big := bytes.Repeat([]byte("a"), 2<<20)
	req := asUser(multipartRequest(t, "/api/v1/contracts/upload", testFile{field: "contract", name: "big.pdf", body: string(big)}), uuid.New())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != string(pkgerrors.CodeSubscriptionExpired) {
		t.Fatalf("expected SUBSCRIPTION_EXPIRED got %s", code)
	}
	if len(svc.uploads) != 0 {
		t.Fatal("service upload should not be called")
	}
}

func TestContractsUploadSurfacesDenial(t *testing.T) {
	svc := &stubContractsService{err: pkgerrors.New(pkgerrors.CodeQuotaExceeded, "monthly contract limit reached")}
	handler := ContractsUpload(svc, 1<<20, nil)

	req := asUser(multipartRequest(t, "/api/v1/contracts/upload", testFile{field: "contract", name: "nda.pdf", body: "x"}), uuid.New())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != string(pkgerrors.CodeQuotaExceeded) {
		t.Fatalf("expected QUOTA_EXCEEDED got %s", code)
	}
}

func TestContractsBatchCollectsAllFiles(t *testing.T) {
	svc := &stubContractsService{result: &contracts.BatchResult{}}
	handler := ContractsBatch(svc, 1<<20, nil)

	req := asUser(multipartRequest(t, "/api/v1/contracts/batch",
		testFile{field: "contracts", name: "a.pdf", body: "a"},
		testFile{field: "contracts", name: "b.docx", body: "bb"},
	), uuid.New())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d (%s)", rec.Code, rec.Body.String())
	}
	if len(svc.batch) != 2 || svc.batch[0].name != "a.pdf" || svc.batch[1].body != "bb" {
		t.Fatalf("unexpected batch %+v", svc.batch)
	}
}

func TestContractsListParsesPagination(t *testing.T) {
	svc := &stubContractsService{}
	handler := ContractsList(svc, nil)

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/v1/contracts?limit=5&cursor=abc", nil), uuid.New())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.params.Limit != 5 || svc.params.Cursor != "abc" {
		t.Fatalf("unexpected params %+v", svc.params)
	}

	req = asUser(httptest.NewRequest(http.MethodGet, "/api/v1/contracts?limit=0", nil), uuid.New())
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for limit=0 got %d", rec.Code)
	}
}

func TestContractStatusRejectsBadID(t *testing.T) {
	handler := ContractStatus(&stubContractsService{}, nil)
	req := asUser(httptest.NewRequest(http.MethodGet, "/api/v1/contracts/nope/status", nil), uuid.New())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}
