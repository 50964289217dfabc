package contracts

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/clausewise-backend/internal/entitlements"
	"github.com/angelmondragon/clausewise-backend/pkg/db/models"
	"github.com/angelmondragon/clausewise-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/clausewise-backend/pkg/errors"
	"github.com/angelmondragon/clausewise-backend/pkg/logger"
	"github.com/angelmondragon/clausewise-backend/pkg/pagination"
	"github.com/angelmondragon/clausewise-backend/pkg/queue"
	"github.com/angelmondragon/clausewise-backend/pkg/storage"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2026, time.October, 14, 9, 0, 0, 0, time.UTC)

type stubRepo struct {
	mu        sync.Mutex
	contracts map[uuid.UUID]*models.Contract
	analyses  map[uuid.UUID]*models.ContractAnalysis
	createErr error
	saveErr   error
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		contracts: map[uuid.UUID]*models.Contract{},
		analyses:  map[uuid.UUID]*models.ContractAnalysis{},
	}
}

func (s *stubRepo) Create(_ context.Context, c *models.Contract) (*models.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return nil, s.createErr
	}
	copied := *c
	s.contracts[c.ID] = &copied
	return c, nil
}

func (s *stubRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contracts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *c
	return &copied, nil
}

func (s *stubRepo) FindByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.Contract, error) {
	c, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return c, nil
}

func (s *stubRepo) ListForUser(_ context.Context, userID uuid.UUID, limit int, _ *pagination.Cursor) ([]models.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []models.Contract
	for _, c := range s.contracts {
		if c.UserID == userID {
			rows = append(rows, *c)
		}
	}
	if len(rows) > pagination.LimitWithBuffer(limit) {
		rows = rows[:pagination.LimitWithBuffer(limit)]
	}
	return rows, nil
}

func (s *stubRepo) UpdateStatus(_ context.Context, id uuid.UUID, status enums.ContractStatus, msg *string) (*models.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contracts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	c.Status = status
	c.ErrorMessage = msg
	copied := *c
	return &copied, nil
}

func (s *stubRepo) ClaimForProcessing(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contracts[id]
	if !ok || c.Status.IsTerminal() {
		return false, nil
	}
	c.Status = enums.ContractStatusProcessing
	return true, nil
}

func (s *stubRepo) SaveAnalysis(_ context.Context, a *models.ContractAnalysis, analyzedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	c, ok := s.contracts[a.ContractID]
	if !ok || c.Status != enums.ContractStatusProcessing {
		return ErrNotProcessing
	}
	if _, exists := s.analyses[a.ContractID]; !exists {
		s.analyses[a.ContractID] = a
	}
	c.Status = enums.ContractStatusCompleted
	c.AnalyzedAt = &analyzedAt
	c.ErrorMessage = nil
	return nil
}

func (s *stubRepo) FindAnalysis(_ context.Context, contractID uuid.UUID) (*models.ContractAnalysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.analyses[contractID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return a, nil
}

func (s *stubRepo) status(id uuid.UUID) enums.ContractStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contracts[id].Status
}

type stubGate struct {
	uploadErrs []error
	featureErr error
	uploads    int
	quota      entitlements.Quota
}

func (g *stubGate) CheckUploadAllowed(context.Context, uuid.UUID, int64) error {
	idx := g.uploads
	g.uploads++
	if idx < len(g.uploadErrs) {
		return g.uploadErrs[idx]
	}
	return nil
}

func (g *stubGate) CheckFeatureAllowed(context.Context, uuid.UUID, string) error {
	return g.featureErr
}

func (g *stubGate) GetQuota(context.Context, uuid.UUID) (entitlements.Quota, error) {
	return g.quota, nil
}

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	putErr  error
	deleted []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memoryStore) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	if m.putErr != nil {
		return m.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.types[key] = contentType
	return nil
}

func (m *memoryStore) Get(_ context.Context, key string, maxBytes int64) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	if int64(len(data)) > maxBytes {
		return nil, storage.ErrObjectTooLarge
	}
	return data, nil
}

func (m *memoryStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://storage.local/" + key + "?signed=1", nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, key)
	delete(m.objects, key)
	return nil
}

type stubQueue struct {
	jobs []queue.Job
	err  error
}

func (q *stubQueue) Enqueue(_ context.Context, job queue.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "contracts-test", Level: logger.ParseLevel("error"), Output: io.Discard})
}

func pdfBytes() []byte {
	return []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")
}

func docxBytes(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	body := ""
	for _, p := range paragraphs {
		body += "<w:p><w:r><w:t>" + p + "</w:t></w:r></w:p>"
	}
	doc := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`
	if _, err := w.Write([]byte(doc)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error %s, got %v", code, err)
	}
	if typed.Code() != code {
		t.Fatalf("expected code %s, got %s (%v)", code, typed.Code(), err)
	}
}
