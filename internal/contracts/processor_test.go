package contracts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/angelmondragon/clausewise-backend/internal/analysis"
	"github.com/angelmondragon/clausewise-backend/internal/plans"
	"github.com/angelmondragon/clausewise-backend/pkg/db/models"
	"github.com/angelmondragon/clausewise-backend/pkg/enums"
	"github.com/angelmondragon/clausewise-backend/pkg/llm"
	"github.com/angelmondragon/clausewise-backend/pkg/metrics"
	"github.com/angelmondragon/clausewise-backend/pkg/queue"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

type stubEngine struct {
	raw       *analysis.RawAnalysis
	err       error
	calls     []analysis.Request
	onAnalyze func()
}

func (e *stubEngine) Analyze(_ context.Context, req analysis.Request) (*analysis.RawAnalysis, error) {
	e.calls = append(e.calls, req)
	if e.onAnalyze != nil {
		e.onAnalyze()
	}
	return e.raw, e.err
}

type stubUserLookup struct {
	user *models.User
}

func (s stubUserLookup) FindByID(context.Context, uuid.UUID) (*models.User, error) {
	if s.user == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

type processorFixture struct {
	proc    *Processor
	repo    *stubRepo
	store   *memoryStore
	engine  *stubEngine
	metrics *metrics.AnalysisMetrics
	reg     *prometheus.Registry
}

func newProcessorFixture(t *testing.T, engine *stubEngine) *processorFixture {
	t.Helper()
	reg := prometheus.NewRegistry()
	f := &processorFixture{
		repo:    newStubRepo(),
		store:   newMemoryStore(),
		engine:  engine,
		metrics: metrics.NewAnalysisMetrics(reg),
		reg:     reg,
	}
	proc, err := NewProcessor(ProcessorParams{
		Repo:    f.repo,
		Users:   stubUserLookup{user: &models.User{SubscriptionTier: enums.SubscriptionTierPro}},
		Catalog: plans.Default(),
		Store:   f.store,
		Engine:  engine,
		Metrics: f.metrics,
		Logger:  testLogger(),
		Now:     func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}
	f.proc = proc
	return f
}

func (f *processorFixture) seed(t *testing.T, data []byte, fileType enums.FileType) queue.Job {
	t.Helper()
	userID := uuid.New()
	contract := &models.Contract{
		ID:            uuid.New(),
		UserID:        userID,
		FileName:      "agreement",
		FileType:      fileType,
		FileSizeBytes: int64(len(data)),
		StorageKey:    "contracts/" + userID.String() + "/agreement",
		Status:        enums.ContractStatusPending,
		UploadedAt:    fixedNow,
	}
	if _, err := f.repo.Create(context.Background(), contract); err != nil {
		t.Fatalf("seed contract: %v", err)
	}
	f.store.objects[contract.StorageKey] = data
	job := queue.NewJob(contract.ID, userID, fixedNow)
	job.Attempt = 1
	return job
}

func completeRaw() *analysis.RawAnalysis {
	return &analysis.RawAnalysis{
		OverallRisk: "low",
		Confidence:  95,
		KeyInformation: &analysis.RawKeyInformation{
			Parties: []analysis.Party{{Name: "Acme Corp", Type: enums.PartyTypeOrganization}},
		},
	}
}

func TestProcessorCompletesAnalysis(t *testing.T) {
	engine := &stubEngine{raw: completeRaw()}
	f := newProcessorFixture(t, engine)
	job := f.seed(t, docxBytes(t, "This Agreement is between Acme Corp and Beta LLC."), enums.FileTypeDOCX)

	if err := f.proc.Handle(context.Background(), job); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := f.repo.status(job.ContractID); got != enums.ContractStatusCompleted {
		t.Fatalf("expected completed, got %s", got)
	}
	if len(engine.calls) != 1 || engine.calls[0].Model != "gpt-4" {
		t.Fatalf("expected pro plan model, got %+v", engine.calls)
	}
	if engine.calls[0].Text != "This Agreement is between Acme Corp and Beta LLC." {
		t.Fatalf("unexpected extracted text %q", engine.calls[0].Text)
	}

	stored := f.repo.analyses[job.ContractID]
	if stored == nil {
		t.Fatal("analysis not saved")
	}
	if stored.OverallRisk != enums.RiskLevelHigh || stored.Confidence > 70 {
		t.Fatalf("missing required clauses must escalate, got %s/%d", stored.OverallRisk, stored.Confidence)
	}
	var flags []analysis.RiskFlag
	if err := json.Unmarshal(stored.RiskFlags, &flags); err != nil {
		t.Fatalf("decode flags: %v", err)
	}
	missing := countMissingClauseFlags(flags)
	if missing == 0 {
		t.Fatal("expected synthesized missing clause flags")
	}
	if got := counterValue(t, f.reg, "clausewise_analysis_missing_clause_flags_total"); got != float64(missing) {
		t.Fatalf("expected %d synthesized flags counted, got %v", missing, got)
	}
}

func TestProcessorSkipsTerminalContracts(t *testing.T) {
	engine := &stubEngine{raw: completeRaw()}
	f := newProcessorFixture(t, engine)
	job := f.seed(t, docxBytes(t, "text"), enums.FileTypeDOCX)
	if _, err := f.repo.UpdateStatus(context.Background(), job.ContractID, enums.ContractStatusCompleted, nil); err != nil {
		t.Fatalf("update: %v", err)
	}

	if err := f.proc.Handle(context.Background(), job); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(engine.calls) != 0 {
		t.Fatal("terminal contract must not be analyzed again")
	}
}

func TestProcessorSkipsContractFailedDuringAnalysis(t *testing.T) {
	engine := &stubEngine{raw: completeRaw()}
	f := newProcessorFixture(t, engine)
	job := f.seed(t, docxBytes(t, "Some agreement text"), enums.FileTypeDOCX)
	msg := "analysis timed out"
	engine.onAnalyze = func() {
		if _, err := f.repo.UpdateStatus(context.Background(), job.ContractID, enums.ContractStatusFailed, &msg); err != nil {
			t.Fatalf("update: %v", err)
		}
	}

	if err := f.proc.Handle(context.Background(), job); err != nil {
		t.Fatalf("expected skip to ack, got %v", err)
	}
	if got := f.repo.status(job.ContractID); got != enums.ContractStatusFailed {
		t.Fatalf("failed contract must stay failed, got %s", got)
	}
	if _, ok := f.repo.analyses[job.ContractID]; ok {
		t.Fatal("analysis must not be stored for a failed contract")
	}
}

func TestProcessorFailsPermanentlyOnUnreadableDocument(t *testing.T) {
	engine := &stubEngine{raw: completeRaw()}
	f := newProcessorFixture(t, engine)
	job := f.seed(t, []byte("not a pdf"), enums.FileTypePDF)

	err := f.proc.Handle(context.Background(), job)
	if !queue.IsPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if got := f.repo.status(job.ContractID); got != enums.ContractStatusFailed {
		t.Fatalf("expected failed, got %s", got)
	}
	if len(engine.calls) != 0 {
		t.Fatal("engine must not run without text")
	}
}

func TestProcessorRetriesTransientEngineErrors(t *testing.T) {
	engine := &stubEngine{err: &llm.APIError{StatusCode: http.StatusServiceUnavailable, Message: "overloaded"}}
	f := newProcessorFixture(t, engine)
	job := f.seed(t, docxBytes(t, "Some agreement text"), enums.FileTypeDOCX)

	err := f.proc.Handle(context.Background(), job)
	if err == nil || queue.IsPermanent(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
	if got := f.repo.status(job.ContractID); got != enums.ContractStatusProcessing {
		t.Fatalf("expected processing while retrying, got %s", got)
	}

	job.Attempt = 3
	job.LastAttempt = true
	err = f.proc.Handle(context.Background(), job)
	if !queue.IsPermanent(err) {
		t.Fatalf("expected final attempt to be permanent, got %v", err)
	}
	if got := f.repo.status(job.ContractID); got != enums.ContractStatusFailed {
		t.Fatalf("expected failed after last attempt, got %s", got)
	}
}

func TestProcessorFailsOnMalformedOutput(t *testing.T) {
	engine := &stubEngine{err: analysis.ErrMalformedAnalysis}
	f := newProcessorFixture(t, engine)
	job := f.seed(t, docxBytes(t, "Some agreement text"), enums.FileTypeDOCX)

	err := f.proc.Handle(context.Background(), job)
	if !queue.IsPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	c, _ := f.repo.FindByID(context.Background(), job.ContractID)
	if c.Status != enums.ContractStatusFailed || c.ErrorMessage == nil || *c.ErrorMessage != "analysis service returned an unusable result" {
		t.Fatalf("unexpected contract %+v", c)
	}
}

func TestProcessorRetriesSaveFailures(t *testing.T) {
	engine := &stubEngine{raw: completeRaw()}
	f := newProcessorFixture(t, engine)
	f.repo.saveErr = errors.New("deadlock detected")
	job := f.seed(t, docxBytes(t, "Some agreement text"), enums.FileTypeDOCX)

	err := f.proc.Handle(context.Background(), job)
	if err == nil || queue.IsPermanent(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		total := 0.0
		for _, metric := range family.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
		return total
	}
	return 0
}
