package contracts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/clausewise-backend/internal/analysis"
	"github.com/angelmondragon/clausewise-backend/internal/plans"
	"github.com/angelmondragon/clausewise-backend/pkg/db/models"
	"github.com/angelmondragon/clausewise-backend/pkg/enums"
	"github.com/angelmondragon/clausewise-backend/pkg/extract"
	"github.com/angelmondragon/clausewise-backend/pkg/llm"
	"github.com/angelmondragon/clausewise-backend/pkg/logger"
	"github.com/angelmondragon/clausewise-backend/pkg/metrics"
	"github.com/angelmondragon/clausewise-backend/pkg/queue"
	"github.com/angelmondragon/clausewise-backend/pkg/storage"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	maxDocumentBytes  = 100 << 20
	maxErrorLen       = 500
	defaultModelLabel = "default"
)

type processorRepository interface {
	ClaimForProcessing(ctx context.Context, id uuid.UUID) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Contract, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.ContractStatus, errorMessage *string) (*models.Contract, error)
	SaveAnalysis(ctx context.Context, result *models.ContractAnalysis, analyzedAt time.Time) error
}

type userLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type planLookup interface {
	Get(tier enums.SubscriptionTier) (plans.Plan, bool)
}

// ProcessorParams wires the analysis worker.
type ProcessorParams struct {
	Repo    processorRepository
	Users   userLookup
	Catalog planLookup
	Store   storage.ObjectStore
	Engine  analysis.Engine
	Metrics *metrics.AnalysisMetrics
	Logger  *logger.Logger
	Now     func() time.Time
}

// Processor turns a queued job into a persisted analysis.
type Processor struct {
	repo    processorRepository
	users   userLookup
	catalog planLookup
	store   storage.ObjectStore
	engine  analysis.Engine
	metrics *metrics.AnalysisMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewProcessor validates params and builds a Processor.
func NewProcessor(params ProcessorParams) (*Processor, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("contract repository required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("object store required")
	}
	if params.Engine == nil {
		return nil, fmt.Errorf("analysis engine required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Processor{
		repo:    params.Repo,
		users:   params.Users,
		catalog: params.Catalog,
		store:   params.Store,
		engine:  params.Engine,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     now,
	}, nil
}

// Handle processes one job. Contracts already completed or failed, before
// or during analysis, are skipped. Permanent failures and final attempts mark
// the contract failed; other failures are returned for redelivery.
func (p *Processor) Handle(ctx context.Context, job queue.Job) error {
	started := p.now()
	ctx = p.logg.WithContractID(p.logg.WithJobID(ctx, job.ID), job.ContractID.String())

	claimed, err := p.repo.ClaimForProcessing(ctx, job.ContractID)
	if err != nil {
		return p.retry(ctx, job, fmt.Errorf("claim contract: %w", err))
	}
	if !claimed {
		p.metrics.Observe(metrics.OutcomeSkipped, 0)
		p.logg.Info(ctx, "analysis.skipped")
		return nil
	}

	contract, err := p.repo.FindByID(ctx, job.ContractID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			p.metrics.Observe(metrics.OutcomeSkipped, 0)
			return queue.Permanent(err)
		}
		return p.retry(ctx, job, fmt.Errorf("load contract: %w", err))
	}

	data, err := p.store.Get(ctx, contract.StorageKey, maxDocumentBytes)
	if err != nil {
		if errors.Is(err, storage.ErrObjectTooLarge) {
			return p.fail(ctx, job, err)
		}
		return p.retry(ctx, job, fmt.Errorf("fetch document: %w", err))
	}

	text, err := extract.Text(contract.FileType, data)
	if err != nil {
		return p.fail(ctx, job, fmt.Errorf("extract text: %w", err))
	}

	model := p.modelFor(ctx, contract.UserID)
	raw, err := p.engine.Analyze(ctx, analysis.Request{Text: text, Model: model})
	if err != nil {
		if permanentAnalysisError(err) {
			return p.fail(ctx, job, err)
		}
		return p.retry(ctx, job, err)
	}

	result, err := analysis.Normalize(raw)
	if err != nil {
		return p.fail(ctx, job, fmt.Errorf("normalize analysis: %w", err))
	}

	label := model
	if label == "" {
		label = defaultModelLabel
	}
	record, err := analysisToModel(contract.ID, result, label)
	if err != nil {
		return p.fail(ctx, job, err)
	}
	if err := p.repo.SaveAnalysis(ctx, record, p.now()); err != nil {
		if errors.Is(err, ErrNotProcessing) {
			p.metrics.Observe(metrics.OutcomeSkipped, 0)
			p.logg.Info(ctx, "analysis.skipped")
			return nil
		}
		return p.retry(ctx, job, fmt.Errorf("save analysis: %w", err))
	}

	p.metrics.AddMissingClauseFlags(countMissingClauseFlags(result.RiskFlags) - rawMissingClauseFlags(raw))
	p.metrics.Observe(metrics.OutcomeCompleted, p.now().Sub(started))
	p.logg.Info(p.logg.WithFields(ctx, map[string]any{
		"overall_risk": string(result.OverallRisk),
		"confidence":   result.Confidence,
		"flags":        len(result.RiskFlags),
	}), "analysis.completed")
	return nil
}

func (p *Processor) modelFor(ctx context.Context, userID uuid.UUID) string {
	if p.users == nil || p.catalog == nil {
		return ""
	}
	user, err := p.users.FindByID(ctx, userID)
	if err != nil {
		p.logg.Warn(p.logg.WithField(ctx, "error", err.Error()), "analysis.model_lookup_failed")
		return ""
	}
	plan, ok := p.catalog.Get(user.SubscriptionTier)
	if !ok {
		return ""
	}
	return plan.AIModel
}

func (p *Processor) retry(ctx context.Context, job queue.Job, err error) error {
	if job.LastAttempt {
		return p.fail(ctx, job, err)
	}
	p.metrics.Observe(metrics.OutcomeRetried, 0)
	p.logg.Warn(p.logg.WithFields(ctx, map[string]any{
		"attempt": job.Attempt,
		"error":   err.Error(),
	}), "analysis.retry")
	return err
}

func (p *Processor) fail(ctx context.Context, job queue.Job, cause error) error {
	msg := failureMessage(cause)
	if _, err := p.repo.UpdateStatus(ctx, job.ContractID, enums.ContractStatusFailed, &msg); err != nil {
		p.logg.Error(ctx, "analysis.mark_failed", err)
		return err
	}
	p.metrics.Observe(metrics.OutcomeFailed, 0)
	p.logg.Error(p.logg.WithField(ctx, "attempt", job.Attempt), "analysis.failed", cause)
	return queue.Permanent(cause)
}

func permanentAnalysisError(err error) bool {
	if errors.Is(err, analysis.ErrEmptyInput) || errors.Is(err, analysis.ErrMalformedAnalysis) {
		return true
	}
	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		return !apiErr.Retryable()
	}
	return false
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, extract.ErrNoText):
		return "no readable text found in document"
	case errors.Is(err, storage.ErrObjectTooLarge):
		return "document is too large to analyze"
	case errors.Is(err, analysis.ErrEmptyInput), errors.Is(err, analysis.ErrMalformedAnalysis):
		return "analysis service returned an unusable result"
	}
	msg := err.Error()
	if len(msg) > maxErrorLen {
		msg = msg[:maxErrorLen]
	}
	return msg
}

func countMissingClauseFlags(flags []analysis.RiskFlag) int {
	n := 0
	for _, flag := range flags {
		if flag.Type == analysis.FlagTypeMissingClause {
			n++
		}
	}
	return n
}

func rawMissingClauseFlags(raw *analysis.RawAnalysis) int {
	n := 0
	for _, flag := range raw.RiskFlags {
		if flag.Type == analysis.FlagTypeMissingClause {
			n++
		}
	}
	return n
}
