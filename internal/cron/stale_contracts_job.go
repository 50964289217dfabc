package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/clausewise-backend/pkg/logger"
)

const (
	StaleContractsJobName = "stale-contracts"
	staleContractMessage  = "analysis timed out"
)

type staleContractStore interface {
	FailStaleProcessing(ctx context.Context, cutoff time.Time, message string) (int64, error)
}

type StaleContractsJobParams struct {
	Logger    *logger.Logger
	Contracts staleContractStore
	MaxAge    time.Duration
	Now       func() time.Time
}

// staleContractsJob fails contracts left in processing by a worker that died
// mid-analysis.
type staleContractsJob struct {
	logg      *logger.Logger
	contracts staleContractStore
	maxAge    time.Duration
	now       func() time.Time
}

func NewStaleContractsJob(params StaleContractsJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Contracts == nil {
		return nil, fmt.Errorf("contract store required")
	}
	if params.MaxAge <= 0 {
		return nil, fmt.Errorf("max processing age must be positive")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &staleContractsJob{logg: params.Logger, contracts: params.Contracts, maxAge: params.MaxAge, now: now}, nil
}

func (j *staleContractsJob) Name() string { return StaleContractsJobName }

func (j *staleContractsJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.maxAge)
	failed, err := j.contracts.FailStaleProcessing(ctx, cutoff, staleContractMessage)
	if err != nil {
		return fmt.Errorf("fail stale contracts: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_updated": failed,
	}), "cron.stale_contracts_failed")
	return nil
}
