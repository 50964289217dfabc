package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/clausewise-backend/pkg/logger"
)

const (
	ReportRetentionJobName = "report-retention"
	defaultReportRetention = 90
)

type reportStore interface {
	DeleteClosedReportsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type ReportRetentionJobParams struct {
	Logger  *logger.Logger
	Reports reportStore
	Days    int
	Now     func() time.Time
}

type reportRetentionJob struct {
	logg    *logger.Logger
	reports reportStore
	days    int
	now     func() time.Time
}

func NewReportRetentionJob(params ReportRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reports == nil {
		return nil, fmt.Errorf("report store required")
	}
	days := params.Days
	if days <= 0 {
		days = defaultReportRetention
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &reportRetentionJob{logg: params.Logger, reports: params.Reports, days: days, now: now}, nil
}

func (j *reportRetentionJob) Name() string { return ReportRetentionJobName }

// Run deletes dismissed and resolved whisper reports older than the window.
// Pending and investigating reports are kept regardless of age.
func (j *reportRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.days)
	deleted, err := j.reports.DeleteClosedReportsBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delete closed reports: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.days,
		"rows_deleted":   deleted,
	}), "cron.report_retention_complete")
	return nil
}
