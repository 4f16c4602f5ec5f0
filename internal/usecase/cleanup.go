package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/semmidev/mongovault/internal/domain"
)

// CleanupReport counts what one retention pass did.
type CleanupReport struct {
	Listed  int
	Expired int
	Deleted int
	Failed  int
}

type Cleanup struct {
	repository    domain.Repository
	logger        Logger
	retentionDays int
	now           func() time.Time
}

func NewCleanup(
	repository domain.Repository,
	logger Logger,
	retentionDays int,
) *Cleanup {
	return &Cleanup{
		repository:    repository,
		logger:        logger,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

// Execute deletes every archive last modified strictly before now minus the
// retention horizon. A horizon of zero or less disables cleanup. Individual
// delete failures are logged and counted; every eligible archive is tried.
func (uc *Cleanup) Execute(ctx context.Context) (CleanupReport, error) {
	var report CleanupReport
	if uc.retentionDays <= 0 {
		uc.logger.Infof("Retention disabled, skipping cleanup")
		return report, nil
	}

	uc.logger.Infof("Starting cleanup, retention: %d days", uc.retentionDays)
	cutoff := uc.now().AddDate(0, 0, -uc.retentionDays)

	archives, err := uc.repository.List(ctx)
	if err != nil {
		return report, fmt.Errorf("list archives: %w", err)
	}
	report.Listed = len(archives)

	for _, d := range archives {
		if !d.LastModified.Before(cutoff) {
			continue
		}
		report.Expired++
		if err := ctx.Err(); err != nil {
			return report, err
		}

		uc.logger.Infof("Deleting old backup: %s (last modified %s)", d.Name, d.LastModified.Format(time.RFC3339))
		if err := uc.repository.Delete(ctx, d.Name); err != nil {
			report.Failed++
			uc.logger.Errorf("Failed to delete %s: %v", d.Name, err)
			continue
		}
		report.Deleted++
	}

	uc.logger.Infof("Deleted %d old backup(s), %d failure(s)", report.Deleted, report.Failed)
	return report, nil
}
