package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// AuditCleanupJobName is the scheduler name of the audit log retention job
const AuditCleanupJobName = "audit-log-cleanup"

// AuditCleaner deletes audit logs past retention
type AuditCleaner interface {
	CleanupOldLogs(ctx context.Context, retentionDays int) (int64, error)
}

// RegisterAuditCleanupJob prunes audit logs older than retentionDays on the given schedule.
// A non-positive retention disables the job.
func RegisterAuditCleanupJob(scheduler *Scheduler, cleaner AuditCleaner, logger *zap.Logger, cronExpr string, retentionDays int, timeout time.Duration) error {
	if retentionDays <= 0 {
		logger.Info("audit log cleanup disabled")
		return nil
	}

	return scheduler.AddJob(AuditCleanupJobName, cronExpr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		deleted, err := cleaner.CleanupOldLogs(ctx, retentionDays)
		if err != nil {
			logger.Error("audit log cleanup failed", zap.Error(err))
			return
		}
		logger.Info("audit log cleanup completed",
			zap.Int64("deleted", deleted),
			zap.Int("retention_days", retentionDays))
	})
}
