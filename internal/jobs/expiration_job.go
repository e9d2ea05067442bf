package jobs

import (
	"context"
	"time"

	"github.com/brasmat/proposal-api/internal/domain"
	"github.com/brasmat/proposal-api/internal/followup"
	"go.uber.org/zap"
)

// ExpirationSweepJobName is the scheduler name of the validity re-evaluation
const ExpirationSweepJobName = "proposal-expiration-sweep"

const (
	// DefaultSweepBatch bounds how many proposals one run expires
	DefaultSweepBatch = 500
	// DefaultReminderLimit bounds how many reminders one run queues
	DefaultReminderLimit = 200
)

// ProposalExpirer is the part of the proposal service the sweep drives.
type ProposalExpirer interface {
	ExpireOverdue(ctx context.Context, batch int) (int, error)
	ExpiringWithin(ctx context.Context, window time.Duration, limit int) ([]domain.Proposal, error)
}

// ReminderQueue accepts follow-up tasks
type ReminderQueue interface {
	Enqueue(ctx context.Context, payload followup.Payload, runAt time.Time) error
}

// ExpirationSweepJob persists the expired status of open proposals whose validity has lapsed
// and queues a WhatsApp reminder for those about to lapse.
type ExpirationSweepJob struct {
	proposals    ProposalExpirer
	queue        ReminderQueue
	logger       *zap.Logger
	timeout      time.Duration
	reminderDays int
	now          func() time.Time
}

// NewExpirationSweepJob creates the sweep. queue may be nil, in which case no reminders are queued.
func NewExpirationSweepJob(proposals ProposalExpirer, queue ReminderQueue, logger *zap.Logger, timeout time.Duration, reminderDays int) *ExpirationSweepJob {
	return &ExpirationSweepJob{
		proposals:    proposals,
		queue:        queue,
		logger:       logger,
		timeout:      timeout,
		reminderDays: reminderDays,
		now:          time.Now,
	}
}

// SweepResult summarises one run
type SweepResult struct {
	Expired         int
	RemindersQueued int
	ReminderErrors  int
}

// Run is the scheduler entry point.
func (j *ExpirationSweepJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	result, err := j.Sweep(ctx)
	if err != nil {
		j.logger.Error("proposal expiration sweep failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
		return
	}

	j.logger.Info("proposal expiration sweep completed",
		zap.Int("expired", result.Expired),
		zap.Int("reminders_queued", result.RemindersQueued),
		zap.Int("reminder_errors", result.ReminderErrors),
		zap.Duration("duration", time.Since(start)))
}

// Sweep expires overdue proposals, then queues reminders. A failed expiration pass
// still lets the reminder pass run.
func (j *ExpirationSweepJob) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	expired, err := j.proposals.ExpireOverdue(ctx, DefaultSweepBatch)
	result.Expired = expired
	if err != nil {
		j.logger.Error("expiring overdue proposals failed", zap.Error(err))
		if ctx.Err() != nil {
			return result, err
		}
	}

	if j.queue == nil || j.reminderDays <= 0 {
		return result, nil
	}

	window := time.Duration(j.reminderDays) * 24 * time.Hour
	expiring, err := j.proposals.ExpiringWithin(ctx, window, DefaultReminderLimit)
	if err != nil {
		return result, err
	}

	runAt := j.now()
	for _, p := range expiring {
		err := j.queue.Enqueue(ctx, followup.Payload{
			ProposalID: p.ID,
			Reason:     followup.ReasonExpiringSoon,
		}, runAt)
		if err != nil {
			result.ReminderErrors++
			j.logger.Warn("failed to queue expiring-soon reminder",
				zap.String("proposal_id", p.ID.String()),
				zap.Error(err))
			continue
		}
		result.RemindersQueued++
	}

	return result, nil
}

// RegisterExpirationSweepJob registers the sweep and, when runAtStartup is set, runs it once
// in the background so proposals that lapsed while the API was down are caught up.
func RegisterExpirationSweepJob(scheduler *Scheduler, proposals ProposalExpirer, queue ReminderQueue, logger *zap.Logger, cronExpr string, reminderDays int, timeout time.Duration, runAtStartup bool) error {
	job := NewExpirationSweepJob(proposals, queue, logger, timeout, reminderDays)

	if runAtStartup {
		go job.Run()
	}

	return scheduler.AddJob(ExpirationSweepJobName, cronExpr, job.Run)
}
