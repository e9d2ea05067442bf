package followup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brasmat/proposal-api/internal/config"
	"github.com/hibiken/asynq"
)

// Queue is the asynq queue follow-ups are placed on
const Queue = "followups"

// reminderRetention keeps a processed reminder in redis so its task id keeps blocking
// duplicates for the rest of the day
const reminderRetention = 24 * time.Hour

// RedisOpt builds the asynq connection from the shared redis settings
func RedisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// Client enqueues follow-up tasks
type Client struct {
	client *asynq.Client
}

// NewClient creates an asynq client. Connections are opened lazily.
func NewClient(cfg *config.RedisConfig) *Client {
	return &Client{client: asynq.NewClient(RedisOpt(cfg))}
}

// Close releases the redis connection
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Enqueue schedules the follow-up at runAt. Reminders for the same proposal and day share
// a task id and are retained after processing, so a repeated sweep neither queues nor
// delivers duplicates.
func (c *Client) Enqueue(ctx context.Context, payload Payload, runAt time.Time) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewTask(payload)
	if err != nil {
		return err
	}

	opts := []asynq.Option{
		asynq.Queue(Queue),
		asynq.ProcessAt(runAt),
		asynq.MaxRetry(3),
		asynq.Timeout(30 * time.Second),
	}
	if payload.Reason == ReasonExpiringSoon {
		opts = append(opts,
			asynq.TaskID(reminderTaskID(payload.ProposalID.String(), runAt)),
			asynq.Retention(reminderRetention),
		)
	}

	_, err = c.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue follow-up: %w", err)
	}
	return nil
}

func reminderTaskID(proposalID string, runAt time.Time) string {
	return fmt.Sprintf("followup:%s:%s", proposalID, runAt.UTC().Format("2006-01-02"))
}
