package followup

import (
	"context"
	"fmt"

	"github.com/brasmat/proposal-api/internal/config"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Sender delivers a decoded follow-up
type Sender interface {
	SendFollowUp(ctx context.Context, payload Payload) error
}

// Worker consumes the follow-up queue
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	sender Sender
	logger *zap.Logger
}

// NewWorker registers the follow-up handler
func NewWorker(redisCfg *config.RedisConfig, concurrency int, sender Sender, logger *zap.Logger) *Worker {
	if concurrency < 1 {
		concurrency = 5
	}

	w := &Worker{
		server: asynq.NewServer(RedisOpt(redisCfg), asynq.Config{
			Concurrency: concurrency,
			Queues:      map[string]int{Queue: 1},
			Logger:      newAsynqLogger(logger),
		}),
		mux:    asynq.NewServeMux(),
		sender: sender,
		logger: logger,
	}
	w.mux.HandleFunc(TaskWhatsAppFollowUp, w.handleFollowUp)
	return w
}

// Handler exposes the task mux
func (w *Worker) Handler() asynq.Handler {
	return w.mux
}

func (w *Worker) handleFollowUp(ctx context.Context, task *asynq.Task) error {
	payload, err := ParsePayload(task)
	if err != nil {
		// a malformed payload will never succeed
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	if err := w.sender.SendFollowUp(ctx, payload); err != nil {
		w.logger.Warn("follow-up delivery failed",
			zap.String("proposal_id", payload.ProposalID.String()),
			zap.String("reason", string(payload.Reason)),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// Start runs the worker in the background
func (w *Worker) Start() error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start follow-up worker: %w", err)
	}
	w.logger.Info("follow-up worker started", zap.String("queue", Queue))
	return nil
}

// Shutdown waits for running tasks to finish
func (w *Worker) Shutdown() {
	w.server.Shutdown()
	w.logger.Info("follow-up worker stopped")
}

// asynqLogger forwards asynq's logs to zap
type asynqLogger struct {
	l *zap.SugaredLogger
}

func newAsynqLogger(logger *zap.Logger) *asynqLogger {
	return &asynqLogger{l: logger.Named("asynq").Sugar()}
}

func (a *asynqLogger) Debug(args ...interface{}) { a.l.Debug(args...) }
func (a *asynqLogger) Info(args ...interface{})  { a.l.Info(args...) }
func (a *asynqLogger) Warn(args ...interface{})  { a.l.Warn(args...) }
func (a *asynqLogger) Error(args ...interface{}) { a.l.Error(args...) }
func (a *asynqLogger) Fatal(args ...interface{}) { a.l.Fatal(args...) }
