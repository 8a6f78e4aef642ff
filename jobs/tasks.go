package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionsPrune sweeps expired refresh sessions.
	TaskSessionsPrune = "sessions:prune"
)

// SessionPruner deletes refresh sessions past their expiry.
type SessionPruner interface {
	Prune(ctx context.Context, now time.Time) (int64, error)
}

// NewSessionsPruneTask constructs the prune task. It carries no payload;
// the handler acts on the clock at execution time.
func NewSessionsPruneTask() *asynq.Task {
	return asynq.NewTask(TaskSessionsPrune, nil)
}

// NewSessionsPruneHandler returns the asynq handler for the prune sweep.
// Failures are returned so asynq retries; they never reach end users.
func NewSessionsPruneHandler(pruner SessionPruner, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		deleted, err := pruner.Prune(ctx, time.Now())
		if err != nil {
			if logger != nil {
				logger.Error("session prune", slog.Any("error", err))
			}
			return err
		}
		if logger != nil {
			logger.Info("session prune complete", slog.Int64("deleted", deleted))
		}
		return nil
	}
}
