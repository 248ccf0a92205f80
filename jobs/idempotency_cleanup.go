package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/campussync/campussync/internal/jobs"
)

// TaskIdempotencyCleanup purges old idempotency keys.
const TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"

// DefaultKeyRetention is how long batch idempotency keys are kept.
const DefaultKeyRetention = 72 * time.Hour

// KeyCleaner deletes idempotency keys older than the given age.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyCleanupPayload configures one cleanup run.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask builds the cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: int(retention / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}

// IdempotencyCleanupJob handles TaskIdempotencyCleanup.
type IdempotencyCleanupJob struct {
	Keys    KeyCleaner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle processes cleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Keys == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	var payload IdempotencyCleanupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	retention := DefaultKeyRetention
	if payload.RetentionHours > 0 {
		retention = time.Duration(payload.RetentionHours) * time.Hour
	}
	metrics := metricsOrDefault(j.Metrics)
	logger := loggerOrDefault(j.Logger).With(slog.String("job", TaskIdempotencyCleanup))
	return metrics.Observe(TaskIdempotencyCleanup, func() error {
		removed, err := j.Keys.Cleanup(ctx, retention)
		if err != nil {
			logger.Error("purge idempotency keys", slog.Any("error", err))
			return err
		}
		metrics.AddPurged("idempotency_keys", removed)
		logger.Info("purged idempotency keys", slog.Int64("removed", removed), slog.Duration("retention", retention))
		return nil
	})
}
