package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/campussync/campussync/internal/jobs"
)

// TaskAnalyticsWarmup refills the analytics overview cache.
const TaskAnalyticsWarmup = "analytics:warmup"

// Warmer fills the analytics cache.
type Warmer interface {
	Warm(ctx context.Context) error
}

// AnalyticsWarmupJob handles TaskAnalyticsWarmup.
type AnalyticsWarmupJob struct {
	Analytics Warmer
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewAnalyticsWarmupTask builds the warmup task.
func NewAnalyticsWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskAnalyticsWarmup, nil, asynq.Queue(QueueDefault))
}

// Handle processes analytics warmup tasks.
func (j *AnalyticsWarmupJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Analytics == nil {
		return errors.New("analytics warmup: handler not configured")
	}
	logger := loggerOrDefault(j.Logger).With(slog.String("job", TaskAnalyticsWarmup))

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	start := time.Now()
	return metricsOrDefault(j.Metrics).Observe(TaskAnalyticsWarmup, func() error {
		if err := j.Analytics.Warm(ctx); err != nil {
			logger.Error("warm analytics cache", slog.Any("error", err))
			return err
		}
		logger.Info("completed analytics warmup", slog.Duration("duration", time.Since(start)))
		return nil
	})
}
