package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/campussync/campussync/internal/jobs"
	"github.com/campussync/campussync/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskNotifyReview sends a review outcome email.
	TaskNotifyReview = "notify:review"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// NotifyReviewPayload describes the email to send.
type NotifyReviewPayload struct {
	Module  string `json:"module,omitempty"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewNotifyReviewTask constructs an Asynq task.
func NewNotifyReviewTask(notice shared.ReviewNotice) (*asynq.Task, error) {
	if notice.To == "" {
		return nil, errors.New("notify review: recipient required")
	}
	data, err := json.Marshal(NotifyReviewPayload{Module: notice.Module, To: notice.To, Subject: notice.Subject, Body: notice.Body})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotifyReview, data, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// Mailer delivers a single message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NotifyReviewJob handles TaskNotifyReview.
type NotifyReviewJob struct {
	Mailer  Mailer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle processes TaskNotifyReview tasks. Malformed payloads are not retried.
func (j *NotifyReviewJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Mailer == nil {
		return errors.New("notify review: mailer not configured")
	}
	var payload NotifyReviewPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.To == "" {
		return asynq.SkipRetry
	}
	kind := payload.Module
	if kind == "" {
		kind = "unknown"
	}
	metrics := metricsOrDefault(j.Metrics)
	return metrics.Observe(TaskNotifyReview, func() error {
		err := j.Mailer.Send(ctx, payload.To, payload.Subject, payload.Body)
		metrics.AddNotification(kind, err == nil)
		if err != nil {
			loggerOrDefault(j.Logger).Warn("send review notice",
				slog.String("job", TaskNotifyReview),
				slog.String("module", kind),
				slog.Any("error", err))
		}
		return err
	})
}

func metricsOrDefault(m *jobmetrics.Metrics) *jobmetrics.Metrics {
	if m != nil {
		return m
	}
	return defaultJobMetrics
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}
