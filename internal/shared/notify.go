package shared

import "context"

// ReviewNotice is an email telling a user the outcome of a review.
type ReviewNotice struct {
	// Module is one of the Module* review log names.
	Module  string
	To      string
	Subject string
	Body    string
}

// Notifier delivers review notices, usually through the job queue.
type Notifier interface {
	NotifyReview(ctx context.Context, notice ReviewNotice) error
}
