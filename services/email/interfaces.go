package email

import (
	"context"

	"storefront-payment-api/queue"
)

type EmailSender interface {
	SendEmail(to, subject, body string) error
}

// Enqueuer is the part of the job queue the notifier needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType queue.JobType, data map[string]interface{}) error
}
