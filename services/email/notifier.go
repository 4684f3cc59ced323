package email

import (
	"context"
	"fmt"
	"log"

	"storefront-payment-api/models"
	"storefront-payment-api/queue"
)

// DirectNotifier renders and sends the email on the caller's goroutine.
type DirectNotifier struct {
	sender EmailSender
}

func NewDirectNotifier(sender EmailSender) *DirectNotifier {
	return &DirectNotifier{sender: sender}
}

func (n *DirectNotifier) Notify(_ context.Context, ev models.PaymentEvent) error {
	subject, body, err := Render(ev)
	if err != nil {
		return err
	}
	if err := n.sender.SendEmail(ev.CustomerEmail, subject, body); err != nil {
		return fmt.Errorf("error sending %s email for %s: %w", ev.Event, ev.OrderReference, err)
	}
	log.Printf("[Order: %s] Sent %s email to %s", ev.OrderReference, ev.Event, ev.CustomerEmail)
	return nil
}

// QueueNotifier hands the event to the worker so a slow mail server never
// delays a checkout response.
type QueueNotifier struct {
	queue Enqueuer
}

func NewQueueNotifier(q Enqueuer) *QueueNotifier {
	return &QueueNotifier{queue: q}
}

func (n *QueueNotifier) Notify(ctx context.Context, ev models.PaymentEvent) error {
	data, err := queue.PayloadData(ev)
	if err != nil {
		return err
	}
	data["event"] = string(ev.Event)
	data["order_reference"] = ev.OrderReference
	return n.queue.Enqueue(ctx, queue.JobTypeSendPaymentEvent, data)
}

// DecodeEvent reads back an event enqueued by QueueNotifier.
func DecodeEvent(job *queue.Job) (models.PaymentEvent, error) {
	var ev models.PaymentEvent
	err := queue.DecodePayload(job, &ev)
	return ev, err
}
