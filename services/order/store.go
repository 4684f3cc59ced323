package order

import (
	"context"

	"storefront-payment-api/models"
)

// Store persists orders and invoices. Updates are compare-and-swap on the
// order status so two writers can never both apply a transition.
type Store interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	// UpdateOrder replaces the order if its stored status is still expected
	// and its stored attempt is still order.Payment.AttemptID; a cleared
	// attempt yields ErrAttemptAbandoned. The stored attempt is cleared by the
	// write. A non-nil invoice is saved with it, atomically.
	UpdateOrder(ctx context.Context, order *models.Order, expected models.OrderStatus, invoice *models.Invoice) error
	// StartAttempt records the attempt about to call the gateway on an order
	// awaiting payment.
	StartAttempt(ctx context.Context, orderID, attemptID string) error
	// AbandonAttempt clears the recorded attempt so its result is refused.
	// It returns ErrNoAttemptInFlight when none is recorded.
	AbandonAttempt(ctx context.Context, orderID string) error
	GetInvoiceByOrder(ctx context.Context, orderID string) (*models.Invoice, error)
	// SettleOrder applies a reconciliation: the order and its invoice change
	// status together or not at all.
	SettleOrder(ctx context.Context, order *models.Order, expected models.OrderStatus, invoiceStatus models.InvoiceStatus) error
}

// Notifier hands payment events to the email collaborator.
type Notifier interface {
	Notify(ctx context.Context, event models.PaymentEvent) error
}
