package order

import (
	"errors"
	"fmt"

	"storefront-payment-api/models"
)

var (
	ErrEmptyCart           = errors.New("cart is empty, nothing to checkout")
	ErrMethodUnavailable   = errors.New("payment method is not enabled")
	ErrOrderNotFound       = errors.New("order not found")
	ErrInvoiceNotFound     = errors.New("invoice not found")
	ErrIllegalTransition   = errors.New("illegal transition of order status")
	ErrConcurrentUpdate    = errors.New("order status changed concurrently")
	ErrRetryNotAllowed     = errors.New("order cannot be retried, start a new order")
	ErrAttemptInFlight     = errors.New("a payment attempt is already in progress for this order")
	ErrNoAttemptInFlight   = errors.New("no payment attempt in progress for this order")
	ErrAttemptAbandoned    = errors.New("payment attempt was abandoned, result discarded")
	ErrStaleReconciliation = errors.New("stale reconciliation event")
)

// StaleReconciliationError reports a reconciliation event for an unknown or
// already settled order. Duplicate is set when the order already carries the
// outcome the event asks for.
type StaleReconciliationError struct {
	OrderID   string
	Status    models.OrderStatus
	Duplicate bool
}

func (e *StaleReconciliationError) Error() string {
	switch {
	case e.Status == "":
		return fmt.Sprintf("stale reconciliation: order %s not found", e.OrderID)
	case e.Duplicate:
		return fmt.Sprintf("stale reconciliation: order %s already %s (duplicate event)", e.OrderID, e.Status)
	default:
		return fmt.Sprintf("stale reconciliation: order %s is %s", e.OrderID, e.Status)
	}
}

func (e *StaleReconciliationError) Is(target error) bool {
	return target == ErrStaleReconciliation
}
