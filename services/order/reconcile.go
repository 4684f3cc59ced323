package order

import (
	"context"
	"errors"
	"fmt"
	"log"

	"storefront-payment-api/models"
	"storefront-payment-api/types"
)

// Reconcile applies an external confirmation or cancellation to an order
// awaiting it. Events for unknown or already settled orders return a
// StaleReconciliationError and change nothing, so replaying an event is safe.
func (c *Controller) Reconcile(ctx context.Context, ev models.ReconciliationEvent) (*models.Order, error) {
	var target models.OrderStatus
	switch ev.Outcome {
	case models.OutcomeConfirmed:
		target = models.OrderStatusPaid
	case models.OutcomeCancelled:
		target = models.OrderStatusCancelled
	default:
		return nil, fmt.Errorf("unknown reconciliation outcome %q", ev.Outcome)
	}

	order, err := c.store.GetOrder(ctx, ev.OrderID)
	if errors.Is(err, ErrOrderNotFound) {
		log.Printf("[Order: %s] Ignoring reconciliation for unknown order", ev.OrderID)
		return nil, &StaleReconciliationError{OrderID: ev.OrderID}
	}
	if err != nil {
		return nil, err
	}

	if order.Status != models.OrderStatusPendingConfirmation || !CanTransition(order.Status, target) {
		return nil, c.stale(order, target)
	}

	order.Status = target
	order.UpdatedAt = c.now()
	invoiceStatus := models.InvoiceStatusCancelled
	if target == models.OrderStatusPaid {
		invoiceStatus = invoiceStatusFor(order)
	}

	err = c.store.SettleOrder(ctx, order, models.OrderStatusPendingConfirmation, invoiceStatus)
	if errors.Is(err, ErrConcurrentUpdate) {
		current, getErr := c.store.GetOrder(ctx, ev.OrderID)
		if getErr != nil {
			return nil, getErr
		}
		return nil, c.stale(current, target)
	}
	if err != nil {
		return nil, fmt.Errorf("error settling order: %w", err)
	}
	log.Printf("[Order: %s] Reconciled %s: order %s, invoice %s (external ref %q)",
		order.ID, ev.Outcome, order.Status, invoiceStatus, ev.ExternalReference)

	if target == models.OrderStatusPaid {
		invoice, err := c.store.GetInvoiceByOrder(ctx, order.ID)
		if err != nil {
			log.Printf("[Order: %s] Error loading invoice for notification: %v", order.ID, err)
		}
		c.notify(ctx, confirmedEvent(order, invoice, confirmationEventFor(order, ev)))
	}
	return order, nil
}

func (c *Controller) stale(order *models.Order, target models.OrderStatus) error {
	err := &StaleReconciliationError{
		OrderID:   order.ID,
		Status:    order.Status,
		Duplicate: order.Status == target,
	}
	log.Printf("[Order: %s] Ignoring reconciliation: %v", order.ID, err)
	return err
}

func confirmationEventFor(order *models.Order, ev models.ReconciliationEvent) models.PaymentEventType {
	if ev.Source == models.EventBankTransferReceived || order.Payment.Method == types.MethodBankTransfer {
		return models.EventBankTransferReceived
	}
	return models.EventPaymentConfirmed
}
