package order

import "storefront-payment-api/models"

var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusCart:                {models.OrderStatusCheckout},
	models.OrderStatusCheckout:            {models.OrderStatusAwaitingPayment},
	models.OrderStatusAwaitingPayment:     {models.OrderStatusPaid, models.OrderStatusPendingConfirmation, models.OrderStatusFailed},
	models.OrderStatusPendingConfirmation: {models.OrderStatusPaid, models.OrderStatusCancelled},
}

// CanTransition reports whether the pipeline may move an order from one
// status to another. A failed order only returns to AwaitingPayment through
// a retry, which is checked separately.
func CanTransition(from, to models.OrderStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CanRetry reports whether a new attempt may run on an order in status s.
func CanRetry(s models.OrderStatus) bool {
	return s == models.OrderStatusAwaitingPayment || s == models.OrderStatusFailed
}

// statusFor maps a gateway outcome onto the order lifecycle.
func statusFor(result models.PaymentResult) models.OrderStatus {
	switch result.Status {
	case models.PaymentStatusSuccess:
		return models.OrderStatusPaid
	case models.PaymentStatusPending:
		return models.OrderStatusPendingConfirmation
	default:
		return models.OrderStatusFailed
	}
}
