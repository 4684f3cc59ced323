package models

import (
	"time"

	"storefront-payment-api/types"
)

type OrderStatus string

const (
	OrderStatusCart                OrderStatus = "cart"
	OrderStatusCheckout            OrderStatus = "checkout"
	OrderStatusAwaitingPayment     OrderStatus = "awaiting_payment"
	OrderStatusPaid                OrderStatus = "paid"
	OrderStatusPendingConfirmation OrderStatus = "pending_confirmation"
	OrderStatusFailed              OrderStatus = "failed"
	OrderStatusCancelled           OrderStatus = "cancelled"
)

// IsTerminal is relative to one Order instance: a failed or cancelled order
// leaves the cart intact for a new order.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusPaid || s == OrderStatusFailed || s == OrderStatusCancelled
}

func (s OrderStatus) String() string {
	return string(s)
}

// FailureKind tells pre-gateway failures apart from processor-reported ones.
type FailureKind string

const (
	FailureNone       FailureKind = ""
	FailureValidation FailureKind = "validation"
	FailureGateway    FailureKind = "gateway"
	FailureTimeout    FailureKind = "timeout"
)

type OrderPayment struct {
	Method   types.PaymentMethod `json:"method"`
	Result   *PaymentResult      `json:"result,omitempty"`
	Attempts int                 `json:"attempts"`
	// AttemptID names the gateway call in flight. It is empty once the
	// attempt is recorded or abandoned.
	AttemptID string `json:"attempt_id,omitempty"`
}

// Order is created when a payment attempt starts. Its lines and summary are a
// snapshot; only Status, Payment and FailureKind change afterwards.
type Order struct {
	ID          string       `json:"id"`
	Reference   string       `json:"reference"`
	Customer    Customer     `json:"customer"`
	Currency    string       `json:"currency"`
	Lines       []CartLine   `json:"lines"`
	Summary     OrderSummary `json:"summary"`
	Payment     OrderPayment `json:"payment"`
	Status      OrderStatus  `json:"status"`
	FailureKind FailureKind  `json:"failure_kind,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Snapshot returns a deep copy so callers cannot alter a stored order.
func (o *Order) Snapshot() *Order {
	if o == nil {
		return nil
	}
	out := *o
	out.Lines = append([]CartLine(nil), o.Lines...)
	if o.Payment.Result != nil {
		res := *o.Payment.Result
		if o.Payment.Result.Metadata != nil {
			res.Metadata = make(map[string]string, len(o.Payment.Result.Metadata))
			for k, v := range o.Payment.Result.Metadata {
				res.Metadata[k] = v
			}
		}
		out.Payment.Result = &res
	}
	return &out
}
