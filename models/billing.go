package models

type PaymentEventType string

const (
	EventOrderPending         PaymentEventType = "order_pending"
	EventPaymentConfirmed     PaymentEventType = "payment_confirmed"
	EventBankTransferReceived PaymentEventType = "bank_transfer_received"
)

// PaymentEvent tells the email collaborator which template to send and with
// which variables. Rendering and delivery happen elsewhere.
type PaymentEvent struct {
	Event          PaymentEventType  `json:"event"`
	OrderReference string            `json:"order_reference"`
	InvoiceID      string            `json:"invoice_id"`
	Amount         string            `json:"amount"`
	Currency       string            `json:"currency"`
	CustomerEmail  string            `json:"customer_email"`
	CustomerName   string            `json:"customer_name"`
	Variables      map[string]string `json:"variables"`
}

type ReconciliationOutcome string

const (
	OutcomeConfirmed ReconciliationOutcome = "confirmed"
	OutcomeCancelled ReconciliationOutcome = "cancelled"
)

// ReconciliationEvent is sent by an external system once an out-of-band
// payment is confirmed or abandoned.
type ReconciliationEvent struct {
	OrderID           string                `json:"order_id"`
	Outcome           ReconciliationOutcome `json:"outcome"`
	Source            PaymentEventType      `json:"source,omitempty"`
	ExternalReference string                `json:"external_reference,omitempty"`
}
