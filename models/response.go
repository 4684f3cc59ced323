package models

type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// CheckoutResponse is the body of checkout and retry responses.
type CheckoutResponse struct {
	OrderID          string            `json:"order_id"`
	Reference        string            `json:"reference"`
	Status           OrderStatus       `json:"status"`
	TransactionID    string            `json:"transaction_id,omitempty"`
	Message          string            `json:"message,omitempty"`
	FailureReason    string            `json:"failure_reason,omitempty"`
	ValidationErrors []FieldError      `json:"validation_errors,omitempty"`
	Summary          OrderSummary      `json:"summary"`
	Invoice          *Invoice          `json:"invoice,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type PaymentMethodResponse struct {
	Method       string        `json:"method"`
	Label        string        `json:"label"`
	Instructions string        `json:"instructions,omitempty"`
	BankAccounts []BankAccount `json:"bank_accounts,omitempty"`
}

// OrderDetailsResponse is the body of the order status endpoint.
type OrderDetailsResponse struct {
	Order   *Order   `json:"order"`
	Invoice *Invoice `json:"invoice,omitempty"`
}
