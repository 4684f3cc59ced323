package models

// FailureReasonTimeout is reported when the caller's deadline expires before
// the gateway answers.
const FailureReasonTimeout = "timeout"

// PaymentResult is produced once per payment attempt and never modified.
type PaymentResult struct {
	Status        PaymentStatus     `json:"status"`
	TransactionID string            `json:"transaction_id,omitempty"`
	Message       string            `json:"message,omitempty"`
	FailureReason string            `json:"failure_reason,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

func FailedResult(reason string) PaymentResult {
	return PaymentResult{
		Status:        PaymentStatusFailed,
		Message:       "payment declined",
		FailureReason: reason,
	}
}
