package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusPaid        InvoiceStatus = "paid"
	InvoiceStatusPending     InvoiceStatus = "pending"
	InvoiceStatusBankPending InvoiceStatus = "bank_pending"
	InvoiceStatusFree        InvoiceStatus = "free"
	InvoiceStatusCancelled   InvoiceStatus = "cancelled"
)

// IsSettled reports whether reconciliation can no longer change the invoice.
func (s InvoiceStatus) IsSettled() bool {
	return s == InvoiceStatusPaid || s == InvoiceStatusFree || s == InvoiceStatusCancelled
}

// Invoice is derived 1:1 from a paid or pending Order.
type Invoice struct {
	ID         string          `json:"id"`
	OrderID    string          `json:"order_id"`
	Number     string          `json:"number"`
	Status     InvoiceStatus   `json:"status"`
	Currency   string          `json:"currency"`
	SubtotalHT decimal.Decimal `json:"subtotal_ht"`
	TaxAmount  decimal.Decimal `json:"tax_amount"`
	TotalTTC   decimal.Decimal `json:"total_ttc"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
