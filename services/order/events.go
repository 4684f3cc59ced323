package order

import (
	"fmt"
	"strconv"
	"strings"

	"storefront-payment-api/models"
	"storefront-payment-api/services/payment"
	"storefront-payment-api/types"
	"storefront-payment-api/utils"
)

// Variable names passed to the email templates.
const (
	VarPaymentMethod = "payment_method"
	VarTransactionID = "transaction_id"
	VarMessage       = "message"
	VarSubtotal      = "subtotal_ht"
	VarTax           = "tax_amount"
	VarTokens        = "tokens_granted"
	VarInvoiceNumber = "invoice_number"
	VarReference     = "transfer_reference"
	VarInstructions  = "instructions"
	VarBankAccounts  = "bank_accounts"
)

func baseEvent(event models.PaymentEventType, order *models.Order, invoice *models.Invoice) models.PaymentEvent {
	vars := map[string]string{
		VarPaymentMethod: order.Payment.Method.String(),
		VarSubtotal:      utils.FormatAmount(order.Summary.SubtotalHT, order.Currency),
		VarTax:           utils.FormatAmount(order.Summary.TaxAmount, order.Currency),
		VarTokens:        strconv.FormatInt(order.Summary.TotalTokensGranted, 10),
	}
	if res := order.Payment.Result; res != nil {
		vars[VarTransactionID] = res.TransactionID
		vars[VarMessage] = res.Message
	}
	ev := models.PaymentEvent{
		Event:          event,
		OrderReference: order.Reference,
		Amount:         utils.FormatAmount(order.Summary.TotalTTC, order.Currency),
		Currency:       order.Currency,
		CustomerEmail:  order.Customer.Email,
		CustomerName:   order.Customer.Name,
		Variables:      vars,
	}
	if invoice != nil {
		ev.InvoiceID = invoice.ID
		vars[VarInvoiceNumber] = invoice.Number
	}
	return ev
}

// pendingEvent tells the customer what is still expected of them. Bank
// transfers carry the instructions and accounts to pay into.
func pendingEvent(order *models.Order, invoice *models.Invoice, methods models.PaymentMethodSettings) models.PaymentEvent {
	ev := baseEvent(models.EventOrderPending, order, invoice)
	if order.Payment.Method != types.MethodBankTransfer {
		return ev
	}
	if res := order.Payment.Result; res != nil {
		ev.Variables[VarReference] = res.Metadata[payment.MetadataReference]
	}
	cfg := methods[types.MethodBankTransfer]
	ev.Variables[VarInstructions] = cfg.Instructions
	ev.Variables[VarBankAccounts] = formatBankAccounts(cfg.BankAccounts)
	return ev
}

func confirmedEvent(order *models.Order, invoice *models.Invoice, event models.PaymentEventType) models.PaymentEvent {
	return baseEvent(event, order, invoice)
}

func formatBankAccounts(accounts []models.BankAccount) string {
	lines := make([]string, 0, len(accounts))
	for _, a := range accounts {
		lines = append(lines, fmt.Sprintf("%s / %s / %s", a.BankName, a.AccountHolder, a.AccountNumber))
	}
	return strings.Join(lines, "\n")
}
