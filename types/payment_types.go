package types

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// PaymentMethod identifies how a customer pays for an order.
type PaymentMethod string

const (
	MethodCardCIB           PaymentMethod = "card_cib"
	MethodCardInternational PaymentMethod = "card_international"
	MethodMobilePayment     PaymentMethod = "mobile_payment"
	MethodBankTransfer      PaymentMethod = "bank_transfer"
	MethodPayPal            PaymentMethod = "paypal"
)

// AllMethods returns every supported payment method in display order.
func AllMethods() []PaymentMethod {
	return []PaymentMethod{
		MethodCardCIB,
		MethodCardInternational,
		MethodMobilePayment,
		MethodBankTransfer,
		MethodPayPal,
	}
}

// ParsePaymentMethod converts user or configuration input into a PaymentMethod.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(strings.TrimSpace(strings.ToLower(s)))
	if !m.IsValid() {
		return "", fmt.Errorf("unsupported payment method %q", s)
	}
	return m, nil
}

func (m PaymentMethod) IsValid() bool {
	for _, known := range AllMethods() {
		if m == known {
			return true
		}
	}
	return false
}

// IsCard reports whether the method is paid with a card number.
func (m PaymentMethod) IsCard() bool {
	return m == MethodCardCIB || m == MethodCardInternational
}

func (m PaymentMethod) String() string {
	return string(m)
}

// CardBrand is fixed by the card method, never supplied by the customer.
type CardBrand string

const (
	BrandCIB  CardBrand = "cib"
	BrandVisa CardBrand = "visa"
)

// PaymentRequest is created fresh for every payment attempt and is never persisted.
type PaymentRequest struct {
	Method        PaymentMethod
	Amount        decimal.Decimal
	Currency      string
	CustomerEmail string
	CustomerName  string
	Details       Details
}

// Details is the method-specific payload of a PaymentRequest. The set of
// implementations is closed to this package.
type Details interface {
	method() PaymentMethod
}

type CardDetails struct {
	CardNumber  string
	HolderName  string
	ExpiryMonth string
	ExpiryYear  string
	CVC         string
	Brand       CardBrand
}

func (d CardDetails) method() PaymentMethod {
	if d.Brand == BrandCIB {
		return MethodCardCIB
	}
	return MethodCardInternational
}

// MaskedNumber keeps only the last four digits of the card number.
func (d CardDetails) MaskedNumber() string {
	digits := make([]rune, 0, len(d.CardNumber))
	for _, r := range d.CardNumber {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) <= 4 {
		return strings.Repeat("*", len(digits))
	}
	return strings.Repeat("*", len(digits)-4) + string(digits[len(digits)-4:])
}

// String never exposes the full card number or the CVC.
func (d CardDetails) String() string {
	return fmt.Sprintf("card{brand=%s number=%s holder=%q expiry=%s/%s}",
		d.Brand, d.MaskedNumber(), d.HolderName, d.ExpiryMonth, d.ExpiryYear)
}

type PayPalDetails struct {
	PayPalAccount string
}

func (PayPalDetails) method() PaymentMethod { return MethodPayPal }

type MobileDetails struct {
	PhoneNumber string
}

func (MobileDetails) method() PaymentMethod { return MethodMobilePayment }

// BankTransferDetails carries an advisory reference; it may be empty.
type BankTransferDetails struct {
	Reference string
}

func (BankTransferDetails) method() PaymentMethod { return MethodBankTransfer }

// Handler has one method per payment variant. Adding a variant adds a method
// here, so every consumer stops compiling until it handles the new case.
type Handler[T any] interface {
	Card(req PaymentRequest, d CardDetails) T
	PayPal(req PaymentRequest, d PayPalDetails) T
	Mobile(req PaymentRequest, d MobileDetails) T
	BankTransfer(req PaymentRequest, d BankTransferDetails) T
}

// Dispatch routes req to the handler method matching its details. A request
// without details is a programming error and panics.
func Dispatch[T any](req PaymentRequest, h Handler[T]) T {
	switch d := req.Details.(type) {
	case CardDetails:
		return h.Card(req, d)
	case PayPalDetails:
		return h.PayPal(req, d)
	case MobileDetails:
		return h.Mobile(req, d)
	case BankTransferDetails:
		return h.BankTransfer(req, d)
	default:
		panic(fmt.Sprintf("payment request for %q has no details (%T)", req.Method, req.Details))
	}
}

// Consistent reports whether the details variant matches the declared method.
func (r PaymentRequest) Consistent() bool {
	return r.Details != nil && r.Details.method() == r.Method
}

// String is safe to log.
func (r PaymentRequest) String() string {
	return fmt.Sprintf("payment{method=%s amount=%s %s email=%s details=%v}",
		r.Method, r.Amount.String(), r.Currency, r.CustomerEmail, r.Details)
}
