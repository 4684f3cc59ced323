package payment

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"storefront-payment-api/types"
)

// RawFields is the method-specific input as decoded from a request body.
type RawFields map[string]any

// String coerces the value under key to a string. Absent and null values
// become the empty string.
func (f RawFields) String(key string) string {
	v, ok := f[key]
	if !ok {
		return ""
	}
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case bool:
		return strconv.FormatBool(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// twoDigits zero-pads numeric values such as an expiry month of 5.
func (f RawFields) twoDigits(key string) string {
	s := f.String(key)
	switch f[key].(type) {
	case float64, float32, int, int64, int32, json.Number:
		if len(s) == 1 {
			return "0" + s
		}
	}
	return s
}

// Build maps raw form fields onto the request variant of method. The brand of
// a card is fixed by the method, and a missing PayPal account falls back to
// the customer email. A blank bank reference is kept blank.
func Build(method types.PaymentMethod, amount decimal.Decimal, currency, customerEmail, customerName string, fields RawFields) (types.PaymentRequest, error) {
	req := types.PaymentRequest{
		Method:        method,
		Amount:        amount,
		Currency:      currency,
		CustomerEmail: customerEmail,
		CustomerName:  customerName,
	}

	switch method {
	case types.MethodCardCIB, types.MethodCardInternational:
		brand := types.BrandVisa
		if method == types.MethodCardCIB {
			brand = types.BrandCIB
		}
		req.Details = types.CardDetails{
			CardNumber:  fields.String("cardNumber"),
			HolderName:  fields.String("holderName"),
			ExpiryMonth: fields.twoDigits("expiryMonth"),
			ExpiryYear:  fields.twoDigits("expiryYear"),
			CVC:         fields.String("cvc"),
			Brand:       brand,
		}
	case types.MethodPayPal:
		account := strings.TrimSpace(fields.String("paypalAccount"))
		if account == "" {
			account = customerEmail
		}
		req.Details = types.PayPalDetails{PayPalAccount: account}
	case types.MethodMobilePayment:
		req.Details = types.MobileDetails{PhoneNumber: fields.String("phoneNumber")}
	case types.MethodBankTransfer:
		req.Details = types.BankTransferDetails{Reference: strings.TrimSpace(fields.String("reference"))}
	default:
		return types.PaymentRequest{}, fmt.Errorf("%w: %q", ErrUnsupportedMethod, method)
	}

	return req, nil
}
