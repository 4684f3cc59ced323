package payment

import (
	"errors"
	"fmt"
)

// ErrUnsupportedMethod means the caller passed a method the builder does not
// know. It is an integration bug, not something the customer can fix.
var ErrUnsupportedMethod = errors.New("unsupported payment method")

// ValidationError is a field-scoped problem the customer can correct.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

const (
	FieldCardNumber    = "cardNumber"
	FieldHolderName    = "holderName"
	FieldExpiryMonth   = "expiryMonth"
	FieldExpiryYear    = "expiryYear"
	FieldCVC           = "cvc"
	FieldPayPalAccount = "paypalAccount"
	FieldPhoneNumber   = "phoneNumber"
	FieldReference     = "reference"
)
