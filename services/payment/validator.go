package payment

import (
	"regexp"
	"strings"
	"unicode"

	"storefront-payment-api/types"
)

var (
	monthPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])$`)
	yearPattern  = regexp.MustCompile(`^[0-9]{2}$`)
	cvcPattern   = regexp.MustCompile(`^[0-9]{3,4}$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

const (
	minCardDigits  = 12
	maxCardDigits  = 19
	minPhoneDigits = 8
)

// Validate checks every field of the request and returns all problems found.
// An empty result means the request may be sent to a gateway.
func Validate(req types.PaymentRequest) []ValidationError {
	return types.Dispatch[[]ValidationError](req, validator{})
}

type validator struct{}

func (validator) Card(_ types.PaymentRequest, d types.CardDetails) []ValidationError {
	var errs []ValidationError
	if msg := checkCardNumber(d.CardNumber); msg != "" {
		errs = append(errs, ValidationError{Field: FieldCardNumber, Message: msg})
	}
	if strings.TrimSpace(d.HolderName) == "" {
		errs = append(errs, ValidationError{Field: FieldHolderName, Message: "cardholder name is required"})
	}
	if !monthPattern.MatchString(d.ExpiryMonth) {
		errs = append(errs, ValidationError{Field: FieldExpiryMonth, Message: "expiry month must be between 01 and 12"})
	}
	if !yearPattern.MatchString(d.ExpiryYear) {
		errs = append(errs, ValidationError{Field: FieldExpiryYear, Message: "expiry year must be two digits"})
	}
	if !cvcPattern.MatchString(d.CVC) {
		errs = append(errs, ValidationError{Field: FieldCVC, Message: "security code must be 3 or 4 digits"})
	}
	return errs
}

func (validator) PayPal(_ types.PaymentRequest, d types.PayPalDetails) []ValidationError {
	if !ValidEmail(d.PayPalAccount) {
		return []ValidationError{{Field: FieldPayPalAccount, Message: "PayPal account must be a valid email address"}}
	}
	return nil
}

func (validator) Mobile(_ types.PaymentRequest, d types.MobileDetails) []ValidationError {
	if len(digitsOnly(d.PhoneNumber)) < minPhoneDigits {
		return []ValidationError{{Field: FieldPhoneNumber, Message: "phone number must have at least 8 digits"}}
	}
	return nil
}

// BankTransfer has nothing to check: the reference is advisory.
func (validator) BankTransfer(types.PaymentRequest, types.BankTransferDetails) []ValidationError {
	return nil
}

func checkCardNumber(raw string) string {
	number := SanitizeCardNumber(raw)
	switch {
	case number == "":
		return "card number is required"
	case !allDigits(number):
		return "card number must contain only digits"
	case len(number) < minCardDigits || len(number) > maxCardDigits:
		return "card number must be 12 to 19 digits"
	case !ValidateLuhn(number):
		return "card number is invalid"
	}
	return ""
}

// SanitizeCardNumber removes whitespace. Other separators are left in place
// and make the number invalid.
func SanitizeCardNumber(number string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, number)
}

// ValidateLuhn reports whether number passes the Luhn checksum. Any non-digit
// character makes it fail.
func ValidateLuhn(number string) bool {
	if number == "" {
		return false
	}
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		c := number[i]
		if c < '0' || c > '9' {
			return false
		}
		digit := int(c - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}
	return sum%10 == 0
}

// ValidEmail accepts local@domain.tld with no whitespace.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
