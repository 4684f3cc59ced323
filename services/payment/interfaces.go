package payment

import (
	"context"
	"time"

	"storefront-payment-api/models"
	"storefront-payment-api/types"
)

// Gateway executes a validated payment request. Failures are reported in the
// result, never as errors.
type Gateway interface {
	Execute(ctx context.Context, req types.PaymentRequest) models.PaymentResult
}

// Sleeper waits for d or until ctx is done, whichever comes first.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SoftDeclinePolicy decides whether a sanitized card number is held for bank
// confirmation instead of being approved.
type SoftDeclinePolicy func(cardNumber string) bool
