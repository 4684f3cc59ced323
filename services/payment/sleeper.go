package payment

import (
	"context"
	"time"
)

// RealSleeper waits on a timer.
type RealSleeper struct{}

func (RealSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NoDelay returns at once. Tests use it to run the gateway synchronously.
type NoDelay struct{}

func (NoDelay) Sleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// EndsWithZeros holds cards whose number ends in 0000.
func EndsWithZeros(cardNumber string) bool {
	return len(cardNumber) >= 4 && cardNumber[len(cardNumber)-4:] == "0000"
}
