package order

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-payment-api/models"
	"storefront-payment-api/services/payment"
	"storefront-payment-api/types"
)

func TestCheckoutCardSuccess(t *testing.T) {
	f := newFixture()

	attempt, err := f.ctrl.Checkout(context.Background(), checkoutRequest(types.MethodCardInternational, cardFields("4242424242424242")))
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusPaid, attempt.Order.Status)
	assert.True(t, strings.HasPrefix(attempt.Result.TransactionID, "INT-"))
	assert.True(t, attempt.Order.Summary.SubtotalHT.Equal(dec("38400")))
	assert.True(t, attempt.Order.Summary.TaxAmount.Equal(dec("7680")))
	assert.True(t, attempt.Order.Summary.TotalTTC.Equal(dec("46080")))
	require.NotNil(t, attempt.Invoice)
	assert.Equal(t, models.InvoiceStatusPaid, attempt.Invoice.Status)
	assert.Equal(t, 1, f.gateway.Calls())
	assert.True(t, f.gateway.calls[0].Amount.Equal(dec("46080")))

	stored, invoice, err := f.ctrl.Order(context.Background(), attempt.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, stored.Status)
	assert.Equal(t, attempt.Invoice.ID, invoice.ID)

	events := f.notifier.Events()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventPaymentConfirmed, events[0].Event)
	assert.Equal(t, "46080.00", events[0].Amount)
	assert.Equal(t, attempt.Invoice.ID, events[0].InvoiceID)
}

func TestCheckoutCardSoftDeclineIsPending(t *testing.T) {
	f := newFixture()

	attempt, err := f.ctrl.Checkout(context.Background(), checkoutRequest(types.MethodCardCIB, cardFields("4242424242420000")))
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusPendingConfirmation, attempt.Order.Status)
	assert.Equal(t, models.InvoiceStatusPending, attempt.Invoice.Status)
	events := f.notifier.Events()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventOrderPending, events[0].Event)
}

func TestCheckoutValidationFailureSkipsGateway(t *testing.T) {
	f := newFixture()

	attempt, err := f.ctrl.Checkout(context.Background(), checkoutRequest(types.MethodPayPal, payment.RawFields{"paypalAccount": "not-an-email"}))
	require.NoError(t, err)

	assert.True(t, attempt.PreGateway)
	require.Len(t, attempt.ValidationErrors, 1)
	assert.Equal(t, payment.FieldPayPalAccount, attempt.ValidationErrors[0].Field)
	assert.Equal(t, models.OrderStatusFailed, attempt.Order.Status)
	assert.Equal(t, models.FailureValidation, attempt.Order.FailureKind)
	assert.Nil(t, attempt.Invoice)
	assert.Zero(t, f.gateway.Calls())
	assert.Empty(t, f.notifier.Events())

	_, invoice, err := f.ctrl.Order(context.Background(), attempt.Order.ID)
	require.NoError(t, err)
	assert.Nil(t, invoice)
}

func TestCheckoutAnyValidationErrorNeverReachesGateway(t *testing.T) {
	f := newFixture()
	bad := []CheckoutRequest{
		checkoutRequest(types.MethodCardInternational, cardFields("4242424242424241")),
		checkoutRequest(types.MethodCardCIB, payment.RawFields{}),
		checkoutRequest(types.MethodMobilePayment, payment.RawFields{"phoneNumber": "12-34"}),
		checkoutRequest(types.MethodPayPal, payment.RawFields{"paypalAccount": "a@b"}),
	}
	for _, req := range bad {
		attempt, err := f.ctrl.Checkout(context.Background(), req)
		require.NoError(t, err)
		assert.NotEmpty(t, attempt.ValidationErrors)
	}
	assert.Zero(t, f.gateway.Calls())
}

func TestCheckoutBankTransferUsesOrderReference(t *testing.T) {
	f := newFixture()

	attempt, err := f.ctrl.Checkout(context.Background(), checkoutRequest(types.MethodBankTransfer, payment.RawFields{}))
	require.NoError(t, err)

	assert.Empty(t, attempt.ValidationErrors)
	assert.Equal(t, models.OrderStatusPendingConfirmation, attempt.Order.Status)
	assert.Equal(t, models.InvoiceStatusBankPending, attempt.Invoice.Status)
	assert.Equal(t, attempt.Order.Reference, attempt.Result.Metadata[payment.MetadataReference])

	events := f.notifier.Events()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventOrderPending, events[0].Event)
	assert.Equal(t, attempt.Order.Reference, events[0].Variables[VarReference])
	assert.Equal(t, "Quote the reference on your transfer.", events[0].Variables[VarInstructions])
	assert.Contains(t, events[0].Variables[VarBankAccounts], "0001234567")
}

func TestCheckoutMobileIsPending(t *testing.T) {
	f := newFixture()

	attempt, err := f.ctrl.Checkout(context.Background(), checkoutRequest(types.MethodMobilePayment, payment.RawFields{"phoneNumber": "0555 12 34 56"}))
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPendingConfirmation, attempt.Order.Status)
	assert.Equal(t, models.InvoiceStatusPending, attempt.Invoice.Status)
}

func TestCheckoutRejectsEmptyCartAndDisabledMethod(t *testing.T) {
	f := newFixture()

	req := checkoutRequest(types.MethodPayPal, payment.RawFields{})
	req.Items = nil
	_, err := f.ctrl.Checkout(context.Background(), req)
	assert.ErrorIs(t, err, ErrEmptyCart)

	req = checkoutRequest(types.MethodPayPal, payment.RawFields{})
	req.Methods[types.MethodPayPal] = models.PaymentMethodConfig{Enabled: false}
	_, err = f.ctrl.Checkout(context.Background(), req)
	assert.ErrorIs(t, err, ErrMethodUnavailable)
	assert.Zero(t, f.gateway.Calls())
}

func TestCheckoutFreeOrderSkipsGateway(t *testing.T) {
	f := newFixture()
	req := checkoutRequest(types.MethodCardInternational, payment.RawFields{})
	req.Pricing.MonthlyPrice = dec("0")

	attempt, err := f.ctrl.Checkout(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusPaid, attempt.Order.Status)
	assert.Equal(t, models.InvoiceStatusFree, attempt.Invoice.Status)
	assert.Zero(t, f.gateway.Calls())
}

func TestCheckoutSnapshotIgnoresLaterConfigChanges(t *testing.T) {
	f := newFixture()
	req := checkoutRequest(types.MethodBankTransfer, payment.RawFields{})

	attempt, err := f.ctrl.Checkout(context.Background(), req)
	require.NoError(t, err)
	req.Pricing.DiscountRules[0].Percentage = dec("50")
	req.Pricing.MonthlyPrice = dec("1")

	stored, _, err := f.ctrl.Order(context.Background(), attempt.Order.ID)
	require.NoError(t, err)
	assert.True(t, stored.Summary.TotalTTC.Equal(dec("46080")))
	assert.True(t, stored.Lines[0].UnitPriceHT.Equal(dec("4000")))
}

func TestCheckoutTimeoutIsFailedResult(t *testing.T) {
	slow := payment.NewSimulatedGateway(payment.GatewayOptions{CardLatency: time.Minute})
	f := newFixtureWith(slow, 20*time.Millisecond)

	attempt, err := f.ctrl.Checkout(context.Background(), checkoutRequest(types.MethodCardInternational, cardFields("4242424242424242")))
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusFailed, attempt.Order.Status)
	assert.Equal(t, models.FailureTimeout, attempt.Order.FailureKind)
	assert.Equal(t, models.FailureReasonTimeout, attempt.Result.FailureReason)
	assert.Nil(t, attempt.Invoice)
	assert.False(t, attempt.PreGateway)
}

func TestCheckoutIgnoresStuckGatewayAfterTimeout(t *testing.T) {
	gw := &blockingGateway{started: make(chan struct{}), release: make(chan struct{})}
	defer close(gw.release)
	f := newFixtureWith(gw, 20*time.Millisecond)

	attempt, err := f.ctrl.Checkout(context.Background(), checkoutRequest(types.MethodPayPal, payment.RawFields{}))
	require.NoError(t, err)
	assert.Equal(t, models.FailureTimeout, attempt.Order.FailureKind)
}

func TestCheckoutGatewayFailure(t *testing.T) {
	f := newFixtureWith(gatewayFunc(func(types.PaymentRequest) models.PaymentResult {
		return models.FailedResult("insufficient funds")
	}), 0)

	attempt, err := f.ctrl.Checkout(context.Background(), checkoutRequest(types.MethodCardInternational, cardFields("4242424242424242")))
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusFailed, attempt.Order.Status)
	assert.Equal(t, models.FailureGateway, attempt.Order.FailureKind)
	assert.Equal(t, "insufficient funds", attempt.Result.FailureReason)
	assert.Empty(t, f.notifier.Events())
}

type gatewayFunc func(types.PaymentRequest) models.PaymentResult

func (f gatewayFunc) Execute(_ context.Context, req types.PaymentRequest) models.PaymentResult {
	return f(req)
}

func TestRetryAfterValidationFailure(t *testing.T) {
	f := newFixture()
	first, err := f.ctrl.Checkout(context.Background(), checkoutRequest(types.MethodCardInternational, cardFields("1234")))
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusFailed, first.Order.Status)

	second, err := f.ctrl.Retry(context.Background(), RetryRequest{
		OrderID: first.Order.ID,
		Fields:  cardFields("4242424242424242"),
		Methods: testMethods(),
	})
	require.NoError(t, err)

	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, models.OrderStatusPaid, second.Order.Status)
	assert.Equal(t, models.FailureNone, second.Order.FailureKind)
	assert.Equal(t, 2, second.Order.Payment.Attempts)
	assert.True(t, second.Order.Summary.TotalTTC.Equal(first.Order.Summary.TotalTTC))
}

func TestRetryRejectedForPendingAndPaidOrders(t *testing.T) {
	f := newFixture()
	pending, err := f.ctrl.Checkout(context.Background(), checkoutRequest(types.MethodBankTransfer, payment.RawFields{}))
	require.NoError(t, err)
	paid, err := f.ctrl.Checkout(context.Background(), checkoutRequest(types.MethodPayPal, payment.RawFields{}))
	require.NoError(t, err)

	for _, id := range []string{pending.Order.ID, paid.Order.ID} {
		_, err := f.ctrl.Retry(context.Background(), RetryRequest{OrderID: id, Methods: testMethods()})
		assert.ErrorIs(t, err, ErrRetryNotAllowed)
	}
	assert.Equal(t, 2, f.gateway.Calls())
}

func TestRetryUnknownOrder(t *testing.T) {
	f := newFixture()
	_, err := f.ctrl.Retry(context.Background(), RetryRequest{OrderID: "missing", Methods: testMethods()})
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestAbandonDiscardsLateResult(t *testing.T) {
	gw := &blockingGateway{
		started: make(chan struct{}),
		release: make(chan struct{}),
		result:  models.PaymentResult{Status: models.PaymentStatusSuccess, TransactionID: "PP-LATE"},
	}
	f := newFixtureWith(gw, time.Minute)

	// A validation failure leaves a retryable order without touching the gateway.
	first, err := f.ctrl.Checkout(context.Background(), checkoutRequest(types.MethodPayPal, payment.RawFields{"paypalAccount": "nope"}))
	require.NoError(t, err)
	orderID := first.Order.ID

	done := make(chan error, 1)
	go func() {
		_, err := f.ctrl.Retry(context.Background(), RetryRequest{
			OrderID: orderID,
			Fields:  payment.RawFields{"paypalAccount": "ada@example.com"},
			Methods: testMethods(),
		})
		done <- err
	}()

	<-gw.started
	_, err = f.ctrl.Retry(context.Background(), RetryRequest{OrderID: orderID, Methods: testMethods()})
	assert.ErrorIs(t, err, ErrAttemptInFlight)

	require.NoError(t, f.ctrl.Abandon(context.Background(), orderID))
	close(gw.release)
	assert.ErrorIs(t, <-done, ErrAttemptAbandoned)

	stored, invoice, err := f.ctrl.Order(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusAwaitingPayment, stored.Status)
	assert.Nil(t, stored.Payment.Result)
	assert.Nil(t, invoice)
	assert.Empty(t, f.notifier.Events())
	assert.ErrorIs(t, f.ctrl.Abandon(context.Background(), orderID), ErrNoAttemptInFlight)
}

func TestAbandonFromAnotherInstance(t *testing.T) {
	gw := &blockingGateway{
		started: make(chan struct{}),
		release: make(chan struct{}),
		result:  models.PaymentResult{Status: models.PaymentStatusSuccess, TransactionID: "PP-LATE"},
	}
	f := newFixtureWith(gw, time.Minute)
	other := NewController(Options{Gateway: gw, Store: f.store, Notifier: f.notifier})

	type outcome struct {
		attempt *Attempt
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		a, err := f.ctrl.Checkout(context.Background(), checkoutRequest(types.MethodPayPal, payment.RawFields{}))
		done <- outcome{a, err}
	}()
	<-gw.started

	var orderID string
	f.store.mu.RLock()
	for id := range f.store.orders {
		orderID = id
	}
	f.store.mu.RUnlock()
	stored, err := f.store.GetOrder(context.Background(), orderID)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.Payment.AttemptID, "the running attempt is recorded before the gateway call")

	require.NoError(t, other.Abandon(context.Background(), orderID))
	assert.ErrorIs(t, other.Abandon(context.Background(), orderID), ErrNoAttemptInFlight)
	close(gw.release)

	res := <-done
	assert.ErrorIs(t, res.err, ErrAttemptAbandoned)
	assert.Nil(t, res.attempt)

	stored, invoice, err := other.Order(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusAwaitingPayment, stored.Status)
	assert.Empty(t, stored.Payment.AttemptID)
	assert.Nil(t, stored.Payment.Result)
	assert.Nil(t, invoice)
	assert.Empty(t, f.notifier.Events())
}

func TestCompletedAttemptIsNotRecorded(t *testing.T) {
	f := newFixture()

	attempt, err := f.ctrl.Checkout(context.Background(), checkoutRequest(types.MethodPayPal, payment.RawFields{}))
	require.NoError(t, err)

	stored, err := f.store.GetOrder(context.Background(), attempt.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, stored.Status)
	assert.Empty(t, stored.Payment.AttemptID)
	assert.Empty(t, attempt.Order.Payment.AttemptID)
}

func TestCallerCancellationDiscardsResult(t *testing.T) {
	gw := &blockingGateway{
		started: make(chan struct{}),
		release: make(chan struct{}),
		result:  models.PaymentResult{Status: models.PaymentStatusSuccess},
	}
	defer close(gw.release)
	f := newFixtureWith(gw, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		<-gw.started
		cancel()
	}()
	_, err := f.ctrl.Checkout(ctx, checkoutRequest(types.MethodPayPal, payment.RawFields{}))
	assert.ErrorIs(t, err, ErrAttemptAbandoned)
}

func TestConcurrentCheckoutsAreIndependent(t *testing.T) {
	f := newFixture()
	var wg sync.WaitGroup
	results := make([]*Attempt, 20)
	errs := make([]error, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := checkoutRequest(types.MethodPayPal, payment.RawFields{})
			req.Customer.Email = fmt.Sprintf("buyer%d@example.com", i)
			results[i], errs[i] = f.ctrl.Checkout(context.Background(), req)
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i, a := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, models.OrderStatusPaid, a.Order.Status)
		seen[a.Order.ID] = true
	}
	assert.Len(t, seen, 20)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(models.OrderStatusCart, models.OrderStatusCheckout))
	assert.True(t, CanTransition(models.OrderStatusCheckout, models.OrderStatusAwaitingPayment))
	assert.True(t, CanTransition(models.OrderStatusAwaitingPayment, models.OrderStatusPendingConfirmation))
	assert.True(t, CanTransition(models.OrderStatusPendingConfirmation, models.OrderStatusCancelled))
	assert.False(t, CanTransition(models.OrderStatusAwaitingPayment, models.OrderStatusCancelled))
	assert.False(t, CanTransition(models.OrderStatusFailed, models.OrderStatusAwaitingPayment))
	assert.False(t, CanTransition(models.OrderStatusPaid, models.OrderStatusCancelled))
	assert.True(t, CanRetry(models.OrderStatusFailed))
	assert.False(t, CanRetry(models.OrderStatusPendingConfirmation))
}
