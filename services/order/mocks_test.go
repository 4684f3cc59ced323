package order

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"storefront-payment-api/models"
	"storefront-payment-api/services/payment"
	"storefront-payment-api/types"
)

// countingGateway wraps a gateway and records every call.
type countingGateway struct {
	mu    sync.Mutex
	calls []types.PaymentRequest
	next  payment.Gateway
}

func (g *countingGateway) Execute(ctx context.Context, req types.PaymentRequest) models.PaymentResult {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	g.mu.Unlock()
	return g.next.Execute(ctx, req)
}

func (g *countingGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// blockingGateway signals when called and answers once released.
type blockingGateway struct {
	started chan struct{}
	release chan struct{}
	result  models.PaymentResult
}

func (g *blockingGateway) Execute(_ context.Context, _ types.PaymentRequest) models.PaymentResult {
	close(g.started)
	<-g.release
	return g.result
}

// recordingNotifier keeps every event it receives.
type recordingNotifier struct {
	mu     sync.Mutex
	events []models.PaymentEvent
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, ev models.PaymentEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

func (n *recordingNotifier) Events() []models.PaymentEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.PaymentEvent(nil), n.events...)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testPricing() models.PricingConfig {
	return models.PricingConfig{
		MonthlyPrice:          dec("4000"),
		MonthlyTokens:         100000,
		Currency:              "EUR",
		PricePerMillionTokens: dec("1500"),
		VATEnabled:            true,
		VATRatePercent:        dec("20"),
		DiscountRules:         []models.DiscountRule{{Threshold: 12, Percentage: dec("20")}},
	}
}

func testMethods() models.PaymentMethodSettings {
	settings := models.PaymentMethodSettings{}
	for _, m := range types.AllMethods() {
		settings[m] = models.PaymentMethodConfig{Enabled: true, Label: m.String()}
	}
	settings[types.MethodBankTransfer] = models.PaymentMethodConfig{
		Enabled:      true,
		Label:        "Bank transfer",
		Instructions: "Quote the reference on your transfer.",
		BankAccounts: []models.BankAccount{{BankName: "BNA", AccountHolder: "Storefront SARL", AccountNumber: "0001234567"}},
	}
	return settings
}

type fixture struct {
	store    *MemoryStore
	gateway  *countingGateway
	notifier *recordingNotifier
	ctrl     *Controller
}

func newFixture() *fixture {
	return newFixtureWith(payment.NewSimulatedGateway(payment.GatewayOptions{Sleeper: payment.NoDelay{}}), 0)
}

func newFixtureWith(gw payment.Gateway, timeout time.Duration) *fixture {
	f := &fixture{
		store:    NewMemoryStore(),
		gateway:  &countingGateway{next: gw},
		notifier: &recordingNotifier{},
	}
	f.ctrl = NewController(Options{
		Gateway:  f.gateway,
		Store:    f.store,
		Notifier: f.notifier,
		Timeout:  timeout,
	})
	return f
}

func yearlySubscription() []models.CartItem {
	return []models.CartItem{{Kind: models.KindSubscription, Quantity: 12}}
}

func cardFields(number string) payment.RawFields {
	return payment.RawFields{
		"cardNumber":  number,
		"holderName":  "Ada Lovelace",
		"expiryMonth": "09",
		"expiryYear":  "29",
		"cvc":         "123",
	}
}

func checkoutRequest(method types.PaymentMethod, fields payment.RawFields) CheckoutRequest {
	return CheckoutRequest{
		Customer: models.Customer{ID: "c-1", Email: "ada@example.com", Name: "Ada"},
		Items:    yearlySubscription(),
		Method:   method,
		Fields:   fields,
		Pricing:  testPricing(),
		Methods:  testMethods(),
	}
}
