package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"storefront-payment-api/middleware"
	"storefront-payment-api/models"
	"storefront-payment-api/queue"
	"storefront-payment-api/services/order"
	"storefront-payment-api/services/payment"
	"storefront-payment-api/types"
)

type stubSettings struct {
	pricing     models.PricingConfig
	methods     models.PaymentMethodSettings
	invalidated int
}

func (s *stubSettings) Pricing(context.Context) (models.PricingConfig, error) {
	return s.pricing.Clone(), nil
}

func (s *stubSettings) PaymentMethods(context.Context) (models.PaymentMethodSettings, error) {
	return s.methods.Clone(), nil
}

func (s *stubSettings) Invalidate() { s.invalidated++ }

type recordingEnqueuer struct {
	mu   sync.Mutex
	jobs []queue.Job
	err  error
}

func (e *recordingEnqueuer) Enqueue(_ context.Context, jobType queue.JobType, data map[string]interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.jobs = append(e.jobs, queue.Job{Type: jobType, Data: data})
	return nil
}

type lockerStub struct {
	held     map[string]bool
	released []string
}

func (l *lockerStub) LockOrder(_ context.Context, id string) (bool, error) {
	if l.held[id] {
		return false, nil
	}
	return true, nil
}

func (l *lockerStub) ReleaseLock(_ context.Context, id string) error {
	l.released = append(l.released, id)
	return nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testSettings() *stubSettings {
	methods := models.PaymentMethodSettings{
		types.MethodCardCIB:           {Enabled: true, Label: "CIB card"},
		types.MethodCardInternational: {Enabled: true, Label: "Visa / Mastercard"},
		types.MethodPayPal:            {Enabled: false, Label: "PayPal"},
		types.MethodBankTransfer: {
			Enabled:      true,
			Label:        "Bank transfer",
			Instructions: "Quote the reference on your transfer.",
			BankAccounts: []models.BankAccount{{BankName: "BNA", AccountHolder: "Storefront SARL", AccountNumber: "0001234567"}},
		},
	}
	return &stubSettings{
		pricing: models.PricingConfig{
			MonthlyPrice:          dec("4000"),
			MonthlyTokens:         100000,
			Currency:              "EUR",
			PricePerMillionTokens: dec("1500"),
			VATEnabled:            true,
			VATRatePercent:        dec("20"),
			DiscountRules: []models.DiscountRule{
				{Threshold: 6, Percentage: dec("10")},
				{Threshold: 12, Percentage: dec("20")},
			},
		},
		methods: methods,
	}
}

var (
	ada   = models.Customer{ID: "c-1", Email: "ada@example.com", Name: "Ada Lovelace"}
	grace = models.Customer{ID: "c-2", Email: "grace@example.com", Name: "Grace Hopper"}
)

// testServer wires the public routes the way main does, with the customer
// injected instead of a bearer token.
type testServer struct {
	router   *mux.Router
	store    *order.MemoryStore
	settings *stubSettings
	enqueuer *recordingEnqueuer
	locker   *lockerStub
	cookies  []*http.Cookie
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		store:    order.NewMemoryStore(),
		settings: testSettings(),
		enqueuer: &recordingEnqueuer{},
		locker:   &lockerStub{held: map[string]bool{}},
	}

	controller := order.NewController(order.Options{
		Gateway: payment.NewSimulatedGateway(payment.GatewayOptions{Sleeper: payment.NoDelay{}}),
		Store:   ts.store,
	})
	cart := NewCart(NewSessionStore(SessionConfig{Secret: "0123456789abcdef0123456789abcdef", MaxAge: 3600}))

	paymentHandler, err := NewPaymentHandler(controller, ts.settings, cart, ts.locker)
	require.NoError(t, err)
	cartHandler := NewCartHandler(cart, ts.settings)
	catalogHandler := NewCatalogHandler(ts.settings)
	reconciliationHandler := NewReconciliationHandler(ts.enqueuer, "recon-token")

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/payment-methods", catalogHandler.GetPaymentMethods).Methods("GET")
	api.HandleFunc("/pricing", catalogHandler.GetPricing).Methods("GET")
	api.HandleFunc("/cart", cartHandler.AddToCart).Methods("POST")
	api.HandleFunc("/cart", cartHandler.UpdateCart).Methods("PUT")
	api.HandleFunc("/cart", cartHandler.GetCart).Methods("GET")
	api.HandleFunc("/cart/remove", cartHandler.RemoveFromCart).Methods("POST")
	api.HandleFunc("/checkout", paymentHandler.Checkout).Methods("POST")
	api.HandleFunc("/orders/{id}", paymentHandler.GetOrder).Methods("GET")
	api.HandleFunc("/orders/{id}/retry", paymentHandler.RetryOrder).Methods("POST")
	api.HandleFunc("/orders/{id}/abandon", paymentHandler.AbandonOrder).Methods("POST")
	api.HandleFunc("/reconciliation", reconciliationHandler.HandleReconciliation).Methods("POST")
	ts.router = r
	return ts
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// do sends a request as customer (nil for anonymous), keeping the session
// cookie between calls.
func (ts *testServer) do(t *testing.T, method, path string, body interface{}, customer *models.Customer) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for _, c := range ts.cookies {
		req.AddCookie(c)
	}
	if customer != nil {
		req = req.WithContext(middleware.WithCustomer(req.Context(), *customer))
	}

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	if cookies := rec.Result().Cookies(); len(cookies) > 0 {
		ts.cookies = cookies
	}

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out), string(env.Data))
	return out
}

func cardFields(number string) map[string]interface{} {
	return map[string]interface{}{
		"cardNumber":  number,
		"holderName":  "Ada Lovelace",
		"expiryMonth": 9,
		"expiryYear":  29,
		"cvc":         "123",
	}
}

func (ts *testServer) fillCart(t *testing.T) {
	t.Helper()
	rec, _ := ts.do(t, http.MethodPost, "/api/cart", models.CartItem{Kind: models.KindSubscription, Quantity: 12}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
}

func (ts *testServer) checkout(t *testing.T, customer models.Customer, method types.PaymentMethod, fields map[string]interface{}) (*httptest.ResponseRecorder, models.CheckoutResponse) {
	t.Helper()
	rec, env := ts.do(t, http.MethodPost, "/api/checkout", map[string]interface{}{
		"method": method,
		"fields": fields,
	}, &customer)
	if len(env.Data) == 0 {
		return rec, models.CheckoutResponse{}
	}
	return rec, decodeData[models.CheckoutResponse](t, env)
}
