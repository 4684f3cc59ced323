package order

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"storefront-payment-api/models"
	"storefront-payment-api/services/payment"
	"storefront-payment-api/services/pricing"
	"storefront-payment-api/types"
	"storefront-payment-api/utils"
)

const DefaultGatewayTimeout = 10 * time.Second

type Options struct {
	Gateway  payment.Gateway
	Store    Store
	Notifier Notifier
	Timeout  time.Duration
	Now      func() time.Time
}

// Controller drives orders from checkout to a settled payment.
type Controller struct {
	gateway  payment.Gateway
	store    Store
	notifier Notifier
	timeout  time.Duration
	now      func() time.Time

	mu       sync.Mutex
	inflight map[string]*attemptHandle
}

type attemptHandle struct {
	id        string
	abandoned bool
}

func NewController(opts Options) *Controller {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultGatewayTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		gateway:  opts.Gateway,
		store:    opts.Store,
		notifier: opts.Notifier,
		timeout:  opts.Timeout,
		now:      opts.Now,
		inflight: make(map[string]*attemptHandle),
	}
}

// CheckoutRequest carries everything an attempt needs. Pricing and method
// settings are read by the caller and locked into the order here.
type CheckoutRequest struct {
	Customer models.Customer
	Items    []models.CartItem
	Method   types.PaymentMethod
	Fields   payment.RawFields
	Pricing  models.PricingConfig
	Methods  models.PaymentMethodSettings
}

type RetryRequest struct {
	OrderID string
	Fields  payment.RawFields
	Methods models.PaymentMethodSettings
}

// Attempt is the outcome of one run of the payment pipeline.
type Attempt struct {
	Order            *models.Order
	Invoice          *models.Invoice
	Result           models.PaymentResult
	ValidationErrors []payment.ValidationError
	// PreGateway is set when validation stopped the attempt before any
	// gateway call.
	PreGateway bool
}

// Checkout creates a new order from the cart and runs its first attempt.
func (c *Controller) Checkout(ctx context.Context, req CheckoutRequest) (*Attempt, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyCart
	}
	if !req.Methods.IsEnabled(req.Method) {
		return nil, fmt.Errorf("%w: %s", ErrMethodUnavailable, req.Method)
	}

	engine := pricing.NewEngine(req.Pricing)
	lines, err := engine.LinesFromItems(req.Items)
	if err != nil {
		return nil, fmt.Errorf("invalid cart: %w", err)
	}

	now := c.now()
	order := &models.Order{
		ID:        uuid.New().String(),
		Reference: "ORD-" + utils.GenerateReferenceCode(8),
		Customer:  req.Customer,
		Currency:  engine.Currency(),
		Lines:     lines,
		Summary:   engine.Summarize(lines),
		Payment:   models.OrderPayment{Method: req.Method},
		Status:    models.OrderStatusCheckout,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if !CanTransition(order.Status, models.OrderStatusAwaitingPayment) {
		return nil, ErrIllegalTransition
	}
	order.Status = models.OrderStatusAwaitingPayment

	if err := c.store.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("error creating order: %w", err)
	}
	log.Printf("[Order: %s] Created %s for %s, total %s %s via %s",
		order.ID, order.Reference, order.Customer.Email,
		utils.FormatAmount(order.Summary.TotalTTC, order.Currency), order.Currency, order.Payment.Method)

	handle, err := c.begin(order.ID)
	if err != nil {
		return nil, err
	}
	defer c.end(order.ID, handle)

	return c.run(ctx, order, handle, req.Fields, req.Methods)
}

// Retry runs a new attempt on an existing order. Only orders still awaiting
// payment or failed may be retried; the priced snapshot is reused as is.
func (c *Controller) Retry(ctx context.Context, req RetryRequest) (*Attempt, error) {
	handle, err := c.begin(req.OrderID)
	if err != nil {
		return nil, err
	}
	defer c.end(req.OrderID, handle)

	order, err := c.store.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if !CanRetry(order.Status) {
		return nil, fmt.Errorf("%w: order %s is %s", ErrRetryNotAllowed, order.ID, order.Status)
	}
	if !req.Methods.IsEnabled(order.Payment.Method) {
		return nil, fmt.Errorf("%w: %s", ErrMethodUnavailable, order.Payment.Method)
	}

	if order.Status == models.OrderStatusFailed {
		previous := order.Status
		order.Status = models.OrderStatusAwaitingPayment
		order.FailureKind = models.FailureNone
		order.Payment.Result = nil
		order.UpdatedAt = c.now()
		if err := c.record(ctx, order, previous, nil); err != nil {
			return nil, fmt.Errorf("error reopening order: %w", err)
		}
		log.Printf("[Order: %s] Reopened for retry", order.ID)
	}

	return c.run(ctx, order, handle, req.Fields, req.Methods)
}

// Abandon detaches the in-flight attempt from its order. The gateway call is
// left to finish and its result is dropped; the order stays retryable. The
// attempt is cleared on the stored order, so any instance may abandon it.
func (c *Controller) Abandon(ctx context.Context, orderID string) error {
	c.mu.Lock()
	handle, local := c.inflight[orderID]
	if local {
		handle.abandoned = true
	}
	c.mu.Unlock()

	err := c.store.AbandonAttempt(ctx, orderID)
	if errors.Is(err, ErrNoAttemptInFlight) && local {
		// Not at the gateway yet: the local flag stops it.
		err = nil
	}
	if err != nil {
		return err
	}
	log.Printf("[Order: %s] Attempt abandoned", orderID)
	return nil
}

// Order returns the order and its invoice, if one was issued.
func (c *Controller) Order(ctx context.Context, orderID string) (*models.Order, *models.Invoice, error) {
	order, err := c.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	invoice, err := c.store.GetInvoiceByOrder(ctx, orderID)
	if errors.Is(err, ErrInvoiceNotFound) {
		return order, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return order, invoice, nil
}

func (c *Controller) begin(orderID string) (*attemptHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[orderID]; busy {
		return nil, fmt.Errorf("%w: %s", ErrAttemptInFlight, orderID)
	}
	h := &attemptHandle{id: uuid.New().String()}
	c.inflight[orderID] = h
	return h, nil
}

func (c *Controller) end(orderID string, h *attemptHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[orderID] == h {
		delete(c.inflight, orderID)
	}
}

func (c *Controller) isAbandoned(h *attemptHandle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return h.abandoned
}

// run is the attempt pipeline: build, validate, execute, record, notify. The
// order must be in AwaitingPayment.
func (c *Controller) run(ctx context.Context, order *models.Order, h *attemptHandle, fields payment.RawFields, methods models.PaymentMethodSettings) (*Attempt, error) {
	order.Payment.Attempts++

	if order.Summary.IsZero() {
		return c.settleFree(ctx, order)
	}

	fields = withDefaultReference(fields, order)
	req, err := payment.Build(order.Payment.Method, order.Summary.TotalTTC, order.Currency,
		order.Customer.Email, order.Customer.Name, fields)
	if err != nil {
		return nil, err
	}

	if verrs := payment.Validate(req); len(verrs) > 0 {
		result := models.FailedResult("invalid payment details")
		order.Status = models.OrderStatusFailed
		order.FailureKind = models.FailureValidation
		order.Payment.Result = &result
		order.UpdatedAt = c.now()
		if err := c.record(ctx, order, models.OrderStatusAwaitingPayment, nil); err != nil {
			return nil, fmt.Errorf("error recording failed attempt: %w", err)
		}
		log.Printf("[Order: %s] Attempt %d rejected before gateway: %d field error(s)",
			order.ID, order.Payment.Attempts, len(verrs))
		return &Attempt{Order: order, Result: result, ValidationErrors: verrs, PreGateway: true}, nil
	}

	if err := c.store.StartAttempt(ctx, order.ID, h.id); err != nil {
		return nil, fmt.Errorf("error starting attempt: %w", err)
	}
	order.Payment.AttemptID = h.id
	if c.isAbandoned(h) {
		return nil, ErrAttemptAbandoned
	}

	result, err := c.execute(ctx, req)
	if err != nil || c.isAbandoned(h) {
		log.Printf("[Order: %s] Discarding %s result of abandoned attempt %s", order.ID, result.Status, h.id)
		return nil, ErrAttemptAbandoned
	}

	next := statusFor(result)
	if !CanTransition(order.Status, next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, order.Status, next)
	}
	order.Status = next
	order.Payment.Result = &result
	order.UpdatedAt = c.now()
	switch {
	case next != models.OrderStatusFailed:
		order.FailureKind = models.FailureNone
	case result.FailureReason == models.FailureReasonTimeout:
		order.FailureKind = models.FailureTimeout
	default:
		order.FailureKind = models.FailureGateway
	}

	var invoice *models.Invoice
	if next != models.OrderStatusFailed {
		invoice = c.newInvoice(order)
	}
	if err := c.record(ctx, order, models.OrderStatusAwaitingPayment, invoice); err != nil {
		if errors.Is(err, ErrAttemptAbandoned) {
			log.Printf("[Order: %s] Discarding %s result of attempt %s abandoned elsewhere", order.ID, result.Status, h.id)
			return nil, ErrAttemptAbandoned
		}
		return nil, fmt.Errorf("error recording attempt: %w", err)
	}
	log.Printf("[Order: %s] Attempt %d: gateway %s, order %s, transaction %s",
		order.ID, order.Payment.Attempts, result.Status, order.Status, result.TransactionID)

	switch next {
	case models.OrderStatusPendingConfirmation:
		c.notify(ctx, pendingEvent(order, invoice, methods))
	case models.OrderStatusPaid:
		c.notify(ctx, confirmedEvent(order, invoice, models.EventPaymentConfirmed))
	}

	return &Attempt{Order: order, Invoice: invoice, Result: result}, nil
}

// record writes the order through the store, which clears the recorded attempt.
func (c *Controller) record(ctx context.Context, order *models.Order, expected models.OrderStatus, invoice *models.Invoice) error {
	if err := c.store.UpdateOrder(ctx, order, expected, invoice); err != nil {
		return err
	}
	order.Payment.AttemptID = ""
	return nil
}

// execute calls the gateway under the controller's timeout. It returns an
// error only when the caller's own context ended first.
func (c *Controller) execute(ctx context.Context, req types.PaymentRequest) (models.PaymentResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan models.PaymentResult, 1)
	go func() {
		done <- c.gateway.Execute(callCtx, req)
	}()

	select {
	case result := <-done:
		if result.Status == models.PaymentStatusFailed && ctx.Err() == nil &&
			errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return timeoutResult(), nil
		}
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		return result, nil
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return models.PaymentResult{}, ctx.Err()
		}
		return timeoutResult(), nil
	}
}

func timeoutResult() models.PaymentResult {
	return models.PaymentResult{
		Status:        models.PaymentStatusFailed,
		Message:       "payment timed out",
		FailureReason: models.FailureReasonTimeout,
	}
}

// settleFree marks a zero-total order paid without involving a gateway.
func (c *Controller) settleFree(ctx context.Context, order *models.Order) (*Attempt, error) {
	result := models.PaymentResult{Status: models.PaymentStatusSuccess, Message: "no payment required"}
	order.Status = models.OrderStatusPaid
	order.Payment.Result = &result
	order.UpdatedAt = c.now()
	invoice := c.newInvoice(order)
	if err := c.record(ctx, order, models.OrderStatusAwaitingPayment, invoice); err != nil {
		return nil, fmt.Errorf("error recording free order: %w", err)
	}
	log.Printf("[Order: %s] Nothing to pay, invoice %s issued as free", order.ID, invoice.Number)
	c.notify(ctx, confirmedEvent(order, invoice, models.EventPaymentConfirmed))
	return &Attempt{Order: order, Invoice: invoice, Result: result}, nil
}

func (c *Controller) newInvoice(order *models.Order) *models.Invoice {
	now := c.now()
	return &models.Invoice{
		ID:         uuid.New().String(),
		OrderID:    order.ID,
		Number:     fmt.Sprintf("INV-%s-%s", utils.FormatDate(now), utils.GenerateReferenceCode(6)),
		Status:     invoiceStatusFor(order),
		Currency:   order.Currency,
		SubtotalHT: order.Summary.SubtotalHT,
		TaxAmount:  order.Summary.TaxAmount,
		TotalTTC:   order.Summary.TotalTTC,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func invoiceStatusFor(order *models.Order) models.InvoiceStatus {
	switch order.Status {
	case models.OrderStatusPaid:
		if order.Summary.IsZero() {
			return models.InvoiceStatusFree
		}
		return models.InvoiceStatusPaid
	case models.OrderStatusPendingConfirmation:
		if order.Payment.Method == types.MethodBankTransfer {
			return models.InvoiceStatusBankPending
		}
		return models.InvoiceStatusPending
	default:
		return models.InvoiceStatusCancelled
	}
}

// withDefaultReference fills a blank bank transfer reference with the order
// reference so the customer always has something to quote.
func withDefaultReference(fields payment.RawFields, order *models.Order) payment.RawFields {
	if order.Payment.Method != types.MethodBankTransfer || strings.TrimSpace(fields.String("reference")) != "" {
		return fields
	}
	out := make(payment.RawFields, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["reference"] = order.Reference
	return out
}

func (c *Controller) notify(ctx context.Context, event models.PaymentEvent) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.Notify(ctx, event); err != nil {
		log.Printf("[Order: %s] Error sending %s notification: %v", event.OrderReference, event.Event, err)
	}
}
