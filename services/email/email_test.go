package email

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-payment-api/models"
	"storefront-payment-api/queue"
)

type mockSender struct {
	mu    sync.Mutex
	sent  []string
	err   error
	calls int
}

func (m *mockSender) SendEmail(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to+"|"+subject+"|"+body)
	return nil
}

type mockEnqueuer struct {
	jobType queue.JobType
	data    map[string]interface{}
}

func (m *mockEnqueuer) Enqueue(_ context.Context, jobType queue.JobType, data map[string]interface{}) error {
	m.jobType = jobType
	m.data = data
	return nil
}

func pendingBankEvent() models.PaymentEvent {
	return models.PaymentEvent{
		Event:          models.EventOrderPending,
		OrderReference: "ORD-ABC123",
		InvoiceID:      "inv-1",
		Amount:         "46080.00",
		Currency:       "EUR",
		CustomerEmail:  "ada@example.com",
		CustomerName:   "Ada <script>",
		Variables: map[string]string{
			"payment_method":     "bank_transfer",
			"message":            "awaiting bank transfer",
			"transfer_reference": "ORD-ABC123",
			"instructions":       "Quote the reference.",
			"bank_accounts":      "BNA / Storefront / 0001\nCPA / Storefront / 0002",
			"subtotal_ht":        "38400.00",
			"tax_amount":         "7680.00",
			"tokens_granted":     "1200000",
			"invoice_number":     "INV-20260301-XYZ",
		},
	}
}

func TestRenderOrderPendingBankTransfer(t *testing.T) {
	subject, body, err := Render(pendingBankEvent())
	require.NoError(t, err)

	assert.Equal(t, "Order ORD-ABC123: payment pending", subject)
	assert.Contains(t, body, "quoting the reference <strong>ORD-ABC123</strong>")
	assert.Contains(t, body, "Quote the reference.")
	assert.Contains(t, body, "<li>CPA / Storefront / 0002</li>")
	assert.Contains(t, body, "INV-20260301-XYZ")
	assert.Contains(t, body, "46080.00 EUR")
	assert.Contains(t, body, "Ada &lt;script&gt;")
	assert.NotContains(t, body, "<script>")
}

func TestRenderConfirmationEvents(t *testing.T) {
	ev := pendingBankEvent()
	ev.Event = models.EventPaymentConfirmed
	ev.Variables["transaction_id"] = "INT-01HX"

	subject, body, err := Render(ev)
	require.NoError(t, err)
	assert.Equal(t, "Order ORD-ABC123: payment confirmed", subject)
	assert.Contains(t, body, "Transaction: INT-01HX")
	assert.Contains(t, body, "1200000 tokens")

	ev.Event = models.EventBankTransferReceived
	subject, body, err = Render(ev)
	require.NoError(t, err)
	assert.Equal(t, "Order ORD-ABC123: bank transfer received", subject)
	assert.Contains(t, body, "received your bank transfer")
}

func TestRenderUnknownEvent(t *testing.T) {
	_, _, err := Render(models.PaymentEvent{Event: "refund_issued"})
	assert.Error(t, err)
}

func TestDirectNotifierSends(t *testing.T) {
	sender := &mockSender{}
	n := NewDirectNotifier(sender)

	require.NoError(t, n.Notify(context.Background(), pendingBankEvent()))
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0], "ada@example.com|Order ORD-ABC123: payment pending|")

	sender.err = errors.New("connection refused")
	assert.ErrorContains(t, n.Notify(context.Background(), pendingBankEvent()), "connection refused")
}

func TestQueueNotifierRoundTrip(t *testing.T) {
	q := &mockEnqueuer{}
	n := NewQueueNotifier(q)

	require.NoError(t, n.Notify(context.Background(), pendingBankEvent()))
	assert.Equal(t, queue.JobTypeSendPaymentEvent, q.jobType)

	ev, err := DecodeEvent(&queue.Job{ID: "1", Data: q.data})
	require.NoError(t, err)
	assert.Equal(t, pendingBankEvent(), ev)

	_, err = DecodeEvent(&queue.Job{ID: "2", Data: map[string]interface{}{}})
	assert.Error(t, err)
}

func TestBreakerSenderOpensAfterFailures(t *testing.T) {
	sender := &mockSender{err: errors.New("smtp down")}
	b := NewBreakerSender(sender, BreakerSettings{ConsecutiveFailures: 2, OpenTimeout: time.Minute})

	assert.Error(t, b.SendEmail("a@b.co", "s", "b"))
	assert.Error(t, b.SendEmail("a@b.co", "s", "b"))
	assert.Equal(t, gobreaker.StateOpen, b.State())

	err := b.SendEmail("a@b.co", "s", "b")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, sender.calls)
}

func TestBuildMessageHeaders(t *testing.T) {
	msg := buildMessage("from@x.io", "to@y.io", "Hi", "<p>body</p>")
	assert.Contains(t, msg, "From: Storefront <from@x.io>\r\n")
	assert.Contains(t, msg, "Content-Type: text/html; charset=UTF-8\r\n\r\n<p>body</p>")
}
