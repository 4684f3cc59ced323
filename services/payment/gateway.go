package payment

import (
	"context"
	"log"
	"time"

	"github.com/oklog/ulid/v2"

	"storefront-payment-api/models"
	"storefront-payment-api/types"
)

const (
	DefaultCardLatency   = 1500 * time.Millisecond
	DefaultPayPalLatency = 800 * time.Millisecond
	DefaultMobileLatency = 1000 * time.Millisecond
)

const (
	MessageApproved         = "payment approved"
	MessageAwaitingBank     = "awaiting bank confirmation"
	MessageAwaitingDevice   = "awaiting confirmation on the customer's device"
	MessageAwaitingTransfer = "awaiting bank transfer"
	FailureInvalidCard      = "invalid card data"
	FailureInvalidPayPal    = "invalid PayPal account"
	FailureInvalidPhone     = "invalid phone number"
)

const (
	MetadataReference     = "reference"
	MetadataLast4         = "last4"
	MetadataBrand         = "brand"
	MetadataPayPalAccount = "paypal_account"
	MetadataPhoneNumber   = "phone_number"
)

var transactionPrefixes = map[types.PaymentMethod]string{
	types.MethodCardInternational: "INT-",
	types.MethodCardCIB:           "CIB-",
	types.MethodPayPal:            "PP-",
	types.MethodMobilePayment:     "MOB-",
	types.MethodBankTransfer:      "BT-",
}

type GatewayOptions struct {
	CardLatency   time.Duration
	PayPalLatency time.Duration
	MobileLatency time.Duration
	Sleeper       Sleeper
	Now           func() time.Time
	SoftDecline   SoftDeclinePolicy
}

// SimulatedGateway stands in for a payment processor with deterministic
// outcomes. It keeps no per-call state and is safe for concurrent use.
type SimulatedGateway struct {
	opts GatewayOptions
}

func NewSimulatedGateway(opts GatewayOptions) *SimulatedGateway {
	if opts.Sleeper == nil {
		opts.Sleeper = RealSleeper{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SoftDecline == nil {
		opts.SoftDecline = EndsWithZeros
	}
	return &SimulatedGateway{opts: opts}
}

func (g *SimulatedGateway) Execute(ctx context.Context, req types.PaymentRequest) models.PaymentResult {
	return types.Dispatch[models.PaymentResult](req, execution{ctx: ctx, gw: g})
}

func (g *SimulatedGateway) transactionID(method types.PaymentMethod) string {
	id := ulid.MustNew(ulid.Timestamp(g.opts.Now()), ulid.DefaultEntropy())
	return transactionPrefixes[method] + id.String()
}

// execution binds one Execute call's context to the variant handlers.
type execution struct {
	ctx context.Context
	gw  *SimulatedGateway
}

func (e execution) wait(d time.Duration) (models.PaymentResult, bool) {
	if err := e.gw.opts.Sleeper.Sleep(e.ctx, d); err != nil {
		return models.FailedResult(err.Error()), false
	}
	return models.PaymentResult{}, true
}

func (e execution) Card(req types.PaymentRequest, d types.CardDetails) models.PaymentResult {
	if len(validator{}.Card(req, d)) > 0 {
		log.Printf("Gateway received invalid card data for %s", d.MaskedNumber())
		return models.FailedResult(FailureInvalidCard)
	}
	if res, ok := e.wait(e.gw.opts.CardLatency); !ok {
		return res
	}

	number := SanitizeCardNumber(d.CardNumber)
	meta := map[string]string{
		MetadataBrand: string(d.Brand),
		MetadataLast4: number[len(number)-4:],
	}
	if e.gw.opts.SoftDecline(number) {
		return models.PaymentResult{
			Status:        models.PaymentStatusPending,
			TransactionID: e.gw.transactionID(req.Method),
			Message:       MessageAwaitingBank,
			Metadata:      meta,
		}
	}
	return models.PaymentResult{
		Status:        models.PaymentStatusSuccess,
		TransactionID: e.gw.transactionID(req.Method),
		Message:       MessageApproved,
		Metadata:      meta,
	}
}

func (e execution) PayPal(req types.PaymentRequest, d types.PayPalDetails) models.PaymentResult {
	if !ValidEmail(d.PayPalAccount) {
		return models.FailedResult(FailureInvalidPayPal)
	}
	if res, ok := e.wait(e.gw.opts.PayPalLatency); !ok {
		return res
	}
	return models.PaymentResult{
		Status:        models.PaymentStatusSuccess,
		TransactionID: e.gw.transactionID(req.Method),
		Message:       MessageApproved,
		Metadata:      map[string]string{MetadataPayPalAccount: d.PayPalAccount},
	}
}

func (e execution) Mobile(req types.PaymentRequest, d types.MobileDetails) models.PaymentResult {
	phone := digitsOnly(d.PhoneNumber)
	if len(phone) < minPhoneDigits {
		return models.FailedResult(FailureInvalidPhone)
	}
	if res, ok := e.wait(e.gw.opts.MobileLatency); !ok {
		return res
	}
	return models.PaymentResult{
		Status:        models.PaymentStatusPending,
		TransactionID: e.gw.transactionID(req.Method),
		Message:       MessageAwaitingDevice,
		Metadata:      map[string]string{MetadataPhoneNumber: phone},
	}
}

// BankTransfer is settled out of band, so it is pending at once.
func (e execution) BankTransfer(req types.PaymentRequest, d types.BankTransferDetails) models.PaymentResult {
	return models.PaymentResult{
		Status:        models.PaymentStatusPending,
		TransactionID: e.gw.transactionID(req.Method),
		Message:       MessageAwaitingTransfer,
		Metadata:      map[string]string{MetadataReference: d.Reference},
	}
}
