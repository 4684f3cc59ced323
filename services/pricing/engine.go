package pricing

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront-payment-api/models"
	"storefront-payment-api/utils"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrUnknownKind     = errors.New("unknown cart line kind")
)

var (
	hundred = decimal.NewFromInt(100)
	million = decimal.NewFromInt(1_000_000)
)

// Engine prices cart lines against one snapshot of the pricing configuration.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	config models.PricingConfig
}

func NewEngine(cfg models.PricingConfig) *Engine {
	return &Engine{config: cfg.Clone()}
}

// Config returns a copy of the configuration the engine was built with.
func (e *Engine) Config() models.PricingConfig {
	return e.config.Clone()
}

func (e *Engine) Currency() string {
	return e.config.Currency
}

// ResolveDiscount picks the discount tier for a quantity of the given kind.
func (e *Engine) ResolveDiscount(kind models.CartLineKind, quantity int64) decimal.Decimal {
	return ResolveDiscount(e.config.DiscountRules, kind, quantity)
}

// ComputeSummary prices lines exactly and rounds once, to the currency's
// smallest unit, when building the result. An empty cart yields a zero summary.
func (e *Engine) ComputeSummary(lines []models.CartLine, vatRatePercent decimal.Decimal) models.OrderSummary {
	subtotal := decimal.Zero
	var tokens int64
	for _, line := range lines {
		subtotal = subtotal.Add(e.exactLineHT(line))
		tokens += e.tokensFor(line)
	}
	total := subtotal.Add(utils.PercentOf(subtotal, vatRatePercent))

	// Tax is derived from the two rounded amounts so the parts always add up
	// to the total charged.
	currency := e.config.Currency
	roundedSubtotal := utils.RoundMoney(subtotal, currency)
	roundedTotal := utils.RoundMoney(total, currency)
	return models.OrderSummary{
		SubtotalHT:         roundedSubtotal,
		TaxAmount:          roundedTotal.Sub(roundedSubtotal),
		TotalTTC:           roundedTotal,
		TotalTokensGranted: tokens,
	}
}

// Summarize uses the configured VAT rate, or zero when VAT is disabled.
func (e *Engine) Summarize(lines []models.CartLine) models.OrderSummary {
	return e.ComputeSummary(lines, e.config.EffectiveVATRate())
}

// EffectiveDiscount is the larger of the resolved tier and the line's own discount.
func (e *Engine) EffectiveDiscount(line models.CartLine) decimal.Decimal {
	tier := e.ResolveDiscount(line.Kind, line.Quantity)
	if line.DiscountPercent.GreaterThan(tier) {
		return line.DiscountPercent
	}
	return tier
}

// LineHT is the rounded amount of a single line, for display.
func (e *Engine) LineHT(line models.CartLine) decimal.Decimal {
	return utils.RoundMoney(e.exactLineHT(line), e.config.Currency)
}

func (e *Engine) exactLineHT(line models.CartLine) decimal.Decimal {
	mustBeValid(line)
	discount := e.EffectiveDiscount(line)
	factor := hundred.Sub(discount).Div(hundred)
	return line.UnitPriceHT.Mul(decimal.NewFromInt(line.Quantity)).Mul(factor)
}

func (e *Engine) tokensFor(line models.CartLine) int64 {
	switch line.Kind {
	case models.KindTokenPack:
		return line.Quantity
	case models.KindSubscription:
		return line.Quantity * e.config.MonthlyTokens
	default:
		return 0
	}
}

// mustBeValid panics on lines that cart construction should have rejected.
func mustBeValid(line models.CartLine) {
	if line.Quantity < 0 {
		panic(fmt.Sprintf("pricing: cart line %s has negative quantity %d", line.ID, line.Quantity))
	}
	if line.DiscountPercent.IsNegative() || line.DiscountPercent.GreaterThan(hundred) {
		panic(fmt.Sprintf("pricing: cart line %s has discount %s outside 0..100", line.ID, line.DiscountPercent))
	}
	if line.UnitPriceHT.IsNegative() {
		panic(fmt.Sprintf("pricing: cart line %s has negative unit price", line.ID))
	}
}

// SubscriptionLine builds a subscription line of the given number of months.
func SubscriptionLine(cfg models.PricingConfig, months int64) (models.CartLine, error) {
	if months <= 0 {
		return models.CartLine{}, fmt.Errorf("subscription of %d months: %w", months, ErrInvalidQuantity)
	}
	return models.CartLine{
		ID:              uuid.New().String(),
		Kind:            models.KindSubscription,
		Quantity:        months,
		UnitPriceHT:     cfg.MonthlyPrice,
		DiscountPercent: decimal.Zero,
	}, nil
}

// TokenPackLine builds a token pack line. The unit price is per token.
func TokenPackLine(cfg models.PricingConfig, tokens int64) (models.CartLine, error) {
	if tokens <= 0 {
		return models.CartLine{}, fmt.Errorf("token pack of %d tokens: %w", tokens, ErrInvalidQuantity)
	}
	return models.CartLine{
		ID:              uuid.New().String(),
		Kind:            models.KindTokenPack,
		Quantity:        tokens,
		UnitPriceHT:     cfg.PricePerMillionTokens.Div(million),
		DiscountPercent: decimal.Zero,
	}, nil
}

// LinesFromItems prices the session cart items with the engine's configuration.
func (e *Engine) LinesFromItems(items []models.CartItem) ([]models.CartLine, error) {
	lines := make([]models.CartLine, 0, len(items))
	for _, item := range items {
		var (
			line models.CartLine
			err  error
		)
		switch item.Kind {
		case models.KindSubscription:
			line, err = SubscriptionLine(e.config, item.Quantity)
		case models.KindTokenPack:
			line, err = TokenPackLine(e.config, item.Quantity)
		default:
			err = fmt.Errorf("%w: %q", ErrUnknownKind, item.Kind)
		}
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}
