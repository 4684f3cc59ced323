package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CartLineKind separates subscriptions (quantity in months) from token packs
// (quantity in tokens).
type CartLineKind string

const (
	KindSubscription CartLineKind = "subscription"
	KindTokenPack    CartLineKind = "token_pack"
)

func ParseCartLineKind(s string) (CartLineKind, error) {
	switch k := CartLineKind(s); k {
	case KindSubscription, KindTokenPack:
		return k, nil
	default:
		return "", fmt.Errorf("unknown cart line kind %q", s)
	}
}

// CartLine is a priced line of the cart. Lines are copied into an Order when
// checkout starts and never change afterwards.
type CartLine struct {
	ID              string          `json:"id"`
	Kind            CartLineKind    `json:"kind"`
	Quantity        int64           `json:"quantity"`
	UnitPriceHT     decimal.Decimal `json:"unit_price_ht"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

// CartItem is what the storefront keeps in the session before prices are applied.
type CartItem struct {
	Kind     CartLineKind `json:"kind"`
	Quantity int64        `json:"quantity"`
}

type CartUpdate struct {
	Kind   CartLineKind `json:"kind"`
	Action string       `json:"action"`
	Amount int64        `json:"amount"`
}

type CartResponse struct {
	Lines        []CartLineResponse `json:"lines"`
	Summary      OrderSummary       `json:"summary"`
	Currency     string             `json:"currency"`
	NextDiscount string             `json:"next_discount,omitempty"`
}

type CartLineResponse struct {
	Kind            CartLineKind    `json:"kind"`
	Quantity        int64           `json:"quantity"`
	UnitPriceHT     decimal.Decimal `json:"unit_price_ht"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	LineHT          decimal.Decimal `json:"line_ht"`
}

// OrderSummary is always derived from cart lines and a VAT rate.
type OrderSummary struct {
	SubtotalHT         decimal.Decimal `json:"subtotal_ht"`
	TaxAmount          decimal.Decimal `json:"tax_amount"`
	TotalTTC           decimal.Decimal `json:"total_ttc"`
	TotalTokensGranted int64           `json:"total_tokens_granted"`
}

// IsZero reports whether nothing is owed.
func (s OrderSummary) IsZero() bool {
	return s.TotalTTC.IsZero()
}
