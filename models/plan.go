package models

import (
	"github.com/shopspring/decimal"

	"storefront-payment-api/types"
)

// DurationThresholdLimit separates the two discount families: thresholds up to
// this value count months, larger ones count tokens.
const DurationThresholdLimit = 12

type DiscountFamily string

const (
	FamilyDuration DiscountFamily = "duration"
	FamilyVolume   DiscountFamily = "volume"
)

type DiscountRule struct {
	Threshold  int64           `json:"threshold"`
	Percentage decimal.Decimal `json:"percentage"`
}

func (r DiscountRule) Family() DiscountFamily {
	if r.Threshold <= DurationThresholdLimit {
		return FamilyDuration
	}
	return FamilyVolume
}

// PricingConfig is the storefront pricing configuration, read from the
// settings store and passed around as a value.
type PricingConfig struct {
	MonthlyPrice          decimal.Decimal `json:"monthly_price"`
	MonthlyTokens         int64           `json:"monthly_tokens"`
	Currency              string          `json:"currency"`
	PricePerMillionTokens decimal.Decimal `json:"price_per_million_tokens"`
	VATEnabled            bool            `json:"vat_enabled"`
	VATRatePercent        decimal.Decimal `json:"vat_rate_percent"`
	DiscountRules         []DiscountRule  `json:"discount_rules"`
}

// EffectiveVATRate is zero when VAT is disabled.
func (c PricingConfig) EffectiveVATRate() decimal.Decimal {
	if !c.VATEnabled {
		return decimal.Zero
	}
	return c.VATRatePercent
}

// Clone returns a copy that shares no slices with c.
func (c PricingConfig) Clone() PricingConfig {
	out := c
	out.DiscountRules = append([]DiscountRule(nil), c.DiscountRules...)
	return out
}

type BankAccount struct {
	BankName      string `json:"bank_name"`
	AccountHolder string `json:"account_holder"`
	AccountNumber string `json:"account_number"`
}

type PaymentMethodConfig struct {
	Enabled      bool          `json:"enabled"`
	Label        string        `json:"label"`
	BankAccounts []BankAccount `json:"bank_accounts,omitempty"`
	Instructions string        `json:"instructions,omitempty"`
}

type PaymentMethodSettings map[types.PaymentMethod]PaymentMethodConfig

func (s PaymentMethodSettings) IsEnabled(m types.PaymentMethod) bool {
	cfg, ok := s[m]
	return ok && cfg.Enabled
}

// Enabled lists the enabled methods in display order.
func (s PaymentMethodSettings) Enabled() []types.PaymentMethod {
	var out []types.PaymentMethod
	for _, m := range types.AllMethods() {
		if s.IsEnabled(m) {
			out = append(out, m)
		}
	}
	return out
}

func (s PaymentMethodSettings) Clone() PaymentMethodSettings {
	out := make(PaymentMethodSettings, len(s))
	for m, cfg := range s {
		cfg.BankAccounts = append([]BankAccount(nil), cfg.BankAccounts...)
		out[m] = cfg
	}
	return out
}
