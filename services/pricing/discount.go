package pricing

import (
	"github.com/shopspring/decimal"

	"storefront-payment-api/models"
)

func familyFor(kind models.CartLineKind) models.DiscountFamily {
	if kind == models.KindSubscription {
		return models.FamilyDuration
	}
	return models.FamilyVolume
}

// ResolveDiscount returns the percentage of the rule with the largest
// threshold not exceeding quantity, within the family matching kind. If a
// threshold is configured twice the higher percentage wins.
func ResolveDiscount(rules []models.DiscountRule, kind models.CartLineKind, quantity int64) decimal.Decimal {
	family := familyFor(kind)
	best := decimal.Zero
	bestThreshold := int64(-1)
	for _, rule := range rules {
		if rule.Family() != family || rule.Threshold > quantity {
			continue
		}
		switch {
		case rule.Threshold > bestThreshold:
			bestThreshold = rule.Threshold
			best = rule.Percentage
		case rule.Threshold == bestThreshold && rule.Percentage.GreaterThan(best):
			best = rule.Percentage
		}
	}
	return best
}

// Tier is the next discount a cart line can reach.
type Tier struct {
	Rule   models.DiscountRule
	Needed int64
}

// NextTier finds the closest rule above quantity that improves on the current
// discount. It returns false when the line already has the best tier.
func (e *Engine) NextTier(kind models.CartLineKind, quantity int64) (Tier, bool) {
	family := familyFor(kind)
	current := e.ResolveDiscount(kind, quantity)
	var (
		next  Tier
		found bool
	)
	for _, rule := range e.config.DiscountRules {
		if rule.Family() != family || rule.Threshold <= quantity || !rule.Percentage.GreaterThan(current) {
			continue
		}
		if !found || rule.Threshold < next.Rule.Threshold ||
			(rule.Threshold == next.Rule.Threshold && rule.Percentage.GreaterThan(next.Rule.Percentage)) {
			next = Tier{Rule: rule, Needed: rule.Threshold - quantity}
			found = true
		}
	}
	return next, found
}
