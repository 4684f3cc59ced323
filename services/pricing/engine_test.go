package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-payment-api/models"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testConfig() models.PricingConfig {
	return models.PricingConfig{
		MonthlyPrice:          dec("4000"),
		MonthlyTokens:         100000,
		Currency:              "DZD",
		PricePerMillionTokens: dec("1500"),
		VATEnabled:            true,
		VATRatePercent:        dec("20"),
		DiscountRules: []models.DiscountRule{
			{Threshold: 3, Percentage: dec("5")},
			{Threshold: 6, Percentage: dec("10")},
			{Threshold: 12, Percentage: dec("20")},
			{Threshold: 1000000, Percentage: dec("5")},
			{Threshold: 5000000, Percentage: dec("15")},
		},
	}
}

func subscription(qty int64, price string) models.CartLine {
	return models.CartLine{ID: "sub", Kind: models.KindSubscription, Quantity: qty, UnitPriceHT: dec(price)}
}

func TestComputeSummaryYearlySubscription(t *testing.T) {
	engine := NewEngine(models.PricingConfig{
		MonthlyTokens: 0,
		Currency:      "EUR",
		DiscountRules: []models.DiscountRule{{Threshold: 12, Percentage: dec("20")}},
	})

	summary := engine.ComputeSummary([]models.CartLine{subscription(12, "4000")}, dec("20"))

	assert.True(t, summary.SubtotalHT.Equal(dec("38400")), summary.SubtotalHT.String())
	assert.True(t, summary.TaxAmount.Equal(dec("7680")), summary.TaxAmount.String())
	assert.True(t, summary.TotalTTC.Equal(dec("46080")), summary.TotalTTC.String())
}

func TestComputeSummaryEmptyCart(t *testing.T) {
	engine := NewEngine(testConfig())

	summary := engine.Summarize(nil)

	assert.True(t, summary.SubtotalHT.IsZero())
	assert.True(t, summary.TaxAmount.IsZero())
	assert.True(t, summary.TotalTTC.IsZero())
	assert.Zero(t, summary.TotalTokensGranted)
	assert.True(t, summary.IsZero())
}

func TestComputeSummaryIsAdditive(t *testing.T) {
	engine := NewEngine(testConfig())
	a := subscription(6, "4000")
	b, err := TokenPackLine(engine.Config(), 2000000)
	require.NoError(t, err)
	vat := dec("19")

	both := engine.ComputeSummary([]models.CartLine{a, b}, vat)
	onlyA := engine.ComputeSummary([]models.CartLine{a}, vat)
	onlyB := engine.ComputeSummary([]models.CartLine{b}, vat)

	assert.True(t, both.SubtotalHT.Equal(onlyA.SubtotalHT.Add(onlyB.SubtotalHT)))
	assert.True(t, both.TaxAmount.Equal(onlyA.TaxAmount.Add(onlyB.TaxAmount)))
	assert.True(t, both.TotalTTC.Equal(onlyA.TotalTTC.Add(onlyB.TotalTTC)))
	assert.Equal(t, onlyA.TotalTokensGranted+onlyB.TotalTokensGranted, both.TotalTokensGranted)
}

func TestComputeSummaryTokensGranted(t *testing.T) {
	engine := NewEngine(testConfig())
	pack, err := TokenPackLine(engine.Config(), 250000)
	require.NoError(t, err)

	summary := engine.Summarize([]models.CartLine{subscription(3, "4000"), pack})

	assert.Equal(t, int64(3*100000+250000), summary.TotalTokensGranted)
}

func TestComputeSummaryRoundsOnceAtOutput(t *testing.T) {
	engine := NewEngine(models.PricingConfig{Currency: "EUR"})
	lines := []models.CartLine{
		{ID: "a", Kind: models.KindTokenPack, Quantity: 1, UnitPriceHT: dec("0.004")},
		{ID: "b", Kind: models.KindTokenPack, Quantity: 1, UnitPriceHT: dec("0.004")},
	}

	summary := engine.ComputeSummary(lines, decimal.Zero)

	// Rounding each line first would give 0.00.
	assert.True(t, summary.SubtotalHT.Equal(dec("0.01")), summary.SubtotalHT.String())
}

func TestComputeSummaryPartsAddUpToTotal(t *testing.T) {
	engine := NewEngine(models.PricingConfig{Currency: "EUR", PricePerMillionTokens: dec("1250")})
	pack, err := TokenPackLine(engine.Config(), 100)
	require.NoError(t, err)

	summary := engine.ComputeSummary([]models.CartLine{pack}, dec("20"))

	assert.True(t, summary.SubtotalHT.Equal(dec("0.13")), summary.SubtotalHT.String())
	assert.True(t, summary.TotalTTC.Equal(dec("0.15")), summary.TotalTTC.String())
	assert.True(t, summary.TaxAmount.Equal(dec("0.02")), summary.TaxAmount.String())

	for _, vat := range []string{"0", "7", "19", "20", "21.5"} {
		for _, tokens := range []int64{1, 7, 100, 333, 4999, 123457} {
			pack, err := TokenPackLine(engine.Config(), tokens)
			require.NoError(t, err)
			s := engine.ComputeSummary([]models.CartLine{pack, subscription(1, "0.335")}, dec(vat))
			assert.True(t, s.SubtotalHT.Add(s.TaxAmount).Equal(s.TotalTTC),
				"vat %s tokens %d: %s + %s != %s", vat, tokens, s.SubtotalHT, s.TaxAmount, s.TotalTTC)
		}
	}
}

func TestComputeSummaryZeroDecimalCurrency(t *testing.T) {
	engine := NewEngine(models.PricingConfig{Currency: "DZD"})

	summary := engine.ComputeSummary([]models.CartLine{subscription(1, "999.5")}, decimal.Zero)

	assert.True(t, summary.TotalTTC.Equal(dec("1000")), summary.TotalTTC.String())
}

func TestEffectiveDiscountKeepsLineDiscount(t *testing.T) {
	engine := NewEngine(testConfig())
	line := subscription(3, "100")
	line.DiscountPercent = dec("50")

	assert.True(t, engine.EffectiveDiscount(line).Equal(dec("50")))
	assert.True(t, engine.LineHT(line).Equal(dec("150")))
}

func TestComputeSummaryPanicsOnNegativeQuantity(t *testing.T) {
	engine := NewEngine(testConfig())
	assert.Panics(t, func() {
		engine.Summarize([]models.CartLine{subscription(-1, "4000")})
	})
}

func TestComputeSummaryPanicsOnDiscountOutOfRange(t *testing.T) {
	engine := NewEngine(testConfig())
	line := subscription(1, "4000")
	line.DiscountPercent = dec("101")
	assert.Panics(t, func() { engine.Summarize([]models.CartLine{line}) })
}

func TestVATDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.VATEnabled = false
	engine := NewEngine(cfg)

	summary := engine.Summarize([]models.CartLine{subscription(1, "4000")})

	assert.True(t, summary.TaxAmount.IsZero())
	assert.True(t, summary.TotalTTC.Equal(summary.SubtotalHT))
}

func TestEngineSnapshotsConfig(t *testing.T) {
	cfg := testConfig()
	engine := NewEngine(cfg)
	cfg.DiscountRules[2].Percentage = dec("90")

	assert.True(t, engine.ResolveDiscount(models.KindSubscription, 12).Equal(dec("20")))
}

func TestLineConstructors(t *testing.T) {
	cfg := testConfig()

	_, err := SubscriptionLine(cfg, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = TokenPackLine(cfg, -5)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	pack, err := TokenPackLine(cfg, 1000)
	require.NoError(t, err)
	assert.True(t, pack.UnitPriceHT.Equal(dec("0.0015")))
	assert.NotEmpty(t, pack.ID)
}

func TestLinesFromItems(t *testing.T) {
	engine := NewEngine(testConfig())

	lines, err := engine.LinesFromItems([]models.CartItem{
		{Kind: models.KindSubscription, Quantity: 6},
		{Kind: models.KindTokenPack, Quantity: 1000000},
	})
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.True(t, lines[0].UnitPriceHT.Equal(dec("4000")))

	_, err = engine.LinesFromItems([]models.CartItem{{Kind: "gift", Quantity: 1}})
	assert.ErrorIs(t, err, ErrUnknownKind)
}
