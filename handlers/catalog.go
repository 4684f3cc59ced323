package handlers

import (
	"log"
	"net/http"

	"github.com/shopspring/decimal"

	"storefront-payment-api/models"
	"storefront-payment-api/utils"
)

type CatalogHandler struct {
	settings SettingsSource
}

func NewCatalogHandler(settings SettingsSource) *CatalogHandler {
	return &CatalogHandler{settings: settings}
}

// GetPaymentMethods lists the enabled methods in display order.
func (h *CatalogHandler) GetPaymentMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := h.settings.PaymentMethods(r.Context())
	if err != nil {
		log.Printf("Error loading payment methods: %v", err)
		utils.SendErrorResponse(w, http.StatusServiceUnavailable, "Payment methods are unavailable")
		return
	}

	out := make([]models.PaymentMethodResponse, 0, len(methods))
	for _, m := range methods.Enabled() {
		cfg := methods[m]
		out = append(out, models.PaymentMethodResponse{
			Method:       m.String(),
			Label:        cfg.Label,
			Instructions: cfg.Instructions,
			BankAccounts: cfg.BankAccounts,
		})
	}

	utils.SendSuccessResponse(w, models.APIResponse{Status: "success", Data: out})
}

type pricingResponse struct {
	Currency              string                `json:"currency"`
	MonthlyPrice          decimal.Decimal       `json:"monthly_price"`
	MonthlyTokens         int64                 `json:"monthly_tokens"`
	PricePerMillionTokens decimal.Decimal       `json:"price_per_million_tokens"`
	VATRatePercent        decimal.Decimal       `json:"vat_rate_percent"`
	DiscountRules         []models.DiscountRule `json:"discount_rules"`
}

// GetPricing publishes the prices and discount tiers the cart is priced with.
func (h *CatalogHandler) GetPricing(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.settings.Pricing(r.Context())
	if err != nil {
		log.Printf("Error loading pricing: %v", err)
		utils.SendErrorResponse(w, http.StatusServiceUnavailable, "Pricing is unavailable")
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status: "success",
		Data: pricingResponse{
			Currency:              cfg.Currency,
			MonthlyPrice:          cfg.MonthlyPrice,
			MonthlyTokens:         cfg.MonthlyTokens,
			PricePerMillionTokens: cfg.PricePerMillionTokens,
			VATRatePercent:        cfg.EffectiveVATRate(),
			DiscountRules:         cfg.DiscountRules,
		},
	})
}
