package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"storefront-payment-api/models"
	"storefront-payment-api/services/settings"
	"storefront-payment-api/types"
)

var ErrPricingNotConfigured = errors.New("pricing settings not configured")

// SettingsRepository reads the storefront pricing and payment method
// configuration. It is the source behind settings.Cache.
type SettingsRepository struct {
	conn *Connection
}

var _ settings.Source = (*SettingsRepository)(nil)

func NewSettingsRepository(conn *Connection) *SettingsRepository {
	return &SettingsRepository{conn: conn}
}

func (r *SettingsRepository) GetPricingConfig(ctx context.Context) (models.PricingConfig, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var cfg models.PricingConfig
	err := r.conn.db.QueryRowContext(ctx, `
		SELECT monthly_price, monthly_tokens, currency, price_per_million_tokens,
			vat_enabled, vat_rate_percent
		FROM pricing_settings
		WHERE id = 1
	`).Scan(&cfg.MonthlyPrice, &cfg.MonthlyTokens, &cfg.Currency,
		&cfg.PricePerMillionTokens, &cfg.VATEnabled, &cfg.VATRatePercent)
	if errors.Is(err, sql.ErrNoRows) {
		return cfg, ErrPricingNotConfigured
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to load pricing settings: %w", err)
	}

	rows, err := r.conn.db.QueryContext(ctx,
		`SELECT threshold, percentage FROM discount_rules ORDER BY threshold`)
	if err != nil {
		return cfg, fmt.Errorf("failed to load discount rules: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rule models.DiscountRule
		if err := rows.Scan(&rule.Threshold, &rule.Percentage); err != nil {
			return cfg, fmt.Errorf("failed to scan discount rule: %w", err)
		}
		cfg.DiscountRules = append(cfg.DiscountRules, rule)
	}
	if err := rows.Err(); err != nil {
		return cfg, fmt.Errorf("failed to read discount rules: %w", err)
	}

	return cfg, nil
}

func (r *SettingsRepository) GetPaymentMethodSettings(ctx context.Context) (models.PaymentMethodSettings, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.conn.db.QueryContext(ctx, `
		SELECT method, enabled, label, instructions, bank_accounts
		FROM payment_methods
		ORDER BY sort_order
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment methods: %w", err)
	}
	defer rows.Close()

	out := make(models.PaymentMethodSettings)
	for rows.Next() {
		var (
			name         string
			cfg          models.PaymentMethodConfig
			instructions sql.NullString
			accounts     []byte
		)
		if err := rows.Scan(&name, &cfg.Enabled, &cfg.Label, &instructions, &accounts); err != nil {
			return nil, fmt.Errorf("failed to scan payment method: %w", err)
		}

		method, err := types.ParsePaymentMethod(name)
		if err != nil {
			log.Printf("Skipping unknown payment method %q in settings", name)
			continue
		}

		cfg.Instructions = instructions.String
		if len(accounts) > 0 {
			if err := json.Unmarshal(accounts, &cfg.BankAccounts); err != nil {
				return nil, fmt.Errorf("failed to decode bank accounts of %s: %w", method, err)
			}
		}
		out[method] = cfg
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read payment methods: %w", err)
	}

	return out, nil
}
