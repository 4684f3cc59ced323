package settings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"storefront-payment-api/models"
)

const DefaultTTL = time.Minute

// Source reads the storefront settings tables.
type Source interface {
	GetPricingConfig(ctx context.Context) (models.PricingConfig, error)
	GetPaymentMethodSettings(ctx context.Context) (models.PaymentMethodSettings, error)
}

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// Cache keeps the last settings read for a TTL. Concurrent misses share a
// single read, and every caller gets its own copy.
type Cache struct {
	source Source
	ttl    time.Duration
	now    func() time.Time
	sfg    singleflight.Group

	mu sync.RWMutex
	// generation is bumped by Invalidate. A load started under an older
	// generation returns its value but does not cache it.
	generation uint64
	pricing    *entry[models.PricingConfig]
	methods    *entry[models.PaymentMethodSettings]
}

func NewCache(source Source, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{source: source, ttl: ttl, now: time.Now}
}

func (c *Cache) Pricing(ctx context.Context) (models.PricingConfig, error) {
	c.mu.RLock()
	e, gen := c.pricing, c.generation
	c.mu.RUnlock()
	if e != nil && c.now().Before(e.expiresAt) {
		return e.value.Clone(), nil
	}

	v, err, _ := c.sfg.Do(fmt.Sprintf("pricing:%d", gen), func() (interface{}, error) {
		cfg, err := c.source.GetPricingConfig(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.generation == gen {
			c.pricing = &entry[models.PricingConfig]{value: cfg.Clone(), expiresAt: c.now().Add(c.ttl)}
		}
		c.mu.Unlock()
		return cfg, nil
	})
	if err != nil {
		return models.PricingConfig{}, fmt.Errorf("error loading pricing settings: %w", err)
	}
	return v.(models.PricingConfig).Clone(), nil
}

func (c *Cache) PaymentMethods(ctx context.Context) (models.PaymentMethodSettings, error) {
	c.mu.RLock()
	e, gen := c.methods, c.generation
	c.mu.RUnlock()
	if e != nil && c.now().Before(e.expiresAt) {
		return e.value.Clone(), nil
	}

	v, err, _ := c.sfg.Do(fmt.Sprintf("methods:%d", gen), func() (interface{}, error) {
		settings, err := c.source.GetPaymentMethodSettings(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.generation == gen {
			c.methods = &entry[models.PaymentMethodSettings]{value: settings.Clone(), expiresAt: c.now().Add(c.ttl)}
		}
		c.mu.Unlock()
		return settings, nil
	})
	if err != nil {
		return nil, fmt.Errorf("error loading payment method settings: %w", err)
	}
	return v.(models.PaymentMethodSettings).Clone(), nil
}

// Invalidate drops cached values so the next read goes to the source.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.generation++
	c.pricing = nil
	c.methods = nil
	c.mu.Unlock()
}
