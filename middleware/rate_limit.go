package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"storefront-payment-api/utils"
)

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Message  string
}

var (
	// PaymentAttemptLimit guards checkout and retry, which reach the gateway.
	PaymentAttemptLimit = RateLimitConfig{
		Requests: 5,
		Window:   time.Minute,
		Message:  "Too many payment attempts. Please wait a minute.",
	}
	DefaultLimit = RateLimitConfig{
		Requests: 60,
		Window:   time.Minute,
		Message:  "Rate limit exceeded. Please slow down your requests.",
	}
)

// fixedWindowScript counts requests in the current window and returns
// {allowed, remaining}.
var fixedWindowScript = redis.NewScript(`
	local current = redis.call('INCR', KEYS[1])
	if current == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[2])
	end
	local limit = tonumber(ARGV[1])
	if current > limit then
		return {0, 0}
	end
	return {1, limit - current}
`)

type RateLimiter struct {
	client *redis.Client
	now    func() time.Time
}

// NewRateLimiter shares the queue's Redis client.
func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client, now: time.Now}
}

// Limit applies config per customer when authenticated, otherwise per client
// IP. Redis errors let the request through.
func (rl *RateLimiter) Limit(name string, config RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, resetTime := rl.key(r, name, config)

			allowed, remaining, err := rl.check(r.Context(), key, config)
			if err != nil {
				log.Printf("Rate limit check error: %v", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.Requests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

			if !allowed {
				log.Printf("Rate limit exceeded for key: %s, endpoint: %s", key, r.URL.Path)
				retryAfter := int64(resetTime.Sub(rl.now()).Seconds()) + 1
				w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
				utils.SendErrorResponse(w, http.StatusTooManyRequests, config.Message)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) key(r *http.Request, name string, config RateLimitConfig) (string, time.Time) {
	windowStart := rl.now().Truncate(config.Window)

	subject := "ip:" + getClientIP(r)
	if customer, ok := GetCustomerFromContext(r.Context()); ok {
		subject = "customer:" + customer.ID
	}

	return fmt.Sprintf("rate_limit:%s:%s:%d", name, subject, windowStart.Unix()),
		windowStart.Add(config.Window)
}

func (rl *RateLimiter) check(ctx context.Context, key string, config RateLimitConfig) (bool, int, error) {
	result, err := fixedWindowScript.Run(ctx, rl.client, []string{key},
		config.Requests, config.Window.Milliseconds()).Result()
	if err != nil {
		return false, 0, err
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return false, 0, fmt.Errorf("unexpected redis result format")
	}

	allowed, ok1 := values[0].(int64)
	remaining, ok2 := values[1].(int64)
	if !ok1 || !ok2 {
		return false, 0, fmt.Errorf("failed to parse redis result")
	}

	return allowed == 1, int(remaining), nil
}

func getClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		ips := strings.Split(ip, ",")
		return strings.TrimSpace(ips[0])
	}

	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

// SecurityHeadersMiddleware sets the response headers every API reply carries.
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
			w.Header().Set("Pragma", "no-cache")
			w.Header().Set("Expires", "0")
		}

		next.ServeHTTP(w, r)
	})
}
