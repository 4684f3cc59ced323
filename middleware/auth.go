package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"storefront-payment-api/models"
	"storefront-payment-api/services/auth"
	"storefront-payment-api/utils"
)

type contextKey string

const CustomerContextKey contextKey = "customer"

// TokenValidator is satisfied by *auth.JWTService.
type TokenValidator interface {
	ValidateToken(token string) (*models.TokenValidationResponse, error)
}

// AuthMiddleware requires a valid bearer token and puts the customer in the
// request context.
func AuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				log.Printf("Missing Authorization header from %s", r.RemoteAddr)
				utils.SendErrorResponse(w, http.StatusUnauthorized, "Missing authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				log.Printf("Invalid Authorization header format from %s", r.RemoteAddr)
				utils.SendErrorResponse(w, http.StatusUnauthorized, "Invalid authorization header format")
				return
			}

			resp, err := validator.ValidateToken(parts[1])
			if err != nil {
				log.Printf("Token validation failed from %s: %v", r.RemoteAddr, err)

				message := "Authentication failed"
				switch {
				case errors.Is(err, auth.ErrTokenExpired):
					message = "Token expired"
				case errors.Is(err, auth.ErrInvalidToken):
					message = "Invalid token"
				}

				utils.SendErrorResponse(w, http.StatusUnauthorized, message)
				return
			}

			ctx := WithCustomer(r.Context(), resp.Customer)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithCustomer(ctx context.Context, customer models.Customer) context.Context {
	return context.WithValue(ctx, CustomerContextKey, customer)
}

// GetCustomerFromContext returns the authenticated customer, if any.
func GetCustomerFromContext(ctx context.Context) (models.Customer, bool) {
	customer, ok := ctx.Value(CustomerContextKey).(models.Customer)
	return customer, ok
}

func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		log.Printf("%s %s %d %v %s", r.Method, r.RequestURI, wrapper.status, time.Since(start), r.UserAgent())
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
