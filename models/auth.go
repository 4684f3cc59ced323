package models

import "time"

// Customer is the identity placed in the request context by the auth
// middleware. Accounts live in the external auth system.
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// TokenValidationResponse is returned by the token introspection endpoint.
type TokenValidationResponse struct {
	Valid     bool      `json:"valid"`
	Customer  Customer  `json:"customer"`
	ExpiresAt time.Time `json:"expires_at"`
}
