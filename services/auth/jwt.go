package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"storefront-payment-api/models"
)

const AccessTokenDuration = 15 * time.Minute

var (
	ErrTokenExpired = errors.New("token expired")
	ErrInvalidToken = errors.New("invalid token")
)

// JWTService verifies customer tokens issued by the storefront's auth system.
// Both sides share the HMAC secret and issuer.
type JWTService struct {
	secretKey []byte
	issuer    string
	now       func() time.Time
}

type Claims struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	TokenType string `json:"token_type"` // "access" or "refresh"
	jwt.RegisteredClaims
}

func NewJWTService(secretKey, issuer string) *JWTService {
	return &JWTService{
		secretKey: []byte(secretKey),
		issuer:    issuer,
		now:       time.Now,
	}
}

// GenerateToken signs an access token for customer. The payment API never
// logs anyone in; this exists for the auth system's integration tests and
// local tooling.
func (j *JWTService) GenerateToken(customer models.Customer, duration time.Duration) (string, error) {
	now := j.now()
	claims := Claims{
		Email:     customer.Email,
		Name:      customer.Name,
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   customer.ID,
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secretKey)
}

// ValidateToken checks signature, issuer and expiry and returns the customer
// the token was issued for.
func (j *JWTService) ValidateToken(tokenString string) (*models.TokenValidationResponse, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secretKey, nil
	}, jwt.WithIssuer(j.issuer), jwt.WithTimeFunc(j.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.TokenType != "access" || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	resp := &models.TokenValidationResponse{
		Valid: true,
		Customer: models.Customer{
			ID:    claims.Subject,
			Email: claims.Email,
			Name:  claims.Name,
		},
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time
	}
	return resp, nil
}
