// Package auth issues and verifies the bearer tokens that protect the admin API.
package auth

import (
	"context"
	"time"
)

// TokenTypeAdmin marks tokens valid for the admin API.
const TokenTypeAdmin = "admin"

// TokenService issues and validates admin bearer tokens.
type TokenService interface {
	// IssueToken creates a signed token for subject valid for ttl.
	IssueToken(ctx context.Context, subject string, ttl time.Duration) (string, error)

	// ValidateToken checks the signature, lifetime and type of a token and
	// returns its claims.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims are the verified contents of an admin token.
type Claims struct {
	Subject   string    `json:"sub,omitempty"`
	TokenType string    `json:"type,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
