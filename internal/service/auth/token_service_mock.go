package auth

import (
	"context"
	"time"
)

// MockTokenService is a TokenService for handler and middleware tests.
type MockTokenService struct {
	IssueFn    func(ctx context.Context, subject string, ttl time.Duration) (string, error)
	ValidateFn func(ctx context.Context, tokenString string) (*Claims, error)
}

var _ TokenService = (*MockTokenService)(nil)

// IssueToken implements TokenService.
func (m *MockTokenService) IssueToken(ctx context.Context, subject string, ttl time.Duration) (string, error) {
	if m.IssueFn != nil {
		return m.IssueFn(ctx, subject, ttl)
	}
	return "token-" + subject, nil
}

// ValidateToken implements TokenService. Without ValidateFn it accepts the
// tokens produced by IssueToken.
func (m *MockTokenService) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	if m.ValidateFn != nil {
		return m.ValidateFn(ctx, tokenString)
	}
	const prefix = "token-"
	if len(tokenString) <= len(prefix) || tokenString[:len(prefix)] != prefix {
		return nil, ErrInvalidToken
	}
	return &Claims{Subject: tokenString[len(prefix):], TokenType: TokenTypeAdmin}, nil
}
