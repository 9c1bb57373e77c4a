package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/quill/internal/config"
	"github.com/phrazzld/quill/internal/platform/logger"
)

const minSecretLength = 32

// hmacTokenService implements TokenService with HMAC-SHA256 signatures.
type hmacTokenService struct {
	signingKey []byte
	timeFunc   func() time.Time // Injectable for testing
	clockSkew  time.Duration
}

type tokenClaims struct {
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

var _ TokenService = (*hmacTokenService)(nil)

// NewTokenService creates a token service signing with cfg.JWTSecret.
func NewTokenService(cfg config.AuthConfig) (TokenService, error) {
	return newTokenService(cfg.JWTSecret, time.Now)
}

func newTokenService(secret string, now func() time.Time) (*hmacTokenService, error) {
	if len(secret) < minSecretLength {
		return nil, ErrWeakSecret
	}
	return &hmacTokenService{
		signingKey: []byte(secret),
		timeFunc:   now,
		clockSkew:  2 * time.Minute,
	}, nil
}

// IssueToken creates a signed admin token.
func (s *hmacTokenService) IssueToken(ctx context.Context, subject string, ttl time.Duration) (string, error) {
	now := s.timeFunc()
	claims := tokenClaims{
		TokenType: TokenTypeAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		logger.FromContext(ctx).Error("failed to sign admin token",
			"error", err,
			"subject", subject)
		return "", fmt.Errorf("failed to sign admin token with HMAC-SHA256: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies an admin token.
func (s *hmacTokenService) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	log := logger.FromContext(ctx)
	now := s.timeFunc()

	token, err := jwt.ParseWithClaims(
		tokenString,
		&tokenClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.signingKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(s.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			log.Debug("admin token validation failed: token expired")
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			log.Debug("admin token validation failed: token not yet valid")
			return nil, ErrTokenNotYetValid
		default:
			log.Debug("admin token validation failed",
				"error", err,
				"error_type", fmt.Sprintf("%T", err))
			return nil, ErrInvalidToken
		}
	}

	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != TokenTypeAdmin {
		log.Debug("admin token validation failed: wrong token type", "actual", claims.TokenType)
		return nil, ErrWrongTokenType
	}

	out := &Claims{
		Subject:   claims.Subject,
		TokenType: claims.TokenType,
		ID:        claims.ID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
