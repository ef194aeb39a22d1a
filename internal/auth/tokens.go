package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"small-library/internal/domain"
	apperrors "small-library/internal/errors"
	"small-library/internal/id"
)

// TokenService signs and verifies HS256 login tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a token service. A ttl of zero issues tokens
// without an expiry.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue creates a signed token embedding the user's username and id.
func (s *TokenService) Issue(user *domain.User) (string, error) {
	now := s.now()

	jti, err := id.Short("tok")
	if err != nil {
		return "", fmt.Errorf("generate token ID: %w", err)
	}

	claims := Claims{
		Username: user.Username,
		UserID:   user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
			ID:       jti,
		},
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token. It returns errors.ErrTokenExpired for
// expired tokens and errors.ErrInvalidToken for everything else.
func (s *TokenService) Verify(token string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrTokenExpired.WithCause(err)
		}
		return nil, apperrors.ErrInvalidToken.WithCause(err)
	}
	if claims.UserID == "" {
		return nil, apperrors.ErrInvalidToken
	}
	return &claims, nil
}
