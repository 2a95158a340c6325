package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hanifmaliki/subledger/internal/config"
	"github.com/hanifmaliki/subledger/internal/domain"
)

// TokenService issues and validates the JWT access tokens that carry the
// caller identity to the ledger. In production identities are normally
// minted by an upstream identity provider sharing the same secret; the
// issuing path here backs the dev issuer endpoint and the test harness.
type TokenService struct {
	jwtConfig config.JWTConfig
}

// NewTokenService creates a new token service
func NewTokenService(jwtConfig config.JWTConfig) *TokenService {
	return &TokenService{jwtConfig: jwtConfig}
}

// AccessToken is an issued identity token
type AccessToken struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"` // Seconds until the token expires
}

// GenerateAccessToken creates a signed token for the given identity.
func (s *TokenService) GenerateAccessToken(identity string) (*AccessToken, error) {
	if !domain.IsValidIdentity(identity) {
		return nil, domain.ErrInvalidRecipient
	}

	claims := domain.LedgerClaims{
		Identity: identity,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.jwtConfig.AccessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtConfig.Secret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	return &AccessToken{
		Token:     signed,
		ExpiresIn: int64(s.jwtConfig.AccessTokenExpiry.Seconds()),
	}, nil
}
