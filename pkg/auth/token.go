// Package auth mints and verifies the HS256 access tokens that identify
// buyers and sellers on the marketplace API.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/projectmarket-backend/pkg/config"
	"github.com/angelmondragon/projectmarket-backend/pkg/enums"
)

// clockSkew tolerates small drift between the issuer and this API.
const clockSkew = 30 * time.Second

var (
	signingMethod = jwt.SigningMethodHS256

	errMissingSecret = errors.New("jwt secret is required")
	errMissingIssuer = errors.New("jwt issuer is required")
)

// AccessTokenPayload is the caller identity embedded in a token. JTI is
// generated when empty.
type AccessTokenPayload struct {
	UserID      uuid.UUID
	AccountType enums.AccountType
	JTI         string
}

type AccessTokenClaims struct {
	UserID      uuid.UUID         `json:"user_id"`
	AccountType enums.AccountType `json:"account_type"`
	jwt.RegisteredClaims
}

func signingKey(cfg config.JWTConfig) ([]byte, error) {
	if cfg.Secret == "" {
		return nil, errMissingSecret
	}
	if cfg.Issuer == "" {
		return nil, errMissingIssuer
	}
	return []byte(cfg.Secret), nil
}

// MintAccessToken signs payload with cfg's secret. The token expires
// cfg.ExpirationMinutes after now.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	key, err := signingKey(cfg)
	if err != nil {
		return "", err
	}
	switch {
	case cfg.ExpirationMinutes <= 0:
		return "", errors.New("jwt expiration minutes must be positive")
	case payload.UserID == uuid.Nil:
		return "", errors.New("user id is required")
	case !payload.AccountType.IsValid():
		return "", fmt.Errorf("invalid account type %q", payload.AccountType)
	}

	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}
	ttl := time.Duration(cfg.ExpirationMinutes) * time.Minute

	signed, err := jwt.NewWithClaims(signingMethod, AccessTokenClaims{
		UserID:      payload.UserID,
		AccountType: payload.AccountType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    cfg.Issuer,
			Subject:   payload.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature, issuer and expiry and returns the
// claims. The subject must match the user_id claim.
func ParseAccessToken(cfg config.JWTConfig, tokenString string) (*AccessTokenClaims, error) {
	key, err := signingKey(cfg)
	if err != nil {
		return nil, err
	}

	claims := &AccessTokenClaims{}
	keyFunc := func(*jwt.Token) (any, error) { return key, nil }
	if _, err := jwt.ParseWithClaims(tokenString, claims, keyFunc,
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	); err != nil {
		return nil, err
	}

	if claims.UserID == uuid.Nil {
		return nil, errors.New("token missing user id")
	}
	if claims.Subject != "" && claims.Subject != claims.UserID.String() {
		return nil, errors.New("token subject does not match user id")
	}
	if !claims.AccountType.IsValid() {
		return nil, fmt.Errorf("token carries invalid account type %q", claims.AccountType)
	}
	return claims, nil
}
