package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a relayer token is malformed or invalid.
var ErrInvalidToken = errors.New("security: invalid token")

// RelayerClaims holds JWT claims for a relayer API token.
type RelayerClaims struct {
	jwt.RegisteredClaims
	RelayerID string `json:"relayer_id"`
}

// TokenProvider issues and validates HS256 bearer tokens for relayers
// submitting operations to the gateway.
type TokenProvider struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenProvider returns a TokenProvider signing with the given shared
// secret. issuer is set on claims and checked on validation.
func NewTokenProvider(secret []byte, issuer string, ttl time.Duration) *TokenProvider {
	return &TokenProvider{secret: secret, issuer: issuer, ttl: ttl}
}

// Issue issues a relayer token. Returns the signed token and its expiry.
func (p *TokenProvider) Issue(relayerID string) (string, time.Time, error) {
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := time.Now().UTC()
	expiresAt := now.Add(p.ttl)
	claims := RelayerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   relayerID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		RelayerID: relayerID,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	return token, expiresAt, err
}

// Validate parses and validates a relayer token (signature, exp, iss).
// Returns the relayer id or an error.
func (p *TokenProvider) Validate(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &RelayerClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return p.secret, nil
	})
	if err != nil {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*RelayerClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.Issuer != p.issuer {
		return "", ErrInvalidToken
	}
	if claims.RelayerID != "" {
		return claims.RelayerID, nil
	}
	return claims.Subject, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
