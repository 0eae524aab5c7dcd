package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	tokenIssuer     = "learnportal-dev"
	userIDClaim     = "uid"
	defaultTokenTTL = 24 * time.Hour
)

var ErrInvalidToken = errors.New("invalid token")

// TokenSigner issues and verifies HS256 session tokens
type TokenSigner struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewTokenSigner creates a signer; ttl <= 0 selects the default lifetime
func NewTokenSigner(key []byte, ttl time.Duration) (*TokenSigner, error) {
	if len(key) < 16 {
		return nil, fmt.Errorf("signing key must be at least 16 bytes")
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenSigner{key: key, ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed token whose subject is the user's email
func (s *TokenSigner) Issue(u *User) (string, error) {
	now := s.now()
	tok, err := jwt.NewBuilder().
		Issuer(tokenIssuer).
		Subject(u.Email).
		IssuedAt(now).
		Expiration(now.Add(s.ttl)).
		Claim(userIDClaim, u.ID.String()).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build token: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, s.key))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return string(signed), nil
}

// Claims are the identity fields carried by a session token
type Claims struct {
	Email  string
	UserID string
}

// Verify checks signature and expiry and returns the token's claims
func (s *TokenSigner) Verify(raw string) (*Claims, error) {
	tok, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.HS256, s.key),
		jwt.WithValidate(true),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithClock(jwt.ClockFunc(s.now)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims := &Claims{Email: tok.Subject()}
	if v, ok := tok.Get(userIDClaim); ok {
		claims.UserID, _ = v.(string)
	}
	return claims, nil
}
