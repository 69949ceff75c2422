package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSigningKeyBytes is the shortest accepted HMAC key.
const MinSigningKeyBytes = 32

var (
	// ErrInvalidToken is the typed outcome of every failed verification.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired narrows ErrInvalidToken to tokens past their expiry.
	ErrTokenExpired = fmt.Errorf("%w: expired", ErrInvalidToken)
	// ErrWeakSigningKey is returned for keys shorter than MinSigningKeyBytes.
	ErrWeakSigningKey = errors.New("signing key too short")
)

// Claims is the JWT payload.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenClaims is the verified content of a token.
type TokenClaims struct {
	Subject   string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenCodec issues and verifies HS256 tokens. It holds no per-token state;
// the key and lifetime are fixed at construction.
type TokenCodec struct {
	key    []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// NewTokenCodec constructs a codec using secret as the HMAC key.
func NewTokenCodec(secret []byte, ttl time.Duration) (*TokenCodec, error) {
	if len(secret) < MinSigningKeyBytes {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrWeakSigningKey, MinSigningKeyBytes, len(secret))
	}
	if ttl <= 0 {
		return nil, errors.New("token lifetime must be positive")
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	c := &TokenCodec{key: key, ttl: ttl}
	c.setClock(time.Now)
	return c, nil
}

// WithClock returns a copy of the codec reading time from now.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	cp := &TokenCodec{key: c.key, ttl: c.ttl}
	cp.setClock(now)
	return cp
}

func (c *TokenCodec) setClock(now func() time.Time) {
	c.now = now
	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	)
}

// TTL returns the configured token lifetime.
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Issue signs a token for subject with role, valid from now for the configured lifetime.
func (c *TokenCodec) Issue(subject string, role Role) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", errors.New("auth: token subject required")
	}
	if !role.Valid() {
		return "", fmt.Errorf("auth: %w: %q", ErrUnknownRole, role)
	}
	issuedAt := c.now().Truncate(time.Second)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(c.ttl)),
		},
	})
	signed, err := token.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, structure, algorithm and expiry. Every failure
// wraps ErrInvalidToken.
func (c *TokenCodec) Verify(raw string) (TokenClaims, error) {
	if strings.TrimSpace(raw) == "" {
		return TokenClaims{}, fmt.Errorf("%w: empty", ErrInvalidToken)
	}
	claims := &Claims{}
	token, err := c.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return c.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return TokenClaims{}, ErrTokenExpired
		}
		return TokenClaims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return TokenClaims{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return TokenClaims{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	role, err := ParseRole(claims.Role)
	if err != nil {
		return TokenClaims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	out := TokenClaims{Subject: claims.Subject, Role: role}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
