package jwtx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken covers bad signatures, malformed payloads and expiry.
	ErrInvalidToken = errors.New("jwtx: invalid token")

	// ErrScopeMismatch is returned when an otherwise valid token is
	// presented for a purpose it was not issued for.
	ErrScopeMismatch = errors.New("jwtx: token scope mismatch")
)

// Codec signs and verifies compact, expiring, scope-tagged tokens with a
// shared secret (HS256). The secret and issuer are injected at construction;
// there is no package-level signing state.
type Codec struct {
	secret []byte
	issuer string
}

// NewCodec builds a Codec. It panics on an empty secret so a misconfigured
// deployment fails at startup rather than minting unverifiable tokens.
func NewCodec(secret []byte, issuer string) *Codec {
	if len(secret) == 0 {
		panic("jwtx: signing secret must not be empty")
	}
	return &Codec{secret: secret, issuer: issuer}
}

// Issue signs a token for subject with the given scope and lifetime.
// Timestamps are truncated to whole seconds by the NumericDate encoding.
func (c *Codec) Issue(subject string, scope Scope, ttl time.Duration) (string, error) {
	claims := newClaims(subject, scope, ttl, c.issuer, time.Now().UTC())
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Verify checks signature, issuer and expiry and returns the decoded claims.
// Callers match on Claims.Scope for the variant they expect; VerifyScope does
// that match for the common case. No clock leeway is applied: a token is
// rejected the moment its exp passes.
func (c *Codec) Verify(raw string) (Claims, error) {
	var claims Claims

	parsed, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return c.secret, nil
	},
		jwt.WithIssuer(c.issuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}

	if claims.Subject == "" || claims.Scope == "" {
		return Claims{}, ErrInvalidToken
	}

	return claims, nil
}

// VerifyScope verifies raw and additionally requires its scope to equal want,
// returning the token subject. Scope is checked only after the signature and
// expiry pass, so ErrScopeMismatch implies an otherwise valid token.
func (c *Codec) VerifyScope(raw string, want Scope) (string, error) {
	claims, err := c.Verify(raw)
	if err != nil {
		return "", err
	}
	if claims.Scope != want {
		return "", ErrScopeMismatch
	}
	return claims.Subject, nil
}
