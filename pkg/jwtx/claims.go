package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTL constants for the three token purposes.
// These provide sensible security defaults but can be overridden per-call.
const (
	// DefaultAccessTTL is the default lifetime for access tokens.
	// Short-lived for security - typical range is 15m to 1h.
	DefaultAccessTTL = 15 * time.Minute

	// DefaultRefreshTTL is the default lifetime for refresh tokens.
	// Longer-lived for user convenience - typical range is 7d to 30d.
	DefaultRefreshTTL = 7 * 24 * time.Hour

	// DefaultEmailVerifyTTL is the default lifetime for email
	// confirmation tokens delivered in signup/confirmation emails.
	DefaultEmailVerifyTTL = 24 * time.Hour
)

// Scope tags a token with the single purpose it may be used for. Tokens from
// different scopes are never interchangeable: verification requires the scope
// to match exactly.
type Scope string

const (
	ScopeAccess      Scope = "access"
	ScopeRefresh     Scope = "refresh"
	ScopeEmailVerify Scope = "email_verify"
)

// Claims is the tagged payload variant carried by every token. Scope selects
// the variant; callers match on it after Verify. Subject is the principal's
// email address.
type Claims struct {
	jwt.RegisteredClaims

	Scope Scope `json:"scope"`
}

// TTL returns the default lifetime for tokens of scope s.
func (s Scope) TTL() time.Duration {
	switch s {
	case ScopeRefresh:
		return DefaultRefreshTTL
	case ScopeEmailVerify:
		return DefaultEmailVerifyTTL
	default:
		return DefaultAccessTTL
	}
}

func newClaims(subject string, scope Scope, ttl time.Duration, issuer string, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        newJTI(),
		},
		Scope: scope,
	}
}

// newJTI returns a URL-safe random identifier for the "jti" claim.
func newJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}
