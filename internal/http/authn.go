// Package http is the transport layer: routing, authentication middleware and
// the JSON handlers over the service flows.
package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cardfile/cardfile/internal/domain"
	"github.com/cardfile/cardfile/internal/service"
	"github.com/cardfile/cardfile/pkg/httpx"
	"github.com/cardfile/cardfile/pkg/jwtx"
)

type principalKey struct{}

// PrincipalFrom returns the authenticated user placed in the context by
// AuthGuard.
func PrincipalFrom(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(principalKey{}).(domain.User)
	return u, ok
}

// AuthGuard verifies the bearer access token and resolves the subject to a
// live account. The principal and its user ID land in the request context;
// per-user rate limiting keys off the latter. All failures are a 401 with an
// RFC 6750 WWW-Authenticate header.
func AuthGuard(codec *jwtx.Codec, ident *service.IdentityService) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				writeUnauthorized(w, "missing bearer token")
				return
			}

			email, err := codec.VerifyScope(raw, jwtx.ScopeAccess)
			if err != nil {
				writeUnauthorized(w, "invalid or expired access token")
				return
			}

			user, err := ident.Resolve(r.Context(), email)
			if err != nil {
				writeUnauthorized(w, "unknown account")
				return
			}

			ctx := context.WithValue(r.Context(), principalKey{}, user)
			ctx = context.WithValue(ctx, httpx.CtxKeyUserID, user.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(auth[len(prefix):]), true
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("WWW-Authenticate",
		fmt.Sprintf(`Bearer realm="cardfile", error="invalid_token", error_description=%q`, description))
	httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", description)
}
