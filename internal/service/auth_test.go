package service

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cardfile/cardfile/internal/cache"
	"github.com/cardfile/cardfile/internal/domain"
	"github.com/cardfile/cardfile/internal/mail"
	"github.com/cardfile/cardfile/internal/store/drivers/sqlite"
	"github.com/cardfile/cardfile/pkg/cryptox"
	"github.com/cardfile/cardfile/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

// captureMailer records outbound mail for assertions.
type captureMailer struct {
	mu           sync.Mutex
	confirmLinks map[string]string // to -> link
	resetCodes   map[string]string // to -> code
}

func newCaptureMailer() *captureMailer {
	return &captureMailer{
		confirmLinks: make(map[string]string),
		resetCodes:   make(map[string]string),
	}
}

func (m *captureMailer) SendConfirmation(_ context.Context, to, _, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirmLinks[to] = link
	return nil
}

func (m *captureMailer) SendResetCode(_ context.Context, to, _, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetCodes[to] = code
	return nil
}

func (m *captureMailer) confirmLink(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.confirmLinks[to]
}

func (m *captureMailer) resetCode(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resetCodes[to]
}

type authFixture struct {
	flows  *AuthFlows
	store  *sqlite.Store
	mailer *captureMailer
	cache  *cache.SessionCache
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	mailer := newCaptureMailer()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dispatcher := mail.NewDispatcher(mailer, logger)

	sessions := cache.NewSessionCache(time.Hour)
	t.Cleanup(sessions.Close)

	resets := NewResetCodeStore()
	t.Cleanup(resets.Close)

	flows := &AuthFlows{
		Store:   st,
		Hasher:  cryptox.NewHasher(""),
		Codec:   jwtx.NewCodec([]byte("test-secret-please-rotate"), "cardfile-test"),
		Cache:   sessions,
		Resets:  resets,
		Mail:    dispatcher,
		BaseURL: "https://api.example.test",
	}
	return &authFixture{flows: flows, store: st, mailer: mailer, cache: sessions}
}

// drainMail waits until queued messages are delivered. Stops the dispatcher,
// so enqueue nothing afterwards.
func (f *authFixture) drainMail() { f.flows.Mail.Close() }

// signupConfirmed registers and confirms an account in one step.
func (f *authFixture) signupConfirmed(t *testing.T, name, email, password string) {
	t.Helper()

	ctx := context.Background()
	u, err := f.flows.Signup(ctx, name, email, password)
	require.NoError(t, err)
	require.NoError(t, f.store.Users().MarkEmailConfirmed(ctx, u.ID))
	f.cache.Delete(email)
}

func TestSignup(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("creates unconfirmed user with gravatar", func(t *testing.T) {
		f := newAuthFixture(t)

		u, err := f.flows.Signup(ctx, "Alice", "Alice@Example.com ", "s3cret-pass")
		require.NoError(t, err)
		require.Equal(t, "alice@example.com", u.Email)
		require.False(t, u.Confirmed)
		require.Contains(t, u.AvatarURL, "gravatar.com/avatar/")
		require.True(t, f.flows.Hasher.Verify("s3cret-pass", u.PasswordHash))

		stored, err := f.store.Users().GetUserByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		require.Equal(t, u.ID, stored.ID)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		f := newAuthFixture(t)

		_, err := f.flows.Signup(ctx, "Alice", "alice@example.com", "s3cret-pass")
		require.NoError(t, err)
		_, err = f.flows.Signup(ctx, "Other Alice", "alice@example.com", "different")
		require.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("queues a confirmation email with a redeemable token", func(t *testing.T) {
		f := newAuthFixture(t)

		_, err := f.flows.Signup(ctx, "Alice", "alice@example.com", "s3cret-pass")
		require.NoError(t, err)
		f.drainMail()

		link := f.mailer.confirmLink("alice@example.com")
		require.Contains(t, link, "https://api.example.test/api/auth/confirm/")

		token := strings.TrimPrefix(link, "https://api.example.test/api/auth/confirm/")
		already, err := f.flows.ConfirmEmail(ctx, token)
		require.NoError(t, err)
		require.False(t, already)

		u, err := f.store.Users().GetUserByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		require.True(t, u.Confirmed)
	})
}

func TestLogin(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("unknown email and wrong password are the same error", func(t *testing.T) {
		f := newAuthFixture(t)
		f.signupConfirmed(t, "Alice", "alice@example.com", "s3cret-pass")

		_, errUnknown := f.flows.Login(ctx, "nobody@example.com", "whatever")
		_, errWrongPw := f.flows.Login(ctx, "alice@example.com", "wrong-pass")
		require.ErrorIs(t, errUnknown, ErrInvalidCredentials)
		require.ErrorIs(t, errWrongPw, ErrInvalidCredentials)
	})

	t.Run("unconfirmed account is rejected", func(t *testing.T) {
		f := newAuthFixture(t)
		_, err := f.flows.Signup(ctx, "Alice", "alice@example.com", "s3cret-pass")
		require.NoError(t, err)

		_, err = f.flows.Login(ctx, "alice@example.com", "s3cret-pass")
		require.ErrorIs(t, err, ErrEmailNotConfirmed)
	})

	t.Run("issues a pair and persists the refresh fingerprint", func(t *testing.T) {
		f := newAuthFixture(t)
		f.signupConfirmed(t, "Alice", "alice@example.com", "s3cret-pass")

		pair, err := f.flows.Login(ctx, "alice@example.com", "s3cret-pass")
		require.NoError(t, err)
		require.Equal(t, "bearer", pair.TokenType)
		require.NotEmpty(t, pair.AccessToken)
		require.NotEmpty(t, pair.RefreshToken)
		require.Equal(t, int64(jwtx.DefaultAccessTTL.Seconds()), pair.ExpiresIn)

		subject, err := f.flows.Codec.VerifyScope(pair.AccessToken, jwtx.ScopeAccess)
		require.NoError(t, err)
		require.Equal(t, "alice@example.com", subject)

		u, err := f.store.Users().GetUserByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		require.Equal(t, cryptox.FingerprintToken(pair.RefreshToken), u.RefreshTokenHash)

		cached, ok := f.cache.Get("alice@example.com")
		require.True(t, ok)
		require.Equal(t, u.RefreshTokenHash, cached.RefreshTokenHash)
	})

	t.Run("second login invalidates the first refresh token", func(t *testing.T) {
		f := newAuthFixture(t)
		f.signupConfirmed(t, "Alice", "alice@example.com", "s3cret-pass")

		first, err := f.flows.Login(ctx, "alice@example.com", "s3cret-pass")
		require.NoError(t, err)
		_, err = f.flows.Login(ctx, "alice@example.com", "s3cret-pass")
		require.NoError(t, err)

		_, err = f.flows.Refresh(ctx, first.RefreshToken)
		require.ErrorIs(t, err, ErrInvalidRefresh)
	})
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("rotates the pair", func(t *testing.T) {
		f := newAuthFixture(t)
		f.signupConfirmed(t, "Alice", "alice@example.com", "s3cret-pass")

		pair, err := f.flows.Login(ctx, "alice@example.com", "s3cret-pass")
		require.NoError(t, err)

		rotated, err := f.flows.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)
		require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

		// the old refresh token is dead
		_, err = f.flows.Refresh(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, ErrInvalidRefresh)

		// the new one works
		_, err = f.flows.Refresh(ctx, rotated.RefreshToken)
		require.NoError(t, err)
	})

	t.Run("access token cannot refresh", func(t *testing.T) {
		f := newAuthFixture(t)
		f.signupConfirmed(t, "Alice", "alice@example.com", "s3cret-pass")

		pair, err := f.flows.Login(ctx, "alice@example.com", "s3cret-pass")
		require.NoError(t, err)

		_, err = f.flows.Refresh(ctx, pair.AccessToken)
		require.ErrorIs(t, err, ErrInvalidRefresh)
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		f := newAuthFixture(t)

		_, err := f.flows.Refresh(ctx, "not-a-jwt")
		require.ErrorIs(t, err, ErrInvalidRefresh)
	})

	t.Run("valid signature but cleared fingerprint is rejected", func(t *testing.T) {
		f := newAuthFixture(t)
		f.signupConfirmed(t, "Alice", "alice@example.com", "s3cret-pass")

		pair, err := f.flows.Login(ctx, "alice@example.com", "s3cret-pass")
		require.NoError(t, err)

		u, err := f.store.Users().GetUserByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		require.NoError(t, f.store.Users().UpdateRefreshTokenHash(ctx, u.ID, ""))

		_, err = f.flows.Refresh(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, ErrInvalidRefresh)
	})
}

func TestConfirmEmail(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("invalid token", func(t *testing.T) {
		f := newAuthFixture(t)

		_, err := f.flows.ConfirmEmail(ctx, "garbage")
		require.ErrorIs(t, err, ErrInvalidVerification)
	})

	t.Run("access token is not a verification token", func(t *testing.T) {
		f := newAuthFixture(t)
		f.signupConfirmed(t, "Alice", "alice@example.com", "s3cret-pass")

		pair, err := f.flows.Login(ctx, "alice@example.com", "s3cret-pass")
		require.NoError(t, err)

		_, err = f.flows.ConfirmEmail(ctx, pair.AccessToken)
		require.ErrorIs(t, err, ErrInvalidVerification)
	})

	t.Run("token for a deleted account fails verification", func(t *testing.T) {
		f := newAuthFixture(t)

		token, err := f.flows.Codec.Issue("ghost@example.com", jwtx.ScopeEmailVerify, time.Minute)
		require.NoError(t, err)

		_, err = f.flows.ConfirmEmail(ctx, token)
		require.ErrorIs(t, err, ErrInvalidVerification)
	})

	t.Run("confirming twice reports already confirmed", func(t *testing.T) {
		f := newAuthFixture(t)
		_, err := f.flows.Signup(ctx, "Alice", "alice@example.com", "s3cret-pass")
		require.NoError(t, err)

		token, err := f.flows.Codec.Issue("alice@example.com", jwtx.ScopeEmailVerify, time.Minute)
		require.NoError(t, err)

		already, err := f.flows.ConfirmEmail(ctx, token)
		require.NoError(t, err)
		require.False(t, already)

		already, err = f.flows.ConfirmEmail(ctx, token)
		require.NoError(t, err)
		require.True(t, already)
	})
}

func TestRequestEmailConfirmation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("unknown email", func(t *testing.T) {
		f := newAuthFixture(t)

		_, err := f.flows.RequestEmailConfirmation(ctx, "nobody@example.com")
		require.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("already confirmed short-circuits", func(t *testing.T) {
		f := newAuthFixture(t)
		f.signupConfirmed(t, "Alice", "alice@example.com", "s3cret-pass")

		already, err := f.flows.RequestEmailConfirmation(ctx, "alice@example.com")
		require.NoError(t, err)
		require.True(t, already)
	})

	t.Run("re-sends for unconfirmed account", func(t *testing.T) {
		f := newAuthFixture(t)
		_, err := f.flows.Signup(ctx, "Alice", "alice@example.com", "s3cret-pass")
		require.NoError(t, err)

		already, err := f.flows.RequestEmailConfirmation(ctx, "alice@example.com")
		require.NoError(t, err)
		require.False(t, already)

		f.drainMail()
		require.NotEmpty(t, f.mailer.confirmLink("alice@example.com"))
	})
}

func TestPasswordReset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("request for unknown email succeeds silently", func(t *testing.T) {
		f := newAuthFixture(t)

		require.NoError(t, f.flows.RequestPasswordReset(ctx, "nobody@example.com"))
		f.drainMail()
		require.Empty(t, f.mailer.resetCode("nobody@example.com"))
	})

	t.Run("full reset flow", func(t *testing.T) {
		f := newAuthFixture(t)
		f.signupConfirmed(t, "Alice", "alice@example.com", "s3cret-pass")

		pair, err := f.flows.Login(ctx, "alice@example.com", "s3cret-pass")
		require.NoError(t, err)

		require.NoError(t, f.flows.RequestPasswordReset(ctx, "alice@example.com"))
		f.drainMail()
		code := f.mailer.resetCode("alice@example.com")
		require.Len(t, code, 6)

		require.NoError(t, f.flows.ResetPassword(ctx, "alice@example.com", code, "new-pass-123"))

		// old password and old refresh token are dead, new password works
		_, err = f.flows.Login(ctx, "alice@example.com", "s3cret-pass")
		require.ErrorIs(t, err, ErrInvalidCredentials)
		_, err = f.flows.Refresh(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, ErrInvalidRefresh)
		_, err = f.flows.Login(ctx, "alice@example.com", "new-pass-123")
		require.NoError(t, err)
	})

	t.Run("wrong code", func(t *testing.T) {
		f := newAuthFixture(t)
		f.signupConfirmed(t, "Alice", "alice@example.com", "s3cret-pass")

		require.NoError(t, f.flows.RequestPasswordReset(ctx, "alice@example.com"))
		err := f.flows.ResetPassword(ctx, "alice@example.com", "000000", "new-pass-123")
		require.ErrorIs(t, err, ErrInvalidReset)
	})

	t.Run("code is single use", func(t *testing.T) {
		f := newAuthFixture(t)
		f.signupConfirmed(t, "Alice", "alice@example.com", "s3cret-pass")

		require.NoError(t, f.flows.RequestPasswordReset(ctx, "alice@example.com"))
		f.drainMail()
		code := f.mailer.resetCode("alice@example.com")

		require.NoError(t, f.flows.ResetPassword(ctx, "alice@example.com", code, "new-pass-123"))
		err := f.flows.ResetPassword(ctx, "alice@example.com", code, "another-pass")
		require.ErrorIs(t, err, ErrInvalidReset)
	})
}

func TestIdentityResolve(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("store miss is a user not found", func(t *testing.T) {
		f := newAuthFixture(t)
		ident := &IdentityService{Store: f.store, Cache: f.cache}

		_, err := ident.Resolve(ctx, "nobody@example.com")
		require.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("miss warms the cache", func(t *testing.T) {
		f := newAuthFixture(t)
		f.signupConfirmed(t, "Alice", "alice@example.com", "s3cret-pass")
		ident := &IdentityService{Store: f.store, Cache: f.cache}

		_, ok := f.cache.Get("alice@example.com")
		require.False(t, ok)

		u, err := ident.Resolve(ctx, "alice@example.com")
		require.NoError(t, err)
		require.Equal(t, "alice@example.com", u.Email)

		cached, ok := f.cache.Get("alice@example.com")
		require.True(t, ok)
		require.Equal(t, u.ID, cached.ID)
	})

	t.Run("hit skips the store", func(t *testing.T) {
		f := newAuthFixture(t)
		ident := &IdentityService{Store: f.store, Cache: f.cache}

		// entry exists only in the cache
		f.cache.Put("ghost@example.com", domain.User{ID: "ghost-id", Email: "ghost@example.com"})

		u, err := ident.Resolve(ctx, "ghost@example.com")
		require.NoError(t, err)
		require.Equal(t, "ghost-id", u.ID)
	})
}
