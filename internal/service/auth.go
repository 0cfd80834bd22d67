// Package service implements the application flows behind the HTTP handlers:
// account lifecycle, token issuance and rotation, and contact management.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cardfile/cardfile/internal/avatar"
	"github.com/cardfile/cardfile/internal/cache"
	"github.com/cardfile/cardfile/internal/domain"
	"github.com/cardfile/cardfile/internal/mail"
	"github.com/cardfile/cardfile/internal/obs"
	"github.com/cardfile/cardfile/internal/store"
	"github.com/cardfile/cardfile/pkg/cryptox"
	"github.com/cardfile/cardfile/pkg/idx"
	"github.com/cardfile/cardfile/pkg/jwtx"
	"github.com/cardfile/cardfile/pkg/slogx"
)

var (
	ErrEmailTaken          = errors.New("email_taken")
	ErrInvalidCredentials  = errors.New("invalid_credentials")
	ErrEmailNotConfirmed   = errors.New("email_not_confirmed")
	ErrInvalidRefresh      = errors.New("invalid_refresh_token")
	ErrInvalidVerification = errors.New("invalid_verification_token")
	ErrInvalidReset        = errors.New("invalid_reset")
	ErrUserNotFound        = errors.New("user_not_found")
)

// AuthFlows owns every mutation of credentials and session state. The
// handlers translate its sentinel errors into HTTP statuses.
type AuthFlows struct {
	Store  store.Store
	Hasher *cryptox.Hasher
	Codec  *jwtx.Codec
	Cache  *cache.SessionCache
	Resets *ResetCodeStore
	Mail   *mail.Dispatcher

	// BaseURL is the public origin used to build confirmation links,
	// e.g. "https://api.example.com".
	BaseURL string

	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	EmailVerifyTTL time.Duration
}

func (s *AuthFlows) accessTTL() time.Duration {
	if s.AccessTTL > 0 {
		return s.AccessTTL
	}
	return jwtx.DefaultAccessTTL
}

func (s *AuthFlows) refreshTTL() time.Duration {
	if s.RefreshTTL > 0 {
		return s.RefreshTTL
	}
	return jwtx.DefaultRefreshTTL
}

func (s *AuthFlows) emailVerifyTTL() time.Duration {
	if s.EmailVerifyTTL > 0 {
		return s.EmailVerifyTTL
	}
	return jwtx.DefaultEmailVerifyTTL
}

// Signup registers a new unconfirmed account and queues the confirmation
// email. The Gravatar URL is derived locally so signup never waits on an
// external service.
func (s *AuthFlows) Signup(ctx context.Context, name, email, password string) (domain.User, error) {
	l := slogx.FromContext(ctx)
	email = normalizeEmail(email)

	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{
		ID:           idx.New().String(),
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hash,
		AvatarURL:    avatar.GravatarURL(email),
		Confirmed:    false,
		Role:         domain.RoleUser,
	}

	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, err
	}

	if err := s.enqueueConfirmation(user); err != nil {
		// Signup already succeeded; the user can re-request the email.
		l.Warn("could not queue confirmation email", slog.Any("error", err))
	}

	l.Info("user signed up", slog.String("user_id", user.ID))
	return user, nil
}

// Login verifies credentials and issues a fresh token pair. Unknown email
// and wrong password are indistinguishable to the caller.
func (s *AuthFlows) Login(ctx context.Context, email, password string) (domain.TokenPair, error) {
	l := slogx.FromContext(ctx)
	email = normalizeEmail(email)

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			obs.ObserveLogin("invalid")
			return domain.TokenPair{}, ErrInvalidCredentials
		}
		return domain.TokenPair{}, err
	}

	if !s.Hasher.Verify(password, user.PasswordHash) {
		obs.ObserveLogin("invalid")
		l.Info("login failed", slog.String("user_id", user.ID))
		return domain.TokenPair{}, ErrInvalidCredentials
	}

	if !user.Confirmed {
		obs.ObserveLogin("unconfirmed")
		return domain.TokenPair{}, ErrEmailNotConfirmed
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return domain.TokenPair{}, err
	}

	obs.ObserveLogin("ok")
	l.Info("user logged in", slog.String("user_id", user.ID))
	return pair, nil
}

// Refresh rotates the session: the presented refresh token must match the
// single persisted fingerprint, and rotation replaces it so the old token is
// dead the moment the new pair exists.
func (s *AuthFlows) Refresh(ctx context.Context, rawToken string) (domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	email, err := s.Codec.VerifyScope(rawToken, jwtx.ScopeRefresh)
	if err != nil {
		return domain.TokenPair{}, ErrInvalidRefresh
	}

	fingerprint := cryptox.FingerprintToken(rawToken)

	var (
		pair      domain.TokenPair
		refreshed domain.User
	)
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		user, err := tx.Users().GetUserByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidRefresh
			}
			return err
		}

		if user.RefreshTokenHash == "" || user.RefreshTokenHash != fingerprint {
			return ErrInvalidRefresh
		}

		pair, err = s.issuePairTx(ctx, tx, &user)
		if err == nil {
			refreshed = user
		}
		return err
	})
	if err != nil {
		return domain.TokenPair{}, err
	}
	s.Cache.Put(refreshed.Email, refreshed)

	l.Info("session refreshed", slog.String("user_id", refreshed.ID))
	return pair, nil
}

// ConfirmEmail redeems an email-verify token. Returns true when the account
// was already confirmed (the operation is idempotent).
func (s *AuthFlows) ConfirmEmail(ctx context.Context, rawToken string) (bool, error) {
	email, err := s.Codec.VerifyScope(rawToken, jwtx.ScopeEmailVerify)
	if err != nil {
		return false, ErrInvalidVerification
	}

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, ErrInvalidVerification
		}
		return false, err
	}

	if user.Confirmed {
		return true, nil
	}

	if err := s.Store.Users().MarkEmailConfirmed(ctx, user.ID); err != nil {
		return false, err
	}

	user.Confirmed = true
	s.Cache.Put(user.Email, user)

	slogx.FromContext(ctx).Info("email confirmed", slog.String("user_id", user.ID))
	return false, nil
}

// RequestEmailConfirmation re-sends the confirmation link. Returns true when
// the account is already confirmed and nothing was sent.
func (s *AuthFlows) RequestEmailConfirmation(ctx context.Context, email string) (bool, error) {
	email = normalizeEmail(email)

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, ErrUserNotFound
		}
		return false, err
	}

	if user.Confirmed {
		return true, nil
	}

	if err := s.enqueueConfirmation(user); err != nil {
		return false, err
	}
	return false, nil
}

// RequestPasswordReset issues a reset code and queues the email. The outcome
// is identical whether or not the account exists, so the endpoint cannot be
// used to probe for registered addresses.
func (s *AuthFlows) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	code, err := s.Resets.Issue(user.Email)
	if err != nil {
		return err
	}

	s.Mail.EnqueueResetCode(user.Email, user.Name, code)
	slogx.FromContext(ctx).Info("password reset requested", slog.String("user_id", user.ID))
	return nil
}

// ResetPassword redeems a reset code and replaces the password. The persisted
// refresh-token fingerprint is cleared so every outstanding session has to
// log in again with the new password.
func (s *AuthFlows) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	email = normalizeEmail(email)

	if !s.Resets.Redeem(email, code) {
		return ErrInvalidReset
	}

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidReset
		}
		return err
	}

	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpdatePasswordHash(ctx, user.ID, hash); err != nil {
			return err
		}
		return tx.Users().UpdateRefreshTokenHash(ctx, user.ID, "")
	})
	if err != nil {
		return err
	}

	s.Cache.Delete(user.Email)
	slogx.FromContext(ctx).Info("password reset", slog.String("user_id", user.ID))
	return nil
}

// issuePair signs a fresh access/refresh pair, persists the refresh
// fingerprint and refreshes the session cache.
func (s *AuthFlows) issuePair(ctx context.Context, user domain.User) (domain.TokenPair, error) {
	var pair domain.TokenPair
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		pair, err = s.issuePairTx(ctx, tx, &user)
		return err
	})
	if err != nil {
		return domain.TokenPair{}, err
	}
	s.Cache.Put(user.Email, user)
	return pair, nil
}

// issuePairTx is the transactional core of issuance. It mutates user's
// RefreshTokenHash; the caller refreshes the cache once the tx commits.
func (s *AuthFlows) issuePairTx(ctx context.Context, tx store.Tx, user *domain.User) (domain.TokenPair, error) {
	accessTTL := s.accessTTL()

	access, err := s.Codec.Issue(user.Email, jwtx.ScopeAccess, accessTTL)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}

	refresh, err := s.Codec.Issue(user.Email, jwtx.ScopeRefresh, s.refreshTTL())
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}

	user.RefreshTokenHash = cryptox.FingerprintToken(refresh)
	if err := tx.Users().UpdateRefreshTokenHash(ctx, user.ID, user.RefreshTokenHash); err != nil {
		return domain.TokenPair{}, err
	}

	return domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(accessTTL.Seconds()),
	}, nil
}

func (s *AuthFlows) enqueueConfirmation(user domain.User) error {
	token, err := s.Codec.Issue(user.Email, jwtx.ScopeEmailVerify, s.emailVerifyTTL())
	if err != nil {
		return fmt.Errorf("issue verification token: %w", err)
	}

	link := fmt.Sprintf("%s/api/auth/confirm/%s", strings.TrimRight(s.BaseURL, "/"), token)
	s.Mail.EnqueueConfirmation(user.Email, user.Name, link)
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
