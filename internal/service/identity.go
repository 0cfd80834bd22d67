package service

import (
	"context"
	"errors"

	"github.com/cardfile/cardfile/internal/cache"
	"github.com/cardfile/cardfile/internal/domain"
	"github.com/cardfile/cardfile/internal/store"
)

// IdentityService resolves a verified token subject to its user record,
// serving from the session cache when possible. Every authenticated request
// goes through Resolve, so the cache is what keeps the auth pipeline off the
// database.
type IdentityService struct {
	Store store.Store
	Cache *cache.SessionCache
}

// Resolve returns the user for email. Cache miss falls through to the store
// and warms the cache; a store miss means the token outlived its account.
func (s *IdentityService) Resolve(ctx context.Context, email string) (domain.User, error) {
	if u, ok := s.Cache.Get(email); ok {
		return u, nil
	}

	u, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}

	s.Cache.Put(email, u)
	return u, nil
}
