package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/cardfile/cardfile/internal/domain"
	"github.com/cardfile/cardfile/internal/store"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedUser(t *testing.T, s *Store, id, email string) domain.User {
	t.Helper()

	u := domain.User{
		ID:           id,
		Name:         "Test User",
		Email:        email,
		PasswordHash: "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		Role:         domain.RoleUser,
	}
	require.NoError(t, s.Users().CreateUser(context.Background(), u))
	return u
}

func TestUsersRepo(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	seedUser(t, s, "user-1", "alice@example.com")

	t.Run("get by id and email", func(t *testing.T) {
		byID, err := s.Users().GetUserByID(ctx, "user-1")
		require.NoError(t, err)
		require.Equal(t, "alice@example.com", byID.Email)
		require.Equal(t, domain.RoleUser, byID.Role)
		require.False(t, byID.Confirmed)

		byEmail, err := s.Users().GetUserByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		require.Equal(t, byID.ID, byEmail.ID)
	})

	t.Run("missing user maps to ErrNotFound", func(t *testing.T) {
		_, err := s.Users().GetUserByEmail(ctx, "nobody@example.com")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("duplicate email maps to ErrAlreadyExists", func(t *testing.T) {
		err := s.Users().CreateUser(ctx, domain.User{
			ID:           "user-dup",
			Name:         "Dup",
			Email:        "alice@example.com",
			PasswordHash: "x",
			Role:         domain.RoleUser,
		})
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("refresh token hash round trip", func(t *testing.T) {
		require.NoError(t, s.Users().UpdateRefreshTokenHash(ctx, "user-1", "fingerprint-1"))

		u, err := s.Users().GetUserByID(ctx, "user-1")
		require.NoError(t, err)
		require.Equal(t, "fingerprint-1", u.RefreshTokenHash)

		require.NoError(t, s.Users().UpdateRefreshTokenHash(ctx, "user-1", ""))

		u, err = s.Users().GetUserByID(ctx, "user-1")
		require.NoError(t, err)
		require.Empty(t, u.RefreshTokenHash)
	})

	t.Run("mark confirmed", func(t *testing.T) {
		require.NoError(t, s.Users().MarkEmailConfirmed(ctx, "user-1"))

		u, err := s.Users().GetUserByID(ctx, "user-1")
		require.NoError(t, err)
		require.True(t, u.Confirmed)
	})

	t.Run("update password hash", func(t *testing.T) {
		require.NoError(t, s.Users().UpdatePasswordHash(ctx, "user-1", "new-hash"))

		u, err := s.Users().GetUserByID(ctx, "user-1")
		require.NoError(t, err)
		require.Equal(t, "new-hash", u.PasswordHash)
	})

	t.Run("update avatar url", func(t *testing.T) {
		require.NoError(t, s.Users().UpdateAvatarURL(ctx, "user-1", "https://img.example.com/a.png"))

		u, err := s.Users().GetUserByID(ctx, "user-1")
		require.NoError(t, err)
		require.Equal(t, "https://img.example.com/a.png", u.AvatarURL)
	})

	t.Run("writes against unknown id map to ErrNotFound", func(t *testing.T) {
		require.ErrorIs(t, s.Users().MarkEmailConfirmed(ctx, "ghost"), store.ErrNotFound)
		require.ErrorIs(t, s.Users().UpdateRefreshTokenHash(ctx, "ghost", "x"), store.ErrNotFound)
		require.ErrorIs(t, s.Users().DeleteUser(ctx, "ghost"), store.ErrNotFound)
	})
}

func TestContactsRepo(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	seedUser(t, s, "owner-1", "owner1@example.com")
	seedUser(t, s, "owner-2", "owner2@example.com")

	mkContact := func(id, ownerID, first, last, email string) domain.Contact {
		return domain.Contact{
			ID:        id,
			OwnerID:   ownerID,
			FirstName: first,
			LastName:  last,
			Email:     email,
			Phone:     "+61 400 000 000",
			Birthday:  time.Date(1990, time.March, 14, 0, 0, 0, 0, time.UTC),
		}
	}

	require.NoError(t, s.Contacts().CreateContact(ctx, mkContact("c-1", "owner-1", "Ada", "Lovelace", "ada@example.com")))
	require.NoError(t, s.Contacts().CreateContact(ctx, mkContact("c-2", "owner-1", "Grace", "Hopper", "grace@example.com")))
	require.NoError(t, s.Contacts().CreateContact(ctx, mkContact("c-3", "owner-2", "Alan", "Turing", "alan@example.com")))

	t.Run("get scopes by owner", func(t *testing.T) {
		c, err := s.Contacts().GetContact(ctx, "owner-1", "c-1")
		require.NoError(t, err)
		require.Equal(t, "Ada", c.FirstName)
		require.Equal(t, time.Date(1990, time.March, 14, 0, 0, 0, 0, time.UTC), c.Birthday)

		// another owner's contact is invisible
		_, err = s.Contacts().GetContact(ctx, "owner-1", "c-3")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("list is ordered and owner scoped", func(t *testing.T) {
		contacts, err := s.Contacts().ListContacts(ctx, "owner-1", "", 100, 0)
		require.NoError(t, err)
		require.Len(t, contacts, 2)
		require.Equal(t, "Hopper", contacts[0].LastName)
		require.Equal(t, "Lovelace", contacts[1].LastName)
	})

	t.Run("search narrows by name or email", func(t *testing.T) {
		contacts, err := s.Contacts().ListContacts(ctx, "owner-1", "ada", 100, 0)
		require.NoError(t, err)
		require.Len(t, contacts, 1)
		require.Equal(t, "c-1", contacts[0].ID)

		contacts, err = s.Contacts().ListContacts(ctx, "owner-1", "grace@", 100, 0)
		require.NoError(t, err)
		require.Len(t, contacts, 1)
		require.Equal(t, "c-2", contacts[0].ID)
	})

	t.Run("pagination", func(t *testing.T) {
		page, err := s.Contacts().ListContacts(ctx, "owner-1", "", 1, 1)
		require.NoError(t, err)
		require.Len(t, page, 1)
		require.Equal(t, "Lovelace", page[0].LastName)
	})

	t.Run("duplicate email per owner maps to ErrAlreadyExists", func(t *testing.T) {
		err := s.Contacts().CreateContact(ctx, mkContact("c-dup", "owner-1", "Ada2", "Lovelace2", "ada@example.com"))
		require.ErrorIs(t, err, store.ErrAlreadyExists)

		// but another owner may hold the same email
		err = s.Contacts().CreateContact(ctx, mkContact("c-4", "owner-2", "Ada", "Lovelace", "ada@example.com"))
		require.NoError(t, err)
	})

	t.Run("update rewrites mutable fields", func(t *testing.T) {
		c, err := s.Contacts().GetContact(ctx, "owner-1", "c-2")
		require.NoError(t, err)
		c.Phone = "+61 499 999 999"
		c.Notes = "met at conference"
		require.NoError(t, s.Contacts().UpdateContact(ctx, "owner-1", c))

		got, err := s.Contacts().GetContact(ctx, "owner-1", "c-2")
		require.NoError(t, err)
		require.Equal(t, "+61 499 999 999", got.Phone)
		require.Equal(t, "met at conference", got.Notes)
	})

	t.Run("update and delete refuse foreign contacts", func(t *testing.T) {
		c, err := s.Contacts().GetContact(ctx, "owner-2", "c-3")
		require.NoError(t, err)
		require.ErrorIs(t, s.Contacts().UpdateContact(ctx, "owner-1", c), store.ErrNotFound)
		require.ErrorIs(t, s.Contacts().DeleteContact(ctx, "owner-1", "c-3"), store.ErrNotFound)
	})

	t.Run("delete user cascades to contacts", func(t *testing.T) {
		require.NoError(t, s.Users().DeleteUser(ctx, "owner-2"))

		contacts, err := s.Contacts().ListAll(ctx, "owner-2")
		require.NoError(t, err)
		require.Empty(t, contacts)
	})
}

func TestWithTxRollsBackOnError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	seedUser(t, s, "user-1", "alice@example.com")

	sentinel := store.ErrAlreadyExists
	err := s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpdateRefreshTokenHash(ctx, "user-1", "should-vanish"); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	u, err := s.Users().GetUserByID(ctx, "user-1")
	require.NoError(t, err)
	require.Empty(t, u.RefreshTokenHash)
}
