package store

import (
	"context"
	"errors"

	"github.com/cardfile/cardfile/internal/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite today)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable.
type Store interface {
	Users() Users
	Contacts() Contacts

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back; otherwise it
	// is committed. This is the recommended way to handle multi-step
	// operations that must be atomic (e.g., refresh rotation).
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail is the primary lookup: email is the token subject.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	// Returns ErrAlreadyExists when the email is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdateRefreshTokenHash overwrites the persisted refresh-token
	// fingerprint ("" clears it) and bumps updated_at.
	UpdateRefreshTokenHash(ctx context.Context, userID string, hash string) error

	// UpdatePasswordHash sets the password_hash (argon2id) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// MarkEmailConfirmed flips confirmed to true and bumps updated_at.
	MarkEmailConfirmed(ctx context.Context, userID string) error

	// UpdateAvatarURL sets the avatar_url and bumps updated_at.
	UpdateAvatarURL(ctx context.Context, userID string, avatarURL string) error

	// DeleteUser cascades to contacts (per schema).
	DeleteUser(ctx context.Context, userID string) error
}

type Contacts interface {
	// CreateContact inserts a contact for its owner. Returns
	// ErrAlreadyExists when the owner already has a contact with the
	// same email.
	CreateContact(ctx context.Context, c domain.Contact) error

	// GetContact returns the contact only when it belongs to ownerID.
	GetContact(ctx context.Context, ownerID, id string) (domain.Contact, error)

	// ListContacts returns the owner's contacts ordered by last then first
	// name. A non-empty query narrows by substring match over first name,
	// last name and email.
	ListContacts(ctx context.Context, ownerID, query string, limit, offset int) ([]domain.Contact, error)

	// UpdateContact overwrites the whitelisted mutable fields of the
	// contact identified by (ownerID, c.ID).
	UpdateContact(ctx context.Context, ownerID string, c domain.Contact) error

	// DeleteContact removes the contact when owned by ownerID.
	DeleteContact(ctx context.Context, ownerID, id string) error

	// ListAll returns every contact of the owner, used for birthday scans.
	ListAll(ctx context.Context, ownerID string) ([]domain.Contact, error)
}
