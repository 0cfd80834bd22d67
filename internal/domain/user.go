package domain

import "time"

// Role is the coarse authorization tier of a user. AuthZ decisions belong to
// the handlers; the auth pipeline only carries the role along.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// User is the principal record. AuthFlows is the sole mutator of
// PasswordHash, RefreshTokenHash and Confirmed.
type User struct {
	ID           string
	Name         string
	Email        string // unique, doubles as token subject
	PasswordHash string // argon2id encoded

	// RefreshTokenHash is the SHA-256 fingerprint of the single currently
	// valid refresh token, or "" when none is outstanding. Issuing a new
	// refresh token overwrites it, invalidating the previous one.
	RefreshTokenHash string

	AvatarURL string // optional
	Confirmed bool   // email confirmed
	Role      Role

	CreatedAt time.Time
	UpdatedAt time.Time
}
