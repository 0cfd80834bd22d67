package domain

import "time"

// Contact is an address-book entry owned by exactly one user. Every store
// query is scoped by OwnerID; a contact is never visible outside its owner.
type Contact struct {
	ID        string
	OwnerID   string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Birthday  time.Time // date only; time-of-day is ignored
	Notes     string    // optional
	CreatedAt time.Time
	UpdatedAt time.Time
}
