package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cardfile/cardfile/internal/domain"
	"github.com/cardfile/cardfile/internal/store"
	"github.com/cardfile/cardfile/pkg/idx"
)

var (
	ErrContactExists   = errors.New("contact_exists")
	ErrContactNotFound = errors.New("contact_not_found")
	ErrInvalidContact  = errors.New("invalid_contact")
)

// DefaultBirthdayWindow is how many days ahead UpcomingBirthdays looks when
// the caller doesn't say.
const DefaultBirthdayWindow = 7

// ContactInput is the whitelisted mutable field set. Create and Update both
// take the full input; there is no partial patch.
type ContactInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Birthday  string `json:"birthday"` // YYYY-MM-DD
	Notes     string `json:"notes"`
}

func (in ContactInput) validate() (time.Time, error) {
	if strings.TrimSpace(in.FirstName) == "" ||
		strings.TrimSpace(in.LastName) == "" ||
		strings.TrimSpace(in.Email) == "" {
		return time.Time{}, ErrInvalidContact
	}
	birthday, err := time.Parse("2006-01-02", in.Birthday)
	if err != nil {
		return time.Time{}, ErrInvalidContact
	}
	return birthday, nil
}

// ContactService is the owner-scoped address book. Every operation takes the
// owner's user ID and the store queries filter on it, so one user can never
// observe or mutate another user's contacts.
type ContactService struct {
	Store store.Store

	// now is swappable for birthday-window tests.
	now func() time.Time
}

func NewContactService(st store.Store) *ContactService {
	return &ContactService{Store: st, now: time.Now}
}

func (s *ContactService) Create(ctx context.Context, ownerID string, in ContactInput) (domain.Contact, error) {
	birthday, err := in.validate()
	if err != nil {
		return domain.Contact{}, err
	}

	c := domain.Contact{
		ID:        idx.New().String(),
		OwnerID:   ownerID,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Email:     normalizeEmail(in.Email),
		Phone:     strings.TrimSpace(in.Phone),
		Birthday:  birthday,
		Notes:     in.Notes,
	}

	if err := s.Store.Contacts().CreateContact(ctx, c); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Contact{}, ErrContactExists
		}
		return domain.Contact{}, err
	}

	return s.Store.Contacts().GetContact(ctx, ownerID, c.ID)
}

func (s *ContactService) Get(ctx context.Context, ownerID, id string) (domain.Contact, error) {
	c, err := s.Store.Contacts().GetContact(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Contact{}, ErrContactNotFound
		}
		return domain.Contact{}, err
	}
	return c, nil
}

func (s *ContactService) List(ctx context.Context, ownerID, query string, limit, offset int) ([]domain.Contact, error) {
	return s.Store.Contacts().ListContacts(ctx, ownerID, strings.TrimSpace(query), limit, offset)
}

func (s *ContactService) Update(ctx context.Context, ownerID, id string, in ContactInput) (domain.Contact, error) {
	birthday, err := in.validate()
	if err != nil {
		return domain.Contact{}, err
	}

	c := domain.Contact{
		ID:        id,
		OwnerID:   ownerID,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Email:     normalizeEmail(in.Email),
		Phone:     strings.TrimSpace(in.Phone),
		Birthday:  birthday,
		Notes:     in.Notes,
	}

	if err := s.Store.Contacts().UpdateContact(ctx, ownerID, c); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return domain.Contact{}, ErrContactNotFound
		case errors.Is(err, store.ErrAlreadyExists):
			return domain.Contact{}, ErrContactExists
		default:
			return domain.Contact{}, err
		}
	}

	return s.Store.Contacts().GetContact(ctx, ownerID, id)
}

func (s *ContactService) Delete(ctx context.Context, ownerID, id string) error {
	if err := s.Store.Contacts().DeleteContact(ctx, ownerID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrContactNotFound
		}
		return err
	}
	return nil
}

// UpcomingBirthdays returns the owner's contacts whose birthday falls within
// the next `days` days, today included. Year wrap is handled, so a window
// spanning New Year still finds early-January birthdays in late December.
func (s *ContactService) UpcomingBirthdays(ctx context.Context, ownerID string, days int) ([]domain.Contact, error) {
	if days <= 0 {
		days = DefaultBirthdayWindow
	}

	contacts, err := s.Store.Contacts().ListAll(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	end := today.AddDate(0, 0, days)

	var out []domain.Contact
	for _, c := range contacts {
		// Next occurrence of the birthday; Feb 29 normalizes to Mar 1
		// in non-leap years.
		next := time.Date(today.Year(), c.Birthday.Month(), c.Birthday.Day(), 0, 0, 0, 0, time.UTC)
		if next.Before(today) {
			next = time.Date(today.Year()+1, c.Birthday.Month(), c.Birthday.Day(), 0, 0, 0, 0, time.UTC)
		}
		if !next.Before(today) && !next.After(end) {
			out = append(out, c)
		}
	}
	return out, nil
}
