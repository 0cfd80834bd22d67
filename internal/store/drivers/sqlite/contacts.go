package sqlite

import (
	"context"
	"time"

	"github.com/cardfile/cardfile/internal/domain"
)

type contactsRepo struct {
	q querier
}

// birthdayLayout is how birthdays are persisted: a bare ISO date, no
// time-of-day, no zone.
const birthdayLayout = "2006-01-02"

const contactColumns = `id, owner_id, first_name, last_name, email, phone, birthday, notes, created_at, updated_at`

func scanContact(row interface{ Scan(dest ...any) error }) (domain.Contact, error) {
	var (
		c        domain.Contact
		birthday string
		notes    *string
	)
	err := row.Scan(
		&c.ID,
		&c.OwnerID,
		&c.FirstName,
		&c.LastName,
		&c.Email,
		&c.Phone,
		&birthday,
		&notes,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return domain.Contact{}, err
	}
	if c.Birthday, err = time.Parse(birthdayLayout, birthday); err != nil {
		return domain.Contact{}, err
	}
	if notes != nil {
		c.Notes = *notes
	}
	return c, nil
}

func (r *contactsRepo) CreateContact(ctx context.Context, c domain.Contact) error {
	now := time.Now().UTC()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO contacts (id, owner_id, first_name, last_name, email, phone, birthday, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.OwnerID,
		c.FirstName,
		c.LastName,
		c.Email,
		c.Phone,
		c.Birthday.Format(birthdayLayout),
		mapStringNull(c.Notes),
		now,
		now,
	)
	return mapConflict(err)
}

func (r *contactsRepo) GetContact(ctx context.Context, ownerID, id string) (domain.Contact, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE owner_id = ? AND id = ?`,
		ownerID, id)
	c, err := scanContact(row)
	if err != nil {
		return domain.Contact{}, mapNotFound(err)
	}
	return c, nil
}

func (r *contactsRepo) ListContacts(ctx context.Context, ownerID, query string, limit, offset int) ([]domain.Contact, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	sqlQuery := `SELECT ` + contactColumns + ` FROM contacts WHERE owner_id = ?`
	args := []any{ownerID}
	if query != "" {
		sqlQuery += ` AND (first_name LIKE ? OR last_name LIKE ? OR email LIKE ?)`
		pattern := "%" + query + "%"
		args = append(args, pattern, pattern, pattern)
	}
	sqlQuery += ` ORDER BY last_name, first_name LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.q.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectContacts(rows)
}

func (r *contactsRepo) UpdateContact(ctx context.Context, ownerID string, c domain.Contact) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE contacts
		SET first_name = ?, last_name = ?, email = ?, phone = ?, birthday = ?, notes = ?, updated_at = ?
		WHERE owner_id = ? AND id = ?`,
		c.FirstName,
		c.LastName,
		c.Email,
		c.Phone,
		c.Birthday.Format(birthdayLayout),
		mapStringNull(c.Notes),
		time.Now().UTC(),
		ownerID,
		c.ID,
	)
	if err != nil {
		return mapConflict(err)
	}
	return requireRow(res)
}

func (r *contactsRepo) DeleteContact(ctx context.Context, ownerID, id string) error {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM contacts WHERE owner_id = ? AND id = ?`, ownerID, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *contactsRepo) ListAll(ctx context.Context, ownerID string) ([]domain.Contact, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE owner_id = ? ORDER BY last_name, first_name`,
		ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectContacts(rows)
}

func collectContacts(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]domain.Contact, error) {
	var out []domain.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
