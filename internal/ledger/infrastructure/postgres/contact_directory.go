package postgres

import (
	"context"
	"database/sql"
	"errors"

	ledger "chirho-events/internal/ledger/domain"
)

// ContactDirectory reads registration contacts from the registration tables.
type ContactDirectory struct {
	db *sql.DB
}

// NewContactDirectory constructs a directory.
func NewContactDirectory(db *sql.DB) *ContactDirectory {
	return &ContactDirectory{db: db}
}

// ContactFor returns the group leader or the individual registrant.
func (d *ContactDirectory) ContactFor(ctx context.Context, registrationID string, regType ledger.RegistrationType) (*ledger.Contact, error) {
	if d == nil || d.db == nil {
		return nil, errors.New("contact directory: nil db")
	}
	var query string
	switch regType {
	case ledger.RegistrationGroup:
		query = `
SELECT g.leader_name, COALESCE(g.leader_email, ''), COALESCE(e.name, '')
FROM group_registrations g
LEFT JOIN events e ON e.id = g.event_id
WHERE g.id = $1`
	case ledger.RegistrationIndividual:
		query = `
SELECT i.first_name || ' ' || i.last_name, COALESCE(i.email, ''), COALESCE(e.name, '')
FROM individual_registrations i
LEFT JOIN events e ON e.id = i.event_id
WHERE i.id = $1`
	default:
		return nil, ledger.ErrInvalidRegistrationType
	}
	var contact ledger.Contact
	err := d.db.QueryRowContext(ctx, query, registrationID).Scan(&contact.Name, &contact.Email, &contact.EventName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &contact, nil
}
