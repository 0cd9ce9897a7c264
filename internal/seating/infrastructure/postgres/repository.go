package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	seating "chirho-events/internal/seating/domain"
)

type rowScanner interface {
	Scan(dest ...any) error
}

var errNilDB = errors.New("seating repository: nil db")

const sectionColumns = `id, event_id, kind, name, capacity, occupied, created_at, updated_at`

const assignmentColumns = `id, event_id, kind, section_id, participant_type, registration_id, created_at, updated_at`

// Repository persists sections and assignments in Postgres and reads
// candidates from the registration tables.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ListCandidates returns group and individual registrations of an event.
func (r *Repository) ListCandidates(ctx context.Context, eventID string) ([]seating.Candidate, error) {
	if r == nil || r.db == nil {
		return nil, errNilDB
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, 'group', COALESCE(confirmation_code, ''), leader_name, group_name
FROM group_registrations
WHERE event_id = $1
UNION ALL
SELECT id, 'individual', COALESCE(confirmation_code, ''), first_name || ' ' || last_name, COALESCE(parish, '')
FROM individual_registrations
WHERE event_id = $1`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []seating.Candidate
	for rows.Next() {
		var id, ptype, code, name, group string
		if err := rows.Scan(&id, &ptype, &code, &name, &group); err != nil {
			return nil, err
		}
		result = append(result, seating.NewCandidate(id, seating.ParticipantType(ptype), code, name, group))
	}
	return result, rows.Err()
}

// ListSections returns sections of an event and kind ordered by name.
func (r *Repository) ListSections(ctx context.Context, eventID string, kind seating.Kind) ([]seating.Section, error) {
	if r == nil || r.db == nil {
		return nil, errNilDB
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+sectionColumns+`
FROM sections
WHERE event_id = $1 AND kind = $2
ORDER BY name ASC`, eventID, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []seating.Section
	for rows.Next() {
		section, err := scanSection(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *section)
	}
	return result, rows.Err()
}

// CreateSection inserts a section. When another writer already stored the
// same name the existing row is returned instead.
func (r *Repository) CreateSection(ctx context.Context, section seating.Section) (seating.Section, bool, error) {
	if r == nil || r.db == nil {
		return seating.Section{}, false, errNilDB
	}
	row := r.db.QueryRowContext(ctx, `
INSERT INTO sections (`+sectionColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (event_id, kind, (lower(name))) DO NOTHING
RETURNING `+sectionColumns,
		section.ID,
		section.EventID,
		string(section.Kind),
		section.Name,
		section.Capacity,
		section.Occupied,
		section.CreatedAt.UTC(),
		section.UpdatedAt.UTC(),
	)
	inserted, err := scanSection(row)
	if err != nil {
		return seating.Section{}, false, err
	}
	if inserted != nil {
		return *inserted, true, nil
	}

	row = r.db.QueryRowContext(ctx, `
SELECT `+sectionColumns+`
FROM sections
WHERE event_id = $1 AND kind = $2 AND lower(name) = lower($3)`,
		section.EventID, string(section.Kind), section.Name)
	existing, err := scanSection(row)
	if err != nil {
		return seating.Section{}, false, err
	}
	if existing == nil {
		return seating.Section{}, false, fmt.Errorf("seating postgres: section %q vanished after conflict", section.Name)
	}
	return *existing, false, nil
}

// FindAssignment returns the assignment of a registration or nil when absent.
func (r *Repository) FindAssignment(ctx context.Context, eventID string, kind seating.Kind, participantType seating.ParticipantType, registrationID string) (*seating.Assignment, error) {
	if r == nil || r.db == nil {
		return nil, errNilDB
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+assignmentColumns+`
FROM assignments
WHERE event_id = $1 AND kind = $2 AND participant_type = $3 AND registration_id = $4`,
		eventID, string(kind), string(participantType), registrationID)
	return scanAssignment(row)
}

// CreateAssignment inserts an assignment.
func (r *Repository) CreateAssignment(ctx context.Context, assignment seating.Assignment) error {
	if r == nil || r.db == nil {
		return errNilDB
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO assignments (`+assignmentColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (event_id, kind, participant_type, registration_id)
DO UPDATE SET section_id = EXCLUDED.section_id, updated_at = EXCLUDED.updated_at`,
		assignment.ID,
		assignment.EventID,
		string(assignment.Kind),
		assignment.SectionID,
		string(assignment.ParticipantType),
		assignment.RegistrationID,
		assignment.CreatedAt.UTC(),
		assignment.UpdatedAt.UTC(),
	)
	return err
}

// MoveAssignment points an assignment at another section.
func (r *Repository) MoveAssignment(ctx context.Context, assignmentID, sectionID string) error {
	if r == nil || r.db == nil {
		return errNilDB
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE assignments
SET section_id = $2, updated_at = $3
WHERE id = $1`, assignmentID, sectionID, time.Now().UTC())
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("seating repository: assignment %s not found", assignmentID)
	}
	return nil
}

// CountAssignments counts the stored assignments of a section.
func (r *Repository) CountAssignments(ctx context.Context, sectionID string) (int, error) {
	if r == nil || r.db == nil {
		return 0, errNilDB
	}
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM assignments WHERE section_id = $1`, sectionID).Scan(&count)
	return count, err
}

// UpdateOccupancy stores the occupied count of a section.
func (r *Repository) UpdateOccupancy(ctx context.Context, sectionID string, occupied int) error {
	if r == nil || r.db == nil {
		return errNilDB
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE sections
SET occupied = $2, updated_at = $3
WHERE id = $1`, sectionID, occupied, time.Now().UTC())
	return err
}

func scanSection(row rowScanner) (*seating.Section, error) {
	var (
		section seating.Section
		kind    string
	)
	if err := row.Scan(
		&section.ID,
		&section.EventID,
		&kind,
		&section.Name,
		&section.Capacity,
		&section.Occupied,
		&section.CreatedAt,
		&section.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	section.Kind = seating.Kind(kind)
	return &section, nil
}

func scanAssignment(row rowScanner) (*seating.Assignment, error) {
	var (
		assignment seating.Assignment
		kind       string
		ptype      string
	)
	if err := row.Scan(
		&assignment.ID,
		&assignment.EventID,
		&kind,
		&assignment.SectionID,
		&ptype,
		&assignment.RegistrationID,
		&assignment.CreatedAt,
		&assignment.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	assignment.Kind = seating.Kind(kind)
	assignment.ParticipantType = seating.ParticipantType(ptype)
	return &assignment, nil
}
