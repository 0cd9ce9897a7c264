package seating

import "context"

// Repository persists sections and assignments and reads match candidates.
type Repository interface {
	ListCandidates(ctx context.Context, eventID string) ([]Candidate, error)
	ListSections(ctx context.Context, eventID string, kind Kind) ([]Section, error)
	// CreateSection stores section unless one with the same name exists. It
	// returns the stored section and whether this call inserted it.
	CreateSection(ctx context.Context, section Section) (Section, bool, error)
	FindAssignment(ctx context.Context, eventID string, kind Kind, participantType ParticipantType, registrationID string) (*Assignment, error)
	CreateAssignment(ctx context.Context, assignment Assignment) error
	MoveAssignment(ctx context.Context, assignmentID, sectionID string) error
	CountAssignments(ctx context.Context, sectionID string) (int, error)
	UpdateOccupancy(ctx context.Context, sectionID string, occupied int) error
}
