package seating

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind selects what an import assigns participants to.
type Kind string

const (
	KindSeating Kind = "seating"
	KindHousing Kind = "housing"
)

// ParseKind parses an import kind case-insensitively.
func ParseKind(raw string) (Kind, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(raw)))
	if kind != KindSeating && kind != KindHousing {
		return "", ErrInvalidKind
	}
	return kind, nil
}

// ParticipantType distinguishes group and individual registrations.
type ParticipantType string

const (
	ParticipantGroup      ParticipantType = "group"
	ParticipantIndividual ParticipantType = "individual"
)

// Section is a seating section or a housing room. Capacity 0 means unlimited.
type Section struct {
	ID        string
	EventID   string
	Kind      Kind
	Name      string
	Capacity  int
	Occupied  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Key is the case-insensitive identity of the section within its event and kind.
func (s Section) Key() string {
	return SectionKey(s.Name)
}

// SectionKey normalizes a section name for lookups.
func SectionKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NewSection constructs a section with a fresh id.
func NewSection(eventID string, kind Kind, name string, capacity int, now time.Time) Section {
	if capacity < 0 {
		capacity = 0
	}
	return Section{
		ID:        uuid.NewString(),
		EventID:   eventID,
		Kind:      kind,
		Name:      strings.TrimSpace(name),
		Capacity:  capacity,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
}

// Assignment places one registration in one section. There is at most one per
// (event, kind, participant type, registration id).
type Assignment struct {
	ID              string
	EventID         string
	Kind            Kind
	SectionID       string
	ParticipantType ParticipantType
	RegistrationID  string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewAssignment constructs an assignment with a fresh id.
func NewAssignment(eventID string, kind Kind, sectionID string, participantType ParticipantType, registrationID string, now time.Time) Assignment {
	return Assignment{
		ID:              uuid.NewString(),
		EventID:         eventID,
		Kind:            kind,
		SectionID:       sectionID,
		ParticipantType: participantType,
		RegistrationID:  registrationID,
		CreatedAt:       now.UTC(),
		UpdatedAt:       now.UTC(),
	}
}
