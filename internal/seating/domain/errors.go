package seating

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyEventID is returned when event id is empty.
	ErrEmptyEventID = errors.New("seating: empty event id")
	// ErrInvalidKind is returned for unknown import kinds.
	ErrInvalidKind = errors.New("seating: invalid import kind")
)

// MissingSectionError reports a row without a section value.
type MissingSectionError struct{}

func (e *MissingSectionError) Error() string {
	return "Missing section name"
}

// ParticipantNotFoundError reports a row that matched no registration.
type ParticipantNotFoundError struct {
	Identifier string
}

func (e *ParticipantNotFoundError) Error() string {
	return fmt.Sprintf("No participant found matching %q", e.Identifier)
}

// AmbiguousParticipantError reports a name that matched several registrations.
type AmbiguousParticipantError struct {
	Name    string
	Matches int
}

func (e *AmbiguousParticipantError) Error() string {
	return fmt.Sprintf("Multiple participants (%d) match %q; add a group name or registration ID", e.Matches, e.Name)
}

// MissingIdentifierError reports a row with neither a name nor a registration id.
type MissingIdentifierError struct{}

func (e *MissingIdentifierError) Error() string {
	return "Row has neither a participant name nor a registration ID"
}

// CapacityExceededError reports a section that has no room left.
type CapacityExceededError struct {
	Section  string
	Capacity int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("Section %q is at capacity (%d)", e.Section, e.Capacity)
}

// MissingColumnError rejects a whole file whose header lacks required columns.
type MissingColumnError struct {
	Columns []string
}

func (e *MissingColumnError) Error() string {
	return "Missing required columns: " + strings.Join(e.Columns, ", ")
}
