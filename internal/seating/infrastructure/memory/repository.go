package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	seating "chirho-events/internal/seating/domain"
)

var errUnknownSection = errors.New("seating memory: unknown section")

// Repository is an in-memory seating repository.
type Repository struct {
	mu          sync.RWMutex
	candidates  map[string][]seating.Candidate
	sections    map[string]seating.Section
	assignments map[string]seating.Assignment
}

// NewRepository constructs an empty repository.
func NewRepository() *Repository {
	return &Repository{
		candidates:  make(map[string][]seating.Candidate),
		sections:    make(map[string]seating.Section),
		assignments: make(map[string]seating.Assignment),
	}
}

// AddCandidates registers match candidates for an event.
func (r *Repository) AddCandidates(eventID string, candidates ...seating.Candidate) {
	r.mu.Lock()
	r.candidates[eventID] = append(r.candidates[eventID], candidates...)
	r.mu.Unlock()
}

// Sections returns the sections of an event and kind ordered by name.
func (r *Repository) Sections(eventID string, kind seating.Kind) []seating.Section {
	sections, _ := r.ListSections(context.Background(), eventID, kind)
	return sections
}

// Assignments returns every assignment of an event and kind.
func (r *Repository) Assignments(eventID string, kind seating.Kind) []seating.Assignment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []seating.Assignment
	for _, assignment := range r.assignments {
		if assignment.EventID == eventID && assignment.Kind == kind {
			result = append(result, assignment)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].RegistrationID < result[j].RegistrationID })
	return result
}

func (r *Repository) ListCandidates(ctx context.Context, eventID string) ([]seating.Candidate, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]seating.Candidate(nil), r.candidates[eventID]...), nil
}

func (r *Repository) ListSections(ctx context.Context, eventID string, kind seating.Kind) ([]seating.Section, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []seating.Section
	for _, section := range r.sections {
		if section.EventID == eventID && section.Kind == kind {
			result = append(result, section)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (r *Repository) CreateSection(ctx context.Context, section seating.Section) (seating.Section, bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.sections {
		if existing.EventID == section.EventID && existing.Kind == section.Kind && existing.Key() == section.Key() {
			return existing, false, nil
		}
	}
	r.sections[section.ID] = section
	return section, true, nil
}

func (r *Repository) FindAssignment(ctx context.Context, eventID string, kind seating.Kind, participantType seating.ParticipantType, registrationID string) (*seating.Assignment, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, assignment := range r.assignments {
		if assignment.EventID == eventID && assignment.Kind == kind &&
			assignment.ParticipantType == participantType && assignment.RegistrationID == registrationID {
			found := assignment
			return &found, nil
		}
	}
	return nil, nil
}

func (r *Repository) CreateAssignment(ctx context.Context, assignment seating.Assignment) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sections[assignment.SectionID]; !ok {
		return errUnknownSection
	}
	r.assignments[assignment.ID] = assignment
	return nil
}

func (r *Repository) MoveAssignment(ctx context.Context, assignmentID, sectionID string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sections[sectionID]; !ok {
		return errUnknownSection
	}
	assignment, ok := r.assignments[assignmentID]
	if !ok {
		return errors.New("seating memory: unknown assignment")
	}
	assignment.SectionID = sectionID
	r.assignments[assignmentID] = assignment
	return nil
}

func (r *Repository) CountAssignments(ctx context.Context, sectionID string) (int, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, assignment := range r.assignments {
		if assignment.SectionID == sectionID {
			count++
		}
	}
	return count, nil
}

func (r *Repository) UpdateOccupancy(ctx context.Context, sectionID string, occupied int) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	section, ok := r.sections[sectionID]
	if !ok {
		return errUnknownSection
	}
	section.Occupied = occupied
	r.sections[sectionID] = section
	return nil
}
