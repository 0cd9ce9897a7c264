package seating

// SectionCapacity is the per-batch occupancy counter of one section.
type SectionCapacity struct {
	SectionID string
	Name      string
	Capacity  int
	Assigned  int
}

// CapacityTracker counts assignments per section during one batch.
type CapacityTracker struct {
	sections map[string]*SectionCapacity
}

// NewCapacityTracker constructs an empty tracker.
func NewCapacityTracker() *CapacityTracker {
	return &CapacityTracker{sections: make(map[string]*SectionCapacity)}
}

// Track starts counting for section, seeded with its persisted occupancy.
func (t *CapacityTracker) Track(section Section) {
	t.sections[section.ID] = &SectionCapacity{
		SectionID: section.ID,
		Name:      section.Name,
		Capacity:  section.Capacity,
		Assigned:  section.Occupied,
	}
}

// Reserve takes one place in the section. Counters are left untouched when it is full.
func (t *CapacityTracker) Reserve(sectionID string) error {
	counter, ok := t.sections[sectionID]
	if !ok {
		return nil
	}
	if counter.Capacity > 0 && counter.Assigned >= counter.Capacity {
		return &CapacityExceededError{Section: counter.Name, Capacity: counter.Capacity}
	}
	counter.Assigned++
	return nil
}

// Release gives back one place.
func (t *CapacityTracker) Release(sectionID string) {
	counter, ok := t.sections[sectionID]
	if !ok || counter.Assigned == 0 {
		return
	}
	counter.Assigned--
}

// Get returns the counter of a section.
func (t *CapacityTracker) Get(sectionID string) (SectionCapacity, bool) {
	counter, ok := t.sections[sectionID]
	if !ok {
		return SectionCapacity{}, false
	}
	return *counter, true
}
