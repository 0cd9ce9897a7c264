package memory

import (
	"context"
	"sync"

	ledger "chirho-events/internal/ledger/domain"
)

// ContactDirectory is an in-memory contact lookup.
type ContactDirectory struct {
	mu       sync.RWMutex
	contacts map[string]ledger.Contact
}

// NewContactDirectory constructs an empty directory.
func NewContactDirectory() *ContactDirectory {
	return &ContactDirectory{contacts: make(map[string]ledger.Contact)}
}

// Put registers the contact of a registration.
func (d *ContactDirectory) Put(registrationID string, contact ledger.Contact) {
	d.mu.Lock()
	d.contacts[registrationID] = contact
	d.mu.Unlock()
}

// ContactFor returns the contact or nil when unknown.
func (d *ContactDirectory) ContactFor(ctx context.Context, registrationID string, regType ledger.RegistrationType) (*ledger.Contact, error) {
	_ = ctx
	_ = regType
	d.mu.RLock()
	defer d.mu.RUnlock()
	contact, ok := d.contacts[registrationID]
	if !ok {
		return nil, nil
	}
	return &contact, nil
}
