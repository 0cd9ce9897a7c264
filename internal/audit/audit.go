package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Actions recorded by the service.
const (
	ActionPaymentRecord    = "payment.record"
	ActionBalanceRecompute = "balance.recompute"
	ActionImportRun        = "import.run"
	ActionEventReconcile   = "event.reconcile"
)

// Entry represents an audit log entry.
type Entry struct {
	ID            string
	EventID       string
	Actor         string
	Action        string
	ResourceType  string
	ResourceID    string
	Metadata      json.RawMessage
	PayloadDigest string
	IP            string
	UserAgent     string
	CreatedAt     time.Time
}

// Logger writes audit entries.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
}

// NewID generates a random audit id.
func NewID() string {
	return "audit-" + uuid.NewString()
}

// DigestJSON computes a SHA256 hex digest for metadata payloads.
func DigestJSON(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// MarshalMetadata encodes v for Entry.Metadata, returning nil on failure.
func MarshalMetadata(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}

// MemoryLogger keeps entries in memory.
type MemoryLogger struct {
	mu      sync.Mutex
	entries []Entry
}

// Log appends the entry.
func (m *MemoryLogger) Log(ctx context.Context, entry Entry) error {
	_ = ctx
	m.mu.Lock()
	m.entries = append(m.entries, entry)
	m.mu.Unlock()
	return nil
}

// Entries returns a copy of the logged entries.
func (m *MemoryLogger) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}
