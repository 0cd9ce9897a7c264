package ledger

import (
	"context"
	"time"
)

// Tx is the set of ledger writes that must happen under one transaction.
type Tx interface {
	// LockBalance loads the balance row and holds a write lock on it until the
	// transaction ends. Returns nil when no balance exists.
	LockBalance(ctx context.Context, registrationID string) (*PaymentBalance, error)
	ListSucceededPayments(ctx context.Context, registrationID string, regType RegistrationType) ([]PaymentRecord, error)
	// FindRecentPayments sees payments committed before the balance lock was
	// taken as well as the transaction's own inserts.
	FindRecentPayments(ctx context.Context, registrationID string, regType RegistrationType, since time.Time) ([]PaymentRecord, error)
	InsertPayment(ctx context.Context, payment *PaymentRecord) error
	SaveBalance(ctx context.Context, balance *PaymentBalance) error
}

// Store persists payments and balances.
type Store interface {
	// WithinTx runs fn in a transaction; fn's error rolls it back.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	GetBalance(ctx context.Context, registrationID string) (*PaymentBalance, error)
	ListPayments(ctx context.Context, registrationID string) ([]PaymentRecord, error)
	FindRecentPayments(ctx context.Context, registrationID string, regType RegistrationType, since time.Time) ([]PaymentRecord, error)
	ListBalancesByEvent(ctx context.Context, eventID string) ([]PaymentBalance, error)
}

// Contact is the person notified about a registration's payments.
type Contact struct {
	Name      string
	Email     string
	EventName string
}

// ContactDirectory resolves registration contacts.
type ContactDirectory interface {
	ContactFor(ctx context.Context, registrationID string, regType RegistrationType) (*Contact, error)
}
