package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	ledger "chirho-events/internal/ledger/domain"
)

// Store is an in-memory ledger store. Transactions are serialized and their
// writes are applied only on commit.
type Store struct {
	txMu     sync.Mutex
	mu       sync.RWMutex
	balances map[string]*ledger.PaymentBalance
	payments []ledger.PaymentRecord
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{balances: make(map[string]*ledger.PaymentBalance)}
}

// PutBalance seeds or overwrites a balance.
func (s *Store) PutBalance(balance *ledger.PaymentBalance) {
	if balance == nil {
		return
	}
	s.mu.Lock()
	s.balances[balance.RegistrationID] = balance.Clone()
	s.mu.Unlock()
}

// AppendPayment writes a payment record outside of any transaction.
func (s *Store) AppendPayment(payment ledger.PaymentRecord) {
	s.mu.Lock()
	s.payments = append(s.payments, payment)
	s.mu.Unlock()
}

// WithinTx runs fn in a serialized transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memoryTx{store: s, balances: make(map[string]*ledger.PaymentBalance)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.payments = append(s.payments, tx.payments...)
	for id, balance := range tx.balances {
		s.balances[id] = balance
	}
	s.mu.Unlock()
	return nil
}

// GetBalance returns the balance or nil when absent.
func (s *Store) GetBalance(ctx context.Context, registrationID string) (*ledger.PaymentBalance, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[registrationID].Clone(), nil
}

// ListPayments returns every record of a registration, oldest first.
func (s *Store) ListPayments(ctx context.Context, registrationID string) ([]ledger.PaymentRecord, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []ledger.PaymentRecord
	for _, payment := range s.payments {
		if payment.RegistrationID == registrationID {
			result = append(result, payment)
		}
	}
	sortByCreated(result)
	return result, nil
}

// FindRecentPayments returns records created at or after since.
func (s *Store) FindRecentPayments(ctx context.Context, registrationID string, regType ledger.RegistrationType, since time.Time) ([]ledger.PaymentRecord, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []ledger.PaymentRecord
	for _, payment := range s.payments {
		if payment.RegistrationID != registrationID || payment.RegistrationType != regType {
			continue
		}
		if payment.CreatedAt.Before(since) {
			continue
		}
		result = append(result, payment)
	}
	sortByCreated(result)
	return result, nil
}

// ListBalancesByEvent returns the balances of an event ordered by registration id.
func (s *Store) ListBalancesByEvent(ctx context.Context, eventID string) ([]ledger.PaymentBalance, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []ledger.PaymentBalance
	for _, balance := range s.balances {
		if balance.EventID == eventID {
			result = append(result, *balance.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].RegistrationID < result[j].RegistrationID })
	return result, nil
}

type memoryTx struct {
	store    *Store
	balances map[string]*ledger.PaymentBalance
	payments []ledger.PaymentRecord
}

func (t *memoryTx) LockBalance(ctx context.Context, registrationID string) (*ledger.PaymentBalance, error) {
	if staged, ok := t.balances[registrationID]; ok {
		return staged.Clone(), nil
	}
	return t.store.GetBalance(ctx, registrationID)
}

func (t *memoryTx) ListSucceededPayments(ctx context.Context, registrationID string, regType ledger.RegistrationType) ([]ledger.PaymentRecord, error) {
	_ = ctx
	var result []ledger.PaymentRecord
	collect := func(payments []ledger.PaymentRecord) {
		for _, payment := range payments {
			if payment.RegistrationID == registrationID && payment.RegistrationType == regType && payment.Status == ledger.RecordSucceeded {
				result = append(result, payment)
			}
		}
	}
	t.store.mu.RLock()
	collect(t.store.payments)
	t.store.mu.RUnlock()
	collect(t.payments)
	return result, nil
}

func (t *memoryTx) FindRecentPayments(ctx context.Context, registrationID string, regType ledger.RegistrationType, since time.Time) ([]ledger.PaymentRecord, error) {
	result, err := t.store.FindRecentPayments(ctx, registrationID, regType, since)
	if err != nil {
		return nil, err
	}
	for _, payment := range t.payments {
		if payment.RegistrationID == registrationID && payment.RegistrationType == regType && !payment.CreatedAt.Before(since) {
			result = append(result, payment)
		}
	}
	sortByCreated(result)
	return result, nil
}

func (t *memoryTx) InsertPayment(ctx context.Context, payment *ledger.PaymentRecord) error {
	_ = ctx
	if payment == nil {
		return ledger.ErrNilPayment
	}
	t.payments = append(t.payments, *payment)
	return nil
}

func (t *memoryTx) SaveBalance(ctx context.Context, balance *ledger.PaymentBalance) error {
	_ = ctx
	if balance == nil {
		return ledger.ErrBalanceNotFound
	}
	t.balances[balance.RegistrationID] = balance.Clone()
	return nil
}

func sortByCreated(records []ledger.PaymentRecord) {
	sort.SliceStable(records, func(i, j int) bool { return records[i].CreatedAt.Before(records[j].CreatedAt) })
}
