package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	ledger "chirho-events/internal/ledger/domain"
)

type rowScanner interface {
	Scan(dest ...any) error
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const balanceColumns = `registration_id, registration_type, event_id, total_amount_due, amount_paid,
	amount_remaining, payment_status, last_payment_date, created_at, updated_at`

const paymentColumns = `id, registration_id, registration_type, amount, status, method,
	payment_date, reference, notes, recorded_by, created_at`

// Store persists payments and balances in Postgres.
type Store struct {
	db *sql.DB
}

// NewStore constructs a store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// WithinTx runs fn inside a database transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	if s == nil || s.db == nil {
		return errors.New("ledger store: nil db")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// GetBalance returns the balance or nil when absent.
func (s *Store) GetBalance(ctx context.Context, registrationID string) (*ledger.PaymentBalance, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("ledger store: nil db")
	}
	row := s.db.QueryRowContext(ctx, `
SELECT `+balanceColumns+`
FROM payment_balances
WHERE registration_id = $1`, registrationID)
	return scanBalance(row)
}

// ListPayments returns every record of a registration, oldest first.
func (s *Store) ListPayments(ctx context.Context, registrationID string) ([]ledger.PaymentRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("ledger store: nil db")
	}
	return queryPayments(ctx, s.db, `
SELECT `+paymentColumns+`
FROM payments
WHERE registration_id = $1
ORDER BY created_at ASC, id ASC`, registrationID)
}

// FindRecentPayments returns records created at or after since.
func (s *Store) FindRecentPayments(ctx context.Context, registrationID string, regType ledger.RegistrationType, since time.Time) ([]ledger.PaymentRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("ledger store: nil db")
	}
	return queryPayments(ctx, s.db, `
SELECT `+paymentColumns+`
FROM payments
WHERE registration_id = $1 AND registration_type = $2 AND created_at >= $3
ORDER BY created_at ASC`, registrationID, string(regType), since.UTC())
}

// ListBalancesByEvent returns the balances of an event ordered by registration id.
func (s *Store) ListBalancesByEvent(ctx context.Context, eventID string) ([]ledger.PaymentBalance, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("ledger store: nil db")
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT `+balanceColumns+`
FROM payment_balances
WHERE event_id = $1
ORDER BY registration_id ASC`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ledger.PaymentBalance
	for rows.Next() {
		balance, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		if balance != nil {
			result = append(result, *balance)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// CreateBalance inserts a new balance row for a registration.
func (s *Store) CreateBalance(ctx context.Context, balance *ledger.PaymentBalance) error {
	if s == nil || s.db == nil {
		return errors.New("ledger store: nil db")
	}
	if balance == nil {
		return errors.New("ledger store: nil balance")
	}
	now := time.Now().UTC()
	if balance.CreatedAt.IsZero() {
		balance.CreatedAt = now
	}
	if balance.UpdatedAt.IsZero() {
		balance.UpdatedAt = now
	}
	if balance.PaymentStatus == "" {
		balance.AmountRemaining = balance.TotalAmountDue.Sub(balance.AmountPaid)
		balance.PaymentStatus = ledger.Classify(balance.TotalAmountDue, balance.AmountPaid)
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO payment_balances (`+balanceColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		balance.RegistrationID, string(balance.RegistrationType), balance.EventID, balance.TotalAmountDue, balance.AmountPaid,
		balance.AmountRemaining, string(balance.PaymentStatus), balance.LastPaymentDate, balance.CreatedAt, balance.UpdatedAt)
	return err
}

type pgTx struct {
	tx *sql.Tx
}

// LockBalance selects the balance row FOR UPDATE.
func (t *pgTx) LockBalance(ctx context.Context, registrationID string) (*ledger.PaymentBalance, error) {
	row := t.tx.QueryRowContext(ctx, `
SELECT `+balanceColumns+`
FROM payment_balances
WHERE registration_id = $1
FOR UPDATE`, registrationID)
	return scanBalance(row)
}

func (t *pgTx) ListSucceededPayments(ctx context.Context, registrationID string, regType ledger.RegistrationType) ([]ledger.PaymentRecord, error) {
	return queryPayments(ctx, t.tx, `
SELECT `+paymentColumns+`
FROM payments
WHERE registration_id = $1 AND registration_type = $2 AND status = $3
ORDER BY created_at ASC`, registrationID, string(regType), string(ledger.RecordSucceeded))
}

// FindRecentPayments runs after LockBalance, so under read committed it sees
// rows committed by the transaction that held the lock before.
func (t *pgTx) FindRecentPayments(ctx context.Context, registrationID string, regType ledger.RegistrationType, since time.Time) ([]ledger.PaymentRecord, error) {
	return queryPayments(ctx, t.tx, `
SELECT `+paymentColumns+`
FROM payments
WHERE registration_id = $1 AND registration_type = $2 AND created_at >= $3
ORDER BY created_at ASC`, registrationID, string(regType), since.UTC())
}

func (t *pgTx) InsertPayment(ctx context.Context, payment *ledger.PaymentRecord) error {
	if payment == nil {
		return ledger.ErrNilPayment
	}
	_, err := t.tx.ExecContext(ctx, `
INSERT INTO payments (`+paymentColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		payment.ID, payment.RegistrationID, string(payment.RegistrationType), payment.Amount, string(payment.Status),
		string(payment.Method), payment.PaymentDate, payment.Reference, payment.Notes.JSON(), payment.RecordedBy, payment.CreatedAt)
	return err
}

func (t *pgTx) SaveBalance(ctx context.Context, balance *ledger.PaymentBalance) error {
	if balance == nil {
		return errors.New("ledger store: nil balance")
	}
	res, err := t.tx.ExecContext(ctx, `
UPDATE payment_balances
SET amount_paid = $1, amount_remaining = $2, payment_status = $3, last_payment_date = $4, updated_at = $5
WHERE registration_id = $6`,
		balance.AmountPaid, balance.AmountRemaining, string(balance.PaymentStatus), balance.LastPaymentDate, balance.UpdatedAt,
		balance.RegistrationID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &ledger.NotFoundError{RegistrationID: balance.RegistrationID}
	}
	return nil
}

func queryPayments(ctx context.Context, q queryer, query string, args ...any) ([]ledger.PaymentRecord, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ledger.PaymentRecord
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *payment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanBalance(row rowScanner) (*ledger.PaymentBalance, error) {
	var (
		balance  ledger.PaymentBalance
		regType  string
		status   string
		lastPaid sql.NullTime
	)
	err := row.Scan(&balance.RegistrationID, &regType, &balance.EventID, &balance.TotalAmountDue, &balance.AmountPaid,
		&balance.AmountRemaining, &status, &lastPaid, &balance.CreatedAt, &balance.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	balance.RegistrationType = ledger.RegistrationType(regType)
	balance.PaymentStatus = ledger.PaymentStatus(status)
	if lastPaid.Valid {
		last := lastPaid.Time.UTC()
		balance.LastPaymentDate = &last
	}
	balance.CreatedAt = balance.CreatedAt.UTC()
	balance.UpdatedAt = balance.UpdatedAt.UTC()
	return &balance, nil
}

func scanPayment(row rowScanner) (*ledger.PaymentRecord, error) {
	var (
		payment ledger.PaymentRecord
		regType string
		status  string
		method  string
		date    sql.NullTime
		notes   []byte
	)
	err := row.Scan(&payment.ID, &payment.RegistrationID, &regType, &payment.Amount, &status, &method,
		&date, &payment.Reference, &notes, &payment.RecordedBy, &payment.CreatedAt)
	if err != nil {
		return nil, err
	}
	payment.RegistrationType = ledger.RegistrationType(regType)
	payment.Status = ledger.RecordStatus(status)
	payment.Method = ledger.PaymentMethod(method)
	if date.Valid {
		payment.PaymentDate = date.Time.UTC()
	}
	if len(notes) > 0 {
		var meta ledger.Metadata
		if err := json.Unmarshal(notes, &meta); err != nil {
			return nil, fmt.Errorf("ledger store: decode notes for payment %s: %w", payment.ID, err)
		}
		if len(meta) > 0 {
			payment.Notes = meta
		}
	}
	payment.CreatedAt = payment.CreatedAt.UTC()
	return &payment, nil
}
