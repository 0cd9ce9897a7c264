package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentBalance is the running balance of one registration.
// AmountPaid, AmountRemaining and PaymentStatus are derived from the payment records.
type PaymentBalance struct {
	RegistrationID   string
	RegistrationType RegistrationType
	EventID          string
	TotalAmountDue   decimal.Decimal
	AmountPaid       decimal.Decimal
	AmountRemaining  decimal.Decimal
	PaymentStatus    PaymentStatus
	LastPaymentDate  *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// BalanceSnapshot is the derived part of a balance after recomputation.
type BalanceSnapshot struct {
	AmountPaid      decimal.Decimal `json:"amountPaid"`
	AmountRemaining decimal.Decimal `json:"amountRemaining"`
	PaymentStatus   PaymentStatus   `json:"paymentStatus"`
}

// Equal reports whether two snapshots carry the same values.
func (s BalanceSnapshot) Equal(other BalanceSnapshot) bool {
	return s.AmountPaid.Equal(other.AmountPaid) &&
		s.AmountRemaining.Equal(other.AmountRemaining) &&
		s.PaymentStatus == other.PaymentStatus
}

// Snapshot returns the derived fields of b.
func (b *PaymentBalance) Snapshot() BalanceSnapshot {
	return BalanceSnapshot{
		AmountPaid:      b.AmountPaid,
		AmountRemaining: b.AmountRemaining,
		PaymentStatus:   b.PaymentStatus,
	}
}

// Apply overwrites the derived fields from the full set of payment records.
// Only succeeded records count; duplicates are summed as-is.
func (b *PaymentBalance) Apply(records []PaymentRecord, now time.Time) {
	paid := decimal.Zero
	var last *time.Time
	for _, record := range records {
		if record.Status != RecordSucceeded {
			continue
		}
		paid = paid.Add(record.Amount)
		if last == nil || record.CreatedAt.After(*last) {
			createdAt := record.CreatedAt
			last = &createdAt
		}
	}
	b.AmountPaid = paid
	b.AmountRemaining = b.TotalAmountDue.Sub(paid)
	b.PaymentStatus = Classify(b.TotalAmountDue, paid)
	if last != nil {
		b.LastPaymentDate = last
	}
	b.UpdatedAt = now.UTC()
}

// Clone returns a deep copy.
func (b *PaymentBalance) Clone() *PaymentBalance {
	if b == nil {
		return nil
	}
	clone := *b
	if b.LastPaymentDate != nil {
		last := *b.LastPaymentDate
		clone.LastPaymentDate = &last
	}
	return &clone
}
