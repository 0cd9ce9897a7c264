package ledger

import "github.com/shopspring/decimal"

// PaymentStatus is the derived settlement state of a registration balance.
type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPartial  PaymentStatus = "partial"
	PaymentStatusPaidFull PaymentStatus = "paid_full"
	PaymentStatusOverpaid PaymentStatus = "overpaid"
)

// Classify derives the payment status from the amount due and the amount paid.
// Comparison is exact; a balance that is off by one cent is not paid in full.
func Classify(totalDue, amountPaid decimal.Decimal) PaymentStatus {
	remaining := totalDue.Sub(amountPaid)
	switch {
	case remaining.IsZero():
		return PaymentStatusPaidFull
	case remaining.IsNegative():
		return PaymentStatusOverpaid
	case amountPaid.IsPositive():
		return PaymentStatusPartial
	default:
		return PaymentStatusUnpaid
	}
}
