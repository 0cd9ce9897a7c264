package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		due, paid string
		want      PaymentStatus
	}{
		{"100.00", "0", PaymentStatusUnpaid},
		{"100.00", "40.00", PaymentStatusPartial},
		{"100.00", "100.00", PaymentStatusPaidFull},
		{"100.00", "100.01", PaymentStatusOverpaid},
		{"100.00", "99.99", PaymentStatusPartial},
		{"0", "0", PaymentStatusPaidFull},
		{"0", "5.00", PaymentStatusOverpaid},
		{"50.00", "-10.00", PaymentStatusUnpaid},
	}
	for _, tc := range cases {
		got := Classify(decimal.RequireFromString(tc.due), decimal.RequireFromString(tc.paid))
		if got != tc.want {
			t.Fatalf("Classify(%s, %s) = %s, want %s", tc.due, tc.paid, got, tc.want)
		}
	}
}

func TestClassifyIsTotal(t *testing.T) {
	valid := map[PaymentStatus]bool{
		PaymentStatusUnpaid:   true,
		PaymentStatusPartial:  true,
		PaymentStatusPaidFull: true,
		PaymentStatusOverpaid: true,
	}
	for due := -3; due <= 3; due++ {
		for paid := -3; paid <= 3; paid++ {
			got := Classify(decimal.NewFromInt(int64(due)), decimal.NewFromInt(int64(paid)))
			if !valid[got] {
				t.Fatalf("Classify(%d, %d) returned %q", due, paid, got)
			}
		}
	}
}

func TestClassifyCentBoundary(t *testing.T) {
	due := decimal.RequireFromString("0.30")
	paid := decimal.RequireFromString("0.10").Add(decimal.RequireFromString("0.20"))
	if got := Classify(due, paid); got != PaymentStatusPaidFull {
		t.Fatalf("expected paid_full, got %s", got)
	}
}

func TestBalanceApply(t *testing.T) {
	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)
	balance := &PaymentBalance{
		RegistrationID:   "reg-1",
		RegistrationType: RegistrationIndividual,
		TotalAmountDue:   decimal.RequireFromString("100.00"),
	}
	records := []PaymentRecord{
		{Amount: decimal.RequireFromString("30.00"), Status: RecordSucceeded, CreatedAt: second},
		{Amount: decimal.RequireFromString("20.00"), Status: RecordSucceeded, CreatedAt: first},
		{Amount: decimal.RequireFromString("50.00"), Status: RecordPending, CreatedAt: second.Add(time.Hour)},
	}
	balance.Apply(records, second)

	if !balance.AmountPaid.Equal(decimal.RequireFromString("50.00")) {
		t.Fatalf("amount paid %s", balance.AmountPaid)
	}
	if !balance.AmountRemaining.Equal(decimal.RequireFromString("50.00")) {
		t.Fatalf("amount remaining %s", balance.AmountRemaining)
	}
	if balance.PaymentStatus != PaymentStatusPartial {
		t.Fatalf("status %s", balance.PaymentStatus)
	}
	if balance.LastPaymentDate == nil || !balance.LastPaymentDate.Equal(second) {
		t.Fatalf("last payment date %v", balance.LastPaymentDate)
	}
}

func TestBalanceApplyKeepsLastPaymentDateWhenNoPayments(t *testing.T) {
	last := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	balance := &PaymentBalance{
		TotalAmountDue:  decimal.RequireFromString("10"),
		LastPaymentDate: &last,
	}
	balance.Apply(nil, time.Now())
	if balance.PaymentStatus != PaymentStatusUnpaid {
		t.Fatalf("status %s", balance.PaymentStatus)
	}
	if balance.LastPaymentDate == nil || !balance.LastPaymentDate.Equal(last) {
		t.Fatalf("last payment date changed: %v", balance.LastPaymentDate)
	}
}

func TestMetadataValidate(t *testing.T) {
	ok := Metadata{MetaCheckNumber: "1042", MetaMemo: "deposit"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := Metadata{"card_number": "4111", "zip": "1"}
	err := bad.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if err.Error() != "notes: unsupported keys: card_number, zip" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestNewPaymentRecordRejectsNonPositiveAmount(t *testing.T) {
	_, err := NewPaymentRecord("reg-1", RegistrationGroup, decimal.Zero, MethodCash, time.Now(), time.Now())
	if err != ErrNonPositiveAmount {
		t.Fatalf("expected ErrNonPositiveAmount, got %v", err)
	}
	_, err = NewPaymentRecord("reg-1", "team", decimal.NewFromInt(1), MethodCash, time.Now(), time.Now())
	if err != ErrInvalidRegistrationType {
		t.Fatalf("expected ErrInvalidRegistrationType, got %v", err)
	}
}
