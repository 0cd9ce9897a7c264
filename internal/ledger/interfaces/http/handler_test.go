package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"chirho-events/internal/audit"
	"chirho-events/internal/ledger/application"
	ledger "chirho-events/internal/ledger/domain"
	"chirho-events/internal/ledger/infrastructure/memory"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func newTestHandler(t *testing.T) (*Handler, *memory.Store, *audit.MemoryLogger) {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	store := memory.NewStore()
	clock := fixedClock{now: time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)}
	calculator, err := application.NewBalanceCalculator(store, clock)
	if err != nil {
		t.Fatalf("calculator: %v", err)
	}
	guard, err := application.NewDuplicateGuard(store, nil, clock, 0, logger)
	if err != nil {
		t.Fatalf("guard: %v", err)
	}
	auditLog := &audit.MemoryLogger{}
	service, err := application.NewPaymentService(store, guard, calculator, nil, auditLog, clock, logger)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	reconciler, err := application.NewReconciler(store, calculator, logger)
	if err != nil {
		t.Fatalf("reconciler: %v", err)
	}
	handler, err := NewHandler(service, reconciler, auditLog, logger)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	store.PutBalance(&ledger.PaymentBalance{
		RegistrationID:   "grp-7",
		RegistrationType: ledger.RegistrationGroup,
		EventID:          "retreat-2026",
		TotalAmountDue:   decimal.RequireFromString("1200.00"),
		AmountRemaining:  decimal.RequireFromString("1200.00"),
		PaymentStatus:    ledger.PaymentStatusUnpaid,
	})
	return handler, store, auditLog
}

func postPayment(handler http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor", "treasurer")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func TestRecordPaymentStatusCodes(t *testing.T) {
	handler, _, auditLog := newTestHandler(t)

	body := `{"registrationId":"grp-7","registrationType":"group","amount":"400.00","paymentMethod":"check","paymentDate":"2026-06-09","reference":"1042"}`
	resp := postPayment(handler, body)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var receipt struct {
		Payment struct {
			ID            string `json:"id"`
			Amount        string `json:"amount"`
			PaymentMethod string `json:"paymentMethod"`
			PaymentStatus string `json:"paymentStatus"`
		} `json:"payment"`
		UpdatedBalance struct {
			AmountPaid      string `json:"amountPaid"`
			AmountRemaining string `json:"amountRemaining"`
			PaymentStatus   string `json:"paymentStatus"`
		} `json:"updatedBalance"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &receipt); err != nil {
		t.Fatalf("decode receipt: %v", err)
	}
	if receipt.Payment.ID == "" || receipt.Payment.PaymentMethod != "check" || receipt.Payment.PaymentStatus != "succeeded" {
		t.Fatalf("unexpected payment: %+v", receipt.Payment)
	}
	if receipt.UpdatedBalance.AmountPaid != "400" || receipt.UpdatedBalance.AmountRemaining != "800" || receipt.UpdatedBalance.PaymentStatus != "partial" {
		t.Fatalf("unexpected balance: %+v", receipt.UpdatedBalance)
	}
	entries := auditLog.Entries()
	if len(entries) != 1 || entries[0].Actor != "treasurer" {
		t.Fatalf("unexpected audit entries: %+v", entries)
	}

	if resp := postPayment(handler, body); resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate, got %d", resp.Code)
	}

	forced := strings.Replace(body, `"reference":"1042"`, `"reference":"1042","force":true`, 1)
	if resp := postPayment(handler, forced); resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 for forced duplicate, got %d", resp.Code)
	}

	missing := strings.Replace(body, "grp-7", "grp-unknown", 1)
	if resp := postPayment(handler, missing); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}

	invalid := []string{
		`{"registrationId":"grp-7","registrationType":"group","amount":"-1","paymentMethod":"cash","paymentDate":"2026-06-09"}`,
		`{"registrationId":"grp-7","registrationType":"team","amount":"10","paymentMethod":"cash","paymentDate":"2026-06-09"}`,
		`{"registrationId":"grp-7","registrationType":"group","amount":"10","paymentMethod":"cash","paymentDate":"2026-07-01"}`,
		`{"registrationId":"grp-7","registrationType":"group","amount":"10","paymentMethod":"cash","paymentDate":"June 9"}`,
		`{"registrationId":"grp-7","registrationType":"group","amount":"10","paymentMethod":"check","paymentDate":"2026-06-09"}`,
		`not json`,
	}
	for _, payload := range invalid {
		if resp := postPayment(handler, payload); resp.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", payload, resp.Code)
		}
	}
}

func TestBalanceAndPaymentListing(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	body := `{"registrationId":"grp-7","registrationType":"group","amount":1200,"paymentMethod":"bank_transfer","paymentDate":"2026-06-10"}`
	if resp := postPayment(handler, body); resp.Code != http.StatusCreated {
		t.Fatalf("record: %d %s", resp.Code, resp.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/balances/grp-7", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("balance status %d", resp.Code)
	}
	var balance balanceView
	if err := json.Unmarshal(resp.Body.Bytes(), &balance); err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	if balance.PaymentStatus != "paid_full" || !balance.AmountRemaining.IsZero() {
		t.Fatalf("unexpected balance %+v", balance)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/payments?registration_id=grp-7", nil)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	var payments []paymentView
	if err := json.Unmarshal(resp.Body.Bytes(), &payments); err != nil {
		t.Fatalf("decode payments: %v", err)
	}
	if len(payments) != 1 || payments[0].Method != "bank_transfer" || payments[0].PaymentDate != "2026-06-10" {
		t.Fatalf("unexpected payments %+v", payments)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/balances/nope", nil)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestRecomputeAndReconcileEndpoints(t *testing.T) {
	handler, store, auditLog := newTestHandler(t)
	store.AppendPayment(ledger.PaymentRecord{
		ID:               "legacy-1",
		RegistrationID:   "grp-7",
		RegistrationType: ledger.RegistrationGroup,
		Amount:           decimal.RequireFromString("200.00"),
		Status:           ledger.RecordSucceeded,
		Method:           ledger.MethodCash,
		CreatedAt:        time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/events/retreat-2026/reconcile", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("reconcile status %d", resp.Code)
	}
	var report application.ReconcileReport
	if err := json.Unmarshal(resp.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Checked != 1 || len(report.Changed) != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/balances/grp-7/recompute", nil)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("recompute status %d", resp.Code)
	}
	var snapshot ledger.BalanceSnapshot
	if err := json.Unmarshal(resp.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if !snapshot.AmountPaid.Equal(decimal.RequireFromString("200")) {
		t.Fatalf("amount paid %s", snapshot.AmountPaid)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/balances/grp-7/recompute", nil)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.Code)
	}

	if len(auditLog.Entries()) != 2 {
		t.Fatalf("expected reconcile and recompute audit entries, got %+v", auditLog.Entries())
	}
}

func TestExports(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	body := `{"registrationId":"grp-7","registrationType":"group","amount":"300","paymentMethod":"cash","paymentDate":"2026-06-01","notes":{"memo":"first deposit"}}`
	if resp := postPayment(handler, body); resp.Code != http.StatusCreated {
		t.Fatalf("record: %d %s", resp.Code, resp.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/grp-7/receipt.pdf", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("pdf status %d", resp.Code)
	}
	if resp.Header().Get("Content-Type") != contentPDF {
		t.Fatalf("pdf content-type mismatch")
	}
	if !bytes.HasPrefix(resp.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("pdf body does not look like a PDF")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/events/retreat-2026/balances.xlsx", nil)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("xlsx status %d", resp.Code)
	}
	if resp.Header().Get("Content-Type") != contentXLSX {
		t.Fatalf("xlsx content-type mismatch")
	}
	if len(resp.Body.Bytes()) == 0 {
		t.Fatalf("xlsx empty")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/events/retreat-2026/balances", nil)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	var balances []balanceView
	if err := json.Unmarshal(resp.Body.Bytes(), &balances); err != nil {
		t.Fatalf("decode balances: %v", err)
	}
	if len(balances) != 1 || balances[0].PaymentStatus != "partial" {
		t.Fatalf("unexpected balances %+v", balances)
	}
}
