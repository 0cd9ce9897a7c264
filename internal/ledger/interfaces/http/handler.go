package http

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"chirho-events/internal/audit"
	"chirho-events/internal/ledger/application"
	ledger "chirho-events/internal/ledger/domain"
	ledgerinterfaces "chirho-events/internal/ledger/interfaces"
	"chirho-events/internal/observability/metrics"
)

const (
	dateLayout   = "2006-01-02"
	contentPDF   = "application/pdf"
	contentXLSX  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	defaultActor = "api"
)

// Handler provides payment and balance HTTP endpoints.
type Handler struct {
	service    *application.PaymentService
	reconciler *application.Reconciler
	audit      audit.Logger
	logger     *log.Logger
}

// NewHandler constructs a handler. reconciler and auditLogger may be nil.
func NewHandler(service *application.PaymentService, reconciler *application.Reconciler, auditLogger audit.Logger, logger *log.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("ledger handler: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{service: service, reconciler: reconciler, audit: auditLogger, logger: logger}, nil
}

// ServeHTTP handles /api/v1/payments, /api/v1/balances and the ledger part of /api/v1/events.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/payments":
		switch r.Method {
		case http.MethodPost:
			h.handleRecord(w, r)
		case http.MethodGet:
			h.handleListPayments(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case strings.HasPrefix(r.URL.Path, "/api/v1/payments/"):
		h.handleReceipt(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/balances/"):
		h.handleBalance(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/events/"):
		h.handleEvent(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type recordPaymentRequest struct {
	RegistrationID   string            `json:"registrationId"`
	RegistrationType string            `json:"registrationType"`
	Amount           decimal.Decimal   `json:"amount"`
	PaymentMethod    string            `json:"paymentMethod"`
	PaymentDate      string            `json:"paymentDate"`
	Reference        string            `json:"reference"`
	Notes            map[string]string `json:"notes"`
	Force            bool              `json:"force"`
}

type paymentView struct {
	ID               string            `json:"id"`
	RegistrationID   string            `json:"registrationId"`
	RegistrationType string            `json:"registrationType"`
	Amount           decimal.Decimal   `json:"amount"`
	Status           string            `json:"status"`
	Method           string            `json:"paymentMethod"`
	PaymentDate      string            `json:"paymentDate,omitempty"`
	Reference        string            `json:"reference,omitempty"`
	Notes            map[string]string `json:"notes,omitempty"`
	RecordedBy       string            `json:"recordedBy,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
}

type balanceView struct {
	RegistrationID   string          `json:"registrationId"`
	RegistrationType string          `json:"registrationType"`
	EventID          string          `json:"eventId"`
	TotalAmountDue   decimal.Decimal `json:"totalAmountDue"`
	AmountPaid       decimal.Decimal `json:"amountPaid"`
	AmountRemaining  decimal.Decimal `json:"amountRemaining"`
	PaymentStatus    string          `json:"paymentStatus"`
	LastPaymentDate  *time.Time      `json:"lastPaymentDate,omitempty"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	var req recordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return
	}
	regType, err := ledger.ParseRegistrationType(req.RegistrationType)
	if err != nil {
		h.writeError(w, ledger.NewValidationError("registrationType", "must be group or individual"))
		return
	}
	paymentDate, err := parseDate(req.PaymentDate)
	if err != nil {
		h.writeError(w, ledger.NewValidationError("paymentDate", "must be YYYY-MM-DD or RFC3339"))
		return
	}

	receipt, err := h.service.RecordPayment(r.Context(), application.PaymentInput{
		RegistrationID:   strings.TrimSpace(req.RegistrationID),
		RegistrationType: regType,
		Amount:           req.Amount,
		Method:           ledger.PaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod))),
		PaymentDate:      paymentDate,
		Reference:        req.Reference,
		Notes:            ledger.Metadata(req.Notes),
		Force:            req.Force,
		RecordedBy:       actor(r),
		ClientIP:         clientIP(r),
		UserAgent:        r.UserAgent(),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func (h *Handler) handleListPayments(w http.ResponseWriter, r *http.Request) {
	registrationID := strings.TrimSpace(r.URL.Query().Get("registration_id"))
	if registrationID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "registration_id is required"})
		return
	}
	payments, err := h.service.ListPayments(r.Context(), registrationID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	views := make([]paymentView, 0, len(payments))
	for _, payment := range payments {
		views = append(views, toPaymentView(payment))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) handleReceipt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	parts := splitPath(r.URL.Path, "/api/v1/payments/")
	if len(parts) != 2 || parts[1] != "receipt.pdf" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveExport("pdf", result, time.Since(start))
	}()

	balance, err := h.service.GetBalance(r.Context(), parts[0])
	if err != nil {
		result = metrics.ResultError
		h.writeError(w, err)
		return
	}
	payments, err := h.service.ListPayments(r.Context(), parts[0])
	if err != nil {
		result = metrics.ResultError
		h.writeError(w, err)
		return
	}
	content, err := ledgerinterfaces.BuildReceiptPDF(balance, payments, time.Now())
	if err != nil {
		result = metrics.ResultError
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentPDF)
	w.Header().Set("Content-Disposition", `attachment; filename="receipt-`+balance.RegistrationID+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/v1/balances/")
	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		balance, err := h.service.GetBalance(r.Context(), parts[0])
		if err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toBalanceView(*balance))
	case len(parts) == 2 && parts[1] == "recompute" && r.Method == http.MethodPost:
		h.handleRecompute(w, r, parts[0])
	case len(parts) == 1 || (len(parts) == 2 && parts[1] == "recompute"):
		w.WriteHeader(http.StatusMethodNotAllowed)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleRecompute(w http.ResponseWriter, r *http.Request, registrationID string) {
	var regType ledger.RegistrationType
	if raw := r.URL.Query().Get("registration_type"); raw != "" {
		parsed, err := ledger.ParseRegistrationType(raw)
		if err != nil {
			h.writeError(w, ledger.NewValidationError("registrationType", "must be group or individual"))
			return
		}
		regType = parsed
	} else {
		balance, err := h.service.GetBalance(r.Context(), registrationID)
		if err != nil {
			h.writeError(w, err)
			return
		}
		regType = balance.RegistrationType
	}

	snapshot, err := h.service.Recompute(r.Context(), registrationID, regType)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.logAudit(r, audit.Entry{
		Action:       audit.ActionBalanceRecompute,
		ResourceType: "payment_balance",
		ResourceID:   registrationID,
		Metadata:     audit.MarshalMetadata(snapshot),
	})
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) handleEvent(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/v1/events/")
	if len(parts) != 2 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	eventID := parts[0]
	switch parts[1] {
	case "balances":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		balances, err := h.service.ListEventBalances(r.Context(), eventID)
		if err != nil {
			h.writeError(w, err)
			return
		}
		views := make([]balanceView, 0, len(balances))
		for _, balance := range balances {
			views = append(views, toBalanceView(balance))
		}
		writeJSON(w, http.StatusOK, views)
	case "balances.xlsx":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleBalanceReport(w, r, eventID)
	case "reconcile":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleReconcile(w, r, eventID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleBalanceReport(w http.ResponseWriter, r *http.Request, eventID string) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveExport("xlsx", result, time.Since(start))
	}()

	balances, err := h.service.ListEventBalances(r.Context(), eventID)
	if err != nil {
		result = metrics.ResultError
		h.writeError(w, err)
		return
	}
	content, err := ledgerinterfaces.BuildBalanceReportXLSX(eventID, balances, time.Now())
	if err != nil {
		result = metrics.ResultError
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentXLSX)
	w.Header().Set("Content-Disposition", `attachment; filename="balances-`+eventID+`.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request, eventID string) {
	if h.reconciler == nil {
		w.WriteHeader(http.StatusNotImplemented)
		return
	}
	report, err := h.reconciler.ReconcileEvent(r.Context(), eventID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.logAudit(r, audit.Entry{
		EventID:      eventID,
		Action:       audit.ActionEventReconcile,
		ResourceType: "event",
		ResourceID:   eventID,
		Metadata: audit.MarshalMetadata(map[string]int{
			"checked": report.Checked,
			"changed": len(report.Changed),
			"failed":  len(report.Failed),
		}),
	})
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) logAudit(r *http.Request, entry audit.Entry) {
	if h.audit == nil {
		return
	}
	entry.Actor = actor(r)
	entry.IP = clientIP(r)
	entry.UserAgent = r.UserAgent()
	if err := h.audit.Log(r.Context(), entry); err != nil {
		h.logger.Printf("audit write failed: action=%s resource=%s err=%v", entry.Action, entry.ResourceID, err)
	}
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var (
		validation *ledger.ValidationError
		notFound   *ledger.NotFoundError
		duplicate  *ledger.DuplicatePaymentError
	)
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: validation.Error(), Field: validation.Field})
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: notFound.Error()})
	case errors.As(err, &duplicate):
		writeJSON(w, http.StatusConflict, errorBody{Error: duplicate.Error()})
	default:
		h.logger.Printf("ledger handler: unexpected error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func toPaymentView(payment ledger.PaymentRecord) paymentView {
	view := paymentView{
		ID:               payment.ID,
		RegistrationID:   payment.RegistrationID,
		RegistrationType: string(payment.RegistrationType),
		Amount:           payment.Amount,
		Status:           string(payment.Status),
		Method:           string(payment.Method),
		Reference:        payment.Reference,
		Notes:            payment.Notes,
		RecordedBy:       payment.RecordedBy,
		CreatedAt:        payment.CreatedAt,
	}
	if !payment.PaymentDate.IsZero() {
		view.PaymentDate = payment.PaymentDate.Format(dateLayout)
	}
	return view
}

func toBalanceView(balance ledger.PaymentBalance) balanceView {
	return balanceView{
		RegistrationID:   balance.RegistrationID,
		RegistrationType: string(balance.RegistrationType),
		EventID:          balance.EventID,
		TotalAmountDue:   balance.TotalAmountDue,
		AmountPaid:       balance.AmountPaid,
		AmountRemaining:  balance.AmountRemaining,
		PaymentStatus:    string(balance.PaymentStatus),
		LastPaymentDate:  balance.LastPaymentDate,
		UpdatedAt:        balance.UpdatedAt,
	}
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if parsed, err := time.Parse(dateLayout, value); err == nil {
		return parsed, nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	return parsed.UTC(), nil
}

func splitPath(path, prefix string) []string {
	trimmed := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func actor(r *http.Request) string {
	if value := strings.TrimSpace(r.Header.Get("X-Actor")); value != "" {
		return value
	}
	return defaultActor
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
