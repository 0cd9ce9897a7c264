package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "chirho_"

	resultSuccess   = "success"
	resultError     = "error"
	resultRejected  = "rejected"
	resultDuplicate = "duplicate"
)

var (
	registerOnce sync.Once

	paymentRecordTotal   *prometheus.CounterVec
	paymentRecordLatency *prometheus.HistogramVec
	duplicatePayments    *prometheus.CounterVec

	balanceRecomputeTotal   *prometheus.CounterVec
	balanceRecomputeLatency *prometheus.HistogramVec

	importBatchTotal   *prometheus.CounterVec
	importBatchLatency *prometheus.HistogramVec
	importRowsTotal    *prometheus.CounterVec

	notificationTotal *prometheus.CounterVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	reconcileTotal   *prometheus.CounterVec
	reconcileChanged prometheus.Counter
)

// Init registers service metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		paymentRecordTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "payment_record_total",
				Help: "Total payment recording requests by result",
			},
			[]string{"result"},
		)
		paymentRecordLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "payment_record_latency_seconds",
				Help:    "Payment recording latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		duplicatePayments = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "duplicate_payments_total",
				Help: "Payments rejected as duplicates by detection source",
			},
			[]string{"source"},
		)

		balanceRecomputeTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "balance_recompute_total",
				Help: "Total balance recomputations by result",
			},
			[]string{"result"},
		)
		balanceRecomputeLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "balance_recompute_latency_seconds",
				Help:    "Balance recomputation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		importBatchTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "import_batch_total",
				Help: "Total import batches by kind and result",
			},
			[]string{"kind", "result"},
		)
		importBatchLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "import_batch_latency_seconds",
				Help:    "Import batch latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind", "result"},
		)
		importRowsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "import_rows_total",
				Help: "Imported rows by kind and outcome",
			},
			[]string{"kind", "outcome"},
		)

		notificationTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notification_total",
				Help: "Notification sends by result",
			},
			[]string{"result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total report exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		reconcileTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reconcile_runs_total",
				Help: "Event reconcile runs by result",
			},
			[]string{"result"},
		)
		reconcileChanged = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "reconcile_changed_balances_total",
				Help: "Balances whose stored values changed during reconcile",
			},
		)

		prometheus.MustRegister(
			paymentRecordTotal,
			paymentRecordLatency,
			duplicatePayments,
			balanceRecomputeTotal,
			balanceRecomputeLatency,
			importBatchTotal,
			importBatchLatency,
			importRowsTotal,
			notificationTotal,
			exportTotal,
			exportLatency,
			reconcileTotal,
			reconcileChanged,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObservePaymentRecord records payment recording latency and result.
func ObservePaymentRecord(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if paymentRecordTotal != nil {
		paymentRecordTotal.WithLabelValues(result).Inc()
	}
	if paymentRecordLatency != nil {
		paymentRecordLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncDuplicatePayment counts a rejected duplicate payment.
func IncDuplicatePayment(source string) {
	if source == "" {
		source = "unknown"
	}
	if duplicatePayments != nil {
		duplicatePayments.WithLabelValues(source).Inc()
	}
}

// ObserveBalanceRecompute records recompute latency and result.
func ObserveBalanceRecompute(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if balanceRecomputeTotal != nil {
		balanceRecomputeTotal.WithLabelValues(result).Inc()
	}
	if balanceRecomputeLatency != nil {
		balanceRecomputeLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveImportBatch records import batch latency and result.
func ObserveImportBatch(kind, result string, duration time.Duration) {
	if kind == "" {
		kind = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if importBatchTotal != nil {
		importBatchTotal.WithLabelValues(kind, result).Inc()
	}
	if importBatchLatency != nil {
		importBatchLatency.WithLabelValues(kind, result).Observe(duration.Seconds())
	}
}

// AddImportRows adds row outcomes for an import batch.
func AddImportRows(kind, outcome string, count int) {
	if count <= 0 {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	if importRowsTotal != nil {
		importRowsTotal.WithLabelValues(kind, outcome).Add(float64(count))
	}
}

// IncNotification counts a notification send attempt.
func IncNotification(result string) {
	if result == "" {
		result = resultSuccess
	}
	if notificationTotal != nil {
		notificationTotal.WithLabelValues(result).Inc()
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// ObserveReconcile counts a reconcile run and the balances it changed.
func ObserveReconcile(result string, changed int) {
	if result == "" {
		result = resultSuccess
	}
	if reconcileTotal != nil {
		reconcileTotal.WithLabelValues(result).Inc()
	}
	if reconcileChanged != nil && changed > 0 {
		reconcileChanged.Add(float64(changed))
	}
}

// Exported constants for callers.
const (
	ResultSuccess   = resultSuccess
	ResultError     = resultError
	ResultRejected  = resultRejected
	ResultDuplicate = resultDuplicate
)
