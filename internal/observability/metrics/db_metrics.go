package metrics

import (
	"database/sql"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "balances_outstanding",
			Help: "Balances with an amount still owed",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM payment_balances WHERE payment_status IN ('unpaid','partial')")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "balances_overpaid",
			Help: "Balances that received more than the amount due",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM payment_balances WHERE payment_status = 'overpaid'")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "sections_over_capacity",
			Help: "Sections whose occupancy exceeds a non-zero capacity",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM sections WHERE capacity > 0 AND occupied > capacity")
		},
	))
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
