package metrics

import (
	"database/sql"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "open_shifts",
			Help: "Shifts currently open across all stations",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM shifts WHERE status = 'OPEN'")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "fuel_debts_outstanding",
			Help: "Fuel debt records not yet settled",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM fuel_debts WHERE settled_at IS NULL")
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
