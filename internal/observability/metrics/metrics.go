package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "fuelstation_"

	resultSuccess = "success"
	resultError   = "error"

	batchOutcomeAll     = "all"
	batchOutcomePartial = "partial"
	batchOutcomeNone    = "none"
)

var (
	registerOnce sync.Once

	closingSessionsStarted prometheus.Counter
	closingSessionsActive  prometheus.Gauge
	closingSessionsExpired prometheus.Counter

	readingUpdates *prometheus.CounterVec

	closingSubmitTotal   *prometheus.CounterVec
	closingSubmitLatency *prometheus.HistogramVec

	debtBatchTotal  *prometheus.CounterVec
	debtRecordTotal *prometheus.CounterVec

	priceRefreshTotal *prometheus.CounterVec

	closingExportTotal   *prometheus.CounterVec
	closingExportLatency *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		closingSessionsStarted = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "closing_sessions_started_total",
				Help: "Total closing sessions started",
			},
		)
		closingSessionsActive = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "closing_sessions_active",
				Help: "Closing sessions currently in progress",
			},
		)
		closingSessionsExpired = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "closing_sessions_expired_total",
				Help: "Total closing sessions discarded by the idle sweep",
			},
		)

		readingUpdates = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reading_updates_total",
				Help: "Total closing reading updates by kind",
			},
			[]string{"kind"},
		)

		closingSubmitTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "closing_submit_total",
				Help: "Total shift close submissions by result",
			},
			[]string{"result"},
		)
		closingSubmitLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "closing_submit_latency_seconds",
				Help:    "Shift close submission latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		debtBatchTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "debt_batch_total",
				Help: "Total debt allocation batches by outcome",
			},
			[]string{"outcome"},
		)
		debtRecordTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "debt_records_total",
				Help: "Total debt ledger writes by result",
			},
			[]string{"result"},
		)

		priceRefreshTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "price_refresh_total",
				Help: "Total price cache refreshes by result",
			},
			[]string{"result"},
		)

		closingExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "closing_export_total",
				Help: "Total closing summary exports by format and result",
			},
			[]string{"format", "result"},
		)
		closingExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "closing_export_latency_seconds",
				Help:    "Closing summary export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			closingSessionsStarted,
			closingSessionsActive,
			closingSessionsExpired,
			readingUpdates,
			closingSubmitTotal,
			closingSubmitLatency,
			debtBatchTotal,
			debtRecordTotal,
			priceRefreshTotal,
			closingExportTotal,
			closingExportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// IncSessionStarted increments the started session counter.
func IncSessionStarted() {
	if closingSessionsStarted != nil {
		closingSessionsStarted.Inc()
	}
}

// SetActiveSessions sets the active session gauge.
func SetActiveSessions(count int) {
	if count < 0 {
		count = 0
	}
	if closingSessionsActive != nil {
		closingSessionsActive.Set(float64(count))
	}
}

// AddExpiredSessions increments the expired session counter by count.
func AddExpiredSessions(count int) {
	if count <= 0 {
		return
	}
	if closingSessionsExpired != nil {
		closingSessionsExpired.Add(float64(count))
	}
}

// IncReadingUpdate increments reading update counters by kind.
func IncReadingUpdate(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	if readingUpdates != nil {
		readingUpdates.WithLabelValues(kind).Inc()
	}
}

// ObserveClosingSubmit records submission latency and result.
func ObserveClosingSubmit(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if closingSubmitTotal != nil {
		closingSubmitTotal.WithLabelValues(result).Inc()
	}
	if closingSubmitLatency != nil {
		closingSubmitLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncDebtBatch increments the batch counter by outcome.
func IncDebtBatch(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	if debtBatchTotal != nil {
		debtBatchTotal.WithLabelValues(outcome).Inc()
	}
}

// AddDebtRecords increments the ledger write counter by count.
func AddDebtRecords(result string, count int) {
	if count <= 0 {
		return
	}
	if result == "" {
		result = resultSuccess
	}
	if debtRecordTotal != nil {
		debtRecordTotal.WithLabelValues(result).Add(float64(count))
	}
}

// IncPriceRefresh increments the price refresh counter by result.
func IncPriceRefresh(result string) {
	if result == "" {
		result = resultSuccess
	}
	if priceRefreshTotal != nil {
		priceRefreshTotal.WithLabelValues(result).Inc()
	}
}

// ObserveClosingExport records export latency and result.
func ObserveClosingExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if closingExportTotal != nil {
		closingExportTotal.WithLabelValues(format, result).Inc()
	}
	if closingExportLatency != nil {
		closingExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	BatchOutcomeAll     = batchOutcomeAll
	BatchOutcomePartial = batchOutcomePartial
	BatchOutcomeNone    = batchOutcomeNone
)
