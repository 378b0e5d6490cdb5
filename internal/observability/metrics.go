// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Price cache metrics
	CacheHits           prometheus.Counter
	CacheMisses         prometheus.Counter
	BucketFetches       *prometheus.CounterVec
	NearestDayFallbacks prometheus.Counter
	BucketsCached       prometheus.Gauge

	// Emulation metrics
	StatesEmitted     *prometheus.CounterVec
	PanicLiquidations prometheus.Counter
	RunsTotal         *prometheus.CounterVec
	RunDuration       prometheus.Histogram

	// Market data metrics
	APIRequestLatency *prometheus.HistogramVec
	APIRequestErrors  *prometheus.CounterVec

	// Ingestion metrics
	PricesIngested          prometheus.Counter
	LastSuccessfulIngestion prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "trade_emulator"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "price_cache",
			Name:      "hits_total",
			Help:      "Lookups served from an already cached bucket",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "price_cache",
			Name:      "misses_total",
			Help:      "Lookups that required a bucket fetch",
		}),
		BucketFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "price_cache",
			Name:      "bucket_fetches_total",
			Help:      "Bucket fetches from the market data source by status",
		}, []string{"status"}),
		NearestDayFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "price_cache",
			Name:      "nearest_day_fallbacks_total",
			Help:      "Lookups resolved to a nearby trading day",
		}),
		BucketsCached: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "price_cache",
			Name:      "buckets",
			Help:      "Number of buckets currently cached",
		}),

		StatesEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "emulation",
			Name:      "states_emitted_total",
			Help:      "Portfolio states emitted by kind",
		}, []string{"kind"}),
		PanicLiquidations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "emulation",
			Name:      "panic_liquidations_total",
			Help:      "Pending transactions pulled forward by the drawdown rule",
		}),
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "emulation",
			Name:      "runs_total",
			Help:      "Emulation runs by status",
		}, []string{"status"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "emulation",
			Name:      "run_duration_seconds",
			Help:      "Emulation run duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		APIRequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "request_duration_seconds",
			Help:      "Market data API request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		APIRequestErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "request_errors_total",
			Help:      "Market data API request errors",
		}, []string{"endpoint"}),

		PricesIngested: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "daily_prices_ingested_total",
			Help:      "Daily price rows stored by backfill",
		}),
		LastSuccessfulIngestion: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "last_successful_timestamp",
			Help:      "Unix timestamp of last successful backfill",
		}),

		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordCacheLookup records whether a lookup hit an already cached bucket.
func RecordCacheLookup(hit bool) {
	if hit {
		DefaultMetrics.CacheHits.Inc()
		return
	}
	DefaultMetrics.CacheMisses.Inc()
}

// RecordBucketFetch records a bucket fetch and the number of cached buckets after it.
func RecordBucketFetch(err error, cached int) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	DefaultMetrics.BucketFetches.WithLabelValues(status).Inc()
	DefaultMetrics.BucketsCached.Set(float64(cached))
}

// RecordNearestDayFallback increments the fallback counter.
func RecordNearestDayFallback() {
	DefaultMetrics.NearestDayFallbacks.Inc()
}

// ResetBucketsCached zeroes the cached bucket gauge.
func ResetBucketsCached() {
	DefaultMetrics.BucketsCached.Set(0)
}

// RecordStateEmitted increments the emitted states counter for kind ("hold" or "transaction").
func RecordStateEmitted(kind string) {
	DefaultMetrics.StatesEmitted.WithLabelValues(kind).Inc()
}

// RecordPanicLiquidation increments the panic liquidation counter.
func RecordPanicLiquidation() {
	DefaultMetrics.PanicLiquidations.Inc()
}

// RecordRun records an emulation run.
func RecordRun(status string, durationSeconds float64) {
	DefaultMetrics.RunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.RunDuration.Observe(durationSeconds)
}

// RecordAPIRequest records market data API request metrics.
func RecordAPIRequest(endpoint string, seconds float64, err error) {
	DefaultMetrics.APIRequestLatency.WithLabelValues(endpoint).Observe(seconds)
	if err != nil {
		DefaultMetrics.APIRequestErrors.WithLabelValues(endpoint).Inc()
	}
}

// RecordPricesIngested records stored daily price rows.
func RecordPricesIngested(n int, unixSeconds float64) {
	DefaultMetrics.PricesIngested.Add(float64(n))
	DefaultMetrics.LastSuccessfulIngestion.Set(unixSeconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
