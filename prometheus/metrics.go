package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	// Sync operation counter per collection
	SyncOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_operations_total",
			Help: "Total number of synchronization operations",
		},
		[]string{"collection"},
	)

	// Synced record counter per collection
	SyncedRecordsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_records_total",
			Help: "Total number of records upserted by synchronization",
		},
		[]string{"collection"},
	)

	// Restore operation counter
	RestoreOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_restore_operations_total",
			Help: "Total number of restore operations",
		},
		[]string{"collection"},
	)

	// Tenant operation counter
	TenantOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_tenant_operations_total",
			Help: "Total number of tenant operations",
		},
		[]string{"operation"}, // operation can be "provision", "discover", "resolve"
	)

	// Error counters
	SyncErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_errors_total",
			Help: "Total number of synchronization errors",
		},
		[]string{"type"}, // type can be "invalid_request", "not_initialized", "sync_failed" etc.
	)

	// HTTP request counter by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)
)

// Histogram metrics
var (
	// Request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	// Database operation duration
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // operation can be "upsert", "restore", "discover", "provision"
	)
)

// Gauge metrics
var (
	// Known tenant databases
	TenantDatabasesGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_tenant_databases",
			Help: "Number of tenant databases discovered under the default prefix",
		},
	)

	// System info
	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sync_info",
			Help: "Information about the sync service",
		},
		[]string{"version"},
	)
)

func init() {
	// Register counters
	prometheus.MustRegister(SyncOperationCounter)
	prometheus.MustRegister(SyncedRecordsCounter)
	prometheus.MustRegister(RestoreOperationCounter)
	prometheus.MustRegister(TenantOperationCounter)
	prometheus.MustRegister(SyncErrorCounter)
	prometheus.MustRegister(HTTPRequestCounter)

	// Register histograms
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(DBOperationDuration)

	// Register gauges
	prometheus.MustRegister(TenantDatabasesGauge)
	prometheus.MustRegister(InfoGauge)

	// Set initial service info
	InfoGauge.With(prometheus.Labels{"version": "1.0.0"}).Set(1)
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// TrackDBOperation measures database operation durations
func TrackDBOperation(operation string) func(time.Time) {
	startTime := time.Now()
	return func(endTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DBOperationDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(duration)
	}
}

// MetricsMiddleware creates a middleware function that captures metrics for each request
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			// Execute the request handler
			err := next(c)

			// Record request duration
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(c.Response().Status)
			endpoint := c.Path()
			method := c.Request().Method

			RequestDuration.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Observe(duration)

			HTTPRequestCounter.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Inc()

			return err
		}
	}
}

// RecordSyncOperation records a synchronization operation for a collection
func RecordSyncOperation(collection string) {
	SyncOperationCounter.With(prometheus.Labels{"collection": collection}).Inc()
}

// RecordSyncedRecords adds the number of records upserted for a collection
func RecordSyncedRecords(collection string, count int) {
	SyncedRecordsCounter.With(prometheus.Labels{"collection": collection}).Add(float64(count))
}

// RecordRestoreOperation records a restore operation for a collection
func RecordRestoreOperation(collection string) {
	RestoreOperationCounter.With(prometheus.Labels{"collection": collection}).Inc()
}

// RecordTenantOperation records a tenant operation
func RecordTenantOperation(operation string) {
	TenantOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordSyncError records a synchronization error by type
func RecordSyncError(errorType string) {
	SyncErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// UpdateTenantDatabases updates the tenant databases gauge
func UpdateTenantDatabases(count int) {
	TenantDatabasesGauge.Set(float64(count))
}
