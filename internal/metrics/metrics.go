package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nicepg"

// Collector holds the Prometheus metrics of the migration runner and the
// admin API. It owns its registry. A nil *Collector is valid and records
// nothing.
type Collector struct {
	registry *prometheus.Registry

	MigrationsTotal     *prometheus.CounterVec
	BatchDuration       *prometheus.HistogramVec
	CurrentVersion      prometheus.Gauge
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewCollector creates a Collector with its own registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		MigrationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "migrations_total",
			Help:      "Migration scripts executed, by direction and outcome",
		}, []string{"direction", "status"}),
		BatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "migration_batch_duration_seconds",
			Help:      "Duration of up/down runs in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"direction"}),
		CurrentVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "schema_version",
			Help:      "Highest applied migration version",
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status_code"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	reg.MustRegister(
		c.MigrationsTotal,
		c.BatchDuration,
		c.CurrentVersion,
		c.HTTPRequestsTotal,
		c.HTTPRequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the registry the metrics are registered with.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveBatch records one up or down run. count is the number of scripts
// the run executed; a failed run counts as one failed script.
func (c *Collector) ObserveBatch(direction string, count int, d time.Duration, err error) {
	if c == nil {
		return
	}
	c.BatchDuration.WithLabelValues(direction).Observe(d.Seconds())
	if err != nil {
		c.MigrationsTotal.WithLabelValues(direction, "failed").Inc()
		return
	}
	c.MigrationsTotal.WithLabelValues(direction, "success").Add(float64(count))
}

// SetVersion publishes the current schema version.
func (c *Collector) SetVersion(v int64) {
	if c == nil {
		return
	}
	c.CurrentVersion.Set(float64(v))
}

// ObserveRequest records one HTTP request.
func (c *Collector) ObserveRequest(method, path string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}
