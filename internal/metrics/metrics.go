// Package metrics exposes the Prometheus instruments for the storefront.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every instrument the service records.
type Metrics struct {
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	inFlight       prometheus.Gauge
	uploads        prometheus.Counter
	uploadBytes    prometheus.Counter
	checkouts      *prometheus.CounterVec
	downloads      prometheus.Counter
	downloadDenied prometheus.Counter
}

// New registers the storefront instruments on the given registerer. Passing
// nil uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefront_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "storefront_http_in_flight_requests",
			Help: "HTTP requests currently being served.",
		}),
		uploads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_asset_uploads_total",
			Help: "Accepted asset uploads.",
		}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_asset_upload_bytes_total",
			Help: "Bytes stored by accepted asset uploads.",
		}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_checkouts_total",
			Help: "Checkout sessions by terminal status.",
		}, []string{"status"}),
		downloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_downloads_total",
			Help: "Successful download redemptions.",
		}),
		downloadDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_downloads_denied_total",
			Help: "Download redemptions rejected (expired, reused or forged tokens).",
		}),
	}

	reg.MustRegister(
		m.httpRequests, m.httpDuration, m.inFlight,
		m.uploads, m.uploadBytes, m.checkouts,
		m.downloads, m.downloadDenied,
	)
	return m
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncrementInFlight marks a request in progress.
func (m *Metrics) IncrementInFlight() { m.inFlight.Inc() }

// DecrementInFlight marks a request finished.
func (m *Metrics) DecrementInFlight() { m.inFlight.Dec() }

// RecordUpload records an accepted upload of size bytes.
func (m *Metrics) RecordUpload(size int64) {
	m.uploads.Inc()
	m.uploadBytes.Add(float64(size))
}

// RecordCheckout records a checkout session reaching a terminal status.
func (m *Metrics) RecordCheckout(status string) { m.checkouts.WithLabelValues(status).Inc() }

// RecordDownload records a successful download redemption.
func (m *Metrics) RecordDownload() { m.downloads.Inc() }

// RecordDownloadDenied records a rejected download redemption.
func (m *Metrics) RecordDownloadDenied() { m.downloadDenied.Inc() }
