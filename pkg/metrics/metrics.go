package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/psantana5/agencysite/pkg/models"
)

const namespace = "agencysite"

// Metrics holds the site's Prometheus instruments. It implements the
// content resolver's Observer.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	bytesReceived  *prometheus.CounterVec
	bytesSent      *prometheus.CounterVec
	resolutions    *prometheus.CounterVec
	bundleReloads  *prometheus.CounterVec
	leads          prometheus.Counter
	newsletter     *prometheus.CounterVec
	chatRequests   *prometheus.CounterVec
	chatDuration   prometheus.Histogram
	webhookEvents  *prometheus.CounterVec
	deliveries     *prometheus.CounterVec
	deliveryTime   prometheus.Histogram
	webhookDropped prometheus.Counter
}

// New creates the instruments and registers them, together with the Go
// runtime and process collectors, on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by method and route",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		bytesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_request_bytes_total",
				Help:      "Total bytes received in HTTP requests",
			},
			[]string{"method", "route"},
		),
		bytesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_response_bytes_total",
				Help:      "Total bytes sent in HTTP responses",
			},
			[]string{"method", "route", "status"},
		),
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "content_resolutions_total",
				Help:      "Content reads by domain and the source that served them",
			},
			[]string{"domain", "source"},
		),
		bundleReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "content_bundle_reloads_total",
				Help:      "Reloads of the default content bundle by result",
			},
			[]string{"result"},
		),
		leads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leads_total",
			Help:      "Audit form submissions stored",
		}),
		newsletter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "newsletter_signups_total",
				Help:      "Newsletter signups by result",
			},
			[]string{"result"},
		),
		chatRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chat_requests_total",
				Help:      "Chat widget requests by result",
			},
			[]string{"result"},
		),
		chatDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chat_completion_duration_seconds",
			Help:      "Latency of upstream chat completions",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
		}),
		webhookEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_events_total",
				Help:      "Events dispatched to webhooks by type",
			},
			[]string{"event"},
		),
		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_deliveries_total",
				Help:      "Webhook deliveries by event and status",
			},
			[]string{"event", "status"},
		),
		deliveryTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_delivery_duration_seconds",
			Help:      "Time spent delivering a webhook, retries included",
			Buckets:   prometheus.DefBuckets,
		}),
		webhookDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_queue_dropped_total",
			Help:      "Deliveries dropped because the queue was full",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration, m.bytesReceived, m.bytesSent,
		m.resolutions, m.bundleReloads,
		m.leads, m.newsletter, m.chatRequests, m.chatDuration,
		m.webhookEvents, m.deliveries, m.deliveryTime, m.webhookDropped,
	)
	return m
}

// ObserveContentResolution counts a content read
func (m *Metrics) ObserveContentResolution(domain, source string) {
	m.resolutions.WithLabelValues(domain, source).Inc()
}

// ObserveBundleReload counts a bundle reload
func (m *Metrics) ObserveBundleReload(ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	m.bundleReloads.WithLabelValues(result).Inc()
}

// LeadCreated counts a stored lead
func (m *Metrics) LeadCreated() {
	m.leads.Inc()
}

// NewsletterSignup counts a signup; result is "subscribed" or "already_subscribed"
func (m *Metrics) NewsletterSignup(result string) {
	m.newsletter.WithLabelValues(result).Inc()
}

// ChatRequest counts a chat request and records upstream latency
func (m *Metrics) ChatRequest(result string, d time.Duration) {
	m.chatRequests.WithLabelValues(result).Inc()
	if d > 0 {
		m.chatDuration.Observe(d.Seconds())
	}
}

// WebhookEvent counts a dispatched event
func (m *Metrics) WebhookEvent(eventType string) {
	m.webhookEvents.WithLabelValues(eventType).Inc()
}

// WebhookDelivery counts a finished delivery
func (m *Metrics) WebhookDelivery(eventType string, status models.DeliveryStatus, d time.Duration) {
	m.deliveries.WithLabelValues(eventType, string(status)).Inc()
	m.deliveryTime.Observe(d.Seconds())
}

// WebhookDropped counts a delivery dropped on a full queue
func (m *Metrics) WebhookDropped() {
	m.webhookDropped.Inc()
}

// Middleware returns HTTP middleware that records request counts, latency
// and bandwidth. Routes are labelled by their mux path template so that
// slugs and ids do not create new series.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		route := routeLabel(r)
		method := r.Method

		if r.ContentLength > 0 {
			m.bytesReceived.WithLabelValues(method, route).Add(float64(r.ContentLength))
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		status := strconv.Itoa(rw.statusCode)
		m.httpRequests.WithLabelValues(method, route, status).Inc()
		m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		if rw.bytesWritten > 0 {
			m.bytesSent.WithLabelValues(method, route, status).Add(float64(rw.bytesWritten))
		}
	})
}

func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

type responseWriter struct {
	http.ResponseWriter
	bytesWritten int
	statusCode   int
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}
