package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psantana5/agencysite/pkg/models"
	"github.com/psantana5/agencysite/pkg/store"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/plain")
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	return string(body)
}

func TestObserverCounters(t *testing.T) {
	m := New()
	m.ObserveContentResolution("services", "remote")
	m.ObserveContentResolution("services", "remote")
	m.ObserveContentResolution("faqs", "default")
	m.ObserveBundleReload(true)
	m.ObserveBundleReload(false)
	m.LeadCreated()
	m.NewsletterSignup("subscribed")
	m.ChatRequest("ok", 300*time.Millisecond)
	m.WebhookEvent(models.EventLeadCreated)
	m.WebhookDelivery(models.EventLeadCreated, models.DeliverySucceeded, 20*time.Millisecond)
	m.WebhookDropped()

	out := scrape(t, m)
	for _, line := range []string{
		`agencysite_content_resolutions_total{domain="services",source="remote"} 2`,
		`agencysite_content_resolutions_total{domain="faqs",source="default"} 1`,
		`agencysite_content_bundle_reloads_total{result="failure"} 1`,
		`agencysite_content_bundle_reloads_total{result="success"} 1`,
		`agencysite_leads_total 1`,
		`agencysite_newsletter_signups_total{result="subscribed"} 1`,
		`agencysite_chat_requests_total{result="ok"} 1`,
		`agencysite_webhook_events_total{event="lead.created"} 1`,
		`agencysite_webhook_deliveries_total{event="lead.created",status="succeeded"} 1`,
		`agencysite_webhook_queue_dropped_total 1`,
	} {
		assert.Contains(t, out, line)
	}
	assert.Contains(t, out, "go_goroutines")
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	m := New()
	router := mux.NewRouter()
	router.Use(m.Middleware)
	router.HandleFunc("/api/blog/{slug}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	})
	router.HandleFunc("/api/leads", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}).Methods("POST")

	for _, slug := range []string{"one", "two"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest("GET", "/api/blog/"+slug, nil))
		require.Equal(t, http.StatusOK, rr.Code)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("POST", "/api/leads", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	out := scrape(t, m)
	assert.Contains(t, out, `agencysite_http_requests_total{method="GET",route="/api/blog/{slug}",status="200"} 2`)
	assert.Contains(t, out, `agencysite_http_requests_total{method="POST",route="/api/leads",status="400"} 1`)
	assert.Contains(t, out, `agencysite_http_response_bytes_total{method="GET",route="/api/blog/{slug}",status="200"} 10`)
	assert.NotContains(t, out, `route="/api/blog/one"`)
}

type fakeStats struct {
	stats *store.Stats
	err   error
}

func (f fakeStats) Stats(ctx context.Context) (*store.Stats, error) {
	return f.stats, f.err
}

func TestStoreCollector(t *testing.T) {
	m := New()
	require.NoError(t, m.RegisterStore(fakeStats{stats: &store.Stats{
		DocumentsByKind:  map[models.Kind]int{models.KindPost: 4},
		PublishedByKind:  map[models.Kind]int{models.KindPost: 3},
		Leads:            12,
		LeadsLast30Days:  5,
		Subscribers:      40,
		Users:            2,
		Webhooks:         1,
		FailedDeliveries: 3,
	}}))

	out := scrape(t, m)
	for _, line := range []string{
		`agencysite_store_up 1`,
		`agencysite_documents{kind="posts"} 4`,
		`agencysite_documents{kind="faqs"} 0`,
		`agencysite_documents_published{kind="posts"} 3`,
		`agencysite_stored_leads 12`,
		`agencysite_stored_leads_last_30_days 5`,
		`agencysite_newsletter_subscribers 40`,
		`agencysite_admin_users 2`,
		`agencysite_webhooks 1`,
		`agencysite_webhook_failed_deliveries 3`,
	} {
		assert.Contains(t, out, line)
	}
	assert.Contains(t, out, "agencysite_uptime_seconds")
}

func TestStoreCollectorDown(t *testing.T) {
	m := New()
	require.NoError(t, m.RegisterStore(fakeStats{err: errors.New("connection refused")}))

	out := scrape(t, m)
	assert.Contains(t, out, `agencysite_store_up 0`)
	assert.NotContains(t, out, `agencysite_stored_leads `)
}

func TestMetricsServerRoutes(t *testing.T) {
	m := New()
	srv := m.NewServer("127.0.0.1:0")

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, "ok", rr.Body.String())

	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
