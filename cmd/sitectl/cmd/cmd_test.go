package cmd

import (
	"bytes"
	"encoding/pem"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psantana5/agencysite/pkg/calculator"
	"github.com/psantana5/agencysite/pkg/models"
)

const testKey = "cli-test-key"

func fakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	admin := func(path string, v interface{}) {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer "+testKey {
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized", "message": "Authentication required"})
				return
			}
			json.NewEncoder(w).Encode(v)
		})
	}

	created := time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)
	admin("/admin/posts", map[string]interface{}{
		"kind": "posts",
		"entries": []map[string]interface{}{
			{"id": "p1", "slug": "first-post", "title": "First post", "published": true, "updated_at": created},
			{"id": "p2", "slug": "draft-post", "title": "Draft post", "published": false, "updated_at": created},
		},
		"count": 2,
	})
	admin("/admin/leads", map[string]interface{}{
		"leads": []*models.Lead{{ID: "l1", Name: "Ana Ruiz", Email: "ana@example.com", Tasks: []string{"data-entry"}, CreatedAt: created}},
		"count": 1,
	})
	admin("/admin/subscribers", map[string]interface{}{
		"subscribers": []*models.Subscriber{},
		"count":       0,
	})
	admin("/admin/webhooks", map[string]interface{}{
		"webhooks": []*models.Webhook{{ID: "h1", Name: "CRM", URL: "https://crm.example.com/hook", Events: []string{"lead.created"}, Active: true}},
		"count":    1,
	})
	admin("/admin/webhooks/h1/test", models.WebhookDelivery{Status: models.DeliverySucceeded, StatusCode: 200, Attempts: 1})
	admin("/admin/webhooks/h2/test", models.WebhookDelivery{Status: models.DeliveryFailed, Attempts: 3, Error: "connection refused"})
	mux.HandleFunc("/api/calculator/roi", func(w http.ResponseWriter, r *http.Request) {
		var in calculator.Input
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		res, err := calculator.Calculate(in)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		json.NewEncoder(w).Encode(res)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	apiKey, siteURL, caFile = "", "", ""
	insecureTLS = false

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestPostsList(t *testing.T) {
	srv := fakeServer(t)
	out, err := run(t, "--url", srv.URL+"/", "--api-key", testKey, "-o", "table", "posts", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "first-post")
	assert.Contains(t, out, "draft")
	assert.Contains(t, out, "Total posts: 2")
}

func TestUnauthorizedReportsAPIError(t *testing.T) {
	srv := fakeServer(t)
	_, err := run(t, "--url", srv.URL, "--api-key", "wrong", "-o", "table", "leads", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.Contains(t, err.Error(), "Authentication required")
}

func TestLeadsAndSubscribers(t *testing.T) {
	srv := fakeServer(t)
	out, err := run(t, "--url", srv.URL, "--api-key", testKey, "-o", "json", "leads", "list")
	require.NoError(t, err)
	var leads struct {
		Leads []models.Lead `json:"leads"`
		Count int           `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &leads))
	assert.Equal(t, 1, leads.Count)
	assert.Equal(t, "ana@example.com", leads.Leads[0].Email)

	out, err = run(t, "--url", srv.URL, "--api-key", testKey, "-o", "table", "subscribers", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No subscribers found")
}

func TestWebhooksCommands(t *testing.T) {
	srv := fakeServer(t)
	out, err := run(t, "--url", srv.URL, "--api-key", testKey, "-o", "table", "webhooks", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "crm.example.com")

	out, err = run(t, "--url", srv.URL, "--api-key", testKey, "-o", "table", "webhooks", "test", "h1")
	require.NoError(t, err)
	assert.Contains(t, out, "delivered (HTTP 200")

	out, err = run(t, "--url", srv.URL, "--api-key", testKey, "-o", "table", "webhooks", "test", "h2")
	assert.Error(t, err)
	assert.Contains(t, out, "connection refused")
}

func TestCalc(t *testing.T) {
	srv := fakeServer(t)
	out, err := run(t, "--url", srv.URL, "-o", "json", "calc", "--preset", "data-entry", "--tasks", "40", "--rate", "50")
	require.NoError(t, err)

	var res calculator.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 40, res.TasksPerWeek)
	assert.Equal(t, 50.0, res.HourlyRate)
	require.Len(t, res.Breakdown, 1)

	_, err = run(t, "--url", srv.URL, "-o", "json", "calc", "--preset", "nope")
	assert.Error(t, err)
}

func TestContentCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
site:
  name: Example Co
  navigation:
    - label: Home
      url: /
home:
  hero:
    headline: We automate the boring parts
services:
  - slug: bots
    name: Bots
    published: true
`), 0o644))

	out, err := run(t, "-o", "table", "content", "check", path)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")
	assert.Contains(t, out, "Example Co")

	_, err = run(t, "-o", "table", "content", "check", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfigShowMasksKey(t *testing.T) {
	t.Setenv("SITE_API_KEY", "super-secret-1234")
	t.Setenv("SITE_URL", "https://site.example.com")
	out, err := run(t, "-o", "table", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "https://site.example.com")
	assert.Contains(t, out, "****1234")
	assert.NotContains(t, out, "super-secret")
}

func TestTrustsCAFile(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"webhooks": []*models.Webhook{}, "count": 0})
	}))
	t.Cleanup(srv.Close)

	_, err := run(t, "--url", srv.URL, "--api-key", testKey, "-o", "table", "webhooks", "list")
	require.Error(t, err)

	ca := filepath.Join(t.TempDir(), "ca.pem")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	require.NoError(t, os.WriteFile(ca, pemBytes, 0o644))

	out, err := run(t, "--url", srv.URL, "--api-key", testKey, "--ca-file", ca, "-o", "table", "webhooks", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No webhooks registered")
}
