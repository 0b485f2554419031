package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psantana5/agencysite/internal/config"
	"github.com/psantana5/agencysite/pkg/logging"
	"github.com/psantana5/agencysite/pkg/models"
	"github.com/psantana5/agencysite/pkg/store"
	"github.com/psantana5/agencysite/pkg/tracing"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestConfigCommandMasksSecrets(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SITE_AUTH_API_KEY", "very-secret-key")
	t.Setenv("SITE_DATABASE_TYPE", "memory")

	out := execute(t, "config")
	assert.Contains(t, out, "********")
	assert.NotContains(t, out, "very-secret-key")
	assert.Contains(t, out, "type: memory")
}

func TestSeedAndUseradd(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	dbPath := filepath.Join(dir, "site.db")
	t.Setenv("SITE_DATABASE_TYPE", "sqlite")
	t.Setenv("SITE_DATABASE_PATH", dbPath)

	out := execute(t, "seed")
	assert.Contains(t, out, "Seeded")

	out = execute(t, "useradd", "--email", "Owner@Example.com", "--password", "long-enough", "--role", "admin")
	assert.Contains(t, out, "Created admin user owner@example.com")

	st, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer st.Close()

	user, err := st.GetUserByEmail(context.Background(), "owner@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.Role)

	services, err := st.ListDocuments(context.Background(), models.KindService, store.ListOptions{PublishedOnly: true})
	require.NoError(t, err)
	assert.NotEmpty(t, services)
}

func TestLogrotateCommand(t *testing.T) {
	out := execute(t, "logrotate", "--dir", "/srv/site/logs", "--keep", "7")
	assert.Contains(t, out, "agencysite-siteserver")
	assert.Contains(t, out, "/srv/site/logs/siteserver/*.log {")
	assert.Contains(t, out, "rotate 7")
}

func TestBuildHandlerAnswersPreflight(t *testing.T) {
	logger := logging.NewLogger(logging.ERROR, true)
	logger.SetOutput(io.Discard)
	cfg := &config.Config{Server: config.ServerConfig{CORSOrigins: []string{"https://brightloop.example"}}}

	router := mux.NewRouter()
	router.HandleFunc("/api/leads", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}).Methods("POST")

	h := buildHandler(router, cfg, tracing.Noop(), logger)

	req := httptest.NewRequest("OPTIONS", "/api/leads", nil)
	req.Header.Set("Origin", "https://brightloop.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://brightloop.example", rr.Header().Get("Access-Control-Allow-Origin"))
}
