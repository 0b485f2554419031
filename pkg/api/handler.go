// Package api implements the public site API and the admin API.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/psantana5/agencysite/pkg/auth"
	"github.com/psantana5/agencysite/pkg/chat"
	"github.com/psantana5/agencysite/pkg/content"
	"github.com/psantana5/agencysite/pkg/logging"
	"github.com/psantana5/agencysite/pkg/models"
	"github.com/psantana5/agencysite/pkg/ratelimit"
	"github.com/psantana5/agencysite/pkg/rbac"
	"github.com/psantana5/agencysite/pkg/store"
)

// Dispatcher forwards site events to webhooks
type Dispatcher interface {
	Dispatch(ctx context.Context, event models.Event) (int, error)
	Test(ctx context.Context, hook *models.Webhook) *models.WebhookDelivery
}

// ChatCompleter answers chat widget conversations
type ChatCompleter interface {
	Complete(ctx context.Context, systemPrompt string, history []chat.Message) (*chat.Reply, error)
}

// Recorder counts form and chat outcomes
type Recorder interface {
	LeadCreated()
	NewsletterSignup(result string)
	ChatRequest(result string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) LeadCreated()                      {}
func (nopRecorder) NewsletterSignup(string)           {}
func (nopRecorder) ChatRequest(string, time.Duration) {}

// Options configures a Handler. Store, Resolver and Auth are required.
type Options struct {
	Store      store.Store
	Resolver   *content.Resolver
	Auth       *auth.Authenticator
	Dispatcher Dispatcher    // nil disables webhooks
	Chat       ChatCompleter // nil answers chat requests with 503
	Limiter    *ratelimit.Limiter
	ClientIP   func(*http.Request) string // defaults to ratelimit.IPKeyFunc
	Metrics    Recorder
	Logger     *logging.Logger
}

// Handler serves the HTTP API
type Handler struct {
	store      store.Store
	resolver   *content.Resolver
	auth       *auth.Authenticator
	dispatcher Dispatcher
	chat       ChatCompleter
	limiter    *ratelimit.Limiter
	clientIP   func(*http.Request) string
	metrics    Recorder
	logger     *logging.Logger
	startTime  time.Time
}

// NewHandler creates a new API handler
func NewHandler(opts Options) *Handler {
	h := &Handler{
		store:      opts.Store,
		resolver:   opts.Resolver,
		auth:       opts.Auth,
		dispatcher: opts.Dispatcher,
		chat:       opts.Chat,
		limiter:    opts.Limiter,
		clientIP:   opts.ClientIP,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		startTime:  time.Now(),
	}
	if h.clientIP == nil {
		h.clientIP = ratelimit.IPKeyFunc
	}
	if h.metrics == nil {
		h.metrics = nopRecorder{}
	}
	if h.logger == nil {
		h.logger = logging.NewLogger(logging.INFO, false)
	}
	return h
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods("GET")

	public := r.PathPrefix("/api").Subrouter()
	public.HandleFunc("/site", h.GetSite).Methods("GET")
	public.HandleFunc("/home", h.GetHome).Methods("GET")
	public.HandleFunc("/about", h.GetAbout).Methods("GET")
	public.HandleFunc("/services", h.ListServices).Methods("GET")
	public.HandleFunc("/services/{slug}", h.GetService).Methods("GET")
	public.HandleFunc("/team", h.ListTeam).Methods("GET")
	public.HandleFunc("/blog", h.ListPosts).Methods("GET")
	public.HandleFunc("/blog/{slug}", h.GetPost).Methods("GET")
	public.HandleFunc("/case-studies", h.ListCaseStudies).Methods("GET")
	public.HandleFunc("/case-studies/{slug}", h.GetCaseStudy).Methods("GET")
	public.HandleFunc("/pricing", h.ListPricing).Methods("GET")
	public.HandleFunc("/testimonials", h.ListTestimonials).Methods("GET")
	public.HandleFunc("/faqs", h.ListFAQs).Methods("GET")
	public.HandleFunc("/integrations", h.ListIntegrations).Methods("GET")
	public.HandleFunc("/seo", h.GetSEO).Methods("GET")
	public.HandleFunc("/calculator/presets", h.ListPresets).Methods("GET")
	public.HandleFunc("/calculator/roi", h.CalculateROI).Methods("POST")

	forms := r.PathPrefix("/api").Subrouter()
	if h.limiter != nil {
		forms.Use(h.limiter.Middleware(h.clientIP))
	}
	forms.HandleFunc("/leads", h.CreateLead).Methods("POST")
	forms.HandleFunc("/newsletter", h.Subscribe).Methods("POST")
	forms.HandleFunc("/chat", h.Chat).Methods("POST")

	login := r.PathPrefix("/admin").Subrouter()
	if h.limiter != nil {
		login.Use(h.limiter.Middleware(h.clientIP))
	}
	login.HandleFunc("/login", h.Login).Methods("POST")

	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(h.auth.Middleware)
	admin.HandleFunc("/logout", h.Logout).Methods("POST")
	admin.HandleFunc("/me", h.Me).Methods("GET")

	withPerm := func(perm models.Permission, fn http.HandlerFunc) http.Handler {
		return rbac.RequirePermission(perm)(fn)
	}

	admin.Handle("/dashboard", withPerm(models.PermDashboardRead, h.Dashboard)).Methods("GET")

	settings := admin.PathPrefix("/settings").Subrouter()
	settings.Use(rbac.ByMethod(rbac.Scope{Read: models.PermSettingsRead, Write: models.PermSettingsWrite}))
	settings.HandleFunc("", h.ListSettings).Methods("GET")
	settings.HandleFunc("/{key}", h.GetSetting).Methods("GET")
	settings.HandleFunc("/{key}", h.PutSetting).Methods("PUT")
	settings.HandleFunc("/{key}", h.DeleteSetting).Methods("DELETE")

	admin.Handle("/leads", withPerm(models.PermLeadsRead, h.ListLeads)).Methods("GET")
	admin.Handle("/subscribers", withPerm(models.PermLeadsRead, h.ListSubscribers)).Methods("GET")
	admin.Handle("/subscribers/{email}", withPerm(models.PermLeadsDelete, h.DeleteSubscriber)).Methods("DELETE")

	admin.Handle("/webhooks", withPerm(models.PermWebhooksManage, h.ListWebhooks)).Methods("GET")
	admin.Handle("/webhooks", withPerm(models.PermWebhooksManage, h.CreateWebhook)).Methods("POST")
	admin.Handle("/webhooks/dispatch", withPerm(models.PermWebhooksManage, h.DispatchEvent)).Methods("POST")
	admin.Handle("/webhooks/{id}", withPerm(models.PermWebhooksManage, h.GetWebhook)).Methods("GET")
	admin.Handle("/webhooks/{id}", withPerm(models.PermWebhooksManage, h.UpdateWebhook)).Methods("PUT")
	admin.Handle("/webhooks/{id}", withPerm(models.PermWebhooksManage, h.DeleteWebhook)).Methods("DELETE")
	admin.Handle("/webhooks/{id}/test", withPerm(models.PermWebhooksManage, h.TestWebhook)).Methods("POST")
	admin.Handle("/webhooks/{id}/deliveries", withPerm(models.PermWebhooksManage, h.ListDeliveries)).Methods("GET")

	admin.Handle("/users", withPerm(models.PermUsersManage, h.ListUsers)).Methods("GET")
	admin.Handle("/users", withPerm(models.PermUsersManage, h.CreateUser)).Methods("POST")
	admin.Handle("/users/{id}", withPerm(models.PermUsersManage, h.DeleteUser)).Methods("DELETE")

	// Content collections come last so the fixed paths above take precedence
	collections := admin.NewRoute().Subrouter()
	collections.Use(rbac.ByMethod(rbac.Scope{
		Read:   models.PermContentRead,
		Write:  models.PermContentWrite,
		Delete: models.PermContentDelete,
	}))
	collections.HandleFunc("/{kind}", h.ListEntries).Methods("GET")
	collections.HandleFunc("/{kind}", h.CreateEntry).Methods("POST")
	collections.HandleFunc("/{kind}/{id}", h.GetEntry).Methods("GET")
	collections.HandleFunc("/{kind}/{id}", h.UpdateEntry).Methods("PUT")
	collections.HandleFunc("/{kind}/{id}", h.DeleteEntry).Methods("DELETE")
}

// Health returns the health status of the service
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.HealthCheck(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// dispatch forwards an event to webhooks without failing the request
func (h *Handler) dispatch(ctx context.Context, event models.Event) {
	if h.dispatcher == nil {
		return
	}
	if _, err := h.dispatcher.Dispatch(ctx, event); err != nil {
		h.logger.Warn("Failed to dispatch event", map[string]interface{}{
			"event": event.Type,
			"error": err.Error(),
		})
	}
}
