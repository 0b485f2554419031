package api

import (
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/psantana5/agencysite/pkg/auth"
	"github.com/psantana5/agencysite/pkg/models"
	"github.com/psantana5/agencysite/pkg/webhook"
)

const secretMask = "********"

func queryLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}

// ListLeads returns the newest leads first
func (h *Handler) ListLeads(w http.ResponseWriter, r *http.Request) {
	leads, err := h.store.ListLeads(r.Context(), queryLimit(r))
	if err != nil {
		h.writeStoreError(w, r, "list leads", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"leads": leads,
		"count": len(leads),
	})
}

// ListSubscribers returns every newsletter subscriber
func (h *Handler) ListSubscribers(w http.ResponseWriter, r *http.Request) {
	subs, err := h.store.ListSubscribers(r.Context())
	if err != nil {
		h.writeStoreError(w, r, "list subscribers", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"subscribers": subs,
		"count":       len(subs),
	})
}

// DeleteSubscriber removes an address from the newsletter
func (h *Handler) DeleteSubscriber(w http.ResponseWriter, r *http.Request) {
	email := models.NormalizeEmail(mux.Vars(r)["email"])
	if err := h.store.RemoveSubscriber(r.Context(), email); err != nil {
		h.writeStoreError(w, r, "remove subscriber", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// masked hides the signing secret of a webhook in responses
func masked(hook *models.Webhook) *models.Webhook {
	cp := *hook
	if cp.Secret != "" {
		cp.Secret = secretMask
	}
	return &cp
}

// ListWebhooks returns every registered webhook
func (h *Handler) ListWebhooks(w http.ResponseWriter, r *http.Request) {
	hooks, err := h.store.ListWebhooks(r.Context())
	if err != nil {
		h.writeStoreError(w, r, "list webhooks", err)
		return
	}
	out := make([]*models.Webhook, 0, len(hooks))
	for _, hook := range hooks {
		out = append(out, masked(hook))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"webhooks": out,
		"count":    len(out),
	})
}

// GetWebhook returns one webhook
func (h *Handler) GetWebhook(w http.ResponseWriter, r *http.Request) {
	hook, err := h.store.GetWebhook(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeStoreError(w, r, "load webhook", err)
		return
	}
	writeJSON(w, http.StatusOK, masked(hook))
}

func validateWebhook(hook *models.Webhook) error {
	if err := hook.Validate(); err != nil {
		return err
	}
	return webhook.ValidateFilter(hook.Filter)
}

// CreateWebhook registers a webhook
func (h *Handler) CreateWebhook(w http.ResponseWriter, r *http.Request) {
	var hook models.Webhook
	if err := decodeJSON(w, r, &hook); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateWebhook(&hook); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now().UTC()
	hook.ID = uuid.New().String()
	hook.CreatedAt = now
	hook.UpdatedAt = now
	if err := h.store.CreateWebhook(r.Context(), &hook); err != nil {
		h.writeStoreError(w, r, "create webhook", err)
		return
	}
	h.logger.Info("Webhook registered", map[string]interface{}{
		"webhook_id": hook.ID,
		"url":        hook.URL,
		"events":     strings.Join(hook.Events, ","),
	})
	writeJSON(w, http.StatusCreated, masked(&hook))
}

// UpdateWebhook replaces a webhook. Sending the masked secret keeps the
// stored one.
func (h *Handler) UpdateWebhook(w http.ResponseWriter, r *http.Request) {
	existing, err := h.store.GetWebhook(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeStoreError(w, r, "load webhook", err)
		return
	}

	var hook models.Webhook
	if err := decodeJSON(w, r, &hook); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateWebhook(&hook); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if hook.Secret == secretMask {
		hook.Secret = existing.Secret
	}
	hook.ID = existing.ID
	hook.CreatedAt = existing.CreatedAt
	hook.UpdatedAt = time.Now().UTC()
	if err := h.store.UpdateWebhook(r.Context(), &hook); err != nil {
		h.writeStoreError(w, r, "update webhook", err)
		return
	}
	writeJSON(w, http.StatusOK, masked(&hook))
}

// DeleteWebhook removes a webhook and its delivery log
func (h *Handler) DeleteWebhook(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteWebhook(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeStoreError(w, r, "delete webhook", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TestWebhook sends a test event to a webhook and returns the outcome
func (h *Handler) TestWebhook(w http.ResponseWriter, r *http.Request) {
	if h.dispatcher == nil {
		writeError(w, http.StatusServiceUnavailable, "Webhooks are disabled")
		return
	}
	hook, err := h.store.GetWebhook(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeStoreError(w, r, "load webhook", err)
		return
	}
	writeJSON(w, http.StatusOK, h.dispatcher.Test(r.Context(), hook))
}

// ListDeliveries returns the newest deliveries of a webhook
func (h *Handler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.store.GetWebhook(r.Context(), id); err != nil {
		h.writeStoreError(w, r, "load webhook", err)
		return
	}
	deliveries, err := h.store.ListDeliveries(r.Context(), id, queryLimit(r))
	if err != nil {
		h.writeStoreError(w, r, "list deliveries", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deliveries": deliveries,
		"count":      len(deliveries),
	})
}

// DispatchRequest is a manually triggered event
type DispatchRequest struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

// DispatchEvent queues an event for every matching webhook
func (h *Handler) DispatchEvent(w http.ResponseWriter, r *http.Request) {
	if h.dispatcher == nil {
		writeError(w, http.StatusServiceUnavailable, "Webhooks are disabled")
		return
	}
	var req DispatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	known := false
	for _, e := range models.KnownEvents {
		if e == req.Type && e != models.EventAny {
			known = true
		}
	}
	if !known {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown event type %q", req.Type))
		return
	}

	event := webhook.NewEvent(req.Type, req.Data)
	queued, err := h.dispatcher.Dispatch(r.Context(), event)
	if err != nil {
		h.writeStoreError(w, r, "dispatch event", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"event_id": event.ID,
		"queued":   queued,
	})
}

// ListUsers returns every admin user
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		h.writeStoreError(w, r, "list users", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"users": users,
		"count": len(users),
	})
}

// CreateUser adds an admin user
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req models.UserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := auth.NewUser(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.CreateUser(r.Context(), user); err != nil {
		h.writeStoreError(w, r, "create user", err)
		return
	}
	h.logger.Info("User created", map[string]interface{}{
		"user_id": user.ID,
		"role":    string(user.Role),
	})
	writeJSON(w, http.StatusCreated, user)
}

// DeleteUser removes a user and ends their sessions
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if self, err := auth.GetUserID(r.Context()); err == nil && self == id {
		writeError(w, http.StatusBadRequest, "You cannot delete your own account")
		return
	}
	if err := h.store.DeleteUser(r.Context(), id); err != nil {
		h.writeStoreError(w, r, "delete user", err)
		return
	}
	h.auth.Sessions().RevokeUser(id)
	w.WriteHeader(http.StatusNoContent)
}

// HostStats describes the machine serving the site
type HostStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsedMB  uint64  `json:"memory_used_mb"`
	Goroutines    int     `json:"goroutines"`
	UptimeSeconds int64   `json:"uptime_seconds"`
}

func (h *Handler) hostStats(r *http.Request) HostStats {
	stats := HostStats{
		Goroutines:    runtime.NumGoroutine(),
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	}
	if pct, err := cpu.PercentWithContext(r.Context(), 100*time.Millisecond, false); err == nil && len(pct) > 0 {
		stats.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(r.Context()); err == nil {
		stats.MemoryPercent = vm.UsedPercent
		stats.MemoryUsedMB = vm.Used / 1024 / 1024
	}
	return stats
}

// Dashboard returns counts, content sources and host stats
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.writeStoreError(w, r, "load stats", err)
		return
	}
	sessions := 0
	if h.auth != nil {
		sessions = h.auth.Sessions().Count()
	}
	var pending interface{}
	if p, ok := h.dispatcher.(interface{ Pending() int }); ok {
		pending = p.Pending()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats":           stats,
		"content_sources": h.resolver.Status(r.Context()),
		"host":            h.hostStats(r),
		"active_sessions": sessions,
		"webhook_pending": pending,
		"generated_at":    time.Now().UTC(),
	})
}
