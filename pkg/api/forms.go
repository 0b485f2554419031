package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/psantana5/agencysite/pkg/chat"
	"github.com/psantana5/agencysite/pkg/models"
	"github.com/psantana5/agencysite/pkg/store"
	"github.com/psantana5/agencysite/pkg/webhook"
)

// CreateLead stores an audit request from the public form
func (h *Handler) CreateLead(w http.ResponseWriter, r *http.Request) {
	var req models.LeadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	lead := &models.Lead{
		ID:        ulid.Make().String(),
		Name:      req.Name,
		Email:     req.Email,
		Company:   req.Company,
		Website:   req.Website,
		Message:   req.Message,
		Tasks:     req.Tasks,
		Budget:    req.Budget,
		Source:    req.Source,
		IPAddress: h.clientIP(r),
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.CreateLead(r.Context(), lead); err != nil {
		h.writeStoreError(w, r, "save lead", err)
		return
	}
	h.metrics.LeadCreated()
	h.logger.Info("Lead received", map[string]interface{}{
		"lead_id": lead.ID,
		"company": lead.Company,
		"source":  lead.Source,
	})

	h.dispatch(r.Context(), webhook.NewEvent(models.EventLeadCreated, map[string]interface{}{
		"id":      lead.ID,
		"name":    lead.Name,
		"email":   lead.Email,
		"company": lead.Company,
		"website": lead.Website,
		"message": lead.Message,
		"tasks":   lead.Tasks,
		"budget":  lead.Budget,
		"source":  lead.Source,
	}))

	writeJSON(w, http.StatusCreated, map[string]string{
		"id":      lead.ID,
		"status":  "received",
		"message": "Thanks! We will get back to you within one business day.",
	})
}

// NewsletterRequest is the newsletter signup payload
type NewsletterRequest struct {
	Email  string `json:"email"`
	Source string `json:"source,omitempty"`
}

// Subscribe adds an address to the newsletter. Signing up twice is not an error.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req NewsletterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	email := models.NormalizeEmail(req.Email)
	if err := models.ValidateEmail(email); err != nil {
		h.metrics.NewsletterSignup("invalid")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sub := &models.Subscriber{Email: email, Source: req.Source, CreatedAt: time.Now().UTC()}
	err := h.store.AddSubscriber(r.Context(), sub)
	if errors.Is(err, store.ErrDuplicate) {
		h.metrics.NewsletterSignup("duplicate")
		writeJSON(w, http.StatusOK, map[string]string{"status": "already_subscribed"})
		return
	}
	if err != nil {
		h.writeStoreError(w, r, "subscribe", err)
		return
	}
	h.metrics.NewsletterSignup("subscribed")

	h.dispatch(r.Context(), webhook.NewEvent(models.EventNewsletterSubscribed, map[string]interface{}{
		"email":  sub.Email,
		"source": sub.Source,
	}))

	writeJSON(w, http.StatusCreated, map[string]string{"status": "subscribed"})
}

// ChatRequest is the chat widget payload
type ChatRequest struct {
	Messages []chat.Message `json:"messages"`
}

// Chat forwards the widget conversation to the chat completion API
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	if h.chat == nil {
		h.metrics.ChatRequest("unavailable", 0)
		writeError(w, http.StatusServiceUnavailable, "Chat is not available")
		return
	}

	var req ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.metrics.ChatRequest("invalid", 0)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	prompt, _ := h.resolver.ChatSystemPrompt(r.Context())
	start := time.Now()
	reply, err := h.chat.Complete(r.Context(), prompt, req.Messages)
	elapsed := time.Since(start)
	switch {
	case errors.Is(err, chat.ErrInvalidConversation):
		h.metrics.ChatRequest("invalid", elapsed)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.metrics.ChatRequest("error", elapsed)
		h.logger.Warn("Chat completion failed", map[string]interface{}{
			"error":       err.Error(),
			"duration_ms": elapsed.Milliseconds(),
		})
		writeError(w, http.StatusBadGateway, "The assistant is unavailable right now, please try again later")
		return
	}
	h.metrics.ChatRequest("ok", elapsed)
	writeJSON(w, http.StatusOK, reply)
}
