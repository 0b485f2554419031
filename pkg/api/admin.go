package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/psantana5/agencysite/pkg/auth"
	"github.com/psantana5/agencysite/pkg/content"
	"github.com/psantana5/agencysite/pkg/models"
	"github.com/psantana5/agencysite/pkg/rbac"
	"github.com/psantana5/agencysite/pkg/store"
	"github.com/psantana5/agencysite/pkg/webhook"
)

// Login checks credentials and starts a session
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), models.NormalizeEmail(req.Email))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.writeStoreError(w, r, "log in", err)
		return
	}
	if user == nil || auth.CheckPassword(user.PasswordHash, req.Password) != nil {
		h.logger.Warn("Failed login", map[string]interface{}{
			"email":  models.NormalizeEmail(req.Email),
			"remote": h.clientIP(r),
		})
		writeError(w, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error())
		return
	}

	token, session, err := h.auth.Sessions().Create(user)
	if err != nil {
		h.writeStoreError(w, r, "create session", err)
		return
	}

	now := time.Now().UTC()
	user.LastLoginAt = &now
	if err := h.store.UpdateUser(r.Context(), user); err != nil {
		h.logger.Warn("Failed to record login time", map[string]interface{}{
			"user_id": user.ID,
			"error":   err.Error(),
		})
	}

	h.auth.SetSessionCookie(w, token, session.ExpiresAt)
	writeJSON(w, http.StatusOK, models.LoginResponse{
		Token:     token,
		ExpiresAt: session.ExpiresAt,
		User:      *user,
	})
}

// Logout ends the caller's session
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if p, ok := auth.PrincipalFromContext(r.Context()); ok && !p.APIKey {
		h.auth.Sessions().Revoke(auth.RequestToken(r))
	}
	h.auth.ClearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Me returns the caller and their permissions
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	resp := map[string]interface{}{
		"id":          p.UserID,
		"email":       p.Email,
		"role":        p.Role,
		"api_key":     p.APIKey,
		"permissions": rbac.Permissions(r.Context()),
	}
	if !p.APIKey {
		user, err := h.store.GetUser(r.Context(), p.UserID)
		if err != nil {
			h.writeStoreError(w, r, "load user", err)
			return
		}
		resp["full_name"] = user.FullName
		resp["last_login_at"] = user.LastLoginAt
	}
	writeJSON(w, http.StatusOK, resp)
}

func kindFrom(r *http.Request) (models.Kind, error) {
	kind := models.Kind(mux.Vars(r)["kind"])
	if !kind.IsValid() {
		return "", fmt.Errorf("%w: unknown content kind %q", store.ErrNotFound, kind)
	}
	return kind, nil
}

// ListEntries returns every entry of a kind, drafts included.
// ?published=true restricts the list to published entries.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	kind, err := kindFrom(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	opts := store.ListOptions{}
	opts.PublishedOnly, _ = strconv.ParseBool(r.URL.Query().Get("published"))
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 {
		opts.Limit = limit
	}

	docs, err := h.store.ListDocuments(r.Context(), kind, opts)
	if err != nil {
		h.writeStoreError(w, r, "list "+string(kind), err)
		return
	}
	entries := make([]models.Entry, 0, len(docs))
	for _, doc := range docs {
		e, err := content.DecodeEntry(doc)
		if err != nil {
			h.writeStoreError(w, r, "decode "+string(kind), err)
			return
		}
		entries = append(entries, e)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"kind":    kind,
		"entries": entries,
		"count":   len(entries),
	})
}

// GetEntry returns one entry by ID
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	kind, err := kindFrom(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	doc, err := h.store.GetDocument(r.Context(), kind, mux.Vars(r)["id"])
	if err != nil {
		h.writeStoreError(w, r, "load entry", err)
		return
	}
	e, err := content.DecodeEntry(doc)
	if err != nil {
		h.writeStoreError(w, r, "decode entry", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// CreateEntry adds an entry. The slug is derived from the title or name
// when omitted.
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	kind, err := kindFrom(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	e, _ := models.NewEntry(kind)
	if err := decodeJSON(w, r, e); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now().UTC()
	m := e.EntryMeta()
	m.ID = uuid.New().String()
	m.CreatedAt = now
	m.UpdatedAt = now
	if err := h.saveEntry(r, e); err != nil {
		h.writeStoreError(w, r, "save entry", err)
		return
	}
	if m.Published {
		h.published(r, e)
	}
	writeJSON(w, http.StatusCreated, e)
}

// UpdateEntry replaces an entry
func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	kind, err := kindFrom(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	id := mux.Vars(r)["id"]
	existing, err := h.store.GetDocument(r.Context(), kind, id)
	if err != nil {
		h.writeStoreError(w, r, "load entry", err)
		return
	}

	e, _ := models.NewEntry(kind)
	if err := decodeJSON(w, r, e); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	m := e.EntryMeta()
	m.ID = id
	m.CreatedAt = existing.CreatedAt
	m.UpdatedAt = time.Now().UTC()
	if err := h.saveEntry(r, e); err != nil {
		h.writeStoreError(w, r, "save entry", err)
		return
	}
	if m.Published && !existing.Published {
		h.published(r, e)
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) saveEntry(r *http.Request, e models.Entry) error {
	models.Normalize(e)
	if err := e.Validate(); err != nil {
		return err
	}
	doc, err := content.EncodeEntry(e)
	if err != nil {
		return err
	}
	if err := h.store.PutDocument(r.Context(), doc); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return fmt.Errorf("%w: slug %q is already used by another %s entry", store.ErrConflict, doc.Slug, doc.Kind)
		}
		return err
	}
	return nil
}

// published announces a newly published entry to webhooks
func (h *Handler) published(r *http.Request, e models.Entry) {
	m := e.EntryMeta()
	h.dispatch(r.Context(), webhook.NewEvent(models.EventContentPublished, map[string]interface{}{
		"kind":  string(e.Kind()),
		"id":    m.ID,
		"slug":  m.Slug,
		"title": e.Label(),
	}))
}

// DeleteEntry removes an entry
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	kind, err := kindFrom(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err := h.store.DeleteDocument(r.Context(), kind, mux.Vars(r)["id"]); err != nil {
		h.writeStoreError(w, r, "delete entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSettings returns every stored setting
func (h *Handler) ListSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.ListSettings(r.Context())
	if err != nil {
		h.writeStoreError(w, r, "list settings", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"settings": settings,
		"status":   h.resolver.Status(r.Context()),
	})
}

// GetSetting returns one setting
func (h *Handler) GetSetting(w http.ResponseWriter, r *http.Request) {
	setting, err := h.store.GetSetting(r.Context(), mux.Vars(r)["key"])
	if err != nil {
		h.writeStoreError(w, r, "load setting", err)
		return
	}
	writeJSON(w, http.StatusOK, setting)
}

// PutSetting stores the request body as the setting value. Typed settings
// must decode into their model and be complete.
func (h *Handler) PutSetting(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(mux.Vars(r)["key"])
	var value json.RawMessage
	if err := decodeJSON(w, r, &value); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateSetting(key, value); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	setting := &models.Setting{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	if err := h.store.PutSetting(r.Context(), setting); err != nil {
		h.writeStoreError(w, r, "save setting", err)
		return
	}
	writeJSON(w, http.StatusOK, setting)
}

// DeleteSetting removes a setting so the bundled default applies again
func (h *Handler) DeleteSetting(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteSetting(r.Context(), mux.Vars(r)["key"]); err != nil {
		h.writeStoreError(w, r, "delete setting", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type completable interface {
	IsComplete() bool
}

func validateSetting(key string, value json.RawMessage) error {
	if key == "" {
		return fmt.Errorf("%w: setting key is required", models.ErrValidation)
	}
	var target completable
	switch key {
	case models.SettingSiteConfig:
		target = &models.SiteConfig{}
	case models.SettingHomePage:
		target = &models.HomePage{}
	case models.SettingAboutPage:
		target = &models.AboutPage{}
	case models.SettingChatSystemPrompt:
		var prompt string
		if err := json.Unmarshal(value, &prompt); err != nil || strings.TrimSpace(prompt) == "" {
			return fmt.Errorf("%w: %s must be a non-empty string", models.ErrValidation, key)
		}
		return nil
	default:
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(value))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("%w: invalid %s: %v", models.ErrValidation, key, err)
	}
	if !target.IsComplete() {
		return fmt.Errorf("%w: %s is missing required fields", models.ErrValidation, key)
	}
	return nil
}
