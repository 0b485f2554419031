package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/psantana5/agencysite/pkg/auth"
	"github.com/psantana5/agencysite/pkg/calculator"
	"github.com/psantana5/agencysite/pkg/chat"
	"github.com/psantana5/agencysite/pkg/content"
	"github.com/psantana5/agencysite/pkg/models"
	"github.com/psantana5/agencysite/pkg/store"
	"github.com/psantana5/agencysite/pkg/tracing"
)

// maxBodyBytes bounds every JSON request body
const maxBodyBytes = 1 << 20

// SourceHeader names the content source a response was served from
const SourceHeader = tracing.ContentSourceHeader

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeContent(w http.ResponseWriter, src content.Source, v interface{}) {
	w.Header().Set(SourceHeader, string(src))
	writeJSON(w, http.StatusOK, v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a bounded JSON body into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", models.ErrValidation)
		}
		return fmt.Errorf("%w: invalid request body: %v", models.ErrValidation, err)
	}
	return nil
}

// statusFor maps package sentinel errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, calculator.ErrUnknownPreset),
		errors.Is(err, chat.ErrInvalidConversation):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound), errors.Is(err, content.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, chat.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, chat.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeStoreError writes err with its mapped status. Internal errors are
// logged and replaced by a generic message.
func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, action string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", map[string]interface{}{
			"action": action,
			"path":   r.URL.Path,
			"error":  err.Error(),
		})
		writeError(w, status, "Failed to "+action)
		return
	}
	writeError(w, status, err.Error())
}
