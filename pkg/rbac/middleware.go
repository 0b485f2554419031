// Package rbac gates admin routes on the permissions of the caller's role.
package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/psantana5/agencysite/pkg/auth"
	"github.com/psantana5/agencysite/pkg/models"
)

var ErrPermissionDenied = errors.New("permission denied")

// Scope names the permissions guarding one resource. Write covers POST,
// PUT and PATCH; an empty Delete falls back to Write.
type Scope struct {
	Read   models.Permission
	Write  models.Permission
	Delete models.Permission
}

// For returns the permission a request method needs, or "" when the
// method is not covered by the scope
func (s Scope) For(method string) models.Permission {
	switch method {
	case http.MethodGet, http.MethodHead:
		return s.Read
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return s.Write
	case http.MethodDelete:
		if s.Delete != "" {
			return s.Delete
		}
		return s.Write
	}
	return ""
}

// HasPermission checks if the current user has a specific permission
func HasPermission(ctx context.Context, perm models.Permission) bool {
	role := auth.GetUserRole(ctx)
	return role != "" && perm != "" && role.HasPermission(perm)
}

// CheckPermission returns ErrPermissionDenied naming the missing permission
func CheckPermission(ctx context.Context, perm models.Permission) error {
	if !HasPermission(ctx, perm) {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, perm)
	}
	return nil
}

// Permissions returns every permission of the current user
func Permissions(ctx context.Context) []models.Permission {
	return auth.GetUserRole(ctx).GetPermissions()
}

// RequirePermission rejects callers lacking perm with 403
func RequirePermission(perm models.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !HasPermission(r.Context(), perm) {
				forbidden(w, perm)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ByMethod picks the required permission from the request method
func ByMethod(s Scope) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			perm := s.For(r.Method)
			if !HasPermission(r.Context(), perm) {
				forbidden(w, perm)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func forbidden(w http.ResponseWriter, perm models.Permission) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	json.NewEncoder(w).Encode(map[string]string{
		"error":    "forbidden",
		"message":  "Insufficient permissions",
		"required": string(perm),
	})
}
