package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/psantana5/agencysite/pkg/auth"
	"github.com/psantana5/agencysite/pkg/models"
)

func serve(h http.Handler, method string, role models.Role) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/admin/test", nil)
	if role != "" {
		req = req.WithContext(auth.WithUser(req.Context(), "u1", role))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRequirePermission(t *testing.T) {
	h := RequirePermission(models.PermContentWrite)(okHandler)

	tests := []struct {
		role models.Role
		want int
	}{
		{models.RoleAdmin, http.StatusOK},
		{models.RoleEditor, http.StatusOK},
		{models.RoleViewer, http.StatusForbidden},
		{"", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			rr := serve(h, "POST", tt.role)
			assert.Equal(t, tt.want, rr.Code)
			if tt.want == http.StatusForbidden {
				assert.JSONEq(t, `{"error":"forbidden","message":"Insufficient permissions","required":"content:write"}`, rr.Body.String())
				assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			}
		})
	}
}

func TestByMethod(t *testing.T) {
	settings := ByMethod(Scope{Read: models.PermSettingsRead, Write: models.PermSettingsWrite})(okHandler)

	tests := []struct {
		method string
		role   models.Role
		want   int
	}{
		{"GET", models.RoleEditor, http.StatusOK},
		{"PUT", models.RoleEditor, http.StatusForbidden},
		{"DELETE", models.RoleEditor, http.StatusForbidden},
		{"DELETE", models.RoleAdmin, http.StatusOK},
		{"GET", models.RoleViewer, http.StatusForbidden},
		{"OPTIONS", models.RoleAdmin, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.method+"_"+string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.want, serve(settings, tt.method, tt.role).Code)
		})
	}
}

func TestScopeFor(t *testing.T) {
	s := Scope{Read: models.PermContentRead, Write: models.PermContentWrite, Delete: models.PermContentDelete}
	assert.Equal(t, models.PermContentRead, s.For("HEAD"))
	assert.Equal(t, models.PermContentWrite, s.For("PATCH"))
	assert.Equal(t, models.PermContentDelete, s.For("DELETE"))
	assert.Equal(t, models.Permission(""), s.For("TRACE"))
}

func TestCheckPermission(t *testing.T) {
	ctx := auth.WithUser(context.Background(), "u1", models.RoleViewer)
	assert.NoError(t, CheckPermission(ctx, models.PermDashboardRead))

	err := CheckPermission(ctx, models.PermWebhooksManage)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Contains(t, err.Error(), "webhooks:manage")

	assert.ElementsMatch(t,
		[]models.Permission{models.PermContentRead, models.PermLeadsRead, models.PermDashboardRead},
		Permissions(ctx))
	assert.Empty(t, Permissions(context.Background()))
}
