package models

import (
	"time"
)

// Role represents an admin user role
type Role string

const (
	RoleAdmin  Role = "admin"  // Full access including users, settings and webhooks
	RoleEditor Role = "editor" // Can manage content and read leads
	RoleViewer Role = "viewer" // Read-only access
)

// Permission represents a specific permission
type Permission string

const (
	// Content permissions
	PermContentRead   Permission = "content:read"
	PermContentWrite  Permission = "content:write"
	PermContentDelete Permission = "content:delete"

	// Settings permissions
	PermSettingsRead  Permission = "settings:read"
	PermSettingsWrite Permission = "settings:write"

	// Leads and newsletter subscribers
	PermLeadsRead   Permission = "leads:read"
	PermLeadsDelete Permission = "leads:delete"

	// Webhook permissions
	PermWebhooksManage Permission = "webhooks:manage"

	// User permissions
	PermUsersManage Permission = "users:manage"

	// Dashboard and system stats
	PermDashboardRead Permission = "dashboard:read"
)

// User represents an admin dashboard user
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // Never expose in JSON
	FullName     string     `json:"full_name"`
	Role         Role       `json:"role"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// UserRequest represents a request to create a user
type UserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}

// RolePermissions maps roles to their permissions
var RolePermissions = map[Role][]Permission{
	RoleAdmin: {
		// All permissions
		PermContentRead, PermContentWrite, PermContentDelete,
		PermSettingsRead, PermSettingsWrite,
		PermLeadsRead, PermLeadsDelete,
		PermWebhooksManage,
		PermUsersManage,
		PermDashboardRead,
	},
	RoleEditor: {
		PermContentRead, PermContentWrite, PermContentDelete,
		PermSettingsRead,
		PermLeadsRead,
		PermDashboardRead,
	},
	RoleViewer: {
		// Read-only access
		PermContentRead,
		PermLeadsRead,
		PermDashboardRead,
	},
}

// HasPermission checks if a role has a specific permission
func (r Role) HasPermission(perm Permission) bool {
	perms, ok := RolePermissions[r]
	if !ok {
		return false
	}

	for _, p := range perms {
		if p == perm {
			return true
		}
	}
	return false
}

// GetPermissions returns all permissions for a role
func (r Role) GetPermissions() []Permission {
	return RolePermissions[r]
}

// IsValid checks if a role is valid
func (r Role) IsValid() bool {
	_, ok := RolePermissions[r]
	return ok
}
