package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/psantana5/agencysite/pkg/models"
)

// UserStore is the subset of the store needed to manage users
type UserStore interface {
	ListUsers(ctx context.Context) ([]*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
}

// NewUser validates a request and builds a user with a hashed password
func NewUser(req models.UserRequest) (*models.User, error) {
	email := models.NormalizeEmail(req.Email)
	if err := models.ValidateEmail(email); err != nil {
		return nil, err
	}
	role := req.Role
	if role == "" {
		role = models.RoleEditor
	}
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role %q", models.ErrValidation, role)
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}

	now := time.Now().UTC()
	return &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		FullName:     req.FullName,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// EnsureAdmin creates an admin user when no users exist yet. It reports
// whether a user was created.
func EnsureAdmin(ctx context.Context, users UserStore, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}
	existing, err := users.ListUsers(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list users: %w", err)
	}
	if len(existing) > 0 {
		return false, nil
	}

	user, err := NewUser(models.UserRequest{
		Email:    email,
		Password: password,
		FullName: "Administrator",
		Role:     models.RoleAdmin,
	})
	if err != nil {
		return false, fmt.Errorf("invalid bootstrap admin: %w", err)
	}
	if err := users.CreateUser(ctx, user); err != nil {
		return false, fmt.Errorf("failed to create bootstrap admin: %w", err)
	}
	return true, nil
}
