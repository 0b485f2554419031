package models

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// Lead is a submission of the free automation audit form
type Lead struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Company   string    `json:"company,omitempty"`
	Website   string    `json:"website,omitempty"`
	Message   string    `json:"message,omitempty"`
	Tasks     []string  `json:"tasks,omitempty"`
	Budget    string    `json:"budget,omitempty"`
	Source    string    `json:"source,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// LeadRequest is the public form payload
type LeadRequest struct {
	Name    string   `json:"name"`
	Email   string   `json:"email"`
	Company string   `json:"company,omitempty"`
	Website string   `json:"website,omitempty"`
	Message string   `json:"message,omitempty"`
	Tasks   []string `json:"tasks,omitempty"`
	Budget  string   `json:"budget,omitempty"`
	Source  string   `json:"source,omitempty"`
}

const maxLeadMessage = 5000

// Validate trims the request and checks required fields
func (r *LeadRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = NormalizeEmail(r.Email)
	r.Message = strings.TrimSpace(r.Message)
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if err := ValidateEmail(r.Email); err != nil {
		return err
	}
	if len(r.Message) > maxLeadMessage {
		return fmt.Errorf("%w: message exceeds %d characters", ErrValidation, maxLeadMessage)
	}
	return nil
}

// Subscriber is a newsletter signup
type Subscriber struct {
	Email     string    `json:"email"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizeEmail trims and lowercases an address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that email is a bare address
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return fmt.Errorf("%w: invalid email %q", ErrValidation, email)
	}
	return nil
}
