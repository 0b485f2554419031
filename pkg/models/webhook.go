package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Event types emitted by the site
const (
	EventLeadCreated          = "lead.created"
	EventNewsletterSubscribed = "newsletter.subscribed"
	EventContentPublished     = "content.published"
	EventWebhookTest          = "webhook.test"
	EventAny                  = "*"
)

// KnownEvents lists the event types a webhook may subscribe to
var KnownEvents = []string{
	EventLeadCreated, EventNewsletterSubscribed, EventContentPublished, EventWebhookTest, EventAny,
}

// Event is something that happened on the site and may be forwarded to webhooks
type Event struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// Webhook is an outbound HTTP endpoint registered by an admin
type Webhook struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Events    []string  `json:"events"`
	Filter    string    `json:"filter,omitempty"` // expr expression evaluated against the event
	Secret    string    `json:"secret,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Subscribes reports whether the webhook listens for eventType
func (w *Webhook) Subscribes(eventType string) bool {
	for _, e := range w.Events {
		if e == EventAny || e == eventType {
			return true
		}
	}
	return false
}

// Validate checks the webhook URL and event list
func (w *Webhook) Validate() error {
	w.Name = strings.TrimSpace(w.Name)
	if w.Name == "" {
		return fmt.Errorf("%w: webhook name is required", ErrValidation)
	}
	u, err := url.Parse(w.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: webhook url must be an absolute http(s) URL", ErrValidation)
	}
	if len(w.Events) == 0 {
		return fmt.Errorf("%w: webhook must subscribe to at least one event", ErrValidation)
	}
	for _, e := range w.Events {
		if !isKnownEvent(e) {
			return fmt.Errorf("%w: unknown event %q", ErrValidation, e)
		}
	}
	return nil
}

func isKnownEvent(e string) bool {
	for _, k := range KnownEvents {
		if k == e {
			return true
		}
	}
	return false
}

// DeliveryStatus is the outcome of a webhook delivery
type DeliveryStatus string

const (
	DeliverySucceeded DeliveryStatus = "succeeded"
	DeliveryFailed    DeliveryStatus = "failed"
	DeliverySkipped   DeliveryStatus = "skipped"
)

// WebhookDelivery records one dispatch of an event to a webhook
type WebhookDelivery struct {
	ID          string         `json:"id"`
	WebhookID   string         `json:"webhook_id"`
	EventID     string         `json:"event_id"`
	EventType   string         `json:"event_type"`
	Status      DeliveryStatus `json:"status"`
	StatusCode  int            `json:"status_code,omitempty"`
	Attempts    int            `json:"attempts"`
	Error       string         `json:"error,omitempty"`
	DurationMs  int64          `json:"duration_ms"`
	DeliveredAt time.Time      `json:"delivered_at"`
}
