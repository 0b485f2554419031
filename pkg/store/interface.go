package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/psantana5/agencysite/pkg/models"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrDuplicate           = errors.New("duplicate")
	ErrUnsupportedDatabase = errors.New("unsupported database type")
)

// Document is the persisted form of a content entry. Data holds the full
// JSON encoding of the entry; the other columns exist for querying.
type Document struct {
	Kind      models.Kind     `json:"kind"`
	ID        string          `json:"id"`
	Slug      string          `json:"slug"`
	Published bool            `json:"published"`
	SortOrder int             `json:"sort_order"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ListOptions filters document listings
type ListOptions struct {
	PublishedOnly bool
	Limit         int
}

// Store defines the interface for data persistence
// Memory, SQLite and PostgreSQL implement this interface
type Store interface {
	// Content documents
	ListDocuments(ctx context.Context, kind models.Kind, opts ListOptions) ([]*Document, error)
	GetDocument(ctx context.Context, kind models.Kind, id string) (*Document, error)
	GetDocumentBySlug(ctx context.Context, kind models.Kind, slug string) (*Document, error)
	PutDocument(ctx context.Context, doc *Document) error
	DeleteDocument(ctx context.Context, kind models.Kind, id string) error

	// Settings
	GetSetting(ctx context.Context, key string) (*models.Setting, error)
	ListSettings(ctx context.Context) ([]*models.Setting, error)
	PutSetting(ctx context.Context, setting *models.Setting) error
	DeleteSetting(ctx context.Context, key string) error

	// Admin users
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id string) error

	// Leads and newsletter
	CreateLead(ctx context.Context, lead *models.Lead) error
	ListLeads(ctx context.Context, limit int) ([]*models.Lead, error)
	AddSubscriber(ctx context.Context, sub *models.Subscriber) error
	ListSubscribers(ctx context.Context) ([]*models.Subscriber, error)
	RemoveSubscriber(ctx context.Context, email string) error

	// Webhooks
	CreateWebhook(ctx context.Context, hook *models.Webhook) error
	GetWebhook(ctx context.Context, id string) (*models.Webhook, error)
	ListWebhooks(ctx context.Context) ([]*models.Webhook, error)
	UpdateWebhook(ctx context.Context, hook *models.Webhook) error
	DeleteWebhook(ctx context.Context, id string) error
	RecordDelivery(ctx context.Context, delivery *models.WebhookDelivery) error
	ListDeliveries(ctx context.Context, webhookID string, limit int) ([]*models.WebhookDelivery, error)

	// Lifecycle
	Close() error
	HealthCheck(ctx context.Context) error

	// Stats returns aggregate counts for the dashboard and metrics
	Stats(ctx context.Context) (*Stats, error)
}

// Stats contains aggregated counts
type Stats struct {
	DocumentsByKind  map[models.Kind]int `json:"documents_by_kind"`
	PublishedByKind  map[models.Kind]int `json:"published_by_kind"`
	Leads            int                 `json:"leads"`
	LeadsLast30Days  int                 `json:"leads_last_30_days"`
	Subscribers      int                 `json:"subscribers"`
	Users            int                 `json:"users"`
	Webhooks         int                 `json:"webhooks"`
	FailedDeliveries int                 `json:"failed_deliveries"`
}

// Config holds database configuration
type Config struct {
	Type string // "memory", "sqlite" or "postgres"
	DSN  string // Connection string

	// PostgreSQL specific
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// SQLite specific
	Path string
}

// NewStore creates a store based on configuration
func NewStore(config Config) (Store, error) {
	switch config.Type {
	case "postgres", "postgresql":
		return NewPostgreSQLStore(config)
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite", "":
		path := config.Path
		if path == "" {
			path = config.DSN
		}
		if path == "" {
			path = "site.db"
		}
		return NewSQLiteStore(path)
	default:
		return nil, ErrUnsupportedDatabase
	}
}

const defaultLeadLimit = 100

func leadLimit(limit int) int {
	if limit <= 0 {
		return defaultLeadLimit
	}
	return limit
}
