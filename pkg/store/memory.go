package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/psantana5/agencysite/pkg/models"
)

// MemoryStore is an in-memory implementation of the data store
type MemoryStore struct {
	docs        map[models.Kind]map[string]*Document
	settings    map[string]*models.Setting
	users       map[string]*models.User
	leads       []*models.Lead
	subscribers map[string]*models.Subscriber
	webhooks    map[string]*models.Webhook
	deliveries  []*models.WebhookDelivery
	mu          sync.RWMutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:        make(map[models.Kind]map[string]*Document),
		settings:    make(map[string]*models.Setting),
		users:       make(map[string]*models.User),
		subscribers: make(map[string]*models.Subscriber),
		webhooks:    make(map[string]*models.Webhook),
	}
}

// Document operations

// ListDocuments returns the documents of kind ordered by sort order then slug
func (s *MemoryStore) ListDocuments(ctx context.Context, kind models.Kind, opts ListOptions) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]*Document, 0, len(s.docs[kind]))
	for _, doc := range s.docs[kind] {
		if opts.PublishedOnly && !doc.Published {
			continue
		}
		cp := *doc
		docs = append(docs, &cp)
	}
	sortDocuments(docs)
	if opts.Limit > 0 && len(docs) > opts.Limit {
		docs = docs[:opts.Limit]
	}
	return docs, nil
}

// GetDocument retrieves a document by ID
func (s *MemoryStore) GetDocument(ctx context.Context, kind models.Kind, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[kind][id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

// GetDocumentBySlug retrieves a document by slug
func (s *MemoryStore) GetDocumentBySlug(ctx context.Context, kind models.Kind, slug string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, doc := range s.docs[kind] {
		if doc.Slug == slug {
			cp := *doc
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// PutDocument inserts or replaces a document
func (s *MemoryStore) PutDocument(ctx context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.docs[doc.Kind]
	if !ok {
		byID = make(map[string]*Document)
		s.docs[doc.Kind] = byID
	}
	for id, other := range byID {
		if id != doc.ID && other.Slug == doc.Slug {
			return ErrConflict
		}
	}
	cp := *doc
	now := time.Now().UTC()
	if existing, ok := byID[doc.ID]; ok {
		cp.CreatedAt = existing.CreatedAt
	} else if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = now
	}
	byID[doc.ID] = &cp
	return nil
}

// DeleteDocument removes a document
func (s *MemoryStore) DeleteDocument(ctx context.Context, kind models.Kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[kind][id]; !ok {
		return ErrNotFound
	}
	delete(s.docs[kind], id)
	return nil
}

// Settings

// GetSetting retrieves a setting by key
func (s *MemoryStore) GetSetting(ctx context.Context, key string) (*models.Setting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	setting, ok := s.settings[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *setting
	return &cp, nil
}

// ListSettings returns all settings ordered by key
func (s *MemoryStore) ListSettings(ctx context.Context) ([]*models.Setting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings := make([]*models.Setting, 0, len(s.settings))
	for _, setting := range s.settings {
		cp := *setting
		settings = append(settings, &cp)
	}
	sort.Slice(settings, func(i, j int) bool { return settings[i].Key < settings[j].Key })
	return settings, nil
}

// PutSetting inserts or replaces a setting
func (s *MemoryStore) PutSetting(ctx context.Context, setting *models.Setting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *setting
	s.settings[setting.Key] = &cp
	return nil
}

// DeleteSetting removes a setting
func (s *MemoryStore) DeleteSetting(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.settings[key]; !ok {
		return ErrNotFound
	}
	delete(s.settings, key)
	return nil
}

// Users

// CreateUser adds a user; emails are unique
func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == user.Email {
			return ErrDuplicate
		}
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

// GetUser retrieves a user by ID
func (s *MemoryStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *user
	return &cp, nil
}

// GetUserByEmail retrieves a user by email
func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Email == email {
			cp := *user
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// ListUsers returns all users ordered by email
func (s *MemoryStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*models.User, 0, len(s.users))
	for _, user := range s.users {
		cp := *user
		users = append(users, &cp)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	return users, nil
}

// UpdateUser replaces a user
func (s *MemoryStore) UpdateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return ErrNotFound
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

// DeleteUser removes a user
func (s *MemoryStore) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.users, id)
	return nil
}

// Leads and newsletter

// CreateLead stores a lead
func (s *MemoryStore) CreateLead(ctx context.Context, lead *models.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *lead
	s.leads = append(s.leads, &cp)
	return nil
}

// ListLeads returns the newest leads first
func (s *MemoryStore) ListLeads(ctx context.Context, limit int) ([]*models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit = leadLimit(limit)
	leads := make([]*models.Lead, 0, limit)
	for i := len(s.leads) - 1; i >= 0 && len(leads) < limit; i-- {
		cp := *s.leads[i]
		leads = append(leads, &cp)
	}
	return leads, nil
}

// AddSubscriber stores a subscriber; returns ErrDuplicate for a known email
func (s *MemoryStore) AddSubscriber(ctx context.Context, sub *models.Subscriber) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subscribers[sub.Email]; ok {
		return ErrDuplicate
	}
	cp := *sub
	s.subscribers[sub.Email] = &cp
	return nil
}

// ListSubscribers returns subscribers oldest first
func (s *MemoryStore) ListSubscribers(ctx context.Context) ([]*models.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subs := make([]*models.Subscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		cp := *sub
		subs = append(subs, &cp)
	}
	sort.Slice(subs, func(i, j int) bool {
		if subs[i].CreatedAt.Equal(subs[j].CreatedAt) {
			return subs[i].Email < subs[j].Email
		}
		return subs[i].CreatedAt.Before(subs[j].CreatedAt)
	})
	return subs, nil
}

// RemoveSubscriber deletes a subscriber by email
func (s *MemoryStore) RemoveSubscriber(ctx context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subscribers[email]; !ok {
		return ErrNotFound
	}
	delete(s.subscribers, email)
	return nil
}

// Webhooks

// CreateWebhook stores a webhook
func (s *MemoryStore) CreateWebhook(ctx context.Context, hook *models.Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.webhooks[hook.ID]; ok {
		return ErrDuplicate
	}
	cp := *hook
	s.webhooks[hook.ID] = &cp
	return nil
}

// GetWebhook retrieves a webhook by ID
func (s *MemoryStore) GetWebhook(ctx context.Context, id string) (*models.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hook, ok := s.webhooks[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *hook
	return &cp, nil
}

// ListWebhooks returns all webhooks ordered by creation time
func (s *MemoryStore) ListWebhooks(ctx context.Context) ([]*models.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hooks := make([]*models.Webhook, 0, len(s.webhooks))
	for _, hook := range s.webhooks {
		cp := *hook
		hooks = append(hooks, &cp)
	}
	sort.Slice(hooks, func(i, j int) bool { return hooks[i].CreatedAt.Before(hooks[j].CreatedAt) })
	return hooks, nil
}

// UpdateWebhook replaces a webhook
func (s *MemoryStore) UpdateWebhook(ctx context.Context, hook *models.Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.webhooks[hook.ID]; !ok {
		return ErrNotFound
	}
	cp := *hook
	s.webhooks[hook.ID] = &cp
	return nil
}

// DeleteWebhook removes a webhook and its delivery log
func (s *MemoryStore) DeleteWebhook(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.webhooks[id]; !ok {
		return ErrNotFound
	}
	delete(s.webhooks, id)
	kept := s.deliveries[:0]
	for _, d := range s.deliveries {
		if d.WebhookID != id {
			kept = append(kept, d)
		}
	}
	s.deliveries = kept
	return nil
}

// RecordDelivery appends a delivery to the log
func (s *MemoryStore) RecordDelivery(ctx context.Context, delivery *models.WebhookDelivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *delivery
	s.deliveries = append(s.deliveries, &cp)
	return nil
}

// ListDeliveries returns the newest deliveries of a webhook first
func (s *MemoryStore) ListDeliveries(ctx context.Context, webhookID string, limit int) ([]*models.WebhookDelivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit = leadLimit(limit)
	out := make([]*models.WebhookDelivery, 0)
	for i := len(s.deliveries) - 1; i >= 0 && len(out) < limit; i-- {
		if s.deliveries[i].WebhookID == webhookID {
			cp := *s.deliveries[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Lifecycle

// Close is a no-op for the memory store
func (s *MemoryStore) Close() error {
	return nil
}

// HealthCheck always succeeds for the memory store
func (s *MemoryStore) HealthCheck(ctx context.Context) error {
	return ctx.Err()
}

// Stats returns aggregate counts
func (s *MemoryStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{
		DocumentsByKind: make(map[models.Kind]int),
		PublishedByKind: make(map[models.Kind]int),
		Leads:           len(s.leads),
		Subscribers:     len(s.subscribers),
		Users:           len(s.users),
		Webhooks:        len(s.webhooks),
	}
	for kind, byID := range s.docs {
		stats.DocumentsByKind[kind] = len(byID)
		for _, doc := range byID {
			if doc.Published {
				stats.PublishedByKind[kind]++
			}
		}
	}
	cutoff := time.Now().AddDate(0, 0, -30)
	for _, lead := range s.leads {
		if lead.CreatedAt.After(cutoff) {
			stats.LeadsLast30Days++
		}
	}
	for _, d := range s.deliveries {
		if d.Status == models.DeliveryFailed {
			stats.FailedDeliveries++
		}
	}
	return stats, nil
}

func sortDocuments(docs []*Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].SortOrder != docs[j].SortOrder {
			return docs[i].SortOrder < docs[j].SortOrder
		}
		return docs[i].Slug < docs[j].Slug
	})
}
