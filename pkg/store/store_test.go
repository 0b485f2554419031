package store

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psantana5/agencysite/pkg/models"
)

// testStoreContract exercises behaviour every Store implementation shares
func testStoreContract(t *testing.T, s Store) {
	t.Run("Documents", func(t *testing.T) { testDocuments(t, s) })
	t.Run("Settings", func(t *testing.T) { testSettings(t, s) })
	t.Run("Users", func(t *testing.T) { testUsers(t, s) })
	t.Run("LeadsAndSubscribers", func(t *testing.T) { testLeadsAndSubscribers(t, s) })
	t.Run("Webhooks", func(t *testing.T) { testWebhooks(t, s) })
	t.Run("Stats", func(t *testing.T) { testStats(t, s) })
}

func putDoc(t *testing.T, s Store, kind models.Kind, id, slug string, order int, published bool) {
	t.Helper()
	err := s.PutDocument(context.Background(), &Document{
		Kind:      kind,
		ID:        id,
		Slug:      slug,
		Published: published,
		SortOrder: order,
		Data:      json.RawMessage(fmt.Sprintf(`{"id":%q,"slug":%q}`, id, slug)),
	})
	require.NoError(t, err)
}

func testDocuments(t *testing.T, s Store) {
	ctx := context.Background()

	putDoc(t, s, models.KindService, "svc-b", "beta", 2, true)
	putDoc(t, s, models.KindService, "svc-a", "alpha", 1, true)
	putDoc(t, s, models.KindService, "svc-c", "gamma", 1, false)

	all, err := s.ListDocuments(ctx, models.KindService, ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"alpha", "gamma", "beta"}, []string{all[0].Slug, all[1].Slug, all[2].Slug})

	published, err := s.ListDocuments(ctx, models.KindService, ListOptions{PublishedOnly: true})
	require.NoError(t, err)
	assert.Len(t, published, 2)

	limited, err := s.ListDocuments(ctx, models.KindService, ListOptions{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "alpha", limited[0].Slug)

	doc, err := s.GetDocumentBySlug(ctx, models.KindService, "beta")
	require.NoError(t, err)
	assert.Equal(t, "svc-b", doc.ID)
	assert.JSONEq(t, `{"id":"svc-b","slug":"beta"}`, string(doc.Data))
	created := doc.CreatedAt

	// Upsert keeps created_at and replaces the rest
	putDoc(t, s, models.KindService, "svc-b", "beta-renamed", 5, false)
	doc, err = s.GetDocument(ctx, models.KindService, "svc-b")
	require.NoError(t, err)
	assert.Equal(t, "beta-renamed", doc.Slug)
	assert.False(t, doc.Published)
	assert.WithinDuration(t, created, doc.CreatedAt, time.Millisecond)

	// Slugs are unique within a kind
	err = s.PutDocument(ctx, &Document{Kind: models.KindService, ID: "svc-d", Slug: "alpha", Data: json.RawMessage(`{}`)})
	assert.ErrorIs(t, err, ErrConflict)

	// but not across kinds
	putDoc(t, s, models.KindFAQ, "faq-a", "alpha", 0, true)

	_, err = s.GetDocument(ctx, models.KindPost, "svc-a")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.DeleteDocument(ctx, models.KindService, "svc-c"))
	assert.ErrorIs(t, s.DeleteDocument(ctx, models.KindService, "svc-c"), ErrNotFound)

	empty, err := s.ListDocuments(ctx, models.KindPost, ListOptions{})
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func testSettings(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.GetSetting(ctx, models.SettingSiteConfig)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.PutSetting(ctx, &models.Setting{
		Key: models.SettingSiteConfig, Value: json.RawMessage(`{"name":"Acme"}`), UpdatedAt: time.Now().UTC(),
	}))
	require.NoError(t, s.PutSetting(ctx, &models.Setting{
		Key: models.SettingSiteConfig, Value: json.RawMessage(`{"name":"Acme Automation"}`), UpdatedAt: time.Now().UTC(),
	}))
	require.NoError(t, s.PutSetting(ctx, &models.Setting{
		Key: models.SettingAboutPage, Value: json.RawMessage(`{"headline":"Hi"}`), UpdatedAt: time.Now().UTC(),
	}))

	setting, err := s.GetSetting(ctx, models.SettingSiteConfig)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Acme Automation"}`, string(setting.Value))

	all, err := s.ListSettings(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, models.SettingAboutPage, all[0].Key)

	require.NoError(t, s.DeleteSetting(ctx, models.SettingAboutPage))
	assert.ErrorIs(t, s.DeleteSetting(ctx, models.SettingAboutPage), ErrNotFound)
}

func testUsers(t *testing.T, s Store) {
	ctx := context.Background()
	now := time.Now().UTC()

	user := &models.User{
		ID: "u1", Email: "ada@example.com", PasswordHash: "hash", FullName: "Ada",
		Role: models.RoleEditor, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.CreateUser(ctx, user))

	dup := *user
	dup.ID = "u2"
	assert.ErrorIs(t, s.CreateUser(ctx, &dup), ErrDuplicate)

	got, err := s.GetUserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleEditor, got.Role)
	assert.Nil(t, got.LastLoginAt)

	login := now.Add(time.Minute)
	got.LastLoginAt = &login
	got.Role = models.RoleAdmin
	require.NoError(t, s.UpdateUser(ctx, got))

	got, err = s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, got.Role)
	require.NotNil(t, got.LastLoginAt)
	assert.WithinDuration(t, login, *got.LastLoginAt, time.Millisecond)

	missing := &models.User{ID: "nope", Email: "x@example.com"}
	assert.ErrorIs(t, s.UpdateUser(ctx, missing), ErrNotFound)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	require.NoError(t, s.DeleteUser(ctx, "u1"))
	_, err = s.GetUser(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func testLeadsAndSubscribers(t *testing.T, s Store) {
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.CreateLead(ctx, &models.Lead{
			ID:        fmt.Sprintf("lead-%d", i),
			Name:      "Lead",
			Email:     fmt.Sprintf("lead%d@example.com", i),
			Tasks:     []string{"data-entry"},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	leads, err := s.ListLeads(ctx, 2)
	require.NoError(t, err)
	require.Len(t, leads, 2)
	assert.Equal(t, "lead-2", leads[0].ID)
	assert.Equal(t, []string{"data-entry"}, leads[0].Tasks)

	sub := &models.Subscriber{Email: "news@example.com", Source: "footer", CreatedAt: base}
	require.NoError(t, s.AddSubscriber(ctx, sub))
	assert.ErrorIs(t, s.AddSubscriber(ctx, sub), ErrDuplicate)
	require.NoError(t, s.AddSubscriber(ctx, &models.Subscriber{Email: "later@example.com", CreatedAt: base.Add(time.Minute)}))

	subs, err := s.ListSubscribers(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "news@example.com", subs[0].Email)

	require.NoError(t, s.RemoveSubscriber(ctx, "later@example.com"))
	assert.ErrorIs(t, s.RemoveSubscriber(ctx, "later@example.com"), ErrNotFound)
}

func testWebhooks(t *testing.T, s Store) {
	ctx := context.Background()
	now := time.Now().UTC()

	hook := &models.Webhook{
		ID: "wh1", Name: "CRM", URL: "https://crm.example.com/hook",
		Events: []string{models.EventLeadCreated}, Filter: `data.budget != ""`,
		Secret: "s3cret", Active: true, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.CreateWebhook(ctx, hook))

	got, err := s.GetWebhook(ctx, "wh1")
	require.NoError(t, err)
	assert.Equal(t, hook.Events, got.Events)
	assert.Equal(t, hook.Filter, got.Filter)

	got.Active = false
	require.NoError(t, s.UpdateWebhook(ctx, got))
	got, err = s.GetWebhook(ctx, "wh1")
	require.NoError(t, err)
	assert.False(t, got.Active)

	for i, status := range []models.DeliveryStatus{models.DeliverySucceeded, models.DeliveryFailed} {
		require.NoError(t, s.RecordDelivery(ctx, &models.WebhookDelivery{
			ID: fmt.Sprintf("d%d", i), WebhookID: "wh1", EventID: "ev", EventType: models.EventLeadCreated,
			Status: status, Attempts: 1, DeliveredAt: now.Add(time.Duration(i) * time.Second),
		}))
	}

	deliveries, err := s.ListDeliveries(ctx, "wh1", 10)
	require.NoError(t, err)
	require.Len(t, deliveries, 2)
	assert.Equal(t, models.DeliveryFailed, deliveries[0].Status)

	hooks, err := s.ListWebhooks(ctx)
	require.NoError(t, err)
	assert.Len(t, hooks, 1)
}

func testStats(t *testing.T, s Store) {
	ctx := context.Background()

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.DocumentsByKind[models.KindService])
	assert.Equal(t, 1, stats.PublishedByKind[models.KindService])
	assert.Equal(t, 3, stats.Leads)
	assert.Equal(t, 3, stats.LeadsLast30Days)
	assert.Equal(t, 1, stats.Subscribers)
	assert.Equal(t, 0, stats.Users)
	assert.Equal(t, 1, stats.Webhooks)
	assert.Equal(t, 1, stats.FailedDeliveries)

	require.NoError(t, s.DeleteWebhook(ctx, "wh1"))
	deliveries, err := s.ListDeliveries(ctx, "wh1", 10)
	require.NoError(t, err)
	assert.Empty(t, deliveries)
	require.NoError(t, s.HealthCheck(ctx))
}

func TestNewStoreUnsupported(t *testing.T) {
	_, err := NewStore(Config{Type: "mongo"})
	assert.ErrorIs(t, err, ErrUnsupportedDatabase)
}

func TestRebind(t *testing.T) {
	s := &sqlStore{dollar: true}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", s.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))

	s.dollar = false
	assert.Equal(t, "a = ?", s.rebind("a = ?"))
}
