package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/psantana5/agencysite/pkg/models"
)

// sqlStore holds the queries shared by the SQLite and PostgreSQL stores.
// Queries are written with '?' placeholders and rebound for PostgreSQL.
type sqlStore struct {
	db       *sql.DB
	dollar   bool
	isUnique func(error) bool
}

// rebind rewrites '?' placeholders as $1, $2, ... when needed
func (s *sqlStore) rebind(query string) string {
	if !s.dollar {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *sqlStore) query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

func (s *sqlStore) queryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

// execOne runs a write that must affect exactly one row
func (s *sqlStore) execOne(ctx context.Context, query string, args ...interface{}) error {
	result, err := s.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Document operations

const documentColumns = `kind, id, slug, published, sort_order, data, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var doc Document
	var kind string
	var data []byte
	if err := row.Scan(&kind, &doc.ID, &doc.Slug, &doc.Published, &doc.SortOrder, &data,
		&doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	doc.Kind = models.Kind(kind)
	doc.Data = json.RawMessage(data)
	return &doc, nil
}

// ListDocuments returns the documents of kind ordered by sort order then slug
func (s *sqlStore) ListDocuments(ctx context.Context, kind models.Kind, opts ListOptions) ([]*Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE kind = ?`
	args := []interface{}{string(kind)}
	if opts.PublishedOnly {
		q += ` AND published = ?`
		args = append(args, true)
	}
	q += ` ORDER BY sort_order, slug`
	if opts.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", kind, err)
	}
	defer rows.Close()

	docs := make([]*Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", kind, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// GetDocument retrieves a document by ID
func (s *sqlStore) GetDocument(ctx context.Context, kind models.Kind, id string) (*Document, error) {
	doc, err := scanDocument(s.queryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE kind = ? AND id = ?`, string(kind), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return doc, err
}

// GetDocumentBySlug retrieves a document by slug
func (s *sqlStore) GetDocumentBySlug(ctx context.Context, kind models.Kind, slug string) (*Document, error) {
	doc, err := scanDocument(s.queryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE kind = ? AND slug = ?`, string(kind), slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return doc, err
}

// PutDocument inserts or replaces a document, keeping the original created_at
func (s *sqlStore) PutDocument(ctx context.Context, doc *Document) error {
	now := time.Now().UTC()
	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := doc.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}

	_, err := s.exec(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (kind, id) DO UPDATE SET
			slug = excluded.slug,
			published = excluded.published,
			sort_order = excluded.sort_order,
			data = excluded.data,
			updated_at = excluded.updated_at
	`, string(doc.Kind), doc.ID, doc.Slug, doc.Published, doc.SortOrder, string(doc.Data),
		createdAt, updatedAt)
	if err != nil && s.isUnique(err) {
		return ErrConflict
	}
	return err
}

// DeleteDocument removes a document
func (s *sqlStore) DeleteDocument(ctx context.Context, kind models.Kind, id string) error {
	return s.execOne(ctx, `DELETE FROM documents WHERE kind = ? AND id = ?`, string(kind), id)
}

// Settings

// GetSetting retrieves a setting by key
func (s *sqlStore) GetSetting(ctx context.Context, key string) (*models.Setting, error) {
	var setting models.Setting
	var value []byte
	err := s.queryRow(ctx, `SELECT key, value, updated_at FROM settings WHERE key = ?`, key).
		Scan(&setting.Key, &value, &setting.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	setting.Value = json.RawMessage(value)
	return &setting, nil
}

// ListSettings returns all settings ordered by key
func (s *sqlStore) ListSettings(ctx context.Context) ([]*models.Setting, error) {
	rows, err := s.query(ctx, `SELECT key, value, updated_at FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	settings := make([]*models.Setting, 0)
	for rows.Next() {
		var setting models.Setting
		var value []byte
		if err := rows.Scan(&setting.Key, &value, &setting.UpdatedAt); err != nil {
			return nil, err
		}
		setting.Value = json.RawMessage(value)
		settings = append(settings, &setting)
	}
	return settings, rows.Err()
}

// PutSetting inserts or replaces a setting
func (s *sqlStore) PutSetting(ctx context.Context, setting *models.Setting) error {
	updatedAt := setting.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err := s.exec(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, setting.Key, string(setting.Value), updatedAt)
	return err
}

// DeleteSetting removes a setting
func (s *sqlStore) DeleteSetting(ctx context.Context, key string) error {
	return s.execOne(ctx, `DELETE FROM settings WHERE key = ?`, key)
}

// Users

const userColumns = `id, email, password_hash, full_name, role, last_login_at, created_at, updated_at`

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	var role string
	var lastLogin sql.NullTime
	if err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.FullName, &role,
		&lastLogin, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	user.Role = models.Role(role)
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLoginAt = &t
	}
	return &user, nil
}

// CreateUser adds a user; emails are unique
func (s *sqlStore) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.exec(ctx, `INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.PasswordHash, user.FullName, string(user.Role),
		nullTime(user.LastLoginAt), user.CreatedAt, user.UpdatedAt)
	if err != nil && s.isUnique(err) {
		return ErrDuplicate
	}
	return err
}

// GetUser retrieves a user by ID
func (s *sqlStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := scanUser(s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return user, err
}

// GetUserByEmail retrieves a user by email
func (s *sqlStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := scanUser(s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return user, err
}

// ListUsers returns all users ordered by email
func (s *sqlStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := s.query(ctx, `SELECT `+userColumns+` FROM users ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// UpdateUser replaces a user
func (s *sqlStore) UpdateUser(ctx context.Context, user *models.User) error {
	return s.execOne(ctx, `
		UPDATE users SET email = ?, password_hash = ?, full_name = ?, role = ?,
			last_login_at = ?, updated_at = ?
		WHERE id = ?
	`, user.Email, user.PasswordHash, user.FullName, string(user.Role),
		nullTime(user.LastLoginAt), user.UpdatedAt, user.ID)
}

// DeleteUser removes a user
func (s *sqlStore) DeleteUser(ctx context.Context, id string) error {
	return s.execOne(ctx, `DELETE FROM users WHERE id = ?`, id)
}

// Leads and newsletter

// CreateLead stores a lead
func (s *sqlStore) CreateLead(ctx context.Context, lead *models.Lead) error {
	tasks, err := json.Marshal(lead.Tasks)
	if err != nil {
		return fmt.Errorf("failed to marshal tasks: %w", err)
	}
	_, err = s.exec(ctx, `
		INSERT INTO leads (id, name, email, company, website, message, tasks, budget, source,
			ip_address, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, lead.ID, lead.Name, lead.Email, lead.Company, lead.Website, lead.Message, string(tasks),
		lead.Budget, lead.Source, lead.IPAddress, lead.CreatedAt)
	return err
}

// ListLeads returns the newest leads first
func (s *sqlStore) ListLeads(ctx context.Context, limit int) ([]*models.Lead, error) {
	rows, err := s.query(ctx, `
		SELECT id, name, email, company, website, message, tasks, budget, source, ip_address, created_at
		FROM leads ORDER BY created_at DESC, id DESC LIMIT ?
	`, leadLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	leads := make([]*models.Lead, 0)
	for rows.Next() {
		var lead models.Lead
		var tasks string
		if err := rows.Scan(&lead.ID, &lead.Name, &lead.Email, &lead.Company, &lead.Website,
			&lead.Message, &tasks, &lead.Budget, &lead.Source, &lead.IPAddress, &lead.CreatedAt); err != nil {
			return nil, err
		}
		if tasks != "" && tasks != "null" {
			if err := json.Unmarshal([]byte(tasks), &lead.Tasks); err != nil {
				return nil, fmt.Errorf("failed to unmarshal tasks: %w", err)
			}
		}
		leads = append(leads, &lead)
	}
	return leads, rows.Err()
}

// AddSubscriber stores a subscriber; returns ErrDuplicate for a known email
func (s *sqlStore) AddSubscriber(ctx context.Context, sub *models.Subscriber) error {
	_, err := s.exec(ctx, `INSERT INTO subscribers (email, source, created_at) VALUES (?, ?, ?)`,
		sub.Email, sub.Source, sub.CreatedAt)
	if err != nil && s.isUnique(err) {
		return ErrDuplicate
	}
	return err
}

// ListSubscribers returns subscribers oldest first
func (s *sqlStore) ListSubscribers(ctx context.Context) ([]*models.Subscriber, error) {
	rows, err := s.query(ctx, `SELECT email, source, created_at FROM subscribers ORDER BY created_at, email`)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	defer rows.Close()

	subs := make([]*models.Subscriber, 0)
	for rows.Next() {
		var sub models.Subscriber
		if err := rows.Scan(&sub.Email, &sub.Source, &sub.CreatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, &sub)
	}
	return subs, rows.Err()
}

// RemoveSubscriber deletes a subscriber by email
func (s *sqlStore) RemoveSubscriber(ctx context.Context, email string) error {
	return s.execOne(ctx, `DELETE FROM subscribers WHERE email = ?`, email)
}

// Webhooks

const webhookColumns = `id, name, url, events, filter_expr, secret, active, created_at, updated_at`

func scanWebhook(row rowScanner) (*models.Webhook, error) {
	var hook models.Webhook
	var events string
	if err := row.Scan(&hook.ID, &hook.Name, &hook.URL, &events, &hook.Filter, &hook.Secret,
		&hook.Active, &hook.CreatedAt, &hook.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(events), &hook.Events); err != nil {
		return nil, fmt.Errorf("failed to unmarshal events: %w", err)
	}
	return &hook, nil
}

// CreateWebhook stores a webhook
func (s *sqlStore) CreateWebhook(ctx context.Context, hook *models.Webhook) error {
	events, err := json.Marshal(hook.Events)
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}
	_, err = s.exec(ctx, `INSERT INTO webhooks (`+webhookColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		hook.ID, hook.Name, hook.URL, string(events), hook.Filter, hook.Secret, hook.Active,
		hook.CreatedAt, hook.UpdatedAt)
	if err != nil && s.isUnique(err) {
		return ErrDuplicate
	}
	return err
}

// GetWebhook retrieves a webhook by ID
func (s *sqlStore) GetWebhook(ctx context.Context, id string) (*models.Webhook, error) {
	hook, err := scanWebhook(s.queryRow(ctx, `SELECT `+webhookColumns+` FROM webhooks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return hook, err
}

// ListWebhooks returns all webhooks ordered by creation time
func (s *sqlStore) ListWebhooks(ctx context.Context) ([]*models.Webhook, error) {
	rows, err := s.query(ctx, `SELECT `+webhookColumns+` FROM webhooks ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	defer rows.Close()

	hooks := make([]*models.Webhook, 0)
	for rows.Next() {
		hook, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		hooks = append(hooks, hook)
	}
	return hooks, rows.Err()
}

// UpdateWebhook replaces a webhook
func (s *sqlStore) UpdateWebhook(ctx context.Context, hook *models.Webhook) error {
	events, err := json.Marshal(hook.Events)
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}
	return s.execOne(ctx, `
		UPDATE webhooks SET name = ?, url = ?, events = ?, filter_expr = ?, secret = ?, active = ?,
			updated_at = ?
		WHERE id = ?
	`, hook.Name, hook.URL, string(events), hook.Filter, hook.Secret, hook.Active, hook.UpdatedAt, hook.ID)
}

// DeleteWebhook removes a webhook and its delivery log
func (s *sqlStore) DeleteWebhook(ctx context.Context, id string) error {
	if err := s.execOne(ctx, `DELETE FROM webhooks WHERE id = ?`, id); err != nil {
		return err
	}
	_, err := s.exec(ctx, `DELETE FROM webhook_deliveries WHERE webhook_id = ?`, id)
	return err
}

// RecordDelivery appends a delivery to the log
func (s *sqlStore) RecordDelivery(ctx context.Context, d *models.WebhookDelivery) error {
	_, err := s.exec(ctx, `
		INSERT INTO webhook_deliveries (id, webhook_id, event_id, event_type, status, status_code,
			attempts, error, duration_ms, delivered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.WebhookID, d.EventID, d.EventType, string(d.Status), d.StatusCode, d.Attempts,
		d.Error, d.DurationMs, d.DeliveredAt)
	return err
}

// ListDeliveries returns the newest deliveries of a webhook first
func (s *sqlStore) ListDeliveries(ctx context.Context, webhookID string, limit int) ([]*models.WebhookDelivery, error) {
	rows, err := s.query(ctx, `
		SELECT id, webhook_id, event_id, event_type, status, status_code, attempts, error,
			duration_ms, delivered_at
		FROM webhook_deliveries WHERE webhook_id = ?
		ORDER BY delivered_at DESC, id DESC LIMIT ?
	`, webhookID, leadLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	defer rows.Close()

	out := make([]*models.WebhookDelivery, 0)
	for rows.Next() {
		var d models.WebhookDelivery
		var status string
		if err := rows.Scan(&d.ID, &d.WebhookID, &d.EventID, &d.EventType, &status, &d.StatusCode,
			&d.Attempts, &d.Error, &d.DurationMs, &d.DeliveredAt); err != nil {
			return nil, err
		}
		d.Status = models.DeliveryStatus(status)
		out = append(out, &d)
	}
	return out, rows.Err()
}

// Lifecycle

// Close closes the database connection
func (s *sqlStore) Close() error {
	return s.db.Close()
}

// HealthCheck pings the database
func (s *sqlStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Stats returns aggregate counts
func (s *sqlStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		DocumentsByKind: make(map[models.Kind]int),
		PublishedByKind: make(map[models.Kind]int),
	}

	rows, err := s.query(ctx, `
		SELECT kind, COUNT(*), SUM(CASE WHEN published THEN 1 ELSE 0 END)
		FROM documents GROUP BY kind
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var total, published int
		if err := rows.Scan(&kind, &total, &published); err != nil {
			return nil, err
		}
		stats.DocumentsByKind[models.Kind(kind)] = total
		stats.PublishedByKind[models.Kind(kind)] = published
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	counts := []struct {
		dest  *int
		query string
		args  []interface{}
	}{
		{&stats.Leads, `SELECT COUNT(*) FROM leads`, nil},
		{&stats.LeadsLast30Days, `SELECT COUNT(*) FROM leads WHERE created_at > ?`,
			[]interface{}{time.Now().UTC().AddDate(0, 0, -30)}},
		{&stats.Subscribers, `SELECT COUNT(*) FROM subscribers`, nil},
		{&stats.Users, `SELECT COUNT(*) FROM users`, nil},
		{&stats.Webhooks, `SELECT COUNT(*) FROM webhooks`, nil},
		{&stats.FailedDeliveries, `SELECT COUNT(*) FROM webhook_deliveries WHERE status = ?`,
			[]interface{}{string(models.DeliveryFailed)}},
	}
	for _, c := range counts {
		if err := s.queryRow(ctx, c.query, c.args...).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to count: %w", err)
		}
	}
	return stats, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
