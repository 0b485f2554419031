package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/psantana5/agencysite/pkg/models"
	"github.com/psantana5/agencysite/pkg/store"
)

// SeedResult counts what Seed wrote
type SeedResult struct {
	Entries  int `json:"entries"`
	Settings int `json:"settings"`
	Skipped  int `json:"skipped"`
}

// Entries returns every entry of the bundle, collection by collection
func (b *Bundle) Entries() []models.Entry {
	var out []models.Entry
	out = append(out, entries(b.Services)...)
	out = append(out, entries(b.Team)...)
	out = append(out, entries(b.Posts)...)
	out = append(out, entries(b.CaseStudies)...)
	out = append(out, entries(b.Pricing)...)
	out = append(out, entries(b.Testimonials)...)
	out = append(out, entries(b.FAQs)...)
	out = append(out, entries(b.Integrations)...)
	out = append(out, entries(b.SEO)...)
	return out
}

// settings returns the bundle singletons keyed by setting name
func (b *Bundle) settings() map[string]interface{} {
	return map[string]interface{}{
		models.SettingSiteConfig:       b.Site,
		models.SettingHomePage:         b.Home,
		models.SettingAboutPage:        b.About,
		models.SettingChatSystemPrompt: b.ChatSystemPrompt,
	}
}

// Seed copies the bundle into st so it can be edited from the admin API.
// Entries whose slug already exists and settings already set are kept
// unless overwrite is true.
func Seed(ctx context.Context, st store.Store, b *Bundle, overwrite bool) (*SeedResult, error) {
	res := &SeedResult{}
	for _, e := range b.Entries() {
		doc, err := EncodeEntry(e)
		if err != nil {
			return res, err
		}
		existing, err := st.GetDocumentBySlug(ctx, doc.Kind, doc.Slug)
		switch {
		case err == nil && !overwrite:
			res.Skipped++
			continue
		case err == nil:
			doc.ID = existing.ID
		case !errors.Is(err, store.ErrNotFound):
			return res, fmt.Errorf("failed to look up %s/%s: %w", doc.Kind, doc.Slug, err)
		}
		if err := st.PutDocument(ctx, doc); err != nil {
			return res, fmt.Errorf("failed to seed %s/%s: %w", doc.Kind, doc.Slug, err)
		}
		res.Entries++
	}

	for key, value := range b.settings() {
		_, err := st.GetSetting(ctx, key)
		switch {
		case err == nil && !overwrite:
			res.Skipped++
			continue
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return res, fmt.Errorf("failed to look up setting %s: %w", key, err)
		}
		data, err := json.Marshal(value)
		if err != nil {
			return res, fmt.Errorf("failed to encode setting %s: %w", key, err)
		}
		if err := st.PutSetting(ctx, &models.Setting{Key: key, Value: data, UpdatedAt: time.Now().UTC()}); err != nil {
			return res, fmt.Errorf("failed to seed setting %s: %w", key, err)
		}
		res.Settings++
	}
	return res, nil
}
