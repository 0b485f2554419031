package content

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psantana5/agencysite/pkg/logging"
	"github.com/psantana5/agencysite/pkg/models"
	"github.com/psantana5/agencysite/pkg/store"
)

type countingObserver struct {
	mu          sync.Mutex
	resolutions map[string]int
	reloadsOK   int
	reloadsBad  int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{resolutions: make(map[string]int)}
}

func (o *countingObserver) ObserveContentResolution(domain, source string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resolutions[domain+"/"+source]++
}

func (o *countingObserver) ObserveBundleReload(ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if ok {
		o.reloadsOK++
	} else {
		o.reloadsBad++
	}
}

func (o *countingObserver) count(key string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.resolutions[key]
}

// failingStore fails every read used by the resolver
type failingStore struct {
	store.Store
	err error
}

func (f *failingStore) ListDocuments(ctx context.Context, kind models.Kind, opts store.ListOptions) ([]*store.Document, error) {
	return nil, f.err
}

func (f *failingStore) GetDocumentBySlug(ctx context.Context, kind models.Kind, slug string) (*store.Document, error) {
	return nil, f.err
}

func (f *failingStore) GetSetting(ctx context.Context, key string) (*models.Setting, error) {
	return nil, f.err
}

// slowStore answers only after the caller has given up
type slowStore struct {
	store.Store
}

func (s slowStore) ListDocuments(ctx context.Context, kind models.Kind, opts store.ListOptions) ([]*store.Document, error) {
	select {
	case <-time.After(time.Second):
		return []*store.Document{{Kind: kind, ID: "late", Slug: "late", Published: true, Data: json.RawMessage(`{"name":"Late"}`)}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func quietLogger() *logging.Logger {
	return logging.NewLogger(logging.FATAL, true)
}

func newTestResolver(t *testing.T, st store.Store) (*Resolver, *countingObserver) {
	t.Helper()
	obs := newCountingObserver()
	r := NewResolver(st, MustDefaultBundle(), Config{
		Timeout:  50 * time.Millisecond,
		Logger:   quietLogger(),
		Observer: obs,
	})
	return r, obs
}

func putEntry(t *testing.T, st store.Store, e models.Entry) {
	t.Helper()
	models.Normalize(e)
	if e.EntryMeta().ID == "" {
		e.EntryMeta().ID = e.EntryMeta().Slug
	}
	doc, err := EncodeEntry(e)
	require.NoError(t, err)
	require.NoError(t, st.PutDocument(context.Background(), doc))
}

func putSetting(t *testing.T, st store.Store, key string, v interface{}) {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, st.PutSetting(context.Background(), &models.Setting{Key: key, Value: raw, UpdatedAt: time.Now().UTC()}))
}

func TestNilStoreServesDefaults(t *testing.T) {
	r, obs := newTestResolver(t, nil)
	ctx := context.Background()

	site, src := r.SiteConfig(ctx)
	assert.Equal(t, SourceDefault, src)
	assert.Equal(t, "Brightloop Automation", site.Name)

	services, src := r.Services(ctx)
	assert.Equal(t, SourceDefault, src)
	assert.Len(t, services, 4)
	assert.Equal(t, 1, obs.count(DomainServices+"/default"))
}

func TestRemoteListWins(t *testing.T) {
	st := store.NewMemoryStore()
	putEntry(t, st, &models.Service{Meta: models.Meta{Published: true, SortOrder: 2}, Name: "Bots"})
	putEntry(t, st, &models.Service{Meta: models.Meta{Published: true, SortOrder: 1}, Name: "Data Pipelines"})
	putEntry(t, st, &models.Service{Meta: models.Meta{Published: false}, Name: "Secret Draft"})

	r, obs := newTestResolver(t, st)
	services, src := r.Services(context.Background())

	assert.Equal(t, SourceRemote, src)
	require.Len(t, services, 2)
	assert.Equal(t, "data-pipelines", services[0].Slug)
	assert.Equal(t, "bots", services[1].Slug)
	assert.Equal(t, 1, obs.count(DomainServices+"/remote"))
}

func TestEmptyRemoteFallsBack(t *testing.T) {
	st := store.NewMemoryStore()
	putEntry(t, st, &models.FAQ{Meta: models.Meta{Published: false}, Question: "Draft only?"})

	r, _ := newTestResolver(t, st)
	faqs, src := r.FAQs(context.Background())
	assert.Equal(t, SourceDefault, src)
	assert.Equal(t, r.Bundle().FAQs, faqs)
}

func TestStoreErrorFallsBack(t *testing.T) {
	r, obs := newTestResolver(t, &failingStore{err: errors.New("connection refused")})
	ctx := context.Background()

	plans, src := r.PricingPlans(ctx)
	assert.Equal(t, SourceDefault, src)
	assert.Len(t, plans, 3)

	about, src := r.AboutPage(ctx)
	assert.Equal(t, SourceDefault, src)
	assert.True(t, about.IsComplete())

	svc, src, err := r.Service(ctx, "crm-integration")
	require.NoError(t, err)
	assert.Equal(t, SourceDefault, src)
	assert.Equal(t, "CRM Integration", svc.Name)

	_, _, err = r.Service(ctx, "does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 1, obs.count(DomainPricing+"/default"))
}

func TestSlowStoreCountsAsUnavailable(t *testing.T) {
	r, _ := newTestResolver(t, slowStore{})

	start := time.Now()
	team, src := r.TeamMembers(context.Background())
	assert.Equal(t, SourceDefault, src)
	assert.Len(t, team, 2)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestSettingMustBeComplete(t *testing.T) {
	st := store.NewMemoryStore()
	r, _ := newTestResolver(t, st)
	ctx := context.Background()

	putSetting(t, st, models.SettingSiteConfig, models.SiteConfig{Name: "No Nav Co"})
	site, src := r.SiteConfig(ctx)
	assert.Equal(t, SourceDefault, src)
	assert.Equal(t, "Brightloop Automation", site.Name)

	putSetting(t, st, models.SettingSiteConfig, models.SiteConfig{
		Name:       "Remote Co",
		Navigation: []models.Link{{Label: "Home", URL: "/"}},
	})
	site, src = r.SiteConfig(ctx)
	assert.Equal(t, SourceRemote, src)
	assert.Equal(t, "Remote Co", site.Name)

	require.NoError(t, st.PutSetting(ctx, &models.Setting{Key: models.SettingHomePage, Value: json.RawMessage(`"not an object"`)}))
	_, src = r.HomePage(ctx)
	assert.Equal(t, SourceDefault, src)
}

func TestSlugLookup(t *testing.T) {
	st := store.NewMemoryStore()
	putEntry(t, st, &models.CaseStudy{Meta: models.Meta{Published: true}, Title: "Remote Win", Client: "Acme"})
	putEntry(t, st, &models.CaseStudy{
		Meta:  models.Meta{Slug: "invoices-processed-in-minutes-instead-of-days"},
		Title: "Unpublished rewrite",
	})

	r, _ := newTestResolver(t, st)
	ctx := context.Background()

	cs, src, err := r.CaseStudy(ctx, "remote-win")
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, src)
	assert.Equal(t, "Acme", cs.Client)

	// A draft in the database never shadows the bundled entry
	cs, src, err = r.CaseStudy(ctx, "invoices-processed-in-minutes-instead-of-days")
	require.NoError(t, err)
	assert.Equal(t, SourceDefault, src)
	assert.Equal(t, "Harbor Logistics", cs.Client)

	_, _, err = r.CaseStudy(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemotePostsRenderedAndOrdered(t *testing.T) {
	st := store.NewMemoryStore()
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	putEntry(t, st, &models.BlogPost{Meta: models.Meta{Published: true}, Title: "Older", Body: "**old**", PublishedAt: &older})
	putEntry(t, st, &models.BlogPost{Meta: models.Meta{Published: true}, Title: "Newer", Body: "# new", PublishedAt: &newer})

	r, _ := newTestResolver(t, st)
	ctx := context.Background()

	posts, src := r.BlogPosts(ctx)
	assert.Equal(t, SourceRemote, src)
	require.Len(t, posts, 2)
	assert.Equal(t, "newer", posts[0].Slug)
	assert.Contains(t, posts[0].BodyHTML, "<h1>new</h1>")
	assert.Equal(t, 1, posts[0].ReadingMinutes)

	post, _, err := r.BlogPost(ctx, "older")
	require.NoError(t, err)
	assert.Contains(t, post.BodyHTML, "<strong>old</strong>")
}

func TestSEO(t *testing.T) {
	st := store.NewMemoryStore()
	putEntry(t, st, &models.SEOMeta{Meta: models.Meta{Published: true}, Page: "about", Title: "About us | Remote"})

	r, _ := newTestResolver(t, st)
	ctx := context.Background()

	meta, src := r.SEO(ctx, "about")
	assert.Equal(t, SourceRemote, src)
	assert.Equal(t, "About us | Remote", meta.Title)

	meta, src = r.SEO(ctx, "pricing")
	assert.Equal(t, SourceDefault, src)
	assert.Equal(t, "Pricing | Brightloop Automation", meta.Title)

	meta, src = r.SEO(ctx, "case-studies")
	assert.Equal(t, SourceDefault, src)
	assert.Equal(t, "Case Studies | Brightloop Automation", meta.Title)
	assert.Equal(t, r.Bundle().Site.Tagline, meta.Description)

	meta, _ = r.SEO(ctx, "")
	assert.Equal(t, "home", meta.Page)
}

func TestChatSystemPrompt(t *testing.T) {
	st := store.NewMemoryStore()
	r, _ := newTestResolver(t, st)
	ctx := context.Background()

	prompt, src := r.ChatSystemPrompt(ctx)
	assert.Equal(t, SourceDefault, src)
	assert.Contains(t, prompt, "Brightloop")

	putSetting(t, st, models.SettingChatSystemPrompt, "Answer in one sentence.")
	prompt, src = r.ChatSystemPrompt(ctx)
	assert.Equal(t, SourceRemote, src)
	assert.Equal(t, "Answer in one sentence.", prompt)
}

func TestHomeView(t *testing.T) {
	r, _ := newTestResolver(t, nil)

	view, err := r.HomeView(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SourceDefault, view.Source())
	require.Len(t, view.FeaturedServices, 3)
	assert.Equal(t, "workflow-automation", view.FeaturedServices[0].Slug)
	assert.Len(t, view.LatestPosts, 2)
	assert.Len(t, view.Sources, 5)
}

func TestHomeViewMixedSources(t *testing.T) {
	st := store.NewMemoryStore()
	putEntry(t, st, &models.Testimonial{Meta: models.Meta{Published: true}, Author: "Remote Person", Quote: "Great"})

	r, _ := newTestResolver(t, st)
	view, err := r.HomeView(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SourceMixed, view.Source())
	assert.Equal(t, SourceRemote, view.Sources[DomainTestimonials])
}

func TestFeaturedFallsBackToFirstServices(t *testing.T) {
	services := MustDefaultBundle().Services
	got := featured(services, []string{"unknown"})
	assert.Len(t, got, 3)
	assert.Equal(t, services[0], got[0])
}

func TestStatus(t *testing.T) {
	st := store.NewMemoryStore()
	putEntry(t, st, &models.Integration{Meta: models.Meta{Published: true}, Name: "Notion", Category: "Docs"})

	r, _ := newTestResolver(t, st)
	status := r.Status(context.Background())

	assert.Len(t, status, 13)
	assert.Equal(t, SourceRemote, status[DomainIntegrations])
	assert.Equal(t, SourceDefault, status[DomainServices])
}

func TestDecodeEntryUsesColumns(t *testing.T) {
	doc := &store.Document{
		Kind: models.KindFAQ, ID: "f1", Slug: "column-slug", Published: true, SortOrder: 7,
		Data: json.RawMessage(`{"id":"stale","slug":"stale","question":"Q?","answer":"A"}`),
	}
	e, err := DecodeEntry(doc)
	require.NoError(t, err)

	faq := e.(*models.FAQ)
	assert.Equal(t, "f1", faq.ID)
	assert.Equal(t, "column-slug", faq.Slug)
	assert.Equal(t, 7, faq.SortOrder)
	assert.Equal(t, "Q?", faq.Question)
}
