package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/psantana5/agencysite/pkg/logging"
	"github.com/psantana5/agencysite/pkg/models"
	"github.com/psantana5/agencysite/pkg/store"
)

// Source tells which side of the fallback served a value
type Source string

const (
	SourceRemote  Source = "remote"
	SourceDefault Source = "default"
	SourceMixed   Source = "mixed"
)

// Content domains, used for logging, metrics and Status
const (
	DomainSiteConfig   = "site_config"
	DomainHomePage     = "home_page"
	DomainAboutPage    = "about_page"
	DomainServices     = "services"
	DomainTeam         = "team_members"
	DomainPosts        = "blog_posts"
	DomainCaseStudies  = "case_studies"
	DomainPricing      = "pricing_plans"
	DomainTestimonials = "testimonials"
	DomainFAQs         = "faqs"
	DomainIntegrations = "integrations"
	DomainSEO          = "seo"
	DomainChatPrompt   = "chat_system_prompt"
)

// DefaultTimeout bounds every remote read
const DefaultTimeout = 2 * time.Second

var (
	// ErrNotFound is returned by slug lookups that match neither the database nor the bundle
	ErrNotFound = errors.New("content not found")

	errNoStore = errors.New("no store configured")
)

// Observer receives resolution outcomes, typically a metrics collector
type Observer interface {
	ObserveContentResolution(domain, source string)
	ObserveBundleReload(ok bool)
}

type nopObserver struct{}

func (nopObserver) ObserveContentResolution(string, string) {}
func (nopObserver) ObserveBundleReload(bool)                {}

// Config holds resolver options. Zero values select defaults.
type Config struct {
	Timeout  time.Duration
	Logger   *logging.Logger
	Observer Observer
	Tracer   trace.Tracer
}

// Resolver serves site content from the store, substituting the bundled
// defaults whenever the store fails, times out or has nothing to show.
type Resolver struct {
	store    store.Store
	bundle   atomic.Pointer[Bundle]
	timeout  time.Duration
	logger   *logging.Logger
	observer Observer
	tracer   trace.Tracer
}

// NewResolver creates a resolver. st may be nil, in which case every
// accessor serves the bundle.
func NewResolver(st store.Store, bundle *Bundle, cfg Config) *Resolver {
	r := &Resolver{
		store:    st,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger,
		observer: cfg.Observer,
		tracer:   cfg.Tracer,
	}
	if r.timeout <= 0 {
		r.timeout = DefaultTimeout
	}
	if r.logger == nil {
		r.logger = logging.NewLogger(logging.INFO, true)
	}
	if r.observer == nil {
		r.observer = nopObserver{}
	}
	if r.tracer == nil {
		r.tracer = noop.NewTracerProvider().Tracer("content")
	}
	if bundle == nil {
		bundle = MustDefaultBundle()
	}
	r.bundle.Store(bundle)
	return r
}

// Bundle returns the bundle currently used as fallback
func (r *Resolver) Bundle() *Bundle {
	return r.bundle.Load()
}

// SetBundle swaps the fallback bundle
func (r *Resolver) SetBundle(b *Bundle) {
	r.bundle.Store(b)
}

type result[T any] struct {
	val T
	err error
}

// remoteValue runs read against the store with the resolver timeout. A store
// that does not return in time is treated as unavailable; its late answer is dropped.
func remoteValue[T any](ctx context.Context, r *Resolver, domain string, read func(context.Context) (T, error)) (T, error) {
	var zero T
	if r.store == nil {
		return zero, errNoStore
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	ctx, span := r.tracer.Start(ctx, "content.remote_read",
		trace.WithAttributes(attribute.String("content.domain", domain)))
	defer span.End()

	done := make(chan result[T], 1)
	go func() {
		v, err := read(ctx)
		done <- result[T]{val: v, err: err}
	}()

	var res result[T]
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = fmt.Errorf("remote read timed out: %w", ctx.Err())
	}
	if res.err != nil && !errors.Is(res.err, store.ErrNotFound) {
		span.RecordError(res.err)
		span.SetStatus(codes.Error, res.err.Error())
	}
	return res.val, res.err
}

func (r *Resolver) served(domain string, src Source) {
	r.observer.ObserveContentResolution(domain, string(src))
}

// fellBack logs why the default was used. Missing rows are expected and stay at debug.
func (r *Resolver) fellBack(domain string, err error) {
	r.served(domain, SourceDefault)
	switch {
	case err == nil, errors.Is(err, errNoStore), errors.Is(err, store.ErrNotFound):
		r.logger.Debug("Serving default content", map[string]interface{}{"domain": domain})
	default:
		r.logger.Warn("Remote content unavailable, serving default", map[string]interface{}{
			"domain": domain,
			"error":  err.Error(),
		})
	}
}

func resolveList[E any, P entryPtr[E]](ctx context.Context, r *Resolver, domain string, kind models.Kind, fallback []*E, post func(*E) error) ([]*E, Source) {
	docs, err := remoteValue(ctx, r, domain, func(ctx context.Context) ([]*store.Document, error) {
		return r.store.ListDocuments(ctx, kind, store.ListOptions{PublishedOnly: true})
	})
	if err != nil || len(docs) == 0 {
		r.fellBack(domain, err)
		return fallback, SourceDefault
	}

	out := make([]*E, 0, len(docs))
	for _, doc := range docs {
		e, err := decodeDocument[E, P](doc)
		if err == nil && post != nil {
			err = post(e)
		}
		if err != nil {
			r.fellBack(domain, err)
			return fallback, SourceDefault
		}
		out = append(out, e)
	}
	r.served(domain, SourceRemote)
	return out, SourceRemote
}

func resolveSlug[E any, P entryPtr[E]](ctx context.Context, r *Resolver, domain string, kind models.Kind, slug string, fallback []*E, post func(*E) error) (*E, Source, error) {
	doc, err := remoteValue(ctx, r, domain, func(ctx context.Context) (*store.Document, error) {
		return r.store.GetDocumentBySlug(ctx, kind, slug)
	})
	if err == nil && doc.Published {
		e, derr := decodeDocument[E, P](doc)
		if derr == nil && post != nil {
			derr = post(e)
		}
		if derr == nil {
			r.served(domain, SourceRemote)
			return e, SourceRemote, nil
		}
		err = derr
	}

	if e := findBySlug[E, P](fallback, slug); e != nil {
		r.fellBack(domain, err)
		return e, SourceDefault, nil
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) && !errors.Is(err, errNoStore) {
		r.logger.Warn("Remote content unavailable", map[string]interface{}{"domain": domain, "slug": slug, "error": err.Error()})
	}
	return nil, SourceDefault, ErrNotFound
}

type completable interface {
	IsComplete() bool
}

func resolveSetting[T completable](ctx context.Context, r *Resolver, domain, key string, fallback T) (T, Source) {
	setting, err := remoteValue(ctx, r, domain, func(ctx context.Context) (*models.Setting, error) {
		return r.store.GetSetting(ctx, key)
	})
	if err != nil {
		r.fellBack(domain, err)
		return fallback, SourceDefault
	}

	var v T
	if err := json.Unmarshal(setting.Value, &v); err != nil {
		r.fellBack(domain, fmt.Errorf("failed to decode setting %s: %w", key, err))
		return fallback, SourceDefault
	}
	if !v.IsComplete() {
		r.fellBack(domain, nil)
		return fallback, SourceDefault
	}
	r.served(domain, SourceRemote)
	return v, SourceRemote
}

// SiteConfig returns the global site configuration
func (r *Resolver) SiteConfig(ctx context.Context) (models.SiteConfig, Source) {
	return resolveSetting(ctx, r, DomainSiteConfig, models.SettingSiteConfig, r.Bundle().Site)
}

// HomePage returns the editable home page sections
func (r *Resolver) HomePage(ctx context.Context) (models.HomePage, Source) {
	return resolveSetting(ctx, r, DomainHomePage, models.SettingHomePage, r.Bundle().Home)
}

// AboutPage returns the about page copy
func (r *Resolver) AboutPage(ctx context.Context) (models.AboutPage, Source) {
	return resolveSetting(ctx, r, DomainAboutPage, models.SettingAboutPage, r.Bundle().About)
}

// Services returns the published services
func (r *Resolver) Services(ctx context.Context) ([]*models.Service, Source) {
	return resolveList[models.Service](ctx, r, DomainServices, models.KindService, r.Bundle().Services, nil)
}

// Service returns one published service by slug
func (r *Resolver) Service(ctx context.Context, slug string) (*models.Service, Source, error) {
	return resolveSlug[models.Service](ctx, r, DomainServices, models.KindService, slug, r.Bundle().Services, nil)
}

// TeamMembers returns the published team members
func (r *Resolver) TeamMembers(ctx context.Context) ([]*models.TeamMember, Source) {
	return resolveList[models.TeamMember](ctx, r, DomainTeam, models.KindTeamMember, r.Bundle().Team, nil)
}

// BlogPosts returns the published posts, newest first, with rendered bodies
func (r *Resolver) BlogPosts(ctx context.Context) ([]*models.BlogPost, Source) {
	posts, src := resolveList[models.BlogPost](ctx, r, DomainPosts, models.KindPost, r.Bundle().Posts, preparePost)
	if src == SourceRemote {
		sortPosts(posts)
	}
	return posts, src
}

// BlogPost returns one published post by slug
func (r *Resolver) BlogPost(ctx context.Context, slug string) (*models.BlogPost, Source, error) {
	return resolveSlug[models.BlogPost](ctx, r, DomainPosts, models.KindPost, slug, r.Bundle().Posts, preparePost)
}

// CaseStudies returns the published case studies
func (r *Resolver) CaseStudies(ctx context.Context) ([]*models.CaseStudy, Source) {
	return resolveList[models.CaseStudy](ctx, r, DomainCaseStudies, models.KindCaseStudy, r.Bundle().CaseStudies, nil)
}

// CaseStudy returns one published case study by slug
func (r *Resolver) CaseStudy(ctx context.Context, slug string) (*models.CaseStudy, Source, error) {
	return resolveSlug[models.CaseStudy](ctx, r, DomainCaseStudies, models.KindCaseStudy, slug, r.Bundle().CaseStudies, nil)
}

// PricingPlans returns the published pricing tiers
func (r *Resolver) PricingPlans(ctx context.Context) ([]*models.PricingPlan, Source) {
	return resolveList[models.PricingPlan](ctx, r, DomainPricing, models.KindPricingPlan, r.Bundle().Pricing, nil)
}

// Testimonials returns the published client quotes
func (r *Resolver) Testimonials(ctx context.Context) ([]*models.Testimonial, Source) {
	return resolveList[models.Testimonial](ctx, r, DomainTestimonials, models.KindTestimonial, r.Bundle().Testimonials, nil)
}

// FAQs returns the published questions
func (r *Resolver) FAQs(ctx context.Context) ([]*models.FAQ, Source) {
	return resolveList[models.FAQ](ctx, r, DomainFAQs, models.KindFAQ, r.Bundle().FAQs, nil)
}

// Integrations returns the published integrations
func (r *Resolver) Integrations(ctx context.Context) ([]*models.Integration, Source) {
	return resolveList[models.Integration](ctx, r, DomainIntegrations, models.KindIntegration, r.Bundle().Integrations, nil)
}

// SEO returns the head metadata for page. When neither the store nor the
// bundle has an entry, one is built from the site config.
func (r *Resolver) SEO(ctx context.Context, page string) (*models.SEOMeta, Source) {
	slug := models.Slugify(page)
	if slug == "" {
		slug = "home"
	}
	meta, src, err := resolveSlug[models.SEOMeta](ctx, r, DomainSEO, models.KindSEO, slug, r.Bundle().SEO, nil)
	if err == nil {
		return meta, src
	}

	site, _ := r.SiteConfig(ctx)
	return &models.SEOMeta{
		Meta:        models.Meta{ID: slug, Slug: slug, Published: true},
		Page:        slug,
		Title:       pageTitle(slug) + " | " + site.Name,
		Description: site.Tagline,
	}, SourceDefault
}

// ChatSystemPrompt returns the system prompt for the chat widget
func (r *Resolver) ChatSystemPrompt(ctx context.Context) (string, Source) {
	prompt, src := resolveSetting(ctx, r, DomainChatPrompt, models.SettingChatSystemPrompt, promptText(r.Bundle().ChatSystemPrompt))
	return string(prompt), src
}

type promptText string

func (p promptText) IsComplete() bool { return strings.TrimSpace(string(p)) != "" }

// pageTitle turns "case-studies" into "Case Studies"
func pageTitle(slug string) string {
	words := strings.Split(slug, "-")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
