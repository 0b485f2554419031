package content

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/psantana5/agencysite/pkg/models"
)

const (
	latestPostCount   = 3
	featuredFallbacks = 3
)

// HomeView is everything the home page needs in one response
type HomeView struct {
	Site             models.SiteConfig     `json:"site"`
	Page             models.HomePage       `json:"page"`
	FeaturedServices []*models.Service     `json:"featured_services"`
	Testimonials     []*models.Testimonial `json:"testimonials"`
	LatestPosts      []*models.BlogPost    `json:"latest_posts"`
	Sources          map[string]Source     `json:"sources"`
}

// Source summarizes the sources of every section
func (v *HomeView) Source() Source {
	return Combine(sourceValues(v.Sources)...)
}

// Combine reports a single source for a set of resolutions
func Combine(sources ...Source) Source {
	if len(sources) == 0 {
		return SourceDefault
	}
	first := sources[0]
	for _, s := range sources[1:] {
		if s != first {
			return SourceMixed
		}
	}
	return first
}

func sourceValues(m map[string]Source) []Source {
	out := make([]Source, 0, len(m))
	for _, s := range m {
		out = append(out, s)
	}
	return out
}

// HomeView resolves the home page sections concurrently
func (r *Resolver) HomeView(ctx context.Context) (*HomeView, error) {
	view := &HomeView{Sources: make(map[string]Source, 5)}
	var services []*models.Service
	var mu sync.Mutex
	record := func(domain string, src Source) {
		mu.Lock()
		view.Sources[domain] = src
		mu.Unlock()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		site, src := r.SiteConfig(ctx)
		view.Site = site
		record(DomainSiteConfig, src)
		return nil
	})
	g.Go(func() error {
		page, src := r.HomePage(ctx)
		view.Page = page
		record(DomainHomePage, src)
		return nil
	})
	g.Go(func() error {
		list, src := r.Services(ctx)
		services = list
		record(DomainServices, src)
		return nil
	})
	g.Go(func() error {
		list, src := r.Testimonials(ctx)
		view.Testimonials = list
		record(DomainTestimonials, src)
		return nil
	})
	g.Go(func() error {
		posts, src := r.BlogPosts(ctx)
		if len(posts) > latestPostCount {
			posts = posts[:latestPostCount]
		}
		view.LatestPosts = posts
		record(DomainPosts, src)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	view.FeaturedServices = featured(services, view.Page.FeaturedServices)
	return view, nil
}

// featured picks the services named by slug in order, or the first few when none match
func featured(services []*models.Service, slugs []string) []*models.Service {
	out := make([]*models.Service, 0, len(slugs))
	for _, slug := range slugs {
		for _, s := range services {
			if s.Slug == slug {
				out = append(out, s)
				break
			}
		}
	}
	if len(out) > 0 {
		return out
	}
	if len(services) > featuredFallbacks {
		return services[:featuredFallbacks]
	}
	return services
}

// Status reports which source currently serves each domain
func (r *Resolver) Status(ctx context.Context) map[string]Source {
	checks := map[string]func(context.Context) Source{
		DomainSiteConfig:   func(ctx context.Context) Source { _, s := r.SiteConfig(ctx); return s },
		DomainHomePage:     func(ctx context.Context) Source { _, s := r.HomePage(ctx); return s },
		DomainAboutPage:    func(ctx context.Context) Source { _, s := r.AboutPage(ctx); return s },
		DomainServices:     func(ctx context.Context) Source { _, s := r.Services(ctx); return s },
		DomainTeam:         func(ctx context.Context) Source { _, s := r.TeamMembers(ctx); return s },
		DomainPosts:        func(ctx context.Context) Source { _, s := r.BlogPosts(ctx); return s },
		DomainCaseStudies:  func(ctx context.Context) Source { _, s := r.CaseStudies(ctx); return s },
		DomainPricing:      func(ctx context.Context) Source { _, s := r.PricingPlans(ctx); return s },
		DomainTestimonials: func(ctx context.Context) Source { _, s := r.Testimonials(ctx); return s },
		DomainFAQs:         func(ctx context.Context) Source { _, s := r.FAQs(ctx); return s },
		DomainIntegrations: func(ctx context.Context) Source { _, s := r.Integrations(ctx); return s },
		DomainSEO:          func(ctx context.Context) Source { _, s := r.SEO(ctx, "home"); return s },
		DomainChatPrompt:   func(ctx context.Context) Source { _, s := r.ChatSystemPrompt(ctx); return s },
	}

	status := make(map[string]Source, len(checks))
	var mu sync.Mutex
	var g errgroup.Group
	for domain, check := range checks {
		g.Go(func() error {
			src := check(ctx)
			mu.Lock()
			status[domain] = src
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return status
}
