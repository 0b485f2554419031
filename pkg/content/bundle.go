package content

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/psantana5/agencysite/pkg/models"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Bundle is the static content served when the database cannot provide a value.
// A prepared bundle is read-only; callers must not mutate the entries it returns.
type Bundle struct {
	ChatSystemPrompt string                `yaml:"chat_system_prompt" toml:"chat_system_prompt"`
	Site             models.SiteConfig     `yaml:"site" toml:"site"`
	Home             models.HomePage       `yaml:"home" toml:"home"`
	About            models.AboutPage      `yaml:"about" toml:"about"`
	Services         []*models.Service     `yaml:"services" toml:"services"`
	Team             []*models.TeamMember  `yaml:"team" toml:"team"`
	Posts            []*models.BlogPost    `yaml:"posts" toml:"posts"`
	CaseStudies      []*models.CaseStudy   `yaml:"case_studies" toml:"case_studies"`
	Pricing          []*models.PricingPlan `yaml:"pricing" toml:"pricing"`
	Testimonials     []*models.Testimonial `yaml:"testimonials" toml:"testimonials"`
	FAQs             []*models.FAQ         `yaml:"faqs" toml:"faqs"`
	Integrations     []*models.Integration `yaml:"integrations" toml:"integrations"`
	SEO              []*models.SEOMeta     `yaml:"seo" toml:"seo"`
}

// DefaultBundle parses the bundle compiled into the binary
func DefaultBundle() (*Bundle, error) {
	var b Bundle
	if err := yaml.Unmarshal(defaultsYAML, &b); err != nil {
		return nil, fmt.Errorf("failed to parse embedded defaults: %w", err)
	}
	if err := b.prepare(); err != nil {
		return nil, fmt.Errorf("invalid embedded defaults: %w", err)
	}
	return &b, nil
}

// MustDefaultBundle is DefaultBundle for callers that cannot recover
func MustDefaultBundle() *Bundle {
	b, err := DefaultBundle()
	if err != nil {
		panic(err)
	}
	return b
}

// LoadBundleFile reads an override bundle from a .yaml, .yml or .toml file.
// The file replaces the embedded defaults entirely.
func LoadBundleFile(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read content bundle: %w", err)
	}

	var b Bundle
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &b)
	case ".toml":
		_, err = toml.Decode(string(data), &b)
	default:
		return nil, fmt.Errorf("unsupported content bundle format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := b.prepare(); err != nil {
		return nil, fmt.Errorf("invalid content bundle %s: %w", path, err)
	}
	return &b, nil
}

// prepare normalizes every entry, validates it and orders each collection
func (b *Bundle) prepare() error {
	for _, p := range b.Posts {
		if err := preparePost(p); err != nil {
			return fmt.Errorf("failed to render post %q: %w", p.Title, err)
		}
	}

	checks := []struct {
		kind    models.Kind
		entries []models.Entry
	}{
		{models.KindService, entries(b.Services)},
		{models.KindTeamMember, entries(b.Team)},
		{models.KindPost, entries(b.Posts)},
		{models.KindCaseStudy, entries(b.CaseStudies)},
		{models.KindPricingPlan, entries(b.Pricing)},
		{models.KindTestimonial, entries(b.Testimonials)},
		{models.KindFAQ, entries(b.FAQs)},
		{models.KindIntegration, entries(b.Integrations)},
		{models.KindSEO, entries(b.SEO)},
	}
	for _, c := range checks {
		seen := make(map[string]bool, len(c.entries))
		for _, e := range c.entries {
			models.Normalize(e)
			m := e.EntryMeta()
			// Bundled content is always public
			m.Published = true
			if m.ID == "" {
				m.ID = m.Slug
			}
			if err := e.Validate(); err != nil {
				return err
			}
			if seen[m.Slug] {
				return fmt.Errorf("%w: duplicate %s slug %q", models.ErrValidation, c.kind, m.Slug)
			}
			seen[m.Slug] = true
		}
	}

	sortEntries(b.Services)
	sortEntries(b.Team)
	sortEntries(b.CaseStudies)
	sortEntries(b.Pricing)
	sortEntries(b.Testimonials)
	sortEntries(b.FAQs)
	sortEntries(b.Integrations)
	sortEntries(b.SEO)
	sortPosts(b.Posts)
	return nil
}

func entries[E any, P entryPtr[E]](list []*E) []models.Entry {
	out := make([]models.Entry, len(list))
	for i, e := range list {
		out[i] = P(e)
	}
	return out
}

// sortEntries orders by sort order, then slug
func sortEntries[E any, P entryPtr[E]](list []*E) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := P(list[i]).EntryMeta(), P(list[j]).EntryMeta()
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		return a.Slug < b.Slug
	})
}

// sortPosts orders newest first; undated posts go last
func sortPosts(posts []*models.BlogPost) {
	sort.SliceStable(posts, func(i, j int) bool {
		a, b := posts[i].PublishedAt, posts[j].PublishedAt
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.After(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return posts[i].Slug < posts[j].Slug
	})
}

func findBySlug[E any, P entryPtr[E]](list []*E, slug string) *E {
	for _, e := range list {
		if P(e).EntryMeta().Slug == slug {
			return e
		}
	}
	return nil
}
