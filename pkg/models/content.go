package models

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
)

// Kind identifies a content collection
type Kind string

const (
	KindPost        Kind = "posts"
	KindService     Kind = "services"
	KindTeamMember  Kind = "team_members"
	KindCaseStudy   Kind = "case_studies"
	KindPricingPlan Kind = "pricing_plans"
	KindTestimonial Kind = "testimonials"
	KindFAQ         Kind = "faqs"
	KindIntegration Kind = "integrations"
	KindSEO         Kind = "seo"
)

// AllKinds lists every content collection in display order
var AllKinds = []Kind{
	KindPost, KindService, KindTeamMember, KindCaseStudy, KindPricingPlan,
	KindTestimonial, KindFAQ, KindIntegration, KindSEO,
}

// IsValid reports whether k names a known collection
func (k Kind) IsValid() bool {
	for _, known := range AllKinds {
		if k == known {
			return true
		}
	}
	return false
}

var (
	ErrValidation = errors.New("validation failed")

	slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
)

// Meta holds the fields every content entry carries
type Meta struct {
	ID        string    `json:"id" yaml:"id" toml:"id"`
	Slug      string    `json:"slug" yaml:"slug" toml:"slug"`
	Published bool      `json:"published" yaml:"published" toml:"published"`
	SortOrder int       `json:"sort_order" yaml:"sort_order" toml:"sort_order"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at,omitempty" toml:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at,omitempty" toml:"updated_at,omitempty"`
}

// EntryMeta returns a pointer to the embedded metadata
func (m *Meta) EntryMeta() *Meta { return m }

// Entry is implemented by pointers to every content type
type Entry interface {
	EntryMeta() *Meta
	Kind() Kind
	// Label is the human readable name the slug is derived from
	Label() string
	Validate() error
}

// Slugify lowercases s and joins alphanumeric runs with single dashes
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if b.Len() > 0 && !dash {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Normalize derives a missing slug from the entry label
func Normalize(e Entry) {
	m := e.EntryMeta()
	m.Slug = strings.TrimSpace(m.Slug)
	if m.Slug == "" {
		m.Slug = Slugify(e.Label())
	}
}

func validateCommon(e Entry) error {
	if strings.TrimSpace(e.Label()) == "" {
		return fmt.Errorf("%w: %s requires a title or name", ErrValidation, e.Kind())
	}
	if !slugPattern.MatchString(e.EntryMeta().Slug) {
		return fmt.Errorf("%w: invalid slug %q", ErrValidation, e.EntryMeta().Slug)
	}
	return nil
}

// BlogPost is an article in the blog. Body is Markdown.
type BlogPost struct {
	Meta           `yaml:",inline"`
	Title          string     `json:"title" yaml:"title" toml:"title"`
	Excerpt        string     `json:"excerpt" yaml:"excerpt" toml:"excerpt"`
	Body           string     `json:"body" yaml:"body" toml:"body"`
	BodyHTML       string     `json:"body_html,omitempty" yaml:"-" toml:"-"`
	Author         string     `json:"author" yaml:"author" toml:"author"`
	Tags           []string   `json:"tags,omitempty" yaml:"tags" toml:"tags"`
	CoverImage     string     `json:"cover_image,omitempty" yaml:"cover_image" toml:"cover_image"`
	PublishedAt    *time.Time `json:"published_at,omitempty" yaml:"published_at" toml:"published_at"`
	ReadingMinutes int        `json:"reading_minutes,omitempty" yaml:"-" toml:"-"`
}

func (p *BlogPost) Kind() Kind    { return KindPost }
func (p *BlogPost) Label() string { return p.Title }
func (p *BlogPost) Validate() error {
	if err := validateCommon(p); err != nil {
		return err
	}
	if p.Published && strings.TrimSpace(p.Body) == "" {
		return fmt.Errorf("%w: a published post needs a body", ErrValidation)
	}
	return nil
}

// Service is an offering listed on the services pages
type Service struct {
	Meta        `yaml:",inline"`
	Name        string   `json:"name" yaml:"name" toml:"name"`
	Summary     string   `json:"summary" yaml:"summary" toml:"summary"`
	Description string   `json:"description" yaml:"description" toml:"description"`
	Icon        string   `json:"icon,omitempty" yaml:"icon" toml:"icon"`
	Features    []string `json:"features,omitempty" yaml:"features" toml:"features"`
	StartingAt  string   `json:"starting_at,omitempty" yaml:"starting_at" toml:"starting_at"`
}

func (s *Service) Kind() Kind      { return KindService }
func (s *Service) Label() string   { return s.Name }
func (s *Service) Validate() error { return validateCommon(s) }

// TeamMember appears on the about page
type TeamMember struct {
	Meta     `yaml:",inline"`
	Name     string `json:"name" yaml:"name" toml:"name"`
	Role     string `json:"role" yaml:"role" toml:"role"`
	Bio      string `json:"bio" yaml:"bio" toml:"bio"`
	PhotoURL string `json:"photo_url,omitempty" yaml:"photo_url" toml:"photo_url"`
	LinkedIn string `json:"linkedin,omitempty" yaml:"linkedin" toml:"linkedin"`
}

func (t *TeamMember) Kind() Kind      { return KindTeamMember }
func (t *TeamMember) Label() string   { return t.Name }
func (t *TeamMember) Validate() error { return validateCommon(t) }

// Metric is a headline number such as "40 hours saved per month"
type Metric struct {
	Label string `json:"label" yaml:"label" toml:"label"`
	Value string `json:"value" yaml:"value" toml:"value"`
}

// CaseStudy describes a client engagement
type CaseStudy struct {
	Meta      `yaml:",inline"`
	Title     string   `json:"title" yaml:"title" toml:"title"`
	Client    string   `json:"client" yaml:"client" toml:"client"`
	Industry  string   `json:"industry,omitempty" yaml:"industry" toml:"industry"`
	Challenge string   `json:"challenge" yaml:"challenge" toml:"challenge"`
	Solution  string   `json:"solution" yaml:"solution" toml:"solution"`
	Results   []Metric `json:"results,omitempty" yaml:"results" toml:"results"`
	Tools     []string `json:"tools,omitempty" yaml:"tools" toml:"tools"`
	Image     string   `json:"image,omitempty" yaml:"image" toml:"image"`
}

func (c *CaseStudy) Kind() Kind      { return KindCaseStudy }
func (c *CaseStudy) Label() string   { return c.Title }
func (c *CaseStudy) Validate() error { return validateCommon(c) }

// PricingPlan is a tier on the pricing page
type PricingPlan struct {
	Meta        `yaml:",inline"`
	Name        string   `json:"name" yaml:"name" toml:"name"`
	Price       string   `json:"price" yaml:"price" toml:"price"`
	Period      string   `json:"period,omitempty" yaml:"period" toml:"period"`
	Description string   `json:"description" yaml:"description" toml:"description"`
	Features    []string `json:"features,omitempty" yaml:"features" toml:"features"`
	Highlighted bool     `json:"highlighted" yaml:"highlighted" toml:"highlighted"`
	CTALabel    string   `json:"cta_label,omitempty" yaml:"cta_label" toml:"cta_label"`
	CTAURL      string   `json:"cta_url,omitempty" yaml:"cta_url" toml:"cta_url"`
}

func (p *PricingPlan) Kind() Kind    { return KindPricingPlan }
func (p *PricingPlan) Label() string { return p.Name }
func (p *PricingPlan) Validate() error {
	if err := validateCommon(p); err != nil {
		return err
	}
	if strings.TrimSpace(p.Price) == "" {
		return fmt.Errorf("%w: pricing plan %q has no price", ErrValidation, p.Name)
	}
	return nil
}

// Testimonial is a client quote
type Testimonial struct {
	Meta    `yaml:",inline"`
	Author  string `json:"author" yaml:"author" toml:"author"`
	Company string `json:"company,omitempty" yaml:"company" toml:"company"`
	Quote   string `json:"quote" yaml:"quote" toml:"quote"`
	Rating  int    `json:"rating,omitempty" yaml:"rating" toml:"rating"`
}

func (t *Testimonial) Kind() Kind    { return KindTestimonial }
func (t *Testimonial) Label() string { return t.Author }
func (t *Testimonial) Validate() error {
	if err := validateCommon(t); err != nil {
		return err
	}
	if t.Rating < 0 || t.Rating > 5 {
		return fmt.Errorf("%w: rating must be between 0 and 5", ErrValidation)
	}
	return nil
}

// FAQ is a question and answer pair
type FAQ struct {
	Meta     `yaml:",inline"`
	Question string `json:"question" yaml:"question" toml:"question"`
	Answer   string `json:"answer" yaml:"answer" toml:"answer"`
	Category string `json:"category,omitempty" yaml:"category" toml:"category"`
}

func (f *FAQ) Kind() Kind      { return KindFAQ }
func (f *FAQ) Label() string   { return f.Question }
func (f *FAQ) Validate() error { return validateCommon(f) }

// Integration is a third-party tool the agency automates
type Integration struct {
	Meta        `yaml:",inline"`
	Name        string `json:"name" yaml:"name" toml:"name"`
	Category    string `json:"category" yaml:"category" toml:"category"`
	Description string `json:"description,omitempty" yaml:"description" toml:"description"`
	LogoURL     string `json:"logo_url,omitempty" yaml:"logo_url" toml:"logo_url"`
	Website     string `json:"website,omitempty" yaml:"website" toml:"website"`
}

func (i *Integration) Kind() Kind      { return KindIntegration }
func (i *Integration) Label() string   { return i.Name }
func (i *Integration) Validate() error { return validateCommon(i) }

// SEOMeta holds the head metadata for one page. The slug is the page key
// ("home", "blog", "pricing", ...).
type SEOMeta struct {
	Meta        `yaml:",inline"`
	Page        string   `json:"page" yaml:"page" toml:"page"`
	Title       string   `json:"title" yaml:"title" toml:"title"`
	Description string   `json:"description" yaml:"description" toml:"description"`
	Keywords    []string `json:"keywords,omitempty" yaml:"keywords" toml:"keywords"`
	OGImage     string   `json:"og_image,omitempty" yaml:"og_image" toml:"og_image"`
	Canonical   string   `json:"canonical,omitempty" yaml:"canonical" toml:"canonical"`
	NoIndex     bool     `json:"noindex,omitempty" yaml:"noindex" toml:"noindex"`
}

func (s *SEOMeta) Kind() Kind    { return KindSEO }
func (s *SEOMeta) Label() string { return s.Page }
func (s *SEOMeta) Validate() error {
	if err := validateCommon(s); err != nil {
		return err
	}
	if strings.TrimSpace(s.Title) == "" {
		return fmt.Errorf("%w: seo entry %q has no title", ErrValidation, s.Page)
	}
	return nil
}

// NewEntry returns an empty entry for kind
func NewEntry(kind Kind) (Entry, error) {
	switch kind {
	case KindPost:
		return &BlogPost{}, nil
	case KindService:
		return &Service{}, nil
	case KindTeamMember:
		return &TeamMember{}, nil
	case KindCaseStudy:
		return &CaseStudy{}, nil
	case KindPricingPlan:
		return &PricingPlan{}, nil
	case KindTestimonial:
		return &Testimonial{}, nil
	case KindFAQ:
		return &FAQ{}, nil
	case KindIntegration:
		return &Integration{}, nil
	case KindSEO:
		return &SEOMeta{}, nil
	default:
		return nil, fmt.Errorf("unknown content kind %q", kind)
	}
}
