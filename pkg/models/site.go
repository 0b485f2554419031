package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Setting keys with a typed value
const (
	SettingSiteConfig       = "site_config"
	SettingHomePage         = "home_page"
	SettingAboutPage        = "about_page"
	SettingChatSystemPrompt = "chat_system_prompt"
)

// Setting is a key/value row. Value holds arbitrary JSON.
type Setting struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Link is a navigation or social link
type Link struct {
	Label string `json:"label" yaml:"label" toml:"label"`
	URL   string `json:"url" yaml:"url" toml:"url"`
}

// SiteConfig is the global site configuration
type SiteConfig struct {
	Name         string `json:"name" yaml:"name" toml:"name"`
	Tagline      string `json:"tagline" yaml:"tagline" toml:"tagline"`
	ContactEmail string `json:"contact_email" yaml:"contact_email" toml:"contact_email"`
	ContactPhone string `json:"contact_phone,omitempty" yaml:"contact_phone" toml:"contact_phone"`
	Address      string `json:"address,omitempty" yaml:"address" toml:"address"`
	Navigation   []Link `json:"navigation" yaml:"navigation" toml:"navigation"`
	Social       []Link `json:"social,omitempty" yaml:"social" toml:"social"`
	FooterText   string `json:"footer_text,omitempty" yaml:"footer_text" toml:"footer_text"`
	BookingURL   string `json:"booking_url,omitempty" yaml:"booking_url" toml:"booking_url"`
}

// IsComplete reports whether the config can be shown as-is
func (c SiteConfig) IsComplete() bool {
	return strings.TrimSpace(c.Name) != "" && len(c.Navigation) > 0
}

// Hero is the top section of the home page
type Hero struct {
	Headline    string `json:"headline" yaml:"headline" toml:"headline"`
	Subheadline string `json:"subheadline" yaml:"subheadline" toml:"subheadline"`
	CTALabel    string `json:"cta_label" yaml:"cta_label" toml:"cta_label"`
	CTAURL      string `json:"cta_url" yaml:"cta_url" toml:"cta_url"`
	Image       string `json:"image,omitempty" yaml:"image" toml:"image"`
}

// HomePage is the editable part of the home page
type HomePage struct {
	Hero             Hero     `json:"hero" yaml:"hero" toml:"hero"`
	Stats            []Metric `json:"stats,omitempty" yaml:"stats" toml:"stats"`
	FeaturedServices []string `json:"featured_services,omitempty" yaml:"featured_services" toml:"featured_services"`
	ProcessSteps     []string `json:"process_steps,omitempty" yaml:"process_steps" toml:"process_steps"`
	ClosingCTA       string   `json:"closing_cta,omitempty" yaml:"closing_cta" toml:"closing_cta"`
}

// IsComplete reports whether the home page has a hero to show
func (h HomePage) IsComplete() bool {
	return strings.TrimSpace(h.Hero.Headline) != ""
}

// AboutPage is the editable part of the about page
type AboutPage struct {
	Headline string   `json:"headline" yaml:"headline" toml:"headline"`
	Story    string   `json:"story" yaml:"story" toml:"story"`
	Mission  string   `json:"mission" yaml:"mission" toml:"mission"`
	Values   []string `json:"values,omitempty" yaml:"values" toml:"values"`
}

// IsComplete reports whether the about page has a story to show
func (a AboutPage) IsComplete() bool {
	return strings.TrimSpace(a.Headline) != "" && strings.TrimSpace(a.Story) != ""
}
