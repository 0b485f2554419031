package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/psantana5/agencysite/pkg/calculator"
	"github.com/psantana5/agencysite/pkg/content"
)

// GetSite returns the global site configuration
func (h *Handler) GetSite(w http.ResponseWriter, r *http.Request) {
	site, src := h.resolver.SiteConfig(r.Context())
	writeContent(w, src, site)
}

// GetHome returns everything the home page renders
func (h *Handler) GetHome(w http.ResponseWriter, r *http.Request) {
	view, err := h.resolver.HomeView(r.Context())
	if err != nil {
		h.writeStoreError(w, r, "load home page", err)
		return
	}
	writeContent(w, view.Source(), view)
}

// GetAbout returns the about page with the team
func (h *Handler) GetAbout(w http.ResponseWriter, r *http.Request) {
	page, pageSrc := h.resolver.AboutPage(r.Context())
	team, teamSrc := h.resolver.TeamMembers(r.Context())
	writeContent(w, content.Combine(pageSrc, teamSrc), map[string]interface{}{
		"page": page,
		"team": team,
	})
}

// ListServices returns published services
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	list, src := h.resolver.Services(r.Context())
	writeContent(w, src, list)
}

// GetService returns one service by slug
func (h *Handler) GetService(w http.ResponseWriter, r *http.Request) {
	svc, src, err := h.resolver.Service(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		h.writeStoreError(w, r, "load service", err)
		return
	}
	writeContent(w, src, svc)
}

// ListTeam returns published team members
func (h *Handler) ListTeam(w http.ResponseWriter, r *http.Request) {
	list, src := h.resolver.TeamMembers(r.Context())
	writeContent(w, src, list)
}

// ListPosts returns published blog posts, newest first
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	list, src := h.resolver.BlogPosts(r.Context())
	if tag := strings.TrimSpace(r.URL.Query().Get("tag")); tag != "" {
		filtered := list[:0:0]
		for _, p := range list {
			for _, t := range p.Tags {
				if strings.EqualFold(t, tag) {
					filtered = append(filtered, p)
					break
				}
			}
		}
		list = filtered
	}
	writeContent(w, src, list)
}

// GetPost returns one blog post by slug
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	post, src, err := h.resolver.BlogPost(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		h.writeStoreError(w, r, "load post", err)
		return
	}
	writeContent(w, src, post)
}

// ListCaseStudies returns published case studies
func (h *Handler) ListCaseStudies(w http.ResponseWriter, r *http.Request) {
	list, src := h.resolver.CaseStudies(r.Context())
	writeContent(w, src, list)
}

// GetCaseStudy returns one case study by slug
func (h *Handler) GetCaseStudy(w http.ResponseWriter, r *http.Request) {
	cs, src, err := h.resolver.CaseStudy(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		h.writeStoreError(w, r, "load case study", err)
		return
	}
	writeContent(w, src, cs)
}

// ListPricing returns published pricing plans
func (h *Handler) ListPricing(w http.ResponseWriter, r *http.Request) {
	list, src := h.resolver.PricingPlans(r.Context())
	writeContent(w, src, list)
}

// ListTestimonials returns published testimonials
func (h *Handler) ListTestimonials(w http.ResponseWriter, r *http.Request) {
	list, src := h.resolver.Testimonials(r.Context())
	writeContent(w, src, list)
}

// ListFAQs returns published FAQs
func (h *Handler) ListFAQs(w http.ResponseWriter, r *http.Request) {
	list, src := h.resolver.FAQs(r.Context())
	writeContent(w, src, list)
}

// ListIntegrations returns published integrations
func (h *Handler) ListIntegrations(w http.ResponseWriter, r *http.Request) {
	list, src := h.resolver.Integrations(r.Context())
	writeContent(w, src, list)
}

// GetSEO returns the metadata for ?page=, defaulting to the home page
func (h *Handler) GetSEO(w http.ResponseWriter, r *http.Request) {
	page := strings.TrimSpace(r.URL.Query().Get("page"))
	if page == "" {
		page = "home"
	}
	meta, src := h.resolver.SEO(r.Context(), page)
	writeContent(w, src, meta)
}

// ListPresets returns the calculator task presets and slider bounds
func (h *Handler) ListPresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"presets": calculator.Presets,
		"tasks_per_week": map[string]int{
			"min":     calculator.MinTasksPerWeek,
			"max":     calculator.MaxTasksPerWeek,
			"default": calculator.DefaultTasksPerWeek,
		},
		"hourly_rate": map[string]float64{
			"min":     calculator.MinHourlyRate,
			"max":     calculator.MaxHourlyRate,
			"default": calculator.DefaultHourlyRate,
		},
	})
}

// CalculateROI runs the savings calculator
func (h *Handler) CalculateROI(w http.ResponseWriter, r *http.Request) {
	var in calculator.Input
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := calculator.Calculate(in)
	if err != nil {
		h.writeStoreError(w, r, "calculate savings", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
