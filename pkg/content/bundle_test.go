package content

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psantana5/agencysite/pkg/models"
)

func TestDefaultBundleIsValid(t *testing.T) {
	b, err := DefaultBundle()
	require.NoError(t, err)

	assert.True(t, b.Site.IsComplete())
	assert.True(t, b.Home.IsComplete())
	assert.True(t, b.About.IsComplete())
	assert.NotEmpty(t, b.ChatSystemPrompt)

	for name, n := range map[string]int{
		"services":     len(b.Services),
		"team":         len(b.Team),
		"posts":        len(b.Posts),
		"case_studies": len(b.CaseStudies),
		"pricing":      len(b.Pricing),
		"testimonials": len(b.Testimonials),
		"faqs":         len(b.FAQs),
		"integrations": len(b.Integrations),
		"seo":          len(b.SEO),
	} {
		assert.NotZero(t, n, name)
	}

	for _, s := range b.Services {
		assert.True(t, s.Published)
		assert.NotEmpty(t, s.Slug)
	}
	for _, p := range b.Posts {
		assert.NotEmpty(t, p.BodyHTML)
		assert.GreaterOrEqual(t, p.ReadingMinutes, 1)
	}
}

func TestDefaultBundleOrdering(t *testing.T) {
	b := MustDefaultBundle()

	var slugs []string
	for _, s := range b.Services {
		slugs = append(slugs, s.Slug)
	}
	want := []string{"workflow-automation", "crm-integration", "ai-assistants", "automated-reporting"}
	if diff := cmp.Diff(want, slugs); diff != "" {
		t.Errorf("service order mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, b.Posts, 2)
	assert.Equal(t, "five-tasks-every-small-business-should-automate-first", b.Posts[0].Slug)
}

func TestHomeFeaturedSlugsExistInBundle(t *testing.T) {
	b := MustDefaultBundle()
	for _, slug := range b.Home.FeaturedServices {
		assert.NotNil(t, findBySlug(b.Services, slug), slug)
	}
}

const tomlBundle = `
chat_system_prompt = "Be brief."

[site]
name = "Toml Co"
tagline = "From TOML"

[[site.navigation]]
label = "Home"
url = "/"

[[services]]
name = "Second Service"
sort_order = 2

[[services]]
name = "First Service"
sort_order = 1
`

func TestLoadBundleFileTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.toml")
	require.NoError(t, os.WriteFile(path, []byte(tomlBundle), 0644))

	b, err := LoadBundleFile(path)
	require.NoError(t, err)

	assert.Equal(t, "Toml Co", b.Site.Name)
	assert.Equal(t, []models.Link{{Label: "Home", URL: "/"}}, b.Site.Navigation)
	require.Len(t, b.Services, 2)
	assert.Equal(t, "first-service", b.Services[0].Slug)
	assert.Equal(t, "first-service", b.Services[0].ID)
}

func TestLoadBundleFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.yml")
	require.NoError(t, os.WriteFile(path, []byte(overrideYAML("YAML Co")), 0644))

	b, err := LoadBundleFile(path)
	require.NoError(t, err)
	assert.Equal(t, "YAML Co", b.Site.Name)
}

func TestLoadBundleFileRejectsInvalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "content.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("services:\n  - name: \"\"\n"), 0644))
	_, err := LoadBundleFile(bad)
	assert.ErrorIs(t, err, models.ErrValidation)

	dup := filepath.Join(dir, "dup.yaml")
	require.NoError(t, os.WriteFile(dup, []byte("faqs:\n  - question: Why?\n  - question: why\n"), 0644))
	_, err = LoadBundleFile(dup)
	assert.ErrorIs(t, err, models.ErrValidation)

	unknown := filepath.Join(dir, "content.json")
	require.NoError(t, os.WriteFile(unknown, []byte("{}"), 0644))
	_, err = LoadBundleFile(unknown)
	assert.Error(t, err)
}

func overrideYAML(name string) string {
	return `site:
  name: ` + name + `
  navigation:
    - {label: Home, url: /}
services:
  - name: Only Service
`
}
