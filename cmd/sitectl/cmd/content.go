package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/psantana5/agencysite/pkg/content"
	"github.com/psantana5/agencysite/pkg/models"
)

var (
	postsCmd = &cobra.Command{
		Use:   "posts",
		Short: "Manage blog posts",
	}
	postsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List blog posts, drafts included",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEntriesList(cmd, models.KindPost)
		},
	}
	servicesCmd = &cobra.Command{
		Use:   "services",
		Short: "Manage services",
	}
	servicesListCmd = &cobra.Command{
		Use:   "list",
		Short: "List services, drafts included",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEntriesList(cmd, models.KindService)
		},
	}
)

var contentCmd = &cobra.Command{
	Use:   "content",
	Short: "Content collections and bundles",
}

var contentListCmd = &cobra.Command{
	Use:   "list <kind>",
	Short: "List the entries of any content collection",
	Long:  `Lists a content collection. Kinds: ` + kindNames() + `.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := models.Kind(args[0])
		if !kind.IsValid() {
			return fmt.Errorf("unknown kind %q (expected one of %s)", args[0], kindNames())
		}
		return runEntriesList(cmd, kind)
	},
}

var contentCheckCmd = &cobra.Command{
	Use:   "check <bundle-file>",
	Short: "Validate a YAML or TOML content bundle",
	Long: `Parses and validates a content bundle file the way siteserver does before
using it as fallback content. Nothing is sent to the server.`,
	Args: cobra.ExactArgs(1),
	RunE: runContentCheck,
}

func init() {
	rootCmd.AddCommand(postsCmd)
	postsCmd.AddCommand(postsListCmd)
	rootCmd.AddCommand(servicesCmd)
	servicesCmd.AddCommand(servicesListCmd)
	rootCmd.AddCommand(contentCmd)
	contentCmd.AddCommand(contentListCmd)
	contentCmd.AddCommand(contentCheckCmd)
}

func kindNames() string {
	names := make([]string, len(models.AllKinds))
	for i, k := range models.AllKinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

// entrySummary holds the fields shared by every content kind, plus the
// labels each kind is named by
type entrySummary struct {
	models.Meta
	Title    string `json:"title"`
	Name     string `json:"name"`
	Author   string `json:"author"`
	Question string `json:"question"`
	Page     string `json:"page"`
}

func (e entrySummary) label() string {
	for _, s := range []string{e.Title, e.Name, e.Author, e.Question, e.Page} {
		if s != "" {
			return s
		}
	}
	return ""
}

type entriesResponse struct {
	Kind    models.Kind    `json:"kind"`
	Entries []entrySummary `json:"entries"`
	Count   int            `json:"count"`
}

func runEntriesList(cmd *cobra.Command, kind models.Kind) error {
	var result entriesResponse
	if err := doJSON("GET", "/admin/"+string(kind), nil, &result); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if IsJSONOutput() {
		return printJSON(out, result)
	}
	if len(result.Entries) == 0 {
		fmt.Fprintf(out, "No %s found\n", kind)
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.Header("ID", "Slug", "Title", "Published", "Order", "Updated")
	for _, e := range result.Entries {
		published := "draft"
		if e.Published {
			published = "yes"
		}
		table.Append(
			e.ID,
			e.Slug,
			e.label(),
			published,
			strconv.Itoa(e.SortOrder),
			e.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}
	table.Render()
	fmt.Fprintf(out, "\nTotal %s: %d\n", kind, result.Count)
	return nil
}

func runContentCheck(cmd *cobra.Command, args []string) error {
	bundle, err := content.LoadBundleFile(args[0])
	if err != nil {
		return err
	}

	counts := map[string]int{
		"services":     len(bundle.Services),
		"team":         len(bundle.Team),
		"posts":        len(bundle.Posts),
		"case_studies": len(bundle.CaseStudies),
		"pricing":      len(bundle.Pricing),
		"testimonials": len(bundle.Testimonials),
		"faqs":         len(bundle.FAQs),
		"integrations": len(bundle.Integrations),
		"seo":          len(bundle.SEO),
	}
	out := cmd.OutOrStdout()
	if IsJSONOutput() {
		return printJSON(out, map[string]interface{}{
			"file":        args[0],
			"valid":       true,
			"site":        bundle.Site.Name,
			"collections": counts,
		})
	}

	fmt.Fprintf(out, "✓ %s is valid\n", args[0])
	fmt.Fprintf(out, "  Site: %s\n", bundle.Site.Name)
	if !bundle.Site.IsComplete() {
		fmt.Fprintln(out, "  Warning: site config has no name or navigation")
	}
	if !bundle.Home.IsComplete() {
		fmt.Fprintln(out, "  Warning: home page has no hero headline")
	}
	table := tablewriter.NewWriter(out)
	table.Header("Collection", "Entries")
	for _, k := range []string{"services", "team", "posts", "case_studies", "pricing", "testimonials", "faqs", "integrations", "seo"} {
		table.Append(k, strconv.Itoa(counts[k]))
	}
	table.Render()
	return nil
}
