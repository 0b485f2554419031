package cmd

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/psantana5/agencysite/pkg/models"
)

var (
	leadsLimit       int
	subscribersLimit int
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Inspect contact form leads",
}

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List leads, newest first",
	RunE:  runLeadsList,
}

var subscribersCmd = &cobra.Command{
	Use:   "subscribers",
	Short: "Inspect newsletter subscribers",
}

var subscribersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List newsletter subscribers",
	RunE:  runSubscribersList,
}

func init() {
	rootCmd.AddCommand(leadsCmd)
	leadsCmd.AddCommand(leadsListCmd)
	leadsListCmd.Flags().IntVar(&leadsLimit, "limit", 50, "maximum number of leads to show")

	rootCmd.AddCommand(subscribersCmd)
	subscribersCmd.AddCommand(subscribersListCmd)
	subscribersListCmd.Flags().IntVar(&subscribersLimit, "limit", 100, "maximum number of subscribers to show")
}

func runLeadsList(cmd *cobra.Command, args []string) error {
	var result struct {
		Leads []*models.Lead `json:"leads"`
		Count int            `json:"count"`
	}
	if err := doJSON("GET", fmt.Sprintf("/admin/leads?limit=%d", leadsLimit), nil, &result); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if IsJSONOutput() {
		return printJSON(out, result)
	}
	if len(result.Leads) == 0 {
		fmt.Fprintln(out, "No leads found")
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.Header("Received", "Name", "Email", "Company", "Tasks", "Budget")
	for _, l := range result.Leads {
		table.Append(
			l.CreatedAt.Format("2006-01-02 15:04"),
			l.Name,
			l.Email,
			l.Company,
			strings.Join(l.Tasks, ", "),
			l.Budget,
		)
	}
	table.Render()
	fmt.Fprintf(out, "\nTotal leads: %d\n", result.Count)
	return nil
}

func runSubscribersList(cmd *cobra.Command, args []string) error {
	var result struct {
		Subscribers []*models.Subscriber `json:"subscribers"`
		Count       int                  `json:"count"`
	}
	if err := doJSON("GET", fmt.Sprintf("/admin/subscribers?limit=%d", subscribersLimit), nil, &result); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if IsJSONOutput() {
		return printJSON(out, result)
	}
	if len(result.Subscribers) == 0 {
		fmt.Fprintln(out, "No subscribers found")
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.Header("Email", "Source", "Subscribed")
	for _, s := range result.Subscribers {
		table.Append(s.Email, s.Source, s.CreatedAt.Format("2006-01-02 15:04"))
	}
	table.Render()
	fmt.Fprintf(out, "\nTotal subscribers: %d\n", result.Count)
	return nil
}
