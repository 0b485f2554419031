package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/psantana5/agencysite/pkg/models"
)

var webhooksCmd = &cobra.Command{
	Use:   "webhooks",
	Short: "Manage outgoing webhooks",
}

var webhooksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered webhooks",
	RunE:  runWebhooksList,
}

var webhooksTestCmd = &cobra.Command{
	Use:   "test <webhook-id>",
	Short: "Send a test event to a webhook",
	Args:  cobra.ExactArgs(1),
	RunE:  runWebhooksTest,
}

var webhooksDeliveriesCmd = &cobra.Command{
	Use:   "deliveries <webhook-id>",
	Short: "Show recent deliveries of a webhook",
	Args:  cobra.ExactArgs(1),
	RunE:  runWebhooksDeliveries,
}

func init() {
	rootCmd.AddCommand(webhooksCmd)
	webhooksCmd.AddCommand(webhooksListCmd)
	webhooksCmd.AddCommand(webhooksTestCmd)
	webhooksCmd.AddCommand(webhooksDeliveriesCmd)
}

func runWebhooksList(cmd *cobra.Command, args []string) error {
	var result struct {
		Webhooks []*models.Webhook `json:"webhooks"`
		Count    int               `json:"count"`
	}
	if err := doJSON("GET", "/admin/webhooks", nil, &result); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if IsJSONOutput() {
		return printJSON(out, result)
	}
	if len(result.Webhooks) == 0 {
		fmt.Fprintln(out, "No webhooks registered")
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.Header("ID", "Name", "URL", "Events", "Active", "Filter")
	for _, h := range result.Webhooks {
		active := "no"
		if h.Active {
			active = "yes"
		}
		table.Append(h.ID, h.Name, h.URL, strings.Join(h.Events, ", "), active, h.Filter)
	}
	table.Render()
	fmt.Fprintf(out, "\nTotal webhooks: %d\n", result.Count)
	return nil
}

func runWebhooksTest(cmd *cobra.Command, args []string) error {
	var d models.WebhookDelivery
	if err := doJSON("POST", "/admin/webhooks/"+args[0]+"/test", nil, &d); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if IsJSONOutput() {
		return printJSON(out, d)
	}
	if d.Status == models.DeliverySucceeded {
		fmt.Fprintf(out, "✓ Test event delivered (HTTP %d, %d attempt(s), %dms)\n", d.StatusCode, d.Attempts, d.DurationMs)
		return nil
	}
	fmt.Fprintf(out, "✗ Test event %s after %d attempt(s)\n", d.Status, d.Attempts)
	if d.Error != "" {
		fmt.Fprintf(out, "  Error: %s\n", d.Error)
	}
	return fmt.Errorf("webhook test %s", d.Status)
}

func runWebhooksDeliveries(cmd *cobra.Command, args []string) error {
	var result struct {
		Deliveries []*models.WebhookDelivery `json:"deliveries"`
		Count      int                       `json:"count"`
	}
	if err := doJSON("GET", "/admin/webhooks/"+args[0]+"/deliveries", nil, &result); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if IsJSONOutput() {
		return printJSON(out, result)
	}
	if len(result.Deliveries) == 0 {
		fmt.Fprintln(out, "No deliveries yet")
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.Header("Delivered", "Event", "Status", "HTTP", "Attempts", "Error")
	for _, d := range result.Deliveries {
		code := "-"
		if d.StatusCode > 0 {
			code = strconv.Itoa(d.StatusCode)
		}
		table.Append(
			d.DeliveredAt.Format("2006-01-02 15:04:05"),
			d.EventType,
			string(d.Status),
			code,
			strconv.Itoa(d.Attempts),
			d.Error,
		)
	}
	table.Render()
	return nil
}
