package cmd

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/psantana5/agencysite/pkg/calculator"
)

var (
	calcPresets []string
	calcTasks   int
	calcRate    float64
)

var calcCmd = &cobra.Command{
	Use:   "calc",
	Short: "Estimate automation savings with the ROI calculator",
	Long: `Runs the public ROI calculator of the site.

Examples:
  sitectl calc --preset lead-followup --preset data-entry --tasks 80 --rate 55`,
	RunE: runCalc,
}

func init() {
	rootCmd.AddCommand(calcCmd)
	calcCmd.Flags().StringSliceVarP(&calcPresets, "preset", "p", nil, "task preset id (repeatable)")
	calcCmd.Flags().IntVar(&calcTasks, "tasks", 0, "tasks per week (default from the server)")
	calcCmd.Flags().Float64Var(&calcRate, "rate", 0, "hourly rate (default from the server)")
}

func runCalc(cmd *cobra.Command, args []string) error {
	in := calculator.Input{Presets: calcPresets}
	if cmd.Flags().Changed("tasks") {
		in.TasksPerWeek = &calcTasks
	}
	if cmd.Flags().Changed("rate") {
		in.HourlyRate = &calcRate
	}

	var result calculator.Result
	if err := doJSON("POST", "/api/calculator/roi", in, &result); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if IsJSONOutput() {
		return printJSON(out, result)
	}

	fmt.Fprintf(out, "Tasks per week:     %d\n", result.TasksPerWeek)
	fmt.Fprintf(out, "Hourly rate:        %.2f\n", result.HourlyRate)
	fmt.Fprintf(out, "Hours saved/month:  %.1f\n", result.HoursSavedPerMonth)
	fmt.Fprintf(out, "Monthly savings:    %.2f\n", result.MonthlySavings)
	fmt.Fprintf(out, "Annual savings:     %.2f\n", result.AnnualSavings)
	fmt.Fprintf(out, "Efficiency:         %.0f%%\n", result.EfficiencyPercent)

	if len(result.Breakdown) > 0 {
		fmt.Fprintln(out)
		table := tablewriter.NewWriter(out)
		table.Header("Preset", "Minutes/Week", "Minutes Saved/Week")
		for _, b := range result.Breakdown {
			table.Append(b.Name, fmt.Sprintf("%.0f", b.WeeklyMinutes), fmt.Sprintf("%.0f", b.WeeklyMinutesSaved))
		}
		table.Render()
	}
	return nil
}
