package cli

import (
	"fmt"
	"strconv"

	"github.com/alanmeadows/backport/internal/store"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Inspect reports of past runs",
}

func init() {
	reportCmd.AddCommand(reportListCmd)
	reportCmd.AddCommand(reportShowCmd)
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List run reports",
	Long: `Display the reports written by past runs in a table, newest first.

Reports are stored in reports.dir (default ~/.local/share/backport/runs).`,
	Example: `  backport report list`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reports, err := store.NewReports(appConfig.Reports.Dir).List(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing reports: %w", err)
		}

		if len(reports) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No run reports in", appConfig.Reports.Dir)
			return nil
		}

		headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
		cellStyle := lipgloss.NewStyle().Padding(0, 1)

		rows := make([][]string, 0, len(reports))
		for _, r := range reports {
			updated := "no"
			if r.Existed {
				updated = "yes"
			}
			rows = append(rows, []string{
				r.RunID,
				fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.PR),
				r.Target,
				r.Outcome,
				updated,
				r.Finished.Local().Format("2006-01-02 15:04"),
			})
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("RUN", "PULL REQUEST", "TARGET", "OUTCOME", "UPDATE", "FINISHED").
			Rows(rows...).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return cellStyle
			})

		fmt.Fprintln(cmd.OutOrStdout(), t)
		return nil
	},
}

var reportShowCmd = &cobra.Command{
	Use:     "show <run-id>",
	Short:   "Show one run report",
	Example: `  backport report show 123456789`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := store.NewReports(appConfig.Reports.Dir).Read(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		labelStyle := lipgloss.NewStyle().Bold(true)
		out := cmd.OutOrStdout()

		fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Run:"), r.RunID)
		fmt.Fprintf(out, "%s %s/%s#%d\n", labelStyle.Render("Pull request:"), r.Owner, r.Repo, r.PR)
		fmt.Fprintf(out, "%s %s → %s\n", labelStyle.Render("Branch:"), r.WorkingBranch, r.Target)
		fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Outcome:"), r.Outcome)
		fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Updated existing:"), strconv.FormatBool(r.Existed))
		if r.ExistingPR != 0 {
			fmt.Fprintf(out, "%s #%d %s\n", labelStyle.Render("Backport PR:"), r.ExistingPR, r.ExistingPRURL)
		}
		if r.Error != "" {
			fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Error:"), r.Error)
		}
		fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Finished:"), store.FormatTime(r.Finished))
		if r.Transcript != "" {
			fmt.Fprintf(out, "\n%s\n%s", labelStyle.Render("Transcript:"), r.Transcript)
		}
		return nil
	},
}
