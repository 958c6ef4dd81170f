package cli

import (
	"fmt"
	"strings"

	"github.com/alanmeadows/backport/internal/backport"
	"github.com/spf13/cobra"
)

var parsePR int

func init() {
	parseCmd.Flags().IntVar(&parsePR, "pr", 0, "Pull request number used to preview the working branch")
}

var parseCmd = &cobra.Command{
	Use:   "parse <comment>",
	Short: "Show what a comment would trigger",
	Long: `Parse a comment the way a run would and print the target branch and the
working branch it would push. Nothing is fetched, posted or pushed.`,
	Example: `  backport parse "/backport to release/8.0" --pr 42`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := backport.ParseTrigger(strings.Join(args, " "))
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "target: %s\n", target)
		if parsePR > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "branch: %s\n", backport.WorkingBranch(parsePR, target))
		}
		return nil
	},
}
