package cli

import (
	"context"
	"fmt"

	"github.com/alanmeadows/backport/internal/config"
	"github.com/alanmeadows/backport/internal/logging"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
	appConfig  *config.Config

	rootCmd = &cobra.Command{
		Use:   "backport",
		Short: "Replay a merged pull request onto another branch on request",
		Long: `backport reacts to "/backport to <branch>" comments on pull requests.

It replays the pull request's patch onto the named branch, force-pushes the
result to backport/pr-<number>-to-<branch> and reports progress and failures
back on the pull request.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to an additional JSONC config file")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		logging.Setup(verbose)
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		appConfig = cfg
		return nil
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(configCmd)
}

// Execute runs the command line with ctx as the root context.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
