package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/alanmeadows/backport/internal/config"
	"github.com/spf13/cobra"
	"github.com/tidwall/jsonc"
	"github.com/tidwall/sjson"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage backport configuration",
	Long:  `Show and modify backport configuration values.`,
}

var configJSONFlag bool

func init() {
	configShowCmd.Flags().BoolVar(&configJSONFlag, "json", false, "Output raw JSON without formatting")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show merged configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appConfig
		if cfg == nil {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
		}

		redacted := redactConfig(cfg)

		var data []byte
		var err error
		if configJSONFlag {
			data, err = json.Marshal(redacted)
		} else {
			data, err = json.MarshalIndent(redacted, "", "  ")
		}
		if err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

// redactConfig returns a copy of the config with secret fields masked.
func redactConfig(cfg *config.Config) *config.Config {
	c := *cfg
	if c.GitHub.Token != "" {
		c.GitHub.Token = "***"
	}
	return &c
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value",
	Long: `Set a configuration value using a dotted key path.

The value is written to .backport/backport.jsonc in the repository root.
The file is created if it does not exist.

Note: JSONC comments are not preserved on write.

Examples:
  backport config set git.remote upstream
  backport config set git.lock_timeout 2m
  backport config set reports.enabled false`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		value := parseConfigValue(args[1])

		repoRoot := config.RepoRoot()
		if repoRoot == "" {
			return fmt.Errorf("not in a git repository")
		}

		if err := setConfigValue(filepath.Join(repoRoot, ".backport", "backport.jsonc"), key, value); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\n", key, value)
		return nil
	},
}

// parseConfigValue types a command-line value: bool, then integer, then
// float, else string.
func parseConfigValue(raw string) any {
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

// setConfigValue writes key=value into the JSONC file at path.
func setConfigValue(path, key string, value any) error {
	existing := []byte("{}")
	if data, err := os.ReadFile(path); err == nil {
		// sjson needs plain JSON.
		existing = jsonc.ToJSON(data)
	}

	updated, err := sjson.SetBytes(existing, key, value)
	if err != nil {
		return fmt.Errorf("setting key %q: %w", key, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, updated, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
