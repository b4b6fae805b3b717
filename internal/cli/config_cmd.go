package cli

import (
	"encoding/json"
	"fmt"

	"github.com/alanmeadows/applybot/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage applybot configuration",
	Long:  `Show and modify applybot configuration values.`,
}

var (
	configJSONFlag bool
	configUserFlag bool
)

func init() {
	configShowCmd.Flags().BoolVar(&configJSONFlag, "json", false, "Output raw JSON without formatting")
	configSetCmd.Flags().BoolVar(&configUserFlag, "user", false, "Write to the user config instead of the repository config")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show merged configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		redacted := appConfig.Redacted()

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

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value",
	Long: `Set a configuration value using a dotted key path.

The value is written to .applybot/applybot.jsonc in the repository root, or
to the user config with --user. The file is created if it does not exist.

Note: JSONC comments are not preserved on write.`,
	Example: `  applybot config set refresh.max_comments 20
  applybot config set apply.resolve_thread true
  applybot config set --user analyze.model gpt-4.1`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var path string
		if configUserFlag {
			path = config.UserConfigPath()
			if path == "" {
				return fmt.Errorf("cannot determine user config directory")
			}
		} else {
			repoRoot := config.RepoRoot()
			if repoRoot == "" {
				return fmt.Errorf("not in a git repository")
			}
			path = config.RepoConfigPath(repoRoot)
		}

		value, err := config.Set(path, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v in %s\n", args[0], value, path)
		return nil
	},
}
