package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alanmeadows/applybot/internal/config"
	"github.com/alanmeadows/applybot/internal/logging"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
	repoFlag   string
	appConfig  *config.Config
	rootCmd    = &cobra.Command{
		Use:   "applybot",
		Short: "Apply and refresh the patches suggested in pull request review comments",
		Long: `applybot posts suggested fixes as review comments, applies a fix when someone
replies with the apply command, and keeps the remaining suggestions in sync
with the branch after every push.

It is meant to run as a GitHub Actions step ("applybot event") but every
stage can also be run by hand against a pull request.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Extra config file merged over user and repo config")
	rootCmd.PersistentFlags().StringVar(&repoFlag, "repo", "", "Repository as owner/name (default $GITHUB_REPOSITORY)")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		logging.Setup(verbose)
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		appConfig = cfg
		return nil
	}

	rootCmd.AddCommand(eventCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(configCmd)
}

// Execute runs the root command until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
