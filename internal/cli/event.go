package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alanmeadows/applybot/internal/pipeline"
	ghbackend "github.com/alanmeadows/applybot/internal/provider/github"
	"github.com/spf13/cobra"
)

var (
	eventName string
	eventPath string
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Handle the current GitHub Actions event",
	Long: `Read the event that triggered the workflow and run the matching stage:

  pull_request opened/reopened       analyze changed files and post issues
  pull_request synchronize           refresh pending issues on changed files
  pull_request_review_comment created apply the patch if the reply asks for it

The event name and payload default to GITHUB_EVENT_NAME and GITHUB_EVENT_PATH.
Results are written to GITHUB_OUTPUT when it is set.`,
	Example: `  applybot event
  applybot event --name pull_request_review_comment --payload event.json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		name := eventName
		if name == "" {
			name = os.Getenv("GITHUB_EVENT_NAME")
		}
		path := eventPath
		if path == "" {
			path = os.Getenv("GITHUB_EVENT_PATH")
		}
		if name == "" || path == "" {
			return fmt.Errorf("event name and payload are required (set GITHUB_EVENT_NAME and GITHUB_EVENT_PATH)")
		}

		payload, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading event payload: %w", err)
		}
		ev, err := ghbackend.ParseEvent(name, payload)
		if err != nil {
			return err
		}
		if ev.Kind == ghbackend.EventIgnored {
			slog.Info("event ignored", "event", ev.Name, "action", ev.Action)
			return writeStepOutputs(nil)
		}

		slog.Info("handling event", "event", ev.Name, "action", ev.Action, "stage", ev.Kind.String(), "pr", ev.PRNumber)
		s, err := openSession(ctx, ev.Owner, ev.Repo, ev.PRID(), sessionOptions{analyze: ev.Kind == ghbackend.EventOpened})
		if err != nil {
			return err
		}
		defer s.Close()

		var res *pipeline.Result
		switch ev.Kind {
		case ghbackend.EventOpened:
			res, err = s.runner.HandleOpened(ctx, s.pr)
		case ghbackend.EventSynchronize:
			res, err = s.runner.HandleSynchronize(ctx, s.pr, ev.Before, ev.HeadSHA)
		case ghbackend.EventReply:
			res, err = s.runner.HandleReply(ctx, s.pr, ev.CommentID)
		}
		return finish(ctx, cmd.OutOrStdout(), s.repo.Root(), ev.Kind.String(), ev.Owner+"/"+ev.Repo, s.pr.ID, res, err)
	},
}

func init() {
	eventCmd.Flags().StringVar(&eventName, "name", "", "Event name (default $GITHUB_EVENT_NAME)")
	eventCmd.Flags().StringVar(&eventPath, "payload", "", "Path to the event payload (default $GITHUB_EVENT_PATH)")
}
