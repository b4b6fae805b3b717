package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var applyCommentID string

var applyCmd = &cobra.Command{
	Use:   "apply <pr>",
	Short: "Apply the patch a reply asks for",
	Long: `Run the apply flow for one reply, exactly as "applybot event" does for a
pull_request_review_comment event. The reply must carry the apply command and
answer an issue comment posted by the bot.

<pr> is a pull request number (with --repo or $GITHUB_REPOSITORY) or URL.
The current directory must be a checkout of the pull request branch.`,
	Example: `  applybot apply 42 --comment 1834567890
  applybot apply https://github.com/acme/api/pull/42 --comment 1834567890`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if applyCommentID == "" {
			return fmt.Errorf("--comment is required")
		}

		s, err := openSession(ctx, "", "", args[0], sessionOptions{})
		if err != nil {
			return err
		}
		defer s.Close()

		res, err := s.runner.HandleReply(ctx, s.pr, applyCommentID)
		return finish(ctx, cmd.OutOrStdout(), s.repo.Root(), "reply", s.pr.Owner+"/"+s.pr.Repo, s.pr.ID, res, err)
	},
}

func init() {
	applyCmd.Flags().StringVar(&applyCommentID, "comment", "", "ID of the reply carrying the apply command")
}
