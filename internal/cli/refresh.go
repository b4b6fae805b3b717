package cli

import (
	"github.com/spf13/cobra"
)

var refreshFiles []string

var refreshCmd = &cobra.Command{
	Use:   "refresh <pr>",
	Short: "Recompute pending patches against the current branch",
	Long: `Rewrite the patch and line of every pending issue comment so it applies to
the files in the current checkout. Applied issues are left alone.

Without --file every file the pull request touches is refreshed.`,
	Example: `  applybot refresh 42
  applybot refresh 42 --file internal/server/server.go`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := openSession(ctx, "", "", args[0], sessionOptions{})
		if err != nil {
			return err
		}
		defer s.Close()

		res, err := s.runner.Refresh(ctx, s.pr, refreshFiles)
		return finish(ctx, cmd.OutOrStdout(), s.repo.Root(), "refresh", s.pr.Owner+"/"+s.pr.Repo, s.pr.ID, res, err)
	},
}

func init() {
	refreshCmd.Flags().StringSliceVar(&refreshFiles, "file", nil, "Limit the refresh to these files (repeatable)")
}
