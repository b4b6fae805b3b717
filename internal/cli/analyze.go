package cli

import (
	"fmt"
	"strconv"

	"github.com/alanmeadows/applybot/internal/issue"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var (
	analyzeInteractive bool
	analyzeDryRun      bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <pr>",
	Short: "Analyze changed files and post issue comments",
	Long: `Run the analysis stage for a pull request: every changed file is reviewed
by the LLM and each issue with a patch that applies is posted as an inline
comment carrying the apply call to action. Issues already posted are skipped.

With --interactive you pick which issues to post for each file.
With --dry-run the issues are printed and nothing is posted.`,
	Example: `  applybot analyze 42
  applybot analyze 42 --interactive
  applybot analyze https://github.com/acme/api/pull/42 --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var found []issue.Record
		so := sessionOptions{analyze: true}
		switch {
		case analyzeDryRun:
			so.selectIssues = func(file string, records []issue.Record) ([]issue.Record, error) {
				found = append(found, records...)
				return nil, nil
			}
		case analyzeInteractive:
			so.selectIssues = pickIssues
		}

		s, err := openSession(ctx, "", "", args[0], so)
		if err != nil {
			return err
		}
		defer s.Close()

		res, err := s.runner.HandleOpened(ctx, s.pr)
		if analyzeDryRun {
			if err != nil {
				return err
			}
			if len(found) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No new issues found.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nFound %d issues (dry run, nothing posted):\n\n", len(found))
			rows := make([][]string, 0, len(found))
			for i, rec := range found {
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					rec.Severity,
					rec.File,
					strconv.Itoa(rec.Line),
					truncateStr(rec.Description, 80),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"#", "SEVERITY", "FILE", "LINE", "ISSUE"}, rows))
			return nil
		}
		return finish(ctx, cmd.OutOrStdout(), s.repo.Root(), "opened", s.pr.Owner+"/"+s.pr.Repo, s.pr.ID, res, err)
	},
}

func init() {
	analyzeCmd.Flags().BoolVarP(&analyzeInteractive, "interactive", "i", false, "Choose which issues to post")
	analyzeCmd.Flags().BoolVar(&analyzeDryRun, "dry-run", false, "Print issues without posting them")
	analyzeCmd.MarkFlagsMutuallyExclusive("interactive", "dry-run")
}

// pickIssues asks which of the issues found in file should be posted.
func pickIssues(file string, records []issue.Record) ([]issue.Record, error) {
	if len(records) == 0 {
		return nil, nil
	}

	options := make([]huh.Option[int], 0, len(records))
	for i, rec := range records {
		label := fmt.Sprintf("[%s] %s:%d %s", rec.Severity, rec.File, rec.Line, truncateStr(rec.Description, 60))
		options = append(options, huh.NewOption(label, i).Selected(true))
	}

	var selected []int
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[int]().
				Title(fmt.Sprintf("Select issues to post for %s", file)).
				Options(options...).
				Value(&selected),
		),
	)
	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("selection cancelled: %w", err)
	}

	picked := make([]issue.Record, 0, len(selected))
	for _, i := range selected {
		picked = append(picked, records[i])
	}
	return picked, nil
}

// truncateStr shortens s to at most n runes, ending with "...".
func truncateStr(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
