package cli

import (
	"fmt"

	"github.com/alanmeadows/applybot/internal/config"
	"github.com/alanmeadows/applybot/internal/store"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Inspect run reports",
	Long:  `Each run writes a markdown report under reports.dir in the repository.`,
}

var reportLimit int

func init() {
	reportListCmd.Flags().IntVarP(&reportLimit, "limit", "n", 20, "Show at most this many reports (0 for all)")
	reportCmd.AddCommand(reportListCmd)
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent run reports, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reports, err := store.ListReports(cmd.Context(), reportsDir(config.RepoRoot()))
		if err != nil {
			return err
		}
		if len(reports) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No run reports.")
			return nil
		}
		total := len(reports)
		if reportLimit > 0 && total > reportLimit {
			reports = reports[:reportLimit]
		}

		rows := make([][]string, 0, len(reports))
		for _, r := range reports {
			detail := r.Reason
			if r.Error != "" {
				detail = r.Error
			}
			rows = append(rows, []string{
				r.Time.Local().Format("2006-01-02 15:04:05"),
				r.Event,
				r.PR,
				r.Outcome,
				shortCommit(r.Commit),
				fmt.Sprintf("%d/%d/%d", r.Refreshed, r.RefreshSkipped, r.RefreshFailed),
				truncateStr(detail, 60),
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"TIME", "EVENT", "PR", "OUTCOME", "COMMIT", "REFRESH", "DETAIL"}, rows))
		fmt.Fprintf(cmd.OutOrStdout(), "%d of %d reports shown\n", len(rows), total)
		return nil
	},
}

func shortCommit(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
