package cli

import (
	"fmt"
	"strconv"

	"github.com/alanmeadows/applybot/internal/pipeline"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <pr>",
	Short: "List issue comments and their state",
	Long: `List every issue comment the bot posted on a pull request with its status,
the number of replies in its thread, and whether its patch was computed
against the file currently checked out.`,
	Example: `  applybot status 42`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := openSession(ctx, "", "", args[0], sessionOptions{})
		if err != nil {
			return err
		}
		defer s.Close()

		rows, err := s.runner.Status(ctx, s.pr)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No issue comments on PR #%s.\n", s.pr.ID)
			return nil
		}

		fmt.Fprintln(cmd.OutOrStdout(), statusTable(rows))
		return nil
	},
}

// statusTable renders one row per issue comment.
func statusTable(rows []pipeline.StatusRow) *table.Table {
	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		current := "✗"
		if r.Current {
			current = "✓"
		}
		cells = append(cells, []string{
			r.CommentID,
			r.File,
			strconv.Itoa(r.Line),
			r.Severity,
			r.Status.String(),
			strconv.Itoa(r.Replies),
			current,
		})
	}
	return renderTable([]string{"COMMENT", "FILE", "LINE", "SEVERITY", "STATUS", "REPLIES", "CURRENT"}, cells)
}

func renderTable(headers []string, rows [][]string) *table.Table {
	headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}
