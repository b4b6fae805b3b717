package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alanmeadows/applybot/internal/config"
	"github.com/alanmeadows/applybot/internal/issue"
	"github.com/alanmeadows/applybot/internal/pipeline"
	"github.com/alanmeadows/applybot/internal/store"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		cmd       *cobra.Command
		flag      string
		shorthand string
		def       string
		kind      string
	}{
		{reportListCmd, "limit", "n", "20", "int"},
		{applyCmd, "comment", "", "", "string"},
		{refreshCmd, "file", "", "[]", "stringSlice"},
		{analyzeCmd, "interactive", "i", "false", "bool"},
		{analyzeCmd, "dry-run", "", "false", "bool"},
		{eventCmd, "name", "", "", "string"},
		{eventCmd, "payload", "", "", "string"},
	}
	for _, tt := range tests {
		t.Run(tt.cmd.Name()+"/"+tt.flag, func(t *testing.T) {
			f := tt.cmd.Flags().Lookup(tt.flag)
			require.NotNil(t, f)
			assert.Equal(t, tt.shorthand, f.Shorthand)
			assert.Equal(t, tt.def, f.DefValue)
			assert.Equal(t, tt.kind, f.Value.Type())
		})
	}
}

func TestSubcommandsRegistered(t *testing.T) {
	for _, name := range []string{"event", "apply", "refresh", "analyze", "status", "report", "config"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
	cmd, _, err := rootCmd.Find([]string{"report", "list"})
	require.NoError(t, err)
	assert.Same(t, reportListCmd, cmd)
}

func TestRefreshFileFlagRepeats(t *testing.T) {
	t.Cleanup(func() {
		refreshFiles = nil
		refreshCmd.Flags().Lookup("file").Changed = false
	})
	require.NoError(t, refreshCmd.Flags().Parse([]string{"--file", "a.go", "--file", "b.go,c.go"}))
	assert.Equal(t, []string{"a.go", "b.go", "c.go"}, refreshFiles)
}

func TestAnalyzeFlagsMutuallyExclusive(t *testing.T) {
	t.Cleanup(func() {
		analyzeInteractive, analyzeDryRun = false, false
		analyzeCmd.Flags().Lookup("interactive").Changed = false
		analyzeCmd.Flags().Lookup("dry-run").Changed = false
	})
	require.NoError(t, analyzeCmd.Flags().Parse([]string{"-i", "--dry-run"}))
	err := analyzeCmd.ValidateFlagGroups()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dry-run")
}

func TestApplyRequiresComment(t *testing.T) {
	old := applyCommentID
	applyCommentID = ""
	t.Cleanup(func() { applyCommentID = old })

	applyCmd.SetContext(t.Context())
	err := applyCmd.RunE(applyCmd, []string{"42"})
	require.Error(t, err)
	assert.Equal(t, "--comment is required", err.Error())
}

func TestStatusTable(t *testing.T) {
	out := statusTable([]pipeline.StatusRow{
		{CommentID: "101", File: "svc/orders.go", Line: 12, Severity: "HIGH", Status: issue.StatusAnalyzed, Replies: 2, Current: true},
		{CommentID: "102", File: "svc/pay.go", Line: 7, Severity: "LOW", Status: issue.StatusApplied},
	}).String()

	for _, want := range []string{"COMMENT", "FILE", "LINE", "SEVERITY", "STATUS", "REPLIES", "CURRENT"} {
		assert.Contains(t, out, want)
	}
	lines := strings.Split(out, "\n")
	row := func(id string) string {
		for _, l := range lines {
			if strings.Contains(l, id) {
				return l
			}
		}
		return ""
	}
	first := row("101")
	assert.Contains(t, first, "svc/orders.go")
	assert.Contains(t, first, "12")
	assert.Contains(t, first, "analyzed")
	assert.Contains(t, first, "✓")
	second := row("102")
	assert.Contains(t, second, "svc/pay.go")
	assert.Contains(t, second, "applied")
	assert.Contains(t, second, "✗")
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"x1", "y1"}, {"x2", "y2"}}).String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	// top border, header, separator, two rows, bottom border
	require.Len(t, lines, 6)
	assert.Contains(t, lines[1], "A")
	assert.Contains(t, lines[3], "x1")
	assert.Contains(t, lines[4], "y2")
}

func runReportList(t *testing.T, args ...string) string {
	t.Helper()
	t.Cleanup(func() {
		reportLimit = 20
		reportListCmd.Flags().Lookup("limit").Changed = false
		reportListCmd.SetOut(nil)
	})
	require.NoError(t, reportListCmd.Flags().Parse(args))

	var buf bytes.Buffer
	reportListCmd.SetOut(&buf)
	reportListCmd.SetContext(t.Context())
	require.NoError(t, reportListCmd.RunE(reportListCmd, nil))
	return buf.String()
}

func TestReportList(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	cfg := config.DefaultConfig()
	cfg.Reports.Dir = dir
	useConfig(t, &cfg)

	now := time.Now()
	_, err := store.WriteReport(t.Context(), dir, &store.Report{
		Time:          now.Add(-time.Hour),
		Event:         "synchronize",
		PR:            "41",
		Outcome:       "refreshed",
		Refreshed:     3,
		RefreshFailed: 1,
	})
	require.NoError(t, err)
	_, err = store.WriteReport(t.Context(), dir, &store.Report{
		Time:    now,
		Event:   "reply",
		PR:      "42",
		Outcome: "conflict",
		Commit:  "0123456789abcdef",
		Reason:  "patch no longer applies",
	})
	require.NoError(t, err)

	out := runReportList(t)
	for _, want := range []string{"TIME", "EVENT", "PR", "OUTCOME", "COMMIT", "REFRESH", "DETAIL"} {
		assert.Contains(t, out, want)
	}
	assert.Contains(t, out, "01234567")
	assert.NotContains(t, out, "0123456789abcdef")
	assert.Contains(t, out, "patch no longer applies")
	assert.Contains(t, out, "3/0/1")
	assert.Contains(t, out, "2 of 2 reports shown\n")
	assert.Less(t, strings.Index(out, "conflict"), strings.Index(out, "refreshed"), "newest first")

	limited := runReportList(t, "-n", "1")
	assert.Contains(t, limited, "conflict")
	assert.NotContains(t, limited, "refreshed")
	assert.Contains(t, limited, "1 of 2 reports shown\n")
}

func TestReportListEmpty(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Reports.Dir = filepath.Join(t.TempDir(), "none")
	useConfig(t, &cfg)

	assert.Equal(t, "No run reports.\n", runReportList(t))
}
