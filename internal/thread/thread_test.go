package thread

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanmeadows/applybot/internal/issue"
	"github.com/alanmeadows/applybot/internal/lifecycle"
	"github.com/alanmeadows/applybot/internal/patch"
	"github.com/alanmeadows/applybot/internal/provider"
)

func issueBody(t *testing.T, file string, line int) string {
	t.Helper()
	body, err := issue.NewCodec("/apply-logs").Encode(issue.Record{
		File:     file,
		Line:     line,
		Severity: "LOW",
		Patch:    "@@ -1 +1 @@\n-a\n+b\n",
	})
	require.NoError(t, err)
	return body
}

func TestIsBot(t *testing.T) {
	c := NewClassifier(nil, "ci-helper")

	tests := []struct {
		name    string
		comment provider.Comment
		want    bool
	}{
		{"app suffix", provider.Comment{Author: "github-actions[bot]", Body: "hi"}, true},
		{"suffix case-insensitive", provider.Comment{Author: "Renovate[Bot]", Body: "hi"}, true},
		{"configured login", provider.Comment{Author: "CI-Helper", Body: "hi"}, true},
		{"human plain", provider.Comment{Author: "alice", Body: "/apply-logs please"}, false},
		{"human with status marker", provider.Comment{Author: "alice", Body: "x\n<!-- STATUS: analyzed -->"}, true},
		{"human with call to action", provider.Comment{Author: "alice", Body: issue.CallToAction("/apply-logs")}, true},
		{"legacy header", provider.Comment{Author: "alice", Body: "**🤖 HIGH** old style"}, true},
		{"empty author", provider.Comment{Body: "text"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.IsBot(tt.comment))
		})
	}
}

func TestRootOf(t *testing.T) {
	all := []provider.Comment{
		{ID: "1"},
		{ID: "2", InReplyTo: "1"},
		{ID: "3", InReplyTo: "2"},
		{ID: "4", InReplyTo: "99"},
		{ID: "5", InReplyTo: "6"},
		{ID: "6", InReplyTo: "5"},
	}

	assert.Equal(t, "1", RootOf(all[0], all).ID)
	assert.Equal(t, "1", RootOf(all[1], all).ID)
	assert.Equal(t, "1", RootOf(all[2], all).ID)

	orphan := RootOf(all[3], all)
	assert.Equal(t, "4", orphan.ID)
	assert.Equal(t, "99", orphan.InReplyTo)

	// Cycles terminate.
	cyc := RootOf(all[4], all)
	assert.Contains(t, []string{"5", "6"}, cyc.ID)

	replies := Replies("1", all)
	require.Len(t, replies, 2)
	assert.Equal(t, "2", replies[0].ID)
	assert.Equal(t, "3", replies[1].ID)
}

func TestIssueRoots(t *testing.T) {
	c := NewClassifier(nil)
	all := []provider.Comment{
		{ID: "1", Author: "bot[bot]", Body: issueBody(t, "b.go", 5)},
		{ID: "2", Author: "bot[bot]", Body: issueBody(t, "a.go", 30)},
		{ID: "3", Author: "bot[bot]", Body: issueBody(t, "a.go", 10)},
		{ID: "4", Author: "alice", Body: "nice"},
		{ID: "5", Author: "bot[bot]", Body: "<!-- STATUS: analyzed -->\n<!-- ISSUE_DATA: {nope -->"},
		{ID: "6", Author: "bot[bot]", Body: issueBody(t, "a.go", 1), InReplyTo: "3"},
	}

	roots := c.IssueRoots(all)
	require.Len(t, roots, 3)
	assert.Equal(t, "3", roots[0].Comment.ID)
	assert.Equal(t, "2", roots[1].Comment.ID)
	assert.Equal(t, "1", roots[2].Comment.ID)
	assert.Equal(t, issue.StatusAnalyzed, roots[0].Status)
}

func TestCommandsMatch(t *testing.T) {
	cmds := Commands{Apply: "/apply-logs", External: DefaultExternalCommands}

	assert.True(t, cmds.HasApply("please /apply-logs now"))
	assert.False(t, cmds.HasApply("/APPLY-LOGS"))
	assert.Equal(t, []string{"/apply-logs", "/create-monitor"}, cmds.Match("/create-monitor and /apply-logs"))
	assert.Empty(t, cmds.Match("/create-monitors"))
	assert.Equal(t, []string{"/generate-dashboard"}, cmds.Match("run /generate-dashboard."))
}

func TestEvaluate(t *testing.T) {
	classifier := NewClassifier(nil)
	v := NewValidator(classifier, Commands{Apply: "/apply-logs"})

	root := provider.Comment{ID: "10", Author: "bot[bot]", Body: issueBody(t, "a.go", 3)}
	appliedBody, err := issue.SetStatus(root.Body, issue.StatusApplied)
	require.NoError(t, err)
	applied := provider.Comment{ID: "10", Author: "bot[bot]", Body: appliedBody}

	legacy := provider.Comment{ID: "10", Author: "bot[bot]",
		Body: "**🤖 LOW** old\n<!-- ISSUE_DATA: {\"file\":\"a.go\",\"line\":3,\"patch\":\"p\"} -->"}

	human := func(body string) provider.Comment {
		return provider.Comment{ID: "11", InReplyTo: "10", Author: "alice", Body: body}
	}

	tests := []struct {
		name     string
		reply    provider.Comment
		root     provider.Comment
		eligible bool
		reason   Reason
	}{
		{"eligible", human("/apply-logs"), root, true, ReasonEligible},
		{"trailing commentary", human("/apply-logs thanks!"), root, true, ReasonEligible},
		{"bot reply", provider.Comment{ID: "11", Author: "bot[bot]", Body: "/apply-logs"}, root, false, ReasonBotReply},
		{"reply quoting call to action", human(issue.CallToAction("/apply-logs")), root, false, ReasonBotReply},
		{"no command", human("lgtm"), root, false, ReasonNoCommand},
		{"already applied", human("/apply-logs"), applied, false, ReasonAlreadyApplied},
		{"plain human root", human("/apply-logs"), provider.Comment{ID: "10", Author: "bob", Body: "hmm"}, false, ReasonNotBotRoot},
		{"bot root without record", human("/apply-logs"), provider.Comment{ID: "10", Author: "bot[bot]", Body: "build passed"}, false, ReasonNoRecord},
		{"unmarked legacy root", human("/apply-logs"), legacy, true, ReasonEligible},
		{"reply is its own root", provider.Comment{ID: "12", Author: "alice", Body: "/apply-logs"}, provider.Comment{ID: "12", Author: "alice", Body: "/apply-logs"}, false, ReasonNotBotRoot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := v.Evaluate(tt.reply, tt.root)
			assert.Equal(t, tt.eligible, d.Eligible)
			assert.Equal(t, tt.reason, d.Reason)
			if tt.eligible {
				require.NotNil(t, d.Record)
				assert.Equal(t, "a.go", d.Record.File)
			}
		})
	}
}

func TestEvaluateNeverEligibleOnceApplied(t *testing.T) {
	v := NewValidator(NewClassifier(nil), Commands{Apply: "/apply-logs"})
	body, err := issue.SetStatus(issueBody(t, "a.go", 3), issue.StatusApplied)
	require.NoError(t, err)
	root := provider.Comment{ID: "1", Author: "bot[bot]", Body: body}

	for _, reply := range []string{"/apply-logs", "/apply-logs /apply-logs", "please /apply-logs again", "<!-- STATUS: analyzed --> /apply-logs"} {
		d := v.Evaluate(provider.Comment{ID: "2", InReplyTo: "1", Author: "alice", Body: reply}, root)
		assert.False(t, d.Eligible, reply)
	}
}

func TestEvaluateOwnRepliesPostedByUserAccount(t *testing.T) {
	v := NewValidator(NewClassifier(nil), Commands{Apply: "/apply-logs"})
	root := provider.Comment{ID: "10", Author: "sre-svc-user", Body: issueBody(t, "a.go", 3)}

	bodies := map[string]string{
		"processing": lifecycle.ProcessingReply(),
		"applied":    lifecycle.BuildReply(lifecycle.Outcome{Status: patch.StatusApplied, File: "a.go", Commit: "abc1234"}),
		"conflict":   lifecycle.BuildReply(lifecycle.Outcome{Status: patch.StatusConflict, File: "a.go"}),
		"failure":    lifecycle.FailureReply("a.go", patch.ErrMalformed),
		// Even a bot reply that names the command stays ineligible.
		"with command": lifecycle.ProcessingReply() + "\n/apply-logs",
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			reply := provider.Comment{ID: "11", InReplyTo: "10", Author: "sre-svc-user", Body: body}
			d := v.Evaluate(reply, root)
			assert.False(t, d.Eligible)
			assert.Equal(t, ReasonBotReply, d.Reason)
		})
	}
}
