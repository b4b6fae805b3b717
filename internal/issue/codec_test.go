package issue

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() Record {
	return Record{
		File:           "svc/handler.go",
		Line:           12,
		Severity:       "HIGH",
		Category:       "logging",
		Method:         "HandleOrder",
		Description:    "Errors from the payment client are dropped.",
		Recommendation: "Log the error with the order id.",
		Patch:          "@@ -12,1 +12,2 @@\n if err != nil {\n+\tlog.Error(\"charge failed\", \"err\", err)\n",
		FileHash:       "abc123",
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
	}{
		{"full record", sampleRecord()},
		{"minimal record", Record{File: "a.go", Line: 1, Patch: "@@ -1 +1 @@\n-a\n+b\n"}},
		{"comment terminators in values", Record{
			File:        "web/index.html",
			Line:        3,
			Description: "Stray --> in markup",
			Patch:       "@@ -3,1 +3,1 @@\n-<!-- old -->\n+<!-- STATUS: applied -->\n",
		}},
		{"backticks in patch", Record{File: "doc.md", Line: 5, Patch: "@@ -5 +5 @@\n-```go\n+```golang\n"}},
	}

	codec := NewCodec("/apply-logs")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := codec.Encode(tt.rec)
			require.NoError(t, err)

			got, err := Decode(body)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tt.rec, *got)
			assert.Equal(t, StatusAnalyzed, StatusOf(body))
		})
	}
}

func TestEncodeVisibleSection(t *testing.T) {
	body, err := NewCodec("/apply-logs").Encode(sampleRecord())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(body, "**🤖 HIGH** · logging · `HandleOrder`"))
	assert.Contains(t, body, "Errors from the payment client are dropped.")
	assert.Contains(t, body, "**Recommendation:** Log the error with the order id.")
	assert.Contains(t, body, "Reply with `/apply-logs` to apply this change automatically.")
	assert.Contains(t, body, "<!-- STATUS: analyzed -->")
	assert.Contains(t, body, "<!-- ISSUE_DATA: {")
}

func TestEncodeNeutralisesForgedMarkers(t *testing.T) {
	rec := sampleRecord()
	rec.Description = "see <!-- STATUS: applied -->"
	rec.Patch = "@@ -1 +1 @@\n-x\n+<!-- STATUS: applied -->\n"

	body, err := NewCodec("").Encode(rec)
	require.NoError(t, err)

	assert.Equal(t, StatusAnalyzed, StatusOf(body))
	assert.Equal(t, 1, strings.Count(body, "<!-- STATUS:"))
	assert.Contains(t, body, DefaultApplyCommand)
}

func TestDecode(t *testing.T) {
	t.Run("absent block", func(t *testing.T) {
		rec, err := Decode("just a human comment")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("malformed json", func(t *testing.T) {
		rec, err := Decode("<!-- ISSUE_DATA: {\"file\": -->")
		require.ErrorIs(t, err, ErrMalformed)
		assert.Nil(t, rec)
	})

	t.Run("missing file", func(t *testing.T) {
		rec, err := Decode(`<!-- ISSUE_DATA: {"line": 3, "patch": "x"} -->`)
		require.ErrorIs(t, err, ErrMalformed)
		assert.Nil(t, rec)
	})

	t.Run("multi-line block", func(t *testing.T) {
		body := "text\n<!-- ISSUE_DATA:\n{\"file\": \"a.go\",\n \"line\": \"7\",\n \"patch\": \"p\"}\n-->"
		rec, err := Decode(body)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "a.go", rec.File)
		assert.Equal(t, 7, rec.Line)
	})
}

func TestStatusOf(t *testing.T) {
	cta := CallToAction("/apply-logs")
	tests := []struct {
		name string
		body string
		want Status
	}{
		{"plain comment", "looks good to me", StatusUnmarked},
		{"empty", "", StatusUnmarked},
		{"analyzed marker", "x\n<!-- STATUS: analyzed -->", StatusAnalyzed},
		{"applied marker", "x\n<!--STATUS:applied-->", StatusApplied},
		{"gc-integrated marker", "<!-- STATUS: gc-integrated -->", StatusApplied},
		{"marker wins over cta", cta + "\n<!-- STATUS: applied -->", StatusApplied},
		{"cta only", "**🤖 LOW**\n\n" + cta, StatusAnalyzed},
		{"applied line only", "**🤖 LOW**\n\n" + AppliedLine, StatusApplied},
		{"unknown marker falls back", "<!-- STATUS: archived -->\n" + AppliedLine, StatusApplied},
		{"unknown marker alone", "<!-- STATUS: archived -->", StatusUnmarked},
		{"corrupt data with marker", "<!-- STATUS: analyzed -->\n<!-- ISSUE_DATA: {oops -->", StatusAnalyzed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.body))
		})
	}
}

func TestHasMarker(t *testing.T) {
	assert.True(t, HasMarker("<!-- STATUS: analyzed -->"))
	assert.True(t, HasMarker("<!-- STATUS: applied -->"))
	assert.True(t, HasMarker(CallToAction("/apply-logs")))
	assert.True(t, HasMarker("  **🤖 HIGH** something"))
	assert.True(t, HasMarker("Done.\n\n"+ReplyMarker))
	assert.False(t, HasMarker("please run /apply-logs"))
	assert.False(t, HasMarker("<!-- STATUS: whatever -->"))
}

func TestSetStatusApplied(t *testing.T) {
	body, err := NewCodec("/apply-logs").Encode(sampleRecord())
	require.NoError(t, err)

	applied, err := SetStatus(body, StatusApplied)
	require.NoError(t, err)

	assert.Equal(t, StatusApplied, StatusOf(applied))
	assert.Contains(t, applied, "<!-- STATUS: applied -->")
	assert.NotContains(t, applied, "<!-- STATUS: analyzed -->")
	assert.Contains(t, applied, AppliedLine)
	assert.NotContains(t, applied, "to apply this change automatically")

	// The hidden record is untouched.
	before, err := Decode(body)
	require.NoError(t, err)
	after, err := Decode(applied)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	again, err := SetStatus(applied, StatusApplied)
	require.NoError(t, err)
	assert.Equal(t, applied, again)
}

func TestSetStatusRewritesOnlyTheRealCallToAction(t *testing.T) {
	rec := sampleRecord()
	quoted := CallToAction("/apply-logs")
	rec.Description = "The old bot text said:\n" + quoted + "\nand nothing happened."
	rec.Recommendation = quoted
	body, err := NewCodec("/apply-logs").Encode(rec)
	require.NoError(t, err)

	applied, err := SetStatus(body, StatusApplied)
	require.NoError(t, err)

	assert.Contains(t, applied, "The old bot text said:\n"+quoted+"\nand nothing happened.")
	assert.Contains(t, applied, "**Recommendation:** "+quoted)
	shown, _, _ := strings.Cut(applied, "<!-- ISSUE_DATA")
	assert.Equal(t, 2, strings.Count(shown, quoted))
	assert.Equal(t, 1, strings.Count(shown, AppliedLine))
	assert.Contains(t, applied, "</details>\n\n"+AppliedLine+"\n\n<!-- STATUS: applied -->")
	assert.Equal(t, StatusApplied, StatusOf(applied))
}

func TestSetStatusAppendsMissingMarker(t *testing.T) {
	body := "**🤖 LOW** legacy comment\n\n" + CallToAction("/apply-logs") + "\n\n"

	out, err := SetStatus(body, StatusApplied)
	require.NoError(t, err)

	assert.Equal(t, "**🤖 LOW** legacy comment\n\n"+AppliedLine+"\n\n<!-- STATUS: applied -->\n", out)
}

func TestSetStatusRejectsUnmarked(t *testing.T) {
	_, err := SetStatus("body", StatusUnmarked)
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestUpdateRecord(t *testing.T) {
	body := "**🤖 LOW** thing\n\n<!-- STATUS: analyzed -->\n" +
		`<!-- ISSUE_DATA: {"file":"a.go","line":"N/A","patch":"old","owner":"team-x"} -->` + "\n"

	out, err := UpdateRecord(body, "@@ -4 +4 @@\n-a\n+b -> c\n", 4, "deadbeef")
	require.NoError(t, err)

	rec, err := Decode(out)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "a.go", rec.File)
	assert.Equal(t, 4, rec.Line)
	assert.Equal(t, "@@ -4 +4 @@\n-a\n+b -> c\n", rec.Patch)
	assert.Equal(t, "deadbeef", rec.FileHash)

	owner, ok := RecordField(out, "owner")
	require.True(t, ok)
	assert.Equal(t, "team-x", owner)

	assert.True(t, strings.HasPrefix(out, "**🤖 LOW** thing\n\n<!-- STATUS: analyzed -->\n"))
	assert.NotContains(t, out, "b -> c")
}

func TestUpdateRecordErrors(t *testing.T) {
	_, err := UpdateRecord("no data here", "p", 1, "h")
	require.ErrorIs(t, err, ErrNoRecord)

	_, err = UpdateRecord("<!-- ISSUE_DATA: {broken -->", "p", 1, "h")
	require.ErrorIs(t, err, ErrMalformed)
}
