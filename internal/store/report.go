package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Report summarizes one applybot run.
type Report struct {
	ID      string
	Time    time.Time
	Event   string
	Repo    string
	PR      string
	Comment string
	// Outcome is the run's result: applied, already-applied, conflict,
	// noop, ineligible, analyzed, refreshed or error.
	Outcome        string
	Reason         string
	Commit         string
	Posted         int
	Refreshed      int
	RefreshSkipped int
	RefreshFailed  int
	Error          string
	// Notes are free-form lines rendered into the report body.
	Notes []string
	Path  string
}

// WriteReport stores r under dir as <timestamp>-<id>.md and returns the
// path. ID and Time are filled in when empty.
func WriteReport(ctx context.Context, dir string, r *Report) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Time.IsZero() {
		r.Time = time.Now()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}

	name := fmt.Sprintf("%s-%s.md", r.Time.UTC().Format("20060102T150405Z"), shortID(r.ID))
	path := filepath.Join(dir, name)

	fm := map[string]any{
		"id":      r.ID,
		"time":    FormatTime(r.Time),
		"event":   r.Event,
		"outcome": r.Outcome,
	}
	setIf(fm, "repo", r.Repo)
	setIf(fm, "pr", r.PR)
	setIf(fm, "comment", r.Comment)
	setIf(fm, "reason", r.Reason)
	setIf(fm, "commit", r.Commit)
	setIf(fm, "error", r.Error)
	if r.Posted > 0 {
		fm["posted"] = r.Posted
	}
	if r.Refreshed+r.RefreshSkipped+r.RefreshFailed > 0 {
		fm["refreshed"] = r.Refreshed
		fm["refresh_skipped"] = r.RefreshSkipped
		fm["refresh_failed"] = r.RefreshFailed
	}

	var body strings.Builder
	fmt.Fprintf(&body, "# applybot %s run\n\n", r.Event)
	fmt.Fprintf(&body, "Outcome: **%s**\n", r.Outcome)
	for _, n := range r.Notes {
		fmt.Fprintf(&body, "\n- %s", n)
	}
	if len(r.Notes) > 0 {
		body.WriteString("\n")
	}

	err := WithLock(ctx, filepath.Join(dir, ".reports"), DefaultLockTimeout, func() error {
		return WriteDocument(path, &Document{Frontmatter: fm, Body: body.String()})
	})
	if err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	r.Path = path
	return path, nil
}

// ListReports reads every report under dir, newest first. A missing
// directory yields no reports.
func ListReports(ctx context.Context, dir string) ([]Report, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	var reports []Report
	err := WithReadLock(ctx, filepath.Join(dir, ".reports"), DefaultLockTimeout, func() error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
				continue
			}
			path := filepath.Join(dir, e.Name())
			doc, err := ReadDocument(path)
			if err != nil {
				return err
			}
			fm := doc.Frontmatter
			if GetString(fm, "id") == "" {
				continue
			}
			reports = append(reports, Report{
				ID:             GetString(fm, "id"),
				Time:           GetTime(fm, "time"),
				Event:          GetString(fm, "event"),
				Repo:           GetString(fm, "repo"),
				PR:             GetString(fm, "pr"),
				Comment:        GetString(fm, "comment"),
				Outcome:        GetString(fm, "outcome"),
				Reason:         GetString(fm, "reason"),
				Commit:         GetString(fm, "commit"),
				Error:          GetString(fm, "error"),
				Posted:         GetInt(fm, "posted"),
				Refreshed:      GetInt(fm, "refreshed"),
				RefreshSkipped: GetInt(fm, "refresh_skipped"),
				RefreshFailed:  GetInt(fm, "refresh_failed"),
				Path:           path,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}

	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].Time.After(reports[j].Time)
	})
	return reports, nil
}

func setIf(fm map[string]any, key, value string) {
	if value != "" {
		fm[key] = value
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
