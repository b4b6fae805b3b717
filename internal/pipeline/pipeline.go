// Package pipeline turns pull request events into issue comment actions:
// analysis when a pull request opens, patch refresh after a push, and the
// apply flow when a reply carries the apply command.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/alanmeadows/applybot/internal/analyzer"
	"github.com/alanmeadows/applybot/internal/issue"
	"github.com/alanmeadows/applybot/internal/patch"
	"github.com/alanmeadows/applybot/internal/provider"
	"github.com/alanmeadows/applybot/internal/refresh"
	"github.com/alanmeadows/applybot/internal/thread"
)

// ErrConflict is returned by HandleReply after a conflict reply was posted.
var ErrConflict = errors.New("patch conflict")

// Workspace is the working copy of the pull request branch.
type Workspace interface {
	ReadFile(path string) ([]byte, error)
	ChangedFiles(rev string) ([]string, error)
	DiffFiles(base, rev string) ([]string, error)
	ApplyPatch(ctx context.Context, path, patchText string, applier *patch.Applier) (patch.Result, error)
	CommitAndPush(ctx context.Context, branch, message string, paths ...string) (string, error)
}

// CommandHandler handles a non-apply command found in a reply.
type CommandHandler func(ctx context.Context, pr *provider.PRInfo, reply provider.Comment) error

// Options configures a Runner.
type Options struct {
	Commands     thread.Commands
	BotSuffixes  []string
	BotLogin     string
	SearchWindow int
	// CommitMessage is a text/template rendered with CommitInfo.
	CommitMessage string
	Acknowledge   bool
	ResolveThread bool

	Include  []string
	MaxFiles int
	// Select, when set, picks which analyzed issues get posted.
	Select func(file string, records []issue.Record) ([]issue.Record, error)

	Refresh refresh.Options
}

// CommitInfo is the data available to the commit message template.
type CommitInfo struct {
	File      string
	Line      int
	Severity  string
	Category  string
	Command   string
	CommentID string
	ReplyID   string
	Author    string
}

// Runner handles pull request events against one backend and working copy.
type Runner struct {
	backend    provider.PRBackend
	ws         Workspace
	analyzer   analyzer.Analyzer
	classifier *thread.Classifier
	validator  *thread.Validator
	applier    *patch.Applier
	refresher  *refresh.Refresher
	codec      *issue.Codec
	commitTmpl *template.Template
	opts       Options
	handlers   map[string]CommandHandler
}

// New creates a Runner. an may be nil when analysis is not used; gen may be
// nil to disable patch regeneration during refresh.
func New(backend provider.PRBackend, ws Workspace, an analyzer.Analyzer, gen refresh.Generator, opts Options) (*Runner, error) {
	if opts.Commands.Apply == "" {
		opts.Commands.Apply = issue.DefaultApplyCommand
	}
	if opts.CommitMessage == "" {
		opts.CommitMessage = "fix: apply suggested change to {{.File}}:{{.Line}}"
	}
	tmpl, err := template.New("commit").Option("missingkey=error").Parse(opts.CommitMessage)
	if err != nil {
		return nil, fmt.Errorf("parsing commit message template: %w", err)
	}
	if opts.Refresh.Window == 0 {
		opts.Refresh.Window = opts.SearchWindow
	}

	var logins []string
	if opts.BotLogin != "" {
		logins = append(logins, opts.BotLogin)
	}
	classifier := thread.NewClassifier(opts.BotSuffixes, logins...)

	return &Runner{
		backend:    backend,
		ws:         ws,
		analyzer:   an,
		classifier: classifier,
		validator:  thread.NewValidator(classifier, opts.Commands),
		applier:    patch.NewApplier(opts.SearchWindow),
		refresher:  refresh.New(backend, classifier, ws, gen, opts.Refresh),
		codec:      issue.NewCodec(opts.Commands.Apply),
		commitTmpl: tmpl,
		opts:       opts,
		handlers:   make(map[string]CommandHandler),
	}, nil
}

// Handle registers h for an external command.
func (r *Runner) Handle(command string, h CommandHandler) {
	r.handlers[command] = h
}

// Outcome is what an event handler did.
type Outcome string

// Outcomes reported in Result.
const (
	OutcomeApplied        Outcome = "applied"
	OutcomeAlreadyApplied Outcome = "already_applied"
	OutcomeConflict       Outcome = "conflict"
	OutcomeNoop           Outcome = "noop"
	OutcomeFailed         Outcome = "failed"
	OutcomeIneligible     Outcome = "ineligible"
	OutcomeSuperseded     Outcome = "superseded"
	OutcomeAnalyzed       Outcome = "analyzed"
	OutcomeRefreshed      Outcome = "refreshed"
)

// Result summarises one handled event.
type Result struct {
	Outcome Outcome
	// Reason explains ineligible and superseded outcomes.
	Reason string
	// CommentID is the reply that triggered the run, ParentID its root.
	CommentID string
	ParentID  string
	// ShouldApply is set once a reply passed validation.
	ShouldApply bool
	Commit      string
	// Posted counts issue comments created by HandleOpened.
	Posted   int
	Commands []string
	Refresh  refresh.Summary
	// RefreshErr is set when the refresh pass could not list comments.
	RefreshErr error
}

func (r *Runner) commitMessage(info CommitInfo) (string, error) {
	var sb strings.Builder
	if err := r.commitTmpl.Execute(&sb, info); err != nil {
		return "", fmt.Errorf("rendering commit message: %w", err)
	}
	return strings.TrimSpace(sb.String()), nil
}
