package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/alanmeadows/applybot/internal/analyzer"
	"github.com/alanmeadows/applybot/internal/config"
	"github.com/alanmeadows/applybot/internal/issue"
	"github.com/alanmeadows/applybot/internal/llm"
	"github.com/alanmeadows/applybot/internal/pipeline"
	"github.com/alanmeadows/applybot/internal/provider"
	ghbackend "github.com/alanmeadows/applybot/internal/provider/github"
	"github.com/alanmeadows/applybot/internal/refresh"
	"github.com/alanmeadows/applybot/internal/thread"
	"github.com/alanmeadows/applybot/internal/workspace"
)

// repoSlug returns owner and name from --repo or GITHUB_REPOSITORY. Both are
// empty when neither is set; PR URLs still carry their own repository.
func repoSlug() (string, string, error) {
	slug := repoFlag
	if slug == "" {
		slug = os.Getenv("GITHUB_REPOSITORY")
	}
	if slug == "" {
		return "", "", nil
	}
	owner, name, ok := strings.Cut(slug, "/")
	if !ok || owner == "" || name == "" {
		return "", "", fmt.Errorf("invalid repository %q, want owner/name", slug)
	}
	return owner, name, nil
}

// buildRegistry creates a provider registry populated with backends from config.
func buildRegistry(owner, repo string) (*provider.Registry, error) {
	reg := provider.NewRegistry()

	ghCfg := appConfig.Providers["github"]
	token := ghCfg.Token
	if token == "" {
		// Try gh CLI auth token.
		if out, err := exec.Command("gh", "auth", "token").Output(); err == nil {
			token = strings.TrimSpace(string(out))
		}
	}
	if token == "" {
		slog.Warn("no GitHub token configured; set GITHUB_TOKEN or providers.github.token")
	}

	if ghCfg.BaseURL != "" {
		b, err := ghbackend.NewEnterpriseBackend(owner, repo, token, ghCfg.BaseURL)
		if err != nil {
			return nil, err
		}
		reg.Register(b)
	} else {
		reg.Register(ghbackend.NewBackend(owner, repo, token))
	}
	return reg, nil
}

// newBackend picks the backend for ref and bounds it with the configured
// transport timeout and retries.
func newBackend(owner, repo, ref string) (provider.PRBackend, error) {
	reg, err := buildRegistry(owner, repo)
	if err != nil {
		return nil, err
	}
	backend, err := reg.Resolve(ref, "github")
	if err != nil {
		return nil, fmt.Errorf("detecting provider: %w", err)
	}
	return provider.WithRetry(backend, provider.RetryOptions{
		Attempts: appConfig.Transport.Retries,
		Backoff:  appConfig.Transport.ParseBackoff(),
		Timeout:  appConfig.Transport.ParseTimeout(),
	}), nil
}

// session is everything one command needs to act on a pull request.
type session struct {
	backend provider.PRBackend
	pr      *provider.PRInfo
	repo    *workspace.Repo
	runner  *pipeline.Runner
	client  *llm.CopilotClient
}

type sessionOptions struct {
	// analyze starts the LLM client for HandleOpened.
	analyze bool
	// selectIssues is passed to the runner as Options.Select.
	selectIssues func(file string, records []issue.Record) ([]issue.Record, error)
}

// openSession resolves the pull request, opens the working copy in the
// current directory and builds a Runner from appConfig.
func openSession(ctx context.Context, owner, repo, ref string, so sessionOptions) (*session, error) {
	if owner == "" && repo == "" {
		var err error
		if owner, repo, err = repoSlug(); err != nil {
			return nil, err
		}
	}

	backend, err := newBackend(owner, repo, ref)
	if err != nil {
		return nil, err
	}
	pr, err := backend.GetPR(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("fetching PR: %w", err)
	}

	ws, err := workspace.Open(".", workspace.Author{Name: appConfig.Apply.AuthorName, Email: appConfig.Apply.AuthorEmail})
	if err != nil {
		return nil, err
	}

	s := &session{backend: backend, pr: pr, repo: ws}

	var an analyzer.Analyzer
	var gen refresh.Generator
	if so.analyze || appConfig.Refresh.Regenerate {
		s.client = llm.NewCopilotClient(appConfig.Analyze.Model)
		if err := s.client.Start(ctx); err != nil {
			return nil, fmt.Errorf("starting Copilot LLM client: %w", err)
		}
		if so.analyze {
			an = analyzer.New(s.client, ws, analyzer.Options{
				MinLevel: appConfig.Analyze.MinIssueLevel,
				Window:   appConfig.Apply.SearchWindow,
				WorkDir:  ws.Root(),
			})
		}
		if appConfig.Refresh.Regenerate {
			gen = refresh.NewLLMGenerator(s.client, ws.Root())
		}
	}

	s.runner, err = pipeline.New(backend, ws, an, gen, runnerOptions(appConfig, so))
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func runnerOptions(cfg *config.Config, so sessionOptions) pipeline.Options {
	return pipeline.Options{
		Commands: thread.Commands{
			Apply:    cfg.Commands.Apply,
			External: cfg.Commands.External,
		},
		BotSuffixes:   cfg.Bot.Suffixes,
		BotLogin:      cfg.Bot.Login,
		SearchWindow:  cfg.Apply.SearchWindow,
		CommitMessage: cfg.Apply.CommitMessage,
		Acknowledge:   cfg.Apply.ShouldAcknowledge(),
		ResolveThread: cfg.Apply.ResolveThread,
		Include:       cfg.Analyze.Include,
		MaxFiles:      cfg.Analyze.MaxFiles,
		Select:        so.selectIssues,
		Refresh: refresh.Options{
			MaxComments: cfg.Refresh.MaxComments,
			Parallelism: cfg.Refresh.Parallelism,
			Window:      cfg.Apply.SearchWindow,
		},
	}
}

// Close stops the LLM client, if one was started.
func (s *session) Close() {
	if s.client != nil {
		if err := s.client.Stop(); err != nil {
			slog.Warn("failed to stop LLM client", "error", err)
		}
	}
}
