package config

import (
	"log/slog"
	"time"
)

// Config is the top-level applybot configuration.
type Config struct {
	Commands  CommandsConfig            `json:"commands"`
	Bot       BotConfig                 `json:"bot"`
	Apply     ApplyConfig               `json:"apply"`
	Refresh   RefreshConfig             `json:"refresh"`
	Analyze   AnalyzeConfig             `json:"analyze"`
	Transport TransportConfig           `json:"transport"`
	Reports   ReportsConfig             `json:"reports"`
	Providers map[string]ProviderConfig `json:"providers"`
}

// CommandsConfig names the slash commands recognised in replies.
type CommandsConfig struct {
	Apply    string   `json:"apply"`
	External []string `json:"external"`
}

// BotConfig identifies the bot's own comments.
type BotConfig struct {
	// Suffixes are login suffixes that mark an app account, e.g. "[bot]".
	Suffixes []string `json:"suffixes"`
	// Login is an explicit account that posts on the bot's behalf.
	Login string `json:"login,omitempty"`
}

// ApplyConfig controls how an accepted patch is applied and committed.
type ApplyConfig struct {
	SearchWindow  int    `json:"search_window"`
	CommitMessage string `json:"commit_message"`
	Acknowledge   *bool  `json:"acknowledge,omitempty"`
	ResolveThread bool   `json:"resolve_thread"`
	AuthorName    string `json:"author_name"`
	AuthorEmail   string `json:"author_email"`
}

// ShouldAcknowledge reports whether a processing reply is posted before applying.
func (a ApplyConfig) ShouldAcknowledge() bool {
	return a.Acknowledge == nil || *a.Acknowledge
}

// RefreshConfig bounds the patch refresh pass.
type RefreshConfig struct {
	MaxComments int  `json:"max_comments"`
	Regenerate  bool `json:"regenerate"`
	Parallelism int  `json:"parallelism"`
}

// AnalyzeConfig controls issue discovery on opened pull requests.
type AnalyzeConfig struct {
	MinIssueLevel string   `json:"min_issue_level"`
	Model         string   `json:"model,omitempty"`
	Include       []string `json:"include,omitempty"`
	MaxFiles      int      `json:"max_files"`
}

// TransportConfig bounds every call to the hosting platform.
type TransportConfig struct {
	Timeout string `json:"timeout"`
	Retries int    `json:"retries"`
	Backoff string `json:"backoff"`
}

// ParseTimeout parses the Timeout string as a time.Duration.
// Returns 30s if the value is empty or invalid.
func (t TransportConfig) ParseTimeout() time.Duration {
	return parseDuration("transport.timeout", t.Timeout, 30*time.Second)
}

// ParseBackoff parses the Backoff string as a time.Duration.
// Returns 500ms if the value is empty or invalid.
func (t TransportConfig) ParseBackoff() time.Duration {
	return parseDuration("transport.backoff", t.Backoff, 500*time.Millisecond)
}

func parseDuration(key, v string, fallback time.Duration) time.Duration {
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("invalid duration in config, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return d
}

// ReportsConfig controls the per-run report files.
type ReportsConfig struct {
	// Dir is relative to the repository root unless absolute.
	Dir     string `json:"dir"`
	Enabled *bool  `json:"enabled,omitempty"`
}

// IsEnabled reports whether run reports are written.
func (r ReportsConfig) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// ProviderConfig holds hosting provider settings, keyed by provider name.
type ProviderConfig struct {
	Token string `json:"token,omitempty"`
	// BaseURL points at a GitHub Enterprise Server instance.
	BaseURL string `json:"base_url,omitempty"`
}

// DefaultCommitMessage is the commit message template used for applied patches.
const DefaultCommitMessage = "fix: apply suggested change to {{.File}}:{{.Line}}"

// DefaultConfig returns a Config with all default values populated.
func DefaultConfig() Config {
	return Config{
		Commands: CommandsConfig{
			Apply: "/apply-logs",
			External: []string{
				"/create-monitor",
				"/create-dashboard",
				"/generate-monitor",
				"/generate-dashboard",
			},
		},
		Bot: BotConfig{
			Suffixes: []string{"[bot]"},
		},
		Apply: ApplyConfig{
			SearchWindow:  30,
			CommitMessage: DefaultCommitMessage,
			Acknowledge:   boolPtr(true),
			AuthorName:    "applybot[bot]",
			AuthorEmail:   "applybot[bot]@users.noreply.github.com",
		},
		Refresh: RefreshConfig{
			MaxComments: 50,
			Parallelism: 4,
		},
		Analyze: AnalyzeConfig{
			MinIssueLevel: "low",
			MaxFiles:      20,
		},
		Transport: TransportConfig{
			Timeout: "30s",
			Retries: 3,
			Backoff: "500ms",
		},
		Reports: ReportsConfig{
			Dir:     ".applybot/reports",
			Enabled: boolPtr(true),
		},
		Providers: map[string]ProviderConfig{},
	}
}

func boolPtr(b bool) *bool {
	return &b
}
