package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// isolate points every config layer at empty temp locations.
func isolate(t *testing.T) string {
	t.Helper()
	userConfigDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", userConfigDir)
	t.Setenv("GIT_CEILING_DIRECTORIES", os.TempDir())
	t.Chdir(t.TempDir())

	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GITHUB_SERVER_URL", "")
	t.Setenv("REFRESH_MAX_COMMENTS", "")
	t.Setenv("APPLYBOT_MODEL", "")
	return userConfigDir
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Commands.Apply != "/apply-logs" {
		t.Errorf("expected apply command /apply-logs, got %s", cfg.Commands.Apply)
	}
	if len(cfg.Commands.External) != 4 {
		t.Errorf("expected 4 external commands, got %d", len(cfg.Commands.External))
	}
	if len(cfg.Bot.Suffixes) != 1 || cfg.Bot.Suffixes[0] != "[bot]" {
		t.Errorf("expected bot suffixes [[bot]], got %v", cfg.Bot.Suffixes)
	}
	if cfg.Apply.SearchWindow != 30 {
		t.Errorf("expected search_window 30, got %d", cfg.Apply.SearchWindow)
	}
	if !cfg.Apply.ShouldAcknowledge() {
		t.Error("expected acknowledge on by default")
	}
	if cfg.Apply.ResolveThread {
		t.Error("expected resolve_thread off by default")
	}
	if cfg.Refresh.MaxComments != 50 {
		t.Errorf("expected max_comments 50, got %d", cfg.Refresh.MaxComments)
	}
	if cfg.Refresh.Parallelism != 4 {
		t.Errorf("expected parallelism 4, got %d", cfg.Refresh.Parallelism)
	}
	if cfg.Analyze.MinIssueLevel != "low" {
		t.Errorf("expected min_issue_level low, got %s", cfg.Analyze.MinIssueLevel)
	}
	if cfg.Transport.ParseTimeout() != 30*time.Second {
		t.Errorf("expected timeout 30s, got %v", cfg.Transport.ParseTimeout())
	}
	if cfg.Transport.ParseBackoff() != 500*time.Millisecond {
		t.Errorf("expected backoff 500ms, got %v", cfg.Transport.ParseBackoff())
	}
	if !cfg.Reports.IsEnabled() {
		t.Error("expected reports enabled by default")
	}
}

func TestLoadJSONC(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.jsonc")

	content := []byte(`{
  // This is a JSONC comment
  "commands": {
    "apply": "/fix-it"
  },
  "refresh": {
    "max_comments": 9
  }
}`)

	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	m, err := loadJSONC(path)
	if err != nil {
		t.Fatalf("loadJSONC failed: %v", err)
	}

	commands, ok := m["commands"].(map[string]any)
	if !ok {
		t.Fatal("expected commands to be a map")
	}
	if commands["apply"] != "/fix-it" {
		t.Errorf("expected apply=/fix-it, got %v", commands["apply"])
	}

	refresh, ok := m["refresh"].(map[string]any)
	if !ok {
		t.Fatal("expected refresh to be a map")
	}
	if refresh["max_comments"] != float64(9) {
		t.Errorf("expected max_comments=9, got %v", refresh["max_comments"])
	}
}

func TestLoadJSONC_FileNotFound(t *testing.T) {
	_, err := loadJSONC("/nonexistent/path/config.jsonc")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadJSONC_MalformedContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.jsonc")

	if err := os.WriteFile(path, []byte(`{"commands": {"apply": "x"`), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	_, err := loadJSONC(path)
	if err == nil {
		t.Error("expected error for malformed JSONC")
	}
}

func TestMergeDeepPreservesNestedFields(t *testing.T) {
	cfg := DefaultConfig()

	src := map[string]any{
		"apply": map[string]any{
			"search_window": json.Number("12"),
		},
	}
	if err := mergeIntoConfig(&cfg, src); err != nil {
		t.Fatalf("mergeIntoConfig failed: %v", err)
	}

	if cfg.Apply.SearchWindow != 12 {
		t.Errorf("expected search_window=12, got %d", cfg.Apply.SearchWindow)
	}
	if cfg.Apply.CommitMessage != DefaultCommitMessage {
		t.Errorf("expected commit_message preserved, got %q", cfg.Apply.CommitMessage)
	}
	if !cfg.Apply.ShouldAcknowledge() {
		t.Error("expected acknowledge preserved")
	}
	if cfg.Commands.Apply != "/apply-logs" {
		t.Errorf("expected commands.apply preserved, got %s", cfg.Commands.Apply)
	}
}

func TestMergeReplacesLists(t *testing.T) {
	cfg := DefaultConfig()

	src := map[string]any{
		"bot": map[string]any{
			"suffixes": []any{"-bot", "[bot]"},
			"login":    "ci-helper",
		},
	}
	if err := mergeIntoConfig(&cfg, src); err != nil {
		t.Fatalf("mergeIntoConfig failed: %v", err)
	}
	if len(cfg.Bot.Suffixes) != 2 || cfg.Bot.Suffixes[0] != "-bot" {
		t.Errorf("expected suffixes replaced, got %v", cfg.Bot.Suffixes)
	}
	if cfg.Bot.Login != "ci-helper" {
		t.Errorf("expected login=ci-helper, got %s", cfg.Bot.Login)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := DefaultConfig()

	t.Setenv("GITHUB_TOKEN", "gh-token-456")
	t.Setenv("GITHUB_SERVER_URL", "https://git.example.com/")
	t.Setenv("REFRESH_MAX_COMMENTS", "7")
	t.Setenv("APPLYBOT_MODEL", "claude-sonnet-4")

	applyEnvOverrides(&cfg)

	gh := cfg.Providers["github"]
	if gh.Token != "gh-token-456" {
		t.Errorf("expected GitHub token=gh-token-456, got %s", gh.Token)
	}
	if gh.BaseURL != "https://git.example.com" {
		t.Errorf("expected base_url from GITHUB_SERVER_URL, got %s", gh.BaseURL)
	}
	if cfg.Refresh.MaxComments != 7 {
		t.Errorf("expected max_comments=7, got %d", cfg.Refresh.MaxComments)
	}
	if cfg.Analyze.Model != "claude-sonnet-4" {
		t.Errorf("expected model=claude-sonnet-4, got %s", cfg.Analyze.Model)
	}
}

func TestApplyEnvOverrides_PublicGitHubAndBadNumbers(t *testing.T) {
	cfg := DefaultConfig()

	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GITHUB_SERVER_URL", "https://github.com")
	t.Setenv("REFRESH_MAX_COMMENTS", "lots")
	t.Setenv("APPLYBOT_MODEL", "")

	applyEnvOverrides(&cfg)

	if cfg.Providers["github"].BaseURL != "" {
		t.Errorf("expected no base_url for github.com, got %s", cfg.Providers["github"].BaseURL)
	}
	if cfg.Refresh.MaxComments != 50 {
		t.Errorf("expected max_comments to stay 50, got %d", cfg.Refresh.MaxComments)
	}
}

func TestTransportConfigParse_Invalid(t *testing.T) {
	tc := TransportConfig{Timeout: "not-a-duration", Backoff: "-1s"}
	if tc.ParseTimeout() != 30*time.Second {
		t.Error("expected fallback to 30s for invalid timeout")
	}
	if tc.ParseBackoff() != 500*time.Millisecond {
		t.Error("expected fallback to 500ms for negative backoff")
	}
}

func TestLoadMergesUserAndExplicit(t *testing.T) {
	userConfigDir := isolate(t)

	appDir := filepath.Join(userConfigDir, "applybot")
	if err := os.MkdirAll(appDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	userConfig := []byte(`{"commands":{"apply":"/user-apply"},"refresh":{"parallelism":2}}`)
	if err := os.WriteFile(filepath.Join(appDir, "applybot.jsonc"), userConfig, 0644); err != nil {
		t.Fatalf("failed to write user config: %v", err)
	}

	explicitPath := filepath.Join(t.TempDir(), "explicit.jsonc")
	explicitConfig := []byte(`{
		// CI override
		"commands": {"apply": "/ci-apply"}
	}`)
	if err := os.WriteFile(explicitPath, explicitConfig, 0644); err != nil {
		t.Fatalf("failed to write explicit config: %v", err)
	}

	cfg, err := Load(explicitPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Commands.Apply != "/ci-apply" {
		t.Errorf("expected commands.apply=/ci-apply, got %s", cfg.Commands.Apply)
	}
	if cfg.Refresh.Parallelism != 2 {
		t.Errorf("expected refresh.parallelism=2, got %d", cfg.Refresh.Parallelism)
	}
	if cfg.Refresh.MaxComments != 50 {
		t.Errorf("expected refresh.max_comments=50, got %d", cfg.Refresh.MaxComments)
	}
}

func TestLoadEnvWinsOverFiles(t *testing.T) {
	isolate(t)
	t.Setenv("REFRESH_MAX_COMMENTS", "3")

	explicitPath := filepath.Join(t.TempDir(), "explicit.jsonc")
	if err := os.WriteFile(explicitPath, []byte(`{"refresh":{"max_comments":25}}`), 0644); err != nil {
		t.Fatalf("failed to write explicit config: %v", err)
	}

	cfg, err := Load(explicitPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Refresh.MaxComments != 3 {
		t.Errorf("expected env to win with 3, got %d", cfg.Refresh.MaxComments)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)

	if _, err := Load(filepath.Join(t.TempDir(), "missing.jsonc")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestLoadWithoutAnyFiles(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Commands.Apply != "/apply-logs" {
		t.Errorf("expected defaults, got apply=%s", cfg.Commands.Apply)
	}
}

func TestSet(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), ".applybot", "applybot.jsonc")

	if _, err := Set(path, "refresh.max_comments", "12"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := Set(path, "apply.resolve_thread", "true"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	v, err := Set(path, "commands.apply", "/apply")
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if v != "/apply" {
		t.Errorf("expected string value, got %#v", v)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Refresh.MaxComments != 12 {
		t.Errorf("expected max_comments=12, got %d", cfg.Refresh.MaxComments)
	}
	if !cfg.Apply.ResolveThread {
		t.Error("expected resolve_thread=true")
	}
	if cfg.Commands.Apply != "/apply" {
		t.Errorf("expected commands.apply=/apply, got %s", cfg.Commands.Apply)
	}
}

func TestSetRejectsWrongType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "applybot.jsonc")

	if _, err := Set(path, "refresh.max_comments", "many"); err == nil {
		t.Error("expected error for string in an int field")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected no file to be written, stat err=%v", err)
	}
}

func TestRedacted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Providers["github"] = ProviderConfig{Token: "secret", BaseURL: "https://git.example.com"}

	r := cfg.Redacted()
	if r.Providers["github"].Token != "***" {
		t.Errorf("expected token redacted, got %s", r.Providers["github"].Token)
	}
	if r.Providers["github"].BaseURL != "https://git.example.com" {
		t.Errorf("expected base_url kept, got %s", r.Providers["github"].BaseURL)
	}
	if cfg.Providers["github"].Token != "secret" {
		t.Error("expected original config untouched")
	}
}
