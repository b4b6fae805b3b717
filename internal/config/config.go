package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"dario.cat/mergo"
	"github.com/tidwall/jsonc"
	"github.com/tidwall/sjson"
)

const (
	dirName  = "applybot"
	fileName = "applybot.jsonc"
)

// Load reads and merges configuration from user-level and repo-level JSONC files.
// Resolution order: defaults → user config (~/.config/applybot/applybot.jsonc)
// → repo config (.applybot/applybot.jsonc) → explicit file → environment.
// A missing layer is skipped; an explicit file that cannot be read is an error.
func Load(explicit string) (*Config, error) {
	cfg := DefaultConfig()

	if userPath := UserConfigPath(); userPath != "" {
		if err := mergeFile(&cfg, userPath, false); err != nil {
			return nil, fmt.Errorf("merging user config: %w", err)
		}
	}

	if repoRoot := findRepoRoot(); repoRoot != "" {
		if err := mergeFile(&cfg, RepoConfigPath(repoRoot), false); err != nil {
			return nil, fmt.Errorf("merging repo config: %w", err)
		}
	}

	if explicit != "" {
		if err := mergeFile(&cfg, explicit, true); err != nil {
			return nil, fmt.Errorf("merging %s: %w", explicit, err)
		}
	}

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// UserConfigPath returns the user-level config file path, or "" when the
// user config directory is unknown.
func UserConfigPath() string {
	userDir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(userDir, dirName, fileName)
}

// RepoConfigPath returns the repo-level config file path under root.
func RepoConfigPath(root string) string {
	return filepath.Join(root, "."+dirName, fileName)
}

func mergeFile(cfg *Config, path string, required bool) error {
	m, err := loadJSONC(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return mergeIntoConfig(cfg, m)
}

// loadJSONC reads a JSONC file and returns it as a map.
func loadJSONC(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	jsonData := jsonc.ToJSON(data)
	var m map[string]any
	if err := json.Unmarshal(jsonData, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return m, nil
}

// mergeIntoConfig marshals the config to a map, deep-merges the source map over it,
// then unmarshals back to the Config struct.
func mergeIntoConfig(cfg *Config, src map[string]any) error {
	cfgBytes, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	var dst map[string]any
	if err := json.Unmarshal(cfgBytes, &dst); err != nil {
		return err
	}

	// Deep merge: src overrides dst
	if err := mergo.Merge(&dst, src, mergo.WithOverride); err != nil {
		return err
	}

	merged, err := json.Marshal(dst)
	if err != nil {
		return err
	}
	return json.Unmarshal(merged, cfg)
}

// findRepoRoot finds the git repository root via git rev-parse.
func findRepoRoot() string {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	gh := cfg.Providers["github"]
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		gh.Token = token
	}
	// Actions exposes the server URL; anything but github.com is an Enterprise host.
	if server := strings.TrimSuffix(os.Getenv("GITHUB_SERVER_URL"), "/"); gh.BaseURL == "" && server != "" && server != "https://github.com" {
		gh.BaseURL = server
	}
	cfg.Providers["github"] = gh

	if v := os.Getenv("REFRESH_MAX_COMMENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Refresh.MaxComments = n
		}
	}
	if model := os.Getenv("APPLYBOT_MODEL"); model != "" {
		cfg.Analyze.Model = model
	}
}

// RepoRoot returns the detected git repository root, or empty string if not in a repo.
func RepoRoot() string {
	return findRepoRoot()
}

// Set writes key=value into the JSONC file at path, creating it if needed.
// The value is stored as a bool or number when it parses as one. Comments in
// an existing file are not preserved.
func Set(path, key, rawValue string) (any, error) {
	var value any
	if b, err := strconv.ParseBool(rawValue); err == nil {
		value = b
	} else if i, err := strconv.ParseInt(rawValue, 10, 64); err == nil {
		value = i
	} else if f, err := strconv.ParseFloat(rawValue, 64); err == nil {
		value = f
	} else {
		value = rawValue
	}

	existing := []byte("{}")
	if data, err := os.ReadFile(path); err == nil {
		existing = jsonc.ToJSON(data)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	updated, err := sjson.SetBytes(existing, key, value)
	if err != nil {
		return nil, fmt.Errorf("setting key %q: %w", key, err)
	}

	// Reject edits that no longer decode into Config.
	var decoded Config
	if err := json.Unmarshal(updated, &decoded); err != nil {
		return nil, fmt.Errorf("setting key %q: %w", key, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, updated, 0o644); err != nil {
		return nil, fmt.Errorf("writing config: %w", err)
	}
	return value, nil
}

// Redacted returns a copy of the config with provider tokens masked.
func (c *Config) Redacted() *Config {
	cp := *c
	if c.Providers != nil {
		cp.Providers = make(map[string]ProviderConfig, len(c.Providers))
		for k, v := range c.Providers {
			if v.Token != "" {
				v.Token = "***"
			}
			cp.Providers[k] = v
		}
	}
	return &cp
}
