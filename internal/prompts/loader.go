// Package prompts holds the prompt templates sent to the model. A file of
// the same name in an override directory replaces the built-in template.
package prompts

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

//go:embed *.md
var builtin embed.FS

// overrideDirs lists where replacement templates are looked up, in order:
// $APPLYBOT_PROMPTS_DIR, then <user config dir>/applybot/prompts.
func overrideDirs() []string {
	var dirs []string
	if d := os.Getenv("APPLYBOT_PROMPTS_DIR"); d != "" {
		dirs = append(dirs, d)
	}
	if d, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(d, "applybot", "prompts"))
	}
	return dirs
}

// Load parses the named template, preferring an override file.
func Load(name string) (*template.Template, error) {
	text, err := source(name)
	if err != nil {
		return nil, err
	}
	tmpl, err := template.New(name).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parsing prompt template %s: %w", name, err)
	}
	return tmpl, nil
}

func source(name string) (string, error) {
	for _, dir := range overrideDirs() {
		if data, err := os.ReadFile(filepath.Join(dir, name)); err == nil {
			return string(data), nil
		}
	}
	data, err := builtin.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("loading prompt template %s: %w", name, err)
	}
	return string(data), nil
}

// Execute renders the named template with data.
func Execute(name string, data map[string]string) (string, error) {
	tmpl, err := Load(name)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("executing prompt template %s: %w", name, err)
	}
	return sb.String(), nil
}
