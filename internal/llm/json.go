package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrNoJSON is returned when a response holds no decodable JSON value.
var ErrNoJSON = errors.New("no JSON in model response")

// maxRepairs bounds how often the model is asked to resend its answer.
const maxRepairs = 2

const repairPrompt = "Your previous answer could not be parsed. Reply with ONLY the JSON value " +
	"requested, no markdown fences and no explanation."

var jsonFenceRe = regexp.MustCompile("(?s)```(?:json|JSON)?[ \\t]*\\n?(.*?)\\n?```")

// DecodeJSON decodes the JSON value in an LLM response into T. Markdown
// fences and prose around the value are ignored. If nothing decodes and a
// session is given, the model is asked to resend the value in that session.
func DecodeJSON[T any](ctx context.Context, client Client, sessionID, raw string) (T, error) {
	v, err := decode[T](raw)
	if err == nil || client == nil || sessionID == "" {
		return v, err
	}

	for attempt := 1; attempt <= maxRepairs; attempt++ {
		slog.Debug("asking model to resend JSON", "session", sessionID, "attempt", attempt)
		resp, perr := client.SendPrompt(ctx, sessionID, repairPrompt)
		if perr != nil {
			if ctx.Err() != nil {
				return v, ctx.Err()
			}
			continue
		}
		if v, err = decode[T](resp.Content); err == nil {
			return v, nil
		}
	}
	return v, err
}

func decode[T any](raw string) (T, error) {
	var v T
	found := candidates(raw)
	if len(found) == 0 {
		return v, fmt.Errorf("%w: %s", ErrNoJSON, preview(raw, 200))
	}
	var err error
	for _, text := range found {
		var out T
		if err = json.Unmarshal([]byte(text), &out); err == nil {
			return out, nil
		}
	}
	return v, fmt.Errorf("decoding model response: %w", err)
}

// ExtractJSON returns the first well-formed JSON object or array in s,
// looking inside a fenced block first. Returns "" when there is none.
func ExtractJSON(s string) string {
	if found := candidates(s); len(found) > 0 {
		return found[0]
	}
	return ""
}

// candidates lists the well-formed JSON objects and arrays in s in the
// order a reader would take them: the whole text, a fenced block, then
// each span opening at a brace or bracket, widest first.
func candidates(s string) []string {
	s = strings.TrimSpace(s)
	var out []string
	seen := make(map[string]bool)
	add := func(c string) {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}

	if gjson.Valid(s) && (strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")) {
		add(s)
	}
	if m := jsonFenceRe.FindStringSubmatch(s); len(m) > 1 {
		if inner := strings.TrimSpace(m[1]); gjson.Valid(inner) {
			add(inner)
		}
	}
	for i := 0; i < len(s); i++ {
		var closer byte
		switch s[i] {
		case '{':
			closer = '}'
		case '[':
			closer = ']'
		default:
			continue
		}
		for end := strings.LastIndexByte(s, closer); end > i; end = strings.LastIndexByte(s[:end], closer) {
			if c := s[i : end+1]; gjson.Valid(c) {
				add(c)
				break
			}
		}
	}
	return out
}

func preview(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
