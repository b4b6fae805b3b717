package issue

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Record is the structured issue metadata embedded in a root comment.
type Record struct {
	// File is the target path relative to the repository root.
	File string `json:"file"`
	// Line is the 1-based line the issue points at. Rewritten by refresh.
	Line int `json:"line"`
	// Severity is one of CRITICAL, HIGH, MEDIUM or LOW (free-form, ranked leniently).
	Severity string `json:"severity,omitempty"`
	// Category groups issues (e.g. "logging", "error-handling").
	Category string `json:"category,omitempty"`
	// Method names the function or area the issue was found in.
	Method string `json:"method,omitempty"`
	// Description explains the problem.
	Description string `json:"description,omitempty"`
	// Recommendation explains the suggested fix.
	Recommendation string `json:"recommendation,omitempty"`
	// Impact is an optional note on what the issue costs.
	Impact string `json:"impact,omitempty"`
	// Patch is a unified diff against the file content whose hash is FileHash.
	Patch string `json:"patch"`
	// FileHash is the sha256 hex digest of the file the patch was computed against.
	FileHash string `json:"file_hash,omitempty"`
}

// UnmarshalJSON accepts "line" as a number, a numeric string, or anything
// else (treated as 0), since older analyzers wrote "N/A" for unknown lines.
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	aux := struct {
		*plain
		Line json.RawMessage `json:"line"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.Line = parseLine(aux.Line)
	return nil
}

func parseLine(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return int(n)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return v
		}
	}
	return 0
}

var severityRank = map[string]int{
	"CRITICAL": 0,
	"HIGH":     1,
	"MEDIUM":   2,
	"LOW":      3,
}

// SeverityRank returns the numeric rank of a severity; lower is more severe.
// Unknown or blank severities rank as MEDIUM.
func SeverityRank(severity string) int {
	if r, ok := severityRank[strings.ToUpper(strings.TrimSpace(severity))]; ok {
		return r
	}
	return severityRank["MEDIUM"]
}

// NormalizeSeverity upper-cases a known severity and maps anything else to MEDIUM.
func NormalizeSeverity(severity string) string {
	s := strings.ToUpper(strings.TrimSpace(severity))
	if _, ok := severityRank[s]; ok {
		return s
	}
	return "MEDIUM"
}

// MeetsLevel reports whether the record is at least as severe as minLevel.
func (r Record) MeetsLevel(minLevel string) bool {
	return SeverityRank(r.Severity) <= SeverityRank(minLevel)
}

// FilterByLevel keeps records at least as severe as minLevel, preserving order.
func FilterByLevel(records []Record, minLevel string) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.MeetsLevel(minLevel) {
			out = append(out, r)
		}
	}
	return out
}
