package thread

import "strings"

// DefaultExternalCommands are recognised but handled by other tooling.
var DefaultExternalCommands = []string{
	"/create-monitor",
	"/create-dashboard",
	"/generate-monitor",
	"/generate-dashboard",
}

// Commands is the set of slash commands a reply may carry.
type Commands struct {
	// Apply triggers patch application.
	Apply string
	// External commands are dispatched to their own handlers.
	External []string
}

// HasApply reports whether body contains the apply command. Matching is a
// case-sensitive substring test so trailing commentary is allowed.
func (c Commands) HasApply(body string) bool {
	return c.Apply != "" && strings.Contains(body, c.Apply)
}

// Match returns every recognised command in body, apply first, then the
// external commands in configured order.
func (c Commands) Match(body string) []string {
	var found []string
	if c.HasApply(body) {
		found = append(found, c.Apply)
	}
	for _, cmd := range c.External {
		// An external command may share a prefix with the apply command.
		if cmd != "" && cmd != c.Apply && containsToken(body, cmd) {
			found = append(found, cmd)
		}
	}
	return found
}

// containsToken matches cmd as a whole word so "/create-monitor" is not
// found inside "/create-monitors".
func containsToken(body, cmd string) bool {
	for i := 0; ; {
		j := strings.Index(body[i:], cmd)
		if j < 0 {
			return false
		}
		end := i + j + len(cmd)
		if end == len(body) || !isTokenChar(body[end]) {
			return true
		}
		i = i + j + 1
	}
}

func isTokenChar(b byte) bool {
	return b == '-' || b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}
