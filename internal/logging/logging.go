package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
	"golang.org/x/term"
)

// Setup initializes the global slog logger using charmbracelet/log as the backend.
// If the output is a terminal, uses colored text format. Otherwise, uses JSON format.
// Debug output is also enabled when the Actions runner has step debugging on.
func Setup(verbose bool) {
	slog.SetDefault(slog.New(NewHandler(os.Stderr, verbose || StepDebug(), isTerminal())))
}

// NewHandler returns the charmbracelet handler Setup installs.
func NewHandler(w io.Writer, debug, tty bool) *charmlog.Logger {
	handler := charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
	})

	if debug {
		handler.SetLevel(charmlog.DebugLevel)
	} else {
		handler.SetLevel(charmlog.InfoLevel)
	}

	// Use plain format for non-TTY output
	if !tty {
		handler.SetFormatter(charmlog.JSONFormatter)
	}
	return handler
}

// StepDebug reports whether ACTIONS_STEP_DEBUG is set.
func StepDebug() bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv("ACTIONS_STEP_DEBUG")))
	return v == "true" || v == "1"
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}
