package logging

import (
	"log/slog"
	"os"
)

// New returns a *slog.Logger backed by PrettyHandler writing to stderr,
// the logger every component in this module derives its child loggers
// from via .With("component", ...).
func New() *slog.Logger {
	return slog.New(NewPrettyHandler(os.Stderr, nil))
}
