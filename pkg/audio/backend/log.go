// ABOUTME: Package logger for backend
// ABOUTME: Disabled until the application installs a subsystem logger
package backend

import "github.com/decred/slog"

// log is disabled by default; callers install a logger with UseLogger.
var log = slog.Disabled

// UseLogger sets the package logger
func UseLogger(logger slog.Logger) {
	log = logger
}
