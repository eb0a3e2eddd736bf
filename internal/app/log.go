// ABOUTME: Package logger for the listener application
// ABOUTME: Disabled until the application installs a subsystem logger
package app

import "github.com/decred/slog"

// log is disabled by default; callers install a logger with UseLogger.
var log = slog.Disabled

// UseLogger sets the package logger
func UseLogger(logger slog.Logger) {
	log = logger
}
