// Package logging constructs the structured logger shared across the
// flow-table engine and its CLI, following the zap construction
// pattern used across AKJUS-bsc-erigon's subsystems: build once at
// startup, thread the *zap.Logger through constructors, never reach
// for a package-level global.
package logging

import "go.uber.org/zap"

// New builds a development-mode logger (human-readable, colorized
// level names) when debug is true, otherwise a production JSON logger.
func New(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// NewNop returns a logger that discards everything, for tests and for
// callers that have not configured logging.
func NewNop() *zap.Logger {
	return zap.NewNop()
}
