// Package logger builds configured log/slog loggers.
//
// The factory defaults to JSON output at info level, suitable for
// production log pipelines, and can be flipped to human-readable text
// for development via options or env-driven Config. Attribute helpers
// (Error, UserID, SessionID, Tier) keep key names consistent across the
// codebase so that session lifecycle events stay queryable.
package logger
