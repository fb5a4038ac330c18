// Package logger builds log/slog loggers for the hyperdrive CLI.
//
// Diagnostics go to stderr in text or JSON form; command results printed for
// the user go to stdout and never pass through the logger.
package logger
