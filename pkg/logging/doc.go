// Package logging provides structured logging configuration for specrun.
//
// This package wraps log/slog so every component logs the same way. It
// supports configurable log levels and output formats.
//
// # Usage
//
// Create a logger with desired configuration:
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelInfo,
//	    Format: logging.FormatText,
//	})
//
//	logger.Info("suite loaded", "tests", len(suite.Tests))
//	logger.Error("request failed", "error", err)
//
// CLI code usually goes through FromFlags, which accepts the string forms
// of the --log-level and --log-format flags. Test runs that keep a log
// file next to their reports use Tee, which fans records out to the
// console and a JSON file copy.
//
// # Log Levels
//
// Four log levels are supported:
//   - Debug: Detailed information for debugging
//   - Info: General operational information
//   - Warn: Warning conditions that should be addressed
//   - Error: Error conditions that need attention
//
// # Output Formats
//
//   - Text: Human-readable format for development
//   - JSON: Structured format for log aggregation systems
//
// # Integration
//
// Components should accept a *slog.Logger in their constructor or via a
// setter. If no logger is provided, use logging.Nop() for a no-op logger.
package logging
