// Package logging assembles structured slog loggers and formatting helpers used
// across the repertoire pipeline.
//
// It owns the console/JSON handlers, centralizes level and output plumbing, and
// exposes context-aware helpers so stage code automatically tags log lines with
// the run ID, downloader, and stage. A no-op logger is provided for tests and
// wiring code that cannot fail.
//
// Operator-facing progress output (listings, prompts, the end-of-batch error
// summary) is written to the command's output writer, not through this package.
package logging
