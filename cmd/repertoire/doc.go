// Package main hosts the repertoire CLI entrypoint and command graph.
//
// The Cobra command tree loads configuration once, builds a structured
// logger, and hands the real work to internal/workflow. sync reconciles the
// managed root and fetches what is missing, plan shows the same
// reconciliation without touching the disk, and doctor reports environment
// readiness.
//
// Keep this package lean: new behaviour belongs in the internal packages and
// is only surfaced here through commands or flags.
package main
