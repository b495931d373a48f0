// Package services defines shared utilities consumed by the pipeline stages and
// the downloader integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, downloader names, and stage names for
//     logging.
//   - Structured error markers plus the Wrap helper that let the fetch executor
//     and the CLI tell permanent failures from retryable ones.
//
// Use these helpers when wiring new downloaders so operational behaviour (error
// handling, observability, retries) stays uniform across the pipeline.
package services
