// Package workflow runs one synchronisation pass over the managed tree.
//
// A Runner loads every configured source into Content, then processes each
// downloader in configuration order:
//
//  1. Build the downloader root (root_dir plus the downloader path_part) and
//     extend a clone of every content path with the downloader segment.
//  2. Extract downloads with the downloader rule.
//  3. Reconcile them against the disk (read-only).
//  4. When clean_filesystem is on, confirm and prune orphan folders.
//  5. Confirm and fetch the downloads that are still needed.
//
// Sync holds an exclusive lock file in the root for the whole pass so two
// runs never mutate the tree at once. Plan performs steps 1 to 3 without
// creating anything.
package workflow
