// Package reconcile compares the expected downloads of one downloader with
// what is already on disk below its root directory.
//
// Reconcile never touches the network. It runs two passes:
//
//   - Completion scan: every download whose final file is present moves to
//     AlreadySatisfied and the folder holding that file is recorded in
//     CompletedFolders.
//   - Orphan scan: directories below root are visited shallowest first. A
//     directory that is neither an ancestor of a kept folder nor inside an
//     orphan already reported becomes an orphan itself, so a stale subtree is
//     reported once at its top.
//
// Prune removes the orphans and accumulates per-directory failures in a
// PruneReport instead of aborting.
package reconcile
