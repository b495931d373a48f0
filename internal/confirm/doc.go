// Package confirm decides whether a destructive or expensive batch should
// run. The same Gate guards folder pruning and file downloads.
//
// Batches of at most ListThreshold items are listed and default to yes.
// Larger batches only show their size and default to no, so the operator has
// to opt in explicitly.
package confirm
