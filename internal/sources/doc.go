// Package sources produces Content for a run.
//
// Sources never fail a run: a source that cannot read its backend logs the
// problem and yields what it could read, possibly nothing. Types are
// registered by name in a Registry.
package sources
