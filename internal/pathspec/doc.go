// Package pathspec models download destinations as ordered, prioritised path
// segments.
//
// A Segment is a template plus a priority and a placeholder table; a Path is a
// collection of segments rendered in ascending priority order (ties keep their
// append order) and joined with the platform separator. Paths are mutable as
// content moves through pipeline stages, so hand a Clone to any new owner.
package pathspec
