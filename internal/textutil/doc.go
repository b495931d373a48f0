// Package textutil cleans user-provided text before it becomes part of a
// filesystem path.
//
// Every helper returns NFC-normalized output so that names built from
// differently encoded sources compare equal on disk.
package textutil
