// Package deps checks that external binaries used by downloaders are on PATH.
package deps
