package content

import (
	"path/filepath"
	"strings"

	"repertoire/internal/pathspec"
)

// Download is one fetchable item with a resolved destination.
type Download struct {
	// Path is the destination. When PathIsFile is set its last segment is the
	// file itself; otherwise Path is the folder the fetcher writes into.
	Path       *pathspec.Path
	PathIsFile bool

	SourceRef     string
	ID            string
	Variant       string
	FileExtension string

	// Pattern is the glob of the final file name inside Dir. An empty Pattern
	// means the download is complete when Path itself exists.
	Pattern string
}

// Target renders the destination path.
func (d *Download) Target() (string, error) {
	return d.Path.Render()
}

// Dir returns the directory the fetcher writes into.
func (d *Download) Dir() (string, error) {
	target, err := d.Target()
	if err != nil {
		return "", err
	}
	if d.PathIsFile {
		return filepath.Dir(target), nil
	}
	return target, nil
}

// Label renders the destination relative to base with separators replaced by
// " - ", which is how downloads are listed to the operator.
func (d *Download) Label(base string) string {
	target := d.Path.String()
	if base != "" {
		if rel, err := filepath.Rel(base, target); err == nil && !strings.HasPrefix(rel, "..") {
			target = rel
		}
	}
	target = strings.Trim(target, string(filepath.Separator))
	label := strings.ReplaceAll(target, string(filepath.Separator), " - ")
	if d.Variant != "" && !d.PathIsFile {
		label += " [" + d.Variant + "]"
	}
	return label
}

// Key identifies a download for de-duplication within one run.
func (d *Download) Key() string {
	return strings.Join([]string{d.Path.String(), d.SourceRef, d.Variant}, "\x00")
}
