package content

import "repertoire/internal/pathspec"

// Content is a unit of source text with the path it should be stored under.
// Each pipeline stage appends a segment to Path; a Content owns its Path.
type Content struct {
	Data string
	Path *pathspec.Path
}

// New builds a Content, taking ownership of path.
func New(data string, path *pathspec.Path) *Content {
	if path == nil {
		path = pathspec.New()
	}
	return &Content{Data: data, Path: path}
}

// Clone returns a copy whose Path can be extended independently.
func (c *Content) Clone() *Content {
	return &Content{Data: c.Data, Path: c.Path.Clone()}
}
