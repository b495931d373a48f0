package pathspec

import (
	"errors"
	"path/filepath"
	"sort"
	"strings"
)

// ErrInvalidPath is returned when a path renders to an empty string.
var ErrInvalidPath = errors.New("invalid path")

// Path is an ordered collection of segments.
type Path struct {
	segments []Segment
}

// New returns a path holding the given segments in append order.
func New(segments ...Segment) *Path {
	return &Path{segments: append([]Segment(nil), segments...)}
}

// Append adds a segment. Its position in the rendered output is decided by its
// priority.
func (p *Path) Append(seg Segment) {
	p.segments = append(p.segments, seg)
}

// Clone returns an independent copy that can be extended without affecting p.
func (p *Path) Clone() *Path {
	if p == nil {
		return New()
	}
	out := &Path{segments: make([]Segment, len(p.segments))}
	for i, seg := range p.segments {
		out.segments[i] = Segment{
			Template:      seg.Template,
			Priority:      seg.Priority,
			Substitutions: copySubstitutions(seg.Substitutions),
		}
	}
	return out
}

// Len reports the number of segments.
func (p *Path) Len() int {
	if p == nil {
		return 0
	}
	return len(p.segments)
}

// Segments returns the segments sorted by priority. Ties keep append order.
func (p *Path) Segments() []Segment {
	if p == nil {
		return nil
	}
	sorted := append([]Segment(nil), p.segments...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	return sorted
}

// Render joins the rendered segments with the platform separator. Segments
// that render empty contribute nothing.
func (p *Path) Render() (string, error) {
	var b strings.Builder
	for _, seg := range p.Segments() {
		rendered := seg.Render()
		if rendered == "" {
			continue
		}
		if b.Len() > 0 && !strings.HasSuffix(b.String(), string(filepath.Separator)) {
			b.WriteRune(filepath.Separator)
		}
		b.WriteString(rendered)
	}
	if b.Len() == 0 {
		return "", ErrInvalidPath
	}
	return b.String(), nil
}

// String renders the path, returning an empty string when it is invalid.
func (p *Path) String() string {
	s, err := p.Render()
	if err != nil {
		return ""
	}
	return s
}
