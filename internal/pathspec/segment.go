package pathspec

import (
	"os"
	"sort"
	"strings"

	"repertoire/internal/config"
)

// Segment is one templated component of a Path.
type Segment struct {
	Template      string
	Priority      int
	Substitutions map[string]string
}

// NewSegment builds a segment with trailing path separators trimmed from the
// template.
func NewSegment(template string, priority int, substitutions map[string]string) Segment {
	return Segment{
		Template:      trimSeparators(template),
		Priority:      priority,
		Substitutions: copySubstitutions(substitutions),
	}
}

// FromConfig converts a configured path part into a segment, merging extra
// substitutions over the configured ones.
func FromConfig(part config.PathPart, extra map[string]string) Segment {
	subs := copySubstitutions(part.Substitutions)
	for k, v := range extra {
		if subs == nil {
			subs = make(map[string]string, len(extra))
		}
		subs[k] = v
	}
	return NewSegment(part.Path, part.Priority, subs)
}

// Render replaces every placeholder occurrence in a single pass. Replacement
// values are never rescanned, and placeholders without a substitution are left
// verbatim. Separators left trailing by an empty value are trimmed.
func (s Segment) Render() string {
	if len(s.Substitutions) == 0 || s.Template == "" {
		return s.Template
	}
	keys := make([]string, 0, len(s.Substitutions))
	for k := range s.Substitutions {
		if k != "" {
			keys = append(keys, k)
		}
	}
	// Longest key first so overlapping placeholders resolve deterministically.
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		pairs = append(pairs, k, s.Substitutions[k])
	}
	return trimSeparators(strings.NewReplacer(pairs...).Replace(s.Template))
}

func trimSeparators(template string) string {
	trimmed := strings.TrimRight(template, "/"+string(os.PathSeparator))
	if trimmed == "" && template != "" {
		// A bare separator is the filesystem root, not an empty segment.
		return string(os.PathSeparator)
	}
	return trimmed
}

func copySubstitutions(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
