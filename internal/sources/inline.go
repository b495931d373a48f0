package sources

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"repertoire/internal/config"
	"repertoire/internal/content"
	"repertoire/internal/pathspec"
	"repertoire/internal/textutil"
)

// PlaceholderItemPath is replaced by the item's own path in the source
// path_part.
const PlaceholderItemPath = "%item_path%"

// Inline serves items declared in the configuration file.
type Inline struct {
	cfg    config.Source
	logger *slog.Logger
}

// NewInline builds an inline source.
func NewInline(cfg config.Source, logger *slog.Logger) (Source, error) {
	return &Inline{cfg: cfg, logger: logger}, nil
}

func (s *Inline) Name() string { return s.cfg.Name }

// Contents returns one Content per item in declaration order. Without a
// path_part the item path, if any, becomes the segment.
func (s *Inline) Contents(context.Context) []*content.Content {
	out := make([]*content.Content, 0, len(s.cfg.Items))
	for _, item := range s.cfg.Items {
		itemPath := cleanItemPath(item.Path)
		path := pathspec.New()
		switch {
		case s.cfg.PathPart.Path != "":
			path.Append(pathspec.FromConfig(s.cfg.PathPart, map[string]string{PlaceholderItemPath: itemPath}))
		case itemPath != "":
			path.Append(pathspec.NewSegment(itemPath, s.cfg.PathPart.Priority, nil))
		}
		out = append(out, content.New(item.Data, path))
	}
	return out
}

// cleanItemPath sanitizes each slash-separated component and drops empty
// ones, so an item path can never climb out of its parent.
func cleanItemPath(raw string) string {
	var parts []string
	for _, part := range strings.Split(filepath.ToSlash(raw), "/") {
		if clean := textutil.SanitizeFileName(part); clean != "" {
			parts = append(parts, clean)
		}
	}
	return filepath.Join(parts...)
}
