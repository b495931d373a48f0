package extract

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"repertoire/internal/config"
	"repertoire/internal/content"
	"repertoire/internal/pathspec"
	"repertoire/internal/services"
	"repertoire/internal/textutil"
)

// Placeholders recognized by folder and filename templates.
const (
	PlaceholderVideoID       = "%video_id%"
	PlaceholderFileExtension = "%file_extension%"
	PlaceholderVariant       = "%variant%"
)

// Variant is one file kind emitted per match.
type Variant struct {
	Type      string
	Extension string
}

// Match is one pattern hit.
type Match struct {
	Ref string
	ID  string
}

// Target describes where a match lands for a given variant.
type Target struct {
	Segment    pathspec.Segment
	Pattern    string
	PathIsFile bool
	Extension  string
}

// Layout builds the Target of a match. It returns false to drop the match.
type Layout func(m Match, v Variant) (Target, bool)

// Rule extracts downloads for a single downloader.
type Rule struct {
	Pattern  *regexp.Regexp
	URLIndex int
	IDIndex  int
	Variants []Variant
	Layout   Layout
}

// Extract returns the downloads found in c, in match order. A reference that
// appears more than once produces its downloads only once.
func (r *Rule) Extract(c *content.Content) []*content.Download {
	if c == nil || r.Pattern == nil || c.Data == "" {
		return nil
	}
	var downloads []*content.Download
	for _, groups := range r.Pattern.FindAllStringSubmatch(c.Data, -1) {
		m, ok := r.match(groups)
		if !ok {
			continue
		}
		for _, v := range r.Variants {
			target, ok := r.Layout(m, v)
			if !ok {
				continue
			}
			p := c.Path.Clone()
			p.Append(target.Segment)
			downloads = append(downloads, &content.Download{
				Path:          p,
				PathIsFile:    target.PathIsFile,
				SourceRef:     m.Ref,
				ID:            m.ID,
				Variant:       v.Type,
				FileExtension: target.Extension,
				Pattern:       target.Pattern,
			})
		}
	}
	return content.Dedupe(downloads, (*content.Download).Key)
}

func (r *Rule) match(groups []string) (Match, bool) {
	if r.URLIndex >= len(groups) || r.IDIndex >= len(groups) {
		return Match{}, false
	}
	m := Match{Ref: strings.TrimSpace(groups[r.URLIndex])}
	if r.IDIndex > 0 {
		m.ID = groups[r.IDIndex]
	}
	return m, m.Ref != ""
}

// FileLayout places the decoded basename of the reference at
// config.FilenamePriority. The download is complete when that file exists.
func FileLayout() Layout {
	return func(m Match, v Variant) (Target, bool) {
		name := referenceBasename(m.Ref)
		if name == "" {
			return Target{}, false
		}
		ext := strings.TrimPrefix(path.Ext(name), ".")
		if v.Extension != "" {
			ext = v.Extension
		}
		return Target{
			Segment:    pathspec.NewSegment(name, config.FilenamePriority, nil),
			PathIsFile: true,
			Extension:  ext,
		}, true
	}
}

// TemplateLayout places downloads in a folder rendered from folder. The
// download is complete when a file matching the rendered filename glob exists
// directly inside that folder.
func TemplateLayout(folder, filename string) Layout {
	return func(m Match, v Variant) (Target, bool) {
		subs := map[string]string{
			PlaceholderVideoID:       m.ID,
			PlaceholderFileExtension: v.Extension,
			PlaceholderVariant:       v.Type,
		}
		pattern := pathspec.NewSegment(filename, 0, subs).Render()
		return Target{
			Segment:   pathspec.NewSegment(folder, config.FilenamePriority, subs),
			Pattern:   pattern,
			Extension: v.Extension,
		}, true
	}
}

func referenceBasename(ref string) string {
	decoded, err := url.QueryUnescape(ref)
	if err != nil {
		decoded = ref
	}
	if u, err := url.Parse(ref); err == nil && u.Path != "" {
		if p, err := url.PathUnescape(u.Path); err == nil {
			decoded = p
		}
	}
	return textutil.SanitizeFileName(path.Base(strings.TrimRight(decoded, "/")))
}

// FromConfig compiles the rule of a validated downloader.
func FromConfig(d config.Downloader) (*Rule, error) {
	pattern, err := regexp.Compile(d.ResolvedPattern())
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "extract", "compile pattern", fmt.Sprintf("downloader %q", d.Name), err)
	}
	rule := &Rule{
		Pattern:  pattern,
		URLIndex: d.URLIndex,
		IDIndex:  d.IDIndex,
	}
	switch d.Type {
	case config.DownloaderTypeFile:
		rule.Variants = []Variant{{Type: config.DownloaderTypeFile}}
		rule.Layout = FileLayout()
	case config.DownloaderTypeVideo:
		for _, v := range d.Variants {
			rule.Variants = append(rule.Variants, Variant{Type: v.Type, Extension: v.Extension})
		}
		rule.Layout = TemplateLayout(d.Folder, d.Filename)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "extract", "build rule", fmt.Sprintf("unknown downloader type %q", d.Type), nil)
	}
	return rule, nil
}
