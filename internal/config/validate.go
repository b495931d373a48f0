package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RootDir) == "" {
		return errors.New("root_dir must be set")
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Run.Concurrency < 0 {
		return errors.New("run.concurrency must not be negative")
	}
	if c.Run.RetryDelaySeconds < 0 {
		return errors.New("run.retry_delay_seconds must not be negative")
	}
	if err := c.validateSources(); err != nil {
		return err
	}
	return c.validateDownloaders()
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (want console or json)", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateSources() error {
	seen := make(map[string]struct{}, len(c.Sources))
	for i, src := range c.Sources {
		key := fmt.Sprintf("sources[%d]", i)
		if _, dup := seen[src.Name]; dup {
			return fmt.Errorf("%s: duplicate source name %q", key, src.Name)
		}
		seen[src.Name] = struct{}{}

		switch src.Type {
		case SourceTypeCSV:
			if len(src.Resources) == 0 {
				return fmt.Errorf("%s.resources is required for csv sources", key)
			}
			if strings.TrimSpace(src.BaseURL) == "" {
				return fmt.Errorf("%s.base_url is required for csv sources", key)
			}
			if len([]rune(src.Delimiter)) != 1 {
				return fmt.Errorf("%s.delimiter must be a single character", key)
			}
			if len(src.Columns) == 0 {
				return fmt.Errorf("%s.columns must list at least one column", key)
			}
		case SourceTypeInline:
			for j, item := range src.Items {
				if strings.TrimSpace(item.Data) == "" {
					return fmt.Errorf("%s.items[%d].data must be set", key, j)
				}
			}
		case "":
			return fmt.Errorf("%s.type must be set", key)
		default:
			return fmt.Errorf("%s.type: unknown source type %q", key, src.Type)
		}
	}
	return nil
}

func (c *Config) validateDownloaders() error {
	seen := make(map[string]struct{}, len(c.Downloaders))
	roots := make([]string, 0, len(c.Downloaders))
	for i, d := range c.Downloaders {
		key := fmt.Sprintf("downloaders[%d]", i)
		if _, dup := seen[d.Name]; dup {
			return fmt.Errorf("%s: duplicate downloader name %q", key, d.Name)
		}
		seen[d.Name] = struct{}{}

		switch d.Type {
		case DownloaderTypeFile:
			if d.Extensions == "" && strings.Contains(d.Pattern, ExtensionsPlaceholder) {
				return fmt.Errorf("%s.extensions is required for file downloaders", key)
			}
		case DownloaderTypeVideo:
			if len(d.Variants) == 0 {
				return fmt.Errorf("%s.variants must list at least one variant", key)
			}
			for j, v := range d.Variants {
				if v.Type == "" || v.Extension == "" {
					return fmt.Errorf("%s.variants[%d] needs both type and extension", key, j)
				}
			}
			if d.IDIndex <= 0 {
				return fmt.Errorf("%s.id_index must be positive", key)
			}
			for j, pe := range d.PermanentErrors {
				if _, err := regexp.Compile(pe.Pattern); err != nil {
					return fmt.Errorf("%s.permanent_errors[%d].pattern: %w", key, j, err)
				}
			}
		case "":
			return fmt.Errorf("%s.type must be set", key)
		default:
			return fmt.Errorf("%s.type: unknown downloader type %q", key, d.Type)
		}

		re, err := regexp.Compile(d.ResolvedPattern())
		if err != nil {
			return fmt.Errorf("%s.pattern: %w", key, err)
		}
		groups := re.NumSubexp()
		if d.URLIndex < 0 || d.URLIndex > groups {
			return fmt.Errorf("%s.url_index %d out of range (pattern has %d groups)", key, d.URLIndex, groups)
		}
		if d.IDIndex < 0 || d.IDIndex > groups {
			return fmt.Errorf("%s.id_index %d out of range (pattern has %d groups)", key, d.IDIndex, groups)
		}

		root := d.PathPart.rendered()
		for j, other := range roots {
			if nested(root, other) || nested(other, root) {
				return fmt.Errorf("%s.path_part overlaps downloader %q", key, c.Downloaders[j].Name)
			}
		}
		roots = append(roots, root)
	}
	return nil
}

// rendered applies the part's own substitutions and returns the cleaned
// relative path, "." when it is empty.
func (p PathPart) rendered() string {
	keys := make([]string, 0, len(p.Substitutions))
	for k := range p.Substitutions {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, k, p.Substitutions[k])
	}
	path := strings.NewReplacer(pairs...).Replace(p.Path)
	return filepath.Clean(filepath.FromSlash(strings.Trim(path, "/")))
}

// nested reports whether inner is outer or lies below it.
func nested(inner, outer string) bool {
	if outer == "." || inner == outer {
		return true
	}
	return strings.HasPrefix(inner, outer+string(filepath.Separator))
}

// ResolvedPattern returns the extraction pattern with the extensions
// placeholder filled in.
func (d Downloader) ResolvedPattern() string {
	return strings.ReplaceAll(d.Pattern, ExtensionsPlaceholder, d.Extensions)
}
