package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"repertoire/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config rooted in a unique temp directory per test. It
// is non-interactive and has no sources or downloaders unless options add
// them.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.RootDir = filepath.Join(base, "root")
	cfgVal.Run.Interactive = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithSource appends a source.
func WithSource(src config.Source) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sources = append(b.cfg.Sources, src)
	}
}

// WithInlineSource appends an inline source holding one item per data string.
func WithInlineSource(name string, data ...string) ConfigOption {
	return func(b *configBuilder) {
		src := config.Source{Type: config.SourceTypeInline, Name: name}
		for _, d := range data {
			src.Items = append(src.Items, config.InlineItem{Data: d})
		}
		b.cfg.Sources = append(b.cfg.Sources, src)
	}
}

// WithDownloader appends a downloader.
func WithDownloader(d config.Downloader) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Downloaders = append(b.cfg.Downloaders, d)
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, yt-dlp is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"yt-dlp"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir returns the temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.RootDir)
}
