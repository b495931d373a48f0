package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"repertoire/internal/config"
	"repertoire/internal/services"
)

func TestLoadDefaultConfigExpandsRoot(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("REPERTOIRE_ROOT", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if want := filepath.Join(tempHome, "repertoire"); cfg.RootDir != want {
		t.Fatalf("unexpected root dir: got %q want %q", cfg.RootDir, want)
	}
	if !cfg.Run.Interactive {
		t.Fatal("expected interactive default")
	}
	if cfg.Run.Concurrency != 1 {
		t.Fatalf("expected sequential default, got %d", cfg.Run.Concurrency)
	}
	if cfg.LockPath() != filepath.Join(cfg.RootDir, ".repertoire.lock") {
		t.Fatalf("unexpected lock path %q", cfg.LockPath())
	}
}

func TestLoadHonoursRootEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	root := t.TempDir()
	t.Setenv("REPERTOIRE_ROOT", root)

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.RootDir != root {
		t.Fatalf("expected root %q, got %q", root, cfg.RootDir)
	}
}

func TestLoadTOMLAppliesDownloaderDefaults(t *testing.T) {
	t.Setenv("REPERTOIRE_ROOT", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `root_dir = "` + filepath.ToSlash(filepath.Join(dir, "out")) + `"

[[downloaders]]
type = "video"

[downloaders.path_part]
path = "Videos"

[[downloaders]]
type = "file"
name = "pdfs"
extensions = "pdf"
clean_filesystem = false

[downloaders.path_part]
path = "Scores"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config to exist")
	}
	if len(cfg.Downloaders) != 2 {
		t.Fatalf("expected 2 downloaders, got %d", len(cfg.Downloaders))
	}

	video := cfg.Downloaders[0]
	if video.Name != "video" {
		t.Fatalf("expected name to default to type, got %q", video.Name)
	}
	if video.Binary != "yt-dlp" {
		t.Fatalf("unexpected binary %q", video.Binary)
	}
	if video.Filename != "%video_id%.%file_extension%" || video.Options["output"] != "%(id)s.%(ext)s" {
		t.Fatalf("expected exact default file names, got %q and %q", video.Filename, video.Options["output"])
	}
	if len(video.Variants) != 1 || video.Variants[0].Extension != "mp4" {
		t.Fatalf("unexpected default variants %#v", video.Variants)
	}
	if len(video.PermanentErrors) != len(config.DefaultPermanentErrors()) {
		t.Fatalf("expected default permanent errors, got %d", len(video.PermanentErrors))
	}
	if !video.ShouldCleanFilesystem() {
		t.Fatal("expected clean_filesystem to default to true")
	}

	file, ok := cfg.Downloader("pdfs")
	if !ok {
		t.Fatal("expected pdfs downloader")
	}
	if file.ShouldCleanFilesystem() {
		t.Fatal("expected clean_filesystem false to be honoured")
	}
	if file.NbAttempts != 3 {
		t.Fatalf("expected nb_attempts default of 3, got %d", file.NbAttempts)
	}
	if !strings.Contains(file.ResolvedPattern(), "pdf") {
		t.Fatalf("expected extensions in resolved pattern, got %q", file.ResolvedPattern())
	}
}

func TestLoadYAML(t *testing.T) {
	t.Setenv("REPERTOIRE_ROOT", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `root_dir: ` + filepath.ToSlash(filepath.Join(dir, "out")) + `
run:
  interactive: false
  concurrency: 4
sources:
  - type: inline
    name: manual
    items:
      - data: "https://example.org/a.pdf"
        path: "Scores"
downloaders:
  - type: file
    extensions: pdf
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Run.Interactive {
		t.Fatal("expected interactive=false from yaml")
	}
	if cfg.Run.Concurrency != 4 {
		t.Fatalf("expected concurrency 4, got %d", cfg.Run.Concurrency)
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0].Items[0].Path != "Scores" {
		t.Fatalf("unexpected sources %#v", cfg.Sources)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	t.Setenv("REPERTOIRE_ROOT", "")
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "unknown downloader",
			content: "[[downloaders]]\ntype = \"torrent\"\n",
			want:    "unknown downloader type",
		},
		{
			name:    "bad pattern",
			content: "[[downloaders]]\ntype = \"file\"\npattern = \"(unclosed\"\n",
			want:    "pattern",
		},
		{
			name:    "missing extensions",
			content: "[[downloaders]]\ntype = \"file\"\n",
			want:    "extensions is required",
		},
		{
			name:    "url index out of range",
			content: "[[downloaders]]\ntype = \"file\"\npattern = \"(a)\"\nurl_index = 3\n",
			want:    "url_index",
		},
		{
			name:    "same downloader root",
			content: "[[downloaders]]\ntype = \"file\"\nname = \"a\"\nextensions = \"pdf\"\n[[downloaders]]\ntype = \"file\"\nname = \"b\"\nextensions = \"mp3\"\n",
			want:    "overlaps downloader \"a\"",
		},
		{
			name:    "nested downloader root",
			content: "[[downloaders]]\ntype = \"file\"\nname = \"a\"\nextensions = \"pdf\"\npath_part = { path = \"Files\" }\n[[downloaders]]\ntype = \"file\"\nname = \"b\"\nextensions = \"mp3\"\npath_part = { path = \"Files/Videos/\" }\n",
			want:    "overlaps downloader \"a\"",
		},
		{
			name:    "csv without resources",
			content: "[[sources]]\ntype = \"csv\"\nbase_url = \"https://x\"\n",
			want:    "resources is required",
		},
		{
			name:    "unknown key",
			content: "bogus = 1\n",
			want:    "parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "config.toml")
			content := "root_dir = \"" + filepath.ToSlash(dir) + "\"\n" + tt.content
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, _, _, err := config.Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, services.ErrConfiguration) {
				t.Fatalf("expected configuration marker, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in %q", tt.want, err.Error())
			}
		})
	}
}

func TestSampleConfigParses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if len(cfg.Downloaders) != 2 {
		t.Fatalf("expected two sample downloaders, got %d", len(cfg.Downloaders))
	}
	if got := len(cfg.Downloaders[1].Variants[0].Attempts); got != 2 {
		t.Fatalf("expected two attempts on the video variant, got %d", got)
	}
}
