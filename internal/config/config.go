package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"repertoire/internal/services"
)

//go:embed sample_config.toml
var sampleConfig string

// PathPart configures one segment of a download path.
type PathPart struct {
	Path          string            `toml:"path" yaml:"path"`
	Priority      int               `toml:"priority" yaml:"priority"`
	Substitutions map[string]string `toml:"substitutions" yaml:"substitutions"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format" yaml:"format"`
	Level  string `toml:"level" yaml:"level"`
	File   string `toml:"file" yaml:"file"`
}

// Run contains per-run execution settings.
type Run struct {
	// Interactive enables confirmation prompts. The CLI additionally requires
	// stdin to be a terminal.
	Interactive bool `toml:"interactive" yaml:"interactive"`
	// Concurrency bounds the fetch worker pool. 1 keeps fetches sequential.
	Concurrency int `toml:"concurrency" yaml:"concurrency"`
	// RetryDelaySeconds is the flat pause between two attempts of one download.
	RetryDelaySeconds int `toml:"retry_delay_seconds" yaml:"retry_delay_seconds"`
}

// InlineItem is one content entry declared directly in the configuration.
type InlineItem struct {
	Data string `toml:"data" yaml:"data"`
	Path string `toml:"path" yaml:"path"`
}

// Source configures a content source.
type Source struct {
	Type     string   `toml:"type" yaml:"type"`
	Name     string   `toml:"name" yaml:"name"`
	PathPart PathPart `toml:"path_part" yaml:"path_part"`

	// csv
	Resources     []string `toml:"resources" yaml:"resources"`
	Delimiter     string   `toml:"delimiter" yaml:"delimiter"`
	Columns       []int    `toml:"columns" yaml:"columns"`
	BaseURL       string   `toml:"base_url" yaml:"base_url"`
	BaseURLColumn int      `toml:"base_url_column" yaml:"base_url_column"`
	TitleCase     bool     `toml:"title_case" yaml:"title_case"`

	// inline
	Items []InlineItem `toml:"items" yaml:"items"`
}

// Variant is one file kind a downloader produces for every match.
type Variant struct {
	Type      string `toml:"type" yaml:"type"`
	Extension string `toml:"extension" yaml:"extension"`
	// Attempts lists option overrides, one entry per attempt, merged over the
	// downloader's Options.
	Attempts []map[string]string `toml:"attempts" yaml:"attempts"`
}

// PermanentError maps fetch tool output to a non-retryable failure.
type PermanentError struct {
	Pattern string `toml:"pattern" yaml:"pattern"`
	Reason  string `toml:"reason" yaml:"reason"`
}

// Downloader configures one downloader stage.
type Downloader struct {
	Type            string   `toml:"type" yaml:"type"`
	Name            string   `toml:"name" yaml:"name"`
	CleanFilesystem *bool    `toml:"clean_filesystem" yaml:"clean_filesystem"`
	PathPart        PathPart `toml:"path_part" yaml:"path_part"`

	Pattern    string `toml:"pattern" yaml:"pattern"`
	URLIndex   int    `toml:"url_index" yaml:"url_index"`
	IDIndex    int    `toml:"id_index" yaml:"id_index"`
	Extensions string `toml:"extensions" yaml:"extensions"`

	// file
	NbAttempts            int `toml:"nb_attempts" yaml:"nb_attempts"`
	RequestTimeoutSeconds int `toml:"request_timeout_seconds" yaml:"request_timeout_seconds"`

	// video
	Binary                string            `toml:"binary" yaml:"binary"`
	Folder                string            `toml:"folder" yaml:"folder"`
	Filename              string            `toml:"filename" yaml:"filename"`
	Referer               string            `toml:"referer" yaml:"referer"`
	Options               map[string]string `toml:"options" yaml:"options"`
	Variants              []Variant         `toml:"variants" yaml:"variants"`
	PermanentErrors       []PermanentError  `toml:"permanent_errors" yaml:"permanent_errors"`
	AttemptTimeoutSeconds int               `toml:"attempt_timeout_seconds" yaml:"attempt_timeout_seconds"`
}

// ShouldCleanFilesystem reports whether orphan pruning runs for this downloader.
func (d Downloader) ShouldCleanFilesystem() bool {
	if d.CleanFilesystem == nil {
		return true
	}
	return *d.CleanFilesystem
}

// Config encapsulates all configuration values for repertoire.
//
// Configuration sections:
//   - RootDir: the managed directory tree every download lands under
//   - Logging: log format, level, and optional file
//   - Run: interactivity, fetch concurrency, and retry pacing
//   - Sources: where content comes from
//   - Downloaders: how links are extracted and fetched
type Config struct {
	RootDir     string       `toml:"root_dir" yaml:"root_dir"`
	LockFile    string       `toml:"lock_file" yaml:"lock_file"`
	Logging     Logging      `toml:"logging" yaml:"logging"`
	Run         Run          `toml:"run" yaml:"run"`
	Sources     []Source     `toml:"sources" yaml:"sources"`
	Downloaders []Downloader `toml:"downloaders" yaml:"downloaders"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/repertoire/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. Every failure is tagged with
// services.ErrConfiguration.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, services.Wrap(services.ErrConfiguration, "config", "resolve", "", err)
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, services.Wrap(services.ErrConfiguration, "config", "open", resolvedPath, err)
		}
		defer file.Close()

		if err := decode(file, resolvedPath, &cfg); err != nil {
			return nil, "", false, services.Wrap(services.ErrConfiguration, "config", "parse", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, services.Wrap(services.ErrConfiguration, "config", "normalize", "", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, services.Wrap(services.ErrConfiguration, "config", "validate", "", err)
	}

	return &cfg, resolvedPath, exists, nil
}

func decode(r io.Reader, path string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		decoder := yaml.NewDecoder(r)
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	default:
		decoder := toml.NewDecoder(r)
		decoder.DisallowUnknownFields()
		return decoder.Decode(cfg)
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}

	for _, name := range []string{"repertoire.toml", "repertoire.yaml", "repertoire.yml"} {
		projectPath, err := filepath.Abs(name)
		if err != nil {
			return "", false, err
		}
		if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
			return projectPath, true, nil
		}
	}

	return defaultPath, false, nil
}

// LockPath returns the absolute path of the run lock file inside the root.
func (c *Config) LockPath() string {
	return filepath.Join(c.RootDir, c.LockFile)
}

// EnsureDirectories creates the managed root so reconciliation and locking
// have somewhere to operate.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.RootDir, 0o755); err != nil {
		return fmt.Errorf("create root directory %q: %w", c.RootDir, err)
	}
	return nil
}

// Downloader returns the downloader configuration with the given name.
func (c *Config) Downloader(name string) (Downloader, bool) {
	for _, d := range c.Downloaders {
		if d.Name == name {
			return d, true
		}
	}
	return Downloader{}, false
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
