package downloaders

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"repertoire/internal/config"
	"repertoire/internal/content"
	"repertoire/internal/extract"
	"repertoire/internal/fetch"
	"repertoire/internal/logging"
	"repertoire/internal/services"
)

// AttemptKeyOutput is the option naming the output template. It is resolved
// inside the destination folder.
const AttemptKeyOutput = "output"

const outputTailLines = 20

// NewVideo builds the "video" downloader backed by an external binary.
func NewVideo(cfg config.Downloader, deps Dependencies) (*Downloader, error) {
	rule, err := extract.FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	classifier, err := NewPatternClassifier(cfg.PermanentErrors)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "video", "compile permanent errors", cfg.Name, err)
	}
	fetcher := &CommandFetcher{
		binary:  cfg.Binary,
		exec:    deps.Executor,
		timeout: time.Duration(cfg.AttemptTimeoutSeconds) * time.Second,
		logger:  deps.Logger,
	}
	return &Downloader{
		Config: cfg,
		Rule:   rule,
		Strategy: fetch.Strategy{
			Fetcher:    fetcher,
			Classifier: classifier,
			Planner:    VariantPlanner(cfg),
		},
	}, nil
}

// VariantPlanner returns, for each download, its variant's attempt list
// merged over the downloader options. A variant without attempts gets one
// attempt with the downloader options. A configured referer is added to every
// attempt.
func VariantPlanner(cfg config.Downloader) fetch.Planner {
	plans := make(map[string][]fetch.AttemptConfig, len(cfg.Variants))
	for _, v := range cfg.Variants {
		overrides := v.Attempts
		if len(overrides) == 0 {
			overrides = []map[string]string{nil}
		}
		attempts := make([]fetch.AttemptConfig, 0, len(overrides))
		for _, override := range overrides {
			attempt := fetch.AttemptConfig{}
			for k, val := range cfg.Options {
				attempt[k] = val
			}
			for k, val := range override {
				attempt[k] = val
			}
			if cfg.Referer != "" {
				attempt[AttemptKeyReferer] = cfg.Referer
			}
			attempts = append(attempts, attempt)
		}
		plans[v.Type] = attempts
	}
	return fetch.PlannerFunc(func(d *content.Download) []fetch.AttemptConfig {
		return plans[d.Variant]
	})
}

// CommandFetcher runs the external downloader once per attempt.
type CommandFetcher struct {
	binary  string
	exec    Executor
	timeout time.Duration
	logger  *slog.Logger
}

// Fetch runs the binary with the attempt options as flags. On failure the
// returned error carries the tail of the tool output so classifiers can match
// it.
func (f *CommandFetcher) Fetch(ctx context.Context, d *content.Download, attempt fetch.AttemptConfig, destDir string) error {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	args := BuildArgs(attempt, destDir, d.SourceRef)
	var tail []string
	err := f.exec.Run(ctx, f.binary, args, func(line string) {
		tail = append(tail, line)
		if len(tail) > outputTailLines {
			tail = tail[1:]
		}
		if f.logger != nil {
			f.logger.Debug("fetch tool output", logging.String("line", line))
		}
	})
	if err != nil {
		detail := strings.Join(tail, "\n")
		if detail == "" {
			detail = "no output"
		}
		return services.Wrap(services.ErrExternalTool, "video", f.binary,
			fmt.Sprintf("%s [%s]: %s", d.ID, d.Variant, detail), err)
	}
	return nil
}

// BuildArgs turns an attempt into command line flags. Keys are emitted in
// sorted order; "true" values become bare flags and "false" values are
// dropped. The output template is placed inside destDir.
func BuildArgs(attempt fetch.AttemptConfig, destDir, ref string) []string {
	keys := make([]string, 0, len(attempt))
	for k := range attempt {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]string, 0, len(keys)*2+2)
	for _, k := range keys {
		val := attempt[k]
		flag := "--" + strings.TrimLeft(k, "-")
		switch {
		case k == AttemptKeyOutput:
			args = append(args, flag, filepath.Join(destDir, val))
		case strings.EqualFold(val, "true") || val == "":
			args = append(args, flag)
		case strings.EqualFold(val, "false"):
		default:
			args = append(args, flag, val)
		}
	}
	if _, ok := attempt[AttemptKeyOutput]; !ok {
		args = append(args, "--paths", destDir)
	}
	return append(args, ref)
}

// PatternClassifier marks failures whose text matches a known permanent
// condition.
type PatternClassifier struct {
	rules []classifierRule
}

type classifierRule struct {
	pattern *regexp.Regexp
	reason  string
}

// NewPatternClassifier compiles the configured permanent error patterns.
func NewPatternClassifier(entries []config.PermanentError) (*PatternClassifier, error) {
	c := &PatternClassifier{}
	for _, entry := range entries {
		re, err := regexp.Compile(entry.Pattern)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", entry.Pattern, err)
		}
		c.rules = append(c.rules, classifierRule{pattern: re, reason: entry.Reason})
	}
	return c, nil
}

// Classify returns the reason of the first matching rule with %video_id%
// replaced.
func (c *PatternClassifier) Classify(d *content.Download, err error) (string, bool) {
	if err == nil {
		return "", false
	}
	text := err.Error()
	for _, rule := range c.rules {
		if rule.pattern.MatchString(text) {
			reason := rule.reason
			if reason == "" {
				reason = rule.pattern.String()
			}
			return strings.ReplaceAll(reason, extract.PlaceholderVideoID, d.ID), true
		}
	}
	return "", false
}
