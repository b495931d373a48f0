package fetch

import (
	"context"

	"repertoire/internal/content"
)

// AttemptConfig holds the options of one attempt, e.g. fetch tool flags.
type AttemptConfig map[string]string

// Fetcher retrieves one download into destDir. It must create destDir when
// absent.
type Fetcher interface {
	Fetch(ctx context.Context, d *content.Download, attempt AttemptConfig, destDir string) error
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, d *content.Download, attempt AttemptConfig, destDir string) error

func (f FetcherFunc) Fetch(ctx context.Context, d *content.Download, attempt AttemptConfig, destDir string) error {
	return f(ctx, d, attempt, destDir)
}

// Classifier decides whether a fetch failure can never succeed. It returns
// the operator-facing reason when it cannot.
type Classifier interface {
	Classify(d *content.Download, err error) (reason string, permanent bool)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(d *content.Download, err error) (string, bool)

func (f ClassifierFunc) Classify(d *content.Download, err error) (string, bool) {
	return f(d, err)
}

// Planner returns the ordered attempt configurations for a download.
type Planner interface {
	Attempts(d *content.Download) []AttemptConfig
}

// PlannerFunc adapts a function to Planner.
type PlannerFunc func(d *content.Download) []AttemptConfig

func (f PlannerFunc) Attempts(d *content.Download) []AttemptConfig {
	return f(d)
}

// Strategy bundles what a downloader type supplies to the executor.
type Strategy struct {
	Fetcher    Fetcher
	Classifier Classifier
	Planner    Planner
}
