package preflight

import (
	"context"
	"fmt"

	"repertoire/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every applicable preflight check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// Root directory (always checked)
	results = append(results, CheckDirectoryAccess("Root directory", cfg.RootDir))

	for _, src := range cfg.Sources {
		if src.Type != config.SourceTypeCSV {
			continue
		}
		for _, resource := range src.Resources {
			results = append(results, CheckFileReadable(fmt.Sprintf("Source %s", src.Name), resource))
		}
		if src.BaseURL != "" {
			results = append(results, CheckURL(ctx, fmt.Sprintf("Source %s host", src.Name), src.BaseURL))
		}
	}

	return results
}
