package reconcile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"repertoire/internal/logging"
	"repertoire/internal/services"
)

// PruneReport lists what Prune removed and what it could not.
type PruneReport struct {
	Removed  []string
	Failures []services.ItemError
}

// Err returns the joined failures, or nil.
func (p PruneReport) Err() error {
	return services.Join(p.Failures)
}

// Relative renders path relative to the reconciler root for display.
func (r *Reconciler) Relative(path string) string {
	rel, err := filepath.Rel(r.Root(), path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

// Prune removes orphan directories. Each failure is recorded and the remaining
// directories are still processed. Paths that are not strictly below root are
// refused.
func (r *Reconciler) Prune(ctx context.Context, orphans []string) PruneReport {
	logger := logging.WithContext(ctx, r.logger)
	root := r.Root()
	var report PruneReport
	for _, dir := range orphans {
		label := r.Relative(dir)
		if err := ctx.Err(); err != nil {
			report.Failures = append(report.Failures, services.ItemError{Item: label, Err: err})
			continue
		}
		rel, err := filepath.Rel(root, dir)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
			report.Failures = append(report.Failures, services.ItemError{
				Item: label,
				Err:  fmt.Errorf("%w: %s", ErrOutsideRoot, dir),
			})
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			logging.WarnWithContext(logger, "folder removal failed", "prune_failed",
				logging.String("path", dir),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions below the root directory"),
				logging.String(logging.FieldImpact, "stale folder left on disk"),
			)
			report.Failures = append(report.Failures, services.ItemError{
				Item: label,
				Err:  services.Wrap(services.ErrFilesystem, "reconcile", "remove folder", label, err),
			})
			continue
		}
		logger.Info("folder removed", logging.String("path", dir))
		report.Removed = append(report.Removed, dir)
	}
	return report
}
