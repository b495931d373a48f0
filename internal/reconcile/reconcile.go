package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"repertoire/internal/content"
	"repertoire/internal/logging"
	"repertoire/internal/services"
)

// intermediateName matches the per-format streams a video tool writes before
// merging them, e.g. "Clip [id].f137.mp4".
var intermediateName = regexp.MustCompile(`\.f\d+(-\d+)?\.[^.]+$`)

// ErrOutsideRoot marks a path expected below root that does not reach it by
// walking parents.
var ErrOutsideRoot = errors.New("path outside root")

// Result holds the outcome of a reconciliation.
type Result struct {
	AlreadySatisfied []*content.Download
	StillNeeded      []*content.Download
	// CompletedFolders holds canonical absolute paths, sorted.
	CompletedFolders []string
	// OrphanDirectories holds canonical absolute paths, shallowest first.
	OrphanDirectories []string
	// Rejected lists downloads whose destination is not below root. They are
	// neither fetched nor kept.
	Rejected []services.ItemError
}

// Reconciler scans a single root directory.
type Reconciler struct {
	root   string
	logger *slog.Logger
}

// New creates a Reconciler for root.
func New(root string, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		root:   root,
		logger: logging.NewComponentLogger(logger, "reconcile"),
	}
}

// Root returns the canonical root directory.
func (r *Reconciler) Root() string {
	return canonical(r.root)
}

// Reconcile partitions downloads into satisfied and needed and lists the
// directories below root that no longer hold anything expected. Downloads
// outside root are returned in Result.Rejected. A missing root yields no
// satisfied downloads and no orphans.
func (r *Reconciler) Reconcile(ctx context.Context, downloads []*content.Download) (Result, error) {
	logger := logging.WithContext(ctx, r.logger)
	root := r.Root()

	var result Result
	downloads, result.Rejected = r.splitOutside(root, downloads, logger)

	info, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Debug("root missing; nothing to reconcile", logging.String("root", root))
		result.StillNeeded = downloads
		return result, nil
	}
	if err != nil {
		return Result{}, services.Wrap(services.ErrFilesystem, "reconcile", "stat root", root, err)
	}
	if !info.IsDir() {
		return Result{}, services.Wrap(services.ErrFilesystem, "reconcile", "stat root", fmt.Sprintf("%s is not a directory", root), nil)
	}

	completed := make(map[string]struct{})
	keep := make(map[string]struct{})
	for _, d := range downloads {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		folder, found := r.findFinal(d, logger)
		if !found {
			result.StillNeeded = append(result.StillNeeded, d)
			if dir, err := d.Dir(); err == nil {
				keep[canonical(dir)] = struct{}{}
			}
			continue
		}
		result.AlreadySatisfied = append(result.AlreadySatisfied, d)
		completed[folder] = struct{}{}
		keep[folder] = struct{}{}
	}
	for folder := range completed {
		result.CompletedFolders = append(result.CompletedFolders, folder)
	}
	sort.Strings(result.CompletedFolders)

	kept, err := ancestors(root, keep)
	if err != nil {
		return Result{}, err
	}
	orphans, err := r.orphans(ctx, root, kept)
	if err != nil {
		return Result{}, err
	}
	result.OrphanDirectories = orphans

	logger.Debug("reconciliation complete",
		logging.String("root", root),
		logging.Int("satisfied", len(result.AlreadySatisfied)),
		logging.Int("needed", len(result.StillNeeded)),
		logging.Int("orphans", len(result.OrphanDirectories)),
		logging.Int("rejected", len(result.Rejected)),
	)
	return result, nil
}

// splitOutside drops downloads whose folder does not resolve below root and
// records each one as a rejected item. Unrenderable paths are kept; the
// completion check reports them.
func (r *Reconciler) splitOutside(root string, downloads []*content.Download, logger *slog.Logger) ([]*content.Download, []services.ItemError) {
	var (
		inside   = make([]*content.Download, 0, len(downloads))
		rejected []services.ItemError
	)
	for _, d := range downloads {
		dir, err := d.Dir()
		if err != nil || isBelow(root, canonical(dir)) {
			inside = append(inside, d)
			continue
		}
		label := d.Label(root)
		logging.WarnWithContext(logger, "download destination outside root", "download_outside_root",
			logging.String("path", dir),
			logging.String("root", root),
			logging.String(logging.FieldErrorHint, "check the path_part substitutions for .. segments"),
			logging.String(logging.FieldImpact, "download skipped"),
		)
		rejected = append(rejected, services.ItemError{
			Item: label,
			Err:  fmt.Errorf("%w: %s is not below %s", ErrOutsideRoot, dir, root),
		})
	}
	return inside, rejected
}

// isBelow reports whether dir is root or lies under it.
func isBelow(root, dir string) bool {
	if dir == root {
		return true
	}
	rel, err := filepath.Rel(root, dir)
	if err != nil || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// findFinal looks for the final file of d directly inside its folder and returns
// that folder when found. Partial files and unmerged format streams never
// count as the final file.
func (r *Reconciler) findFinal(d *content.Download, logger *slog.Logger) (string, bool) {
	if d.Pattern == "" {
		target, err := d.Target()
		if err != nil {
			logging.WarnWithContext(logger, "download has no resolvable path", "download_path_invalid",
				logging.String("source_ref", d.SourceRef),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the path_part configuration"),
			)
			return "", false
		}
		info, err := os.Stat(target)
		if err != nil || !info.Mode().IsRegular() {
			return "", false
		}
		return canonical(filepath.Dir(target)), true
	}

	dir, err := d.Dir()
	if err != nil {
		return "", false
	}
	if strings.ContainsRune(d.Pattern, '/') || strings.Contains(d.Pattern, "**") {
		logging.WarnWithContext(logger, "completion pattern must name a file, not a path", "completion_pattern_invalid",
			logging.String("pattern", d.Pattern),
			logging.String(logging.FieldErrorHint, "remove separators from the filename template"),
		)
		return "", false
	}
	matches, err := doublestar.Glob(os.DirFS(dir), d.Pattern, doublestar.WithFilesOnly())
	if err != nil {
		return "", false
	}
	for _, name := range matches {
		if !intermediateName.MatchString(name) {
			return canonical(dir), true
		}
	}
	return "", false
}

func (r *Reconciler) orphans(ctx context.Context, root string, kept map[string]struct{}) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logging.WarnWithContext(r.logger, "skipping unreadable directory", "reconcile_walk_error",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check directory permissions"),
			)
			return fs.SkipDir
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if entry.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return nil, services.Wrap(services.ErrFilesystem, "reconcile", "walk root", root, err)
	}

	// Shallowest first. WalkDir yields lexical order, which breaks depth ties.
	sort.SliceStable(dirs, func(i, j int) bool {
		return depth(root, dirs[i]) < depth(root, dirs[j])
	})

	var orphans []string
	removed := make(map[string]struct{})
	for _, dir := range dirs {
		if _, ok := kept[dir]; ok {
			continue
		}
		if within(root, dir, removed) {
			continue
		}
		orphans = append(orphans, dir)
		removed[dir] = struct{}{}
	}
	return orphans, nil
}

// ancestors returns every directory in keep together with its parents up to,
// but excluding, root.
func ancestors(root string, keep map[string]struct{}) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(keep))
	for dir := range keep {
		current := dir
		for current != root {
			if _, seen := out[current]; seen {
				break
			}
			out[current] = struct{}{}
			parent := filepath.Dir(current)
			if parent == current {
				return nil, fmt.Errorf("%w: %s is not below %s", ErrOutsideRoot, dir, root)
			}
			current = parent
		}
	}
	return out, nil
}

// within reports whether dir or one of its parents below root is in set.
func within(root, dir string, set map[string]struct{}) bool {
	for current := dir; current != root; {
		if _, ok := set[current]; ok {
			return true
		}
		parent := filepath.Dir(current)
		if parent == current {
			return false
		}
		current = parent
	}
	return false
}

func depth(root, dir string) int {
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return strings.Count(dir, string(filepath.Separator))
	}
	return strings.Count(rel, string(filepath.Separator))
}

// canonical returns an absolute, cleaned path. Symlinks are resolved on the
// longest existing prefix so missing paths stay comparable with existing ones.
func canonical(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	var missing []string
	current := abs
	for {
		if resolved, err := filepath.EvalSymlinks(current); err == nil {
			for i := len(missing) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, missing[i])
			}
			return resolved
		}
		parent := filepath.Dir(current)
		if parent == current {
			return abs
		}
		missing = append(missing, filepath.Base(current))
		current = parent
	}
}
