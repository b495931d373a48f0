package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"repertoire/internal/confirm"
	"repertoire/internal/config"
	"repertoire/internal/content"
	"repertoire/internal/downloaders"
	"repertoire/internal/fetch"
	"repertoire/internal/logging"
	"repertoire/internal/pathspec"
	"repertoire/internal/reconcile"
	"repertoire/internal/services"
	"repertoire/internal/sources"
)

// rootPriority keeps the root segment ahead of every configured segment.
const rootPriority = math.MinInt

// ErrLocked is returned when another run holds the root lock.
var ErrLocked = errors.New("another repertoire run holds the lock")

// Runner executes sync passes for one configuration.
type Runner struct {
	cfg         *config.Config
	logger      *slog.Logger
	sources     *sources.Registry
	downloaders *downloaders.Registry
	prompter    confirm.Prompter
	in          io.Reader
	out         io.Writer
	sleeper     func(time.Duration)
}

// Option configures a Runner.
type Option func(*Runner)

// WithDownloaderRegistry overrides the downloader registry (primarily for tests).
func WithDownloaderRegistry(r *downloaders.Registry) Option {
	return func(run *Runner) {
		if r != nil {
			run.downloaders = r
		}
	}
}

// WithSourceRegistry overrides the source registry.
func WithSourceRegistry(r *sources.Registry) Option {
	return func(run *Runner) {
		if r != nil {
			run.sources = r
		}
	}
}

// WithPrompter overrides how confirmations are asked.
func WithPrompter(p confirm.Prompter) Option {
	return func(run *Runner) {
		run.prompter = p
	}
}

// WithIO sets the operator input and output streams.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(run *Runner) {
		if in != nil {
			run.in = in
		}
		if out != nil {
			run.out = out
		}
	}
}

// WithSleeper overrides retry sleeps (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(run *Runner) {
		run.sleeper = sleeper
	}
}

// NewRunner builds a Runner. Registries default to the built-in types.
func NewRunner(cfg *config.Config, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Runner{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "workflow"),
		in:     os.Stdin,
		out:    io.Discard,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.sources == nil {
		r.sources = sources.NewRegistry(logger)
	}
	if r.downloaders == nil {
		r.downloaders = downloaders.NewRegistry(logger)
	}
	return r
}

// SyncOptions controls one Sync pass.
type SyncOptions struct {
	DryRun      bool
	Interactive bool
	// Downloaders restricts the pass to the named downloaders. Empty means all.
	Downloaders []string
}

// Sync runs a full pass. Per-item failures are reported in the Summary;
// the returned error is reserved for problems that stop the pass.
func (r *Runner) Sync(ctx context.Context, opts SyncOptions) (Summary, error) {
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, r.logger)
	summary := Summary{RunID: runID, DryRun: opts.DryRun}

	selected, err := r.buildDownloaders(opts.Downloaders)
	if err != nil {
		return summary, err
	}

	if !opts.DryRun {
		if err := r.cfg.EnsureDirectories(); err != nil {
			return summary, services.Wrap(services.ErrFilesystem, "workflow", "prepare root", r.cfg.RootDir, err)
		}
		lock := flock.New(r.cfg.LockPath())
		ok, err := lock.TryLock()
		if err != nil {
			return summary, fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			return summary, fmt.Errorf("%w (%s)", ErrLocked, r.cfg.LockPath())
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				logger.Warn("failed to release lock", logging.Error(err))
			}
		}()
	}

	logger.Info("sync started",
		logging.String(logging.FieldEventType, "sync_start"),
		logging.Bool("dry_run", opts.DryRun),
		logging.Int("downloaders", len(selected)),
	)

	contents := r.loadContents(ctx)
	gate := confirm.New(r.in, r.out,
		confirm.WithDryRun(opts.DryRun),
		confirm.WithInteractive(opts.Interactive),
		confirm.WithPrompter(r.prompter),
	)

	for _, dl := range selected {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		ds, err := r.syncDownloader(ctx, dl, contents, gate, opts.DryRun)
		if err != nil {
			return summary, err
		}
		summary.Downloaders = append(summary.Downloaders, ds)
	}

	logger.Info("sync finished",
		logging.String(logging.FieldEventType, "sync_complete"),
		logging.Int("failures", summary.FailureCount()),
	)
	return summary, nil
}

// Plan reconciles every selected downloader without touching the disk.
func (r *Runner) Plan(ctx context.Context, names []string) ([]Plan, error) {
	ctx = services.WithRunID(ctx, uuid.NewString())
	selected, err := r.buildDownloaders(names)
	if err != nil {
		return nil, err
	}
	contents := r.loadContents(ctx)
	plans := make([]Plan, 0, len(selected))
	for _, dl := range selected {
		plan, err := r.plan(services.WithDownloader(ctx, dl.Name()), dl, contents)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

func (r *Runner) syncDownloader(ctx context.Context, dl *downloaders.Downloader, contents []*content.Content, gate *confirm.Gate, dryRun bool) (DownloaderSummary, error) {
	ctx = services.WithDownloader(ctx, dl.Name())
	logger := logging.WithContext(ctx, r.logger)

	fmt.Fprintf(r.out, "Downloader %s\n", dl.Name())
	plan, err := r.plan(ctx, dl, contents)
	if err != nil {
		return DownloaderSummary{}, err
	}
	summary := DownloaderSummary{Plan: plan}
	if text := services.Summarize("reconciliation of downloads", plan.Result.Rejected); text != "" {
		fmt.Fprint(r.out, text)
	}

	if !dryRun {
		if err := os.MkdirAll(plan.Root, 0o755); err != nil {
			return summary, services.Wrap(services.ErrFilesystem, "workflow", "create downloader root", plan.Root, err)
		}
	}

	if plan.CleanFilesystem {
		pctx := services.WithStage(ctx, "prune")
		rec := reconcile.New(plan.Root, r.logger)
		fmt.Fprintf(r.out, "Synchronize the %s folder with the downloaded contents...\n", plan.Root)
		labels := content.Map(plan.Result.OrphanDirectories, rec.Relative)
		ok, err := gate.ShouldProceed(pctx, confirm.Request{
			Count:  len(labels),
			Labels: labels,
			Verb:   "remove",
			Noun:   "folders",
			Target: plan.Root,
		})
		if err != nil {
			return summary, err
		}
		if ok {
			summary.PruneRan = true
			summary.Prune = rec.Prune(pctx, plan.Result.OrphanDirectories)
			for _, removed := range summary.Prune.Removed {
				fmt.Fprintf(r.out, "  * The folder %s has been removed.\n", rec.Relative(removed))
			}
			if text := services.Summarize("removal of folders", summary.Prune.Failures); text != "" {
				fmt.Fprint(r.out, text)
			}
		}
	}

	fctx := services.WithStage(ctx, "fetch")
	fmt.Fprintf(r.out, "Downloading files with %s...\n", dl.Name())
	needed := plan.Result.StillNeeded
	ok, err := gate.ShouldProceed(fctx, confirm.Request{
		Count:  len(needed),
		Labels: content.Map(needed, plan.Label),
		Verb:   "download",
		Noun:   "files",
		Target: plan.Root,
	})
	if err != nil {
		return summary, err
	}
	if ok {
		executor := fetch.NewExecutor(dl.Strategy, r.logger,
			fetch.WithConcurrency(r.cfg.Run.Concurrency),
			fetch.WithRetryDelay(time.Duration(r.cfg.Run.RetryDelaySeconds)*time.Second),
			fetch.WithSleeper(r.sleeper),
			fetch.WithOutput(r.out),
			fetch.WithLabeler(plan.Label),
		)
		summary.FetchRan = true
		summary.Fetch = executor.Run(fctx, needed)
		if text := summary.Fetch.Summary(); text != "" {
			fmt.Fprint(r.out, text)
		}
	}

	logger.Info("downloader finished",
		logging.String(logging.FieldEventType, "downloader_complete"),
		logging.Int("satisfied", len(plan.Result.AlreadySatisfied)),
		logging.Int("needed", len(needed)),
		logging.Int("orphans", len(plan.Result.OrphanDirectories)),
		logging.Int("fetched", summary.Fetch.Succeeded()),
		logging.Int("failures", len(summary.Failures())),
	)
	return summary, nil
}

func (r *Runner) plan(ctx context.Context, dl *downloaders.Downloader, contents []*content.Content) (Plan, error) {
	ctx = services.WithStage(ctx, "reconcile")
	rootSegment := r.rootSegment()
	dirSegment := pathspec.FromConfig(dl.Config.PathPart, nil)

	root, err := pathspec.New(rootSegment, dirSegment).Render()
	if err != nil {
		return Plan{}, services.Wrap(services.ErrConfiguration, "workflow", "downloader root", dl.Name(), err)
	}

	var downloads []*content.Download
	for _, c := range contents {
		scoped := c.Clone()
		scoped.Path.Append(dirSegment)
		downloads = append(downloads, dl.Rule.Extract(scoped)...)
	}
	downloads = content.Dedupe(downloads, (*content.Download).Key)

	result, err := reconcile.New(root, r.logger).Reconcile(ctx, downloads)
	if err != nil {
		return Plan{}, err
	}
	return Plan{
		Downloader:      dl.Name(),
		Root:            root,
		CleanFilesystem: dl.Config.ShouldCleanFilesystem(),
		Downloads:       downloads,
		Result:          result,
	}, nil
}

func (r *Runner) rootSegment() pathspec.Segment {
	return pathspec.NewSegment(r.cfg.RootDir, rootPriority, nil)
}

// loadContents reads every source. Each content path starts with the root
// segment.
func (r *Runner) loadContents(ctx context.Context) []*content.Content {
	logger := logging.WithContext(services.WithStage(ctx, "sources"), r.logger)
	var out []*content.Content
	for _, scfg := range r.cfg.Sources {
		src, err := r.sources.Build(scfg)
		if err != nil {
			logging.ErrorWithContext(logger, "source unavailable", "source_build_failed",
				logging.String("source", scfg.Name),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the sources configuration"),
			)
			continue
		}
		for _, c := range src.Contents(ctx) {
			c.Path.Append(r.rootSegment())
			out = append(out, c)
		}
	}
	logger.Debug("contents loaded", logging.Int("count", len(out)))
	return out
}

// buildDownloaders instantiates the selected downloaders up front so
// configuration errors surface before anything is created on disk.
func (r *Runner) buildDownloaders(names []string) ([]*downloaders.Downloader, error) {
	selected := r.cfg.Downloaders
	if len(names) > 0 {
		selected = make([]config.Downloader, 0, len(names))
		for _, name := range names {
			d, ok := r.cfg.Downloader(name)
			if !ok {
				return nil, services.Wrap(services.ErrConfiguration, "workflow", "select downloader",
					fmt.Sprintf("no downloader named %q", name), nil)
			}
			selected = append(selected, d)
		}
	}
	out := make([]*downloaders.Downloader, 0, len(selected))
	for _, dcfg := range selected {
		dl, err := r.downloaders.Build(dcfg)
		if err != nil {
			return nil, err
		}
		out = append(out, dl)
	}
	return out, nil
}
