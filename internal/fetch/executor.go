package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"repertoire/internal/content"
	"repertoire/internal/logging"
	"repertoire/internal/services"
)

// Outcome is the final state of one download.
type Outcome struct {
	Download *content.Download
	Label    string
	State    State
	Attempts int
	Err      error
}

// Report summarizes a batch.
type Report struct {
	Outcomes []Outcome
}

// Failures lists failed downloads in batch order.
func (r Report) Failures() []services.ItemError {
	var out []services.ItemError
	for _, o := range r.Outcomes {
		if o.State.Failed() {
			out = append(out, services.ItemError{Item: o.Label, Err: o.Err})
		}
	}
	return out
}

// Succeeded counts successful downloads.
func (r Report) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.State == StateSucceeded {
			n++
		}
	}
	return n
}

// Summary renders the end-of-batch error listing, or "" without failures.
func (r Report) Summary() string {
	return services.Summarize("download of files", r.Failures())
}

// Err joins every failure, or returns nil.
func (r Report) Err() error {
	return services.Join(r.Failures())
}

// Executor runs downloads with bounded retries.
type Executor struct {
	strategy    Strategy
	logger      *slog.Logger
	out         io.Writer
	outMu       sync.Mutex
	concurrency int
	retryDelay  time.Duration
	sleeper     func(time.Duration)
	labeler     func(*content.Download) string
}

// Option configures an Executor.
type Option func(*Executor)

// WithConcurrency bounds the worker pool. Values below 2 keep processing
// sequential.
func WithConcurrency(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithRetryDelay sets the flat pause before each retry.
func WithRetryDelay(d time.Duration) Option {
	return func(e *Executor) {
		if d >= 0 {
			e.retryDelay = d
		}
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(e *Executor) {
		e.sleeper = sleeper
	}
}

// WithOutput sets where progress lines are written.
func WithOutput(w io.Writer) Option {
	return func(e *Executor) {
		if w != nil {
			e.out = w
		}
	}
}

// WithLabeler sets how downloads are named in progress lines and failures.
func WithLabeler(fn func(*content.Download) string) Option {
	return func(e *Executor) {
		if fn != nil {
			e.labeler = fn
		}
	}
}

// NewExecutor builds an Executor. The strategy must provide a Fetcher; a
// missing Classifier treats only marker-tagged errors as permanent and a
// missing Planner yields a single empty attempt.
func NewExecutor(strategy Strategy, logger *slog.Logger, opts ...Option) *Executor {
	e := &Executor{
		strategy:    strategy,
		logger:      logging.NewComponentLogger(logger, "fetch"),
		out:         io.Discard,
		concurrency: 1,
		labeler: func(d *content.Download) string {
			return d.Label("")
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run processes downloads and returns their outcomes in input order. Per-item
// failures never abort the batch.
func (e *Executor) Run(ctx context.Context, downloads []*content.Download) Report {
	outcomes := make([]Outcome, len(downloads))
	if e.concurrency <= 1 || len(downloads) <= 1 {
		for i, d := range downloads {
			outcomes[i] = e.process(ctx, d)
		}
		return Report{Outcomes: outcomes}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, d := range downloads {
		g.Go(func() error {
			outcomes[i] = e.process(gctx, d)
			return nil
		})
	}
	_ = g.Wait()
	return Report{Outcomes: outcomes}
}

func (e *Executor) process(ctx context.Context, d *content.Download) Outcome {
	label := e.labeler(d)
	logger := logging.WithContext(ctx, e.logger).With(
		logging.String("download", label),
		logging.String("source_ref", d.SourceRef),
	)
	outcome := Outcome{Download: d, Label: label, State: StatePending}

	dir, err := d.Dir()
	if err == nil {
		err = os.MkdirAll(dir, 0o755)
		if err != nil {
			err = services.Wrap(services.ErrFilesystem, "fetch", "create folder", dir, err)
		}
	}
	if err != nil {
		outcome.State = StatePermanentlyFailed
		outcome.Err = err
		e.finish(logger, outcome)
		return outcome
	}

	attempts := e.attempts(d)
	for i, attempt := range attempts {
		outcome.State = StateAttempting
		outcome.Attempts = i + 1
		logger.Debug("fetch attempt",
			logging.Int("attempt", i+1),
			logging.Int("max_attempts", len(attempts)),
		)

		err := e.strategy.Fetcher.Fetch(ctx, d, attempt, dir)
		if err == nil {
			outcome.State = StateSucceeded
			outcome.Err = nil
			break
		}
		outcome.Err = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			outcome.State = StateExhaustedFailed
			outcome.Err = fmt.Errorf("%w: %w", ctxErr, err)
			break
		}
		if reason, permanent := e.classify(d, err); permanent {
			outcome.State = StatePermanentlyFailed
			if !errors.Is(err, services.ErrPermanent) {
				outcome.Err = services.Wrap(services.ErrPermanent, "fetch", "download", reason, err)
			}
			break
		}
		if i+1 == len(attempts) {
			outcome.State = StateExhaustedFailed
			outcome.Err = fmt.Errorf("failed after %d attempts: %w", len(attempts), err)
			break
		}

		outcome.State = StateRetrying
		logger.Debug("fetch attempt failed; retrying",
			logging.Int("attempt", i+1),
			logging.Error(err),
		)
		if err := e.sleep(ctx); err != nil {
			outcome.State = StateExhaustedFailed
			outcome.Err = err
			break
		}
	}
	e.finish(logger, outcome)
	return outcome
}

func (e *Executor) attempts(d *content.Download) []AttemptConfig {
	if e.strategy.Planner == nil {
		return []AttemptConfig{{}}
	}
	attempts := e.strategy.Planner.Attempts(d)
	if len(attempts) == 0 {
		return []AttemptConfig{{}}
	}
	return attempts
}

func (e *Executor) classify(d *content.Download, err error) (string, bool) {
	if e.strategy.Classifier != nil {
		if reason, permanent := e.strategy.Classifier.Classify(d, err); permanent {
			return reason, true
		}
	}
	if !services.Retryable(err) {
		return err.Error(), true
	}
	return "", false
}

func (e *Executor) sleep(ctx context.Context) error {
	if e.retryDelay <= 0 {
		return ctx.Err()
	}
	if e.sleeper != nil {
		e.sleeper(e.retryDelay)
		return ctx.Err()
	}
	timer := time.NewTimer(e.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (e *Executor) finish(logger *slog.Logger, o Outcome) {
	status := "Done."
	switch {
	case o.State == StateSucceeded:
		logger.Info("download complete", logging.Int("attempts", o.Attempts))
	case o.State == StatePermanentlyFailed:
		status = "Failed."
		logging.WarnWithContext(logger, "download failed permanently", "fetch_permanent_failure",
			logging.Int("attempts", o.Attempts),
			logging.Error(o.Err),
			logging.String(logging.FieldErrorHint, "the content is gone; remove the link from the source"),
			logging.String(logging.FieldImpact, "download skipped"),
		)
	default:
		status = "Failed."
		logging.WarnWithContext(logger, "download failed after retries", "fetch_exhausted",
			logging.Int("attempts", o.Attempts),
			logging.Error(o.Err),
			logging.String(logging.FieldErrorHint, "check network access and rerun"),
			logging.String(logging.FieldImpact, "download retried on next run"),
		)
	}
	e.outMu.Lock()
	fmt.Fprintf(e.out, "  * %s... %s\n", o.Label, status)
	e.outMu.Unlock()
}
