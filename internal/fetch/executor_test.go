package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"repertoire/internal/content"
	"repertoire/internal/logging"
	"repertoire/internal/pathspec"
	"repertoire/internal/services"
)

func newDownload(t *testing.T, root, name string) *content.Download {
	t.Helper()
	p := pathspec.New(pathspec.NewSegment(root, 0, nil), pathspec.NewSegment(name, 1, nil))
	return &content.Download{Path: p, SourceRef: "https://example.org/" + name}
}

func plan(n int) Planner {
	return PlannerFunc(func(*content.Download) []AttemptConfig {
		out := make([]AttemptConfig, n)
		for i := range out {
			out[i] = AttemptConfig{"attempt": fmt.Sprint(i)}
		}
		return out
	})
}

func TestTransientFailuresExhaustAllAttempts(t *testing.T) {
	var calls int
	var slept []time.Duration
	fetcher := FetcherFunc(func(context.Context, *content.Download, AttemptConfig, string) error {
		calls++
		return errors.New("connection reset")
	})
	exec := NewExecutor(Strategy{Fetcher: fetcher, Planner: plan(3)}, logging.NewNop(),
		WithRetryDelay(2*time.Second),
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
	)

	report := exec.Run(context.Background(), []*content.Download{newDownload(t, t.TempDir(), "a")})
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	o := report.Outcomes[0]
	if o.State != StateExhaustedFailed || o.Attempts != 3 {
		t.Fatalf("unexpected outcome %+v", o)
	}
	if len(slept) != 2 || slept[0] != 2*time.Second {
		t.Fatalf("expected 2 flat retry sleeps, got %v", slept)
	}
	if len(report.Failures()) != 1 {
		t.Fatalf("expected one failure, got %d", len(report.Failures()))
	}
}

func TestPermanentFailureStopsAfterOneAttempt(t *testing.T) {
	var calls int
	fetcher := FetcherFunc(func(context.Context, *content.Download, AttemptConfig, string) error {
		calls++
		return errors.New("ERROR: This video is unavailable")
	})
	classifier := ClassifierFunc(func(_ *content.Download, err error) (string, bool) {
		if strings.Contains(strings.ToLower(err.Error()), "unavailable") {
			return "The video is unavailable.", true
		}
		return "", false
	})
	exec := NewExecutor(Strategy{Fetcher: fetcher, Classifier: classifier, Planner: plan(5)}, logging.NewNop())

	report := exec.Run(context.Background(), []*content.Download{newDownload(t, t.TempDir(), "v")})
	if calls != 1 {
		t.Fatalf("expected exactly 1 attempt, got %d", calls)
	}
	o := report.Outcomes[0]
	if o.State != StatePermanentlyFailed {
		t.Fatalf("expected permanent failure, got %s", o.State)
	}
	if !errors.Is(o.Err, services.ErrPermanent) {
		t.Fatalf("expected permanent marker, got %v", o.Err)
	}
	if !strings.Contains(o.Err.Error(), "The video is unavailable.") {
		t.Fatalf("expected reason in error, got %v", o.Err)
	}
}

func TestMarkedErrorsArePermanentWithoutClassifier(t *testing.T) {
	var calls int
	fetcher := FetcherFunc(func(context.Context, *content.Download, AttemptConfig, string) error {
		calls++
		return services.Wrap(services.ErrNotFound, "fetch", "http get", "404", nil)
	})
	exec := NewExecutor(Strategy{Fetcher: fetcher, Planner: plan(3)}, logging.NewNop())
	report := exec.Run(context.Background(), []*content.Download{newDownload(t, t.TempDir(), "f")})
	if calls != 1 || report.Outcomes[0].State != StatePermanentlyFailed {
		t.Fatalf("expected one attempt and a permanent failure, got %d %s", calls, report.Outcomes[0].State)
	}
}

func TestAttemptIndexSelectsConfiguration(t *testing.T) {
	var seen []string
	fetcher := FetcherFunc(func(_ context.Context, _ *content.Download, attempt AttemptConfig, _ string) error {
		seen = append(seen, attempt["attempt"])
		if attempt["attempt"] == "1" {
			return nil
		}
		return errors.New("flaky")
	})
	exec := NewExecutor(Strategy{Fetcher: fetcher, Planner: plan(4)}, logging.NewNop())
	report := exec.Run(context.Background(), []*content.Download{newDownload(t, t.TempDir(), "x")})
	if strings.Join(seen, ",") != "0,1" {
		t.Fatalf("unexpected attempt sequence %v", seen)
	}
	if report.Outcomes[0].State != StateSucceeded || report.Outcomes[0].Err != nil {
		t.Fatalf("expected success, got %+v", report.Outcomes[0])
	}
	if report.Summary() != "" {
		t.Fatalf("expected empty summary, got %q", report.Summary())
	}
}

func TestExecutorCreatesDestinationAndReportsOnce(t *testing.T) {
	root := t.TempDir()
	var out bytes.Buffer
	fetcher := FetcherFunc(func(_ context.Context, d *content.Download, _ AttemptConfig, dir string) error {
		if _, err := os.Stat(dir); err != nil {
			return fmt.Errorf("destination missing: %w", err)
		}
		if strings.HasSuffix(dir, "bad") {
			return errors.New("broken link")
		}
		return nil
	})
	exec := NewExecutor(Strategy{Fetcher: fetcher, Planner: plan(1)}, logging.NewNop(),
		WithOutput(&out),
		WithLabeler(func(d *content.Download) string { return d.Label(root) }),
	)

	downloads := []*content.Download{newDownload(t, root, "good"), newDownload(t, root, "bad")}
	report := exec.Run(context.Background(), downloads)
	if _, err := os.Stat(filepath.Join(root, "good")); err != nil {
		t.Fatalf("expected destination created: %v", err)
	}
	if report.Succeeded() != 1 {
		t.Fatalf("expected one success, got %d", report.Succeeded())
	}
	summary := report.Summary()
	if !strings.HasPrefix(summary, "There were 1 error during the download of files:") {
		t.Fatalf("unexpected summary %q", summary)
	}
	if !strings.Contains(summary, "bad") {
		t.Fatalf("expected failing label in summary, got %q", summary)
	}
	if !strings.Contains(out.String(), "  * good... Done.\n") || !strings.Contains(out.String(), "  * bad... Failed.\n") {
		t.Fatalf("unexpected progress output %q", out.String())
	}
}

func TestUncreatableFolderFailsPermanentlyAndBatchContinues(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "blocked"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	var calls []string
	fetcher := FetcherFunc(func(_ context.Context, d *content.Download, _ AttemptConfig, dir string) error {
		calls = append(calls, filepath.Base(dir))
		return nil
	})
	exec := NewExecutor(Strategy{Fetcher: fetcher, Planner: plan(3)}, logging.NewNop(),
		WithLabeler(func(d *content.Download) string { return d.Label(root) }),
	)

	report := exec.Run(context.Background(), []*content.Download{
		newDownload(t, root, "blocked"),
		newDownload(t, root, "fine"),
	})

	first, second := report.Outcomes[0], report.Outcomes[1]
	if first.State != StatePermanentlyFailed {
		t.Fatalf("expected permanent failure, got %s", first.State)
	}
	if !errors.Is(first.Err, services.ErrFilesystem) {
		t.Fatalf("expected filesystem error, got %v", first.Err)
	}
	if first.Attempts != 0 {
		t.Fatalf("expected no fetch attempt, got %d", first.Attempts)
	}
	if second.State != StateSucceeded {
		t.Fatalf("expected second download to succeed, got %s", second.State)
	}
	if len(calls) != 1 || calls[0] != "fine" {
		t.Fatalf("unexpected fetch calls %v", calls)
	}
	summary := report.Summary()
	if !strings.HasPrefix(summary, "There were 1 error during the download of files:") {
		t.Fatalf("unexpected summary %q", summary)
	}
	if strings.Count(summary, "\n  * ") != 1 || !strings.Contains(summary, "\n  * blocked: ") {
		t.Fatalf("expected the failure listed once, got %q", summary)
	}
}

func TestPooledRunKeepsOrderAndBound(t *testing.T) {
	root := t.TempDir()
	var active, peak int32
	var mu sync.Mutex
	fetcher := FetcherFunc(func(_ context.Context, d *content.Download, _ AttemptConfig, _ string) error {
		n := atomic.AddInt32(&active, 1)
		mu.Lock()
		if n > peak {
			peak = n
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		if strings.HasSuffix(d.SourceRef, "3") {
			return services.Wrap(services.ErrPermanent, "fetch", "download", "gone", nil)
		}
		return nil
	})
	exec := NewExecutor(Strategy{Fetcher: fetcher, Planner: plan(2)}, logging.NewNop(), WithConcurrency(2))

	var downloads []*content.Download
	for i := 0; i < 8; i++ {
		downloads = append(downloads, newDownload(t, root, fmt.Sprintf("d%d", i)))
	}
	report := exec.Run(context.Background(), downloads)
	if peak > 2 {
		t.Fatalf("expected at most 2 concurrent fetches, saw %d", peak)
	}
	for i, o := range report.Outcomes {
		if o.Download != downloads[i] {
			t.Fatalf("outcome %d out of order", i)
		}
	}
	failures := report.Failures()
	if len(failures) != 1 || !strings.Contains(failures[0].Item, "d3") {
		t.Fatalf("unexpected failures %v", failures)
	}
}

func TestStateStrings(t *testing.T) {
	if StateExhaustedFailed.String() != "exhausted_failed" || !StateExhaustedFailed.Terminal() || !StateExhaustedFailed.Failed() {
		t.Fatal("unexpected exhausted state semantics")
	}
	if StateRetrying.Terminal() || StateSucceeded.Failed() {
		t.Fatal("unexpected non-terminal semantics")
	}
}
