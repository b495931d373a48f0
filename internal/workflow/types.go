package workflow

import (
	"repertoire/internal/content"
	"repertoire/internal/fetch"
	"repertoire/internal/reconcile"
	"repertoire/internal/services"
)

// Plan is the read-only view of one downloader.
type Plan struct {
	Downloader      string
	Root            string
	CleanFilesystem bool
	Downloads       []*content.Download
	Result          reconcile.Result
}

// Label names a download relative to the downloader root.
func (p Plan) Label(d *content.Download) string {
	return d.Label(p.Root)
}

// DownloaderSummary reports what Sync did for one downloader.
type DownloaderSummary struct {
	Plan
	PruneRan bool
	Prune    reconcile.PruneReport
	FetchRan bool
	Fetch    fetch.Report
}

// Failures lists rejected, prune and fetch failures of the downloader.
func (s DownloaderSummary) Failures() []services.ItemError {
	out := append([]services.ItemError(nil), s.Result.Rejected...)
	out = append(out, s.Prune.Failures...)
	return append(out, s.Fetch.Failures()...)
}

// Summary reports a whole Sync pass.
type Summary struct {
	RunID       string
	DryRun      bool
	Downloaders []DownloaderSummary
}

// FailureCount counts every per-item failure of the pass.
func (s Summary) FailureCount() int {
	n := 0
	for _, d := range s.Downloaders {
		n += len(d.Failures())
	}
	return n
}
