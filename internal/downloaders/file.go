package downloaders

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"repertoire/internal/config"
	"repertoire/internal/content"
	"repertoire/internal/extract"
	"repertoire/internal/fetch"
	"repertoire/internal/logging"
	"repertoire/internal/services"
)

// AttemptKeyReferer carries the Referer header value of an attempt.
const AttemptKeyReferer = "referer"

// NewFile builds the "file" downloader: every attempt is a plain GET.
func NewFile(cfg config.Downloader, deps Dependencies) (*Downloader, error) {
	rule, err := extract.FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	fetcher := &HTTPFetcher{
		client:  deps.HTTPClient,
		timeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		logger:  deps.Logger,
	}
	attempts := cfg.NbAttempts
	if attempts <= 0 {
		attempts = 1
	}
	planner := fetch.PlannerFunc(func(*content.Download) []fetch.AttemptConfig {
		out := make([]fetch.AttemptConfig, attempts)
		for i := range out {
			out[i] = fetch.AttemptConfig{}
			if cfg.Referer != "" {
				out[i][AttemptKeyReferer] = cfg.Referer
			}
		}
		return out
	})
	return &Downloader{
		Config:   cfg,
		Rule:     rule,
		Strategy: fetch.Strategy{Fetcher: fetcher, Planner: planner},
	}, nil
}

// HTTPFetcher downloads a reference with an HTTP GET.
type HTTPFetcher struct {
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// Fetch streams the response body to a temporary file in destDir and renames
// it into place, so an interrupted transfer never looks complete.
func (f *HTTPFetcher) Fetch(ctx context.Context, d *content.Download, attempt fetch.AttemptConfig, destDir string) error {
	target, err := d.Target()
	if err != nil {
		return services.Wrap(services.ErrValidation, "file", "resolve target", d.SourceRef, err)
	}
	if !d.PathIsFile {
		return services.Wrap(services.ErrValidation, "file", "resolve target", "download does not name a file", nil)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return services.Wrap(services.ErrFilesystem, "file", "create folder", destDir, err)
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.SourceRef, nil)
	if err != nil {
		return services.Wrap(services.ErrValidation, "file", "build request", d.SourceRef, err)
	}
	if referer := attempt[AttemptKeyReferer]; referer != "" {
		req.Header.Set("Referer", referer)
	}

	client := f.client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "file", "http get", d.SourceRef, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return services.Wrap(services.ErrNotFound, "file", "http get",
			fmt.Sprintf("The file %s does not exist anymore (%s).", d.SourceRef, resp.Status), nil)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return services.Wrap(services.ErrTransient, "file", "http get",
			fmt.Sprintf("%s returned %s", d.SourceRef, resp.Status), nil)
	}

	tmp, err := os.CreateTemp(destDir, "."+filepath.Base(target)+".*.part")
	if err != nil {
		return services.Wrap(services.ErrFilesystem, "file", "create temp file", destDir, err)
	}
	tmpPath := tmp.Name()
	written, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(tmpPath)
		return services.Wrap(services.ErrTransient, "file", "write body", d.SourceRef, err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return services.Wrap(services.ErrFilesystem, "file", "rename", target, err)
	}
	if f.logger != nil {
		f.logger.Debug("file written",
			logging.String("path", target),
			logging.Int("bytes", int(written)),
		)
	}
	return nil
}
