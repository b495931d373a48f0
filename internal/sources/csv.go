package sources

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"repertoire/internal/config"
	"repertoire/internal/content"
	"repertoire/internal/logging"
	"repertoire/internal/pathspec"
	"repertoire/internal/services"
	"repertoire/internal/textutil"
)

// PlaceholderBaseURLPath is replaced by the cleaned part of the row URL that
// follows the configured base URL.
const PlaceholderBaseURLPath = "%base_url_path%"

// CSV reads delimited files. The first row of each file is a header. Each
// data row becomes one Content whose data is the selected columns joined by
// newlines.
type CSV struct {
	cfg       config.Source
	delimiter rune
	logger    *slog.Logger
}

// NewCSV builds a CSV source.
func NewCSV(cfg config.Source, logger *slog.Logger) (Source, error) {
	if len(cfg.Resources) == 0 || strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "sources", "csv",
			fmt.Sprintf("source %q needs resources and base_url", cfg.Name), nil)
	}
	delimiter := ','
	if cfg.Delimiter != "" {
		r, size := utf8.DecodeRuneInString(cfg.Delimiter)
		if size != len(cfg.Delimiter) {
			return nil, services.Wrap(services.ErrConfiguration, "sources", "csv",
				fmt.Sprintf("source %q delimiter must be one character", cfg.Name), nil)
		}
		delimiter = r
	}
	return &CSV{cfg: cfg, delimiter: delimiter, logger: logger}, nil
}

func (s *CSV) Name() string { return s.cfg.Name }

// Contents reads every resource in order. Unreadable resources and malformed
// rows are logged and skipped.
func (s *CSV) Contents(ctx context.Context) []*content.Content {
	logger := logging.WithContext(ctx, s.logger)
	var out []*content.Content
	for _, resource := range s.cfg.Resources {
		if ctx.Err() != nil {
			break
		}
		items, err := s.read(resource)
		if err != nil {
			logging.ErrorWithContext(logger, "csv resource could not be read", "source_read_failed",
				logging.String("resource", resource),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the resources path and file format"),
				logging.String(logging.FieldImpact, "contents of this resource skipped"),
			)
		}
		out = append(out, items...)
	}
	logger.Debug("csv contents loaded", logging.Int("count", len(out)))
	return out
}

func (s *CSV) read(resource string) ([]*content.Content, error) {
	f, err := os.Open(resource)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = s.delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	var out []*content.Content
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out, fmt.Errorf("line %d: %w", line, err)
		}
		c, err := s.row(record)
		if err != nil {
			logging.WarnWithContext(s.logger, "csv row skipped", "source_row_invalid",
				logging.String("resource", resource),
				logging.Int("line", line),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the columns configuration"),
			)
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *CSV) row(record []string) (*content.Content, error) {
	data := make([]string, 0, len(s.cfg.Columns))
	for _, col := range s.cfg.Columns {
		if col < 0 || col >= len(record) {
			return nil, fmt.Errorf("column %d missing (row has %d)", col, len(record))
		}
		data = append(data, record[col])
	}
	if s.cfg.BaseURLColumn < 0 || s.cfg.BaseURLColumn >= len(record) {
		return nil, fmt.Errorf("base_url_column %d missing (row has %d)", s.cfg.BaseURLColumn, len(record))
	}
	segment := BaseURLPath(record[s.cfg.BaseURLColumn], s.cfg.BaseURL)
	if s.cfg.TitleCase {
		segment = textutil.TitleCase(segment)
	}
	path := pathspec.New(pathspec.FromConfig(s.cfg.PathPart, map[string]string{
		PlaceholderBaseURLPath: segment,
	}))
	return content.New(strings.Join(data, "\n"), path), nil
}

// BaseURLPath strips baseURL from rowURL and cleans the remainder into a
// single directory name.
func BaseURLPath(rowURL, baseURL string) string {
	rest := strings.ReplaceAll(rowURL, baseURL, "")
	return textutil.CleanSegment(strings.Trim(strings.TrimSpace(rest), "/"))
}
