package services

import (
	"errors"
	"strings"
	"testing"
)

func TestSummarize(t *testing.T) {
	if got := Summarize("download of files", nil); got != "" {
		t.Fatalf("expected empty summary, got %q", got)
	}
	items := []ItemError{
		{Item: "A - song.mp3", Err: Wrap(ErrPermanent, "fetch", "download", "gone", nil)},
		{Item: "B - take.pdf", Err: errors.New("timeout")},
	}
	got := Summarize("download of files", items)
	if !strings.HasPrefix(got, "There were 2 errors during the download of files:\n") {
		t.Fatalf("unexpected summary header %q", got)
	}
	if !strings.Contains(got, "  * B - take.pdf: timeout\n") {
		t.Fatalf("expected item line, got %q", got)
	}
}

func TestJoinKeepsMarkers(t *testing.T) {
	err := Join([]ItemError{{Item: "x", Err: Wrap(ErrFilesystem, "prune", "remove", "x", errors.New("denied"))}})
	if !errors.Is(err, ErrFilesystem) {
		t.Fatalf("expected filesystem marker, got %v", err)
	}
	if Join(nil) != nil {
		t.Fatal("expected nil for no failures")
	}
}
