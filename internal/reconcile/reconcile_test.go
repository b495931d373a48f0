package reconcile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"repertoire/internal/content"
	"repertoire/internal/logging"
	"repertoire/internal/pathspec"
	"repertoire/internal/testsupport"
)

func newReconciler(t *testing.T) (*Reconciler, string) {
	t.Helper()
	r := New(t.TempDir(), logging.NewNop())
	return r, r.Root()
}

func fileDownload(root string, rel ...string) *content.Download {
	p := pathspec.New(pathspec.NewSegment(root, 0, nil))
	for i, part := range rel {
		p.Append(pathspec.NewSegment(part, i+1, nil))
	}
	return &content.Download{Path: p, PathIsFile: true, SourceRef: strings.Join(rel, "/")}
}

func videoDownload(root, folder, id, ext string) *content.Download {
	p := pathspec.New(pathspec.NewSegment(root, 0, nil), pathspec.NewSegment(folder, 1, nil), pathspec.NewSegment(id, 255, nil))
	return &content.Download{Path: p, ID: id, Variant: "video", FileExtension: ext, Pattern: "*" + id + "*." + ext}
}

func TestExistingFileIsSatisfiedWithoutOrphans(t *testing.T) {
	r, root := newReconciler(t)
	testsupport.WriteFile(t, filepath.Join(root, "A", "B", "song.mp3"), 10)
	d := fileDownload(root, "A", "B", "song.mp3")

	result, err := r.Reconcile(context.Background(), []*content.Download{d})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if len(result.AlreadySatisfied) != 1 || result.AlreadySatisfied[0] != d {
		t.Fatalf("expected download satisfied, got %+v", result.AlreadySatisfied)
	}
	if len(result.StillNeeded) != 0 {
		t.Fatalf("expected nothing needed, got %d", len(result.StillNeeded))
	}
	if len(result.OrphanDirectories) != 0 {
		t.Fatalf("expected no orphans, got %v", result.OrphanDirectories)
	}
	if want := []string{filepath.Join(root, "A", "B")}; !reflect.DeepEqual(result.CompletedFolders, want) {
		t.Fatalf("completed folders = %v, want %v", result.CompletedFolders, want)
	}
}

func TestSiblingOfCompletedFolderIsOrphan(t *testing.T) {
	r, root := newReconciler(t)
	testsupport.WriteFile(t, filepath.Join(root, "A", "B", "song.mp3"), 10)
	testsupport.MkdirAll(t, root, filepath.Join("A", "C"))

	result, err := r.Reconcile(context.Background(), []*content.Download{fileDownload(root, "A", "B", "song.mp3")})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	want := []string{filepath.Join(root, "A", "C")}
	if !reflect.DeepEqual(result.OrphanDirectories, want) {
		t.Fatalf("orphans = %v, want %v", result.OrphanDirectories, want)
	}
}

func TestStaleSubtreeIsReportedOnceAtItsTop(t *testing.T) {
	r, root := newReconciler(t)
	testsupport.WriteFile(t, filepath.Join(root, "keep", "song.mp3"), 1)
	testsupport.MkdirAll(t, root,
		filepath.Join("stale", "x", "y"),
		filepath.Join("stale", "z"),
		filepath.Join("keep", "old"),
		"another",
	)
	testsupport.WriteFile(t, filepath.Join(root, "stale", "x", "y", "left.pdf"), 1)

	result, err := r.Reconcile(context.Background(), []*content.Download{fileDownload(root, "keep", "song.mp3")})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	want := []string{
		filepath.Join(root, "another"),
		filepath.Join(root, "stale"),
		filepath.Join(root, "keep", "old"),
	}
	if !reflect.DeepEqual(result.OrphanDirectories, want) {
		t.Fatalf("orphans = %v, want %v", result.OrphanDirectories, want)
	}

	for i, a := range result.OrphanDirectories {
		for j, b := range result.OrphanDirectories {
			if i != j && strings.HasPrefix(b, a+string(filepath.Separator)) {
				t.Fatalf("orphan %s is an ancestor of orphan %s", a, b)
			}
		}
		for _, completed := range result.CompletedFolders {
			if completed == a || strings.HasPrefix(completed, a+string(filepath.Separator)) {
				t.Fatalf("orphan %s contains completed folder %s", a, completed)
			}
		}
	}
}

func TestVideoCompletionIgnoresPartialFiles(t *testing.T) {
	r, root := newReconciler(t)
	done := videoDownload(root, "Videos", "aaaaaaaaaaa", "mp4")
	partial := videoDownload(root, "Videos", "bbbbbbbbbbb", "mp4")
	testsupport.WriteFile(t, filepath.Join(root, "Videos", "aaaaaaaaaaa", "Clip [aaaaaaaaaaa].mp4"), 1)
	testsupport.WriteFile(t, filepath.Join(root, "Videos", "bbbbbbbbbbb", "Clip [bbbbbbbbbbb].mp4.part"), 1)
	testsupport.MkdirAll(t, root, filepath.Join("Videos", "aaaaaaaaaaa", "nested"))

	result, err := r.Reconcile(context.Background(), []*content.Download{done, partial})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if len(result.AlreadySatisfied) != 1 || result.AlreadySatisfied[0] != done {
		t.Fatalf("expected only the finished video satisfied, got %d", len(result.AlreadySatisfied))
	}
	if len(result.StillNeeded) != 1 || result.StillNeeded[0] != partial {
		t.Fatalf("expected the partial video needed, got %d", len(result.StillNeeded))
	}
	want := []string{filepath.Join(root, "Videos", "aaaaaaaaaaa", "nested")}
	if !reflect.DeepEqual(result.OrphanDirectories, want) {
		t.Fatalf("orphans = %v, want %v", result.OrphanDirectories, want)
	}
}

func TestVideoCompletionIgnoresUnmergedStreams(t *testing.T) {
	r, root := newReconciler(t)
	unmerged := videoDownload(root, "Videos", "aaaaaaaaaaa", "mp4")
	dir := filepath.Join(root, "Videos", "aaaaaaaaaaa")
	testsupport.WriteFile(t, filepath.Join(dir, "Clip [aaaaaaaaaaa].f137.mp4"), 1)
	testsupport.WriteFile(t, filepath.Join(dir, "Clip [aaaaaaaaaaa].f140.m4a.part"), 1)

	exact := videoDownload(root, "Videos", "bbbbbbbbbbb", "mp4")
	exact.Pattern = "bbbbbbbbbbb.mp4"
	testsupport.WriteFile(t, filepath.Join(root, "Videos", "bbbbbbbbbbb", "bbbbbbbbbbb.f137.mp4"), 1)

	result, err := r.Reconcile(context.Background(), []*content.Download{unmerged, exact})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if len(result.AlreadySatisfied) != 0 {
		t.Fatalf("expected unmerged streams to leave videos needed, got %d satisfied", len(result.AlreadySatisfied))
	}
	if len(result.StillNeeded) != 2 {
		t.Fatalf("expected both videos needed, got %d", len(result.StillNeeded))
	}

	testsupport.WriteFile(t, filepath.Join(root, "Videos", "bbbbbbbbbbb", "bbbbbbbbbbb.mp4"), 1)
	result, err = r.Reconcile(context.Background(), []*content.Download{exact})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if len(result.AlreadySatisfied) != 1 {
		t.Fatal("expected merged video to count as done")
	}
}

func TestCompletionCheckIsNotRecursive(t *testing.T) {
	r, root := newReconciler(t)
	d := videoDownload(root, "Videos", "ccccccccccc", "mp3")
	testsupport.WriteFile(t, filepath.Join(root, "Videos", "ccccccccccc", "deeper", "x ccccccccccc.mp3"), 1)

	result, err := r.Reconcile(context.Background(), []*content.Download{d})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if len(result.AlreadySatisfied) != 0 {
		t.Fatal("expected nested file to be ignored")
	}
}

func TestMissingRootYieldsEmptyResult(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "missing"), logging.NewNop())
	d := fileDownload(r.Root(), "A", "x.pdf")

	result, err := r.Reconcile(context.Background(), []*content.Download{d})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if len(result.AlreadySatisfied) != 0 || len(result.OrphanDirectories) != 0 || len(result.CompletedFolders) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
	if len(result.StillNeeded) != 1 {
		t.Fatalf("expected download still needed, got %d", len(result.StillNeeded))
	}
}

func TestDownloadOutsideRootIsRejected(t *testing.T) {
	r, root := newReconciler(t)
	elsewhere := t.TempDir()

	testsupport.MkdirAll(t, root, "A")
	outside := fileDownload(elsewhere, "x.pdf")
	escaping := fileDownload(root, "..", "y.pdf")
	inside := fileDownload(root, "A", "z.pdf")

	result, err := r.Reconcile(context.Background(), []*content.Download{outside, escaping, inside})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if len(result.StillNeeded) != 1 || result.StillNeeded[0] != inside {
		t.Fatalf("expected only the download below root needed, got %d", len(result.StillNeeded))
	}
	if len(result.Rejected) != 2 {
		t.Fatalf("expected 2 rejected downloads, got %v", result.Rejected)
	}
	for _, item := range result.Rejected {
		if !errors.Is(item.Err, ErrOutsideRoot) {
			t.Fatalf("expected ErrOutsideRoot for %s, got %v", item.Item, item.Err)
		}
	}
	if len(result.OrphanDirectories) != 0 {
		t.Fatalf("expected no orphans, got %v", result.OrphanDirectories)
	}
}

func TestMissingRootStillRejectsOutsideDownloads(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "missing"), logging.NewNop())

	result, err := r.Reconcile(context.Background(), []*content.Download{fileDownload(t.TempDir(), "x.pdf")})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if len(result.StillNeeded) != 0 || len(result.Rejected) != 1 {
		t.Fatalf("expected the download rejected, got needed=%d rejected=%d", len(result.StillNeeded), len(result.Rejected))
	}
}

func TestFoldersOfNeededDownloadsAreKept(t *testing.T) {
	r, root := newReconciler(t)
	testsupport.MkdirAll(t, root, filepath.Join("A", "pending"), filepath.Join("A", "gone"))

	result, err := r.Reconcile(context.Background(), []*content.Download{fileDownload(root, "A", "pending", "next.pdf")})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	want := []string{filepath.Join(root, "A", "gone")}
	if !reflect.DeepEqual(result.OrphanDirectories, want) {
		t.Fatalf("orphans = %v, want %v", result.OrphanDirectories, want)
	}
}

func TestReconcileIsDeterministic(t *testing.T) {
	r, root := newReconciler(t)
	testsupport.MkdirAll(t, root, "b", "a", filepath.Join("c", "d"), "e")
	testsupport.WriteFile(t, filepath.Join(root, "e", "k.pdf"), 1)
	downloads := []*content.Download{fileDownload(root, "e", "k.pdf")}

	first, err := r.Reconcile(context.Background(), downloads)
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	second, err := r.Reconcile(context.Background(), downloads)
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if !reflect.DeepEqual(first.OrphanDirectories, second.OrphanDirectories) {
		t.Fatalf("orphans differ between runs: %v vs %v", first.OrphanDirectories, second.OrphanDirectories)
	}
	want := []string{filepath.Join(root, "a"), filepath.Join(root, "b"), filepath.Join(root, "c")}
	if !reflect.DeepEqual(first.OrphanDirectories, want) {
		t.Fatalf("orphans = %v, want %v", first.OrphanDirectories, want)
	}
}

func TestPruneRemovesOrphansAndRefusesRoot(t *testing.T) {
	r, root := newReconciler(t)
	testsupport.MkdirAll(t, root, filepath.Join("old", "deep"), "kept")

	report := r.Prune(context.Background(), []string{filepath.Join(root, "old"), root, filepath.Dir(root)})
	if len(report.Removed) != 1 || report.Removed[0] != filepath.Join(root, "old") {
		t.Fatalf("unexpected removed list %v", report.Removed)
	}
	if len(report.Failures) != 2 {
		t.Fatalf("expected 2 refused paths, got %v", report.Failures)
	}
	if !errors.Is(report.Err(), ErrOutsideRoot) {
		t.Fatalf("expected ErrOutsideRoot in report, got %v", report.Err())
	}
	if _, err := os.Stat(filepath.Join(root, "old")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected old removed, stat err=%v", err)
	}
	if got := testsupport.Dirs(t, root); !reflect.DeepEqual(got, []string{"kept"}) {
		t.Fatalf("unexpected remaining dirs %v", got)
	}
}
