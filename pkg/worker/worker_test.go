package worker

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/greg-hellings/devdashboard/pkg/acquirer"
	"github.com/greg-hellings/devdashboard/pkg/categorize"
	"github.com/greg-hellings/devdashboard/pkg/jobfs"
	"github.com/greg-hellings/devdashboard/pkg/scanner"
)

type fakeScanner struct {
	events []scanner.ProgressEvent
	result *scanner.Result
	err    error
}

func (f *fakeScanner) ScanProject(ctx context.Context, path string, progress scanner.ProgressCallback) (*scanner.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, ev := range f.events {
		if progress != nil {
			progress(ev)
		}
	}
	return f.result, nil
}

func testZipServer(t *testing.T) *httptest.Server {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("repo-main/README.md")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := f.Write([]byte("hello")); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
	data := buf.Bytes()

	return httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.Write(data)
	}))
}

func TestRunCompletesSuccessfullyAndWritesStatus(t *testing.T) {
	// Run rejects loopback hosts and non-standard ports, so an httptest URL
	// cannot pass validation; scan a pre-resolved tree via CachedPath instead.
	repoDir := t.TempDir()
	writeTestFile(t, repoDir, "README.md", "hello")

	layout := jobfs.Layout{BaseDir: t.TempDir(), LogDir: t.TempDir()}
	acq := acquirer.New(acquirer.Config{DestRoot: t.TempDir()})
	fs := &fakeScanner{
		events: []scanner.ProgressEvent{
			{Stage: "imports", StageTotal: 2, StageIndex: 1, Path: "a.py"},
			{Stage: "imports", StageTotal: 2, StageIndex: 2, Path: "b.py"},
		},
		result: &scanner.Result{
			Dependencies: []scanner.Dependency{{Name: "requests", SourceFile: "requirements.txt"}},
		},
	}
	cat := categorize.New(&categorize.Catalog{Categories: map[string]categorize.Category{
		"http": {PackagePatterns: []string{"requests"}},
	}})

	w := New("job-1", 0, "owner/project", Config{
		Layout:      layout,
		Acquirer:    acq,
		Scanner:     fs,
		Categorizer: cat,
		CachedPath:  repoDir,
	})

	err := w.Run(context.Background(), "https://github.com/owner/project.git")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var status jobfs.RepositoryStatus
	if err := jobfs.ReadJSON(layout.RepoPath("job-1", 0), &status); err != nil {
		t.Fatalf("read status: %v", err)
	}
	if status.Status != jobfs.PhaseCompleted {
		t.Fatalf("expected completed status, got %q", status.Status)
	}

	var result scanner.Result
	if err := json.Unmarshal(status.Result, &result); err != nil {
		t.Fatalf("unmarshal embedded result: %v", err)
	}
	if !result.CategorizedDeps["http"] {
		t.Fatalf("expected http category to match, got %+v", result.CategorizedDeps)
	}
}

func TestRunFailsOnInvalidURL(t *testing.T) {
	layout := jobfs.Layout{BaseDir: t.TempDir(), LogDir: t.TempDir()}
	acq := acquirer.New(acquirer.Config{DestRoot: t.TempDir()})
	fs := &fakeScanner{result: &scanner.Result{}}

	w := New("job-2", 0, "bad", Config{Layout: layout, Acquirer: acq, Scanner: fs})

	err := w.Run(context.Background(), "not a url")
	if err == nil {
		t.Fatalf("expected error for invalid url")
	}

	var status jobfs.RepositoryStatus
	if err := jobfs.ReadJSON(layout.RepoPath("job-2", 0), &status); err != nil {
		t.Fatalf("read status: %v", err)
	}
	if status.Status != jobfs.PhaseFailed {
		t.Fatalf("expected failed status, got %q", status.Status)
	}
	if status.ErrorMessage == "" {
		t.Fatalf("expected error_message to be set")
	}
}

func TestRunFailsOnScannerError(t *testing.T) {
	repoDir := t.TempDir()
	writeTestFile(t, repoDir, "README.md", "hello")

	layout := jobfs.Layout{BaseDir: t.TempDir(), LogDir: t.TempDir()}
	acq := acquirer.New(acquirer.Config{DestRoot: t.TempDir()})
	fs := &fakeScanner{err: errScanBoom}

	w := New("job-3", 0, "owner/project", Config{Layout: layout, Acquirer: acq, Scanner: fs, CachedPath: repoDir})

	err := w.Run(context.Background(), "https://github.com/owner/project.git")
	if err == nil {
		t.Fatalf("expected scanner error to propagate")
	}

	var status jobfs.RepositoryStatus
	if err := jobfs.ReadJSON(layout.RepoPath("job-3", 0), &status); err != nil {
		t.Fatalf("read status: %v", err)
	}
	if status.Status != jobfs.PhaseFailed {
		t.Fatalf("expected failed status, got %q", status.Status)
	}
}

func TestRunEmbedsScanResultOnSuccess(t *testing.T) {
	repoDir := t.TempDir()
	writeTestFile(t, repoDir, "README.md", "hello")

	layout := jobfs.Layout{BaseDir: t.TempDir(), LogDir: t.TempDir()}
	acq := acquirer.New(acquirer.Config{DestRoot: t.TempDir()})
	fs := &fakeScanner{result: &scanner.Result{
		Dependencies: []scanner.Dependency{{Name: "flask", SourceFile: "requirements.txt"}},
	}}

	w := New("job-4", 1, "owner/project", Config{Layout: layout, Acquirer: acq, Scanner: fs, CachedPath: repoDir})

	if err := w.Run(context.Background(), "https://github.com/owner/project.git"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var status jobfs.RepositoryStatus
	if err := jobfs.ReadJSON(layout.RepoPath("job-4", 1), &status); err != nil {
		t.Fatalf("read status: %v", err)
	}
	if status.Status != jobfs.PhaseCompleted {
		t.Fatalf("expected completed status, got %q", status.Status)
	}
	if status.CompletedAt == "" {
		t.Fatalf("expected completed_at to be set")
	}

	var result scanner.Result
	if err := json.Unmarshal(status.Result, &result); err != nil {
		t.Fatalf("unmarshal embedded result: %v", err)
	}
	if len(result.Dependencies) != 1 || result.Dependencies[0].Name != "flask" {
		t.Fatalf("unexpected embedded result: %+v", result)
	}
}

var errScanBoom = &scanBoomError{}

type scanBoomError struct{}

func (e *scanBoomError) Error() string { return "scanner exploded" }
