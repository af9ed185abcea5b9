// Command devdashboard-worker is the Scan Worker subprocess entrypoint
// (spec.md §4.C): invoked by the Controller once per repository with
// arguments job id, repository index, repository name, Git URL, and
// optionally a pre-resolved cached directory path. It exits 0 on a
// completed scan and non-zero on any unrecovered failure.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/greg-hellings/devdashboard/pkg/acquirer"
	"github.com/greg-hellings/devdashboard/pkg/categorize"
	"github.com/greg-hellings/devdashboard/pkg/jobfs"
	"github.com/greg-hellings/devdashboard/pkg/worker"
)

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 5 {
		fmt.Fprintln(os.Stderr, "usage: devdashboard-worker <job_id> <repo_index> <repo_name> <git_url> [cached_path]")
		return 2
	}

	jobID := os.Args[1]
	repoIndex, err := strconv.Atoi(os.Args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid repo index %q: %v\n", os.Args[2], err)
		return 2
	}
	repoName := os.Args[3]
	gitURL := os.Args[4]
	cachedPath := ""
	if len(os.Args) > 5 {
		cachedPath = os.Args[5]
	}

	cleanup := setupLogging(jobID)
	defer cleanup()

	layout := jobfs.Layout{
		BaseDir: envOr("SCAN_JOBS_DIR", jobfs.DefaultLayout().BaseDir),
		LogDir:  envOr("SCAN_LOGS_DIR", jobfs.DefaultLayout().LogDir),
	}

	catalog, err := categorize.LoadCatalog(categorize.ResolveConfigPath())
	if err != nil {
		slog.Warn("loading category catalog failed; continuing without categorization", "error", err)
		catalog = nil
	}

	// The worker subprocess constructs its own Acquirer without a shared
	// Cache: the Controller owns the URL -> path cache and resolves hits
	// before spawning (pkg/controller.runOneWorker), passing the resolved
	// path as this process's 5th argument.
	acq := acquirer.New(acquirer.Config{})

	w := worker.New(jobID, repoIndex, repoName, worker.Config{
		Layout:      layout,
		Acquirer:    acq,
		Categorizer: categorize.New(catalog),
		CachedPath:  cachedPath,
		KeepPath:    os.Getenv("SCAN_CACHE_KEEP") == "1",
	})

	ctx := context.Background()

	if err := w.Run(ctx, gitURL); err != nil {
		slog.Error("scan failed", "job_id", jobID, "repo_index", repoIndex, "repo_name", repoName, "error", err)
		return 1
	}

	slog.Info("scan completed", "job_id", jobID, "repo_index", repoIndex, "repo_name", repoName)
	return 0
}

// setupLogging wires log/slog to stderr, additionally teeing to a per-PID
// file under SCAN_JOB_LOG_DIR (spec.md §4.C invocation contract; grounded on
// the source's scanner_worker.py:setup_worker_logging). Returns a function
// to close the log file.
func setupLogging(jobID string) func() {
	writers := []io.Writer{os.Stderr}
	closeFn := func() {}

	if dir := os.Getenv("SCAN_JOB_LOG_DIR"); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err == nil {
			path := filepath.Join(dir, fmt.Sprintf("%d.log", os.Getpid()))
			if f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644); err == nil {
				writers = append(writers, f)
				closeFn = func() { _ = f.Close() }
			}
		}
	}

	level := slog.LevelInfo
	if os.Getenv("SCAN_WORKER_DEBUG") == "1" {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{Level: level})
	logger := slog.New(handler).With("job_id", jobID, "pid", os.Getpid())
	slog.SetDefault(logger)

	return closeFn
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
