// Package worker implements the Scan Worker (spec.md §4.C): one process (or
// in this implementation, one goroutine supervised by the Controller) scans
// exactly one repository, writing its status file as it progresses and
// embedding the ScanResult on success.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/greg-hellings/devdashboard/pkg/acquirer"
	"github.com/greg-hellings/devdashboard/pkg/categorize"
	"github.com/greg-hellings/devdashboard/pkg/jobfs"
	"github.com/greg-hellings/devdashboard/pkg/progress"
	"github.com/greg-hellings/devdashboard/pkg/scanner"
	"github.com/greg-hellings/devdashboard/pkg/urlvalidate"
)

// DefaultProgressInterval is PROGRESS_INTERVAL from §4.C's throttling
// contract: the worker writes at least this often while in a work phase.
const DefaultProgressInterval = 2 * time.Second

// Config wires a Worker's collaborators.
type Config struct {
	Layout           jobfs.Layout
	Acquirer         *acquirer.Acquirer
	Scanner          scanner.Scanner
	Categorizer      *categorize.Categorizer
	ProgressInterval time.Duration

	// CachedPath, if set, is a directory the Controller already resolved via
	// its own Cache lookup; the Worker skips acquisition entirely and scans
	// this path. Set by cmd/devdashboard-worker from an optional argument.
	CachedPath string
	// KeepPath, if true, leaves the acquired directory on disk on exit
	// instead of cleaning it up: the Controller's Cache now owns its
	// lifecycle (set via the SCAN_CACHE_KEEP environment variable).
	KeepPath bool
}

// Worker scans exactly one repository within one job.
type Worker struct {
	jobID     string
	repoIndex int
	repoName  string
	config    Config

	status    jobfs.RepositoryStatus
	lastWrite time.Time
}

// New creates a Worker for one (job, repository) pair.
func New(jobID string, repoIndex int, repoName string, config Config) *Worker {
	if config.Scanner == nil {
		config.Scanner = NewDefaultScanner()
	}
	if config.ProgressInterval == 0 {
		config.ProgressInterval = DefaultProgressInterval
	}
	return &Worker{
		jobID:     jobID,
		repoIndex: repoIndex,
		repoName:  repoName,
		config:    config,
		status: jobfs.RepositoryStatus{
			RepoIndex: repoIndex,
			RepoName:  repoName,
			PID:       os.Getpid(),
		},
	}
}

// Run executes the full §4.C sequence for gitURL: validate, download,
// extract, scan, categorize, complete — or fail at any step with a
// terminal status write. The returned error is nil iff the repo status
// ended in PhaseCompleted.
func (w *Worker) Run(ctx context.Context, gitURL string) error {
	w.status.StartedAt = jobfs.Now()
	w.writeStatus(jobfs.PhaseStarting, true)

	if err := urlvalidate.Validate(gitURL); err != nil {
		return w.fail(fmt.Errorf("%w: %v", scanner.ErrInvalidURL, err))
	}

	var path string
	var cacheHit bool
	if w.config.CachedPath != "" {
		w.status.Progress = &jobfs.ProgressSnapshot{Message: "Using pre-resolved cached extraction"}
		w.writeStatus(jobfs.PhaseDownloading, true)
		w.writeStatus(jobfs.PhaseExtracting, true)
		path, cacheHit = w.config.CachedPath, true
	} else {
		var err error
		path, cacheHit, err = w.acquire(ctx, gitURL)
		if err != nil {
			return w.fail(err)
		}
	}
	w.status.LocalPath = path
	if !cacheHit && !w.config.KeepPath {
		defer w.config.Acquirer.Cleanup(path)
	}

	ok, err := acquirer.ValidateTree(path)
	if err != nil {
		return w.fail(fmt.Errorf("%w: validating tree: %v", scanner.ErrAcquisition, err))
	}
	if !ok {
		return w.fail(fmt.Errorf("%w: extracted tree contains no files", scanner.ErrAcquisition))
	}

	result, err := w.scan(ctx, path)
	if err != nil {
		return w.fail(err)
	}

	w.writeStatus(jobfs.PhaseAnalyzing, true)
	w.categorize(result)

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return w.fail(fmt.Errorf("%w: marshal scan result: %v", scanner.ErrScanner, err))
	}

	w.status.Result = resultJSON
	w.status.CompletedAt = jobfs.Now()
	w.writeStatus(jobfs.PhaseCompleted, true)
	return nil
}

func (w *Worker) acquire(ctx context.Context, gitURL string) (string, bool, error) {
	w.status.Progress = &jobfs.ProgressSnapshot{Message: "Downloading archive..."}
	w.writeStatus(jobfs.PhaseDownloading, true)

	onDownload := func(n int64) {
		w.status.Progress = &jobfs.ProgressSnapshot{Message: fmt.Sprintf("Downloading: %s downloaded", humanize.Bytes(uint64(n)))}
		w.writeStatus(jobfs.PhaseDownloading, false)
	}
	onExtract := func(i, n int) {
		pct := 0.0
		if n > 0 {
			pct = float64(i) / float64(n) * 100
		}
		w.status.Progress = &jobfs.ProgressSnapshot{
			ProcessedFiles: i,
			ObservedTotal:  n,
			Percentage:     pct,
			Message:        fmt.Sprintf("Extracting: %d/%d files (%.1f%%)", i, n, pct),
		}
		w.writeStatus(jobfs.PhaseExtracting, i == n && n > 0)
	}

	path, cacheHit, err := w.config.Acquirer.Acquire(ctx, gitURL, onDownload, onExtract)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", scanner.ErrAcquisition, err)
	}
	return path, cacheHit, nil
}

func (w *Worker) scan(ctx context.Context, path string) (*scanner.Result, error) {
	w.status.Progress = &jobfs.ProgressSnapshot{Stage: "scanning", Message: "Analyzing dependencies..."}
	w.writeStatus(jobfs.PhaseScanning, true)

	agg := progress.New()
	result, err := w.config.Scanner.ScanProject(ctx, path, func(ev scanner.ProgressEvent) {
		snap := agg.Update(ev)
		w.status.Progress = toJobfsSnapshot(snap)
		force := ev.StageTotal > 0 && ev.StageIndex == ev.StageTotal
		w.writeStatus(jobfs.PhaseScanning, force)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", scanner.ErrScanner, err)
	}

	finalSnap := agg.Finalize()
	w.status.Progress = toJobfsSnapshot(finalSnap)
	w.writeStatus(jobfs.PhaseScanning, true)

	return result, nil
}

func (w *Worker) categorize(result *scanner.Result) {
	if w.config.Categorizer == nil {
		return
	}
	result.CategorizedDeps = w.config.Categorizer.CategorizeDependencies(result.Dependencies)
	result.CategorizedInfra = w.config.Categorizer.CategorizeInfrastructure(result.Infrastructure)
	result.CategorizedAPIs = w.config.Categorizer.CategorizeAPICalls(result.ApiCalls)
}

func (w *Worker) fail(err error) error {
	msg := err.Error()
	w.status.ErrorMessage = msg
	w.status.Errors = append(w.status.Errors, jobfs.StatusErrorEntry{Message: msg, Timestamp: jobfs.Now()})
	w.writeStatus(jobfs.PhaseFailed, true)
	return err
}

// writeStatus applies the §4.C/§9 throttling contract: write at least once
// per phase transition, at least once every ProgressInterval while in a
// work phase, and always when force is set. It never overwrites a terminal
// status once written (§3 RepositoryStatus invariant).
func (w *Worker) writeStatus(phase jobfs.Phase, force bool) {
	if w.status.Status.Terminal() {
		return
	}

	phaseChanged := phase != w.status.Status
	w.status.Status = phase
	w.status.LastUpdate = jobfs.Now()

	if !force && !phaseChanged && time.Since(w.lastWrite) < w.config.ProgressInterval {
		return
	}

	if err := jobfs.WriteJSONAtomic(w.config.Layout.RepoPath(w.jobID, w.repoIndex), w.status); err == nil {
		w.lastWrite = time.Now()
	}
}

func toJobfsSnapshot(s progress.Snapshot) *jobfs.ProgressSnapshot {
	perStage := make(map[string]jobfs.PerStageProgress, len(s.PerStage))
	for stage, p := range s.PerStage {
		perStage[stage] = jobfs.PerStageProgress{Completed: p.Completed, Total: p.Total}
	}
	return &jobfs.ProgressSnapshot{
		Stage:           s.Stage,
		ProcessedFiles:  s.ProcessedFiles,
		ObservedTotal:   s.ObservedTotal,
		Percentage:      s.Percentage,
		CurrentFileName: s.CurrentFileName,
		Message:         s.Message,
		PerStage:        perStage,
	}
}
