// Package monitor implements the Job Monitor (spec.md §4.D): it aggregates
// a job's master record and per-repository status files into one coherent
// status response, supervises worker subprocesses to completion, and reaps
// old job directories.
package monitor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/greg-hellings/devdashboard/pkg/jobfs"
)

// repoReadConcurrency bounds how many repo_<n>.json files GetStatus reads in
// parallel for a single job; large group jobs can have hundreds of files and
// reading them one at a time dominates the aggregation's wall-clock cost.
const repoReadConcurrency = 8

// StaleThreshold mirrors STALE_THRESHOLD: a repo status older than this is
// considered stalled rather than actively progressing.
const StaleThreshold = 120 * time.Second

// DefaultCleanupAge mirrors CLEANUP_AGE_HOURS.
const DefaultCleanupAge = 24 * time.Hour

// Monitor aggregates and supervises job state under a Layout.
type Monitor struct {
	Layout jobfs.Layout
}

// New creates a Monitor over layout, ensuring its base directory exists.
func New(layout jobfs.Layout) (*Monitor, error) {
	if err := os.MkdirAll(layout.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("monitor: create base dir: %w", err)
	}
	return &Monitor{Layout: layout}, nil
}

// CurrentRepo is one entry in an Aggregate's CurrentRepositories.
type CurrentRepo struct {
	RepoName  string                   `json:"repo_name"`
	Status    jobfs.Phase              `json:"status"`
	StartedAt string                   `json:"started_at,omitempty"`
	Progress  *jobfs.ProgressSnapshot  `json:"progress,omitempty"`
}

// FailedRepoInfo is one entry in an Aggregate's FailedRepositories.
type FailedRepoInfo struct {
	RepoName string `json:"repo_name"`
	Error    string `json:"error"`
}

// Summary is the counts block of an Aggregate.
type Summary struct {
	TotalRepositories int `json:"total_repositories"`
	Completed         int `json:"completed"`
	InProgress        int `json:"in_progress"`
	Pending           int `json:"pending"`
	Failed            int `json:"failed"`
}

// Aggregate is the job status response the HTTP API returns (§6 Aggregate
// record; §4.D aggregation algorithm).
type Aggregate struct {
	JobID                string           `json:"job_id"`
	Status               string           `json:"status"`
	GroupURL             string           `json:"group_url,omitempty"`
	Summary              Summary          `json:"summary"`
	ElapsedTimeSeconds   float64          `json:"elapsed_time_seconds"`
	LastUpdate           string           `json:"last_update,omitempty"`
	CurrentRepositories  []CurrentRepo    `json:"current_repositories,omitempty"`
	CompletedRepositories []string        `json:"completed_repositories,omitempty"`
	FailedRepositories   []FailedRepoInfo `json:"failed_repositories,omitempty"`
	PendingRepositories  []string         `json:"pending_repositories,omitempty"`
	Error                string           `json:"error,omitempty"`
}

// notFoundAggregate is what GetStatus returns when a job directory does not
// exist.
func notFoundAggregate(jobID string) Aggregate {
	return Aggregate{JobID: jobID, Status: "not_found", Error: "Job not found"}
}

// GetStatus reads a job's master record and every repo status file and
// aggregates them (§4.D). Mirrors get_job_status/_aggregate_status.
func (m *Monitor) GetStatus(jobID string) (Aggregate, error) {
	if !jobfs.JobExists(m.Layout, jobID) {
		return notFoundAggregate(jobID), nil
	}

	master, err := jobfs.ReadMaster(m.Layout, jobID)
	if err != nil {
		return Aggregate{}, fmt.Errorf("monitor: read master for %s: %w", jobID, err)
	}

	repos, err := readRepoStatusesConcurrent(m.Layout, jobID)
	if err != nil {
		return Aggregate{}, fmt.Errorf("monitor: read repo statuses for %s: %w", jobID, err)
	}

	return aggregate(jobID, master, repos), nil
}

// readRepoStatusesConcurrent reads every repo status file for a job in
// parallel, bounded by repoReadConcurrency. Unparsable files are skipped,
// matching jobfs.ReadRepoStatuses's "corrupt individual repo files are
// skipped, not fatal" tolerance; the returned slice is sorted by repo index.
func readRepoStatusesConcurrent(layout jobfs.Layout, jobID string) ([]jobfs.RepositoryStatus, error) {
	paths, err := jobfs.RepoStatusPaths(layout, jobID)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, nil
	}

	results := make([]jobfs.RepositoryStatus, len(paths))
	ok := make([]bool, len(paths))

	var group errgroup.Group
	group.SetLimit(repoReadConcurrency)
	var mu sync.Mutex
	for i, path := range paths {
		i, path := i, path
		group.Go(func() error {
			var status jobfs.RepositoryStatus
			if err := jobfs.ReadJSON(path, &status); err != nil {
				return nil
			}
			mu.Lock()
			results[i] = status
			ok[i] = true
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	statuses := make([]jobfs.RepositoryStatus, 0, len(results))
	for i, r := range results {
		if ok[i] {
			statuses = append(statuses, r)
		}
	}
	return statuses, nil
}

func aggregate(jobID string, master jobfs.MasterRecord, repos []jobfs.RepositoryStatus) Aggregate {
	var completed, failed, inProgress []jobfs.RepositoryStatus

	for _, r := range repos {
		switch {
		case r.Status == jobfs.PhaseCompleted:
			completed = append(completed, r)
		case r.Status == jobfs.PhaseFailed:
			failed = append(failed, r)
		case r.Status.InProgress():
			inProgress = append(inProgress, r)
		}
	}

	total := master.TotalRepositories
	if total == 0 {
		total = len(repos)
	}

	pendingCount := total - len(completed) - len(failed) - len(inProgress)
	if pendingCount < 0 {
		pendingCount = 0
	}

	overall := determineOverallStatus(master, len(completed), len(failed), len(inProgress), pendingCount, total)

	var elapsed float64
	if master.StartedAt != "" {
		if start, err := time.Parse(time.RFC3339Nano, master.StartedAt); err == nil {
			elapsed = time.Since(start).Seconds()
		}
	}

	var lastUpdate string
	for _, r := range repos {
		if r.LastUpdate > lastUpdate {
			lastUpdate = r.LastUpdate
		}
	}

	resp := Aggregate{
		JobID:    jobID,
		Status:   overall,
		GroupURL: master.GroupURL,
		Summary: Summary{
			TotalRepositories: total,
			Completed:         len(completed),
			InProgress:        len(inProgress),
			Pending:           pendingCount,
			Failed:            len(failed),
		},
		ElapsedTimeSeconds: elapsed,
		LastUpdate:         lastUpdate,
	}

	if len(inProgress) > 0 {
		resp.CurrentRepositories = make([]CurrentRepo, 0, len(inProgress))
		for _, r := range inProgress {
			resp.CurrentRepositories = append(resp.CurrentRepositories, CurrentRepo{
				RepoName:  r.RepoName,
				Status:    r.Status,
				StartedAt: r.StartedAt,
				Progress:  r.Progress,
			})
		}
	}

	if len(completed) > 0 {
		resp.CompletedRepositories = make([]string, 0, len(completed))
		for _, r := range completed {
			resp.CompletedRepositories = append(resp.CompletedRepositories, r.RepoName)
		}
	}

	if len(failed) > 0 {
		resp.FailedRepositories = make([]FailedRepoInfo, 0, len(failed))
		for _, r := range failed {
			errMsg := r.ErrorMessage
			if errMsg == "" {
				errMsg = "Unknown error"
			}
			if len(r.Errors) > 0 && r.Errors[0].Message != "" {
				errMsg = r.Errors[0].Message
			}
			resp.FailedRepositories = append(resp.FailedRepositories, FailedRepoInfo{RepoName: r.RepoName, Error: errMsg})
		}
	}

	if len(master.PendingRepositories) > 0 {
		end := pendingCount
		if end > len(master.PendingRepositories) {
			end = len(master.PendingRepositories)
		}
		resp.PendingRepositories = master.PendingRepositories[:end]
	}

	return resp
}

// determineOverallStatus implements §4.D's decision table. This redesigns
// the Python original's _determine_overall_status: the source declares a
// repo-derived terminal status (completed/all_failed/completed_with_errors)
// as soon as completed+failed >= total, with no regard for whether the
// Controller has itself finalized the master record. Per spec.md's Open
// Questions, that race is resolved here by gating those terminal verdicts
// on master.Status.Final() — when every repo is done but the Controller
// hasn't yet written its own terminal master status, the aggregate reports
// "processing" rather than jumping ahead of the Controller (Scenario 5).
func determineOverallStatus(master jobfs.MasterRecord, completed, failed, inProgress, pending, total int) string {
	switch master.Status {
	case jobfs.MasterFailed, jobfs.MasterTimeout, jobfs.MasterCancelled:
		return string(master.Status)
	}

	if total > 0 && completed+failed >= total {
		if !master.Status.Final() {
			return "processing"
		}
		switch {
		case failed == 0:
			return string(jobfs.MasterCompleted)
		case failed == total:
			return string(jobfs.MasterAllFailed)
		default:
			return string(jobfs.MasterCompletedWithErrs)
		}
	}

	if inProgress > 0 {
		return string(jobfs.MasterInProgress)
	}

	if completed > 0 || failed > 0 {
		return string(jobfs.MasterInProgress)
	}

	return string(jobfs.MasterInitializing)
}

// UpdateMaster merges fields into a job's master record and rewrites it
// atomically, stamping LastAggregation. Mirrors update_master_status.
func (m *Monitor) UpdateMaster(jobID string, mutate func(*jobfs.MasterRecord)) error {
	record, err := jobfs.ReadMaster(m.Layout, jobID)
	if err != nil {
		return fmt.Errorf("monitor: read master for update: %w", err)
	}

	mutate(&record)
	record.LastAggregation = jobfs.Now()

	if err := jobfs.WriteJSONAtomic(m.Layout.MasterPath(jobID), record); err != nil {
		return fmt.Errorf("monitor: write master status failed: %w", err)
	}
	return nil
}

// IsStatusStale reports whether a repository status's LastUpdate is older
// than StaleThreshold, or unset.
func IsStatusStale(status jobfs.RepositoryStatus) bool {
	if status.LastUpdate == "" {
		return true
	}
	t, err := time.Parse(time.RFC3339Nano, status.LastUpdate)
	if err != nil {
		return true
	}
	return time.Since(t) > StaleThreshold
}

// SupervisedWait waits for a worker subprocess, enforcing timeout by
// terminating it and escalating to a kill, then ensures the repository's
// status file reflects failure/timeout if the process itself never wrote a
// terminal status (§4.C "finally" guarantee, §4.D monitor_subprocess).
func (m *Monitor) SupervisedWait(ctx context.Context, cmd *exec.Cmd, jobID string, repoIndex int, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case err := <-done:
		if err != nil {
			stderr := ""
			return m.writeFailedIfNeeded(jobID, repoIndex, fmt.Sprintf("Process exited with error: %v", err), stderr)
		}
		return nil
	case <-timer:
		_ = cmd.Process.Kill()
		<-done
		return m.writeFailedStatus(jobID, repoIndex, fmt.Sprintf("Process killed after %s timeout", timeout), "")
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		return ctx.Err()
	}
}

// WriteFailedRepo records a terminal failure for a repository the Controller
// never managed to spawn a worker for (e.g. exec.Command itself failed), or
// that it decided to abort early. It respects the same already-terminal
// guard as SupervisedWait's own failure path.
func (m *Monitor) WriteFailedRepo(jobID string, repoIndex int, errMsg, stderr string) error {
	return m.writeFailedIfNeeded(jobID, repoIndex, errMsg, stderr)
}

func (m *Monitor) writeFailedIfNeeded(jobID string, repoIndex int, errMsg, stderr string) error {
	path := m.Layout.RepoPath(jobID, repoIndex)
	var existing jobfs.RepositoryStatus
	if err := jobfs.ReadJSON(path, &existing); err == nil {
		if existing.Status == jobfs.PhaseFailed || existing.Status == jobfs.PhaseTimeout {
			return nil
		}
	}
	return m.writeFailedStatus(jobID, repoIndex, errMsg, stderr)
}

// writeFailedStatus mirrors _write_failed_status.
func (m *Monitor) writeFailedStatus(jobID string, repoIndex int, errMsg, stderr string) error {
	now := jobfs.Now()
	status := jobfs.RepositoryStatus{
		RepoIndex:    repoIndex,
		Status:       jobfs.PhaseFailed,
		ErrorMessage: errMsg,
		Stderr:       stderr,
		LastUpdate:   now,
		Errors:       []jobfs.StatusErrorEntry{{Message: errMsg, Timestamp: now}},
	}
	return jobfs.WriteJSONAtomic(m.Layout.RepoPath(jobID, repoIndex), status)
}

// CleanupOldJobs removes job directories older than age, using a job's
// master completed_at when present and falling back to directory mtime
// otherwise (§4.D cleanup_old_jobs dual fallback). Returns the count
// removed.
func (m *Monitor) CleanupOldJobs(age time.Duration) (int, error) {
	if age <= 0 {
		age = DefaultCleanupAge
	}
	cutoff := time.Now().Add(-age)

	entries, err := os.ReadDir(m.Layout.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("monitor: list job directories: %w", err)
	}

	cleaned := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		jobDir := filepath.Join(m.Layout.BaseDir, entry.Name())

		shouldCleanup := false
		master, err := jobfs.ReadMaster(m.Layout, entry.Name())
		if err == nil && master.CompletedAt != "" {
			if completedTime, err := time.Parse(time.RFC3339Nano, master.CompletedAt); err == nil {
				shouldCleanup = completedTime.Before(cutoff)
			}
		} else {
			info, statErr := os.Stat(jobDir)
			if statErr == nil {
				shouldCleanup = info.ModTime().Before(cutoff)
			}
		}

		if shouldCleanup {
			if err := os.RemoveAll(jobDir); err == nil {
				cleaned++
			}
		}
	}

	return cleaned, nil
}
