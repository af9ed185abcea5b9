// Package jobfs defines the on-disk job state layout and the atomic JSON
// read/write primitives every other component builds on: a master record per
// job, a status file per repository, written to a temp file and renamed into
// place so a reader never observes a partial write.
package jobfs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Phase is the fine-grained state a Worker writes into a repository's status
// file.
type Phase string

const (
	PhaseInitializing Phase = "initializing"
	PhaseStarting     Phase = "starting"
	PhaseDownloading  Phase = "downloading"
	PhaseExtracting   Phase = "extracting"
	PhaseCloning      Phase = "cloning"
	PhaseScanning     Phase = "scanning"
	PhaseAnalyzing    Phase = "analyzing"
	PhaseCompleted    Phase = "completed"
	PhaseFailed       Phase = "failed"
	PhaseTimeout      Phase = "timeout"
)

// Terminal reports whether a phase is one of the states after which a repo
// status file is never overwritten by scanner progress again.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseCompleted, PhaseFailed, PhaseTimeout:
		return true
	default:
		return false
	}
}

// InProgress reports whether a phase counts as "in progress" work for
// aggregation purposes (§4.D bucketing).
func (p Phase) InProgress() bool {
	switch p {
	case PhaseStarting, PhaseCloning, PhaseScanning, PhaseAnalyzing, PhaseDownloading, PhaseExtracting:
		return true
	default:
		return false
	}
}

// MasterStatus is the job-level phase override recorded in master.json.
type MasterStatus string

const (
	MasterInitializing      MasterStatus = "initializing"
	MasterInProgress        MasterStatus = "in_progress"
	MasterCompleted         MasterStatus = "completed"
	MasterCompletedWithErrs MasterStatus = "completed_with_errors"
	MasterAllFailed         MasterStatus = "all_failed"
	MasterFailed            MasterStatus = "failed"
	MasterTimeout           MasterStatus = "timeout"
	MasterCancelled         MasterStatus = "cancelled"
)

// Final reports whether a master status is one the Controller will not
// revise further.
func (m MasterStatus) Final() bool {
	switch m {
	case MasterCompleted, MasterCompletedWithErrs, MasterAllFailed, MasterFailed, MasterTimeout, MasterCancelled:
		return true
	default:
		return false
	}
}

// StatusErrorEntry is one entry in a RepositoryStatus's Errors list.
type StatusErrorEntry struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// FailedRepo names one repository in a group job that did not complete.
type FailedRepo struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// PerStageProgress is the completed/total breakdown for one scanner stage.
type PerStageProgress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// ProgressSnapshot is embedded in a RepositoryStatus while a Worker is in a
// work phase (§3 ProgressSnapshot).
type ProgressSnapshot struct {
	Stage           string                      `json:"stage"`
	ProcessedFiles  int                         `json:"processed_files"`
	ObservedTotal   int                         `json:"observed_total"`
	Percentage      float64                     `json:"percentage"`
	CurrentFileName string                      `json:"current_file_name,omitempty"`
	Message         string                      `json:"message,omitempty"`
	PerStage        map[string]PerStageProgress `json:"per_stage,omitempty"`
}

// RepositoryStatus is the repo_<index>.json document (§3 RepositoryStatus).
type RepositoryStatus struct {
	RepoIndex    int                `json:"repo_index"`
	RepoName     string             `json:"repo_name"`
	Status       Phase              `json:"status"`
	PID          int                `json:"pid,omitempty"`
	StartedAt    string             `json:"started_at,omitempty"`
	LastUpdate   string             `json:"last_update,omitempty"`
	Progress     *ProgressSnapshot  `json:"progress,omitempty"`
	Errors       []StatusErrorEntry `json:"errors,omitempty"`
	ErrorMessage string             `json:"error_message,omitempty"`
	Stderr       string             `json:"stderr,omitempty"`
	CompletedAt  string             `json:"completed_at,omitempty"`
	Result       json.RawMessage    `json:"result,omitempty"`
	LocalPath    string             `json:"local_path,omitempty"`

	// Fields mirrored at top level for the aggregate's current_repositories
	// projection (§6), kept alongside Progress rather than duplicated by
	// the Monitor at read time.
	TotalFiles     int    `json:"total_files,omitempty"`
	CurrentFile    int    `json:"current_file,omitempty"`
	Percentage     float64 `json:"percentage,omitempty"`
	CurrentFilename string `json:"current_filename,omitempty"`
}

// MasterRecord is the master.json document (§3 MasterRecord).
type MasterRecord struct {
	GroupURL             string       `json:"group_url,omitempty"`
	TotalRepositories    int          `json:"total_repositories"`
	PendingRepositories  []string     `json:"pending_repositories,omitempty"`
	CompletedRepositories []string    `json:"completed_repositories,omitempty"`
	FailedRepositories   []FailedRepo `json:"failed_repositories,omitempty"`
	Status               MasterStatus `json:"status"`
	StartedAt            string       `json:"started_at,omitempty"`
	CompletedAt          string       `json:"completed_at,omitempty"`
	LastAggregation      string       `json:"last_aggregation,omitempty"`
}

// Layout resolves the filesystem paths for a job's state files (§6
// Filesystem layout).
type Layout struct {
	BaseDir string
	LogDir  string
}

// DefaultLayout mirrors the source's tmp/scan_jobs and tmp/scan_logs roots.
func DefaultLayout() Layout {
	return Layout{BaseDir: filepath.Join("tmp", "scan_jobs"), LogDir: filepath.Join("tmp", "scan_logs")}
}

func (l Layout) JobDir(jobID string) string {
	return filepath.Join(l.BaseDir, jobID)
}

func (l Layout) MasterPath(jobID string) string {
	return filepath.Join(l.JobDir(jobID), "master.json")
}

func (l Layout) RepoPath(jobID string, index int) string {
	return filepath.Join(l.JobDir(jobID), fmt.Sprintf("repo_%d.json", index))
}

func (l Layout) JobLogDir(jobID string) string {
	return filepath.Join(l.LogDir, jobID)
}

// repoIndexFromName extracts the integer index from a "repo_<n>.json" file
// name; returns false if the name doesn't match that shape.
func repoIndexFromName(name string) (int, bool) {
	if !strings.HasPrefix(name, "repo_") || !strings.HasSuffix(name, ".json") {
		return 0, false
	}
	trimmed := strings.TrimSuffix(strings.TrimPrefix(name, "repo_"), ".json")
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, false
	}
	return n, true
}

// WriteJSONAtomic serializes v and writes it to path via write-to-temp,
// fsync, rename (§5 atomic write discipline). The directory is created if
// absent.
func WriteJSONAtomic(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("jobfs: create directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("jobfs: marshal: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("jobfs: open temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("jobfs: write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("jobfs: fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("jobfs: close temp file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("jobfs: rename into place: %w", err)
	}
	return nil
}

// ReadJSON reads and unmarshals path into v. Returns os.IsNotExist-compatible
// errors unchanged so callers can treat "missing" distinctly from "corrupt".
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// ReadMaster reads a job's master.json, returning a zero-value record (not
// an error) if the file does not exist.
func ReadMaster(layout Layout, jobID string) (MasterRecord, error) {
	var m MasterRecord
	err := ReadJSON(layout.MasterPath(jobID), &m)
	if os.IsNotExist(err) {
		return MasterRecord{}, nil
	}
	return m, err
}

// ReadRepoStatuses reads every repo_<n>.json in a job's directory, sorted by
// index. Unparsable files are skipped, matching §4.D's "corrupt individual
// repo files are skipped, not fatal" tolerance.
func ReadRepoStatuses(layout Layout, jobID string) ([]RepositoryStatus, error) {
	entries, err := os.ReadDir(layout.JobDir(jobID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var statuses []RepositoryStatus
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := repoIndexFromName(entry.Name()); !ok {
			continue
		}
		var s RepositoryStatus
		if err := ReadJSON(filepath.Join(layout.JobDir(jobID), entry.Name()), &s); err != nil {
			continue
		}
		statuses = append(statuses, s)
	}

	sort.Slice(statuses, func(i, j int) bool { return statuses[i].RepoIndex < statuses[j].RepoIndex })
	return statuses, nil
}

// RepoStatusPaths lists the full paths of every repo_<n>.json file in a
// job's directory, sorted by index, without reading their contents. Callers
// that want to parallelize the reads (pkg/monitor) use this instead of
// ReadRepoStatuses.
func RepoStatusPaths(layout Layout, jobID string) ([]string, error) {
	entries, err := os.ReadDir(layout.JobDir(jobID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	type indexed struct {
		index int
		path  string
	}
	var found []indexed
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		idx, ok := repoIndexFromName(entry.Name())
		if !ok {
			continue
		}
		found = append(found, indexed{index: idx, path: filepath.Join(layout.JobDir(jobID), entry.Name())})
	}

	sort.Slice(found, func(i, j int) bool { return found[i].index < found[j].index })
	paths := make([]string, len(found))
	for i, f := range found {
		paths[i] = f.path
	}
	return paths, nil
}

// JobExists reports whether a job's state directory has been created.
func JobExists(layout Layout, jobID string) bool {
	_, err := os.Stat(layout.JobDir(jobID))
	return err == nil
}

// Now is the canonical timestamp format used across all state files: RFC3339
// with a trailing "Z", matching the Python source's
// datetime.now(timezone.utc).isoformat() output.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
