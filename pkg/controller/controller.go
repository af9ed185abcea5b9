// Package controller implements the Scan Controller (spec.md §4.E): accepts
// a submission, enumerates repositories for group URLs, spawns bounded
// worker subprocesses, drives each job's lifecycle to a terminal state, and
// transforms the filesystem-derived result into the API's response shapes.
package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/greg-hellings/devdashboard/pkg/cache"
	"github.com/greg-hellings/devdashboard/pkg/categorize"
	"github.com/greg-hellings/devdashboard/pkg/jobfs"
	"github.com/greg-hellings/devdashboard/pkg/metrics"
	"github.com/greg-hellings/devdashboard/pkg/monitor"
	"github.com/greg-hellings/devdashboard/pkg/registry"
	"github.com/greg-hellings/devdashboard/pkg/repository"
	"github.com/greg-hellings/devdashboard/pkg/scanner"
	"github.com/greg-hellings/devdashboard/pkg/urlvalidate"
)

// ErrTooManyJobs is returned by Submit when the active-job cap is reached
// (§4.E "over the cap -> too_many_jobs", surfaced by pkg/httpapi as 429).
var ErrTooManyJobs = errors.New("controller: too many concurrent jobs")

// ErrNotReady is returned by Result when a job has not yet reached a
// terminal status.
var ErrNotReady = errors.New("controller: job result not ready")

// DefaultPollInterval mirrors the source's progress-poll cadence.
const DefaultPollInterval = 5 * time.Second

// Config wires a Controller's collaborators.
type Config struct {
	Layout      jobfs.Layout
	Registry    *registry.Registry
	Monitor     *monitor.Monitor
	Factories   map[string]*repository.Factory // provider name ("github", "gitlab") -> Factory, each built with that provider's token
	Categorizer *categorize.Categorizer
	Cache       *cache.Cache
	Metrics     *metrics.Metrics

	WorkerBinary   string
	CategoriesPath string

	MaxConcurrentJobs      int
	MaxConcurrentProcesses int
	WorkerTimeout          time.Duration
	PollInterval           time.Duration
}

// Controller orchestrates the end-to-end lifecycle of submitted jobs.
type Controller struct {
	config Config
}

// New creates a Controller, applying the same defaults as
// config.DefaultServiceConfig for any zero-valued field.
func New(config Config) *Controller {
	if config.MaxConcurrentJobs == 0 {
		config.MaxConcurrentJobs = 20
	}
	if config.MaxConcurrentProcesses == 0 {
		config.MaxConcurrentProcesses = 5
	}
	if config.WorkerTimeout == 0 {
		config.WorkerTimeout = 3600 * time.Second
	}
	if config.PollInterval == 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.WorkerBinary == "" {
		config.WorkerBinary = "devdashboard-worker"
	}
	return &Controller{config: config}
}

// Submit validates url, registers a new job, and schedules Run
// asynchronously, returning the job id immediately (§4.E Submit).
func (c *Controller) Submit(url string) (string, error) {
	isGroup := urlvalidate.IsGroupURL(url)

	var err error
	if isGroup {
		err = urlvalidate.ValidateGroup(url)
	} else {
		err = urlvalidate.Validate(url)
	}
	if err != nil {
		c.config.Metrics.IncSubmitted("invalid_url")
		return "", fmt.Errorf("%w: %v", scanner.ErrInvalidURL, err)
	}

	if c.config.Registry.CountActive() >= c.config.MaxConcurrentJobs {
		c.config.Metrics.IncSubmitted("too_many_jobs")
		return "", ErrTooManyJobs
	}

	jobID := uuid.NewString()
	c.config.Registry.Create(jobID, url, jobfs.Now())

	if err := jobfs.WriteJSONAtomic(c.config.Layout.MasterPath(jobID), jobfs.MasterRecord{
		GroupURL:  groupURLField(url, isGroup),
		Status:    jobfs.MasterInitializing,
		StartedAt: jobfs.Now(),
	}); err != nil {
		return "", fmt.Errorf("controller: write initial master record: %w", err)
	}

	c.config.Metrics.IncSubmitted("accepted")
	go c.Run(jobID, url, isGroup)

	return jobID, nil
}

func groupURLField(rawURL string, isGroup bool) string {
	if isGroup {
		return rawURL
	}
	return ""
}

// Run dispatches to the single-repository or group path (§4.E Run).
func (c *Controller) Run(jobID, gitURL string, isGroup bool) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var err error
	if isGroup {
		err = c.runGroup(ctx, jobID, gitURL)
	} else {
		err = c.runSingle(ctx, jobID, gitURL)
	}

	if err != nil {
		slog.Error("job run failed", "job_id", jobID, "error", err)
		_ = c.config.Registry.SetError(jobID, err.Error(), jobfs.Now())
		_ = c.config.Monitor.UpdateMaster(jobID, func(m *jobfs.MasterRecord) {
			if !m.Status.Final() {
				m.Status = jobfs.MasterFailed
			}
			m.CompletedAt = jobfs.Now()
		})
	}
}

// runSingle implements §4.E's single-repository path.
func (c *Controller) runSingle(ctx context.Context, jobID, gitURL string) error {
	repoName := repoNameFromURL(gitURL)

	if err := c.config.Monitor.UpdateMaster(jobID, func(m *jobfs.MasterRecord) {
		m.TotalRepositories = 1
		m.PendingRepositories = []string{repoName}
		m.Status = jobfs.MasterInProgress
		if m.StartedAt == "" {
			m.StartedAt = jobfs.Now()
		}
	}); err != nil {
		return fmt.Errorf("update master: %w", err)
	}
	_ = c.config.Registry.UpdateStatus(jobID, 0, []string{repoName})

	stop := c.startPollLoop(jobID, 1)
	defer stop()

	if err := c.runOneWorker(ctx, jobID, 0, repoName, gitURL); err != nil {
		slog.Warn("worker failed to spawn", "job_id", jobID, "repo", repoName, "error", err)
	}

	agg, err := c.config.Monitor.GetStatus(jobID)
	if err != nil {
		return fmt.Errorf("aggregate final status: %w", err)
	}
	// The master is still in_progress here, so the Monitor reports
	// "processing" once the repository is done; settle the verdict from the
	// repository counts before acting on it.
	if agg.Status == "processing" {
		switch {
		case agg.Summary.Failed == 0:
			agg.Status = string(jobfs.MasterCompleted)
		case agg.Summary.Failed >= agg.Summary.TotalRepositories:
			agg.Status = string(jobfs.MasterAllFailed)
		default:
			agg.Status = string(jobfs.MasterCompletedWithErrs)
		}
	}

	switch agg.Status {
	case string(jobfs.MasterCompleted), string(jobfs.MasterCompletedWithErrs):
		result, buildErr := c.buildSingleResult(jobID, gitURL, repoName)
		if buildErr != nil {
			return buildErr
		}
		_ = c.config.Registry.SetResult(jobID, result, jobfs.Now())
	default:
		msg := "repository scan failed"
		if len(agg.FailedRepositories) > 0 {
			msg = agg.FailedRepositories[0].Error
		}
		_ = c.config.Registry.SetError(jobID, msg, jobfs.Now())
	}

	return c.config.Monitor.UpdateMaster(jobID, func(m *jobfs.MasterRecord) {
		if !m.Status.Final() {
			m.Status = jobfs.MasterStatus(agg.Status)
			if !m.Status.Final() {
				m.Status = jobfs.MasterFailed
			}
		}
		m.CompletedAt = jobfs.Now()
	})
}

// runGroup implements §4.E's group path.
func (c *Controller) runGroup(ctx context.Context, jobID, groupURL string) error {
	if err := c.config.Monitor.UpdateMaster(jobID, func(m *jobfs.MasterRecord) {
		m.Status = jobfs.MasterInitializing
		if m.StartedAt == "" {
			m.StartedAt = jobfs.Now()
		}
	}); err != nil {
		return fmt.Errorf("update master: %w", err)
	}

	provider, group, err := providerAndGroup(groupURL)
	if err != nil {
		return fmt.Errorf("%w: %v", scanner.ErrInvalidURL, err)
	}

	factory, ok := c.config.Factories[provider]
	if !ok {
		return fmt.Errorf("no configured provider credentials for %q", provider)
	}
	enumerator, err := factory.CreateGroupEnumerator(provider)
	if err != nil {
		return fmt.Errorf("create group enumerator: %w", err)
	}

	projects, err := enumerator.ListGroupProjects(ctx, group)
	if err != nil {
		return fmt.Errorf("enumerate group projects: %w", err)
	}
	if len(projects) == 0 {
		return fmt.Errorf("group %q has no repositories", group)
	}

	names := make([]string, len(projects))
	urls := make([]string, len(projects))
	for i, p := range projects {
		names[i] = p.Repo
		urls[i] = projectWebURL(p)
	}

	if err := c.config.Monitor.UpdateMaster(jobID, func(m *jobfs.MasterRecord) {
		m.TotalRepositories = len(projects)
		m.PendingRepositories = names
		m.Status = jobfs.MasterInProgress
	}); err != nil {
		return fmt.Errorf("update master with project count: %w", err)
	}
	_ = c.config.Registry.UpdateStatus(jobID, 0, names)

	stop := c.startPollLoop(jobID, len(projects))
	defer stop()

	sem := semaphore.NewWeighted(int64(c.config.MaxConcurrentProcesses))
	var wg sync.WaitGroup
	for i := range projects {
		i := i
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			if err := c.runOneWorker(ctx, jobID, i, names[i], urls[i]); err != nil {
				slog.Warn("worker failed to spawn", "job_id", jobID, "repo", names[i], "error", err)
			}
		}()
	}
	wg.Wait()

	result, err := c.buildGroupResult(jobID, groupURL, names, urls)
	if err != nil {
		return err
	}
	_ = c.config.Registry.SetResult(jobID, result, jobfs.Now())

	agg, err := c.config.Monitor.GetStatus(jobID)
	if err != nil {
		return fmt.Errorf("aggregate final status: %w", err)
	}
	// The master is still in_progress here, so the Monitor reports
	// "processing" once every repository is done; settle the final verdict
	// from the repository counts.
	if agg.Status == "processing" {
		switch {
		case agg.Summary.Failed == 0:
			agg.Status = string(jobfs.MasterCompleted)
		case agg.Summary.Failed >= agg.Summary.TotalRepositories:
			agg.Status = string(jobfs.MasterAllFailed)
		default:
			agg.Status = string(jobfs.MasterCompletedWithErrs)
		}
	}
	return c.config.Monitor.UpdateMaster(jobID, func(m *jobfs.MasterRecord) {
		m.Status = jobfs.MasterStatus(agg.Status)
		m.CompletedAt = jobfs.Now()
	})
}

// runOneWorker spawns the worker subprocess for one repository and
// supervises it to completion. A spawn failure is recorded as a synthesized
// repo failure rather than aborting the whole job (§4.E step 7).
func (c *Controller) runOneWorker(ctx context.Context, jobID string, repoIndex int, repoName, gitURL string) error {
	logDir := c.config.Layout.JobLogDir(jobID)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		_ = c.config.Monitor.WriteFailedRepo(jobID, repoIndex, fmt.Sprintf("failed to create log directory: %v", err), "")
		return err
	}

	args := []string{jobID, strconv.Itoa(repoIndex), repoName, gitURL}
	if c.config.Cache != nil {
		if cachedPath, ok := c.config.Cache.Get(gitURL); ok {
			args = append(args, cachedPath)
		}
	}

	cmd := exec.Command(c.config.WorkerBinary, args...)
	cmd.Env = append(os.Environ(),
		"SCAN_JOB_LOG_DIR="+logDir,
		"SCAN_JOBS_DIR="+c.config.Layout.BaseDir,
		"SCAN_LOGS_DIR="+c.config.Layout.LogDir,
	)
	if c.config.CategoriesPath != "" {
		cmd.Env = append(cmd.Env, "CONFIG_PATH="+c.config.CategoriesPath)
	}
	if c.config.Cache != nil {
		cmd.Env = append(cmd.Env, "SCAN_CACHE_KEEP=1")
	}

	if err := cmd.Start(); err != nil {
		_ = c.config.Monitor.WriteFailedRepo(jobID, repoIndex, fmt.Sprintf("failed to start worker: %v", err), "")
		return err
	}

	spawnedAt := time.Now()
	waitErr := c.config.Monitor.SupervisedWait(ctx, cmd, jobID, repoIndex, c.config.WorkerTimeout)
	c.config.Metrics.ObserveWorkerDuration(time.Since(spawnedAt).Seconds())

	if c.config.Cache != nil {
		if status, readErr := readRepoStatus(c.config.Layout, jobID, repoIndex); readErr == nil && status.LocalPath != "" {
			if _, hit := c.config.Cache.Get(gitURL); !hit {
				c.config.Cache.Put(gitURL, status.LocalPath)
			}
		}
	}

	return waitErr
}

func readRepoStatus(layout jobfs.Layout, jobID string, repoIndex int) (jobfs.RepositoryStatus, error) {
	var status jobfs.RepositoryStatus
	err := jobfs.ReadJSON(layout.RepoPath(jobID, repoIndex), &status)
	return status, err
}

// startPollLoop runs the §4.E progress-percentage poll loop in a background
// goroutine; calling the returned stop function ends it.
func (c *Controller) startPollLoop(jobID string, total int) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(c.config.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				agg, err := c.config.Monitor.GetStatus(jobID)
				if err != nil {
					continue
				}
				pct := estimatePercentage(agg, total)
				_ = c.config.Registry.UpdateStatus(jobID, pct, nil)
			}
		}
	}()
	return func() { close(done) }
}

// estimatePercentage mirrors the source's two formulas: a single repository
// reports its own scan percentage scaled into the remaining 80%, a group
// reports coarse completion across all repositories within the remaining
// 85% (the first 10-20% covers enumeration/spawn overhead).
func estimatePercentage(agg monitor.Aggregate, total int) float64 {
	if total <= 1 {
		if len(agg.CurrentRepositories) == 1 && agg.CurrentRepositories[0].Progress != nil {
			return 20 + agg.CurrentRepositories[0].Progress.Percentage*0.8
		}
		if agg.Summary.Completed > 0 {
			return 100
		}
		return 10
	}
	done := agg.Summary.Completed + agg.Summary.Failed
	return 10 + 85*float64(done)/float64(total)
}

func repoNameFromURL(gitURL string) string {
	trimmed := strings.TrimSuffix(strings.TrimSuffix(gitURL, "/"), ".git")
	idx := strings.LastIndex(trimmed, "/")
	if idx == -1 || idx == len(trimmed)-1 {
		return trimmed
	}
	return trimmed[idx+1:]
}

// providerAndGroup maps a group URL to a GroupEnumerator provider name and
// the bare group/organization name from its path.
func providerAndGroup(groupURL string) (provider, group string, err error) {
	parsed, err := url.Parse(groupURL)
	if err != nil {
		return "", "", fmt.Errorf("malformed group url: %w", err)
	}

	host := strings.ToLower(parsed.Hostname())
	switch {
	case host == "github.com":
		provider = "github"
	case host == "gitlab.com":
		provider = "gitlab"
	default:
		return "", "", fmt.Errorf("unsupported group host: %s", host)
	}

	group = strings.Trim(parsed.Path, "/")
	if group == "" {
		return "", "", fmt.Errorf("group url is missing a group/organization segment")
	}
	return provider, group, nil
}

func projectWebURL(p repository.ProjectRef) string {
	if p.WebURL != "" {
		return p.WebURL + ".git"
	}
	return fmt.Sprintf("https://github.com/%s/%s.git", p.Owner, p.Repo)
}

// Status delegates to the Monitor (§4.E Status).
func (c *Controller) Status(jobID string) (monitor.Aggregate, error) {
	return c.config.Monitor.GetStatus(jobID)
}

// Result returns the Registry's stored result for a completed job, or
// ErrNotReady/a wrapped failure error otherwise (§4.E Result).
func (c *Controller) Result(jobID string) (any, error) {
	job, ok := c.config.Registry.Get(jobID)
	if !ok {
		return nil, fmt.Errorf("controller: unknown job %q", jobID)
	}
	switch job.State {
	case registry.StateCompleted:
		return job.Result, nil
	case registry.StateFailed:
		return nil, fmt.Errorf("job failed: %s", job.ErrorMessage)
	default:
		return nil, ErrNotReady
	}
}

// Get returns a copy of the Registry's job record, for building Submit's
// response (created_at) without re-deriving it.
func (c *Controller) Get(jobID string) (registry.Job, bool) {
	return c.config.Registry.Get(jobID)
}

// ListJobs delegates to the Registry (§4.E ListJobs).
func (c *Controller) ListJobs(page, perPage int, status registry.State) []registry.Job {
	return c.config.Registry.List(page, perPage, status)
}

func (c *Controller) buildSingleResult(jobID, gitURL, repoName string) (*ScanResultResponse, error) {
	status, err := readRepoStatus(c.config.Layout, jobID, 0)
	if err != nil {
		return nil, fmt.Errorf("read repo status for result: %w", err)
	}
	if len(status.Result) == 0 {
		return nil, fmt.Errorf("repo status has no embedded scan result")
	}

	var result scanner.Result
	if err := json.Unmarshal(status.Result, &result); err != nil {
		return nil, fmt.Errorf("unmarshal scan result: %w", err)
	}

	return &ScanResultResponse{
		GitURL:              gitURL,
		ScanType:             "repository",
		Dependencies:         result.CategorizedDeps,
		InfrastructureUsage:  result.CategorizedInfra,
	}, nil
}

func (c *Controller) buildGroupResult(jobID, groupURL string, names, urls []string) (*ScanResultResponse, error) {
	statuses, err := jobfs.ReadRepoStatuses(c.config.Layout, jobID)
	if err != nil {
		return nil, fmt.Errorf("read repo statuses for group result: %w", err)
	}

	resp := &ScanResultResponse{
		GitURL:       groupURL,
		ScanType:     "group",
		TotalProjects: len(names),
	}

	// Categories are combined with a simple any-in-group OR. The original's
	// _collect_group_category_flags additionally preserves first-seen
	// category order in its Python dict; encoding/json always serializes Go
	// map keys in sorted order, so that ordering has no observable analog in
	// this implementation's JSON response (see DESIGN.md).
	var depFlags, infraFlags map[string]bool

	for _, status := range statuses {
		idx := status.RepoIndex
		var projectURL string
		if idx >= 0 && idx < len(urls) {
			projectURL = urls[idx]
		}
		name := status.RepoName
		if name == "" && idx >= 0 && idx < len(names) {
			name = names[idx]
		}

		if status.Status != jobfs.PhaseCompleted || len(status.Result) == 0 {
			errMsg := status.ErrorMessage
			if errMsg == "" {
				errMsg = "scan did not complete"
			}
			resp.FailedScans++
			resp.FailedProjects = append(resp.FailedProjects, FailedProject{
				ProjectName: name,
				GitURL:      projectURL,
				Error:       errMsg,
			})
			resp.ProjectResults = append(resp.ProjectResults, ProjectScanResult{
				ProjectName: name,
				GitURL:      projectURL,
				Status:      "failed",
				Error:       errMsg,
			})
			continue
		}

		var result scanner.Result
		if err := json.Unmarshal(status.Result, &result); err != nil {
			resp.FailedScans++
			resp.FailedProjects = append(resp.FailedProjects, FailedProject{ProjectName: name, GitURL: projectURL, Error: err.Error()})
			continue
		}

		resp.SuccessfulScans++
		resp.ProjectResults = append(resp.ProjectResults, ProjectScanResult{
			ProjectName:         name,
			GitURL:              projectURL,
			Dependencies:        result.CategorizedDeps,
			InfrastructureUsage: result.CategorizedInfra,
			Status:              "success",
		})

		if depFlags == nil {
			depFlags = make(map[string]bool)
		}
		if infraFlags == nil {
			infraFlags = make(map[string]bool)
		}
		for k, v := range result.CategorizedDeps {
			depFlags[k] = depFlags[k] || v
		}
		for k, v := range result.CategorizedInfra {
			infraFlags[k] = infraFlags[k] || v
		}
	}

	sort.Slice(resp.ProjectResults, func(i, j int) bool { return resp.ProjectResults[i].ProjectName < resp.ProjectResults[j].ProjectName })
	sort.Slice(resp.FailedProjects, func(i, j int) bool { return resp.FailedProjects[i].ProjectName < resp.FailedProjects[j].ProjectName })

	if resp.SuccessfulScans == 0 {
		// _load_default_categories: nothing succeeded, fall back to the
		// full configured category list rather than reporting empty maps.
		depFlags = make(map[string]bool)
		infraFlags = make(map[string]bool)
		if c.config.Categorizer != nil {
			for _, name := range c.config.Categorizer.Categories() {
				depFlags[name] = false
				infraFlags[name] = false
			}
		}
	}

	resp.Dependencies = depFlags
	resp.InfrastructureUsage = infraFlags
	return resp, nil
}
