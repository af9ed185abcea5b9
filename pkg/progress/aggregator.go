// Package progress implements the per-Worker Progress Aggregator: it merges
// heterogeneous scanner events, each with its own stage_total/stage_index,
// into one monotonic progress record with a coherent percentage.
package progress

import "github.com/greg-hellings/devdashboard/pkg/scanner"

type stagePosition struct {
	total int
	index int
}

// Snapshot is the read-only view an Aggregator produces after each event
// (§3 ProgressSnapshot).
type Snapshot struct {
	Stage           string
	ProcessedFiles  int
	ObservedTotal   int
	Percentage      float64
	CurrentFileName string
	Message         string
	PerStage        map[string]StageProgress
}

// StageProgress is the completed/total breakdown for one stage.
type StageProgress struct {
	Completed int
	Total     int
}

// dedupKey is the (stage, path) pair the aggregator uses to avoid
// double-counting a repeated event; an absent path uses a sentinel.
type dedupKey struct {
	stage string
	path  string
}

const noPathSentinel = "\x00no-path"

// Aggregator accumulates scanner.ProgressEvent values into a single
// monotonic progress record (§4.B). It is not safe for concurrent use; the
// Worker drives it from a single goroutine per repository.
type Aggregator struct {
	processed    int
	stageTotals  map[string]int
	stagePos     map[string]int
	observed     int
	overallHint  int
	seen         map[dedupKey]bool
	currentStage string
	currentFile  string
	message      string
}

// New creates an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{
		stageTotals: make(map[string]int),
		stagePos:    make(map[string]int),
		seen:        make(map[dedupKey]bool),
	}
}

// Update applies one event and returns the resulting snapshot (§4.B update
// rule, steps 1-6).
func (a *Aggregator) Update(ev scanner.ProgressEvent) Snapshot {
	path := ev.Path
	key := dedupKey{stage: ev.Stage, path: path}
	if path == "" {
		key.path = noPathSentinel
	}

	if ev.Stage != "" {
		a.currentStage = ev.Stage
	}
	if path != "" {
		a.currentFile = path
	}
	if ev.Message != "" {
		a.message = ev.Message
	}

	if ev.Stage != "" {
		if ev.StageTotal > a.stageTotals[ev.Stage] {
			a.stageTotals[ev.Stage] = ev.StageTotal
		}
		if ev.StageIndex > a.stagePos[ev.Stage] {
			a.stagePos[ev.Stage] = ev.StageIndex
		}
	}

	if ev.OverallTotal > a.overallHint {
		a.overallHint = ev.OverallTotal
	}

	if !a.seen[key] {
		a.seen[key] = true
		a.processed++
	}

	a.recomputeObserved()

	return a.snapshot()
}

// recomputeObserved applies §4.B step 5's precedence rule.
func (a *Aggregator) recomputeObserved() {
	switch {
	case a.overallHint > 0:
		a.observed = maxInt(a.overallHint, maxInt(a.processed, 1))
	case a.sumStageTotals() > 0:
		a.observed = maxInt(a.sumStageTotals(), maxInt(a.processed, 1))
	default:
		a.observed = maxInt(a.observed, maxInt(a.processed, 1))
	}
}

func (a *Aggregator) sumStageTotals() int {
	sum := 0
	for _, t := range a.stageTotals {
		sum += t
	}
	return sum
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (a *Aggregator) percentage() float64 {
	if a.observed <= 0 {
		return 0
	}
	pct := float64(a.processed) / float64(a.observed) * 100
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	return pct
}

func (a *Aggregator) snapshot() Snapshot {
	perStage := make(map[string]StageProgress, len(a.stageTotals))
	for stage, total := range a.stageTotals {
		perStage[stage] = StageProgress{Completed: a.stagePos[stage], Total: total}
	}

	return Snapshot{
		Stage:           a.currentStage,
		ProcessedFiles:  a.processed,
		ObservedTotal:   a.observed,
		Percentage:      a.percentage(),
		CurrentFileName: a.currentFile,
		Message:         a.message,
		PerStage:        perStage,
	}
}

// Finalize emits the synthetic completion event the spec requires: stage
// "finalizing", percentage 100, no current file (§4.B Finalize). It forces
// processed == observed so the derived percentage is exactly 100.
func (a *Aggregator) Finalize() Snapshot {
	a.currentStage = "finalizing"
	a.currentFile = ""
	a.message = ""

	target := maxInt(a.processed, maxInt(a.observed, 1))
	a.processed = target
	a.observed = target

	return a.snapshot()
}
