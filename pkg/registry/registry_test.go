package registry

import "testing"

func TestCreateStartsPending(t *testing.T) {
	r := New()
	job := r.Create("job-1", "https://github.com/owner/repo.git", "2026-01-01T00:00:00Z")
	if job.State != StatePending {
		t.Fatalf("expected pending, got %q", job.State)
	}
}

func TestUpdateStatusTransitionsToRunning(t *testing.T) {
	r := New()
	r.Create("job-1", "url", "ts")

	if err := r.UpdateStatus("job-1", 42.5, []string{"repo-a"}); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	job, ok := r.Get("job-1")
	if !ok {
		t.Fatalf("expected job to exist")
	}
	if job.State != StateRunning || job.Percentage != 42.5 {
		t.Fatalf("unexpected job: %+v", job)
	}
	if len(job.RepositoryNames) != 1 || job.RepositoryNames[0] != "repo-a" {
		t.Fatalf("unexpected repo names: %+v", job.RepositoryNames)
	}
}

func TestUpdateStatusOnUnknownJobErrors(t *testing.T) {
	r := New()
	if err := r.UpdateStatus("missing", 1, nil); err == nil {
		t.Fatalf("expected error for unknown job")
	}
}

func TestUpdateStatusIgnoredAfterTerminal(t *testing.T) {
	r := New()
	r.Create("job-1", "url", "ts")
	r.SetResult("job-1", "done", "completed-ts")

	r.UpdateStatus("job-1", 5, nil)

	job, _ := r.Get("job-1")
	if job.State != StateCompleted {
		t.Fatalf("expected terminal state preserved, got %q", job.State)
	}
}

func TestSetResultMarksCompleted(t *testing.T) {
	r := New()
	r.Create("job-1", "url", "ts")

	if err := r.SetResult("job-1", map[string]int{"x": 1}, "completed-ts"); err != nil {
		t.Fatalf("SetResult: %v", err)
	}

	job, _ := r.Get("job-1")
	if job.State != StateCompleted || job.Percentage != 100 {
		t.Fatalf("unexpected job: %+v", job)
	}
}

func TestSetErrorMarksFailed(t *testing.T) {
	r := New()
	r.Create("job-1", "url", "ts")

	if err := r.SetError("job-1", "boom", "completed-ts"); err != nil {
		t.Fatalf("SetError: %v", err)
	}

	job, _ := r.Get("job-1")
	if job.State != StateFailed || job.ErrorMessage != "boom" {
		t.Fatalf("unexpected job: %+v", job)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	r := New()
	r.Create("job-1", "url", "2026-01-01T00:00:00Z")
	r.Create("job-2", "url", "2026-01-01T00:00:01Z")
	r.SetResult("job-2", nil, "ts")

	completed := r.List(1, 10, StateCompleted)
	if len(completed) != 1 || completed[0].ID != "job-2" {
		t.Fatalf("unexpected filtered list: %+v", completed)
	}
}

func TestListPaginates(t *testing.T) {
	r := New()
	for i, id := range []string{"a", "b", "c"} {
		r.Create(id, "url", string(rune('0'+i)))
	}

	page1 := r.List(1, 2, "")
	page2 := r.List(2, 2, "")

	if len(page1) != 2 || len(page2) != 1 {
		t.Fatalf("unexpected pagination: page1=%d page2=%d", len(page1), len(page2))
	}
}

func TestCountActiveExcludesTerminalJobs(t *testing.T) {
	r := New()
	r.Create("job-1", "url", "ts")
	r.Create("job-2", "url", "ts")
	r.SetResult("job-2", nil, "ts")

	if got := r.CountActive(); got != 1 {
		t.Fatalf("expected 1 active job, got %d", got)
	}
}
