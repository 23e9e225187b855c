package runner

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ahrdadan/ytflow/internal/browser"
	"github.com/ahrdadan/ytflow/internal/scenario"
)

// Status is the state of a run or of one scenario in it.
type Status string

const (
	StatusQueued   Status = "queued"
	StatusRunning  Status = "running"
	StatusRetrying Status = "retrying"
	StatusPassed   Status = "passed"
	StatusFailed   Status = "failed"
	StatusFlaky    Status = "flaky"
	StatusSkipped  Status = "skipped"
)

// Terminal reports whether no further transitions follow.
func (s Status) Terminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusFlaky, StatusSkipped:
		return true
	}
	return false
}

// ErrorKind classifies why an attempt failed.
type ErrorKind string

const (
	ErrorKindTimeout   ErrorKind = "timeout"
	ErrorKindAssertion ErrorKind = "assertion"
	ErrorKindError     ErrorKind = "error"
)

// Attempt is one execution of a scenario in its own session.
type Attempt struct {
	Number    int                `json:"attempt"`
	Status    Status             `json:"status"`
	ErrorKind ErrorKind          `json:"error_kind,omitempty"`
	Error     string             `json:"error,omitempty"`
	Duration  time.Duration      `json:"duration_ns"`
	StartedAt int64              `json:"started_at"`
	Logs      []string           `json:"logs,omitempty"`
	Artifacts []browser.Artifact `json:"artifacts,omitempty"`
}

// Result is the outcome of one scenario across all of its attempts.
type Result struct {
	ScenarioID string    `json:"scenario_id"`
	File       string    `json:"file"`
	Title      string    `json:"title"`
	Tags       []string  `json:"tags,omitempty"`
	Status     Status    `json:"status"`
	Attempts   []Attempt `json:"attempts"`
}

// Duration sums the time spent in every attempt.
func (r Result) Duration() time.Duration {
	var d time.Duration
	for _, a := range r.Attempts {
		d += a.Duration
	}
	return d
}

// Run is one invocation of the runner over a set of scenarios.
type Run struct {
	ID          string   `json:"run_id"`
	Status      Status   `json:"status"`
	Engine      string   `json:"engine"`
	BaseURL     string   `json:"base_url"`
	Workers     int      `json:"workers"`
	Results     []Result `json:"results"`
	CreatedAt   int64    `json:"created_at"`
	UpdatedAt   int64    `json:"updated_at"`
	StartedAt   int64    `json:"started_at,omitempty"`
	CompletedAt int64    `json:"completed_at,omitempty"`

	mu    sync.RWMutex
	index map[string]int
}

// NewRun creates a queued run with one queued result per scenario.
func NewRun(scenarios []scenario.Scenario) *Run {
	now := time.Now().Unix()

	r := &Run{
		ID:        generateRunID(),
		Status:    StatusQueued,
		Results:   make([]Result, 0, len(scenarios)),
		CreatedAt: now,
		UpdatedAt: now,
		index:     make(map[string]int, len(scenarios)),
	}
	for _, s := range scenarios {
		r.index[s.ID()] = len(r.Results)
		r.Results = append(r.Results, Result{
			ScenarioID: s.ID(),
			File:       s.File,
			Title:      s.Title,
			Tags:       s.Tags,
			Status:     StatusQueued,
		})
	}
	return r
}

// SetStatus updates the run status
func (r *Run) SetStatus(status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Status = status
	r.UpdatedAt = time.Now().Unix()

	if status == StatusRunning && r.StartedAt == 0 {
		r.StartedAt = r.UpdatedAt
	}
	if status.Terminal() {
		r.CompletedAt = r.UpdatedAt
	}
}

// SetScenarioStatus updates the status of one scenario.
func (r *Run) SetScenarioStatus(scenarioID string, status Status) {
	r.update(scenarioID, func(res *Result) {
		res.Status = status
	})
}

// AddAttempt appends a finished attempt to a scenario.
func (r *Run) AddAttempt(scenarioID string, attempt Attempt) {
	r.update(scenarioID, func(res *Result) {
		res.Attempts = append(res.Attempts, attempt)
	})
}

func (r *Run) update(scenarioID string, fn func(res *Result)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[scenarioID]
	if !ok {
		return
	}
	fn(&r.Results[i])
	r.UpdatedAt = time.Now().Unix()
}

// Finish derives the run status from its results: failed if any scenario failed or never ran.
func (r *Run) Finish() Status {
	status := StatusPassed
	r.mu.RLock()
	for _, res := range r.Results {
		if res.Status == StatusFailed || res.Status == StatusSkipped {
			status = StatusFailed
			break
		}
	}
	r.mu.RUnlock()

	r.SetStatus(status)
	return status
}

// Snapshot returns a copy that is safe to read while the run is in progress.
func (r *Run) Snapshot() *Run {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cp := &Run{
		ID:          r.ID,
		Status:      r.Status,
		Engine:      r.Engine,
		BaseURL:     r.BaseURL,
		Workers:     r.Workers,
		Results:     make([]Result, len(r.Results)),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
	}
	for i, res := range r.Results {
		res.Attempts = append([]Attempt(nil), res.Attempts...)
		cp.Results[i] = res
	}
	return cp
}

// Summary counts results by status.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Flaky   int `json:"flaky"`
	Skipped int `json:"skipped"`
}

func (r *Run) Summary() Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Summary{Total: len(r.Results)}
	for _, res := range r.Results {
		switch res.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusFlaky:
			s.Flaky++
		case StatusSkipped:
			s.Skipped++
		}
	}
	return s
}

func generateRunID() string {
	return "run_" + uuid.New().String()[:8]
}
