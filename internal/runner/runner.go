// Package runner executes scenarios against a browser engine: one isolated session per
// attempt, a pool of workers, retries and failure artifacts.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/ahrdadan/ytflow/internal/browser"
	"github.com/ahrdadan/ytflow/internal/config"
	"github.com/ahrdadan/ytflow/internal/scenario"
)

// ErrForbidOnly is returned when a scenario is marked Only and the configuration forbids it.
var ErrForbidOnly = errors.New("scenario marked only while forbidOnly is set")

// finishTimeout bounds saving artifacts and closing a session after its attempt.
const finishTimeout = 30 * time.Second

// Runner runs scenarios on one engine.
type Runner struct {
	engine browser.Engine
	cfg    *config.Config
	creds  config.Credentials
	store  *Store
	events *EventHub
	sinks  []Sink

	trace      browser.Policy
	video      browser.Policy
	screenshot browser.Policy
}

// Option configures a Runner.
type Option func(*Runner)

// WithStore shares a run store, e.g. with the status server.
func WithStore(store *Store) Option {
	return func(r *Runner) {
		r.store = store
	}
}

// WithEventHub shares an event hub, e.g. with the status server.
func WithEventHub(events *EventHub) Option {
	return func(r *Runner) {
		r.events = events
	}
}

// WithSink forwards every event to sink.
func WithSink(sink Sink) Option {
	return func(r *Runner) {
		r.sinks = append(r.sinks, sink)
	}
}

// New creates a runner. The engine is started lazily by Execute.
func New(engine browser.Engine, cfg *config.Config, creds config.Credentials, opts ...Option) (*Runner, error) {
	trace, err := browser.ParseTracePolicy(cfg.Trace)
	if err != nil {
		return nil, err
	}
	video, err := browser.ParseTracePolicy(cfg.Video)
	if err != nil {
		return nil, err
	}
	screenshot, err := browser.ParseScreenshotPolicy(cfg.Screenshot)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		engine:     engine,
		cfg:        cfg,
		creds:      creds,
		trace:      trace,
		video:      video,
		screenshot: screenshot,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.store == nil {
		r.store = NewStore()
	}
	if r.events == nil {
		r.events = NewEventHub()
	}
	return r, nil
}

// Store returns the run store
func (r *Runner) Store() *Store {
	return r.store
}

// Events returns the event hub
func (r *Runner) Events() *EventHub {
	return r.events
}

// Prepare applies the Only rules and registers a queued run.
func (r *Runner) Prepare(scenarios []scenario.Scenario) (*Run, []scenario.Scenario, error) {
	if scenario.HasOnly(scenarios) {
		if r.cfg.ForbidOnly {
			var marked []string
			for _, s := range scenarios {
				if s.Only {
					marked = append(marked, s.ID())
				}
			}
			return nil, nil, fmt.Errorf("%w: %s", ErrForbidOnly, strings.Join(marked, ", "))
		}
		scenarios = scenario.FilterOnly(scenarios)
	}

	run := NewRun(scenarios)
	run.Engine = r.engine.Name()
	run.BaseURL = r.cfg.BaseURL
	run.Workers = r.workers(len(scenarios))
	r.store.Save(run)

	for _, s := range scenarios {
		r.emit(Event{RunID: run.ID, ScenarioID: s.ID(), Status: StatusQueued})
	}
	return run, scenarios, nil
}

// Run prepares and executes scenarios, returning the finished run.
func (r *Runner) Run(ctx context.Context, scenarios []scenario.Scenario) (*Run, error) {
	run, scenarios, err := r.Prepare(scenarios)
	if err != nil {
		return nil, err
	}
	if err := r.Execute(ctx, run, scenarios); err != nil {
		return run, err
	}
	return run, nil
}

// Execute runs the prepared scenarios on a pool of workers. Scenarios of one file share a
// worker and run in order unless FullyParallel is set.
func (r *Runner) Execute(ctx context.Context, run *Run, scenarios []scenario.Scenario) error {
	if !r.engine.IsRunning() {
		if err := r.engine.Start(); err != nil {
			for _, s := range scenarios {
				run.SetScenarioStatus(s.ID(), StatusSkipped)
			}
			run.SetStatus(StatusFailed)
			r.emit(Event{RunID: run.ID, Status: StatusFailed, Message: err.Error(), Done: true})
			return fmt.Errorf("failed to start %s engine: %w", r.engine.Name(), err)
		}
	}

	run.SetStatus(StatusRunning)
	r.emit(Event{RunID: run.ID, Status: StatusRunning, Message: fmt.Sprintf("%d scenarios on %d workers", len(scenarios), run.Workers)})

	units := r.group(scenarios)
	queue := make(chan []scenario.Scenario, len(units))
	for _, u := range units {
		queue <- u
	}
	close(queue)

	var wg sync.WaitGroup
	for i := 0; i < r.workers(len(units)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for unit := range queue {
				for _, s := range unit {
					r.runScenario(ctx, run, s)
				}
			}
		}()
	}
	wg.Wait()

	status := run.Finish()
	summary := run.Summary()
	r.emit(Event{
		RunID:   run.ID,
		Status:  status,
		Message: fmt.Sprintf("%d passed, %d failed, %d flaky, %d skipped", summary.Passed, summary.Failed, summary.Flaky, summary.Skipped),
		Done:    true,
	})
	return nil
}

func (r *Runner) workers(units int) int {
	n := r.cfg.Workers
	if n < 1 {
		n = 1
	}
	if units > 0 && n > units {
		n = units
	}
	return n
}

// group splits scenarios into units of work.
func (r *Runner) group(scenarios []scenario.Scenario) [][]scenario.Scenario {
	if r.cfg.FullyParallel {
		units := make([][]scenario.Scenario, len(scenarios))
		for i, s := range scenarios {
			units[i] = []scenario.Scenario{s}
		}
		return units
	}

	var units [][]scenario.Scenario
	byFile := make(map[string]int)
	for _, s := range scenarios {
		i, ok := byFile[s.File]
		if !ok {
			i = len(units)
			byFile[s.File] = i
			units = append(units, nil)
		}
		units[i] = append(units[i], s)
	}
	return units
}

func (r *Runner) runScenario(ctx context.Context, run *Run, s scenario.Scenario) {
	id := s.ID()
	if ctx.Err() != nil {
		run.SetScenarioStatus(id, StatusSkipped)
		r.emit(Event{RunID: run.ID, ScenarioID: id, Status: StatusSkipped, Message: "run canceled"})
		return
	}

	maxAttempts := 1 + r.cfg.Retries
	for attempt := 0; attempt < maxAttempts; attempt++ {
		status := StatusRunning
		if attempt > 0 {
			status = StatusRetrying
		}
		run.SetScenarioStatus(id, status)
		r.emit(Event{RunID: run.ID, ScenarioID: id, Attempt: attempt, Status: status})

		result := r.runAttempt(ctx, run, s, attempt)
		run.AddAttempt(id, result)

		if result.Status == StatusPassed {
			final := StatusPassed
			if attempt > 0 {
				final = StatusFlaky
			}
			run.SetScenarioStatus(id, final)
			r.emit(Event{RunID: run.ID, ScenarioID: id, Attempt: attempt, Status: final})
			return
		}

		log.Printf("Warning: %s attempt %d/%d failed: %s", id, attempt+1, maxAttempts, result.Error)
		if ctx.Err() != nil {
			break
		}
	}

	run.SetScenarioStatus(id, StatusFailed)
	r.emit(Event{RunID: run.ID, ScenarioID: id, Attempt: maxAttempts - 1, Status: StatusFailed})
}

func (r *Runner) runAttempt(ctx context.Context, run *Run, s scenario.Scenario, attempt int) Attempt {
	started := time.Now()
	result := Attempt{Number: attempt, StartedAt: started.Unix()}

	dir := filepath.Join(r.cfg.OutputDir, "artifacts", run.ID, fmt.Sprintf("%s-%d", slug(s.ID()), attempt))

	session, err := r.engine.NewSession(ctx, browser.SessionOptions{
		BaseURL:        r.cfg.BaseURL,
		DefaultTimeout: r.cfg.Timeout,
		Trace:          r.trace.ShouldRecord(attempt),
		Video:          r.video.ShouldRecord(attempt),
		ArtifactDir:    dir,
	})
	if err != nil {
		result.Status = StatusFailed
		result.ErrorKind = ErrorKindError
		result.Error = fmt.Sprintf("failed to create session: %v", err)
		result.Duration = time.Since(started)
		return result
	}

	attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	t := &scenario.T{
		Session:     session,
		Config:      r.cfg,
		Credentials: r.creds,
		Attempt:     attempt,
	}
	err = runScenarioFunc(attemptCtx, s, t)
	cancel()

	failed := err != nil
	if failed {
		result.Status = StatusFailed
		result.ErrorKind = classify(err)
		result.Error = err.Error()
	} else {
		result.Status = StatusPassed
	}
	result.Logs = t.Logs()

	// The attempt context may already be expired; artifacts get their own deadline.
	finishCtx, finishCancel := context.WithTimeout(context.Background(), finishTimeout)
	defer finishCancel()

	if r.screenshot.ShouldRecord(attempt) && r.screenshot.ShouldKeep(attempt, failed) {
		if artifact, err := saveScreenshot(finishCtx, session, dir); err != nil {
			log.Printf("Warning: failed to save screenshot for %s: %v", s.ID(), err)
		} else {
			result.Artifacts = append(result.Artifacts, artifact)
		}
	}

	keep := r.trace.ShouldKeep(attempt, failed) || r.video.ShouldKeep(attempt, failed)
	artifacts, err := session.Finish(finishCtx, keep)
	if err != nil {
		log.Printf("Warning: failed to close session for %s: %v", s.ID(), err)
	}
	result.Artifacts = append(result.Artifacts, artifacts...)
	result.Duration = time.Since(started)

	return result
}

// runScenarioFunc turns a panic in a scenario into a failed attempt.
func runScenarioFunc(ctx context.Context, s scenario.Scenario, t *scenario.T) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("scenario panicked: %v", p)
		}
	}()
	if s.Run == nil {
		return fmt.Errorf("scenario %q has no body", s.Title)
	}
	return s.Run(ctx, t)
}

func classify(err error) ErrorKind {
	switch {
	case scenario.IsAssertion(err):
		return ErrorKindAssertion
	case errors.Is(err, browser.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrorKindTimeout
	default:
		return ErrorKindError
	}
}

func saveScreenshot(ctx context.Context, session browser.Session, dir string) (browser.Artifact, error) {
	data, err := session.Screenshot(ctx)
	if err != nil {
		return browser.Artifact{}, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return browser.Artifact{}, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	path := filepath.Join(dir, "screenshot.png")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return browser.Artifact{}, fmt.Errorf("failed to write screenshot: %w", err)
	}
	return browser.Artifact{Kind: browser.ArtifactScreenshot, Path: path}, nil
}

var slugPattern = regexp.MustCompile(`[^a-zA-Z0-9]+`)

func slug(s string) string {
	return strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

func (r *Runner) emit(event Event) {
	if event.Time == 0 {
		event.Time = time.Now().UnixMilli()
	}
	r.events.Emit(event)

	for _, sink := range r.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := sink.Publish(ctx, event); err != nil {
			log.Printf("Warning: failed to publish %s event for %s: %v", event.Status, event.RunID, err)
		}
		cancel()
	}
}
