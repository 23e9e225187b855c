package browser

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RecordedStep is one action performed through a session.
type RecordedStep struct {
	Type      string                 `json:"type"`
	Params    map[string]interface{} `json:"params,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Duration  time.Duration          `json:"duration_ns"`
	Timestamp time.Time              `json:"timestamp"`
}

// Recorder keeps the action log written as the trace artifact of engines
// without a native tracing facility.
type Recorder struct {
	steps []RecordedStep
}

func NewRecorder() *Recorder {
	return &Recorder{
		steps: make([]RecordedStep, 0),
	}
}

// Record appends a step. It is a no-op on a nil Recorder so callers need not check.
func (r *Recorder) Record(stepType string, params map[string]interface{}, started time.Time, err error) {
	if r == nil {
		return
	}

	step := RecordedStep{
		Type:      stepType,
		Params:    params,
		Duration:  time.Since(started),
		Timestamp: started,
	}
	if err != nil {
		step.Error = err.Error()
	}
	r.steps = append(r.steps, step)
}

// Steps returns the recorded steps in order.
func (r *Recorder) Steps() []RecordedStep {
	if r == nil {
		return nil
	}
	return r.steps
}

// SaveToFile writes the recorded steps as indented JSON.
func (r *Recorder) SaveToFile(filename string) error {
	data, err := json.MarshalIndent(r.Steps(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("failed to create trace directory: %w", err)
	}
	return os.WriteFile(filename, data, 0644)
}
