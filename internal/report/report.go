// Package report writes the outcome of a run.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/ahrdadan/ytflow/internal/runner"
)

// Reporter writes a finished run somewhere.
type Reporter interface {
	Name() string
	Report(run *runner.Run) error
}

// New builds the reporters named in names.
func New(names []string, outputDir string) ([]Reporter, error) {
	reporters := make([]Reporter, 0, len(names))
	for _, name := range names {
		switch name {
		case "list":
			reporters = append(reporters, &ListReporter{Out: os.Stdout})
		case "json":
			reporters = append(reporters, &JSONReporter{Path: filepath.Join(outputDir, "report.json")})
		case "html":
			reporters = append(reporters, &HTMLReporter{Path: filepath.Join(outputDir, "index.html")})
		default:
			return nil, fmt.Errorf("unknown reporter: %s", name)
		}
	}
	return reporters, nil
}

// WriteAll runs every reporter and logs the ones that fail.
func WriteAll(reporters []Reporter, run *runner.Run) error {
	var firstErr error
	for _, r := range reporters {
		if err := r.Report(run); err != nil {
			log.Printf("Warning: %s reporter failed: %v", r.Name(), err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// ListReporter prints one line per scenario.
type ListReporter struct {
	Out io.Writer
}

func (r *ListReporter) Name() string {
	return "list"
}

func (r *ListReporter) Report(run *runner.Run) error {
	logger := log.New(r.Out, "", 0)
	snap := run.Snapshot()

	for _, res := range snap.Results {
		logger.Printf("  %s %s (%s)", mark(res.Status), res.ScenarioID, res.Duration().Round(time.Millisecond))
		for _, a := range res.Attempts {
			if a.Error == "" {
				continue
			}
			logger.Printf("      attempt %d: [%s] %s", a.Number+1, a.ErrorKind, a.Error)
			for _, artifact := range a.Artifacts {
				logger.Printf("      %s: %s", artifact.Kind, artifact.Path)
			}
		}
	}

	s := run.Summary()
	logger.Printf("\n  %d passed, %d failed, %d flaky, %d skipped (%s)", s.Passed, s.Failed, s.Flaky, s.Skipped, snap.ID)
	return nil
}

func mark(status runner.Status) string {
	switch status {
	case runner.StatusPassed:
		return "ok  "
	case runner.StatusFlaky:
		return "flky"
	case runner.StatusSkipped:
		return "skip"
	default:
		return "FAIL"
	}
}

// Document is the JSON report layout.
type Document struct {
	Run     *runner.Run    `json:"run"`
	Summary runner.Summary `json:"summary"`
}

// JSONReporter writes the run as JSON.
type JSONReporter struct {
	Path string
}

func (r *JSONReporter) Name() string {
	return "json"
}

func (r *JSONReporter) Report(run *runner.Run) error {
	data, err := json.MarshalIndent(Document{Run: run.Snapshot(), Summary: run.Summary()}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	return writeFile(r.Path, data)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
