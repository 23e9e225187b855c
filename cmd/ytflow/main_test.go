package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrdadan/ytflow/internal/runner"
	"github.com/ahrdadan/ytflow/internal/scenario"
)

func finishedRun() *runner.Run {
	s := scenario.Scenario{File: "tests/youtube", Title: "search and control playback"}
	run := runner.NewRun([]scenario.Scenario{s})
	run.SetScenarioStatus(s.ID(), runner.StatusPassed)
	run.Finish()
	return run
}

func TestWriteReports(t *testing.T) {
	dir := t.TempDir()

	assert.Equal(t, 0, writeReports([]string{"json", "html"}, dir, finishedRun()))
	assert.FileExists(t, filepath.Join(dir, "report.json"))
	assert.FileExists(t, filepath.Join(dir, "index.html"))
}

func TestWriteReportsFailure(t *testing.T) {
	// A regular file where the output directory should be makes every file reporter fail.
	blocked := filepath.Join(t.TempDir(), "report")
	require.NoError(t, os.WriteFile(blocked, []byte("x"), 0644))

	assert.Equal(t, 1, writeReports([]string{"json"}, blocked, finishedRun()))
	assert.Equal(t, 1, writeReports([]string{"junit"}, t.TempDir(), finishedRun()))
}
