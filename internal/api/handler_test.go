package api_test

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrdadan/ytflow/internal/api"
	"github.com/ahrdadan/ytflow/internal/runner"
	"github.com/ahrdadan/ytflow/internal/scenario"
)

type stubEngine struct{}

func (stubEngine) Name() string        { return "chromium" }
func (stubEngine) IsRunning() bool     { return true }
func (stubEngine) GetEndpoint() string { return "ws://127.0.0.1:9222/devtools/browser/abc" }

var playback = scenario.Scenario{File: "tests/youtube", Title: "search and control playback"}

func setupTestApp(t *testing.T) (*fiber.App, *runner.Store, *runner.EventHub) {
	t.Helper()

	store := runner.NewStore()
	events := runner.NewEventHub()

	app := fiber.New(fiber.Config{
		ErrorHandler: api.ErrorHandler,
	})
	api.SetupRoutes(app, stubEngine{}, store, events)

	return app, store, events
}

func decode(t *testing.T, body io.Reader) api.Response {
	t.Helper()
	var resp api.Response
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	return resp
}

func TestHealthCheck(t *testing.T) {
	app, _, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	body := decode(t, resp.Body)
	assert.True(t, body.Success)

	data := body.Data.(map[string]interface{})
	assert.Equal(t, "ok", data["status"])
	assert.Equal(t, "chromium", data["browser"].(map[string]interface{})["engine"])
}

func TestGetRun(t *testing.T) {
	app, store, _ := setupTestApp(t)

	run := runner.NewRun([]scenario.Scenario{playback})
	run.SetStatus(runner.StatusRunning)
	store.Save(run)

	resp, err := app.Test(httptest.NewRequest("GET", "/runs/"+run.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	body := decode(t, resp.Body)
	data := body.Data.(map[string]interface{})
	got := data["run"].(map[string]interface{})
	assert.Equal(t, run.ID, got["run_id"])
	assert.Equal(t, "running", got["status"])
	assert.Len(t, got["results"], 1)
	assert.Equal(t, "/ws?run_id="+run.ID, data["links"].(map[string]interface{})["ws_url"])
}

func TestGetRunNotFound(t *testing.T) {
	app, _, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/runs/run_missing", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)

	body := decode(t, resp.Body)
	assert.False(t, body.Success)
	assert.Equal(t, "Run not found", body.Error)
}

func TestListRuns(t *testing.T) {
	app, store, _ := setupTestApp(t)
	store.Save(runner.NewRun([]scenario.Scenario{playback}))
	store.Save(runner.NewRun(nil))

	resp, err := app.Test(httptest.NewRequest("GET", "/runs", nil))
	require.NoError(t, err)

	body := decode(t, resp.Body)
	assert.Len(t, body.Data, 2)
}

func TestStreamEventsFinishedRun(t *testing.T) {
	app, store, _ := setupTestApp(t)

	run := runner.NewRun([]scenario.Scenario{playback})
	run.SetScenarioStatus(playback.ID(), runner.StatusPassed)
	run.Finish()
	store.Save(run)

	resp, err := app.Test(httptest.NewRequest("GET", "/runs/"+run.ID+"/events", nil))
	require.NoError(t, err)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, "data: "))

	var event runner.Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event))
	assert.Equal(t, runner.StatusPassed, event.Status)
	assert.True(t, event.Done)
}

func TestStreamEventsLiveRun(t *testing.T) {
	app, store, events := setupTestApp(t)

	run := runner.NewRun([]scenario.Scenario{playback})
	run.SetStatus(runner.StatusRunning)
	store.Save(run)

	// Finish the run and emit Done exactly once while the request is being served. Whether
	// the handler subscribes before or after the emit, the stream must end.
	go func() {
		time.Sleep(20 * time.Millisecond)
		run.SetScenarioStatus(playback.ID(), runner.StatusPassed)
		status := run.Finish()
		events.Emit(runner.Event{RunID: run.ID, Status: status, Done: true})
	}()

	resp, err := app.Test(httptest.NewRequest("GET", "/runs/"+run.ID+"/events", nil), 5000)
	require.NoError(t, err)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"done":true`)
	assert.Contains(t, string(data), `"status":"passed"`)
}

func TestStreamEventsDoneAfterSubscribe(t *testing.T) {
	app, store, events := setupTestApp(t)

	run := runner.NewRun([]scenario.Scenario{playback})
	run.SetStatus(runner.StatusRunning)
	store.Save(run)

	// Fill the subscriber's buffer before Done so the last event cannot be dropped as overflow.
	go func() {
		time.Sleep(100 * time.Millisecond)
		for i := 0; i < 64; i++ {
			events.Emit(runner.Event{RunID: run.ID, ScenarioID: playback.ID(), Status: runner.StatusRunning})
		}
		run.SetScenarioStatus(playback.ID(), runner.StatusPassed)
		status := run.Finish()
		events.Emit(runner.Event{RunID: run.ID, Status: status, Done: true})
	}()

	resp, err := app.Test(httptest.NewRequest("GET", "/runs/"+run.ID+"/events", nil), 5000)
	require.NoError(t, err)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), `"done":true`))
}

func TestStreamEventsNotFound(t *testing.T) {
	app, _, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/runs/run_missing/events", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	app, _, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/ws?run_id=run_1", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}
