package api

import (
	"bufio"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/ahrdadan/ytflow/internal/runner"
)

// RunHandler serves run status and events
type RunHandler struct {
	store  *runner.Store
	events *runner.EventHub
}

// NewRunHandler creates a new run handler
func NewRunHandler(store *runner.Store, events *runner.EventHub) *RunHandler {
	return &RunHandler{
		store:  store,
		events: events,
	}
}

// RunLinks tells clients where to follow a run.
type RunLinks struct {
	StatusURL string `json:"status_url"`
	SSEURL    string `json:"sse_url"`
	WSURL     string `json:"ws_url"`
}

func linksFor(runID string) RunLinks {
	return RunLinks{
		StatusURL: fmt.Sprintf("/runs/%s", runID),
		SSEURL:    fmt.Sprintf("/runs/%s/events", runID),
		WSURL:     fmt.Sprintf("/ws?run_id=%s", runID),
	}
}

// ListRuns returns every known run
// GET /runs
func (h *RunHandler) ListRuns(c *fiber.Ctx) error {
	runs := h.store.List()

	items := make([]map[string]interface{}, 0, len(runs))
	for _, run := range runs {
		items = append(items, map[string]interface{}{
			"run_id":     run.ID,
			"status":     run.Status,
			"summary":    run.Summary(),
			"created_at": run.CreatedAt,
			"links":      linksFor(run.ID),
		})
	}

	return c.JSON(Response{
		Success: true,
		Data:    items,
	})
}

// GetRun returns the status of a run with its results
// GET /runs/:run_id
func (h *RunHandler) GetRun(c *fiber.Ctx) error {
	runID := c.Params("run_id")
	if runID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Run ID is required")
	}

	run, err := h.store.Get(runID)
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "Run not found")
	}

	return c.JSON(Response{
		Success: true,
		Data: map[string]interface{}{
			"run":     run,
			"summary": run.Summary(),
			"links":   linksFor(run.ID),
		},
	})
}

// currentEvent describes a run as it is now, sent before live events.
func currentEvent(run *runner.Run) runner.Event {
	return runner.Event{
		RunID:  run.ID,
		Status: run.Status,
		Time:   run.UpdatedAt * 1000,
		Done:   run.Status.Terminal(),
	}
}

// StreamEvents streams run events via SSE
// GET /runs/:run_id/events
func (h *RunHandler) StreamEvents(c *fiber.Ctx) error {
	runID := c.Params("run_id")
	if runID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Run ID is required")
	}

	// Subscribe before taking the snapshot: the runner marks a run terminal before it emits
	// the Done event, so either the snapshot is terminal or the subscription sees Done.
	events := h.events.Subscribe(runID)

	run, err := h.store.Get(runID)
	if err != nil {
		h.events.Unsubscribe(runID, events)
		return fiber.NewError(fiber.StatusNotFound, "Run not found")
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer h.events.Unsubscribe(runID, events)

		if err := writeSSE(w, currentEvent(run)); err != nil || run.Status.Terminal() {
			return
		}

		for event := range events {
			if err := writeSSE(w, event); err != nil {
				return
			}
			if event.Done {
				return
			}
		}
	})

	return nil
}

func writeSSE(w *bufio.Writer, event runner.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return w.Flush()
}

// HandleWebSocket handles WebSocket connections for run events
// GET /ws?run_id=
func (h *RunHandler) HandleWebSocket(c *websocket.Conn) {
	defer c.Close()

	runID := c.Query("run_id")
	if runID == "" {
		_ = c.WriteJSON(Response{Success: false, Error: "run_id is required"})
		return
	}

	events := h.events.Subscribe(runID)
	defer h.events.Unsubscribe(runID, events)

	run, err := h.store.Get(runID)
	if err != nil {
		_ = c.WriteJSON(Response{Success: false, Error: "run not found"})
		return
	}

	if err := c.WriteJSON(currentEvent(run)); err != nil || run.Status.Terminal() {
		return
	}

	for event := range events {
		if err := c.WriteJSON(event); err != nil {
			return
		}
		if event.Done {
			return
		}
	}
}
