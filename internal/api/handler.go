package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// EngineStatus is the part of a browser engine the status server reports.
type EngineStatus interface {
	Name() string
	IsRunning() bool
	GetEndpoint() string
}

// Handler handles API requests
type Handler struct {
	engine EngineStatus
}

// NewHandler creates a new handler
func NewHandler(engine EngineStatus) *Handler {
	return &Handler{
		engine: engine,
	}
}

// Response represents a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ErrorHandler is the custom error handler for Fiber
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(Response{
		Success: false,
		Error:   err.Error(),
	})
}

// HealthCheck returns health status
func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	data := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.engine != nil {
		data["browser"] = map[string]interface{}{
			"engine":   h.engine.Name(),
			"running":  h.engine.IsRunning(),
			"endpoint": h.engine.GetEndpoint(),
		}
	}

	return c.JSON(Response{
		Success: true,
		Data:    data,
	})
}
