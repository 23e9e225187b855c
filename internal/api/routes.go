package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/ahrdadan/ytflow/internal/config"
	"github.com/ahrdadan/ytflow/internal/runner"
)

// NewApp creates the status server with its middleware and routes.
func NewApp(engine EngineStatus, store *runner.Store, events *runner.EventHub) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               config.AppName,
		ErrorHandler:          ErrorHandler,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New())

	SetupRoutes(app, engine, store, events)
	return app
}

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, engine EngineStatus, store *runner.Store, events *runner.EventHub) {
	handler := NewHandler(engine)
	runHandler := NewRunHandler(store, events)

	app.Get("/health", handler.HealthCheck)

	runs := app.Group("/runs")
	runs.Get("", runHandler.ListRuns)
	runs.Get("/:run_id", runHandler.GetRun)
	runs.Get("/:run_id/events", runHandler.StreamEvents)

	// WebSocket endpoint for run events
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(runHandler.HandleWebSocket))
}
