package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ahrdadan/ytflow/internal/api"
	"github.com/ahrdadan/ytflow/internal/browser"
	"github.com/ahrdadan/ytflow/internal/config"
	"github.com/ahrdadan/ytflow/internal/fixture"
	"github.com/ahrdadan/ytflow/internal/nats"
	"github.com/ahrdadan/ytflow/internal/report"
	"github.com/ahrdadan/ytflow/internal/runner"
	"github.com/ahrdadan/ytflow/internal/scenario"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Parse CLI flags
	cfg := config.ParseFlags()

	// Handle --version and --help
	config.HandleFlags(cfg)

	if err := cfg.Validate(); err != nil {
		log.Printf("Invalid configuration: %v", err)
		return 2
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scenarios, err := scenario.Discover(cfg.TestDir, cfg.Grep)
	if err != nil {
		log.Printf("Failed to discover scenarios: %v", err)
		return 2
	}

	if cfg.List {
		for _, s := range scenarios {
			fmt.Printf("%s %v\n", s.ID(), s.Tags)
		}
		fmt.Printf("Total: %d scenarios\n", len(scenarios))
		return 0
	}

	if len(scenarios) == 0 {
		log.Printf("No scenarios found in %s", cfg.TestDir)
		return 1
	}

	log.Printf("Starting %s v%s (%s engine)", config.AppName, config.Version, cfg.Engine)

	creds := config.LoadCredentials(os.Getenv)
	if creds.IsPlaceholder() {
		log.Printf("Warning: YOUTUBE_EMAIL/YOUTUBE_PASSWORD not set, logging in as %s", creds.Email)
	}

	// Fixture site
	if cfg.Fixture {
		site, err := fixture.Start("127.0.0.1:0", fixture.Options{})
		if err != nil {
			log.Printf("Failed to start fixture site: %v", err)
			return 1
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := site.Shutdown(shutdownCtx); err != nil {
				log.Printf("Warning: failed to stop fixture site: %v", err)
			}
		}()
		cfg.BaseURL = site.URL()
	}

	// Browser setup
	var chromeBin string
	if cfg.InstallChrome && cfg.Engine == browser.EngineChromium {
		chromeBin, err = browser.InstallChrome(ctx, cfg.ChromeRevision, true)
		if err != nil {
			log.Printf("Failed to install Chrome: %v", err)
			return 1
		}
	}

	engine, err := browser.NewEngine(browser.EngineOptions{
		Name:     cfg.Engine,
		Headless: cfg.Headless,
		BinPath:  chromeBin,
		Install:  cfg.InstallChrome,
	})
	if err != nil {
		log.Printf("Failed to create browser engine: %v", err)
		return 2
	}
	defer func() {
		if err := engine.Stop(); err != nil {
			log.Printf("Failed to stop %s: %v", engine.Name(), err)
		}
	}()

	opts := []runner.Option{}

	// NATS event publisher
	if cfg.NatsURL != "" {
		publisher, err := nats.Connect(ctx, nats.PublisherConfig{
			URL:       cfg.NatsURL,
			JetStream: cfg.NatsJetStream,
		})
		if err != nil {
			log.Printf("Warning: run events will not be published: %v", err)
		} else {
			defer func() { _ = publisher.Close() }()
			opts = append(opts, runner.WithSink(publisher))
		}
	}

	r, err := runner.New(engine, cfg, creds, opts...)
	if err != nil {
		log.Printf("Failed to create runner: %v", err)
		return 2
	}

	// Status server
	if cfg.Serve != "" {
		app := api.NewApp(engine, r.Store(), r.Events())
		go func() {
			log.Printf("Status server listening on %s", cfg.Serve)
			if err := app.Listen(cfg.Serve); err != nil {
				log.Printf("Warning: status server stopped: %v", err)
			}
		}()
		defer func() {
			// End open SSE and websocket streams before stopping the server.
			r.Events().Close()
			if err := app.Shutdown(); err != nil {
				log.Printf("Error during shutdown: %v", err)
			}
		}()
	}

	result, err := r.Run(ctx, scenarios)
	if errors.Is(err, runner.ErrForbidOnly) {
		log.Printf("Error: %v", err)
		return 1
	}
	if err != nil {
		log.Printf("Run failed: %v", err)
	}
	if result == nil {
		return 1
	}

	exitCode := writeReports(cfg.Reporters(), cfg.OutputDir, result)

	snapshot := result.Snapshot()
	summary := snapshot.Summary()
	log.Printf("Run %s %s: %d passed, %d failed, %d flaky, %d skipped",
		snapshot.ID, snapshot.Status, summary.Passed, summary.Failed, summary.Flaky, summary.Skipped)

	if snapshot.Status != runner.StatusPassed {
		return 1
	}
	return exitCode
}

// writeReports runs the named reporters and returns 1 when any of them could not be built or written.
func writeReports(names []string, outputDir string, run *runner.Run) int {
	reporters, err := report.New(names, outputDir)
	if err != nil {
		log.Printf("Failed to create reporters: %v", err)
		return 1
	}
	if err := report.WriteAll(reporters, run); err != nil {
		return 1
	}
	return 0
}
