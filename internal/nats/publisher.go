// Package nats publishes run events to a NATS server, optionally through JetStream.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/ahrdadan/ytflow/internal/runner"
)

const (
	// StreamName is the name of the JetStream stream
	StreamName = "YTFLOW_RUNS"
	// SubjectPrefix prefixes the per-run event subjects
	SubjectPrefix = "ytflow.runs"
)

// Subject returns the subject events of runID are published on.
func Subject(runID string) string {
	return SubjectPrefix + "." + runID
}

// PublisherConfig holds configuration for the publisher
type PublisherConfig struct {
	URL       string
	JetStream bool
	// MaxAge bounds how long the stream keeps events. Zero keeps them for a day.
	MaxAge time.Duration
}

// Publisher sends run events to NATS
type Publisher struct {
	url    string
	nc     *nats.Conn
	js     jetstream.JetStream
	stream jetstream.Stream
	mu     sync.Mutex
}

// Connect connects to NATS and, with JetStream enabled, creates or updates the run stream.
func Connect(ctx context.Context, cfg PublisherConfig) (*Publisher, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("ytflow"),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	p := &Publisher{url: cfg.URL, nc: nc}
	if !cfg.JetStream {
		log.Printf("Publishing run events to NATS at %s", cfg.URL)
		return p, nil
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	p.js = js

	if err := p.setupStream(ctx, cfg.MaxAge); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to setup stream: %w", err)
	}

	log.Printf("Publishing run events to JetStream stream %s at %s", StreamName, cfg.URL)
	return p, nil
}

// setupStream creates or updates the JetStream stream
func (p *Publisher) setupStream(ctx context.Context, maxAge time.Duration) error {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	stream, err := p.js.CreateOrUpdateStream(ctx, streamConfig(maxAge))
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	p.stream = stream
	return nil
}

func streamConfig(maxAge time.Duration) jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        StreamName,
		Description: "ytflow run events",
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      maxAge,
		Storage:     jetstream.FileStorage,
	}
}

// Publish implements runner.Sink.
func (p *Publisher) Publish(ctx context.Context, event runner.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	p.mu.Lock()
	nc, js := p.nc, p.js
	p.mu.Unlock()

	if nc == nil {
		return fmt.Errorf("publisher is closed")
	}

	subject := Subject(event.RunID)
	if js != nil {
		if _, err := js.Publish(ctx, subject, data); err != nil {
			return fmt.Errorf("failed to publish event: %w", err)
		}
		return nil
	}

	if err := nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	// A terminal run event is flushed so it is not lost when the process exits right after.
	if event.Done {
		return nc.FlushWithContext(ctx)
	}
	return nil
}

// Close drains pending messages and closes the connection
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.nc == nil {
		return nil
	}

	err := p.nc.Drain()
	p.nc = nil
	p.js = nil
	if err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	return nil
}
