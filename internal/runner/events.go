package runner

import (
	"context"
	"sync"
	"time"
)

// Event is a status change of a run or of one of its scenarios.
type Event struct {
	RunID      string `json:"run_id"`
	ScenarioID string `json:"scenario_id,omitempty"`
	Attempt    int    `json:"attempt,omitempty"`
	Status     Status `json:"status"`
	Message    string `json:"message,omitempty"`
	Time       int64  `json:"time"`
	// Done marks the last event of a run.
	Done bool `json:"done,omitempty"`
}

// Sink receives every event of every run, e.g. a NATS publisher.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// EventHub manages event subscriptions
type EventHub struct {
	subscribers map[string][]chan Event
	mu          sync.RWMutex
}

// NewEventHub creates a new event hub
func NewEventHub() *EventHub {
	return &EventHub{
		subscribers: make(map[string][]chan Event),
	}
}

// Subscribe creates a subscription for run events
func (h *EventHub) Subscribe(runID string) <-chan Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, 32)
	h.subscribers[runID] = append(h.subscribers[runID], ch)
	return ch
}

// Unsubscribe removes a subscription
func (h *EventHub) Unsubscribe(runID string, ch <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subscribers[runID]
	for i, sub := range subs {
		if sub == ch {
			h.subscribers[runID] = append(subs[:i], subs[i+1:]...)
			close(sub)
			break
		}
	}

	if len(h.subscribers[runID]) == 0 {
		delete(h.subscribers, runID)
	}
}

// doneSendTimeout bounds how long Emit waits for a slow subscriber to take the last event of a run.
const doneSendTimeout = time.Second

// Emit sends an event to all subscribers of a run. A Done event ends the run's
// subscriptions: it is delivered even to a full subscriber (within doneSendTimeout)
// and the channels are closed afterwards.
func (h *EventHub) Emit(event Event) {
	if event.Time == 0 {
		event.Time = time.Now().UnixMilli()
	}
	if event.Done {
		h.finish(event)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subscribers[event.RunID] {
		select {
		case ch <- event:
		default:
			// Skip if channel is full
		}
	}
}

func (h *EventHub) finish(event Event) {
	h.mu.Lock()
	subs := h.subscribers[event.RunID]
	delete(h.subscribers, event.RunID)
	h.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		case <-time.After(doneSendTimeout):
		}
		close(ch)
	}
}

// Close closes all subscriptions
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for runID, subs := range h.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(h.subscribers, runID)
	}
}
