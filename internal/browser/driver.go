package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// State is a condition a Locator can be waited for.
type State string

const (
	StateAttached State = "attached"
	StateDetached State = "detached"
	StateVisible  State = "visible"
	StateHidden   State = "hidden"
)

// DefaultTimeout is used for waits when neither the caller nor the session sets one.
const DefaultTimeout = 30 * time.Second

var (
	// ErrTimeout is matched by every wait that ran out of time.
	ErrTimeout = errors.New("timeout")
	// ErrStrictMode is returned when an action targets a locator matching more than one element.
	ErrStrictMode = errors.New("strict mode violation")
	// ErrNotRunning is returned when a session is requested from a stopped engine.
	ErrNotRunning = errors.New("browser engine is not running")
)

// TimeoutError describes a wait that did not reach its state in time.
type TimeoutError struct {
	Selector string
	State    State
	Timeout  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout %s exceeded waiting for %q to be %s", e.Timeout, e.Selector, e.State)
}

// Is reports whether target is ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// Locator is a lazy reference to the elements matching a selector chain.
// Nothing is resolved until an action or read is performed, so a Locator stays
// valid across navigations and re-renders.
type Locator interface {
	Selector() string
	First() Locator
	Nth(index int) Locator
	Locator(selector string) Locator

	// WaitFor blocks until the first match reaches state. A zero timeout uses the session default.
	WaitFor(ctx context.Context, state State, timeout time.Duration) error
	// IsVisible checks the first match without waiting.
	IsVisible(ctx context.Context) (bool, error)
	// Count returns the number of matches at this instant.
	Count(ctx context.Context) (int, error)
	// TextContent returns the text of the first match, "" when it has none.
	TextContent(ctx context.Context) (string, error)

	Fill(ctx context.Context, value string) error
	Click(ctx context.Context) error
}

// Session is one isolated browser context with a single page.
type Session interface {
	Locator(selector string) Locator
	// Goto navigates to path; relative paths are resolved against the base URL.
	Goto(ctx context.Context, path string) error
	// WaitForNetworkIdle blocks until no request has been in flight for NetworkIdleWindow.
	WaitForNetworkIdle(ctx context.Context) error
	// Evaluate runs a JS function in the page and returns its JSON value.
	Evaluate(ctx context.Context, js string) (interface{}, error)
	Screenshot(ctx context.Context) ([]byte, error)
	URL() string
	// Finish closes the session. Recorded artifacts are saved when keep is true and discarded otherwise.
	Finish(ctx context.Context, keep bool) ([]Artifact, error)
}

// Engine launches a browser and hands out isolated sessions.
type Engine interface {
	Name() string
	Start() error
	Stop() error
	IsRunning() bool
	GetEndpoint() string
	NewSession(ctx context.Context, opts SessionOptions) (Session, error)
}

// SessionOptions configures a new session.
type SessionOptions struct {
	BaseURL        string
	DefaultTimeout time.Duration
	Trace          bool
	Video          bool
	ArtifactDir    string
}

// Artifact is a file captured for a session.
type Artifact struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
}

// Artifact kinds
const (
	ArtifactTrace      = "trace"
	ArtifactVideo      = "video"
	ArtifactScreenshot = "screenshot"
)
