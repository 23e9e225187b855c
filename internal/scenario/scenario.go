// Package scenario defines the browser scenarios the runner executes and the
// assertions they use.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ahrdadan/ytflow/internal/browser"
	"github.com/ahrdadan/ytflow/internal/config"
)

// DefaultExpectTimeout bounds Expect assertions.
const DefaultExpectTimeout = 5 * time.Second

// Scenario is one registered end-to-end flow.
type Scenario struct {
	// File groups scenarios; scenarios of one file share a worker unless running fully parallel.
	File  string
	Title string
	Tags  []string
	// Only restricts the run to scenarios marked Only.
	Only bool
	Run  func(ctx context.Context, t *T) error
}

// ID identifies the scenario within a run.
func (s Scenario) ID() string {
	return s.File + " > " + s.Title
}

// T is handed to a running scenario.
type T struct {
	Session     browser.Session
	Config      *config.Config
	Credentials config.Credentials
	// Attempt is 0 for the first run and counts retries after that.
	Attempt int

	ExpectTimeout time.Duration

	mu   sync.Mutex
	logs []string
}

// Logf records a line in the attempt's output.
func (t *T) Logf(format string, args ...interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.logs = append(t.logs, fmt.Sprintf(format, args...))
}

// Logs returns the lines recorded with Logf.
func (t *T) Logs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.logs...)
}

// AssertionError is a failed expectation, reported apart from timeouts and other errors.
type AssertionError struct {
	Matcher  string
	Selector string
	Message  string
	Err      error
}

func (e *AssertionError) Error() string {
	var b strings.Builder
	b.WriteString("expect")
	if e.Selector != "" {
		fmt.Fprintf(&b, "(%q)", e.Selector)
	}
	if e.Matcher != "" {
		b.WriteString("." + e.Matcher + "()")
	}
	b.WriteString(" failed")
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *AssertionError) Unwrap() error {
	return e.Err
}

// IsAssertion reports whether err is or wraps an AssertionError.
func IsAssertion(err error) bool {
	var ae *AssertionError
	return errors.As(err, &ae)
}

// Assert fails with an AssertionError carrying message when cond is false.
func (t *T) Assert(cond bool, format string, args ...interface{}) error {
	if cond {
		return nil
	}
	return &AssertionError{Message: fmt.Sprintf(format, args...)}
}

// LocatorAssertions are the expectations available on a locator.
type LocatorAssertions struct {
	locator browser.Locator
	timeout time.Duration
}

// Expect starts an assertion on locator.
func (t *T) Expect(locator browser.Locator) *LocatorAssertions {
	timeout := t.ExpectTimeout
	if timeout <= 0 {
		timeout = DefaultExpectTimeout
	}
	return &LocatorAssertions{locator: locator, timeout: timeout}
}

// ToBeVisible waits until the locator's first match is visible.
func (a *LocatorAssertions) ToBeVisible(ctx context.Context) error {
	return a.expectState(ctx, browser.StateVisible, "toBeVisible")
}

// ToBeHidden waits until the locator has no visible match.
func (a *LocatorAssertions) ToBeHidden(ctx context.Context) error {
	return a.expectState(ctx, browser.StateHidden, "toBeHidden")
}

func (a *LocatorAssertions) expectState(ctx context.Context, state browser.State, matcher string) error {
	err := a.locator.WaitFor(ctx, state, a.timeout)
	if err == nil {
		return nil
	}
	if errors.Is(err, browser.ErrTimeout) {
		return &AssertionError{
			Matcher:  matcher,
			Selector: a.locator.Selector(),
			Message:  fmt.Sprintf("not %s after %s", state, a.timeout),
		}
	}
	return err
}

// Registry holds scenarios in registration order.
type Registry struct {
	mu        sync.RWMutex
	scenarios []Scenario
}

// DefaultRegistry holds the built-in scenarios.
var DefaultRegistry = &Registry{}

// Register adds s to the default registry.
func Register(s Scenario) {
	DefaultRegistry.Add(s)
}

func (r *Registry) Add(s Scenario) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scenarios = append(r.scenarios, s)
}

// All returns every registered scenario sorted by file, keeping registration order within a file.
func (r *Registry) All() []Scenario {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := append([]Scenario(nil), r.scenarios...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].File < out[j].File
	})
	return out
}

// Discover returns the scenarios whose file lies under testDir and whose title or tags match grep.
func (r *Registry) Discover(testDir, grep string) ([]Scenario, error) {
	var re *regexp.Regexp
	if grep != "" {
		var err error
		re, err = regexp.Compile(grep)
		if err != nil {
			return nil, fmt.Errorf("invalid grep pattern: %w", err)
		}
	}

	var out []Scenario
	for _, s := range r.All() {
		if !underDir(s.File, testDir) {
			continue
		}
		if re != nil && !re.MatchString(s.Title+" "+strings.Join(s.Tags, " ")) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// Discover searches the default registry.
func Discover(testDir, grep string) ([]Scenario, error) {
	return DefaultRegistry.Discover(testDir, grep)
}

func underDir(file, dir string) bool {
	dir = path.Clean(strings.TrimPrefix(dir, "./"))
	file = path.Clean(strings.TrimPrefix(file, "./"))
	if dir == "." || dir == "" {
		return true
	}
	return file == dir || strings.HasPrefix(file, dir+"/")
}

// HasOnly reports whether any scenario is marked Only.
func HasOnly(scenarios []Scenario) bool {
	for _, s := range scenarios {
		if s.Only {
			return true
		}
	}
	return false
}

// FilterOnly keeps the scenarios marked Only, or all of them when none is.
func FilterOnly(scenarios []Scenario) []Scenario {
	if !HasOnly(scenarios) {
		return scenarios
	}
	var out []Scenario
	for _, s := range scenarios {
		if s.Only {
			out = append(out, s)
		}
	}
	return out
}
