// Package browsertest provides an in-memory browser.Session for testing page objects
// and scenarios without a browser.
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ahrdadan/ytflow/internal/browser"
)

// Element is the state behind one selector chain. Chains are keyed by Locator.Selector().
type Element struct {
	Visible  bool
	Count    int
	Text     string
	Err      error
	ClickErr error
	OnClick  func()
}

// Session records every browser access. Selectors without an Element behave as absent.
type Session struct {
	// Eval answers Evaluate; a nil Eval returns nil.
	Eval func(js string) (interface{}, error)
	// GotoErr fails every navigation.
	GotoErr error

	mu       sync.Mutex
	elements map[string]*Element
	calls    []string
	clicks   map[string]int
	fills    map[string]string
	waits    map[string][]time.Duration
	url      string
	finished bool
	kept     bool
}

func NewSession() *Session {
	return &Session{
		elements: make(map[string]*Element),
		clicks:   make(map[string]int),
		fills:    make(map[string]string),
		waits:    make(map[string][]time.Duration),
		url:      "about:blank",
	}
}

// Set installs el for selector and returns it. A visible element counts as one match.
func (s *Session) Set(selector string, el *Element) *Element {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el.Visible && el.Count == 0 {
		el.Count = 1
	}
	s.elements[selector] = el
	return el
}

// Update changes an element under the session lock.
func (s *Session) Update(selector string, fn func(el *Element)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.elements[selector]
	if !ok {
		el = &Element{}
		s.elements[selector] = el
	}
	fn(el)
}

func (s *Session) element(selector string) Element {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.elements[selector]; ok {
		return *el
	}
	return Element{}
}

func (s *Session) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

// Calls lists every browser access in order, e.g. "click #id".
func (s *Session) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// Clicks counts successful clicks on selector.
func (s *Session) Clicks(selector string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clicks[selector]
}

// Filled returns the last value filled into selector.
func (s *Session) Filled(selector string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fills[selector]
}

// WaitTimeouts lists the timeout argument of every WaitFor call on selector.
func (s *Session) WaitTimeouts(selector string) []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits[selector]...)
}

// Finished reports whether Finish was called and with which keep flag.
func (s *Session) Finished() (finished, kept bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished, s.kept
}

func (s *Session) Locator(selector string) browser.Locator {
	return &Locator{session: s, selector: selector}
}

func (s *Session) Goto(ctx context.Context, path string) error {
	s.record("goto " + path)
	if s.GotoErr != nil {
		return s.GotoErr
	}
	s.mu.Lock()
	s.url = path
	s.mu.Unlock()
	return ctx.Err()
}

func (s *Session) WaitForNetworkIdle(ctx context.Context) error {
	s.record("networkidle")
	return ctx.Err()
}

func (s *Session) Evaluate(ctx context.Context, js string) (interface{}, error) {
	s.record("evaluate")
	if s.Eval == nil {
		return nil, nil
	}
	return s.Eval(js)
}

func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	s.record("screenshot")
	return []byte("\x89PNG"), nil
}

func (s *Session) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

func (s *Session) Finish(ctx context.Context, keep bool) ([]browser.Artifact, error) {
	s.record("finish")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = true
	s.kept = keep
	return nil, nil
}

// Locator resolves against the Session's element table on every call.
type Locator struct {
	session  *Session
	selector string
}

func (l *Locator) Selector() string {
	return l.selector
}

func (l *Locator) First() browser.Locator {
	return l.Nth(0)
}

func (l *Locator) Nth(index int) browser.Locator {
	return &Locator{session: l.session, selector: fmt.Sprintf("%s >> nth=%d", l.selector, index)}
}

func (l *Locator) Locator(selector string) browser.Locator {
	return &Locator{session: l.session, selector: l.selector + " >> " + selector}
}

// WaitFor checks the state once and fails at once with a TimeoutError instead of polling.
func (l *Locator) WaitFor(ctx context.Context, state browser.State, timeout time.Duration) error {
	l.session.record("waitfor " + l.selector)
	l.session.mu.Lock()
	l.session.waits[l.selector] = append(l.session.waits[l.selector], timeout)
	l.session.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	el := l.session.element(l.selector)
	if el.Err != nil {
		return el.Err
	}

	var ok bool
	switch state {
	case browser.StateVisible:
		ok = el.Visible
	case browser.StateHidden:
		ok = !el.Visible
	case browser.StateAttached:
		ok = el.Count > 0
	case browser.StateDetached:
		ok = el.Count == 0
	}
	if !ok {
		return &browser.TimeoutError{Selector: l.selector, State: state, Timeout: timeout}
	}
	return nil
}

func (l *Locator) IsVisible(ctx context.Context) (bool, error) {
	l.session.record("isvisible " + l.selector)
	el := l.session.element(l.selector)
	return el.Visible, el.Err
}

func (l *Locator) Count(ctx context.Context) (int, error) {
	l.session.record("count " + l.selector)
	el := l.session.element(l.selector)
	return el.Count, el.Err
}

func (l *Locator) TextContent(ctx context.Context) (string, error) {
	l.session.record("text " + l.selector)
	el := l.session.element(l.selector)
	return el.Text, el.Err
}

func (l *Locator) Fill(ctx context.Context, value string) error {
	l.session.record("fill " + l.selector)
	el := l.session.element(l.selector)
	if el.Err != nil {
		return el.Err
	}
	if !el.Visible {
		return &browser.TimeoutError{Selector: l.selector, State: browser.StateVisible}
	}

	l.session.mu.Lock()
	l.session.fills[l.selector] = value
	l.session.mu.Unlock()
	return nil
}

func (l *Locator) Click(ctx context.Context) error {
	l.session.record("click " + l.selector)
	el := l.session.element(l.selector)
	if el.ClickErr != nil {
		return el.ClickErr
	}
	if !el.Visible {
		return &browser.TimeoutError{Selector: l.selector, State: browser.StateVisible}
	}

	l.session.mu.Lock()
	l.session.clicks[l.selector]++
	l.session.mu.Unlock()

	if el.OnClick != nil {
		el.OnClick()
	}
	return nil
}
