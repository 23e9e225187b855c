package browser

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// EnginePlaywright is the playwright-go backed engine name.
const EnginePlaywright = "playwright"

// PlaywrightManager drives Chromium through the Playwright driver. Unlike the rod engine it
// records native traces and videos.
type PlaywrightManager struct {
	headless bool
	install  bool
	mu       sync.Mutex
	pw       *playwright.Playwright
	browser  playwright.Browser
	running  bool
}

// NewPlaywrightManager creates a manager; with install set the driver and Chromium are downloaded on Start.
func NewPlaywrightManager(headless, install bool) *PlaywrightManager {
	return &PlaywrightManager{
		headless: headless,
		install:  install,
	}
}

func (m *PlaywrightManager) Name() string {
	return EnginePlaywright
}

// Start runs the Playwright driver and launches Chromium.
func (m *PlaywrightManager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	if m.install {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			return fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(m.headless),
	})
	if err != nil {
		_ = pw.Stop()
		return fmt.Errorf("failed to launch chromium: %w", err)
	}

	m.pw = pw
	m.browser = browser
	m.running = true

	log.Printf("Playwright chromium %s started (headless=%v)", browser.Version(), m.headless)
	return nil
}

// Stop closes the browser and the driver.
func (m *PlaywrightManager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	if err := m.browser.Close(); err != nil {
		log.Printf("Warning: failed to close chromium: %v", err)
	}
	if err := m.pw.Stop(); err != nil {
		log.Printf("Warning: failed to stop playwright: %v", err)
	}

	m.browser = nil
	m.pw = nil
	m.running = false

	log.Println("Playwright stopped")
	return nil
}

func (m *PlaywrightManager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *PlaywrightManager) GetEndpoint() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.browser == nil {
		return ""
	}
	return "playwright+chromium/" + m.browser.Version()
}

// NewSession creates a BrowserContext with a single page.
func (m *PlaywrightManager) NewSession(ctx context.Context, opts SessionOptions) (Session, error) {
	m.mu.Lock()
	browser := m.browser
	m.mu.Unlock()

	if browser == nil {
		return nil, ErrNotRunning
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctxOpts := playwright.BrowserNewContextOptions{}
	if opts.Video && opts.ArtifactDir != "" {
		ctxOpts.RecordVideo = &playwright.RecordVideo{Dir: filepath.Join(opts.ArtifactDir, "video")}
	}

	bctx, err := browser.NewContext(ctxOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	s := &pwSession{bctx: bctx, opts: opts}
	if opts.Trace {
		err := bctx.Tracing().Start(playwright.TracingStartOptions{
			Screenshots: playwright.Bool(true),
			Snapshots:   playwright.Bool(true),
		})
		if err != nil {
			log.Printf("Warning: failed to start tracing: %v", err)
		} else {
			s.tracing = true
		}
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}
	s.page = page

	return s, nil
}

// pwSession is a Session backed by a Playwright BrowserContext.
type pwSession struct {
	bctx    playwright.BrowserContext
	page    playwright.Page
	opts    SessionOptions
	tracing bool
}

func (s *pwSession) Locator(selector string) Locator {
	return &pwLocator{
		session:  s,
		loc:      s.page.Locator(selector),
		selector: selector,
	}
}

func (s *pwSession) Goto(ctx context.Context, path string) error {
	target, err := ResolveURL(s.opts.BaseURL, path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	timeout := s.defaultTimeout()
	_, err = s.page.Goto(target, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   timeoutMS(ctx, timeout),
	})
	if err != nil {
		return pwError(err, target, "loaded", timeout)
	}
	return nil
}

func (s *pwSession) WaitForNetworkIdle(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	timeout := s.defaultTimeout()
	err := s.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: timeoutMS(ctx, timeout),
	})
	return pwError(err, networkSelector, networkIdle, timeout)
}

func (s *pwSession) Evaluate(ctx context.Context, js string) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	value, err := s.page.Evaluate(js)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate script: %w", err)
	}
	return value, nil
}

func (s *pwSession) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	screenshot, err := s.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to take screenshot: %w", err)
	}
	return screenshot, nil
}

func (s *pwSession) URL() string {
	return s.page.URL()
}

func (s *pwSession) Finish(ctx context.Context, keep bool) ([]Artifact, error) {
	var artifacts []Artifact

	if s.tracing {
		if keep && s.opts.ArtifactDir != "" {
			path := filepath.Join(s.opts.ArtifactDir, "trace.zip")
			if err := s.bctx.Tracing().Stop(path); err != nil {
				log.Printf("Warning: failed to save trace: %v", err)
			} else {
				artifacts = append(artifacts, Artifact{Kind: ArtifactTrace, Path: path})
			}
		} else if err := s.bctx.Tracing().Stop(); err != nil {
			log.Printf("Warning: failed to stop tracing: %v", err)
		}
	}

	video := s.page.Video()

	if err := s.bctx.Close(); err != nil {
		return artifacts, fmt.Errorf("failed to close browser context: %w", err)
	}

	if video != nil {
		if keep {
			path, err := video.Path()
			if err != nil {
				log.Printf("Warning: failed to resolve video path: %v", err)
			} else {
				artifacts = append(artifacts, Artifact{Kind: ArtifactVideo, Path: path})
			}
		} else if err := video.Delete(); err != nil {
			log.Printf("Warning: failed to delete video: %v", err)
		}
	}

	return artifacts, nil
}

func (s *pwSession) defaultTimeout() time.Duration {
	return effectiveTimeout(0, s.opts.DefaultTimeout)
}

// pwLocator wraps a native Playwright locator, which is already lazy.
type pwLocator struct {
	session  *pwSession
	loc      playwright.Locator
	selector string
}

func (l *pwLocator) Selector() string {
	return l.selector
}

func (l *pwLocator) First() Locator {
	return l.Nth(0)
}

func (l *pwLocator) Nth(index int) Locator {
	return &pwLocator{
		session:  l.session,
		loc:      l.loc.Nth(index),
		selector: fmt.Sprintf("%s >> nth=%d", l.selector, index),
	}
}

func (l *pwLocator) Locator(selector string) Locator {
	return &pwLocator{
		session:  l.session,
		loc:      l.loc.Locator(selector),
		selector: l.selector + " >> " + selector,
	}
}

func (l *pwLocator) WaitFor(ctx context.Context, state State, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	timeout = effectiveTimeout(timeout, l.session.opts.DefaultTimeout)
	err := l.loc.First().WaitFor(playwright.LocatorWaitForOptions{
		State:   pwState(state),
		Timeout: timeoutMS(ctx, timeout),
	})
	return pwError(err, l.selector, state, timeout)
}

func (l *pwLocator) IsVisible(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return l.loc.First().IsVisible()
}

func (l *pwLocator) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return l.loc.Count()
}

func (l *pwLocator) TextContent(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	timeout := l.session.defaultTimeout()
	text, err := l.loc.TextContent(playwright.LocatorTextContentOptions{
		Timeout: timeoutMS(ctx, timeout),
	})
	if err != nil {
		return "", pwError(err, l.selector, StateAttached, timeout)
	}
	return text, nil
}

func (l *pwLocator) Fill(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	timeout := l.session.defaultTimeout()
	err := l.loc.Fill(value, playwright.LocatorFillOptions{
		Timeout: timeoutMS(ctx, timeout),
	})
	return pwError(err, l.selector, StateVisible, timeout)
}

func (l *pwLocator) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	timeout := l.session.defaultTimeout()
	err := l.loc.Click(playwright.LocatorClickOptions{
		Timeout: timeoutMS(ctx, timeout),
	})
	return pwError(err, l.selector, StateVisible, timeout)
}

func pwState(state State) *playwright.WaitForSelectorState {
	switch state {
	case StateAttached:
		return playwright.WaitForSelectorStateAttached
	case StateDetached:
		return playwright.WaitForSelectorStateDetached
	case StateHidden:
		return playwright.WaitForSelectorStateHidden
	default:
		return playwright.WaitForSelectorStateVisible
	}
}

func pwError(err error, selector string, state State, timeout time.Duration) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return &TimeoutError{Selector: selector, State: state, Timeout: timeout}
	}
	return fmt.Errorf("%q (%s): %w", selector, state, err)
}

// timeoutMS converts timeout to Playwright milliseconds, capped by the context deadline.
func timeoutMS(ctx context.Context, timeout time.Duration) *float64 {
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout < time.Millisecond {
		timeout = time.Millisecond
	}
	return playwright.Float(float64(timeout.Milliseconds()))
}
