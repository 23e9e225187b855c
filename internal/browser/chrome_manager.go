package browser

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// EngineChromium is the go-rod backed engine name.
const EngineChromium = "chromium"

// ChromeManager manages a Chromium/Chrome instance launched by rod.
type ChromeManager struct {
	binPath   string
	headless  bool
	mu        sync.Mutex
	restartMu sync.Mutex
	launcher  *launcher.Launcher
	browser   *rod.Browser
	wsURL     string
	running   bool
}

// NewChromeManager creates a new Chrome manager. An empty binPath lets rod find or download a browser.
func NewChromeManager(binPath string, headless bool) *ChromeManager {
	return &ChromeManager{
		binPath:  binPath,
		headless: headless,
	}
}

// Name returns the engine name.
func (m *ChromeManager) Name() string {
	return EngineChromium
}

// Start launches Chrome and connects via CDP.
func (m *ChromeManager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	l := launcher.New().Headless(m.headless)
	if m.binPath != "" {
		l.Bin(m.binPath)
	}

	wsURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("failed to launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(wsURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return fmt.Errorf("failed to connect to chrome: %w", err)
	}

	m.launcher = l
	m.browser = browser
	m.wsURL = wsURL
	m.running = true

	log.Printf("Chrome started with endpoint %s (headless=%v)", wsURL, m.headless)
	return nil
}

// Stop stops Chrome.
func (m *ChromeManager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			log.Printf("Warning: failed to close chrome: %v", err)
		}
	}

	if m.launcher != nil {
		m.launcher.Kill()
		m.launcher.Cleanup()
	}

	m.launcher = nil
	m.browser = nil
	m.wsURL = ""
	m.running = false

	log.Println("Chrome stopped")
	return nil
}

// IsRunning reports whether Chrome is running.
func (m *ChromeManager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// GetEndpoint returns the Chrome DevTools endpoint.
func (m *ChromeManager) GetEndpoint() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wsURL
}

// NewSession opens a page in a fresh incognito context so sessions share no cookies or storage.
func (m *ChromeManager) NewSession(ctx context.Context, opts SessionOptions) (Session, error) {
	if err := m.ensureStarted(); err != nil {
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	incognito, page, err := m.openIncognitoPage(ctx)
	if err != nil {
		if !isConnectionError(err) {
			return nil, err
		}

		if restartErr := m.restartBrowser(); restartErr != nil {
			return nil, fmt.Errorf("failed to restart chrome after connection error: %w", restartErr)
		}

		incognito, page, err = m.openIncognitoPage(ctx)
		if err != nil {
			return nil, err
		}
	}

	return newRodSession(incognito, page, opts), nil
}

func (m *ChromeManager) openIncognitoPage(ctx context.Context) (*rod.Browser, *rod.Page, error) {
	m.mu.Lock()
	browser := m.browser
	m.mu.Unlock()

	if browser == nil {
		return nil, nil, ErrNotRunning
	}

	incognito, err := browser.Context(ctx).Incognito()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create incognito context: %w", err)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = incognito.Close()
		return nil, nil, fmt.Errorf("failed to create new page: %w", err)
	}

	return incognito, page, nil
}

func (m *ChromeManager) ensureStarted() error {
	if m.IsRunning() {
		return nil
	}

	m.restartMu.Lock()
	defer m.restartMu.Unlock()

	if m.IsRunning() {
		return nil
	}

	return m.Start()
}

func (m *ChromeManager) restartBrowser() error {
	m.restartMu.Lock()
	defer m.restartMu.Unlock()

	if err := m.Stop(); err != nil {
		log.Printf("Warning: failed to stop chrome before restart: %v", err)
	}

	return m.Start()
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, net.ErrClosed) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset by peer") ||
		strings.Contains(msg, "eof")
}
