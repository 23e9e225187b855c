package browser

import "fmt"

// EngineOptions selects and configures a browser engine.
type EngineOptions struct {
	Name     string
	Headless bool
	// BinPath points the chromium engine at an installed browser.
	BinPath string
	// Install downloads the browser before the first launch.
	Install bool
}

// NewEngine returns the engine registered under opts.Name. An empty name selects chromium.
func NewEngine(opts EngineOptions) (Engine, error) {
	switch opts.Name {
	case "", EngineChromium:
		return NewChromeManager(opts.BinPath, opts.Headless), nil
	case EnginePlaywright:
		return NewPlaywrightManager(opts.Headless, opts.Install), nil
	default:
		return nil, fmt.Errorf("unknown browser engine %q", opts.Name)
	}
}
