package browser

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
)

// rodSession is a Session backed by one page inside a rod incognito context.
type rodSession struct {
	browser  *rod.Browser
	page     *rod.Page
	opts     SessionOptions
	recorder *Recorder
}

func newRodSession(incognito *rod.Browser, page *rod.Page, opts SessionOptions) *rodSession {
	s := &rodSession{
		browser: incognito,
		page:    page,
		opts:    opts,
	}
	if opts.Trace {
		s.recorder = NewRecorder()
	}
	if opts.Video {
		log.Printf("Warning: video recording is not supported by the %s engine, skipping", EngineChromium)
	}
	return s
}

func (s *rodSession) Locator(selector string) Locator {
	return &rodLocator{
		session: s,
		steps:   []step{{selector: selector, nth: -1}},
	}
}

func (s *rodSession) Goto(ctx context.Context, path string) (err error) {
	defer s.record("goto", map[string]interface{}{"path": path}, time.Now(), &err)

	target, err := ResolveURL(s.opts.BaseURL, path)
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx, s.defaultTimeout())
	defer cancel()

	page := s.page.Context(ctx)
	if err := page.Navigate(target); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", target, err)
	}
	if err := page.WaitLoad(); err != nil {
		return waitError(err, target, "loaded", s.defaultTimeout())
	}
	return nil
}

func (s *rodSession) WaitForNetworkIdle(ctx context.Context) (err error) {
	defer s.record("wait-network-idle", nil, time.Now(), &err)

	timeout := s.defaultTimeout()
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	wait := s.page.Context(ctx).WaitRequestIdle(NetworkIdleWindow, nil, nil, nil)
	wait()

	return waitError(ctx.Err(), networkSelector, networkIdle, timeout)
}

func (s *rodSession) Evaluate(ctx context.Context, js string) (value interface{}, err error) {
	defer s.record("evaluate", map[string]interface{}{"js": js}, time.Now(), &err)

	res, err := s.page.Context(ctx).Eval(js)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate script: %w", err)
	}
	return res.Value.Val(), nil
}

func (s *rodSession) Screenshot(ctx context.Context) ([]byte, error) {
	screenshot, err := s.page.Context(ctx).Screenshot(true, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to take screenshot: %w", err)
	}
	return screenshot, nil
}

func (s *rodSession) URL() string {
	info, err := s.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (s *rodSession) Finish(ctx context.Context, keep bool) ([]Artifact, error) {
	var artifacts []Artifact

	if keep && s.recorder != nil && s.opts.ArtifactDir != "" {
		path := filepath.Join(s.opts.ArtifactDir, "trace.json")
		if err := s.recorder.SaveToFile(path); err != nil {
			log.Printf("Warning: failed to save trace: %v", err)
		} else {
			artifacts = append(artifacts, Artifact{Kind: ArtifactTrace, Path: path})
		}
	}

	if err := s.page.Close(); err != nil {
		log.Printf("Warning: failed to close page: %v", err)
	}
	if err := s.browser.Close(); err != nil {
		return artifacts, fmt.Errorf("failed to close incognito context: %w", err)
	}
	return artifacts, nil
}

func (s *rodSession) defaultTimeout() time.Duration {
	return effectiveTimeout(0, s.opts.DefaultTimeout)
}

// record logs a finished step to the trace recorder. errp is read after the step returns.
func (s *rodSession) record(stepType string, params map[string]interface{}, started time.Time, errp *error) {
	var err error
	if errp != nil {
		err = *errp
	}
	s.recorder.Record(stepType, params, started, err)
}
