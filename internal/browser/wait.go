package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	// NetworkIdleWindow is how long the network must stay quiet to count as idle.
	NetworkIdleWindow = 500 * time.Millisecond

	pollInterval    = 100 * time.Millisecond
	stableWindow    = 100 * time.Millisecond
	networkSelector = "network"
	networkIdle     = State("idle")
)

// poll calls cond until it reports true, the timeout elapses or ctx is done.
// Errors from cond are treated as "not yet", since the element may be detached mid-check.
func poll(ctx context.Context, timeout time.Duration, cond func(ctx context.Context) (bool, error)) error {
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		ok, err := cond(ctx)
		if err == nil && ok {
			return nil
		}
		if errors.Is(err, ErrStrictMode) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// waitError maps a context expiry to a TimeoutError and wraps everything else.
func waitError(err error, selector string, state State, timeout time.Duration) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Selector: selector, State: state, Timeout: timeout}
	}
	return fmt.Errorf("waiting for %q to be %s: %w", selector, state, err)
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func effectiveTimeout(timeout, fallback time.Duration) time.Duration {
	if timeout > 0 {
		return timeout
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultTimeout
}

// ResolveURL joins a relative path onto baseURL. Absolute URLs are returned unchanged.
func ResolveURL(baseURL, path string) (string, error) {
	target, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", path, err)
	}
	if target.IsAbs() || baseURL == "" {
		return target.String(), nil
	}

	base, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	return base.ResolveReference(target).String(), nil
}
