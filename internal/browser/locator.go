package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// step is one selector in a locator chain. nth < 0 keeps every match.
type step struct {
	selector string
	nth      int
}

// rodLocator resolves its chain against the live page on every call and never keeps elements.
type rodLocator struct {
	session *rodSession
	steps   []step
}

func (l *rodLocator) Selector() string {
	parts := make([]string, 0, len(l.steps))
	for _, s := range l.steps {
		if s.nth >= 0 {
			parts = append(parts, fmt.Sprintf("%s >> nth=%d", s.selector, s.nth))
		} else {
			parts = append(parts, s.selector)
		}
	}
	return strings.Join(parts, " >> ")
}

func (l *rodLocator) First() Locator {
	return l.Nth(0)
}

func (l *rodLocator) Nth(index int) Locator {
	steps := l.copySteps()
	steps[len(steps)-1].nth = index
	return &rodLocator{session: l.session, steps: steps}
}

func (l *rodLocator) Locator(selector string) Locator {
	steps := append(l.copySteps(), step{selector: selector, nth: -1})
	return &rodLocator{session: l.session, steps: steps}
}

func (l *rodLocator) copySteps() []step {
	steps := make([]step, len(l.steps))
	copy(steps, l.steps)
	return steps
}

// resolve queries the chain in document order.
func (l *rodLocator) resolve(ctx context.Context) (rod.Elements, error) {
	page := l.session.page.Context(ctx)

	var current rod.Elements
	for i, s := range l.steps {
		var next rod.Elements
		if i == 0 {
			els, err := page.Elements(s.selector)
			if err != nil {
				return nil, err
			}
			next = els
		} else {
			for _, parent := range current {
				els, err := parent.Context(ctx).Elements(s.selector)
				if err != nil {
					return nil, err
				}
				next = append(next, els...)
			}
		}

		if s.nth >= 0 {
			if s.nth < len(next) {
				next = rod.Elements{next[s.nth]}
			} else {
				next = nil
			}
		}
		current = next
	}
	return current, nil
}

func (l *rodLocator) check(ctx context.Context, state State) (bool, error) {
	els, err := l.resolve(ctx)
	if err != nil {
		return false, err
	}

	switch state {
	case StateAttached:
		return len(els) > 0, nil
	case StateDetached:
		return len(els) == 0, nil
	case StateVisible:
		if len(els) == 0 {
			return false, nil
		}
		return els[0].Context(ctx).Visible()
	case StateHidden:
		if len(els) == 0 {
			return true, nil
		}
		visible, err := els[0].Context(ctx).Visible()
		return !visible, err
	default:
		return false, fmt.Errorf("unknown state: %s", state)
	}
}

func (l *rodLocator) WaitFor(ctx context.Context, state State, timeout time.Duration) (err error) {
	defer l.session.record("wait-for", map[string]interface{}{"selector": l.Selector(), "state": state}, time.Now(), &err)

	timeout = effectiveTimeout(timeout, l.session.opts.DefaultTimeout)
	err = poll(ctx, timeout, func(ctx context.Context) (bool, error) {
		return l.check(ctx, state)
	})
	return waitError(err, l.Selector(), state, timeout)
}

func (l *rodLocator) IsVisible(ctx context.Context) (bool, error) {
	return l.check(ctx, StateVisible)
}

func (l *rodLocator) Count(ctx context.Context) (int, error) {
	els, err := l.resolve(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to query %q: %w", l.Selector(), err)
	}
	return len(els), nil
}

func (l *rodLocator) TextContent(ctx context.Context) (string, error) {
	el, err := l.waitElement(ctx, false)
	if err != nil {
		return "", err
	}

	res, err := el.Context(ctx).Eval(`() => this.textContent`)
	if err != nil {
		return "", fmt.Errorf("failed to read text of %q: %w", l.Selector(), err)
	}
	if res.Value.Nil() {
		return "", nil
	}
	return res.Value.Str(), nil
}

func (l *rodLocator) Fill(ctx context.Context, value string) (err error) {
	defer l.session.record("fill", map[string]interface{}{"selector": l.Selector()}, time.Now(), &err)

	el, err := l.waitElement(ctx, true)
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx, l.session.defaultTimeout())
	defer cancel()
	el = el.Context(ctx)

	if _, err := el.Eval(`() => { this.value = ''; this.dispatchEvent(new Event('input', { bubbles: true })) }`); err != nil {
		return fmt.Errorf("failed to clear %q: %w", l.Selector(), err)
	}
	if value == "" {
		return nil
	}
	if err := el.Input(value); err != nil {
		return fmt.Errorf("failed to input value for %q: %w", l.Selector(), err)
	}
	return nil
}

func (l *rodLocator) Click(ctx context.Context) (err error) {
	defer l.session.record("click", map[string]interface{}{"selector": l.Selector()}, time.Now(), &err)

	el, err := l.waitElement(ctx, true)
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx, l.session.defaultTimeout())
	defer cancel()

	if err := el.Context(ctx).Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("failed to click %q: %w", l.Selector(), err)
	}
	return nil
}

// waitElement waits for a single match. With actionable set it also waits until the
// element is visible, enabled and stable.
func (l *rodLocator) waitElement(ctx context.Context, actionable bool) (*rod.Element, error) {
	timeout := l.session.defaultTimeout()
	state := StateAttached
	if actionable {
		state = StateVisible
	}

	var found *rod.Element
	err := poll(ctx, timeout, func(ctx context.Context) (bool, error) {
		els, err := l.resolve(ctx)
		if err != nil || len(els) == 0 {
			return false, err
		}
		if len(els) > 1 {
			return false, fmt.Errorf("%w: %q resolved to %d elements", ErrStrictMode, l.Selector(), len(els))
		}

		el := els[0].Context(ctx)
		if actionable {
			if visible, err := el.Visible(); err != nil || !visible {
				return false, err
			}
			if disabled, err := el.Disabled(); err != nil || disabled {
				return false, err
			}
			if err := el.WaitStable(stableWindow); err != nil {
				return false, err
			}
		}
		found = els[0]
		return true, nil
	})
	if err != nil {
		return nil, waitError(err, l.Selector(), state, timeout)
	}
	return found, nil
}
