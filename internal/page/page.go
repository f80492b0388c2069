// Package page defines the page primitives the adapters drive: element
// lookup, visibility, simulated input and bounded waits.
//
// The browser itself is an external collaborator. Page is the narrow surface
// the rest of the service relies on; Document is a goquery-backed
// implementation over an HTML snapshot.
package page

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Element is an opaque handle to a node of the current page render. A handle
// is only valid until the page navigates.
type Element interface {
	QueryAll(selector string) []Element
	Text() string
	Attr(name string) (string, bool)
	Value() string
	Visible() bool
	Disabled() bool
	Checked() bool
	Matches(selector string) bool
}

// Page is the live page an adapter reads from and acts on.
type Page interface {
	URL() *url.URL
	QueryAll(selector string) []Element
	Click(ctx context.Context, el Element) error
	// SetValue writes a free-text value and fires input + change events.
	SetValue(ctx context.Context, el Element, value string) error
	SetChecked(ctx context.Context, el Element, checked bool) error
	SelectOption(ctx context.Context, el Element, value string) error
	ScrollToBottom(ctx context.Context) error
	ScrollHeight() int
}

// ErrWaitTimeout is matched by every WaitTimeoutError.
var ErrWaitTimeout = errors.New("page: wait timed out")

// ErrStaleElement is returned when acting on a handle from a previous render.
var ErrStaleElement = errors.New("page: element is no longer attached")

// WaitTimeoutError reports a selector that did not appear in time.
type WaitTimeoutError struct {
	Selector string
	Timeout  time.Duration
}

func (e *WaitTimeoutError) Error() string {
	return fmt.Sprintf("element %q did not appear within %s", e.Selector, e.Timeout)
}

func (e *WaitTimeoutError) Is(target error) bool { return target == ErrWaitTimeout }

const pollInterval = 100 * time.Millisecond

// Query returns the first element matching selector.
func Query(pg Page, selector string) (Element, bool) {
	els := pg.QueryAll(selector)
	if len(els) == 0 {
		return nil, false
	}
	return els[0], true
}

// QueryIn returns the first descendant of el matching selector.
func QueryIn(el Element, selector string) (Element, bool) {
	if el == nil {
		return nil, false
	}
	els := el.QueryAll(selector)
	if len(els) == 0 {
		return nil, false
	}
	return els[0], true
}

// TextIn returns the trimmed text of the first descendant matching selector,
// or "" when there is none.
func TextIn(el Element, selector string) string {
	found, ok := QueryIn(el, selector)
	if !ok {
		return ""
	}
	return strings.TrimSpace(found.Text())
}

// VisibleElement returns the first visible element matching selector.
func VisibleElement(pg Page, selector string) (Element, bool) {
	for _, el := range pg.QueryAll(selector) {
		if el.Visible() {
			return el, true
		}
	}
	return nil, false
}

// FirstMatch tries selectors in priority order and returns the elements of
// the first one that matches anything.
func FirstMatch(scope interface{ QueryAll(string) []Element }, selectors ...string) []Element {
	for _, sel := range selectors {
		if sel == "" {
			continue
		}
		if els := scope.QueryAll(sel); len(els) > 0 {
			return els
		}
	}
	return nil
}

// ContainsText reports whether any element matching selector under scope has
// text containing needle (case-insensitive).
func ContainsText(scope interface{ QueryAll(string) []Element }, selector, needle string) bool {
	needle = strings.ToLower(needle)
	for _, el := range scope.QueryAll(selector) {
		if strings.Contains(strings.ToLower(el.Text()), needle) {
			return true
		}
	}
	return false
}

// WaitFor polls until an element matching selector exists or timeout
// elapses. A zero timeout checks once.
func WaitFor(ctx context.Context, pg Page, selector string, timeout time.Duration) (Element, error) {
	if el, ok := Query(pg, selector); ok {
		return el, nil
	}
	if timeout <= 0 {
		return nil, &WaitTimeoutError{Selector: selector, Timeout: timeout}
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	interval := pollInterval
	if timeout < interval {
		interval = timeout / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ctx.Err()
			}
			// one last look before giving up
			if el, ok := Query(pg, selector); ok {
				return el, nil
			}
			return nil, &WaitTimeoutError{Selector: selector, Timeout: timeout}
		case <-ticker.C:
			if el, ok := Query(pg, selector); ok {
				return el, nil
			}
		}
	}
}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
