// Package page defines the browser-facing surface the crawlers drive.
//
// Two implementations exist: scraper.Session (a live go-rod tab) and
// snapshot.Page (a static HTML document used for tests and offline replay).
package page

import (
	"context"
	"time"
)

// Page is a single navigable document.
type Page interface {
	// Navigate loads url. Failures are fatal for the owning crawler run.
	Navigate(ctx context.Context, url string) error

	// Find returns every element matching sel. No match is not an error:
	// an empty slice with a nil error is returned. Errors are reserved for
	// driver or transport failures.
	Find(ctx context.Context, sel Selector) ([]Element, error)

	// Wait pauses for d so asynchronous DOM updates can land.
	// It returns early with ctx.Err() if ctx is done.
	Wait(ctx context.Context, d time.Duration) error

	// Close releases the underlying resources. It is safe to call twice.
	Close() error
}

// Element is a handle to a node inside a Page.
type Element interface {
	// Text returns the trimmed rendered text of the element.
	Text() (string, error)

	// Attr returns the attribute value and whether it was present.
	Attr(name string) (string, bool, error)

	// Find returns descendants matching sel, with the same not-found
	// semantics as Page.Find.
	Find(sel Selector) ([]Element, error)

	// ScrollIntoView scrolls the page until the element is visible.
	ScrollIntoView() error

	// ScrollToBottom scrolls a scrollable container to its end.
	ScrollToBottom() error

	// Click dispatches a click through the page's script engine, which
	// bypasses overlays and animations that intercept native clicks.
	Click() error
}

// First returns the first element of els, or nil.
func First(els []Element) Element {
	if len(els) == 0 {
		return nil
	}
	return els[0]
}

// FirstText returns the text of the first element matching sel under el,
// or "" when nothing matches.
func FirstText(el Element, sel Selector) (string, error) {
	found, err := el.Find(sel)
	if err != nil {
		return "", err
	}
	if len(found) == 0 {
		return "", nil
	}
	return found[0].Text()
}

// Sleep is the shared Wait implementation for live pages.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
