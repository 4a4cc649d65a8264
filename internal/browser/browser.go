// Package browser wraps the headless browser used to render calendar pages.
package browser

import (
	"context"
	"errors"
	"time"
)

// ErrSessionInit is returned when a browser session cannot be started
var ErrSessionInit = errors.New("browser session init failed")

// Session is one isolated browser instance owned by a single worker
type Session interface {
	// Navigate loads url in the session's tab
	Navigate(ctx context.Context, url string) error
	// WaitForSelector waits up to timeout for selector to be present. It
	// reports false, not an error, when the timeout elapses.
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) (bool, error)
	// Evaluate runs script and decodes its result into res. res may be nil.
	Evaluate(ctx context.Context, script string, res any) error
	// HTML returns the current document's outer HTML
	HTML(ctx context.Context) (string, error)
	Close() error
}

// Launcher starts new sessions
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}
