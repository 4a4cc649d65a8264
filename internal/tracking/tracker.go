// Package tracking reports crawl failures to an error tracking service.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// Tracker defines the interface for error tracking services
type Tracker interface {
	// CaptureError sends an error with tags to the tracking service
	CaptureError(ctx context.Context, err error, tags map[string]string) error
	// Flush waits for pending events to be sent
	Flush(ctx context.Context) error
}

// Nop discards everything
type Nop struct{}

func (Nop) CaptureError(context.Context, error, map[string]string) error { return nil }
func (Nop) Flush(context.Context) error                                  { return nil }

// SentryTracker implements error tracking via Sentry
type SentryTracker struct {
	hub *sentry.Hub
}

// NewSentry initialises the Sentry client
func NewSentry(dsn, environment, release string) (*SentryTracker, error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     release,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init sentry: %w", err)
	}
	return &SentryTracker{hub: sentry.CurrentHub()}, nil
}

// New returns a Sentry tracker when dsn is set and a no-op tracker otherwise
func New(dsn, environment, release string) (Tracker, error) {
	if dsn == "" {
		return Nop{}, nil
	}
	return NewSentry(dsn, environment, release)
}

func (t *SentryTracker) CaptureError(ctx context.Context, err error, tags map[string]string) error {
	hub := t.hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
	})
	hub.CaptureException(err)
	return nil
}

func (t *SentryTracker) Flush(ctx context.Context) error {
	timeout := 2 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if t.hub.Flush(timeout) {
		return nil
	}
	return errors.New("sentry flush timed out")
}
