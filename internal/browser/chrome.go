package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/go-scripts/econcal/pkg/common"
)

// ChromeLauncher starts a fresh Chrome process per session
type ChromeLauncher struct {
	headless      bool
	userAgent     string
	chromePath    string
	navTimeout    time.Duration
	scriptTimeout time.Duration
}

// NewChromeLauncher creates a launcher from the crawler configuration
func NewChromeLauncher(cfg common.Configuration) *ChromeLauncher {
	return &ChromeLauncher{
		headless:      cfg.Headless,
		userAgent:     cfg.UserAgent,
		chromePath:    cfg.ChromePath,
		navTimeout:    cfg.NavigationTimeout,
		scriptTimeout: cfg.ScriptTimeout,
	}
}

func (l *ChromeLauncher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("headless", l.headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1366, 900),
	)
	if l.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.userAgent))
	}
	if l.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(l.chromePath))
	}
	return opts
}

// Launch starts the browser and opens its first tab. ctx only bounds the
// start-up; the session lives until Close.
func (l *ChromeLauncher) Launch(ctx context.Context) (Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), l.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	stop := context.AfterFunc(ctx, browserCancel)
	err := chromedp.Run(browserCtx)
	stop()
	if err != nil {
		browserCancel()
		allocCancel()
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrSessionInit, err)
	}

	return &chromeSession{
		ctx:           browserCtx,
		cancel:        browserCancel,
		allocCancel:   allocCancel,
		navTimeout:    l.navTimeout,
		scriptTimeout: l.scriptTimeout,
	}, nil
}

type chromeSession struct {
	ctx           context.Context
	cancel        context.CancelFunc
	allocCancel   context.CancelFunc
	navTimeout    time.Duration
	scriptTimeout time.Duration
}

// run executes actions on the session tab, aborting them when ctx is done
func (s *chromeSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	var (
		opCtx  context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		opCtx, cancel = context.WithTimeout(s.ctx, timeout)
	} else {
		opCtx, cancel = context.WithCancel(s.ctx)
	}
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(opCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, s.navTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (s *chromeSession) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	err := s.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery))
	switch {
	case err == nil:
		return true, nil
	case ctx.Err() != nil:
		return false, ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		return false, nil
	default:
		return false, fmt.Errorf("wait for %q: %w", selector, err)
	}
}

func (s *chromeSession) Evaluate(ctx context.Context, script string, res any) error {
	return s.run(ctx, s.scriptTimeout, chromedp.Evaluate(script, res))
}

func (s *chromeSession) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, s.scriptTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read page html: %w", err)
	}
	return html, nil
}

// Close shuts the tab and the browser process
func (s *chromeSession) Close() error {
	err := chromedp.Cancel(s.ctx)
	s.cancel()
	s.allocCancel()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
