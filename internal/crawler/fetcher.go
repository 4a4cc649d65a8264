package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/go-scripts/econcal/internal/browser"
	"github.com/go-scripts/econcal/internal/extract"
	"github.com/go-scripts/econcal/pkg/common"
)

// NoEventsMarker is shown by the calendar for days without releases
const NoEventsMarker = "There are no news events scheduled"

// stableScrolls is how many unchanged height readings end the scroll loop
const stableScrolls = 2

// CalendarURL returns the calendar landing page under base
func CalendarURL(base string) string {
	return strings.TrimRight(base, "/") + "/calendar"
}

// DayURL returns the calendar page for a single day, e.g. ?day=mar1.2016
func DayURL(base string, day time.Time) string {
	return fmt.Sprintf("%s?day=%s%d.%d", CalendarURL(base),
		strings.ToLower(day.Format("Jan")), day.Day(), day.Year())
}

// Fetcher loads one calendar day in a session and extracts its events
type Fetcher struct {
	baseURL           string
	readyTimeout      time.Duration
	navigationTimeout time.Duration
	scriptTimeout     time.Duration
	scrollSettle      time.Duration
	maxScrollAttempts int
	extractor         *extract.Extractor
	logger            *log.Logger
}

// NewFetcher creates a Fetcher. A nil logger uses the default logger.
func NewFetcher(cfg common.Configuration, extractor *extract.Extractor, logger *log.Logger) *Fetcher {
	if logger == nil {
		logger = log.Default()
	}
	if extractor == nil {
		extractor = extract.New(logger)
	}
	return &Fetcher{
		baseURL:           cfg.BaseURL,
		readyTimeout:      cfg.ReadyTimeout,
		navigationTimeout: cfg.NavigationTimeout,
		scriptTimeout:     cfg.ScriptTimeout,
		scrollSettle:      cfg.ScrollSettle,
		maxScrollAttempts: cfg.MaxScrollAttempts,
		extractor:         extractor,
		logger:            logger,
	}
}

// FetchDay returns the events published for day. A day the calendar reports
// as empty yields no records and no error.
func (f *Fetcher) FetchDay(ctx context.Context, sess browser.Session, day time.Time) ([]common.EventRecord, error) {
	records, _, err := f.fetch(ctx, sess, day)
	return records, err
}

func (f *Fetcher) fetch(ctx context.Context, sess browser.Session, day time.Time) ([]common.EventRecord, DayStatus, error) {
	url := DayURL(f.baseURL, day)
	logger := f.logger.With("date", day.Format(common.DateLayout))

	if err := f.navigate(ctx, sess, url); err != nil {
		return nil, DayFailed, f.failure(ctx, err)
	}

	ready, err := sess.WaitForSelector(ctx, extract.SelectorReady, f.readyTimeout)
	if err != nil {
		return nil, DayFailed, f.failure(ctx, err)
	}
	if !ready {
		html, err := f.html(ctx, sess)
		if err != nil {
			return nil, DayFailed, f.failure(ctx, err)
		}
		if strings.Contains(html, NoEventsMarker) {
			logger.Debug("no events scheduled")
			return nil, DayNoEvents, nil
		}
		return nil, DayFailed, fmt.Errorf("%w: %w: %s after %s", ErrFetchFailure, ErrPageLoadTimeout, url, f.readyTimeout)
	}

	if err := f.scrollToBottom(ctx, sess); err != nil {
		if ctx.Err() != nil {
			return nil, DayFailed, ctx.Err()
		}
		logger.Debug("scrolling failed, extracting what is loaded", "err", err)
	}

	html, err := f.html(ctx, sess)
	if err != nil {
		return nil, DayFailed, f.failure(ctx, err)
	}
	page, err := extract.ParseHTML(html)
	if err != nil {
		return nil, DayFailed, fmt.Errorf("%w: %w", ErrFetchFailure, err)
	}
	records, err := f.extractor.Extract(page, day)
	if err != nil {
		return nil, DayFailed, fmt.Errorf("%w: %w", ErrFetchFailure, err)
	}
	return records, DayOK, nil
}

// bounded runs op with a deadline of d. A deadline hit while ctx is still
// live is reported as ErrPageLoadTimeout.
func bounded(ctx context.Context, d time.Duration, what string, op func(context.Context) error) error {
	if d <= 0 {
		return op(ctx)
	}
	opCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	err := op(opCtx)
	if err != nil && ctx.Err() == nil && opCtx.Err() != nil {
		return fmt.Errorf("%w: %s exceeded %s", ErrPageLoadTimeout, what, d)
	}
	return err
}

func (f *Fetcher) navigate(ctx context.Context, sess browser.Session, url string) error {
	return bounded(ctx, f.navigationTimeout, "navigation to "+url, func(ctx context.Context) error {
		return sess.Navigate(ctx, url)
	})
}

func (f *Fetcher) evaluate(ctx context.Context, sess browser.Session, script string, res any) error {
	return bounded(ctx, f.scriptTimeout, "script", func(ctx context.Context) error {
		return sess.Evaluate(ctx, script, res)
	})
}

func (f *Fetcher) html(ctx context.Context, sess browser.Session) (string, error) {
	var html string
	err := bounded(ctx, f.scriptTimeout, "reading page html", func(ctx context.Context) error {
		var err error
		html, err = sess.HTML(ctx)
		return err
	})
	return html, err
}

// failure keeps cancellation distinguishable from fetch errors
func (f *Fetcher) failure(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, ErrFetchFailure) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrFetchFailure, err)
}

// scrollToBottom scrolls until the page height stops changing, bounded by
// maxScrollAttempts
func (f *Fetcher) scrollToBottom(ctx context.Context, sess browser.Session) error {
	var last int64
	if err := f.evaluate(ctx, sess, scrollHeightJS, &last); err != nil {
		return err
	}

	stable := 0
	for attempt := 0; attempt < f.maxScrollAttempts; attempt++ {
		if err := f.evaluate(ctx, sess, scrollToBottomJS, nil); err != nil {
			return err
		}
		if err := sleep(ctx, f.scrollSettle); err != nil {
			return err
		}

		var height int64
		if err := f.evaluate(ctx, sess, scrollHeightJS, &height); err != nil {
			return err
		}
		if height == last {
			stable++
			if stable >= stableScrolls {
				return nil
			}
		} else {
			stable = 0
		}
		last = height
	}
	return nil
}
