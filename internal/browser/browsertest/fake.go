// Package browsertest provides in-memory browser sessions for tests.
package browsertest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-scripts/econcal/internal/browser"
)

const blankPage = "<html><head></head><body></body></html>"

// Session serves canned HTML per URL. A page is considered ready when its
// HTML contains ReadyMarker.
type Session struct {
	Pages       map[string]string
	NavigateErr map[string]error
	// Heights is returned, in order, for scripts decoding into *int64. The
	// last value repeats once exhausted.
	Heights     []int64
	ReadyMarker string
	// OnNavigate, when set, runs before every navigation
	OnNavigate func(url string)
	// Stall lists URLs whose navigation never completes; Navigate blocks
	// until its context is done
	Stall map[string]bool

	mu          sync.Mutex
	current     string
	heightIdx   int
	closed      bool
	navigations []string
	scripts     []string
}

// NewSession creates a session serving pages keyed by URL
func NewSession(pages map[string]string) *Session {
	return &Session{
		Pages:       pages,
		NavigateErr: map[string]error{},
		Stall:       map[string]bool{},
		ReadyMarker: "calendar__row",
	}
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.OnNavigate != nil {
		s.OnNavigate(url)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("session closed")
	}
	s.navigations = append(s.navigations, url)
	stall := s.Stall[url]
	s.mu.Unlock()

	if stall {
		<-ctx.Done()
		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.NavigateErr[url]; err != nil {
		return err
	}
	s.current = url
	return nil
}

func (s *Session) WaitForSelector(ctx context.Context, _ string, _ time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Contains(s.page(), s.ReadyMarker), nil
}

func (s *Session) Evaluate(ctx context.Context, script string, res any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts = append(s.scripts, script)

	switch v := res.(type) {
	case *int64:
		*v = s.nextHeight()
	case *bool:
		*v = false
	}
	return nil
}

func (s *Session) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page(), nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Navigations returns the URLs visited, in order
func (s *Session) Navigations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.navigations...)
}

// HeightReads returns how many times a page height was read
func (s *Session) HeightReads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heightIdx
}

func (s *Session) page() string {
	if html, ok := s.Pages[s.current]; ok {
		return html
	}
	return blankPage
}

func (s *Session) nextHeight() int64 {
	if len(s.Heights) == 0 {
		s.heightIdx++
		return 1000
	}
	i := s.heightIdx
	if i >= len(s.Heights) {
		i = len(s.Heights) - 1
	}
	s.heightIdx++
	return s.Heights[i]
}

// Launcher hands out sessions built by NewSession
type Launcher struct {
	NewSession func() *Session
	// Err, when set, fails every launch
	Err   error
	Delay time.Duration

	mu        sync.Mutex
	sessions  []*Session
	active    atomic.Int32
	maxActive atomic.Int32
}

// NewLauncher creates a launcher whose sessions all serve pages
func NewLauncher(pages map[string]string) *Launcher {
	return &Launcher{NewSession: func() *Session { return NewSession(pages) }}
}

func (l *Launcher) Launch(ctx context.Context) (browser.Session, error) {
	n := l.active.Add(1)
	defer l.active.Add(-1)
	for {
		prev := l.maxActive.Load()
		if n <= prev || l.maxActive.CompareAndSwap(prev, n) {
			break
		}
	}

	if l.Delay > 0 {
		select {
		case <-time.After(l.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if l.Err != nil {
		return nil, l.Err
	}

	s := l.NewSession()
	l.mu.Lock()
	l.sessions = append(l.sessions, s)
	l.mu.Unlock()
	return s, nil
}

// Sessions returns every session launched so far
func (l *Launcher) Sessions() []*Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Session(nil), l.sessions...)
}

// MaxConcurrentLaunches is the highest number of overlapping Launch calls seen
func (l *Launcher) MaxConcurrentLaunches() int {
	return int(l.maxActive.Load())
}
