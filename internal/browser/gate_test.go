package browser_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-scripts/econcal/internal/browser"
	"github.com/go-scripts/econcal/internal/browser/browsertest"
)

func TestInitGateSerialisesLaunches(t *testing.T) {
	gate := browser.NewInitGate()
	launcher := browsertest.NewLauncher(nil)
	launcher.Delay = 10 * time.Millisecond

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := gate.Do(context.Background(), func(ctx context.Context) error {
				_, err := launcher.Launch(ctx)
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, launcher.MaxConcurrentLaunches())
	assert.Len(t, launcher.Sessions(), 6)
}

func TestInitGateReturnsFnError(t *testing.T) {
	gate := browser.NewInitGate()
	boom := errors.New("boom")

	err := gate.Do(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	// the gate is released after a failure
	err = gate.Do(context.Background(), func(context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestInitGateHonoursCancellation(t *testing.T) {
	gate := browser.NewInitGate()
	held := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = gate.Do(context.Background(), func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	called := false
	err := gate.Do(ctx, func(context.Context) error {
		called = true
		return nil
	})
	close(release)

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called)
}
