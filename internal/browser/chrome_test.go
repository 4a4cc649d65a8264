package browser

import (
	"context"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-scripts/econcal/pkg/common"
)

// requireChrome skips tests that need a local Chrome unless explicitly enabled
func requireChrome(t *testing.T) {
	t.Helper()
	if os.Getenv("ECONCAL_CHROME_TESTS") == "" {
		t.Skip("set ECONCAL_CHROME_TESTS=1 to run against a local Chrome")
	}
}

func dataURL(html string) string {
	return "data:text/html," + url.PathEscape(html)
}

func TestAllocatorOptions(t *testing.T) {
	cfg := common.DefaultConfiguration()
	base := len(NewChromeLauncher(cfg).allocatorOptions())

	cfg.UserAgent = "econcal-test"
	cfg.ChromePath = "/usr/bin/chromium"
	assert.Equal(t, base+2, len(NewChromeLauncher(cfg).allocatorOptions()))
}

func TestChromeLauncherCarriesTimeouts(t *testing.T) {
	cfg := common.DefaultConfiguration()
	cfg.NavigationTimeout = 7 * time.Second
	cfg.ScriptTimeout = 3 * time.Second

	l := NewChromeLauncher(cfg)
	assert.Equal(t, 7*time.Second, l.navTimeout)
	assert.Equal(t, 3*time.Second, l.scriptTimeout)
}

func TestChromeSession(t *testing.T) {
	requireChrome(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sess, err := NewChromeLauncher(common.DefaultConfiguration()).Launch(ctx)
	require.NoError(t, err)
	defer sess.Close()

	page := `<html><body><table class="calendar__table"><tr class="calendar__row"><td>x</td></tr></table></body></html>`
	require.NoError(t, sess.Navigate(ctx, dataURL(page)))

	t.Run("selector present", func(t *testing.T) {
		ok, err := sess.WaitForSelector(ctx, "table.calendar__table tr.calendar__row", 2*time.Second)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("selector missing times out without error", func(t *testing.T) {
		ok, err := sess.WaitForSelector(ctx, "div.never-there", 300*time.Millisecond)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("evaluate", func(t *testing.T) {
		var height int64
		require.NoError(t, sess.Evaluate(ctx, `document.body.scrollHeight`, &height))
		assert.Greater(t, height, int64(0))
	})

	t.Run("html snapshot", func(t *testing.T) {
		html, err := sess.HTML(ctx)
		require.NoError(t, err)
		assert.True(t, strings.Contains(html, "calendar__row"))
	})
}
