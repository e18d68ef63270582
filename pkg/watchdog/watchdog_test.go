package watchdog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimer(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	w := New(30*time.Second, start)

	require.False(t, w.Expired(start.Add(29*time.Second)))
	require.True(t, w.Expired(start.Add(30*time.Second)))
	require.True(t, w.Expired(start.Add(time.Minute)))

	w.Feed(start.Add(time.Minute))
	require.False(t, w.Expired(start.Add(time.Minute+10*time.Second)))
}

func TestTimerDisabled(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	w := New(0, start)
	require.False(t, w.Expired(start.Add(24*time.Hour)))
}
