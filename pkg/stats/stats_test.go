package stats

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWindow(t *testing.T) {
	w := NewWindow(3)
	require.Zero(t, w.Mean())
	require.Zero(t, w.Max())
	require.Zero(t, w.StdDev())

	w.Add(2)
	w.Add(4)
	require.Equal(t, 2, w.Len())
	require.InDelta(t, 3, w.Mean(), 1e-9)
	require.Equal(t, 4.0, w.Max())

	w.Add(6)
	w.Add(8)
	// 2 dropped out of the window
	require.Equal(t, 3, w.Len())
	require.InDelta(t, 6, w.Mean(), 1e-9)
	require.Equal(t, 8.0, w.Max())
	require.InDelta(t, 2, w.StdDev(), 1e-9)

	w.Reset()
	require.Zero(t, w.Len())
}
