package curve

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCubicSpeed(t *testing.T) {
	c, err := New(50, 75, 20, 255)
	require.NoError(t, err)

	tests := []struct {
		name string
		temp float64
		want int
	}{
		{name: "well below", temp: 20, want: 20},
		{name: "at min", temp: 50, want: 20},
		{name: "one degree up", temp: 51, want: 20},
		{name: "five degrees up", temp: 55, want: 21},
		{name: "midpoint", temp: 62.5, want: 49},
		{name: "seventy", temp: 70, want: 140},
		{name: "at max", temp: 75, want: 255},
		{name: "above max", temp: 90, want: 255},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, c.Speed(tt.temp))
		})
	}
}

func TestCubicConcave(t *testing.T) {
	c, err := New(50, 75, 20, 255)
	require.NoError(t, err)

	mid := c.Speed(62.5)
	linear := 20 + (255-20)/2
	require.Greater(t, mid, 20)
	require.Less(t, mid, 255)
	require.Less(t, mid, linear)
}

func TestCubicMonotonic(t *testing.T) {
	c, err := New(50, 75, 20, 255)
	require.NoError(t, err)

	prev := c.Speed(40)
	for temp := 40.0; temp <= 85; temp += 0.1 {
		got := c.Speed(temp)
		require.GreaterOrEqual(t, got, prev, "temp %.1f", temp)
		require.GreaterOrEqual(t, got, 20)
		require.LessOrEqual(t, got, 255)
		prev = got
	}
}

func TestCubicWideRangeKeepsPrecision(t *testing.T) {
	c, err := New(0, 1000, 0, 255000)
	require.NoError(t, err)

	// (100/1000)^3 * 255000 = 255, far above what integer truncation would yield
	require.Equal(t, 255, c.Speed(100))
}

func TestNewRejectsInvalidRanges(t *testing.T) {
	_, err := New(75, 50, 20, 255)
	require.Error(t, err)
	_, err = New(50, 50, 20, 255)
	require.Error(t, err)
	_, err = New(50, 75, 200, 100)
	require.Error(t, err)
	_, err = New(50, 75, -1, 100)
	require.Error(t, err)
	_, err = New(50, 75, 100, 100)
	require.NoError(t, err)
}
