package hysteresis

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilterApply(t *testing.T) {
	f := Filter{Threshold: 5}
	s := NewState(100)

	tests := []struct {
		name      string
		candidate int
		want      int
	}{
		{name: "small rise held", candidate: 103, want: 100},
		{name: "equal to threshold held", candidate: 105, want: 100},
		{name: "rise adopted", candidate: 106, want: 106},
		{name: "small drop held", candidate: 102, want: 106},
		{name: "drop adopted", candidate: 90, want: 90},
		{name: "same held", candidate: 90, want: 90},
	}

	// cases share state on purpose: each step depends on the previous commit
	for _, tt := range tests {
		got := f.Apply(tt.candidate, s)
		require.Equal(t, tt.want, got, tt.name)
		require.Equal(t, tt.want, s.LastCommanded, tt.name)
	}
}

func TestFilterZeroThreshold(t *testing.T) {
	f := Filter{}
	s := NewState(20)
	require.Equal(t, 21, f.Apply(21, s))
	require.Equal(t, 21, f.Apply(21, s))
}
