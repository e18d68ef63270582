package thermal

import (
	"testing"

	"github.com/mikesmitty/fanctl/pkg/hwmon"
	"github.com/stretchr/testify/require"
)

func TestAggregate(t *testing.T) {
	tests := []struct {
		name    string
		samples []hwmon.Sample
		want    float64
		hottest string
		err     error
	}{
		{
			name: "max of available",
			samples: []hwmon.Sample{
				{Source: "CPU", Celsius: 45, Available: true},
				{Source: "System", Celsius: 50, Available: true},
				{Source: "Aux", Err: hwmon.ErrSensorUnavailable},
			},
			want:    50,
			hottest: "System",
		},
		{
			name: "unavailable is not zero",
			samples: []hwmon.Sample{
				{Source: "CPU", Celsius: -10, Available: true},
				{Source: "Aux", Err: hwmon.ErrSensorUnavailable},
			},
			want:    -10,
			hottest: "CPU",
		},
		{
			name: "all unavailable",
			samples: []hwmon.Sample{
				{Source: "CPU", Err: hwmon.ErrSensorUnavailable},
				{Source: "System", Err: hwmon.ErrSensorUnavailable},
			},
			err: ErrNoSensorData,
		},
		{
			name: "no sensors",
			err:  ErrNoSensorData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Aggregate(tt.samples)
			require.Equal(t, tt.hottest, Hottest(tt.samples))
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
