// Package thermal combines several temperature samples into the single control
// temperature that drives the fan curve.
package thermal

import (
	"errors"

	"github.com/mikesmitty/fanctl/pkg/hwmon"
	"gonum.org/v1/gonum/floats"
)

var ErrNoSensorData = errors.New("no sensor data")

// Aggregate returns the hottest available reading. Unavailable samples are left out
// rather than counted as zero, so a sensor that cannot be read never looks cold.
func Aggregate(samples []hwmon.Sample) (float64, error) {
	values := make([]float64, 0, len(samples))
	for _, s := range samples {
		if s.Available {
			values = append(values, s.Celsius)
		}
	}
	if len(values) == 0 {
		return 0, ErrNoSensorData
	}
	return floats.Max(values), nil
}

// Hottest names the source of the maximum available reading, or "" if there is none.
func Hottest(samples []hwmon.Sample) string {
	names := make([]string, 0, len(samples))
	values := make([]float64, 0, len(samples))
	for _, s := range samples {
		if s.Available {
			names = append(names, s.Source)
			values = append(values, s.Celsius)
		}
	}
	if len(values) == 0 {
		return ""
	}
	return names[floats.MaxIdx(values)]
}
