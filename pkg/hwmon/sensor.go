// Package hwmon reads temperature inputs and drives PWM fan channels exposed as
// files by the Linux hardware-monitoring subsystem.
package hwmon

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"periph.io/x/conn/v3/physic"
)

// DefaultScale converts hwmon temp*_input millidegrees to degrees.
const DefaultScale = 1000

var ErrSensorUnavailable = errors.New("sensor unavailable")

// Sample is one temperature source's reading for an iteration. A sample that is not
// Available carries no temperature, which is not the same as a reading of zero.
type Sample struct {
	Source    string
	Celsius   float64
	Available bool
	Err       error
}

type Sensor struct {
	Name  string
	Path  string
	Scale int64
	fs    afero.Fs
}

func NewSensor(fs afero.Fs, name, path string, scale int64) *Sensor {
	if scale <= 0 {
		scale = DefaultScale
	}
	return &Sensor{
		Name:  name,
		Path:  path,
		Scale: scale,
		fs:    fs,
	}
}

// Read samples the sensor. Errors never escape: they are reported on the Sample.
func (s *Sensor) Read() Sample {
	sample := Sample{Source: s.Name}

	if s.Path == "" {
		sample.Err = fmt.Errorf("%s: no path configured: %w", s.Name, ErrSensorUnavailable)
		return sample
	}

	data, err := afero.ReadFile(s.fs, s.Path)
	if err != nil {
		sample.Err = fmt.Errorf("%s: %w: %v", s.Name, ErrSensorUnavailable, err)
		return sample
	}

	raw, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		sample.Err = fmt.Errorf("%s: malformed reading %q: %w", s.Name, strings.TrimSpace(string(data)), ErrSensorUnavailable)
		return sample
	}

	t := physic.ZeroCelsius + physic.Temperature(raw)*physic.Kelvin/physic.Temperature(s.Scale)
	sample.Celsius = t.Celsius()
	sample.Available = true
	return sample
}
