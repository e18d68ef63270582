// Package telemetry defines the record produced by every control-loop iteration and
// the sinks that consume it.
package telemetry

import (
	"errors"
	"time"

	"github.com/mikesmitty/fanctl/pkg/hwmon"
)

const (
	ModeAuto   = "auto"
	ModeManual = "manual"
)

type Record struct {
	Time time.Time
	Mode string

	Samples []hwmon.Sample

	// ControlTemp is only meaningful when ControlValid is set.
	ControlTemp  float64
	ControlValid bool
	Hottest      string

	SpeedRaw     int
	SpeedPercent float64

	CPUUsage float64
	CPUValid bool

	// Failsafe is set when the speed was forced to maximum after a prolonged
	// absence of sensor data.
	Failsafe bool

	// Err holds the iteration's aggregation failure, if any.
	Err           error
	ChannelErrors int
	// ChannelMismatches counts channels whose value read back differs from SpeedRaw.
	ChannelMismatches int
}

type Sink interface {
	Emit(Record) error
}

type Multi []Sink

// Emit hands the record to every sink, even after a failure.
func (m Multi) Emit(r Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Percent converts a raw speed into a percentage of maxRaw.
func Percent(raw, maxRaw int) float64 {
	if maxRaw <= 0 {
		return 0
	}
	return float64(raw) * 100 / float64(maxRaw)
}
