package telemetry

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/mikesmitty/fanctl/pkg/hwmon"
	"github.com/stretchr/testify/require"
)

type sinkFunc func(Record) error

func (f sinkFunc) Emit(r Record) error {
	return f(r)
}

func TestMultiEmitsToEverySink(t *testing.T) {
	var got []string
	errBroken := errors.New("broken")

	m := Multi{
		sinkFunc(func(Record) error { got = append(got, "a"); return errBroken }),
		sinkFunc(func(Record) error { got = append(got, "b"); return nil }),
	}

	err := m.Emit(Record{})
	require.ErrorIs(t, err, errBroken)
	require.Equal(t, []string{"a", "b"}, got)
}

func TestPercent(t *testing.T) {
	require.InDelta(t, 100, Percent(255, 255), 1e-9)
	require.InDelta(t, 49.8, Percent(127, 255), 0.01)
	require.Zero(t, Percent(127, 0))
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := LogSink{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	err := sink.Emit(Record{
		Time: time.Now(),
		Mode: ModeAuto,
		Samples: []hwmon.Sample{
			{Source: "CPU", Celsius: 45, Available: true},
			{Source: "PECI"},
		},
		ControlTemp:  45,
		ControlValid: true,
		Hottest:      "CPU",
		SpeedRaw:     20,
		SpeedPercent: 7.8,
	})
	require.NoError(t, err)

	line := buf.String()
	require.Contains(t, line, "level=INFO")
	require.Contains(t, line, "CPU=45.0")
	require.Contains(t, line, "PECI=n/a")
	require.Contains(t, line, "pwm=20")

	buf.Reset()
	require.NoError(t, sink.Emit(Record{Mode: ModeAuto, Err: errors.New("no sensor data")}))
	require.Contains(t, buf.String(), "level=WARN")
	require.Contains(t, buf.String(), "holding fan speed")
}

func TestSummaryResetsEveryWindow(t *testing.T) {
	s := NewSummary(3)

	for _, temp := range []float64{50, 60, 70} {
		require.NoError(t, s.Emit(Record{ControlTemp: temp, ControlValid: true, SpeedPercent: temp}))
	}
	require.Zero(t, s.temp.Len())

	require.NoError(t, s.Emit(Record{ControlTemp: 55, ControlValid: true, SpeedPercent: 30}))
	require.NoError(t, s.Emit(Record{SpeedPercent: 30}))
	require.Equal(t, 1, s.temp.Len())
	require.Equal(t, 2, s.speed.Len())
	require.Equal(t, 55.0, s.temp.Max())
}
