// Package fancontrol runs the closed fan-control loop: sample sensors, aggregate,
// evaluate the curve, damp with hysteresis and command every fan channel, once per
// interval. It also implements the one-shot manual override.
package fancontrol

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mikesmitty/fanctl/pkg/curve"
	"github.com/mikesmitty/fanctl/pkg/hwmon"
	"github.com/mikesmitty/fanctl/pkg/hysteresis"
	"github.com/mikesmitty/fanctl/pkg/telemetry"
	"github.com/mikesmitty/fanctl/pkg/thermal"
	"github.com/mikesmitty/fanctl/pkg/watchdog"
)

var ErrInvalidArgument = errors.New("invalid argument")

type Config struct {
	Curve       curve.Cubic
	Hysteresis  int
	Interval    time.Duration
	MaxRawSpeed int

	// FailsafeAfter commands Curve.FanMax once no sensor could be read for this long.
	// Zero keeps holding the last speed indefinitely. The hysteresis state keeps the
	// speed from before the outage, so once sensors recover a candidate within
	// Hysteresis of it drops the fans straight back to that speed.
	FailsafeAfter time.Duration
}

// Probe supplies an auxiliary metric for telemetry, such as CPU usage.
type Probe interface {
	Read(ctx context.Context) (float64, error)
}

type Loop struct {
	cfg      Config
	sensors  []*hwmon.Sensor
	channels []*hwmon.Channel
	sink     telemetry.Sink
	probe    Probe
	clock    Clock

	filter   hysteresis.Filter
	state    *hysteresis.State
	watchdog *watchdog.Timer
}

type Option func(*Loop)

func WithClock(c Clock) Option {
	return func(l *Loop) {
		l.clock = c
	}
}

func WithProbe(p Probe) Option {
	return func(l *Loop) {
		l.probe = p
	}
}

func New(cfg Config, sensors []*hwmon.Sensor, channels []*hwmon.Channel, sink telemetry.Sink, opts ...Option) *Loop {
	l := &Loop{
		cfg:      cfg,
		sensors:  sensors,
		channels: channels,
		sink:     sink,
		clock:    SystemClock(),
		filter:   hysteresis.Filter{Threshold: cfg.Hysteresis},
		state:    hysteresis.NewState(cfg.Curve.FanMin),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.sink == nil {
		l.sink = telemetry.Multi{}
	}
	l.watchdog = watchdog.New(cfg.FailsafeAfter, l.clock.Now())
	return l
}

// State exposes the hysteresis state, mainly for inspection in tests.
func (l *Loop) State() hysteresis.State {
	return *l.state
}

// Initialize switches every usable channel to manual control. Failures are logged and
// the channel is still written to on every iteration.
func (l *Loop) Initialize() {
	for _, c := range l.channels {
		if c.Inert() {
			slog.Debug("skipping inert channel", "channel", c.Name, "module", "fancontrol")
			continue
		}
		if err := c.Initialize(); err != nil {
			slog.Error("channel initialization failed", "channel", c.Name, "error", err, "module", "fancontrol")
		}
	}
}

// Restore returns every usable channel to automatic control.
func (l *Loop) Restore() {
	for _, c := range l.channels {
		if c.Inert() {
			continue
		}
		if err := c.Restore(); err != nil {
			slog.Error("channel restore failed", "channel", c.Name, "error", err, "module", "fancontrol")
		}
	}
}

// Run initializes the channels and then iterates until ctx is cancelled. Failures
// inside an iteration never stop the loop.
func (l *Loop) Run(ctx context.Context) error {
	slog.Info("initializing fan channels", "channels", len(l.channels), "module", "fancontrol")
	l.Initialize()
	defer l.Restore()

	slog.Info("starting control loop", "interval", l.cfg.Interval, "module", "fancontrol")
	for {
		l.emit(l.Step(ctx))

		if err := l.clock.Sleep(ctx, l.cfg.Interval); err != nil {
			slog.Info("control loop stopped", "reason", err, "module", "fancontrol")
			return nil
		}
	}
}

// Step performs a single automatic-mode iteration and returns its telemetry record.
func (l *Loop) Step(ctx context.Context) telemetry.Record {
	now := l.clock.Now()
	rec := telemetry.Record{
		Time:    now,
		Mode:    telemetry.ModeAuto,
		Samples: make([]hwmon.Sample, 0, len(l.sensors)),
	}

	for _, s := range l.sensors {
		sample := s.Read()
		if !sample.Available {
			slog.Warn("sensor unavailable", "sensor", s.Name, "error", sample.Err, "module", "fancontrol")
		}
		rec.Samples = append(rec.Samples, sample)
	}

	speed := l.state.LastCommanded
	temp, err := thermal.Aggregate(rec.Samples)
	switch {
	case err == nil:
		l.watchdog.Feed(now)
		rec.ControlTemp = temp
		rec.ControlValid = true
		rec.Hottest = thermal.Hottest(rec.Samples)
		candidate := l.cfg.Curve.Speed(temp)
		speed = l.filter.Apply(candidate, l.state)
		slog.Debug("curve evaluated", "temp", temp, "candidate", candidate, "commanded", speed, "module", "fancontrol")
	case l.watchdog.Expired(now):
		rec.Err = err
		rec.Failsafe = true
		speed = l.cfg.Curve.FanMax
	default:
		rec.Err = err
	}

	rec.SpeedRaw = speed
	rec.SpeedPercent = telemetry.Percent(speed, l.cfg.MaxRawSpeed)
	rec.ChannelErrors, rec.ChannelMismatches = l.writeAll(speed)
	l.readProbe(ctx, &rec)
	return rec
}

// Manual writes percent of full speed to every channel once, bypassing sensors and
// hysteresis. An out-of-range percent is rejected before any channel is touched.
func (l *Loop) Manual(ctx context.Context, percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("manual speed %d%% not within 0-100: %w", percent, ErrInvalidArgument)
	}
	raw := percent * l.cfg.MaxRawSpeed / 100

	slog.Info("manual override", "percent", percent, "pwm", raw, "module", "fancontrol")
	l.Initialize()

	rec := telemetry.Record{
		Time:         l.clock.Now(),
		Mode:         telemetry.ModeManual,
		SpeedRaw:     raw,
		SpeedPercent: float64(percent),
	}
	rec.ChannelErrors, rec.ChannelMismatches = l.writeAll(raw)
	l.readProbe(ctx, &rec)
	l.emit(rec)
	return nil
}

// writeAll commands every usable channel and returns how many writes failed and how
// many channels reported a different value when read back. A failed channel does not
// stop the others.
func (l *Loop) writeAll(speed int) (failed, mismatched int) {
	for _, c := range l.channels {
		if c.Inert() {
			continue
		}
		err := c.Write(speed)
		switch {
		case err == nil:
			if !l.readBack(c, speed) {
				mismatched++
			}
		case errors.Is(err, hwmon.ErrActuatorMissing):
			failed++
			slog.Warn("channel not present", "channel", c.Name, "error", err, "module", "fancontrol")
		default:
			failed++
			slog.Error("channel write failed", "channel", c.Name, "error", err, "module", "fancontrol")
		}
	}
	return failed, mismatched
}

// readBack reports whether the channel holds the value just written. An unreadable
// value handle counts as matching.
func (l *Loop) readBack(c *hwmon.Channel, speed int) bool {
	got, err := c.Read()
	if err != nil {
		slog.Debug("channel read-back failed", "channel", c.Name, "error", err, "module", "fancontrol")
		return true
	}
	if got != speed {
		slog.Warn("channel reports a different speed than commanded", "channel", c.Name,
			"commanded", speed, "reported", got, "module", "fancontrol")
		return false
	}
	return true
}

func (l *Loop) readProbe(ctx context.Context, rec *telemetry.Record) {
	if l.probe == nil {
		return
	}
	v, err := l.probe.Read(ctx)
	if err != nil {
		slog.Debug("auxiliary probe failed", "error", err, "module", "fancontrol")
		return
	}
	rec.CPUUsage = v
	rec.CPUValid = true
}

func (l *Loop) emit(rec telemetry.Record) {
	if err := l.sink.Emit(rec); err != nil {
		slog.Error("telemetry sink failed", "error", err, "module", "fancontrol")
	}
}
