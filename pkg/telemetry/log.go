package telemetry

import (
	"log/slog"
	"strconv"
)

// LogSink writes one structured line per record.
type LogSink struct {
	Logger *slog.Logger
}

func (l LogSink) Emit(r Record) error {
	log := l.Logger
	if log == nil {
		log = slog.Default()
	}

	attrs := make([]any, 0, 2*len(r.Samples)+14)
	attrs = append(attrs, "mode", r.Mode)
	for _, s := range r.Samples {
		value := "n/a"
		if s.Available {
			value = strconv.FormatFloat(s.Celsius, 'f', 1, 64)
		}
		attrs = append(attrs, s.Source, value)
	}
	if r.ControlValid {
		attrs = append(attrs, "control", strconv.FormatFloat(r.ControlTemp, 'f', 1, 64), "hottest", r.Hottest)
	}
	attrs = append(attrs,
		"pwm", r.SpeedRaw,
		"percent", strconv.FormatFloat(r.SpeedPercent, 'f', 1, 64),
	)
	if r.CPUValid {
		attrs = append(attrs, "cpu", strconv.FormatFloat(r.CPUUsage, 'f', 1, 64))
	}
	if r.ChannelErrors > 0 {
		attrs = append(attrs, "channelErrors", r.ChannelErrors)
	}
	if r.ChannelMismatches > 0 {
		attrs = append(attrs, "channelMismatches", r.ChannelMismatches)
	}

	switch {
	case r.Failsafe:
		log.Warn("fail-safe speed commanded", append(attrs, "error", r.Err)...)
	case r.Err != nil:
		log.Warn("holding fan speed", append(attrs, "error", r.Err)...)
	default:
		log.Info("fan speed", attrs...)
	}
	return nil
}
