package telemetry

import (
	"log/slog"
	"strconv"

	"github.com/mikesmitty/fanctl/pkg/stats"
)

// Summary logs rolling averages and peaks every Every records.
type Summary struct {
	Every int

	count int
	temp  *stats.Window
	speed *stats.Window
	cpu   *stats.Window
}

func NewSummary(every int) *Summary {
	if every < 1 {
		every = 1
	}
	return &Summary{
		Every: every,
		temp:  stats.NewWindow(every),
		speed: stats.NewWindow(every),
		cpu:   stats.NewWindow(every),
	}
}

func (s *Summary) Emit(r Record) error {
	if r.ControlValid {
		s.temp.Add(r.ControlTemp)
	}
	s.speed.Add(r.SpeedPercent)
	if r.CPUValid {
		s.cpu.Add(r.CPUUsage)
	}

	s.count++
	if s.count%s.Every != 0 {
		return nil
	}
	s.count = 0

	slog.Info("summary",
		"records", s.Every,
		"tempAvg", format(s.temp.Mean()), "tempMax", format(s.temp.Max()), "tempStdDev", format(s.temp.StdDev()),
		"speedAvg", format(s.speed.Mean()), "speedMax", format(s.speed.Max()),
		"cpuAvg", format(s.cpu.Mean()), "cpuMax", format(s.cpu.Max()),
		"module", "telemetry",
	)
	s.temp.Reset()
	s.speed.Reset()
	s.cpu.Reset()
	return nil
}

func format(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
