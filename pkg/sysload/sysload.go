// Package sysload samples host CPU utilisation, the auxiliary metric recorded next to
// temperatures and fan speed.
package sysload

import (
	"context"
	"errors"

	"github.com/shirou/gopsutil/v4/cpu"
)

var errNoCPUData = errors.New("no cpu usage reported")

// CPU reports whole-system CPU usage in percent since the previous Read.
type CPU struct {
	percent func(ctx context.Context) ([]float64, error)
}

func NewCPU() *CPU {
	return &CPU{
		percent: func(ctx context.Context) ([]float64, error) {
			return cpu.PercentWithContext(ctx, 0, false)
		},
	}
}

func (c *CPU) Read(ctx context.Context) (float64, error) {
	values, err := c.percent(ctx)
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, errNoCPUData
	}
	return values[0], nil
}
