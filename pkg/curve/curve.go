package curve

import (
	"fmt"
	"math"
)

// Cubic maps a control temperature onto a raw fan speed. It stays close to FanMin just
// above TempMin and climbs steeply towards FanMax near TempMax.
type Cubic struct {
	TempMin float64
	TempMax float64
	FanMin  int
	FanMax  int
}

func New(tempMin, tempMax float64, fanMin, fanMax int) (Cubic, error) {
	if !(tempMin < tempMax) {
		return Cubic{}, fmt.Errorf("temperature range is empty: min %.1f, max %.1f", tempMin, tempMax)
	}
	if fanMin < 0 || fanMin > fanMax {
		return Cubic{}, fmt.Errorf("fan speed range is invalid: min %d, max %d", fanMin, fanMax)
	}
	return Cubic{
		TempMin: tempMin,
		TempMax: tempMax,
		FanMin:  fanMin,
		FanMax:  fanMax,
	}, nil
}

func (c Cubic) Speed(temp float64) int {
	if temp <= c.TempMin {
		return c.FanMin
	}
	if temp >= c.TempMax {
		return c.FanMax
	}

	// float64 throughout: with integer division the ratio below floors to zero across
	// most of the range.
	ratio := math.Pow(temp-c.TempMin, 3) / math.Pow(c.TempMax-c.TempMin, 3)
	speed := float64(c.FanMin) + ratio*float64(c.FanMax-c.FanMin)

	return min(int(speed), c.FanMax)
}
