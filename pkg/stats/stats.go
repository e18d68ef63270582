package stats

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Window holds the most recent size values of a series.
type Window struct {
	size   int
	values []float64
}

func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{
		size:   size,
		values: make([]float64, 0, size),
	}
}

func (w *Window) Add(value float64) {
	if len(w.values) == w.size {
		w.values = append(w.values[1:], value)
		return
	}
	w.values = append(w.values, value)
}

func (w *Window) Len() int {
	return len(w.values)
}

func (w *Window) Mean() float64 {
	if len(w.values) == 0 {
		return 0
	}
	return stat.Mean(w.values, nil)
}

func (w *Window) Max() float64 {
	if len(w.values) == 0 {
		return 0
	}
	return floats.Max(w.values)
}

func (w *Window) StdDev() float64 {
	if len(w.values) < 2 {
		return 0
	}
	return stat.StdDev(w.values, nil)
}

func (w *Window) Reset() {
	w.values = w.values[:0]
}
