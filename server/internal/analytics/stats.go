package analytics

import (
	"errors"
	"math"
)

var (
	// ErrEmptySeries is returned by Mean for an empty input.
	ErrEmptySeries = errors.New("analytics: empty series")

	// ErrDegenerateTrend is returned by TrendSlope when fewer than two points
	// are supplied and the slope is undefined.
	ErrDegenerateTrend = errors.New("analytics: trend needs at least 2 points")
)

// Mean returns the arithmetic mean of values.
func Mean(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrEmptySeries
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), nil
}

// StdDev returns the population standard deviation (divide by N) of values
// around the caller-supplied mean. An empty series has zero deviation.
func StdDev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)))
}

// TrendSlope returns the least-squares slope of values[i] against i.
//
// The index is the x-axis: points are assumed to be equally spaced regardless
// of their real timestamps.
//
//	slope = (N·Σxy − Σx·Σy) / (N·Σx² − (Σx)²)
func TrendSlope(values []float64) (float64, error) {
	n := len(values)
	if n < 2 {
		return 0, ErrDegenerateTrend
	}
	var sx, sy, sxy, sx2 float64
	for i, y := range values {
		x := float64(i)
		sx += x
		sy += y
		sxy += x * y
		sx2 += x * x
	}
	nf := float64(n)
	return (nf*sxy - sx*sy) / (nf*sx2 - sx*sx), nil
}
