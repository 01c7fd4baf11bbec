package features

import (
	"fmt"
	"math"
)

// Bands holds one Bollinger band computation.
type Bands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"` // simple moving average
	Lower  float64 `json:"lower"`
}

// Bollinger computes Bollinger bands over the trailing period of closes.
//
// Method:
//  1. SMA over the last `period` closes.
//  2. Population standard deviation over the same window.
//  3. upper/lower = SMA ± k*σ
//
// Returns an error when fewer than `period` closes are available
// (cold start: callers skip band-based checks until warm).
func Bollinger(closes []float64, period int, k float64) (Bands, error) {
	if period < 2 {
		return Bands{}, fmt.Errorf("bollinger: period must be >= 2, got %d", period)
	}
	if len(closes) < period {
		return Bands{}, fmt.Errorf("bollinger: need %d closes, have %d", period, len(closes))
	}

	window := closes[len(closes)-period:]

	var sum float64
	for _, c := range window {
		sum += c
	}
	sma := sum / float64(period)

	var sqDiff float64
	for _, c := range window {
		d := c - sma
		sqDiff += d * d
	}
	sigma := math.Sqrt(sqDiff / float64(period))

	return Bands{
		Upper:  sma + k*sigma,
		Middle: sma,
		Lower:  sma - k*sigma,
	}, nil
}
