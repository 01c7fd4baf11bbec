package features

// CandleChangePct returns the intra-candle percentage move of the most
// recent candle: (close - open) / open * 100.
//
// This is the fine-grained momentum figure used as a secondary confirmation
// gate, independent of the scanner's 24h ticker change. Returns 0 when the
// open is zero (dead market data).
func CandleChangePct(open, close float64) float64 {
	if open == 0 {
		return 0
	}
	return (close - open) / open * 100
}

// SpikeRatio returns current volume divided by the mean of the trailing
// volumes. A zero or empty trailing mean yields 0, never a division error:
// a market with no baseline volume has no meaningful spike.
func SpikeRatio(current float64, trailing []float64) float64 {
	if len(trailing) == 0 {
		return 0
	}
	var sum float64
	for _, v := range trailing {
		sum += v
	}
	mean := sum / float64(len(trailing))
	if mean <= 0 {
		return 0
	}
	return current / mean
}
