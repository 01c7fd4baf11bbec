package scanner

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/tidewatch-trading/tidewatch/internal/features"
	"github.com/tidewatch-trading/tidewatch/internal/market"
)

// ---------------------------------------------------------------------------
// Futures Market Scanner — detects volume spikes and price momentum across
// the USDT-M perpetual universe and emits ranked opportunities
// ---------------------------------------------------------------------------

// Config configures the market scanner.
type Config struct {
	// Most-recent-interval volume must exceed this multiple of the trailing
	// average to count as a spike.
	VolumeSpikeMultiplier float64 `yaml:"volume_spike_multiplier"`

	// Absolute ticker percentage change needed to count as momentum.
	PriceChangeThreshold float64 `yaml:"price_change_threshold"`

	// Minimum quote-currency volume for the most recent interval. Thin
	// markets below this floor are noise regardless of their spike ratio.
	MinVolumeUSD float64 `yaml:"min_volume_usd"`

	// Candle interval and lookback used for the volume baseline.
	CandleInterval string `yaml:"candle_interval"`
	CandleLookback int    `yaml:"candle_lookback"`
}

// DefaultConfig returns the production noise-reduction thresholds.
func DefaultConfig() Config {
	return Config{
		VolumeSpikeMultiplier: 5.0,
		PriceChangeThreshold:  4.0,
		MinVolumeUSD:          100_000,
		CandleInterval:        "5m",
		CandleLookback:        12,
	}
}

// Opportunity is a symbol flagged by a volume or price anomaly in one scan
// cycle. Immutable once created.
type Opportunity struct {
	Symbol         string    `json:"symbol"`
	BaseAsset      string    `json:"base_asset"`
	Price          float64   `json:"price"`
	PriceChangePct float64   `json:"price_change_pct"` // ticker percentage change
	Volume         float64   `json:"volume"`           // most recent interval, base units
	VolumeUSD      float64   `json:"volume_usd"`       // most recent interval, quote units
	AvgVolume      float64   `json:"avg_volume"`       // trailing average, base units
	SpikeRatio     float64   `json:"spike_ratio"`
	TriggerReason  string    `json:"trigger_reason"`
	TokenAddress   string    `json:"token_address,omitempty"`
	Chain          string    `json:"chain,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// IsVolumeSpike reports whether the volume trigger fired.
func (o Opportunity) IsVolumeSpike(multiplier float64) bool {
	return o.SpikeRatio >= multiplier
}

// AddressHint pre-resolves a base asset to a known contract address so that
// downstream inspection can skip the lookup round trip. Returns ok=false
// when the asset is not in the static table.
type AddressHint func(baseAsset string) (address, chain string, ok bool)

// Scanner evaluates a symbol universe against volume and momentum filters.
type Scanner struct {
	config Config
	feed   market.Feed
	hint   AddressHint

	symbolsScanned     atomic.Int64
	opportunitiesFound atomic.Int64
	evalFailures       atomic.Int64
}

// New creates a market scanner. hint may be nil.
func New(config Config, feed market.Feed, hint AddressHint) *Scanner {
	return &Scanner{config: config, feed: feed, hint: hint}
}

// Scan concurrently evaluates all symbols, bounded by maxConcurrent
// simultaneous in-flight evaluations. Per-symbol failures are isolated and
// discarded. Survivors are returned sorted descending by spike ratio;
// equal ratios keep their input order.
func (s *Scanner) Scan(ctx context.Context, symbols []market.SymbolInfo, maxConcurrent int) []Opportunity {
	if len(symbols) == 0 {
		log.Warn().Msg("scanner: no symbols to scan")
		return nil
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	log.Info().Int("symbols", len(symbols)).Int("max_concurrent", maxConcurrent).
		Msg("scanner: starting scan")

	sem := semaphore.NewWeighted(int64(maxConcurrent))
	results := make([]*Opportunity, len(symbols))

	var wg sync.WaitGroup
	for i, sym := range symbols {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(idx int, sym market.SymbolInfo) {
			defer wg.Done()
			defer sem.Release(1)

			opp, err := s.evaluate(ctx, sym)
			if err != nil {
				s.evalFailures.Add(1)
				log.Debug().Err(err).Str("symbol", sym.Symbol).Msg("scanner: evaluation failed")
				return
			}
			results[idx] = opp
		}(i, sym)
	}
	wg.Wait()

	// Collect in input order so the later stable sort has a defined
	// tie-break: original fetch order.
	opportunities := make([]Opportunity, 0, 16)
	for _, r := range results {
		if r != nil {
			opportunities = append(opportunities, *r)
		}
	}

	sort.SliceStable(opportunities, func(i, j int) bool {
		return opportunities[i].SpikeRatio > opportunities[j].SpikeRatio
	})

	s.opportunitiesFound.Add(int64(len(opportunities)))
	log.Info().Int("found", len(opportunities)).Msg("scanner: scan complete")
	return opportunities
}

// evaluate runs the filter chain for one symbol. A nil, nil return means the
// symbol was rejected; an error means the evaluation itself failed.
func (s *Scanner) evaluate(ctx context.Context, sym market.SymbolInfo) (*Opportunity, error) {
	s.symbolsScanned.Add(1)

	candles, err := s.feed.Candles(ctx, sym.Symbol, s.config.CandleInterval, s.config.CandleLookback)
	if err != nil {
		return nil, fmt.Errorf("candles: %w", err)
	}
	if len(candles) < 2 {
		return nil, nil
	}

	ticker, err := s.feed.Ticker(ctx, sym.Symbol)
	if err != nil {
		return nil, fmt.Errorf("ticker: %w", err)
	}

	current := candles[len(candles)-1].Volume
	trailing := make([]float64, 0, len(candles)-1)
	for _, c := range candles[:len(candles)-1] {
		trailing = append(trailing, c.Volume)
	}
	ratio := features.SpikeRatio(current, trailing)

	var avgVolume float64
	for _, v := range trailing {
		avgVolume += v
	}
	avgVolume /= float64(len(trailing))

	price := ticker.LastPrice
	changePct := ticker.ChangePct

	var volumeUSD float64
	if price > 0 {
		volumeUSD = current * price
	}

	// Filter: minimum quote volume (noise reduction).
	if volumeUSD < s.config.MinVolumeUSD {
		return nil, nil
	}

	isSpike := ratio >= s.config.VolumeSpikeMultiplier
	isMomentum := math.Abs(changePct) >= s.config.PriceChangeThreshold
	if !isSpike && !isMomentum {
		return nil, nil
	}

	var triggers []string
	if isSpike {
		triggers = append(triggers, fmt.Sprintf("volume spike %.1fx", ratio))
	}
	if isMomentum {
		triggers = append(triggers, fmt.Sprintf("price move %+.2f%%", changePct))
	}

	opp := &Opportunity{
		Symbol:         sym.Symbol,
		BaseAsset:      sym.BaseAsset,
		Price:          price,
		PriceChangePct: changePct,
		Volume:         current,
		VolumeUSD:      volumeUSD,
		AvgVolume:      avgVolume,
		SpikeRatio:     ratio,
		TriggerReason:  strings.Join(triggers, " | "),
		CreatedAt:      time.Now(),
	}

	if s.hint != nil {
		if addr, chain, ok := s.hint(sym.BaseAsset); ok {
			opp.TokenAddress = addr
			opp.Chain = chain
		}
	}

	log.Debug().
		Str("symbol", sym.Symbol).
		Float64("spike_ratio", ratio).
		Float64("change_pct", changePct).
		Float64("volume_usd", volumeUSD).
		Str("trigger", opp.TriggerReason).
		Msg("scanner: opportunity detected")

	return opp, nil
}

// Stats returns scanner counters.
type Stats struct {
	SymbolsScanned     int64 `json:"symbols_scanned"`
	OpportunitiesFound int64 `json:"opportunities_found"`
	EvalFailures       int64 `json:"eval_failures"`
}

func (s *Scanner) Stats() Stats {
	return Stats{
		SymbolsScanned:     s.symbolsScanned.Load(),
		OpportunitiesFound: s.opportunitiesFound.Load(),
		EvalFailures:       s.evalFailures.Load(),
	}
}

