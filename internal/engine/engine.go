// Package engine drives the scan cycle: market scan, cooldown gating,
// short-horizon confirmation, on-chain corroboration, and alert emission.
package engine

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tidewatch-trading/tidewatch/internal/alert"
	"github.com/tidewatch-trading/tidewatch/internal/features"
	"github.com/tidewatch-trading/tidewatch/internal/intel"
	"github.com/tidewatch-trading/tidewatch/internal/market"
	"github.com/tidewatch-trading/tidewatch/internal/observability"
	"github.com/tidewatch-trading/tidewatch/internal/scanner"
)

// Scanner finds market opportunities across the perpetual universe.
type Scanner interface {
	Scan(ctx context.Context, symbols []market.SymbolInfo, maxConcurrent int) []scanner.Opportunity
}

// Inspector corroborates an opportunity with on-chain flow.
type Inspector interface {
	InspectSymbol(ctx context.Context, symbol, chain string, price float64) intel.Assessment
}

// Publisher distributes an emitted alert beyond the process (Redis).
type Publisher interface {
	Publish(ctx context.Context, a alert.Alert) error
}

// Archiver persists alert history (Postgres).
type Archiver interface {
	Save(ctx context.Context, a alert.Alert) error
}

// Config holds cycle parameters.
type Config struct {
	ScanInterval     time.Duration
	TopOpportunities int
	Cooldown         time.Duration
	MinShortTermMove float64
	BollingerPeriod  int
	BollingerStdDev  float64
	MaxConcurrent    int
}

// DefaultConfig returns the production cycle parameters.
func DefaultConfig() Config {
	return Config{
		ScanInterval:     30 * time.Second,
		TopOpportunities: 5,
		Cooldown:         300 * time.Second,
		MinShortTermMove: 1.0,
		BollingerPeriod:  20,
		BollingerStdDev:  2.0,
		MaxConcurrent:    15,
	}
}

// Engine owns the cooldown state and runs scan cycles. The cooldown map is
// touched only from the cycle goroutine; Stats copies it under the mutex for
// external readers.
type Engine struct {
	cfg       Config
	feed      market.Feed
	scanner   Scanner
	inspector Inspector
	notifier  alert.Sink
	metrics   *observability.Metrics

	// optional outputs
	hub       interface{ Add(a alert.Alert) }
	publisher Publisher
	archiver  Archiver

	mu        sync.Mutex
	lastAlert map[string]time.Time

	now func() time.Time
}

func New(cfg Config, feed market.Feed, sc Scanner, insp Inspector, notifier alert.Sink, metrics *observability.Metrics) *Engine {
	if cfg.TopOpportunities <= 0 {
		cfg.TopOpportunities = 5
	}
	return &Engine{
		cfg:       cfg,
		feed:      feed,
		scanner:   sc,
		inspector: insp,
		notifier:  notifier,
		metrics:   metrics,
		lastAlert: make(map[string]time.Time),
		now:       time.Now,
	}
}

// WithHub attaches the dashboard feed.
func (e *Engine) WithHub(h interface{ Add(a alert.Alert) }) *Engine {
	e.hub = h
	return e
}

// WithPublisher attaches the Redis alert bus.
func (e *Engine) WithPublisher(p Publisher) *Engine {
	e.publisher = p
	return e
}

// WithArchiver attaches the Postgres alert history.
func (e *Engine) WithArchiver(a Archiver) *Engine {
	e.archiver = a
	return e
}

// Run executes scan cycles until the context is cancelled. A failed cycle is
// logged and the loop keeps going; one bad upstream response must not stop
// the watch.
func (e *Engine) Run(ctx context.Context) error {
	log.Info().Dur("interval", e.cfg.ScanInterval).Msg("engine: starting scan loop")

	ticker := time.NewTicker(e.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		if err := e.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.metrics.ScanCycleErrors.Inc()
			log.Error().Err(err).Msg("engine: scan cycle failed")
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("engine: scan loop stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunCycle executes one full pipeline pass.
func (e *Engine) RunCycle(ctx context.Context) error {
	start := e.now()
	log.Info().Time("at", start).Msg("engine: starting scan cycle")

	symbols, err := e.feed.PerpetualSymbols(ctx)
	if err != nil {
		return fmt.Errorf("engine: list symbols: %w", err)
	}
	e.metrics.SymbolsScanned.Add(float64(len(symbols)))

	opportunities := e.scanner.Scan(ctx, symbols, e.cfg.MaxConcurrent)
	if len(opportunities) == 0 {
		log.Info().Msg("engine: no significant opportunities this cycle")
		e.finishCycle(start)
		return nil
	}
	e.metrics.Opportunities.Add(float64(len(opportunities)))
	log.Info().Int("count", len(opportunities)).Msg("engine: opportunities found")

	top := opportunities
	if len(top) > e.cfg.TopOpportunities {
		top = top[:e.cfg.TopOpportunities]
	}

	for _, opp := range top {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.processOpportunity(ctx, opp)
	}

	e.finishCycle(start)
	return nil
}

func (e *Engine) finishCycle(start time.Time) {
	elapsed := e.now().Sub(start)
	e.metrics.ScanCycles.Inc()
	e.metrics.ScanDuration.Observe(elapsed.Seconds())
	log.Info().Dur("elapsed", elapsed).Msg("engine: cycle completed")
}

func (e *Engine) processOpportunity(ctx context.Context, opp scanner.Opportunity) {
	if !e.cooldownOpen(opp.Symbol) {
		e.metrics.CooldownSkips.Inc()
		log.Debug().Str("symbol", opp.Symbol).Msg("engine: cooldown active, skipping")
		return
	}

	change5m, bands, err := e.analyze(ctx, opp.Symbol)
	if err != nil {
		log.Warn().Err(err).Str("symbol", opp.Symbol).Msg("engine: analysis unavailable, skipping")
		return
	}

	// Secondary momentum confirmation on the latest short candle. The
	// scanner's own change figure covers a longer horizon; a symbol that has
	// already gone quiet again is not worth an alert.
	if math.Abs(change5m) < e.cfg.MinShortTermMove {
		e.metrics.MomentumSkips.Inc()
		log.Info().Str("symbol", opp.Symbol).Float64("change_5m", change5m).
			Float64("min_move", e.cfg.MinShortTermMove).
			Msg("engine: short-term move below gate, skipping")
		return
	}

	chain := opp.Chain
	if chain == "" || chain == "unknown" {
		chain = "ethereum"
	}
	assessment := e.inspector.InspectSymbol(ctx, opp.BaseAsset, chain, opp.Price)
	e.metrics.TransfersFetched.Add(float64(assessment.AnalyzedTransfers))
	if assessment.Unresolved {
		e.metrics.ResolverMisses.Inc()
	}

	// Rising market: show the lower band as the support target. Falling:
	// the upper band as resistance.
	bandTarget := bands.Upper
	if change5m > 0 {
		bandTarget = bands.Lower
	}

	a := alert.New(opp.BaseAsset, opp.Symbol, opp.Price, opp.VolumeUSD,
		opp.SpikeRatio, bandTarget, change5m, assessment)

	e.emit(ctx, a)
	e.markAlerted(opp.Symbol)
}

// analyze derives the Bollinger band levels from the trend timeframe and the
// change of the latest short candle. Missing short-candle data reads as a
// zero move, which the momentum gate then rejects.
func (e *Engine) analyze(ctx context.Context, symbol string) (float64, features.Bands, error) {
	trend, err := e.feed.Candles(ctx, symbol, "15m", 50)
	if err != nil {
		return 0, features.Bands{}, fmt.Errorf("trend candles: %w", err)
	}
	closes := make([]float64, len(trend))
	for i, c := range trend {
		closes[i] = c.Close
	}
	bands, err := features.Bollinger(closes, e.cfg.BollingerPeriod, e.cfg.BollingerStdDev)
	if err != nil {
		return 0, features.Bands{}, err
	}

	short, err := e.feed.Candles(ctx, symbol, "5m", 2)
	if err != nil || len(short) == 0 {
		return 0, bands, nil
	}
	last := short[len(short)-1]
	return features.CandleChangePct(last.Open, last.Close), bands, nil
}

// emit fans the alert out to every configured output. Each output fails
// independently.
func (e *Engine) emit(ctx context.Context, a alert.Alert) {
	if a.Severity == alert.SeverityHigh {
		log.Info().Str("coin", a.Coin).Str("bias", string(a.Bias)).
			Int("confidence", a.Confidence).Msg("engine: whale-corroborated signal")
	}

	if err := e.notifier.Deliver(ctx, a); err != nil {
		log.Error().Err(err).Str("coin", a.Coin).Msg("engine: alert delivery incomplete")
	}
	if e.hub != nil {
		e.hub.Add(a)
		if sized, ok := e.hub.(interface{ Size() int }); ok {
			e.metrics.FeedSize.Set(float64(sized.Size()))
		}
	}
	if e.publisher != nil {
		if err := e.publisher.Publish(ctx, a); err != nil {
			log.Error().Err(err).Str("coin", a.Coin).Msg("engine: bus publish failed")
		}
	}
	if e.archiver != nil {
		if err := e.archiver.Save(ctx, a); err != nil {
			log.Error().Err(err).Str("coin", a.Coin).Msg("engine: alert archive failed")
		}
	}

	e.metrics.AlertsEmitted.WithLabelValues(string(a.Severity)).Inc()
}

// cooldownOpen reports whether the symbol may alert again.
func (e *Engine) cooldownOpen(symbol string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	last, ok := e.lastAlert[symbol]
	if !ok {
		return true
	}
	return e.now().Sub(last) > e.cfg.Cooldown
}

func (e *Engine) markAlerted(symbol string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastAlert[symbol] = e.now()
}

// CooldownSize returns the number of symbols currently tracked.
func (e *Engine) CooldownSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.lastAlert)
}
