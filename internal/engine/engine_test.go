package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidewatch-trading/tidewatch/internal/alert"
	"github.com/tidewatch-trading/tidewatch/internal/intel"
	"github.com/tidewatch-trading/tidewatch/internal/market"
	"github.com/tidewatch-trading/tidewatch/internal/observability"
	"github.com/tidewatch-trading/tidewatch/internal/scanner"
)

// fakeFeed serves canned candles per (symbol, interval).
type fakeFeed struct {
	symbols    []market.SymbolInfo
	symbolsErr error
	candles    map[string][]market.Candle // key: symbol+interval
	candlesErr error
}

func (f *fakeFeed) PerpetualSymbols(ctx context.Context) ([]market.SymbolInfo, error) {
	return f.symbols, f.symbolsErr
}

func (f *fakeFeed) Candles(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	if f.candlesErr != nil {
		return nil, f.candlesErr
	}
	return f.candles[symbol+interval], nil
}

func (f *fakeFeed) Ticker(ctx context.Context, symbol string) (*market.Ticker, error) {
	return &market.Ticker{Symbol: symbol}, nil
}

type fakeScanner struct {
	opportunities []scanner.Opportunity
}

func (f *fakeScanner) Scan(ctx context.Context, symbols []market.SymbolInfo, maxConcurrent int) []scanner.Opportunity {
	return f.opportunities
}

type fakeInspector struct {
	assessment intel.Assessment
	calls      int
	lastChain  string
}

func (f *fakeInspector) InspectSymbol(ctx context.Context, symbol, chain string, price float64) intel.Assessment {
	f.calls++
	f.lastChain = chain
	return f.assessment
}

type captureSink struct {
	mu     sync.Mutex
	alerts []alert.Alert
	err    error
}

func (c *captureSink) Deliver(ctx context.Context, a alert.Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, a)
	return c.err
}

func (c *captureSink) Name() string { return "capture" }

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.alerts)
}

// trendCandles builds 50 calm candles so the Bollinger window is satisfied,
// plus a final short candle carrying the requested 5m change.
func candlesFor(symbol string, change5m float64) map[string][]market.Candle {
	trend := make([]market.Candle, 50)
	for i := range trend {
		trend[i] = market.Candle{Open: 100, High: 101, Low: 99, Close: 100, QuoteVolume: 500_000}
	}
	open := 100.0
	short := []market.Candle{
		{Open: open, Close: open},
		{Open: open, Close: open * (1 + change5m/100)},
	}
	return map[string][]market.Candle{
		symbol + "15m": trend,
		symbol + "5m":  short,
	}
}

func opportunity(symbol, base string) scanner.Opportunity {
	return scanner.Opportunity{
		Symbol:     symbol,
		BaseAsset:  base,
		Price:      100,
		VolumeUSD:  500_000,
		SpikeRatio: 6.0,
		CreatedAt:  time.Now(),
	}
}

func newTestEngine(feed *fakeFeed, sc Scanner, insp Inspector, sink alert.Sink) *Engine {
	cfg := DefaultConfig()
	cfg.ScanInterval = 10 * time.Millisecond
	return New(cfg, feed, sc, insp, sink, observability.New(prometheus.NewRegistry()))
}

func TestRunCycle_EmitsAlert(t *testing.T) {
	feed := &fakeFeed{
		symbols: []market.SymbolInfo{{Symbol: "PEPEUSDT"}},
		candles: candlesFor("PEPEUSDT", 2.0),
	}
	sc := &fakeScanner{opportunities: []scanner.Opportunity{opportunity("PEPEUSDT", "PEPE")}}
	insp := &fakeInspector{assessment: intel.Assessment{Bias: intel.BiasBearish, Confidence: 90}}
	sink := &captureSink{}

	e := newTestEngine(feed, sc, insp, sink)
	require.NoError(t, e.RunCycle(context.Background()))

	require.Equal(t, 1, sink.count())
	a := sink.alerts[0]
	assert.Equal(t, "PEPE", a.Coin)
	assert.Equal(t, alert.SeverityHigh, a.Severity)
	assert.Equal(t, alert.DirectionLong, a.Direction)
	assert.InDelta(t, 2.0, a.Change5mPct, 0.01)
	assert.Equal(t, 1, insp.calls)
}

func TestRunCycle_CooldownSuppressesRepeat(t *testing.T) {
	feed := &fakeFeed{
		symbols: []market.SymbolInfo{{Symbol: "BTCUSDT"}},
		candles: candlesFor("BTCUSDT", 1.5),
	}
	sc := &fakeScanner{opportunities: []scanner.Opportunity{opportunity("BTCUSDT", "BTC")}}
	sink := &captureSink{}
	e := newTestEngine(feed, sc, &fakeInspector{}, sink)

	now := time.Now()
	e.now = func() time.Time { return now }

	require.NoError(t, e.RunCycle(context.Background()))
	require.NoError(t, e.RunCycle(context.Background()))
	assert.Equal(t, 1, sink.count(), "second cycle inside the window must not alert")

	// Reopen the window.
	now = now.Add(301 * time.Second)
	require.NoError(t, e.RunCycle(context.Background()))
	assert.Equal(t, 2, sink.count(), "alerting resumes once the window passes")
}

func TestRunCycle_MomentumGate(t *testing.T) {
	feed := &fakeFeed{
		symbols: []market.SymbolInfo{{Symbol: "ETHUSDT"}},
		candles: candlesFor("ETHUSDT", 0.4), // below the 1.0% gate
	}
	sc := &fakeScanner{opportunities: []scanner.Opportunity{opportunity("ETHUSDT", "ETH")}}
	insp := &fakeInspector{}
	sink := &captureSink{}
	e := newTestEngine(feed, sc, insp, sink)

	require.NoError(t, e.RunCycle(context.Background()))
	assert.Equal(t, 0, sink.count())
	assert.Equal(t, 0, insp.calls, "gated symbols never reach the inspector")
	assert.Equal(t, 0, e.CooldownSize(), "gated symbols do not consume cooldown")
}

func TestRunCycle_NegativeMovePassesGate(t *testing.T) {
	feed := &fakeFeed{
		symbols: []market.SymbolInfo{{Symbol: "ETHUSDT"}},
		candles: candlesFor("ETHUSDT", -1.8),
	}
	sc := &fakeScanner{opportunities: []scanner.Opportunity{opportunity("ETHUSDT", "ETH")}}
	sink := &captureSink{}
	e := newTestEngine(feed, sc, &fakeInspector{}, sink)

	require.NoError(t, e.RunCycle(context.Background()))
	require.Equal(t, 1, sink.count())
	assert.Equal(t, alert.DirectionShort, sink.alerts[0].Direction)
}

func TestRunCycle_TopNBound(t *testing.T) {
	var opps []scanner.Opportunity
	feed := &fakeFeed{symbols: []market.SymbolInfo{{Symbol: "X"}}, candles: map[string][]market.Candle{}}
	for _, sym := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		opps = append(opps, opportunity(sym+"USDT", sym))
		for k, v := range candlesFor(sym+"USDT", 2.0) {
			feed.candles[k] = v
		}
	}
	sc := &fakeScanner{opportunities: opps}
	sink := &captureSink{}
	e := newTestEngine(feed, sc, &fakeInspector{}, sink)

	require.NoError(t, e.RunCycle(context.Background()))
	assert.Equal(t, 5, sink.count(), "only the top opportunities are processed")
}

func TestRunCycle_AnalysisFailureSkipsSymbol(t *testing.T) {
	feed := &fakeFeed{
		symbols:    []market.SymbolInfo{{Symbol: "BTCUSDT"}},
		candlesErr: errors.New("upstream 500"),
	}
	sc := &fakeScanner{opportunities: []scanner.Opportunity{opportunity("BTCUSDT", "BTC")}}
	sink := &captureSink{}
	e := newTestEngine(feed, sc, &fakeInspector{}, sink)

	require.NoError(t, e.RunCycle(context.Background()), "a failed symbol does not fail the cycle")
	assert.Equal(t, 0, sink.count())
}

func TestRunCycle_SymbolListFailure(t *testing.T) {
	feed := &fakeFeed{symbolsErr: errors.New("exchange down")}
	e := newTestEngine(feed, &fakeScanner{}, &fakeInspector{}, &captureSink{})
	assert.Error(t, e.RunCycle(context.Background()))
}

func TestRunCycle_ChainDefaultsToEthereum(t *testing.T) {
	feed := &fakeFeed{
		symbols: []market.SymbolInfo{{Symbol: "XUSDT"}},
		candles: candlesFor("XUSDT", 2.0),
	}
	opp := opportunity("XUSDT", "X")
	opp.Chain = "unknown"
	sc := &fakeScanner{opportunities: []scanner.Opportunity{opp}}
	insp := &fakeInspector{}
	e := newTestEngine(feed, sc, insp, &captureSink{})

	require.NoError(t, e.RunCycle(context.Background()))
	assert.Equal(t, "ethereum", insp.lastChain)
}

func TestRunCycle_BandTargetFollowsDirection(t *testing.T) {
	feed := &fakeFeed{
		symbols: []market.SymbolInfo{{Symbol: "AUSDT"}, {Symbol: "BUSDT"}},
		candles: map[string][]market.Candle{},
	}
	for k, v := range candlesFor("AUSDT", 2.0) {
		feed.candles[k] = v
	}
	for k, v := range candlesFor("BUSDT", -2.0) {
		feed.candles[k] = v
	}
	sc := &fakeScanner{opportunities: []scanner.Opportunity{
		opportunity("AUSDT", "A"),
		opportunity("BUSDT", "B"),
	}}
	sink := &captureSink{}
	e := newTestEngine(feed, sc, &fakeInspector{}, sink)

	require.NoError(t, e.RunCycle(context.Background()))
	require.Equal(t, 2, sink.count())

	// Constant closes at 100 put both bands at 100; directions still pick
	// the right side of the band pair.
	up, down := sink.alerts[0], sink.alerts[1]
	assert.Equal(t, alert.DirectionLong, up.Direction)
	assert.Equal(t, alert.DirectionShort, down.Direction)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	feed := &fakeFeed{symbols: []market.SymbolInfo{}}
	e := newTestEngine(feed, &fakeScanner{}, &fakeInspector{}, &captureSink{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop on cancel")
	}
}

func TestRun_CycleErrorDoesNotStopLoop(t *testing.T) {
	feed := &fakeFeed{symbolsErr: errors.New("flaky upstream")}
	e := newTestEngine(feed, &fakeScanner{}, &fakeInspector{}, &captureSink{})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := e.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
