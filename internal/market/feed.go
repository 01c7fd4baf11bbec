package market

import (
	"context"
	"time"
)

// ---------------------------------------------------------------------------
// Market Data Feed — normalized candle/ticker types and the feed contract
// ---------------------------------------------------------------------------

// SymbolInfo describes one tradable perpetual contract.
type SymbolInfo struct {
	Symbol     string `json:"symbol"`      // e.g. "ETHUSDT"
	BaseAsset  string `json:"base_asset"`  // e.g. "ETH"
	QuoteAsset string `json:"quote_asset"` // e.g. "USDT"
}

// Candle is one OHLCV interval.
type Candle struct {
	OpenTime    time.Time `json:"open_time"`
	Open        float64   `json:"open"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Close       float64   `json:"close"`
	Volume      float64   `json:"volume"`       // base-asset units
	QuoteVolume float64   `json:"quote_volume"` // quote-currency units
}

// Ticker is a 24h rolling ticker snapshot.
type Ticker struct {
	Symbol    string  `json:"symbol"`
	LastPrice float64 `json:"last_price"`
	ChangePct float64 `json:"change_pct"` // 24h percentage change
}

// Feed is the market-data source consumed by the scanner and the engine.
// Implementations must be safe for concurrent use.
type Feed interface {
	// PerpetualSymbols enumerates all active USDT-quoted perpetual contracts.
	PerpetualSymbols(ctx context.Context) ([]SymbolInfo, error)

	// Candles returns up to limit most-recent candles for the interval,
	// oldest first.
	Candles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)

	// Ticker returns the 24h ticker snapshot for a symbol.
	Ticker(ctx context.Context, symbol string) (*Ticker, error)
}
