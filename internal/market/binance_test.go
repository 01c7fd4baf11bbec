package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exchangeInfoBody = `{
  "symbols": [
    {"symbol": "BTCUSDT", "baseAsset": "BTC", "quoteAsset": "USDT", "contractType": "PERPETUAL", "status": "TRADING"},
    {"symbol": "ETHUSDT", "baseAsset": "ETH", "quoteAsset": "USDT", "contractType": "PERPETUAL", "status": "TRADING"},
    {"symbol": "BTCUSDT_240628", "baseAsset": "BTC", "quoteAsset": "USDT", "contractType": "CURRENT_QUARTER", "status": "TRADING"},
    {"symbol": "XYZBUSD", "baseAsset": "XYZ", "quoteAsset": "BUSD", "contractType": "PERPETUAL", "status": "TRADING"},
    {"symbol": "OLDUSDT", "baseAsset": "OLD", "quoteAsset": "USDT", "contractType": "PERPETUAL", "status": "SETTLING"}
  ]
}`

func newTestClient(t *testing.T, handler http.Handler) (*BinanceClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewBinanceClient(srv.URL, 1000, 2*time.Second), srv
}

func TestPerpetualSymbols_FiltersNonPerps(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/fapi/v1/exchangeInfo", r.URL.Path)
		w.Write([]byte(exchangeInfoBody))
	}))

	symbols, err := client.PerpetualSymbols(context.Background())
	require.NoError(t, err)
	require.Len(t, symbols, 2)
	assert.Equal(t, "BTCUSDT", symbols[0].Symbol)
	assert.Equal(t, "BTC", symbols[0].BaseAsset)
	assert.Equal(t, "ETHUSDT", symbols[1].Symbol)
}

func TestPerpetualSymbols_CachesAndServesStale(t *testing.T) {
	var calls atomic.Int64
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) > 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(exchangeInfoBody))
	}))

	first, err := client.PerpetualSymbols(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 2)

	// Second call inside the TTL hits the cache, no HTTP round trip.
	second, err := client.PerpetualSymbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), calls.Load())

	// Expire the cache; the refresh fails and the stale set is served.
	client.mu.Lock()
	client.symbolCached = time.Now().Add(-2 * symbolCacheTTL)
	client.mu.Unlock()

	third, err := client.PerpetualSymbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, third)
	assert.Equal(t, int64(2), calls.Load())
}

func TestCandles_ParsesKlines(t *testing.T) {
	body := `[
	  [1700000000000, "100.0", "110.0", "95.0", "105.0", "1200.5", 1700000299999, "126052.5", 42, "600", "63000", "0"],
	  [1700000300000, "105.0", "108.0", "101.0", "102.0", "800.0", 1700000599999, "81600.0", 30, "400", "40800", "0"]
	]`
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/fapi/v1/klines", r.URL.Path)
		assert.Equal(t, "ETHUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "5m", r.URL.Query().Get("interval"))
		w.Write([]byte(body))
	}))

	candles, err := client.Candles(context.Background(), "ETHUSDT", "5m", 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)

	assert.Equal(t, 100.0, candles[0].Open)
	assert.Equal(t, 105.0, candles[0].Close)
	assert.Equal(t, 1200.5, candles[0].Volume)
	assert.Equal(t, 126052.5, candles[0].QuoteVolume)
	assert.Equal(t, time.UnixMilli(1700000000000), candles[0].OpenTime)
	assert.Equal(t, 102.0, candles[1].Close)
}

func TestCandles_DropsMalformedRows(t *testing.T) {
	body := `[
	  [1700000000000, "not-a-number", "1", "1", "1", "1", 1, "1", 1, "1", "1", "0"],
	  [1700000300000, "105.0", "108.0", "101.0", "102.0", "800.0", 1700000599999, "81600.0", 30, "400", "40800", "0"]
	]`
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))

	candles, err := client.Candles(context.Background(), "ETHUSDT", "5m", 2)
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, 102.0, candles[0].Close)
}

func TestTicker(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/fapi/v1/ticker/24hr", r.URL.Path)
		w.Write([]byte(`{"symbol": "BTCUSDT", "lastPrice": "64250.10", "priceChangePercent": "-2.35"}`))
	}))

	ticker, err := client.Ticker(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", ticker.Symbol)
	assert.Equal(t, 64250.10, ticker.LastPrice)
	assert.Equal(t, -2.35, ticker.ChangePct)
}

func TestTicker_HTTPError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.Ticker(context.Background(), "BTCUSDT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 429")
}
