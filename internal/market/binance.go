package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// ---------------------------------------------------------------------------
// Binance USDT-M Futures REST client
// https://developers.binance.com/docs/derivatives/usds-margined-futures
// ---------------------------------------------------------------------------

const symbolCacheTTL = time.Hour

// BinanceClient implements Feed against the Binance futures REST API.
// All outbound calls go through a shared token-bucket limiter so that a
// full-universe scan stays inside the exchange's request weight budget.
type BinanceClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter

	mu           sync.Mutex
	symbolCache  []SymbolInfo
	symbolCached time.Time
}

// NewBinanceClient creates a Binance futures client.
func NewBinanceClient(baseURL string, rps float64, timeout time.Duration) *BinanceClient {
	if rps <= 0 {
		rps = 15
	}
	return &BinanceClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)),
	}
}

// PerpetualSymbols returns all active USDT-quoted perpetual contracts.
// Results are cached for an hour; if a refresh fails the stale cache is
// served rather than returning an error.
func (c *BinanceClient) PerpetualSymbols(ctx context.Context) ([]SymbolInfo, error) {
	c.mu.Lock()
	if c.symbolCache != nil && time.Since(c.symbolCached) < symbolCacheTTL {
		cached := c.symbolCache
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	symbols, err := c.fetchExchangeInfo(ctx)
	if err != nil {
		c.mu.Lock()
		stale := c.symbolCache
		c.mu.Unlock()
		if stale != nil {
			log.Warn().Err(err).Int("cached", len(stale)).
				Msg("binance: symbol refresh failed, serving stale cache")
			return stale, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.symbolCache = symbols
	c.symbolCached = time.Now()
	c.mu.Unlock()

	log.Info().Int("count", len(symbols)).Msg("binance: loaded USDT-M perpetual symbols")
	return symbols, nil
}

type exchangeInfoResponse struct {
	Symbols []struct {
		Symbol       string `json:"symbol"`
		BaseAsset    string `json:"baseAsset"`
		QuoteAsset   string `json:"quoteAsset"`
		ContractType string `json:"contractType"`
		Status       string `json:"status"`
	} `json:"symbols"`
}

func (c *BinanceClient) fetchExchangeInfo(ctx context.Context) ([]SymbolInfo, error) {
	body, err := c.get(ctx, "/fapi/v1/exchangeInfo", nil)
	if err != nil {
		return nil, fmt.Errorf("binance: exchange info: %w", err)
	}

	var info exchangeInfoResponse
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("binance: parse exchange info: %w", err)
	}

	symbols := make([]SymbolInfo, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.ContractType != "PERPETUAL" || s.QuoteAsset != "USDT" || s.Status != "TRADING" {
			continue
		}
		symbols = append(symbols, SymbolInfo{
			Symbol:     s.Symbol,
			BaseAsset:  s.BaseAsset,
			QuoteAsset: s.QuoteAsset,
		})
	}
	return symbols, nil
}

// Candles fetches up to limit most-recent klines, oldest first.
func (c *BinanceClient) Candles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, "/fapi/v1/klines", params)
	if err != nil {
		return nil, fmt.Errorf("binance: klines %s: %w", symbol, err)
	}

	// Klines arrive as heterogeneous arrays:
	// [openTime, open, high, low, close, volume, closeTime, quoteVolume, ...]
	var raw [][]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("binance: parse klines %s: %w", symbol, err)
	}

	candles := make([]Candle, 0, len(raw))
	for _, k := range raw {
		if len(k) < 8 {
			continue
		}
		var openMs int64
		if err := json.Unmarshal(k[0], &openMs); err != nil {
			continue
		}
		open, err1 := parseField(k[1])
		high, err2 := parseField(k[2])
		low, err3 := parseField(k[3])
		closeP, err4 := parseField(k[4])
		vol, err5 := parseField(k[5])
		quoteVol, err6 := parseField(k[7])
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil || err6 != nil {
			continue
		}
		candles = append(candles, Candle{
			OpenTime:    time.UnixMilli(openMs),
			Open:        open,
			High:        high,
			Low:         low,
			Close:       closeP,
			Volume:      vol,
			QuoteVolume: quoteVol,
		})
	}
	return candles, nil
}

// Ticker fetches the 24h ticker snapshot for a symbol.
func (c *BinanceClient) Ticker(ctx context.Context, symbol string) (*Ticker, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.get(ctx, "/fapi/v1/ticker/24hr", params)
	if err != nil {
		return nil, fmt.Errorf("binance: ticker %s: %w", symbol, err)
	}

	var raw struct {
		Symbol             string `json:"symbol"`
		LastPrice          string `json:"lastPrice"`
		PriceChangePercent string `json:"priceChangePercent"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("binance: parse ticker %s: %w", symbol, err)
	}

	last, err := strconv.ParseFloat(raw.LastPrice, 64)
	if err != nil {
		return nil, fmt.Errorf("binance: ticker %s: bad lastPrice %q", symbol, raw.LastPrice)
	}
	pct, err := strconv.ParseFloat(raw.PriceChangePercent, 64)
	if err != nil {
		return nil, fmt.Errorf("binance: ticker %s: bad priceChangePercent %q", symbol, raw.PriceChangePercent)
	}

	return &Ticker{Symbol: raw.Symbol, LastPrice: last, ChangePct: pct}, nil
}

// get performs one rate-limited GET and returns the response body.
func (c *BinanceClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(body, 256))
	}
	return body, nil
}

// parseField decodes a kline numeric field that arrives as a JSON string.
func parseField(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		// Some deployments return bare numbers.
		var f float64
		if err2 := json.Unmarshal(raw, &f); err2 == nil {
			return f, nil
		}
		return 0, err
	}
	return strconv.ParseFloat(s, 64)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
