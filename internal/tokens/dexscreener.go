package tokens

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

// ---------------------------------------------------------------------------
// DEX Screener pair-search client
// https://docs.dexscreener.com/api/reference
// ---------------------------------------------------------------------------

// Pair is one trading pair returned by the search API.
type Pair struct {
	ChainID   string `json:"chainId"`
	BaseToken struct {
		Address string `json:"address"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
}

// PairSearcher is the pair-search capability the resolver depends on.
type PairSearcher interface {
	SearchPairs(ctx context.Context, symbol string) ([]Pair, error)
}

// DexScreenerClient implements PairSearcher against the public search API.
type DexScreenerClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewDexScreenerClient creates a DEX Screener search client.
func NewDexScreenerClient(baseURL string, timeout time.Duration) *DexScreenerClient {
	return &DexScreenerClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SearchPairs queries the free-text pair search for a token symbol.
func (c *DexScreenerClient) SearchPairs(ctx context.Context, symbol string) ([]Pair, error) {
	u := fmt.Sprintf("%s/latest/dex/search?q=%s", c.baseURL, url.QueryEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("dexscreener: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dexscreener: search %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dexscreener: search %s: HTTP %d", symbol, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("dexscreener: read response: %w", err)
	}

	var payload struct {
		Pairs []Pair `json:"pairs"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("dexscreener: parse response: %w", err)
	}

	log.Debug().Str("symbol", symbol).Int("pairs", len(payload.Pairs)).
		Msg("dexscreener: search complete")
	return payload.Pairs, nil
}
