package intel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ---------------------------------------------------------------------------
// Transfer Fetchers — token transfer history from block explorers
// ---------------------------------------------------------------------------

// Transfer is a single token transfer with both endpoints classified.
type Transfer struct {
	TxHash      string
	FromAddress string
	ToAddress   string
	Amount      decimal.Decimal
	AmountUSD   decimal.Decimal
	Timestamp   time.Time
	FromRole    Role
	ToRole      Role
	FromLabel   string
	ToLabel     string
}

// Fetcher retrieves recent transfers for a token contract. Implementations
// degrade to an empty slice on upstream throttling; an error means the chain
// could not be queried at all.
type Fetcher interface {
	FetchTransfers(ctx context.Context, tokenAddress, chain string, limit int) ([]Transfer, error)
}

// evmChainIDs maps chain names to the chain IDs accepted by the Etherscan V2
// unified endpoint. Chains absent from this map are not inspectable.
var evmChainIDs = map[string]string{
	"ethereum":  "1",
	"eth":       "1",
	"bsc":       "56",
	"binance":   "56",
	"base":      "8453",
	"avalanche": "43114",
	"avax":      "43114",
	"polygon":   "137",
	"arbitrum":  "42161",
	"optimism":  "10",
	"fantom":    "250",
}

// ---------------------------------------------------------------------------
// Etherscan V2 (all EVM chains via chainid parameter)
// ---------------------------------------------------------------------------

// ExplorerClient fetches ERC-20 transfer history from the Etherscan V2 API.
// One client serves every supported EVM chain.
type ExplorerClient struct {
	baseURL  string
	apiKey   string
	http     *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	registry *Registry
}

// NewExplorerClient builds an EVM explorer client. The free Etherscan tier
// allows 5 req/s; the limiter stays under it.
func NewExplorerClient(baseURL, apiKey string, timeout time.Duration, registry *Registry) *ExplorerClient {
	settings := gobreaker.Settings{
		Name:     "etherscan",
		Interval: 60 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &ExplorerClient{
		baseURL:  baseURL,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(rate.Limit(4), 4),
		breaker:  gobreaker.NewCircuitBreaker(settings),
		registry: registry,
	}
}

// tokenTxResponse mirrors the Etherscan account/tokentx payload.
type tokenTxResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  []struct {
		Hash         string `json:"hash"`
		From         string `json:"from"`
		To           string `json:"to"`
		Value        string `json:"value"`
		TokenDecimal string `json:"tokenDecimal"`
		TimeStamp    string `json:"timeStamp"`
	} `json:"result"`
}

// FetchTransfers returns the most recent transfers for a token contract,
// newest first. Unsupported chains and explorer-reported failures yield an
// empty slice rather than an error; the analysis downstream treats missing
// data as no evidence.
func (c *ExplorerClient) FetchTransfers(ctx context.Context, tokenAddress, chain string, limit int) ([]Transfer, error) {
	chainID, ok := evmChainIDs[chain]
	if !ok {
		log.Info().Str("chain", chain).Msg("explorer: chain not supported, skipping")
		return nil, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("chainid", chainID)
	params.Set("module", "account")
	params.Set("action", "tokentx")
	params.Set("contractaddress", tokenAddress)
	params.Set("page", "1")
	params.Set("offset", strconv.Itoa(limit))
	params.Set("sort", "desc")
	params.Set("apikey", c.apiKey)

	raw, err := c.breaker.Execute(func() (any, error) {
		return c.get(ctx, c.baseURL+"?"+params.Encode())
	})
	if err != nil {
		return nil, fmt.Errorf("explorer: fetch transfers: %w", err)
	}

	var payload tokenTxResponse
	if err := json.Unmarshal(raw.([]byte), &payload); err != nil {
		return nil, fmt.Errorf("explorer: decode response: %w", err)
	}
	// Etherscan reports "No transactions found" with status 0.
	if payload.Status != "1" {
		log.Debug().Str("chain", chain).Str("message", payload.Message).
			Msg("explorer: no transfer data")
		return nil, nil
	}

	transfers := make([]Transfer, 0, len(payload.Result))
	for _, tx := range payload.Result {
		t, ok := c.parseRow(tx.Hash, tx.From, tx.To, tx.Value, tx.TokenDecimal, tx.TimeStamp)
		if !ok {
			continue
		}
		transfers = append(transfers, t)
	}

	log.Info().
		Str("token", truncateAddr(tokenAddress)).
		Str("chain", chain).
		Int("transfers", len(transfers)).
		Msg("explorer: fetched transfers")
	return transfers, nil
}

// parseRow converts one explorer row, classifying both endpoints. Malformed
// rows are dropped.
func (c *ExplorerClient) parseRow(hash, from, to, value, tokenDecimal, timeStamp string) (Transfer, bool) {
	decimals, err := strconv.Atoi(tokenDecimal)
	if err != nil || decimals < 0 || decimals > 36 {
		return Transfer{}, false
	}
	rawValue, err := decimal.NewFromString(value)
	if err != nil {
		return Transfer{}, false
	}
	unix, err := strconv.ParseInt(timeStamp, 10, 64)
	if err != nil {
		return Transfer{}, false
	}

	amount := rawValue.Shift(int32(-decimals))
	fromRole, fromLabel := c.registry.Classify(from)
	toRole, toLabel := c.registry.Classify(to)

	return Transfer{
		TxHash:      hash,
		FromAddress: from,
		ToAddress:   to,
		Amount:      amount,
		Timestamp:   time.Unix(unix, 0),
		FromRole:    fromRole,
		ToRole:      toRole,
		FromLabel:   fromLabel,
		ToLabel:     toLabel,
	}, true
}

func (c *ExplorerClient) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// ---------------------------------------------------------------------------
// Solscan (Solana SPL transfers)
// ---------------------------------------------------------------------------

// SolscanClient fetches SPL token transfer history from the public Solscan
// API. The public tier throttles aggressively; a 429 is treated as an empty
// cycle, not a failure.
type SolscanClient struct {
	baseURL  string
	http     *http.Client
	registry *Registry
}

func NewSolscanClient(baseURL string, timeout time.Duration, registry *Registry) *SolscanClient {
	return &SolscanClient{
		baseURL:  baseURL,
		http:     &http.Client{Timeout: timeout},
		registry: registry,
	}
}

// solscanResponse mirrors the Solscan transfer/token payload. Amount is kept
// as json.Number so one malformed row cannot fail the whole decode.
type solscanResponse struct {
	Data []solscanRow `json:"data"`
}

type solscanRow struct {
	ID              string      `json:"_id"`
	FromUserAccount string      `json:"fromUserAccount"`
	ToUserAccount   string      `json:"toUserAccount"`
	Amount          json.Number `json:"amount"`
	TokenDecimals   int         `json:"tokenDecimals"`
	BlockTime       int64       `json:"blockTime"`
}

func (c *SolscanClient) FetchTransfers(ctx context.Context, tokenAddress, chain string, limit int) ([]Transfer, error) {
	endpoint := fmt.Sprintf("%s/transfer/token?token_address=%s&limit=%d&offset=0",
		c.baseURL, url.QueryEscape(tokenAddress), limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("solscan: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		log.Warn().Msg("solscan: rate limited, skipping solana this cycle")
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("solscan: http %d", resp.StatusCode)
	}

	var payload solscanResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("solscan: decode response: %w", err)
	}

	transfers := make([]Transfer, 0, len(payload.Data))
	for _, tx := range payload.Data {
		t, ok := c.parseRow(tx)
		if !ok {
			continue
		}
		transfers = append(transfers, t)
	}

	log.Info().
		Str("token", truncateAddr(tokenAddress)).
		Int("transfers", len(transfers)).
		Msg("solscan: fetched transfers")
	return transfers, nil
}

// parseRow converts one Solscan row, classifying both endpoints. Malformed
// rows are dropped.
func (c *SolscanClient) parseRow(tx solscanRow) (Transfer, bool) {
	rawAmount, err := strconv.ParseInt(string(tx.Amount), 10, 64)
	if err != nil {
		return Transfer{}, false
	}
	if tx.BlockTime <= 0 {
		return Transfer{}, false
	}
	decimals := tx.TokenDecimals
	if decimals <= 0 || decimals > 36 {
		decimals = 9
	}

	amount := decimal.NewFromInt(rawAmount).Shift(int32(-decimals))
	fromRole, fromLabel := c.registry.Classify(tx.FromUserAccount)
	toRole, toLabel := c.registry.Classify(tx.ToUserAccount)

	return Transfer{
		TxHash:      tx.ID,
		FromAddress: tx.FromUserAccount,
		ToAddress:   tx.ToUserAccount,
		Amount:      amount,
		Timestamp:   time.Unix(tx.BlockTime, 0),
		FromRole:    fromRole,
		ToRole:      toRole,
		FromLabel:   fromLabel,
		ToLabel:     toLabel,
	}, true
}

// ---------------------------------------------------------------------------
// Chain dispatcher
// ---------------------------------------------------------------------------

// Dispatcher routes fetch requests to the right explorer by chain.
type Dispatcher struct {
	evm    Fetcher
	solana Fetcher
}

func NewDispatcher(evm, solana Fetcher) *Dispatcher {
	return &Dispatcher{evm: evm, solana: solana}
}

func (d *Dispatcher) FetchTransfers(ctx context.Context, tokenAddress, chain string, limit int) ([]Transfer, error) {
	if chain == "solana" {
		return d.solana.FetchTransfers(ctx, tokenAddress, chain, limit)
	}
	return d.evm.FetchTransfers(ctx, tokenAddress, chain, limit)
}

func truncateAddr(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:10] + "..."
}

// priceUSD applies a spot price to a token amount. A zero price leaves the
// USD value at zero; the scorer then falls back to raw token amounts.
func priceUSD(amount decimal.Decimal, price float64) decimal.Decimal {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return decimal.Zero
	}
	return amount.Mul(decimal.NewFromFloat(price))
}
