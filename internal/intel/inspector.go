package intel

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tidewatch-trading/tidewatch/internal/tokens"
)

// ---------------------------------------------------------------------------
// On-Chain Inspector — resolve, fetch, score
// ---------------------------------------------------------------------------

// AddressResolver maps an exchange base asset to a token contract.
type AddressResolver interface {
	Resolve(ctx context.Context, symbol, preferredChain string) tokens.Resolution
}

// Inspector corroborates a futures market signal with on-chain transfer flow.
type Inspector struct {
	resolver AddressResolver
	fetcher  Fetcher
	scorer   ScorerConfig
	lookback int

	inspected  atomic.Int64
	unresolved atomic.Int64
}

func NewInspector(resolver AddressResolver, fetcher Fetcher, scorer ScorerConfig, lookback int) *Inspector {
	if lookback <= 0 {
		lookback = 50
	}
	return &Inspector{
		resolver: resolver,
		fetcher:  fetcher,
		scorer:   scorer,
		lookback: lookback,
	}
}

// InspectAddress fetches and scores transfer flow for a known contract.
// Fetch failures degrade to a no-data assessment; on-chain corroboration is
// best effort and must never sink the market signal that triggered it.
func (i *Inspector) InspectAddress(ctx context.Context, tokenAddress, chain string, price float64) Assessment {
	transfers, err := i.fetcher.FetchTransfers(ctx, tokenAddress, chain, i.lookback)
	if err != nil {
		log.Warn().Err(err).
			Str("token", truncateAddr(tokenAddress)).
			Str("chain", chain).
			Msg("inspector: transfer fetch failed")
		transfers = nil
	}
	i.inspected.Add(1)
	return Score(transfers, price, i.scorer, time.Now())
}

// InspectSymbol resolves the contract address for a base asset and scores
// its flow. A symbol with no resolvable contract gets a low-confidence
// neutral assessment so the caller can still alert on the market data alone.
func (i *Inspector) InspectSymbol(ctx context.Context, symbol, chain string, price float64) Assessment {
	res := i.resolver.Resolve(ctx, symbol, chain)
	if !res.Found() {
		i.unresolved.Add(1)
		log.Warn().Str("symbol", symbol).Msg("inspector: no contract address, skipping on-chain analysis")
		return Assessment{
			Bias:       BiasNeutral,
			Confidence: 30,
			Evidence:   []string{fmt.Sprintf("No contract address available for %s", symbol)},
			Unresolved: true,
			Timestamp:  time.Now(),
		}
	}
	return i.InspectAddress(ctx, res.Address, res.Chain, price)
}

// Stats reports inspection counters.
type Stats struct {
	Inspected  int64 `json:"inspected"`
	Unresolved int64 `json:"unresolved"`
}

func (i *Inspector) Stats() Stats {
	return Stats{
		Inspected:  i.inspected.Load(),
		Unresolved: i.unresolved.Load(),
	}
}
