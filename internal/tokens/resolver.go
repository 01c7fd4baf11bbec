package tokens

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// ---------------------------------------------------------------------------
// Token Address Resolver — static table first, then liquidity-ranked
// pair search as a fallback, with a process-lifetime result cache
// ---------------------------------------------------------------------------

// Resolution is a resolver outcome. An empty Address means the symbol could
// not be resolved; callers skip on-chain corroboration in that case.
type Resolution struct {
	Address string `json:"address"`
	Chain   string `json:"chain"`
}

// Found reports whether an address was resolved.
func (r Resolution) Found() bool { return r.Address != "" }

// chainAliases normalizes caller-supplied chain names.
var chainAliases = map[string]string{
	"eth":     "ethereum",
	"binance": "bsc",
}

// NormalizeSymbol upper-cases a base asset and strips leveraged-notation
// size prefixes ("1000PEPE", "1000000MOG" and the like).
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.TrimPrefix(s, "1000000")
	s = strings.TrimPrefix(s, "1000")
	return s
}

// NormalizeChain maps chain aliases onto canonical identifiers.
func NormalizeChain(chain string) string {
	c := strings.ToLower(strings.TrimSpace(chain))
	if canonical, ok := chainAliases[c]; ok {
		return canonical
	}
	return c
}

// Resolver maps market symbols to on-chain contract addresses.
//
// Results, including misses, are cached per (symbol, chain) for the
// resolver's lifetime: symbol-to-contract mappings are effectively static,
// so a stale entry is only cleared by constructing a new resolver. The cache
// is guarded by an RWMutex; concurrent resolution of the same key may race
// the external lookup, in which case the last writer wins.
type Resolver struct {
	searcher        PairSearcher
	minLiquidityUSD float64

	mu    sync.RWMutex
	cache map[string]Resolution
}

// NewResolver creates a resolver. minLiquidityUSD is the floor below which
// pair-search results are rejected as thin/scam liquidity.
func NewResolver(searcher PairSearcher, minLiquidityUSD float64) *Resolver {
	return &Resolver{
		searcher:        searcher,
		minLiquidityUSD: minLiquidityUSD,
		cache:           make(map[string]Resolution),
	}
}

// Resolve maps a symbol to a contract address, preferring preferredChain.
// Lookup failures of any kind degrade to an absent Resolution, never an
// error: a missing address means "skip on-chain corroboration", not a fault.
func (r *Resolver) Resolve(ctx context.Context, symbol, preferredChain string) Resolution {
	sym := NormalizeSymbol(symbol)
	chain := NormalizeChain(preferredChain)
	key := sym + "|" + chain

	r.mu.RLock()
	cached, hit := r.cache[key]
	r.mu.RUnlock()
	if hit {
		return cached
	}

	res := r.resolve(ctx, sym, chain)

	r.mu.Lock()
	r.cache[key] = res
	r.mu.Unlock()
	return res
}

func (r *Resolver) resolve(ctx context.Context, sym, chain string) Resolution {
	// 1. Static table short-circuit: no outbound call for known majors.
	if chains, ok := staticAddresses[sym]; ok {
		if addr, has := chains[chain]; has {
			log.Debug().Str("symbol", sym).Str("chain", chain).Msg("resolver: static table hit")
			return Resolution{Address: addr, Chain: chain}
		}
		for _, c := range chainOrder {
			if addr, has := chains[c]; has {
				log.Debug().Str("symbol", sym).Str("chain", c).Msg("resolver: static table hit on alternate chain")
				return Resolution{Address: addr, Chain: c}
			}
		}
	}

	// 2. Pair-search fallback, liquidity-ranked.
	log.Debug().Str("symbol", sym).Str("chain", chain).Msg("resolver: querying pair search")

	pairs, err := r.searcher.SearchPairs(ctx, sym)
	if err != nil {
		log.Warn().Err(err).Str("symbol", sym).Msg("resolver: pair search failed")
		return Resolution{Chain: chain}
	}
	if len(pairs) == 0 {
		log.Warn().Str("symbol", sym).Msg("resolver: no pairs found")
		return Resolution{Chain: chain}
	}

	best, liquidity := pickPair(pairs, chain)
	if best == nil || liquidity <= r.minLiquidityUSD {
		log.Warn().Str("symbol", sym).Float64("max_liquidity", liquidity).
			Float64("floor", r.minLiquidityUSD).
			Msg("resolver: no pair above liquidity floor")
		return Resolution{Chain: chain}
	}

	resolvedChain := NormalizeChain(best.ChainID)
	log.Info().
		Str("symbol", sym).
		Str("address", best.BaseToken.Address).
		Str("chain", resolvedChain).
		Float64("liquidity_usd", liquidity).
		Msg("resolver: resolved via pair search")

	return Resolution{Address: best.BaseToken.Address, Chain: resolvedChain}
}

// pickPair selects the highest-liquidity pair on the target chain, falling
// back to the highest-liquidity pair across all chains when none matches.
func pickPair(pairs []Pair, targetChain string) (*Pair, float64) {
	var best *Pair
	var maxLiquidity float64

	for i := range pairs {
		p := &pairs[i]
		if NormalizeChain(p.ChainID) != targetChain {
			continue
		}
		if p.Liquidity.USD > maxLiquidity {
			maxLiquidity = p.Liquidity.USD
			best = p
		}
	}

	if best == nil {
		for i := range pairs {
			p := &pairs[i]
			if p.Liquidity.USD > maxLiquidity {
				maxLiquidity = p.Liquidity.USD
				best = p
			}
		}
	}

	return best, maxLiquidity
}

// CacheSize returns the number of cached resolutions.
func (r *Resolver) CacheSize() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}
