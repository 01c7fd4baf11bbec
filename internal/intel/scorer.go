package intel

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Flow Scorer — turns classified transfers into a directional bias
// ---------------------------------------------------------------------------

// Bias is the directional read of on-chain flow.
type Bias string

const (
	BiasBullish    Bias = "LONG"
	BiasBearish    Bias = "SHORT"
	BiasVolatility Bias = "VOLATILITY"
	BiasNeutral    Bias = "NEUTRAL"
)

// Emoji returns the marker used in alert formatting.
func (b Bias) Emoji() string {
	switch b {
	case BiasBullish:
		return "\U0001F7E2" // green circle
	case BiasBearish:
		return "\U0001F534" // red circle
	case BiasVolatility:
		return "\U0001F7E1" // yellow circle
	default:
		return "⚪" // white circle
	}
}

// Text returns the human-readable bias description.
func (b Bias) Text() string {
	switch b {
	case BiasBullish:
		return "LONG (Bullish)"
	case BiasBearish:
		return "SHORT (Bearish)"
	case BiasVolatility:
		return "VOLATILITY"
	default:
		return "NEUTRAL"
	}
}

// Assessment is the result of analyzing a transfer window.
type Assessment struct {
	Bias                Bias
	Confidence          int
	Evidence            []string
	WhaleTransfers      int
	ExchangeInflowUSD   decimal.Decimal
	ExchangeOutflowUSD  decimal.Decimal
	MarketMakerActivity bool
	AnalyzedTransfers   int
	Unresolved          bool
	Timestamp           time.Time
}

// ScorerConfig holds the confidence ladder parameters.
type ScorerConfig struct {
	LargeTransferUSD    float64
	WhaleTransferBoost  int
	LargeAmountBoost    int
	RecentActivityBoost int
}

// DefaultScorerConfig returns the production confidence ladder.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		LargeTransferUSD:    1_000_000,
		WhaleTransferBoost:  20,
		LargeAmountBoost:    15,
		RecentActivityBoost: 10,
	}
}

const (
	baseConfidence    = 50
	maxConfidence     = 95
	directionCap      = 40
	recentCap         = 20
	neutralPenalty    = 30
	neutralFloor      = 20
	maxEvidence       = 5
	mmVolatilityCount = 3
)

// Score analyzes a window of classified transfers. Whale deposits to
// exchanges read as distribution (bearish); withdrawals to whale wallets read
// as accumulation (bullish); heavy market-maker flow overrides both and reads
// as a volatility setup.
func Score(transfers []Transfer, price float64, cfg ScorerConfig, now time.Time) Assessment {
	if len(transfers) == 0 {
		return Assessment{
			Bias:       BiasNeutral,
			Confidence: 0,
			Evidence:   []string{"No transfer data available"},
			Timestamp:  now,
		}
	}

	var (
		evidence       []string
		whaleToExCount int
		whaleToExUSD   decimal.Decimal
		exToWhaleCount int
		exToWhaleUSD   decimal.Decimal
		mmMoves        int
		recentWhale    int
	)

	oneHourAgo := now.Add(-time.Hour)

	for i := range transfers {
		t := &transfers[i]
		t.AmountUSD = priceUSD(t.Amount, price)

		switch {
		case t.FromRole == RoleWhale && t.ToRole == RoleExchange:
			whaleToExCount++
			whaleToExUSD = whaleToExUSD.Add(flowValue(t))
			evidence = append(evidence, flowLine("\U0001F534", t))

		case t.FromRole == RoleExchange && t.ToRole == RoleWhale:
			exToWhaleCount++
			exToWhaleUSD = exToWhaleUSD.Add(flowValue(t))
			evidence = append(evidence, flowLine("\U0001F7E2", t))
		}

		if t.FromRole == RoleMarketMaker || t.ToRole == RoleMarketMaker {
			mmMoves++
		}
		if (t.FromRole == RoleWhale || t.ToRole == RoleWhale) && t.Timestamp.After(oneHourAgo) {
			recentWhale++
		}
	}

	confidence := baseConfidence
	confidence += min(whaleToExCount*cfg.WhaleTransferBoost, directionCap)
	confidence += min(exToWhaleCount*cfg.WhaleTransferBoost, directionCap)

	large := decimal.NewFromFloat(cfg.LargeTransferUSD)
	if whaleToExUSD.GreaterThan(large) || exToWhaleUSD.GreaterThan(large) {
		confidence += cfg.LargeAmountBoost
	}
	if recentWhale > 0 {
		confidence += min(recentWhale*cfg.RecentActivityBoost, recentCap)
	}
	if confidence > maxConfidence {
		confidence = maxConfidence
	}

	var bias Bias
	switch {
	case mmMoves >= mmVolatilityCount:
		bias = BiasVolatility
		evidence = prepend(evidence,
			fmt.Sprintf("⚠️ High market maker activity detected (%d moves)", mmMoves))
	case whaleToExCount > exToWhaleCount:
		bias = BiasBearish
		evidence = prepend(evidence,
			fmt.Sprintf("\U0001F4C9 %d whale deposits to exchanges detected", whaleToExCount))
	case exToWhaleCount > whaleToExCount:
		bias = BiasBullish
		evidence = prepend(evidence,
			fmt.Sprintf("\U0001F4C8 %d whale withdrawals from exchanges detected", exToWhaleCount))
	case whaleToExCount == exToWhaleCount && whaleToExCount > 0:
		bias = BiasVolatility
	default:
		bias = BiasNeutral
		confidence -= neutralPenalty
		if confidence < neutralFloor {
			confidence = neutralFloor
		}
	}

	if len(evidence) > maxEvidence {
		evidence = evidence[:maxEvidence]
	}

	return Assessment{
		Bias:                bias,
		Confidence:          confidence,
		Evidence:            evidence,
		WhaleTransfers:      whaleToExCount + exToWhaleCount,
		ExchangeInflowUSD:   whaleToExUSD,
		ExchangeOutflowUSD:  exToWhaleUSD,
		MarketMakerActivity: mmMoves > 0,
		AnalyzedTransfers:   len(transfers),
		Timestamp:           now,
	}
}

// flowValue prefers the USD valuation and falls back to the raw token amount
// when no spot price is known.
func flowValue(t *Transfer) decimal.Decimal {
	if t.AmountUSD.IsPositive() {
		return t.AmountUSD
	}
	return t.Amount
}

// flowLine renders one evidence entry for a whale/exchange transfer.
func flowLine(marker string, t *Transfer) string {
	if t.AmountUSD.IsPositive() {
		return fmt.Sprintf("%s %s -> %s: $%s", marker, t.FromLabel, t.ToLabel,
			t.AmountUSD.Round(0).String())
	}
	return fmt.Sprintf("%s %s -> %s: %s tokens", marker, t.FromLabel, t.ToLabel,
		t.Amount.Round(2).String())
}

func prepend(evidence []string, head string) []string {
	return append([]string{head}, evidence...)
}
