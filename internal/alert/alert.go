// Package alert builds and delivers trading alert records. An alert combines
// the market-side trigger (volume spike, momentum) with the on-chain read and
// renders the compact one-line message format used across every channel.
package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tidewatch-trading/tidewatch/internal/intel"
)

// Severity ranks an alert by corroboration strength. A directional on-chain
// signal upgrades a technical trigger to high severity.
type Severity string

const (
	SeverityHigh Severity = "high"
	SeverityLow  Severity = "low"
)

// Direction is the short-horizon momentum read driving the band target.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Alert is one emitted signal, ready for delivery and persistence.
type Alert struct {
	ID          uuid.UUID  `json:"id"`
	Coin        string     `json:"coin"`
	Symbol      string     `json:"symbol"`
	Direction   Direction  `json:"direction"`
	Emoji       string     `json:"emoji"`
	Severity    Severity   `json:"severity"`
	Price       float64    `json:"price"`
	VolumeUSD   float64    `json:"volume_usd"`
	SpikeRatio  float64    `json:"volume_spike"`
	BandTarget  float64    `json:"bb_target"`
	Change5mPct float64    `json:"change_5m"`
	Bias        intel.Bias `json:"onchain_bias"`
	Confidence  int        `json:"onchain_confidence"`
	Evidence    []string   `json:"evidence,omitempty"`
	TVLink      string     `json:"tv_link"`
	BinanceLink string     `json:"binance_link"`
	CreatedAt   time.Time  `json:"created_at"`
}

// New assembles an alert for a base asset. Direction and emoji follow the
// short-horizon change sign; severity follows the on-chain bias.
func New(coin, symbol string, price, volumeUSD, spikeRatio, bandTarget, change5m float64, onchain intel.Assessment) Alert {
	direction := DirectionShort
	emoji := "\U0001F534"
	if change5m > 0 {
		direction = DirectionLong
		emoji = "\U0001F7E2"
	}

	severity := SeverityLow
	if onchain.Bias == intel.BiasBullish || onchain.Bias == intel.BiasBearish {
		severity = SeverityHigh
	}

	return Alert{
		ID:          uuid.New(),
		Coin:        coin,
		Symbol:      symbol,
		Direction:   direction,
		Emoji:       emoji,
		Severity:    severity,
		Price:       price,
		VolumeUSD:   volumeUSD,
		SpikeRatio:  spikeRatio,
		BandTarget:  bandTarget,
		Change5mPct: change5m,
		Bias:        onchain.Bias,
		Confidence:  onchain.Confidence,
		Evidence:    onchain.Evidence,
		TVLink:      fmt.Sprintf("https://www.tradingview.com/chart/?symbol=BINANCE%%3A%sUSDT.P", coin),
		BinanceLink: fmt.Sprintf("https://www.binance.com/en/futures/%sUSDT", coin),
		CreatedAt:   time.Now(),
	}
}

// Message renders the compact alert line with markdown chart links.
func (a Alert) Message() string {
	line := fmt.Sprintf("#%s %s Price: %s | %s | %.1fx | BB: %.4f | %s",
		a.Coin, a.Emoji, FormatPrice(a.Price), FormatVolume(a.VolumeUSD),
		a.SpikeRatio, a.BandTarget, FormatChange(a.Change5mPct))
	return line + "\n\n" + fmt.Sprintf("[TradingView](%s) | [Binance](%s)", a.TVLink, a.BinanceLink)
}

// Title renders the channel header line.
func (a Alert) Title() string {
	if a.Severity == SeverityHigh {
		return fmt.Sprintf("\U0001F6A8 WHALE SIGNAL: %s", a.Coin)
	}
	return fmt.Sprintf("⚠️ TECHNICAL SIGNAL: %s", a.Coin)
}

// FormatVolume renders a USD volume in compact form: 300K, 1.5M.
func FormatVolume(v float64) string {
	switch {
	case v >= 1_000_000:
		return fmt.Sprintf("%.1fM", v/1_000_000)
	case v >= 1_000:
		return fmt.Sprintf("%.0fK", v/1_000)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}

// FormatPrice renders a price with precision scaled to its magnitude. Large
// caps get two decimals with thousands grouping, micro caps keep enough
// digits to stay meaningful.
func FormatPrice(p float64) string {
	switch {
	case p >= 1:
		return "$" + groupThousands(fmt.Sprintf("%.2f", p))
	case p >= 0.01:
		return fmt.Sprintf("$%.4f", p)
	default:
		s := strings.TrimRight(fmt.Sprintf("%.8f", p), "0")
		s = strings.TrimRight(s, ".")
		return "$" + s
	}
}

// FormatChange renders a signed percentage with two decimals.
func FormatChange(pct float64) string {
	return fmt.Sprintf("%+.2f%%", pct)
}

// groupThousands inserts commas into the integer part of a fixed-point
// decimal string.
func groupThousands(s string) string {
	intPart, fracPart, hasFrac := strings.Cut(s, ".")
	if len(intPart) <= 3 {
		if hasFrac {
			return intPart + "." + fracPart
		}
		return intPart
	}

	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	if hasFrac {
		b.WriteString("." + fracPart)
	}
	return b.String()
}
