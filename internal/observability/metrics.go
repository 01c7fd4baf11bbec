// Package observability exposes Prometheus metrics and component health for
// the engine process.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every instrument the pipeline reports into.
type Metrics struct {
	ScanCycles       prometheus.Counter
	ScanCycleErrors  prometheus.Counter
	ScanDuration     prometheus.Histogram
	SymbolsScanned   prometheus.Counter
	Opportunities    prometheus.Counter
	CooldownSkips    prometheus.Counter
	MomentumSkips    prometheus.Counter
	AlertsEmitted    *prometheus.CounterVec
	TransfersFetched prometheus.Counter
	ResolverMisses   prometheus.Counter
	FeedSize         prometheus.Gauge
}

// New registers the metric set on the given registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ScanCycles: factory.NewCounter(prometheus.CounterOpts{
			Name: "tidewatch_scan_cycles_total",
			Help: "Completed scan cycles.",
		}),
		ScanCycleErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "tidewatch_scan_cycle_errors_total",
			Help: "Scan cycles that ended with an error.",
		}),
		ScanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tidewatch_scan_cycle_duration_seconds",
			Help:    "Wall-clock duration of a full scan cycle.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		SymbolsScanned: factory.NewCounter(prometheus.CounterOpts{
			Name: "tidewatch_symbols_scanned_total",
			Help: "Symbols evaluated by the market scanner.",
		}),
		Opportunities: factory.NewCounter(prometheus.CounterOpts{
			Name: "tidewatch_opportunities_total",
			Help: "Opportunities that passed the scanner thresholds.",
		}),
		CooldownSkips: factory.NewCounter(prometheus.CounterOpts{
			Name: "tidewatch_cooldown_skips_total",
			Help: "Opportunities suppressed by the per-symbol cooldown.",
		}),
		MomentumSkips: factory.NewCounter(prometheus.CounterOpts{
			Name: "tidewatch_momentum_skips_total",
			Help: "Opportunities dropped by the short-horizon momentum gate.",
		}),
		AlertsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tidewatch_alerts_emitted_total",
			Help: "Alerts emitted, partitioned by severity.",
		}, []string{"severity"}),
		TransfersFetched: factory.NewCounter(prometheus.CounterOpts{
			Name: "tidewatch_transfers_fetched_total",
			Help: "On-chain transfers fetched for corroboration.",
		}),
		ResolverMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "tidewatch_resolver_misses_total",
			Help: "Symbols with no resolvable token contract.",
		}),
		FeedSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tidewatch_feed_size",
			Help: "Alerts currently held in the dashboard feed.",
		}),
	}
}
