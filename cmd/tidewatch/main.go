package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tidewatch-trading/tidewatch/internal/alert"
	"github.com/tidewatch-trading/tidewatch/internal/alert/store"
	"github.com/tidewatch-trading/tidewatch/internal/bus"
	"github.com/tidewatch-trading/tidewatch/internal/config"
	"github.com/tidewatch-trading/tidewatch/internal/dashboard"
	"github.com/tidewatch-trading/tidewatch/internal/engine"
	"github.com/tidewatch-trading/tidewatch/internal/hub"
	"github.com/tidewatch-trading/tidewatch/internal/intel"
	"github.com/tidewatch-trading/tidewatch/internal/market"
	"github.com/tidewatch-trading/tidewatch/internal/observability"
	"github.com/tidewatch-trading/tidewatch/internal/scanner"
	"github.com/tidewatch-trading/tidewatch/internal/tokens"
)

func main() {
	// 1. Parse flags.
	configPath := flag.String("config", "config/config.yaml", "Path to configuration file")
	once := flag.Bool("once", false, "Run a single scan cycle and exit")
	dryRun := flag.Bool("dry-run", false, "Log alerts only, never deliver to chat channels")
	flag.Parse()

	// 2. Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config from %s: %v\n", *configPath, err)
		os.Exit(1)
	}

	// 3. Setup logging.
	setupLogging(cfg.General)

	log.Info().Msg("=============================================")
	log.Info().Msg("TIDEWATCH - Futures Intelligence Engine")
	log.Info().Msg("SCAN -> RESOLVE -> INSPECT -> ALERT")
	log.Info().Msg("=============================================")

	quiet := *dryRun || cfg.General.DryRun
	log.Info().
		Str("instance_id", cfg.General.InstanceID).
		Bool("dry_run", quiet).
		Bool("once", *once).
		Dur("scan_interval", cfg.ScanInterval()).
		Dur("cooldown", cfg.Cooldown()).
		Int("top_opportunities", cfg.Engine.TopOpportunities).
		Float64("spike_multiplier", cfg.Scanner.VolumeSpikeMultiplier).
		Float64("min_volume_usd", cfg.Scanner.MinVolumeUSD).
		Msg("Configuration loaded")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Configuration validation failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 4. Market data feed.
	feed := market.NewBinanceClient(cfg.Binance.RESTURL, cfg.Binance.RateLimitRPS,
		time.Duration(cfg.Binance.TimeoutSec)*time.Second)

	// 5. Market scanner.
	sc := scanner.New(scanner.Config{
		VolumeSpikeMultiplier: cfg.Scanner.VolumeSpikeMultiplier,
		PriceChangeThreshold:  cfg.Scanner.PriceChangeThreshold,
		MinVolumeUSD:          cfg.Scanner.MinVolumeUSD,
		CandleInterval:        cfg.Scanner.CandleInterval,
		CandleLookback:        cfg.Scanner.CandleLookback,
	}, feed, tokens.StaticLookup)

	// 6. Wallet registry and on-chain inspector.
	registry := intel.NewRegistry()
	if err := registry.LoadFile(cfg.Inspector.WalletRegistryPath); err != nil {
		log.Fatal().Err(err).Str("path", cfg.Inspector.WalletRegistryPath).
			Msg("Wallet registry load failed")
	}
	log.Info().Int("known_wallets", registry.Size()).Msg("Wallet registry ready")

	resolver := tokens.NewResolver(
		tokens.NewDexScreenerClient(cfg.DexScreen.APIURL,
			time.Duration(cfg.DexScreen.TimeoutSec)*time.Second),
		cfg.DexScreen.MinLiquidityUSD,
	)
	fetcher := intel.NewDispatcher(
		intel.NewExplorerClient(cfg.Explorer.APIURL, cfg.Explorer.APIKey,
			time.Duration(cfg.Explorer.TimeoutSec)*time.Second, registry),
		intel.NewSolscanClient(cfg.Solscan.APIURL,
			time.Duration(cfg.Solscan.TimeoutSec)*time.Second, registry),
	)
	inspector := intel.NewInspector(resolver, fetcher, intel.ScorerConfig{
		LargeTransferUSD:    cfg.Inspector.LargeTransferUSD,
		WhaleTransferBoost:  cfg.Inspector.WhaleTransferBoost,
		LargeAmountBoost:    cfg.Inspector.LargeAmountBoost,
		RecentActivityBoost: cfg.Inspector.RecentActivityBoost,
	}, cfg.Inspector.TransferLookback)

	// 7. Alert sinks.
	sinks := []alert.Sink{alert.LogSink{}}
	if !quiet {
		if cfg.Alerts.TelegramBotToken != "" && cfg.Alerts.TelegramChatID != "" {
			sinks = append(sinks, alert.NewTelegramSink(cfg.Alerts.TelegramBotToken, cfg.Alerts.TelegramChatID))
			log.Info().Msg("Telegram alerts enabled")
		}
		if cfg.Alerts.DiscordWebhook != "" {
			sinks = append(sinks, alert.NewDiscordSink(cfg.Alerts.DiscordWebhook))
			log.Info().Msg("Discord alerts enabled")
		}
	}
	if len(sinks) == 1 {
		log.Warn().Msg("No chat channels configured - alerts will be logged only")
	}
	notifier := alert.NewNotifier(sinks...)

	// 8. Metrics and health.
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector())
	metrics := observability.New(promRegistry)
	health := observability.NewHealthMonitor()

	// 9. Dashboard feed.
	feedHub := hub.New(cfg.Dashboard.MaxSignals, time.Duration(cfg.Dashboard.RetainHrs)*time.Hour)
	health.Register("feed", func(ctx context.Context) observability.ComponentHealth {
		return observability.ComponentHealth{Status: observability.StatusHealthy,
			Message: fmt.Sprintf("%d signals held", feedHub.Stats().Total)}
	})

	// 10. Engine with optional outputs.
	eng := engine.New(engine.Config{
		ScanInterval:     cfg.ScanInterval(),
		TopOpportunities: cfg.Engine.TopOpportunities,
		Cooldown:         cfg.Cooldown(),
		MinShortTermMove: cfg.Engine.MinShortTermMove,
		BollingerPeriod:  cfg.Engine.BollingerPeriod,
		BollingerStdDev:  cfg.Engine.BollingerStdDev,
		MaxConcurrent:    cfg.Scanner.MaxConcurrent,
	}, feed, sc, inspector, notifier, metrics).WithHub(feedHub)

	if cfg.Redis.Enabled {
		alertBus, err := bus.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Channel)
		if err != nil {
			log.Fatal().Err(err).Msg("Redis connection failed")
		}
		defer alertBus.Close()
		eng.WithPublisher(alertBus)
	}
	if cfg.Postgres.Enabled {
		alertStore, err := store.Open(ctx, cfg.Postgres.DSN, int32(cfg.Postgres.MaxConns))
		if err != nil {
			log.Fatal().Err(err).Msg("Postgres connection failed")
		}
		defer alertStore.Close()
		eng.WithArchiver(alertStore)
	}

	// 11. Single-cycle mode.
	if *once {
		if err := eng.RunCycle(ctx); err != nil {
			log.Fatal().Err(err).Msg("Scan cycle failed")
		}
		log.Info().Msg("Single cycle complete")
		return
	}

	// 12. Run everything under one supervisor.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(gctx) })
	g.Go(func() error {
		feedHub.Run(gctx)
		return nil
	})
	if cfg.Dashboard.Enabled {
		srv := dashboard.NewServer(cfg.Dashboard.ListenAddr, feedHub, health, promRegistry)
		g.Go(func() error { return srv.Run(gctx) })
	}
	if cfg.Metrics.Enabled {
		g.Go(func() error { return serveMetrics(gctx, cfg.Metrics.ListenAddr, promRegistry) })
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("Fatal error")
	}

	log.Info().
		Int("cooldown_entries", eng.CooldownSize()).
		Int("feed_signals", feedHub.Stats().Total).
		Msg("TIDEWATCH - Shutdown complete")
}

// serveMetrics exposes the Prometheus registry on its own listener for
// deployments that keep the dashboard disabled.
func serveMetrics(ctx context.Context, addr string, registry *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info().Str("addr", addr).Msg("Metrics listener started")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return fmt.Errorf("metrics listener: %w", err)
	}
}

func setupLogging(general config.GeneralConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMicro
	level, err := zerolog.ParseLevel(general.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if general.LogFormat == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Str("service", "tidewatch").
			Str("instance", general.InstanceID).Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).
			With().Timestamp().Str("service", "tidewatch").
			Str("instance", general.InstanceID).Logger()
	}
}
