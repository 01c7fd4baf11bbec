// Package store persists emitted alerts to PostgreSQL for later review.
// Persistence is optional; the engine runs fine without a database and the
// dashboard falls back to the in-memory feed.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/tidewatch-trading/tidewatch/internal/alert"
	"github.com/tidewatch-trading/tidewatch/internal/intel"
)

const schema = `
CREATE TABLE IF NOT EXISTS alerts (
	id            UUID PRIMARY KEY,
	coin          TEXT NOT NULL,
	symbol        TEXT NOT NULL,
	direction     TEXT NOT NULL,
	severity      TEXT NOT NULL,
	price         DOUBLE PRECISION NOT NULL,
	volume_usd    DOUBLE PRECISION NOT NULL,
	spike_ratio   DOUBLE PRECISION NOT NULL,
	band_target   DOUBLE PRECISION NOT NULL,
	change_5m_pct DOUBLE PRECISION NOT NULL,
	bias          TEXT NOT NULL,
	confidence    INT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS alerts_coin_idx ON alerts (coin, created_at DESC);
CREATE INDEX IF NOT EXISTS alerts_created_idx ON alerts (created_at DESC);
`

// AlertStore writes alert history through a pgx connection pool.
type AlertStore struct {
	pool *pgxpool.Pool
}

// Open connects to PostgreSQL and ensures the alerts schema exists.
func Open(ctx context.Context, dsn string, maxConns int32) (*AlertStore, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ensure schema: %w", err)
	}

	log.Info().Msg("store: alert history connected")
	return &AlertStore{pool: pool}, nil
}

// Save inserts one alert row.
func (s *AlertStore) Save(ctx context.Context, a alert.Alert) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO alerts (id, coin, symbol, direction, severity, price, volume_usd,
			spike_ratio, band_target, change_5m_pct, bias, confidence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		a.ID, a.Coin, a.Symbol, string(a.Direction), string(a.Severity),
		a.Price, a.VolumeUSD, a.SpikeRatio, a.BandTarget, a.Change5mPct,
		string(a.Bias), a.Confidence, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: insert alert: %w", err)
	}
	return nil
}

// Recent returns the newest alerts, newest first.
func (s *AlertStore) Recent(ctx context.Context, limit int) ([]alert.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, coin, symbol, direction, severity, price, volume_usd,
			spike_ratio, band_target, change_5m_pct, bias, confidence, created_at
		FROM alerts ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list alerts: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// RecentByCoin returns the newest alerts for one base asset.
func (s *AlertStore) RecentByCoin(ctx context.Context, coin string, limit int) ([]alert.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, coin, symbol, direction, severity, price, volume_usd,
			spike_ratio, band_target, change_5m_pct, bias, confidence, created_at
		FROM alerts WHERE coin = $1 ORDER BY created_at DESC LIMIT $2`, coin, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list alerts by coin: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// CountSince returns the number of alerts emitted after the cutoff.
func (s *AlertStore) CountSince(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM alerts WHERE created_at > $1`, cutoff).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: count alerts: %w", err)
	}
	return n, nil
}

// Close releases the connection pool.
func (s *AlertStore) Close() {
	s.pool.Close()
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanAlerts(rows pgxRows) ([]alert.Alert, error) {
	var alerts []alert.Alert
	for rows.Next() {
		var a alert.Alert
		var direction, severity, bias string
		if err := rows.Scan(&a.ID, &a.Coin, &a.Symbol, &direction, &severity,
			&a.Price, &a.VolumeUSD, &a.SpikeRatio, &a.BandTarget, &a.Change5mPct,
			&bias, &a.Confidence, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan alert: %w", err)
		}
		a.Direction = alert.Direction(direction)
		a.Severity = alert.Severity(severity)
		a.Bias = intel.Bias(bias)
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return alerts, nil
}
