// Package bus distributes emitted alerts over Redis so that external
// consumers (dashboards, downstream bots) can follow the signal stream
// without touching the engine process.
package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/tidewatch-trading/tidewatch/internal/alert"
)

// DefaultChannel is the Pub/Sub channel alerts are published on.
const DefaultChannel = "tidewatch:alerts"

// streamMaxLen bounds the durable alert stream via XADD MAXLEN ~.
const streamMaxLen int64 = 10000

// AlertBus publishes alerts to Redis Pub/Sub for live consumers and appends
// them to a capped stream for consumers that need replay.
type AlertBus struct {
	rdb     *redis.Client
	channel string
}

// Connect dials Redis and verifies connectivity. An empty channel selects
// DefaultChannel.
func Connect(ctx context.Context, addr, password string, db int, channel string) (*AlertBus, error) {
	if channel == "" {
		channel = DefaultChannel
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("bus: ping redis: %w", err)
	}

	log.Info().Str("addr", addr).Str("channel", channel).Msg("bus: redis connected")
	return &AlertBus{rdb: rdb, channel: channel}, nil
}

// Publish sends an alert to the live channel and the durable stream. A stream
// append failure is logged but does not fail the publish; live delivery is
// the primary contract.
func (b *AlertBus) Publish(ctx context.Context, a alert.Alert) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("bus: marshal alert: %w", err)
	}

	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("bus: publish %s: %w", b.channel, err)
	}

	streamErr := b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: b.channel + ":stream",
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{"payload": payload},
	}).Err()
	if streamErr != nil {
		log.Warn().Err(streamErr).Msg("bus: stream append failed")
	}
	return nil
}

// Subscribe returns a channel of decoded alerts. The subscription closes when
// the context is cancelled; undecodable payloads are dropped with a warning.
func (b *AlertBus) Subscribe(ctx context.Context) (<-chan alert.Alert, error) {
	pubsub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("bus: subscribe %s: %w", b.channel, err)
	}

	out := make(chan alert.Alert, 64)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var a alert.Alert
				if err := json.Unmarshal([]byte(msg.Payload), &a); err != nil {
					log.Warn().Err(err).Msg("bus: dropping undecodable alert payload")
					continue
				}
				select {
				case out <- a:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close releases the Redis connection.
func (b *AlertBus) Close() error {
	return b.rdb.Close()
}
