// Package hub keeps a bounded in-memory feed of recent alerts for the
// dashboard. Entries age out after a TTL and the feed never grows past its
// capacity, so a long-running process stays flat on memory.
package hub

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tidewatch-trading/tidewatch/internal/alert"
)

const (
	DefaultCapacity = 1000
	DefaultTTL      = 5 * time.Hour

	pruneInterval = 5 * time.Minute
)

// Hub is a thread-safe, capped, TTL-pruned alert feed. Newest first.
type Hub struct {
	mu       sync.RWMutex
	alerts   []alert.Alert
	capacity int
	ttl      time.Duration

	subsMu sync.Mutex
	subs   map[chan alert.Alert]struct{}
}

func New(capacity int, ttl time.Duration) *Hub {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Hub{
		capacity: capacity,
		ttl:      ttl,
		subs:     make(map[chan alert.Alert]struct{}),
	}
}

// Add inserts an alert at the head of the feed and fans it out to live
// subscribers. Slow subscribers are skipped, never blocked on.
func (h *Hub) Add(a alert.Alert) {
	h.mu.Lock()
	h.alerts = append([]alert.Alert{a}, h.alerts...)
	if len(h.alerts) > h.capacity {
		h.alerts = h.alerts[:h.capacity]
	}
	total := len(h.alerts)
	h.mu.Unlock()

	h.subsMu.Lock()
	for ch := range h.subs {
		select {
		case ch <- a:
		default:
		}
	}
	h.subsMu.Unlock()

	log.Debug().Str("coin", a.Coin).Int("feed_size", total).Msg("hub: alert added")
}

// Recent returns up to limit alerts, newest first. limit <= 0 returns the
// whole feed.
func (h *Hub) Recent(limit int) []alert.Alert {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := len(h.alerts)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]alert.Alert, n)
	copy(out, h.alerts[:n])
	return out
}

// ByCoin returns alerts for one base asset, newest first.
func (h *Hub) ByCoin(coin string, limit int) []alert.Alert {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []alert.Alert
	for _, a := range h.alerts {
		if strings.EqualFold(a.Coin, coin) {
			out = append(out, a)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out
}

// Latest returns the most recent alert, if any.
func (h *Hub) Latest() (alert.Alert, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.alerts) == 0 {
		return alert.Alert{}, false
	}
	return h.alerts[0], true
}

// Size returns the number of alerts currently held.
func (h *Hub) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.alerts)
}

// Stats summarizes the current feed.
type Stats struct {
	Total      int      `json:"total"`
	LongCount  int      `json:"long_count"`
	ShortCount int      `json:"short_count"`
	HighCount  int      `json:"high_count"`
	Coins      []string `json:"coins"`
}

func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := Stats{Total: len(h.alerts)}
	coins := make(map[string]struct{})
	for _, a := range h.alerts {
		switch a.Direction {
		case alert.DirectionLong:
			s.LongCount++
		case alert.DirectionShort:
			s.ShortCount++
		}
		if a.Severity == alert.SeverityHigh {
			s.HighCount++
		}
		coins[a.Coin] = struct{}{}
	}
	for c := range coins {
		s.Coins = append(s.Coins, c)
	}
	sort.Strings(s.Coins)
	return s
}

// Subscribe registers a live feed channel. The returned cancel func must be
// called to release the subscription.
func (h *Hub) Subscribe() (<-chan alert.Alert, func()) {
	ch := make(chan alert.Alert, 16)
	h.subsMu.Lock()
	h.subs[ch] = struct{}{}
	h.subsMu.Unlock()

	return ch, func() {
		h.subsMu.Lock()
		delete(h.subs, ch)
		h.subsMu.Unlock()
		close(ch)
	}
}

// Prune drops entries older than the TTL and returns how many were removed.
func (h *Hub) Prune(now time.Time) int {
	cutoff := now.Add(-h.ttl)

	h.mu.Lock()
	defer h.mu.Unlock()

	kept := h.alerts[:0]
	for _, a := range h.alerts {
		if a.CreatedAt.After(cutoff) {
			kept = append(kept, a)
		}
	}
	removed := len(h.alerts) - len(kept)
	h.alerts = kept

	if removed > 0 {
		log.Info().Int("removed", removed).Msg("hub: pruned expired alerts")
	}
	return removed
}

// Run prunes periodically until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			h.Prune(now)
		}
	}
}
