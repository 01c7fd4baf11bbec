// Package dashboard serves the live signal feed over HTTP: a small JSON API,
// a websocket push channel, health, and Prometheus metrics.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/tidewatch-trading/tidewatch/internal/hub"
	"github.com/tidewatch-trading/tidewatch/internal/observability"
)

// Server exposes the alert feed.
type Server struct {
	feed     *hub.Hub
	health   *observability.HealthMonitor
	registry *prometheus.Registry
	srv      *http.Server
	upgrader websocket.Upgrader
}

func NewServer(addr string, feed *hub.Hub, health *observability.HealthMonitor, registry *prometheus.Registry) *Server {
	s := &Server{
		feed:     feed,
		health:   health,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The dashboard is same-host or reverse-proxied; origin checks
			// happen at the proxy.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/signals", s.handleSignals).Methods(http.MethodGet)
	r.HandleFunc("/api/signals/latest", s.handleLatest).Methods(http.MethodGet)
	r.HandleFunc("/api/signals/{coin}", s.handleSignalsByCoin).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", s.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWebsocket)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.srv.Addr).Msg("dashboard: listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	writeJSON(w, http.StatusOK, map[string]any{
		"signals": s.feed.Recent(limit),
		"count":   len(s.feed.Recent(limit)),
	})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	latest, ok := s.feed.Latest()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no signals yet"})
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

func (s *Server) handleSignalsByCoin(w http.ResponseWriter, r *http.Request) {
	coin := mux.Vars(r)["coin"]
	limit := queryInt(r, "limit", 100)
	writeJSON(w, http.StatusOK, map[string]any{
		"coin":    coin,
		"signals": s.feed.ByCoin(coin, limit),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.feed.Stats())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.health.Check(r.Context())
	code := http.StatusOK
	if health.Status == observability.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, health)
}

// handleWebsocket streams new alerts to the client as JSON frames. The
// current feed snapshot is pushed first so a fresh page has history.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("dashboard: websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Subscribe before the snapshot so no alert falls between the two.
	alerts, cancel := s.feed.Subscribe()
	defer cancel()

	if err := conn.WriteJSON(map[string]any{
		"type":    "snapshot",
		"signals": s.feed.Recent(100),
	}); err != nil {
		return
	}

	// Drain client frames so pings and close frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case a, ok := <-alerts:
			if !ok {
				return
			}
			if err := conn.WriteJSON(map[string]any{"type": "signal", "signal": a}); err != nil {
				return
			}
		}
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("dashboard: encode response")
	}
}
