package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/valterebelo/polymarket-crypto-tools/internal/metadata"
	"github.com/valterebelo/polymarket-crypto-tools/internal/recorder"
	"github.com/valterebelo/polymarket-crypto-tools/internal/stream"
)

// startHealthServer serves /health and /stats while recording. Port 0
// disables it; the returned func stops the server either way.
func startHealthServer(port int, pool *pgxpool.Pool, conn stream.Conn, rec *recorder.Recorder, cache *metadata.Cache, logger *slog.Logger) func(context.Context) {
	if port <= 0 {
		return func(context.Context) {}
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		if err := pool.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["postgres"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["postgres"] = "connected"
		}

		state := conn.State()
		health.Components["stream"] = string(state)
		if state != stream.StateSubscribed {
			if health.Status == "healthy" {
				health.Status = "degraded"
			}
		}

		markets, _, _, age := cache.Stats()
		health.Components["metadata"] = map[string]any{
			"markets":      markets,
			"snapshot_age": age.String(),
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		streamStats := conn.Stats()
		recStats := rec.Stats()
		markets, refreshes, failures, age := cache.Stats()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"stream": map[string]any{
				"state":             string(streamStats.State),
				"subscriptions":     streamStats.Subscriptions,
				"reconnects":        streamStats.Reconnects,
				"messages_received": streamStats.MessagesReceived,
				"events_delivered":  streamStats.EventsDelivered,
				"parse_errors":      streamStats.ParseErrors,
				"unknown_events":    streamStats.UnknownEvents,
			},
			"recorder": map[string]any{
				"received":         recStats.Received,
				"inserted":         recStats.Inserted,
				"duplicates":       recStats.Duplicates,
				"integrity_errors": recStats.IntegrityErrors,
				"metadata_misses":  recStats.MetadataMisses,
				"flushes":          recStats.Flushes,
				"write_errors":     recStats.WriteErrors,
				"buffered":         rec.Buffered(),
			},
			"metadata": map[string]any{
				"markets":      markets,
				"refreshes":    refreshes,
				"failures":     failures,
				"snapshot_age": age.String(),
			},
		})
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		logger.Info("health server listening", "port", port)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	return func(ctx context.Context) {
		server.Shutdown(ctx)
	}
}
