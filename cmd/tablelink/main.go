package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nullspace-games/tablelink/internal/config"
	"github.com/nullspace-games/tablelink/internal/health"
	"github.com/nullspace-games/tablelink/internal/readonly"
	"github.com/nullspace-games/tablelink/internal/reconnect"
	"github.com/nullspace-games/tablelink/internal/session"
	"github.com/nullspace-games/tablelink/internal/transport"
	"github.com/nullspace-games/tablelink/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/tablelink.example.yaml", "path to config file")
	flag.Parse()

	// Optional .env so ${GATEWAY_URL} can come from a local dotenv file.
	_ = godotenv.Load()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting tablelink",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	probeURL, err := health.HealthURL(cfg.Gateway.URL)
	if err != nil {
		logger.Error("failed to derive health probe url", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"player_id", cfg.Client.PlayerID,
		"gateway_url", cfg.Gateway.URL,
		"probe_url", probeURL,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Network health monitor
	monitor := health.New(health.Config{
		ProbeURL:          probeURL,
		Interval:          cfg.Health.Interval,
		ProbeTimeout:      cfg.Health.ProbeTimeout,
		UnstableThreshold: cfg.Health.UnstableThreshold,
		OfflineThreshold:  cfg.Health.OfflineThreshold,
		Debounce:          cfg.Health.Debounce,
	}, logger)

	// Gateway transport
	link := transport.NewClient(transport.Config{
		URL:                  cfg.Gateway.URL,
		HandshakeTimeout:     cfg.Gateway.HandshakeTimeout,
		WriteTimeout:         cfg.Gateway.WriteTimeout,
		PingInterval:         cfg.Gateway.PingInterval,
		StaleTimeout:         cfg.Gateway.StaleTimeout,
		ReconnectBaseDelay:   cfg.Gateway.ReconnectBaseDelay,
		ReconnectMaxDelay:    cfg.Gateway.ReconnectMaxDelay,
		MaxReconnectAttempts: cfg.Gateway.MaxReconnectAttempts,
		BufferSize:           cfg.Gateway.MessageBufferSize,
	}, logger)

	// Reconnection coordinator
	coord := reconnect.New(reconnect.Config{
		StabilizationDelay: cfg.Reconnect.StabilizationDelay,
		CountdownTick:      cfg.Reconnect.CountdownTick,
	}, link, monitor, logger)

	// Read-only gate
	gate := readonly.NewGate(coord, cfg.ReadOnly.TransitionWindow, nil)

	// Table session
	sess := session.New(cfg.Client.PlayerID, link, gate, logger)

	if err := monitor.Start(ctx); err != nil {
		logger.Error("failed to start health monitor", "error", err)
		os.Exit(1)
	}
	defer monitor.Stop()

	if err := link.Start(ctx); err != nil {
		logger.Error("failed to start gateway transport", "error", err)
		os.Exit(1)
	}
	defer link.Close()

	if err := coord.Start(ctx); err != nil {
		logger.Error("failed to start reconnection coordinator", "error", err)
		os.Exit(1)
	}
	defer coord.Close()

	sess.Start(link.Messages())
	defer sess.Close()

	// Feed coordinator updates into the gate; log read-only edges.
	go func() {
		wasReadOnly := false
		for {
			select {
			case <-ctx.Done():
				return
			case st, ok := <-coord.Updates():
				if !ok {
					return
				}
				gate.Observe(st.Status)
				gs := gate.State()
				if gs.IsReadOnly != wasReadOnly {
					wasReadOnly = gs.IsReadOnly
					logger.Info("read-only mode changed",
						"read_only", gs.IsReadOnly,
						"reason", gs.Reason.String(),
						"status", st.Status.String(),
					)
				}
			}
		}
	}()

	// Local status endpoint
	var statusServer *http.Server
	if cfg.Status.Port > 0 {
		statusServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Status.Port),
			Handler: createStatusHandler(monitor, coord, gate, sess),
		}
		go func() {
			logger.Info("starting status server", "port", cfg.Status.Port)
			if err := statusServer.ListenAndServe(); err != http.ErrServerClosed {
				logger.Error("status server error", "error", err)
			}
		}()
	}

	logger.Info("tablelink running", "player_id", cfg.Client.PlayerID)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	if statusServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		statusServer.Shutdown(shutdownCtx)
	}

	logger.Info("tablelink stopped")
}

// createStatusHandler exposes the three read models as JSON for local
// inspection.
func createStatusHandler(monitor *health.Monitor, coord *reconnect.Coordinator, gate *readonly.Gate, sess *session.Session) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		net := monitor.Snapshot()
		conn := coord.State()
		gs := gate.State()
		snap := sess.Snapshot()

		status := struct {
			Network    map[string]any `json:"network"`
			Connection map[string]any `json:"connection"`
			ReadOnly   map[string]any `json:"read_only"`
			Session    map[string]any `json:"session"`
		}{
			Network: map[string]any{
				"status":         net.Status.String(),
				"failure_count":  net.FailureCount,
				"last_online_at": net.LastOnlineAt,
			},
			Connection: map[string]any{
				"status":                 conn.Status.String(),
				"reconnect_attempt":      conn.ReconnectAttempt,
				"max_reconnect_attempts": conn.MaxReconnectAttempts,
				"next_reconnect_in":      conn.NextReconnectIn,
				"last_connected_at":      conn.LastConnectedAt,
			},
			ReadOnly: map[string]any{
				"read_only":  gs.IsReadOnly,
				"can_submit": gs.CanSubmit,
				"reason":     gs.Reason.String(),
				"message":    gs.Message,
			},
			Session: map[string]any{
				"session_id":   snap.SessionID,
				"player_id":    snap.PlayerID,
				"balance":      snap.Balance,
				"game_active":  snap.GameActive,
				"last_game_id": snap.LastGameID,
				"last_error":   snap.LastError,
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(status)
	})

	return mux
}
