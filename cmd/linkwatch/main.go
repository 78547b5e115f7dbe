// linkwatch connects to the table gateway and prints every unified
// status transition, retry countdown tick, and read-only edge to the
// console. It is the quickest way to watch the recovery behavior
// against a real or simulated gateway.
//
// Usage: go run ./cmd/linkwatch --config configs/tablelink.example.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nullspace-games/tablelink/internal/config"
	"github.com/nullspace-games/tablelink/internal/health"
	"github.com/nullspace-games/tablelink/internal/readonly"
	"github.com/nullspace-games/tablelink/internal/reconnect"
	"github.com/nullspace-games/tablelink/internal/transport"
)

func main() {
	configPath := flag.String("config", "configs/tablelink.example.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "print full message JSON")
	disconnectAfter := flag.Duration("disconnect-after", 0, "manually disconnect after this duration (0 = never)")
	flag.Parse()

	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nshutting down...")
		cancel()
	}()

	monitor := health.New(health.Config{
		ProbeURL:          probeURL,
		Interval:          cfg.Health.Interval,
		ProbeTimeout:      cfg.Health.ProbeTimeout,
		UnstableThreshold: cfg.Health.UnstableThreshold,
		OfflineThreshold:  cfg.Health.OfflineThreshold,
		Debounce:          cfg.Health.Debounce,
	}, logger)

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

	coord := reconnect.New(reconnect.Config{
		StabilizationDelay: cfg.Reconnect.StabilizationDelay,
		CountdownTick:      cfg.Reconnect.CountdownTick,
	}, link, monitor, logger)

	gate := readonly.NewGate(coord, cfg.ReadOnly.TransitionWindow, nil)

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

	fmt.Printf("watching %s (ctrl-c to quit)\n", cfg.Gateway.URL)

	if *disconnectAfter > 0 {
		go func() {
			select {
			case <-ctx.Done():
			case <-time.After(*disconnectAfter):
				fmt.Printf("%s [action] manual disconnect\n", stamp())
				coord.Disconnect()
			}
		}()
	}

	// Message stream
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-link.Messages():
				if !ok {
					return
				}
				if *verbose {
					fmt.Printf("%s [msg] %s %s\n", stamp(), msg.Type, string(msg.Data))
				} else {
					fmt.Printf("%s [msg] %s\n", stamp(), msg.Type)
				}
			}
		}
	}()

	lastStatus := reconnect.Status(-1)
	lastCountdown := -1
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

			if st.Status != lastStatus {
				lastStatus = st.Status
				fmt.Printf("%s [status] %s (network=%s attempt=%d/%d)\n",
					stamp(), st.Status, st.Network, st.ReconnectAttempt, st.MaxReconnectAttempts)
			}

			if st.NextReconnectIn != nil && *st.NextReconnectIn != lastCountdown {
				lastCountdown = *st.NextReconnectIn
				fmt.Printf("%s [countdown] retrying in %ds\n", stamp(), lastCountdown)
			} else if st.NextReconnectIn == nil {
				lastCountdown = -1
			}

			gs := gate.State()
			if gs.IsReadOnly != wasReadOnly {
				wasReadOnly = gs.IsReadOnly
				if gs.IsReadOnly {
					fmt.Printf("%s [read-only] entered: %s\n", stamp(), gs.Message)
				} else {
					fmt.Printf("%s [read-only] exited\n", stamp())
				}
			}
		}
	}
}

func stamp() string {
	return time.Now().Format("15:04:05.000")
}
