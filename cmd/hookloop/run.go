package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tfield/hookloop"
	"github.com/tfield/hookloop/config"
	"github.com/tfield/hookloop/internal/stream"
)

const shutdownTimeout = 10 * time.Second

// newLogger creates a JSON logger for CLI use.
func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// runCmd runs all configured pollers until interrupted.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the configured pollers",
	Long: `Run every poller defined in the config file.

Pollers run until interrupted (Ctrl+C) or SIGTERM. Poll outcomes are
logged as JSON on stderr. With --listen, an HTTP server is started and
outcomes are streamed as JSON to websocket clients on /ws.

Example:
  hookloop run -c config.yaml
  hookloop run -c config.yaml --listen :8080`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	runCmd.Flags().String("listen", "", "address to serve websocket updates on (optional)")
	_ = runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	configFile, _ := cmd.Flags().GetString("config")
	listenAddr, _ := cmd.Flags().GetString("listen")

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger.Info("config loaded",
		"pollers", len(cfg.Pollers),
		"poll_interval", cfg.PollInterval.Duration().String(),
	)

	var broadcaster *stream.Broadcaster
	if listenAddr != "" {
		broadcaster = stream.NewBroadcaster(logger)
	}

	hooks := config.Hooks{
		Logger: logger,
		OnSuccess: func(name string, r hookloop.FetchResult) {
			logger.Info("poll succeeded",
				"poller", name,
				"status_code", r.StatusCode,
				"latency_ms", r.Latency.Milliseconds(),
			)
			if broadcaster != nil {
				broadcaster.Publish(stream.Update{
					Poller:     name,
					OK:         true,
					StatusCode: r.StatusCode,
					LatencyMs:  r.Latency.Milliseconds(),
					At:         time.Now(),
				})
			}
		},
		OnError: func(name string, err error, attempt int) {
			logger.Warn("poll attempt failed",
				"poller", name,
				"attempt", attempt,
				"error", err.Error(),
			)
			if broadcaster != nil {
				broadcaster.Publish(stream.Update{
					Poller:  name,
					OK:      false,
					Error:   err.Error(),
					Attempt: attempt,
					At:      time.Now(),
				})
			}
		},
	}

	runners, err := config.BuildPollers(cfg, hooks)
	if err != nil {
		return fmt.Errorf("failed to build pollers: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var server *http.Server
	serverErr := make(chan error, 1)
	if broadcaster != nil {
		mux := http.NewServeMux()
		mux.Handle("/ws", broadcaster)
		server = &http.Server{Addr: listenAddr, Handler: mux}
		go func() {
			logger.Info("streaming updates", "addr", listenAddr, "path", "/ws")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	for _, r := range runners {
		r.Poller.Start(ctx)
		logger.Info("poller started", "poller", r.Name)
	}

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		stop()
		logger.Error("stream server failed", "error", err)
	}

	logger.Info("shutting down")
	for _, r := range runners {
		r.Poller.Stop()
	}
	if broadcaster != nil {
		broadcaster.Close()
	}
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}

	logger.Info("shutdown complete")
	return nil
}
