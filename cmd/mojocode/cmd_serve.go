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

	"github.com/martinemde/mojocode/agent"
	"github.com/martinemde/mojocode/codegen"
	"github.com/martinemde/mojocode/config"
	"github.com/martinemde/mojocode/internal/observability"
	"github.com/martinemde/mojocode/realtime"
	"github.com/martinemde/mojocode/unifiedllm"
)

const shutdownTimeout = 10 * time.Second

// newServeCmd creates the "mojocode serve" subcommand.
func newServeCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve agent sessions over websockets",
		Long:  "Start the websocket service. Each connection to /ws gets its own agent session.\n/health reports liveness.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, os.Stdout)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "address to listen on (overrides config)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := observability.Logger()

	client, model, err := newModel(cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	var opts []realtime.Option
	opts = append(opts, realtime.WithLogger(logger), realtime.WithAllowedOrigins(cfg.AllowedOrigins))
	if cfg.RedisURL != "" {
		relay, err := realtime.NewRedisRelay(cfg.RedisURL, cfg.RelayChannelPrefix)
		if err != nil {
			return err
		}
		defer relay.Close()
		if err := relay.Ping(ctx); err != nil {
			logger.Warn("redis relay unreachable, publishing anyway", "error", err)
		}
		opts = append(opts, realtime.WithRelay(relay))
	}

	srv := newServer(cfg, model, logger, opts...)
	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Listen, "primary", cfg.Primary.URL, "auxiliary", cfg.AuxiliaryNames())
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", "active", srv.Active())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = httpServer.Shutdown(shutdownCtx)
	_ = srv.Close()
	return err
}

// newServer wires the session configuration into a realtime server.
func newServer(cfg *config.Config, model codegen.Streamer, logger *slog.Logger, opts ...realtime.Option) *realtime.Server {
	return realtime.NewServer(agent.Config{
		Endpoints: cfg.Endpoints(),
		Model:     model,
		Logger:    logger,
	}, opts...)
}

// newModel builds the unifiedllm client and the code generation model on
// top of it.
func newModel(cfg *config.Config, logger *slog.Logger) (*unifiedllm.Client, *codegen.Model, error) {
	provider := cfg.Model.Provider
	adapter, err := unifiedllm.NewGollmAdapter(provider, cfg.Model.APIKey,
		unifiedllm.WithModel(cfg.Model.Name),
		unifiedllm.WithMaxTokens(cfg.Model.MaxTokens),
		unifiedllm.WithTemperature(cfg.Model.Temperature),
	)
	if err != nil {
		return nil, nil, err
	}
	client := unifiedllm.NewClient(
		unifiedllm.WithProvider(provider, adapter),
		unifiedllm.WithDefaultProvider(provider),
		unifiedllm.WithStreamMiddleware(logStreams()),
	)
	model := codegen.NewModel(client,
		codegen.WithModelID(cfg.Model.Name),
		codegen.WithProvider(provider),
		codegen.WithTemperature(cfg.Model.Temperature),
		codegen.WithLogger(logger),
	)
	return client, model, nil
}

// logStreams logs the outcome of opening each model stream on the
// context's session-scoped logger.
func logStreams() unifiedllm.StreamMiddleware {
	return func(ctx context.Context, req unifiedllm.Request, next func(context.Context, unifiedllm.Request) (<-chan unifiedllm.StreamEvent, error)) (<-chan unifiedllm.StreamEvent, error) {
		start := time.Now()
		ch, err := next(ctx, req)
		l := observability.LoggerFromContext(ctx)
		if err != nil {
			l.Warn("model stream open failed", "provider", req.Provider, "model", req.Model, "error", err)
			return nil, err
		}
		l.Debug("model stream opened", "provider", req.Provider, "model", req.Model,
			"messages", len(req.Messages), "elapsed_ms", time.Since(start).Milliseconds())
		return ch, nil
	}
}
