package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/guidepostlabs/guidepost/internal/adapters/memory"
	redisstore "github.com/guidepostlabs/guidepost/internal/adapters/redis"
	"github.com/guidepostlabs/guidepost/internal/advice"
	"github.com/guidepostlabs/guidepost/internal/config"
	"github.com/guidepostlabs/guidepost/internal/conversation"
	"github.com/guidepostlabs/guidepost/internal/metrics"
	"github.com/guidepostlabs/guidepost/internal/persistence/middleware"
	"github.com/guidepostlabs/guidepost/internal/server"
	"github.com/guidepostlabs/guidepost/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the advice web server",
	Long:  `Starts the Guidepost web server, serving the advice form and talking to the configured chat completion provider.`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := newLogger(cmd)

		cfg, err := loadConfig(cmd)
		if err != nil {
			logger.Error("failed to load configuration", "error", err)
			os.Exit(1)
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		apiKey, err := config.ResolveAPIKey(cmd.Context(), cfg.Secrets, logger)
		if err != nil {
			logger.Error("no usable API key", "error", err)
			os.Exit(1)
		}

		sessions, closeStore := newSessionManager(cfg, logger)
		defer closeStore()

		registry := prometheus.NewRegistry()
		m := metrics.New(registry)

		advisor := advice.New(apiKey,
			advice.WithBaseURL(cfg.Advice.BaseURL),
			advice.WithModel(cfg.Advice.Model),
			advice.WithTimeout(cfg.Advice.RequestTimeout.Std()),
			advice.WithLogger(logger),
		)

		controller := conversation.NewController(metrics.InstrumentAdvisor(m, advisor), logger)

		web := server.New(controller, sessions,
			server.WithLogger(logger),
			server.WithMetricsHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
		)

		srv := &http.Server{
			Addr:    cfg.Server.Addr,
			Handler: web.Handler(),
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			logger.Info("starting server", "addr", srv.Addr, "model", cfg.Advice.Model, "store", cfg.Sessions.Store)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		// Blocking main and waiting for shutdown.
		select {
		case err := <-serverErrors:
			logger.Error("server error", "error", err)
			os.Exit(1)

		case sig := <-shutdown:
			logger.Info("starting shutdown", "signal", sig.String())

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("graceful shutdown did not complete", "timeout", 5*time.Second, "error", err)
				if err := srv.Close(); err != nil {
					logger.Error("failed to stop server", "error", err)
				}
			}
			logger.Info("server stopped")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (overrides the configuration file)")
}

// newSessionManager assembles the configured session store, the optional
// persistence middleware around it, and the manager that serializes access.
// The returned func releases whatever the store holds open.
func newSessionManager(cfg config.Config, logger *slog.Logger) (*session.Manager, func()) {
	store, locker, closeStore := newSessionStore(cfg, logger)

	// Masking runs before sealing, so the ciphertext never carries
	// unmasked text.
	if key := cfg.Sessions.ActiveEncryptionKey(); key != nil {
		store = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    key,
			FallbackKeys: cfg.Sessions.FallbackEncryptionKeys(),
		})(store)
		logger.Info("session encryption at rest enabled")
	}
	if len(cfg.Sessions.PIIPatterns) > 0 {
		store = middleware.NewPIIMiddleware(cfg.Sessions.PIIPatterns)(store)
		logger.Info("session pii masking enabled", "patterns", len(cfg.Sessions.PIIPatterns))
	}

	opts := []session.Option{session.WithLogger(logger)}
	if locker != nil {
		opts = append(opts, session.WithLocker(locker))
	}

	return session.NewManager(store, opts...), closeStore
}

func newSessionStore(cfg config.Config, logger *slog.Logger) (conversation.Store, conversation.Locker, func()) {
	switch cfg.Sessions.Store {
	case config.StoreRedis:
		logger.Info("using redis session store", "addr", cfg.Sessions.Redis.Addr)
		client := redisstore.NewClient(cfg.Sessions.Redis.Addr, cfg.Sessions.Redis.Password, cfg.Sessions.Redis.DB)
		store := redisstore.NewFromClient(client, redisstore.WithTTL(cfg.Sessions.TTL.Std()))
		locker := redisstore.NewLocker(client, "guidepost:")
		return store, locker, func() { _ = store.Close() }
	default:
		store := memory.NewStore(memory.WithTTL(cfg.Sessions.TTL.Std()))
		return store, nil, func() { _ = store.Close() }
	}
}
