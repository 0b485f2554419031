package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"github.com/psantana5/agencysite/internal/config"
	"github.com/psantana5/agencysite/pkg/api"
	"github.com/psantana5/agencysite/pkg/auth"
	"github.com/psantana5/agencysite/pkg/chat"
	"github.com/psantana5/agencysite/pkg/content"
	"github.com/psantana5/agencysite/pkg/logging"
	"github.com/psantana5/agencysite/pkg/metrics"
	"github.com/psantana5/agencysite/pkg/middleware"
	"github.com/psantana5/agencysite/pkg/ratelimit"
	"github.com/psantana5/agencysite/pkg/retry"
	"github.com/psantana5/agencysite/pkg/shutdown"
	tlsutil "github.com/psantana5/agencysite/pkg/tls"
	"github.com/psantana5/agencysite/pkg/tracing"
	"github.com/psantana5/agencysite/pkg/webhook"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the site API server",
	Long: `Starts the public and admin API. Content is read from the database and falls
back to the built-in bundle (or content.defaults_file) whenever the database is
unavailable, slow or empty.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, "server")
	if err != nil {
		return err
	}
	defer logger.Close()

	logger.Info("Starting siteserver", map[string]interface{}{
		"version":  version,
		"addr":     cfg.Server.Addr,
		"database": cfg.Database.Type,
	})

	mgr := shutdown.New(cfg.Server.ShutdownTimeout, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Logging.ToFile && cfg.Logging.MaxSizeMB > 0 {
		go logger.RunRotation(ctx, time.Minute, int64(cfg.Logging.MaxSizeMB)<<20)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	mgr.Register("store", shutdown.CloseResource(st))

	tracer, err := tracing.InitTracer(tracing.Config{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		Enabled:        cfg.Tracing.Enabled,
		SampleRatio:    cfg.Tracing.SampleRatio,
	}, logger)
	if err != nil {
		logger.Warn("Tracing unavailable, continuing without it", map[string]interface{}{"error": err.Error()})
		tracer = tracing.Noop()
	}
	mgr.Register("tracer", tracer.Shutdown)

	m := metrics.New()
	if err := m.RegisterStore(st); err != nil {
		return fmt.Errorf("failed to register store metrics: %w", err)
	}

	bundle, err := loadBundle(cfg)
	if err != nil {
		return err
	}
	resolver := content.NewResolver(st, bundle, content.Config{
		Timeout:  cfg.Content.Timeout,
		Logger:   logger,
		Observer: m,
		Tracer:   tracer.Tracer(),
	})
	if cfg.Content.DefaultsFile != "" && cfg.Content.Watch {
		watcher, err := content.NewWatcher(cfg.Content.DefaultsFile, resolver, logger)
		if err != nil {
			logger.Warn("Content bundle will not be reloaded", map[string]interface{}{"error": err.Error()})
		} else {
			watcher.Start(ctx)
			mgr.Register("content watcher", shutdown.CloseResource(watcher))
		}
	}

	sessions := auth.NewSessionManager(cfg.Auth.SessionTTL)
	go sessions.Run(ctx, cfg.Auth.SweepInterval)
	if cfg.Auth.APIKey == "" {
		logger.Warn("No API key configured, admin access requires a user session")
	}
	created, err := auth.EnsureAdmin(ctx, st, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword)
	if err != nil {
		return err
	}
	if created {
		logger.Info("Created bootstrap admin user", map[string]interface{}{"email": cfg.Auth.AdminEmail})
	}

	dispatcher := webhook.NewDispatcher(st, webhook.Config{
		Workers:   cfg.Webhooks.Workers,
		QueueSize: cfg.Webhooks.QueueSize,
		Timeout:   cfg.Webhooks.Timeout,
		Retry: retry.Config{
			MaxRetries:     cfg.Webhooks.MaxRetries,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
			Multiplier:     2.0,
		},
		Logger:  logger,
		Metrics: m,
		Tracer:  tracer,
	})
	mgr.Register("webhook dispatcher", dispatcher.Close)

	var completer api.ChatCompleter
	chatClient, err := chat.New(chat.Config{
		APIKey:     cfg.Chat.APIKey,
		BaseURL:    cfg.Chat.BaseURL,
		Model:      cfg.Chat.Model,
		MaxHistory: cfg.Chat.MaxHistory,
		MaxTokens:  cfg.Chat.MaxTokens,
		MaxRetries: cfg.Chat.MaxRetries,
		Timeout:    cfg.Chat.Timeout,
	}, tracer)
	switch {
	case err == nil:
		completer = chatClient
	case errors.Is(err, chat.ErrNotConfigured):
		logger.Warn("chat.api_key is not set, the chat widget is disabled")
	default:
		return err
	}

	limiter := ratelimit.NewLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	go limiter.RunCleanup(ctx, cfg.RateLimit.CleanupInterval, cfg.RateLimit.MaxAge)
	clientIP, err := ratelimit.NewClientIP(cfg.Server.TrustedProxies)
	if err != nil {
		return err
	}

	handler := api.NewHandler(api.Options{
		Store:      st,
		Resolver:   resolver,
		Auth:       auth.NewAuthenticator(sessions, cfg.Auth.APIKey, cfg.Auth.CookieSecure),
		Dispatcher: dispatcher,
		Chat:       completer,
		Limiter:    limiter,
		ClientIP:   clientIP.KeyFunc,
		Metrics:    m,
		Logger:     logger,
	})

	router := mux.NewRouter()
	router.Use(m.Middleware)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      buildHandler(router, cfg, tracer, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	if cfg.TLS.Enabled {
		if srv.TLSConfig, err = serverTLS(cfg, logger); err != nil {
			return err
		}
	}

	errCh := make(chan error, 2)
	if cfg.Metrics.Enabled {
		metricsSrv := m.NewServer(cfg.Metrics.Addr)
		go func() {
			logger.Info("Metrics server listening", map[string]interface{}{"addr": cfg.Metrics.Addr})
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
		mgr.Register("metrics server", shutdown.StopHTTPServer(metricsSrv))
	}

	go func() {
		logger.Info("Site API listening", map[string]interface{}{
			"addr": cfg.Server.Addr,
			"tls":  cfg.TLS.Enabled,
		})
		var err error
		if cfg.TLS.Enabled {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()
	mgr.Register("background tasks", func(context.Context) error {
		cancel()
		return nil
	})
	mgr.Register("api server", shutdown.StopHTTPServer(srv))

	waitCtx, stopWaiting := context.WithCancel(context.Background())
	defer stopWaiting()
	var serveErr error
	go func() {
		select {
		case serveErr = <-errCh:
			logger.Error("Server failed", map[string]interface{}{"error": serveErr.Error()})
			stopWaiting()
		case <-waitCtx.Done():
		}
	}()

	if err := mgr.WaitWithContext(waitCtx); err != nil && serveErr != nil {
		return serveErr
	}
	return nil
}

// buildHandler wraps the router with the middlewares that must also see
// unmatched routes and CORS preflight requests
func buildHandler(router http.Handler, cfg *config.Config, tracer *tracing.Provider, logger *logging.Logger) http.Handler {
	h := middleware.CORS(cfg.Server.CORSOrigins)(router)
	h = tracing.HTTPMiddleware(tracer, "/health")(h)
	h = middleware.RequestLogger(logger)(h)
	return middleware.Recover(logger)(h)
}

func serverTLS(cfg *config.Config, logger *logging.Logger) (*tls.Config, error) {
	if cfg.TLS.AutoGenerate {
		generated, err := tlsutil.EnsureCert(cfg.TLS.CertFile, cfg.TLS.KeyFile, tlsutil.CertOptions{
			CommonName: "agencysite",
			Hosts:      cfg.TLS.Hosts,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to generate certificate: %w", err)
		}
		if generated {
			logger.Warn("Generated a self-signed certificate", map[string]interface{}{
				"cert": cfg.TLS.CertFile,
				"key":  cfg.TLS.KeyFile,
			})
		}
	}
	return tlsutil.LoadTLSConfig(cfg.TLS.CertFile, cfg.TLS.KeyFile)
}
