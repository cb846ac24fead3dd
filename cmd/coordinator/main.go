package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"liveflow/internal/core/ports"
	"liveflow/internal/core/services"
	httphandlers "liveflow/internal/handlers/http"
	"liveflow/internal/infrastructure/middleware"
	"liveflow/internal/infrastructure/moderation"
	"liveflow/internal/infrastructure/monitoring"
	repositories "liveflow/internal/infrastructure/repositories"
	"liveflow/internal/infrastructure/transport"
	"liveflow/pkg/config"
	"liveflow/pkg/logger"
	"liveflow/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/liveflow/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error

	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}

	if err != nil {
		// Fallback to defaults if config cannot be loaded
		cfg = config.DefaultConfig()
	}

	// Initialize logger
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer log.Sync()

	// Initialize tracing
	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tp.Shutdown(ctx)
	}()

	// Initialize repository factory
	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	defer repoFactory.Close()

	broadcastRepo := repoFactory.CreateBroadcastRepository()

	// Initialize monitoring
	collector := monitoring.NewPrometheusCollector()

	healthChecker := monitoring.NewHealthChecker()
	healthChecker.AddCheck("repository", func(ctx context.Context) (bool, error) {
		err := repoFactory.HealthCheck(ctx)
		return err == nil, err
	}, 30*time.Second, 2*time.Second)

	// Initialize moderation (optional)
	var moderator ports.Moderator
	if cfg.Moderation.Enabled {
		moderator = moderation.NewClassifier(
			cfg.Moderation.ForbiddenWords,
			cfg.Moderation.ClassifierURL,
			cfg.Moderation.Timeout,
			log,
		)
		log.Info("chat moderation enabled")
	}

	// Initialize transport and coordinator. The websocket server is the
	// coordinator's notifier, so it is built first and wired afterwards.
	roster := transport.NewGroupRoster()
	wsServer := transport.NewWebSocketServer(nil, roster, transport.Config{
		PingInterval:      cfg.Transport.PingInterval,
		PongTimeout:       cfg.Transport.PongTimeout,
		WriteTimeout:      cfg.Transport.WriteTimeout,
		SendBuffer:        cfg.Transport.SendBuffer,
		RateLimitEnabled:  cfg.RateLimiting.Enabled,
		MessagesPerSecond: cfg.RateLimiting.WebSocket.MessagesPerSecond,
		Burst:             cfg.RateLimiting.WebSocket.Burst,
		MaxMessageSize:    cfg.RateLimiting.WebSocket.MaxMessageSizeBytes,
	}, log)

	coordinator := services.NewCoordinatorService(
		broadcastRepo,
		wsServer,
		roster,
		moderator,
		collector,
		services.MatchPolicy{
			AvoidLastPartner: cfg.Matchmaking.AvoidLastPartner,
			WaiveWhenAlone:   cfg.Matchmaking.WaiveWhenAlone,
		},
		log,
	)
	wsServer.SetCoordinator(coordinator)

	// Initialize HTTP handlers
	directoryHandler := httphandlers.NewDirectoryHandler(coordinator, healthChecker)

	// Configure Gin
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}

	directoryHandler.SetupRoutes(router)
	router.GET("/ws", wsServer.HandleWebSocket)

	// Readiness endpoint
	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := repoFactory.HealthCheck(ctx); err != nil {
			c.JSON(503, gin.H{
				"status":    "not_ready",
				"timestamp": time.Now(),
				"error":     err.Error(),
			})
			return
		}

		c.JSON(200, gin.H{
			"status":    "ready",
			"timestamp": time.Now(),
		})
	})

	// Prometheus metrics on a dedicated listener
	if cfg.Monitoring.PrometheusEnabled {
		metricsAddr := fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			log.Infow("Prometheus metrics enabled", "address", metricsAddr)
			if err := http.ListenAndServe(metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				log.Errorw("metrics server failed", "error", err)
			}
		}()
	}

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting LiveFlow coordinator on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for shutdown signals or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down LiveFlow coordinator...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new connections, then close the live ones
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("HTTP server shutdown failed", "error", err)
	}
	wsServer.Shutdown()

	log.Info("Shutdown complete")
}
