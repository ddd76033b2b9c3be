package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"streampay/internal/core/domain"
	"streampay/internal/core/ports"
	"streampay/internal/core/services"
	httphandlers "streampay/internal/handlers/http"
	infrabackup "streampay/internal/infrastructure/backup"
	"streampay/internal/infrastructure/distributed"
	"streampay/internal/infrastructure/feed"
	"streampay/internal/infrastructure/middleware"
	"streampay/internal/infrastructure/monitoring"
	"streampay/internal/infrastructure/repositories"
	"streampay/pkg/backup"
	"streampay/pkg/circuitbreaker"
	"streampay/pkg/clock"
	"streampay/pkg/config"
	"streampay/pkg/logger"
	"streampay/pkg/tracing"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	configPath := os.Getenv("STREAMPAY_CONFIG")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cmd := &cobra.Command{
		Use:           "escrowd",
		Short:         "Serve the payment-streaming escrow over HTTP",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return serve(cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", configPath, "path to config file (env STREAMPAY_CONFIG)")
	return cmd
}

func serve(cfg *config.Config) error {
	startTime := time.Now()

	// Logger
	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	if cfg.UsesDefaultJWTSecret() {
		if err := cfg.GenerateJWTSecret(); err != nil {
			return err
		}
		log.Warn("auth.jwt_secret not configured, signing with an ephemeral secret; tokens die with this process")
	}

	programID, err := domain.ParseAddress(cfg.Escrow.ProgramID)
	if err != nil {
		log.Fatalw("invalid program id", "error", err)
	}

	tp, err := tracing.Init(cfg.Tracing)
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ledger
	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	ledger := repoFactory.CreateLedger()

	// Monitoring
	collector := monitoring.NewPrometheusCollector(prometheus.DefaultRegisterer)
	health := monitoring.NewHealthChecker()
	health.AddLedgerCheck(ledger, cfg.Monitoring.HealthCheckInterval, 2*time.Second)
	if repoFactory.UsingRedis() {
		health.AddRedisCheck(repoFactory.RedisClient(), cfg.Monitoring.HealthCheckInterval, 2*time.Second)
	}
	health.StartBackgroundChecks(ctx)

	// Events: local websocket feed, plus the redis bus when enabled
	feedCfg := feed.DefaultConfig()
	feedCfg.PingInterval = cfg.Events.PingInterval
	feedCfg.PongTimeout = cfg.Events.PongTimeout
	feedCfg.MaxMessageSize = cfg.RateLimiting.WebSocket.MaxMessageSizeBytes
	feedCfg.MaxClients = cfg.RateLimiting.WebSocket.MaxConcurrent
	feedCfg.AllowedOrigins = cfg.Auth.AllowedOrigins
	hub := feed.NewHub(feedCfg, log)
	hub.OnClientsChanged(collector.SetFeedClients)

	var publisher ports.EventPublisher = hub
	var bus *distributed.EventBus
	if cfg.Events.BusEnabled {
		if !repoFactory.UsingRedis() {
			log.Warn("event bus requires the redis ledger backend, publishing locally only")
		} else {
			bus = distributed.NewEventBus(repoFactory.RedisClient(), uuid.NewString(), cfg.Events.BusChannel, log)
			breaker := circuitbreaker.New(circuitbreaker.Config{
				FailureThreshold: cfg.Events.Breaker.MaxFailures,
				SuccessThreshold: 1,
				Timeout:          cfg.Events.Breaker.ResetTimeout,
			})
			breaker.OnStateChange(func(from, to circuitbreaker.State) {
				log.Warnw("event bus breaker changed state", "from", from.String(), "to", to.String())
				collector.SetBusBreakerState(int(to))
			})
			fanout := distributed.NewFanoutPublisher(hub, bus, breaker, log)
			publisher = fanout

			go func() {
				if err := fanout.RelayRemote(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Errorw("remote event relay stopped", "error", err)
				}
			}()
		}
	}

	// Services
	escrow, err := services.NewEscrowService(ledger, clock.System{}, publisher, collector, services.EscrowConfig{
		ProgramID:          programID,
		BaseRate:           cfg.Escrow.BaseRate,
		AllowEmptyWithdraw: cfg.Escrow.AllowEmptyWithdraw,
	}, log)
	if err != nil {
		log.Fatalw("failed to create escrow service", "error", err)
	}
	cachedEscrow := services.NewCachedEscrowService(escrow, cfg.Escrow.GroupCacheTTL)
	go purgeGroupCache(ctx, cachedEscrow, cfg.Escrow.GroupCacheTTL)

	authService := services.NewAuthService(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)

	// Snapshots
	var scheduler *infrabackup.Scheduler
	if cfg.Backup.Enabled {
		storage, err := backup.NewFileStorage(cfg.Backup.Directory)
		if err != nil {
			log.Fatalw("failed to open snapshot directory", "error", err)
		}
		scheduler = infrabackup.NewScheduler(infrabackup.NewLedgerSnapshots(storage), ledger, infrabackup.Config{
			Interval:  cfg.Backup.Interval,
			Retention: cfg.Backup.Retention,
		}, log)
		scheduler.OnSnapshot(collector.ObserveSnapshot)
		go scheduler.Start(ctx)
	}

	// HTTP
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(log),
		middleware.RequestIDMiddleware(),
		middleware.TracingMiddleware(),
		middleware.ErrorHandlerMiddleware(log),
		middleware.NewHTTPRateLimitMiddleware(cfg),
	)

	api := router.Group("/api/v1")
	for _, h := range []ports.HTTPHandler{
		httphandlers.NewEscrowHandler(cachedEscrow, authService, middleware.AuthMiddleware(authService)),
		httphandlers.NewAccountHandler(ledger, cfg.Escrow.FaucetEnabled, cfg.Escrow.FaucetMaxAmount, log),
		httphandlers.NewAuthHandler(authService, cfg.Auth.AccessTokenTTL),
	} {
		h.SetupRoutes(api)
	}

	if cfg.Events.FeedEnabled {
		router.GET("/ws", gin.WrapF(hub.HandleWebSocket))
	}

	router.GET("/health", func(c *gin.Context) {
		status := health.LastStatus()
		c.JSON(http.StatusOK, gin.H{
			"status":    status.Status,
			"checks":    status.Checks,
			"timestamp": status.Timestamp,
			"uptime":    time.Since(startTime).String(),
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		checkCtx, checkCancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer checkCancel()

		status := health.CheckAll(checkCtx)
		if status.Status != monitoring.StatusHealthy {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not_ready",
				"checks": status.Checks,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
			"checks": status.Checks,
		})
	})

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("starting escrowd",
			"address", cfg.Server.Address,
			"program_id", programID.String(),
			"ledger", cfg.Ledger.Backend,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case runErr = <-serverErr:
		log.Errorw("server failed", "error", runErr)
	case sig := <-sigChan:
		log.Infow("received shutdown signal", "signal", sig)
	}

	log.Info("shutting down escrowd...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("error force closing server", "error", closeErr)
		}
	}

	cancel()
	if scheduler != nil {
		scheduler.Stop()
	}
	hub.Close()
	if bus != nil {
		if err := bus.Close(); err != nil {
			log.Errorw("error closing event bus", "error", err)
		}
	}
	// The redis ledger owns the factory's client.
	if err := ledger.Close(); err != nil {
		log.Errorw("error closing ledger", "error", err)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error shutting down tracer", "error", err)
	}

	log.Info("escrowd stopped")
	return runErr
}

func purgeGroupCache(ctx context.Context, cache *services.CachedEscrowService, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cache.Purge()
		}
	}
}
