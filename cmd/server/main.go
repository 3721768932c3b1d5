package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/driftwatch/console/internal/api"
	"github.com/driftwatch/console/internal/config"
	"github.com/driftwatch/console/internal/incident"
	"github.com/driftwatch/console/internal/logging"
	"github.com/driftwatch/console/internal/poller"
	"github.com/driftwatch/console/internal/promclient"
	"github.com/driftwatch/console/internal/scoring"
	"github.com/driftwatch/console/internal/version"
	"github.com/driftwatch/console/internal/ws"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional, env vars apply on top)")
	flag.Parse()

	// Load configuration
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Log startup information
	info := version.Get()
	logger.Info("Starting DriftWatch console",
		zap.String("version", info.Version),
		zap.String("gitCommit", info.GitCommit),
		zap.String("buildDate", info.BuildDate),
		zap.String("goVersion", info.GoVersion),
		zap.String("addr", cfg.Server.Addr),
	)

	// Collaborator clients
	promClient, err := promclient.NewClient(logger, promclient.Config{
		URL:     cfg.Integrations.Prometheus.URL,
		Timeout: cfg.Integrations.Prometheus.Timeout,
	})
	if err != nil {
		logger.Fatal("Failed to create metrics backend client", zap.Error(err))
	}

	scoringClient, err := scoring.NewClient(logger, scoring.Config{
		URL:     cfg.Integrations.Scoring.URL,
		Timeout: cfg.Integrations.Scoring.Timeout,
	})
	if err != nil {
		logger.Fatal("Failed to create scoring service client", zap.Error(err))
	}

	window, err := time.ParseDuration(cfg.Polling.Window)
	if err != nil {
		logger.Fatal("Invalid polling window", zap.Error(err))
	}

	// Poller over the incident timeline
	eventLog := incident.NewLog(time.Now())
	p := poller.NewPoller(logger, promClient, scoringClient, eventLog, poller.Config{
		Interval:           cfg.Polling.Interval,
		Window:             window,
		MaxPoints:          cfg.Polling.MaxPoints,
		RateWindowSize:     cfg.Polling.RateWindowSize,
		StalenessThreshold: cfg.Polling.StalenessThreshold,
		WarningThreshold:   cfg.Thresholds.Warning,
		CriticalThreshold:  cfg.Thresholds.Critical,
	})

	hub := ws.NewHub(logger)
	p.SetBroadcaster(hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p.Start(ctx)
	defer p.Stop()

	// Hot-reload drift thresholds when the config file changes
	if *configPath != "" {
		go func() {
			err := config.Watch(ctx, logger, *configPath, func(next *config.Config) {
				p.SetThresholds(next.Thresholds.Warning, next.Thresholds.Critical)
			})
			if err != nil {
				logger.Warn("Config watcher stopped", zap.Error(err))
			}
		}()
	}

	// Create API server
	apiServer := api.NewServer(logger, cfg, p, scoringClient, hub)

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: apiServer.Handler(),
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server starting", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Server shutting down...")

	// Give the server a maximum of 30 seconds to shutdown gracefully
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("Server exited")
}
