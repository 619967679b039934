package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paceriz/paceriz/internal/cache"
	"github.com/paceriz/paceriz/internal/client"
	"github.com/paceriz/paceriz/internal/config"
	"github.com/paceriz/paceriz/internal/ingest"
	"github.com/paceriz/paceriz/internal/logging"
	"github.com/paceriz/paceriz/internal/syncer"
	"github.com/paceriz/paceriz/internal/telemetry/metrics"
	"github.com/paceriz/paceriz/internal/telemetry/tracing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const userAgent = "paceriz-syncer"

func main() {
	fmt.Println("starting syncer ...")

	env := flag.String("env", "development", "environment [prod | production | dev | development | ddev | dockerdev ]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	flag.Parse()

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		panic(err)
	}

	sentryDSN := os.Getenv("SENTRY_DSN")
	logging.Setup(logging.LoggerSetupParams{
		LogFileName:      cfg.LogsPath,
		LogToStdout:      cfg.LogToStdout,
		LogLevel:         cfg.LogLevel,
		LogFormatJSON:    false,
		Environment:      cfg.Environment,
		SentryEnabled:    cfg.SentryEnabled,
		SentryDSN:        sentryDSN,
		SentryServerName: userAgent,
	})

	username := os.Getenv("PACERIZ_SYNCER_USERNAME")
	password := os.Getenv("PACERIZ_SYNCER_PASSWORD")
	if username == "" || password == "" {
		log.Fatalf("syncer credentials not set. use PACERIZ_SYNCER_USERNAME and PACERIZ_SYNCER_PASSWORD")
	}

	honeycombEnabled := os.Getenv("HONEYCOMB_ENABLED") == "true"
	otelShutdown, err := tracing.HoneycombSetup(honeycombEnabled, userAgent, nil)
	if err != nil {
		log.Fatalf("honeycomb setup: %s", err)
	}
	defer otelShutdown()

	promRegistry := metrics.SetupPrometheus()
	metricsManager := metrics.NewManager("paceriz", "syncer", promRegistry)

	tracker, err := syncer.NewTracker(cfg.SyncStatePath)
	if err != nil {
		log.Fatalf("new upload tracker: %s", err)
	}

	cacheManager, err := cache.NewManager(cfg.CacheRootPath, metricsManager)
	if err != nil {
		log.Fatalf("new cache manager: %s", err)
	}

	scanner, err := ingest.NewScanner(cfg.IngestWatchDir)
	if err != nil {
		log.Fatalf("new ingest scanner: %s", err)
	}

	apiClient := client.NewClient(
		cfg.BackendBaseURL,
		userAgent,
		client.NewSessionTokenSource(cfg.BackendBaseURL, username, password),
	)

	uploadService := syncer.NewService(apiClient, tracker, metricsManager)
	backgroundManager := syncer.NewBackgroundManager(
		uploadService,
		scanner,
		apiClient,
		cacheManager,
		metricsManager,
		time.Duration(cfg.SyncIntervalMins)*time.Minute,
	)

	metricsAddr := net.JoinHostPort(cfg.PrometheusMetricsHost, cfg.PrometheusMetricsPort)
	metricsServer := &http.Server{
		Addr: metricsAddr,
		Handler: promhttp.HandlerFor(
			promRegistry,
			promhttp.HandlerOpts{},
		),
	}
	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("metrics server, listen and serve: %s", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		chOsInterrupt := make(chan os.Signal, 1)
		signal.Notify(chOsInterrupt, os.Interrupt, syscall.SIGTERM)
		receivedSig := <-chOsInterrupt
		log.Warnf("signal [%s] received, stopping syncer ...", receivedSig)
		cancel()
	}()

	metricsManager.GaugeLifeSignal.Set(1)

	// blocks until ctx is cancelled
	backgroundManager.Run(ctx)

	metricsManager.GaugeLifeSignal.Set(0)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Errorf("metrics server shutdown: %s", err)
	}

	log.Warnln("syncer stopped")
}
