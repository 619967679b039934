package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/paceriz/paceriz/internal"
	"github.com/paceriz/paceriz/internal/config"
	"github.com/paceriz/paceriz/internal/logging"
	"github.com/paceriz/paceriz/pkg"

	log "github.com/sirupsen/logrus"
)

func main() {
	fmt.Println("starting ...")

	env := flag.String("env", "development", "environment [prod | production | dev | development | ddev | dockerdev ]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	flag.Parse()

	log.Warnf("---->> running in [%s] environment", *env)

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
		SentryServerName: "paceriz-backend",
	})

	log.Debugf("using port: %d", cfg.Port)
	log.Debugf("using server logs path: [%s]", cfg.LogsPath)

	versionInfo, err := tryGetLastCommitHash()
	if err != nil {
		log.Tracef("failed to get last commit hash / version info: %s", err)
	} else {
		log.Tracef("running version: %s", versionInfo)
	}

	adminUsername := os.Getenv("PACERIZ_ADMIN_USERNAME")
	adminPasswordHash := os.Getenv("PACERIZ_ADMIN_PASSWORD_HASH")
	if adminUsername == "" || adminPasswordHash == "" {
		log.Fatalf("admin username and password not set. use PACERIZ_ADMIN_USERNAME and PACERIZ_ADMIN_PASSWORD_HASH")
	}

	syncerSecret := os.Getenv("PACERIZ_SYNCER_SECRET")
	if syncerSecret == "" {
		log.Errorf("syncer secret not set. use PACERIZ_SYNCER_SECRET")
	}

	garminClientID := os.Getenv("PACERIZ_GARMIN_CLIENT_ID")
	if garminClientID == "" {
		log.Errorf("garmin client id not set. use PACERIZ_GARMIN_CLIENT_ID")
	}
	garminClientSecret := os.Getenv("PACERIZ_GARMIN_CLIENT_SECRET")
	if garminClientSecret == "" {
		log.Errorf("garmin client secret not set. use PACERIZ_GARMIN_CLIENT_SECRET")
	}

	redisPassword := os.Getenv("PACERIZ_REDIS_PASS")
	if redisPassword == "" {
		log.Errorf("redis password not set. use PACERIZ_REDIS_PASS")
	}

	var gdriveCredentialsJson []byte
	if gdriveCredentialsPath := os.Getenv("PACERIZ_GDRIVE_CREDENTIALS_PATH"); gdriveCredentialsPath != "" {
		gdriveCredentialsJson, err = os.ReadFile(gdriveCredentialsPath)
		if err != nil {
			log.Fatalf("read google drive credentials file: %s", err)
		}
	}

	if otelServiceName := os.Getenv("OTEL_SERVICE_NAME"); otelServiceName == "" {
		log.Warnln("OTEL_SERVICE_NAME env var not set")
	}

	honeycombEnabled := os.Getenv("HONEYCOMB_ENABLED") == "true"
	if honeycombEnabled {
		if honeycombApiKey := os.Getenv("HONEYCOMB_API_KEY"); honeycombApiKey == "" {
			log.Warnln("HONEYCOMB_API_KEY env var not set")
		}
	} else {
		log.Debugln("honeycomb tracing disabled")
	}

	chOsInterrupt := make(chan os.Signal, 1)
	signal.Notify(chOsInterrupt, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())

	server, err := internal.NewServer(
		ctx,
		internal.NewServerParams{
			Config:                  cfg,
			SyncerSecret:            syncerSecret,
			VersionInfo:             versionInfo,
			AdminUsername:           adminUsername,
			AdminPasswordHash:       adminPasswordHash,
			RedisPassword:           redisPassword,
			GarminClientID:          garminClientID,
			GarminClientSecret:      garminClientSecret,
			GDriveCredentialsJson:   gdriveCredentialsJson,
			HoneycombTracingEnabled: honeycombEnabled,
		},
	)
	if err != nil {
		log.Fatalf("new server: %s", err)
	}

	server.Serve(ctx, cfg.Host, cfg.Port)

	receivedSig := <-chOsInterrupt
	log.Warnf("signal [%s] received, killing everything ...", receivedSig)
	cancel()

	server.GracefulShutdown()
}

// tryGetLastCommitHash will try to get the last commit hash
// assumes that the built main executable is in project root
func tryGetLastCommitHash() (string, error) {
	cmd := exec.Command("/usr/bin/git", "rev-parse", "HEAD")
	stdout, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return pkg.BytesToString(stdout), nil
}
