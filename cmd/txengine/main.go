package main

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vultisig/txengine/internal/graceful"
	"github.com/vultisig/txengine/internal/metrics"
)

func main() {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	cfg, err := newConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Fatalf("invalid log level %q: %v", cfg.LogLevel, err)
	}
	logger.SetLevel(level)

	ctx, cancel := graceful.WithSignalCancel(context.Background(), logger)

	metricsServer := metrics.StartMetricsServer(cfg.Metrics, []string{metrics.ServiceEngine}, logger)

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Fatalf("failed to initialize: %v", err)
	}

	err = newRootCmd(a).ExecuteContext(ctx)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if stopErr := metricsServer.Stop(shutdownCtx); stopErr != nil {
		logger.Errorf("failed to stop metrics server: %v", stopErr)
	}
	shutdownCancel()

	if err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}
