package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danilokhury/termdock/internal/devserver"
	"github.com/danilokhury/termdock/internal/infrastructure/config"
	"github.com/danilokhury/termdock/internal/infrastructure/logging"
	"github.com/danilokhury/termdock/internal/infrastructure/monitoring"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	host := flag.String("host", cfg.Host, "Listen host")
	port := flag.String("port", cfg.Port, "Listen port")
	saveDir := flag.String("save-dir", cfg.SaveDir, "Directory for saved images and memories")
	profiles := flag.String("profiles", cfg.Profiles, "Optional YAML profile table")
	flag.Parse()
	cfg.Host, cfg.Port, cfg.SaveDir, cfg.Profiles = *host, *port, *saveDir, *profiles

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer logger.Sync()

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)

	srv, err := devserver.New(cfg, logger, metrics)
	if err != nil {
		logger.Fatal("server init failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })
	if err := g.Wait(); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}
