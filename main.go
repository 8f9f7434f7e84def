package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"houseprice/config"
	"houseprice/db"
	hhttp "houseprice/http"
	"houseprice/logger"
	"houseprice/monitoring"
	"houseprice/predict"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config")
	flag.Parse()

	// 1. Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	// 2. Initialize database
	if err := db.InitDB(cfg.Database.Path); err != nil {
		zlog.Warn("database unavailable, predictions will not be recorded",
			zap.String("path", cfg.Database.Path), zap.Error(err))
	} else {
		zlog.Info("database initialized", zap.String("path", cfg.Database.Path))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Artifact source
	var source predict.ArtifactSource = predict.NewFileSource(cfg.Artifacts.PreprocessorPath(), cfg.Artifacts.ModelPath())
	if cfg.Artifacts.Cache {
		cached, err := predict.NewCachedSource(cfg.Artifacts.PreprocessorPath(), cfg.Artifacts.ModelPath(), cfg.Artifacts.CacheSize, zlog.Named("artifacts"))
		if err != nil {
			zlog.Fatal("failed to build artifact cache", zap.Error(err))
		}
		if cfg.Artifacts.Watch {
			if err := os.MkdirAll(cfg.Artifacts.Dir, 0o755); err != nil {
				zlog.Warn("cannot create artifact directory", zap.String("dir", cfg.Artifacts.Dir), zap.Error(err))
			}
			go func() {
				if err := cached.Watch(ctx, nil); err != nil {
					zlog.Warn("artifact watcher stopped, purging cache", zap.Error(err))
					cached.Invalidate()
				}
			}()
		}
		source = cached
	}

	// 4. Live feed
	hub := monitoring.NewHub(zlog.Named("feed"))
	go hub.Run(ctx)

	// 5. Start HTTP server
	server := hhttp.NewServer(hhttp.ServerConfigFrom(cfg), &hhttp.App{
		Pipeline: predict.NewPipeline(source, zlog.Named("predict")),
		Hub:      hub,
		Metrics:  monitoring.NewMetricsCollector(),
		Log:      zlog.Named("http"),
	})
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// 6. Handle graceful shutdown
	select {
	case <-ctx.Done():
		zlog.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			zlog.Error("http server failed", zap.Error(err))
		}
	}
	stop()

	if err := multierr.Combine(server.Stop(), db.Close()); err != nil {
		zlog.Error("shutdown incomplete", zap.Error(err))
	}
	zlog.Info("exiting")
}
