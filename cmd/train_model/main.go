package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"houseprice/config"
	"houseprice/db"
	"houseprice/logger"
	"houseprice/training"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config")
	dataPath := flag.String("data", "", "raw CSV export, overrides training.raw_data")
	artifactsDir := flag.String("artifacts", "", "artifact directory, overrides artifacts.dir")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *dataPath != "" {
		cfg.Training.RawData = *dataPath
	}
	if *artifactsDir != "" {
		cfg.Artifacts.Dir = *artifactsDir
	}

	zlog, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync()

	if err := db.InitDB(cfg.Database.Path); err != nil {
		zlog.Warn("database unavailable, training log will not be recorded", zap.Error(err))
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, runErr := training.NewOrchestrator(cfg, zlog.Named("training")).Run(ctx)
	if report != nil {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(report); err != nil {
			zlog.Error("failed to print report", zap.Error(err))
		}
	}
	if runErr != nil {
		zlog.Error("training failed", zap.Error(runErr))
		zlog.Sync()
		os.Exit(1)
	}

	zlog.Info("model saved",
		zap.String("model", report.BestModel),
		zap.Float64("r2", report.BestScores.R2),
		zap.String("path", report.ModelPath),
	)
}
