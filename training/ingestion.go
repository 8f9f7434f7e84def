package training

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"houseprice/apperr"
	"houseprice/config"
	"houseprice/dataset"
)

// IngestionResult 数据摄取结果
type IngestionResult struct {
	Raw       *dataset.Table
	Train     *dataset.Table
	Test      *dataset.Table
	TrainPath string
	TestPath  string
}

// Ingester reads the raw dataset and writes the deterministic train/test
// partitions next to the other artifacts.
type Ingester struct {
	cfg       config.Training
	artifacts string
	log       *zap.Logger
}

func NewIngester(cfg config.Training, artifactsDir string, log *zap.Logger) *Ingester {
	return &Ingester{cfg: cfg, artifacts: artifactsDir, log: log}
}

func (in *Ingester) Ingest(ctx context.Context) (*IngestionResult, error) {
	const op = "training.Ingester.Ingest"

	if err := ctx.Err(); err != nil {
		return nil, apperr.E(apperr.Training, op, err)
	}

	raw, err := dataset.ReadCSVFile(in.cfg.RawData, in.cfg.Encoding)
	if err != nil {
		return nil, apperr.E(apperr.InvalidData, op, err)
	}
	if raw.Len() == 0 {
		return nil, apperr.Errorf(apperr.InvalidData, op, "%s has no rows", in.cfg.RawData)
	}
	if !raw.Has(in.cfg.Target) {
		return nil, apperr.Errorf(apperr.SchemaMismatch, op, "target column %q not in %s", in.cfg.Target, in.cfg.RawData)
	}
	in.log.Info("raw dataset loaded",
		zap.String("path", in.cfg.RawData),
		zap.Int("rows", raw.Len()),
		zap.Int("columns", len(raw.Columns)),
	)

	train, test, err := dataset.TrainTestSplit(raw, in.cfg.TestRatio, in.cfg.Seed)
	if err != nil {
		return nil, apperr.E(apperr.InvalidData, op, err)
	}

	result := &IngestionResult{
		Raw:       raw,
		Train:     train,
		Test:      test,
		TrainPath: filepath.Join(in.artifacts, "train.csv"),
		TestPath:  filepath.Join(in.artifacts, "test.csv"),
	}
	if err := dataset.WriteCSVFile(result.TrainPath, train); err != nil {
		return nil, apperr.E(apperr.Training, op, err)
	}
	if err := dataset.WriteCSVFile(result.TestPath, test); err != nil {
		return nil, apperr.E(apperr.Training, op, err)
	}
	in.log.Info("train/test split written",
		zap.Int("train_rows", train.Len()),
		zap.Int("test_rows", test.Len()),
		zap.String("train_path", result.TrainPath),
		zap.String("test_path", result.TestPath),
	)
	return result, nil
}
