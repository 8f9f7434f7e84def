// Package training runs the batch flow that produces the preprocessor and
// model artifacts: ingestion, cleaning, transformation and model selection.
package training

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"houseprice/apperr"
	"houseprice/config"
	"houseprice/db"
	"houseprice/housing"
	"houseprice/ml"
)

// Report summarises one training run.
type Report struct {
	RunID            string         `json:"run_id"`
	StartedAt        time.Time      `json:"started_at"`
	Duration         time.Duration  `json:"duration"`
	RawRows          int            `json:"raw_rows"`
	TrainRows        int            `json:"train_rows"`
	TestRows         int            `json:"test_rows"`
	Issues           []QualityIssue `json:"issues,omitempty"`
	Features         int            `json:"features"`
	Candidates       []Candidate    `json:"candidates"`
	BestModel        string         `json:"best_model"`
	BestScores       ml.Scores      `json:"best_scores"`
	TrainPath        string         `json:"train_path"`
	TestPath         string         `json:"test_path"`
	PreprocessorPath string         `json:"preprocessor_path"`
	ModelPath        string         `json:"model_path"`
}

// keyColumn identifies a sale in the Ames export; duplicates are dropped.
const keyColumn = "PID"

type Orchestrator struct {
	cfg *config.Config
	log *zap.Logger
}

func NewOrchestrator(cfg *config.Config, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{cfg: cfg, log: log}
}

// Run executes every stage in order. Any failure aborts the run; artifacts
// already written by earlier stages are left in place.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	const op = "training.Orchestrator.Run"

	report := &Report{
		RunID:            uuid.NewString(),
		StartedAt:        time.Now().UTC(),
		PreprocessorPath: o.cfg.Artifacts.PreprocessorPath(),
		ModelPath:        o.cfg.Artifacts.ModelPath(),
	}
	log := o.log.With(zap.String("run_id", report.RunID))
	log.Info("training run started", zap.String("raw_data", o.cfg.Training.RawData))

	ingested, err := NewIngester(o.cfg.Training, o.cfg.Artifacts.Dir, log.Named("ingestion")).Ingest(ctx)
	if err != nil {
		return nil, apperr.E(apperr.Unknown, op, err)
	}
	report.RawRows = ingested.Raw.Len()
	report.TrainPath = ingested.TrainPath
	report.TestPath = ingested.TestPath

	cleaner := NewHousingCleaner(o.cfg.Training.Target, housing.NumericColumns(), keyColumn, log.Named("cleaning"))
	train, trainIssues := cleaner.Clean(ingested.Train)
	test, testIssues := cleaner.Clean(ingested.Test)
	report.Issues = append(trainIssues, testIssues...)
	report.TrainRows = train.Len()
	report.TestRows = test.Len()
	log.Info("cleaning finished",
		zap.Int("train_rows", train.Len()),
		zap.Int("test_rows", test.Len()),
		zap.Int("issues", len(report.Issues)),
	)

	transformer := NewTransformer(housing.NumericColumns(), housing.CategoricalColumns(), o.cfg.Training.Target, log.Named("transformation"))
	data, err := transformer.Transform(train, test)
	if err != nil {
		return nil, apperr.E(apperr.Unknown, op, err)
	}
	report.Features = data.Preprocessor.Width()

	trainer := NewTrainer(o.cfg.Training.Models, ml.Options{
		RidgeAlpha:     o.cfg.Training.RidgeAlpha,
		MaxTreeDepth:   o.cfg.Training.MaxTreeDepth,
		MinSamplesLeaf: o.cfg.Training.MinSamplesLeaf,
		KNNNeighbors:   o.cfg.Training.KNNNeighbors,
	}, o.cfg.Training.MinR2, log.Named("trainer"))
	result, err := trainer.Train(ctx, data)
	if result != nil {
		report.Candidates = result.Candidates
		report.BestModel = result.Best.Name
		report.BestScores = result.Best.Scores
		o.record(log, report)
	}
	if err != nil {
		report.Duration = time.Since(report.StartedAt)
		return report, apperr.E(apperr.Unknown, op, err)
	}

	// the pair is written only once the best model has cleared min_r2, so a
	// rejected run leaves the served artifacts alone
	err = o.saveArtifacts(report, data, result.Best.Model())
	report.Duration = time.Since(report.StartedAt)
	if err != nil {
		return report, apperr.E(apperr.Training, op, err)
	}
	log.Info("training run finished",
		zap.String("best_model", report.BestModel),
		zap.Float64("r2", report.BestScores.R2),
		zap.String("model_path", report.ModelPath),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

func (o *Orchestrator) saveArtifacts(report *Report, data *TransformResult, model ml.Regressor) error {
	if err := data.Preprocessor.Save(report.PreprocessorPath); err != nil {
		return err
	}
	return ml.SaveModel(report.ModelPath, model, data.Target, data.Preprocessor)
}

// record stores the candidates in the training log when a database is open.
// A failed insert does not fail the run.
func (o *Orchestrator) record(log *zap.Logger, report *Report) {
	if !db.Ready() {
		return
	}
	entries := make([]db.TrainingLog, 0, len(report.Candidates))
	for _, c := range report.Candidates {
		entries = append(entries, db.TrainingLog{
			RunID:     report.RunID,
			ModelName: c.Name,
			R2:        c.Scores.R2,
			RMSE:      c.Scores.RMSE,
			MAE:       c.Scores.MAE,
			Selected:  c.Name == report.BestModel,
			TrainRows: report.TrainRows,
			TestRows:  report.TestRows,
			TrainedAt: report.StartedAt,
		})
	}
	if err := db.SaveTrainingRun(entries); err != nil {
		log.Error("failed to record training run", zap.Error(err))
	}
}
