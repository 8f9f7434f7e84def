package training

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"houseprice/apperr"
	"houseprice/ml"
)

// Candidate is one fitted model and its held-out scores.
type Candidate struct {
	Name     string        `json:"name"`
	Scores   ml.Scores     `json:"scores"`
	Duration time.Duration `json:"duration"`
	model    ml.Regressor
}

type TrainerResult struct {
	Candidates []Candidate
	Best       Candidate
}

// Trainer fits every configured candidate and keeps the best by R².
type Trainer struct {
	models []string
	opts   ml.Options
	minR2  float64
	log    *zap.Logger
}

func NewTrainer(models []string, opts ml.Options, minR2 float64, log *zap.Logger) *Trainer {
	return &Trainer{models: models, opts: opts, minR2: minR2, log: log}
}

// Train scores candidates in the target transform's space. The first
// candidate wins ties. A best R² below the minimum is a Training error.
func (t *Trainer) Train(ctx context.Context, data *TransformResult) (*TrainerResult, error) {
	const op = "training.Trainer.Train"

	if len(t.models) == 0 {
		return nil, apperr.Errorf(apperr.Training, op, "no candidate models configured")
	}

	result := &TrainerResult{}
	best := -1
	for _, name := range t.models {
		if err := ctx.Err(); err != nil {
			return nil, apperr.E(apperr.Training, op, err)
		}

		model, err := ml.NewRegressor(name, t.opts)
		if err != nil {
			return nil, apperr.E(apperr.Training, op, err)
		}

		started := time.Now()
		if err := model.Fit(data.XTrain, data.YTrain); err != nil {
			return nil, apperr.Errorf(apperr.Training, op, "fit %s: %v", name, err)
		}
		predicted, err := model.Predict(data.XTest)
		if err != nil {
			return nil, apperr.Errorf(apperr.Training, op, "predict %s: %v", name, err)
		}
		scores, err := ml.Evaluate(data.YTest, predicted)
		if err != nil {
			return nil, apperr.Errorf(apperr.Training, op, "evaluate %s: %v", name, err)
		}

		candidate := Candidate{Name: name, Scores: scores, Duration: time.Since(started), model: model}
		result.Candidates = append(result.Candidates, candidate)
		t.log.Info("candidate scored",
			zap.String("model", name),
			zap.Float64("r2", scores.R2),
			zap.Float64("rmse", scores.RMSE),
			zap.Float64("mae", scores.MAE),
			zap.Duration("duration", candidate.Duration),
		)

		if best < 0 || math.IsNaN(result.Candidates[best].Scores.R2) || scores.R2 > result.Candidates[best].Scores.R2 {
			best = len(result.Candidates) - 1
		}
	}

	result.Best = result.Candidates[best]
	if !(result.Best.Scores.R2 >= t.minR2) {
		return result, apperr.Errorf(apperr.Training, op,
			"no model reached R2 %.3f (best %s scored %.3f)", t.minR2, result.Best.Name, result.Best.Scores.R2)
	}
	return result, nil
}

// Model returns the fitted regressor behind the candidate.
func (c Candidate) Model() ml.Regressor {
	return c.model
}
