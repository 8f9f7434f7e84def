package predict

import (
	"context"
	"math"

	"go.uber.org/zap"

	"houseprice/apperr"
	"houseprice/housing"
)

// Pipeline turns one feature row into a price estimate.
type Pipeline struct {
	source ArtifactSource
	log    *zap.Logger
}

func NewPipeline(source ArtifactSource, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{source: source, log: log}
}

// Result is an estimate together with the model that produced it.
type Result struct {
	Estimate float64
	Model    string
}

// Predict loads the artifacts, transforms the row and returns the estimate on
// the price scale. Any failure aborts with no partial result.
func (p *Pipeline) Predict(ctx context.Context, row housing.FeatureRow) (float64, error) {
	result, err := p.Estimate(ctx, row)
	if err != nil {
		return 0, err
	}
	return result.Estimate, nil
}

func (p *Pipeline) Estimate(ctx context.Context, row housing.FeatureRow) (Result, error) {
	const op = "predict.Pipeline.Estimate"

	artifacts, err := p.source.Load(ctx)
	if err != nil {
		return Result{}, apperr.E(apperr.Unknown, op, err)
	}

	X, err := artifacts.Preprocessor.Transform(row.Table())
	if err != nil {
		return Result{}, apperr.E(apperr.Unknown, op, err)
	}

	predictions, err := artifacts.Model.Predict(X)
	if err != nil {
		return Result{}, apperr.E(apperr.InvalidData, op, err)
	}
	if len(predictions) != 1 {
		return Result{}, apperr.Errorf(apperr.InvalidData, op, "expected one prediction, got %d", len(predictions))
	}

	estimate := artifacts.Target.Inverse(predictions[0])
	if math.IsNaN(estimate) || math.IsInf(estimate, 0) {
		return Result{}, apperr.Errorf(apperr.InvalidData, op, "estimate is not finite (raw prediction %v)", predictions[0])
	}

	p.log.Debug("estimate computed",
		zap.String("model", artifacts.Model.Name()),
		zap.Float64("raw", predictions[0]),
		zap.Float64("estimate", estimate),
	)
	return Result{Estimate: estimate, Model: artifacts.Model.Name()}, nil
}
