package training

import (
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"houseprice/apperr"
	"houseprice/dataset"
	"houseprice/ml"
)

// TransformResult holds both partitions as matrices with targets already in
// the target transform's space.
type TransformResult struct {
	Preprocessor *ml.Preprocessor
	Target       ml.TargetTransform
	XTrain       *mat.Dense
	YTrain       []float64
	XTest        *mat.Dense
	YTest        []float64
}

type Transformer struct {
	numeric     []string
	categorical []string
	target      string
	transform   ml.TargetTransform
	log         *zap.Logger
}

func NewTransformer(numeric, categorical []string, target string, log *zap.Logger) *Transformer {
	return &Transformer{
		numeric:     numeric,
		categorical: categorical,
		target:      target,
		transform:   ml.LogTarget{},
		log:         log,
	}
}

// Transform fits the preprocessor on train only and applies it to both
// partitions. Nothing is written; the caller saves the preprocessor next to
// the model it was used for.
func (tr *Transformer) Transform(train, test *dataset.Table) (*TransformResult, error) {
	const op = "training.Transformer.Transform"

	trainX, trainY, err := tr.split(train)
	if err != nil {
		return nil, apperr.E(apperr.Unknown, op, err)
	}
	testX, testY, err := tr.split(test)
	if err != nil {
		return nil, apperr.E(apperr.Unknown, op, err)
	}

	pre, err := ml.NewPreprocessor(tr.numeric, tr.categorical)
	if err != nil {
		return nil, apperr.E(apperr.Training, op, err)
	}
	XTrain, err := pre.FitTransform(trainX)
	if err != nil {
		return nil, apperr.E(apperr.Unknown, op, err)
	}
	XTest, err := pre.Transform(testX)
	if err != nil {
		return nil, apperr.E(apperr.Unknown, op, err)
	}

	tr.log.Info("preprocessor fitted",
		zap.Int("train_rows", len(trainY)),
		zap.Int("features", pre.Width()),
	)

	return &TransformResult{
		Preprocessor: pre,
		Target:       tr.transform,
		XTrain:       XTrain,
		YTrain:       trainY,
		XTest:        XTest,
		YTest:        testY,
	}, nil
}

// split separates features from the transformed target.
func (tr *Transformer) split(t *dataset.Table) (*dataset.Table, []float64, error) {
	const op = "training.Transformer.split"

	if t.Len() == 0 {
		return nil, nil, apperr.Errorf(apperr.InvalidData, op, "partition has no rows")
	}
	values, err := t.Column(tr.target)
	if err != nil {
		return nil, nil, apperr.E(apperr.SchemaMismatch, op, err)
	}
	prices := make([]float64, len(values))
	for i, v := range values {
		f, ok := v.Float()
		if !ok {
			return nil, nil, apperr.Errorf(apperr.InvalidData, op, "row %d: target %q is not numeric", i, v.String())
		}
		prices[i] = f
	}
	y, err := ml.ForwardAll(tr.transform, prices)
	if err != nil {
		return nil, nil, err
	}
	features, err := t.Drop(tr.target)
	if err != nil {
		return nil, nil, apperr.E(apperr.SchemaMismatch, op, err)
	}
	return features, y, nil
}
