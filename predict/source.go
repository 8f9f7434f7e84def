package predict

import (
	"context"

	"go.uber.org/multierr"

	"houseprice/apperr"
	"houseprice/ml"
)

// Artifacts is one decoded preprocessor and model pair.
type Artifacts struct {
	Preprocessor *ml.Preprocessor
	Model        ml.Regressor
	Target       ml.TargetTransform
}

// ArtifactSource hands out the artifacts used for one prediction.
type ArtifactSource interface {
	Load(ctx context.Context) (*Artifacts, error)
}

// FileSource decodes both artifacts from disk on every call, so a retrained
// model is picked up by the next request.
type FileSource struct {
	PreprocessorPath string
	ModelPath        string
}

func NewFileSource(preprocessorPath, modelPath string) *FileSource {
	return &FileSource{PreprocessorPath: preprocessorPath, ModelPath: modelPath}
}

func (s *FileSource) Load(ctx context.Context) (*Artifacts, error) {
	const op = "predict.FileSource.Load"

	if err := ctx.Err(); err != nil {
		return nil, apperr.E(apperr.Unknown, op, err)
	}

	pre, preErr := loadPreprocessor(s.PreprocessorPath)
	model, modelErr := loadModel(s.ModelPath)
	if err := multierr.Combine(preErr, modelErr); err != nil {
		return nil, apperr.E(apperr.ArtifactLoad, op, err)
	}
	return pair(pre, model)
}

// pair rejects a model that was not fitted behind this preprocessor, as
// happens while a training run is replacing the files.
func pair(pre *ml.Preprocessor, model *ml.ModelArtifact) (*Artifacts, error) {
	const op = "predict.pair"

	fingerprint, err := pre.Fingerprint()
	if err != nil {
		return nil, apperr.E(apperr.ArtifactLoad, op, err)
	}
	if fingerprint != model.Preprocessor {
		return nil, apperr.Errorf(apperr.ArtifactLoad, op,
			"model is bound to preprocessor %.12s, loaded preprocessor is %.12s", model.Preprocessor, fingerprint)
	}
	return &Artifacts{Preprocessor: pre, Model: model.Model, Target: model.Target}, nil
}

func loadPreprocessor(path string) (*ml.Preprocessor, error) {
	pre, err := ml.LoadPreprocessor(path)
	if err != nil {
		return nil, apperr.E(apperr.ArtifactLoad, "predict.loadPreprocessor", err)
	}
	return pre, nil
}

func loadModel(path string) (*ml.ModelArtifact, error) {
	model, err := ml.LoadModel(path)
	if err != nil {
		return nil, apperr.E(apperr.ArtifactLoad, "predict.loadModel", err)
	}
	return model, nil
}
