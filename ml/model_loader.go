package ml

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
)

// modelEnvelope is the on-disk form of a fitted regressor.
type modelEnvelope struct {
	Type            string          `json:"type"`
	TargetTransform string          `json:"target_transform"`
	Preprocessor    string          `json:"preprocessor"`
	TrainedAt       time.Time       `json:"trained_at"`
	Params          json.RawMessage `json:"params"`
}

// ModelArtifact is a decoded model file.
type ModelArtifact struct {
	Model  Regressor
	Target TargetTransform
	// Preprocessor is the fingerprint of the preprocessor the model was
	// fitted behind.
	Preprocessor string
	TrainedAt    time.Time
}

type validator interface {
	validate() error
}

// NewRegressor builds an unfitted candidate by name.
func NewRegressor(name string, opts Options) (Regressor, error) {
	switch name {
	case "linear":
		return NewLinearRegression(), nil
	case "ridge":
		if opts.RidgeAlpha <= 0 {
			return nil, errors.New("ridge requires a positive alpha")
		}
		return NewRidge(opts.RidgeAlpha), nil
	case "decision_tree":
		return NewDecisionTree(opts.MaxTreeDepth, opts.MinSamplesLeaf), nil
	case "knn":
		return NewKNNRegressor(opts.KNNNeighbors), nil
	default:
		return nil, fmt.Errorf("unsupported model type %q", name)
	}
}

// SaveModel writes model bound to the fitted preprocessor pre.
func SaveModel(path string, model Regressor, target TargetTransform, pre *Preprocessor) error {
	if model == nil || target == nil || pre == nil {
		return errors.New("model, target transform and preprocessor are required")
	}
	fingerprint, err := pre.Fingerprint()
	if err != nil {
		return err
	}
	params, err := json.Marshal(model)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(modelEnvelope{
		Type:            model.Name(),
		TargetTransform: target.Name(),
		Preprocessor:    fingerprint,
		TrainedAt:       time.Now().UTC(),
		Params:          params,
	})
	if err != nil {
		return err
	}
	return writeArtifact(path, payload)
}

// LoadModel decodes a model artifact together with the target transform it
// was fitted under and the preprocessor fingerprint it is bound to.
func LoadModel(path string) (*ModelArtifact, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var env modelEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	if env.Preprocessor == "" {
		return nil, fmt.Errorf("model %s is not bound to a preprocessor", path)
	}

	var model Regressor
	switch env.Type {
	case "linear", "ridge":
		model = &LinearRegression{}
	case "decision_tree":
		model = &DecisionTree{}
	case "knn":
		model = &KNNRegressor{}
	default:
		return nil, fmt.Errorf("model %s: unsupported model type %q", path, env.Type)
	}
	if err := json.Unmarshal(env.Params, model); err != nil {
		return nil, fmt.Errorf("decode %s params in %s: %w", env.Type, path, err)
	}
	if model.Name() != env.Type {
		return nil, fmt.Errorf("model %s: params describe %q, envelope says %q", path, model.Name(), env.Type)
	}
	if v, ok := model.(validator); ok {
		if err := v.validate(); err != nil {
			return nil, fmt.Errorf("model %s: %w", path, err)
		}
	}

	target, err := TargetByName(env.TargetTransform)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	return &ModelArtifact{
		Model:        model,
		Target:       target,
		Preprocessor: env.Preprocessor,
		TrainedAt:    env.TrainedAt,
	}, nil
}
