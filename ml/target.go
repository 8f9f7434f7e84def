package ml

import (
	"fmt"
	"math"

	"houseprice/apperr"
)

// TargetTransform maps prices into the space regressors are fitted in and
// back. Inverse(Forward(v)) == v for every valid v.
type TargetTransform interface {
	Name() string
	Forward(v float64) (float64, error)
	Inverse(v float64) float64
}

// LogTarget fits on the natural log of the price.
type LogTarget struct{}

func (LogTarget) Name() string { return "log" }

func (LogTarget) Forward(v float64) (float64, error) {
	if !(v > 0) || math.IsInf(v, 0) {
		return 0, apperr.Errorf(apperr.InvalidData, "ml.LogTarget.Forward", "log target requires a positive finite value, got %v", v)
	}
	return math.Log(v), nil
}

func (LogTarget) Inverse(v float64) float64 { return math.Exp(v) }

// IdentityTarget leaves prices untouched.
type IdentityTarget struct{}

func (IdentityTarget) Name() string { return "identity" }

func (IdentityTarget) Forward(v float64) (float64, error) { return v, nil }

func (IdentityTarget) Inverse(v float64) float64 { return v }

func TargetByName(name string) (TargetTransform, error) {
	switch name {
	case "log":
		return LogTarget{}, nil
	case "identity":
		return IdentityTarget{}, nil
	default:
		return nil, fmt.Errorf("unknown target transform %q", name)
	}
}

// ForwardAll applies t to every value, failing on the first invalid one.
func ForwardAll(t TargetTransform, values []float64) ([]float64, error) {
	out := make([]float64, len(values))
	for i, v := range values {
		f, err := t.Forward(v)
		if err != nil {
			return nil, apperr.E(apperr.InvalidData, "ml.ForwardAll", fmt.Errorf("target %d: %w", i, err))
		}
		out[i] = f
	}
	return out, nil
}
