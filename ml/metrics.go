package ml

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Scores compares held-out targets with predictions in whatever space both
// are given.
type Scores struct {
	R2   float64 `json:"r2"`
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
}

func Evaluate(actual, predicted []float64) (Scores, error) {
	if len(actual) == 0 {
		return Scores{}, errors.New("no samples to evaluate")
	}
	if len(actual) != len(predicted) {
		return Scores{}, errors.New("actual and predicted size mismatch")
	}

	var sq, abs float64
	for i, a := range actual {
		d := predicted[i] - a
		sq += d * d
		abs += math.Abs(d)
	}
	n := float64(len(actual))
	return Scores{
		R2:   stat.RSquaredFrom(predicted, actual, nil),
		RMSE: math.Sqrt(sq / n),
		MAE:  abs / n,
	}, nil
}
