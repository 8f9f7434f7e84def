package ml

import "gonum.org/v1/gonum/mat"

// Regressor is a model fitted on a preprocessed matrix. Targets passed to Fit
// and values returned by Predict live in the target transform's space.
type Regressor interface {
	Name() string
	Fit(X mat.Matrix, y []float64) error
	Predict(X mat.Matrix) ([]float64, error)
}

// Options carries the hyper-parameters of every candidate regressor.
type Options struct {
	RidgeAlpha     float64
	MaxTreeDepth   int
	MinSamplesLeaf int
	KNNNeighbors   int
}

func rowsOf(X mat.Matrix) [][]float64 {
	r, c := X.Dims()
	rows := make([][]float64, r)
	for i := range rows {
		row := make([]float64, c)
		mat.Row(row, i, X)
		rows[i] = row
	}
	return rows
}
