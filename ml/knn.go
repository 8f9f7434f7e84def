package ml

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// KNNRegressor predicts the mean target of the K nearest training rows by
// Euclidean distance. Ties in distance keep training order.
type KNNRegressor struct {
	K int         `json:"k"`
	X [][]float64 `json:"x"`
	Y []float64   `json:"y"`
}

func NewKNNRegressor(k int) *KNNRegressor {
	return &KNNRegressor{K: k}
}

func (m *KNNRegressor) Name() string { return "knn" }

func (m *KNNRegressor) Fit(X mat.Matrix, y []float64) error {
	r, _ := X.Dims()
	if r == 0 || len(y) == 0 {
		return errors.New("features or targets empty")
	}
	if r != len(y) {
		return errors.New("features and targets size mismatch")
	}
	if m.K <= 0 {
		m.K = 5
	}
	m.X = rowsOf(X)
	m.Y = append([]float64(nil), y...)
	return nil
}

type neighbour struct {
	idx  int
	dist float64
}

func (m *KNNRegressor) Predict(X mat.Matrix) ([]float64, error) {
	if len(m.X) == 0 {
		return nil, errors.New("model not trained")
	}
	_, c := X.Dims()
	if c != len(m.X[0]) {
		return nil, fmt.Errorf("expected %d features, got %d", len(m.X[0]), c)
	}

	k := m.K
	if k > len(m.X) {
		k = len(m.X)
	}
	rows := rowsOf(X)
	out := make([]float64, len(rows))
	neighbours := make([]neighbour, len(m.X))
	nearest := make([]float64, k)
	for i, row := range rows {
		for j, train := range m.X {
			neighbours[j] = neighbour{idx: j, dist: floats.Distance(row, train, 2)}
		}
		sort.SliceStable(neighbours, func(a, b int) bool { return neighbours[a].dist < neighbours[b].dist })
		for n := 0; n < k; n++ {
			nearest[n] = m.Y[neighbours[n].idx]
		}
		out[i] = stat.Mean(nearest, nil)
	}
	return out, nil
}

func (m *KNNRegressor) validate() error {
	if m.K <= 0 {
		return fmt.Errorf("k %d must be positive", m.K)
	}
	if len(m.X) == 0 || len(m.X) != len(m.Y) {
		return fmt.Errorf("%d training rows for %d targets", len(m.X), len(m.Y))
	}
	width := len(m.X[0])
	if width == 0 {
		return errors.New("training rows are empty")
	}
	for i, row := range m.X {
		if len(row) != width {
			return fmt.Errorf("training row %d has %d features, expected %d", i, len(row), width)
		}
	}
	return nil
}
