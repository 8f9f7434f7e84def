package ml

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// LinearRegression is ordinary least squares when Alpha is zero and ridge
// regression otherwise. The intercept is never penalised.
type LinearRegression struct {
	Alpha     float64   `json:"alpha"`
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
}

func NewLinearRegression() *LinearRegression {
	return &LinearRegression{}
}

func NewRidge(alpha float64) *LinearRegression {
	return &LinearRegression{Alpha: alpha}
}

func (m *LinearRegression) Name() string {
	if m.Alpha > 0 {
		return "ridge"
	}
	return "linear"
}

// rankTolerance is the relative singular value cutoff for least squares.
const rankTolerance = 1e-10

func (m *LinearRegression) Fit(X mat.Matrix, y []float64) error {
	r, c := X.Dims()
	if r == 0 || len(y) == 0 {
		return errors.New("features or targets empty")
	}
	if r != len(y) {
		return errors.New("features and targets size mismatch")
	}

	means := make([]float64, c)
	col := make([]float64, r)
	for j := range means {
		mat.Col(col, j, X)
		means[j] = stat.Mean(col, nil)
	}
	centered := mat.NewDense(r, c, nil)
	centered.Apply(func(_, j int, v float64) float64 { return v - means[j] }, X)

	yMean := stat.Mean(y, nil)
	yc := mat.NewVecDense(r, nil)
	for i, v := range y {
		yc.SetVec(i, v-yMean)
	}

	beta := mat.NewVecDense(c, nil)
	if m.Alpha > 0 {
		var gram mat.SymDense
		gram.SymOuterK(1, centered.T())
		for j := 0; j < c; j++ {
			gram.SetSym(j, j, gram.At(j, j)+m.Alpha)
		}
		var xty mat.VecDense
		xty.MulVec(centered.T(), yc)

		var chol mat.Cholesky
		if ok := chol.Factorize(&gram); !ok {
			return errors.New("ridge system is not positive definite")
		}
		if err := chol.SolveVecTo(beta, &xty); err != nil {
			return fmt.Errorf("solve ridge system: %w", err)
		}
	} else {
		var svd mat.SVD
		if ok := svd.Factorize(centered, mat.SVDThin); !ok {
			return errors.New("svd factorization failed")
		}
		if rank := svd.Rank(rankTolerance); rank > 0 {
			svd.SolveVecTo(beta, yc, rank)
		}
	}

	m.Coef = make([]float64, c)
	intercept := yMean
	for j := range m.Coef {
		m.Coef[j] = beta.AtVec(j)
		intercept -= means[j] * m.Coef[j]
	}
	m.Intercept = intercept
	return nil
}

func (m *LinearRegression) Predict(X mat.Matrix) ([]float64, error) {
	if m.Coef == nil {
		return nil, errors.New("model not trained")
	}
	r, c := X.Dims()
	if c != len(m.Coef) {
		return nil, fmt.Errorf("expected %d features, got %d", len(m.Coef), c)
	}
	out := make([]float64, r)
	row := make([]float64, c)
	for i := range out {
		mat.Row(row, i, X)
		v := m.Intercept
		for j, x := range row {
			v += x * m.Coef[j]
		}
		out[i] = v
	}
	return out, nil
}

func (m *LinearRegression) validate() error {
	if len(m.Coef) == 0 {
		return errors.New("no coefficients")
	}
	if !finite(m.Intercept) {
		return fmt.Errorf("intercept %v is not finite", m.Intercept)
	}
	for j, c := range m.Coef {
		if !finite(c) {
			return fmt.Errorf("coefficient %d is not finite", j)
		}
	}
	return nil
}
