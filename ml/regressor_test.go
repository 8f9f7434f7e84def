package ml

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"houseprice/apperr"
)

// linearData follows y = 3 + 2*x0 - x1 exactly.
func linearData() (*mat.Dense, []float64) {
	X := mat.NewDense(6, 2, []float64{
		0, 1,
		1, 0,
		2, 3,
		3, 1,
		4, 5,
		5, 2,
	})
	y := make([]float64, 6)
	for i := range y {
		y[i] = 3 + 2*X.At(i, 0) - X.At(i, 1)
	}
	return X, y
}

func TestLinearRegressionRecoversCoefficients(t *testing.T) {
	X, y := linearData()
	model := NewLinearRegression()
	require.NoError(t, model.Fit(X, y))

	assert.InDelta(t, 3, model.Intercept, 1e-9)
	assert.InDelta(t, 2, model.Coef[0], 1e-9)
	assert.InDelta(t, -1, model.Coef[1], 1e-9)

	got, err := model.Predict(mat.NewDense(1, 2, []float64{10, 4}))
	require.NoError(t, err)
	assert.InDelta(t, 19, got[0], 1e-9)
}

func TestLinearRegressionRankDeficient(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 2,
		2, 4,
		3, 6,
		4, 8,
	})
	y := []float64{2, 4, 6, 8}
	model := NewLinearRegression()
	require.NoError(t, model.Fit(X, y))

	got, err := model.Predict(X)
	require.NoError(t, err)
	for i := range y {
		assert.InDelta(t, y[i], got[i], 1e-9)
	}
}

func TestRidgeShrinksCoefficients(t *testing.T) {
	X, y := linearData()
	ols := NewLinearRegression()
	require.NoError(t, ols.Fit(X, y))
	ridge := NewRidge(10)
	require.NoError(t, ridge.Fit(X, y))

	assert.Equal(t, "ridge", ridge.Name())
	assert.Less(t, math.Abs(ridge.Coef[0]), math.Abs(ols.Coef[0]))
}

func TestDecisionTreeRegression(t *testing.T) {
	X := mat.NewDense(8, 1, []float64{1, 2, 3, 4, 10, 11, 12, 13})
	y := []float64{5, 5, 5, 5, 20, 20, 20, 20}

	tree := NewDecisionTree(3, 1)
	require.NoError(t, tree.Fit(X, y))

	got, err := tree.Predict(mat.NewDense(2, 1, []float64{2.5, 11.5}))
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 20}, got)

	root := tree.Nodes[0]
	assert.False(t, root.IsLeaf)
	assert.Equal(t, 8, root.Samples)
	assert.True(t, root.Threshold > 4 && root.Threshold < 10)
}

func TestDecisionTreeMinSamplesLeaf(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := []float64{1, 2, 3, 4}

	tree := NewDecisionTree(5, 3)
	require.NoError(t, tree.Fit(X, y))
	require.Len(t, tree.Nodes, 1)
	assert.InDelta(t, 2.5, tree.Nodes[0].Value, 1e-12)
}

func TestDecisionTreeNotTrained(t *testing.T) {
	_, err := NewDecisionTree(3, 1).Predict(mat.NewDense(1, 1, []float64{1}))
	assert.Error(t, err)
}

func TestKNNRegressor(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 1, 10, 11})
	y := []float64{1, 3, 10, 20}

	knn := NewKNNRegressor(2)
	require.NoError(t, knn.Fit(X, y))

	got, err := knn.Predict(mat.NewDense(2, 1, []float64{0.2, 10.4}))
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 15}, got)

	_, err = knn.Predict(mat.NewDense(1, 2, []float64{0, 0}))
	assert.Error(t, err)
}

func TestRegressorsRejectBadInput(t *testing.T) {
	for _, name := range []string{"linear", "ridge", "decision_tree", "knn"} {
		t.Run(name, func(t *testing.T) {
			model, err := NewRegressor(name, Options{RidgeAlpha: 1, MaxTreeDepth: 3, MinSamplesLeaf: 1, KNNNeighbors: 2})
			require.NoError(t, err)
			assert.Equal(t, name, model.Name())
			assert.Error(t, model.Fit(mat.NewDense(2, 1, []float64{1, 2}), []float64{1}))
		})
	}

	_, err := NewRegressor("svm", Options{})
	assert.Error(t, err)
	_, err = NewRegressor("ridge", Options{})
	assert.Error(t, err)
}

func TestEvaluate(t *testing.T) {
	scores, err := Evaluate([]float64{1, 2, 3, 4}, []float64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.InDelta(t, 1, scores.R2, 1e-12)
	assert.Zero(t, scores.RMSE)
	assert.Zero(t, scores.MAE)

	scores, err = Evaluate([]float64{1, 2, 3, 4}, []float64{2, 2, 3, 2})
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(5.0/4), scores.RMSE, 1e-12)
	assert.InDelta(t, 0.75, scores.MAE, 1e-12)
	assert.InDelta(t, 0, scores.R2, 1e-12)

	_, err = Evaluate(nil, nil)
	assert.Error(t, err)
	_, err = Evaluate([]float64{1}, []float64{1, 2})
	assert.Error(t, err)
}

func TestLogTargetRoundTrip(t *testing.T) {
	target := LogTarget{}
	for _, price := range []float64{1, 12789, 215000, 755000, 0.5} {
		f, err := target.Forward(price)
		require.NoError(t, err)
		assert.InEpsilon(t, price, target.Inverse(f), 1e-12)
	}

	for _, bad := range []float64{0, -5, math.NaN(), math.Inf(1)} {
		_, err := target.Forward(bad)
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.InvalidData))
	}

	_, err := ForwardAll(target, []float64{100, 0})
	assert.True(t, apperr.Is(err, apperr.InvalidData))
}

func TestTargetByName(t *testing.T) {
	target, err := TargetByName("log")
	require.NoError(t, err)
	assert.Equal(t, LogTarget{}, target)

	_, err = TargetByName("sqrt")
	assert.Error(t, err)
}

func fittedPreprocessor(t *testing.T) *Preprocessor {
	t.Helper()
	p := newSamplePreprocessor(t)
	require.NoError(t, p.Fit(sampleTable(t)))
	return p
}

func TestSaveLoadModel(t *testing.T) {
	X, y := linearData()
	pre := fittedPreprocessor(t)
	fingerprint, err := pre.Fingerprint()
	require.NoError(t, err)

	models := []Regressor{
		NewLinearRegression(),
		NewRidge(2),
		NewDecisionTree(4, 1),
		NewKNNRegressor(2),
	}
	for _, model := range models {
		t.Run(model.Name(), func(t *testing.T) {
			require.NoError(t, model.Fit(X, y))
			want, err := model.Predict(X)
			require.NoError(t, err)

			path := filepath.Join(t.TempDir(), "model.json")
			require.NoError(t, SaveModel(path, model, LogTarget{}, pre))

			loaded, err := LoadModel(path)
			require.NoError(t, err)
			assert.Equal(t, model.Name(), loaded.Model.Name())
			assert.Equal(t, "log", loaded.Target.Name())
			assert.Equal(t, fingerprint, loaded.Preprocessor)
			assert.False(t, loaded.TrainedAt.IsZero())

			got, err := loaded.Model.Predict(X)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestSaveModelRequiresFittedPreprocessor(t *testing.T) {
	X, y := linearData()
	model := NewLinearRegression()
	require.NoError(t, model.Fit(X, y))
	path := filepath.Join(t.TempDir(), "model.json")

	assert.Error(t, SaveModel(path, model, LogTarget{}, nil))
	assert.Error(t, SaveModel(path, model, LogTarget{}, newSamplePreprocessor(t)))
}

func TestLoadModelRejectsUnknownArtifacts(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadModel(filepath.Join(dir, "absent.json"))
	assert.Error(t, err)

	path := filepath.Join(dir, "model.json")
	require.NoError(t, writeArtifact(path, []byte(`{"type":"svm","target_transform":"log","preprocessor":"ab12","params":{}}`)))
	_, err = LoadModel(path)
	assert.ErrorContains(t, err, "svm")

	require.NoError(t, writeArtifact(path, []byte(`{"type":"linear","target_transform":"sqrt","preprocessor":"ab12","params":{"coef":[1]}}`)))
	_, err = LoadModel(path)
	assert.ErrorContains(t, err, "sqrt")

	require.NoError(t, writeArtifact(path, []byte(`{"type":"linear","target_transform":"log","params":{"coef":[1]}}`)))
	_, err = LoadModel(path)
	assert.ErrorContains(t, err, "not bound")

	require.NoError(t, writeArtifact(path, []byte(`not json`)))
	_, err = LoadModel(path)
	assert.Error(t, err)
}

func TestLoadModelRejectsInconsistentParams(t *testing.T) {
	tests := []struct {
		name   string
		params string
		typ    string
		want   string
	}{
		{"linear without coefficients", `{"coef":[],"intercept":1}`, "linear", "no coefficients"},
		{"tree without nodes", `{"nodes":[]}`, "decision_tree", "no nodes"},
		{
			"tree with a cycle",
			`{"nodes":[{"feature_idx":0,"threshold":1,"left_child":0,"right_child":1},{"feature_idx":-1,"left_child":-1,"right_child":-1,"value":2,"is_leaf":true}]}`,
			"decision_tree", "invalid child",
		},
		{
			"tree child out of range",
			`{"nodes":[{"feature_idx":0,"threshold":1,"left_child":1,"right_child":5},{"feature_idx":-1,"left_child":-1,"right_child":-1,"value":2,"is_leaf":true}]}`,
			"decision_tree", "invalid child",
		},
		{"knn ragged rows", `{"k":1,"x":[[1,2],[3]],"y":[1,2]}`, "knn", "training row 1"},
		{"knn targets mismatch", `{"k":1,"x":[[1,2]],"y":[1,2]}`, "knn", "1 training rows for 2 targets"},
		{"knn zero k", `{"k":0,"x":[[1]],"y":[1]}`, "knn", "must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "model.json")
			payload := `{"type":"` + tt.typ + `","target_transform":"log","preprocessor":"ab12","params":` + tt.params + `}`
			require.NoError(t, writeArtifact(path, []byte(payload)))

			_, err := LoadModel(path)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
