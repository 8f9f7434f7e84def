package ml

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"houseprice/apperr"
	"houseprice/dataset"
)

func sampleTable(t *testing.T) *dataset.Table {
	t.Helper()
	table := dataset.NewTable([]string{"Lot Area", "Overall Qual", "MS Zoning", "Street", "Id"})
	rows := [][]dataset.Value{
		{dataset.Number(8000), dataset.Number(5), dataset.Text("RL"), dataset.Text("Pave"), dataset.Number(1)},
		{dataset.Number(9000), dataset.Number(7), dataset.Text("RM"), dataset.Text("Pave"), dataset.Number(2)},
		{dataset.Null(), dataset.Number(6), dataset.Text("RL"), dataset.Text("Pave"), dataset.Number(3)},
		{dataset.Number(10000), dataset.Number(6), dataset.Null(), dataset.Text("Pave"), dataset.Number(4)},
	}
	for _, row := range rows {
		require.NoError(t, table.Append(row))
	}
	return table
}

func newSamplePreprocessor(t *testing.T) *Preprocessor {
	t.Helper()
	p, err := NewPreprocessor([]string{"Lot Area", "Overall Qual"}, []string{"MS Zoning", "Street"})
	require.NoError(t, err)
	return p
}

func TestNewPreprocessorRejectsOverlap(t *testing.T) {
	_, err := NewPreprocessor([]string{"Lot Area"}, []string{"Lot Area"})
	assert.Error(t, err)

	_, err = NewPreprocessor(nil, nil)
	assert.Error(t, err)
}

func TestPreprocessorFit(t *testing.T) {
	p := newSamplePreprocessor(t)
	require.NoError(t, p.Fit(sampleTable(t)))

	require.Len(t, p.Numeric, 2)
	assert.InDelta(t, 9000, p.Numeric[0].Mean, 1e-9)
	// imputed column is 8000, 9000, 9000, 10000
	assert.InDelta(t, math.Sqrt(500000), p.Numeric[0].Scale, 1e-9)

	require.Len(t, p.Categorical, 2)
	zoning := p.Categorical[0]
	assert.Equal(t, "RL", zoning.Fill)
	assert.Equal(t, []string{"RL", "RM"}, zoning.Categories)

	street := p.Categorical[1]
	assert.Equal(t, []string{"Pave"}, street.Categories)
	assert.Equal(t, []float64{1}, street.Scales)

	assert.Equal(t, []string{
		"num__Lot Area",
		"num__Overall Qual",
		"cat__MS Zoning_RL",
		"cat__MS Zoning_RM",
		"cat__Street_Pave",
	}, p.OutputColumns())
	assert.Equal(t, 5, p.Width())
}

func TestPreprocessorTransform(t *testing.T) {
	p := newSamplePreprocessor(t)
	X, err := p.FitTransform(sampleTable(t))
	require.NoError(t, err)

	r, c := X.Dims()
	require.Equal(t, 4, r)
	require.Equal(t, 5, c)

	// null lot area imputes to the mean and scales to zero
	assert.InDelta(t, 0, X.At(2, 0), 1e-12)
	// null zoning imputes to RL
	assert.Greater(t, X.At(3, 2), 0.0)
	assert.Equal(t, 0.0, X.At(3, 3))

	for i := 0; i < r; i++ {
		assert.Equal(t, 1.0, X.At(i, 4), "constant category keeps unit scale")
	}
}

func TestPreprocessorUnknownCategoryEncodesToZeros(t *testing.T) {
	p := newSamplePreprocessor(t)
	require.NoError(t, p.Fit(sampleTable(t)))

	row := dataset.NewTable([]string{"Street", "MS Zoning", "Overall Qual", "Lot Area"})
	require.NoError(t, row.Append([]dataset.Value{
		dataset.Text("Grvl"), dataset.Text("FV"), dataset.Number(6), dataset.Number(9000),
	}))
	X, err := p.Transform(row)
	require.NoError(t, err)
	for j := 2; j < 5; j++ {
		assert.Equal(t, 0.0, X.At(0, j))
	}
}

func TestPreprocessorSchemaMismatch(t *testing.T) {
	p := newSamplePreprocessor(t)
	require.NoError(t, p.Fit(sampleTable(t)))

	t.Run("missing column", func(t *testing.T) {
		narrow, err := sampleTable(t).Drop("Street")
		require.NoError(t, err)
		_, err = p.Transform(narrow)
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.SchemaMismatch))
		assert.Contains(t, err.Error(), "Street")
	})

	t.Run("text in numeric column", func(t *testing.T) {
		table := dataset.NewTable([]string{"Lot Area", "Overall Qual", "MS Zoning", "Street"})
		require.NoError(t, table.Append([]dataset.Value{
			dataset.Text("large"), dataset.Number(5), dataset.Text("RL"), dataset.Text("Pave"),
		}))
		_, err := p.Transform(table)
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.SchemaMismatch))
	})

	t.Run("not fitted", func(t *testing.T) {
		_, err := newSamplePreprocessor(t).Transform(sampleTable(t))
		assert.True(t, apperr.Is(err, apperr.InvalidData))
	})
}

func TestPreprocessorSaveLoad(t *testing.T) {
	p := newSamplePreprocessor(t)
	table := sampleTable(t)
	want, err := p.FitTransform(table)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "artifacts", "preprocessor.json")
	require.NoError(t, p.Save(path))

	loaded, err := LoadPreprocessor(path)
	require.NoError(t, err)
	got, err := loaded.Transform(table)
	require.NoError(t, err)
	assert.Equal(t, want.RawMatrix().Data, got.RawMatrix().Data)
}

func TestPreprocessorSaveRequiresFit(t *testing.T) {
	err := newSamplePreprocessor(t).Save(filepath.Join(t.TempDir(), "p.json"))
	assert.Error(t, err)
}

func TestPreprocessorFingerprint(t *testing.T) {
	p := newSamplePreprocessor(t)
	_, err := p.Fingerprint()
	assert.Error(t, err)

	require.NoError(t, p.Fit(sampleTable(t)))
	before, err := p.Fingerprint()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "preprocessor.json")
	require.NoError(t, p.Save(path))
	saved, err := p.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, before, saved)

	loaded, err := LoadPreprocessor(path)
	require.NoError(t, err)
	after, err := loaded.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, saved, after)

	table := sampleTable(t)
	table.Rows[0][0] = dataset.Number(12000)
	require.NoError(t, p.Fit(table))
	refit, err := p.Fingerprint()
	require.NoError(t, err)
	assert.NotEqual(t, saved, refit)
}

func TestLoadPreprocessorRejectsInconsistentStats(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Preprocessor)
		want   string
	}{
		{"scales shorter than categories", func(p *Preprocessor) { p.Categorical[0].Scales = nil }, "scales for"},
		{"unsorted categories", func(p *Preprocessor) {
			c := &p.Categorical[0]
			c.Categories[0], c.Categories[1] = c.Categories[1], c.Categories[0]
		}, "not sorted"},
		{"zero categorical scale", func(p *Preprocessor) { p.Categorical[0].Scales[0] = 0 }, "invalid scale"},
		{"negative numeric scale", func(p *Preprocessor) { p.Numeric[1].Scale = -1 }, "invalid mean"},
		{"numeric stat missing", func(p *Preprocessor) { p.Numeric = p.Numeric[:1] }, "1 numeric stats for 2"},
		{"categorical stat renamed", func(p *Preprocessor) { p.Categorical[1].Column = "Alley" }, "expected \"Street\""},
		{"not fitted", func(p *Preprocessor) { p.Fitted = false }, "not fitted"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newSamplePreprocessor(t)
			require.NoError(t, p.Fit(sampleTable(t)))
			tt.mutate(p)

			payload, err := json.Marshal(p)
			require.NoError(t, err)
			path := filepath.Join(t.TempDir(), "preprocessor.json")
			require.NoError(t, writeArtifact(path, payload))

			_, err = LoadPreprocessor(path)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
