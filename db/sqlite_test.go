package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) {
	t.Helper()
	require.NoError(t, InitDB(filepath.Join(t.TempDir(), "data", "test.db")))
	t.Cleanup(func() { Close() })
}

func TestUninitialized(t *testing.T) {
	require.NoError(t, Close())
	assert.False(t, Ready())
	assert.Error(t, SavePrediction(Prediction{RequestID: "r"}))
	_, err := RecentPredictions(5)
	assert.Error(t, err)
	assert.Error(t, SaveTrainingRun([]TrainingLog{{RunID: "x"}}))
	_, err = LoadTrainingLog()
	assert.Error(t, err)
}

func TestPredictions(t *testing.T) {
	openTestDB(t)
	assert.True(t, Ready())

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, estimate := range []float64{180000, 210000, 95000} {
		require.NoError(t, SavePrediction(Prediction{
			RequestID: "req-" + string(rune('a'+i)),
			ModelName: "ridge",
			Estimate:  estimate,
			Inputs:    map[string]string{"Lot Area": "8450"},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	recent, err := RecentPredictions(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "req-c", recent[0].RequestID)
	assert.Equal(t, 95000.0, recent[0].Estimate)
	assert.Equal(t, "8450", recent[0].Inputs["Lot Area"])
	assert.Equal(t, "req-b", recent[1].RequestID)

	assert.Error(t, SavePrediction(Prediction{Estimate: 1}))
}

func TestTrainingLog(t *testing.T) {
	openTestDB(t)

	first := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)
	require.NoError(t, SaveTrainingRun([]TrainingLog{
		{RunID: "run-1", ModelName: "linear", R2: 0.81, TrainRows: 80, TestRows: 20, TrainedAt: first},
		{RunID: "run-1", ModelName: "ridge", R2: 0.88, Selected: true, TrainRows: 80, TestRows: 20, TrainedAt: first},
	}))
	require.NoError(t, SaveTrainingRun([]TrainingLog{
		{RunID: "run-2", ModelName: "knn", R2: 0.7, RMSE: 0.2, MAE: 0.1, Selected: true, TrainedAt: second},
	}))
	require.NoError(t, SaveTrainingRun(nil))

	logs, err := LoadTrainingLog()
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, "run-2", logs[0].RunID)
	assert.True(t, logs[0].Selected)
	assert.Equal(t, "linear", logs[1].ModelName)
	assert.False(t, logs[1].Selected)
	assert.Equal(t, "ridge", logs[2].ModelName)
	assert.Equal(t, 80, logs[2].TrainRows)
}
