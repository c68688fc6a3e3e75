package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nggra/obesity/dataset"
	"github.com/nggra/obesity/metrics"
	"github.com/nggra/obesity/model_selection"
)

func sampleSummary(t *testing.T) *Summary {
	t.Helper()
	yTrue := []int{0, 1, 2, 3, 4, 5, 6, 0, 1, 2}
	yPred := []int{0, 1, 2, 3, 4, 5, 6, 1, 1, 2}
	test, err := metrics.NewReport(yTrue, yPred, dataset.Labels)
	require.NoError(t, err)

	return &Summary{
		BundleID: "b-123",
		Clean: dataset.CleanReport{
			RowsIn:            120,
			DuplicatesRemoved: 3,
			Imputed:           map[string]int{"CALC": 2},
			Modes:             map[string]string{"CALC": "Sometimes"},
			Outliers:          []dataset.Bounds{{Column: "Age", Lower: 5, Upper: 50, RowsIn: 117, Removed: 4}},
			RowsOut:           113,
		},
		Synthetic: map[int]int{2: 5, 0: 1},
		TrainRows: 80,
		TestRows:  20,
		Candidates: []model_selection.CandidateResult{
			{Params: map[string]interface{}{"max_depth": 10, "n_estimators": 25}, MeanScore: 0.8, Rank: 2},
			{Params: map[string]interface{}{"max_depth": 0, "n_estimators": 25}, MeanScore: 0.9, StdScore: 0.05, Rank: 1},
		},
		BestIndex:    1,
		Test:         test,
		FeatureNames: []string{"Age", "Weight"},
		Importances:  []float64{0.25, 0.75},
	}
}

func TestWriteText(t *testing.T) {
	text := sampleSummary(t).String()

	for _, want := range []string{
		"bundle b-123",
		"duplicates removed 3",
		"imputed CALC       2 (mode Sometimes)",
		"removed 4 of 117",
		"rows out           113",
		"split: 80 train, 20 test",
		"grid search: 2 candidates",
		"best params   max_depth=None n_estimators=25",
		"cv accuracy   0.9000 (+/- 0.0500)",
		"held-out accuracy 0.9000",
	} {
		assert.Contains(t, text, want)
	}

	// SMOTE lines are in class order and importances are sorted descending.
	assert.Less(t, strings.Index(text, "Insufficient_Weight  +1"), strings.Index(text, "Overweight_Level_I"))
	importances := text[strings.Index(text, "feature importances"):]
	assert.Less(t, strings.Index(importances, "  Weight"), strings.Index(importances, "  Age "))
}

func TestWriteTextPartial(t *testing.T) {
	s := &Summary{BundleID: "x", BestIndex: -1}
	text := s.String()
	assert.Contains(t, text, "bundle x")
	assert.NotContains(t, text, "grid search")
	assert.NotContains(t, text, "smote")
	assert.NotContains(t, text, "held-out")

	_, ok := s.Best()
	assert.False(t, ok)
}

func TestSaveText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")
	s := sampleSummary(t)
	require.NoError(t, s.SaveText(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, s.String(), string(data))

	assert.Error(t, s.SaveText(filepath.Join(t.TempDir(), "missing", "report.txt")))
}

func TestSaveCharts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "charts")
	paths, err := sampleSummary(t).SaveCharts(dir)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, CVChartFile), filepath.Join(dir, F1ChartFile)}, paths)

	pngMagic := []byte{0x89, 'P', 'N', 'G'}
	for _, p := range paths {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		require.Greater(t, len(data), len(pngMagic))
		assert.Equal(t, pngMagic, data[:4])
	}

	empty, err := (&Summary{BestIndex: -1}).SaveCharts(dir)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestShortLabel(t *testing.T) {
	tests := map[string]string{
		"Insufficient_Weight": "Insuf_Weight",
		"Normal_Weight":       "Normal",
		"Overweight_Level_II": "Over_II",
		"Obesity_Type_III":    "Obese_III",
	}
	for in, want := range tests {
		assert.Equal(t, want, shortLabel(in), in)
	}
}

func TestFormatParams(t *testing.T) {
	got := formatParams(map[string]interface{}{
		"n_estimators": 100,
		"bootstrap":    false,
		"max_depth":    0,
	})
	assert.Equal(t, "bootstrap=false max_depth=None n_estimators=100", got)
	assert.Equal(t, "max_depth=20", formatParams(map[string]interface{}{"max_depth": 20}))
}
