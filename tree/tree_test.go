package tree

import (
	"bytes"
	"encoding/gob"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/nggra/obesity/pkg/errors"
)

func separable() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(6, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		2, 2,
		2, 3,
		3, 2,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})
	return X, y
}

func TestDecisionTreeClassifier_FitPredict_Binary(t *testing.T) {
	X := mat.NewDense(8, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		1, 1,
		3, 3,
		3, 4,
		4, 3,
		4, 4,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})

	dt := NewDecisionTreeClassifier(WithCriterion("gini"), WithMaxDepth(5))
	require.NoError(t, dt.Fit(X, y))

	pred, err := dt.Predict(X)
	require.NoError(t, err)
	for i := 0; i < 8; i++ {
		assert.Equal(t, y.At(i, 0), pred.At(i, 0), "sample %d", i)
	}

	XTest := mat.NewDense(2, 2, []float64{
		0.5, 0.5,
		3.5, 3.5,
	})
	testPred, err := dt.Predict(XTest)
	require.NoError(t, err)
	assert.Equal(t, 0.0, testPred.At(0, 0))
	assert.Equal(t, 1.0, testPred.At(1, 0))

	// a single split at the midpoint between 1 and 3
	nodes := dt.Nodes()
	require.False(t, nodes[0].IsLeaf())
	assert.Equal(t, 2.0, nodes[0].Threshold)
	assert.Equal(t, 1, dt.GetDepth())
	assert.Equal(t, 2, dt.GetNLeaves())
}

func TestDecisionTreeClassifier_PredictProba(t *testing.T) {
	X, y := separable()
	dt := NewDecisionTreeClassifier(WithMaxDepth(3))
	require.NoError(t, dt.Fit(X, y))

	probas, err := dt.PredictProba(X)
	require.NoError(t, err)
	rows, cols := probas.Dims()
	require.Equal(t, 6, rows)
	require.Equal(t, 2, cols)
	for i := 0; i < rows; i++ {
		sum := 0.0
		for j := 0; j < cols; j++ {
			p := probas.At(i, j)
			assert.GreaterOrEqual(t, p, 0.0)
			assert.LessOrEqual(t, p, 1.0)
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}

func TestDecisionTreeClassifier_Score(t *testing.T) {
	// XOR-like pattern: class 0 when both features are low or both high
	X := mat.NewDense(8, 2, []float64{
		0.0, 0.0,
		0.0, 0.1,
		0.1, 1.0,
		0.0, 0.9,
		1.0, 0.0,
		0.9, 0.0,
		1.0, 1.0,
		0.9, 0.9,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 1, 1, 1, 1, 0, 0})

	dt := NewDecisionTreeClassifier(WithMaxDepth(5), WithMinSamplesLeaf(1))
	require.NoError(t, dt.Fit(X, y))
	assert.Equal(t, 1.0, dt.Score(X, y))

	XSimple, ySimple := separable()
	simple := NewDecisionTreeClassifier(WithMaxDepth(3))
	require.NoError(t, simple.Fit(XSimple, ySimple))
	assert.Equal(t, 1.0, simple.Score(XSimple, ySimple))
}

func TestDecisionTreeClassifier_Multiclass(t *testing.T) {
	X := mat.NewDense(9, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		3, 3,
		3, 4,
		4, 3,
		6, 6,
		6, 7,
		7, 6,
	})
	y := mat.NewDense(9, 1, []float64{0, 0, 0, 1, 1, 1, 2, 2, 2})

	dt := NewDecisionTreeClassifier(WithCriterion("gini"), WithMaxDepth(5))
	require.NoError(t, dt.Fit(X, y))
	assert.Equal(t, 3, dt.nClasses_)
	assert.Equal(t, []int{0, 1, 2}, dt.Classes())
	assert.Equal(t, 1.0, dt.Score(X, y))

	probas, err := dt.PredictProba(X)
	require.NoError(t, err)
	rows, cols := probas.Dims()
	require.Equal(t, 3, cols)
	for i := 0; i < rows; i++ {
		row := mat.Row(nil, i, probas)
		assert.Equal(t, int(y.At(i, 0)), argmax(row), "sample %d", i)
	}
}

func TestDecisionTreeClassifier_NonContiguousLabels(t *testing.T) {
	X, _ := separable()
	y := mat.NewDense(6, 1, []float64{4, 4, 4, 9, 9, 9})
	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.Fit(X, y))
	assert.Equal(t, []int{4, 9}, dt.Classes())
	assert.Equal(t, 1.0, dt.Score(X, y))
}

func TestDecisionTreeClassifier_Entropy(t *testing.T) {
	X, y := separable()
	dt := NewDecisionTreeClassifier(WithCriterion("entropy"), WithMaxDepth(3))
	require.NoError(t, dt.Fit(X, y))
	assert.Equal(t, 1.0, dt.Score(X, y))

	nodes := dt.Nodes()
	assert.InDelta(t, 1.0, nodes[0].Impurity, 1e-12, "balanced binary root has one bit of entropy")
}

func TestDecisionTreeClassifier_FeatureImportance(t *testing.T) {
	X := mat.NewDense(8, 3, []float64{
		0, 0, 0,
		0, 1, 1,
		0, 0, 1,
		0, 1, 0,
		1, 0, 0,
		1, 1, 1,
		1, 0, 1,
		1, 1, 0,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})

	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.Fit(X, y))

	importances := dt.GetFeatureImportances()
	require.Len(t, importances, 3)
	assert.InDelta(t, 1.0, importances[0], 1e-12)
	assert.Zero(t, importances[1])
	assert.Zero(t, importances[2])
}

func TestDecisionTreeClassifier_MaxDepth(t *testing.T) {
	X := mat.NewDense(16, 2, nil)
	y := mat.NewDense(16, 1, nil)
	for i := 0; i < 16; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i%4))
		y.Set(i, 0, float64(i%2))
	}

	dt := NewDecisionTreeClassifier(WithMaxDepth(2))
	require.NoError(t, dt.Fit(X, y))
	assert.LessOrEqual(t, dt.GetDepth(), 2)

	unbounded := NewDecisionTreeClassifier()
	require.NoError(t, unbounded.Fit(X, y))
	assert.Equal(t, 1.0, unbounded.Score(X, y))
}

func TestDecisionTreeClassifier_MinSamples(t *testing.T) {
	X := mat.NewDense(10, 2, nil)
	y := mat.NewDense(10, 1, nil)
	for i := 0; i < 10; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i%3))
		y.Set(i, 0, float64(i%2))
	}

	dt := NewDecisionTreeClassifier(WithMinSamplesSplit(5), WithMinSamplesLeaf(2))
	require.NoError(t, dt.Fit(X, y))
	assert.LessOrEqual(t, dt.GetNLeaves(), 5)
	for _, node := range dt.Nodes() {
		assert.GreaterOrEqual(t, node.NSamples, 2)
		if !node.IsLeaf() {
			assert.GreaterOrEqual(t, node.NSamples, 5)
		}
	}
}

func TestDecisionTreeClassifier_IdenticalRowsStayLeaf(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 1, 1, 1})
	y := mat.NewDense(4, 1, []float64{0, 1, 0, 1})
	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.Fit(X, y))
	assert.Equal(t, 1, dt.GetNLeaves())
	assert.Equal(t, []float64{0}, dt.GetFeatureImportances())

	pred, err := dt.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, 0.0, pred.At(0, 0), "ties go to the lowest class")
}

func TestDecisionTreeClassifier_MaxFeaturesDeterministic(t *testing.T) {
	X := mat.NewDense(12, 4, nil)
	y := mat.NewDense(12, 1, nil)
	for i := 0; i < 12; i++ {
		for j := 0; j < 4; j++ {
			X.Set(i, j, float64((i*(j+3))%7))
		}
		y.Set(i, 0, float64(i%3))
	}

	a := NewDecisionTreeClassifier(WithMaxFeatures(2), WithRandomState(11))
	b := NewDecisionTreeClassifier(WithMaxFeatures(2), WithRandomState(11))
	require.NoError(t, a.Fit(X, y))
	require.NoError(t, b.Fit(X, y))
	assert.Equal(t, a.Nodes(), b.Nodes())
}

func TestDecisionTreeClassifier_FitSamplesBootstrap(t *testing.T) {
	X, _ := separable()
	labels := []int{0, 0, 0, 1, 1, 1}
	// class 2 is absent from the draw but keeps its probability column
	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.FitSamples(X, labels, []int{0, 1, 2}, []int{0, 0, 1, 3, 3, 5}))

	probas, err := dt.PredictProba(X)
	require.NoError(t, err)
	_, cols := probas.Dims()
	assert.Equal(t, 3, cols)
	for i := 0; i < 6; i++ {
		assert.Zero(t, probas.At(i, 2))
	}
	root := dt.Nodes()[0]
	assert.Equal(t, 6, root.NSamples)
}

func TestDecisionTreeClassifier_GetSetParams(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	params := dt.GetParams()
	assert.Equal(t, "gini", params["criterion"])
	assert.Equal(t, 2, params["min_samples_split"])
	assert.Equal(t, 1, params["min_samples_leaf"])
	assert.Equal(t, 0, params["max_depth"])

	require.NoError(t, dt.SetParams(map[string]interface{}{
		"criterion":         "entropy",
		"max_depth":         5,
		"min_samples_split": 4,
		"min_samples_leaf":  2,
	}))
	assert.Equal(t, "entropy", dt.criterion)
	assert.Equal(t, 5, dt.maxDepth)
	assert.Equal(t, 4, dt.minSamplesSplit)
	assert.Equal(t, 2, dt.minSamplesLeaf)

	tests := []struct {
		name   string
		params map[string]interface{}
	}{
		{"unknown key", map[string]interface{}{"splitter": "best"}},
		{"wrong type", map[string]interface{}{"max_depth": "deep"}},
		{"bad criterion", map[string]interface{}{"criterion": "log_loss"}},
		{"bad split size", map[string]interface{}{"min_samples_split": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewDecisionTreeClassifier().SetParams(tt.params)
			var vErr *errors.ValidationError
			assert.True(t, errors.As(err, &vErr), "got %v", err)
		})
	}
}

func TestDecisionTreeClassifier_NotFitted(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	X := mat.NewDense(2, 2, []float64{1, 2, 3, 4})

	_, err := dt.Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	_, err = dt.PredictProba(X)
	assert.True(t, errors.As(err, &nf))
}

func TestDecisionTreeClassifier_FeatureMismatch(t *testing.T) {
	X, y := separable()
	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.Fit(X, y))

	_, err := dt.Predict(mat.NewDense(1, 3, nil))
	var dimErr *errors.DimensionError
	require.True(t, errors.As(err, &dimErr))
	assert.Equal(t, 2, dimErr.Expected)
	assert.Equal(t, 3, dimErr.Got)
}

func TestDecisionTreeClassifier_Gob(t *testing.T) {
	X, y := separable()
	dt := NewDecisionTreeClassifier(WithCriterion("entropy"), WithMaxDepth(4))
	require.NoError(t, dt.Fit(X, y))

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(dt))
	restored := &DecisionTreeClassifier{}
	require.NoError(t, gob.NewDecoder(&buf).Decode(restored))

	assert.Equal(t, dt.GetParams(), restored.GetParams())
	assert.Equal(t, dt.Nodes(), restored.Nodes())
	want, err := dt.PredictProba(X)
	require.NoError(t, err)
	got, err := restored.PredictProba(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got))
}
