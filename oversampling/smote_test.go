package oversampling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/nggra/obesity/pkg/errors"
	"github.com/nggra/obesity/pkg/log"
)

// imbalanced returns 12 samples of class 0, 5 of class 1 and 3 of class 2.
func imbalanced() (*mat.Dense, []int) {
	var data []float64
	var y []int
	for i := 0; i < 12; i++ {
		data = append(data, float64(i), float64(i%3))
		y = append(y, 0)
	}
	for i := 0; i < 5; i++ {
		data = append(data, 20+float64(i), 10+float64(i))
		y = append(y, 1)
	}
	for i := 0; i < 3; i++ {
		data = append(data, -10-float64(i), -5)
		y = append(y, 2)
	}
	return mat.NewDense(len(y), 2, data), y
}

func TestSMOTEBalancesClasses(t *testing.T) {
	X, y := imbalanced()
	smote := NewSMOTE(WithLogger(log.Nop()))
	Xr, yr, err := smote.FitResample(X, y)
	require.NoError(t, err)

	counts := map[int]int{}
	for _, c := range yr {
		counts[c]++
	}
	assert.Equal(t, map[int]int{0: 12, 1: 12, 2: 12}, counts)
	assert.Equal(t, map[int]int{1: 7, 2: 9}, smote.SyntheticCounts())

	r, c := Xr.Dims()
	assert.Equal(t, 36, r)
	assert.Equal(t, 2, c)

	// originals first and unchanged
	assert.True(t, mat.Equal(X, Xr.Slice(0, 20, 0, 2)))
	assert.Equal(t, y, yr[:20])

	// synthetic rows are grouped by class in ascending order
	for i := 20; i < 27; i++ {
		assert.Equal(t, 1, yr[i])
	}
	for i := 27; i < 36; i++ {
		assert.Equal(t, 2, yr[i])
	}
}

func TestSMOTESamplesInterpolate(t *testing.T) {
	X, y := imbalanced()
	Xr, yr, err := NewSMOTE(WithLogger(log.Nop())).FitResample(X, y)
	require.NoError(t, err)

	// Interpolated points stay inside the bounding box of their class.
	lo := map[int][2]float64{}
	hi := map[int][2]float64{}
	for i, c := range y {
		row := X.RawRowView(i)
		l, okl := lo[c]
		h := hi[c]
		for j := 0; j < 2; j++ {
			if !okl || row[j] < l[j] {
				l[j] = row[j]
			}
			if !okl || row[j] > h[j] {
				h[j] = row[j]
			}
		}
		lo[c], hi[c] = l, h
	}
	for i := len(y); i < len(yr); i++ {
		row := Xr.RawRowView(i)
		c := yr[i]
		for j := 0; j < 2; j++ {
			assert.GreaterOrEqual(t, row[j], lo[c][j])
			assert.LessOrEqual(t, row[j], hi[c][j])
		}
	}
}

func TestSMOTEDeterministic(t *testing.T) {
	X, y := imbalanced()
	a, ya, err := NewSMOTE(WithRandomState(7), WithLogger(log.Nop())).FitResample(X, y)
	require.NoError(t, err)
	b, yb, err := NewSMOTE(WithRandomState(7), WithLogger(log.Nop())).FitResample(X, y)
	require.NoError(t, err)
	assert.True(t, mat.Equal(a, b))
	assert.Equal(t, ya, yb)

	c, _, err := NewSMOTE(WithRandomState(8), WithLogger(log.Nop())).FitResample(X, y)
	require.NoError(t, err)
	assert.False(t, mat.Equal(a, c), "a different seed gives different samples")
}

func TestSMOTEShrinksNeighbourhood(t *testing.T) {
	X, y := imbalanced()
	logger := log.NewTestLogger(log.LevelDebug)
	smote := NewSMOTE(WithKNeighbors(5), WithLogger(logger))
	_, _, err := smote.FitResample(X, y)
	require.NoError(t, err)

	assert.Equal(t, 4, smote.effectiveK_[1])
	assert.Equal(t, 2, smote.effectiveK_[2])
	assert.Equal(t, 2, logger.CountLevel(log.LevelWarn))
}

func TestSMOTEAlreadyBalanced(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := []int{0, 1, 0, 1}
	Xr, yr, err := NewSMOTE(WithLogger(log.Nop())).FitResample(X, y)
	require.NoError(t, err)
	assert.True(t, mat.Equal(X, Xr))
	assert.Equal(t, y, yr)
}

func TestSMOTEErrors(t *testing.T) {
	single := mat.NewDense(4, 1, []float64{1, 2, 3, 9})
	tests := []struct {
		name  string
		X     mat.Matrix
		y     []int
		opts  []SMOTEOption
		check func(t *testing.T, err error)
	}{
		{
			name: "single sample class",
			X:    single,
			y:    []int{0, 0, 0, 1},
			check: func(t *testing.T, err error) {
				var trainErr *errors.TrainingError
				assert.True(t, errors.As(err, &trainErr), "got %v", err)
			},
		},
		{
			name: "label count mismatch",
			X:    single,
			y:    []int{0, 1},
			check: func(t *testing.T, err error) {
				var dimErr *errors.DimensionError
				assert.True(t, errors.As(err, &dimErr))
			},
		},
		{
			name: "invalid k",
			X:    single,
			y:    []int{0, 0, 1, 1},
			opts: []SMOTEOption{WithKNeighbors(0)},
			check: func(t *testing.T, err error) {
				var vErr *errors.ValidationError
				assert.True(t, errors.As(err, &vErr))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := append([]SMOTEOption{WithLogger(log.Nop())}, tt.opts...)
			_, _, err := NewSMOTE(opts...).FitResample(tt.X, tt.y)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestNearestNeighbors(t *testing.T) {
	points := [][]float64{{0}, {1}, {3}, {6}}
	nn := nearestNeighbors(points, 2)
	assert.Equal(t, [][]int{{1, 2}, {0, 2}, {1, 0}, {2, 1}}, nn)

	// equal distances resolve to the lower index
	tie := nearestNeighbors([][]float64{{0}, {-1}, {1}}, 1)
	assert.Equal(t, []int{1}, tie[0])
}

func TestNearestNeighborsChunked(t *testing.T) {
	// one point per integer on a line: the neighbours of i are i-1 and
	// i+1, with the lower index first on the tie
	n := neighborsSerialLimit + 40
	points := make([][]float64, n)
	for i := range points {
		points[i] = []float64{float64(i)}
	}
	nn := nearestNeighbors(points, 2)
	require.Len(t, nn, n)
	assert.Equal(t, []int{1, 2}, nn[0])
	for i := 1; i < n-1; i++ {
		assert.Equal(t, []int{i - 1, i + 1}, nn[i], "point %d", i)
	}
	assert.Equal(t, []int{n - 2, n - 3}, nn[n-1])
}
