// Package model_selection holds the train/test split, the cross-validation
// splitters and the exhaustive hyperparameter search.
package model_selection

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/nggra/obesity/pkg/errors"
)

// TrainTestSplit shuffles [0, n) with seed and returns the train and test
// row indices. The test part holds ceil(testSize*n) rows.
func TrainTestSplit(n int, testSize float64, seed uint64) (train, test []int, err error) {
	if n < 2 {
		return nil, nil, errors.NewValueError("TrainTestSplit", fmt.Sprintf("need at least 2 samples, got %d", n))
	}
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest >= n {
		return nil, nil, errors.NewValueError("TrainTestSplit",
			fmt.Sprintf("test_size=%v leaves no training samples out of %d", testSize, n))
	}

	r := rand.New(rand.NewPCG(seed, seed))
	perm := r.Perm(n)
	test = append([]int(nil), perm[:nTest]...)
	train = append([]int(nil), perm[nTest:]...)
	return train, test, nil
}

// TakeRows copies the listed rows of X into a new matrix.
func TakeRows(X mat.Matrix, indices []int) *mat.Dense {
	_, cols := X.Dims()
	out := mat.NewDense(len(indices), cols, nil)
	for i, idx := range indices {
		for j := 0; j < cols; j++ {
			out.Set(i, j, X.At(idx, j))
		}
	}
	return out
}

// TakeLabels returns the listed entries of y.
func TakeLabels(y []int, indices []int) []int {
	out := make([]int, len(indices))
	for i, idx := range indices {
		out[i] = y[idx]
	}
	return out
}

// LabelColumn turns labels into an n×1 matrix.
func LabelColumn(y []int) *mat.Dense {
	data := make([]float64, len(y))
	for i, v := range y {
		data[i] = float64(v)
	}
	return mat.NewDense(len(y), 1, data)
}

// Splitter produces cross-validation folds.
type Splitter interface {
	Split(X, y mat.Matrix) ([]CVFold, error)
	GetNSplits() int
}

// CVFold is one train/test partition.
type CVFold struct {
	TrainIndices []int
	TestIndices  []int
}

// StratifiedKFold keeps the class proportions of every fold close to those
// of the whole set. Each class is dealt into the folds separately, in
// ascending class order.
type StratifiedKFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed uint64
}

// NewStratifiedKFold creates a stratified k-fold splitter.
func NewStratifiedKFold(nSplits int, shuffle bool, randomSeed uint64) *StratifiedKFold {
	return &StratifiedKFold{NSplits: nSplits, Shuffle: shuffle, RandomSeed: randomSeed}
}

// GetNSplits returns the number of folds.
func (skf *StratifiedKFold) GetNSplits() int {
	return skf.NSplits
}

// Split generates the folds. Every class needs at least NSplits members,
// otherwise some fold would miss it entirely.
func (skf *StratifiedKFold) Split(X, y mat.Matrix) ([]CVFold, error) {
	nSamples, _ := X.Dims()
	if skf.NSplits < 2 {
		return nil, errors.NewValidationError("n_splits", "must be at least 2", skf.NSplits)
	}
	if yRows, _ := y.Dims(); yRows != nSamples {
		return nil, errors.NewDimensionError("StratifiedKFold.Split", nSamples, yRows, 0)
	}

	byClass := map[int][]int{}
	for i := 0; i < nSamples; i++ {
		label := int(y.At(i, 0))
		byClass[label] = append(byClass[label], i)
	}
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	for _, c := range classes {
		if len(byClass[c]) < skf.NSplits {
			return nil, errors.NewTrainingError("StratifiedKFold.Split",
				fmt.Sprintf("class %d has %d samples, fewer than n_splits=%d", c, len(byClass[c]), skf.NSplits), nil)
		}
	}

	if skf.Shuffle {
		r := rand.New(rand.NewPCG(skf.RandomSeed, skf.RandomSeed))
		for _, c := range classes {
			indices := byClass[c]
			r.Shuffle(len(indices), func(i, j int) {
				indices[i], indices[j] = indices[j], indices[i]
			})
		}
	}

	folds := make([]CVFold, skf.NSplits)
	for _, c := range classes {
		indices := byClass[c]
		foldSize := len(indices) / skf.NSplits
		remainder := len(indices) % skf.NSplits
		current := 0
		for i := range folds {
			size := foldSize
			if i < remainder {
				size++
			}
			folds[i].TestIndices = append(folds[i].TestIndices, indices[current:current+size]...)
			current += size
		}
	}

	for i := range folds {
		sort.Ints(folds[i].TestIndices)
		inTest := make([]bool, nSamples)
		for _, idx := range folds[i].TestIndices {
			inTest[idx] = true
		}
		train := make([]int, 0, nSamples-len(folds[i].TestIndices))
		for j := 0; j < nSamples; j++ {
			if !inTest[j] {
				train = append(train, j)
			}
		}
		folds[i].TrainIndices = train
	}
	return folds, nil
}
