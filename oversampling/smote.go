// Package oversampling rebalances a labelled training matrix by synthesising
// minority-class samples.
package oversampling

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/nggra/obesity/core/parallel"
	"github.com/nggra/obesity/pkg/errors"
	"github.com/nggra/obesity/pkg/log"
)

// neighborsSerialLimit is the class size up to which the neighbour search
// runs on the calling goroutine.
const neighborsSerialLimit = 256

// SMOTE is the Synthetic Minority Over-sampling Technique. Every class
// smaller than the largest one receives synthetic samples until all classes
// have the same cardinality. A synthetic sample is x + u*(nn - x) where x is
// a random sample of the class, nn one of its k nearest same-class
// neighbours and u is uniform in [0, 1).
type SMOTE struct {
	kNeighbors  int
	randomState uint64
	logger      log.Logger

	synthetic_ map[int]int
	effectiveK_ map[int]int
}

// SMOTEOption configures a SMOTE.
type SMOTEOption func(*SMOTE)

// WithKNeighbors sets the neighbourhood size (default 5). Classes with fewer
// than k+1 samples use all their other samples as neighbours.
func WithKNeighbors(k int) SMOTEOption {
	return func(s *SMOTE) { s.kNeighbors = k }
}

// WithRandomState seeds the sampler.
func WithRandomState(seed uint64) SMOTEOption {
	return func(s *SMOTE) { s.randomState = seed }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) SMOTEOption {
	return func(s *SMOTE) { s.logger = l }
}

// NewSMOTE creates a SMOTE with k=5 and seed 42.
func NewSMOTE(opts ...SMOTEOption) *SMOTE {
	s := &SMOTE{
		kNeighbors:  5,
		randomState: 42,
		logger:      log.GetLoggerWithName("oversampling.smote"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FitResample returns X and y with synthetic rows appended. The original rows
// keep their order and come first; synthetic rows follow class by class in
// ascending label order. Output is fully determined by the seed.
func (s *SMOTE) FitResample(X mat.Matrix, y []int) (*mat.Dense, []int, error) {
	rows, cols := X.Dims()
	if rows == 0 {
		return nil, nil, errors.NewTrainingError("SMOTE.FitResample", "no samples", errors.ErrEmptyData)
	}
	if len(y) != rows {
		return nil, nil, errors.NewDimensionError("SMOTE.FitResample", rows, len(y), 0)
	}
	if s.kNeighbors < 1 {
		return nil, nil, errors.NewValidationError("k_neighbors", "must be at least 1", s.kNeighbors)
	}

	byClass := map[int][]int{}
	for i, label := range y {
		byClass[label] = append(byClass[label], i)
	}
	classes := make([]int, 0, len(byClass))
	target := 0
	for c, idx := range byClass {
		classes = append(classes, c)
		if len(idx) > target {
			target = len(idx)
		}
	}
	sort.Ints(classes)

	total := 0
	for _, c := range classes {
		need := target - len(byClass[c])
		if need > 0 && len(byClass[c]) < 2 {
			return nil, nil, errors.NewTrainingError("SMOTE.FitResample",
				"class has a single sample and cannot be interpolated", errors.NewValidationError("class", "single sample", c))
		}
		total += need
	}

	out := mat.NewDense(rows+total, cols, nil)
	out.Slice(0, rows, 0, cols).(*mat.Dense).Copy(X)
	labels := make([]int, rows, rows+total)
	copy(labels, y)

	rng := rand.New(rand.NewPCG(s.randomState, s.randomState))
	s.synthetic_ = make(map[int]int, len(classes))
	s.effectiveK_ = make(map[int]int, len(classes))

	next := rows
	for _, c := range classes {
		members := byClass[c]
		need := target - len(members)
		if need <= 0 {
			continue
		}
		k := s.kNeighbors
		if k > len(members)-1 {
			k = len(members) - 1
			s.logger.Warn("class smaller than k_neighbors+1, shrinking neighbourhood",
				log.ClassIndexKey, c, log.NeighborsKey, k, log.SamplesKey, len(members))
		}
		s.effectiveK_[c] = k

		points := make([][]float64, len(members))
		for i, idx := range members {
			points[i] = mat.Row(nil, idx, X)
		}
		neighbors := nearestNeighbors(points, k)

		for n := 0; n < need; n++ {
			pick := rng.IntN(len(members) * k)
			base := points[pick/k]
			nn := points[neighbors[pick/k][pick%k]]
			step := rng.Float64()
			row := out.RawRowView(next)
			for j := range row {
				row[j] = base[j] + step*(nn[j]-base[j])
			}
			labels = append(labels, c)
			next++
		}
		s.synthetic_[c] = need
	}

	s.logger.Info("classes rebalanced",
		log.OperationKey, log.OperationResample,
		log.SamplesKey, rows,
		log.SyntheticKey, total,
		log.ClassesKey, len(classes),
	)
	return out, labels, nil
}

// SyntheticCounts returns how many rows were synthesised per class by the
// last FitResample.
func (s *SMOTE) SyntheticCounts() map[int]int {
	out := make(map[int]int, len(s.synthetic_))
	for c, n := range s.synthetic_ {
		out[c] = n
	}
	return out
}

// GetParams returns the hyperparameters.
func (s *SMOTE) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"k_neighbors":  s.kNeighbors,
		"random_state": s.randomState,
	}
}

// nearestNeighbors returns, for each point, the indices of its k nearest
// other points by Euclidean distance. Ties go to the lower index, which
// keeps the result independent of map or sort instability.
func nearestNeighbors(points [][]float64, k int) [][]int {
	n := len(points)
	out := make([][]int, n)
	parallel.ParallelizeWithThreshold(n, neighborsSerialLimit, func(start, end int) {
		order := make([]int, 0, n-1)
		dist := make([]float64, n)
		for i := start; i < end; i++ {
			order = order[:0]
			for j := range points {
				if j == i {
					continue
				}
				dist[j] = floats.Distance(points[i], points[j], 2)
				order = append(order, j)
			}
			sort.SliceStable(order, func(a, b int) bool {
				return dist[order[a]] < dist[order[b]]
			})
			out[i] = append([]int(nil), order[:k]...)
		}
	})
	return out
}
