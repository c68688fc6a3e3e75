// Package ensemble provides the random forest classifier trained by the
// pipeline and served at inference.
package ensemble

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/nggra/obesity/core/model"
	"github.com/nggra/obesity/core/parallel"
	"github.com/nggra/obesity/metrics"
	"github.com/nggra/obesity/pkg/errors"
	"github.com/nggra/obesity/pkg/log"
	"github.com/nggra/obesity/tree"
)

// Accepted values of max_features.
const (
	MaxFeaturesSqrt = "sqrt"
	MaxFeaturesLog2 = "log2"
	MaxFeaturesAll  = "all"
)

// predictSerialLimit is the row count up to which prediction stays on the
// calling goroutine.
const predictSerialLimit = 512

// RandomForestClassifier averages the class probabilities of decision trees
// grown on bootstrap draws with random feature subsets at every split.
type RandomForestClassifier struct {
	state  *model.StateManager
	logger log.Logger

	// Hyperparameters
	nEstimators     int
	criterion       string
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     string
	bootstrap       bool
	randomState     uint64
	nJobs           int

	// Learned attributes
	estimators_  []*tree.DecisionTreeClassifier
	classes_     []int
	importances_ []float64
}

// Option configures a RandomForestClassifier.
type Option func(*RandomForestClassifier)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) Option {
	return func(rf *RandomForestClassifier) { rf.nEstimators = n }
}

// WithCriterion sets the split criterion of every tree.
func WithCriterion(criterion string) Option {
	return func(rf *RandomForestClassifier) { rf.criterion = criterion }
}

// WithMaxDepth limits the depth of every tree. 0 means unlimited.
func WithMaxDepth(depth int) Option {
	return func(rf *RandomForestClassifier) { rf.maxDepth = depth }
}

// WithMinSamplesSplit sets min_samples_split for every tree.
func WithMinSamplesSplit(n int) Option {
	return func(rf *RandomForestClassifier) { rf.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets min_samples_leaf for every tree.
func WithMinSamplesLeaf(n int) Option {
	return func(rf *RandomForestClassifier) { rf.minSamplesLeaf = n }
}

// WithMaxFeatures sets the per-split feature budget: "sqrt", "log2" or "all".
func WithMaxFeatures(mode string) Option {
	return func(rf *RandomForestClassifier) { rf.maxFeatures = mode }
}

// WithBootstrap toggles sampling with replacement.
func WithBootstrap(bootstrap bool) Option {
	return func(rf *RandomForestClassifier) { rf.bootstrap = bootstrap }
}

// WithRandomState seeds the forest. Tree seeds are drawn from it.
func WithRandomState(seed uint64) Option {
	return func(rf *RandomForestClassifier) { rf.randomState = seed }
}

// WithNJobs sets the number of trees trained concurrently. 0 uses every CPU.
func WithNJobs(n int) Option {
	return func(rf *RandomForestClassifier) { rf.nJobs = n }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(rf *RandomForestClassifier) { rf.logger = l }
}

// NewRandomForestClassifier creates a forest with scikit-learn defaults:
// 100 trees, gini, sqrt features, bootstrap on.
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	rf := &RandomForestClassifier{
		state:           model.NewStateManager(),
		logger:          log.GetLoggerWithName("ensemble.random_forest"),
		nEstimators:     100,
		criterion:       tree.CriterionGini,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     MaxFeaturesSqrt,
		bootstrap:       true,
		randomState:     42,
	}
	for _, opt := range opts {
		opt(rf)
	}
	return rf
}

func (rf *RandomForestClassifier) validate() error {
	var fields []errors.FieldError
	if rf.nEstimators < 1 {
		fields = append(fields, errors.FieldError{Field: "n_estimators", Reason: "must be >= 1", Value: rf.nEstimators})
	}
	switch rf.maxFeatures {
	case MaxFeaturesSqrt, MaxFeaturesLog2, MaxFeaturesAll:
	default:
		fields = append(fields, errors.FieldError{Field: "max_features", Reason: "must be sqrt, log2 or all", Value: rf.maxFeatures})
	}
	return errors.NewMultiValidationError(fields)
}

// featureBudget returns the number of features tried at each split.
func (rf *RandomForestClassifier) featureBudget(nFeatures int) int {
	var k int
	switch rf.maxFeatures {
	case MaxFeaturesSqrt:
		k = int(math.Sqrt(float64(nFeatures)))
	case MaxFeaturesLog2:
		k = int(math.Log2(float64(nFeatures)))
	default:
		k = nFeatures
	}
	if k < 1 {
		k = 1
	}
	return k
}

// Fit trains the forest on X (n×d) and y (n×1 class labels).
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	return rf.FitContext(context.Background(), X, y)
}

// FitContext is Fit with cancellation. Trees are trained concurrently and
// stored by index, so the fitted forest only depends on the seed.
func (rf *RandomForestClassifier) FitContext(ctx context.Context, X, y mat.Matrix) error {
	if err := rf.validate(); err != nil {
		return err
	}
	rows, cols := X.Dims()
	yRows, _ := y.Dims()
	if rows == 0 {
		return errors.NewValueError("RandomForestClassifier.Fit", "empty training data")
	}
	if yRows != rows {
		return errors.NewDimensionError("RandomForestClassifier.Fit", rows, yRows, 0)
	}
	start := time.Now()

	Xd := mat.DenseCopyOf(X)
	labels, classes := encodeLabels(y, rows)

	master := rand.New(rand.NewPCG(rf.randomState, rf.randomState))
	seeds := make([]uint64, rf.nEstimators)
	for i := range seeds {
		seeds[i] = master.Uint64()
	}

	budget := rf.featureBudget(cols)
	trees := make([]*tree.DecisionTreeClassifier, rf.nEstimators)
	err := parallel.ForEach(ctx, rf.nEstimators, rf.nJobs, func(i int) error {
		dt := tree.NewDecisionTreeClassifier(
			tree.WithCriterion(rf.criterion),
			tree.WithMaxDepth(rf.maxDepth),
			tree.WithMinSamplesSplit(rf.minSamplesSplit),
			tree.WithMinSamplesLeaf(rf.minSamplesLeaf),
			tree.WithMaxFeatures(budget),
			tree.WithRandomState(seeds[i]),
		)
		if err := dt.FitSamples(Xd, labels, classes, rf.drawSamples(rows, seeds[i])); err != nil {
			return errors.Wrapf(err, "tree %d", i)
		}
		trees[i] = dt
		return nil
	})
	if err != nil {
		return err
	}

	rf.state.Reset()
	rf.estimators_ = trees
	rf.classes_ = classes
	rf.importances_ = make([]float64, cols)
	for _, dt := range trees {
		floats.Add(rf.importances_, dt.GetFeatureImportances())
	}
	if total := floats.Sum(rf.importances_); total > 0 {
		floats.Scale(1/total, rf.importances_)
	}
	rf.state.SetDimensions(cols, rows)
	rf.state.SetFitted()

	rf.logger.Debug("forest fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.ClassesKey, len(classes),
		log.HyperParamsKey, rf.String(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// drawSamples returns the row indices a tree is grown on.
func (rf *RandomForestClassifier) drawSamples(rows int, seed uint64) []int {
	samples := make([]int, rows)
	if !rf.bootstrap {
		for i := range samples {
			samples[i] = i
		}
		return samples
	}
	rng := rand.New(rand.NewPCG(seed, ^seed))
	for i := range samples {
		samples[i] = rng.IntN(rows)
	}
	return samples
}

// encodeLabels maps y to positions in the sorted set of distinct labels.
func encodeLabels(y mat.Matrix, rows int) ([]int, []int) {
	raw := make([]int, rows)
	seen := map[int]struct{}{}
	for i := 0; i < rows; i++ {
		raw[i] = int(y.At(i, 0))
		seen[raw[i]] = struct{}{}
	}
	classes := make([]int, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	position := make(map[int]int, len(classes))
	for i, c := range classes {
		position[c] = i
	}
	for i := range raw {
		raw[i] = position[raw[i]]
	}
	return raw, classes
}

func (rf *RandomForestClassifier) check(method string, cols int) error {
	if err := rf.state.RequireFitted("RandomForestClassifier", method); err != nil {
		return err
	}
	return rf.state.RequireFeatures("RandomForestClassifier."+method, cols)
}

// PredictProbaRow returns the mean class distribution of the trees for one
// feature vector.
func (rf *RandomForestClassifier) PredictProbaRow(row []float64) ([]float64, error) {
	if err := rf.check("PredictProba", len(row)); err != nil {
		return nil, err
	}
	return rf.probaRow(row), nil
}

func (rf *RandomForestClassifier) probaRow(row []float64) []float64 {
	out := make([]float64, len(rf.classes_))
	for _, dt := range rf.estimators_ {
		floats.Add(out, dt.ProbaRow(row))
	}
	floats.Scale(1/float64(len(rf.estimators_)), out)
	return out
}

// PredictProba returns an n×k matrix whose columns follow Classes().
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	rows, cols := X.Dims()
	if err := rf.check("PredictProba", cols); err != nil {
		return nil, err
	}
	out := mat.NewDense(rows, len(rf.classes_), nil)
	rf.eachRow(X, rows, cols, func(i int, row []float64) {
		out.SetRow(i, rf.probaRow(row))
	})
	return out, nil
}

// eachRow calls fn for every row of X. Large inputs are split into chunks
// handled concurrently; fn must only write to row i's slot.
func (rf *RandomForestClassifier) eachRow(X mat.Matrix, rows, cols int, fn func(i int, row []float64)) {
	parallel.ParallelizeWithThreshold(rows, predictSerialLimit, func(start, end int) {
		row := make([]float64, cols)
		for i := start; i < end; i++ {
			mat.Row(row, i, X)
			fn(i, row)
		}
	})
}

// Predict returns an n×1 matrix of class labels. Equal probabilities resolve
// to the lowest class.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	rows, cols := X.Dims()
	if err := rf.check("Predict", cols); err != nil {
		return nil, err
	}
	out := mat.NewDense(rows, 1, nil)
	rf.eachRow(X, rows, cols, func(i int, row []float64) {
		out.Set(i, 0, float64(rf.classes_[Argmax(rf.probaRow(row))]))
	})
	return out, nil
}

// Argmax returns the first index of the largest value.
func Argmax(p []float64) int {
	best := 0
	for i := 1; i < len(p); i++ {
		if p[i] > p[best] {
			best = i
		}
	}
	return best
}

// Score returns the mean accuracy on X and y, or 0 if X cannot be predicted.
func (rf *RandomForestClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := rf.Predict(X)
	if err != nil {
		return 0
	}
	acc, err := metrics.AccuracyMatrix(y, pred)
	if err != nil {
		return 0
	}
	return acc
}

// Classes returns the class labels seen during fitting, ascending.
func (rf *RandomForestClassifier) Classes() []int {
	return append([]int(nil), rf.classes_...)
}

// NFeatures returns the number of features seen during fitting.
func (rf *RandomForestClassifier) NFeatures() int {
	n, _ := rf.state.GetDimensions()
	return n
}

// IsFitted reports whether Fit has completed.
func (rf *RandomForestClassifier) IsFitted() bool {
	return rf.state.IsFitted()
}

// Estimators returns the fitted trees.
func (rf *RandomForestClassifier) Estimators() []*tree.DecisionTreeClassifier {
	return append([]*tree.DecisionTreeClassifier(nil), rf.estimators_...)
}

// FeatureImportances returns the mean impurity decrease per feature,
// normalised to sum to 1.
func (rf *RandomForestClassifier) FeatureImportances() []float64 {
	return append([]float64(nil), rf.importances_...)
}

// GetParams returns the hyperparameters.
func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      rf.nEstimators,
		"criterion":         rf.criterion,
		"max_depth":         rf.maxDepth,
		"min_samples_split": rf.minSamplesSplit,
		"min_samples_leaf":  rf.minSamplesLeaf,
		"max_features":      rf.maxFeatures,
		"bootstrap":         rf.bootstrap,
		"random_state":      rf.randomState,
		"n_jobs":            rf.nJobs,
	}
}

// SetParams updates hyperparameters by name.
func (rf *RandomForestClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "n_estimators":
			rf.nEstimators, ok = value.(int)
		case "max_depth":
			rf.maxDepth, ok = value.(int)
		case "min_samples_split":
			rf.minSamplesSplit, ok = value.(int)
		case "min_samples_leaf":
			rf.minSamplesLeaf, ok = value.(int)
		case "n_jobs":
			rf.nJobs, ok = value.(int)
		case "criterion":
			rf.criterion, ok = value.(string)
		case "max_features":
			rf.maxFeatures, ok = value.(string)
		case "bootstrap":
			rf.bootstrap, ok = value.(bool)
		case "random_state":
			rf.randomState, ok = value.(uint64)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, fmt.Sprintf("unsupported type %T", value), value)
		}
	}
	return rf.validate()
}

// String returns a short description.
func (rf *RandomForestClassifier) String() string {
	return fmt.Sprintf("RandomForestClassifier(n_estimators=%d, max_depth=%d, min_samples_split=%d, min_samples_leaf=%d, bootstrap=%t)",
		rf.nEstimators, rf.maxDepth, rf.minSamplesSplit, rf.minSamplesLeaf, rf.bootstrap)
}

// forestState is the gob image of a RandomForestClassifier.
type forestState struct {
	NEstimators     int
	Criterion       string
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     string
	Bootstrap       bool
	RandomState     uint64
	Estimators      []*tree.DecisionTreeClassifier
	Classes         []int
	Importances     []float64
	State           *model.StateManager
}

// GobEncode implements gob.GobEncoder.
func (rf *RandomForestClassifier) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(forestState{
		NEstimators:     rf.nEstimators,
		Criterion:       rf.criterion,
		MaxDepth:        rf.maxDepth,
		MinSamplesSplit: rf.minSamplesSplit,
		MinSamplesLeaf:  rf.minSamplesLeaf,
		MaxFeatures:     rf.maxFeatures,
		Bootstrap:       rf.bootstrap,
		RandomState:     rf.randomState,
		Estimators:      rf.estimators_,
		Classes:         rf.classes_,
		Importances:     rf.importances_,
		State:           rf.state,
	})
	return buf.Bytes(), err
}

// GobDecode implements gob.GobDecoder.
func (rf *RandomForestClassifier) GobDecode(data []byte) error {
	var s forestState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return err
	}
	rf.nEstimators = s.NEstimators
	rf.criterion = s.Criterion
	rf.maxDepth = s.MaxDepth
	rf.minSamplesSplit = s.MinSamplesSplit
	rf.minSamplesLeaf = s.MinSamplesLeaf
	rf.maxFeatures = s.MaxFeatures
	rf.bootstrap = s.Bootstrap
	rf.randomState = s.RandomState
	rf.estimators_ = s.Estimators
	rf.classes_ = s.Classes
	rf.importances_ = s.Importances
	rf.state = s.State
	if rf.state == nil {
		rf.state = model.NewStateManager()
	}
	if rf.logger == nil {
		rf.logger = log.GetLoggerWithName("ensemble.random_forest")
	}
	if len(rf.estimators_) != rf.nEstimators {
		return errors.NewValueError("RandomForestClassifier.GobDecode",
			fmt.Sprintf("expected %d trees, decoded %d", rf.nEstimators, len(rf.estimators_)))
	}
	return nil
}

var _ model.Classifier = (*RandomForestClassifier)(nil)
