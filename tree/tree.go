// Package tree implements a CART decision tree classifier. It is the base
// learner of the random forest in package ensemble.
package tree

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/nggra/obesity/core/model"
	"github.com/nggra/obesity/pkg/errors"
)

const (
	CriterionGini    = "gini"
	CriterionEntropy = "entropy"
)

// Node is one node of a fitted tree. Leaves have Left == Right == -1.
// Value holds the class distribution of the training samples that reached
// the node, normalised to sum to 1.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Impurity  float64
	NSamples  int
	Value     []float64
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return n.Left < 0
}

// DecisionTreeClassifier grows one tree by greedy binary splits that
// minimise the weighted child impurity.
type DecisionTreeClassifier struct {
	state *model.StateManager

	// Hyperparameters
	criterion       string
	maxDepth        int // 0 means unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int // 0 means all features
	randomState     uint64

	// Learned attributes
	nodes_       []Node
	classes_     []int
	nClasses_    int
	importances_ []float64
	depth_       int
	nLeaves_     int
}

// Option configures a DecisionTreeClassifier.
type Option func(*DecisionTreeClassifier)

// WithCriterion sets the impurity measure, "gini" or "entropy".
func WithCriterion(criterion string) Option {
	return func(dt *DecisionTreeClassifier) { dt.criterion = criterion }
}

// WithMaxDepth limits the tree depth. 0 grows until leaves are pure.
func WithMaxDepth(depth int) Option {
	return func(dt *DecisionTreeClassifier) { dt.maxDepth = depth }
}

// WithMinSamplesSplit sets the minimum samples required to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum samples in each child of a split.
func WithMinSamplesLeaf(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesLeaf = n }
}

// WithMaxFeatures sets how many features are considered at each split.
// 0 considers all of them.
func WithMaxFeatures(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.maxFeatures = n }
}

// WithRandomState seeds the per-split feature sampling.
func WithRandomState(seed uint64) Option {
	return func(dt *DecisionTreeClassifier) { dt.randomState = seed }
}

// NewDecisionTreeClassifier creates a tree with scikit-learn defaults.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       CriterionGini,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

func (dt *DecisionTreeClassifier) validate() error {
	var fields []errors.FieldError
	if dt.criterion != CriterionGini && dt.criterion != CriterionEntropy {
		fields = append(fields, errors.FieldError{Field: "criterion", Reason: "must be gini or entropy", Value: dt.criterion})
	}
	if dt.maxDepth < 0 {
		fields = append(fields, errors.FieldError{Field: "max_depth", Reason: "must be >= 0", Value: dt.maxDepth})
	}
	if dt.minSamplesSplit < 2 {
		fields = append(fields, errors.FieldError{Field: "min_samples_split", Reason: "must be >= 2", Value: dt.minSamplesSplit})
	}
	if dt.minSamplesLeaf < 1 {
		fields = append(fields, errors.FieldError{Field: "min_samples_leaf", Reason: "must be >= 1", Value: dt.minSamplesLeaf})
	}
	if dt.maxFeatures < 0 {
		fields = append(fields, errors.FieldError{Field: "max_features", Reason: "must be >= 0", Value: dt.maxFeatures})
	}
	return errors.NewMultiValidationError(fields)
}

// Fit builds the tree from X (n×d) and y (n×1 class labels).
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	rows, _ := X.Dims()
	yRows, _ := y.Dims()
	if rows == 0 {
		return errors.NewValueError("DecisionTreeClassifier.Fit", "empty training data")
	}
	if yRows != rows {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", rows, yRows, 0)
	}

	seen := map[int]struct{}{}
	labels := make([]int, rows)
	for i := 0; i < rows; i++ {
		labels[i] = int(y.At(i, 0))
		seen[labels[i]] = struct{}{}
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
	for i := range labels {
		labels[i] = position[labels[i]]
	}

	samples := make([]int, rows)
	for i := range samples {
		samples[i] = i
	}
	return dt.FitSamples(mat.DenseCopyOf(X), labels, classes, samples)
}

// FitSamples builds the tree from the rows of X listed in samples. Indices
// may repeat, which is how bootstrap draws are expressed. y holds class
// positions into classes, so every tree of a forest shares one label space
// even when its sample misses a class.
func (dt *DecisionTreeClassifier) FitSamples(X *mat.Dense, y []int, classes []int, samples []int) error {
	if err := dt.validate(); err != nil {
		return err
	}
	rows, cols := X.Dims()
	if len(y) != rows {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", rows, len(y), 0)
	}
	if len(samples) == 0 || len(classes) == 0 {
		return errors.NewValueError("DecisionTreeClassifier.Fit", "empty training data")
	}
	if err := errors.CheckMatrix("DecisionTreeClassifier.Fit", X, rows, cols); err != nil {
		return err
	}

	dt.state.Reset()
	dt.classes_ = append([]int(nil), classes...)
	dt.nClasses_ = len(classes)
	dt.nodes_ = dt.nodes_[:0]
	dt.importances_ = make([]float64, cols)
	dt.depth_ = 0
	dt.nLeaves_ = 0

	b := &builder{
		dt:       dt,
		X:        X,
		y:        y,
		nFeature: cols,
		rng:      rand.New(rand.NewPCG(dt.randomState, dt.randomState)),
	}
	b.build(append([]int(nil), samples...), 0)

	total := 0.0
	for _, v := range dt.importances_ {
		total += v
	}
	if total > 0 {
		for i := range dt.importances_ {
			dt.importances_[i] /= total
		}
	}

	dt.state.SetDimensions(cols, len(samples))
	dt.state.SetFitted()
	return nil
}

type builder struct {
	dt       *DecisionTreeClassifier
	X        *mat.Dense
	y        []int
	nFeature int
	rng      *rand.Rand
	buf      []valued
}

type valued struct {
	v float64
	s int
}

type split struct {
	feature   int
	threshold float64
	pos       int // samples[:pos] go left after sorting on feature
	childImp  float64
	leftImp   float64
	rightImp  float64
}

func (b *builder) counts(samples []int) []float64 {
	c := make([]float64, b.dt.nClasses_)
	for _, s := range samples {
		c[b.y[s]]++
	}
	return c
}

// build appends the subtree for samples and returns its node index.
func (b *builder) build(samples []int, depth int) int {
	dt := b.dt
	counts := b.counts(samples)
	n := float64(len(samples))
	impurity := dt.impurity(counts, n)

	value := make([]float64, len(counts))
	for i, c := range counts {
		value[i] = c / n
	}
	id := len(dt.nodes_)
	dt.nodes_ = append(dt.nodes_, Node{
		Feature:  -1,
		Left:     -1,
		Right:    -1,
		Impurity: impurity,
		NSamples: len(samples),
		Value:    value,
	})
	if depth > dt.depth_ {
		dt.depth_ = depth
	}

	leaf := impurity <= 0 ||
		(dt.maxDepth > 0 && depth >= dt.maxDepth) ||
		len(samples) < dt.minSamplesSplit ||
		len(samples) < 2*dt.minSamplesLeaf
	var best *split
	if !leaf {
		best = b.bestSplit(samples, counts)
	}
	if best == nil {
		dt.nLeaves_++
		return id
	}

	b.sortOnFeature(samples, best.feature)
	left := append([]int(nil), samples[:best.pos]...)
	right := append([]int(nil), samples[best.pos:]...)

	nl, nr := float64(len(left)), float64(len(right))
	dt.importances_[best.feature] += n*impurity - nl*best.leftImp - nr*best.rightImp

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	node := &dt.nodes_[id]
	node.Feature = best.feature
	node.Threshold = best.threshold
	node.Left = l
	node.Right = r
	return id
}

// bestSplit scans a random permutation of the features and returns the split
// with the lowest weighted child impurity. Constant features do not count
// towards maxFeatures. Ties keep the first split found.
func (b *builder) bestSplit(samples []int, parent []float64) *split {
	dt := b.dt
	limit := dt.maxFeatures
	if limit <= 0 || limit > b.nFeature {
		limit = b.nFeature
	}
	features := b.rng.Perm(b.nFeature)

	var best *split
	visited := 0
	n := float64(len(samples))
	left := make([]float64, len(parent))
	right := make([]float64, len(parent))

	for _, f := range features {
		if visited >= limit {
			break
		}
		vals := b.sortOnFeature(samples, f)
		if vals[0] == vals[len(vals)-1] {
			continue
		}
		visited++

		for i := range left {
			left[i] = 0
		}
		copy(right, parent)
		for i := 0; i < len(samples)-1; i++ {
			c := b.y[samples[i]]
			left[c]++
			right[c]--

			pos := i + 1
			v, next := vals[i], vals[pos]
			if v == next {
				continue
			}
			if pos < dt.minSamplesLeaf || len(samples)-pos < dt.minSamplesLeaf {
				continue
			}
			nl, nr := float64(pos), n-float64(pos)
			li, ri := dt.impurity(left, nl), dt.impurity(right, nr)
			child := (nl*li + nr*ri) / n
			if best == nil || child < best.childImp {
				threshold := v + (next-v)/2
				if threshold >= next {
					threshold = v
				}
				best = &split{
					feature:   f,
					threshold: threshold,
					pos:       pos,
					childImp:  child,
					leftImp:   li,
					rightImp:  ri,
				}
			}
		}
	}
	return best
}

// sortOnFeature orders samples in place by feature f, breaking ties by
// sample index, and returns the sorted feature values. The returned slice is
// reused by the next call.
func (b *builder) sortOnFeature(samples []int, f int) []float64 {
	if cap(b.buf) < len(samples) {
		b.buf = make([]valued, len(samples))
	}
	buf := b.buf[:len(samples)]
	for i, s := range samples {
		buf[i] = valued{v: b.X.At(s, f), s: s}
	}
	sort.Slice(buf, func(i, j int) bool {
		if buf[i].v != buf[j].v {
			return buf[i].v < buf[j].v
		}
		return buf[i].s < buf[j].s
	})
	vals := make([]float64, len(buf))
	for i, p := range buf {
		samples[i] = p.s
		vals[i] = p.v
	}
	return vals
}

func (dt *DecisionTreeClassifier) impurity(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	switch dt.criterion {
	case CriterionEntropy:
		h := 0.0
		for _, c := range counts {
			if c > 0 {
				p := c / n
				h -= p * math.Log2(p)
			}
		}
		return h
	default:
		g := 1.0
		for _, c := range counts {
			p := c / n
			g -= p * p
		}
		return g
	}
}

func (dt *DecisionTreeClassifier) leaf(row []float64) *Node {
	node := &dt.nodes_[0]
	for !node.IsLeaf() {
		if row[node.Feature] <= node.Threshold {
			node = &dt.nodes_[node.Left]
		} else {
			node = &dt.nodes_[node.Right]
		}
	}
	return node
}

func (dt *DecisionTreeClassifier) check(method string, X mat.Matrix) error {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", method); err != nil {
		return err
	}
	_, cols := X.Dims()
	return dt.state.RequireFeatures("DecisionTreeClassifier."+method, cols)
}

// ProbaRow returns the class distribution of the leaf that row falls into.
// The slice is owned by the tree and must not be modified.
func (dt *DecisionTreeClassifier) ProbaRow(row []float64) []float64 {
	return dt.leaf(row).Value
}

// PredictProba returns an n×k matrix of class probabilities.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.check("PredictProba", X); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	out := mat.NewDense(rows, dt.nClasses_, nil)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		out.SetRow(i, dt.ProbaRow(row))
	}
	return out, nil
}

// Predict returns an n×1 matrix of class labels.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.check("Predict", X); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	out := mat.NewDense(rows, 1, nil)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		out.Set(i, 0, float64(dt.classes_[argmax(dt.ProbaRow(row))]))
	}
	return out, nil
}

// Score returns the mean accuracy on X and y. It returns 0 when the model
// cannot predict X.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0
	}
	rows, _ := pred.Dims()
	if rows == 0 {
		return 0
	}
	correct := 0
	for i := 0; i < rows; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(rows)
}

// argmax returns the first index of the largest value.
func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

// Classes returns the class labels in column order of PredictProba.
func (dt *DecisionTreeClassifier) Classes() []int {
	return append([]int(nil), dt.classes_...)
}

// GetFeatureImportances returns the normalised impurity decrease per
// feature. It is all zeros for a single-leaf tree.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), dt.importances_...)
}

// GetDepth returns the depth of the fitted tree. A single leaf has depth 0.
func (dt *DecisionTreeClassifier) GetDepth() int {
	return dt.depth_
}

// GetNLeaves returns the number of leaves.
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	return dt.nLeaves_
}

// Nodes returns a copy of the fitted node table.
func (dt *DecisionTreeClassifier) Nodes() []Node {
	return append([]Node(nil), dt.nodes_...)
}

// GetParams returns the hyperparameters.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         dt.criterion,
		"max_depth":         dt.maxDepth,
		"min_samples_split": dt.minSamplesSplit,
		"min_samples_leaf":  dt.minSamplesLeaf,
		"max_features":      dt.maxFeatures,
		"random_state":      dt.randomState,
	}
}

// SetParams updates hyperparameters by name.
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "criterion":
			v, ok := value.(string)
			if !ok {
				return errors.NewValidationError(key, "must be a string", value)
			}
			dt.criterion = v
		case "max_depth", "min_samples_split", "min_samples_leaf", "max_features":
			v, ok := value.(int)
			if !ok {
				return errors.NewValidationError(key, "must be an int", value)
			}
			switch key {
			case "max_depth":
				dt.maxDepth = v
			case "min_samples_split":
				dt.minSamplesSplit = v
			case "min_samples_leaf":
				dt.minSamplesLeaf = v
			default:
				dt.maxFeatures = v
			}
		case "random_state":
			v, ok := value.(uint64)
			if !ok {
				return errors.NewValidationError(key, "must be a uint64", value)
			}
			dt.randomState = v
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
	}
	return dt.validate()
}

// String returns a short description.
func (dt *DecisionTreeClassifier) String() string {
	return fmt.Sprintf("DecisionTreeClassifier(criterion=%s, max_depth=%d, min_samples_split=%d, min_samples_leaf=%d)",
		dt.criterion, dt.maxDepth, dt.minSamplesSplit, dt.minSamplesLeaf)
}

// treeState is the gob image of a DecisionTreeClassifier.
type treeState struct {
	Criterion       string
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
	RandomState     uint64
	Nodes           []Node
	Classes         []int
	Importances     []float64
	Depth           int
	NLeaves         int
	State           *model.StateManager
}

// GobEncode implements gob.GobEncoder.
func (dt *DecisionTreeClassifier) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(treeState{
		Criterion:       dt.criterion,
		MaxDepth:        dt.maxDepth,
		MinSamplesSplit: dt.minSamplesSplit,
		MinSamplesLeaf:  dt.minSamplesLeaf,
		MaxFeatures:     dt.maxFeatures,
		RandomState:     dt.randomState,
		Nodes:           dt.nodes_,
		Classes:         dt.classes_,
		Importances:     dt.importances_,
		Depth:           dt.depth_,
		NLeaves:         dt.nLeaves_,
		State:           dt.state,
	})
	return buf.Bytes(), err
}

// GobDecode implements gob.GobDecoder.
func (dt *DecisionTreeClassifier) GobDecode(data []byte) error {
	var s treeState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return err
	}
	dt.criterion = s.Criterion
	dt.maxDepth = s.MaxDepth
	dt.minSamplesSplit = s.MinSamplesSplit
	dt.minSamplesLeaf = s.MinSamplesLeaf
	dt.maxFeatures = s.MaxFeatures
	dt.randomState = s.RandomState
	dt.nodes_ = s.Nodes
	dt.classes_ = s.Classes
	dt.nClasses_ = len(s.Classes)
	dt.importances_ = s.Importances
	dt.depth_ = s.Depth
	dt.nLeaves_ = s.NLeaves
	dt.state = s.State
	if dt.state == nil {
		dt.state = model.NewStateManager()
	}
	return nil
}
