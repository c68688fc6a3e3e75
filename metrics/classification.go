// Package metrics computes the held-out classification scores reported after
// training. Scores are informational; nothing in the pipeline gates on them.
package metrics

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/nggra/obesity/pkg/errors"
)

// Accuracy returns the fraction of equal entries of yTrue and yPred.
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	if yTrue == nil || yPred == nil || yTrue.Len() == 0 {
		return 0, errors.NewValueError("Accuracy", "empty vector")
	}
	n := yTrue.Len()
	if yPred.Len() != n {
		return 0, errors.NewDimensionError("Accuracy", n, yPred.Len(), 0)
	}
	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// AccuracyMatrix is Accuracy for n×1 matrices.
func AccuracyMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()
	if rTrue == 0 {
		return 0, errors.NewValueError("AccuracyMatrix", "empty matrix")
	}
	if rTrue != rPred {
		return 0, errors.NewDimensionError("AccuracyMatrix", rTrue, rPred, 0)
	}
	if cTrue != 1 || cPred != 1 {
		return 0, errors.NewValueError("AccuracyMatrix", "must be a column vector (n×1 matrix)")
	}
	return Accuracy(mat.NewVecDense(rTrue, mat.Col(nil, 0, yTrue)), mat.NewVecDense(rPred, mat.Col(nil, 0, yPred)))
}

// ConfusionMatrix returns a k×k matrix whose entry (i, j) counts samples of
// true class i predicted as class j. Labels must lie in [0, nClasses).
func ConfusionMatrix(yTrue, yPred []int, nClasses int) (*mat.Dense, error) {
	if len(yTrue) == 0 {
		return nil, errors.NewValueError("ConfusionMatrix", "empty labels")
	}
	if len(yPred) != len(yTrue) {
		return nil, errors.NewDimensionError("ConfusionMatrix", len(yTrue), len(yPred), 0)
	}
	if nClasses < 1 {
		return nil, errors.NewValidationError("n_classes", "must be >= 1", nClasses)
	}
	cm := mat.NewDense(nClasses, nClasses, nil)
	for i := range yTrue {
		t, p := yTrue[i], yPred[i]
		if t < 0 || t >= nClasses || p < 0 || p >= nClasses {
			return nil, errors.NewValueError("ConfusionMatrix",
				fmt.Sprintf("label out of range at %d: true=%d pred=%d, n_classes=%d", i, t, p, nClasses))
		}
		cm.Set(t, p, cm.At(t, p)+1)
	}
	return cm, nil
}

// ClassMetrics are the one-vs-rest scores of one class.
type ClassMetrics struct {
	Class     int
	Label     string
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// Average is a macro or support-weighted mean over classes.
type Average struct {
	Precision float64
	Recall    float64
	F1        float64
}

// Report bundles every held-out score the pipeline logs.
type Report struct {
	Accuracy  float64
	PerClass  []ClassMetrics
	Macro     Average
	Weighted  Average
	Confusion *mat.Dense
	Support   int
}

// NewReport scores yPred against yTrue. labels names the classes 0..k-1.
// A precision or recall with a zero denominator is reported as 0 and raises
// an UndefinedMetricWarning.
func NewReport(yTrue, yPred []int, labels []string) (*Report, error) {
	cm, err := ConfusionMatrix(yTrue, yPred, len(labels))
	if err != nil {
		return nil, err
	}
	k := len(labels)
	r := &Report{Confusion: cm, Support: len(yTrue), PerClass: make([]ClassMetrics, k)}

	correct := 0.0
	for c := 0; c < k; c++ {
		correct += cm.At(c, c)
	}
	r.Accuracy = correct / float64(len(yTrue))

	for c := 0; c < k; c++ {
		tp := cm.At(c, c)
		predicted := 0.0
		actual := 0.0
		for j := 0; j < k; j++ {
			predicted += cm.At(j, c)
			actual += cm.At(c, j)
		}
		m := ClassMetrics{Class: c, Label: labels[c], Support: int(actual)}
		if predicted == 0 {
			errors.Warn(errors.NewUndefinedMetricWarning("precision",
				fmt.Sprintf("no predicted samples for class %s", labels[c]), 0))
		} else {
			m.Precision = tp / predicted
		}
		if actual == 0 {
			errors.Warn(errors.NewUndefinedMetricWarning("recall",
				fmt.Sprintf("no true samples for class %s", labels[c]), 0))
		} else {
			m.Recall = tp / actual
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		r.PerClass[c] = m

		r.Macro.Precision += m.Precision / float64(k)
		r.Macro.Recall += m.Recall / float64(k)
		r.Macro.F1 += m.F1 / float64(k)
		w := actual / float64(len(yTrue))
		r.Weighted.Precision += w * m.Precision
		r.Weighted.Recall += w * m.Recall
		r.Weighted.F1 += w * m.F1
	}
	return r, nil
}

// String renders the report in the layout of scikit-learn's
// classification_report followed by the confusion matrix.
func (r *Report) String() string {
	width := len("weighted avg")
	for _, m := range r.PerClass {
		if len(m.Label) > width {
			width = len(m.Label)
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%*s %9s %9s %9s %9s\n\n", width, "", "precision", "recall", "f1-score", "support")
	for _, m := range r.PerClass {
		fmt.Fprintf(&b, "%*s %9.2f %9.2f %9.2f %9d\n", width, m.Label, m.Precision, m.Recall, m.F1, m.Support)
	}
	fmt.Fprintf(&b, "\n%*s %9s %9s %9.2f %9d\n", width, "accuracy", "", "", r.Accuracy, r.Support)
	fmt.Fprintf(&b, "%*s %9.2f %9.2f %9.2f %9d\n", width, "macro avg", r.Macro.Precision, r.Macro.Recall, r.Macro.F1, r.Support)
	fmt.Fprintf(&b, "%*s %9.2f %9.2f %9.2f %9d\n", width, "weighted avg", r.Weighted.Precision, r.Weighted.Recall, r.Weighted.F1, r.Support)

	b.WriteString("\nconfusion matrix (rows = true, columns = predicted)\n")
	k, _ := r.Confusion.Dims()
	for i := 0; i < k; i++ {
		fmt.Fprintf(&b, "%*s", width, r.PerClass[i].Label)
		for j := 0; j < k; j++ {
			fmt.Fprintf(&b, " %5d", int(r.Confusion.At(i, j)))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
