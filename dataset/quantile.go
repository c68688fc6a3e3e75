package dataset

import (
	"math"
	"sort"
)

// Quantile returns the p-quantile of the non-NaN values using linear
// interpolation between closest ranks (Hyndman and Fan type 7, the default of
// NumPy and pandas). It returns NaN when no value is present.
//
// gonum's stat.Quantile offers the empirical and type 4 definitions only,
// which give different Q1/Q3 on small samples.
func Quantile(p float64, values []float64) float64 {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return math.NaN()
	}
	sort.Float64s(sorted)
	return quantileSorted(p, sorted)
}

func quantileSorted(p float64, sorted []float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	h := float64(n-1) * p
	lo := math.Floor(h)
	i := int(lo)
	if i >= n-1 {
		return sorted[n-1]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}

// IQRBounds returns Q1, Q3 and the fences [Q1-k*IQR, Q3+k*IQR].
func IQRBounds(values []float64, k float64) (q1, q3, lower, upper float64) {
	q1 = Quantile(0.25, values)
	q3 = Quantile(0.75, values)
	iqr := q3 - q1
	return q1, q3, q1 - k*iqr, q3 + k*iqr
}
