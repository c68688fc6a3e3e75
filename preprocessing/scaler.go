// Package preprocessing holds the fitted transformations shared by training
// and inference: the standard scaler for numeric features and the label
// encoders for categorical features and the target.
package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/nggra/obesity/core/model"
	"github.com/nggra/obesity/pkg/errors"
)

// MinScale is the standard deviation under which a column is treated as
// constant. Such a column gets scale 1, so Transform only centres it.
const MinScale = 1e-8

// StandardScaler standardises columns to zero mean and unit variance using
// the population standard deviation.
//
//	scaler := preprocessing.NewStandardScalerDefault()
//	z, err := scaler.FitTransform(numeric)
type StandardScaler struct {
	model.BaseEstimator

	Mean      []float64
	Scale     []float64
	NFeatures int
	NSamples  int

	// Constant lists the columns whose std fell below MinScale.
	Constant []int

	WithMean bool
	WithStd  bool
}

// NewStandardScaler creates a scaler; both flags are true for
// standardisation.
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{WithMean: withMean, WithStd: withStd}
}

// NewStandardScalerDefault centres and scales.
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// Fit computes per-column mean and population standard deviation.
func (s *StandardScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("StandardScaler.Fit", "empty data", errors.ErrEmptyData)
	}
	if err := errors.CheckMatrix("StandardScaler.Fit", X, r, c); err != nil {
		return err
	}

	s.Reset()
	s.NFeatures = c
	s.NSamples = r
	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)
	s.Constant = nil

	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		mean, variance := stat.PopMeanVariance(col, nil)
		if s.WithMean {
			s.Mean[j] = mean
		}
		s.Scale[j] = 1
		if s.WithStd {
			std := math.Sqrt(variance)
			if std < MinScale {
				s.Constant = append(s.Constant, j)
			} else {
				s.Scale[j] = std
			}
		}
	}

	s.SetFitted()
	return nil
}

// Transform applies x' = (x - mean) / scale column-wise. It never refits.
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if !s.IsFitted() {
		return nil, errors.NewNotFittedError("StandardScaler", "Transform")
	}
	r, c := X.Dims()
	if c != s.NFeatures {
		return nil, errors.NewDimensionError("StandardScaler.Transform", s.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	result.Apply(func(_, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	}, X)
	return result, nil
}

// TransformRow standardises a single row into a new slice.
func (s *StandardScaler) TransformRow(row []float64) ([]float64, error) {
	if !s.IsFitted() {
		return nil, errors.NewNotFittedError("StandardScaler", "TransformRow")
	}
	if len(row) != s.NFeatures {
		return nil, errors.NewDimensionError("StandardScaler.TransformRow", s.NFeatures, len(row), 1)
	}
	if err := errors.CheckFinite("StandardScaler.TransformRow", row); err != nil {
		return nil, err
	}
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out, nil
}

// FitTransform fits on X and returns X transformed.
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform maps standardised values back to the original scale.
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if !s.IsFitted() {
		return nil, errors.NewNotFittedError("StandardScaler", "InverseTransform")
	}
	r, c := X.Dims()
	if c != s.NFeatures {
		return nil, errors.NewDimensionError("StandardScaler.InverseTransform", s.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	result.Apply(func(_, j int, v float64) float64 {
		return v*s.Scale[j] + s.Mean[j]
	}, X)
	return result, nil
}

// GetParams returns the scaler flags.
func (s *StandardScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"with_mean": s.WithMean,
		"with_std":  s.WithStd,
	}
}

func (s *StandardScaler) String() string {
	if !s.IsFitted() {
		return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.WithMean, s.WithStd)
	}
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t, n_features=%d)",
		s.WithMean, s.WithStd, s.NFeatures)
}

var _ model.InverseTransformer = (*StandardScaler)(nil)
