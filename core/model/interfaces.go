package model

import (
	"gonum.org/v1/gonum/mat"
)

// Fitter is a supervised learner.
type Fitter interface {
	Fit(X, y mat.Matrix) error
}

// Predictor returns one prediction per row as an n×1 matrix.
type Predictor interface {
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Transformer learns a column-wise transformation and applies it.
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// InverseTransformer can undo its transformation.
type InverseTransformer interface {
	Transformer
	InverseTransform(X mat.Matrix) (mat.Matrix, error)
}

// ParameterGetter exposes hyperparameters using scikit-learn names.
type ParameterGetter interface {
	GetParams() map[string]interface{}
}

// ParameterSetter updates hyperparameters using scikit-learn names.
type ParameterSetter interface {
	SetParams(params map[string]interface{}) error
}

// Classifier is a fitted multi-class model. Labels are the integer codes
// 0..k-1 produced by the target encoder.
type Classifier interface {
	Fitter
	Predictor
	ParameterGetter
	ParameterSetter

	// PredictProba returns an n×k matrix whose columns follow Classes().
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Score returns the mean accuracy on (X, y).
	Score(X, y mat.Matrix) float64

	// Classes returns the class labels seen during fitting, ascending.
	Classes() []int
}
