// Package model holds the estimator contracts shared by the preprocessing,
// oversampling and classifier packages, together with the fitted-state
// bookkeeping and gob persistence helpers they rely on.
package model

// EstimatorState is the fitted state of an estimator.
type EstimatorState int

const (
	NotFitted EstimatorState = iota
	Fitted
)

// BaseEstimator is embedded by single-goroutine transformers. State is
// exported so it survives gob encoding.
type BaseEstimator struct {
	State EstimatorState
}

// IsFitted reports whether Fit has completed.
func (e *BaseEstimator) IsFitted() bool {
	return e.State == Fitted
}

// SetFitted marks the estimator as fitted.
func (e *BaseEstimator) SetFitted() {
	e.State = Fitted
}

// Reset returns the estimator to NotFitted.
func (e *BaseEstimator) Reset() {
	e.State = NotFitted
}
