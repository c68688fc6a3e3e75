// Package inference turns one raw record into a predicted label using a
// persisted artifact bundle. A Predictor never refits anything: every
// transformation is read back from the bundle.
package inference

import (
	"fmt"
	"math"

	"github.com/nggra/obesity/dataset"
	"github.com/nggra/obesity/ensemble"
	"github.com/nggra/obesity/pipeline"
	"github.com/nggra/obesity/pkg/errors"
	"github.com/nggra/obesity/pkg/log"
	"github.com/nggra/obesity/preprocessing"
)

// Prediction is the detailed result of one inference call.
type Prediction struct {
	ClassIndex    int
	Label         string
	Confidence    float64
	Probabilities map[string]float64
}

// Predictor is immutable after construction and safe for concurrent use.
type Predictor struct {
	contract *pipeline.Contract
	scaler   *preprocessing.StandardScaler
	forest   *ensemble.RandomForestClassifier
	logger   log.Logger
}

// Load reads the bundle in dir. Any missing, unreadable or mismatched
// artifact is a StartupError and no Predictor is returned.
func Load(dir string, opts ...Option) (*Predictor, error) {
	b, err := pipeline.Load(dir)
	if err != nil {
		return nil, err
	}
	return NewPredictor(b, opts...)
}

// Option configures a Predictor.
type Option func(*Predictor)

// WithLogger sets the logger used for range warnings and prediction traces.
func WithLogger(l log.Logger) Option {
	return func(p *Predictor) {
		p.logger = l
	}
}

// NewPredictor builds a Predictor from an already loaded bundle.
func NewPredictor(b *pipeline.Bundle, opts ...Option) (*Predictor, error) {
	if b == nil {
		return nil, errors.NewStartupError("inference.NewPredictor", "nil bundle", nil)
	}
	if err := b.Check(); err != nil {
		return nil, err
	}
	p := &Predictor{
		contract: b.Contract,
		scaler:   b.Scaler,
		forest:   b.Model,
		logger:   log.GetLoggerWithName("inference.predictor"),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(log.BundleIDKey, b.Contract.BundleID, log.PhaseKey, log.PhaseInference)
	return p, nil
}

// Contract returns the feature contract of the loaded bundle.
func (p *Predictor) Contract() *pipeline.Contract {
	return p.contract
}

// BundleID identifies the loaded artifacts.
func (p *Predictor) BundleID() string {
	return p.contract.BundleID
}

// Validate checks rec against the contract and reports every offending
// field in one ValidationError. Categorical values are compared after
// canonicalisation.
func (p *Predictor) Validate(rec dataset.Record) error {
	_, err := p.features(rec)
	return err
}

// Features returns the model input for rec: scaled numerics followed by
// categorical codes.
func (p *Predictor) Features(rec dataset.Record) ([]float64, error) {
	return p.features(rec)
}

func (p *Predictor) features(rec dataset.Record) ([]float64, error) {
	var fields []errors.FieldError
	numeric := make([]float64, len(p.contract.Numeric))
	for j, col := range p.contract.Numeric {
		v := rec.Numeric[j]
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			fields = append(fields, errors.FieldError{Field: col.Name, Reason: "is missing or not a finite number", Value: v})
		case v < col.Min || v > col.Max:
			fields = append(fields, errors.FieldError{Field: col.Name,
				Reason: fmt.Sprintf("must be within [%g, %g]", col.Min, col.Max), Value: v})
		default:
			if v < col.TrainMin || v > col.TrainMax {
				p.logger.Warn("value outside the training range",
					log.ColumnKey, col.Name,
					"value", v,
					"train_min", col.TrainMin,
					"train_max", col.TrainMax,
				)
			}
		}
		numeric[j] = v
	}

	codes := make([]float64, len(p.contract.Categorical))
	for j, m := range p.contract.Categorical {
		raw := dataset.CategoricalColumns[j].Canonical(rec.Categorical[j])
		if raw == "" {
			fields = append(fields, errors.FieldError{Field: m.Column, Reason: "is missing", Value: raw})
			continue
		}
		code, ok := m.Code(raw)
		if !ok {
			fields = append(fields, errors.FieldError{Field: m.Column,
				Reason: fmt.Sprintf("unknown category, expected one of %v", m.Observed()), Value: raw})
			continue
		}
		codes[j] = float64(code)
	}
	if err := errors.NewMultiValidationError(fields); err != nil {
		return nil, err
	}

	scaled, err := p.scaler.TransformRow(numeric)
	if err != nil {
		return nil, err
	}
	return append(scaled, codes...), nil
}

// Predict returns the label for rec.
func (p *Predictor) Predict(rec dataset.Record) (string, error) {
	pred, err := p.PredictDetailed(rec)
	if err != nil {
		return "", err
	}
	return pred.Label, nil
}

// PredictDetailed returns the label with the class probabilities. A class
// index outside the label table maps to dataset.UnknownLabel.
func (p *Predictor) PredictDetailed(rec dataset.Record) (*Prediction, error) {
	x, err := p.features(rec)
	if err != nil {
		var ve *errors.ValidationError
		if errors.As(err, &ve) {
			p.logger.Debug("record rejected", log.OperationKey, log.OperationPredict, log.ErrorFieldKey, ve.FieldNames())
		} else {
			p.logger.Debug("record rejected", err, log.OperationKey, log.OperationPredict)
		}
		return nil, err
	}
	proba, err := p.forest.PredictProbaRow(x)
	if err != nil {
		return nil, err
	}
	classes := p.forest.Classes()
	best := ensemble.Argmax(proba)
	class := classes[best]

	out := &Prediction{
		ClassIndex:    class,
		Label:         p.label(class),
		Confidence:    proba[best],
		Probabilities: make(map[string]float64, len(classes)),
	}
	for i, c := range classes {
		out.Probabilities[p.label(c)] += proba[i]
	}
	p.logger.Debug("prediction",
		log.OperationKey, log.OperationPredict,
		log.ClassIndexKey, out.ClassIndex,
		log.PredictionKey, out.Label,
		log.ConfidenceKey, out.Confidence,
	)
	return out, nil
}

func (p *Predictor) label(class int) string {
	if class < 0 || class >= len(p.contract.Labels) {
		return dataset.UnknownLabel
	}
	return p.contract.Labels[class]
}
