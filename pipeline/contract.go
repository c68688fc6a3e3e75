package pipeline

import (
	"io"
	"math"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nggra/obesity/dataset"
	"github.com/nggra/obesity/pkg/errors"
	"github.com/nggra/obesity/preprocessing"
)

// NumericSpec documents one numeric feature: the domain accepted at
// inference and the range actually seen in the cleaned training data.
type NumericSpec struct {
	Name     string  `yaml:"name"`
	Min      float64 `yaml:"min"`
	Max      float64 `yaml:"max"`
	TrainMin float64 `yaml:"train_min"`
	TrainMax float64 `yaml:"train_max"`
}

// Contract is the feature contract between training and inference. It is
// written as contract.yaml next to the scaler and model blobs and shares
// their bundle ID.
type Contract struct {
	BundleID     string                      `yaml:"bundle_id"`
	CreatedAt    time.Time                   `yaml:"created_at"`
	Numeric      []NumericSpec               `yaml:"numeric"`
	Categorical  []preprocessing.EncodingMap `yaml:"categorical"`
	Labels       []string                    `yaml:"labels"`
	BestParams   map[string]interface{}      `yaml:"best_params,omitempty"`
	CVScore      float64                     `yaml:"cv_score"`
	TestAccuracy float64                     `yaml:"test_accuracy"`
}

// NewContract describes the cleaned training data and the fitted encoders.
func NewContract(bundleID string, cleaned *dataset.CleanedDataset, maps []preprocessing.EncodingMap) *Contract {
	c := &Contract{
		BundleID:    bundleID,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
		Numeric:     make([]NumericSpec, dataset.NumNumeric),
		Categorical: append([]preprocessing.EncodingMap(nil), maps...),
		Labels:      append([]string(nil), dataset.Labels...),
	}
	for j, col := range dataset.NumericColumns {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, v := range cleaned.Column(j) {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		c.Numeric[j] = NumericSpec{Name: col.Name, Min: col.Min, Max: col.Max, TrainMin: lo, TrainMax: hi}
	}
	return c
}

// FeatureNames returns numeric then categorical column names.
func (c *Contract) FeatureNames() []string {
	names := make([]string, 0, len(c.Numeric)+len(c.Categorical))
	for _, n := range c.Numeric {
		names = append(names, n.Name)
	}
	for _, m := range c.Categorical {
		names = append(names, m.Column)
	}
	return names
}

// Check verifies that the contract describes the schema compiled into this
// binary: same columns, same order, one encoding map per categorical column.
func (c *Contract) Check() error {
	var fields []errors.FieldError
	if c.BundleID == "" {
		fields = append(fields, errors.FieldError{Field: "bundle_id", Reason: "is empty", Value: c.BundleID})
	}
	if len(c.Numeric) != dataset.NumNumeric {
		fields = append(fields, errors.FieldError{Field: "numeric", Reason: "wrong column count", Value: len(c.Numeric)})
	}
	if len(c.Categorical) != dataset.NumCategorical {
		fields = append(fields, errors.FieldError{Field: "categorical", Reason: "wrong column count", Value: len(c.Categorical)})
	}
	if len(fields) == 0 {
		for j, name := range dataset.FeatureNames() {
			if got := c.FeatureNames()[j]; got != name {
				fields = append(fields, errors.FieldError{Field: name, Reason: "column out of order", Value: got})
			}
		}
	}
	if len(c.Labels) == 0 {
		fields = append(fields, errors.FieldError{Field: "labels", Reason: "is empty", Value: len(c.Labels)})
	}
	return errors.NewMultiValidationError(fields)
}

// WriteYAML encodes the contract.
func (c *Contract) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return errors.Wrap(err, "failed to encode contract")
	}
	return errors.WithStack(enc.Close())
}

// ReadContract decodes a contract written by WriteYAML.
func ReadContract(r io.Reader) (*Contract, error) {
	var c Contract
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, errors.Wrap(err, "failed to decode contract")
	}
	return &c, nil
}
