package preprocessing

import (
	"sort"

	"github.com/nggra/obesity/core/model"
	"github.com/nggra/obesity/pkg/errors"
)

// EncodingMap is the persisted, read-only form of a fitted LabelEncoder.
// Values[i] has code i. Counts[i] is how often Values[i] was seen at fit
// time; a declared value that never occurred has count 0.
type EncodingMap struct {
	Column string   `yaml:"column"`
	Values []string `yaml:"values"`
	Counts []int    `yaml:"counts"`
}

// Code returns the code of v. ok is false when v is not in the map or was
// never observed during training.
func (m EncodingMap) Code(v string) (code int, ok bool) {
	for i, known := range m.Values {
		if known == v {
			return i, i < len(m.Counts) && m.Counts[i] > 0
		}
	}
	return -1, false
}

// Observed returns the values seen during training, in code order.
func (m EncodingMap) Observed() []string {
	var out []string
	for i, v := range m.Values {
		if i < len(m.Counts) && m.Counts[i] > 0 {
			out = append(out, v)
		}
	}
	return out
}

// LabelEncoder maps the distinct values of one column to codes 0..k-1.
//
// Code order: declared categories first, in declared order, then any other
// observed value in sorted order. Without declared categories the order is
// sorted, as scikit-learn's LabelEncoder does.
type LabelEncoder struct {
	model.BaseEstimator

	Column     string
	Categories []string
	Classes    []string
	Counts     []int

	index map[string]int
}

// NewLabelEncoder creates an encoder whose codes follow sorted order.
func NewLabelEncoder(column string) *LabelEncoder {
	return &LabelEncoder{Column: column}
}

// NewLabelEncoderWithCategories pins the leading codes to categories.
func NewLabelEncoderWithCategories(column string, categories []string) *LabelEncoder {
	return &LabelEncoder{Column: column, Categories: append([]string(nil), categories...)}
}

// Fit learns the code table from values. Empty strings are rejected: missing
// values must be imputed beforehand.
func (le *LabelEncoder) Fit(values []string) error {
	if len(values) == 0 {
		return errors.NewModelError("LabelEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	counts := make(map[string]int)
	for _, v := range values {
		if v == "" {
			return errors.NewValueError("LabelEncoder.Fit", "column "+le.Column+" contains a missing value")
		}
		counts[v]++
	}

	le.Classes = le.Classes[:0]
	declared := make(map[string]bool, len(le.Categories))
	for _, c := range le.Categories {
		if declared[c] {
			continue
		}
		declared[c] = true
		le.Classes = append(le.Classes, c)
	}
	var extra []string
	for v := range counts {
		if !declared[v] {
			extra = append(extra, v)
		}
	}
	sort.Strings(extra)
	le.Classes = append(le.Classes, extra...)

	le.Counts = make([]int, len(le.Classes))
	for i, c := range le.Classes {
		le.Counts[i] = counts[c]
	}
	le.buildIndex()
	le.SetFitted()
	return nil
}

func (le *LabelEncoder) buildIndex() {
	le.index = make(map[string]int, len(le.Classes))
	for i, c := range le.Classes {
		le.index[c] = i
	}
}

// Encode returns the code of a single value. An unseen value is a
// ValidationError, never a default code.
func (le *LabelEncoder) Encode(v string) (int, error) {
	if !le.IsFitted() {
		return 0, errors.NewNotFittedError("LabelEncoder", "Encode")
	}
	if le.index == nil {
		le.buildIndex()
	}
	code, ok := le.index[v]
	if !ok {
		return 0, errors.NewValidationError(le.Column, "unknown category", v)
	}
	return code, nil
}

// Transform encodes values.
func (le *LabelEncoder) Transform(values []string) ([]int, error) {
	out := make([]int, len(values))
	for i, v := range values {
		code, err := le.Encode(v)
		if err != nil {
			return nil, err
		}
		out[i] = code
	}
	return out, nil
}

// FitTransform fits on values and encodes them.
func (le *LabelEncoder) FitTransform(values []string) ([]int, error) {
	if err := le.Fit(values); err != nil {
		return nil, err
	}
	return le.Transform(values)
}

// InverseTransform maps codes back to values.
func (le *LabelEncoder) InverseTransform(codes []int) ([]string, error) {
	if !le.IsFitted() {
		return nil, errors.NewNotFittedError("LabelEncoder", "InverseTransform")
	}
	out := make([]string, len(codes))
	for i, c := range codes {
		if c < 0 || c >= len(le.Classes) {
			return nil, errors.NewValidationError(le.Column, "unknown code", c)
		}
		out[i] = le.Classes[c]
	}
	return out, nil
}

// Map exports the fitted code table.
func (le *LabelEncoder) Map() EncodingMap {
	return EncodingMap{
		Column: le.Column,
		Values: append([]string(nil), le.Classes...),
		Counts: append([]int(nil), le.Counts...),
	}
}
