// Package dataset loads the obesity survey table and cleans it into a
// training-ready set of records.
//
// Column order is part of the model contract: the numeric columns come first
// in the order below, then the categorical columns. The same numeric order is
// the order of the cascading outlier filter.
package dataset

import (
	"math"
	"strings"
)

// NumericColumn is a continuous feature with the input domain accepted at
// inference time.
type NumericColumn struct {
	Name string
	Min  float64
	Max  float64
}

// Contains reports whether v lies inside the declared domain. NaN never does.
func (c NumericColumn) Contains(v float64) bool {
	return v >= c.Min && v <= c.Max
}

// CategoricalColumn is a categorical feature with its declared vocabulary.
// Values are listed in code order.
type CategoricalColumn struct {
	Name   string
	Values []string
}

// Canonical trims raw and, when it matches a declared value ignoring case,
// returns the declared spelling. Other values are returned trimmed.
func (c CategoricalColumn) Canonical(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, v := range c.Values {
		if strings.EqualFold(v, raw) {
			return v
		}
	}
	return raw
}

const (
	NumNumeric     = 8
	NumCategorical = 8
	NumFeatures    = NumNumeric + NumCategorical

	TargetColumn = "NObeyesdad"

	// UnknownLabel is returned for a class index outside the label table.
	UnknownLabel = "Unknown"
)

var (
	yesNo     = []string{"No", "Yes"}
	frequency = []string{"No", "Sometimes", "Frequently", "Always"}
)

// NumericColumns in feature and filter order.
var NumericColumns = [NumNumeric]NumericColumn{
	{Name: "Age", Min: 10, Max: 100},
	{Name: "Height", Min: 1.0, Max: 2.5},
	{Name: "Weight", Min: 20, Max: 200},
	{Name: "FCVC", Min: 1, Max: 3},
	{Name: "NCP", Min: 1, Max: 4},
	{Name: "CH2O", Min: 1, Max: 3},
	{Name: "FAF", Min: 0, Max: 3},
	{Name: "TUE", Min: 0, Max: 3},
}

// CategoricalColumns in feature order.
var CategoricalColumns = [NumCategorical]CategoricalColumn{
	{Name: "Gender", Values: []string{"Female", "Male"}},
	{Name: "family_history_with_overweight", Values: yesNo},
	{Name: "FAVC", Values: yesNo},
	{Name: "CAEC", Values: frequency},
	{Name: "SMOKE", Values: yesNo},
	{Name: "SCC", Values: yesNo},
	{Name: "CALC", Values: frequency},
	{Name: "MTRANS", Values: []string{"Automobile", "Motorbike", "Public_Transportation", "Walking"}},
}

// Labels is the target label table, indexed by class code.
var Labels = []string{
	"Insufficient_Weight",
	"Normal_Weight",
	"Overweight_Level_I",
	"Overweight_Level_II",
	"Obesity_Type_I",
	"Obesity_Type_II",
	"Obesity_Type_III",
}

// Label maps a class index to its label, or UnknownLabel when out of range.
func Label(class int) string {
	if class < 0 || class >= len(Labels) {
		return UnknownLabel
	}
	return Labels[class]
}

// CanonicalLabel matches raw against the label table ignoring case and
// surrounding space.
func CanonicalLabel(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	for _, l := range Labels {
		if strings.EqualFold(l, raw) {
			return l, true
		}
	}
	return raw, false
}

// NumericNames returns the numeric column names in order.
func NumericNames() []string {
	names := make([]string, NumNumeric)
	for i, c := range NumericColumns {
		names[i] = c.Name
	}
	return names
}

// CategoricalNames returns the categorical column names in order.
func CategoricalNames() []string {
	names := make([]string, NumCategorical)
	for i, c := range CategoricalColumns {
		names[i] = c.Name
	}
	return names
}

// FeatureNames returns numeric then categorical column names.
func FeatureNames() []string {
	return append(NumericNames(), CategoricalNames()...)
}

// Record is one survey row. A missing numeric value is NaN and a missing
// categorical value is the empty string.
type Record struct {
	Numeric     [NumNumeric]float64
	Categorical [NumCategorical]string
	Target      string

	// Line is the 1-based line in the source file, 0 when unknown.
	Line int
}

// HasMissingNumeric reports whether any numeric value is NaN.
func (r *Record) HasMissingNumeric() bool {
	for _, v := range r.Numeric {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// Frame is an ordered collection of records as read from the source.
type Frame struct {
	Records []Record
}

// Len returns the number of records.
func (f *Frame) Len() int { return len(f.Records) }

// Column returns a copy of numeric column j.
func (f *Frame) Column(j int) []float64 {
	out := make([]float64, len(f.Records))
	for i := range f.Records {
		out[i] = f.Records[i].Numeric[j]
	}
	return out
}

// CategoricalColumn returns a copy of categorical column j.
func (f *Frame) CategoricalColumn(j int) []string {
	out := make([]string, len(f.Records))
	for i := range f.Records {
		out[i] = f.Records[i].Categorical[j]
	}
	return out
}

// Targets returns a copy of the target column.
func (f *Frame) Targets() []string {
	out := make([]string, len(f.Records))
	for i := range f.Records {
		out[i] = f.Records[i].Target
	}
	return out
}

// clone deep-copies the frame; Record only holds value types.
func (f *Frame) clone() *Frame {
	out := &Frame{Records: make([]Record, len(f.Records))}
	copy(out.Records, f.Records)
	return out
}
