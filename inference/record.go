package inference

import (
	"math"
	"strconv"
	"strings"

	"github.com/nggra/obesity/dataset"
	"github.com/nggra/obesity/pkg/errors"
)

// ParseRecord builds a record from column name to raw value pairs. Keys
// match column names ignoring case. Every missing or malformed field is
// reported in one ValidationError; a field that is absent is left missing
// rather than defaulted.
func ParseRecord(values map[string]string) (dataset.Record, error) {
	lookup := make(map[string]string, len(values))
	for k, v := range values {
		lookup[strings.ToLower(strings.TrimSpace(k))] = v
	}

	var rec dataset.Record
	var fields []errors.FieldError
	for j, col := range dataset.NumericColumns {
		rec.Numeric[j] = math.NaN()
		raw, ok := lookup[strings.ToLower(col.Name)]
		if !ok || strings.TrimSpace(raw) == "" {
			fields = append(fields, errors.FieldError{Field: col.Name, Reason: "is missing", Value: raw})
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			fields = append(fields, errors.FieldError{Field: col.Name, Reason: "is not a number", Value: raw})
			continue
		}
		rec.Numeric[j] = v
	}
	for j, col := range dataset.CategoricalColumns {
		raw, ok := lookup[strings.ToLower(col.Name)]
		if !ok || strings.TrimSpace(raw) == "" {
			fields = append(fields, errors.FieldError{Field: col.Name, Reason: "is missing", Value: raw})
			continue
		}
		rec.Categorical[j] = col.Canonical(raw)
	}
	return rec, errors.NewMultiValidationError(fields)
}
