package model_selection

import (
	"sort"

	"github.com/nggra/obesity/pkg/errors"
)

// ParamGrid maps a hyperparameter name to the values to try.
type ParamGrid map[string][]interface{}

// Size returns the number of combinations.
func (g ParamGrid) Size() int {
	if len(g) == 0 {
		return 0
	}
	n := 1
	for _, values := range g {
		n *= len(values)
	}
	return n
}

// Keys returns the parameter names in enumeration order.
func (g ParamGrid) Keys() []string {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Points enumerates every combination with the keys sorted by name and the
// last key varying fastest, the order scikit-learn's ParameterGrid uses.
func (g ParamGrid) Points() ([]map[string]interface{}, error) {
	keys := g.Keys()
	if len(keys) == 0 {
		return nil, errors.NewValidationError("param_grid", "must name at least one parameter", len(keys))
	}
	var fields []errors.FieldError
	for _, k := range keys {
		if len(g[k]) == 0 {
			fields = append(fields, errors.FieldError{Field: k, Reason: "needs at least one value", Value: g[k]})
		}
	}
	if err := errors.NewMultiValidationError(fields); err != nil {
		return nil, err
	}

	total := g.Size()
	points := make([]map[string]interface{}, total)
	for i := range points {
		point := make(map[string]interface{}, len(keys))
		rest := i
		for k := len(keys) - 1; k >= 0; k-- {
			values := g[keys[k]]
			point[keys[k]] = values[rest%len(values)]
			rest /= len(values)
		}
		points[i] = point
	}
	return points, nil
}
