// Package config holds the training run settings. Values come from
// Default(), optionally overlaid by a YAML file, then by command-line flags.
package config

import (
	"bytes"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nggra/obesity/model_selection"
	"github.com/nggra/obesity/pkg/errors"
	"github.com/nggra/obesity/pkg/log"
)

// Grid lists the random forest hyperparameters searched during training.
// A max_depth of 0 grows trees until their leaves are pure.
type Grid struct {
	NEstimators     []int  `yaml:"n_estimators"`
	MaxDepth        []int  `yaml:"max_depth"`
	MinSamplesSplit []int  `yaml:"min_samples_split"`
	MinSamplesLeaf  []int  `yaml:"min_samples_leaf"`
	Bootstrap       []bool `yaml:"bootstrap"`
}

// DefaultGrid is the 48-point search grid.
func DefaultGrid() Grid {
	return Grid{
		NEstimators:     []int{100, 200},
		MaxDepth:        []int{10, 20, 0},
		MinSamplesSplit: []int{2, 5},
		MinSamplesLeaf:  []int{1, 2},
		Bootstrap:       []bool{true, false},
	}
}

// QuickGrid is a two-point grid for smoke runs.
func QuickGrid() Grid {
	return Grid{
		NEstimators:     []int{25},
		MaxDepth:        []int{10, 0},
		MinSamplesSplit: []int{2},
		MinSamplesLeaf:  []int{1},
		Bootstrap:       []bool{true},
	}
}

// ParamGrid converts the grid to scikit-learn parameter names.
func (g Grid) ParamGrid() model_selection.ParamGrid {
	pg := model_selection.ParamGrid{}
	add := func(name string, n int, at func(i int) interface{}) {
		values := make([]interface{}, n)
		for i := range values {
			values[i] = at(i)
		}
		pg[name] = values
	}
	add("n_estimators", len(g.NEstimators), func(i int) interface{} { return g.NEstimators[i] })
	add("max_depth", len(g.MaxDepth), func(i int) interface{} { return g.MaxDepth[i] })
	add("min_samples_split", len(g.MinSamplesSplit), func(i int) interface{} { return g.MinSamplesSplit[i] })
	add("min_samples_leaf", len(g.MinSamplesLeaf), func(i int) interface{} { return g.MinSamplesLeaf[i] })
	add("bootstrap", len(g.Bootstrap), func(i int) interface{} { return g.Bootstrap[i] })
	return pg
}

// Log selects the logger level and output format.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is a full training run description.
type Config struct {
	DataPath       string  `yaml:"data_path"`
	OutputDir      string  `yaml:"output_dir"`
	Seed           uint64  `yaml:"seed"`
	TestSize       float64 `yaml:"test_size"`
	CVFolds        int     `yaml:"cv_folds"`
	IQRFactor      float64 `yaml:"iqr_factor"`
	SMOTENeighbors int     `yaml:"smote_k_neighbors"`
	Workers        int     `yaml:"workers"`
	Plots          bool    `yaml:"plots"`
	Grid           Grid    `yaml:"grid"`
	Log            Log     `yaml:"log"`
}

// Default returns the settings used when no file or flag overrides them.
func Default() Config {
	return Config{
		DataPath:       "ObesityDataSet.csv",
		OutputDir:      "artifacts",
		Seed:           42,
		TestSize:       0.2,
		CVFolds:        3,
		IQRFactor:      1.5,
		SMOTENeighbors: 5,
		Grid:           DefaultGrid(),
		Log:            Log{Level: "info", Format: log.FormatPretty},
	}
}

// Load reads a YAML file over Default(). Keys absent from the file keep
// their default; unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "failed to read config file %s", path)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, errors.Wrapf(err, "failed to parse YAML config %s", path)
	}
	return cfg, cfg.Validate()
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var fields []errors.FieldError
	bad := func(name, reason string, value interface{}) {
		fields = append(fields, errors.FieldError{Field: name, Reason: reason, Value: value})
	}
	if c.DataPath == "" {
		bad("data_path", "is required", c.DataPath)
	}
	if c.OutputDir == "" {
		bad("output_dir", "is required", c.OutputDir)
	}
	if c.TestSize <= 0 || c.TestSize >= 1 {
		bad("test_size", "must be in (0, 1)", c.TestSize)
	}
	if c.CVFolds < 2 {
		bad("cv_folds", "must be at least 2", c.CVFolds)
	}
	if c.IQRFactor <= 0 {
		bad("iqr_factor", "must be positive", c.IQRFactor)
	}
	if c.SMOTENeighbors < 1 {
		bad("smote_k_neighbors", "must be at least 1", c.SMOTENeighbors)
	}
	if c.Workers < 0 {
		bad("workers", "must be >= 0", c.Workers)
	}
	checkInts := func(name string, values []int, min int) {
		if len(values) == 0 {
			bad("grid."+name, "needs at least one value", values)
		}
		for _, v := range values {
			if v < min {
				bad("grid."+name, "value below minimum", v)
				return
			}
		}
	}
	checkInts("n_estimators", c.Grid.NEstimators, 1)
	checkInts("max_depth", c.Grid.MaxDepth, 0)
	checkInts("min_samples_split", c.Grid.MinSamplesSplit, 2)
	checkInts("min_samples_leaf", c.Grid.MinSamplesLeaf, 1)
	if len(c.Grid.Bootstrap) == 0 {
		bad("grid.bootstrap", "needs at least one value", c.Grid.Bootstrap)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		bad("log.level", "unknown level", c.Log.Level)
	}
	if c.Log.Format != log.FormatJSON && c.Log.Format != log.FormatPretty {
		bad("log.format", "must be json or pretty", c.Log.Format)
	}
	return errors.NewMultiValidationError(fields)
}
