// Package testdata generates small synthetic survey tables for tests. Weight
// tracks the class closely enough for a forest to separate the classes; the
// other columns are noise drawn inside their declared domains.
package testdata

import (
	"encoding/csv"
	"io"
	"math/rand/v2"
	"strconv"

	"github.com/nggra/obesity/config"
	"github.com/nggra/obesity/dataset"
)

// DefaultCounts is a mildly imbalanced class distribution.
var DefaultCounts = []int{14, 18, 12, 10, 16, 9, 11}

// Frame returns a frame with counts[c] records of class c. Categorical
// values cycle through each column's vocabulary so every declared value is
// observed when a class has at least four rows.
func Frame(seed uint64, counts ...int) *dataset.Frame {
	if len(counts) == 0 {
		counts = DefaultCounts
	}
	rng := rand.New(rand.NewPCG(seed, seed))
	uniform := func(lo, hi float64) float64 { return lo + rng.Float64()*(hi-lo) }

	f := &dataset.Frame{}
	row := 0
	for class, n := range counts {
		for i := 0; i < n; i++ {
			var rec dataset.Record
			rec.Numeric = [dataset.NumNumeric]float64{
				uniform(18, 60),
				uniform(1.55, 1.85),
				uniform(45+18*float64(class), 58+18*float64(class)),
				uniform(1, 3),
				uniform(1, 4),
				uniform(1, 3),
				uniform(0, 3),
				uniform(0, 2),
			}
			for j, col := range dataset.CategoricalColumns {
				rec.Categorical[j] = col.Values[(row+j)%len(col.Values)]
			}
			rec.Target = dataset.Labels[class]
			rec.Line = row + 2
			f.Records = append(f.Records, rec)
			row++
		}
	}
	return f
}

// Header is the CSV header in schema order followed by the target.
func Header() []string {
	return append(dataset.FeatureNames(), dataset.TargetColumn)
}

// WriteCSV writes f in the layout dataset.Load reads.
func WriteCSV(w io.Writer, f *dataset.Frame) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return err
	}
	for _, r := range f.Records {
		row := make([]string, 0, dataset.NumFeatures+1)
		for _, v := range r.Numeric {
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		row = append(row, r.Categorical[:]...)
		row = append(row, r.Target)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Record returns a typical in-domain record of the given class.
func Record(class int) dataset.Record {
	return dataset.Record{
		Numeric:     [dataset.NumNumeric]float64{30, 1.70, 51 + 18*float64(class), 2, 3, 2, 1, 1},
		Categorical: [dataset.NumCategorical]string{"Male", "Yes", "No", "Sometimes", "No", "No", "No", "Public_Transportation"},
	}
}

// QuickConfig is a fast training configuration writing into dir.
func QuickConfig(dir string) config.Config {
	cfg := config.Default()
	cfg.OutputDir = dir
	cfg.Grid = config.QuickGrid()
	cfg.Workers = 2
	return cfg
}
