// Package report renders the diagnostics of a training run: a plain-text
// summary and optional PNG charts.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/nggra/obesity/dataset"
	"github.com/nggra/obesity/metrics"
	"github.com/nggra/obesity/model_selection"
	"github.com/nggra/obesity/pkg/errors"
)

// Chart file names written by SaveCharts.
const (
	CVChartFile = "cv_scores.png"
	F1ChartFile = "class_f1.png"
)

// Summary collects what a training run learned.
type Summary struct {
	BundleID     string
	Clean        dataset.CleanReport
	Synthetic    map[int]int
	TrainRows    int
	TestRows     int
	Candidates   []model_selection.CandidateResult
	BestIndex    int
	Test         *metrics.Report
	FeatureNames []string
	Importances  []float64
}

// Best returns the winning candidate.
func (s *Summary) Best() (model_selection.CandidateResult, bool) {
	if s.BestIndex < 0 || s.BestIndex >= len(s.Candidates) {
		return model_selection.CandidateResult{}, false
	}
	return s.Candidates[s.BestIndex], true
}

// WriteText writes the human readable summary.
func (s *Summary) WriteText(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "bundle %s\n\n", s.BundleID)

	b.WriteString("cleaning\n")
	fmt.Fprintf(&b, "  rows in            %d\n", s.Clean.RowsIn)
	fmt.Fprintf(&b, "  duplicates removed %d\n", s.Clean.DuplicatesRemoved)
	for _, name := range sortedKeys(s.Clean.Imputed) {
		fmt.Fprintf(&b, "  imputed %-10s %d (mode %s)\n", name, s.Clean.Imputed[name], s.Clean.Modes[name])
	}
	for _, o := range s.Clean.Outliers {
		fmt.Fprintf(&b, "  %-8s fences [%.4g, %.4g] removed %d of %d\n", o.Column, o.Lower, o.Upper, o.Removed, o.RowsIn)
	}
	fmt.Fprintf(&b, "  rows out           %d\n\n", s.Clean.RowsOut)

	if len(s.Synthetic) > 0 {
		b.WriteString("smote\n")
		classes := make([]int, 0, len(s.Synthetic))
		for c := range s.Synthetic {
			classes = append(classes, c)
		}
		sort.Ints(classes)
		for _, c := range classes {
			fmt.Fprintf(&b, "  %-20s +%d\n", dataset.Label(c), s.Synthetic[c])
		}
		b.WriteByte('\n')
	}

	fmt.Fprintf(&b, "split: %d train, %d test\n\n", s.TrainRows, s.TestRows)

	if best, ok := s.Best(); ok {
		fmt.Fprintf(&b, "grid search: %d candidates\n", len(s.Candidates))
		fmt.Fprintf(&b, "  best params   %s\n", formatParams(best.Params))
		fmt.Fprintf(&b, "  cv accuracy   %.4f (+/- %.4f)\n\n", best.MeanScore, best.StdScore)
	}

	if s.Test != nil {
		fmt.Fprintf(&b, "held-out accuracy %.4f\n\n", s.Test.Accuracy)
		b.WriteString(s.Test.String())
		b.WriteByte('\n')
	}

	if len(s.Importances) > 0 && len(s.Importances) == len(s.FeatureNames) {
		b.WriteString("feature importances\n")
		order := make([]int, len(s.Importances))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, c int) bool { return s.Importances[order[a]] > s.Importances[order[c]] })
		for _, i := range order {
			fmt.Fprintf(&b, "  %-32s %.4f\n", s.FeatureNames[i], s.Importances[i])
		}
	}

	_, err := io.WriteString(w, b.String())
	return errors.WithStack(err)
}

// String returns WriteText output.
func (s *Summary) String() string {
	var b strings.Builder
	_ = s.WriteText(&b)
	return b.String()
}

// SaveText writes the summary to path.
func (s *Summary) SaveText(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	if err := s.WriteText(f); err != nil {
		f.Close()
		return err
	}
	return errors.WithStack(f.Close())
}

// SaveCharts writes the CV score and per-class F1 bar charts into dir and
// returns the written paths.
func (s *Summary) SaveCharts(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create %s", dir)
	}
	var written []string

	if len(s.Candidates) > 0 {
		values := make(plotter.Values, len(s.Candidates))
		names := make([]string, len(s.Candidates))
		for i, c := range s.Candidates {
			values[i] = c.MeanScore
			names[i] = fmt.Sprint(i)
		}
		path := filepath.Join(dir, CVChartFile)
		if err := barChart(path, "Mean CV accuracy per grid point", "grid point", "accuracy", names, values); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	if s.Test != nil {
		values := make(plotter.Values, len(s.Test.PerClass))
		names := make([]string, len(s.Test.PerClass))
		for i, m := range s.Test.PerClass {
			values[i] = m.F1
			names[i] = shortLabel(m.Label)
		}
		path := filepath.Join(dir, F1ChartFile)
		if err := barChart(path, "Held-out F1 per class", "class", "F1", names, values); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func barChart(path, title, xLabel, yLabel string, names []string, values plotter.Values) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Y.Min = 0
	p.Y.Max = 1

	bars, err := plotter.NewBarChart(values, vg.Points(12))
	if err != nil {
		return errors.Wrap(err, "failed to build bar chart")
	}
	p.Add(bars, plotter.NewGrid())
	p.NominalX(names...)

	width := vg.Length(len(values))*vg.Points(18) + 2*vg.Inch
	if width < 6*vg.Inch {
		width = 6 * vg.Inch
	}
	if err := p.Save(width, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "failed to save %s", path)
	}
	return nil
}

// shortLabel abbreviates label table entries for chart axes.
func shortLabel(label string) string {
	r := strings.NewReplacer("Insufficient_", "Insuf_", "Overweight_Level_", "Over_", "Obesity_Type_", "Obese_", "_Weight", "")
	return r.Replace(label)
}

func formatParams(params map[string]interface{}) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		v := params[k]
		if k == "max_depth" && v == 0 {
			v = "None"
		}
		parts[i] = fmt.Sprintf("%s=%v", k, v)
	}
	return strings.Join(parts, " ")
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
