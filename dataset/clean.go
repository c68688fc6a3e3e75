package dataset

import (
	"sort"
	"strconv"
	"strings"

	"github.com/nggra/obesity/pkg/errors"
	"github.com/nggra/obesity/pkg/log"
)

// DefaultIQRFactor is the Tukey fence multiplier.
const DefaultIQRFactor = 1.5

// Bounds are the outlier fences computed for one numeric column on the rows
// that reached that column's pass.
type Bounds struct {
	Column  string
	Q1      float64
	Q3      float64
	Lower   float64
	Upper   float64
	RowsIn  int
	Removed int
}

// Contains reports whether v lies inside the fences. NaN never does.
func (b Bounds) Contains(v float64) bool {
	return v >= b.Lower && v <= b.Upper
}

// CleanReport summarises what Clean changed.
type CleanReport struct {
	RowsIn            int
	DuplicatesRemoved int
	// Imputed counts filled cells per categorical column.
	Imputed map[string]int
	// Modes holds the fill value used per categorical column.
	Modes    map[string]string
	Outliers []Bounds
	RowsOut  int
}

// CleanedDataset is the output of Clean. It holds no duplicate record, no
// missing categorical value and no numeric value outside its column's fences.
type CleanedDataset struct {
	Frame
	Report CleanReport
}

type cleanConfig struct {
	iqrFactor float64
	logger    log.Logger
}

// CleanOption configures Clean.
type CleanOption func(*cleanConfig)

// WithIQRFactor overrides the fence multiplier.
func WithIQRFactor(k float64) CleanOption {
	return func(c *cleanConfig) { c.iqrFactor = k }
}

// WithCleanLogger sets the logger used for the cleaning summary.
func WithCleanLogger(l log.Logger) CleanOption {
	return func(c *cleanConfig) { c.logger = l }
}

// Clean returns a cleaned copy of f; f itself is not modified.
//
// Steps, in order:
//  1. every target must be one of Labels, otherwise DataError;
//  2. exact duplicate records are dropped, first occurrence kept;
//  3. missing categorical values are filled with the column mode, where a tie
//     goes to the lexicographically smallest value; a column with no
//     observed value is a DataError;
//  4. for each numeric column in NumericColumns order, rows outside
//     [Q1-k*IQR, Q3+k*IQR] are dropped. Each pass works on the output of the
//     previous one, so the column order changes the result. Rows with a
//     missing value fail the comparison and are dropped too.
func Clean(f *Frame, opts ...CleanOption) (*CleanedDataset, error) {
	cfg := cleanConfig{iqrFactor: DefaultIQRFactor, logger: log.GetLoggerWithName("dataset.clean")}
	for _, opt := range opts {
		opt(&cfg)
	}
	if f == nil || f.Len() == 0 {
		return nil, errors.NewDataError("Clean", "no records to clean", errors.ErrEmptyData)
	}
	if err := checkTargets(f); err != nil {
		return nil, err
	}

	work := f.clone()
	canonicalize(work.Records)
	report := CleanReport{RowsIn: f.Len()}

	work.Records, report.DuplicatesRemoved = dropDuplicates(work.Records)

	var err error
	report.Modes, report.Imputed, err = imputeModes(work.Records)
	if err != nil {
		return nil, err
	}

	for j, col := range NumericColumns {
		var b Bounds
		work.Records, b = filterIQR(work.Records, j, cfg.iqrFactor)
		b.Column = col.Name
		report.Outliers = append(report.Outliers, b)
		if b.Removed > 0 {
			cfg.logger.Debug("outliers removed",
				log.ColumnKey, col.Name,
				log.RowsRemovedKey, b.Removed,
				"lower", b.Lower,
				"upper", b.Upper,
			)
		}
	}
	report.RowsOut = len(work.Records)

	if report.RowsOut == 0 {
		return nil, errors.NewDataError("Clean", "no records left after outlier removal", errors.ErrEmptyData)
	}

	cfg.logger.Info("dataset cleaned",
		log.OperationKey, log.OperationClean,
		log.RowsInKey, report.RowsIn,
		log.RowsOutKey, report.RowsOut,
		"duplicates", report.DuplicatesRemoved,
	)
	return &CleanedDataset{Frame: *work, Report: report}, nil
}

func checkTargets(f *Frame) error {
	var bad []errors.FieldError
	for _, r := range f.Records {
		if _, ok := CanonicalLabel(r.Target); ok {
			continue
		}
		reason := "unknown target label"
		if r.Target == "" {
			reason = "missing target"
		}
		bad = append(bad, errors.FieldError{Field: TargetColumn + "@line" + strconv.Itoa(r.Line), Reason: reason, Value: r.Target})
		if len(bad) == 10 {
			break
		}
	}
	if len(bad) > 0 {
		return errors.NewDataError("Clean", "target column has invalid values", errors.NewMultiValidationError(bad))
	}
	return nil
}

func canonicalize(records []Record) {
	for i := range records {
		r := &records[i]
		for j, col := range CategoricalColumns {
			r.Categorical[j] = col.Canonical(r.Categorical[j])
		}
		r.Target, _ = CanonicalLabel(r.Target)
	}
}

// recordKey identifies a record by content. NaN formats as "NaN", so two
// missing values compare equal as they do in a table-level duplicate check.
func recordKey(r *Record) string {
	var b strings.Builder
	for _, v := range r.Numeric {
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		b.WriteByte(0x1f)
	}
	for _, c := range r.Categorical {
		b.WriteString(c)
		b.WriteByte(0x1f)
	}
	b.WriteString(r.Target)
	return b.String()
}

func dropDuplicates(in []Record) ([]Record, int) {
	seen := make(map[string]struct{}, len(in))
	out := in[:0:0]
	for i := range in {
		k := recordKey(&in[i])
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, in[i])
	}
	return out, len(in) - len(out)
}

func imputeModes(records []Record) (map[string]string, map[string]int, error) {
	modes := make(map[string]string, NumCategorical)
	imputed := make(map[string]int, NumCategorical)
	for j, col := range CategoricalColumns {
		counts := map[string]int{}
		var missing int
		for i := range records {
			if v := records[i].Categorical[j]; v != "" {
				counts[v]++
			} else {
				missing++
			}
		}
		if len(counts) == 0 {
			return nil, nil, errors.NewDataError("Clean", "column "+col.Name+" has no observed values", nil)
		}
		mode := modeOf(counts)
		modes[col.Name] = mode
		if missing == 0 {
			continue
		}
		for i := range records {
			if records[i].Categorical[j] == "" {
				records[i].Categorical[j] = mode
			}
		}
		imputed[col.Name] = missing
	}
	return modes, imputed, nil
}

func modeOf(counts map[string]int) string {
	values := make([]string, 0, len(counts))
	for v := range counts {
		values = append(values, v)
	}
	sort.Strings(values)
	best := values[0]
	for _, v := range values[1:] {
		if counts[v] > counts[best] {
			best = v
		}
	}
	return best
}

func filterIQR(records []Record, j int, k float64) ([]Record, Bounds) {
	col := make([]float64, len(records))
	for i := range records {
		col[i] = records[i].Numeric[j]
	}
	var b Bounds
	b.Q1, b.Q3, b.Lower, b.Upper = IQRBounds(col, k)
	b.RowsIn = len(records)

	out := records[:0:0]
	for i := range records {
		if b.Contains(records[i].Numeric[j]) {
			out = append(out, records[i])
		}
	}
	b.Removed = len(records) - len(out)
	return out, b
}
