package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/nggra/obesity/pkg/errors"
	"github.com/nggra/obesity/pkg/log"
)

// LoadFile opens path and calls Load.
func LoadFile(path string) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewDataError("LoadFile", "cannot open "+path, err)
	}
	defer f.Close()
	return Load(f)
}

// Load reads a comma separated table with a header row. Every schema column
// must be present; extra columns are ignored and order is free.
//
// Numeric cells that do not parse become NaN and are reported through
// errors.Warn. Categorical cells are canonicalised against the declared
// vocabulary. A row with too few cells is a DataError.
func Load(r io.Reader) (*Frame, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, errors.NewDataError("Load", "input is empty", errors.ErrEmptyData)
		}
		return nil, errors.NewDataError("Load", "cannot read header", err)
	}
	idx, err := indexHeader(header)
	if err != nil {
		return nil, err
	}

	frame := &Frame{}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewDataError("Load", "malformed row", err)
		}
		line, _ := reader.FieldPos(0)
		if isBlank(row) {
			continue
		}
		if len(row) < idx.width {
			return nil, errors.NewDataError("Load", fmt.Sprintf("line %d has %d cells, want at least %d", line, len(row), idx.width), nil)
		}
		frame.Records = append(frame.Records, parseRow(row, idx, line))
	}

	log.GetLoggerWithName("dataset.loader").Info("dataset loaded",
		log.SamplesKey, frame.Len(),
		log.FeaturesKey, NumFeatures,
	)
	return frame, nil
}

type headerIndex struct {
	numeric     [NumNumeric]int
	categorical [NumCategorical]int
	target      int
	width       int
}

func indexHeader(header []string) (headerIndex, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}

	var idx headerIndex
	var missing []errors.FieldError
	lookup := func(name string) int {
		i, ok := pos[name]
		if !ok {
			missing = append(missing, errors.FieldError{Field: name, Reason: "missing column"})
			return -1
		}
		if i+1 > idx.width {
			idx.width = i + 1
		}
		return i
	}
	for j, c := range NumericColumns {
		idx.numeric[j] = lookup(c.Name)
	}
	for j, c := range CategoricalColumns {
		idx.categorical[j] = lookup(c.Name)
	}
	idx.target = lookup(TargetColumn)

	if len(missing) > 0 {
		return idx, errors.NewDataError("Load", "header is missing required columns", errors.NewMultiValidationError(missing))
	}
	return idx, nil
}

func parseRow(row []string, idx headerIndex, line int) Record {
	rec := Record{Line: line}
	for j, c := range NumericColumns {
		rec.Numeric[j] = parseNumeric(c.Name, row[idx.numeric[j]], line)
	}
	for j, c := range CategoricalColumns {
		rec.Categorical[j] = c.Canonical(row[idx.categorical[j]])
	}
	rec.Target, _ = CanonicalLabel(row[idx.target])
	return rec
}

// parseNumeric mirrors a coercing numeric parse: anything unparsable,
// including an empty cell, is missing.
func parseNumeric(column, raw string, line int) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(v, 0) {
		errors.Warn(errors.NewDataConversionWarning(column, line, raw))
		return math.NaN()
	}
	return v
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
