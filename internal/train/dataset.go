package train

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"

	"housecast/internal/features"
)

// Dataset is the parsed housing CSV: one raw feature row per sample
// plus the median house value target.
type Dataset struct {
	Rows    [][]float64
	Targets []float64
	Dropped int
}

// Len returns the number of usable samples.
func (d *Dataset) Len() int { return len(d.Rows) }

// LoadCSV reads a housing dataset with a header row of the eight raw
// feature columns followed by the target column. Rows with the wrong
// column count or non-numeric values are dropped, not fatal.
func LoadCSV(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read dataset header: %w", err)
	}
	if len(header) != features.RawCount+1 {
		return nil, fmt.Errorf("dataset header has %d columns, want %d", len(header), features.RawCount+1)
	}

	ds := &Dataset{}
	line := 1
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			ds.Dropped++
			continue
		}

		row, target, ok := parseRow(record)
		if !ok {
			ds.Dropped++
			continue
		}
		ds.Rows = append(ds.Rows, row)
		ds.Targets = append(ds.Targets, target)
	}

	if ds.Dropped > 0 {
		log.Warn().Int("dropped", ds.Dropped).Str("path", path).Msg("Dropped malformed dataset rows")
	}
	if len(ds.Rows) == 0 {
		return nil, fmt.Errorf("dataset %s has no usable rows", path)
	}
	return ds, nil
}

func parseRow(record []string) ([]float64, float64, bool) {
	if len(record) != features.RawCount+1 {
		return nil, 0, false
	}

	vals := make([]float64, len(record))
	for i, field := range record {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, 0, false
		}
		vals[i] = v
	}
	return vals[:features.RawCount], vals[features.RawCount], true
}

// Engineer maps every raw row through the derived-ratio pipeline,
// producing the eleven-column matrix the scaler and models consume.
func (d *Dataset) Engineer() ([][]float64, error) {
	out := make([][]float64, len(d.Rows))
	for i, row := range d.Rows {
		raw, err := features.FromVector(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = raw.Vector()
	}
	return out, nil
}
