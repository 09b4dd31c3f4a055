package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// Raw holds a tick CSV as parsed columns. Numeric columns are float64;
// columns with any non-numeric value (such as side) are kept as strings.
type Raw struct {
	Names   []string
	Floats  map[string][]float64
	Strings map[string][]string
	N       int
}

// LoadCSV reads a raw tick file. The first row is the header; column types
// are inferred from the values.
func LoadCSV(path string) (*Raw, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("dataset: read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("dataset: %s is empty", path)
	}

	header := records[0]
	rows := records[1:]

	raw := &Raw{
		Names:   append([]string(nil), header...),
		Floats:  make(map[string][]float64),
		Strings: make(map[string][]string),
		N:       len(rows),
	}

	for j, name := range header {
		vals := make([]string, len(rows))
		for i, rec := range rows {
			if j < len(rec) {
				vals[i] = rec[j]
			}
		}

		floats := make([]float64, len(vals))
		numeric := true
		for i, s := range vals {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				numeric = false
				break
			}
			floats[i] = v
		}

		if numeric && len(vals) > 0 {
			raw.Floats[name] = floats
		} else {
			raw.Strings[name] = vals
		}
	}

	return raw, nil
}

// HasFloat reports whether a numeric column exists.
func (r *Raw) HasFloat(name string) bool {
	_, ok := r.Floats[name]
	return ok
}

// HasString reports whether a string column exists.
func (r *Raw) HasString(name string) bool {
	_, ok := r.Strings[name]
	return ok
}
