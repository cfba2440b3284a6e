package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// ReadCSV loads a table from CSV with a header row. A column whose
// non-empty cells all parse as numbers becomes a number column, any other
// column is a string column. Empty cells become nulls of the column type.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("csv input is empty")
		}
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	raw := make([][]string, len(header))
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv record: %w", err)
		}
		for i, cell := range record {
			raw[i] = append(raw[i], cell)
		}
	}

	t := New()
	for i, name := range header {
		if err := t.Set(name, inferColumn(raw[i])); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func inferColumn(cells []string) []cty.Value {
	numbers := make([]cty.Value, len(cells))
	numeric := true
	for i, c := range cells {
		if c == "" {
			numbers[i] = cty.NullVal(cty.Number)
			continue
		}
		v, err := cty.ParseNumberVal(c)
		if err != nil {
			numeric = false
			break
		}
		numbers[i] = v
	}
	if numeric {
		return numbers
	}

	strs := make([]cty.Value, len(cells))
	for i, c := range cells {
		if c == "" {
			strs[i] = cty.NullVal(cty.String)
			continue
		}
		strs[i] = cty.StringVal(c)
	}
	return strs
}

// WriteCSV writes the table with a header row. Collection values are
// written as JSON.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.names); err != nil {
		return err
	}
	record := make([]string, len(t.names))
	for r := 0; r < t.rows; r++ {
		for i, name := range t.names {
			cell, err := formatCell(t.cols[name][r])
			if err != nil {
				return fmt.Errorf("column %q row %d: %w", name, r, err)
			}
			record[i] = cell
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCell(v cty.Value) (string, error) {
	if v.IsNull() || !v.IsKnown() {
		return "", nil
	}
	switch v.Type() {
	case cty.String:
		return v.AsString(), nil
	case cty.Number:
		f, _ := v.AsBigFloat().Float64()
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	case cty.Bool:
		return strconv.FormatBool(v.True()), nil
	}
	b, err := ctyjson.Marshal(v, v.Type())
	if err != nil {
		return "", err
	}
	return string(b), nil
}
