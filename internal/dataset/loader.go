package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	pipeerrors "delayreg/internal/errors"
)

// CategoricalColumns lists the identifier columns that are interned as
// categorical levels rather than parsed as float64. Everything else in the
// input CSV is numeric.
var CategoricalColumns = map[string]bool{
	"carrier":           true,
	"origin_airport_id": true,
	"dest_airport_id":   true,
	"year":              true,
	"month":             true,
	"day_of_week":       true,
	"scheduled_hour":    true,
}

// Load reads the wide flight-level CSV into a Table. A missing file or a
// malformed header/row is fatal: the pipeline must abort before any
// estimation happens.
func Load(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, pipeerrors.Wrap(pipeerrors.ErrInputNotFound, err)
		}
		return nil, pipeerrors.Wrap(pipeerrors.ErrInputMalformed, err)
	}
	defer file.Close()

	table, err := Read(file)
	if err != nil {
		return nil, err
	}

	slog.Info("loaded flight sample",
		slog.String("path", path),
		slog.Int("rows", table.N()),
		slog.Int("columns", len(table.Columns())))

	return table, nil
}

// Read parses CSV flight records from r into a Table.
func Read(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return nil, pipeerrors.Wrap(pipeerrors.ErrInputMalformed, fmt.Errorf("read header: %w", err))
	}
	columns := make([]string, len(header))
	copy(columns, header)

	seen := make(map[string]bool, len(columns))
	for _, name := range columns {
		if name == "" {
			return nil, pipeerrors.Wrap(pipeerrors.ErrInputMalformed, fmt.Errorf("empty column name in header"))
		}
		if seen[name] {
			return nil, pipeerrors.Wrap(pipeerrors.ErrInputMalformed, fmt.Errorf("duplicate column %q in header", name))
		}
		seen[name] = true
	}

	numeric := make(map[string][]float64)
	catCodes := make(map[string][]int)
	interners := make(map[string]*interner)
	for _, name := range columns {
		if CategoricalColumns[name] {
			catCodes[name] = nil
			interners[name] = newInterner()
		} else {
			numeric[name] = nil
		}
	}

	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, pipeerrors.Wrap(pipeerrors.ErrInputMalformed, fmt.Errorf("row %d: %w", rows+2, err))
		}

		for i, name := range columns {
			if CategoricalColumns[name] {
				catCodes[name] = append(catCodes[name], interners[name].Code(record[i]))
				continue
			}
			value, err := strconv.ParseFloat(record[i], 64)
			if err != nil {
				return nil, pipeerrors.Wrap(pipeerrors.ErrInputMalformed,
					fmt.Errorf("row %d column %s: %w", rows+2, name, err))
			}
			numeric[name] = append(numeric[name], value)
		}
		rows++
	}

	table := NewTable(rows)
	for _, name := range columns {
		if CategoricalColumns[name] {
			col := &CatColumn{Codes: catCodes[name], Labels: interners[name].Labels()}
			if err := table.AddCat(name, col); err != nil {
				return nil, err
			}
			continue
		}
		if err := table.AddNumeric(name, numeric[name]); err != nil {
			return nil, err
		}
	}

	return table, nil
}
