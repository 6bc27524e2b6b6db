package exporter

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"delayreg/internal/regression"
)

// covIndexHeader is the header of the leading name column in covariance
// files.
const covIndexHeader = "variable"

// SaveCoefficients writes a coefficient vector as a single-row CSV whose
// header is the variable names.
func SaveCoefficients(w *CSVWriter, path string, result *regression.Result) error {
	record := make([]string, len(result.Coef))
	for i, v := range result.Coef {
		record[i] = strconv.FormatFloat(v, 'g', 17, 64)
	}
	return w.WriteCSV(path, WriteOptions{
		Headers: result.Names,
		Records: [][]string{record},
	})
}

// SaveCovariance writes a covariance matrix as a square CSV with a leading
// variable-name column.
func SaveCovariance(w *CSVWriter, path string, result *regression.Result) error {
	k := len(result.Names)
	headers := append([]string{covIndexHeader}, result.Names...)
	records := make([][]string, k)
	for i := 0; i < k; i++ {
		row := make([]string, k+1)
		row[0] = result.Names[i]
		for j := 0; j < k; j++ {
			row[j+1] = strconv.FormatFloat(result.Cov.At(i, j), 'g', 17, 64)
		}
		records[i] = row
	}
	return w.WriteCSV(path, WriteOptions{Headers: headers, Records: records})
}

// LoadCoefficients reads selected coefficients back from a coefficient
// file, in the order requested.
func LoadCoefficients(path string, names []string) ([]float64, error) {
	header, rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: no coefficient row", path)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}

	out := make([]float64, len(names))
	for i, name := range names {
		col, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("%s: missing coefficient column %q", path, name)
		}
		v, err := strconv.ParseFloat(rows[0][col], 64)
		if err != nil {
			return nil, fmt.Errorf("%s: coefficient %s: %w", path, name, err)
		}
		out[i] = v
	}
	return out, nil
}

// LoadCovariance reads the covariance submatrix for the requested names
// back from a covariance file, in the order requested.
func LoadCovariance(path string, names []string) (*mat.SymDense, error) {
	header, rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	if len(header) == 0 || header[0] != covIndexHeader {
		return nil, fmt.Errorf("%s: expected leading %q column", path, covIndexHeader)
	}

	colIndex := make(map[string]int)
	for i, name := range header[1:] {
		colIndex[name] = i + 1
	}
	rowIndex := make(map[string]int)
	for i, row := range rows {
		if len(row) != len(header) {
			return nil, fmt.Errorf("%s: row %d has %d fields, expected %d", path, i+2, len(row), len(header))
		}
		rowIndex[row[0]] = i
	}

	k := len(names)
	out := mat.NewSymDense(k, nil)
	for i, rowName := range names {
		ri, ok := rowIndex[rowName]
		if !ok {
			return nil, fmt.Errorf("%s: missing covariance row %q", path, rowName)
		}
		for j := i; j < k; j++ {
			ci, ok := colIndex[names[j]]
			if !ok {
				return nil, fmt.Errorf("%s: missing covariance column %q", path, names[j])
			}
			v, err := strconv.ParseFloat(rows[ri][ci], 64)
			if err != nil {
				return nil, fmt.Errorf("%s: covariance (%s, %s): %w", path, rowName, names[j], err)
			}
			out.SetSym(i, j, v)
		}
	}
	return out, nil
}

// readCSV reads a whole CSV file into header and rows.
func readCSV(path string) ([]string, [][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	all, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("%s: empty file", path)
	}
	return all[0], all[1:], nil
}
