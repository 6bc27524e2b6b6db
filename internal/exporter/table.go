package exporter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"delayreg/internal/regression"
)

// Significance thresholds for star markers.
const (
	starP10 = 0.10
	starP5  = 0.05
	starP1  = 0.01
)

// TableOptions controls table rendering.
type TableOptions struct {
	// Title is printed above the table.
	Title string
	// Display selects and orders the regressors shown; regressors not
	// listed are dropped from the table (the estimates are unaffected).
	// Empty means the union of all model regressors in first-model order.
	Display []string
	// Labels maps column labels per model; defaults to each result's
	// Label or Spec name.
	Labels []string
}

// stars returns the significance marker at conventional thresholds.
func stars(p float64) string {
	switch {
	case p < starP1:
		return "***"
	case p < starP5:
		return "**"
	case p < starP10:
		return "*"
	default:
		return ""
	}
}

// RenderText renders one or more estimation results as an aligned text
// table: per regressor a coefficient row with stars and a standard-error
// row in parentheses, then summary rows for R-squared and sample size, and
// identification diagnostics for any IV column.
func RenderText(results []*regression.Result, opts TableOptions) string {
	display := opts.Display
	if len(display) == 0 {
		display = unionRegressors(results)
	}

	labels := make([]string, len(results))
	for i, r := range results {
		labels[i] = r.Label
		if labels[i] == "" {
			labels[i] = r.Spec
		}
		if i < len(opts.Labels) && opts.Labels[i] != "" {
			labels[i] = opts.Labels[i]
		}
	}

	rows := buildRows(results, display, labels)

	widths := make([]int, len(results)+1)
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	total := 0
	for _, w := range widths {
		total += w + 2
	}
	rule := strings.Repeat("-", total)

	if opts.Title != "" {
		b.WriteString(opts.Title)
		b.WriteByte('\n')
	}
	b.WriteString(rule)
	b.WriteByte('\n')

	writeRow := func(row []string) {
		for i, cell := range row {
			if i == 0 {
				b.WriteString(fmt.Sprintf("%-*s", widths[i]+2, cell))
			} else {
				b.WriteString(fmt.Sprintf("%*s  ", widths[i], cell))
			}
		}
		b.WriteByte('\n')
	}

	writeRow(rows[0])
	b.WriteString(rule)
	b.WriteByte('\n')
	for _, row := range rows[1 : len(rows)-summaryRows(results)] {
		writeRow(row)
	}
	b.WriteString(rule)
	b.WriteByte('\n')
	for _, row := range rows[len(rows)-summaryRows(results):] {
		writeRow(row)
	}
	b.WriteString(rule)
	b.WriteByte('\n')
	b.WriteString("* p<0.10, ** p<0.05, *** p<0.01\n")
	return b.String()
}

// summaryRows counts the trailing summary rows: R-squared and observations
// always, plus three diagnostic rows when any column is IV.
func summaryRows(results []*regression.Result) int {
	rows := 2
	if anyIV(results) {
		rows += 3
	}
	return rows
}

func anyIV(results []*regression.Result) bool {
	for _, r := range results {
		if r.IV != nil {
			return true
		}
	}
	return false
}

// buildRows assembles the raw cell grid: header, coefficient/SE pairs,
// then summary rows.
func buildRows(results []*regression.Result, display, labels []string) [][]string {
	var rows [][]string

	header := make([]string, len(results)+1)
	header[0] = ""
	for i, label := range labels {
		header[i+1] = fmt.Sprintf("(%d) %s", i+1, label)
	}
	rows = append(rows, header)

	for _, name := range display {
		coefRow := make([]string, len(results)+1)
		seRow := make([]string, len(results)+1)
		coefRow[0] = name
		seRow[0] = ""
		for i, r := range results {
			idx := r.Index(name)
			if idx < 0 {
				coefRow[i+1] = ""
				seRow[i+1] = ""
				continue
			}
			coefRow[i+1] = fmt.Sprintf("%.3f%s", r.Coef[idx], stars(r.PValue(idx)))
			seRow[i+1] = fmt.Sprintf("(%.3f)", r.StdErr(idx))
		}
		rows = append(rows, coefRow, seRow)
	}

	r2Row := make([]string, len(results)+1)
	nRow := make([]string, len(results)+1)
	r2Row[0] = "R-squared"
	nRow[0] = "Observations"
	for i, r := range results {
		r2Row[i+1] = fmt.Sprintf("%.3f", r.R2)
		nRow[i+1] = fmt.Sprintf("%d", r.N)
	}
	rows = append(rows, r2Row, nRow)

	if anyIV(results) {
		underRow := make([]string, len(results)+1)
		underPRow := make([]string, len(results)+1)
		weakRow := make([]string, len(results)+1)
		underRow[0] = "Underid. LM"
		underPRow[0] = "Underid. p"
		weakRow[0] = "Weak id. F"
		for i, r := range results {
			if r.IV == nil {
				continue
			}
			underRow[i+1] = fmt.Sprintf("%.2f", r.IV.UnderIDStat)
			underPRow[i+1] = fmt.Sprintf("%.3f", r.IV.UnderIDPValue)
			weakRow[i+1] = fmt.Sprintf("%.2f", r.IV.WeakIDStat)
		}
		rows = append(rows, underRow, underPRow, weakRow)
	}

	return rows
}

// unionRegressors returns the union of regressor names across results, in
// first-seen order.
func unionRegressors(results []*regression.Result) []string {
	var out []string
	seen := make(map[string]bool)
	for _, r := range results {
		for _, name := range r.Names {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out
}

// WriteText renders the table and writes it to path, truncating any
// previous content.
func WriteText(path string, results []*regression.Result, opts TableOptions) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	return os.WriteFile(path, []byte(RenderText(results, opts)), 0644)
}
