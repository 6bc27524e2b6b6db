package exporter

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"delayreg/internal/regression"
)

// VariantSheet pairs an analysis variant with the results shown on its
// worksheet.
type VariantSheet struct {
	Variant string
	Results []*regression.Result
	Options TableOptions
}

// WriteWorkbook writes one Excel workbook with a sheet per analysis
// variant, mirroring the text tables. The workbook is fully rewritten on
// each run.
func WriteWorkbook(path string, sheets []VariantSheet) error {
	if len(sheets) == 0 {
		return fmt.Errorf("no sheets to write")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, sheet := range sheets {
		name := sheet.Variant
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				return fmt.Errorf("rename sheet %s: %w", name, err)
			}
		} else {
			if _, err := f.NewSheet(name); err != nil {
				return fmt.Errorf("create sheet %s: %w", name, err)
			}
		}

		display := sheet.Options.Display
		if len(display) == 0 {
			display = unionRegressors(sheet.Results)
		}
		labels := make([]string, len(sheet.Results))
		for j, r := range sheet.Results {
			labels[j] = r.Label
			if labels[j] == "" {
				labels[j] = r.Spec
			}
			if j < len(sheet.Options.Labels) && sheet.Options.Labels[j] != "" {
				labels[j] = sheet.Options.Labels[j]
			}
		}

		for rowIdx, row := range buildRows(sheet.Results, display, labels) {
			cell, err := excelize.CoordinatesToCellName(1, rowIdx+1)
			if err != nil {
				return err
			}
			values := make([]interface{}, len(row))
			for j, v := range row {
				values[j] = v
			}
			if err := f.SetSheetRow(name, cell, &values); err != nil {
				return fmt.Errorf("write sheet %s row %d: %w", name, rowIdx+1, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}
