package dataset

import (
	"fmt"
	"log/slog"
	"strings"
)

// RouteColumn is the name of the derived route identifier column.
const RouteColumn = "route"

// FilterOutcome drops rows whose outcome value lies outside [min, max] and
// returns the filtered table. Rows outside the plausible delay range are
// expected upstream noise, not an error, so they are dropped silently.
// Filtering an already-filtered table is a no-op.
func FilterOutcome(t *Table, column string, min, max float64) (*Table, error) {
	outcome, err := t.Numeric(column)
	if err != nil {
		return nil, err
	}

	keep := make([]bool, t.N())
	dropped := 0
	for i, v := range outcome {
		keep[i] = v >= min && v <= max
		if !keep[i] {
			dropped++
		}
	}

	if dropped == 0 {
		return t, nil
	}

	filtered, err := t.Select(keep)
	if err != nil {
		return nil, err
	}

	slog.Info("filtered outcome range",
		slog.String("column", column),
		slog.Float64("min", min),
		slog.Float64("max", max),
		slog.Int("dropped", dropped),
		slog.Int("remaining", filtered.N()))

	return filtered, nil
}

// Rescale divides a numeric column in place by the given divisor. The
// transform is invertible: multiplying back by the divisor recovers the
// original values up to floating-point rounding.
func Rescale(t *Table, column string, divisor float64) error {
	if divisor == 0 {
		return fmt.Errorf("rescale divisor for %s must be non-zero", column)
	}
	values, err := t.Numeric(column)
	if err != nil {
		return err
	}
	for i := range values {
		values[i] /= divisor
	}
	return nil
}

// RescaleAll applies each configured divisor. Columns absent from the table
// are skipped: robustness variants feed narrower input files.
func RescaleAll(t *Table, divisors map[string]float64) error {
	for column, divisor := range divisors {
		if !t.HasNumeric(column) {
			continue
		}
		if err := Rescale(t, column, divisor); err != nil {
			return err
		}
	}
	return nil
}

// EncodeRoutes derives the route identifier column from
// (carrier, origin, destination) and adds it to the table. The same tuple
// always maps to the same code, in first-seen order.
func EncodeRoutes(t *Table) error {
	return CombineLevels(t, RouteColumn, "carrier", "origin_airport_id", "dest_airport_id")
}

// CombineLevels adds a categorical column named name whose levels are the
// composite of the given categorical columns. Composite tuples are interned
// in first-seen order, so the mapping is deterministic for a given row
// order.
func CombineLevels(t *Table, name string, columns ...string) error {
	if len(columns) == 0 {
		return fmt.Errorf("combine levels: no source columns")
	}

	cols := make([]*CatColumn, len(columns))
	for i, colName := range columns {
		col, err := t.Cat(colName)
		if err != nil {
			return err
		}
		cols[i] = col
	}

	in := newInterner()
	codes := make([]int, t.N())
	var key strings.Builder
	for row := 0; row < t.N(); row++ {
		key.Reset()
		for i, col := range cols {
			if i > 0 {
				key.WriteByte('|')
			}
			key.WriteString(col.Labels[col.Codes[row]])
		}
		codes[row] = in.Code(key.String())
	}

	return t.AddCat(name, &CatColumn{Codes: codes, Labels: in.Labels()})
}
