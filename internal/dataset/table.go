package dataset

import (
	"fmt"
)

// Table is a column-oriented in-memory dataset. Numeric columns hold
// float64 covariates; categorical columns hold dense integer level codes
// plus the interned label for each code.
type Table struct {
	n       int
	numeric map[string][]float64
	cat     map[string]*CatColumn
	order   []string
}

// CatColumn is a categorical column: one level code per row plus the
// interned label for each code. Codes are dense and assigned in first-seen
// order.
type CatColumn struct {
	Codes  []int
	Labels []string
}

// Levels returns the number of distinct levels in the column.
func (c *CatColumn) Levels() int {
	return len(c.Labels)
}

// NewTable creates an empty table expecting n rows per column.
func NewTable(n int) *Table {
	return &Table{
		n:       n,
		numeric: make(map[string][]float64),
		cat:     make(map[string]*CatColumn),
	}
}

// N returns the number of rows.
func (t *Table) N() int {
	return t.n
}

// Columns returns the column names in insertion order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// HasNumeric reports whether a numeric column exists.
func (t *Table) HasNumeric(name string) bool {
	_, ok := t.numeric[name]
	return ok
}

// HasCat reports whether a categorical column exists.
func (t *Table) HasCat(name string) bool {
	_, ok := t.cat[name]
	return ok
}

// AddNumeric adds a numeric column. The column length must match the table.
func (t *Table) AddNumeric(name string, values []float64) error {
	if len(values) != t.n {
		return fmt.Errorf("column %s has %d rows, table has %d", name, len(values), t.n)
	}
	if t.HasNumeric(name) || t.HasCat(name) {
		return fmt.Errorf("column %s already exists", name)
	}
	t.numeric[name] = values
	t.order = append(t.order, name)
	return nil
}

// AddCat adds a categorical column. The column length must match the table.
func (t *Table) AddCat(name string, col *CatColumn) error {
	if len(col.Codes) != t.n {
		return fmt.Errorf("column %s has %d rows, table has %d", name, len(col.Codes), t.n)
	}
	if t.HasNumeric(name) || t.HasCat(name) {
		return fmt.Errorf("column %s already exists", name)
	}
	t.cat[name] = col
	t.order = append(t.order, name)
	return nil
}

// Numeric returns a numeric column by name.
func (t *Table) Numeric(name string) ([]float64, error) {
	col, ok := t.numeric[name]
	if !ok {
		return nil, fmt.Errorf("numeric column %s not found", name)
	}
	return col, nil
}

// Cat returns a categorical column by name.
func (t *Table) Cat(name string) (*CatColumn, error) {
	col, ok := t.cat[name]
	if !ok {
		return nil, fmt.Errorf("categorical column %s not found", name)
	}
	return col, nil
}

// Select returns a new table containing only the rows where keep is true.
// Categorical level codes are re-interned so codes stay dense and keep their
// first-seen ordering within the surviving rows.
func (t *Table) Select(keep []bool) (*Table, error) {
	if len(keep) != t.n {
		return nil, fmt.Errorf("keep mask has %d rows, table has %d", len(keep), t.n)
	}

	kept := 0
	for _, k := range keep {
		if k {
			kept++
		}
	}

	out := NewTable(kept)
	for _, name := range t.order {
		if values, ok := t.numeric[name]; ok {
			sub := make([]float64, 0, kept)
			for i, k := range keep {
				if k {
					sub = append(sub, values[i])
				}
			}
			if err := out.AddNumeric(name, sub); err != nil {
				return nil, err
			}
			continue
		}

		col := t.cat[name]
		interner := newInterner()
		codes := make([]int, 0, kept)
		for i, k := range keep {
			if k {
				codes = append(codes, interner.Code(col.Labels[col.Codes[i]]))
			}
		}
		if err := out.AddCat(name, &CatColumn{Codes: codes, Labels: interner.Labels()}); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// interner assigns dense codes to labels in first-seen order.
type interner struct {
	codes  map[string]int
	labels []string
}

func newInterner() *interner {
	return &interner{codes: make(map[string]int)}
}

// Code returns the code for a label, assigning the next code on first sight.
func (in *interner) Code(label string) int {
	if code, ok := in.codes[label]; ok {
		return code
	}
	code := len(in.labels)
	in.codes[label] = code
	in.labels = append(in.labels, label)
	return code
}

// Labels returns the interned labels indexed by code.
func (in *interner) Labels() []string {
	return in.labels
}
