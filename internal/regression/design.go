package regression

import (
	"strings"

	"delayreg/internal/dataset"
	pipeerrors "delayreg/internal/errors"
	"delayreg/internal/model"
)

// Design holds the working copies of everything one estimation needs:
// outcome, regressor columns, absorbed fixed-effect codes and the cluster
// key. All column data is copied out of the table, so estimations of
// different specifications can run in parallel over one shared table.
type Design struct {
	Spec *model.Spec
	N    int

	Y []float64

	EndogNames []string
	Endog      [][]float64

	ExogNames []string
	Exog      [][]float64

	InstrNames []string
	Instr      [][]float64

	FEGroups [][]int
	FELevels []int

	Cluster      []int
	ClusterCount int
}

// NewDesign assembles a Design from a table and a specification. A
// specification referencing a column absent from the dataset is rejected
// with the offending column named.
func NewDesign(t *dataset.Table, spec *model.Spec) (*Design, error) {
	d := &Design{Spec: spec, N: t.N()}

	var err error
	if d.Y, err = numericCopy(t, spec, spec.Outcome); err != nil {
		return nil, err
	}

	d.EndogNames = spec.Endog
	if d.Endog, err = numericCopies(t, spec, spec.Endog); err != nil {
		return nil, err
	}

	d.ExogNames = spec.Exogenous()
	if d.Exog, err = numericCopies(t, spec, d.ExogNames); err != nil {
		return nil, err
	}

	d.InstrNames = spec.Instruments
	if d.Instr, err = numericCopies(t, spec, spec.Instruments); err != nil {
		return nil, err
	}

	for _, fe := range spec.FixedEffects {
		codes, levels, err := combineCodes(t, spec, fe)
		if err != nil {
			return nil, err
		}
		d.FEGroups = append(d.FEGroups, codes)
		d.FELevels = append(d.FELevels, levels)
	}

	if len(spec.Cluster) > 0 {
		d.Cluster, d.ClusterCount, err = combineCodes(t, spec, spec.Cluster)
		if err != nil {
			return nil, err
		}
	}

	return d, nil
}

// RegressorNames returns endogenous then exogenous names, matching the
// coefficient order of both estimators.
func (d *Design) RegressorNames() []string {
	out := make([]string, 0, len(d.EndogNames)+len(d.ExogNames))
	out = append(out, d.EndogNames...)
	out = append(out, d.ExogNames...)
	return out
}

func numericCopy(t *dataset.Table, spec *model.Spec, name string) ([]float64, error) {
	col, err := t.Numeric(name)
	if err != nil {
		return nil, pipeerrors.SpecError(pipeerrors.ErrUnknownColumn, spec.Name, err)
	}
	out := make([]float64, len(col))
	copy(out, col)
	return out, nil
}

func numericCopies(t *dataset.Table, spec *model.Spec, names []string) ([][]float64, error) {
	out := make([][]float64, 0, len(names))
	for _, name := range names {
		col, err := numericCopy(t, spec, name)
		if err != nil {
			return nil, err
		}
		out = append(out, col)
	}
	return out, nil
}

// combineCodes interns the interaction of categorical columns into dense
// codes in first-seen order, without mutating the table.
func combineCodes(t *dataset.Table, spec *model.Spec, columns []string) ([]int, int, error) {
	cols := make([]*dataset.CatColumn, len(columns))
	for i, name := range columns {
		col, err := t.Cat(name)
		if err != nil {
			return nil, 0, pipeerrors.SpecError(pipeerrors.ErrUnknownColumn, spec.Name, err)
		}
		cols[i] = col
	}

	codes := make([]int, t.N())
	lookup := make(map[string]int)
	var key strings.Builder
	for row := 0; row < t.N(); row++ {
		key.Reset()
		for i, col := range cols {
			if i > 0 {
				key.WriteByte('|')
			}
			key.WriteString(col.Labels[col.Codes[row]])
		}
		code, ok := lookup[key.String()]
		if !ok {
			code = len(lookup)
			lookup[key.String()] = code
		}
		codes[row] = code
	}
	return codes, len(lookup), nil
}
