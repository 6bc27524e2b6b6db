package regression

import (
	"fmt"
	"math"
)

// Absorber partials one or more high-cardinality categorical fixed effects
// out of a set of column vectors by group demeaning. A single fixed effect
// is absorbed exactly in one pass; multiple fixed effects use alternating
// projections (Guimarães–Portugal style sweeps) until the largest group
// mean removed in a sweep falls below the tolerance.
type Absorber struct {
	groups [][]int // level code per observation, one slice per fixed effect
	levels []int   // level count per fixed effect
	tol    float64
	maxIter int
}

// NewAbsorber creates an absorber for the given fixed-effect code vectors.
// All code vectors must have the same length and dense codes in [0, levels).
func NewAbsorber(groups [][]int, levels []int, tol float64, maxIter int) (*Absorber, error) {
	if len(groups) != len(levels) {
		return nil, fmt.Errorf("absorber: %d group vectors but %d level counts", len(groups), len(levels))
	}
	if len(groups) > 0 {
		n := len(groups[0])
		for i, g := range groups {
			if len(g) != n {
				return nil, fmt.Errorf("absorber: group %d has %d observations, expected %d", i, len(g), n)
			}
		}
	}
	if tol <= 0 {
		tol = 1e-8
	}
	if maxIter <= 0 {
		maxIter = 1000
	}
	return &Absorber{groups: groups, levels: levels, tol: tol, maxIter: maxIter}, nil
}

// DOF returns the degrees of freedom consumed by the absorbed fixed
// effects: the first effect contributes all its levels, each additional
// effect one fewer (one redundancy per extra effect, the usual mobility
// estimate).
func (a *Absorber) DOF() int {
	dof := 0
	for i, levels := range a.levels {
		if i == 0 {
			dof += levels
		} else {
			dof += levels - 1
		}
	}
	return dof
}

// Demean removes the absorbed fixed effects from each column in place and
// returns the number of sweeps used. Columns are processed jointly so the
// sweep count reflects the slowest-converging column.
func (a *Absorber) Demean(cols ...[]float64) (int, error) {
	if len(a.groups) == 0 || len(cols) == 0 {
		return 0, nil
	}

	n := len(a.groups[0])
	for _, col := range cols {
		if len(col) != n {
			return 0, fmt.Errorf("absorber: column has %d observations, expected %d", len(col), n)
		}
	}

	// Scale the convergence test by column magnitude so tolerance is
	// relative, not absolute.
	scale := 0.0
	for _, col := range cols {
		for _, v := range col {
			if av := math.Abs(v); av > scale {
				scale = av
			}
		}
	}
	if scale == 0 {
		return 0, nil
	}
	threshold := a.tol * scale

	sums := make([][]float64, len(a.groups))
	counts := make([][]float64, len(a.groups))
	for i := range a.groups {
		sums[i] = make([]float64, a.levels[i])
		counts[i] = make([]float64, a.levels[i])
		for _, code := range a.groups[i] {
			counts[i][code]++
		}
	}

	for iter := 1; iter <= a.maxIter; iter++ {
		maxShift := 0.0
		for g, codes := range a.groups {
			sum := sums[g]
			for _, col := range cols {
				for i := range sum {
					sum[i] = 0
				}
				for i, code := range codes {
					sum[code] += col[i]
				}
				for i := range sum {
					if counts[g][i] > 0 {
						sum[i] /= counts[g][i]
						if shift := math.Abs(sum[i]); shift > maxShift {
							maxShift = shift
						}
					}
				}
				for i, code := range codes {
					col[i] -= sum[code]
				}
			}
		}

		if len(a.groups) == 1 {
			return 1, nil
		}
		if maxShift < threshold {
			return iter, nil
		}
	}

	return a.maxIter, fmt.Errorf("absorber: demeaning did not converge in %d sweeps", a.maxIter)
}
