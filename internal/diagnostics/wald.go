package diagnostics

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	pipeerrors "delayreg/internal/errors"
	"delayreg/internal/regression"
)

// Constraint is one linear equality restriction on coefficients, written as
// Terms · beta = Value.
type Constraint struct {
	Raw   string
	Terms map[string]float64
	Value float64
}

// ParseConstraint parses a restriction string of the form
//
//	"a = b"        (coefficient equality)
//	"a = 0.5"      (coefficient against a constant)
//	"a + b = c"    (sums of coefficients on either side)
//
// Variables on the right-hand side are moved to the left with negated sign;
// constants are collected on the right.
func ParseConstraint(raw string) (*Constraint, error) {
	sides := strings.Split(raw, "=")
	if len(sides) != 2 {
		return nil, fmt.Errorf("constraint %q: expected exactly one '='", raw)
	}

	c := &Constraint{Raw: raw, Terms: make(map[string]float64)}
	if err := c.accumulate(sides[0], 1); err != nil {
		return nil, err
	}
	if err := c.accumulate(sides[1], -1); err != nil {
		return nil, err
	}
	if len(c.Terms) == 0 {
		return nil, fmt.Errorf("constraint %q: no coefficients referenced", raw)
	}
	return c, nil
}

// accumulate parses one side of a constraint, adding variable terms with
// the given sign and folding constants into Value with the opposite sign.
func (c *Constraint) accumulate(side string, sign float64) error {
	side = strings.TrimSpace(side)
	if side == "" {
		return fmt.Errorf("constraint %q: empty side", c.Raw)
	}

	termSign := sign
	for _, field := range strings.FieldsFunc(side, func(r rune) bool { return r == ' ' }) {
		switch field {
		case "+":
			termSign = sign
			continue
		case "-":
			termSign = -sign
			continue
		}

		token := field
		for strings.HasPrefix(token, "-") {
			termSign = -termSign
			token = token[1:]
		}
		token = strings.TrimPrefix(token, "+")
		if token == "" {
			continue
		}

		if value, err := strconv.ParseFloat(token, 64); err == nil {
			c.Value -= termSign * value
		} else {
			c.Terms[token] += termSign
		}
		termSign = sign
	}
	return nil
}

// WaldResult holds a joint linear-restriction test.
type WaldResult struct {
	Constraints []string
	Stat        float64 // chi-squared form
	Dof         int
	PValue      float64 // chi-squared p-value
	FStat       float64
	FDofDenom   int
	FPValue     float64
}

// Wald computes the joint test of the given restriction strings against an
// estimation result. A constraint referencing a regressor that is not in
// the model (dropped or absorbed) is an error naming the constraint, never
// a silent skip.
func Wald(result *regression.Result, constraints []string) (*WaldResult, error) {
	if len(constraints) == 0 {
		return nil, fmt.Errorf("no constraints given")
	}

	parsed := make([]*Constraint, 0, len(constraints))
	for _, raw := range constraints {
		c, err := ParseConstraint(raw)
		if err != nil {
			return nil, err
		}
		for name := range c.Terms {
			if result.Index(name) < 0 {
				return nil, pipeerrors.SpecError(pipeerrors.ErrConstraintUnmatched, result.Spec,
					fmt.Errorf("constraint %q references %s", raw, name))
			}
		}
		parsed = append(parsed, c)
	}

	m := len(parsed)
	k := len(result.Coef)

	r := mat.NewDense(m, k, nil)
	q := make([]float64, m)
	for i, c := range parsed {
		for name, weight := range c.Terms {
			r.Set(i, result.Index(name), weight)
		}
		q[i] = c.Value
	}

	// d = R beta - q
	d := make([]float64, m)
	for i := 0; i < m; i++ {
		sum := -q[i]
		for j := 0; j < k; j++ {
			sum += r.At(i, j) * result.Coef[j]
		}
		d[i] = sum
	}

	// middle = R V R'
	var rv, middle mat.Dense
	rv.Mul(r, result.Cov)
	middle.Mul(&rv, r.T())

	var middleInv mat.Dense
	if err := middleInv.Inverse(&middle); err != nil {
		return nil, fmt.Errorf("restrictions are linearly dependent: %w", err)
	}

	stat := 0.0
	for i := 0; i < m; i++ {
		for j := 0; j < m; j++ {
			stat += d[i] * middleInv.At(i, j) * d[j]
		}
	}
	if stat < 0 {
		stat = 0
	}

	out := &WaldResult{
		Constraints: constraints,
		Stat:        stat,
		Dof:         m,
	}

	chi2 := distuv.ChiSquared{K: float64(m)}
	out.PValue = chi2.Survival(stat)

	// F form: with clustered errors the denominator degrees of freedom are
	// G-1, otherwise the residual degrees of freedom.
	denom := result.DofResidual
	if result.Clusters > 1 {
		denom = result.Clusters - 1
	}
	if denom < 1 {
		denom = 1
	}
	out.FStat = stat / float64(m)
	out.FDofDenom = denom
	f := distuv.F{D1: float64(m), D2: float64(denom)}
	out.FPValue = f.Survival(out.FStat)
	if math.IsNaN(out.FPValue) {
		out.FPValue = out.PValue
	}

	return out, nil
}
