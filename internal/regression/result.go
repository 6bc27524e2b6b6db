package regression

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Result holds the outcome of one model estimation. It is immutable after
// creation and exported verbatim.
type Result struct {
	Spec  string
	Label string

	// Names indexes Coef and Cov. Order matches the specification's
	// regressor order.
	Names []string
	Coef  []float64
	Cov   *mat.SymDense

	N           int
	Clusters    int
	DofResidual int
	AbsorbedDOF int
	R2          float64
	R2Within    float64

	// Sweeps is the number of alternating-projection sweeps the
	// fixed-effect absorption used.
	Sweeps int

	// IV carries identification diagnostics for two-stage estimates,
	// nil for plain fixed-effects least squares.
	IV *IVDiagnostics
}

// IVDiagnostics carries weak-instrument and under-identification
// statistics from the first stage of a two-stage estimate. Both are always
// reported; the caller decides validity.
type IVDiagnostics struct {
	// UnderIDStat is the Anderson canonical-correlation LM statistic
	// testing the rank condition, chi-squared with UnderIDDof degrees of
	// freedom under the null of under-identification.
	UnderIDStat   float64
	UnderIDDof    int
	UnderIDPValue float64

	// WeakIDStat is the Cragg–Donald Wald F statistic measuring
	// first-stage strength.
	WeakIDStat float64

	// FirstStageF holds the excluded-instrument F statistic per
	// endogenous regressor, keyed by regressor name order.
	FirstStageF []float64
}

// Index returns the coefficient index of a regressor name, or -1.
func (r *Result) Index(name string) int {
	for i, n := range r.Names {
		if n == name {
			return i
		}
	}
	return -1
}

// StdErr returns the cluster-robust standard error of coefficient i.
func (r *Result) StdErr(i int) float64 {
	return math.Sqrt(r.Cov.At(i, i))
}

// PValue returns the two-sided p-value of coefficient i. With clustered
// standard errors the reference distribution is t with G-1 degrees of
// freedom, otherwise t with the residual degrees of freedom.
func (r *Result) PValue(i int) float64 {
	se := r.StdErr(i)
	if se == 0 {
		return math.NaN()
	}
	t := math.Abs(r.Coef[i] / se)
	dof := float64(r.DofResidual)
	if r.Clusters > 1 {
		dof = float64(r.Clusters - 1)
	}
	if dof < 1 {
		dof = 1
	}
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: dof}
	return 2 * dist.Survival(t)
}
