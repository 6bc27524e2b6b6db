package regression

import (
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	pipeerrors "delayreg/internal/errors"
)

// TwoStageLS is the two-stage instrumental-variables estimator with
// fixed-effect absorption. The first stage regresses each endogenous
// regressor on the excluded instruments plus the included exogenous
// regressors (all demeaned by the absorbed fixed effects); the second stage
// substitutes the fitted values. Multiple endogenous regressors and
// multiple instruments are supported.
type TwoStageLS struct {
	Tol     float64
	MaxIter int
	Logger  *slog.Logger
}

// NewTwoStageLS creates a two-stage estimator with the given absorption
// numerics.
func NewTwoStageLS(tol float64, maxIter int, logger *slog.Logger) *TwoStageLS {
	if logger == nil {
		logger = slog.Default()
	}
	return &TwoStageLS{Tol: tol, MaxIter: maxIter, Logger: logger}
}

// Fit estimates the IV specification held by the design. Identification
// diagnostics are computed from the first stage and attached to the result
// unconditionally.
func (e *TwoStageLS) Fit(d *Design) (*Result, error) {
	spec := d.Spec.Name
	p := len(d.Endog)
	q := len(d.Exog)
	l := len(d.Instr)

	if l < p {
		return nil, pipeerrors.SpecError(pipeerrors.ErrUnderIdentified, spec, nil)
	}

	absorber, err := NewAbsorber(d.FEGroups, d.FELevels, e.Tol, e.MaxIter)
	if err != nil {
		return nil, pipeerrors.SpecError(pipeerrors.ErrCollinear, spec, err)
	}

	dofResid := d.N - (p + q) - absorber.DOF()
	if dofResid <= 0 {
		return nil, pipeerrors.SpecError(pipeerrors.ErrNoDegreesOfFreedom, spec, nil)
	}

	tssTotal := totalSumSquares(d.Y)

	cols := make([][]float64, 0, 1+p+q+l)
	cols = append(cols, d.Y)
	cols = append(cols, d.Endog...)
	cols = append(cols, d.Exog...)
	cols = append(cols, d.Instr...)
	sweeps, err := absorber.Demean(cols...)
	if err != nil {
		return nil, pipeerrors.SpecError(pipeerrors.ErrNotConverged, spec, err)
	}
	tssWithin := sumSquares(d.Y)

	// First stage: project each endogenous regressor onto the full
	// instrument set [exog instruments].
	zCols := make([][]float64, 0, q+l)
	zCols = append(zCols, d.Exog...)
	zCols = append(zCols, d.Instr...)
	zFull := colsToDense(d.N, zCols)
	zFit, err := factorize(zFull)
	if err != nil {
		return nil, pipeerrors.SpecError(pipeerrors.ErrCollinear, spec, err)
	}

	fitted := make([][]float64, p)
	firstStageF := make([]float64, p)
	fsDof := d.N - (q + l) - absorber.DOF()
	for j, x := range d.Endog {
		fitted[j] = zFit.project(x)

		// Excluded-instrument F: restricted projection on exogenous
		// regressors only.
		rssU := 0.0
		for i := range x {
			diff := x[i] - fitted[j][i]
			rssU += diff * diff
		}
		rssR := totalRestrictedRSS(d, x)
		if rssU > 0 && fsDof > 0 {
			firstStageF[j] = ((rssR - rssU) / float64(l)) / (rssU / float64(fsDof))
		} else {
			firstStageF[j] = math.Inf(1)
		}
	}

	// Second stage on [fitted endog, exog].
	x2Cols := make([][]float64, 0, p+q)
	x2Cols = append(x2Cols, fitted...)
	x2Cols = append(x2Cols, d.Exog...)
	x2 := colsToDense(d.N, x2Cols)
	fit2, err := factorize(x2)
	if err != nil {
		return nil, pipeerrors.SpecError(pipeerrors.ErrCollinear, spec, err)
	}
	beta := fit2.solve(d.Y)

	// Residuals use the actual endogenous regressors, not the fitted
	// values.
	actualCols := make([][]float64, 0, p+q)
	actualCols = append(actualCols, d.Endog...)
	actualCols = append(actualCols, d.Exog...)
	resid := residuals(d.Y, actualCols, beta)
	rss := sumSquares(resid)
	xtxInv := fit2.xtxInverse()

	result := &Result{
		Spec:        spec,
		Label:       d.Spec.Label,
		Names:       d.RegressorNames(),
		Coef:        beta,
		N:           d.N,
		DofResidual: dofResid,
		AbsorbedDOF: absorber.DOF(),
		Sweeps:      sweeps,
	}
	if tssTotal > 0 {
		result.R2 = 1 - rss/tssTotal
	}
	if tssWithin > 0 {
		result.R2Within = 1 - rss/tssWithin
	}

	if d.ClusterCount > 1 {
		result.Clusters = d.ClusterCount
		result.Cov = clusterRobust(x2, resid, d.Cluster, d.ClusterCount, xtxInv, dofResid)
	} else {
		result.Cov = classical(xtxInv, rss, dofResid)
	}

	result.IV = e.identification(d, firstStageF)

	e.Logger.Debug("two-stage estimation complete",
		slog.String("spec", spec),
		slog.Int("n", d.N),
		slog.Int("endogenous", p),
		slog.Int("instruments", l),
		slog.Int("sweeps", sweeps),
		slog.Float64("weak_id_f", result.IV.WeakIDStat))

	return result, nil
}

// totalRestrictedRSS returns the residual sum of squares from projecting x
// on the included exogenous regressors alone (demeaned). With no exogenous
// regressors, the restricted model is the fixed effects only, so the RSS is
// the demeaned sum of squares.
func totalRestrictedRSS(d *Design, x []float64) float64 {
	if len(d.Exog) == 0 {
		return sumSquares(x)
	}
	w := colsToDense(d.N, d.Exog)
	wFit, err := factorize(w)
	if err != nil {
		return sumSquares(x)
	}
	proj := wFit.project(x)
	rss := 0.0
	for i := range x {
		diff := x[i] - proj[i]
		rss += diff * diff
	}
	return rss
}

// identification computes the Anderson canonical-correlation LM statistic
// (under-identification) and the Cragg–Donald Wald F statistic (weak
// identification) from the first-stage relationship between the endogenous
// regressors and the excluded instruments, after partialling out the
// included exogenous regressors.
func (e *TwoStageLS) identification(d *Design, firstStageF []float64) *IVDiagnostics {
	p := len(d.Endog)
	q := len(d.Exog)
	l := len(d.Instr)

	diag := &IVDiagnostics{
		UnderIDDof:    l - p + 1,
		UnderIDStat:   math.NaN(),
		UnderIDPValue: math.NaN(),
		WeakIDStat:    math.NaN(),
		FirstStageF:   firstStageF,
	}

	xt := residualizeOn(d.Exog, d.Endog, d.N)
	zt := residualizeOn(d.Exog, d.Instr, d.N)

	rmin2, ok := minCanonicalCorrelation(xt, zt, d.N)
	if !ok {
		return diag
	}

	diag.UnderIDStat = float64(d.N) * rmin2
	chi2 := distuv.ChiSquared{K: float64(diag.UnderIDDof)}
	diag.UnderIDPValue = chi2.Survival(diag.UnderIDStat)

	nEff := float64(d.N - q - l - sumLevels(d.FELevels))
	if nEff < 1 {
		nEff = 1
	}
	if rmin2 < 1 {
		diag.WeakIDStat = (rmin2 / (1 - rmin2)) * nEff / float64(l)
	} else {
		diag.WeakIDStat = math.Inf(1)
	}
	return diag
}

// residualizeOn returns copies of cols with the span of the base columns
// removed.
func residualizeOn(base, cols [][]float64, n int) [][]float64 {
	out := make([][]float64, len(cols))
	if len(base) == 0 {
		for j, col := range cols {
			out[j] = make([]float64, n)
			copy(out[j], col)
		}
		return out
	}

	b := colsToDense(n, base)
	fit, err := factorize(b)
	if err != nil {
		for j, col := range cols {
			out[j] = make([]float64, n)
			copy(out[j], col)
		}
		return out
	}

	for j, col := range cols {
		proj := fit.project(col)
		out[j] = make([]float64, n)
		for i := range col {
			out[j][i] = col[i] - proj[i]
		}
	}
	return out
}

// minCanonicalCorrelation returns the smallest squared canonical
// correlation between the column sets x and z.
func minCanonicalCorrelation(x, z [][]float64, n int) (float64, bool) {
	p := len(x)
	l := len(z)
	if p == 0 || l == 0 {
		return 0, false
	}

	xm := colsToDense(n, x)
	zm := colsToDense(n, z)

	var a, b, c mat.Dense
	a.Mul(xm.T(), xm) // p×p
	b.Mul(zm.T(), zm) // l×l
	c.Mul(xm.T(), zm) // p×l

	var aInv, bInv mat.Dense
	if err := aInv.Inverse(&a); err != nil {
		return 0, false
	}
	if err := bInv.Inverse(&b); err != nil {
		return 0, false
	}

	// M = A^{-1} C B^{-1} C'; its eigenvalues are the squared canonical
	// correlations.
	var t1, t2, m mat.Dense
	t1.Mul(&aInv, &c)
	t2.Mul(&t1, &bInv)
	m.Mul(&t2, c.T())

	var eig mat.Eigen
	if !eig.Factorize(&m, mat.EigenNone) {
		return 0, false
	}
	values := eig.Values(nil)

	min := math.Inf(1)
	for _, v := range values {
		r := real(v)
		if r < 0 {
			r = 0
		}
		if r > 1 {
			r = 1
		}
		if r < min {
			min = r
		}
	}
	if math.IsInf(min, 1) {
		return 0, false
	}
	return min, true
}

// sumLevels totals the absorbed degrees of freedom the way the absorber
// counts them.
func sumLevels(levels []int) int {
	dof := 0
	for i, l := range levels {
		if i == 0 {
			dof += l
		} else {
			dof += l - 1
		}
	}
	return dof
}
