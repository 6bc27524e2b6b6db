package regression

import (
	"log/slog"

	pipeerrors "delayreg/internal/errors"
)

// FELS is the fixed-effects least-squares estimator: absorbed fixed
// effects, then least squares on the demeaned design, then cluster-robust
// variance estimation.
type FELS struct {
	Tol     float64
	MaxIter int
	Logger  *slog.Logger
}

// NewFELS creates a fixed-effects estimator with the given absorption
// numerics.
func NewFELS(tol float64, maxIter int, logger *slog.Logger) *FELS {
	if logger == nil {
		logger = slog.Default()
	}
	return &FELS{Tol: tol, MaxIter: maxIter, Logger: logger}
}

// Fit estimates the specification held by the design. Specifications whose
// fixed effects leave zero residual degrees of freedom, or whose regressors
// are perfectly collinear after absorption, are rejected with a
// per-specification error.
func (e *FELS) Fit(d *Design) (*Result, error) {
	spec := d.Spec.Name
	k := len(d.Exog)

	absorber, err := NewAbsorber(d.FEGroups, d.FELevels, e.Tol, e.MaxIter)
	if err != nil {
		return nil, pipeerrors.SpecError(pipeerrors.ErrCollinear, spec, err)
	}

	dofResid := d.N - k - absorber.DOF()
	if dofResid <= 0 {
		return nil, pipeerrors.SpecError(pipeerrors.ErrNoDegreesOfFreedom, spec, nil)
	}

	tssTotal := totalSumSquares(d.Y)

	cols := make([][]float64, 0, k+1)
	cols = append(cols, d.Y)
	cols = append(cols, d.Exog...)
	sweeps, err := absorber.Demean(cols...)
	if err != nil {
		return nil, pipeerrors.SpecError(pipeerrors.ErrNotConverged, spec, err)
	}
	tssWithin := sumSquares(d.Y)

	x := colsToDense(d.N, d.Exog)
	fit, err := factorize(x)
	if err != nil {
		return nil, pipeerrors.SpecError(pipeerrors.ErrCollinear, spec, err)
	}

	beta := fit.solve(d.Y)
	resid := residuals(d.Y, d.Exog, beta)
	rss := sumSquares(resid)
	xtxInv := fit.xtxInverse()

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
		result.Cov = clusterRobust(x, resid, d.Cluster, d.ClusterCount, xtxInv, dofResid)
	} else {
		result.Cov = classical(xtxInv, rss, dofResid)
	}

	e.Logger.Debug("fixed-effects estimation complete",
		slog.String("spec", spec),
		slog.Int("n", d.N),
		slog.Int("regressors", k),
		slog.Int("absorbed_dof", result.AbsorbedDOF),
		slog.Int("sweeps", sweeps),
		slog.Float64("r2", result.R2))

	return result, nil
}
