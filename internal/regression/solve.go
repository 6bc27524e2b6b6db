package regression

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// rankTol is the relative singular-value cutoff used to declare a design
// rank deficient.
const rankTol = 1e-10

// colsToDense packs column slices into an n×k dense matrix.
func colsToDense(n int, cols [][]float64) *mat.Dense {
	out := mat.NewDense(n, len(cols), nil)
	for j, col := range cols {
		for i, v := range col {
			out.Set(i, j, v)
		}
	}
	return out
}

// lsFit is the SVD factorization of a design matrix, reused for solving,
// projecting and forming (X'X)^{-1}.
type lsFit struct {
	u      mat.Dense // n×k left singular vectors
	v      mat.Dense // k×k right singular vectors
	values []float64
	k      int
}

// factorize computes a thin SVD of x and rejects rank-deficient designs.
func factorize(x *mat.Dense) (*lsFit, error) {
	_, k := x.Dims()
	var svd mat.SVD
	if !svd.Factorize(x, mat.SVDThin) {
		return nil, fmt.Errorf("svd factorization failed")
	}

	f := &lsFit{k: k, values: svd.Values(nil)}
	if f.values[0] == 0 || f.values[k-1] <= rankTol*f.values[0] {
		return nil, fmt.Errorf("design matrix is rank deficient (smallest singular value %.3e)", f.values[k-1])
	}
	svd.UTo(&f.u)
	svd.VTo(&f.v)
	return f, nil
}

// solve returns beta minimizing ||y - X beta||.
func (f *lsFit) solve(y []float64) []float64 {
	n := len(y)
	w := make([]float64, f.k)
	for j := 0; j < f.k; j++ {
		sum := 0.0
		for i := 0; i < n; i++ {
			sum += f.u.At(i, j) * y[i]
		}
		w[j] = sum / f.values[j]
	}
	beta := make([]float64, f.k)
	for i := 0; i < f.k; i++ {
		sum := 0.0
		for j := 0; j < f.k; j++ {
			sum += f.v.At(i, j) * w[j]
		}
		beta[i] = sum
	}
	return beta
}

// project returns the orthogonal projection of y onto the column space of
// the factorized matrix (the fitted values of a regression of y on X).
func (f *lsFit) project(y []float64) []float64 {
	n := len(y)
	w := make([]float64, f.k)
	for j := 0; j < f.k; j++ {
		sum := 0.0
		for i := 0; i < n; i++ {
			sum += f.u.At(i, j) * y[i]
		}
		w[j] = sum
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := 0.0
		for j := 0; j < f.k; j++ {
			sum += f.u.At(i, j) * w[j]
		}
		out[i] = sum
	}
	return out
}

// xtxInverse forms (X'X)^{-1} = V diag(1/s²) V'.
func (f *lsFit) xtxInverse() *mat.SymDense {
	out := mat.NewSymDense(f.k, nil)
	for i := 0; i < f.k; i++ {
		for j := i; j < f.k; j++ {
			sum := 0.0
			for l := 0; l < f.k; l++ {
				sum += f.v.At(i, l) * f.v.At(j, l) / (f.values[l] * f.values[l])
			}
			out.SetSym(i, j, sum)
		}
	}
	return out
}

// residuals returns y - X beta for column data x.
func residuals(y []float64, cols [][]float64, beta []float64) []float64 {
	out := make([]float64, len(y))
	copy(out, y)
	for j, col := range cols {
		b := beta[j]
		for i, v := range col {
			out[i] -= b * v
		}
	}
	return out
}

// sumSquares returns the sum of squared elements.
func sumSquares(v []float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	return sum
}

// totalSumSquares returns the sum of squared deviations from the mean.
func totalSumSquares(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	mean := 0.0
	for _, x := range v {
		mean += x
	}
	mean /= float64(len(v))
	sum := 0.0
	for _, x := range v {
		d := x - mean
		sum += d * d
	}
	return sum
}
