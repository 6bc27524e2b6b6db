package regression

import (
	"gonum.org/v1/gonum/mat"
)

// clusterRobust computes the cluster-robust sandwich covariance
//
//	V = c · (X'X)^{-1} · Σ_g (X_g'u_g)(X_g'u_g)' · (X'X)^{-1}
//
// with the finite-sample adjustment c = G/(G-1) · (N-1)/dofResid, allowing
// arbitrary correlation among observations sharing a cluster.
func clusterRobust(x *mat.Dense, resid []float64, cluster []int, nClusters int, xtxInv *mat.SymDense, dofResid int) *mat.SymDense {
	n, k := x.Dims()

	// Per-cluster score sums h_g = X_g' u_g.
	scores := make([][]float64, nClusters)
	for g := range scores {
		scores[g] = make([]float64, k)
	}
	for i := 0; i < n; i++ {
		h := scores[cluster[i]]
		u := resid[i]
		for j := 0; j < k; j++ {
			h[j] += x.At(i, j) * u
		}
	}

	meat := mat.NewSymDense(k, nil)
	for _, h := range scores {
		for i := 0; i < k; i++ {
			for j := i; j < k; j++ {
				meat.SetSym(i, j, meat.At(i, j)+h[i]*h[j])
			}
		}
	}

	c := float64(nClusters) / float64(nClusters-1) * float64(n-1) / float64(dofResid)
	return sandwich(xtxInv, meat, c)
}

// classical computes the homoskedastic covariance σ²(X'X)^{-1}.
func classical(xtxInv *mat.SymDense, rss float64, dofResid int) *mat.SymDense {
	k := xtxInv.SymmetricDim()
	sigma2 := rss / float64(dofResid)
	out := mat.NewSymDense(k, nil)
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			out.SetSym(i, j, sigma2*xtxInv.At(i, j))
		}
	}
	return out
}

// sandwich forms c · bread · meat · bread, symmetrized.
func sandwich(bread, meat *mat.SymDense, c float64) *mat.SymDense {
	k := bread.SymmetricDim()
	var tmp, full mat.Dense
	tmp.Mul(bread, meat)
	full.Mul(&tmp, bread)

	out := mat.NewSymDense(k, nil)
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			out.SetSym(i, j, c*(full.At(i, j)+full.At(j, i))/2)
		}
	}
	return out
}
