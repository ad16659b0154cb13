// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tikreg

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Lk builds the (p−k)×p discrete approximation of the derivative operator
// of order k on a uniform grid of p points. k = 0 yields the identity; for
// k ≥ 1 the stencil is built by repeated forward differencing of (−1, 1)
// and placed on the k+1 super-diagonals, e.g. k = 2 gives rows of
// (1, −2, 1). The order must satisfy 0 ≤ k < p and k < 99.
func Lk(p, k int, L *mat.Dense) error {
	rL, cL := L.Dims()
	switch {
	case k < 0 || p <= k:
		return fmt.Errorf("%w: grid size must be larger than derivative order", ErrOrder)
	case k >= maxOrder-1:
		return fmt.Errorf("%w: derivative order too large", ErrOrder)
	case rL != p-k || cL != p:
		return fmt.Errorf("%w: L matrix must be (p-k)×p", ErrShape)
	}

	L.Zero()
	if k == 0 {
		for i := 0; i < p; i++ {
			L.Set(i, i, one)
		}
		return nil
	}

	var buf [maxOrder]float64
	cs := buf[:k+1]
	cs[0], cs[1] = -one, one
	for i := 1; i < k; i++ {
		prev := zero
		for j, cj := range cs {
			cs[j] = prev - cj
			prev = cj
		}
	}

	// the cᵢ are the entries on the super-diagonals
	for d, cd := range cs {
		for i := 0; i < p-k; i++ {
			L.Set(i, i+d, cd)
		}
	}
	return nil
}

// LSobolev builds the p×p Sobolev smoothing-norm operator
//
//	𝐋 = [ α₀𝐈; α₁𝐋₁; ...; α_kmax·𝐋_kmax ]
//
// as the upper Cholesky factor of ∑ αₖ²·𝐋ₖᵀ𝐋ₖ, so that ‖𝐋𝐜‖² penalizes a
// weighted sum of squared derivative norms. alpha holds the kmax+1 weights;
// the lower triangle of L is zeroed on return.
func LSobolev(p, kmax int, alpha []float64, L *mat.Dense, w *Workspace) error {
	rL, cL := L.Dims()
	switch {
	case p > w.pmax:
		return fmt.Errorf("%w: p larger than workspace", ErrShape)
	case kmax < 0 || p <= kmax:
		return fmt.Errorf("%w: grid size must be larger than derivative order", ErrOrder)
	case len(alpha) != kmax+1:
		return fmt.Errorf("%w: alpha must have length kmax+1", ErrShape)
	case rL != p || cL != p:
		return fmt.Errorf("%w: L matrix must be p×p", ErrShape)
	}

	// accumulate 𝐋ᵀ𝐋 = α₀²𝐈 + ∑ αₖ²·𝐋ₖᵀ𝐋ₖ
	ltl := w.sym.SliceSym(0, p).(*mat.SymDense)
	ltl.Zero()
	a0 := alpha[0]
	for i := 0; i < p; i++ {
		ltl.SetSym(i, i, a0*a0)
	}

	for k := 1; k <= kmax; k++ {
		lk := w.linv.Slice(0, p-k, 0, p).(*mat.Dense)
		if err := Lk(p, k, lk); err != nil {
			return err
		}
		ak := alpha[k]
		ltl.SymRankK(ltl, ak*ak, lk.T())
	}

	var chol mat.Cholesky
	if !chol.Factorize(ltl) {
		return fmt.Errorf("%w: smoothing norm is not positive definite", ErrNotPositiveDefinite)
	}
	r := mat.NewTriDense(p, mat.Upper, nil)
	chol.UTo(r)

	L.Zero()
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			L.Set(i, j, r.At(i, j))
		}
	}
	return nil
}
