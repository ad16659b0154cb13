// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tikreg

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LReg fills regParam with a geometric progression of len(regParam) ≥ 3
// regularization parameters derived from the singular value interval of the
// least-squares system: regParam[0] = smax descending to
// regParam[N−1] = 𝚖𝚊𝚡(smin, 16ε·smax). The floor keeps the grid clear of
// numerical noise near zero.
func LReg(smin, smax float64, regParam []float64) error {
	if smax <= 0 {
		return fmt.Errorf("%w: smax must be positive", ErrInvalidInput)
	}
	n := len(regParam)
	if n < 3 {
		return ErrCurvePoints
	}

	low := math.Max(smin, smax*16*eps)
	regParam[n-1] = low

	// common ratio so that regParam[0] = smax
	ratio := math.Pow(smax/low, one/float64(n-1))
	for i := n - 2; i >= 0; i-- {
		regParam[i] = ratio * regParam[i+1]
	}
	return nil
}

// LCurve sweeps the regularization parameter across the singular value
// spectrum of the decomposed standard-form system and records the L-curve:
// rho[i] = ‖𝐲 − 𝐗𝐜(λᵢ)‖ and eta[i] = ‖𝐜(λᵢ)‖ for the grid regParam produced
// by LReg. The workspace must hold the decomposition computed by SVD for
// the system that produced y.
//
// For n > p the residual norms are corrected by the part of y outside the
// range of 𝐔 (eqs. 6-7 of Hansen & O'Leary). regParam, rho and eta must
// have equal lengths N ≥ 3.
func (w *Workspace) LCurve(y mat.Vector, regParam, rho, eta []float64) error {
	n := y.Len()
	nc := len(rho)
	switch {
	case n != w.n:
		return fmt.Errorf("%w: y does not match workspace decomposition", ErrShape)
	case nc < 3:
		return ErrCurvePoints
	case len(eta) != nc:
		return fmt.Errorf("%w: rho and eta must have equal lengths", ErrShape)
	case len(regParam) != nc:
		return fmt.Errorf("%w: reg_param and eta must have equal lengths", ErrShape)
	}

	p := w.p
	u := w.u.Slice(0, n, 0, p).(*mat.Dense)
	s := w.s[:p]
	xt := w.xt.SliceVec(0, p).(*mat.VecDense)

	// projection xt = 𝐔ᵀ𝐲 and the residual baseline ‖𝐲‖² − ‖𝐔ᵀ𝐲‖²
	xt.MulVec(u.T(), y)
	normy := mat.Norm(y, 2)
	normUTy := mat.Norm(xt, 2)
	dr := normy*normy - normUTy*normUTy

	if err := LReg(s[p-1], s[0], regParam); err != nil {
		return err
	}

	sol, res := w.sol[:p], w.res[:p]
	for i, lambda := range regParam {
		lambdaSq := lambda * lambda
		for j := 0; j < p; j++ {
			sj := s[j]
			xtj := xt.AtVec(j)
			f := sj / (sj*sj + lambdaSq)
			sol[j] = f * xtj
			res[j] = (one - sj*f) * xtj
		}
		eta[i] = floats.Norm(sol, 2)
		rho[i] = floats.Norm(res, 2)
	}

	if n > p && dr > 0 {
		for i, r := range rho {
			rho[i] = math.Sqrt(r*r + dr)
		}
	}
	return nil
}

// LCorner locates the point of maximum curvature on the log-log L-curve.
// Each interior point and its two neighbours define a circle; the smallest
// circumradius marks the corner. Triples whose radius is not finite are
// (nearly) colinear and are skipped; if every triple is skipped the curve
// carries no corner and ErrDegenerate is returned.
func LCorner(rho, eta []float64) (int, error) {
	n := len(rho)
	if n < 3 {
		return 0, ErrCurvePoints
	}
	if len(eta) != n {
		return 0, fmt.Errorf("%w: rho and eta must have equal lengths", ErrShape)
	}

	idx, rmin := 0, -one
	x1, y1 := math.Log(rho[0]), math.Log(eta[0])
	x2, y2 := math.Log(rho[1]), math.Log(eta[1])
	for i := 1; i < n-1; i++ {
		x3, y3 := math.Log(rho[i+1]), math.Log(eta[i+1])
		if r := circumRadius(x1, y1, x2, y2, x3, y3); finite(r) && (r < rmin || rmin < 0) {
			rmin, idx = r, i
		}
		x1, y1, x2, y2 = x2, y2, x3, y3
	}

	if rmin < 0 {
		return 0, fmt.Errorf("%w: curve points are colinear", ErrDegenerate)
	}
	return idx, nil
}

// LCorner2 locates the point of maximum curvature on the (λ², η²) curve, an
// alternative corner criterion.
//
// M. Rezghi, S.M. Hosseini, 'A new variant of L-curve for Tikhonov
// regularization', J. Comp. App. Math., 231 (2009).
func LCorner2(regParam, eta []float64) (int, error) {
	n := len(regParam)
	if n < 3 {
		return 0, ErrCurvePoints
	}
	if len(eta) != n {
		return 0, fmt.Errorf("%w: reg_param and eta must have equal lengths", ErrShape)
	}

	idx, rmin := 0, -one
	x1, y1 := regParam[0]*regParam[0], eta[0]*eta[0]
	x2, y2 := regParam[1]*regParam[1], eta[1]*eta[1]
	for i := 1; i < n-1; i++ {
		x3, y3 := regParam[i+1]*regParam[i+1], eta[i+1]*eta[i+1]
		if r := circumRadius(x1, y1, x2, y2, x3, y3); finite(r) && (r < rmin || rmin < 0) {
			rmin, idx = r, i
		}
		x1, y1, x2, y2 = x2, y2, x3, y3
	}

	if rmin < 0 {
		return 0, fmt.Errorf("%w: curve points are colinear", ErrDegenerate)
	}
	return idx, nil
}

// circumRadius returns the radius of the circle through three points:
// r = |𝐏₂−𝐏₁|·|𝐏₃−𝐏₁|·|𝐏₃−𝐏₂| / 2|(𝐏₂−𝐏₁)×(𝐏₃−𝐏₁)|. A colinear triple
// yields a non-finite radius through the vanishing cross product.
func circumRadius(x1, y1, x2, y2, x3, y3 float64) float64 {
	x21, y21 := x2-x1, y2-y1
	x31, y31 := x3-x1, y3-y1
	x32, y32 := x3-x2, y3-y2
	h21 := x21*x21 + y21*y21
	h31 := x31*x31 + y31*y31
	h32 := x32*x32 + y32*y32
	d := math.Abs(2 * (x21*y31 - x31*y21))
	return math.Sqrt(h21*h31*h32) / d
}

func finite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}
