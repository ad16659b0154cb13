// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tikreg implements Tikhonov-regularized linear least-squares
// fitting: standard-form transforms for diagonal and general regularization
// operators, an SVD-based regularized solver, L-curve analysis for choosing
// the regularization strength, and finite-difference / Sobolev smoothing-norm
// operator construction.
//
// # References
//
//	P.C. Hansen, D.P. O'Leary, 'The use of the L-curve in the regularization
//	of discrete ill-posed problems', SIAM J. Sci. Comput. 14 (1993).
//	P.C. Hansen, 'Discrete Inverse Problems: Insight and Algorithms',
//	SIAM Press, 2010.
package tikreg

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Workspace holds the factorization state and scratch buffers shared by the
// fitting routines. It is sized once for upper bounds (nmax observations,
// pmax parameters) and reused across many fits to avoid repeated allocation.
//
// A Workspace carries mutable state and must not be used by more than one
// in-flight computation: allocate one per goroutine or serialize access.
type Workspace struct {
	nmax, pmax int

	// dimensions of the currently decomposed system
	n, p int

	u    *mat.Dense    // nmax×pmax left singular vectors 𝐔
	v    *mat.Dense    // pmax×pmax right singular vectors 𝐕
	s    []float64     // pmax singular values, descending
	xt   *mat.VecDense // pmax projection 𝐔ᵀ𝐲
	t    *mat.VecDense // nmax residual scratch
	yw   *mat.VecDense // nmax weighted response scratch
	a    *mat.Dense    // nmax×pmax weighted design scratch
	linv *mat.Dense    // pmax×pmax pseudo-inverse 𝐋⁺ of a short-wide operator
	sym  *mat.SymDense // pmax×pmax smoothing-norm accumulator
	sol  []float64     // pmax filter-factor solution components
	res  []float64     // pmax filter-factor residual components
}

// NewWorkspace allocates a workspace for problems with at most nmax
// observations and pmax parameters.
func NewWorkspace(nmax, pmax int) *Workspace {
	if nmax <= 0 || pmax <= 0 {
		panic("tikreg: workspace bounds must be positive")
	}
	return &Workspace{
		nmax: nmax,
		pmax: pmax,
		u:    mat.NewDense(nmax, pmax, nil),
		v:    mat.NewDense(pmax, pmax, nil),
		s:    make([]float64, pmax),
		xt:   mat.NewVecDense(pmax, nil),
		t:    mat.NewVecDense(nmax, nil),
		yw:   mat.NewVecDense(nmax, nil),
		a:    mat.NewDense(nmax, pmax, nil),
		linv: mat.NewDense(pmax, pmax, nil),
		sym:  mat.NewSymDense(pmax, nil),
		sol:  make([]float64, pmax),
		res:  make([]float64, pmax),
	}
}

// SVD computes and stores the thin singular value decomposition of the n×p
// standard-form matrix X. It must be called before Solve, LCurve, Rank or
// RCond, and the stored factors remain valid until the next call.
func (w *Workspace) SVD(X mat.Matrix) error {
	n, p := X.Dims()
	if n > w.nmax || p > w.pmax {
		return fmt.Errorf("%w: observation matrix larger than workspace", ErrShape)
	}
	if n < p {
		return fmt.Errorf("%w: observations must not be fewer than parameters", ErrShape)
	}
	var svd mat.SVD
	if !svd.Factorize(X, mat.SVDThin) {
		return ErrConvergence
	}
	w.n, w.p = n, p
	svd.UTo(w.u.Slice(0, n, 0, p).(*mat.Dense))
	svd.VTo(w.v.Slice(0, p, 0, p).(*mat.Dense))
	svd.Values(w.s[:p])
	return nil
}

// Solve computes the Tikhonov solution of the standard-form system (X, y)
// for regularization strength lambda ≥ 0, using the decomposition stored by
// a prior call to SVD. Each singular component is damped by the filter
// factor 𝒇ⱼ = 𝑠ⱼ/(𝑠ⱼ² + λ²); for lambda = 0 the solve degrades to ordinary
// least squares with singular values below machine precision treated as
// rank-deficient.
//
// The coefficients are stored in c, and the residual norm ‖y − Xc‖ and
// solution norm ‖c‖ are returned.
func (w *Workspace) Solve(lambda float64, X mat.Matrix, y mat.Vector, c *mat.VecDense) (rnorm, snorm float64, err error) {
	n, p := X.Dims()
	switch {
	case n != w.n || p != w.p:
		return 0, 0, fmt.Errorf("%w: X does not match workspace decomposition", ErrShape)
	case y.Len() != n:
		return 0, 0, fmt.Errorf("%w: y vector must have length n", ErrShape)
	case c.Len() != p:
		return 0, 0, fmt.Errorf("%w: c vector must have length p", ErrShape)
	case lambda < 0:
		return 0, 0, fmt.Errorf("%w: negative regularization strength", ErrInvalidInput)
	}
	_, rnorm, snorm = w.solve(lambda, eps, y, c)
	return rnorm, snorm, nil
}

// solve applies the singular value filter to the stored decomposition.
// The effective rank is the number of singular values above tol·𝑠₀.
func (w *Workspace) solve(lambda, tol float64, y mat.Vector, c *mat.VecDense) (rank int, rnorm, snorm float64) {
	n, p := w.n, w.p
	u := w.u.Slice(0, n, 0, p).(*mat.Dense)
	v := w.v.Slice(0, p, 0, p).(*mat.Dense)
	s := w.s[:p]
	xt := w.xt.SliceVec(0, p).(*mat.VecDense)

	// projection xt = 𝐔ᵀ𝐲
	xt.MulVec(u.T(), y)

	// residual of y outside the range of 𝐔: ‖𝐲 - 𝐔𝐔ᵀ𝐲‖
	var rhoLS float64
	if n > p {
		t := w.t.SliceVec(0, n).(*mat.VecDense)
		t.MulVec(u, xt)
		t.SubVec(y, t)
		rhoLS = mat.Norm(t, 2)
	}

	smax := s[0]
	lambdaSq := lambda * lambda
	var rho2 float64
	for j := 0; j < p; j++ {
		sj := s[j]
		if sj > tol*smax {
			rank++
		}
		xtj := xt.AtVec(j)
		var f float64
		switch {
		case lambda > 0:
			f = sj / (sj*sj + lambdaSq)
		case sj > tol*smax:
			f = one / sj
		}
		d := (one - sj*f) * xtj
		rho2 += d * d
		xt.SetVec(j, f*xtj)
	}

	c.MulVec(v, xt)
	snorm = mat.Norm(c, 2)
	rnorm = math.Sqrt(rho2 + rhoLS*rhoLS)
	return rank, rnorm, snorm
}

// Rank returns the number of singular values of the decomposed matrix
// exceeding tol times the largest singular value.
func (w *Workspace) Rank(tol float64) (int, error) {
	if w.p == 0 {
		return 0, fmt.Errorf("%w: no decomposition in workspace", ErrInvalidInput)
	}
	s := w.s[:w.p]
	smax := s[0]
	rank := 0
	for _, sj := range s {
		if sj > tol*smax {
			rank++
		}
	}
	return rank, nil
}

// RCond returns the reciprocal condition number 𝑠ₚ₋₁/𝑠₀ of the decomposed
// matrix, or 0 when the matrix is exactly singular.
func (w *Workspace) RCond() (float64, error) {
	if w.p == 0 {
		return 0, fmt.Errorf("%w: no decomposition in workspace", ErrInvalidInput)
	}
	s := w.s[:w.p]
	if s[0] == zero {
		return 0, nil
	}
	return s[w.p-1] / s[0], nil
}

// Fit solves the unregularized least-squares problem 𝚖𝚒𝚗‖𝐲 − 𝐗𝐜‖², storing
// the coefficients in c and returning the residual sum of squares χ².
// When cov is non-nil it receives the p×p covariance matrix σ²(𝐗ᵀ𝐗)⁻¹ with
// the variance estimated as σ² = χ²/(n−p), which requires n > p.
func (w *Workspace) Fit(X mat.Matrix, y mat.Vector, c *mat.VecDense, cov *mat.Dense) (chisq float64, err error) {
	n, p := X.Dims()
	switch {
	case y.Len() != n:
		return 0, fmt.Errorf("%w: y vector must have length n", ErrShape)
	case c.Len() != p:
		return 0, fmt.Errorf("%w: c vector must have length p", ErrShape)
	case cov != nil && n <= p:
		return 0, fmt.Errorf("%w: covariance requires more observations than parameters", ErrInvalidInput)
	}
	if cov != nil {
		if r, cc := cov.Dims(); r != p || cc != p {
			return 0, fmt.Errorf("%w: covariance matrix must be p×p", ErrShape)
		}
	}
	if err = w.SVD(X); err != nil {
		return 0, err
	}
	_, rnorm, _ := w.solve(0, eps, y, c)
	chisq = rnorm * rnorm
	if cov != nil {
		w.covariance(chisq/float64(n-p), eps, cov)
	}
	return chisq, nil
}

// WFit solves the weighted least-squares problem 𝚖𝚒𝚗 ∑ 𝑤ᵢ(𝑦ᵢ − 𝐱ᵢᵀ𝐜)²,
// storing the coefficients in c and returning the weighted residual sum of
// squares χ². Negative weights are treated as zero. When cov is non-nil it
// receives the covariance matrix (𝐗ᵀ𝐖𝐗)⁻¹.
func (w *Workspace) WFit(X mat.Matrix, wts []float64, y mat.Vector, c *mat.VecDense, cov *mat.Dense) (chisq float64, err error) {
	n, p := X.Dims()
	switch {
	case y.Len() != n:
		return 0, fmt.Errorf("%w: y vector must have length n", ErrShape)
	case c.Len() != p:
		return 0, fmt.Errorf("%w: c vector must have length p", ErrShape)
	}
	if cov != nil {
		if r, cc := cov.Dims(); r != p || cc != p {
			return 0, fmt.Errorf("%w: covariance matrix must be p×p", ErrShape)
		}
	}
	xs := w.a.Slice(0, n, 0, p).(*mat.Dense)
	ys := w.yw.SliceVec(0, n).(*mat.VecDense)
	if err = WStdForm1(nil, X, wts, y, xs, ys, w); err != nil {
		return 0, err
	}
	if err = w.SVD(xs); err != nil {
		return 0, err
	}
	_, rnorm, _ := w.solve(0, eps, ys, c)
	chisq = rnorm * rnorm
	if cov != nil {
		w.covariance(one, eps, cov)
	}
	return chisq, nil
}

// covariance fills cov = scale·𝐕𝐒⁻²𝐕ᵀ over the singular values above tol·𝑠₀.
func (w *Workspace) covariance(scale, tol float64, cov *mat.Dense) {
	p := w.p
	v := w.v.Slice(0, p, 0, p).(*mat.Dense)
	s := w.s[:p]
	smax := s[0]
	for i := 0; i < p; i++ {
		for j := 0; j <= i; j++ {
			var sum float64
			for k := 0; k < p; k++ {
				if sk := s[k]; sk > tol*smax {
					vr := v.At(i, k) * v.At(j, k)
					sum += vr / (sk * sk)
				}
			}
			cov.Set(i, j, scale*sum)
			cov.Set(j, i, scale*sum)
		}
	}
}
