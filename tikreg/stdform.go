// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tikreg

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// WStdForm1 transforms the weighted Tikhonov problem with the diagonal
// regularization operator 𝐋 = 𝚍𝚒𝚊𝚐(𝑙₁,...,𝑙ₚ) into standard form:
//
//	𝐗߬ = √𝐖·𝐗·𝐋⁻¹   𝐲߬ = √𝐖·𝐲   𝐜߬ = 𝐋·𝐜
//
// l holds the p diagonal elements, or nil for 𝐋 = 𝐈. wts holds the n
// observation weights, or nil for 𝐖 = 𝐈; negative weights are treated as
// zero. Xs may alias X and ys may alias y.
func WStdForm1(l []float64, X mat.Matrix, wts []float64, y mat.Vector, Xs *mat.Dense, ys *mat.VecDense, w *Workspace) error {
	n, p := X.Dims()
	rXs, cXs := Xs.Dims()
	switch {
	case n > w.nmax || p > w.pmax:
		return fmt.Errorf("%w: observation matrix larger than workspace", ErrShape)
	case l != nil && len(l) != p:
		return fmt.Errorf("%w: diagonal operator does not match X", ErrShape)
	case y.Len() != n:
		return fmt.Errorf("%w: y vector does not match X", ErrShape)
	case wts != nil && len(wts) != n:
		return fmt.Errorf("%w: weight vector does not match X", ErrShape)
	case rXs != n || cXs != p:
		return fmt.Errorf("%w: Xs matrix must be n×p", ErrShape)
	case ys.Len() != n:
		return fmt.Errorf("%w: ys vector must have length n", ErrShape)
	}

	Xs.Copy(X)
	ys.CopyVec(y)

	if wts != nil {
		for i := 0; i < n; i++ {
			wi := wts[i]
			if wi < 0 {
				wi = 0
			}
			swi := math.Sqrt(wi)
			floats.Scale(swi, Xs.RawRowView(i))
			ys.SetVec(i, swi*ys.AtVec(i))
		}
	}

	if l != nil {
		for j := 0; j < p; j++ {
			lj := l[j]
			if lj == zero {
				return fmt.Errorf("%w: zero diagonal element", ErrSingular)
			}
			for i := 0; i < n; i++ {
				Xs.Set(i, j, Xs.At(i, j)/lj)
			}
		}
	}
	return nil
}

// StdForm1 is WStdForm1 with unit weights.
func StdForm1(l []float64, X mat.Matrix, y mat.Vector, Xs *mat.Dense, ys *mat.VecDense, w *Workspace) error {
	return WStdForm1(l, X, nil, y, Xs, ys, w)
}

// WStdForm2 transforms the weighted Tikhonov problem with a general m×p
// regularization operator L into standard form. Two structural cases:
//
// For m ≥ p, ‖𝐋𝐜‖ = ‖𝐑𝐜‖ for the QR factorization 𝐋 = 𝐐𝐑, so only the
// p×p triangle 𝐑 takes part: Xs = √𝐖·𝐗·𝐑⁻¹ is n×p, ys = √𝐖·𝐲 is n-vector,
// and M (m×p) receives 𝐑 in its upper-left p×p block for GenForm2.
//
// For m < p the operator has a null space of dimension p−m. With the
// factorizations 𝐋ᵀ = 𝐊𝐑 and 𝐗·𝐊ₒ = 𝐇𝐓, where 𝐊ₒ spans the null space of
// 𝐋, the standard form keeps only the subspace penalized by 𝐋:
// Xs = 𝐇qᵀ𝐗·𝐋⁺ is (n−p+m)×m, ys = 𝐇qᵀ𝐲 has length n−p+m, and M (p×n)
// receives 𝐊ₒ𝐓⁻¹𝐇ₒᵀ for reconstructing the null-space component later.
// The pseudo-inverse 𝐋⁺ is retained in the workspace for GenForm2.
// Weights are not supported in this case.
//
// If the QR factorization of L fails midway through the m < p branch,
// outputs written by earlier stages may already be mutated.
func WStdForm2(L, X mat.Matrix, wts []float64, y mat.Vector, Xs *mat.Dense, ys *mat.VecDense, M *mat.Dense, w *Workspace) error {
	m, pl := L.Dims()
	n, p := X.Dims()
	switch {
	case n > w.nmax || p > w.pmax:
		return fmt.Errorf("%w: observation matrix larger than workspace", ErrShape)
	case pl != p:
		return fmt.Errorf("%w: L and X matrices have different numbers of columns", ErrShape)
	case y.Len() != n:
		return fmt.Errorf("%w: y vector does not match X", ErrShape)
	case wts != nil && len(wts) != n:
		return fmt.Errorf("%w: weight vector does not match X", ErrShape)
	}
	if m >= p {
		return stdFormTall(L, X, wts, y, Xs, ys, M, w)
	}
	return stdFormWide(L, X, wts, y, Xs, ys, M, w)
}

// StdForm2 is WStdForm2 with unit weights.
func StdForm2(L, X mat.Matrix, y mat.Vector, Xs *mat.Dense, ys *mat.VecDense, M *mat.Dense, w *Workspace) error {
	return WStdForm2(L, X, nil, y, Xs, ys, M, w)
}

// stdFormTall handles the square or tall operator, m ≥ p.
func stdFormTall(L, X mat.Matrix, wts []float64, y mat.Vector, Xs *mat.Dense, ys *mat.VecDense, M *mat.Dense, w *Workspace) error {
	m, _ := L.Dims()
	n, p := X.Dims()
	rXs, cXs := Xs.Dims()
	rM, cM := M.Dims()
	switch {
	case rXs != n || cXs != p:
		return fmt.Errorf("%w: Xs matrix must be n×p", ErrShape)
	case ys.Len() != n:
		return fmt.Errorf("%w: ys vector must have length n", ErrShape)
	case rM != m || cM != p:
		return fmt.Errorf("%w: M matrix must be m×p", ErrShape)
	}

	var qr mat.QR
	qr.Factorize(L)
	qr.RTo(M) // 𝐑 occupies the upper-left p×p block of M
	for i := 0; i < p; i++ {
		if M.At(i, i) == zero {
			return fmt.Errorf("%w: rank-deficient operator", ErrSingular)
		}
	}

	if wts != nil {
		if err := WStdForm1(nil, X, wts, y, Xs, ys, w); err != nil {
			return err
		}
	} else {
		Xs.Copy(X)
		ys.CopyVec(y)
	}

	// Xs ← Xs·𝐑⁻¹ one row at a time: solve 𝐑ᵀ𝐯 = 𝚛𝚘𝚠ᵢ(Xs)
	r := triUpper(M, p)
	for i := 0; i < n; i++ {
		blas64.Trsv(blas.Trans, r, blas64.Vector{N: p, Inc: 1, Data: Xs.RawRowView(i)})
	}
	return nil
}

// stdFormWide handles the short-wide operator, m < p.
func stdFormWide(L, X mat.Matrix, wts []float64, y mat.Vector, Xs *mat.Dense, ys *mat.VecDense, M *mat.Dense, w *Workspace) error {
	m, _ := L.Dims()
	n, p := X.Dims()
	pm := p - m // null-space dimension of 𝐋
	npm := n - pm
	rXs, cXs := Xs.Dims()
	rM, cM := M.Dims()
	switch {
	case wts != nil:
		return fmt.Errorf("%w: weights are not supported with a short-wide operator", ErrInvalidInput)
	case rXs != npm || cXs != m:
		return fmt.Errorf("%w: Xs matrix must be (n-p+m)×m", ErrShape)
	case ys.Len() != npm:
		return fmt.Errorf("%w: ys vector must have length n-p+m", ErrShape)
	case rM != p || cM != n:
		return fmt.Errorf("%w: M matrix must be p×n", ErrShape)
	}

	// factor 𝐋ᵀ = 𝐊𝐑 and split 𝐊 = [𝐊ₚ 𝐊ₒ]: the trailing p−m columns
	// span the null space of 𝐋
	lt := mat.NewDense(p, m, nil)
	lt.Copy(L.T())
	var qr1 mat.QR
	qr1.Factorize(lt)
	k := mat.NewDense(p, p, nil)
	qr1.QTo(k)
	r1 := mat.NewDense(p, m, nil)
	qr1.RTo(r1)
	for i := 0; i < m; i++ {
		if r1.At(i, i) == zero {
			return fmt.Errorf("%w: rank-deficient operator", ErrSingular)
		}
	}
	kp := k.Slice(0, p, 0, m)
	ko := k.Slice(0, p, m, p)

	// factor 𝐗·𝐊ₒ = 𝐇𝐓 and split 𝐇 = [𝐇ₒ 𝐇q]
	b := mat.NewDense(n, pm, nil)
	b.Mul(X, ko)
	var qr2 mat.QR
	qr2.Factorize(b)
	h := mat.NewDense(n, n, nil)
	qr2.QTo(h)
	t1 := mat.NewDense(n, pm, nil)
	qr2.RTo(t1)
	for i := 0; i < pm; i++ {
		if t1.At(i, i) == zero {
			return fmt.Errorf("%w: X is singular on the null space of the operator", ErrSingular)
		}
	}
	ho := h.Slice(0, n, 0, pm)
	hq := h.Slice(0, n, pm, n)

	// pseudo-inverse 𝐋⁺ = 𝐊ₚ𝐑ᵣ⁻ᵀ from 𝐑ᵣ·(𝐋⁺)ᵀ = 𝐊ₚᵀ, kept in the
	// workspace for the back-transform
	linvT := mat.NewDense(m, p, nil)
	linvT.Copy(kp.T())
	blas64.Trsm(blas.Left, blas.NoTrans, one, triUpper(r1, m), linvT.RawMatrix())
	linv := w.linv.Slice(0, p, 0, m).(*mat.Dense)
	linv.Copy(linvT.T())

	// ys = 𝐇qᵀ𝐲, the last n−p+m entries of 𝐇ᵀ𝐲
	ys.MulVec(hq.T(), y)

	// M = 𝐊ₒ·𝐓⁻¹·𝐇ₒᵀ
	m1 := mat.NewDense(pm, n, nil)
	m1.Copy(ho.T())
	blas64.Trsm(blas.Left, blas.NoTrans, one, triUpper(t1, pm), m1.RawMatrix())
	M.Mul(ko, m1)

	// Xs = (𝐇qᵀ𝐗)·𝐋⁺
	c := mat.NewDense(npm, p, nil)
	c.Mul(hq.T(), X)
	Xs.Mul(c, linv)
	return nil
}

// GenForm1 recovers the original coefficients from a standard-form solution
// produced under a diagonal operator: 𝐜 = 𝐜߬ ⊘ 𝐥. It is the exact inverse
// of the WStdForm1 change of variables. c may alias cs.
func GenForm1(l []float64, cs mat.Vector, c *mat.VecDense, w *Workspace) error {
	p := len(l)
	switch {
	case p > w.pmax:
		return fmt.Errorf("%w: diagonal operator larger than workspace", ErrShape)
	case cs.Len() != p:
		return fmt.Errorf("%w: cs vector does not match operator", ErrShape)
	case c.Len() != p:
		return fmt.Errorf("%w: c vector does not match operator", ErrShape)
	}
	for j := 0; j < p; j++ {
		c.SetVec(j, cs.AtVec(j)/l[j])
	}
	return nil
}

// GenForm2 recovers the original p-dimensional coefficients from a
// standard-form solution produced by WStdForm2 with the same L, X, y and M.
//
// For m ≥ p it back-substitutes 𝐑𝐜 = 𝐜߬ against the 𝐑 factor stored in M.
// For m < p it reconstructs 𝐜 = 𝐋⁺𝐜߬ + 𝐌(𝐲 − 𝐗𝐋⁺𝐜߬), adding back the
// null-space component; the workspace must still hold the pseudo-inverse
// stored by the transform.
func GenForm2(L, X mat.Matrix, y, cs mat.Vector, M *mat.Dense, c *mat.VecDense, w *Workspace) error {
	m, pl := L.Dims()
	n, p := X.Dims()
	rM, cM := M.Dims()
	switch {
	case n > w.nmax || p > w.pmax:
		return fmt.Errorf("%w: observation matrix larger than workspace", ErrShape)
	case pl != p:
		return fmt.Errorf("%w: L matrix does not match X", ErrShape)
	case c.Len() != p:
		return fmt.Errorf("%w: c vector does not match X", ErrShape)
	case y.Len() != n:
		return fmt.Errorf("%w: y vector does not match X", ErrShape)
	}

	if m >= p {
		switch {
		case cs.Len() != p:
			return fmt.Errorf("%w: cs vector must have length p", ErrShape)
		case rM != m || cM != p:
			return fmt.Errorf("%w: M matrix must be m×p", ErrShape)
		}
		for i := 0; i < p; i++ {
			if M.At(i, i) == zero {
				return fmt.Errorf("%w: rank-deficient operator", ErrSingular)
			}
		}
		// solve 𝐑𝐜 = 𝐜߬ against the 𝐑 factor of 𝐋
		c.CopyVec(cs)
		blas64.Trsv(blas.NoTrans, triUpper(M, p), c.RawVector())
		return nil
	}

	switch {
	case cs.Len() != m:
		return fmt.Errorf("%w: cs vector must have length m", ErrShape)
	case rM != p || cM != n:
		return fmt.Errorf("%w: M matrix must be p×n", ErrShape)
	}
	linv := w.linv.Slice(0, p, 0, m)
	xt := w.xt.SliceVec(0, p).(*mat.VecDense)
	t := w.t.SliceVec(0, n).(*mat.VecDense)

	// 𝐜 = 𝐋⁺𝐜߬ + 𝐌(𝐲 − 𝐗𝐋⁺𝐜߬)
	xt.MulVec(linv, cs)
	t.MulVec(X, xt)
	t.SubVec(y, t)
	c.MulVec(M, t)
	c.AddVec(c, xt)
	return nil
}

// triUpper views the upper-left k×k block of a as a non-unit upper
// triangular BLAS operand.
func triUpper(a *mat.Dense, k int) blas64.Triangular {
	raw := a.RawMatrix()
	return blas64.Triangular{
		Uplo:   blas.Upper,
		Diag:   blas.NonUnit,
		N:      k,
		Data:   raw.Data,
		Stride: raw.Stride,
	}
}
