// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tikreg

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// NIST Statistical Reference Datasets, Norris linear calibration problem.
// https://www.itl.nist.gov/div898/strd/lls/data/Norris.shtml
var (
	norrisX = []float64{
		0.2, 337.4, 118.2, 884.6, 10.1, 226.5, 666.3, 996.3,
		448.6, 777.0, 558.2, 0.4, 0.6, 775.5, 666.9, 338.0,
		447.5, 11.6, 556.0, 228.1, 995.8, 887.6, 120.2, 0.3,
		0.3, 556.8, 339.1, 887.2, 999.0, 779.0, 11.1, 118.3,
		229.2, 669.1, 448.9, 0.5,
	}
	norrisY = []float64{
		0.1, 338.8, 118.1, 888.0, 9.2, 228.1, 668.5, 998.5,
		449.1, 778.9, 559.2, 0.3, 0.1, 778.1, 668.8, 339.3,
		448.9, 10.8, 557.7, 228.3, 998.0, 888.8, 119.6, 0.3,
		0.6, 557.6, 339.3, 888.0, 998.5, 778.9, 10.2, 117.6,
		228.9, 668.4, 449.2, 0.2,
	}
)

func norrisDesign() (*mat.Dense, *mat.VecDense) {
	n := len(norrisX)
	x := mat.NewDense(n, 2, nil)
	for i, xi := range norrisX {
		x.Set(i, 0, 1)
		x.Set(i, 1, xi)
	}
	return x, mat.NewVecDense(n, append([]float64(nil), norrisY...))
}

func TestFitNorris(t *testing.T) {
	x, y := norrisDesign()
	w := NewWorkspace(36, 2)

	c := mat.NewVecDense(2, nil)
	cov := mat.NewDense(2, 2, nil)
	chisq, err := w.Fit(x, y, c, cov)
	require.NoError(t, err)

	assert.InEpsilon(t, -0.262323073774029, c.AtVec(0), 1e-10)
	assert.InEpsilon(t, 1.00211681802045, c.AtVec(1), 1e-10)
	assert.InEpsilon(t, 26.6173985294224, chisq, 1e-10)
	assert.InEpsilon(t, math.Pow(0.232818234301152, 2), cov.At(0, 0), 1e-10)
	assert.InEpsilon(t, -7.74327536339570e-05, cov.At(0, 1), 1e-10)
	assert.InEpsilon(t, math.Pow(0.429796848199937e-03, 2), cov.At(1, 1), 1e-10)
}

func TestWFitNorrisUnitWeights(t *testing.T) {
	x, y := norrisDesign()
	w := NewWorkspace(36, 2)

	wts := make([]float64, 36)
	for i := range wts {
		wts[i] = 1
	}

	c := mat.NewVecDense(2, nil)
	cov := mat.NewDense(2, 2, nil)
	chisq, err := w.WFit(x, wts, y, c, cov)
	require.NoError(t, err)

	assert.InEpsilon(t, -0.262323073774029, c.AtVec(0), 1e-10)
	assert.InEpsilon(t, 1.00211681802045, c.AtVec(1), 1e-10)
	assert.InEpsilon(t, 26.6173985294224, chisq, 1e-10)
	assert.InEpsilon(t, 6.92384428759429e-02, cov.At(0, 0), 1e-10)
	assert.InEpsilon(t, -9.89095016390515e-05, cov.At(0, 1), 1e-10)
	assert.InEpsilon(t, 2.35960747164148e-07, cov.At(1, 1), 1e-10)
}

func TestSolveNorrisUnregularized(t *testing.T) {
	x, y := norrisDesign()
	w := NewWorkspace(36, 2)
	require.NoError(t, w.SVD(x))

	c := mat.NewVecDense(2, nil)
	rnorm, snorm, err := w.Solve(0, x, y, c)
	require.NoError(t, err)

	assert.InEpsilon(t, -0.262323073774029, c.AtVec(0), 1e-10)
	assert.InEpsilon(t, 1.00211681802045, c.AtVec(1), 1e-10)
	assert.InEpsilon(t, 26.6173985294224, rnorm*rnorm, 1e-10)
	assert.InDelta(t, math.Hypot(c.AtVec(0), c.AtVec(1)), snorm, 1e-12)
}

func TestSolveRegularizedShrinks(t *testing.T) {
	x, y := norrisDesign()
	w := NewWorkspace(36, 2)
	require.NoError(t, w.SVD(x))

	c := mat.NewVecDense(2, nil)
	_, snorm0, err := w.Solve(0, x, y, c)
	require.NoError(t, err)

	// increasing lambda trades solution norm for residual norm
	var prevRho, prevEta float64
	for i, lambda := range []float64{1, 10, 100} {
		rnorm, snorm, err := w.Solve(lambda, x, y, c)
		require.NoError(t, err)
		assert.Less(t, snorm, snorm0)
		if i > 0 {
			assert.Greater(t, rnorm, prevRho)
			assert.Less(t, snorm, prevEta)
		}
		prevRho, prevEta = rnorm, snorm
	}
}

func TestSolveArgumentChecks(t *testing.T) {
	x, y := norrisDesign()
	w := NewWorkspace(36, 2)
	require.NoError(t, w.SVD(x))

	c := mat.NewVecDense(2, nil)
	_, _, err := w.Solve(-1, x, y, c)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, _, err = w.Solve(0, x, mat.NewVecDense(3, nil), c)
	assert.ErrorIs(t, err, ErrShape)

	_, _, err = w.Solve(0, mat.NewDense(4, 2, nil), mat.NewVecDense(4, nil), c)
	assert.ErrorIs(t, err, ErrShape)
}

func TestRankAndRCond(t *testing.T) {
	w := NewWorkspace(8, 8)

	// third column is the sum of the first two
	x := mat.NewDense(4, 3, []float64{
		1, 2, 3,
		4, 5, 9,
		7, 8, 15,
		10, 12, 22,
	})
	require.NoError(t, w.SVD(x))

	rank, err := w.Rank(1e-8)
	require.NoError(t, err)
	assert.Equal(t, 2, rank)

	rc, err := w.RCond()
	require.NoError(t, err)
	assert.Less(t, rc, 1e-10)

	require.NoError(t, w.SVD(mat.NewDense(2, 2, []float64{2, 0, 0, 1})))
	rc, err = w.RCond()
	require.NoError(t, err)
	assert.InDelta(t, 0.5, rc, 1e-12)

	_, err = NewWorkspace(2, 2).Rank(1e-8)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSVDWorkspaceBounds(t *testing.T) {
	w := NewWorkspace(4, 2)
	assert.ErrorIs(t, w.SVD(mat.NewDense(5, 2, nil)), ErrShape)
	assert.ErrorIs(t, w.SVD(mat.NewDense(4, 3, nil)), ErrShape)
	// fewer observations than parameters
	w = NewWorkspace(4, 4)
	assert.ErrorIs(t, w.SVD(mat.NewDense(2, 3, nil)), ErrShape)
}
