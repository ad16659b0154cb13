// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tikreg

import "errors"

var (
	// ErrShape indicates a dimension mismatch between arguments, or between
	// an argument and the workspace bounds. No computation is attempted and
	// no output buffer is touched.
	ErrShape = errors.New("tikreg: dimensions do not match")
	// ErrSingular indicates a singular regularization operator.
	ErrSingular = errors.New("tikreg: regularization operator is singular")
	// ErrNotPositiveDefinite indicates a Cholesky factorization failure.
	ErrNotPositiveDefinite = errors.New("tikreg: matrix is not positive definite")
	// ErrInvalidInput indicates an unsupported argument or combination,
	// such as weights together with a short-wide regularization operator.
	ErrInvalidInput = errors.New("tikreg: invalid input")
	// ErrCurvePoints indicates fewer than 3 points for L-curve analysis.
	ErrCurvePoints = errors.New("tikreg: at least 3 points are needed for L-curve analysis")
	// ErrOrder indicates a derivative order outside the valid range.
	ErrOrder = errors.New("tikreg: invalid derivative order")
	// ErrDegenerate indicates that no curve point produced a finite
	// curvature radius.
	ErrDegenerate = errors.New("tikreg: failed to find minimum curvature radius")
	// ErrConvergence indicates the singular value decomposition failed.
	ErrConvergence = errors.New("tikreg: singular value decomposition failed to converge")
)
