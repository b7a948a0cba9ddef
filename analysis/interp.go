/*
Copyright © 2018 the pismrun authors.
This file is part of pismrun.

pismrun is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

pismrun is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with pismrun.  If not, see <http://www.gnu.org/licenses/>.
*/

package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/sparse"
)

// Interpolator evaluates a two-dimensional field on a regular grid at
// arbitrary points by bilinear interpolation.
type Interpolator struct {
	x, y []float64
	a    *sparse.DenseArray
}

// NewInterpolator returns an interpolator for a, whose shape must be
// (len(y), len(x)). x and y must be increasing.
func NewInterpolator(x, y []float64, a *sparse.DenseArray) (*Interpolator, error) {
	if len(a.Shape) != 2 || a.Shape[0] != len(y) || a.Shape[1] != len(x) {
		return nil, fmt.Errorf("analysis: interpolation field has shape %v but coordinates are %dx%d",
			a.Shape, len(y), len(x))
	}
	if len(x) < 2 || len(y) < 2 {
		return nil, fmt.Errorf("analysis: interpolation needs at least a 2x2 grid")
	}
	if !sort.Float64sAreSorted(x) || !sort.Float64sAreSorted(y) {
		return nil, fmt.Errorf("analysis: interpolation coordinates must be increasing")
	}
	return &Interpolator{x: x, y: y, a: a}, nil
}

// cell returns the index of the lower grid line bracketing v and the
// fractional distance past it, or false if v is outside the grid.
func cell(c []float64, v float64) (int, float64, bool) {
	if v < c[0] || v > c[len(c)-1] || math.IsNaN(v) {
		return 0, 0, false
	}
	i := sort.SearchFloat64s(c, v) - 1
	if i < 0 {
		i = 0
	}
	if i > len(c)-2 {
		i = len(c) - 2
	}
	return i, (v - c[i]) / (c[i+1] - c[i]), true
}

// At returns the interpolated value at (x, y), or NaN outside the grid.
func (in *Interpolator) At(x, y float64) float64 {
	j, tx, ok := cell(in.x, x)
	if !ok {
		return math.NaN()
	}
	i, ty, ok := cell(in.y, y)
	if !ok {
		return math.NaN()
	}
	nx := len(in.x)
	v00 := in.a.Elements[i*nx+j]
	v01 := in.a.Elements[i*nx+j+1]
	v10 := in.a.Elements[(i+1)*nx+j]
	v11 := in.a.Elements[(i+1)*nx+j+1]
	return v00*(1-tx)*(1-ty) + v01*tx*(1-ty) + v10*(1-tx)*ty + v11*tx*ty
}

// Along returns the interpolated values at each point (xs[k], ys[k]).
func (in *Interpolator) Along(xs, ys []float64) []float64 {
	o := make([]float64, len(xs))
	for k := range xs {
		o[k] = in.At(xs[k], ys[k])
	}
	return o
}
