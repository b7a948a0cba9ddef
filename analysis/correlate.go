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
	"os"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// FillValue marks missing values in files written by this package.
const FillValue = -2e9

// GetIndices returns the largest row index i with y[i] < y0 and the
// largest column index j with x[j] < x0, or zero where there is none.
func GetIndices(x, y []float64, x0, y0 float64) (i, j int) {
	for k, v := range x {
		if v < x0 {
			j = k
		}
	}
	for k, v := range y {
		if v < y0 {
			i = k
		}
	}
	return i, j
}

// Window returns rows [i0, i1) and columns [j0, j1) of the 2-D array a.
// NaN values and cells where mask is true are replaced by zero.
func Window(a *sparse.DenseArray, mask []bool, i0, j0, i1, j1 int) (*sparse.DenseArray, error) {
	if len(a.Shape) != 2 {
		return nil, fmt.Errorf("analysis: window needs a 2-D array, have shape %v", a.Shape)
	}
	if i0 < 0 || j0 < 0 || i1 > a.Shape[0] || j1 > a.Shape[1] || i1 <= i0 || j1 <= j0 {
		return nil, fmt.Errorf("analysis: window [%d:%d, %d:%d] is outside shape %v", i0, i1, j0, j1, a.Shape)
	}
	nx := a.Shape[1]
	o := sparse.ZerosDense(i1-i0, j1-j0)
	for i := i0; i < i1; i++ {
		for j := j0; j < j1; j++ {
			k := i*nx + j
			v := a.Elements[k]
			if math.IsNaN(v) || (mask != nil && mask[k]) {
				continue
			}
			o.Elements[(i-i0)*(j1-j0)+(j-j0)] = v
		}
	}
	return o, nil
}

// Correlate2D returns the full two-dimensional cross-correlation of a
// with b, with shape (ma+mb-1, na+nb-1). Element (r, c) is the sum of
// a[i+r-mb+1, j+c-nb+1]*b[i, j] over the overlapping cells.
func Correlate2D(a, b *sparse.DenseArray) *sparse.DenseArray {
	ma, na := a.Shape[0], a.Shape[1]
	mb, nb := b.Shape[0], b.Shape[1]
	o := sparse.ZerosDense(ma+mb-1, na+nb-1)
	no := na + nb - 1
	for r := 0; r < ma+mb-1; r++ {
		for c := 0; c < no; c++ {
			var sum float64
			for i := 0; i < mb; i++ {
				ia := i + r - mb + 1
				if ia < 0 || ia >= ma {
					continue
				}
				for j := 0; j < nb; j++ {
					ja := j + c - nb + 1
					if ja < 0 || ja >= na {
						continue
					}
					sum += a.Elements[ia*na+ja] * b.Elements[i*nb+j]
				}
			}
			o.Elements[r*no+c] = sum
		}
	}
	return o
}

// ValidPart returns the part of a full correlation of arrays with
// shapes sa and sb that does not depend on zero padding.
func ValidPart(full *sparse.DenseArray, sa, sb []int) (*sparse.DenseArray, error) {
	if sa[0] < sb[0] || sa[1] < sb[1] {
		return nil, fmt.Errorf("analysis: valid correlation needs the first array (%v) to be at least as large as the second (%v)", sa, sb)
	}
	m, n := sa[0]-sb[0]+1, sa[1]-sb[1]+1
	no := full.Shape[1]
	o := sparse.ZerosDense(m, n)
	for r := 0; r < m; r++ {
		for c := 0; c < n; c++ {
			o.Elements[r*n+c] = full.Elements[(r+sb[0]-1)*no+c+sb[1]-1]
		}
	}
	return o, nil
}

// CrossCorrelation correlates the experiment with the observation over
// rows [i0, i1) and columns [j0, j1). Missing values count as zero. It
// returns the valid and the full correlation.
func CrossCorrelation(obs *Observation, exp *Experiment, i0, j0, i1, j1 int) (valid, full *sparse.DenseArray, err error) {
	o, err := Window(obs.Values, obs.Mask, i0, j0, i1, j1)
	if err != nil {
		return nil, nil, err
	}
	e, err := Window(exp.Values, exp.Mask, i0, j0, i1, j1)
	if err != nil {
		return nil, nil, err
	}
	full = Correlate2D(e, o)
	valid, err = ValidPart(full, e.Shape, o.Shape)
	if err != nil {
		return nil, nil, err
	}
	return Squeeze(valid), full, nil
}

// WriteGrid writes the 2-D array a to a new NetCDF file as variable
// name on a regular grid whose first cell is at origin and whose cells
// are dx by dy. NaN values are written as FillValue.
func WriteGrid(path, name string, a *sparse.DenseArray, origin [2]float64, dx, dy float64, proj4 string) error {
	if len(a.Shape) != 2 {
		return fmt.Errorf("analysis: grid output needs a 2-D array, have shape %v", a.Shape)
	}
	ny, nx := a.Shape[0], a.Shape[1]
	h := cdf.NewHeader([]string{"y", "x"}, []int{ny, nx})
	h.AddVariable("x", []string{"x"}, []float64{0})
	h.AddAttribute("x", "units", "m")
	h.AddAttribute("x", "standard_name", "projection_x_coordinate")
	h.AddVariable("y", []string{"y"}, []float64{0})
	h.AddAttribute("y", "units", "m")
	h.AddAttribute("y", "standard_name", "projection_y_coordinate")
	h.AddVariable(name, []string{"y", "x"}, []float32{0})
	h.AddAttribute(name, "_FillValue", []float32{FillValue})
	if proj4 != "" {
		h.AddAttribute("", "proj4", proj4)
	}
	h.Define()

	f, err := os.Create(os.ExpandEnv(path))
	if err != nil {
		return fmt.Errorf("analysis: creating %s: %v", path, err)
	}
	defer f.Close()
	nc, err := cdf.Create(f, h)
	if err != nil {
		return fmt.Errorf("analysis: creating %s: %v", path, err)
	}
	x := make([]float64, nx)
	for i := range x {
		x[i] = origin[0] + float64(i)*dx
	}
	y := make([]float64, ny)
	for i := range y {
		y[i] = origin[1] + float64(i)*dy
	}
	data := make([]float32, len(a.Elements))
	for i, v := range a.Elements {
		if math.IsNaN(v) {
			v = FillValue
		}
		data[i] = float32(v)
	}
	for _, w := range []struct {
		v    string
		data interface{}
		end  []int
	}{
		{"x", x, []int{nx}},
		{"y", y, []int{ny}},
		{name, data, []int{ny, nx}},
	} {
		if _, err := nc.Writer(w.v, make([]int, len(w.end)), w.end).Write(w.data); err != nil {
			return fmt.Errorf("analysis: writing %s to %s: %v", w.v, path, err)
		}
	}
	return nil
}
