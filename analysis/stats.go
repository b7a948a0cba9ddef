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
	"math"
	"sort"

	"github.com/GaryBoone/GoStats/stats"
	"github.com/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Bins returns n+1 evenly spaced histogram edges from min to max.
func Bins(min, max float64, n int) []float64 {
	return floats.Span(make([]float64, n+1), min, max)
}

// BinCenters returns the centers of the bins defined by edges.
func BinCenters(edges []float64) []float64 {
	if len(edges) < 2 {
		return nil
	}
	o := make([]float64, len(edges)-1)
	for i := range o {
		o[i] = edges[i] + (edges[i+1]-edges[i])/2
	}
	return o
}

// Histogram counts the values that are not masked and not NaN into the
// bins defined by edges. As with numpy, the last bin includes its
// upper edge; values outside the edges are not counted.
func Histogram(values []float64, mask []bool, edges []float64) []float64 {
	if len(edges) < 2 {
		return nil
	}
	lo, hi := edges[0], edges[len(edges)-1]
	var x []float64
	var atMax float64
	for i, v := range values {
		if math.IsNaN(v) || (mask != nil && mask[i]) || v < lo || v > hi {
			continue
		}
		if v == hi {
			atMax++
			continue
		}
		x = append(x, v)
	}
	count := make([]float64, len(edges)-1)
	if len(x) > 0 {
		sort.Float64s(x)
		stat.Histogram(count, edges, x, nil)
	}
	count[len(count)-1] += atMax
	return count
}

// ValidCells returns whether each cell is unmasked in both the
// experiment and the observation and differs from the observation by no
// more than outlier.
func ValidCells(exp, obs []float64, expMask, obsMask []bool, outlier float64) []bool {
	o := make([]bool, len(exp))
	for i := range exp {
		if expMask[i] || obsMask[i] || math.IsNaN(exp[i]) || math.IsNaN(obs[i]) {
			continue
		}
		o[i] = math.Abs(exp[i]-obs[i]) <= outlier
	}
	return o
}

func differences(exp, obs []float64, valid []bool) []float64 {
	var d []float64
	for i, ok := range valid {
		if ok {
			d = append(d, exp[i]-obs[i])
		}
	}
	return d
}

// RMSE returns the root mean square difference between exp and obs
// over the valid cells. It returns NaN if no cell is valid.
func RMSE(exp, obs []float64, valid []bool) float64 {
	d := differences(exp, obs, valid)
	if len(d) == 0 {
		return math.NaN()
	}
	for i, v := range d {
		d[i] = v * v
	}
	return math.Sqrt(stat.Mean(d, nil))
}

// Avg returns the mean difference between exp and obs over the valid
// cells. It returns NaN if no cell is valid.
func Avg(exp, obs []float64, valid []bool) float64 {
	d := differences(exp, obs, valid)
	if len(d) == 0 {
		return math.NaN()
	}
	return stat.Mean(d, nil)
}

// Ptp returns the peak-to-peak range of the values that are not NaN.
func Ptp(values []float64) float64 {
	v := finite(values)
	if len(v) == 0 {
		return math.NaN()
	}
	return stats.StatsMax(v) - stats.StatsMin(v)
}

func finite(values []float64) []float64 {
	o := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			o = append(o, v)
		}
	}
	return o
}

// pairs returns the elements of a and b where neither is NaN.
func pairs(a, b []float64) (x, y []float64) {
	for i := range a {
		if math.IsNaN(a[i]) || math.IsNaN(b[i]) {
			continue
		}
		x = append(x, a[i])
		y = append(y, b[i])
	}
	return x, y
}

// RegressionR returns the correlation coefficient of a least-squares
// linear fit of b against a. Pairs containing NaN are skipped.
func RegressionR(a, b []float64) float64 {
	x, y := pairs(a, b)
	if len(x) < 2 {
		return math.NaN()
	}
	slope, _, rsquared, _, _, _ := stats.LinearRegression(x, y)
	r := math.Sqrt(rsquared)
	if slope < 0 {
		r = -r
	}
	return r
}

// PearsonR returns the Pearson correlation coefficient of a and b.
// Pairs containing NaN are skipped.
func PearsonR(a, b []float64) float64 {
	x, y := pairs(a, b)
	if len(x) < 2 {
		return math.NaN()
	}
	return stat.Correlation(x, y, nil)
}
