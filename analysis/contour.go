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
	"path/filepath"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/sparse"
	goshp "github.com/jonas-p/go-shp"
)

// Contour is a polyline in fractional (row, column) index space.
type Contour struct {
	Rows, Cols []float64
}

// Len returns the number of vertices.
func (c *Contour) Len() int { return len(c.Rows) }

// edgeKey identifies a grid edge. A horizontal edge joins (i, j) and
// (i, j+1); a vertical edge joins (i, j) and (i+1, j).
type edgeKey struct {
	i, j     int
	vertical bool
}

type segment [2]edgeKey

// Contours returns the polylines along which the two-dimensional array
// a equals level, found by marching squares. Cells with a NaN corner
// are skipped.
func Contours(a *sparse.DenseArray, level float64) ([]*Contour, error) {
	if len(a.Shape) != 2 {
		return nil, fmt.Errorf("analysis: contour needs a 2-D array, have shape %v", a.Shape)
	}
	ny, nx := a.Shape[0], a.Shape[1]
	at := func(i, j int) float64 { return a.Elements[i*nx+j] }
	above := func(v float64) bool { return v >= level }

	points := make(map[edgeKey][2]float64)
	cross := func(k edgeKey) bool {
		i2, j2 := k.i, k.j+1
		if k.vertical {
			i2, j2 = k.i+1, k.j
		}
		v1, v2 := at(k.i, k.j), at(i2, j2)
		if above(v1) == above(v2) {
			return false
		}
		if _, ok := points[k]; !ok {
			t := (level - v1) / (v2 - v1)
			points[k] = [2]float64{float64(k.i) + t*float64(i2-k.i), float64(k.j) + t*float64(j2-k.j)}
		}
		return true
	}

	var segs []segment
	for i := 0; i < ny-1; i++ {
		for j := 0; j < nx-1; j++ {
			v00, v01, v10, v11 := at(i, j), at(i, j+1), at(i+1, j), at(i+1, j+1)
			if math.IsNaN(v00) || math.IsNaN(v01) || math.IsNaN(v10) || math.IsNaN(v11) {
				continue
			}
			top := edgeKey{i, j, false}
			bottom := edgeKey{i + 1, j, false}
			left := edgeKey{i, j, true}
			right := edgeKey{i, j + 1, true}
			var crossed []edgeKey
			for _, k := range []edgeKey{top, right, bottom, left} {
				if cross(k) {
					crossed = append(crossed, k)
				}
			}
			switch len(crossed) {
			case 2:
				segs = append(segs, segment{crossed[0], crossed[1]})
			case 4:
				// Saddle: the cell center decides which corners connect.
				center := (v00 + v01 + v10 + v11) / 4
				if above(center) == above(v00) {
					segs = append(segs, segment{top, right}, segment{left, bottom})
				} else {
					segs = append(segs, segment{top, left}, segment{right, bottom})
				}
			}
		}
	}
	return chain(segs, points), nil
}

// chain joins segments that share an edge into polylines.
func chain(segs []segment, points map[edgeKey][2]float64) []*Contour {
	byEdge := make(map[edgeKey][]int)
	for s, seg := range segs {
		for _, k := range seg {
			byEdge[k] = append(byEdge[k], s)
		}
	}
	used := make([]bool, len(segs))
	next := func(k edgeKey, from int) (int, edgeKey, bool) {
		for _, s := range byEdge[k] {
			if s == from || used[s] {
				continue
			}
			if segs[s][0] == k {
				return s, segs[s][1], true
			}
			return s, segs[s][0], true
		}
		return 0, edgeKey{}, false
	}
	var out []*Contour
	for s := range segs {
		if used[s] {
			continue
		}
		used[s] = true
		line := []edgeKey{segs[s][0], segs[s][1]}
		// forward
		for cur, end := s, segs[s][1]; ; {
			n, k, ok := next(end, cur)
			if !ok {
				break
			}
			used[n] = true
			line = append(line, k)
			cur, end = n, k
		}
		// backward
		var head []edgeKey
		for cur, end := s, segs[s][0]; ; {
			n, k, ok := next(end, cur)
			if !ok {
				break
			}
			used[n] = true
			head = append(head, k)
			cur, end = n, k
		}
		c := new(Contour)
		for i := len(head) - 1; i >= 0; i-- {
			p := points[head[i]]
			c.Rows = append(c.Rows, p[0])
			c.Cols = append(c.Cols, p[1])
		}
		for _, k := range line {
			p := points[k]
			c.Rows = append(c.Rows, p[0])
			c.Cols = append(c.Cols, p[1])
		}
		out = append(out, c)
	}
	return out
}

// LongestContour returns the contour of a at level with the most
// vertices.
func LongestContour(a *sparse.DenseArray, level float64) (*Contour, error) {
	cs, err := Contours(a, level)
	if err != nil {
		return nil, err
	}
	if len(cs) == 0 {
		return nil, fmt.Errorf("analysis: no contour at level %g", level)
	}
	longest := cs[0]
	for _, c := range cs[1:] {
		if c.Len() > longest.Len() {
			longest = c
		}
	}
	return longest, nil
}

// Project converts the contour from index space to projection
// coordinates using the coordinate vectors x and y, which are assumed
// to be evenly spaced.
func (c *Contour) Project(x, y []float64) (xs, ys []float64, err error) {
	if len(x) < 2 || len(y) < 2 {
		return nil, nil, fmt.Errorf("analysis: need at least two coordinates in each direction")
	}
	dx := (x[len(x)-1] - x[0]) / float64(len(x)-1)
	dy := (y[len(y)-1] - y[0]) / float64(len(y)-1)
	xs = make([]float64, c.Len())
	ys = make([]float64, c.Len())
	for k := range c.Rows {
		xs[k] = x[0] + c.Cols[k]*dx
		ys[k] = y[0] + c.Rows[k]*dy
	}
	return xs, ys, nil
}

// Resample inserts m evenly spaced points from each vertex to the next,
// both ends included. The result has (n-1)*m+1 points; the final point
// is left at zero.
func Resample(v []float64, m int) []float64 {
	if len(v) < 2 || m < 2 {
		return nil
	}
	o := make([]float64, (len(v)-1)*m+1)
	for k := 0; k < len(v)-1; k++ {
		for l := 0; l < m; l++ {
			o[k*m+l] = v[k] + (v[k+1]-v[k])*float64(l)/float64(m-1)
		}
	}
	return o
}

// LineString returns the projected points as a line.
func LineString(xs, ys []float64) geom.LineString {
	l := make(geom.LineString, len(xs))
	for i := range xs {
		l[i] = geom.Point{X: xs[i], Y: ys[i]}
	}
	return l
}

// WriteContourShapefile writes the line to an ESRI shapefile with the
// attributes name and level. A .prj file holding proj4 is written
// alongside when proj4 is not empty.
func WriteContourShapefile(filename, name string, level float64, line geom.LineString, proj4 string) error {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	e, err := shp.NewEncoderFromFields(base+".shp", goshp.POLYLINE,
		goshp.StringField("name", 50), goshp.FloatField("level", 14, 4))
	if err != nil {
		return fmt.Errorf("analysis: creating shapefile: %v", err)
	}
	if err = e.EncodeFields(geom.MultiLineString{line}, name, level); err != nil {
		e.Close()
		return fmt.Errorf("analysis: writing shapefile: %v", err)
	}
	e.Close()
	if proj4 != "" {
		if err := writeFile(base+".prj", []byte(proj4)); err != nil {
			return err
		}
	}
	return nil
}
