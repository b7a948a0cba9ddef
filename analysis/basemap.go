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

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/carto"
	"github.com/ctessum/sparse"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// MapField holds how a field is drawn on a map.
type MapField struct {
	// Log draws the base-10 logarithm of the values.
	Log      bool
	Min, Max float64
}

// MapFields lists the fields that Basemap can draw.
var MapFields = map[string]MapField{
	"velsurf_mag": {Log: true, Min: 1, Max: 6e3},
	"velbase_mag": {Log: true, Min: 1, Max: 6e3},
	"surfvelmag":  {Log: true, Min: 1, Max: 6e3},
	"bmelt":       {Log: true, Min: 0.9e-4, Max: 1.1},
	"bwat":        {Log: true, Min: 0.9e-4, Max: 1.1},
	"usurf":       {Min: 1, Max: 3500},
	"mask":        {Min: 0, Max: 4},
	"tillwat":     {Min: 0, Max: 2},
	"bwprel":      {Min: 0, Max: 1},
}

const (
	iceDensity = 910.0 // kg m-3
	gravity    = 9.81  // m s-2

	groundedIce = 2
)

func (f MapField) scale(v float64) float64 {
	v = math.Max(f.Min, math.Min(f.Max, v))
	if f.Log {
		return math.Log10(v)
	}
	return v
}

// Transpose returns the transpose of the 2-D array a.
func Transpose(a *sparse.DenseArray) *sparse.DenseArray {
	m, n := a.Shape[0], a.Shape[1]
	o := sparse.ZerosDense(n, m)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			o.Elements[j*m+i] = a.Elements[i*n+j]
		}
	}
	return o
}

// MapData is a field prepared for drawing on a map.
type MapData struct {
	Field  string
	Units  string
	X, Y   []float64
	Values *sparse.DenseArray
	// Mask is true for cells that are not drawn.
	Mask []bool
}

// ReadMapData reads field from the dataset. surfvelmag is read on the
// x1 and y1 coordinates and masked where there is no ice. bwprel is the
// basal water pressure relative to the ice overburden pressure. All
// other fields are masked outside grounded ice.
func ReadMapData(d *Dataset, field string) (*MapData, error) {
	if _, ok := MapFields[field]; !ok {
		return nil, fmt.Errorf("analysis: invalid map field %q", field)
	}
	xName, yName := "x", "y"
	if field == "surfvelmag" {
		xName, yName = "x1", "y1"
	}
	xa, err := d.Read(xName)
	if err != nil {
		return nil, err
	}
	ya, err := d.Read(yName)
	if err != nil {
		return nil, err
	}
	m := &MapData{Field: field, X: xa.Elements, Y: ya.Elements}

	read2D := func(v string) (*sparse.DenseArray, error) {
		a, err := d.ReadSqueezed(v)
		if err != nil {
			return nil, err
		}
		if len(a.Shape) != 2 {
			return nil, fmt.Errorf("analysis: %s in %s has shape %v, want 2-D", v, d.Path, a.Shape)
		}
		return a, nil
	}
	var thk *sparse.DenseArray
	if field == "bwprel" || field == "surfvelmag" {
		if thk, err = read2D("thk"); err != nil {
			return nil, err
		}
	}
	switch field {
	case "bwprel":
		bwp, err := read2D("bwp")
		if err != nil {
			return nil, err
		}
		m.Values = sparse.ZerosDense(bwp.Shape...)
		m.Mask = make([]bool, len(bwp.Elements))
		for i, p := range bwp.Elements {
			t := thk.Elements[i]
			m.Mask[i] = t == 0
			m.Values.Elements[i] = p / (iceDensity * gravity * t)
		}
		m.Units = "1"
	case "surfvelmag":
		if m.Values, err = read2D(field); err != nil {
			return nil, err
		}
		m.Values = Transpose(m.Values)
		thk = Transpose(thk)
		m.Mask = make([]bool, len(m.Values.Elements))
		for i, t := range thk.Elements {
			m.Mask[i] = t == 0
		}
		m.Units = d.Units(field)
	default:
		if m.Values, err = read2D(field); err != nil {
			return nil, err
		}
		m.Units = d.Units(field)
		m.Mask = make([]bool, len(m.Values.Elements))
	}
	if field != "surfvelmag" {
		mask, err := read2D("mask")
		if err != nil {
			return nil, err
		}
		for i, v := range mask.Elements {
			m.Mask[i] = m.Mask[i] || v != groundedIce
		}
	}
	for i, v := range m.Values.Elements {
		m.Mask[i] = m.Mask[i] || math.IsNaN(v)
	}
	if m.Values.Shape[0] != len(m.Y) || m.Values.Shape[1] != len(m.X) {
		return nil, fmt.Errorf("analysis: %s has shape %v but the grid is %dx%d",
			field, m.Values.Shape, len(m.Y), len(m.X))
	}
	return m, nil
}

func spacing(c []float64) float64 {
	if len(c) < 2 {
		return 1
	}
	return math.Abs(c[1] - c[0])
}

// Basemap draws the field as colored grid cells with a color legend
// below the map and writes it as a PNG image.
func Basemap(m *MapData, filename string, dpi int) error {
	settings := MapFields[m.Field]
	const (
		figWidth = 6 * vg.Inch
		legendH  = 0.6 * vg.Inch
	)
	xmin, xmax := minMax(m.X)
	ymin, ymax := minMax(m.Y)
	width, height := 1.1*(xmax-xmin), 1.05*(ymax-ymin)
	if width <= 0 || height <= 0 {
		return fmt.Errorf("analysis: %s has an empty domain", m.Field)
	}
	cx, cy := (xmin+xmax)/2, (ymin+ymax)/2
	N, S := cy+height/2, cy-height/2
	E, W := cx+width/2, cx-width/2
	figHeight := figWidth*vg.Length(height/width) + legendH

	c := vgimg.NewWith(vgimg.UseWH(figWidth, figHeight), vgimg.UseDPI(dpi))
	dc := draw.New(c)
	mapc := carto.NewCanvas(N, S, E, W, draw.Crop(dc, 0, 0, legendH, 0))
	legendc := draw.Crop(dc, vg.Inch, -vg.Inch, 0, legendH-figHeight)

	cmap := carto.NewColorMap(carto.Linear)
	cmap.AddArray([]float64{settings.scale(settings.Min), settings.scale(settings.Max)})
	cmap.Set()

	dx, dy := spacing(m.X)/2, spacing(m.Y)/2
	nx := len(m.X)
	ls := draw.LineStyle{Width: 0}
	for i, y := range m.Y {
		for j, x := range m.X {
			k := i*nx + j
			if m.Mask[k] {
				continue
			}
			cell := geom.Polygon{{
				{X: x - dx, Y: y - dy},
				{X: x + dx, Y: y - dy},
				{X: x + dx, Y: y + dy},
				{X: x - dx, Y: y + dy},
				{X: x - dx, Y: y - dy},
			}}
			col := cmap.GetColor(settings.scale(m.Values.Elements[k]))
			ls.Color = col
			if err := mapc.DrawVector(cell, col, ls, draw.GlyphStyle{}); err != nil {
				return fmt.Errorf("analysis: drawing %s: %v", m.Field, err)
			}
		}
	}
	label := fmt.Sprintf("%s (%s)", m.Field, m.Units)
	if settings.Log {
		label = "log10 " + label
	}
	if err := cmap.Legend(&legendc, label); err != nil {
		return fmt.Errorf("analysis: drawing legend: %v", err)
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("analysis: creating %s: %v", filename, err)
	}
	defer f.Close()
	if _, err = (vgimg.PngCanvas{Canvas: c}).WriteTo(f); err != nil {
		return fmt.Errorf("analysis: writing %s: %v", filename, err)
	}
	return nil
}

func minMax(v []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, x := range v {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return lo, hi
}

// BasemapFile returns the image name for a field of the file root.nc.
func BasemapFile(root, field string) string {
	return root + "-" + field + ".png"
}
