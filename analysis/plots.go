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
	"image/color"
	"io"
	"io/ioutil"
	"math"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgeps"
	"gonum.org/v1/plot/vg/vgimg"
	"gonum.org/v1/plot/vg/vgpdf"
	"gonum.org/v1/plot/vg/vgsvg"
)

// PrintMode sets the size of a figure and its fonts.
type PrintMode struct {
	Name     string
	Width    vg.Length
	Height   vg.Length
	FontSize vg.Length
}

var goldenMean = (math.Sqrt(5) - 1) / 2

var printModes = map[string]struct {
	width, factor, font float64
}{
	"onecol":       {3.32, 0.8, 8},
	"medium":       {3.32, 0.95, 8},
	"twocol":       {6.64, 0.75, 8},
	"presentation": {6.64, 0.95, 10},
	"height":       {3.32, goldenMean, 8},
}

// GetPrintMode returns the print mode called name. Unknown names fall
// back to "onecol" with a warning.
func GetPrintMode(name string, log logrus.FieldLogger) PrintMode {
	m, ok := printModes[name]
	if !ok {
		if log != nil {
			log.Warnf("print mode %q not recognized, using onecol", name)
		}
		name = "onecol"
		m = printModes[name]
	}
	w := vg.Length(m.width) * vg.Inch
	return PrintMode{
		Name:     name,
		Width:    w,
		Height:   w * vg.Length(m.factor),
		FontSize: vg.Points(m.font),
	}
}

func (m PrintMode) textStyle() (draw.TextStyle, error) {
	font, err := vg.MakeFont(plot.DefaultFont, m.FontSize)
	if err != nil {
		return draw.TextStyle{}, fmt.Errorf("analysis: loading font: %v", err)
	}
	return draw.TextStyle{Color: color.Black, Font: font}, nil
}

// newPlot returns a plot whose fonts match the print mode.
func (m PrintMode) newPlot() (*plot.Plot, error) {
	p, err := plot.New()
	if err != nil {
		return nil, err
	}
	ts, err := m.textStyle()
	if err != nil {
		return nil, err
	}
	p.Title.TextStyle = ts
	p.X.Label.TextStyle = ts
	p.X.Tick.Label = ts
	p.Y.Label.TextStyle = ts
	p.Y.Tick.Label = ts
	p.Legend = plot.Legend{
		TextStyle:      ts,
		Top:            true,
		ThumbnailWidth: .15 * vg.Inch,
		Padding:        0.75 * vg.Millimeter,
	}
	return p, nil
}

var texReplacer = strings.NewReplacer(
	`$\alpha$`, "α",
	`$\delta$`, "δ",
	`a$^{-1}$`, "a⁻¹",
)

// plotText converts the TeX fragments used in labels to plain text.
func plotText(s string) string { return texReplacer.Replace(s) }

// markers are the glyphs used for successive experiments.
var markers = []draw.GlyphDrawer{
	draw.CrossGlyph{},
	draw.PyramidGlyph{},
	draw.RingGlyph{},
	draw.BoxGlyph{},
	draw.SquareGlyph{},
	draw.PlusGlyph{},
	draw.CircleGlyph{},
}

var obsGrey = color.Gray{Y: 165}

// Figure is something that can be drawn on a canvas.
type Figure interface {
	Draw(c draw.Canvas)
}

// panels draws figures stacked vertically with equal heights.
type panels []Figure

func (ps panels) Draw(c draw.Canvas) {
	h := (c.Max.Y - c.Min.Y) / vg.Length(len(ps))
	for i, p := range ps {
		top := vg.Length(i) * h
		bottom := vg.Length(len(ps)-1-i) * h
		p.Draw(draw.Crop(c, 0, 0, bottom, -top))
	}
}

type canvasWriter interface {
	vg.CanvasSizer
	io.WriterTo
}

func newCanvas(format string, w, h vg.Length, dpi int) (canvasWriter, error) {
	switch strings.ToLower(format) {
	case "png":
		return vgimg.PngCanvas{Canvas: vgimg.NewWith(vgimg.UseWH(w, h), vgimg.UseDPI(dpi))}, nil
	case "jpg", "jpeg":
		return vgimg.JpegCanvas{Canvas: vgimg.NewWith(vgimg.UseWH(w, h), vgimg.UseDPI(dpi))}, nil
	case "tif", "tiff":
		return vgimg.TiffCanvas{Canvas: vgimg.NewWith(vgimg.UseWH(w, h), vgimg.UseDPI(dpi))}, nil
	case "pdf":
		return vgpdf.New(w, h), nil
	case "svg":
		return vgsvg.New(w, h), nil
	case "eps":
		return vgeps.New(w, h), nil
	}
	return nil, fmt.Errorf("analysis: unsupported output format %q", format)
}

// SaveFigure draws f at the size of the print mode and writes it to
// base.<format> for each format. Raster formats use the given DPI.
// It returns the names of the files written.
func SaveFigure(f Figure, mode PrintMode, base string, formats []string, dpi int) ([]string, error) {
	var files []string
	for _, format := range formats {
		format = strings.TrimSpace(format)
		if format == "" {
			continue
		}
		c, err := newCanvas(format, mode.Width, mode.Height, dpi)
		if err != nil {
			return files, err
		}
		f.Draw(draw.New(c))
		name := base + "." + format
		w, err := os.Create(name)
		if err != nil {
			return files, fmt.Errorf("analysis: creating figure: %v", err)
		}
		if _, err = c.WriteTo(w); err != nil {
			w.Close()
			return files, fmt.Errorf("analysis: writing %s: %v", name, err)
		}
		if err = w.Close(); err != nil {
			return files, fmt.Errorf("analysis: writing %s: %v", name, err)
		}
		files = append(files, name)
	}
	return files, nil
}

func writeFile(name string, b []byte) error {
	if err := ioutil.WriteFile(name, b, 0644); err != nil {
		return fmt.Errorf("analysis: writing %s: %v", name, err)
	}
	return nil
}

// positive returns the points with positive y values, which are the
// only ones that can be drawn on a logarithmic axis.
func positive(x, y []float64) plotter.XYs {
	var o plotter.XYs
	for i := range x {
		if y[i] > 0 {
			o = append(o, struct{ X, Y float64 }{x[i], y[i]})
		}
	}
	return o
}

// HistogramPlot plots the histogram counts of the observation and the
// experiments against the bin centers on a logarithmic y axis from 1
// to 1e6. labels, if not empty, replaces the legend entries in order.
// Otherwise experiments are labeled by the short parameters in keys.
func HistogramPlot(obs *Observation, exps []*Experiment, keys, labels []string, histmax float64, mode PrintMode) (*plot.Plot, error) {
	p, err := mode.newPlot()
	if err != nil {
		return nil, err
	}
	x := BinCenters(obs.Edges)
	legend := []string{obs.Title}
	for _, e := range exps {
		legend = append(legend, plotText(e.Label(keys)))
	}
	for i := range legend {
		if i < len(labels) {
			legend[i] = labels[i]
		}
	}

	s, err := plotter.NewScatter(positive(x, obs.N))
	if err != nil {
		return nil, err
	}
	s.Shape = draw.CircleGlyph{}
	s.Color = obsGrey
	s.Radius = vg.Points(2)
	p.Add(s)
	p.Legend.Add(legend[0], s)
	for i, e := range exps {
		s, err := plotter.NewScatter(positive(x, e.N))
		if err != nil {
			return nil, err
		}
		s.Shape = markers[i%len(markers)]
		s.Color = plotutil.Color(i)
		s.Radius = vg.Points(2)
		p.Add(s)
		p.Legend.Add(legend[i+1], s)
	}
	p.X.Label.Text = plotText("ice surface velocity, m a$^{-1}$")
	p.Y.Label.Text = "number of grid cells"
	p.X.Min, p.X.Max = 0, histmax
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{}
	p.Y.Min, p.Y.Max = 1, 1e6
	return p, nil
}

func series(v []float64) plotter.XYs {
	o := make(plotter.XYs, 0, len(v))
	for i, y := range v {
		if math.IsNaN(y) || math.IsInf(y, 0) {
			continue
		}
		o = append(o, struct{ X, Y float64 }{float64(i), y})
	}
	return o
}

// PSDPlot draws the power spectra of the observed and modeled values
// along a contour above the values themselves. Each experiment's
// legend entry carries its regression and Pearson correlation with the
// observation.
func PSDPlot(obs *Observation, obsValues []float64, exps []*Experiment, nfft int, mode PrintMode) (Figure, error) {
	top, err := mode.newPlot()
	if err != nil {
		return nil, err
	}
	bottom, err := mode.newPlot()
	if err != nil {
		return nil, err
	}
	addLine := func(p *plot.Plot, xy plotter.XYs, c color.Color, label string) error {
		l, err := plotter.NewLine(xy)
		if err != nil {
			return err
		}
		l.Color = c
		p.Add(l)
		if label != "" {
			p.Legend.Add(label, l)
		}
		return nil
	}
	spectrum := func(v []float64) plotter.XYs {
		s := PSD(v, nfft, 2)
		db := s.DB()
		var xy plotter.XYs
		for k := range s.Freq {
			if !math.IsInf(db[k], 0) && !math.IsNaN(db[k]) {
				xy = append(xy, struct{ X, Y float64 }{s.Freq[k], db[k]})
			}
		}
		return xy
	}
	if err = addLine(top, spectrum(obsValues), obsGrey, obs.Title); err != nil {
		return nil, err
	}
	if err = addLine(bottom, series(obsValues), obsGrey, ""); err != nil {
		return nil, err
	}
	for i, e := range exps {
		label := fmt.Sprintf("%s: linregress r = %1.4f, pearson r = %1.4f",
			e.Title, RegressionR(obsValues, e.ContourValues), PearsonR(obsValues, e.ContourValues))
		if err = addLine(top, spectrum(e.ContourValues), plotutil.Color(i), label); err != nil {
			return nil, err
		}
		if err = addLine(bottom, series(e.ContourValues), plotutil.Color(i), ""); err != nil {
			return nil, err
		}
	}
	top.X.Label.Text = "Frequency"
	top.Y.Label.Text = "Power Spectral Density (dB/Hz)"
	bottom.X.Label.Text = "point along contour"
	bottom.Y.Label.Text = obs.Units
	bottom.Y.Min, bottom.Y.Max = 0, 50
	return panels{top, bottom}, nil
}
