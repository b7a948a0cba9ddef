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
	"strings"
	"unicode"

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// ShortVariableNames gives the axis names of common variables.
var ShortVariableNames = map[string]string{
	"velsurf_mag": "speed",
	"velbase_mag": "sliding speed",
}

// FluxGate is a profile across which model output is compared with
// observations.
type FluxGate struct {
	Name      string
	ID        int
	Axis      []float64
	AxisUnits string
	AxisName  string

	Variable      string
	VariableUnits string

	Observations *GateValues
	Experiments  []*GateValues
}

// GateValues are the values of a variable along one flux gate. Error
// is nil when the data has no error estimate.
type GateValues struct {
	Title  string
	Values []float64
	Error  []float64
	Config map[string]string
}

// ProfileData is a variable read from a file of values along profiles,
// with the profile as the first dimension.
type ProfileData struct {
	Title    string
	Variable string
	Units    string
	Values   *sparse.DenseArray
	Error    *sparse.DenseArray
	Config   map[string]string
}

// errorVariable holds observation uncertainty in profile files.
const errorVariable = "uvelsurf_error"

// ReadProfileData reads variable from the profile file at path. The
// pism_config attributes are read when experiment is true and the error
// estimate otherwise.
func ReadProfileData(path, variable string, experiment bool) (*ProfileData, error) {
	d, err := OpenDataset(path)
	if err != nil {
		return nil, err
	}
	defer d.Close()
	v, err := d.FindVariable(variable)
	if err != nil {
		return nil, err
	}
	values, err := d.ReadSqueezed(v)
	if err != nil {
		return nil, err
	}
	p := &ProfileData{
		Title:    d.Title(),
		Variable: v,
		Units:    d.Units(v),
		Values:   values,
	}
	if experiment {
		if p.Config, err = d.Config("pism_config"); err != nil {
			return nil, err
		}
	} else if d.HasVariable(errorVariable) {
		if p.Error, err = d.ReadSqueezed(errorVariable); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// ReadFluxGates reads the gates defined in the profile file at path.
func ReadFluxGates(path string) ([]*FluxGate, error) {
	d, err := OpenDataset(path)
	if err != nil {
		return nil, err
	}
	defer d.Close()
	names, err := d.ReadStrings("profile_name")
	if err != nil {
		return nil, err
	}
	axis, err := d.Read("profile")
	if err != nil {
		return nil, err
	}
	units := d.Units("profile")
	longName, _ := d.StringAttribute("profile", "long_name")
	gates := make([]*FluxGate, len(names))
	for id, name := range names {
		a, err := profileRow(axis, id, len(names))
		if err != nil {
			return nil, err
		}
		gates[id] = &FluxGate{
			Name:      name,
			ID:        id,
			Axis:      a,
			AxisUnits: units,
			AxisName:  longName,
		}
	}
	return gates, nil
}

// profileRow returns the values of profile k out of n. A 1-D array is
// taken to hold a single profile.
func profileRow(a *sparse.DenseArray, k, n int) ([]float64, error) {
	if len(a.Shape) == 1 && n == 1 {
		return a.Elements, nil
	}
	if len(a.Shape) != 2 || a.Shape[0] != n {
		return nil, fmt.Errorf("analysis: profile data has shape %v, want %d profiles", a.Shape, n)
	}
	w := a.Shape[1]
	o := make([]float64, w)
	copy(o, a.Elements[k*w:(k+1)*w])
	return o, nil
}

func (g *FluxGate) values(d *ProfileData, n int) (*GateValues, error) {
	v, err := profileRow(d.Values, g.ID, n)
	if err != nil {
		return nil, fmt.Errorf("%v in %s", err, d.Title)
	}
	gv := &GateValues{Title: d.Title, Values: v, Config: d.Config}
	if d.Error != nil {
		if gv.Error, err = profileRow(d.Error, g.ID, n); err != nil {
			return nil, fmt.Errorf("%v in %s", err, d.Title)
		}
	}
	if g.Variable == "" {
		g.Variable, g.VariableUnits = d.Variable, d.Units
	}
	return gv, nil
}

// AddObservations sets the observations of gate g from d, where
// n is the number of gates.
func (g *FluxGate) AddObservations(d *ProfileData, n int, log logrus.FieldLogger) error {
	if g.Observations != nil {
		log.Warnf("flux gate %s already has observations, overriding", g.Name)
	}
	gv, err := g.values(d, n)
	if err != nil {
		return err
	}
	g.Observations = gv
	log.WithField("gate", g.Name).Debug("added observations")
	return nil
}

// AddExperiment adds the values of d along gate g.
func (g *FluxGate) AddExperiment(d *ProfileData, n int, log logrus.FieldLogger) error {
	gv, err := g.values(d, n)
	if err != nil {
		return err
	}
	g.Experiments = append(g.Experiments, gv)
	log.WithField("gate", g.Name).Debug("added experiment")
	return nil
}

// ExperimentLabel returns "abbr=value" pairs for the pism_config
// parameters in params, joined by commas.
func ExperimentLabel(config map[string]string, params []string, abbr map[string]string) string {
	var s []string
	for _, p := range params {
		k := p
		if a, ok := abbr[p]; ok {
			k = a
		}
		s = append(s, k+"="+config[p])
	}
	return strings.Join(s, ", ")
}

// errorPoints holds the observations and their symmetric errors.
type errorPoints struct {
	plotter.XYs
	plotter.YErrors
}

func profileXYs(x, y []float64) plotter.XYs {
	var o plotter.XYs
	for i := range x {
		if i < len(y) && !math.IsNaN(y[i]) {
			o = append(o, struct{ X, Y float64 }{x[i], y[i]})
		}
	}
	return o
}

// Plot draws the observations in grey, with error bars if they are
// known, and each experiment as a line with markers.
func (g *FluxGate) Plot(params []string, abbr map[string]string, mode PrintMode) (*plot.Plot, error) {
	p, err := mode.newPlot()
	if err != nil {
		return nil, err
	}
	p.Title.Text = g.Name
	if o := g.Observations; o != nil {
		if o.Error != nil {
			ep := errorPoints{}
			for i := range g.Axis {
				if i >= len(o.Values) || math.IsNaN(o.Values[i]) {
					continue
				}
				ep.XYs = append(ep.XYs, struct{ X, Y float64 }{g.Axis[i], o.Values[i]})
				ep.YErrors = append(ep.YErrors, struct{ Low, High float64 }{o.Error[i], o.Error[i]})
			}
			eb, err := plotter.NewYErrorBars(ep)
			if err != nil {
				return nil, err
			}
			eb.Color = obsGrey
			p.Add(eb)
		}
		l, s, err := plotter.NewLinePoints(profileXYs(g.Axis, o.Values))
		if err != nil {
			return nil, err
		}
		l.Color, s.Color = obsGrey, obsGrey
		s.Shape = draw.CircleGlyph{}
		s.Radius = vg.Points(2)
		p.Add(l, s)
		p.Legend.Add("observed", l, s)
	}
	for i, e := range g.Experiments {
		l, s, err := plotter.NewLinePoints(profileXYs(g.Axis, e.Values))
		if err != nil {
			return nil, err
		}
		c := plotutil.Color(i)
		l.Color, s.Color = c, c
		s.Shape = draw.CircleGlyph{}
		s.Radius = vg.Points(2)
		p.Add(l, s)
		p.Legend.Add(plotText(ExperimentLabel(e.Config, params, abbr)), l, s)
	}
	p.X.Label.Text = fmt.Sprintf("%s (%s)", g.AxisName, g.AxisUnits)
	name := g.Variable
	if short, ok := ShortVariableNames[name]; ok {
		name = short
	}
	p.Y.Label.Text = fmt.Sprintf("%s (%s)", name, g.VariableUnits)
	return p, nil
}

var ligatures = strings.NewReplacer(
	"æ", "ae", "Æ", "AE",
	"ø", "o", "Ø", "O",
	"ß", "ss", "ð", "d", "þ", "th",
)

// ASCIIName folds s to ASCII by removing accents and spelling out
// ligatures. Other non-ASCII characters are dropped.
func ASCIIName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, ligatures.Replace(s))
	if err != nil {
		folded = s
	}
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, folded)
}

// GateFileBase returns the output file name, without extension, for a
// gate: its ASCII name with spaces replaced by underscores.
func GateFileBase(name string) string {
	return strings.Replace(ASCIIName(name), " ", "_", -1)
}
