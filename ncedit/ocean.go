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

package ncedit

import (
	"fmt"
	"os"

	"github.com/ctessum/unit"
	"github.com/sirupsen/logrus"
)

const (
	iceDensity     = 910.0 // kg m-3
	secondsPerYear = daysPerYear * 86400
)

// OceanOptions configures OceanForcing.
type OceanOptions struct {
	// In holds the x, y and time coordinates of the forcing. Out is
	// the file written; when it is empty or equal to In the variables
	// are added to In.
	In, Out string

	// MeltBefore is the basal mass flux [kg m-2 yr-1] before
	// ChangeDate and MeltAfter the flux from ChangeDate on.
	MeltBefore, MeltAfter float64
	ChangeDate            string

	Log logrus.FieldLogger
}

func (o *OceanOptions) defaults() {
	if o.MeltBefore == 0 {
		o.MeltBefore = 228e3 * 0.91
	}
	if o.MeltAfter == 0 {
		o.MeltAfter = 285e3 * 0.91
	}
	if o.ChangeDate == "" {
		o.ChangeDate = "1997-1-31"
	}
	if o.Log == nil {
		o.Log = logrus.StandardLogger()
	}
}

// IceEquivalent converts a basal mass flux in kg m-2 yr-1 to a melt
// rate in meters of ice per year.
func IceEquivalent(flux float64) (float64, error) {
	massFlux := unit.New(flux/secondsPerYear, unit.Dimensions{unit.MassDim: 1, unit.LengthDim: -2, unit.TimeDim: -1})
	density := unit.New(iceDensity, unit.Dimensions{unit.MassDim: 1, unit.LengthDim: -3})
	rate := unit.Div(massFlux, density)
	if !rate.Dimensions().Matches(unit.Dimensions{unit.LengthDim: 1, unit.TimeDim: -1}) {
		return 0, fmt.Errorf("ncedit: melt rate has units %v, want m s-1", rate.Dimensions())
	}
	return rate.Value() * secondsPerYear, nil
}

// copyVar copies variable name and its dimensions from src to dst.
func copyVar(dst, src *File, name string) error {
	v := src.Var(name)
	if v == nil {
		return fmt.Errorf("ncedit: no variable %s", name)
	}
	for _, d := range v.Dims {
		n, record, err := src.dimLength(d)
		if err != nil {
			return err
		}
		if record {
			dst.NumRecs = n
			n = 0
		}
		if err := dst.AddDim(d, n); err != nil {
			return err
		}
	}
	c := *v
	c.Attrs = append([]Attribute(nil), v.Attrs...)
	dst.Vars = append(dst.Vars, &c)
	return nil
}

// putVar creates or replaces a float variable.
func putVar(f *File, name string, dims []string, units string, data []float32) {
	v := f.Var(name)
	if v == nil {
		v = &Variable{Name: name}
		f.Vars = append(f.Vars, v)
	}
	v.Dims = dims
	v.Data = data
	v.Char = false
	v.SetAttr("units", units)
}

func stringAttr(v *Variable, name string) string {
	a, _ := v.Attr(name)
	s, _ := a.(string)
	return s
}

// OceanForcing writes a spatially uniform basal mass flux
// (shelfbmassflux) and a zero basal temperature (shelfbtemp) for every
// time of the input. The flux is MeltBefore before ChangeDate and
// MeltAfter from then on.
func OceanForcing(o OceanOptions) error {
	o.defaults()
	in, err := ReadFile(o.In)
	if err != nil {
		return err
	}
	tv, xv, yv := in.Var("time"), in.Var("x"), in.Var("y")
	if tv == nil || xv == nil || yv == nil {
		return fmt.Errorf("ncedit: %s needs time, x and y variables", o.In)
	}
	if len(tv.Dims) != 1 || len(xv.Dims) != 1 || len(yv.Dims) != 1 {
		return fmt.Errorf("ncedit: time, x and y in %s must be one-dimensional", o.In)
	}
	units := stringAttr(tv, "units")
	calendar := stringAttr(tv, "calendar")
	axis, err := newTimeAxis(units, calendar)
	if err != nil {
		return err
	}
	change, err := axis.value(o.ChangeDate)
	if err != nil {
		return err
	}
	times, err := in.Float64s("time")
	if err != nil {
		return err
	}
	nx, err := in.Size(xv)
	if err != nil {
		return err
	}
	ny, err := in.Size(yv)
	if err != nil {
		return err
	}

	n := nx * ny
	flux := make([]float32, len(times)*n)
	temp := make([]float32, len(times)*n)
	after := 0
	for t, tt := range times {
		b := o.MeltBefore
		if tt >= change {
			b = o.MeltAfter
			after++
		}
		for i := t * n; i < (t+1)*n; i++ {
			flux[i] = float32(b)
		}
	}
	for _, b := range []float64{o.MeltBefore, o.MeltAfter} {
		rate, err := IceEquivalent(b)
		if err != nil {
			return err
		}
		o.Log.WithField("flux", b).Infof("basal melt rate %.1f m/yr ice equivalent", rate)
	}
	o.Log.WithFields(logrus.Fields{
		"times":  len(times),
		"after":  after,
		"change": o.ChangeDate,
	}).Info("setting ocean forcing")

	dims := []string{tv.Dims[0], yv.Dims[0], xv.Dims[0]}
	edit := func(f *File) error {
		putVar(f, "shelfbmassflux", dims, "kg m-2 yr-1", flux)
		putVar(f, "shelfbtemp", dims, "deg_C", temp)
		return nil
	}
	if o.Out == "" || os.ExpandEnv(o.Out) == os.ExpandEnv(o.In) {
		return Rewrite(o.In, edit)
	}

	out := &File{}
	names := []string{"time", "x", "y"}
	if b := stringAttr(tv, "bounds"); b != "" && in.Var(b) != nil {
		names = append(names, b)
	}
	if m := mappingName(in); in.Var(m) != nil {
		names = append(names, m)
	}
	for _, name := range names {
		if err := copyVar(out, in, name); err != nil {
			return err
		}
	}
	if p, ok := in.Attr("proj4"); ok {
		out.SetAttr("proj4", p)
	}
	if err := edit(out); err != nil {
		return err
	}
	return out.WriteFile(os.ExpandEnv(o.Out))
}
