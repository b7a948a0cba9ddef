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
	"github.com/icesheet/pismrun"
	"github.com/sirupsen/logrus"
)

// PostExclude lists the variables dropped from PISM output before
// archiving.
var PostExclude = []string{"enthalpy", "litho_temp"}

// PostAttributes returns the attribute edits made by post-processing.
func PostAttributes(p pismrun.PostSpec) []AttributeEdit {
	grid := []float32{float32(p.Grid)}
	return []AttributeEdit{
		{Var: "run_stats", Name: "bed_data_set", Mode: 'o', Value: p.BedDataSet},
		{Var: "run_stats", Name: "grid_dx_meters", Mode: 'o', Value: grid},
		{Var: "run_stats", Name: "grid_dy_meters", Mode: 'o', Value: grid},
		{Var: "uflux", Name: "long_name", Mode: 'o', Value: p.FluxLongName("x")},
		{Var: "vflux", Name: "long_name", Mode: 'o', Value: p.FluxLongName("y")},
		{Var: "uflux", Name: "units", Mode: 'o', Value: "m2 year-1"},
		{Var: "vflux", Name: "units", Mode: 'o', Value: "m2 year-1"},
		{Var: "sliding_r", Name: "units", Mode: 'o', Value: "1"},
		{Var: "tau_r", Name: "units", Mode: 'o', Value: "1"},
		{Var: "tau_rel", Name: "units", Mode: 'o', Value: "1"},
	}
}

// Post applies the post-processing of a PISM output file in place:
// it drops PostExclude, adds the EPSG:3413 mapping, derives the
// PostRecipe variables and sets PostAttributes. Attribute edits of
// variables that are not in the file are skipped.
func Post(path string, p pismrun.PostSpec, stamp string, log logrus.FieldLogger) error {
	if log == nil {
		log = logrus.StandardLogger()
	}
	steps, err := ParseRecipe(PostRecipe)
	if err != nil {
		return err
	}
	return Rewrite(path, func(f *File) error {
		if n := Exclude(f, PostExclude...); n > 0 {
			log.WithField("file", path).Debugf("dropped %d variables", n)
		}
		AddEPSG3413Mapping(f, stamp)
		if _, err := Derive(f, steps, log.WithField("file", path)); err != nil {
			return err
		}
		var edits []AttributeEdit
		for _, e := range PostAttributes(p) {
			if f.Var(e.Var) == nil {
				log.WithField("file", path).Warnf("no variable %s, not setting %s", e.Var, e.Name)
				continue
			}
			edits = append(edits, e)
		}
		return SetAttributes(f, edits...)
	})
}
