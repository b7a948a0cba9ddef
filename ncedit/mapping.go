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
	"time"
)

// EPSG3413 is the proj4 string of the NSIDC polar stereographic north
// projection used for Greenland grids.
const EPSG3413 = "+init=epsg:3413"

// mappingName returns the grid mapping variable named by any variable
// of f, or "mapping".
func mappingName(f *File) string {
	for _, v := range f.Vars {
		if a, ok := v.Attr("grid_mapping"); ok {
			if s, ok := a.(string); ok && s != "" {
				return s
			}
		}
	}
	return "mapping"
}

// AddEPSG3413Mapping adds EPSG:3413 grid mapping information to f and
// prepends stamp to the history attribute.
func AddEPSG3413Mapping(f *File, stamp string) {
	name := mappingName(f)
	m := f.Var(name)
	if m == nil {
		m = &Variable{Name: name, Data: []int32{0}}
		f.Vars = append(f.Vars, m)
	}
	m.SetAttr("grid_mapping_name", "polar_stereographic")
	m.SetAttr("latitude_of_projection_origin", []float64{90})
	m.SetAttr("straight_vertical_longitude_from_pole", []float64{-45})
	m.SetAttr("standard_parallel", []float64{70})
	m.SetAttr("false_easting", []float64{0})
	m.SetAttr("false_northing", []float64{0})
	m.SetAttr("units", "m")

	f.SetAttr("proj4", EPSG3413)
	f.SetAttr("Conventions", "CF-1.6")
	prependHistory(f, stamp)
}

func prependHistory(f *File, stamp string) {
	if stamp == "" {
		return
	}
	if h, ok := f.Attr("history"); ok {
		if s, ok := h.(string); ok && s != "" {
			stamp += "\n" + s
		}
	}
	f.SetAttr("history", stamp)
}

// HistoryStamp formats a history entry the way NCO tools do.
func HistoryStamp(t time.Time, command string) string {
	return fmt.Sprintf("%s: %s", t.Format(time.ANSIC), command)
}

// AddEPSG3413MappingFile adds EPSG:3413 mapping information to the file
// at path, recording command in its history.
func AddEPSG3413MappingFile(path, command string) error {
	return Rewrite(path, func(f *File) error {
		AddEPSG3413Mapping(f, HistoryStamp(time.Now(), command))
		return nil
	})
}
