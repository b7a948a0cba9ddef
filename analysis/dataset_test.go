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
	"path/filepath"
	"reflect"
	"testing"
)

type attrs = [][2]interface{}

func writeDatasetFixture(t *testing.T, path string) {
	ncFile{
		dims:    []string{"time", "y", "x", "nchars"},
		lengths: []int{0, 2, 3, 4},
		nrec:    1,
		vars: []ncVar{
			{name: "x", dims: []string{"x"}, data: []float64{0, 1000, 2000}, attrs: attrs{{"units", "m"}}},
			{name: "y", dims: []string{"y"}, data: []float64{0, 1000}, attrs: attrs{{"units", "m"}}},
			{name: "time", dims: []string{"time"}, data: []float64{0}},
			{name: "csurf", dims: []string{"time", "y", "x"}, data: []float32{1, 2, 3, 4, -2e9, 6},
				attrs: attrs{
					{"units", "m year-1"},
					{"standard_name", "land_ice_surface_velocity"},
					{"_FillValue", []float32{-2e9}},
				}},
			{name: "pism_config", attrs: attrs{
				{"sia_enhancement_factor", []float64{3}},
				{"pseudo_plastic_q", []float64{0.25}},
				{"stress_balance_model", "ssa+sia"},
			}},
			{name: "name", dims: []string{"y", "nchars"}, data: "ab\x00\x00cd e"},
		},
		global: attrs{{"proj4", "+init=epsg:3413"}},
	}.write(t, path)
}

func TestDataset(t *testing.T) {
	dir, clean := tempDir(t)
	defer clean()
	path := filepath.Join(dir, "g5km.nc")
	writeDatasetFixture(t, path)

	d, err := OpenDataset(path)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	if d.Title() != "g5km.nc" {
		t.Errorf("title: have %q", d.Title())
	}
	for _, name := range []string{"csurf", "land_ice_surface_velocity"} {
		v, err := d.FindVariable(name)
		if err != nil {
			t.Fatal(err)
		}
		if v != "csurf" {
			t.Errorf("%s: found %q, want csurf", name, v)
		}
	}
	if _, err := d.FindVariable("velsurf_mag"); err == nil {
		t.Error("expected an error for a missing variable")
	}
	if have, want := d.Shape("csurf"), []int{1, 2, 3}; !reflect.DeepEqual(have, want) {
		t.Errorf("shape: have %v, want %v", have, want)
	}
	a, err := d.ReadSqueezed("csurf")
	if err != nil {
		t.Fatal(err)
	}
	if want := []int{2, 3}; !reflect.DeepEqual(a.Shape, want) {
		t.Errorf("squeezed shape: have %v, want %v", a.Shape, want)
	}
	for i, want := range []float64{1, 2, 3, 4, math.NaN(), 6} {
		have := a.Elements[i]
		if math.IsNaN(want) != math.IsNaN(have) || (!math.IsNaN(want) && have != want) {
			t.Errorf("element %d: have %g, want %g", i, have, want)
		}
	}
	if u := d.Units("csurf"); u != "m year-1" {
		t.Errorf("units: have %q", u)
	}
	config, err := d.Config("pism_config")
	if err != nil {
		t.Fatal(err)
	}
	wantConfig := map[string]string{
		"sia_enhancement_factor": "3.0",
		"pseudo_plastic_q":       "0.25",
		"stress_balance_model":   "ssa+sia",
	}
	if !reflect.DeepEqual(config, wantConfig) {
		t.Errorf("config: have %v, want %v", config, wantConfig)
	}
	if p := d.Proj4(); p != "+init=epsg:3413" {
		t.Errorf("proj4: have %q", p)
	}
	x, y, err := d.Coordinates()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(x, []float64{0, 1000, 2000}) || !reflect.DeepEqual(y, []float64{0, 1000}) {
		t.Errorf("coordinates: have %v, %v", x, y)
	}
	names, err := d.ReadStrings("name")
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"ab", "cd e"}; !reflect.DeepEqual(names, want) {
		t.Errorf("strings: have %q, want %q", names, want)
	}
	if _, err := d.ReadStrings("x"); err == nil {
		t.Error("expected an error reading a numeric variable as strings")
	}
}

func TestOpenDatasetMissing(t *testing.T) {
	if _, err := OpenDataset("/nonexistent/file.nc"); err == nil {
		t.Error("expected an error")
	}
}
