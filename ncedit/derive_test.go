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
	"math"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/icesheet/pismrun"
)

func TestParseRecipe(t *testing.T) {
	steps, err := ParseRecipe(PostRecipe)
	if err != nil {
		t.Fatal(err)
	}
	if len(steps) != 7 {
		t.Fatalf("have %d steps: %v", len(steps), steps)
	}
	if have, want := steps[0], (Step{Name: "uflux", Expr: "ubar*thk"}); !reflect.DeepEqual(have, want) {
		t.Errorf("have %+v, want %+v", have, want)
	}
	where := steps[3]
	if where.Name != "" || where.Expr != "thk<50" || len(where.Set) != 4 ||
		where.Set[3] != (Assignment{Name: "flux_mag", Value: -2e9}) {
		t.Errorf("where clause: %+v", where)
	}
	if have := steps[6].String(); have != "tau_rel=(tauc-taud_mag)/(1+taud_mag)" {
		t.Errorf("string: %q", have)
	}
	steps, err = ParseRecipe("a = b >= 2")
	if err != nil {
		t.Fatal(err)
	}
	if steps[0].Name != "a" || steps[0].Expr != "b >= 2" {
		t.Errorf("comparison: %+v", steps[0])
	}
	for _, bad := range []string{"a==b", "where(thk<50 {a=1}", "where(thk<50) {a=b}", "where(thk<50) a=1", "1a=b", "a="} {
		if _, err := ParseRecipe(bad); err == nil {
			t.Errorf("%q: expected an error", bad)
		}
	}
}

func outputFile() *File {
	fill := []Attribute{{Name: "_FillValue", Value: []float32{-2e9}}}
	v := func(name string, data ...float32) *Variable {
		return &Variable{Name: name, Dims: []string{"y", "x"}, Data: data}
	}
	speed := func(name string, data ...float32) *Variable {
		x := v(name, data...)
		x.Attrs = append([]Attribute(nil), fill...)
		return x
	}
	return &File{
		Dims:    []string{"y", "x"},
		Lengths: []int{1, 3},
		Vars: []*Variable{
			v("thk", 100, 20, 100),
			v("ubar", 1, 2, 3),
			v("vbar", 0, 1, 0),
			speed("velsurf_mag", 10, 20, 30),
			speed("velbase_mag", 5, 10, 30),
			v("tauc", 1, 1, 1),
			v("taud_mag", 0, 1, 3),
			v("enthalpy", 0, 0, 0),
			{Name: "run_stats", Data: []int32{0}},
		},
	}
}

func nearly(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.IsNaN(a[i]) != math.IsNaN(b[i]) || (!math.IsNaN(a[i]) && math.Abs(a[i]-b[i]) > 1e-6) {
			return false
		}
	}
	return true
}

func TestDerive(t *testing.T) {
	f := outputFile()
	steps, err := ParseRecipe(PostRecipe)
	if err != nil {
		t.Fatal(err)
	}
	changed, err := Derive(f, steps, quietLog())
	if err != nil {
		t.Fatal(err)
	}
	wantChanged := []string{"uflux", "vflux", "velshear_mag", "velshear_mag", "velbase_mag", "velsurf_mag",
		"sliding_r", "tau_r", "tau_rel"}
	if !reflect.DeepEqual(changed, wantChanged) {
		t.Errorf("changed: have %v, want %v", changed, wantChanged)
	}
	nan := math.NaN()
	for name, want := range map[string][]float64{
		"uflux":        {100, 40, 300},
		"vflux":        {0, 20, 0},
		"velshear_mag": {5, nan, 0},
		"velsurf_mag":  {10, nan, 30},
		"sliding_r":    {0.5, nan, 1},
		"tau_r":        {1, 0.5, 0.25},
		"tau_rel":      {1, 0, -0.5},
	} {
		have, err := f.Float64s(name)
		if err != nil {
			t.Fatal(err)
		}
		if !nearly(have, want) {
			t.Errorf("%s: have %v, want %v", name, have, want)
		}
	}
	if f.Var("flux_mag") != nil {
		t.Error("flux_mag should not be created by a where clause")
	}

	skipped, err := Derive(f, []Step{{Name: "a", Expr: "missing*2"}}, quietLog())
	if err != nil || len(skipped) != 0 {
		t.Errorf("missing input: changed %v, err %v", skipped, err)
	}
	if _, err := Derive(f, []Step{{Name: "a", Expr: "2*3"}}, quietLog()); err == nil {
		t.Error("expected an error for an expression without variables")
	}
	if err := f.AddDim("z", 2); err != nil {
		t.Fatal(err)
	}
	f.Vars = append(f.Vars, &Variable{Name: "short", Dims: []string{"z"}, Data: []float32{1, 2}})
	if _, err := Derive(f, []Step{{Name: "a", Expr: "thk+short"}}, quietLog()); err == nil {
		t.Error("expected an error for inputs of different sizes")
	}
}

func TestPost(t *testing.T) {
	dir, clean := tempDir(t)
	defer clean()
	path := filepath.Join(dir, "g1500m.nc")
	if err := outputFile().WriteFile(path); err != nil {
		t.Fatal(err)
	}
	ps := pismrun.PostSpec{BedDataSet: "MO14 2015-04-27", Grid: 1500, Capitalize: true}
	if err := Post(path, ps, "stamp", quietLog()); err != nil {
		t.Fatal(err)
	}
	f, err := ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if f.Var("enthalpy") != nil || f.Var("mapping") == nil || f.Var("tau_rel") == nil {
		t.Errorf("variables: enthalpy %v, mapping %v, tau_rel %v", f.Var("enthalpy"), f.Var("mapping"), f.Var("tau_rel"))
	}
	if v, _ := f.Var("uflux").Attr("long_name"); v != "Vertically-integrated horizontal flux of ice in the X direction" {
		t.Errorf("uflux long_name %v", v)
	}
	if v, _ := f.Var("run_stats").Attr("grid_dx_meters"); !reflect.DeepEqual(v, []float32{1500}) {
		t.Errorf("grid_dx_meters %v", v)
	}
	if v, _ := f.Attr("history"); v != "stamp" {
		t.Errorf("history %v", v)
	}
}
