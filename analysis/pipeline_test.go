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
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/tealeg/xlsx"
	"gonum.org/v1/plot/vg"
)

func TestGetPrintMode(t *testing.T) {
	log, hook := test.NewNullLogger()
	near := func(a, b vg.Length) bool { return math.Abs(float64(a-b)) < 1e-9 }
	m := GetPrintMode("twocol", log)
	if !near(m.Width, 6.64*vg.Inch) || !near(m.Height, 6.64*0.75*vg.Inch) || m.FontSize != 8 {
		t.Errorf("twocol: %+v", m)
	}
	if len(hook.Entries) != 0 {
		t.Errorf("unexpected log entries: %v", hook.Entries)
	}
	m = GetPrintMode("poster", log)
	if m.Name != "onecol" || !near(m.Width, 3.32*vg.Inch) {
		t.Errorf("fallback: %+v", m)
	}
	if e := hook.LastEntry(); e == nil || e.Level != logrus.WarnLevel {
		t.Errorf("expected a warning, have %v", e)
	}
}

func TestPlotText(t *testing.T) {
	if have, want := plotText(`$\alpha$=0.02, m a$^{-1}$`), "\u03b1=0.02, m a\u207b\u00b9"; have != want {
		t.Errorf("have %q, want %q", have, want)
	}
}

const fastFlowNY, fastFlowNX = 9, 11

// fastFlowFile writes vars on a 9x11 grid covering CorrelationBox.
func fastFlowFile(t *testing.T, path string, vars ...ncVar) {
	x := make([]float64, fastFlowNX)
	for j := range x {
		x[j] = -450000 + 10000*float64(j)
	}
	y := make([]float64, fastFlowNY)
	for i := range y {
		y[i] = -2290000 + 10000*float64(i)
	}
	coords := []ncVar{
		{name: "x", dims: []string{"x"}, data: x},
		{name: "y", dims: []string{"y"}, data: y},
	}
	ncFile{dims: []string{"y", "x"}, lengths: []int{fastFlowNY, fastFlowNX},
		vars:   append(coords, vars...),
		global: attrs{{"proj4", "+init=epsg:3413"}},
	}.write(t, path)
}

// fastFlowSpeed returns the observed speed, increasing with row and
// column.
func fastFlowSpeed() []float32 {
	speed := make([]float32, fastFlowNY*fastFlowNX)
	for i := 0; i < fastFlowNY; i++ {
		for j := 0; j < fastFlowNX; j++ {
			speed[i*fastFlowNX+j] = float32(100 + 10*i + j)
		}
	}
	return speed
}

// fastFlowModel writes a model file 1 m/a faster than the observation
// everywhere.
func fastFlowModel(t *testing.T, path string, config attrs) {
	model := fastFlowSpeed()
	for k := range model {
		model[k]++
	}
	fastFlowFile(t, path,
		ncVar{name: "velsurf_mag", dims: []string{"y", "x"}, data: model, attrs: attrs{{"units", "m year-1"}}},
		ncVar{name: "pism_config", attrs: config})
}

// fastFlowGrid writes boot, observation and model files on a 9x11 grid
// covering CorrelationBox. Ice is 3000 m thick in a block in the middle
// of the grid and absent elsewhere.
func fastFlowGrid(t *testing.T, dir string) (boot, obs, exp string) {
	thk := make([]float32, fastFlowNY*fastFlowNX)
	for i := 2; i <= 6; i++ {
		for j := 3; j <= 7; j++ {
			thk[i*fastFlowNX+j] = 3000
		}
	}
	boot = filepath.Join(dir, "boot.nc")
	obs = filepath.Join(dir, "obs.nc")
	exp = filepath.Join(dir, "g20km_exp.nc")
	fastFlowFile(t, boot, ncVar{name: "thk", dims: []string{"y", "x"}, data: thk, attrs: attrs{{"units", "m"}}})
	fastFlowFile(t, obs, ncVar{name: "velsurf_mag", dims: []string{"y", "x"}, data: fastFlowSpeed(),
		attrs: attrs{{"units", "m year-1"}}})
	fastFlowModel(t, exp, testConfig)
	return boot, obs, exp
}

func exists(t *testing.T, files ...string) {
	t.Helper()
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			t.Error(err)
		}
	}
}

func TestSpeedHistogram(t *testing.T) {
	dir, clean := tempDir(t)
	defer clean()
	boot, obs, exp := fastFlowGrid(t, dir)
	exps, err := SpeedHistogram(CompareOptions{
		BootFile: boot,
		ObsFile:  obs,
		Files:    []string{exp},
		Bins:     10,
		HistMax:  500,
		Formats:  []string{"png", "pdf"},
		DPI:      72,
		OutDir:   dir,
		Workbook: "statistics.xlsx",
		Log:      quietLog(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(exps) != 1 {
		t.Fatalf("have %d experiments", len(exps))
	}
	e := exps[0]
	if math.Abs(e.RMSE-1) > 1e-9 || math.Abs(e.Avg-1) > 1e-9 {
		t.Errorf("rmse %g, avg %g", e.RMSE, e.Avg)
	}
	if n := sum(e.N); n != 25 {
		t.Errorf("experiment histogram holds %g cells, want the 25 with ice", n)
	}
	exists(t, filepath.Join(dir, "speed_histogram.png"), filepath.Join(dir, "speed_histogram.pdf"))

	wb, err := xlsx.OpenFile(filepath.Join(dir, "statistics.xlsx"))
	if err != nil {
		t.Fatal(err)
	}
	sheet, ok := wb.Sheet["statistics"]
	if !ok {
		t.Fatal("no statistics sheet")
	}
	if len(sheet.Rows) != 2 {
		t.Fatalf("have %d rows, want 2", len(sheet.Rows))
	}
	header := sheet.Rows[0].Cells
	if header[3].Value != "rmse" || header[len(header)-1].Value != "sia_enhancement_factor" {
		t.Errorf("header: %q ... %q", header[3].Value, header[len(header)-1].Value)
	}
	if v := sheet.Rows[1].Cells[1].Value; v != "g20km_exp.nc" {
		t.Errorf("file column: %q", v)
	}
}

func TestThkMin(t *testing.T) {
	dir, clean := tempDir(t)
	defer clean()
	_, obs, exp := fastFlowGrid(t, dir)
	// A 10 m thick first row next to the 3000 m block.
	thk := make([]float32, fastFlowNY*fastFlowNX)
	for k := range thk {
		if k < fastFlowNX {
			thk[k] = 10
		}
	}
	for i := 2; i <= 6; i++ {
		for j := 3; j <= 7; j++ {
			thk[i*fastFlowNX+j] = 3000
		}
	}
	boot := filepath.Join(dir, "thin.nc")
	fastFlowFile(t, boot, ncVar{name: "thk", dims: []string{"y", "x"}, data: thk, attrs: attrs{{"units", "m"}}})
	for _, test := range []struct {
		thkMin float64
		cells  float64
	}{
		{thkMin: 0, cells: 25 + fastFlowNX},
		{thkMin: -1, cells: 25},
		{thkMin: 10, cells: 25},
		{thkMin: 5, cells: 25 + fastFlowNX},
	} {
		exps, err := SpeedHistogram(CompareOptions{
			BootFile: boot,
			ObsFile:  obs,
			Files:    []string{exp},
			HistMax:  500,
			ThkMin:   test.thkMin,
			Formats:  []string{"png"},
			DPI:      72,
			OutDir:   dir,
			Log:      quietLog(),
		})
		if err != nil {
			t.Fatal(err)
		}
		if n := sum(exps[0].N); n != test.cells {
			t.Errorf("thkmin %g: histogram holds %g cells, want %g", test.thkMin, n, test.cells)
		}
	}
}

func sum(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x
	}
	return s
}

func TestFastFlow(t *testing.T) {
	dir, clean := tempDir(t)
	defer clean()
	boot, obs, exp := fastFlowGrid(t, dir)
	exps, err := FastFlow(CompareOptions{
		BootFile:  boot,
		ObsFile:   obs,
		Files:     []string{exp},
		Formats:   []string{"png"},
		DPI:       72,
		OutDir:    dir,
		Shapefile: "contour.shp",
		Log:       quietLog(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(exps) != 1 || len(exps[0].ContourValues) == 0 {
		t.Fatalf("experiments: %+v", exps)
	}
	for i, v := range exps[0].ContourValues[:len(exps[0].ContourValues)-1] {
		if math.IsNaN(v) {
			t.Errorf("contour value %d is NaN", i)
		}
	}
	base := "sia_enhancement_factor_3.0_pseudo_plastic_q_0.25_till_effective_fraction_overburden_0.02"
	exists(t,
		filepath.Join(dir, "cor_"+base+".nc"),
		filepath.Join(dir, base+"_psd.png"),
		filepath.Join(dir, "contour.shp"),
		filepath.Join(dir, "contour.prj"),
	)
	d, err := OpenDataset(filepath.Join(dir, "cor_"+base+".nc"))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	if shape := d.Shape("cor"); len(shape) != 2 || shape[0] != 9 || shape[1] != 15 {
		t.Errorf("correlation shape %v, want [9 15]", shape)
	}
}

func TestFastFlowGroups(t *testing.T) {
	dir, clean := tempDir(t)
	defer clean()
	boot, obs, exp := fastFlowGrid(t, dir)
	warm := filepath.Join(dir, "g20km_warm.nc")
	fastFlowModel(t, warm, attrs{
		{"sia_enhancement_factor", []float64{3}},
		{"pseudo_plastic_q", []float64{0.25}},
		{"till_effective_fraction_overburden", []float64{0.02}},
		{"do_cold_ice_methods", "no"},
		{"stress_balance_model", "ssa+sia"},
	})
	cold := filepath.Join(dir, "g20km_cold.nc")
	fastFlowModel(t, cold, attrs{
		{"sia_enhancement_factor", []float64{1}},
		{"pseudo_plastic_q", []float64{0.25}},
		{"till_effective_fraction_overburden", []float64{0.01}},
		{"do_cold_ice_methods", "yes"},
		{"stress_balance_model", "ssa+sia"},
	})
	o := CompareOptions{
		BootFile: boot,
		ObsFile:  obs,
		Files:    []string{exp, warm, cold},
		Formats:  []string{"png"},
		DPI:      72,
		OutDir:   dir,
		Log:      quietLog(),
	}
	if _, err := FastFlow(o); err != nil {
		t.Fatal(err)
	}
	exists(t, filepath.Join(dir, "enhancement_factor.png"))
	for _, name := range []string{"no_enhancement", "till_effective_fraction_overburden", "pseudo_plastic_q"} {
		if _, err := os.Stat(filepath.Join(dir, name+".png")); !os.IsNotExist(err) {
			t.Errorf("%s.png: have %v, want no file", name, err)
		}
	}

	// With warm ice and no enhancement every group has an experiment.
	warm1 := filepath.Join(dir, "g20km_warm1.nc")
	fastFlowModel(t, warm1, attrs{
		{"sia_enhancement_factor", []float64{1}},
		{"pseudo_plastic_q", []float64{0.25}},
		{"till_effective_fraction_overburden", []float64{0.02}},
		{"do_cold_ice_methods", "no"},
		{"stress_balance_model", "ssa+sia"},
	})
	o.Files = []string{warm, warm1}
	o.Formats = []string{"png", "svg"}
	o.OutDir = filepath.Join(dir, "all")
	if err := os.Mkdir(o.OutDir, 0755); err != nil {
		t.Fatal(err)
	}
	if _, err := FastFlow(o); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"no_enhancement", "till_effective_fraction_overburden",
		"enhancement_factor", "pseudo_plastic_q"} {
		exists(t, filepath.Join(o.OutDir, name+".png"), filepath.Join(o.OutDir, name+".svg"))
	}
}

func TestHistogramGroupLabel(t *testing.T) {
	e := &Experiment{Parameters: map[string]string{
		"sia_enhancement_factor":             "1.0",
		"pseudo_plastic_q":                   "0.8",
		"till_effective_fraction_overburden": "0.05",
		"do_cold_ice_methods":                "no",
		"stress_balance_model":               "ssa+sia",
	}}
	g := histogramGroups[0]
	if !g.matches(e) {
		t.Errorf("%s does not match %v", g.name, e.Parameters)
	}
	if have, want := g.label(e), plotText(`q = 0.8, $\delta$ = 0.05`); have != want {
		t.Errorf("label %q, want %q", have, want)
	}
	e.Parameters["stress_balance_model"] = "sia"
	if g.matches(e) {
		t.Error("sia experiment matches")
	}
}

func TestSaveFigureFormat(t *testing.T) {
	dir, clean := tempDir(t)
	defer clean()
	mode := GetPrintMode("onecol", nil)
	p, err := mode.newPlot()
	if err != nil {
		t.Fatal(err)
	}
	files, err := SaveFigure(p, mode, filepath.Join(dir, "f"), []string{"svg", " ", "bmp"}, 72)
	if err == nil {
		t.Error("expected an error for bmp output")
	}
	if len(files) != 1 || files[0] != filepath.Join(dir, "f.svg") {
		t.Errorf("files: %v", files)
	}
}

func TestBasemaps(t *testing.T) {
	dir, clean := tempDir(t)
	defer clean()
	rhoG := iceDensity * gravity
	dims := []string{"y", "x"}
	ncFile{dims: dims, lengths: []int{2, 3}, vars: []ncVar{
		{name: "x", dims: []string{"x"}, data: []float64{0, 1000, 2000}},
		{name: "y", dims: []string{"y"}, data: []float64{0, 1000}},
		{name: "velsurf_mag", dims: dims, data: []float64{1, 10, 100, 1000, 1e4, math.NaN()},
			attrs: attrs{{"units", "m year-1"}}},
		{name: "mask", dims: dims, data: []float64{2, 2, 2, 2, 0, 2}},
		{name: "thk", dims: dims, data: []float64{100, 100, 0, 100, 100, 100}},
		{name: "bwp", dims: dims, data: []float64{rhoG * 50, rhoG * 100, 0, 0, rhoG * 25, rhoG * 100}},
	}}.write(t, filepath.Join(dir, "g20km.nc"))

	d, err := OpenDataset(filepath.Join(dir, "g20km.nc"))
	if err != nil {
		t.Fatal(err)
	}
	m, err := ReadMapData(d, "bwprel")
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0.5, 1, 0, 0, 0.25, 1}
	wantMask := []bool{false, false, true, false, true, false}
	for i := range want {
		if m.Mask[i] != wantMask[i] {
			t.Errorf("bwprel mask %d: have %v", i, m.Mask[i])
		}
		if !m.Mask[i] && math.Abs(m.Values.Elements[i]-want[i]) > 1e-12 {
			t.Errorf("bwprel %d: have %g, want %g", i, m.Values.Elements[i], want[i])
		}
	}
	v, err := ReadMapData(d, "velsurf_mag")
	if err != nil {
		t.Fatal(err)
	}
	if !v.Mask[4] || !v.Mask[5] || v.Mask[0] || v.Units != "m year-1" {
		t.Errorf("velsurf_mag: mask %v units %q", v.Mask, v.Units)
	}
	if _, err := ReadMapData(d, "climatic_mass_balance"); err == nil {
		t.Error("expected an error for an unknown field")
	}
	d.Close()

	root := filepath.Join(dir, "g20km")
	files, err := Basemaps(BasemapOptions{Root: root, Fields: []string{"velsurf_mag", "bwprel"}, DPI: 50, Log: quietLog()})
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 || files[1] != root+"-bwprel.png" {
		t.Errorf("files: %v", files)
	}
	exists(t, files...)
}
