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
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/plot/vg"
)

// Parameters and their abbreviations used to label experiments.
var (
	FastFlowParams = []string{"pseudo_plastic_q", "till_effective_fraction_overburden",
		"sia_enhancement_factor", "do_cold_ice_methods", "stress_balance_model"}
	FastFlowAbbr = map[string]string{
		"pseudo_plastic_q":                   "q",
		"till_effective_fraction_overburden": `$\alpha$`,
		"sia_enhancement_factor":             "e",
		"do_cold_ice_methods":                "cold",
		"stress_balance_model":               "SSA",
	}
	HistogramParams = []string{"pseudo_plastic_q", "till_effective_fraction_overburden",
		"sia_enhancement_factor"}
	HistogramAbbr = map[string]string{
		"pseudo_plastic_q":                   "q",
		"till_effective_fraction_overburden": `$\delta$`,
		"sia_enhancement_factor":             "e",
	}
	FluxGateParams = []string{"pseudo_plastic_q", "till_effective_fraction_overburden",
		"sia_enhancement_factor"}
)

const (
	speedVariable     = "velsurf_mag"
	thicknessVariable = "thk"

	// ContourLevel is the ice thickness (m) of the contour along which
	// fast flow is compared.
	ContourLevel = 2000.0

	// ContourResample is the number of points placed between contour
	// vertices.
	ContourResample = 10

	// PSDLength is the segment length of power spectra.
	PSDLength = 128
)

// CorrelationBox is the region (xmin, ymin, xmax, ymax) over which
// speeds are cross-correlated.
var CorrelationBox = [4]float64{-440000, -2276500, -360000, -2227000}

const correlationPixel = 2000.0

// CompareOptions are the settings shared by the comparisons of model
// speeds with observations.
type CompareOptions struct {
	// BootFile holds the ice thickness used for masking.
	BootFile string
	// ObsFile holds the observed surface speed.
	ObsFile string
	// Files are the model output files.
	Files []string

	Bins    int
	HistMax float64
	Outlier float64

	// ThkMin is the boot file ice thickness at or below which
	// observations are masked. Zero masks only ice-free cells and a
	// negative value selects the default of 25 m.
	ThkMin float64

	// Labels, if given, replace the legend entries.
	Labels []string

	PrintMode string
	Formats   []string
	DPI       int

	// OutDir is where figures and other output are written.
	OutDir string

	// Workbook, if set, is an Excel file to write statistics to.
	Workbook string

	// Shapefile, if set, receives the fast-flow contour.
	Shapefile string

	Log logrus.FieldLogger
}

func (o *CompareOptions) defaults() {
	if o.Bins <= 0 {
		o.Bins = 50
	}
	if o.HistMax <= 0 {
		o.HistMax = 5000
	}
	if o.Outlier <= 0 {
		o.Outlier = 500
	}
	if o.ThkMin < 0 {
		o.ThkMin = 25
	}
	if len(o.Formats) == 0 {
		o.Formats = []string{"pdf"}
	}
	if o.DPI <= 0 {
		o.DPI = 300
	}
	if o.PrintMode == "" {
		o.PrintMode = "onecol"
	}
	if o.Log == nil {
		o.Log = logrus.StandardLogger()
	}
}

func (o *CompareOptions) out(name string) string {
	return filepath.Join(o.OutDir, name)
}

// observedSpeed reads the observed speed and masks it where the boot
// file ice thickness is at most ThkMin.
func (o *CompareOptions) observedSpeed(edges []float64) (thk, speed *Observation, err error) {
	if thk, err = NewObservation(o.BootFile, thicknessVariable, edges); err != nil {
		return nil, nil, err
	}
	if speed, err = NewObservation(o.ObsFile, speedVariable, edges); err != nil {
		return nil, nil, err
	}
	o.Log.Infof("applying mask (%s <= %3.2f %s), updating histogram", thicknessVariable, o.ThkMin, thk.Units)
	thin := thk.Where(func(v float64) bool { return v <= o.ThkMin })
	if err = speed.AddMask(thin); err != nil {
		return nil, nil, err
	}
	return thk, speed, nil
}

func (o *CompareOptions) finish(experiments []*Experiment, params []string) error {
	PrintOverallStatistics(experiments, o.Log)
	if o.Workbook != "" {
		if err := WriteStatistics(o.out(o.Workbook), experiments, params); err != nil {
			return err
		}
	}
	return nil
}

// SpeedHistogram compares the surface speed histograms of the model
// files with the observations and writes speed_histogram.<format>.
func SpeedHistogram(o CompareOptions) ([]*Experiment, error) {
	o.defaults()
	edges := Bins(0, o.HistMax, o.Bins)
	o.Log.WithField("bins", edges).Info("bins used in this study")
	_, speed, err := o.observedSpeed(edges)
	if err != nil {
		return nil, err
	}
	var experiments []*Experiment
	for _, f := range o.Files {
		e, err := NewExperiment(speed, o.Outlier, HistogramParams, HistogramAbbr, f, speedVariable, edges)
		if err != nil {
			return nil, err
		}
		e.LogStatistics(o.Log)
		experiments = append(experiments, e)
	}
	mode := GetPrintMode(o.PrintMode, o.Log)
	p, err := HistogramPlot(speed, experiments, nil, o.Labels, o.HistMax, mode)
	if err != nil {
		return nil, err
	}
	files, err := SaveFigure(p, mode, o.out("speed_histogram"), o.Formats, o.DPI)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		o.Log.Infof("wrote %s", f)
	}
	return experiments, o.finish(experiments, HistogramParams)
}

// parameterBase names fast-flow output after the experiment's
// parameters.
func parameterBase(e *Experiment) string {
	return fmt.Sprintf("sia_enhancement_factor_%s_pseudo_plastic_q_%s_till_effective_fraction_overburden_%s",
		e.Parameters["sia_enhancement_factor"], e.Parameters["pseudo_plastic_q"],
		e.Parameters["till_effective_fraction_overburden"])
}

// FastFlow compares modeled and observed speeds along the longest
// ice thickness contour at ContourLevel. For each model file it writes
// the full cross-correlation over CorrelationBox to a NetCDF file and
// a power spectrum figure.
func FastFlow(o CompareOptions) ([]*Experiment, error) {
	o.defaults()
	edges := Bins(0, o.HistMax, o.Bins)
	thk, speed, err := o.observedSpeed(edges)
	if err != nil {
		return nil, err
	}
	boot, err := OpenDataset(o.BootFile)
	if err != nil {
		return nil, err
	}
	x, y, err := boot.Coordinates()
	boot.Close()
	if err != nil {
		return nil, err
	}
	obsData, err := OpenDataset(o.ObsFile)
	if err != nil {
		return nil, err
	}
	proj4 := obsData.Proj4()
	obsData.Close()

	o.Log.Infof("finding %3.0fm contour", ContourLevel)
	contour, err := LongestContour(thk.Values, ContourLevel)
	if err != nil {
		return nil, err
	}
	cx, cy, err := contour.Project(x, y)
	if err != nil {
		return nil, err
	}
	if o.Shapefile != "" {
		if err := WriteContourShapefile(o.out(o.Shapefile), "thk", ContourLevel, LineString(cx, cy), proj4); err != nil {
			return nil, err
		}
	}
	xf, yf := Resample(cx, ContourResample), Resample(cy, ContourResample)

	o.Log.Infof("interpolating observed surface speeds along %3.0fm contour", ContourLevel)
	in, err := NewInterpolator(x, y, speed.Values)
	if err != nil {
		return nil, err
	}
	obsContour := in.Along(xf, yf)

	b := CorrelationBox
	i0, j0 := GetIndices(x, y, b[0], b[1])
	i1, j1 := GetIndices(x, y, b[2], b[3])
	origin := [2]float64{b[0] - correlationPixel/2, b[1] - correlationPixel/2}
	mode := GetPrintMode(o.PrintMode, o.Log)

	var experiments []*Experiment
	for _, f := range o.Files {
		e, err := NewExperiment(speed, o.Outlier, FastFlowParams, FastFlowAbbr, f, speedVariable, edges)
		if err != nil {
			return nil, err
		}
		log := o.Log.WithField("file", e.Title)
		log.Infof("interpolating surface speeds along %3.0fm contour", ContourLevel)
		ein, err := NewInterpolator(x, y, e.Values)
		if err != nil {
			return nil, err
		}
		e.ContourValues = ein.Along(xf, yf)

		log.WithFields(logrus.Fields{"i0": i0, "j0": j0, "i1": i1, "j1": j1}).Info("cross correlation statistics")
		cor, corMat, err := CrossCorrelation(speed, e, i0, j0, i1, j1)
		if err != nil {
			return nil, err
		}
		log.Infof("chi = %v", cor.Elements)
		base := parameterBase(e)
		if err = WriteGrid(o.out("cor_"+base+".nc"), "cor", corMat, origin,
			correlationPixel, correlationPixel, proj4); err != nil {
			return nil, err
		}
		e.LogStatistics(log)

		fig, err := PSDPlot(speed, obsContour, []*Experiment{e}, PSDLength, mode)
		if err != nil {
			return nil, err
		}
		files, err := SaveFigure(fig, mode, o.out(base+"_psd"), o.Formats, o.DPI)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			log.Infof("wrote %s", f)
		}
		experiments = append(experiments, e)
	}
	files, err := o.plotGroups(speed, experiments, mode)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		o.Log.Infof("wrote %s", f)
	}
	return experiments, o.finish(experiments, FastFlowParams)
}

// histogramGroup selects fast-flow experiments with the warm-ice SSA+SIA
// model whose numeric parameters take one of the listed values.
type histogramGroup struct {
	name   string
	keys   []string // label the legend entries
	sortBy string
	values map[string][]float64
}

var (
	groupQ   = []float64{0.1, 0.25, 0.33, 0.8}
	groupTEF = []float64{0.01, 0.02, 0.05}

	// histogramGroups are the experiment groups FastFlow plots against
	// the observed speed histogram.
	histogramGroups = []histogramGroup{
		{
			name:   "no_enhancement",
			keys:   []string{"pseudo_plastic_q", "till_effective_fraction_overburden"},
			sortBy: "till_effective_fraction_overburden",
			values: map[string][]float64{
				"sia_enhancement_factor":             {1},
				"pseudo_plastic_q":                   groupQ,
				"till_effective_fraction_overburden": groupTEF,
			},
		},
		{
			name:   "till_effective_fraction_overburden",
			keys:   []string{"till_effective_fraction_overburden"},
			sortBy: "till_effective_fraction_overburden",
			values: map[string][]float64{
				"sia_enhancement_factor":             {1},
				"pseudo_plastic_q":                   {0.25},
				"till_effective_fraction_overburden": groupTEF,
			},
		},
		{
			name:   "enhancement_factor",
			keys:   []string{"sia_enhancement_factor"},
			sortBy: "sia_enhancement_factor",
			values: map[string][]float64{
				"pseudo_plastic_q":                   {0.25},
				"till_effective_fraction_overburden": {0.02},
			},
		},
		{
			name:   "pseudo_plastic_q",
			keys:   []string{"pseudo_plastic_q"},
			sortBy: "pseudo_plastic_q",
			values: map[string][]float64{
				"sia_enhancement_factor":             {1},
				"pseudo_plastic_q":                   groupQ,
				"till_effective_fraction_overburden": {0.02},
			},
		},
	}
)

func parameterValue(e *Experiment, p string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(e.Parameters[p]), 64)
	return v, err == nil
}

func (g histogramGroup) matches(e *Experiment) bool {
	if e.Parameters["do_cold_ice_methods"] != "no" || e.Parameters["stress_balance_model"] != "ssa+sia" {
		return false
	}
	for p, values := range g.values {
		v, ok := parameterValue(e, p)
		if !ok {
			return false
		}
		found := false
		for _, w := range values {
			if math.Abs(v-w) < 1e-9 {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// label returns the legend entry of e, its group keys abbreviated by
// HistogramAbbr.
func (g histogramGroup) label(e *Experiment) string {
	s := make([]string, len(g.keys))
	for i, k := range g.keys {
		s[i] = HistogramAbbr[k] + " = " + e.Parameters[k]
	}
	return plotText(strings.Join(s, ", "))
}

// plotGroups plots the speed histogram of each group of
// experiments in histogramGroups against the observation and writes
// <group>.<format>. Empty groups are skipped.
func (o *CompareOptions) plotGroups(speed *Observation, experiments []*Experiment, mode PrintMode) ([]string, error) {
	var files []string
	for _, g := range histogramGroups {
		var group []*Experiment
		for _, e := range experiments {
			if g.matches(e) {
				group = append(group, e)
			}
		}
		if len(group) == 0 {
			o.Log.WithField("group", g.name).Info("no experiments available, skipping")
			continue
		}
		sort.SliceStable(group, func(i, j int) bool {
			vi, _ := parameterValue(group[i], g.sortBy)
			vj, _ := parameterValue(group[j], g.sortBy)
			return vi < vj
		})
		labels := []string{speed.Title}
		for _, e := range group {
			labels = append(labels, g.label(e))
		}
		p, err := HistogramPlot(speed, group, nil, labels, o.HistMax, mode)
		if err != nil {
			return files, err
		}
		f, err := SaveFigure(p, mode, o.out(g.name), o.Formats, o.DPI)
		files = append(files, f...)
		if err != nil {
			return files, err
		}
	}
	return files, nil
}

// FluxGateOptions configures FluxGateAnalysis.
type FluxGateOptions struct {
	// Files are profile files of model output. The first also defines
	// the gates.
	Files []string
	// ObsFile optionally holds observations along the same profiles.
	ObsFile  string
	Variable string

	// Abbr shortens parameter names in the legend. It defaults to
	// FastFlowAbbr.
	Abbr map[string]string

	PrintMode string
	Formats   []string
	DPI       int
	OutDir    string

	Log logrus.FieldLogger
}

// FluxGateAnalysis plots the variable along each flux gate for the
// observations and every model file, one figure per gate.
func FluxGateAnalysis(o FluxGateOptions) ([]string, error) {
	if len(o.Files) == 0 {
		return nil, fmt.Errorf("analysis: no profile files given")
	}
	if o.Variable == "" {
		o.Variable = speedVariable
	}
	if len(o.Formats) == 0 {
		o.Formats = []string{"pdf"}
	}
	if o.DPI <= 0 {
		o.DPI = 300
	}
	if o.PrintMode == "" {
		o.PrintMode = "twocol"
	}
	if o.Abbr == nil {
		o.Abbr = FastFlowAbbr
	}
	if o.Log == nil {
		o.Log = logrus.StandardLogger()
	}
	gates, err := ReadFluxGates(o.Files[0])
	if err != nil {
		return nil, err
	}
	n := len(gates)
	if o.ObsFile != "" {
		obs, err := ReadProfileData(o.ObsFile, o.Variable, false)
		if err != nil {
			return nil, err
		}
		for _, g := range gates {
			if err := g.AddObservations(obs, n, o.Log); err != nil {
				return nil, err
			}
		}
	}
	for _, f := range o.Files {
		d, err := ReadProfileData(f, o.Variable, true)
		if err != nil {
			return nil, err
		}
		for _, g := range gates {
			if err := g.AddExperiment(d, n, o.Log); err != nil {
				return nil, err
			}
		}
	}
	mode := GetPrintMode(o.PrintMode, o.Log)
	mode.Height = mode.Width * vg.Length(goldenMean)
	var written []string
	for _, g := range gates {
		p, err := g.Plot(FluxGateParams, o.Abbr, mode)
		if err != nil {
			return written, err
		}
		files, err := SaveFigure(p, mode, filepath.Join(o.OutDir, GateFileBase(g.Name)), o.Formats, o.DPI)
		if err != nil {
			return written, err
		}
		for _, f := range files {
			o.Log.Infof("saving %s", f)
		}
		written = append(written, files...)
	}
	return written, nil
}

// BasemapOptions configures Basemaps.
type BasemapOptions struct {
	// Root is the file name without the .nc extension.
	Root   string
	Fields []string
	DPI    int
	Log    logrus.FieldLogger
}

// Basemaps draws each field of Root.nc to Root-<field>.png.
func Basemaps(o BasemapOptions) ([]string, error) {
	if o.DPI <= 0 {
		o.DPI = 200
	}
	if len(o.Fields) == 0 {
		o.Fields = []string{speedVariable}
	}
	if o.Log == nil {
		o.Log = logrus.StandardLogger()
	}
	d, err := OpenDataset(o.Root + ".nc")
	if err != nil {
		return nil, err
	}
	defer d.Close()
	var written []string
	for _, field := range o.Fields {
		m, err := ReadMapData(d, field)
		if err != nil {
			return written, err
		}
		name := BasemapFile(o.Root, field)
		o.Log.Infof("saving image to file %s", name)
		if err := Basemap(m, name, o.DPI); err != nil {
			return written, err
		}
		written = append(written, name)
	}
	return written, nil
}
