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

package pismrunutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/icesheet/pismrun/analysis"
	"github.com/skratchdot/open-golang/open"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
)

// getStringSlice returns a list option whether it was set on the
// command line, as a comma-separated string or in a configuration file.
func getStringSlice(name string) ([]string, error) {
	v := Cfg.Get(name)
	if s, ok := v.(string); ok {
		if s == "" {
			return nil, nil
		}
		return strings.Split(s, ","), nil
	}
	o, err := cast.ToStringSliceE(v)
	if err != nil {
		return nil, fmt.Errorf("pismrun: reading '%s': %v", name, err)
	}
	return o, nil
}

// getStringMapString returns a map option given either as JSON or as a
// table in a configuration file.
func getStringMapString(name string) (map[string]string, error) {
	switch v := Cfg.Get(name).(type) {
	case map[string]string:
		return v, nil
	case map[string]interface{}:
		return cast.ToStringMapStringE(v)
	case string:
		if v == "" {
			return nil, nil
		}
		o := make(map[string]string)
		if err := json.NewDecoder(strings.NewReader(v)).Decode(&o); err != nil {
			return nil, fmt.Errorf("pismrun: reading '%s': %v", name, err)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("pismrun: '%s' has invalid type %T", name, v)
	}
}

// compareOptions returns the options shared by hist and fastflow.
func compareOptions(files []string) (analysis.CompareOptions, error) {
	o := analysis.CompareOptions{
		BootFile:  os.ExpandEnv(Cfg.GetString("bootfile")),
		ObsFile:   os.ExpandEnv(Cfg.GetString("obsfile")),
		Files:     expandStringSlice(files),
		Bins:      Cfg.GetInt("bins"),
		HistMax:   Cfg.GetFloat64("histmax"),
		Outlier:   Cfg.GetFloat64("outlier"),
		ThkMin:    Cfg.GetFloat64("thkmin"),
		PrintMode: Cfg.GetString("print_mode"),
		DPI:       Cfg.GetInt("dpi"),
		OutDir:    os.ExpandEnv(Cfg.GetString("outdir")),
		Workbook:  Cfg.GetString("workbook"),
		Shapefile: Cfg.GetString("shapefile"),
		Log:       Log,
	}
	if o.BootFile == "" || o.ObsFile == "" {
		return o, fmt.Errorf("pismrun: both --bootfile and --obsfile are required")
	}
	var err error
	if o.Formats, err = getStringSlice("formats"); err != nil {
		return o, err
	}
	if o.Labels, err = getStringSlice("labels"); err != nil {
		return o, err
	}
	if len(o.Labels) > 0 && len(o.Labels) != len(o.Files) {
		return o, fmt.Errorf("pismrun: %d labels given for %d files", len(o.Labels), len(o.Files))
	}
	return o, nil
}

// openFiles opens the given files with the default viewer if the open
// option is set.
func openFiles(files ...string) error {
	if !Cfg.GetBool("open") {
		return nil
	}
	for _, f := range files {
		if err := open.Run(f); err != nil {
			return fmt.Errorf("pismrun: opening %s: %v", f, err)
		}
	}
	return nil
}

// figures returns the names of the figure base in every format.
func figures(base string, formats []string) []string {
	var o []string
	for _, f := range formats {
		if f = strings.TrimSpace(f); f != "" {
			o = append(o, base+"."+f)
		}
	}
	return o
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Compare model output with observations.",
	Long: `analyze compares the output of PISM runs with observations and draws
figures of the results. Use the subcommands specified below to choose the
analysis.`,
	DisableAutoGenTag: true,
}

var histCmd = &cobra.Command{
	Use:   "hist files...",
	Short: "Compare surface speed histograms.",
	Long: `hist compares the surface speed histogram of each model file with the
observed one, logs the RMSE and mean difference of each file, and draws all
histograms in speed_histogram.<format>.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := compareOptions(args)
		if err != nil {
			return err
		}
		if _, err = analysis.SpeedHistogram(o); err != nil {
			return err
		}
		return openFiles(figures(filepath.Join(o.OutDir, "speed_histogram"), o.Formats)...)
	},
	DisableAutoGenTag: true,
}

var fastFlowCmd = &cobra.Command{
	Use:   "fastflow files...",
	Short: "Compare speeds along the fast-flow contour.",
	Long: `fastflow compares modeled and observed surface speeds along the longest
2000 m ice thickness contour. For each model file it writes the
cross-correlation of the speeds to cor_<parameters>.nc and their power
spectra to <parameters>_psd.<format>.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := compareOptions(args)
		if err != nil {
			return err
		}
		_, err = analysis.FastFlow(o)
		return err
	},
	DisableAutoGenTag: true,
}

var fluxGateCmd = &cobra.Command{
	Use:   "fluxgate files...",
	Short: "Plot model profiles along flux gates.",
	Long: `fluxgate plots a profile variable along each flux gate for the
observations in --obsfile and each model profile file, one figure per gate.
The gates are read from the first file.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		formats, err := getStringSlice("formats")
		if err != nil {
			return err
		}
		abbr, err := getStringMapString("abbreviations")
		if err != nil {
			return err
		}
		written, err := analysis.FluxGateAnalysis(analysis.FluxGateOptions{
			Files:     expandStringSlice(args),
			ObsFile:   os.ExpandEnv(Cfg.GetString("obsfile")),
			Variable:  Cfg.GetString("variable"),
			Abbr:      abbr,
			PrintMode: Cfg.GetString("print_mode"),
			Formats:   formats,
			DPI:       Cfg.GetInt("dpi"),
			OutDir:    os.ExpandEnv(Cfg.GetString("outdir")),
			Log:       Log,
		})
		if err != nil {
			return err
		}
		return openFiles(written...)
	},
	DisableAutoGenTag: true,
}

var basemapCmd = &cobra.Command{
	Use:   "basemap files...",
	Short: "Draw map figures of model fields.",
	Long: `basemap draws a map of each of --fields for each NetCDF file, saved
next to the file as <file>-<field>.png.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fields, err := getStringSlice("fields")
		if err != nil {
			return err
		}
		for _, f := range expandStringSlice(args) {
			written, err := analysis.Basemaps(analysis.BasemapOptions{
				Root:   strings.TrimSuffix(f, ".nc"),
				Fields: fields,
				DPI:    Cfg.GetInt("dpi"),
				Log:    Log,
			})
			if err != nil {
				return err
			}
			if err = openFiles(written...); err != nil {
				return err
			}
		}
		return nil
	},
	DisableAutoGenTag: true,
}
