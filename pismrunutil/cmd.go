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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/icesheet/pismrun"
	"github.com/icesheet/pismrun/analysis"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

// Log is the logger used by all commands. Its level, format and
// output are set from the configuration before each command runs.
var Log = logrus.New()

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to pismrun.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel is the minimum level of log messages that are printed:
              one of debug, info, warning or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile is a file that log messages are written to in addition
              to standard error. It can include environment variables.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "outdir",
			usage: `
              outdir is the directory that job scripts, figures and other
              output are written to. It can include environment variables.`,
			shorthand:  "o",
			defaultVal: ".",
			flagsets:   []*pflag.FlagSet{spawnCmd.PersistentFlags(), analyzeCmd.PersistentFlags()},
		},
		{
			name: "sweep",
			usage: `
              sweep is a TOML file that overrides the parameter values the
              study sweeps over, for example 'ppq = [0.25, 0.33]'.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{spawnCmd.PersistentFlags()},
		},
		{
			name: "dry-run",
			usage: `
              dry-run prints the jobs of the study instead of writing them.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{spawnCmd.PersistentFlags()},
		},
		{
			name: "submit",
			usage: `
              submit submits the jobs to the batch queue after the scripts
              have been written.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{spawnCmd.PersistentFlags()},
		},
		{
			name: "qsub",
			usage: `
              qsub is the command that submits a job script to the batch queue.`,
			defaultVal: "qsub",
			flagsets:   []*pflag.FlagSet{spawnCmd.PersistentFlags(), submitCmd.Flags()},
		},
		{
			name: "nprocs",
			usage: `
              nprocs is the number of processors per job. Zero selects the
              default of the study.`,
			shorthand:  "n",
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{spawnCmd.PersistentFlags()},
		},
		{
			name: "ppn",
			usage: `
              ppn is the number of processors per node, for studies that
              write headers for an arbitrary queue.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{spawnCmd.PersistentFlags()},
		},
		{
			name: "walltime",
			usage: `
              walltime is the wall clock time limit of each job (HH:MM:SS).`,
			shorthand:  "w",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{spawnCmd.PersistentFlags()},
		},
		{
			name: "queue",
			usage: `
              queue is the batch queue that jobs are submitted to.`,
			shorthand:  "q",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{spawnCmd.PersistentFlags()},
		},
		{
			name: "system",
			usage: `
              system is the computer the jobs run on, which sets the
              processors per node of the PBS header.`,
			shorthand:  "s",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{spawnCmd.PersistentFlags()},
		},
		{
			name: "domain",
			usage: `
              domain is the model domain: greenland or jakobshavn.`,
			shorthand:  "d",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{spawnCmd.PersistentFlags()},
		},
		{
			name: "o_format",
			usage: `
              o_format is the output format of the model:
              netcdf3, netcdf4_parallel or pnetcdf.`,
			shorthand:  "f",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{spawnCmd.PersistentFlags()},
		},
		{
			name: "o_size",
			usage: `
              o_size is the output size of the model: small, medium, big or 2dbig.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{spawnCmd.PersistentFlags()},
		},
		{
			name: "grid",
			usage: `
              grid is the horizontal grid resolution in meters. For nc post
              it is the resolution recorded in the run_stats variable.`,
			shorthand:  "g",
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{spawnCmd.PersistentFlags(), ncPostCmd.Flags()},
		},
		{
			name: "bed_type",
			usage: `
              bed_type is the bed topography data set, for example ctrl or cresis.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{spawnCmd.PersistentFlags()},
		},
		{
			name: "dataset_version",
			usage: `
              dataset_version is the version of the input data set.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{spawnCmd.PersistentFlags()},
		},
		{
			name: "climate",
			usage: `
              climate is the climate forcing of the study.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{spawnCmd.PersistentFlags()},
		},
		{
			name: "calving",
			usage: `
              calving is the calving model of the study.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{spawnCmd.PersistentFlags()},
		},
		{
			name: "ocean",
			usage: `
              ocean is the ocean forcing of the study.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{spawnCmd.PersistentFlags()},
		},
		{
			name: "forcing_type",
			usage: `
              forcing_type is the paleo forcing type of the study.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{spawnCmd.PersistentFlags()},
		},
		{
			name: "stress_balance",
			usage: `
              stress_balance is the stress balance model: sia, ssa+sia or ssa.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{spawnCmd.PersistentFlags()},
		},
		{
			name: "bootfile",
			usage: `
              bootfile is the NetCDF file holding the ice thickness that
              observations are masked with.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{histCmd.Flags(), fastFlowCmd.Flags()},
		},
		{
			name: "obsfile",
			usage: `
              obsfile is the NetCDF file holding the observations.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{histCmd.Flags(), fastFlowCmd.Flags(), fluxGateCmd.Flags()},
		},
		{
			name: "bins",
			usage: `
              bins is the number of histogram bins.`,
			defaultVal: 50,
			flagsets:   []*pflag.FlagSet{histCmd.Flags(), fastFlowCmd.Flags()},
		},
		{
			name: "histmax",
			usage: `
              histmax is the upper end of the histogram [m year-1].`,
			defaultVal: 5000.0,
			flagsets:   []*pflag.FlagSet{histCmd.Flags(), fastFlowCmd.Flags()},
		},
		{
			name: "outlier",
			usage: `
              outlier is the largest speed difference [m year-1] between model
              and observations that is included in the statistics.`,
			defaultVal: 500.0,
			flagsets:   []*pflag.FlagSet{histCmd.Flags(), fastFlowCmd.Flags()},
		},
		{
			name: "thkmin",
			usage: `
              thkmin is the ice thickness [m] at or below which observations
              are masked.`,
			defaultVal: 25.0,
			flagsets:   []*pflag.FlagSet{histCmd.Flags(), fastFlowCmd.Flags()},
		},
		{
			name: "labels",
			usage: `
              labels replace the legend entries of the model files.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{histCmd.Flags()},
		},
		{
			name: "workbook",
			usage: `
              workbook is an Excel file in outdir that the statistics of
              every model file are written to.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{histCmd.Flags(), fastFlowCmd.Flags()},
		},
		{
			name: "shapefile",
			usage: `
              shapefile is a shapefile in outdir that the fast-flow contour is
              written to.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{fastFlowCmd.Flags()},
		},
		{
			name: "variable",
			usage: `
              variable is the profile variable that is plotted.`,
			defaultVal: "velsurf_mag",
			flagsets:   []*pflag.FlagSet{fluxGateCmd.Flags()},
		},
		{
			name: "fields",
			usage: `
              fields are the variables that basemaps are drawn for.`,
			defaultVal: []string{"velsurf_mag"},
			flagsets:   []*pflag.FlagSet{basemapCmd.Flags()},
		},
		{
			name: "print_mode",
			usage: `
              print_mode sets the figure size:
              onecol, medium, twocol, presentation or height. If empty,
              flux-gate figures are twocol and others onecol.`,
			shorthand:  "p",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{histCmd.Flags(), fastFlowCmd.Flags(), fluxGateCmd.Flags()},
		},
		{
			name: "formats",
			usage: `
              formats are the file formats that figures are saved in.`,
			defaultVal: []string{"pdf"},
			flagsets:   []*pflag.FlagSet{histCmd.Flags(), fastFlowCmd.Flags(), fluxGateCmd.Flags()},
		},
		{
			name: "dpi",
			usage: `
              dpi is the resolution of raster figures.`,
			defaultVal: 300,
			flagsets:   []*pflag.FlagSet{analyzeCmd.PersistentFlags()},
		},
		{
			name: "open",
			usage: `
              open opens the figures that were written with the default viewer.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{analyzeCmd.PersistentFlags()},
		},
		{
			name: "abbreviations",
			usage: `
              abbreviations replace parameter names in flux-gate legends,
              given as JSON.`,
			defaultVal: analysis.FastFlowAbbr,
			flagsets:   []*pflag.FlagSet{fluxGateCmd.Flags()},
		},
		{
			name: "melt_before",
			usage: `
              melt_before is the basal mass flux [kg m-2 year-1] before change_date.`,
			defaultVal: 228e3 * 0.91,
			flagsets:   []*pflag.FlagSet{oceanCmd.Flags()},
		},
		{
			name: "melt_after",
			usage: `
              melt_after is the basal mass flux [kg m-2 year-1] from change_date on.`,
			defaultVal: 285e3 * 0.91,
			flagsets:   []*pflag.FlagSet{oceanCmd.Flags()},
		},
		{
			name: "change_date",
			usage: `
              change_date is the date that the basal mass flux changes.`,
			defaultVal: "1997-1-31",
			flagsets:   []*pflag.FlagSet{oceanCmd.Flags()},
		},
		{
			name: "recipe",
			usage: `
              recipe holds the derived variables as ';'-separated
              'name=expression' statements and 'where(cond) {name=value;}' blocks.`,
			defaultVal: pismrun.Ncap2Script,
			flagsets:   []*pflag.FlagSet{deriveCmd.Flags()},
		},
		{
			name: "bed_data_set",
			usage: `
              bed_data_set describes the bed topography of the run. If empty,
              it is looked up from etype.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{ncPostCmd.Flags()},
		},
		{
			name: "etype",
			usage: `
              etype is the experiment type, for example ctrl_v2, that the
              bed data set is looked up from.`,
			defaultVal: "ctrl_v2",
			flagsets:   []*pflag.FlagSet{ncPostCmd.Flags()},
		},
		{
			name: "capitalize",
			usage: `
              capitalize specifies whether flux long names are capitalized.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{ncPostCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	// PISMRUN_DRY_RUN sets dry-run.
	Cfg.SetEnvPrefix("PISMRUN")
	Cfg.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // The flag is shared with the first set.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				s := string(b.Bytes())
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(spawnCmd)
	for _, name := range pismrun.StudyNames() {
		spawnCmd.AddCommand(studyCmd(pismrun.Studies[name]))
	}
	Root.AddCommand(submitCmd)
	Root.AddCommand(analyzeCmd)
	analyzeCmd.AddCommand(histCmd, fastFlowCmd, fluxGateCmd, basemapCmd)
	Root.AddCommand(ncCmd)
	ncCmd.AddCommand(epsgCmd, oceanCmd, deriveCmd, attrsCmd, excludeCmd, ncPostCmd)
	Root.AddCommand(guiCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("pismrun: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// logFile is the open LogFile, if any.
var logFile *os.File

// setLog configures Log from the LogLevel and LogFile options. Messages
// go to the error stream of cmd and, if LogFile is set, to that file.
func setLog(cmd *cobra.Command) error {
	level, err := logrus.ParseLevel(Cfg.GetString("LogLevel"))
	if err != nil {
		return fmt.Errorf("pismrun: invalid LogLevel: %v", err)
	}
	Log.SetLevel(level)
	Log.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	var out io.Writer = cmd.OutOrStderr()
	closeLog()
	if path := os.ExpandEnv(Cfg.GetString("LogFile")); path != "" {
		logFile, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("pismrun: opening log file: %v", err)
		}
		out = io.MultiWriter(out, logFile)
	}
	Log.Out = out
	return nil
}

func closeLog() error {
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "pismrun",
	Short: "Set up, post-process and analyze PISM parameter studies.",
	Long: `pismrun writes the PBS job scripts of PISM parameter studies of the
Greenland ice sheet, submits them, edits the NetCDF files the runs produce,
and compares model output with observations.
Use the subcommands specified below to access this functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'PISMRUN_var' where 'var' is the
name of the variable to be set. Paths may contain environment variables.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := setConfig(); err != nil {
			return err
		}
		return setLog(cmd)
	},
	PersistentPostRunE: func(*cobra.Command, []string) error { return closeLog() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of pismrun.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("pismrun v%s\n", pismrun.Version)
	},
	DisableAutoGenTag: true,
}

// expandStringSlice expands environment variables in each element of s.
func expandStringSlice(s []string) []string {
	o := make([]string, len(s))
	for i, v := range s {
		o[i] = os.ExpandEnv(v)
	}
	return o
}
