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
	"os"
	"strings"
	"time"

	"github.com/icesheet/pismrun"
	"github.com/icesheet/pismrun/ncedit"
	"github.com/spf13/cobra"
)

// commandLine returns the command as it is recorded in file histories.
func commandLine(cmd *cobra.Command, args []string) string {
	return strings.Join(append([]string{cmd.CommandPath()}, args...), " ")
}

var ncCmd = &cobra.Command{
	Use:   "nc",
	Short: "Edit NetCDF files.",
	Long: `nc edits NetCDF model input and output files in place. Use the
subcommands specified below to choose the edit.`,
	DisableAutoGenTag: true,
}

var epsgCmd = &cobra.Command{
	Use:   "epsg3413 files...",
	Short: "Add EPSG:3413 mapping information.",
	Long: `epsg3413 adds the polar stereographic grid mapping of EPSG:3413 and
a proj4 string to each file.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, f := range expandStringSlice(args) {
			if err := ncedit.AddEPSG3413MappingFile(f, commandLine(cmd, []string{f})); err != nil {
				return err
			}
			Log.Infof("added EPSG:3413 mapping to %s", f)
		}
		return nil
	},
	DisableAutoGenTag: true,
}

var oceanCmd = &cobra.Command{
	Use:   "ocean-forcing infile [outfile]",
	Short: "Generate ocean forcing.",
	Long: `ocean-forcing writes a uniform sub-shelf mass flux (shelfbmassflux) and a
zero sub-shelf temperature (shelfbtemp) for each time of infile. The flux
changes from --melt_before to --melt_after on --change_date. Without
outfile, the variables are added to infile.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		o := ncedit.OceanOptions{
			In:         os.ExpandEnv(args[0]),
			MeltBefore: Cfg.GetFloat64("melt_before"),
			MeltAfter:  Cfg.GetFloat64("melt_after"),
			ChangeDate: Cfg.GetString("change_date"),
			Log:        Log,
		}
		if len(args) > 1 {
			o.Out = os.ExpandEnv(args[1])
		}
		return ncedit.OceanForcing(o)
	},
	DisableAutoGenTag: true,
}

var deriveCmd = &cobra.Command{
	Use:   "derive file",
	Short: "Compute derived variables.",
	Long: `derive computes the variables of --recipe from the variables in file and
adds them to it. Statements whose inputs are missing are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps, err := ncedit.ParseRecipe(Cfg.GetString("recipe"))
		if err != nil {
			return err
		}
		return ncedit.Rewrite(os.ExpandEnv(args[0]), func(f *ncedit.File) error {
			changed, err := ncedit.Derive(f, steps, Log)
			if err != nil {
				return err
			}
			Log.WithField("file", args[0]).Infof("computed %s", strings.Join(changed, ", "))
			return nil
		})
	},
	DisableAutoGenTag: true,
}

var attrsCmd = &cobra.Command{
	Use:   "attrs file edits...",
	Short: "Edit attributes.",
	Long: `attrs applies attribute edits to file. Each edit has the form
name,var,mode,type,value where var is a variable name or 'global', mode is
o (overwrite), c (create if missing) or d (delete), and type is one of
c, f, d, s, i or l.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var edits []ncedit.AttributeEdit
		for _, a := range args[1:] {
			e, err := ncedit.ParseAttributeEdit(a)
			if err != nil {
				return err
			}
			edits = append(edits, e)
		}
		return ncedit.Rewrite(os.ExpandEnv(args[0]), func(f *ncedit.File) error {
			return ncedit.SetAttributes(f, edits...)
		})
	},
	DisableAutoGenTag: true,
}

var excludeCmd = &cobra.Command{
	Use:   "exclude file variables...",
	Short: "Remove variables.",
	Long:  `exclude removes the given variables from file.`,
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return ncedit.Rewrite(os.ExpandEnv(args[0]), func(f *ncedit.File) error {
			n := ncedit.Exclude(f, args[1:]...)
			Log.WithField("file", args[0]).Infof("removed %d variables", n)
			return nil
		})
	},
	DisableAutoGenTag: true,
}

var ncPostCmd = &cobra.Command{
	Use:   "post files...",
	Short: "Post-process model output.",
	Long: `post prepares PISM output files for archiving: it removes the 3D
enthalpy and lithosphere temperature fields, adds the EPSG:3413 mapping,
computes the flux, shear and sliding ratio variables and records the bed
data set and grid resolution.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ps := pismrun.PostSpec{
			BedDataSet: Cfg.GetString("bed_data_set"),
			Grid:       Cfg.GetInt("grid"),
			Capitalize: Cfg.GetBool("capitalize"),
		}
		if ps.BedDataSet == "" {
			var err error
			if ps.BedDataSet, err = pismrun.BedDataSet(Cfg.GetString("etype")); err != nil {
				return err
			}
		}
		for _, f := range expandStringSlice(args) {
			stamp := ncedit.HistoryStamp(time.Now(), commandLine(cmd, []string{f}))
			if err := ncedit.Post(f, ps, stamp, Log.WithField("file", f)); err != nil {
				return err
			}
		}
		return nil
	},
	DisableAutoGenTag: true,
}
