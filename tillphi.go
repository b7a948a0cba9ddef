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

package pismrun

import (
	"fmt"
	"strings"
)

// studyGrids are the grid resolutions accepted by the regional
// parameter studies.
var studyGrids = []int{18000, 9000, 4500, 3600, 1800, 1500, 1200, 900, 600, 450}

// Surface forcing files.
const (
	baselineSurfaceFile = "GR6b_ERAI_1989_2011_4800M_BIL_1989_baseline.nc"
	monthlySurfaceFile  = "GR6b_ERAI_1989_2011_4800M_BIL_MM.nc"
)

const regridVars = "litho_temp,enthalpy,tillwat,bmelt,Href"

func dataName(grid int, version, bed string) string {
	return fmt.Sprintf("pism_Greenland_%dm_mcb_jpl_v%s_%s.nc", grid, version, bed)
}

func init() {
	registerStudy(&Study{
		Name:            "tillphi",
		Description:     "till friction angle and hydrology sensitivity study",
		NeedsRegridFile: true,
		defaults: Options{
			Grid:           1500,
			Climate:        "const",
			BedType:        "ctrl",
			DatasetVersion: "2",
		},
		sweep: func() Sweep {
			return Sweep{
				SIAE:    1.25,
				PPQ:     0.6,
				TEFO:    0.02,
				SSAN:    3.25,
				SSAE:    1.0,
				Omega:   []interface{}{0.1, 1.0, 10.0},
				Alpha:   []interface{}{1},
				K:       []interface{}{0.0001, 0.001, 0.01, 0.1},
				PhiMin:  []interface{}{5.0},
				PhiMax:  []interface{}{40.0},
				TopgMin: []interface{}{-700},
				TopgMax: []interface{}{700},
			}
		},
		plan: tillPhi,
	})
}

func tillPhi(o Options, s Sweep) (*Plan, error) {
	const (
		study = "tillphi"
		dura  = 10
		hydro = "distributed"
	)
	err := choices{
		{"climate", o.Climate, []string{"const", "pdd"}},
		{"domain", o.Domain, []string{"greenland", "jakobshavn"}},
		{"output format", o.OFormat, oFormats},
		{"output size", o.OSize, oSizes},
		{"queue", o.Queue, queues},
		{"bed type", o.BedType, []string{"ctrl", "old_bed", "ba01_bed", "970mw_hs", "jak_1985", "cresis"}},
		{"data set version", o.DatasetVersion, []string{"1.1", "1.2", "2"}},
	}.check(study)
	if err != nil {
		return nil, err
	}
	if err = checkGrid(study, o.Grid, studyGrids); err != nil {
		return nil, err
	}
	exec, err := GenerateDomain(o.Domain)
	if err != nil {
		return nil, err
	}
	header, err := Header(o.System, o.NProcs, o.Walltime, o.Queue)
	if err != nil {
		return nil, err
	}
	dataname := dataName(o.Grid, o.DatasetVersion, o.BedType)
	etype := fmt.Sprintf("%s_v%s", o.BedType, o.DatasetVersion)
	bedDataSet, err := BedDataSet(etype)
	if err != nil {
		return nil, err
	}
	domain := strings.ToLower(o.Domain)

	var jobs []Job
	for _, c := range Product(s.Omega, s.Alpha, s.K, s.PhiMin, s.PhiMax, s.TopgMin, s.TopgMax) {
		omega, alpha, k, phiMin, phiMax, topgMin, topgMax := c[0], c[1], c[2], c[3], c[4], c[5], c[6]

		name := NewDict()
		name.Set("sia_e", s.SIAE)
		name.Set("ppq", s.PPQ)
		name.Set("tefo", s.TEFO)
		name.Set("ssa_n", s.SSAN)
		name.Set("ssa_e", s.SSAE)
		name.Set("phi_min", phiMin)
		name.Set("phi_max", phiMax)
		name.Set("topg_min", topgMin)
		name.Set("topg_max", topgMax)
		name.Set("hydro", hydro)
		name.Set("omega", omega)
		name.Set("alpha", alpha)
		name.Set("k", k)
		experiment := strings.Join([]string{o.Climate, etype, name.Name()}, "_")
		outfile := fmt.Sprintf("%s_g%dm_%s_%da.nc", domain, o.Grid, experiment, dura)

		env := NewDict()
		env.Set("PISM_DO", "")
		env.Set("PISM_OFORMAT", o.OFormat)
		env.Set("PISM_OSIZE", o.OSize)
		env.Set("PISM_EXEC", exec)
		env.Set("PISM_DATANAME", dataname)
		env.Set("PISM_SURFACE_BC_FILE", baselineSurfaceFile)
		env.Set("REGRIDFILE", o.RegridFile)
		env.Set("TSSTEP", "daily")
		env.Set("EXSTEP", "yearly")
		env.Set("REGRIDVARS", regridVars)
		env.Set("SIA_E", s.SIAE)
		env.Set("SSA_E", s.SSAE)
		env.Set("SSA_N", s.SSAN)
		env.Set("PARAM_NOAGE", "foo")
		env.Set("PARAM_PPQ", s.PPQ)
		env.Set("PARAM_TEFO", s.TEFO)
		env.Set("PARAM_TTPHI", ttphi(phiMin, phiMax, topgMin, topgMax))
		env.Set("PARAM_FTT", "foo")
		env.Set("PARAM_ALPHA", alpha)
		env.Set("PARAM_K", k)
		env.Set("PARAM_OMEGA", omega)

		body := header + runCommand(env, "./run.sh", o.NProcs, o.Climate, dura, o.Grid, "hybrid", hydro, outfile) + "\n"

		post, err := PostScript(PostSpec{
			Dir:        fmt.Sprintf("%dm_%s_%s/processed/%s", o.Grid, o.Climate, etype, domain),
			Files:      []PostFile{{Name: outfile}},
			BedDataSet: bedDataSet,
			Grid:       o.Grid,
			Ncap2Flag:  "-o",
		})
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, Job{
			Experiment: experiment,
			Script:     fmt.Sprintf("do_%s_g%dm_%s.sh", domain, o.Grid, experiment),
			ScriptBody: body,
			Post:       fmt.Sprintf("do_%s_g%dm_%s_post.sh", domain, o.Grid, experiment),
			PostBody:   post,
			Env:        jobEnv(experiment, Title),
		})
	}
	submit := fmt.Sprintf("submit_%s_g%dm_%s_%s_tillphi.sh", domain, o.Grid, o.Climate, etype)
	return newPlan(study, submit, jobs, false)
}
