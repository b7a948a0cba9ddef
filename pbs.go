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
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

// Systems holds the number of processors per node for each queue of
// the supported computer systems. The debug system has no queues and
// produces jobs without batch directives.
var Systems = map[string]map[string]int{
	"debug": {},
	"fish": {
		"gpu":      16,
		"gpu_long": 16,
		"standard": 12,
	},
	"pacman": {
		"standard_4":  4,
		"standard_16": 16,
	},
	"pleiades": {
		"long":   20,
		"normal": 20,
	},
}

// Queues returns the names of all queues of all systems, sorted.
func Queues() []string {
	seen := make(map[string]bool)
	var o []string
	for _, qs := range Systems {
		for q := range qs {
			if !seen[q] {
				seen[q] = true
				o = append(o, q)
			}
		}
	}
	sort.Strings(o)
	return o
}

const pleiadesHeader = `
#PBS -S /bin/bash
#PBS -N cfd
#PBS -l walltime={{.Walltime}}
#PBS -m e
#PBS -q {{.Queue}}
#PBS -lselect={{.Nodes}}:ncpus={{.PPN}}:mpiprocs={{.PPN}}:model=ivy
#PBS -j oe

cd $PBS_O_WORKDIR

`

const clusterHeader = `
#!/bin/bash
#PBS -q {{.Queue}}
#PBS -l walltime={{.Walltime}}
#PBS -l nodes={{.Nodes}}:ppn={{.PPN}}
#PBS -j oe

cd $PBS_O_WORKDIR

`

const inlineHeader = `#!/bin/bash

#PBS -q {{.Queue}}
#PBS -l walltime={{.Walltime}}
#PBS -l nodes={{.Nodes}}:ppn={{.PPN}}
#PBS -j oe

cd $PBS_O_WORKDIR

`

const postHeader = `#!/bin/bash
#PBS -q transfer
#PBS -l walltime=4:00:00
#PBS -l nodes=1:ppn=1
#PBS -j oe

source ~/python/bin/activate

cd $PBS_O_WORKDIR

`

// Fill is the fill value written by post-processing for ice-free cells.
const Fill = "-2e9"

// Ncap2Script derives fluxes, shear and stress ratios from PISM output.
// See ncedit.PostRecipe for the same steps applied in Go.
const Ncap2Script = "uflux=ubar*thk; vflux=vbar*thk; velshear_mag=velsurf_mag-velbase_mag; " +
	"where(thk<50) {velshear_mag=" + Fill + "; velbase_mag=" + Fill + "; velsurf_mag=" + Fill + "; flux_mag=" + Fill + ";}; " +
	"sliding_r = velbase_mag/velsurf_mag; tau_r = tauc/(taud_mag+1); tau_rel=(tauc-taud_mag)/(1+taud_mag);"

const postBody = ` if [ ! -d {{.Dir}} ]; then mkdir -p {{.Dir}}; fi

{{range .Files}}if [ -f {{.Name}} ]; then
  rm -f tmp_{{.Name}} {{if .Extra}}tmp_ex_{{.Name}} {{end}}{{$.Dir}}/{{.Name}}{{if .Extra}} {{$.Dir}}/ex_{{.Name}}{{end}}
  ncks -v enthalpy,litho_temp -x {{.Name}} tmp_{{.Name}}
{{if .Extra}}  ncks -O --64 ex_{{.Name}} {{$.Dir}}/ex_{{.Name}}
{{end}}  sh add_epsg3413_mapping.sh tmp_{{.Name}}
  ncpdq {{$.NcpdqFlag}} --64 -a time,y,x tmp_{{.Name}} {{$.Dir}}/{{.Name}}
  ncap2 {{$.Ncap2Flag}} -s "{{$.Ncap2}}" {{$.Dir}}/{{.Name}} {{$.Dir}}/{{.Name}}
  ncatted -a bed_data_set,run_stats,o,c,"{{$.BedDataSet}}" -a grid_dx_meters,run_stats,o,f,{{$.Grid}} -a grid_dy_meters,run_stats,o,f,{{$.Grid}} -a long_name,uflux,o,c,"{{$.FluxLongName "x"}}" -a long_name,vflux,o,c,"{{$.FluxLongName "y"}}" -a units,uflux,o,c,"m2 year-1" -a units,vflux,o,c,"m2 year-1" -a units,sliding_r,o,c,"1" -a units,tau_r,o,c,"1" -a units,tau_rel,o,c,"1" {{$.Dir}}/{{.Name}}
fi

{{end}}`

const submitScript = `#!/bin/bash
{{range .}}JOBID=$(qsub {{.Script}})
{{if .Post}}qsub -W depend=afterok:${JOBID} {{.Post}}
{{end}}{{end}}`

var (
	pleiadesTmpl = template.Must(template.New("pleiades").Parse(pleiadesHeader))
	clusterTmpl  = template.Must(template.New("cluster").Parse(clusterHeader))
	inlineTmpl   = template.Must(template.New("inline").Parse(inlineHeader))
	postTmpl     = template.Must(template.New("post").Parse(postBody))
	submitTmpl   = template.Must(template.New("submit").Parse(submitScript))
)

type headerData struct {
	Queue, Walltime string
	Nodes, PPN      int
}

// Header returns the PBS header for a job using cores processors on
// the given system and queue. The debug system returns an empty header.
func Header(system string, cores int, walltime, queue string) (string, error) {
	queues, ok := Systems[system]
	if !ok {
		return "", fmt.Errorf("pismrun: system %s not recognized", system)
	}
	if system == "debug" {
		return "", nil
	}
	ppn, ok := queues[queue]
	if !ok {
		return "", fmt.Errorf("pismrun: queue %s is not available on system %s", queue, system)
	}
	if cores <= 0 {
		return "", fmt.Errorf("pismrun: number of cores must be > 0 but is %d", cores)
	}
	t := clusterTmpl
	if system == "pleiades" {
		t = pleiadesTmpl
	}
	return execute(t, headerData{Queue: queue, Walltime: walltime, Nodes: cores / ppn, PPN: ppn})
}

// InlineHeader returns a PBS header for a queue that is not in
// Systems, with an explicit number of processors per node.
func InlineHeader(queue, walltime string, cores, ppn int) (string, error) {
	if ppn <= 0 {
		return "", fmt.Errorf("pismrun: processors per node must be > 0 but is %d", ppn)
	}
	if cores <= 0 {
		return "", fmt.Errorf("pismrun: number of cores must be > 0 but is %d", cores)
	}
	return execute(inlineTmpl, headerData{Queue: queue, Walltime: walltime, Nodes: cores / ppn, PPN: ppn})
}

// PostFile is a model output file handled by a post-processing script.
type PostFile struct {
	Name string

	// Extra specifies that the run also wrote a spatial time series
	// file "ex_<Name>" that should be copied.
	Extra bool
}

// PostSpec specifies a post-processing script.
type PostSpec struct {
	// Dir is the destination directory for the processed files.
	Dir string

	Files []PostFile

	// BedDataSet describes the bed topography used in the run.
	BedDataSet string

	// Grid is the horizontal grid resolution [m].
	Grid int

	// Capitalize specifies whether the flux long names start with
	// a capital letter and use an upper case axis name.
	Capitalize bool

	// Ncap2Flag and NcpdqFlag are the output flags passed to ncap2
	// and ncpdq. They default to "-O" and "-o".
	Ncap2Flag, NcpdqFlag string
}

// FluxLongName returns the long name for the flux in the given direction.
func (p PostSpec) FluxLongName(axis string) string {
	if p.Capitalize {
		return "Vertically-integrated horizontal flux of ice in the " + strings.ToUpper(axis) + " direction"
	}
	return "vertically-integrated horizontal flux of ice in the " + axis + " direction"
}

// Ncap2 returns the ncap2 script.
func (p PostSpec) Ncap2() string { return Ncap2Script }

// PostScript returns the post-processing script for p.
func PostScript(p PostSpec) (string, error) {
	if p.Ncap2Flag == "" {
		p.Ncap2Flag = "-O"
	}
	if p.NcpdqFlag == "" {
		p.NcpdqFlag = "-o"
	}
	body, err := execute(postTmpl, p)
	if err != nil {
		return "", err
	}
	return postHeader + body, nil
}

// SubmitScript returns a script that submits each job, and its post
// script with a dependency on the job if withPost is true.
func SubmitScript(jobs []Job, withPost bool) (string, error) {
	type entry struct{ Script, Post string }
	scripts := make([]string, len(jobs))
	posts := make([]string, 0, len(jobs))
	for i, j := range jobs {
		scripts[i] = j.Script
		if j.Post != "" {
			posts = append(posts, j.Post)
		}
	}
	scripts = UniquifyStrings(scripts, nil)
	posts = UniquifyStrings(posts, nil)
	entries := make([]entry, len(scripts))
	for i, s := range scripts {
		entries[i].Script = s
		if withPost && i < len(posts) {
			entries[i].Post = posts[i]
		}
	}
	return execute(submitTmpl, entries)
}

// BedDataSet returns the name of the bed topography data set for the
// given experiment type, which includes the data set version suffix
// (e.g. "ctrl_v2").
func BedDataSet(etype string) (string, error) {
	switch etype {
	case "ctrl_v2":
		return "MO14 2015-04-27", nil
	case "cresis_v2":
		return "MO14+CReSIS 2015-04-27", nil
	case "ctrl_v1.2":
		return "MO14 2014-11-19", nil
	case "ctrl", "ctrl_v1.1":
		return "MO14 2014-06-26", nil
	case "old_bed", "old_bed_v1.1", "old_bed_v1.2", "old_bed_v2":
		return "BA01", nil
	case "searise":
		return "SR13", nil
	}
	return "", fmt.Errorf("pismrun: etype %s not recognized", etype)
}

// VersionDataSet returns the name of the bed topography data set for
// an input data set version.
func VersionDataSet(version string) (string, error) {
	switch version {
	case "2", "2_1985":
		return "MO14 2015-04-27", nil
	}
	return "", fmt.Errorf("pismrun: data set version %s not recognized", version)
}

func execute(t *template.Template, data interface{}) (string, error) {
	var b bytes.Buffer
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("pismrun: rendering %s template: %v", t.Name(), err)
	}
	return b.String(), nil
}
